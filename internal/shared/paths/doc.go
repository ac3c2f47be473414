// Package paths provides the on-disk layout of the data directory.
//
// # Directory Structure
//
//	<data>/
//	  ├── local/      (badger local durable tier and snapshots)
//	  ├── remote.db   (sqlite remote store when no REMOTE_URL is set)
//	  └── exports/    (settings exports written by the CLI)
//
// # Usage
//
//	layout := paths.New(cfg.Local.DataDir)
//	if err := layout.Ensure(); err != nil {
//	    return err
//	}
//	store, err := localstore.Open(localstore.Config{Path: layout.Local()})
package paths
