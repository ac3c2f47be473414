// Package config loads the StudyDesk backend settings from the environment
// through envconfig. Flags of the serve command are applied on top.
//
// Every field has a default, so an empty environment yields a working
// backend: a SQLite remote tier and a badger local tier under ./data,
// in-memory auth sessions and content generation disabled.
//
//	cfg, err := config.Load()
//	if err != nil {
//		return err
//	}
//	srv, err := server.NewServer(ctx, cfg)
package config
