// Command server runs the StudyDesk backend.
//
// Usage:
//
//	server serve [--port 8000] [--health-port 9090] [--data-dir ./data] [--dev] [--in-memory]
//	server presets [name] [--yaml]
//	server version
//
// Configuration is read from the environment (PORT, DATA_DIR, REMOTE_URL,
// REDIS_URL, API_KEY, ...); flags override it.
//
// Signals:
//   - SIGINT, SIGTERM: graceful shutdown, snapshotting open workspaces
package main
