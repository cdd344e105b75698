// Package config loads and watches the console configuration file.
//
// Top-level types:
//   - Config{Console, LogLevel}: the console's view of the shared config file
//   - ConsoleConfig: server_url, stream_url, listen_addr, site, capacity,
//     snapshot_limit, frame_interval, analysis_rows, follow_server_thresholds,
//     thresholds
//
// Load(path) reads the YAML file, applies defaults (capacity 1000, snapshot
// limit 500, 16ms frames, 200 analysis rows, default thresholds), derives
// stream_url from server_url when unset, then validates.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. The console applies threshold edits
// from it without a restart.
package config
