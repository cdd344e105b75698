// Package config loads the server-side configuration from the `server:` section
// of config.yaml (the `console:` key is ignored by the server binary).
//
// Config fields:
//   - HTTPPort            port for the REST API and push stream (default 8080)
//   - Storage.Backend     memory | badger | redis (default memory)
//   - Storage.Path        badger data directory; empty runs badger in memory
//   - Storage.RedisAddr   redis host:port (default localhost:6379)
//   - Storage.Capacity    recent readings retained (default 10000)
//   - Stream.Keepalive    SSE keepalive comment interval (default 15s)
//   - Thresholds          initial alert bounds
//   - Alerts.Webhooks     slack | teams | http targets, URL read from url_env
//   - Alerts.History      recent alerts kept for GET /api/v1/alerts (default 200)
//
// Load(path) applies defaults before unmarshalling, then validates.
package config
