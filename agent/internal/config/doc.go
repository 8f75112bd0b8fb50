// Package config loads and watches the agent configuration file (config.yaml).
//
// Top-level types:
//   - Config{Agent} parsed from the `agent:` section of YAML
//   - AgentConfig: server_endpoint, agent_id, scan_interval, ship_interval,
//     buffer_size, window_seconds, include_samples, sources[], server_auth, log
//   - Source: id, type (file|http), path, endpoint, ts_column, hr_column,
//     auth, tls. Hints() converts the column overrides for hrv.
//   - AuthConfig: mode (mtls|apikey|bearer|basic|none), cert/key/ca files,
//     header, key_env, token_env, username, password_env. Secrets are read
//     from the environment at call time.
//
// Load(path) reads the YAML file, applies defaults (30s scan, 15s ship,
// 1000 buffer, 60s window, info/json logs), then validates required fields
// and enums.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. The agent rebuilds its source
// pipelines from it. Atomic-save editors replace the file, so the watch is
// re-added after every event.
package config
