// Package config loads and watches the agent configuration file (config.yaml).
//
// Top-level types:
//   - Config — observe_changes, log_state, log, http_port,
//     broadcast_interval, auth, thresholds, network, battery
//   - Source — one signal channel: type (none|feed|file|prometheus|sysfs|
//     static), path, endpoint, interval, auth, tls, metrics, level_scale
//   - AuthConfig — mode (mtls|apikey|bearer|basic|none) for scraped
//     endpoints; Key(), Token() and Password() resolve from the environment
//   - APIAuthConfig — API key guarding the agent's signal push endpoints
//
// Load(path) reads the YAML file, applies defaults (observe changes, both
// channels fed over REST, 8/5 Mbps and 0.20/0.05 thresholds, port 8080),
// then validates enums and per-type required fields.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. It handles the rename→create pattern
// used by atomic-save editors (vim, VS Code) by re-adding the watch after
// a rename event.
package config
