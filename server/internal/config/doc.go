// Package config loads the server-side configuration from the `server:` section
// of config.yaml (other top-level keys, such as an agent section sharing the
// file, are ignored by the server binary).
//
// Config fields:
//   - HTTPPort       — port for the edge server (default 8080)
//   - Root           — directory of static pages to serve (default "public")
//   - Log            — json|text handler and level
//   - Thresholds     — bandwidth thresholds used when classifying Client Hints
//   - Hints.AcceptCH — advertise Accept-CH / Vary (default true)
//
// Load(path) applies defaults before unmarshalling, then validates.
package config
