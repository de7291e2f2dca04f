// Package source provides the network and battery signal sources the agent
// engine reads from. Every source hands out raw readings
// (stance.NetworkReading, stance.BatteryReading) and optionally notifies
// subscribers when they change.
//
// Capabilities are expressed as small interfaces so the engine can check for
// them once at start-up instead of probing on every read:
//
//   - Network — synchronous read of save-data, RTT and downlink
//   - DownlinkMaxer — the source also reports a maximum downlink
//   - Notifier — subscribe to network change events
//   - BatteryAcquirer — asynchronous acquisition of a Battery; an error means
//     the channel is unavailable for the lifetime of the process
//   - LevelNotifier / ChargingNotifier — subscribe to battery changes
//   - Runner — the source needs a goroutine (pollers, file watchers)
//   - Primer — the source can take a first reading before the engine starts
//
// Implementations: Feed (pushed over the REST API), File (YAML document
// watched with fsnotify), Prometheus (scraped text exposition), Sysfs
// (Linux power_supply class, battery only) and Static (fixed readings).
// NewNetwork and NewBattery build the right one from a config.Source.
package source
