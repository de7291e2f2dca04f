package api

import (
	"log/slog"
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/obsidianstack/obs/pkg/types"
)

// metrics returns GET /metrics — the State in Prometheus text format.
func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	w.Header().Set("Content-Type", string(format))
	w.WriteHeader(http.StatusOK)

	enc := expfmt.NewEncoder(w, format)
	for _, mf := range buildFamilies(h.state.Snapshot()) {
		if err := enc.Encode(mf); err != nil {
			slog.Warn("api: encode metrics", "family", mf.GetName(), "err", err)
			return
		}
	}
}

// buildFamilies maps s onto metric families. Unknown optional fields are
// left out rather than exported as zero.
func buildFamilies(s types.State) []*dto.MetricFamily {
	var out []*dto.MetricFamily

	mode := gaugeFamily("obs_delivery_mode", "Current delivery mode (1 for the active mode).")
	for _, m := range types.DeliveryModes {
		mode.Metric = append(mode.Metric, labelled("mode", string(m), boolFloat(s.DeliveryMode == m)))
	}
	out = append(out, mode)

	capability := gaugeFamily("obs_connection_capability", "Network-only capability verdict (1 for the active value).")
	for _, c := range types.Capabilities {
		capability.Metric = append(capability.Metric, labelled("capability", string(c), boolFloat(s.ConnectionCapability == c)))
	}
	out = append(out, capability)

	pref := gaugeFamily("obs_conservation_preference", "Conservation preference (1 for the active value).")
	for _, p := range types.Preferences {
		pref.Metric = append(pref.Metric, labelled("preference", string(p), boolFloat(s.ConservationPreference == p)))
	}
	out = append(out, pref)

	out = append(out,
		single("obs_rich_media_allowed", "1 when rich media may be shown.", boolFloat(s.CanShowRichMedia)),
		single("obs_rich_media_avoided", "1 when rich media should be avoided.", boolFloat(s.ShouldAvoidRichMedia)),
	)

	ready := gaugeFamily("obs_channel_initialized", "1 once the channel has completed a pass.")
	ready.Metric = append(ready.Metric,
		labelled("channel", "network", boolFloat(s.NetworkInitialized)),
		labelled("channel", "battery", boolFloat(s.BatteryInitialized)),
	)
	out = append(out, ready)

	if s.RTTBucket != nil {
		out = append(out, single("obs_rtt_bucket_ms", "Round-trip time rounded to 25 ms buckets.", float64(*s.RTTBucket)))
	}
	if s.DownlinkBucket != nil {
		out = append(out, single("obs_downlink_bucket_mbps", "Downlink estimate rounded up to whole Mbps.", float64(*s.DownlinkBucket)))
	}
	if s.DownlinkMax != nil {
		out = append(out, single("obs_downlink_max_mbps", "Reported maximum downlink.", *s.DownlinkMax))
	}
	for _, f := range []struct {
		name, help string
		v          *bool
	}{
		{"obs_data_saver", "1 when Save-Data is on.", s.DataSaver},
		{"obs_battery_low", "1 when the battery is at or below the low threshold.", s.BatteryLow},
		{"obs_battery_critical", "1 when the battery is at or below the critical threshold.", s.BatteryCritical},
		{"obs_battery_charging", "1 while charging.", s.BatteryCharging},
	} {
		if f.v != nil {
			out = append(out, single(f.name, f.help, boolFloat(*f.v)))
		}
	}

	rev := &dto.MetricFamily{
		Name: strp("obs_state_revision_total"),
		Help: strp("Number of fusion passes run."),
		Type: dto.MetricType_COUNTER.Enum(),
		Metric: []*dto.Metric{{
			Counter: &dto.Counter{Value: f64p(float64(s.Revision))},
		}},
	}
	return append(out, rev)
}

func gaugeFamily(name, help string) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: strp(name),
		Help: strp(help),
		Type: dto.MetricType_GAUGE.Enum(),
	}
}

func single(name, help string, v float64) *dto.MetricFamily {
	mf := gaugeFamily(name, help)
	mf.Metric = []*dto.Metric{{Gauge: &dto.Gauge{Value: f64p(v)}}}
	return mf
}

func labelled(label, value string, v float64) *dto.Metric {
	return &dto.Metric{
		Label: []*dto.LabelPair{{Name: strp(label), Value: strp(value)}},
		Gauge: &dto.Gauge{Value: f64p(v)},
	}
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func strp(s string) *string   { return &s }
func f64p(v float64) *float64 { return &v }
