package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/obsidianstack/obs/agent/internal/config"
	"github.com/obsidianstack/obs/pkg/stance"
)

const defaultScrapeTimeout = 10 * time.Second

// Prometheus polls a Prometheus text exposition (a probe exporter, a
// node_exporter power_supply collector, ...) and maps configured metric
// names onto network and battery signals.
//
// A missing metric is an unknown signal. Boolean signals (save_data,
// charging) are true when the gauge is non-zero.
type Prometheus struct {
	src    config.Source
	client *http.Client

	mu          sync.RWMutex
	net         stance.NetworkReading
	downlinkMax float64
	bat         stance.BatteryReading
	scraped     bool

	changes  broadcaster
	level    broadcaster
	charging broadcaster
}

// NewPrometheus builds the HTTP client once and reuses it across scrapes.
func NewPrometheus(src config.Source) (*Prometheus, error) {
	client, err := buildHTTPClient(src)
	if err != nil {
		return nil, fmt.Errorf("source: prometheus %q: build http client: %w", src.Endpoint, err)
	}
	return newPrometheus(src, client), nil
}

func newPrometheus(src config.Source, client *http.Client) *Prometheus {
	if src.LevelScale == 0 {
		src.LevelScale = config.DefaultLevelScale
	}
	if src.Interval <= 0 {
		src.Interval = config.DefaultPollInterval
	}
	return &Prometheus{
		src:         src,
		client:      client,
		net:         unknownNetwork(),
		downlinkMax: math.NaN(),
		bat:         stance.BatteryReading{Level: math.NaN()},
	}
}

// Prime performs the first scrape without notifying subscribers.
func (p *Prometheus) Prime(ctx context.Context) error {
	_, _, _, err := p.scrape(ctx)
	return err
}

// Network returns the last scraped network reading.
func (p *Prometheus) Network() stance.NetworkReading {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.net
}

// DownlinkMax returns the last scraped maximum downlink, NaN if unmapped.
func (p *Prometheus) DownlinkMax() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.downlinkMax
}

// Subscribe registers fn for network changes.
func (p *Prometheus) Subscribe(fn func()) func() { return p.changes.subscribe(fn) }

// Acquire scrapes once unless Prime already succeeded. A failed scrape or a
// missing level metric makes the battery channel unavailable.
func (p *Prometheus) Acquire(ctx context.Context) (Battery, error) {
	p.mu.RLock()
	scraped := p.scraped
	p.mu.RUnlock()
	if !scraped {
		if _, _, _, err := p.scrape(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	if math.IsNaN(p.Battery().Level) {
		return nil, fmt.Errorf("%w: metric %q not exposed", ErrUnavailable, p.src.Metrics.Level)
	}
	return p, nil
}

// Battery returns the last scraped battery reading.
func (p *Prometheus) Battery() stance.BatteryReading {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.bat
}

// SubscribeLevel registers fn for battery level changes.
func (p *Prometheus) SubscribeLevel(fn func()) func() { return p.level.subscribe(fn) }

// SubscribeCharging registers fn for charging changes.
func (p *Prometheus) SubscribeCharging(fn func()) func() { return p.charging.subscribe(fn) }

// Run scrapes every interval and fires the callbacks of whatever changed.
// Failed scrapes are logged and keep the previous readings.
func (p *Prometheus) Run(ctx context.Context) {
	t := time.NewTicker(p.src.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			netChanged, levelChanged, chargingChanged, err := p.scrape(ctx)
			if err != nil {
				slog.Warn("source: prometheus scrape failed", "endpoint", p.src.Endpoint, "err", err)
				continue
			}
			if netChanged {
				p.changes.fire()
			}
			if levelChanged {
				p.level.fire()
			}
			if chargingChanged {
				p.charging.fire()
			}
		}
	}
}

// scrape fetches the endpoint, stores the mapped readings and reports which
// of them changed.
func (p *Prometheus) scrape(ctx context.Context) (netChanged, levelChanged, chargingChanged bool, err error) {
	mfs, err := fetchMetrics(ctx, p.client, p.src.Endpoint)
	if err != nil {
		return false, false, false, fmt.Errorf("prometheus scrape %q: %w", p.src.Endpoint, err)
	}

	m := p.src.Metrics
	net := stance.NetworkReading{
		SaveData: flagValue(mfs, m.SaveData),
		RTT:      gaugeValue(mfs, m.RTT),
		Downlink: gaugeValue(mfs, m.Downlink),
	}
	dmax := gaugeValue(mfs, m.DownlinkMax)
	bat := stance.BatteryReading{
		Level:    gaugeValue(mfs, m.Level) * p.src.LevelScale,
		Charging: flagValue(mfs, m.Charging),
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	netChanged = !sameNetwork(p.net, net) || !sameFloat(p.downlinkMax, dmax)
	levelChanged = !sameFloat(p.bat.Level, bat.Level)
	chargingChanged = p.bat.Charging != bat.Charging
	p.net, p.downlinkMax, p.bat = net, dmax, bat
	p.scraped = true
	return netChanged, levelChanged, chargingChanged, nil
}

// --- scrape plumbing --------------------------------------------------------

// authRoundTripper injects authentication headers into every outgoing request.
type authRoundTripper struct {
	base http.RoundTripper
	src  config.Source
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	switch t.src.Auth.Mode {
	case "apikey":
		req = req.Clone(req.Context())
		req.Header.Set(t.src.Auth.Header, t.src.Auth.Key())
	case "bearer":
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.src.Auth.Token())
	case "basic":
		req = req.Clone(req.Context())
		req.SetBasicAuth(t.src.Auth.Username, t.src.Auth.Password())
	}
	return t.base.RoundTrip(req)
}

// buildHTTPClient constructs an http.Client for the source's auth and TLS settings.
func buildHTTPClient(src config.Source) (*http.Client, error) {
	tlsCfg, err := src.ClientTLS()
	if err != nil {
		return nil, err
	}

	return &http.Client{
		Transport: &authRoundTripper{
			base: &http.Transport{TLSClientConfig: tlsCfg},
			src:  src,
		},
		Timeout: defaultScrapeTimeout,
	}, nil
}

// fetchMetrics performs an HTTP GET to url and returns parsed metric families.
func fetchMetrics(ctx context.Context, client *http.Client, url string) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return parseMetrics(resp.Body)
}

// parseMetrics decodes a Prometheus text exposition from r into metric families.
// A partial result with a non-fatal parse warning is still returned successfully.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}

// gaugeValue returns the value of the first series of the named family.
// Returns NaN when the name is empty or the family is absent.
func gaugeValue(mfs map[string]*dto.MetricFamily, name string) float64 {
	if name == "" {
		return math.NaN()
	}
	mf := mfs[name]
	if mf == nil || len(mf.GetMetric()) == 0 {
		return math.NaN()
	}
	m := mf.GetMetric()[0]
	switch {
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Untyped != nil:
		return m.Untyped.GetValue()
	default:
		return math.NaN()
	}
}

// flagValue reads a 0/1 gauge. Absent metrics are false.
func flagValue(mfs map[string]*dto.MetricFamily, name string) bool {
	v := gaugeValue(mfs, name)
	return !math.IsNaN(v) && v != 0
}
