package hints

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/obsidianstack/obs/pkg/stance"
	"github.com/obsidianstack/obs/pkg/types"
)

// Request header names.
const (
	HeaderRTT      = "RTT"
	HeaderDownlink = "Downlink"
	HeaderSaveData = "Save-Data"
)

// advertised is the Accept-CH / Vary value.
const advertised = HeaderRTT + ", " + HeaderDownlink + ", " + HeaderSaveData

type ctxKey struct{}

// Options configures Middleware.
type Options struct {
	Thresholds stance.Thresholds
	// AcceptCH advertises the hints and adds them to Vary.
	AcceptCH bool
	// CriticalCH also sends Critical-CH.
	CriticalCH bool
}

// Middleware evaluates the stance of every request and stores it in the
// request context.
func Middleware(opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opts.AcceptCH {
				h := w.Header()
				h.Set("Accept-CH", advertised)
				h.Add("Vary", advertised)
				if opts.CriticalCH {
					h.Set("Critical-CH", advertised)
				}
			}

			var net *stance.NetworkReading
			if reading, ok := Parse(r.Header); ok {
				net = &reading
			}
			s := stance.Evaluate(net, nil, opts.Thresholds)
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), s)))
		})
	}
}

// Parse reads the network hints from h. ok is false when none of the
// headers is present. Missing or unparsable values come back as NaN.
func Parse(h http.Header) (r stance.NetworkReading, ok bool) {
	rtt, rttOK := number(h.Get(HeaderRTT))
	down, downOK := number(h.Get(HeaderDownlink))
	save := h.Get(HeaderSaveData)

	r = stance.NetworkReading{
		SaveData: strings.EqualFold(strings.TrimSpace(save), "on"),
		RTT:      rtt,
		Downlink: down,
	}
	return r, rttOK || downOK || save != ""
}

// NewContext returns a copy of ctx carrying s.
func NewContext(ctx context.Context, s types.State) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the State stored by Middleware.
func FromContext(ctx context.Context) (types.State, bool) {
	s, ok := ctx.Value(ctxKey{}).(types.State)
	return s, ok
}

// number parses a non-negative decimal header value. present reports
// whether the header was sent at all.
func number(v string) (f float64, present bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return math.NaN(), false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return math.NaN(), true
	}
	return f, true
}
