package security

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"log/slog"
	"net"
	"net/url"
	"time"

	"github.com/obsidianstack/obs/agent/internal/config"
)

// dialTimeout bounds the handshake with a source endpoint.
const dialTimeout = 10 * time.Second

// Status is the verdict on a source certificate.
type Status string

const (
	StatusValid       Status = "valid"
	StatusExpiring    Status = "expiring"
	StatusExpired     Status = "expired"
	StatusUntrusted   Status = "untrusted"
	StatusUnreachable Status = "unreachable"
)

// CertStatus describes the leaf certificate a signal source presents.
type CertStatus struct {
	Channel  string
	Endpoint string
	Status   Status
	DaysLeft int
	Issuer   string
	NotAfter time.Time
	Err      error
}

// Healthy reports whether the source needs no operator attention.
func (c *CertStatus) Healthy() bool { return c.Status == StatusValid }

// Check handshakes with the https endpoint of a polled signal source using
// the same client TLS settings as the poller, then grades the leaf
// certificate against src.TLS.ExpiryWarn.
//
// Returns nil when the source has no https endpoint or the check is
// disabled with a zero ExpiryWarn.
func Check(ctx context.Context, channel string, src config.Source, now time.Time) *CertStatus {
	if src.TLS.ExpiryWarn <= 0 {
		return nil
	}
	u, err := url.Parse(src.Endpoint)
	if src.Endpoint == "" || err != nil || u.Scheme != "https" {
		return nil
	}

	cs := &CertStatus{Channel: channel, Endpoint: src.Endpoint}

	tlsCfg, err := src.ClientTLS()
	if err != nil {
		cs.Status, cs.Err = StatusUnreachable, err
		return cs
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, err := (&tls.Dialer{Config: tlsCfg}).DialContext(dialCtx, "tcp", hostPort(u))
	if err != nil {
		cs.Status, cs.Err = dialStatus(err), err
		return cs
	}
	defer conn.Close()

	peers := conn.(*tls.Conn).ConnectionState().PeerCertificates
	if len(peers) == 0 {
		cs.Status = StatusUnreachable
		return cs
	}

	leaf := peers[0]
	cs.Issuer = leaf.Issuer.CommonName
	cs.NotAfter = leaf.NotAfter.UTC()
	cs.Status, cs.DaysLeft = Grade(leaf.NotAfter, now, src.TLS.ExpiryWarn)
	return cs
}

// CheckSources runs Check for every named source and logs each one that is
// not healthy. It returns the statuses that were produced.
func CheckSources(ctx context.Context, sources map[string]config.Source, now time.Time) []*CertStatus {
	var out []*CertStatus
	for channel, src := range sources {
		cs := Check(ctx, channel, src, now)
		if cs == nil {
			continue
		}
		out = append(out, cs)
		if !cs.Healthy() {
			slog.Warn("security: source certificate problem",
				"channel", cs.Channel,
				"endpoint", cs.Endpoint,
				"status", cs.Status,
				"days_left", cs.DaysLeft,
				"issuer", cs.Issuer,
				"err", cs.Err,
			)
		}
	}
	return out
}

// Grade classifies a certificate expiring at notAfter as seen at now.
// DaysLeft counts whole days and is negative once expired.
func Grade(notAfter, now time.Time, warn time.Duration) (Status, int) {
	left := notAfter.Sub(now)
	days := int(left / (24 * time.Hour))
	if left < 0 && left%(24*time.Hour) != 0 {
		days--
	}

	switch {
	case left <= 0:
		return StatusExpired, days
	case left <= warn:
		return StatusExpiring, days
	default:
		return StatusValid, days
	}
}

// --- internal ---------------------------------------------------------------

func hostPort(u *url.URL) string {
	if u.Port() != "" {
		return u.Host
	}
	return net.JoinHostPort(u.Hostname(), "443")
}

func dialStatus(err error) Status {
	var (
		verify    *tls.CertificateVerificationError
		unknownCA x509.UnknownAuthorityError
		invalid   x509.CertificateInvalidError
		hostname  x509.HostnameError
	)
	switch {
	case errors.As(err, &verify), errors.As(err, &unknownCA),
		errors.As(err, &invalid), errors.As(err, &hostname):
		return StatusUntrusted
	default:
		return StatusUnreachable
	}
}
