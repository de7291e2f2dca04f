// Package security inspects the TLS certificate of polled signal sources.
//
// Check dials an https source endpoint with the same client TLS settings
// the poller uses and grades the leaf certificate as valid, expiring,
// expired, untrusted or unreachable. The expiring window comes from the
// source's tls.expiry_warn. The agent runs CheckSources once at startup,
// since an expired certificate silently turns a channel into "unknown".
package security
