// Package hints derives a delivery stance from HTTP Client Hints.
//
// Browsers that support Network Information Client Hints send the same
// signals the agent reads on-device:
//
//	RTT: 150          round-trip time in ms, already rounded to 25 ms
//	Downlink: 2.5     downlink estimate in Mbps
//	Save-Data: on     user asked for reduced data usage
//
// Middleware parses these headers, runs one normalization and fusion pass and
// stores the resulting State in the request context (FromContext). A request
// without any of the three headers has an unavailable network channel and
// therefore the default moderate / neutral / cautious stance. There is no
// battery channel on the server.
//
// With Accept-CH enabled the middleware also advertises the hints on every
// response and adds them to Vary so caches key on them.
package hints
