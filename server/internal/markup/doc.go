// Package markup asserts delivery-stance classes on served HTML pages.
//
// Middleware buffers text/html responses, parses them with goquery, rewrites
// the class attribute of the <html> element through a classlist and writes the
// document back out. Each stance axis keeps exactly one class: every class
// of an axis is retracted before the current one is asserted, so a page that
// ships with a stale has-delivery-mode-* class is corrected. Classes the page
// set for its own purposes are preserved.
//
// Responses that are not 200 text/html, HEAD requests and documents without
// an <html> tag in their source are passed through untouched.
package markup
