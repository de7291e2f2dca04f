package markup

import (
	"bytes"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/PuerkitoBio/goquery"

	"github.com/obsidianstack/obs/pkg/classlist"
	"github.com/obsidianstack/obs/pkg/stance"
	"github.com/obsidianstack/obs/pkg/types"
)

// StanceFunc returns the stance evaluated for r.
type StanceFunc func(r *http.Request) (types.State, bool)

// Middleware rewrites the <html> class attribute of HTML responses using the
// stance returned by stanceFor.
func Middleware(stanceFor StanceFunc, th stance.Thresholds) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := stanceFor(r)
			if !ok || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			// The body varies with the stance, so validators of the file on
			// disk must not produce a 304.
			r = r.Clone(r.Context())
			r.Header.Del("If-Modified-Since")
			r.Header.Del("If-None-Match")

			bw := &bufferedWriter{header: w.Header(), status: http.StatusOK}
			next.ServeHTTP(bw, r)

			body := bw.buf.Bytes()
			if bw.status == http.StatusOK && isHTML(w.Header().Get("Content-Type")) && hasHTMLTag(body) {
				out, err := Rewrite(body, s, th)
				if err != nil {
					slog.Warn("markup: rewrite failed, serving original", "path", r.URL.Path, "err", err)
				} else {
					body = out
					w.Header().Del("Last-Modified")
					w.Header().Del("ETag")
				}
			}

			w.Header().Set("Content-Length", strconv.Itoa(len(body)))
			w.WriteHeader(bw.status)
			w.Write(body) //nolint:errcheck
		})
	}
}

// Rewrite returns doc with the stance classes of s asserted on <html>.
func Rewrite(doc []byte, s types.State, th stance.Thresholds) ([]byte, error) {
	d, err := goquery.NewDocumentFromReader(bytes.NewReader(doc))
	if err != nil {
		return nil, err
	}

	root := d.Find("html").First()
	attr, _ := root.Attr("class")
	cl := classlist.Parse(attr)
	stance.ApplyClasses(cl, s, th)
	if cl.Len() == 0 {
		root.RemoveAttr("class")
	} else {
		root.SetAttr("class", cl.String())
	}

	out, err := d.Html()
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// --- internal ---------------------------------------------------------------

// bufferedWriter holds the downstream response until it can be rewritten.
type bufferedWriter struct {
	header      http.Header
	status      int
	wroteHeader bool
	buf         bytes.Buffer
}

func (b *bufferedWriter) Header() http.Header { return b.header }

func (b *bufferedWriter) WriteHeader(code int) {
	if b.wroteHeader {
		return
	}
	b.wroteHeader = true
	b.status = code
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	if !b.wroteHeader {
		b.WriteHeader(http.StatusOK)
	}
	return b.buf.Write(p)
}

func isHTML(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "text/html"
}

func hasHTMLTag(body []byte) bool {
	return bytes.Contains(bytes.ToLower(body), []byte("<html"))
}
