package markup

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/obsidianstack/obs/pkg/classlist"
	"github.com/obsidianstack/obs/pkg/stance"
	"github.com/obsidianstack/obs/pkg/types"
)

const page = `<!DOCTYPE html>
<html lang="en" class="no-js has-delivery-mode-rich has-latency-low">
<head><title>t</title></head>
<body><p>hello</p></body>
</html>`

func htmlClasses(t *testing.T, body string) *classlist.ClassList {
	t.Helper()
	d, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	attr, _ := d.Find("html").Attr("class")
	return classlist.Parse(attr)
}

func slowState(th stance.Thresholds) types.State {
	return stance.Evaluate(&stance.NetworkReading{RTT: 400, Downlink: 1}, nil, th)
}

func TestRewrite_OneClassPerAxis(t *testing.T) {
	th := stance.DefaultThresholds()
	out, err := Rewrite([]byte(page), slowState(th), th)
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	body := string(out)
	cl := htmlClasses(t, body)

	for _, want := range []string{"no-js", "has-delivery-mode-lite", "has-latency-high", stance.ClassBandwidthLow, "has-connection-capability-weak"} {
		if !cl.Contains(want) {
			t.Errorf("class %q missing: %s", want, cl)
		}
	}
	for _, stale := range []string{"has-delivery-mode-rich", "has-latency-low"} {
		if cl.Contains(stale) {
			t.Errorf("stale class %q kept: %s", stale, cl)
		}
	}
	if !strings.HasPrefix(body, "<!DOCTYPE html>") {
		t.Errorf("doctype lost: %.40q", body)
	}
	if !strings.Contains(body, `lang="en"`) || !strings.Contains(body, "<p>hello</p>") {
		t.Errorf("document content changed: %s", body)
	}
}

func TestRewrite_Idempotent(t *testing.T) {
	th := stance.DefaultThresholds()
	s := slowState(th)
	once, err := Rewrite([]byte(page), s, th)
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	twice, err := Rewrite(once, s, th)
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if htmlClasses(t, string(once)).String() != htmlClasses(t, string(twice)).String() {
		t.Errorf("second rewrite changed classes:\n%s\n%s", once, twice)
	}
}

func fileServer(t *testing.T, files map[string]string) http.Handler {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return http.FileServer(http.Dir(dir))
}

func TestMiddleware_RewritesHTMLOnly(t *testing.T) {
	th := stance.DefaultThresholds()
	stanceFor := func(*http.Request) (types.State, bool) { return slowState(th), true }
	h := Middleware(stanceFor, th)(fileServer(t, map[string]string{
		"page.html": page,
		"app.css":   "html.has-delivery-mode-lite img { display: none }",
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/page.html", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if !htmlClasses(t, rr.Body.String()).Contains("has-delivery-mode-lite") {
		t.Errorf("page not rewritten: %s", rr.Body.String())
	}
	if got, _ := strconv.Atoi(rr.Header().Get("Content-Length")); got != rr.Body.Len() {
		t.Errorf("Content-Length: got %d, body %d", got, rr.Body.Len())
	}
	if rr.Header().Get("Last-Modified") != "" {
		t.Error("Last-Modified kept on a rewritten page")
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/app.css", nil))
	if rr.Body.String() != "html.has-delivery-mode-lite img { display: none }" {
		t.Errorf("css changed: %q", rr.Body.String())
	}
}

func TestMiddleware_IgnoresConditionalRequests(t *testing.T) {
	th := stance.DefaultThresholds()
	stanceFor := func(*http.Request) (types.State, bool) { return slowState(th), true }
	h := Middleware(stanceFor, th)(fileServer(t, map[string]string{"page.html": page}))

	req := httptest.NewRequest(http.MethodGet, "/page.html", nil)
	req.Header.Set("If-Modified-Since", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rr.Code)
	}
}

func TestMiddleware_PassThrough(t *testing.T) {
	th := stance.DefaultThresholds()

	t.Run("no stance", func(t *testing.T) {
		h := Middleware(func(*http.Request) (types.State, bool) { return types.State{}, false }, th)(
			fileServer(t, map[string]string{"page.html": page}))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/page.html", nil))
		if rr.Body.String() != page {
			t.Errorf("body changed without a stance")
		}
	})

	t.Run("fragment without html tag", func(t *testing.T) {
		const fragment = "<p>partial</p>"
		h := Middleware(func(*http.Request) (types.State, bool) { return slowState(th), true }, th)(
			fileServer(t, map[string]string{"frag.html": fragment}))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/frag.html", nil))
		if rr.Body.String() != fragment {
			t.Errorf("fragment changed: %q", rr.Body.String())
		}
	})

	t.Run("not found", func(t *testing.T) {
		h := Middleware(func(*http.Request) (types.State, bool) { return slowState(th), true }, th)(
			fileServer(t, map[string]string{}))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/missing.html", nil))
		if rr.Code != http.StatusNotFound {
			t.Errorf("status: got %d, want 404", rr.Code)
		}
	})
}
