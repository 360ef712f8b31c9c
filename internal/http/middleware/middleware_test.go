package middleware_test

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"weride/internal/http/middleware"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/ok", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"request_id": middleware.GetRequestID(c)})
	})
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	r.POST("/ivr/digits", func(c *gin.Context) { c.String(http.StatusOK, c.PostForm("Digits")) })
	return r
}

func TestRequestIDAssignedAndEchoed(t *testing.T) {
	r := newTestRouter(middleware.RequestID())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if got := w.Header().Get(middleware.RequestIDHeader); len(got) != 32 {
		t.Fatalf("expected a generated id, got %q", got)
	}

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(middleware.RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get(middleware.RequestIDHeader); got != "abc-123" {
		t.Fatalf("caller id not reused: %q", got)
	}
	if !strings.Contains(w.Body.String(), "abc-123") {
		t.Fatalf("id not visible to handler: %s", w.Body.String())
	}
}

func TestRecoveryAnswers500(t *testing.T) {
	r := newTestRouter(middleware.RequestID(), middleware.Logging(quiet), middleware.Recovery(quiet), middleware.Metrics())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func sign(token, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	data := fullURL
	for _, k := range keys {
		data += k + form.Get(k)
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestTwilioSignature(t *testing.T) {
	const (
		token = "secret-token"
		base  = "https://weride.example"
		path  = "/ivr/digits?context=safety&ride_id=r1"
	)
	r := newTestRouter(middleware.TwilioSignature(token, base))
	form := url.Values{"Digits": {"1"}}

	tests := []struct {
		name string
		sig  string
		want int
	}{
		{"valid", sign(token, base+path, form), http.StatusOK},
		{"wrong token", sign("other", base+path, form), http.StatusForbidden},
		{"missing", "", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			if tt.sig != "" {
				req.Header.Set(middleware.TwilioSignatureHeader, tt.sig)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
			if tt.want == http.StatusOK && w.Body.String() != "1" {
				t.Fatalf("form not readable after check: %q", w.Body.String())
			}
		})
	}
}

func TestTwilioSignatureDisabledWithoutToken(t *testing.T) {
	r := newTestRouter(middleware.TwilioSignature("", ""))
	req := httptest.NewRequest(http.MethodPost, "/ivr/digits", strings.NewReader("Digits=2"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "2" {
		t.Fatalf("unexpected %d %q", w.Code, w.Body.String())
	}
}
