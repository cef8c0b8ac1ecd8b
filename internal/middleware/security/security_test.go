package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	resolver, err := NewClientIPResolver("203.0.113.0/24")
	if err != nil {
		t.Fatalf("NewClientIPResolver: %v", err)
	}

	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{name: "direct peer", remote: "198.51.100.7:5000", want: "198.51.100.7"},
		{name: "untrusted peer ignores forwarding", remote: "198.51.100.7:5000", headers: map[string]string{"X-Forwarded-For": "1.1.1.1"}, want: "198.51.100.7"},
		{name: "trusted proxy xff", remote: "10.0.0.2:80", headers: map[string]string{"X-Forwarded-For": "1.1.1.1, 10.0.0.9"}, want: "1.1.1.1"},
		{name: "extra trusted cidr", remote: "203.0.113.5:80", headers: map[string]string{"X-Forwarded-For": "2.2.2.2"}, want: "2.2.2.2"},
		{name: "trusted proxy real ip", remote: "127.0.0.1:80", headers: map[string]string{"X-Real-IP": "3.3.3.3"}, want: "3.3.3.3"},
		{name: "invalid forwarded value", remote: "127.0.0.1:80", headers: map[string]string{"X-Forwarded-For": "nonsense"}, want: "127.0.0.1"},
		{name: "no port", remote: "198.51.100.7", want: "198.51.100.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := resolver.ClientIP(r); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewClientIPResolver_InvalidCIDR(t *testing.T) {
	if _, err := NewClientIPResolver("not-a-cidr"); err == nil {
		t.Fatal("expected an error")
	}
}

func TestHeaders(t *testing.T) {
	h := Headers(DefaultHeadersConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("X-Frame-Options") != "DENY" || rec.Header().Get("Content-Security-Policy") == "" {
		t.Errorf("security headers missing: %v", rec.Header())
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must not be sent over plain HTTP")
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Errorf("HSTS = %q", got)
	}
}

func TestHeaders_SkipsEmptyValues(t *testing.T) {
	h := Headers(HeadersConfig{XFrameOptions: "SAMEORIGIN"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if _, ok := rec.Header()["Content-Security-Policy"]; ok {
		t.Error("empty CSP should not be sent")
	}
	if rec.Header().Get("X-Frame-Options") != "SAMEORIGIN" {
		t.Error("configured header missing")
	}
}
