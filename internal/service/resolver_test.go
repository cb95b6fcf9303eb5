package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"dnswatch/internal/model"
)

func dohServer(t *testing.T, status int, body string, gotReq **http.Request) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotReq != nil {
			*gotReq = r.Clone(context.Background())
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDoHResolver_Query(t *testing.T) {
	t.Parallel()
	var req *http.Request
	srv := dohServer(t, http.StatusOK, `{
		"Status": 0,
		"Answer": [
			{"name": "example.com.", "type": 1, "TTL": 300, "data": "93.184.216.34"},
			{"name": "example.com.", "type": 46, "TTL": 300, "data": "rrsig-noise"},
			{"name": "example.com.", "type": 1, "TTL": 300, "data": "93.184.216.35"}
		]
	}`, &req)

	r := NewDoHResolver("test", srv.URL)
	values, err := r.Query(context.Background(), "example.com", model.RecordTypeA)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if !model.EqualValueSets(values, []string{"93.184.216.34", "93.184.216.35"}) {
		t.Errorf("Only type-1 answers should survive, got %v", values)
	}

	q := req.URL.Query()
	if q.Get("name") != "example.com" || q.Get("type") != "A" {
		t.Errorf("Missing query parameters: %v", q)
	}
	if q.Get("_t") == "" {
		t.Error("Every query must carry a cache-busting token")
	}
	if req.Header.Get("Accept") != "application/dns-json" {
		t.Errorf("Wrong Accept header: %s", req.Header.Get("Accept"))
	}
	if req.Header.Get("Cache-Control") != "no-cache" {
		t.Error("Cache-Control: no-cache header is required")
	}
}

func TestDoHResolver_TokensAreUnique(t *testing.T) {
	t.Parallel()
	seen := make(map[string]bool)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen[r.URL.Query().Get("_t")] = true
		_, _ = w.Write([]byte(`{"Status": 0, "Answer": []}`))
	}))
	t.Cleanup(srv.Close)

	r := NewDoHResolver("test", srv.URL)
	for i := 0; i < 5; i++ {
		_, _ = r.Query(context.Background(), "example.com", model.RecordTypeA)
	}
	if len(seen) < 5 {
		t.Errorf("Expected 5 distinct tokens, got %d", len(seen))
	}
}

func TestDoHResolver_TrimsTrailingDots(t *testing.T) {
	t.Parallel()
	srv := dohServer(t, http.StatusOK, `{
		"Status": 0,
		"Answer": [{"name": "www.example.com.", "type": 5, "TTL": 300, "data": "example.com."}]
	}`, nil)

	r := NewDoHResolver("test", srv.URL)
	values, err := r.Query(context.Background(), "www.example.com", model.RecordTypeCNAME)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(values) != 1 || values[0] != "example.com" {
		t.Errorf("CNAME targets should lose the trailing dot, got %v", values)
	}
}

func TestDoHResolver_Failures(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"transport non-200", http.StatusBadGateway, ""},
		{"protocol status", http.StatusOK, `{"Status": 2, "Answer": []}`},
		{"parse failure", http.StatusOK, `{not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := dohServer(t, tt.status, tt.body, nil)
			r := NewDoHResolver("test", srv.URL)
			if _, err := r.Query(context.Background(), "example.com", model.RecordTypeA); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestDoHResolver_UnsupportedType(t *testing.T) {
	t.Parallel()
	r := NewDoHResolver("test", "http://127.0.0.1:1")
	if _, err := r.Query(context.Background(), "example.com", model.RecordType("MX")); err == nil {
		t.Error("Expected an error for an unsupported record type")
	}
}

func TestUDPResolver_Name(t *testing.T) {
	t.Parallel()
	r := NewUDPResolver("internal", "10.0.0.53:53")
	if r.Name() != "internal" {
		t.Errorf("Unexpected name: %s", r.Name())
	}
	if _, err := r.Query(context.Background(), "example.com", model.RecordType("TXT")); err == nil {
		t.Error("Expected an error for an unsupported record type")
	}
}
