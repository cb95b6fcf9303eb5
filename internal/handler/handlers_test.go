package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dnswatch/internal/model"
	"dnswatch/internal/service"
	"dnswatch/internal/storage"
	"dnswatch/internal/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

func init() {
	utils.TestInitLogger()
}

type fixedResolver struct {
	values []string
}

func (fixedResolver) Name() string { return "fixed" }

func (r fixedResolver) Query(ctx context.Context, domain string, recordType model.RecordType) ([]string, error) {
	return r.values, nil
}

func setupHandler(t *testing.T) (*Handler, *storage.Storage) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(mr.Close)
	store := &storage.Storage{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}

	resolvers := []service.Resolver{fixedResolver{values: []string{"192.0.2.1"}}}
	monitor := service.NewMonitorService(store, resolvers, nil, nil)
	monitor.EnableIPAnalysis = false

	return NewHandler(store, monitor), store
}

func doRequest(t *testing.T, h echo.HandlerFunc, method, target, body string, pathParams map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	for k, v := range pathParams {
		c.SetParamNames(k)
		c.SetParamValues(v)
	}
	if err := h(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return rec
}

func TestHandler_AddListRemoveDomain(t *testing.T) {
	h, _ := setupHandler(t)

	rec := doRequest(t, h.AddDomain, http.MethodPost, "/domains", `{"domain":"example.com","record_type":"A"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("AddDomain status %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, h.ListDomains, http.MethodGet, "/domains", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ListDomains status %d", rec.Code)
	}
	var specs []model.DomainSpec
	if err := json.Unmarshal(rec.Body.Bytes(), &specs); err != nil {
		t.Fatal(err)
	}
	if len(specs) != 1 || specs[0].Domain != "example.com" {
		t.Errorf("Unexpected watch list: %+v", specs)
	}

	rec = doRequest(t, h.RemoveDomain, http.MethodDelete, "/domains/example.com?type=A", "", map[string]string{"domain": "example.com"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("RemoveDomain status %d", rec.Code)
	}

	rec = doRequest(t, h.ListDomains, http.MethodGet, "/domains", "", nil)
	var after []model.DomainSpec
	_ = json.Unmarshal(rec.Body.Bytes(), &after)
	if len(after) != 0 {
		t.Errorf("Watch list should be empty, got %+v", after)
	}
}

func TestHandler_AddDomainValidation(t *testing.T) {
	h, _ := setupHandler(t)

	rec := doRequest(t, h.AddDomain, http.MethodPost, "/domains", `{"domain":"not a domain"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Invalid domain accepted: %d", rec.Code)
	}

	rec = doRequest(t, h.AddDomain, http.MethodPost, "/domains", `{"domain":"example.com","record_type":"TXT"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Invalid record type accepted: %d", rec.Code)
	}

	// Default record type is A
	rec = doRequest(t, h.AddDomain, http.MethodPost, "/domains", `{"domain":"example.org"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("AddDomain status %d", rec.Code)
	}
	var spec model.DomainSpec
	_ = json.Unmarshal(rec.Body.Bytes(), &spec)
	if spec.RecordType != model.RecordTypeA {
		t.Errorf("Expected default record type A, got %s", spec.RecordType)
	}
}

func TestHandler_RunCheckSingleDomain(t *testing.T) {
	h, _ := setupHandler(t)

	rec := doRequest(t, h.RunCheck, http.MethodPost, "/check", `{"domain":"example.com","record_type":"A"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("RunCheck status %d: %s", rec.Code, rec.Body.String())
	}
	var res model.CheckResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if !res.IsFirstCheck {
		t.Errorf("Fresh domain should be a first check: %+v", res)
	}
	if !model.EqualValueSets(res.CurrentValues, []string{"192.0.2.1"}) {
		t.Errorf("Unexpected values: %v", res.CurrentValues)
	}
}

func TestHandler_ResultsAndHistory(t *testing.T) {
	h, store := setupHandler(t)
	ctx := context.Background()

	rec := doRequest(t, h.GetLastResult, http.MethodGet, "/results/example.com?type=A", "", map[string]string{"domain": "example.com"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 before any check, got %d", rec.Code)
	}

	err := store.AppendCheckResult(ctx, model.CheckResult{
		Domain:        "example.com",
		RecordType:    model.RecordTypeA,
		CurrentValues: []string{"192.0.2.1"},
	})
	if err != nil {
		t.Fatal(err)
	}

	rec = doRequest(t, h.GetLastResult, http.MethodGet, "/results/example.com?type=A", "", map[string]string{"domain": "example.com"})
	if rec.Code != http.StatusOK {
		t.Fatalf("GetLastResult status %d", rec.Code)
	}

	rec = doRequest(t, h.GetHistory, http.MethodGet, "/history/example.com?type=A", "", map[string]string{"domain": "example.com"})
	if rec.Code != http.StatusOK {
		t.Fatalf("GetHistory status %d", rec.Code)
	}
	var payload struct {
		Entries []model.CheckResult `json:"entries"`
		Diffs   []string            `json:"diffs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatal(err)
	}
	if len(payload.Entries) != 1 {
		t.Errorf("Expected 1 history entry, got %d", len(payload.Entries))
	}
}
