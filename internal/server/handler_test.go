package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ogulcanaydogan/llm-error-analysis/internal/pipeline"
	"github.com/ogulcanaydogan/llm-error-analysis/internal/store"
	"github.com/ogulcanaydogan/llm-error-analysis/pkg/types"
)

const nliBody = "a b\tx y z\tpos\tpos\na b c\tx\tpos\tneg\n"

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, withHistory bool) (*gin.Engine, *store.History) {
	t.Helper()
	var history *store.History
	if withHistory {
		h, err := store.OpenHistory(filepath.Join(t.TempDir(), "history.db"))
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { h.Close() })
		history = h
	}
	n := 0
	svc := &pipeline.Service{History: history, NewRunID: func() string {
		n++
		return "run-" + strconv.Itoa(n)
	}}
	return New(DefaultConfig(), svc, history, nil), history
}

func do(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	r, _ := newTestServer(t, false)
	w := do(r, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", w.Code, w.Body.String())
	}
}

func TestCreateListGetAnalysis(t *testing.T) {
	r, _ := newTestServer(t, true)

	w := do(r, http.MethodPost, "/v1/analyses?task=nli&model=bert&name=snli.tsv&case=true", nliBody)
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Cache") != "miss" {
		t.Fatalf("expected cache miss, got %q", w.Header().Get("X-Cache"))
	}
	var created types.Report
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.RunID != "run-1" || created.Data.Output != "bert/snli.tsv" || created.Model.Results.Overall.Performance != "0.5" {
		t.Fatalf("unexpected report: %+v", created)
	}

	again := do(r, http.MethodPost, "/v1/analyses?task=nli&model=bert&name=snli.tsv&case=true", nliBody)
	if again.Code != http.StatusOK || again.Header().Get("X-Cache") != "hit" {
		t.Fatalf("repeat submission should be served from cache: %d %q", again.Code, again.Header().Get("X-Cache"))
	}

	list := do(r, http.MethodGet, "/v1/analyses", "")
	if list.Code != http.StatusOK {
		t.Fatalf("list = %d: %s", list.Code, list.Body.String())
	}
	var listed struct {
		Runs []store.Run `json:"runs"`
	}
	if err := json.Unmarshal(list.Body.Bytes(), &listed); err != nil {
		t.Fatal(err)
	}
	if len(listed.Runs) != 1 || listed.Runs[0].ID != "run-1" || listed.Runs[0].Model != "bert" {
		t.Fatalf("unexpected runs: %+v", listed.Runs)
	}

	got := do(r, http.MethodGet, "/v1/analyses/run-1", "")
	if got.Code != http.StatusOK || !strings.Contains(got.Body.String(), `"fine_grained"`) {
		t.Fatalf("get = %d: %s", got.Code, got.Body.String())
	}
	if missing := do(r, http.MethodGet, "/v1/analyses/nope", ""); missing.Code != http.StatusNotFound {
		t.Fatalf("missing run = %d", missing.Code)
	}
}

func TestCreateAnalysisBadRequests(t *testing.T) {
	r, _ := newTestServer(t, false)
	cases := map[string]string{
		"no task":      "/v1/analyses",
		"bad task":     "/v1/analyses?task=ner",
		"bad flag":     "/v1/analyses?task=nli&ci=maybe",
		"bad bins":     "/v1/analyses?task=nli&bins=-1",
		"bad seed":     "/v1/analyses?task=nli&seed=x",
		"no probs ece": "/v1/analyses?task=nli&ece=true",
	}
	for name, target := range cases {
		t.Run(name, func(t *testing.T) {
			w := do(r, http.MethodPost, target, nliBody)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestCreateAnalysisBodyLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBodyBytes = 8
	r := New(cfg, &pipeline.Service{}, nil, nil)
	w := do(r, http.MethodPost, "/v1/analyses?task=nli", nliBody)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestCreateAnalysisOutlivesCallerCancellation(t *testing.T) {
	r, _ := newTestServer(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/v1/analyses?task=nli", strings.NewReader(nliBody)).WithContext(ctx)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("shared analysis should not inherit the caller's cancellation: %d %s", w.Code, w.Body.String())
	}
}

func TestHistoryEndpointsWithoutStore(t *testing.T) {
	r, _ := newTestServer(t, false)
	for _, target := range []string{"/v1/analyses", "/v1/analyses/run-1"} {
		if w := do(r, http.MethodGet, target, ""); w.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s = %d", target, w.Code)
		}
	}
}

func TestRequestFromQuery(t *testing.T) {
	q, _ := url.ParseQuery("task=tc&dataset=sst2&model=bert&ci=1&case=true&ece=true&bins=5&repeats=20&seed=9&strict=true")
	req, err := requestFromQuery(q)
	if err != nil {
		t.Fatal(err)
	}
	if req.Task != types.TaskClassification || !req.CI || !req.Cases || !req.ECE || !req.Strict {
		t.Fatalf("flags not parsed: %+v", req)
	}
	if req.Bins != 5 || req.Repeats != 20 || req.Seed != 9 || req.InputPath != "predictions.tsv" {
		t.Fatalf("numbers not parsed: %+v", req)
	}
}

func TestReportCacheExpiry(t *testing.T) {
	cache := newReportCache(100 * time.Millisecond)
	now := time.Now()
	if _, ok := cache.get("k", now); ok {
		t.Fatal("unexpected hit before put")
	}
	cache.put("k", types.Report{RunID: "r"}, now)
	if r, ok := cache.get("k", now.Add(50*time.Millisecond)); !ok || r.RunID != "r" {
		t.Fatal("expected hit before expiry")
	}
	if _, ok := cache.get("k", now.Add(200*time.Millisecond)); ok {
		t.Fatal("expected miss after expiry")
	}
	if cache.len() != 0 {
		t.Fatalf("expired entry should be evicted on read, %d left", cache.len())
	}
	if newReportCache(0) != nil {
		t.Fatal("expected nil cache when ttl disabled")
	}
}

func TestReportCachePutSweepsExpired(t *testing.T) {
	cache := newReportCache(time.Minute)
	now := time.Now()
	cache.put("old", types.Report{RunID: "a"}, now)
	cache.put("stale", types.Report{RunID: "b"}, now.Add(10*time.Second))
	cache.put("new", types.Report{RunID: "c"}, now.Add(65*time.Second))
	if cache.len() != 2 {
		t.Fatalf("entries = %d, want the unexpired pair", cache.len())
	}
	if _, ok := cache.get("old", now.Add(65*time.Second)); ok {
		t.Fatal("swept entry still served")
	}
	if r, ok := cache.get("stale", now.Add(65*time.Second)); !ok || r.RunID != "b" {
		t.Fatal("unexpired entry dropped by sweep")
	}
}
