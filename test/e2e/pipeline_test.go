//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/ogulcanaydogan/llm-error-analysis/internal/pipeline"
	"github.com/ogulcanaydogan/llm-error-analysis/internal/report"
	"github.com/ogulcanaydogan/llm-error-analysis/internal/server"
	"github.com/ogulcanaydogan/llm-error-analysis/internal/store"
	"github.com/ogulcanaydogan/llm-error-analysis/pkg/types"
)

func TestEndToEndAnalyzeStoreServe(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tmp := t.TempDir()
	in := writeInput(t, tmp, "snli_test.tsv", nliPredictions(120))

	history, err := store.OpenHistory(filepath.Join(tmp, "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer history.Close()

	svc := &pipeline.Service{History: history}
	resp, err := svc.Analyze(context.Background(), pipeline.Request{
		Task:      types.TaskNLI,
		InputPath: in,
		Dataset:   "snli",
		Model:     "bert",
		CI:        true,
		Cases:     true,
		ECE:       true,
		Seed:      11,
		Validate:  true,
		Strict:    true,
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	r := resp.Report
	if r.Data.Examples != 120 || r.Model.Results.Overall.Performance != "0.75" {
		t.Fatalf("unexpected overall: examples=%d perf=%s", r.Data.Examples, r.Model.Results.Overall.Performance)
	}
	for _, name := range []string{"sentALen", "sentBLen", "A-B", "A+B", "A/B", "tag"} {
		buckets, ok := r.Model.Results.FineGrained.Get(name)
		if !ok || len(buckets) == 0 {
			t.Fatalf("aspect %s missing from report", name)
		}
	}
	if r.Model.Results.Calibration == nil || len(r.Model.Results.Calibration.Details) != 10 {
		t.Fatalf("expected 10 calibration bins: %+v", r.Model.Results.Calibration)
	}

	out := filepath.Join(tmp, "report.md")
	if err := report.WriteMarkdown(out, r); err != nil {
		t.Fatal(err)
	}

	api := server.New(server.DefaultConfig(), svc, history, nil)
	w := httptest.NewRecorder()
	api.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/analyses/"+r.RunID, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("fetch stored run: %d %s", w.Code, w.Body.String())
	}
	var fetched types.Report
	if err := json.Unmarshal(w.Body.Bytes(), &fetched); err != nil {
		t.Fatal(err)
	}
	if fetched.RunID != r.RunID || len(fetched.Model.Results.FineGrained) != len(r.Model.Results.FineGrained) {
		t.Fatalf("stored report differs from produced report")
	}

	w = httptest.NewRecorder()
	api.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/analyses?task=nli&model=roberta&ci=true", strings.NewReader(nliPredictions(40))))
	if w.Code != http.StatusCreated {
		t.Fatalf("upload analysis: %d %s", w.Code, w.Body.String())
	}
	runs, err := history.List(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].Model != "roberta" {
		t.Fatalf("expected two runs with the upload newest: %+v", runs)
	}
}
