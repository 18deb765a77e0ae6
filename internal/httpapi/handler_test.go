package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ironsheep/image-release-tools/internal/annotation"
	"github.com/ironsheep/image-release-tools/internal/dataset"
	"github.com/ironsheep/image-release-tools/internal/release"
	"github.com/ironsheep/image-release-tools/internal/store"
	"github.com/ironsheep/image-release-tools/internal/telemetry"
	"github.com/ironsheep/image-release-tools/internal/transform"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) (*gin.Engine, *release.Orchestrator) {
	t.Helper()
	dir := t.TempDir()
	col := &dataset.Collection{Name: "tiles", Dir: dir}
	for i := 0; i < 2; i++ {
		name := fmt.Sprintf("t%d.png", i)
		img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
		for p := 0; p < len(img.Pix); p += 4 {
			img.Pix[p], img.Pix[p+3] = uint8(40*i), 255
		}
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		if err := png.Encode(f, img); err != nil {
			t.Fatal(err)
		}
		f.Close()
		col.Images = append(col.Images, dataset.ImageEntry{
			File:        name,
			Split:       "val",
			Annotations: []annotation.Annotation{annotation.NewBox("tile", 2, 2, 20, 20)},
		})
	}

	metrics := telemetry.New()
	orch, err := release.New(release.Deps{
		Catalog: transform.NewCatalog(),
		Source:  dataset.MemorySource{"tiles": col},
		Store:   store.NewMemoryStore(),
		Metrics: metrics,
	}, release.Options{WorkDir: t.TempDir(), OutputDir: t.TempDir(), Workers: 2})
	if err != nil {
		t.Fatal(err)
	}
	return SetupRouter(NewReleaseHandler(context.Background(), orch), metrics), orch
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("bad body %q: %v", w.Body.String(), err)
	}
}

func TestHealthz(t *testing.T) {
	r, _ := newTestRouter(t)
	w := do(r, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}

func TestListTransforms(t *testing.T) {
	r, _ := newTestRouter(t)
	w := do(r, http.MethodGet, "/api/transforms", "")
	var body struct {
		Kinds []transform.KindInfo `json:"kinds"`
	}
	decode(t, w, &body)
	if w.Code != http.StatusOK || len(body.Kinds) != 17 {
		t.Errorf("status %d, %d kinds", w.Code, len(body.Kinds))
	}
}

func TestPlan(t *testing.T) {
	r, _ := newTestRouter(t)
	w := do(r, http.MethodPost, "/api/plan", `{
		"transformations": [
			{"kind": "flip_horizontal", "enabled": true},
			{"kind": "blur", "enabled": true},
			{"kind": "noise", "enabled": true}
		],
		"policy": {"images_per_original": 4, "strategy": "uniform"}
	}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var sum release.PlanSummary
	decode(t, w, &sum)
	if sum.Count != 4 {
		t.Errorf("count = %d, want 4", sum.Count)
	}
}

func TestPlan_Errors(t *testing.T) {
	r, _ := newTestRouter(t)
	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed", `{`, http.StatusBadRequest},
		{"zero quota", `{"transformations":[{"kind":"blur","enabled":true}],"policy":{"images_per_original":0}}`, http.StatusBadRequest},
		{"unknown strategy", `{"transformations":[{"kind":"blur","enabled":true}],"policy":{"images_per_original":1,"strategy":"best"}}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(r, http.MethodPost, "/api/plan", tt.body); w.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestReleaseLifecycle(t *testing.T) {
	r, _ := newTestRouter(t)
	w := do(r, http.MethodPost, "/api/releases", `{
		"name": "Tiles",
		"collections": ["tiles"],
		"transformations": [{"kind": "grayscale", "enabled": true}],
		"policy": {"images_per_original": 1},
		"export_format": "coco"
	}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var started struct {
		ReleaseID string `json:"release_id"`
	}
	decode(t, w, &started)
	if loc := w.Header().Get("Location"); loc != "/api/releases/"+started.ReleaseID {
		t.Errorf("Location = %q", loc)
	}

	deadline := time.Now().Add(10 * time.Second)
	for {
		w = do(r, http.MethodGet, "/api/releases/"+started.ReleaseID+"/progress", "")
		var p release.Progress
		decode(t, w, &p)
		if p.Status.Terminal() {
			if p.Status != release.StatusCompleted {
				t.Fatalf("release ended %s: %s", p.Status, p.ErrorMessage)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("release did not finish: %+v", p)
		}
		time.Sleep(5 * time.Millisecond)
	}

	w = do(r, http.MethodGet, "/api/releases/"+started.ReleaseID, "")
	var rec store.ReleaseRecord
	decode(t, w, &rec)
	if w.Code != http.StatusOK || rec.ExportFormat != "coco" || rec.Stats.TotalImages != 2 || rec.Stats.PerSplit["val"] != 2 {
		t.Errorf("record = %+v", rec)
	}

	w = do(r, http.MethodGet, "/api/releases", "")
	var list struct {
		Releases []store.ReleaseRecord `json:"releases"`
	}
	decode(t, w, &list)
	if len(list.Releases) != 1 {
		t.Errorf("listed %d releases", len(list.Releases))
	}

	// metrics saw the release
	w = do(r, http.MethodGet, "/metrics", "")
	if !bytes.Contains(w.Body.Bytes(), []byte(`status="COMPLETED"`)) {
		t.Errorf("metrics missing completed release:\n%s", w.Body.String())
	}
}

func TestStartRelease_Errors(t *testing.T) {
	r, _ := newTestRouter(t)
	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed", `[]`, http.StatusBadRequest},
		{"no name", `{"collections":["tiles"],"transformations":[{"kind":"blur","enabled":true}],"policy":{"images_per_original":1}}`, http.StatusBadRequest},
		{"unknown collection", `{"name":"x","collections":["rocks"],"transformations":[{"kind":"blur","enabled":true}],"policy":{"images_per_original":1}}`, http.StatusUnprocessableEntity},
		{"empty split selection", `{"name":"x","collections":["tiles"],"splits":["test"],"transformations":[{"kind":"blur","enabled":true}],"policy":{"images_per_original":1}}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/api/releases", tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestGetRelease_NotFound(t *testing.T) {
	r, _ := newTestRouter(t)
	for _, path := range []string{"/api/releases/nope", "/api/releases/nope/progress"} {
		if w := do(r, http.MethodGet, path, ""); w.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d", path, w.Code)
		}
	}
}

func TestMetricsOptional(t *testing.T) {
	_, orch := newTestRouter(t)
	r := SetupRouter(NewReleaseHandler(context.Background(), orch), nil)
	if w := do(r, http.MethodGet, "/metrics", ""); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
