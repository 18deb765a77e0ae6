package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image/color"
	"image/png"
	"math"
	"testing"
	"time"

	"github.com/ironsheep/image-release-tools/internal/release"
)

// callTool issues tools/call and returns the response.
func callTool(t *testing.T, s *Server, name string, args interface{}) *MCPResponse {
	t.Helper()
	params := map[string]interface{}{
		"name":      name,
		"arguments": args,
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		t.Fatal(err)
	}
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: paramsJSON})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	return resp
}

// toolResult decodes the JSON text content of a successful tool call into v.
func toolResult(t *testing.T, resp *MCPResponse, v interface{}) {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %+v", resp.Error)
	}
	content := resp.Result.(map[string]interface{})["content"].([]map[string]interface{})
	if len(content) != 1 || content[0]["type"] != "text" {
		t.Fatalf("unexpected content: %v", content)
	}
	if err := json.Unmarshal([]byte(content[0]["text"].(string)), v); err != nil {
		t.Fatalf("failed to decode tool result: %v", err)
	}
}

func errorData(t *testing.T, resp *MCPResponse) map[string]interface{} {
	t.Helper()
	if resp.Error == nil {
		t.Fatal("expected an error response")
	}
	data, ok := resp.Error.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("error data: %#v", resp.Error.Data)
	}
	return data
}

func TestHandleToolsCall_TransformKinds(t *testing.T) {
	s := newTestServer(t)
	var res struct {
		Count int `json:"count"`
		Kinds []struct {
			Kind     string                 `json:"kind"`
			Dual     bool                   `json:"dual"`
			Defaults map[string]interface{} `json:"defaults"`
		} `json:"kinds"`
	}
	toolResult(t, callTool(t, s, "transform_kinds", map[string]interface{}{}), &res)

	if res.Count != 17 || len(res.Kinds) != 17 {
		t.Fatalf("got %d kinds", res.Count)
	}
	found := false
	for _, k := range res.Kinds {
		if k.Kind == "rotate" {
			found = true
			if !k.Dual {
				t.Error("rotate should be dual")
			}
		}
	}
	if !found {
		t.Error("rotate missing")
	}
}

func TestHandleToolsCall_ReleasePlan(t *testing.T) {
	s := newTestServer(t)
	args := map[string]interface{}{
		"transformations": []map[string]interface{}{
			{"kind": "rotate", "enabled": true, "is_dual_value": true, "user_value": 30},
			{"kind": "grayscale", "enabled": true},
		},
		"policy": map[string]interface{}{"images_per_original": 20},
	}
	var res release.PlanSummary
	toolResult(t, callTool(t, s, "release_plan", args), &res)

	// singles: rotate(user), rotate(auto), grayscale; pairs: 2
	if res.Count != 5 {
		t.Errorf("count = %d, want 5", res.Count)
	}
	if len(res.Transformations) != 2 || res.Transformations[0].AutoValue == nil || *res.Transformations[0].AutoValue != -30 {
		t.Errorf("transformations = %+v", res.Transformations)
	}
}

func TestHandleToolsCall_ReleasePlanRejected(t *testing.T) {
	s := newTestServer(t)
	args := map[string]interface{}{
		"transformations": []map[string]interface{}{{"kind": "warp", "enabled": true}},
		"policy":          map[string]interface{}{"images_per_original": 2},
	}
	resp := callTool(t, s, "release_plan", args)
	data := errorData(t, resp)
	if resp.Error.Code != -32602 || data["kind"] != "configuration" {
		t.Errorf("error = %+v", resp.Error)
	}
}

func TestHandleToolsCall_ReleaseLifecycle(t *testing.T) {
	s := newTestServer(t)
	args := map[string]interface{}{
		"name":        "Shapes",
		"collections": []string{"c1"},
		"transformations": []map[string]interface{}{
			{"kind": "flip_horizontal", "enabled": true},
		},
		"policy":           map[string]interface{}{"images_per_original": 1},
		"include_original": true,
	}
	var started struct {
		ReleaseID string `json:"release_id"`
		Status    string `json:"status"`
	}
	toolResult(t, callTool(t, s, "release_start", args), &started)
	if started.ReleaseID == "" {
		t.Fatal("no release id")
	}

	deadline := time.Now().Add(10 * time.Second)
	var p release.Progress
	for {
		toolResult(t, callTool(t, s, "release_progress", map[string]string{"release_id": started.ReleaseID}), &p)
		if p.Status.Terminal() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("release did not finish: %+v", p)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if p.Status != release.StatusCompleted || p.Percentage != 100 {
		t.Fatalf("progress = %+v", p)
	}

	var rec struct {
		Status      string `json:"status"`
		ArchivePath string `json:"archive_path"`
		Stats       struct {
			TotalImages int `json:"total_images"`
		} `json:"stats"`
	}
	toolResult(t, callTool(t, s, "release_get", map[string]string{"release_id": started.ReleaseID}), &rec)
	if rec.Status != "COMPLETED" || rec.ArchivePath == "" || rec.Stats.TotalImages != 6 {
		t.Errorf("record = %+v", rec)
	}
}

func TestHandleToolsCall_ReleaseStartDataError(t *testing.T) {
	s := newTestServer(t)
	args := map[string]interface{}{
		"name":            "Missing",
		"collections":     []string{"nope"},
		"transformations": []map[string]interface{}{{"kind": "blur", "enabled": true}},
		"policy":          map[string]interface{}{"images_per_original": 1},
	}
	resp := callTool(t, s, "release_start", args)
	if data := errorData(t, resp); data["kind"] != "data" || resp.Error.Code != -32000 {
		t.Errorf("error = %+v", resp.Error)
	}
}

func TestHandleToolsCall_ReleaseIDRequired(t *testing.T) {
	s := newTestServer(t)
	for _, tool := range []string{"release_progress", "release_get"} {
		resp := callTool(t, s, tool, map[string]string{})
		if resp.Error == nil || resp.Error.Code != -32602 {
			t.Errorf("%s: expected -32602, got %+v", tool, resp.Error)
		}
	}
	resp := callTool(t, s, "release_get", map[string]string{"release_id": "unknown"})
	if resp.Error == nil || resp.Error.Code != -32000 {
		t.Errorf("unknown release: %+v", resp.Error)
	}
}

func TestHandleToolsCall_ImageAugmentPreview(t *testing.T) {
	s := newTestServer(t)
	path := createTestImageFile(t, t.TempDir(), "p.png", 100, 50, color.RGBA{255, 0, 0, 255})

	args := map[string]interface{}{
		"path": path,
		"transformations": []map[string]interface{}{
			{"kind": "flip_horizontal", "enabled": true},
		},
		"annotations": []map[string]interface{}{
			{"kind": "box", "class": "square", "box": map[string]float64{"x_min": 10, "y_min": 10, "x_max": 50, "y_max": 30}},
		},
		"max_side": 0,
	}
	var res struct {
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		ImageBase64  string `json:"image_base64"`
		OutputWidth  int    `json:"output_width"`
		OutputHeight int    `json:"output_height"`
		Annotations  []struct {
			Box struct {
				XMin float64 `json:"x_min"`
				XMax float64 `json:"x_max"`
			} `json:"box"`
		} `json:"annotations"`
	}
	toolResult(t, callTool(t, s, "image_augment_preview", args), &res)

	if res.Width != 100 || res.Height != 50 || res.OutputWidth != 100 || res.OutputHeight != 50 {
		t.Errorf("size = %dx%d output %dx%d", res.Width, res.Height, res.OutputWidth, res.OutputHeight)
	}
	if _, err := base64.StdEncoding.DecodeString(res.ImageBase64); err != nil || res.ImageBase64 == "" {
		t.Errorf("bad image payload: %v", err)
	}
	if len(res.Annotations) != 1 {
		t.Fatalf("annotations = %+v", res.Annotations)
	}
	if b := res.Annotations[0].Box; math.Abs(b.XMin-50) > 1e-9 || math.Abs(b.XMax-90) > 1e-9 {
		t.Errorf("flipped box = %+v, want x 50..90", b)
	}
}

func TestHandleToolsCall_ImageAugmentPreviewErrors(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		name string
		args map[string]interface{}
		code int
	}{
		{"no path", map[string]interface{}{"transformations": []interface{}{}}, -32602},
		{"missing file", map[string]interface{}{"path": "/nonexistent/x.png"}, -32000},
		{"bad variant", map[string]interface{}{"path": "/nonexistent/x.png", "variant": "both"}, -32602},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := callTool(t, s, "image_augment_preview", tt.args)
			if resp.Error == nil || resp.Error.Code != tt.code {
				t.Errorf("expected code %d, got %+v", tt.code, resp.Error)
			}
		})
	}
}

func TestHandleToolsCall_UnknownTool(t *testing.T) {
	s := newTestServer(t)
	resp := callTool(t, s, "image_ocr_full", map[string]string{})
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Errorf("expected -32602, got %+v", resp.Error)
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := newTestServer(t)
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: json.RawMessage(`"x"`)})
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Errorf("expected -32602, got %+v", resp.Error)
	}
}

func TestHandleToolsCall_ImageAugmentPreviewOutlines(t *testing.T) {
	s := newTestServer(t)
	path := createTestImageFile(t, t.TempDir(), "o.png", 40, 40, color.RGBA{0, 0, 0, 255})

	args := map[string]interface{}{
		"path":            path,
		"transformations": []map[string]interface{}{},
		"annotations": []map[string]interface{}{
			{"kind": "box", "class": "a", "box": map[string]float64{"x_min": 5, "y_min": 5, "x_max": 30, "y_max": 30}},
		},
		"draw_annotations": true,
		"outline_color":    "#00FF00",
	}
	var res struct {
		ImageBase64 string `json:"image_base64"`
	}
	toolResult(t, callTool(t, s, "image_augment_preview", args), &res)

	raw, err := base64.StdEncoding.DecodeString(res.ImageBase64)
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	if r, g, b, _ := img.At(20, 30).RGBA(); r != 0 || g>>8 != 255 || b != 0 {
		t.Errorf("outline pixel = (%d,%d,%d), want green", r>>8, g>>8, b>>8)
	}
	if _, g, _, _ := img.At(20, 20).RGBA(); g != 0 {
		t.Error("interior pixel was painted")
	}
}
