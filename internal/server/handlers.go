package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"

	"github.com/ironsheep/image-release-tools/internal/annotation"
	"github.com/ironsheep/image-release-tools/internal/apperr"
	pix "github.com/ironsheep/image-release-tools/internal/imaging"
	"github.com/ironsheep/image-release-tools/internal/planner"
	"github.com/ironsheep/image-release-tools/internal/release"
	"github.com/ironsheep/image-release-tools/internal/transform"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "release_start").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000,
// or -32602 when the arguments are rejected. The error data carries the
// error kind.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		s.log.Warn("tool failed", "tool", params.Name, "error", err)
		code := -32000
		if errors.Is(err, apperr.ErrConfiguration) || errors.Is(err, errBadArguments) {
			code = -32602
		}
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    code,
				Message: "Tool execution failed",
				Data: map[string]interface{}{
					"kind":  errorKind(err),
					"error": err.Error(),
				},
			},
		}
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

var errBadArguments = errors.New("invalid arguments")

func errorKind(err error) string {
	if k := apperr.KindOf(err); k != "" {
		return string(k)
	}
	if errors.Is(err, errBadArguments) {
		return "arguments"
	}
	return "internal"
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "transform_kinds":
		return s.handleTransformKinds()

	case "release_plan":
		return s.handleReleasePlan(args)
	case "release_start":
		return s.handleReleaseStart(args)
	case "release_progress":
		return s.handleReleaseProgress(args)
	case "release_get":
		return s.handleReleaseGet(args)

	case "image_augment_preview":
		return s.handleImageAugmentPreview(args)

	default:
		return nil, fmt.Errorf("%w: unknown tool: %s", errBadArguments, name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: %v", errBadArguments, err)
	}
	return nil
}

// === Catalog ===

func (s *Server) handleTransformKinds() (interface{}, error) {
	kinds := s.orch.Catalog().Describe()
	return map[string]interface{}{
		"count": len(kinds),
		"kinds": kinds,
	}, nil
}

// === Release Handlers ===

func (s *Server) handleReleasePlan(args json.RawMessage) (interface{}, error) {
	var a release.PlanRequest
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return s.orch.PlanRelease(s.ctx, a)
}

type releaseStartResult struct {
	ReleaseID string         `json:"release_id"`
	Status    release.Status `json:"status"`
	Step      string         `json:"current_step"`
}

func (s *Server) handleReleaseStart(args json.RawMessage) (interface{}, error) {
	var a release.Request
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	job, err := s.orch.Start(s.ctx, a)
	if err != nil {
		return nil, err
	}
	s.announce(job)
	res := releaseStartResult{ReleaseID: job.ID(), Status: release.StatusPending}
	if p, ok := s.orch.Tracker().Get(job.ID()); ok {
		res.Status, res.Step = p.Status, p.CurrentStep
	}
	return res, nil
}

type releaseIDArgs struct {
	ReleaseID string `json:"release_id"`
}

func (a releaseIDArgs) validate() error {
	if a.ReleaseID == "" {
		return fmt.Errorf("%w: release_id is required", errBadArguments)
	}
	return nil
}

func (s *Server) handleReleaseProgress(args json.RawMessage) (interface{}, error) {
	var a releaseIDArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	return s.orch.Progress(s.ctx, a.ReleaseID)
}

func (s *Server) handleReleaseGet(args json.RawMessage) (interface{}, error) {
	var a releaseIDArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	return s.orch.Release(s.ctx, a.ReleaseID)
}

// === Preview ===

type imageAugmentPreviewArgs struct {
	Path            string                  `json:"path"`
	Transformations []transform.Instance    `json:"transformations"`
	Annotations     []annotation.Annotation `json:"annotations"`
	Variant         planner.Variant         `json:"variant"`
	Seed            int64                   `json:"seed"`
	MaxSide         *int                    `json:"max_side"`
	DrawAnnotations bool                    `json:"draw_annotations"`
	OutlineColor    string                  `json:"outline_color"`
}

type imageAugmentPreviewResult struct {
	*pix.PreviewResult
	OutputWidth  int                      `json:"output_width"`
	OutputHeight int                      `json:"output_height"`
	Steps        []map[string]interface{} `json:"steps"`
	Skipped      []transform.Kind         `json:"skipped,omitempty"`
	Annotations  []annotation.Annotation  `json:"annotations"`
	Dropped      int                      `json:"dropped_annotations"`
}

func (s *Server) handleImageAugmentPreview(args json.RawMessage) (interface{}, error) {
	var a imageAugmentPreviewArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, fmt.Errorf("%w: path is required", errBadArguments)
	}
	maxSide := 1024
	if a.MaxSide != nil {
		maxSide = *a.MaxSide
	}
	for i, ann := range a.Annotations {
		if err := ann.Validate(); err != nil {
			return nil, fmt.Errorf("%w: annotation %d: %v", errBadArguments, i, err)
		}
	}

	cfg, err := previewConfig(s.orch.Catalog(), a.Transformations, a.Variant)
	if err != nil {
		return nil, err
	}
	res, err := s.engine.ApplyFile(a.Path, a.Path, cfg, a.Annotations, a.Seed)
	if err != nil {
		return nil, err
	}
	out := res.Image
	if a.DrawAnnotations {
		c, err := pix.ParseHexColor(a.OutlineColor)
		if err != nil {
			c = color.RGBA{255, 0, 0, 255}
		}
		out = pix.DrawOutlines(out, outlines(res.Annotations), c)
	}
	prev, err := pix.Preview(out, maxSide)
	if err != nil {
		return nil, err
	}
	return imageAugmentPreviewResult{
		PreviewResult: prev,
		OutputWidth:   res.Width,
		OutputHeight:  res.Height,
		Steps:         cfg.Describe(),
		Skipped:       res.Skipped,
		Annotations:   res.Annotations,
		Dropped:       res.Dropped,
	}, nil
}

// outlines numbers the annotations from 1 in the order given.
func outlines(anns []annotation.Annotation) []pix.Outline {
	out := make([]pix.Outline, 0, len(anns))
	for i, a := range anns {
		pts := a.Points
		if a.Kind == annotation.KindBox {
			pts = a.Box.Corners()
		}
		o := pix.Outline{Label: strconv.Itoa(i + 1)}
		for _, p := range pts {
			o.Points = append(o.Points, image.Pt(int(math.Round(p.X)), int(math.Round(p.Y))))
		}
		out = append(out, o)
	}
	return out
}

// previewConfig chains every enabled transformation into one config. Dual
// transformations contribute the requested variant.
func previewConfig(c *transform.Catalog, instances []transform.Instance, variant planner.Variant) (planner.Config, error) {
	switch variant {
	case planner.VariantSingle, planner.VariantUser, planner.VariantAuto:
	default:
		return planner.Config{}, apperr.Configuration("server.preview", "unknown variant %q", variant)
	}
	resolved, err := transform.Resolve(c, instances)
	if err != nil {
		return planner.Config{}, err
	}
	cfg := planner.Config{ID: "preview"}
	for _, r := range resolved {
		step := planner.Step{Kind: r.Instance.Kind, Params: r.Params}
		if r.Dual() {
			step.Params, step.Variant = r.User, planner.VariantUser
			if variant == planner.VariantAuto {
				step.Params, step.Variant = r.Auto, planner.VariantAuto
			}
		}
		cfg.Steps = append(cfg.Steps, step)
	}
	return cfg, nil
}
