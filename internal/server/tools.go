package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// transformationsSchema describes an array of authored transformation instances.
func transformationsSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"description": "Transformation instances. Omit to use the pending instances stored under version_tag.",
		"items": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "string",
					"description": "Instance id. Generated when empty.",
				},
				"kind": map[string]interface{}{
					"type":        "string",
					"description": "Transformation kind, see transform_kinds",
				},
				"params": map[string]interface{}{
					"type":        "object",
					"description": "Kind parameters. Missing keys take the kind's defaults.",
				},
				"enabled": map[string]interface{}{
					"type": "boolean",
				},
				"order": map[string]interface{}{
					"type":        "integer",
					"description": "Application order; lower runs first",
				},
				"is_dual_value": map[string]interface{}{
					"type":        "boolean",
					"description": "Plan both the user value and its derived auto value",
				},
				"user_value": map[string]interface{}{
					"type":        "number",
					"description": "Primary scalar for dual-value planning",
				},
			},
			"required": []string{"kind", "enabled"},
		},
	}
}

func policySchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"images_per_original": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum configs per source image (>= 1)",
			},
			"strategy": map[string]interface{}{
				"type":    "string",
				"enum":    []string{"intelligent", "random", "uniform"},
				"default": "intelligent",
			},
			"fixed_count": map[string]interface{}{
				"type":        "integer",
				"description": "Leading configs always kept by the intelligent strategy",
			},
			"seed": map[string]interface{}{
				"type": "integer",
			},
			"vary_per_image": map[string]interface{}{
				"type":        "boolean",
				"description": "Sample a different config set for each image",
			},
		},
		"required": []string{"images_per_original"},
	}
}

func releaseIDSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"release_id": map[string]interface{}{
				"type":        "string",
				"description": "Release id returned by release_start",
			},
		},
		"required": []string{"release_id"},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name:        "transform_kinds",
			Description: "List the supported transformation kinds with their category, default parameters and whether they support dual-value planning.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "release_plan",
			Description: "Resolve transformations and return the augmentation configs a release would apply to each image, without touching any image.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"version_tag": map[string]interface{}{
						"type":        "string",
						"description": "Load pending stored transformations with this tag",
					},
					"transformations": transformationsSchema(),
					"policy":          policySchema(),
					"image_id": map[string]interface{}{
						"type":        "string",
						"description": "Image id for per-image plans (collection/image)",
					},
				},
				"required": []string{"policy"},
			},
		},
		{
			Name:        "release_start",
			Description: "Start a dataset release. Validation and data collection happen before this returns; processing and packaging continue in the background. Poll release_progress with the returned id.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"name": map[string]interface{}{
						"type":        "string",
						"description": "Release name, also used for the archive file name",
					},
					"version_tag": map[string]interface{}{
						"type": "string",
					},
					"collections": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"description": "Source collection ids",
					},
					"splits": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string", "enum": []string{"train", "val", "test"}},
						"description": "Splits to include. Default all.",
					},
					"transformations":  transformationsSchema(),
					"policy":           policySchema(),
					"include_original": map[string]interface{}{"type": "boolean"},
					"task_type": map[string]interface{}{
						"type":    "string",
						"enum":    []string{"detection", "segmentation"},
						"default": "detection",
					},
					"export_format": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"yolo", "yolo-seg", "coco"},
						"description": "Override the format chosen from task type and annotation shapes",
					},
					"image_format": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"keep", "jpg", "png", "webp", "bmp", "tiff"},
						"description": "Encoding of written images. Default keep.",
					},
				},
				"required": []string{"name", "collections", "policy"},
			},
		},
		{
			Name:        "release_progress",
			Description: "Get the status, current step and percentage of a release.",
			InputSchema: releaseIDSchema(),
		},
		{
			Name:        "release_get",
			Description: "Get the stored record of a finished release: statistics, archive path and error message.",
			InputSchema: releaseIDSchema(),
		},
		{
			Name:        "image_augment_preview",
			Description: "Apply transformations to one image and return the result as base64-encoded PNG together with the remapped annotations.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
					"transformations": transformationsSchema(),
					"annotations": map[string]interface{}{
						"type":        "array",
						"description": "Annotations in pixel coordinates (kind box with x_min/y_min/x_max/y_max, or kind polygon with points)",
						"items":       map[string]interface{}{"type": "object"},
					},
					"variant": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"user", "auto"},
						"description": "Which value of dual transformations to apply. Default user.",
					},
					"seed": map[string]interface{}{
						"type": "integer",
					},
					"draw_annotations": map[string]interface{}{
						"type":        "boolean",
						"description": "Outline the remapped annotations on the preview, numbered from 1",
					},
					"outline_color": map[string]interface{}{
						"type":        "string",
						"description": "Outline color as #RRGGBB or #RRGGBBAA. Default #FF0000.",
					},
					"max_side": map[string]interface{}{
						"type":        "integer",
						"description": "Downscale the preview so neither side exceeds this. Default 1024, 0 keeps full size.",
						"default":     1024,
					},
				},
				"required": []string{"path", "transformations"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
