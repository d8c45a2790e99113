package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the image file",
	}
}

func confidenceProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "number",
		"description": "Optional wall detector threshold in [0, 1]. 0 or omitted selects the server setting (0.3).",
		"minimum":     0,
		"maximum":     1,
	}
}

func pointProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"description": description,
		"items":       map[string]interface{}{"type": "integer"},
		"minItems":    2,
		"maxItems":    2,
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Basic Image Information
		{
			Name:        "image_load",
			Description: "Load an image file and return its upright dimensions, format and size. The image is cached for later wall tools.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_dimensions",
			Description: "Get the upright width and height of an image file.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},

		// Wall Analysis
		{
			Name: "wall_analyze",
			Description: "Detect, segment and measure every wall in a photograph. Returns per-wall corners, depth statistics, " +
				"area in square meters, length and width in meters, and a base64 PNG overlay. Metric values rely on an " +
				"estimated focal length and are approximate; compare walls within one photo rather than trusting absolute values.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":       pathProperty(),
					"confidence": confidenceProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "wall_segment",
			Description: "Detect and segment walls without depth estimation. Returns masks, pixel areas, boxes and a segmentation overlay.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":       pathProperty(),
					"confidence": confidenceProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name: "wall_scale",
			Description: "Report meters per pixel for an image at a given depth using the estimated focal length. " +
				"Optionally convert a pixel length, or the span between two points, into meters.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"depth_meters": map[string]interface{}{
						"type":        "number",
						"description": "Distance from the camera along the optical axis, in meters",
					},
					"pixels": map[string]interface{}{
						"type":        "number",
						"description": "Optional pixel length to convert",
					},
					"from": pointProperty("Optional span start [x, y]; requires to"),
					"to":   pointProperty("Optional span end [x, y]; requires from"),
				},
				"required": []string{"path", "depth_meters"},
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
