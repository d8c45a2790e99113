package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"

	"github.com/ironsheep/wall-measure/internal/imaging"
	"github.com/ironsheep/wall-measure/internal/measure"
	"github.com/ironsheep/wall-measure/internal/pipeline"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "wall_analyze").
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
// Tool execution errors, including results that cannot be encoded, return a
// JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.logger.Warn("tool failed", "tool", params.Name, "error", err)
		return s.errorResponse(req.ID, codeToolFailed, "Tool execution failed", err.Error())
	}

	text, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		s.logger.Error("tool result not serializable", "tool", params.Name, "error", err)
		return s.errorResponse(req.ID, codeToolFailed, "Tool execution failed",
			fmt.Sprintf("encode result: %v", err))
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": string(text),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "image_load":
		return s.handleImageLoad(args)
	case "image_dimensions":
		return s.handleImageDimensions(args)
	case "wall_analyze":
		return s.handleWallAnalyze(ctx, args)
	case "wall_segment":
		return s.handleWallSegment(ctx, args)
	case "wall_scale":
		return s.handleWallScale(args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		return errors.New("missing arguments")
	}
	return json.Unmarshal(args, v)
}

// === Image Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, a.Path)
}

// === Wall Handlers ===

type wallAnalyzeArgs struct {
	Path       string  `json:"path"`
	Confidence float64 `json:"confidence"`
}

func (a wallAnalyzeArgs) options() (pipeline.Options, error) {
	if a.Confidence < 0 || a.Confidence > 1 {
		return pipeline.Options{}, fmt.Errorf("confidence must be in [0, 1] (0 selects the default), got %v", a.Confidence)
	}
	return pipeline.Options{Confidence: a.Confidence}, nil
}

func (s *Server) loadForAnalysis(args json.RawMessage) (image.Image, pipeline.Options, error) {
	if s.analyzer == nil {
		return nil, pipeline.Options{}, errors.New("wall analysis is not configured")
	}
	var a wallAnalyzeArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, pipeline.Options{}, err
	}
	opts, err := a.options()
	if err != nil {
		return nil, opts, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, opts, err
	}
	return img, opts, nil
}

func (s *Server) handleWallAnalyze(ctx context.Context, args json.RawMessage) (interface{}, error) {
	img, opts, err := s.loadForAnalysis(args)
	if err != nil {
		return nil, err
	}
	return s.analyzer.Analyze(ctx, img, opts)
}

func (s *Server) handleWallSegment(ctx context.Context, args json.RawMessage) (interface{}, error) {
	img, opts, err := s.loadForAnalysis(args)
	if err != nil {
		return nil, err
	}
	return s.analyzer.Segment(ctx, img, opts)
}

type wallScaleArgs struct {
	Path        string  `json:"path"`
	DepthMeters float64 `json:"depth_meters"`
	Pixels      float64 `json:"pixels"`
	From        *[2]int `json:"from"`
	To          *[2]int `json:"to"`
}

// wallScaleResult reports the scale and, when a span was given, its length.
type wallScaleResult struct {
	*measure.ScaleReport
	Span *imaging.Span `json:"span,omitempty"`
}

func (s *Server) handleWallScale(args json.RawMessage) (interface{}, error) {
	var a wallScaleArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if (a.From == nil) != (a.To == nil) {
		return nil, errors.New("from and to must be given together")
	}

	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()

	var span *imaging.Span
	pixels := a.Pixels
	if a.From != nil {
		span, err = imaging.MeasureSpan(b,
			image.Pt(b.Min.X+a.From[0], b.Min.Y+a.From[1]),
			image.Pt(b.Min.X+a.To[0], b.Min.Y+a.To[1]))
		if err != nil {
			return nil, err
		}
		pixels = span.Pixels
	}

	report, err := measure.ReportScale(b.Dx(), b.Dy(), a.DepthMeters, pixels)
	if err != nil {
		return nil, err
	}
	return wallScaleResult{ScaleReport: report, Span: span}, nil
}
