package server

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/wall-measure/internal/pipeline"
)

// createTestImageFile writes a solid PNG into the test's temp dir and
// returns its path.
func createTestImageFile(t *testing.T, width, height int, c color.Color) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	path := filepath.Join(t.TempDir(), "wall.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

type fakeAnalyzer struct {
	err    error
	result *pipeline.Result
	opts   pipeline.Options
	size   image.Point
	calls  int
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, img image.Image, opts pipeline.Options) (*pipeline.Result, error) {
	f.calls++
	f.opts, f.size = opts, img.Bounds().Size()
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &pipeline.Result{RunID: "run-1", Success: true, WallCount: 3}, nil
}

func (f *fakeAnalyzer) Segment(ctx context.Context, img image.Image, opts pipeline.Options) (*pipeline.SegmentationResult, error) {
	f.calls++
	f.opts, f.size = opts, img.Bounds().Size()
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.SegmentationResult{RunID: "run-2", Success: true, WallCount: 2}, nil
}

// callTool runs tools/call and decodes the text content into out.
func callTool(t *testing.T, s *Server, name string, args interface{}, out interface{}) *MCPResponse {
	t.Helper()
	argsJSON, _ := json.Marshal(args)
	params, _ := json.Marshal(ToolCallParams{Name: name, Arguments: argsJSON})

	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  params,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	if resp.Error != nil || out == nil {
		return resp
	}

	content := resp.Result.(map[string]interface{})["content"].([]map[string]interface{})
	text, _ := content[0]["text"].(string)
	if err := json.Unmarshal([]byte(text), out); err != nil {
		t.Fatalf("tool %s returned invalid JSON %q: %v", name, text, err)
	}
	return resp
}

func TestHandleToolsCall_ImageLoad(t *testing.T) {
	s := newTestServer(nil)
	path := createTestImageFile(t, 100, 80, color.RGBA{255, 0, 0, 255})

	var info struct {
		Width  int    `json:"width"`
		Height int    `json:"height"`
		Format string `json:"format"`
	}
	resp := callTool(t, s, "image_load", map[string]interface{}{"path": path}, &info)
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}
	if info.Width != 100 || info.Height != 80 || info.Format != "png" {
		t.Errorf("got %+v", info)
	}
}

func TestHandleToolsCall_ImageDimensions(t *testing.T) {
	s := newTestServer(nil)
	path := createTestImageFile(t, 200, 150, color.RGBA{0, 255, 0, 255})

	var dims struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	}
	if resp := callTool(t, s, "image_dimensions", map[string]interface{}{"path": path}, &dims); resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}
	if dims.Width != 200 || dims.Height != 150 {
		t.Errorf("got %+v", dims)
	}
}

func TestHandleToolsCall_WallAnalyze(t *testing.T) {
	a := &fakeAnalyzer{}
	s := newTestServer(a)
	path := createTestImageFile(t, 64, 48, color.Gray{128})

	var res pipeline.Result
	resp := callTool(t, s, "wall_analyze", map[string]interface{}{"path": path, "confidence": 0.4}, &res)
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}
	if res.RunID != "run-1" || res.WallCount != 3 {
		t.Errorf("result: %+v", res)
	}
	if a.opts.Confidence != 0.4 || a.size != (image.Point{X: 64, Y: 48}) {
		t.Errorf("analyzer saw confidence %v size %v", a.opts.Confidence, a.size)
	}
}

func TestHandleToolsCall_WallSegment(t *testing.T) {
	a := &fakeAnalyzer{}
	s := newTestServer(a)
	path := createTestImageFile(t, 32, 32, color.Gray{90})

	var res pipeline.SegmentationResult
	if resp := callTool(t, s, "wall_segment", map[string]interface{}{"path": path}, &res); resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}
	if res.WallCount != 2 || a.opts.Confidence != 0 {
		t.Errorf("result %+v, confidence %v", res, a.opts.Confidence)
	}
}

func TestHandleToolsCall_WallAnalyzeErrors(t *testing.T) {
	path := createTestImageFile(t, 16, 16, color.Gray{10})

	tests := []struct {
		name     string
		analyzer Analyzer
		args     map[string]interface{}
	}{
		{"pipeline failure", &fakeAnalyzer{err: &pipeline.StageError{Stage: pipeline.StageDetecting, Err: errors.New("down")}}, map[string]interface{}{"path": path}},
		{"no analyzer", nil, map[string]interface{}{"path": path}},
		{"missing file", &fakeAnalyzer{}, map[string]interface{}{"path": filepath.Join(t.TempDir(), "gone.png")}},
		{"confidence too high", &fakeAnalyzer{}, map[string]interface{}{"path": path, "confidence": 2}},
		{"negative confidence", &fakeAnalyzer{}, map[string]interface{}{"path": path, "confidence": -0.1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := callTool(t, newTestServer(tt.analyzer), "wall_analyze", tt.args, nil)
			if resp.Error == nil || resp.Error.Code != codeToolFailed {
				t.Errorf("expected tool failure, got %+v", resp.Error)
			}
		})
	}
}

func TestHandleToolsCall_WallScale(t *testing.T) {
	s := newTestServer(nil)
	path := createTestImageFile(t, 1000, 500, color.White)

	tests := []struct {
		name       string
		args       map[string]interface{}
		wantMeters float64
		wantSpan   bool
	}{
		{
			name:       "scale only",
			args:       map[string]interface{}{"path": path, "depth_meters": 4.0},
			wantMeters: 0,
		},
		{
			name:       "pixel length",
			args:       map[string]interface{}{"path": path, "depth_meters": 4.0, "pixels": 200},
			wantMeters: 1,
		},
		{
			name:       "span",
			args:       map[string]interface{}{"path": path, "depth_meters": 4.0, "from": []int{0, 0}, "to": []int{120, 160}},
			wantMeters: 1,
			wantSpan:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out struct {
				FocalLengthPixels float64         `json:"focal_length_pixels"`
				MetersPerPixel    float64         `json:"meters_per_pixel"`
				Meters            float64         `json:"meters"`
				Span              json.RawMessage `json:"span"`
			}
			resp := callTool(t, s, "wall_scale", tt.args, &out)
			if resp.Error != nil {
				t.Fatalf("Unexpected error: %v", resp.Error)
			}
			if out.FocalLengthPixels != 800 || math.Abs(out.MetersPerPixel-0.005) > 1e-12 {
				t.Errorf("scale: %+v", out)
			}
			if math.Abs(out.Meters-tt.wantMeters) > 1e-9 {
				t.Errorf("meters: got %v, want %v", out.Meters, tt.wantMeters)
			}
			if (out.Span != nil) != tt.wantSpan {
				t.Errorf("span present = %v, want %v", out.Span != nil, tt.wantSpan)
			}
		})
	}
}

func TestHandleToolsCall_WallScaleErrors(t *testing.T) {
	s := newTestServer(nil)
	path := createTestImageFile(t, 100, 100, color.White)

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"zero depth", map[string]interface{}{"path": path, "depth_meters": 0}},
		{"from without to", map[string]interface{}{"path": path, "depth_meters": 2, "from": []int{1, 1}}},
		{"span outside image", map[string]interface{}{"path": path, "depth_meters": 2, "from": []int{0, 0}, "to": []int{100, 0}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := callTool(t, s, "wall_scale", tt.args, nil)
			if resp.Error == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestHandleToolsCall_UnknownToolAndBadParams(t *testing.T) {
	s := newTestServer(nil)

	resp := callTool(t, s, "image_ocr_full", map[string]interface{}{"path": "/x.png"}, nil)
	if resp.Error == nil || resp.Error.Code != codeToolFailed {
		t.Errorf("unknown tool: %+v", resp.Error)
	}

	resp = s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      2,
		Method:  "tools/call",
		Params:  json.RawMessage(`[1,2,3]`),
	})
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Errorf("bad params: %+v", resp.Error)
	}
}

func TestWallAnalyzeArgs_Options(t *testing.T) {
	tests := []struct {
		confidence float64
		wantErr    bool
	}{
		{0, false},
		{0.25, false},
		{1, false},
		{-0.5, true},
		{1.01, true},
	}
	for _, tt := range tests {
		opts, err := wallAnalyzeArgs{Confidence: tt.confidence}.options()
		if (err != nil) != tt.wantErr {
			t.Errorf("options(%v) error = %v, wantErr %v", tt.confidence, err, tt.wantErr)
			continue
		}
		if err == nil && opts.Confidence != tt.confidence {
			t.Errorf("options(%v) = %v", tt.confidence, opts.Confidence)
		}
		if err != nil && !strings.Contains(err.Error(), "[0, 1]") {
			t.Errorf("error should state the accepted range: %v", err)
		}
	}
}

func TestHandleToolsCall_UnencodableResult(t *testing.T) {
	a := &fakeAnalyzer{result: &pipeline.Result{
		RunID:   "run-nan",
		Success: true,
		Summary: &pipeline.Summary{TotalWallAreaSquareMeters: math.NaN()},
	}}
	s := newTestServer(a)
	path := createTestImageFile(t, 8, 8, color.White)

	resp := callTool(t, s, "wall_analyze", map[string]interface{}{"path": path}, nil)
	if resp.Error == nil {
		t.Fatalf("expected an error response, got result %v", resp.Result)
	}
	if resp.Error.Code != codeToolFailed {
		t.Errorf("code: got %d, want %d", resp.Error.Code, codeToolFailed)
	}
	if data, _ := resp.Error.Data.(string); !strings.Contains(data, "encode result") {
		t.Errorf("data: got %v", resp.Error.Data)
	}
}
