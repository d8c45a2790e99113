// Package server implements the MCP (Model Context Protocol) server for wall
// measurement.
//
// The server exposes the same analysis pipeline as the HTTP API to MCP
// clients, working on image files by path instead of uploads.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Logs go to stderr so that they never interleave with responses.
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Image information:
//   - image_load: Load an image and get metadata
//   - image_dimensions: Get upright width and height
//
// Walls:
//   - wall_analyze: Full analysis with depth and metric measurements
//   - wall_segment: Detection and segmentation only
//   - wall_scale: Meters per pixel at a depth, with optional span conversion
//
// # Image Caching
//
// Images are decoded once per path (EXIF orientation applied) and reused by
// later tool calls for the lifetime of the process.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
//
// A degraded analysis (depth or measurement failure) is not an error; it is
// returned as a normal result with success set to false.
package server
