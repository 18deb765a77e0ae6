// Package server implements the MCP (Model Context Protocol) server for
// dataset releases.
//
// This package provides a JSON-RPC 2.0 server that exposes the release
// pipeline through the MCP protocol, so an assistant can plan augmentations,
// preview them on a single image, start releases and follow their progress.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//   - Notifications: a notifications/message is sent when a release started
//     with release_start finishes, with level "error" for failed releases
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Catalog:
//   - transform_kinds: Supported kinds, defaults and dual-value rules
//
// Releases:
//   - release_plan: Configs a release would generate, per image
//   - release_start: Validate, collect and start a release in the background
//   - release_progress: Live status and percentage
//   - release_get: Stored record of a release
//
// Preview:
//   - image_augment_preview: Apply transformations to one image and return
//     the PNG and the remapped annotations
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32602 for rejected arguments and configuration errors, -32000
//     for everything else
//   - message: "Tool execution failed"
//   - data: {"kind": "<error kind>", "error": "<message>"}
//
// # Usage
//
//	srv := server.New(orchestrator)
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Releases started over MCP run under the context passed to Run and are
// cancelled when it is.
package server
