// Package mcp provides an MCP (Model Context Protocol) server adapter for privatetune.
// It lets AI assistants inspect the fragment corpus, training items, annotation
// sets and fine-tuning jobs held by the backend.
package mcp

import "errors"

// ErrMissingFragmentService is returned when the fragment service is not provided.
var ErrMissingFragmentService = errors.New("mcp: fragment service is required")

// ErrServiceUnavailable is returned by tools whose backing service is not configured.
var ErrServiceUnavailable = errors.New("mcp: service not configured")
