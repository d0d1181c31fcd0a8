package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/privatetune/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for privatetune resources.
	uriScheme = "privatetune://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "selection",
		Name:        "selection",
		Description: "Currently selected knowledge fragments",
		MIMEType:    "application/json",
	}, s.handleSelectionResource)

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "training-items",
		Name:        "training-items",
		Description: "Saved training items",
		MIMEType:    "application/json",
	}, s.handleTrainingItemsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "training-items/{itemId}/annotations",
		Name:        "training-item-annotations",
		Description: "Annotations saved for a training item, one JSON record per line",
		MIMEType:    "application/x-ndjson",
	}, s.handleItemAnnotationsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "jobs/{jobId}/logs",
		Name:        "job-logs",
		Description: "Progress log of a fine-tuning job",
		MIMEType:    "text/plain",
	}, s.handleJobLogsResource)
}

// handleSelectionResource returns the selected fragments.
func (s *Server) handleSelectionResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if err := s.ports.Fragments.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("loading fragments: %w", err)
	}

	selected := s.ports.Fragments.Lookup(s.ports.Fragments.Selection())
	out := make([]FragmentOutput, len(selected))
	for i := range selected {
		out[i] = FragmentOutput{
			Key:          string(selected[i].Key()),
			DocumentName: selected[i].DocumentName,
			Weight:       selected[i].Weight,
			Keywords:     selected[i].Keywords,
			Content:      selected[i].Content,
			Selected:     true,
		}
	}
	return jsonResult(req.Params.URI, out, "selection")
}

// handleTrainingItemsResource returns the saved training items.
func (s *Server) handleTrainingItemsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Items == nil {
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     "[]",
			}},
		}, nil
	}

	items, err := s.loadItems(ctx)
	if err != nil {
		return nil, err
	}
	return jsonResult(req.Params.URI, items, "training items")
}

// handleItemAnnotationsResource exports a training item's annotations.
func (s *Server) handleItemAnnotationsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Dataset == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	id, ok := extractItemID(req.Params.URI)
	if !ok {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err := s.loadDataset(ctx, &id); err != nil {
		return nil, err
	}

	var b strings.Builder
	if _, err := s.ports.Dataset.Export(&b, domain.ExportOptions{Format: domain.ExportRaw}); err != nil {
		return nil, fmt.Errorf("exporting annotations: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/x-ndjson",
			Text:     b.String(),
		}},
	}, nil
}

// handleJobLogsResource returns a fine-tuning job's log as text.
func (s *Server) handleJobLogsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Monitor == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	jobID := extractJobID(req.Params.URI)
	if jobID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	detail, err := s.jobDetail(ctx, jobID)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	for _, entry := range detail.Logs {
		b.WriteString(entry.Timestamp.UTC().Format("2006-01-02T15:04:05Z"))
		b.WriteString("  ")
		b.WriteString(entry.Message)
		b.WriteString("\n")
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     b.String(),
		}},
	}, nil
}

func jsonResult(uri string, v any, what string) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", what, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractItemID extracts the item ID from a URI like privatetune://training-items/{itemId}/annotations.
func extractItemID(uri string) (int64, bool) {
	const prefix = uriScheme + "training-items/"
	const suffix = "/annotations"

	if !strings.HasPrefix(uri, prefix) || !strings.HasSuffix(uri, suffix) {
		return 0, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(uri, prefix), suffix)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// extractJobID extracts the job ID from a URI like privatetune://jobs/{jobId}/logs.
func extractJobID(uri string) string {
	const prefix = uriScheme + "jobs/"
	const suffix = "/logs"

	if !strings.HasPrefix(uri, prefix) || !strings.HasSuffix(uri, suffix) {
		return ""
	}
	id := strings.TrimSuffix(strings.TrimPrefix(uri, prefix), suffix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
