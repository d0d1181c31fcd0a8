package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractItemID(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected int64
		ok       bool
	}{
		{
			name:     "valid item annotations URI",
			uri:      "privatetune://training-items/42/annotations",
			expected: 42,
			ok:       true,
		},
		{
			name: "invalid prefix",
			uri:  "file://training-items/42/annotations",
		},
		{
			name: "missing annotations suffix",
			uri:  "privatetune://training-items/42",
		},
		{
			name: "non-numeric id",
			uri:  "privatetune://training-items/abc/annotations",
		},
		{
			name: "zero id",
			uri:  "privatetune://training-items/0/annotations",
		},
		{
			name: "empty URI",
			uri:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := extractItemID(tt.uri)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, id)
		})
	}
}

func TestExtractJobID(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected string
	}{
		{
			name:     "valid job logs URI",
			uri:      "privatetune://jobs/openai_ab12cd34/logs",
			expected: "openai_ab12cd34",
		},
		{
			name:     "invalid prefix",
			uri:      "file://jobs/openai_ab12cd34/logs",
			expected: "",
		},
		{
			name:     "nested path",
			uri:      "privatetune://jobs/a/b/logs",
			expected: "",
		},
		{
			name:     "empty URI",
			uri:      "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractJobID(tt.uri))
		})
	}
}

// Helper to create a ReadResourceRequest with the given URI.
func makeReadResourceRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func TestServer_handleSelectionResource(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	server := f.server(t)
	require.NoError(t, f.ports.Fragments.Refresh(ctx))
	f.ports.Fragments.Select("1:1", "2:0")

	result, err := server.handleSelectionResource(ctx, makeReadResourceRequest("privatetune://selection"))

	require.NoError(t, err)
	require.Len(t, result.Contents, 1)
	assert.Equal(t, "application/json", result.Contents[0].MIMEType)

	var frags []FragmentOutput
	require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &frags))
	require.Len(t, frags, 2)
	assert.Equal(t, "1:1", frags[0].Key)
	assert.Equal(t, "2:0", frags[1].Key)
}

func TestServer_handleTrainingItemsResource(t *testing.T) {
	ctx := context.Background()
	req := makeReadResourceRequest("privatetune://training-items")

	t.Run("nil item service returns empty list", func(t *testing.T) {
		f := newFixture(t)
		f.ports.Items = nil
		server := f.server(t)

		result, err := server.handleTrainingItemsResource(ctx, req)

		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, "[]", result.Contents[0].Text)
	})

	t.Run("returns items", func(t *testing.T) {
		server := newFixture(t).server(t)

		result, err := server.handleTrainingItemsResource(ctx, req)

		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Contains(t, result.Contents[0].Text, `"name": "concurrency"`)
		assert.Contains(t, result.Contents[0].Text, `"resolved_count": 2`)
	})
}

func TestServer_handleItemAnnotationsResource(t *testing.T) {
	ctx := context.Background()

	t.Run("exports the item's annotations", func(t *testing.T) {
		f := newFixture(t)
		server := f.server(t)
		uri := fmt.Sprintf("privatetune://training-items/%d/annotations", f.itemID)

		result, err := server.handleItemAnnotationsResource(ctx, makeReadResourceRequest(uri))

		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, "application/x-ndjson", result.Contents[0].MIMEType)
		lines := strings.Split(strings.TrimSpace(result.Contents[0].Text), "\n")
		require.Len(t, lines, 2)
		assert.Contains(t, lines[0], `"instruction":"What is a goroutine?"`)
		assert.Contains(t, lines[0], `"score":5`)
	})

	t.Run("invalid URI", func(t *testing.T) {
		server := newFixture(t).server(t)

		_, err := server.handleItemAnnotationsResource(ctx, makeReadResourceRequest("privatetune://training-items/x/annotations"))
		assert.Error(t, err)
	})

	t.Run("nil dataset service", func(t *testing.T) {
		f := newFixture(t)
		f.ports.Dataset = nil
		server := f.server(t)
		uri := fmt.Sprintf("privatetune://training-items/%d/annotations", f.itemID)

		_, err := server.handleItemAnnotationsResource(ctx, makeReadResourceRequest(uri))
		assert.Error(t, err)
	})
}

func TestServer_handleJobLogsResource(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the log as text", func(t *testing.T) {
		f := newFixture(t)
		server := f.server(t)

		result, err := server.handleJobLogsResource(ctx, makeReadResourceRequest("privatetune://jobs/"+f.jobID+"/logs"))

		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, "text/plain", result.Contents[0].MIMEType)
		assert.Contains(t, result.Contents[0].Text, "Submitted 1 annotations in sft format")
	})

	t.Run("unknown job", func(t *testing.T) {
		server := newFixture(t).server(t)

		_, err := server.handleJobLogsResource(ctx, makeReadResourceRequest("privatetune://jobs/openai_missing/logs"))
		assert.Error(t, err)
	})

	t.Run("invalid URI", func(t *testing.T) {
		server := newFixture(t).server(t)

		_, err := server.handleJobLogsResource(ctx, makeReadResourceRequest("privatetune://jobs/"))
		assert.Error(t, err)
	})
}
