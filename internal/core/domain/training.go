package domain

import (
	"strings"
	"time"
)

// TrainingItem is a named, reusable pairing of a fragment selection and a
// prompt template. FragmentKeys may reference fragments that no longer
// exist; those are filtered out at use time.
type TrainingItem struct {
	// ID is the backend identifier.
	ID int64

	// Name is unique across training items.
	Name string

	// FragmentKeys is the saved selection.
	FragmentKeys []FragmentKey

	// PromptTemplate is applied to each fragment at generation time.
	PromptTemplate string

	// CreatedAt is when the item was first saved.
	CreatedAt time.Time

	// UpdatedAt is when the item was last saved.
	UpdatedAt time.Time
}

// TemplatePlaceholder is replaced with fragment content when rendering a prompt.
const TemplatePlaceholder = "{knowledge_point}"

// DefaultPromptTemplate is used when no template has been chosen.
const DefaultPromptTemplate = `Based on the following knowledge point, generate a high-quality instruction-response pair for fine-tuning.

Knowledge Point:
{knowledge_point}`

// RenderPrompt applies a prompt template to fragment content.
// Templates without the placeholder get the content appended after a blank line.
func RenderPrompt(template, content string) string {
	template = strings.TrimSpace(template)
	if template == "" {
		return content
	}
	if strings.Contains(template, TemplatePlaceholder) {
		return strings.ReplaceAll(template, TemplatePlaceholder, content)
	}
	return template + "\n\n" + content
}

// DedupeKeys returns keys with blanks and duplicates removed, preserving order.
func DedupeKeys(keys []FragmentKey) []FragmentKey {
	seen := make(map[FragmentKey]struct{}, len(keys))
	out := make([]FragmentKey, 0, len(keys))
	for _, k := range keys {
		k = FragmentKey(strings.TrimSpace(string(k)))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
