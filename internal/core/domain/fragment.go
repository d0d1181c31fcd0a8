package domain

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// Weight bounds for fragments.
const (
	MinFragmentWeight = 0.0
	MaxFragmentWeight = 5.0
)

// FragmentKey identifies a fragment independently of its backend row id.
// It is stable across corpus refreshes: "<documentID>:<chunkIndex>".
type FragmentKey string

// NewFragmentKey builds the key for a chunk of a document.
func NewFragmentKey(documentID int64, chunkIndex int) FragmentKey {
	return FragmentKey(fmt.Sprintf("%d:%d", documentID, chunkIndex))
}

// Fragment is a weighted, keyword-tagged excerpt of a source document.
// Fragments are produced by the backend extraction pipeline and are
// read-only here except for weight and exclusion updates.
type Fragment struct {
	// ID is the backend row identifier, used for weight and exclusion updates.
	ID int64

	// DocumentID links to the source document.
	DocumentID int64

	// ChunkIndex is the ordinal position within the document.
	ChunkIndex int

	// Content is the fragment text.
	Content string

	// Weight is a star rating in [0,5].
	Weight float64

	// DocumentName is the source document's file name.
	DocumentName string

	// Keywords are the extracted keyword tags.
	Keywords []string

	// Excluded marks a soft-deleted fragment.
	Excluded bool

	// IsManual marks a user-added fragment.
	IsManual bool
}

// Key returns the stable selection key for the fragment.
func (f Fragment) Key() FragmentKey {
	return NewFragmentKey(f.DocumentID, f.ChunkIndex)
}

// FragmentFilter combines the three independent filter predicates.
// A zero FragmentFilter matches every fragment.
type FragmentFilter struct {
	// MinWeight keeps fragments with weight >= MinWeight. Zero disables the check.
	MinWeight float64

	// Content is matched case-insensitively against the document name or content.
	Content string

	// Keywords is a whitespace/comma separated list. Every token must match
	// a keyword or the content.
	Keywords string
}

// IsZero returns true if the filter has no active predicate.
func (f FragmentFilter) IsZero() bool {
	return f.MinWeight <= 0 && strings.TrimSpace(f.Content) == "" && strings.TrimSpace(f.Keywords) == ""
}

// Matches reports whether the fragment satisfies all active predicates.
func (f FragmentFilter) Matches(frag Fragment) bool {
	if f.MinWeight > 0 && frag.Weight < f.MinWeight {
		return false
	}

	if q := strings.ToLower(strings.TrimSpace(f.Content)); q != "" {
		if !strings.Contains(strings.ToLower(frag.DocumentName), q) &&
			!strings.Contains(strings.ToLower(frag.Content), q) {
			return false
		}
	}

	tokens := KeywordTokens(f.Keywords)
	if len(tokens) == 0 {
		return true
	}

	content := strings.ToLower(frag.Content)
	keywords := make([]string, len(frag.Keywords))
	for i, kw := range frag.Keywords {
		keywords[i] = strings.ToLower(kw)
	}

	for _, tok := range tokens {
		if !tokenMatches(tok, keywords, content) {
			return false
		}
	}
	return true
}

func tokenMatches(tok string, keywords []string, content string) bool {
	for _, kw := range keywords {
		if strings.Contains(kw, tok) {
			return true
		}
	}
	return strings.Contains(content, tok)
}

// KeywordTokens splits a keyword filter on whitespace and commas and lowercases each token.
func KeywordTokens(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '，' || unicode.IsSpace(r)
	})
	for i := range fields {
		fields[i] = strings.ToLower(fields[i])
	}
	return fields
}

// FragmentOrder defines how the filtered view is sorted.
type FragmentOrder string

// Available orderings.
const (
	// OrderByDocument sorts by document name, then chunk index.
	OrderByDocument FragmentOrder = "document"

	// OrderByWeight sorts by weight descending, then by document.
	OrderByWeight FragmentOrder = "weight"

	// OrderNone keeps the corpus order.
	OrderNone FragmentOrder = ""
)

// IsValid returns true if the ordering is recognised.
func (o FragmentOrder) IsValid() bool {
	switch o {
	case OrderByDocument, OrderByWeight, OrderNone:
		return true
	default:
		return false
	}
}

// SortFragments sorts fragments in place. The sort is stable.
func SortFragments(frags []Fragment, order FragmentOrder) {
	byDocument := func(a, b Fragment) bool {
		if a.DocumentName != b.DocumentName {
			return a.DocumentName < b.DocumentName
		}
		if a.DocumentID != b.DocumentID {
			return a.DocumentID < b.DocumentID
		}
		return a.ChunkIndex < b.ChunkIndex
	}

	switch order {
	case OrderByDocument:
		sort.SliceStable(frags, func(i, j int) bool {
			return byDocument(frags[i], frags[j])
		})
	case OrderByWeight:
		sort.SliceStable(frags, func(i, j int) bool {
			if frags[i].Weight != frags[j].Weight {
				return frags[i].Weight > frags[j].Weight
			}
			return byDocument(frags[i], frags[j])
		})
	}
}

// FragmentPage is one page of the backend fragment listing.
type FragmentPage struct {
	Items []Fragment
	Total int
}
