// Package search turns a caller's filters into source queries, runs them
// against the ticketing API and the internal event store, and merges the
// answers into one deduplicated result list.
package search

import (
	"strings"

	"github.com/aabubakar17/meetEasy/internal/event"
)

// Default page sizes for external queries.
const (
	DefaultKeywordPageSize  = 6
	DefaultCategoryPageSize = 20
	DefaultRetries          = 3
)

// Query holds the caller's optional filters.
type Query struct {
	Keyword  string
	Location string
	Category string

	// PageSize overrides the external page size when > 0.
	PageSize int
}

// IsEmpty reports whether no filter was supplied.
func (q Query) IsEmpty() bool {
	return strings.TrimSpace(q.Keyword) == "" &&
		strings.TrimSpace(q.Location) == "" &&
		strings.TrimSpace(q.Category) == ""
}

// ExternalKind selects the ticketing API operation.
type ExternalKind int

const (
	ExternalByKeyword ExternalKind = iota
	ExternalByClassification
)

// ExternalQuery is one planned ticketing API call.
type ExternalQuery struct {
	Kind     ExternalKind
	Keyword  string
	Location string
	Category string
	PageSize int
	Retries  int
}

// InternalKind selects the internal store operation.
type InternalKind int

const (
	InternalByKeywords InternalKind = iota
	InternalByLocation
	InternalByCategory
	InternalAll
)

func (k InternalKind) String() string {
	switch k {
	case InternalByKeywords:
		return "keywords"
	case InternalByLocation:
		return "location"
	case InternalByCategory:
		return "category"
	case InternalAll:
		return "all"
	}
	return "unknown"
}

// InternalQuery is one planned internal store query.
type InternalQuery struct {
	Kind     InternalKind
	Tokens   []string
	Location string
	Category string
}

// Plan is the set of source queries for one search.
type Plan struct {
	External []ExternalQuery
	Internal []InternalQuery
}

// Empty reports whether the plan issues no query at all.
func (p Plan) Empty() bool {
	return len(p.External) == 0 && len(p.Internal) == 0
}

// Parse builds the plan for q.
//
// A category puts the search in category mode and keyword and location are
// ignored. The community category is matched case-sensitively and scans the
// internal store without touching the ticketing API; any other category is
// sent to both sources. Without a category, a keyword queries the API by
// keyword and city and the store by each keyword token, and a location
// queries the store by exact location. A location on its own still queries
// the API, by city only.
func Parse(q Query) Plan {
	keyword := strings.TrimSpace(q.Keyword)
	location := strings.TrimSpace(q.Location)
	category := strings.TrimSpace(q.Category)

	var plan Plan

	if category != "" {
		if category == event.CommunityCategory {
			plan.Internal = append(plan.Internal, InternalQuery{Kind: InternalAll, Category: category})
			return plan
		}
		size := q.PageSize
		if size <= 0 {
			size = DefaultCategoryPageSize
		}
		plan.External = append(plan.External, ExternalQuery{
			Kind:     ExternalByClassification,
			Category: category,
			PageSize: size,
			Retries:  DefaultRetries,
		})
		plan.Internal = append(plan.Internal, InternalQuery{Kind: InternalByCategory, Category: category})
		return plan
	}

	if keyword == "" && location == "" {
		return plan
	}

	size := q.PageSize
	if size <= 0 {
		size = DefaultKeywordPageSize
	}
	plan.External = append(plan.External, ExternalQuery{
		Kind:     ExternalByKeyword,
		Keyword:  keyword,
		Location: location,
		PageSize: size,
	})

	if keyword != "" {
		if tokens := event.Keywords(keyword); len(tokens) > 0 {
			plan.Internal = append(plan.Internal, InternalQuery{Kind: InternalByKeywords, Tokens: tokens})
		}
	}
	if location != "" {
		plan.Internal = append(plan.Internal, InternalQuery{Kind: InternalByLocation, Location: strings.ToLower(location)})
	}
	return plan
}
