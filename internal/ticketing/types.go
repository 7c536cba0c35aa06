package ticketing

import "github.com/aabubakar17/meetEasy/internal/event"

// searchResponse is the envelope of a search page. A page with no matches
// carries no _embedded object at all.
type searchResponse struct {
	Embedded *struct {
		Events []event.External `json:"events"`
	} `json:"_embedded"`
	Page *pageInfo `json:"page,omitempty"`
}

type pageInfo struct {
	Size          int `json:"size"`
	TotalElements int `json:"totalElements"`
	TotalPages    int `json:"totalPages"`
	Number        int `json:"number"`
}

func (r *searchResponse) events() []event.External {
	if r.Embedded == nil || r.Embedded.Events == nil {
		return []event.External{}
	}
	return r.Embedded.Events
}
