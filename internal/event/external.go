package event

// External is an event as returned by the ticketing search API. It is read-only
// and never persisted.
type External struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	URL             string           `json:"url"`
	Info            string           `json:"info,omitempty"`
	PleaseNote      string           `json:"pleaseNote,omitempty"`
	Dates           Dates            `json:"dates"`
	Images          []Image          `json:"images,omitempty"`
	Classifications []Classification `json:"classifications,omitempty"`
	Embedded        *Embedded        `json:"_embedded,omitempty"`
}

type Dates struct {
	Start Start `json:"start"`
}

type Start struct {
	LocalDate string `json:"localDate"`
	LocalTime string `json:"localTime,omitempty"`
}

type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

type Classification struct {
	Segment Named `json:"segment"`
	Genre   Named `json:"genre"`
}

type Named struct {
	Name string `json:"name"`
}

type Embedded struct {
	Venues []Venue `json:"venues,omitempty"`
}

type Venue struct {
	Name string `json:"name"`
	City Named  `json:"city"`
}

// FirstImage returns the first image URL or "".
func (e *External) FirstImage() string {
	if len(e.Images) == 0 {
		return ""
	}
	return e.Images[0].URL
}

// VenueName returns the first venue's name or "".
func (e *External) VenueName() string {
	if e.Embedded == nil || len(e.Embedded.Venues) == 0 {
		return ""
	}
	return e.Embedded.Venues[0].Name
}

// City returns the first venue's city or "".
func (e *External) City() string {
	if e.Embedded == nil || len(e.Embedded.Venues) == 0 {
		return ""
	}
	return e.Embedded.Venues[0].City.Name
}

// Segment returns the top-level classification (e.g. "Music") or "".
func (e *External) Segment() string {
	if len(e.Classifications) == 0 {
		return ""
	}
	return e.Classifications[0].Segment.Name
}
