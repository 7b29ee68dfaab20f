package domain

import "time"

// TimestampLayout renders run timestamps the way the state file stores them
// (millisecond ISO-8601 in UTC, e.g. 2025-01-02T15:04:05.000Z).
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Label is a single approval entry from the COLA public registry search listing.
type Label struct {
	TTBID         string
	PermitNo      string
	SerialNumber  string
	CompletedDate string
	FancifulName  string
	BrandName     string
	Origin        string
	OriginDesc    string
	ClassType     string
	ClassTypeDesc string

	// Populated only by image enrichment.
	ImageData     []byte
	ImageFilename string
}

// HasImage reports whether enrichment attached an image that can be uploaded.
func (l Label) HasImage() bool {
	return len(l.ImageData) > 0 && l.ImageFilename != ""
}

// DisplayTitle prefers the fanciful name, then the brand name.
func (l Label) DisplayTitle() string {
	switch {
	case l.FancifulName != "":
		return l.FancifulName
	case l.BrandName != "":
		return l.BrandName
	default:
		return "New Label"
	}
}

// LabelImage is the front-label attachment fetched for one label.
type LabelImage struct {
	Data        []byte
	Filename    string
	ContentType string
}

// OptionalText is a heuristically scraped value. Present is false when the
// label text was not found at all, which is distinct from a blank value.
type OptionalText struct {
	Value   string
	Present bool
}

// Text wraps a found value.
func Text(v string) OptionalText {
	return OptionalText{Value: v, Present: true}
}

// Or returns the value when present and non-empty, otherwise fallback.
func (o OptionalText) Or(fallback string) string {
	if !o.Present || o.Value == "" {
		return fallback
	}
	return o.Value
}

// LabelDetail is produced by the detail page path only.
type LabelDetail struct {
	TTBID             string
	PermitNo          OptionalText
	SerialNumber      OptionalText
	CompletedDate     OptionalText
	FancifulName      OptionalText
	BrandName         OptionalText
	Origin            OptionalText
	OriginDesc        OptionalText
	ClassType         OptionalText
	ClassTypeDesc     OptionalText
	Status            OptionalText
	VendorCode        OptionalText
	TypeOfApplication OptionalText
	ApprovalDate      OptionalText
}

// SeenLabels is the durable dedup state persisted between runs.
type SeenLabels struct {
	LastRun string   `json:"lastRun"`
	TTBIDs  []string `json:"ttbIds"`
}

// Touch stamps the run time onto the state.
func (s *SeenLabels) Touch(now time.Time) {
	s.LastRun = now.UTC().Format(TimestampLayout)
}

// Session is a browser session handed back by the rendering proxy. It is
// scoped to one scrape attempt and never persisted.
type Session struct {
	Cookie     string
	FormFields map[string]string
}

// Batch is an ordered group of labels delivered in one webhook message.
type Batch []Label
