package amis

// FileRef points at one downloadable file attached to a record.
type FileRef struct {
	// URL is absolute, or relative to the configured base URL.
	URL string
	// Name is the server-side display name, when known.
	Name string
}

// IsZero reports whether the reference points at nothing.
func (r FileRef) IsZero() bool { return r.URL == "" }

// RecordHandle is a resolved record: the print template plus the image
// references grouped by retrieval category. It is produced by SearchRecord,
// read-only afterward, and discarded when the pipeline run completes.
type RecordHandle struct {
	RecordID       string
	Template       FileRef
	PropertyPhotos []FileRef
	ListingPhotos  []FileRef
	TitleDeedScans []FileRef
}

type searchResponse struct {
	Records []searchRecord `json:"records"`
}

type searchRecord struct {
	ID        string            `json:"id"`
	Templates []searchFile      `json:"templates"`
	Images    map[string][]searchFile `json:"images"`
}

type searchFile struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}
