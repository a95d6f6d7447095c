package ndr

// RawRecord is one catalog entry as returned by the listing endpoint.
// Fields beyond id/title/tag_list exist on the wire but are not used.
type RawRecord struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	TagList []Tag  `json:"tag_list"`
}

// Tag is a display label attached to a record (grade, subject, publisher).
type Tag struct {
	TagName string `json:"tag_name"`
}

// ResolvedSource is the result of resolving a record id against the detail
// endpoint: the mirror-relative path fragment of the current source file.
type ResolvedSource struct {
	ID       string
	Fragment string
	Title    string // authoritative title from the detail payload, may be empty
}

// versionResponse is the catalog version document. The urls field is a
// comma-joined list of catalog part URLs in fixed order.
type versionResponse struct {
	URLs string `json:"urls"`
}

// pagedResponse is the object form of a catalog page. Part files that hold a
// whole catalog are served as a bare JSON array instead; FetchPage accepts
// both shapes.
type pagedResponse struct {
	Items []RawRecord `json:"items"`
	Next  string      `json:"next"`
}

// detailResponse is the per-record metadata document.
type detailResponse struct {
	Title   string `json:"title"`
	TiItems []struct {
		TiFileFlag string   `json:"ti_file_flag"`
		TiStorages []string `json:"ti_storages"`
	} `json:"ti_items"`
}
