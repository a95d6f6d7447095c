package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wyu/textfetch/pkg/ndr"
)

// ErrMalformedRecord indicates a raw descriptor missing a required field.
// Such records are logged and skipped; one bad row never stops a walk.
var ErrMalformedRecord = errors.New("malformed record descriptor")

// publisherMarker identifies edition tags, e.g. 人教版, 北师大版.
const publisherMarker = "版"

// Normalize maps a raw descriptor to a canonical Record. Catalog coordinates
// and the global sequence are assigned by the Walker, not here.
func Normalize(raw ndr.RawRecord) (Record, error) {
	if raw.ID == "" {
		return Record{}, fmt.Errorf("%w: missing id", ErrMalformedRecord)
	}
	if raw.Title == "" {
		return Record{}, fmt.Errorf("%w: missing title (id %s)", ErrMalformedRecord, raw.ID)
	}

	publisher := publisherTag(raw.TagList)
	if publisher == "" {
		return Record{}, fmt.Errorf("%w: missing publisher tag (id %s)", ErrMalformedRecord, raw.ID)
	}

	return Record{
		ID:        raw.ID,
		Title:     raw.Title,
		Publisher: publisher,
	}, nil
}

// publisherTag returns the first tag naming an edition, or "".
func publisherTag(tags []ndr.Tag) string {
	for _, tag := range tags {
		if strings.Contains(tag.TagName, publisherMarker) {
			return tag.TagName
		}
	}
	return ""
}
