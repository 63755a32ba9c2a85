package extract

import (
	"strconv"
	"time"

	"github.com/joseph-ayodele/fichas/constants"
)

// Record is the extracted content of one span plus reserved metadata.
// It is immutable once built.
type Record struct {
	fields      *FieldMap
	sourceID    string
	index       int
	extractedAt time.Time
	errNote     string
}

// NewRecord builds a Record from fields. The map is copied.
func NewRecord(fields *FieldMap, sourceID string, index int, extractedAt time.Time, errNote string) Record {
	return Record{
		fields:      fields.Clone(),
		sourceID:    sourceID,
		index:       index,
		extractedAt: extractedAt,
		errNote:     errNote,
	}
}

func (r Record) SourceID() string       { return r.sourceID }
func (r Record) Index() int             { return r.index }
func (r Record) ExtractedAt() time.Time { return r.extractedAt }
func (r Record) ExtractionError() string {
	return r.errNote
}

// FieldCount returns the number of extracted (non-metadata) fields.
func (r Record) FieldCount() int { return r.fields.Len() }

// FieldKeys returns the extracted field keys in extraction order.
func (r Record) FieldKeys() []string { return r.fields.Keys() }

// Keys returns extracted field keys followed by the metadata keys.
func (r Record) Keys() []string {
	keys := r.fields.Keys()
	keys = append(keys, constants.KeySourceID, constants.KeyRecordIndex, constants.KeyExtractedAt)
	if r.errNote != "" {
		keys = append(keys, constants.KeyExtractionError)
	}
	return keys
}

// Get returns the value stored under key, metadata included.
func (r Record) Get(key string) (string, bool) {
	switch key {
	case constants.KeySourceID:
		return r.sourceID, true
	case constants.KeyRecordIndex:
		return strconv.Itoa(r.index), true
	case constants.KeyExtractedAt:
		return r.extractedAt.Format(constants.ExtractedAtLayout), true
	case constants.KeyExtractionError:
		return r.errNote, r.errNote != ""
	}
	return r.fields.Get(key)
}

// Value returns the value under key or "" when absent.
func (r Record) Value(key string) string {
	v, _ := r.Get(key)
	return v
}
