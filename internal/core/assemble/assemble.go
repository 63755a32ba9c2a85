// Package assemble attaches record metadata to extracted fields.
package assemble

import (
	"errors"
	"fmt"
	"time"

	"github.com/joseph-ayodele/fichas/internal/extract"
)

// ErrSeqInvalid is returned by CheckOrder for records out of index order.
var ErrSeqInvalid = errors.New("records out of order")

// Assembler builds Records. The clock is injectable for tests.
type Assembler struct {
	now func() time.Time
}

// New creates an assembler. A nil clock uses time.Now.
func New(now func() time.Time) *Assembler {
	if now == nil {
		now = time.Now
	}
	return &Assembler{now: now}
}

// Now returns the extraction timestamp for a new batch of records.
func (a *Assembler) Now() time.Time {
	return a.now()
}

// Assemble builds the record for the span at index.
func (a *Assembler) Assemble(fields *extract.FieldMap, sourceID string, index int, at time.Time) extract.Record {
	return extract.NewRecord(fields, sourceID, index, at, "")
}

// Failed builds the partial record for a span whose extraction panicked.
func (a *Assembler) Failed(fields *extract.FieldMap, sourceID string, index int, at time.Time, cause any) extract.Record {
	return extract.NewRecord(fields, sourceID, index, at, fmt.Sprintf("extraction failed: %v", cause))
}

// CheckOrder verifies that records of one source carry strictly ascending indexes.
func CheckOrder(records []extract.Record) error {
	for i := 1; i < len(records); i++ {
		prev, cur := records[i-1], records[i]
		if cur.SourceID() == prev.SourceID() && cur.Index() <= prev.Index() {
			return fmt.Errorf("%w: %s index %d after %d", ErrSeqInvalid, cur.SourceID(), cur.Index(), prev.Index())
		}
	}
	return nil
}
