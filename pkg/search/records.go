package search

import (
	"math/rand/v2"
	"time"
)

// Record is a single opaque result produced by a backend.
type Record interface {
	// RecordID returns the backend-unique identifier of the record.
	RecordID() string

	// SourceIdentifier returns the id of the backend that produced the record.
	SourceIdentifier() string
}

// Document is a full record carrying every stored field.
type Document struct {
	ID     string         `json:"id" yaml:"id"`
	Source string         `json:"source" yaml:"source"`
	Fields map[string]any `json:"fields,omitempty" yaml:"fields,omitempty"`
}

func (d *Document) RecordID() string         { return d.ID }
func (d *Document) SourceIdentifier() string { return d.Source }

// Field returns the named field as a string, or "" when absent or not a string.
func (d *Document) Field(name string) string {
	if s, ok := d.Fields[name].(string); ok {
		return s
	}
	return ""
}

// IDRecord is the lightweight projection returned by IDLister backends.
type IDRecord struct {
	ID     string `json:"id" yaml:"id"`
	Source string `json:"source" yaml:"source"`
}

func (r *IDRecord) RecordID() string         { return r.ID }
func (r *IDRecord) SourceIdentifier() string { return r.Source }

// SitemapRecord is the projection returned by SitemapFieldLister backends.
type SitemapRecord struct {
	ID           string    `json:"id" yaml:"id"`
	Source       string    `json:"source" yaml:"source"`
	LastModified time.Time `json:"lastModified,omitzero" yaml:"lastModified,omitempty"`
}

func (r *SitemapRecord) RecordID() string         { return r.ID }
func (r *SitemapRecord) SourceIdentifier() string { return r.Source }

// RecordCollection is an ordered sequence of records plus the total number of
// matches the backend reported.
type RecordCollection struct {
	records []Record
	total   int
	offset  int
	source  string
}

// RecordCollectionFactory builds a RecordCollection from a backend response.
// Backends that accept a factory use it for every collection they return.
type RecordCollectionFactory func(source string, records []Record, total, offset int) *RecordCollection

// NewRecordCollection is the default RecordCollectionFactory.
func NewRecordCollection(source string, records []Record, total, offset int) *RecordCollection {
	return &RecordCollection{
		records: append([]Record(nil), records...),
		total:   total,
		offset:  offset,
		source:  source,
	}
}

// Total returns the total number of matches reported by the backend.
func (c *RecordCollection) Total() int {
	if c == nil {
		return 0
	}
	return c.total
}

// Offset returns the offset the collection was fetched from.
func (c *RecordCollection) Offset() int {
	if c == nil {
		return 0
	}
	return c.offset
}

// SourceIdentifier returns the id of the backend that produced the collection.
func (c *RecordCollection) SourceIdentifier() string {
	if c == nil {
		return ""
	}
	return c.source
}

// Len returns the number of records held.
func (c *RecordCollection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.records)
}

// Records returns a copy of the held records in order.
func (c *RecordCollection) Records() []Record {
	if c == nil {
		return nil
	}
	return append([]Record(nil), c.records...)
}

// First returns the first record without removing it, or nil when empty.
func (c *RecordCollection) First() Record {
	if c == nil || len(c.records) == 0 {
		return nil
	}
	return c.records[0]
}

// Add appends a record.
func (c *RecordCollection) Add(r Record) {
	c.records = append(c.records, r)
}

// IDs returns the record ids in order.
func (c *RecordCollection) IDs() []string {
	if c == nil {
		return nil
	}
	ids := make([]string, len(c.records))
	for i, r := range c.records {
		ids[i] = r.RecordID()
	}
	return ids
}

// Shuffle permutes the records uniformly in place. A nil rng uses the
// package-level generator.
func (c *RecordCollection) Shuffle(rng *rand.Rand) {
	if c == nil {
		return
	}
	swap := func(i, j int) { c.records[i], c.records[j] = c.records[j], c.records[i] }
	if rng == nil {
		rand.Shuffle(len(c.records), swap)
		return
	}
	rng.Shuffle(len(c.records), swap)
}
