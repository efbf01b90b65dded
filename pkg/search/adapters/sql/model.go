package sql

import (
	"time"

	"github.com/hashicorp-forge/searchdispatch/pkg/search"
)

// CatalogRecord is a row of the records table.
type CatalogRecord struct {
	ID      string `gorm:"primaryKey;type:varchar(255)" json:"id"`
	WorkKey string `gorm:"type:varchar(255);index:idx_catalog_records_work_key" json:"workKey,omitempty"`
	Title   string `gorm:"type:varchar(1000)" json:"title"`
	Body    string `gorm:"type:text" json:"body,omitempty"`

	// Fields holds every other stored field.
	Fields map[string]any `gorm:"serializer:json" json:"fields,omitempty"`

	LastModified *time.Time `gorm:"index:idx_catalog_records_last_modified" json:"lastModified,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName specifies the table name.
func (CatalogRecord) TableName() string {
	return "catalog_records"
}

// filterColumns are the columns "column:value" filters may name.
var filterColumns = map[string]string{
	"id":       "id",
	"work_key": "work_key",
	"title":    "title",
}

// toDocument converts the row to a full record owned by source.
func (r *CatalogRecord) toDocument(source string) *search.Document {
	fields := make(map[string]any, len(r.Fields)+4)
	for k, v := range r.Fields {
		fields[k] = v
	}
	fields["title"] = r.Title
	if r.Body != "" {
		fields["body"] = r.Body
	}
	if r.WorkKey != "" {
		fields["work_key"] = r.WorkKey
	}
	if r.LastModified != nil {
		fields["last_modified"] = r.LastModified.UTC().Format(time.RFC3339)
	}
	return &search.Document{ID: r.ID, Source: source, Fields: fields}
}
