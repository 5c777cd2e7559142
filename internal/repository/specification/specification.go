package specification

import "gorm.io/gorm"

// Specification defines the interface for query specifications
type Specification interface {
	Apply(db *gorm.DB) *gorm.DB
}

// RunFilter is the in-memory counterpart of a specification, so the same
// query can be answered without a database.
type RunFilter interface {
	Match(pipeline, status string) bool
}
