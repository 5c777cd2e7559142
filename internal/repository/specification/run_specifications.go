package specification

import (
	"gorm.io/gorm"
)

// ByPipeline filters runs of one pipeline
type ByPipeline struct {
	Name string
}

func (s ByPipeline) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("pipeline = ?", s.Name)
}

func (s ByPipeline) Match(pipeline, _ string) bool {
	return pipeline == s.Name
}

// ByStatus filters runs by outcome
type ByStatus struct {
	Status string
}

func (s ByStatus) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", s.Status)
}

func (s ByStatus) Match(_, status string) bool {
	return status == s.Status
}

// NewestFirst orders by start time descending
type NewestFirst struct{}

func (s NewestFirst) Apply(db *gorm.DB) *gorm.DB {
	return db.Order("started_at DESC")
}

// Limit caps the number of rows
type Limit struct {
	N int
}

func (s Limit) Apply(db *gorm.DB) *gorm.DB {
	return db.Limit(s.N)
}
