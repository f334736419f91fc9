package db

import "gorm.io/gorm"

const (
	maxPageSize     = 200
	defaultPageSize = 50
)

// Pagination selects a 1-based page of a listing
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// Bounds normalises the page values and returns the matching offset and limit
func (p *Pagination) Bounds() (offset int, limit int) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = defaultPageSize
	} else if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
	return (p.Page - 1) * p.PageSize, p.PageSize
}

// Paginate is a gorm scope applying the page bounds to a query
func Paginate(p *Pagination) func(tx *gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		offset, limit := p.Bounds()
		return tx.Offset(offset).Limit(limit)
	}
}
