package main

import (
	"strings"

	"gorm.io/gorm"
)

type SortType string

const (
	SortTypeAscending  SortType = "asc"
	SortTypeDescending SortType = "desc"
)

func (s SortType) ToString() string {
	return strings.ToUpper(string(s))
}

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// ListOptions controls paging and ordering of list queries.
type ListOptions struct {
	Offset uint32    `json:"offset,omitempty"`
	Limit  uint32    `json:"limit,omitempty"`
	Sort   *SortType `json:"sort,omitempty"` // Optional sort type (asc/desc)
}

func applyListOptions(db *gorm.DB, sortBy string, defaultSort SortType, options *ListOptions) *gorm.DB {
	sort := defaultSort
	offset := 0
	limit := DefaultLimit
	if options != nil {
		if options.Sort != nil {
			sort = *options.Sort
		}
		offset = int(options.Offset)
		if options.Limit > 0 {
			limit = int(options.Limit)
		}
		if limit > MaxLimit {
			limit = MaxLimit
		}
	}
	return db.Order(sortBy + " " + sort.ToString()).Offset(offset).Limit(limit)
}
