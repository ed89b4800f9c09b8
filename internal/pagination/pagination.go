// Package pagination provides offset pagination utilities for list endpoints.
package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// Defaults and caps for list endpoints.
const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// Page describes one page of a result set.
type Page struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// FromQuery parses page/per_page query parameters with defaults and caps.
func FromQuery(c *gin.Context) (page, perPage int) {
	page = atoiDefault(c.Query("page"), 1)
	if page < 1 {
		page = 1
	}
	perPage = atoiDefault(c.Query("per_page"), DefaultPerPage)
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return page, perPage
}

// NewPage computes page metadata for a total row count.
func NewPage(page, perPage, total int) Page {
	totalPages := (total + perPage - 1) / perPage
	if totalPages < 1 {
		totalPages = 1
	}
	return Page{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// Offset returns the row offset for a page.
func Offset(page, perPage int) int {
	return (page - 1) * perPage
}

// Slice applies offset pagination to an in-memory slice.
func Slice[T any](items []T, page, perPage int) []T {
	start := Offset(page, perPage)
	if start >= len(items) {
		return nil
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
