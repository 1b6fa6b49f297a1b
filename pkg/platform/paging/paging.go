// Package paging parses and applies offset pagination.
package paging

import (
	"strconv"

	dErrors "pension/pkg/domain-errors"
)

const (
	DefaultSize = 20
	MaxSize     = 200
)

// Page selects at most Size rows after skipping Offset rows.
type Page struct {
	Size   int
	Offset int
}

// Default returns the first page of DefaultSize rows.
func Default() Page {
	return Page{Size: DefaultSize}
}

// Unbounded selects every row; used by batch readers.
func Unbounded() Page {
	return Page{Size: 0}
}

// Validate rejects non-positive sizes and negative offsets.
func (p Page) Validate() error {
	if p.Size <= 0 {
		return dErrors.New(dErrors.CodeValidation, "page_size must be positive")
	}
	if p.Offset < 0 {
		return dErrors.New(dErrors.CodeValidation, "offset must not be negative")
	}
	return nil
}

// Parse reads query parameter values. Empty values fall back to defaults.
// Sizes above MaxSize are rejected here; callers inside the process may ask
// for larger pages.
func Parse(size, offset string) (Page, error) {
	p := Default()
	if size != "" {
		n, err := strconv.Atoi(size)
		if err != nil {
			return Page{}, dErrors.New(dErrors.CodeBadRequest, "page_size must be an integer")
		}
		p.Size = n
	}
	if offset != "" {
		n, err := strconv.Atoi(offset)
		if err != nil {
			return Page{}, dErrors.New(dErrors.CodeBadRequest, "offset must be an integer")
		}
		p.Offset = n
	}
	if err := p.Validate(); err != nil {
		return Page{}, err
	}
	if p.Size > MaxSize {
		return Page{}, dErrors.New(dErrors.CodeValidation, "page_size must be at most "+strconv.Itoa(MaxSize))
	}
	return p, nil
}

// Apply slices rows according to p. A zero Size keeps every row after Offset.
func Apply[T any](rows []T, p Page) []T {
	if p.Offset >= len(rows) {
		return []T{}
	}
	rows = rows[p.Offset:]
	if p.Size > 0 && p.Size < len(rows) {
		rows = rows[:p.Size]
	}
	return rows
}
