package books

import (
	"github.com/bookstore/services/books/internal/db"
	"github.com/bookstore/services/books/internal/validator"
)

const (
	DefaultOffset = 0
	DefaultLimit  = 100
)

// Input is the full set of caller-supplied book fields for Create and Update.
// Update is a full replace, so every field is required in both cases.
type Input struct {
	Title         string
	Author        string
	DatePublished db.Date
	CoverImage    string
}

func (in Input) fields() db.BookFields {
	return db.BookFields{
		Title:         in.Title,
		Author:        in.Author,
		DatePublished: in.DatePublished,
		CoverImage:    in.CoverImage,
	}
}

// ValidateInput records every field of in that breaks the Input invariants.
func ValidateInput(v *validator.Validator, in Input) {
	v.Check(validator.NotBlank(in.Title), "title", "must not be blank")
	v.Check(validator.NotBlank(in.Author), "author", "must not be blank")
}

// ListParams selects a page of books. A zero Limit means DefaultLimit.
type ListParams struct {
	Offset int
	Limit  int
}

func (p ListParams) withDefaults() ListParams {
	if p.Limit == 0 {
		p.Limit = DefaultLimit
	}
	return p
}
