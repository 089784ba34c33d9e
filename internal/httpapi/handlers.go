package httpapi

import (
	"errors"
	"net/http"

	"github.com/bookstore/services/books/internal/books"
	"github.com/bookstore/services/books/internal/db"
	"github.com/bookstore/services/books/internal/validator"
)

// bookRequest is the body of create and update requests. Pointers tell a
// missing field apart from an empty one.
type bookRequest struct {
	Title         *string  `json:"title"`
	Author        *string  `json:"author"`
	DatePublished *db.Date `json:"date_published"`
	CoverImage    *string  `json:"cover_image"`
}

func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	if err := writeJSON(w, http.StatusOK, map[string]string{"message": rootMessage}, nil); err != nil {
		s.serverErrorResponse(w, r, err)
	}
}

func (s *Server) pingHandler(w http.ResponseWriter, r *http.Request) {
	if err := writeJSON(w, http.StatusOK, "PONG", nil); err != nil {
		s.serverErrorResponse(w, r, err)
	}
}

// healthzHandler runs every configured check and answers 503 if any of them fails.
func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	checks := make(map[string]string, len(s.checks))

	for _, check := range s.checks {
		if err := check.Check(r.Context()); err != nil {
			s.logError(r, err)
			checks[check.Name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[check.Name] = "ok"
	}

	body := map[string]any{"status": "ok", "checks": checks}
	if status != http.StatusOK {
		body["status"] = "unavailable"
	}

	if err := writeJSON(w, status, body, nil); err != nil {
		s.serverErrorResponse(w, r, err)
	}
}

// readBookInput decodes and validates a create or update body, writing the
// error response itself when the body is unusable.
func (s *Server) readBookInput(w http.ResponseWriter, r *http.Request) (books.Input, bool) {
	var req bookRequest
	if err := readJSON(w, r, &req); err != nil {
		s.badRequestResponse(w, r, err)
		return books.Input{}, false
	}

	v := validator.New()
	v.Check(req.Title != nil, "title", "must be provided")
	v.Check(req.Author != nil, "author", "must be provided")
	v.Check(req.DatePublished != nil, "date_published", "must be provided")
	v.Check(req.CoverImage != nil, "cover_image", "must be provided")

	var in books.Input
	if req.Title != nil {
		in.Title = *req.Title
	}
	if req.Author != nil {
		in.Author = *req.Author
	}
	if req.DatePublished != nil {
		in.DatePublished = *req.DatePublished
	}
	if req.CoverImage != nil {
		in.CoverImage = *req.CoverImage
	}

	if books.ValidateInput(v, in); !v.Valid() {
		s.failedValidationResponse(w, r, v.Errors)
		return books.Input{}, false
	}
	return in, true
}

func (s *Server) createBookHandler(w http.ResponseWriter, r *http.Request) {
	in, ok := s.readBookInput(w, r)
	if !ok {
		return
	}

	book, err := s.books.Create(r.Context(), in)
	if err != nil {
		s.serverErrorResponse(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, book, nil); err != nil {
		s.serverErrorResponse(w, r, err)
	}
}

func (s *Server) listBooksHandler(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	v := validator.New()

	params := books.ListParams{
		Offset: readInt(qs, "skip", books.DefaultOffset, v),
		Limit:  readInt(qs, "limit", books.DefaultLimit, v),
	}
	v.Check(params.Offset >= 0, "skip", "must be zero or greater")
	v.Check(params.Limit >= 1, "limit", "must be greater than zero")
	if !v.Valid() {
		s.failedValidationResponse(w, r, v.Errors)
		return
	}

	list, err := s.books.List(r.Context(), params)
	if err != nil {
		s.serverErrorResponse(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, list, nil); err != nil {
		s.serverErrorResponse(w, r, err)
	}
}

func (s *Server) showBookHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r)
	if err != nil {
		s.badRequestResponse(w, r, err)
		return
	}

	book, err := s.books.Get(r.Context(), id)
	if err != nil {
		s.lifecycleErrorResponse(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, book, nil); err != nil {
		s.serverErrorResponse(w, r, err)
	}
}

func (s *Server) updateBookHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r)
	if err != nil {
		s.badRequestResponse(w, r, err)
		return
	}

	in, ok := s.readBookInput(w, r)
	if !ok {
		return
	}

	book, err := s.books.Update(r.Context(), id, in)
	if err != nil {
		s.lifecycleErrorResponse(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, book, nil); err != nil {
		s.serverErrorResponse(w, r, err)
	}
}

func (s *Server) deleteBookHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r)
	if err != nil {
		s.badRequestResponse(w, r, err)
		return
	}

	book, err := s.books.Delete(r.Context(), id)
	if err != nil {
		s.lifecycleErrorResponse(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, book, nil); err != nil {
		s.serverErrorResponse(w, r, err)
	}
}

func (s *Server) lifecycleErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, books.ErrNotFound) {
		s.bookNotFoundResponse(w, r)
		return
	}
	s.serverErrorResponse(w, r, err)
}

func (s *Server) openAPIHandler(w http.ResponseWriter, r *http.Request) {
	if err := writeJSON(w, http.StatusOK, s.openapi, nil); err != nil {
		s.serverErrorResponse(w, r, err)
	}
}
