package httpapi

import (
	"net/http"

	"github.com/bookstore/services/books/internal/requestid"
	"go.uber.org/zap"
)

func (s *Server) logError(r *http.Request, err error) {
	s.log.Error("Request failed",
		zap.String("method", r.Method),
		zap.String("url", r.URL.String()),
		zap.String("request_id", requestid.FromContext(r.Context())),
		zap.Error(err),
	)
}

// errorResponse sends {"detail": message} with the given status.
func (s *Server) errorResponse(w http.ResponseWriter, r *http.Request, status int, message any) {
	err := writeJSON(w, status, map[string]any{"detail": message}, nil)
	if err != nil {
		s.logError(r, err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// serverErrorResponse logs err and sends a generic 500; internals never reach the client.
func (s *Server) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	s.logError(r, err)
	s.errorResponse(w, r, http.StatusInternalServerError, "the server encountered a problem and could not process your request")
}

func (s *Server) notFoundResponse(w http.ResponseWriter, r *http.Request) {
	s.errorResponse(w, r, http.StatusNotFound, "Not Found")
}

func (s *Server) bookNotFoundResponse(w http.ResponseWriter, r *http.Request) {
	s.errorResponse(w, r, http.StatusNotFound, "Book not found")
}

func (s *Server) methodNotAllowedResponse(w http.ResponseWriter, r *http.Request) {
	s.errorResponse(w, r, http.StatusMethodNotAllowed, "the "+r.Method+" method is not supported for this resource")
}

func (s *Server) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	s.errorResponse(w, r, http.StatusBadRequest, err.Error())
}

// failedValidationResponse sends a 422 with the per-field errors.
func (s *Server) failedValidationResponse(w http.ResponseWriter, r *http.Request, errors map[string]string) {
	s.errorResponse(w, r, http.StatusUnprocessableEntity, errors)
}

func (s *Server) rateLimitExceededResponse(w http.ResponseWriter, r *http.Request) {
	s.errorResponse(w, r, http.StatusTooManyRequests, "rate limit exceeded")
}
