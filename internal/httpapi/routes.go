package httpapi

import (
	"net/http"
)

type responseKind int

const (
	responseMessage responseKind = iota
	responsePong
	responseHealth
	responseBook
	responseBooks
)

// route is one API endpoint. name doubles as the OpenAPI operation id so that
// generated clients get short function names.
type route struct {
	name    string
	method  string
	path    string
	tag     string
	summary string

	withID   bool
	withPage bool
	withBody bool
	response responseKind
	notFound bool

	handler http.HandlerFunc
}

// routes lists every endpoint of the API:
//
//	GET    /            health check message
//	GET    /ping        liveness
//	GET    /healthz     dependency health
//	POST   /books/      create a book
//	GET    /books/      list books (skip, limit)
//	GET    /books/:id   read one book
//	PUT    /books/:id   replace a book
//	DELETE /books/:id   delete a book
func (s *Server) routes() []route {
	return []route{
		{
			name: "get_root", method: http.MethodGet, path: "/", tag: "root",
			summary:  "The root endpoint can serve as healthcheck",
			response: responseMessage,
			handler:  s.rootHandler,
		},
		{
			name: "ping", method: http.MethodGet, path: "/ping", tag: "root",
			summary:  "Simple endpoint to test API liveness",
			response: responsePong,
			handler:  s.pingHandler,
		},
		{
			name: "healthz", method: http.MethodGet, path: "/healthz", tag: "root",
			summary:  "Report the health of the service dependencies",
			response: responseHealth,
			handler:  s.healthzHandler,
		},
		{
			name: "create_book", method: http.MethodPost, path: "/books/", tag: "books",
			summary:  "Create a new book with the given details",
			withBody: true,
			response: responseBook,
			handler:  s.createBookHandler,
		},
		{
			name: "read_books", method: http.MethodGet, path: "/books/", tag: "books",
			summary:  "Retrieve a list of books, skipping skip books and returning at most limit",
			withPage: true,
			response: responseBooks,
			handler:  s.listBooksHandler,
		},
		{
			name: "read_book", method: http.MethodGet, path: "/books/:id", tag: "books",
			summary:  "Retrieve a specific book by its id",
			withID:   true,
			response: responseBook,
			notFound: true,
			handler:  s.showBookHandler,
		},
		{
			name: "update_book", method: http.MethodPut, path: "/books/:id", tag: "books",
			summary:  "Replace a book's information given its id",
			withID:   true,
			withBody: true,
			response: responseBook,
			notFound: true,
			handler:  s.updateBookHandler,
		},
		{
			name: "delete_book", method: http.MethodDelete, path: "/books/:id", tag: "books",
			summary:  "Delete a book given its id",
			withID:   true,
			response: responseBook,
			notFound: true,
			handler:  s.deleteBookHandler,
		},
	}
}
