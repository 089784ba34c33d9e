package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bookstore/services/books/internal/books"
	"github.com/bookstore/services/books/internal/db"
	"github.com/bookstore/services/books/internal/metrics"
	"github.com/bookstore/services/books/internal/repo"
	"github.com/bookstore/services/books/internal/requestid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	testBookJSON    = `{"title": "Test Book", "author": "Test Author", "date_published": "2024-06-24", "cover_image": "http://example.com/cover.jpg"}`
	updatedBookJSON = `{"title": "Updated Book", "author": "Updated Author", "date_published": "2023-02-01", "cover_image": "http://example.com/updated_cover.jpg"}`
)

type bookResponse struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	DatePublished string `json:"date_published"`
	CoverImage    string `json:"cover_image"`
}

func setupServer(t *testing.T, opts Options, checks ...HealthCheck) (*Server, http.Handler) {
	database, err := db.Connect("sqlite://")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.RunMigrations(database))

	log := zaptest.NewLogger(t)
	svc := books.NewService(repo.NewBookRepository(database, log), log)
	s := New(svc, log, opts, checks...)
	return s, s.Handler()
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func createBook(t *testing.T, h http.Handler, body string) bookResponse {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/books/", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[bookResponse](t, rec)
}

func TestRoot(t *testing.T) {
	_, h := setupServer(t, Options{})

	rec := do(t, h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, map[string]string{"message": "Swift API REST"}, decode[map[string]string](t, rec))
}

func TestPing(t *testing.T) {
	_, h := setupServer(t, Options{})

	rec := do(t, h, http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PONG", decode[string](t, rec))
}

func TestCreateBook(t *testing.T) {
	_, h := setupServer(t, Options{})

	book := createBook(t, h, testBookJSON)
	assert.NotZero(t, book.ID)
	assert.Equal(t, "Test Book", book.Title)
	assert.Equal(t, "Test Author", book.Author)
	assert.Equal(t, "2024-06-24", book.DatePublished)
	assert.Equal(t, "http://example.com/cover.jpg", book.CoverImage)
}

func TestCreateBookAcceptsAnyCalendarDate(t *testing.T) {
	_, h := setupServer(t, Options{})

	book := createBook(t, h, `{"title": "T", "author": "A", "date_published": "0001-01-01", "cover_image": ""}`)
	assert.Equal(t, "0001-01-01", book.DatePublished)

	rec := do(t, h, http.MethodGet, fmt.Sprintf("/books/%d", book.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0001-01-01", decode[bookResponse](t, rec).DatePublished)
}

func TestCreateBookAcceptsLongText(t *testing.T) {
	_, h := setupServer(t, Options{})
	title := strings.Repeat("t", 300)
	author := strings.Repeat("a", 300)

	book := createBook(t, h, fmt.Sprintf(`{"title": %q, "author": %q, "date_published": "2024-06-24", "cover_image": ""}`, title, author))
	assert.Equal(t, title, book.Title)
	assert.Equal(t, author, book.Author)
}

func TestCreateBookIgnoresClientID(t *testing.T) {
	_, h := setupServer(t, Options{})

	book := createBook(t, h, `{"id": 1099, "title": "T", "author": "A", "date_published": "2020-01-01", "cover_image": ""}`)
	assert.NotEqual(t, int64(1099), book.ID)
	assert.Equal(t, "", book.CoverImage)
}

func TestReadBooks(t *testing.T) {
	_, h := setupServer(t, Options{})
	createBook(t, h, testBookJSON)

	rec := do(t, h, http.MethodGet, "/books/", "")
	require.Equal(t, http.StatusOK, rec.Code)

	list := decode[[]bookResponse](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "Test Book", list[0].Title)
}

func TestReadBooksEmptyIsArray(t *testing.T) {
	_, h := setupServer(t, Options{})

	rec := do(t, h, http.MethodGet, "/books/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestReadBooksPaging(t *testing.T) {
	_, h := setupServer(t, Options{})
	var ids []int64
	for i := 0; i < 5; i++ {
		body := fmt.Sprintf(`{"title": "Book %d", "author": "A", "date_published": "2020-01-01", "cover_image": ""}`, i)
		ids = append(ids, createBook(t, h, body).ID)
	}

	tests := []struct {
		name  string
		query string
		want  []int64
	}{
		{"defaults", "", ids},
		{"skip", "?skip=3", ids[3:]},
		{"limit", "?limit=2", ids[:2]},
		{"window", "?skip=1&limit=2", ids[1:3]},
		{"past end", "?skip=10", []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, "/books/"+tt.query, "")
			require.Equal(t, http.StatusOK, rec.Code)

			got := []int64{}
			for _, b := range decode[[]bookResponse](t, rec) {
				got = append(got, b.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadBooksRejectsBadPaging(t *testing.T) {
	_, h := setupServer(t, Options{})

	for _, query := range []string{"?skip=-1", "?limit=0", "?limit=abc", "?skip=1.5"} {
		t.Run(query, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, "/books/"+query, "")
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Contains(t, rec.Body.String(), "detail")
		})
	}
}

func TestReadBook(t *testing.T) {
	_, h := setupServer(t, Options{})
	created := createBook(t, h, testBookJSON)

	rec := do(t, h, http.MethodGet, fmt.Sprintf("/books/%d", created.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created, decode[bookResponse](t, rec))
}

func TestUpdateBook(t *testing.T) {
	_, h := setupServer(t, Options{})
	created := createBook(t, h, testBookJSON)

	rec := do(t, h, http.MethodPut, fmt.Sprintf("/books/%d", created.ID), updatedBookJSON)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	book := decode[bookResponse](t, rec)
	assert.Equal(t, created.ID, book.ID)
	assert.Equal(t, "Updated Book", book.Title)
	assert.Equal(t, "Updated Author", book.Author)
	assert.Equal(t, "2023-02-01", book.DatePublished)
	assert.Equal(t, "http://example.com/updated_cover.jpg", book.CoverImage)
}

func TestDeleteBook(t *testing.T) {
	_, h := setupServer(t, Options{})
	created := createBook(t, h, testBookJSON)
	path := fmt.Sprintf("/books/%d", created.ID)

	rec := do(t, h, http.MethodDelete, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created, decode[bookResponse](t, rec))

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		rec = do(t, h, method, path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, method)
		assert.JSONEq(t, `{"detail": "Book not found"}`, rec.Body.String())
	}

	rec = do(t, h, http.MethodPut, path, updatedBookJSON)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBookLifecycle(t *testing.T) {
	_, h := setupServer(t, Options{})

	created := createBook(t, h, testBookJSON)
	path := fmt.Sprintf("/books/%d", created.ID)

	rec := do(t, h, http.MethodGet, "/books/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []bookResponse{created}, decode[[]bookResponse](t, rec))

	rec = do(t, h, http.MethodPut, path, updatedBookJSON)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[bookResponse](t, rec)
	assert.Equal(t, bookResponse{
		ID:            created.ID,
		Title:         "Updated Book",
		Author:        "Updated Author",
		DatePublished: "2023-02-01",
		CoverImage:    "http://example.com/updated_cover.jpg",
	}, updated)

	rec = do(t, h, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, updated, decode[bookResponse](t, rec))

	rec = do(t, h, http.MethodDelete, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, updated, decode[bookResponse](t, rec))

	rec = do(t, h, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail": "Book not found"}`, rec.Body.String())
}

func TestAbsentBookIsNotFound(t *testing.T) {
	_, h := setupServer(t, Options{})

	tests := []struct {
		method string
		body   string
	}{
		{http.MethodGet, ""},
		{http.MethodPut, testBookJSON},
		{http.MethodDelete, ""},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			rec := do(t, h, tt.method, "/books/1099", tt.body)
			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.JSONEq(t, `{"detail": "Book not found"}`, rec.Body.String())
		})
	}
}

func TestInvalidID(t *testing.T) {
	_, h := setupServer(t, Options{})

	rec := do(t, h, http.MethodGet, "/books/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"detail": "invalid id parameter"}`, rec.Body.String())
}

func TestCreateBookRejectsBadBodies(t *testing.T) {
	_, h := setupServer(t, Options{})

	tests := []struct {
		name   string
		body   string
		status int
		field  string
	}{
		{"malformed", `{"title": `, http.StatusBadRequest, ""},
		{"empty", "", http.StatusBadRequest, ""},
		{"wrong type", `{"title": 1}`, http.StatusBadRequest, ""},
		{"bad date", `{"title": "T", "author": "A", "date_published": "24/06/2024", "cover_image": ""}`, http.StatusBadRequest, ""},
		{"two values", testBookJSON + testBookJSON, http.StatusBadRequest, ""},
		{"missing title", `{"author": "A", "date_published": "2024-06-24", "cover_image": ""}`, http.StatusUnprocessableEntity, "title"},
		{"blank author", `{"title": "T", "author": "  ", "date_published": "2024-06-24", "cover_image": ""}`, http.StatusUnprocessableEntity, "author"},
		{"missing date", `{"title": "T", "author": "A", "cover_image": ""}`, http.StatusUnprocessableEntity, "date_published"},
		{"missing cover", `{"title": "T", "author": "A", "date_published": "2024-06-24"}`, http.StatusUnprocessableEntity, "cover_image"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/books/", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())

			if tt.field != "" {
				body := decode[map[string]map[string]string](t, rec)
				assert.Contains(t, body["detail"], tt.field)
			}
		})
	}

	rec := do(t, h, http.MethodGet, "/books/", "")
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestRejectedUpdateLeavesBookUnchanged(t *testing.T) {
	_, h := setupServer(t, Options{})
	created := createBook(t, h, testBookJSON)
	path := fmt.Sprintf("/books/%d", created.ID)

	rec := do(t, h, http.MethodPut, path, `{"title": "Only a title"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, h, http.MethodGet, path, "")
	assert.Equal(t, created, decode[bookResponse](t, rec))
}

func TestUnknownRoutes(t *testing.T) {
	_, h := setupServer(t, Options{})

	rec := do(t, h, http.MethodGet, "/authors/", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail": "Not Found"}`, rec.Body.String())

	rec = do(t, h, http.MethodPatch, "/books/1", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = do(t, h, http.MethodGet, "/books", "")
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/books/", rec.Header().Get("Location"))
}

func TestHealthz(t *testing.T) {
	var failing error
	_, h := setupServer(t, Options{}, HealthCheck{
		Name: "database",
		Check: func(context.Context) error {
			return failing
		},
	})

	rec := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok", "checks": {"database": "ok"}}`, rec.Body.String())

	failing = errors.New("connection refused")
	rec = do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status": "unavailable", "checks": {"database": "unavailable"}}`, rec.Body.String())
}

func TestRequestID(t *testing.T) {
	s, _ := setupServer(t, Options{})

	var seen string
	h := s.withRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestid.FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestid.Header, "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", rec.Header().Get(requestid.Header))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.NotEqual(t, "req-42", seen)
	assert.Equal(t, seen, rec.Header().Get(requestid.Header))
}

func TestCORS(t *testing.T) {
	_, h := setupServer(t, Options{CORSOrigins: []string{"http://localhost:4200"}})

	req := httptest.NewRequest(http.MethodOptions, "/books/", nil)
	req.Header.Set("Origin", "http://localhost:4200")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:4200", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	assert.Equal(t, "content-type", rec.Header().Get("Access-Control-Allow-Headers"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	_, h := setupServer(t, Options{RateLimitRPS: 0.001, RateLimitBurst: 2})

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/ping", "").Code)
	}

	rec := do(t, h, http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "198.51.100.7:4000"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecoverPanic(t *testing.T) {
	s, _ := setupServer(t, Options{})

	h := s.recoverPanic(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "close", rec.Header().Get("Connection"))
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	_, h := setupServer(t, Options{Metrics: m})

	createBook(t, h, testBookJSON)
	do(t, h, http.MethodGet, "/books/1099", "")

	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `books_http_requests_total{method="POST",route="/books/",status="200"} 1`)
	assert.Contains(t, body, `books_http_requests_total{method="GET",route="/books/:id",status="404"} 1`)
}

func TestOpenAPI(t *testing.T) {
	s, h := setupServer(t, Options{Version: "2.1.0"})

	doc := s.OpenAPI()
	require.NoError(t, doc.Validate(context.Background()))
	assert.Equal(t, "2.1.0", doc.Info.Version)

	operations := map[string]string{}
	for path, item := range doc.Paths.Map() {
		for method, op := range item.Operations() {
			operations[op.OperationID] = method + " " + path
		}
	}
	assert.Equal(t, map[string]string{
		"get_root":    "GET /",
		"ping":        "GET /ping",
		"healthz":     "GET /healthz",
		"create_book": "POST /books/",
		"read_books":  "GET /books/",
		"read_book":   "GET /books/{id}",
		"update_book": "PUT /books/{id}",
		"delete_book": "DELETE /books/{id}",
	}, operations)

	rec := do(t, h, http.MethodGet, "/openapi.json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.Contains(rec.Body.Bytes(), []byte(`"operationId":"read_books"`)))
}

func TestOpenAPIPath(t *testing.T) {
	assert.Equal(t, "/books/{id}", openAPIPath("/books/:id"))
	assert.Equal(t, "/books/", openAPIPath("/books/"))
	assert.Equal(t, "/", openAPIPath("/"))
}
