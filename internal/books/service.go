// Package books implements the lifecycle of book records: creation with a
// freshly assigned identity, full-replace updates and deletion, each guarded
// by an existence check against the store.
package books

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bookstore/services/books/internal/db"
	"github.com/bookstore/services/books/internal/repo"
	"github.com/bookstore/services/books/internal/requestid"
	"go.uber.org/zap"
)

// ErrNotFound is returned when the requested id has no live book.
var ErrNotFound = errors.New("book not found")

const (
	OperationCreate = "create"
	OperationList   = "list"
	OperationGet    = "get"
	OperationUpdate = "update"
	OperationDelete = "delete"

	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"

	publishTimeout = 10 * time.Second
)

// Store is the storage the service runs on. Absence is reported as repo.ErrBookNotFound.
type Store interface {
	Insert(ctx context.Context, book *db.Book) error
	Get(ctx context.Context, id int64) (*db.Book, error)
	List(ctx context.Context, offset, limit int) ([]*db.Book, error)
	Update(ctx context.Context, id int64, fields db.BookFields) (*db.Book, error)
	Delete(ctx context.Context, id int64) (*db.Book, error)
}

// Publisher announces changes to books.
type Publisher interface {
	PublishBookCreated(ctx context.Context, book *db.Book) error
	PublishBookUpdated(ctx context.Context, book *db.Book) error
	PublishBookDeleted(ctx context.Context, book *db.Book) error
}

// Recorder counts lifecycle operations by outcome.
type Recorder interface {
	ObserveOperation(operation, outcome string)
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher makes the service publish an event after every successful mutation.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithRecorder makes the service report every operation to r.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// Service is the book lifecycle service
type Service struct {
	store     Store
	publisher Publisher
	recorder  Recorder
	log       *zap.Logger

	pending sync.WaitGroup
}

// NewService creates a lifecycle service over store
func NewService(store Store, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store: store,
		log:   log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new book and returns it with its assigned id
func (s *Service) Create(ctx context.Context, in Input) (*db.Book, error) {
	book := db.NewBook(in.fields())
	if err := s.store.Insert(ctx, book); err != nil {
		s.observe(OperationCreate, err)
		return nil, err
	}
	s.observe(OperationCreate, nil)

	s.log.Info("Book created", zap.Int64("id", book.ID), zap.String("title", book.Title))
	s.publish(ctx, OperationCreate, book)
	return book, nil
}

// List returns a page of books in insertion order
func (s *Service) List(ctx context.Context, params ListParams) ([]*db.Book, error) {
	params = params.withDefaults()

	books, err := s.store.List(ctx, params.Offset, params.Limit)
	s.observe(OperationList, err)
	if err != nil {
		return nil, err
	}
	return books, nil
}

// Get returns the book with the given id
func (s *Service) Get(ctx context.Context, id int64) (*db.Book, error) {
	book, err := s.store.Get(ctx, id)
	s.observe(OperationGet, err)
	if err != nil {
		return nil, translate(err, id)
	}
	return book, nil
}

// Update replaces every field of an existing book, keeping its id
func (s *Service) Update(ctx context.Context, id int64, in Input) (*db.Book, error) {
	book, err := s.store.Update(ctx, id, in.fields())
	s.observe(OperationUpdate, err)
	if err != nil {
		return nil, translate(err, id)
	}

	s.log.Info("Book updated", zap.Int64("id", book.ID))
	s.publish(ctx, OperationUpdate, book)
	return book, nil
}

// Delete removes a book and returns it as it was before removal
func (s *Service) Delete(ctx context.Context, id int64) (*db.Book, error) {
	book, err := s.store.Delete(ctx, id)
	s.observe(OperationDelete, err)
	if err != nil {
		return nil, translate(err, id)
	}

	s.log.Info("Book deleted", zap.Int64("id", book.ID))
	s.publish(ctx, OperationDelete, book)
	return book, nil
}

// Wait blocks until every event publication started so far has finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

func translate(err error, id int64) error {
	if errors.Is(err, repo.ErrBookNotFound) {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return err
}

func (s *Service) observe(operation string, err error) {
	if s.recorder == nil {
		return
	}

	outcome := OutcomeOK
	switch {
	case errors.Is(err, repo.ErrBookNotFound):
		outcome = OutcomeNotFound
	case err != nil:
		outcome = OutcomeError
		s.log.Error("Book operation failed", zap.String("operation", operation), zap.Error(err))
	}
	s.recorder.ObserveOperation(operation, outcome)
}

// publish sends the event in the background; a failed publication never fails the request.
func (s *Service) publish(ctx context.Context, operation string, book *db.Book) {
	if s.publisher == nil {
		return
	}

	snapshot := *book
	correlationID := requestid.FromContext(ctx)

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		eventCtx, cancel := context.WithTimeout(requestid.NewContext(context.Background(), correlationID), publishTimeout)
		defer cancel()

		var err error
		switch operation {
		case OperationCreate:
			err = s.publisher.PublishBookCreated(eventCtx, &snapshot)
		case OperationUpdate:
			err = s.publisher.PublishBookUpdated(eventCtx, &snapshot)
		case OperationDelete:
			err = s.publisher.PublishBookDeleted(eventCtx, &snapshot)
		}
		if err != nil {
			s.log.Error("Failed to publish book event",
				zap.String("operation", operation),
				zap.Int64("id", snapshot.ID),
				zap.Error(err),
			)
		}
	}()
}
