package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/bookstore/services/books/internal/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrBookNotFound is returned when no live book has the requested id
var ErrBookNotFound = errors.New("book not found")

// BookRepository stores books in the books table
type BookRepository struct {
	db  *db.DB
	log *zap.Logger
}

// NewBookRepository creates a new book repository
func NewBookRepository(database *db.DB, logger *zap.Logger) *BookRepository {
	return &BookRepository{
		db:  database,
		log: logger,
	}
}

// Insert persists a new book and writes the assigned id back into it
func (r *BookRepository) Insert(ctx context.Context, book *db.Book) error {
	book.ID = 0
	if err := r.db.WithContext(ctx).Create(book).Error; err != nil {
		r.log.Error("Failed to insert book", zap.String("title", book.Title), zap.Error(err))
		return fmt.Errorf("failed to insert book: %w", err)
	}

	r.log.Debug("Book inserted", zap.Int64("id", book.ID))
	return nil
}

// Get retrieves a book by id
func (r *BookRepository) Get(ctx context.Context, id int64) (*db.Book, error) {
	return r.first(r.db.WithContext(ctx), id)
}

func (r *BookRepository) first(tx *gorm.DB, id int64) (*db.Book, error) {
	var book db.Book
	err := tx.Where("id = ?", id).First(&book).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		r.log.Error("Failed to get book", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get book %d: %w", id, err)
	}

	return &book, nil
}

// List returns up to limit books in insertion order after skipping offset of them
func (r *BookRepository) List(ctx context.Context, offset, limit int) ([]*db.Book, error) {
	books := make([]*db.Book, 0)
	err := r.db.WithContext(ctx).
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&books).Error
	if err != nil {
		r.log.Error("Failed to list books", zap.Int("offset", offset), zap.Int("limit", limit), zap.Error(err))
		return nil, fmt.Errorf("failed to list books: %w", err)
	}

	return books, nil
}

// Update replaces every field of an existing book. Nothing is written when the book does not exist.
func (r *BookRepository) Update(ctx context.Context, id int64, fields db.BookFields) (*db.Book, error) {
	var updated *db.Book
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		book, err := r.first(tx, id)
		if err != nil {
			return err
		}

		book.Apply(fields)
		if err := tx.Save(book).Error; err != nil {
			r.log.Error("Failed to update book", zap.Int64("id", id), zap.Error(err))
			return fmt.Errorf("failed to update book %d: %w", id, err)
		}

		updated = book
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.log.Debug("Book updated", zap.Int64("id", id))
	return updated, nil
}

// Delete removes a book and returns it as it was before removal
func (r *BookRepository) Delete(ctx context.Context, id int64) (*db.Book, error) {
	var removed *db.Book
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		book, err := r.first(tx, id)
		if err != nil {
			return err
		}

		result := tx.Delete(&db.Book{}, id)
		if result.Error != nil {
			r.log.Error("Failed to delete book", zap.Int64("id", id), zap.Error(result.Error))
			return fmt.Errorf("failed to delete book %d: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrBookNotFound
		}

		removed = book
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.log.Debug("Book deleted", zap.Int64("id", id))
	return removed, nil
}

// Count returns the number of stored books
func (r *BookRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&db.Book{}).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to count books: %w", err)
	}
	return total, nil
}
