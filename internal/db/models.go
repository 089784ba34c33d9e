package db

// Book represents a book in the books table
type Book struct {
	ID            int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Title         string `gorm:"type:text;not null;index:idx_books_title" json:"title"`
	Author        string `gorm:"type:text;not null;index:idx_books_author" json:"author"`
	DatePublished Date   `gorm:"not null" json:"date_published"`
	CoverImage    string `gorm:"type:text;not null" json:"cover_image"`
}

// BookFields are the caller-supplied fields of a Book, everything except the identity.
type BookFields struct {
	Title         string
	Author        string
	DatePublished Date
	CoverImage    string
}

// TableName specifies the table name for Book model
func (Book) TableName() string {
	return "books"
}

// NewBook returns an unsaved book carrying the given fields.
func NewBook(f BookFields) *Book {
	b := &Book{}
	b.Apply(f)
	return b
}

// Apply replaces every field of the book except its ID.
func (b *Book) Apply(f BookFields) {
	b.Title = f.Title
	b.Author = f.Author
	b.DatePublished = f.DatePublished
	b.CoverImage = f.CoverImage
}

// Fields returns the book's fields without its ID.
func (b *Book) Fields() BookFields {
	return BookFields{
		Title:         b.Title,
		Author:        b.Author,
		DatePublished: b.DatePublished,
		CoverImage:    b.CoverImage,
	}
}
