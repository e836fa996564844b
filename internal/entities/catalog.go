package entities

import (
	"strings"
	"time"
)

type Category string

const (
	CategoryMystery  Category = "mystery"
	CategoryHistory  Category = "history"
	CategorySciFi    Category = "sci-fi"
	CategoryFiction  Category = "fiction"
	CategoryAction   Category = "action"
	CategoryDrama    Category = "drama"
	CategoryHorror   Category = "horror"
	CategoryThriller Category = "thriller"
)

// Categories lists every category a book may be filed under, in display order.
var Categories = []Category{
	CategoryMystery,
	CategoryHistory,
	CategorySciFi,
	CategoryFiction,
	CategoryAction,
	CategoryDrama,
	CategoryHorror,
	CategoryThriller,
}

// ParseCategory normalizes raw input and reports whether it names a known category.
func ParseCategory(raw string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Categories {
		if c == known {
			return c, true
		}
	}
	return "", false
}

type Author struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:100" json:"username"`
	Email        string    `gorm:"uniqueIndex;size:255" json:"email"`
	PasswordHash string    `gorm:"size:255" json:"-"`
	Books        []Book    `gorm:"foreignKey:AuthorID" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:100" json:"username"`
	Email        string    `gorm:"uniqueIndex;size:255" json:"email"`
	PasswordHash string    `gorm:"size:255" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Book struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"uniqueIndex;size:512" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Category    Category  `gorm:"index;size:20" json:"category"`
	Price       int64     `json:"price"` // Minor currency units; 0 for free books
	IsFree      bool      `json:"is_free"`
	AuthorID    uint      `gorm:"index" json:"author_id"`
	Author      Author    `gorm:"foreignKey:AuthorID" json:"-"`
	ImageKey    string    `gorm:"size:1024" json:"-"` // Blob store key of the cover image
	PDFKey      string    `gorm:"size:1024" json:"-"` // Blob store key of the book PDF
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RequiresPayment reports whether downloading the book needs a confirmed purchase.
func (b *Book) RequiresPayment() bool {
	return !b.IsFree
}
