package purchase

import (
	"fmt"
	"strings"

	"github.com/mrlokans/ebookstore/internal/entities"
)

// Descriptor is what a purchase call returns to the client: a message plus
// the follow-up URLs that apply to the current state.
type Descriptor struct {
	Message string `json:"message"`
	Title   string `json:"title,omitempty"`
	URL     string `json:"url,omitempty"`
	PDF     string `json:"pdf,omitempty"`
	Image   string `json:"image,omitempty"`
	State   State  `json:"state"`
}

// Links builds absolute URLs for the public routes.
type Links struct {
	BaseURL string
}

func (l Links) BookPDF(bookID uint) string   { return l.join("get-book-pdf", bookID) }
func (l Links) BookImage(bookID uint) string { return l.join("get-book-image", bookID) }
func (l Links) ProcessPayment(bookID uint) string {
	return l.join("process-payment", bookID)
}
func (l Links) PurchaseBook(bookID uint) string { return l.join("purchase-book", bookID) }

func (l Links) join(route string, id uint) string {
	return fmt.Sprintf("%s/%s/%d", strings.TrimRight(l.BaseURL, "/"), route, id)
}

func (l Links) free(book *entities.Book) *Descriptor {
	return &Descriptor{
		Message: "This book is free",
		Title:   book.Title,
		PDF:     l.BookPDF(book.ID),
		Image:   l.BookImage(book.ID),
		State:   StateVerified,
	}
}

func (l Links) purchased(book *entities.Book) *Descriptor {
	return &Descriptor{
		Message: "You have purchased this book",
		Title:   book.Title,
		PDF:     l.BookPDF(book.ID),
		Image:   l.BookImage(book.ID),
		State:   StateVerified,
	}
}

func (l Links) awaitingPayment(book *entities.Book) *Descriptor {
	return &Descriptor{
		Message: "Post your card_number, card_expiration_month, and card_expiration_year to the url",
		Title:   book.Title,
		URL:     l.ProcessPayment(book.ID),
		State:   StateIntentPending,
	}
}

func (l Links) awaitingReconciliation(book *entities.Book) *Descriptor {
	return &Descriptor{
		Message: "Your payment was received and the purchase is being finalised, check back shortly",
		Title:   book.Title,
		URL:     l.PurchaseBook(book.ID),
		State:   StateAwaitingReconciliation,
	}
}

func (l Links) paid(book *entities.Book) *Descriptor {
	return &Descriptor{
		Message: "Payment was successful, return back to the url",
		Title:   book.Title,
		URL:     l.PurchaseBook(book.ID),
		State:   StateVerified,
	}
}
