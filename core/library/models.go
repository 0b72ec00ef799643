package library

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
)

// LoanPeriod is how long a book may be held before it is overdue.
const LoanPeriod = 30 * 24 * time.Hour

const msPerDay = 24 * 60 * 60 * 1000

// Loan is an open checkout of one copy of a book by a student.
type Loan struct {
	StudentID string    `json:"student"`
	IssueDate time.Time `json:"issue_date"` // UTC
	DueDate   time.Time `json:"due_date"`   // UTC
}

// Overdue reports whether the loan is past due at the given time.
func (l *Loan) Overdue(now time.Time) bool { return now.After(l.DueDate) }

// PenaltyDays is the number of whole days the loan is past due at the given
// time; partial days do not count.
func (l *Loan) PenaltyDays(now time.Time) int {
	if !l.Overdue(now) {
		return 0
	}
	return int(now.Sub(l.DueDate).Milliseconds() / msPerDay)
}

type Book struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Quantity  int       `json:"quantity"` // copies on the shelf, excludes open loans
	Price     int       `json:"price,omitempty"`
	Loans     []Loan    `json:"loans"`
	AddedBy   string    `json:"added_by,omitempty"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// Available reports whether a copy is on the shelf.
func (b *Book) Available() bool { return b.Quantity > 0 }

// LoanFor returns the student's open loan, if any.
func (b *Book) LoanFor(studentID string) (Loan, bool) {
	for _, l := range b.Loans {
		if l.StudentID == studentID {
			return l, true
		}
	}
	return Loan{}, false
}

// OverdueLoans returns the book's loans that are past due at the given time.
func (b *Book) OverdueLoans(now time.Time) []Loan {
	var overdue []Loan
	for _, l := range b.Loans {
		if l.Overdue(now) {
			overdue = append(overdue, l)
		}
	}
	return overdue
}

// NewBook contains information needed to add a new Book to the catalog.
type NewBook struct {
	Title    string `json:"title" validate:"required"`
	Author   string `json:"author" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,gte=1"`
	Price    int    `json:"price" validate:"omitempty,gte=0"`
}

func (nb *NewBook) Validate(validate *validator.Validate) error {
	nb.Title = core.CleanString(nb.Title)
	nb.Author = core.CleanString(nb.Author)
	return validate.Struct(nb)
}

// UpdateBook defines what may be changed on an existing Book. Unset fields
// are left as they are.
type UpdateBook struct {
	Title    null.String `json:"title"`
	Author   null.String `json:"author"`
	Quantity null.Int    `json:"quantity" validate:"omitempty,gte=0"`
	Price    null.Int    `json:"price" validate:"omitempty,gte=0"`
}

func (ub *UpdateBook) Validate(validate *validator.Validate) error {
	if ub.Title.Valid {
		ub.Title.String = core.CleanString(ub.Title.String)
		if ub.Title.String == "" {
			err := errors.New("title cannot be blank")
			return core.NewValidationError(err, core.FieldError{Field: "title", Error: err.Error()})
		}
	}
	if ub.Author.Valid {
		ub.Author.String = core.CleanString(ub.Author.String)
		if ub.Author.String == "" {
			err := errors.New("author cannot be blank")
			return core.NewValidationError(err, core.FieldError{Field: "author", Error: err.Error()})
		}
	}
	return validate.Struct(ub)
}
