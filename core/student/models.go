package student

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
)

// MaxOpenLoans caps how many library books a student may hold at once.
const MaxOpenLoans = 3

type Student struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Email          string      `json:"email"`
	Phone          string      `json:"phone,omitempty"`
	Address        string      `json:"address,omitempty"`
	DOB            null.Time   `json:"dob,omitempty"`
	Gender         string      `json:"gender,omitempty"`
	ClassID        null.String `json:"class"`
	IssuedBooks    []string    `json:"issued_books"`
	LibraryPenalty int         `json:"library_penalty"` // whole days overdue; only ever grows
	Scorecards     []string    `json:"scorecards"`
	TotalScore     int         `json:"total_score"`
	RegisteredBy   string      `json:"registered_by,omitempty"`
	CreatedAt      time.Time   `json:"created_at"` // UTC
	UpdatedAt      time.Time   `json:"updated_at"` // UTC
}

// Enrolled reports whether the student belongs to a class.
func (s *Student) Enrolled() bool { return s.ClassID.Valid }

// HasBook reports whether the student currently holds the given book.
func (s *Student) HasBook(bookID string) bool {
	for _, id := range s.IssuedBooks {
		if id == bookID {
			return true
		}
	}
	return false
}

// AverageScore is TotalScore over the number of scorecards; 0 without scorecards.
func (s *Student) AverageScore() float64 {
	if len(s.Scorecards) == 0 {
		return 0
	}
	return float64(s.TotalScore) / float64(len(s.Scorecards))
}

// NewStudent contains information needed to register a new Student and their account.
type NewStudent struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	IsAdmin         bool   `json:"is_admin"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	return validate.Struct(ns)
}

// UpdateProfile defines what a student may change on their own record.
type UpdateProfile struct {
	Name    string    `json:"name" validate:"required"`
	Phone   string    `json:"phone" validate:"required"`
	Address string    `json:"address" validate:"required"`
	DOB     null.Time `json:"dob"`
	Gender  string    `json:"gender" validate:"required"`
}

func (up *UpdateProfile) Validate(validate *validator.Validate) error {
	up.Name = core.CleanString(up.Name)
	up.Phone = core.CleanString(up.Phone)
	up.Address = core.CleanString(up.Address)
	up.Gender = core.CleanString(up.Gender, true /* lower */)
	return validate.Struct(up)
}
