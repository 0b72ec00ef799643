package teacher

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

type Teacher struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Classes      []string  `json:"classes"`
	RegisteredBy string    `json:"registered_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

// AssignedTo reports whether the teacher already holds the given class.
func (t *Teacher) AssignedTo(classID string) bool {
	for _, id := range t.Classes {
		if id == classID {
			return true
		}
	}
	return false
}

// NewTeacher contains information needed to register a new Teacher and their account.
// A teacher may also be granted the librarian or admin capability.
type NewTeacher struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	IsLibrarian     bool   `json:"is_librarian"`
	IsAdmin         bool   `json:"is_admin"`
}

func (nt *NewTeacher) Validate(validate *validator.Validate) error {
	nt.Name = core.CleanString(nt.Name)
	nt.Email = core.CleanString(nt.Email, true /* lower */)
	return validate.Struct(nt)
}
