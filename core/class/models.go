package class

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

// DefaultCapacity is used when a new class does not specify one.
// Capacity is bounded to [20, 100].
const (
	DefaultCapacity = 20
	MinCapacity     = 20
	MaxCapacity     = 100
)

type Class struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Capacity  int       `json:"capacity"`
	Students  []string  `json:"students"`
	Teachers  []string  `json:"teachers"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// Full reports whether the class has reached its capacity.
func (c *Class) Full() bool { return len(c.Students) >= c.Capacity }

// HasStudent reports whether the student is on the class roster.
func (c *Class) HasStudent(studentID string) bool {
	for _, id := range c.Students {
		if id == studentID {
			return true
		}
	}
	return false
}

// HasTeacher reports whether the teacher is assigned to the class.
func (c *Class) HasTeacher(teacherID string) bool {
	for _, id := range c.Teachers {
		if id == teacherID {
			return true
		}
	}
	return false
}

// NewClass contains information needed to create a new Class.
type NewClass struct {
	Name     string `json:"name" validate:"required,min=2,max=5"`
	Capacity int    `json:"capacity" validate:"omitempty,gte=20,lte=100"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	if nc.Capacity == 0 {
		nc.Capacity = DefaultCapacity
	}
	return validate.Struct(nc)
}

// UpdateClass defines what may be changed on an existing Class.
type UpdateClass struct {
	Name     string `json:"name" validate:"required,min=2,max=5"`
	Capacity int    `json:"capacity" validate:"required,gte=20,lte=100"`
}

func (uc *UpdateClass) Validate(validate *validator.Validate) error {
	uc.Name = core.CleanString(uc.Name)
	return validate.Struct(uc)
}
