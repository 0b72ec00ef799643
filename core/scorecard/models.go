package scorecard

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

// Scorecard is one graded exam result. A student holds at most one per
// (subject, exam date) pair.
type Scorecard struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"student"`
	Subject    string    `json:"subject"`
	ExamDate   time.Time `json:"exam_date"` // UTC, date precision
	Score      int       `json:"score"`
	Comments   string    `json:"comments"`
	RecordedBy string    `json:"recorded_by"` // teacher who graded it
	CreatedAt  time.Time `json:"created_at"`  // UTC
	UpdatedAt  time.Time `json:"updated_at"`  // UTC
}

// NewScorecard contains information needed to record a new Scorecard.
type NewScorecard struct {
	StudentID string    `json:"student" validate:"required"`
	Subject   string    `json:"subject" validate:"required"`
	ExamDate  time.Time `json:"exam_date" validate:"required"`
	Score     int       `json:"score" validate:"gte=0,lte=100"`
	Comments  string    `json:"comments"`
}

func (ns *NewScorecard) Validate(validate *validator.Validate) error {
	ns.Subject = core.CleanString(ns.Subject, true /* lower */)
	ns.Comments = core.CleanString(ns.Comments)
	ns.ExamDate = ns.ExamDate.UTC().Truncate(24 * time.Hour)
	return validate.Struct(ns)
}

// UpdateScorecard defines what may be changed on an existing Scorecard.
type UpdateScorecard struct {
	Score    int    `json:"score" validate:"gte=0,lte=100"`
	Comments string `json:"comments"`
}

func (us *UpdateScorecard) Validate(validate *validator.Validate) error {
	us.Comments = core.CleanString(us.Comments)
	return validate.Struct(us)
}
