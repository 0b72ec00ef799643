package scorecard

import (
	"fmt"
	"sort"
	"time"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/student"
)

var (
	// errors
	ErrNotFound = core.NewError(core.KindNotFound, "scorecard not found")
	ErrExists   = core.NewError(core.KindConflict, "a scorecard for this student, subject and exam date already exists")
	ErrNotOwner = core.NewError(core.KindForbidden, "scorecard was recorded by another teacher")
)

var nowFunc = time.Now // mocked in tests

type (
	Repository interface {
		// CheckUniqueness fails with ErrExists when the student already has a
		// scorecard for the subject and exam date.
		CheckUniqueness(studentID, subject string, examDate time.Time, excludedCards ...Scorecard) error
		CreateScorecard(sc Scorecard) (Scorecard, error)
		QueryAllScorecards() ([]Scorecard, error)
		GetScorecardByID(id string) (Scorecard, error)
		FilterScorecardsByStudent(studentID string) ([]Scorecard, error)
		UpdateScorecard(sc Scorecard) (Scorecard, error)
		DeleteScorecard(id string) error
	}

	// Rank is a student's standing in the school-wide ranking.
	Rank struct {
		Position int             `json:"position"`
		Average  float64         `json:"average"`
		Student  student.Student `json:"student"`
	}

	Service interface {
		// Add records a graded exam for a student and rolls the score into
		// the student's total.
		Add(ns NewScorecard, recordedBy string) (Scorecard, error)
		// Update changes the score, applying the difference to the student's
		// total. Only the recording teacher (or an admin) may update it.
		Update(id string, us UpdateScorecard, actorID string, isAdmin bool) (Scorecard, error)
		// Delete removes the scorecard and backs its score out of the
		// student's total. Only the recording teacher (or an admin) may
		// delete it.
		Delete(id, actorID string, isAdmin bool) error
		GetByID(id string) (Scorecard, error)
		// ForStudent returns the student's scorecards, newest exam first.
		ForStudent(studentID string) ([]Scorecard, error)
		QueryAll() ([]Scorecard, error)
		// Rankings orders all students by average score, best first. Students
		// without scorecards trail the ranking. Re-running it does not change
		// the order.
		Rankings() ([]Rank, error)
	}

	service struct {
		repo   Repository
		stRepo student.Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, stRepo student.Repository) Service {
	return &service{
		repo:   repo,
		stRepo: stRepo,
	}
}

func (svc *service) Add(ns NewScorecard, recordedBy string) (Scorecard, error) {
	if _, err := svc.stRepo.GetStudentByID(ns.StudentID); err != nil {
		return Scorecard{}, err
	}
	if err := svc.repo.CheckUniqueness(ns.StudentID, ns.Subject, ns.ExamDate); err != nil {
		return Scorecard{}, err
	}
	now := nowFunc().UTC()
	sc := Scorecard{
		StudentID:  ns.StudentID,
		Subject:    ns.Subject,
		ExamDate:   ns.ExamDate,
		Score:      ns.Score,
		Comments:   ns.Comments,
		RecordedBy: recordedBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	sc, err := svc.repo.CreateScorecard(sc)
	if err != nil {
		return Scorecard{}, err
	}
	if _, err = svc.stRepo.AddStudentScorecard(sc.StudentID, sc.ID, sc.Score); err != nil {
		return Scorecard{}, core.NewError(core.KindStore, fmt.Sprintf("scorecard partially applied: %v", err))
	}
	return sc, nil
}

func (svc *service) Update(id string, us UpdateScorecard, actorID string, isAdmin bool) (Scorecard, error) {
	sc, err := svc.repo.GetScorecardByID(id)
	if err != nil {
		return Scorecard{}, err
	}
	if !isAdmin && sc.RecordedBy != actorID {
		return Scorecard{}, ErrNotOwner
	}
	delta := us.Score - sc.Score
	sc.Score = us.Score
	sc.Comments = us.Comments
	sc.UpdatedAt = nowFunc().UTC()
	sc, err = svc.repo.UpdateScorecard(sc)
	if err != nil {
		return Scorecard{}, err
	}
	if delta != 0 {
		if _, err = svc.stRepo.AdjustStudentScore(sc.StudentID, delta); err != nil {
			return Scorecard{}, core.NewError(core.KindStore, fmt.Sprintf("score update partially applied: %v", err))
		}
	}
	return sc, nil
}

func (svc *service) Delete(id, actorID string, isAdmin bool) error {
	sc, err := svc.repo.GetScorecardByID(id)
	if err != nil {
		return err
	}
	if !isAdmin && sc.RecordedBy != actorID {
		return ErrNotOwner
	}
	if _, err = svc.stRepo.RemoveStudentScorecard(sc.StudentID, sc.ID, sc.Score); err != nil {
		return err
	}
	return svc.repo.DeleteScorecard(id)
}

func (svc *service) GetByID(id string) (Scorecard, error) {
	return svc.repo.GetScorecardByID(id)
}

func (svc *service) ForStudent(studentID string) ([]Scorecard, error) {
	if _, err := svc.stRepo.GetStudentByID(studentID); err != nil {
		return nil, err
	}
	cards, err := svc.repo.FilterScorecardsByStudent(studentID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(cards, func(i, j int) bool { return cards[i].ExamDate.After(cards[j].ExamDate) })
	return cards, nil
}

func (svc *service) QueryAll() ([]Scorecard, error) {
	return svc.repo.QueryAllScorecards()
}

func (svc *service) Rankings() ([]Rank, error) {
	students, err := svc.stRepo.QueryAllStudents()
	if err != nil {
		return nil, err
	}
	// name order first so equal averages always tie-break the same way
	sort.SliceStable(students, func(i, j int) bool { return students[i].Name < students[j].Name })

	var graded, ungraded []student.Student
	for _, st := range students {
		if len(st.Scorecards) > 0 {
			graded = append(graded, st)
		} else {
			ungraded = append(ungraded, st)
		}
	}
	sort.SliceStable(graded, func(i, j int) bool { return graded[i].AverageScore() > graded[j].AverageScore() })

	ranks := make([]Rank, 0, len(students))
	for _, st := range append(graded, ungraded...) {
		ranks = append(ranks, Rank{
			Position: len(ranks) + 1,
			Average:  st.AverageScore(),
			Student:  st,
		})
	}
	return ranks, nil
}
