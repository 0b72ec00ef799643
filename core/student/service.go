package student

import (
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

var (
	// errors
	ErrNotFound    = core.NewError(core.KindNotFound, "student not found")
	ErrEmailExists = core.NewError(core.KindConflict, "a student with this email already exists")
	ErrBorrowLimit = core.NewError(core.KindCapacityExceeded, "student has already issued 3 books")
	ErrHasNoBook   = core.NewError(core.KindNotFound, "book is not issued to this student")
)

type (
	Repository interface {
		CheckEmailUniqueness(email string, excludedStudents ...Student) error
		CreateStudent(st Student) (Student, error)
		QueryAllStudents() ([]Student, error)
		GetStudentByID(id string) (Student, error)
		GetStudentByEmail(email string) (Student, error)
		// FilterStudentsByClass returns the students enrolled in the given class.
		FilterStudentsByClass(classID string) ([]Student, error)
		UpdateStudent(st Student) (Student, error)
		// SetStudentClass sets (or clears) the student's class back-reference.
		SetStudentClass(id string, classID null.String) (Student, error)
		// AddStudentBook appends bookID to the student's open loans;
		// fails with ErrBorrowLimit when MaxOpenLoans is reached.
		AddStudentBook(id, bookID string) (Student, error)
		// RemoveStudentBook removes bookID from the student's open loans and
		// adds penaltyDays (>= 0) to the library penalty in the same write.
		RemoveStudentBook(id, bookID string, penaltyDays int) (Student, error)
		// AddStudentScorecard appends the scorecard ref and adds score to the total.
		AddStudentScorecard(id, scorecardID string, score int) (Student, error)
		// AdjustStudentScore adds delta to the student's total score.
		AdjustStudentScore(id string, delta int) (Student, error)
		// RemoveStudentScorecard drops the scorecard ref and subtracts score from the total.
		RemoveStudentScorecard(id, scorecardID string, score int) (Student, error)
		DeleteStudent(id string) error
	}

	Service interface {
		Create(ns NewStudent, registeredBy string) (Student, error)
		QueryAll() ([]Student, error)
		GetByID(id string) (Student, error)
		GetByEmail(email string) (Student, error)
		UpdateProfile(id string, up UpdateProfile) (Student, error)
		Delete(id string) error
	}

	service struct {
		repo   Repository
		usrSvc user.Service
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, usrSvc user.Service) Service {
	return &service{
		repo:   repo,
		usrSvc: usrSvc,
	}
}

// Create registers the student's user account and their student record.
// The record shares the account's ID.
func (svc *service) Create(ns NewStudent, registeredBy string) (Student, error) {
	if err := svc.repo.CheckEmailUniqueness(ns.Email); err != nil {
		return Student{}, err
	}

	roles := []string{user.RoleStudent}
	if ns.IsAdmin {
		roles = append(roles, user.RoleAdmin)
	}
	usr, err := svc.usrSvc.Create(user.NewUser{
		Name:            ns.Name,
		Email:           ns.Email,
		Password:        ns.Password,
		PasswordConfirm: ns.PasswordConfirm,
		Roles:           roles,
	})
	if err != nil {
		return Student{}, errors.Wrap(err, "creating student account")
	}

	now := time.Now().UTC()
	st := Student{
		ID:           usr.ID,
		Name:         ns.Name,
		Email:        ns.Email,
		RegisteredBy: registeredBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	st, err = svc.repo.CreateStudent(st)
	if err != nil {
		return Student{}, errors.Wrap(err, "creating student record")
	}
	return st, nil
}

// QueryAll returns all students sorted in ascending order by name.
func (svc *service) QueryAll() ([]Student, error) {
	students, err := svc.repo.QueryAllStudents()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(students, func(i, j int) bool { return students[i].Name < students[j].Name })
	return students, nil
}

func (svc *service) GetByID(id string) (Student, error) {
	return svc.repo.GetStudentByID(id)
}

func (svc *service) GetByEmail(email string) (Student, error) {
	return svc.repo.GetStudentByEmail(core.CleanString(email, true /* lower */))
}

func (svc *service) UpdateProfile(id string, up UpdateProfile) (Student, error) {
	st, err := svc.repo.GetStudentByID(id)
	if err != nil {
		return Student{}, err
	}
	st.Name = up.Name
	st.Phone = up.Phone
	st.Address = up.Address
	st.DOB = up.DOB
	st.Gender = up.Gender
	st.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateStudent(st)
}

// Delete removes the student record and its user account.
// The class back-reference, if any, is cleared by the enrollment manager
// before this is called.
func (svc *service) Delete(id string) error {
	if _, err := svc.repo.GetStudentByID(id); err != nil {
		return err
	}
	if err := svc.repo.DeleteStudent(id); err != nil {
		return err
	}
	return svc.usrSvc.Delete(id)
}
