package teacher

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

var (
	// errors
	ErrNotFound    = core.NewError(core.KindNotFound, "teacher not found")
	ErrEmailExists = core.NewError(core.KindConflict, "a teacher with this email already exists")
)

type (
	Repository interface {
		CheckEmailUniqueness(email string, excludedTeachers ...Teacher) error
		CreateTeacher(tch Teacher) (Teacher, error)
		QueryAllTeachers() ([]Teacher, error)
		GetTeacherByID(id string) (Teacher, error)
		GetTeacherByEmail(email string) (Teacher, error)
		// AddTeacherClass appends classID to the teacher's class list.
		AddTeacherClass(id, classID string) (Teacher, error)
		// RemoveTeacherClass drops classID from the teacher's class list.
		RemoveTeacherClass(id, classID string) (Teacher, error)
		DeleteTeacher(id string) error
	}

	// ClassUnlinker removes a teacher's back-references from all classes
	// holding them. Implemented by the enrollment manager.
	ClassUnlinker interface {
		UnlinkTeacher(teacherID string) error
	}

	Service interface {
		Create(nt NewTeacher, registeredBy string) (Teacher, error)
		QueryAll() ([]Teacher, error)
		GetByID(id string) (Teacher, error)
		GetByEmail(email string) (Teacher, error)
		Delete(id string) error
	}

	service struct {
		repo     Repository
		usrSvc   user.Service
		unlinker ClassUnlinker
		logger   core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, usrSvc user.Service, unlinker ClassUnlinker, logger core.Logger) Service {
	return &service{
		repo:     repo,
		usrSvc:   usrSvc,
		unlinker: unlinker,
		logger:   logger,
	}
}

// Create registers the teacher's user account and their teacher record.
// The record shares the account's ID.
func (svc *service) Create(nt NewTeacher, registeredBy string) (Teacher, error) {
	if err := svc.repo.CheckEmailUniqueness(nt.Email); err != nil {
		return Teacher{}, err
	}

	roles := []string{user.RoleTeacher}
	if nt.IsLibrarian {
		roles = append(roles, user.RoleLibrarian)
	}
	if nt.IsAdmin {
		roles = append(roles, user.RoleAdmin)
	}
	usr, err := svc.usrSvc.Create(user.NewUser{
		Name:            nt.Name,
		Email:           nt.Email,
		Password:        nt.Password,
		PasswordConfirm: nt.PasswordConfirm,
		Roles:           roles,
	})
	if err != nil {
		return Teacher{}, errors.Wrap(err, "creating teacher account")
	}

	now := time.Now().UTC()
	tch := Teacher{
		ID:           usr.ID,
		Name:         nt.Name,
		Email:        nt.Email,
		RegisteredBy: registeredBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	tch, err = svc.repo.CreateTeacher(tch)
	if err != nil {
		return Teacher{}, errors.Wrap(err, "creating teacher record")
	}
	return tch, nil
}

func (svc *service) QueryAll() ([]Teacher, error) {
	return svc.repo.QueryAllTeachers()
}

func (svc *service) GetByID(id string) (Teacher, error) {
	return svc.repo.GetTeacherByID(id)
}

func (svc *service) GetByEmail(email string) (Teacher, error) {
	return svc.repo.GetTeacherByEmail(core.CleanString(email, true /* lower */))
}

// Delete removes the teacher from every class referencing them (best effort;
// a failed class update is logged and does not block the others), then deletes
// the teacher record and its user account.
func (svc *service) Delete(id string) error {
	if _, err := svc.repo.GetTeacherByID(id); err != nil {
		return err
	}
	if err := svc.unlinker.UnlinkTeacher(id); err != nil {
		svc.logger.Warn(fmt.Sprintf("unlinking teacher %s from classes: %v", id, err), err)
	}
	if err := svc.repo.DeleteTeacher(id); err != nil {
		return err
	}
	return svc.usrSvc.Delete(id)
}
