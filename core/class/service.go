package class

import (
	"fmt"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/core/teacher"
)

var (
	// errors
	ErrNotFound        = core.NewError(core.KindNotFound, "class not found")
	ErrNameExists      = core.NewError(core.KindConflict, "a class with this name already exists")
	ErrClassFull       = core.NewError(core.KindCapacityExceeded, "class is already full")
	ErrAlreadyEnrolled = core.NewError(core.KindConflict, "student is already enrolled in this class")
	ErrStudentEnrolled = core.NewError(core.KindConflict, "student is already enrolled in another class")
	ErrTeacherAssigned = core.NewError(core.KindConflict, "teacher is already assigned to this class")
	ErrHasStudents     = core.NewError(core.KindConflict, "class still has enrolled students")
	ErrCapacityTooLow  = core.NewError(core.KindConflict, "capacity is less than the current enrollment")
)

type (
	Repository interface {
		CheckNameUniqueness(name string, excludedClasses ...Class) error
		CreateClass(cls Class) (Class, error)
		QueryAllClasses() ([]Class, error)
		GetClassByID(id string) (Class, error)
		GetClassByName(name string) (Class, error)
		// FilterClassesByTeacher returns the classes the teacher is assigned to.
		FilterClassesByTeacher(teacherID string) ([]Class, error)
		UpdateClass(cls Class) (Class, error)
		// AddClassTeacher appends teacherID to the class roster;
		// fails with ErrTeacherAssigned when already present.
		AddClassTeacher(id, teacherID string) (Class, error)
		RemoveClassTeacher(id, teacherID string) (Class, error)
		// AddClassStudent appends studentID to the class roster in a single
		// conditional write; fails with ErrClassFull at capacity and with
		// ErrAlreadyEnrolled when already present.
		AddClassStudent(id, studentID string) (Class, error)
		RemoveClassStudent(id, studentID string) (Class, error)
		DeleteClass(id string) error
	}

	Service interface {
		Create(nc NewClass, createdBy string) (Class, error)
		Update(id string, uc UpdateClass) (Class, error)
		QueryAll() ([]Class, error)
		GetByID(id string) (Class, error)
		GetByName(name string) (Class, error)
		// Teachers returns the teachers assigned to the class.
		Teachers(id string) ([]teacher.Teacher, error)
		// Students returns the students enrolled in the class.
		Students(id string) ([]student.Student, error)
		AssignTeacher(id, teacherID string) (Class, error)
		AssignStudent(id, studentID string) (Class, error)
		// RemoveStudent unenrolls the student from their class, clearing
		// both sides of the link. No-op for an unenrolled student.
		RemoveStudent(studentID string) error
		Delete(id string) error
		// UnlinkTeacher drops the teacher from every class roster holding them.
		UnlinkTeacher(teacherID string) error
		// Reconcile repairs one-sided enrollment links and returns the number
		// of repairs applied.
		Reconcile() (int, error)
	}

	service struct {
		repo    Repository
		tchRepo teacher.Repository
		stRepo  student.Repository
		logger  core.Logger
	}
)

var (
	_ Service               = (*service)(nil)
	_ teacher.ClassUnlinker = (*service)(nil)
)

func NewService(repo Repository, tchRepo teacher.Repository, stRepo student.Repository, logger core.Logger) Service {
	return &service{
		repo:    repo,
		tchRepo: tchRepo,
		stRepo:  stRepo,
		logger:  logger,
	}
}

func (svc *service) Create(nc NewClass, createdBy string) (Class, error) {
	if err := svc.repo.CheckNameUniqueness(nc.Name); err != nil {
		return Class{}, err
	}
	now := time.Now().UTC()
	cls := Class{
		Name:      nc.Name,
		Capacity:  nc.Capacity,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateClass(cls)
}

// Update renames and resizes the class. Capacity cannot drop below the
// current enrollment.
func (svc *service) Update(id string, uc UpdateClass) (Class, error) {
	cls, err := svc.repo.GetClassByID(id)
	if err != nil {
		return Class{}, err
	}
	if uc.Name != cls.Name {
		if err = svc.repo.CheckNameUniqueness(uc.Name, cls); err != nil {
			return Class{}, err
		}
	}
	if uc.Capacity < len(cls.Students) {
		return Class{}, ErrCapacityTooLow
	}
	cls.Name = uc.Name
	cls.Capacity = uc.Capacity
	cls.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateClass(cls)
}

func (svc *service) QueryAll() ([]Class, error) {
	return svc.repo.QueryAllClasses()
}

func (svc *service) GetByID(id string) (Class, error) {
	return svc.repo.GetClassByID(id)
}

func (svc *service) GetByName(name string) (Class, error) {
	return svc.repo.GetClassByName(core.CleanString(name))
}

func (svc *service) Teachers(id string) ([]teacher.Teacher, error) {
	cls, err := svc.repo.GetClassByID(id)
	if err != nil {
		return nil, err
	}
	teachers := make([]teacher.Teacher, 0, len(cls.Teachers))
	for _, tid := range cls.Teachers {
		tch, err := svc.tchRepo.GetTeacherByID(tid)
		if err != nil {
			if core.ErrKind(err) == core.KindNotFound {
				continue // stale link, Reconcile will drop it
			}
			return nil, err
		}
		teachers = append(teachers, tch)
	}
	return teachers, nil
}

func (svc *service) Students(id string) ([]student.Student, error) {
	if _, err := svc.repo.GetClassByID(id); err != nil {
		return nil, err
	}
	return svc.stRepo.FilterStudentsByClass(id)
}

// AssignTeacher links the teacher and the class on both sides. The class
// roster is written first; a failure on the teacher side surfaces as a
// store error and is repaired by Reconcile.
func (svc *service) AssignTeacher(id, teacherID string) (Class, error) {
	if _, err := svc.tchRepo.GetTeacherByID(teacherID); err != nil {
		return Class{}, err
	}
	cls, err := svc.repo.AddClassTeacher(id, teacherID)
	if err != nil {
		return Class{}, err
	}
	if _, err = svc.tchRepo.AddTeacherClass(teacherID, id); err != nil {
		return Class{}, core.NewError(core.KindStore, fmt.Sprintf("teacher assignment partially applied: %v", err))
	}
	return cls, nil
}

// AssignStudent enrolls the student in the class. A student belongs to at
// most one class at a time; the class roster is the side checked for
// capacity, in a single conditional write.
func (svc *service) AssignStudent(id, studentID string) (Class, error) {
	st, err := svc.stRepo.GetStudentByID(studentID)
	if err != nil {
		return Class{}, err
	}
	if st.Enrolled() {
		if st.ClassID.String == id {
			return Class{}, ErrAlreadyEnrolled
		}
		return Class{}, ErrStudentEnrolled
	}
	cls, err := svc.repo.AddClassStudent(id, studentID)
	if err != nil {
		return Class{}, err
	}
	if _, err = svc.stRepo.SetStudentClass(studentID, null.StringFrom(id)); err != nil {
		return Class{}, core.NewError(core.KindStore, fmt.Sprintf("student enrollment partially applied: %v", err))
	}
	return cls, nil
}

func (svc *service) RemoveStudent(studentID string) error {
	st, err := svc.stRepo.GetStudentByID(studentID)
	if err != nil {
		return err
	}
	if !st.Enrolled() {
		return nil
	}
	if _, err = svc.repo.RemoveClassStudent(st.ClassID.String, studentID); err != nil && core.ErrKind(err) != core.KindNotFound {
		return err
	}
	if _, err = svc.stRepo.SetStudentClass(studentID, null.String{}); err != nil {
		return core.NewError(core.KindStore, fmt.Sprintf("student unenrollment partially applied: %v", err))
	}
	return nil
}

// Delete removes an empty class, dropping the teacher-side links first
// (best effort; a failed teacher update is logged and does not block the
// others). A class with enrolled students cannot be deleted.
func (svc *service) Delete(id string) error {
	cls, err := svc.repo.GetClassByID(id)
	if err != nil {
		return err
	}
	if len(cls.Students) > 0 {
		return ErrHasStudents
	}
	for _, tid := range cls.Teachers {
		if _, err = svc.tchRepo.RemoveTeacherClass(tid, id); err != nil && core.ErrKind(err) != core.KindNotFound {
			svc.logger.Warn(fmt.Sprintf("unlinking class %s from teacher %s: %v", id, tid, err), err)
		}
	}
	return svc.repo.DeleteClass(id)
}

func (svc *service) UnlinkTeacher(teacherID string) error {
	classes, err := svc.repo.FilterClassesByTeacher(teacherID)
	if err != nil {
		return err
	}
	var firstErr error
	for _, cls := range classes {
		if _, err = svc.repo.RemoveClassTeacher(cls.ID, teacherID); err != nil {
			svc.logger.Warn(fmt.Sprintf("removing teacher %s from class %s: %v", teacherID, cls.ID, err), err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Reconcile walks all classes, teachers and students and repairs one-sided
// links: links to missing records are dropped, and links present on a single
// side are completed. For student enrollments the student's own class
// reference is authoritative.
func (svc *service) Reconcile() (int, error) {
	classes, err := svc.repo.QueryAllClasses()
	if err != nil {
		return 0, err
	}
	teachers, err := svc.tchRepo.QueryAllTeachers()
	if err != nil {
		return 0, err
	}
	students, err := svc.stRepo.QueryAllStudents()
	if err != nil {
		return 0, err
	}

	classByID := make(map[string]Class, len(classes))
	for _, cls := range classes {
		classByID[cls.ID] = cls
	}
	teacherByID := make(map[string]teacher.Teacher, len(teachers))
	for _, tch := range teachers {
		teacherByID[tch.ID] = tch
	}
	studentByID := make(map[string]student.Student, len(students))
	for _, st := range students {
		studentByID[st.ID] = st
	}

	var repaired int
	repair := func(what string, err error) {
		if err != nil {
			svc.logger.Warn(fmt.Sprintf("reconcile: %s: %v", what, err), err)
			return
		}
		repaired++
	}

	for _, cls := range classes {
		for _, tid := range cls.Teachers {
			tch, ok := teacherByID[tid]
			switch {
			case !ok:
				_, err = svc.repo.RemoveClassTeacher(cls.ID, tid)
				repair(fmt.Sprintf("dropping missing teacher %s from class %s", tid, cls.ID), err)
			case !tch.AssignedTo(cls.ID):
				_, err = svc.tchRepo.AddTeacherClass(tid, cls.ID)
				repair(fmt.Sprintf("completing class %s link on teacher %s", cls.ID, tid), err)
			}
		}
		for _, sid := range cls.Students {
			st, ok := studentByID[sid]
			switch {
			case !ok:
				_, err = svc.repo.RemoveClassStudent(cls.ID, sid)
				repair(fmt.Sprintf("dropping missing student %s from class %s", sid, cls.ID), err)
			case st.ClassID.String != cls.ID:
				_, err = svc.repo.RemoveClassStudent(cls.ID, sid)
				repair(fmt.Sprintf("dropping student %s from class %s", sid, cls.ID), err)
			}
		}
	}

	for _, tch := range teachers {
		for _, cid := range tch.Classes {
			cls, ok := classByID[cid]
			switch {
			case !ok:
				_, err = svc.tchRepo.RemoveTeacherClass(tch.ID, cid)
				repair(fmt.Sprintf("dropping missing class %s from teacher %s", cid, tch.ID), err)
			case !cls.HasTeacher(tch.ID):
				_, err = svc.repo.AddClassTeacher(cid, tch.ID)
				repair(fmt.Sprintf("completing teacher %s link on class %s", tch.ID, cid), err)
			}
		}
	}

	for _, st := range students {
		if !st.Enrolled() {
			continue
		}
		cls, ok := classByID[st.ClassID.String]
		switch {
		case !ok:
			_, err = svc.stRepo.SetStudentClass(st.ID, null.String{})
			repair(fmt.Sprintf("clearing missing class %s on student %s", st.ClassID.String, st.ID), err)
		case !cls.HasStudent(st.ID):
			if _, err = svc.repo.AddClassStudent(cls.ID, st.ID); err != nil {
				// over capacity or raced, give the student back up for enrollment
				_, err = svc.stRepo.SetStudentClass(st.ID, null.String{})
			}
			repair(fmt.Sprintf("completing student %s link on class %s", st.ID, cls.ID), err)
		}
	}

	return repaired, nil
}
