package inmemdb

import (
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core/class"
)

type classRepository struct {
	db *classTable
}

func NewClassRepository(db *DB) class.Repository {
	return &classRepository{db: db.class}
}

func (repo *classRepository) query() []class.Class {
	classes := make([]class.Class, 0, len(repo.db.table))
	for _, c := range repo.db.table {
		classes = append(classes, *c)
	}
	return classes
}

func (repo *classRepository) CheckNameUniqueness(name string, excludedClasses ...class.Class) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	excluded := make(map[string]struct{}, len(excludedClasses))
	for _, cls := range excludedClasses {
		excluded[cls.ID] = struct{}{}
	}
	for _, cls := range repo.query() {
		if _, ok := excluded[cls.ID]; ok {
			continue
		}
		if cls.Name == name {
			return class.ErrNameExists
		}
	}
	return nil
}

func (repo *classRepository) CreateClass(cls class.Class) (class.Class, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if cls.ID == "" {
		cls.ID = uuid.New().String()
	}
	repo.db.table[cls.ID] = &cls
	return cls, nil
}

func (repo *classRepository) QueryAllClasses() ([]class.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.query(), nil
}

func (repo *classRepository) GetClassByID(id string) (class.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if cls, ok := repo.db.table[id]; ok {
		return *cls, nil
	}
	return class.Class{}, class.ErrNotFound
}

func (repo *classRepository) GetClassByName(name string) (class.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, cls := range repo.query() {
		if cls.Name == name {
			return cls, nil
		}
	}
	return class.Class{}, class.ErrNotFound
}

func (repo *classRepository) FilterClassesByTeacher(teacherID string) ([]class.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var classes []class.Class
	for _, cls := range repo.query() {
		if cls.HasTeacher(teacherID) {
			classes = append(classes, cls)
		}
	}
	return classes, nil
}

func (repo *classRepository) UpdateClass(cls class.Class) (class.Class, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	origCls, ok := repo.db.table[cls.ID]
	if !ok {
		return class.Class{}, class.ErrNotFound
	}
	origCls.Name = cls.Name
	origCls.Capacity = cls.Capacity
	origCls.UpdatedAt = cls.UpdatedAt
	return *origCls, nil
}

func (repo *classRepository) AddClassTeacher(id, teacherID string) (class.Class, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	cls, ok := repo.db.table[id]
	if !ok {
		return class.Class{}, class.ErrNotFound
	}
	if cls.HasTeacher(teacherID) {
		return class.Class{}, class.ErrTeacherAssigned
	}
	cls.Teachers = append(cls.Teachers, teacherID)
	cls.UpdatedAt = time.Now().UTC()
	return *cls, nil
}

func (repo *classRepository) RemoveClassTeacher(id, teacherID string) (class.Class, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	cls, ok := repo.db.table[id]
	if !ok {
		return class.Class{}, class.ErrNotFound
	}
	for i, tid := range cls.Teachers {
		if tid == teacherID {
			cls.Teachers = append(cls.Teachers[:i], cls.Teachers[i+1:]...)
			cls.UpdatedAt = time.Now().UTC()
			break
		}
	}
	return *cls, nil
}

func (repo *classRepository) AddClassStudent(id, studentID string) (class.Class, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	cls, ok := repo.db.table[id]
	if !ok {
		return class.Class{}, class.ErrNotFound
	}
	if cls.HasStudent(studentID) {
		return class.Class{}, class.ErrAlreadyEnrolled
	}
	if cls.Full() {
		return class.Class{}, class.ErrClassFull
	}
	cls.Students = append(cls.Students, studentID)
	cls.UpdatedAt = time.Now().UTC()
	return *cls, nil
}

func (repo *classRepository) RemoveClassStudent(id, studentID string) (class.Class, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	cls, ok := repo.db.table[id]
	if !ok {
		return class.Class{}, class.ErrNotFound
	}
	for i, sid := range cls.Students {
		if sid == studentID {
			cls.Students = append(cls.Students[:i], cls.Students[i+1:]...)
			cls.UpdatedAt = time.Now().UTC()
			break
		}
	}
	return *cls, nil
}

func (repo *classRepository) DeleteClass(id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	delete(repo.db.table, id)
	return nil
}
