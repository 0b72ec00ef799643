package pgdb

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/class"
)

type classRepository struct {
	db *sqlx.DB
}

func NewClassRepository(db *sqlx.DB) class.Repository {
	return &classRepository{db: db}
}

func (repo *classRepository) CheckNameUniqueness(name string, excludedClasses ...class.Class) error {
	exclIDs := make([]string, 0, len(excludedClasses))
	for _, cls := range excludedClasses {
		exclIDs = append(exclIDs, cls.ID)
	}
	var exists bool
	err := repo.db.Get(&exists, `
		SELECT EXISTS (
			SELECT 1 FROM class WHERE doc ->> 'name' = $1 AND NOT (id::text = ANY($2))
		)`, name, pq.Array(exclIDs))
	if err != nil {
		return errors.Wrap(err, "checking class name")
	}
	if exists {
		return class.ErrNameExists
	}
	return nil
}

func (repo *classRepository) CreateClass(cls class.Class) (class.Class, error) {
	if cls.ID == "" {
		cls.ID = uuid.New().String()
	}
	doc, err := marshalDoc(cls)
	if err != nil {
		return class.Class{}, err
	}
	if _, err = repo.db.Exec(`INSERT INTO class (id, doc) VALUES ($1, $2)`, cls.ID, doc); err != nil {
		return class.Class{}, errors.Wrap(err, "inserting class")
	}
	return cls, nil
}

func (repo *classRepository) QueryAllClasses() ([]class.Class, error) {
	return repo.selectClasses(`SELECT id, doc FROM class ORDER BY doc ->> 'name'`)
}

func (repo *classRepository) GetClassByID(id string) (class.Class, error) {
	if _, err := uuid.Parse(id); err != nil {
		return class.Class{}, class.ErrNotFound
	}
	return repo.getBy(`id = $1`, id)
}

func (repo *classRepository) GetClassByName(name string) (class.Class, error) {
	return repo.getBy(`doc ->> 'name' = $1`, name)
}

func (repo *classRepository) FilterClassesByTeacher(teacherID string) ([]class.Class, error) {
	return repo.selectClasses(
		`SELECT id, doc FROM class WHERE doc -> 'teachers' ? $1`, teacherID)
}

func (repo *classRepository) UpdateClass(cls class.Class) (class.Class, error) {
	return repo.mutate(cls.ID, func(orig *class.Class) error {
		orig.Name = cls.Name
		orig.Capacity = cls.Capacity
		orig.UpdatedAt = cls.UpdatedAt
		return nil
	})
}

func (repo *classRepository) AddClassTeacher(id, teacherID string) (class.Class, error) {
	return repo.mutate(id, func(cls *class.Class) error {
		if cls.HasTeacher(teacherID) {
			return class.ErrTeacherAssigned
		}
		cls.Teachers = append(cls.Teachers, teacherID)
		cls.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (repo *classRepository) RemoveClassTeacher(id, teacherID string) (class.Class, error) {
	return repo.mutate(id, func(cls *class.Class) error {
		for i, tid := range cls.Teachers {
			if tid == teacherID {
				cls.Teachers = append(cls.Teachers[:i], cls.Teachers[i+1:]...)
				cls.UpdatedAt = time.Now().UTC()
				break
			}
		}
		return nil
	})
}

// AddClassStudent locks the class row across the capacity check and the
// roster append, so two concurrent enrollments cannot both take the last
// seat.
func (repo *classRepository) AddClassStudent(id, studentID string) (class.Class, error) {
	return repo.mutate(id, func(cls *class.Class) error {
		if cls.HasStudent(studentID) {
			return class.ErrAlreadyEnrolled
		}
		if cls.Full() {
			return class.ErrClassFull
		}
		cls.Students = append(cls.Students, studentID)
		cls.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (repo *classRepository) RemoveClassStudent(id, studentID string) (class.Class, error) {
	return repo.mutate(id, func(cls *class.Class) error {
		for i, sid := range cls.Students {
			if sid == studentID {
				cls.Students = append(cls.Students[:i], cls.Students[i+1:]...)
				cls.UpdatedAt = time.Now().UTC()
				break
			}
		}
		return nil
	})
}

func (repo *classRepository) DeleteClass(id string) error {
	if _, err := repo.db.Exec(`DELETE FROM class WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting class")
	}
	return nil
}

func (repo *classRepository) getBy(clause string, args ...interface{}) (class.Class, error) {
	var row docRow
	err := repo.db.Get(&row, `SELECT id, doc FROM class WHERE `+clause, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return class.Class{}, class.ErrNotFound
		}
		return class.Class{}, errors.Wrap(err, "getting class")
	}
	var cls class.Class
	if err = unmarshalDoc(row, &cls); err != nil {
		return class.Class{}, err
	}
	return cls, nil
}

func (repo *classRepository) selectClasses(q string, args ...interface{}) ([]class.Class, error) {
	var rows []docRow
	if err := repo.db.Select(&rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	classes := make([]class.Class, 0, len(rows))
	for _, row := range rows {
		var cls class.Class
		if err := unmarshalDoc(row, &cls); err != nil {
			return nil, err
		}
		classes = append(classes, cls)
	}
	return classes, nil
}

func (repo *classRepository) mutate(id string, fn func(cls *class.Class) error) (class.Class, error) {
	var cls class.Class
	err := inTx(repo.db, func(tx *sqlx.Tx) error {
		if err := getForUpdate(tx, "class", id, &cls, class.ErrNotFound); err != nil {
			return err
		}
		if err := fn(&cls); err != nil {
			return err
		}
		return saveDoc(tx, "class", id, cls)
	})
	if err != nil {
		return class.Class{}, err
	}
	return cls, nil
}
