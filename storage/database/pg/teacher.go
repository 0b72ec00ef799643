package pgdb

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/teacher"
)

type teacherRepository struct {
	db *sqlx.DB
}

func NewTeacherRepository(db *sqlx.DB) teacher.Repository {
	return &teacherRepository{db: db}
}

func (repo *teacherRepository) CheckEmailUniqueness(email string, excludedTeachers ...teacher.Teacher) error {
	exclIDs := make([]string, 0, len(excludedTeachers))
	for _, tch := range excludedTeachers {
		exclIDs = append(exclIDs, tch.ID)
	}
	var exists bool
	err := repo.db.Get(&exists, `
		SELECT EXISTS (
			SELECT 1 FROM teacher WHERE doc ->> 'email' = $1 AND NOT (id::text = ANY($2))
		)`, email, pq.Array(exclIDs))
	if err != nil {
		return errors.Wrap(err, "checking teacher email")
	}
	if exists {
		return teacher.ErrEmailExists
	}
	return nil
}

func (repo *teacherRepository) CreateTeacher(tch teacher.Teacher) (teacher.Teacher, error) {
	if tch.ID == "" {
		tch.ID = uuid.New().String()
	}
	doc, err := marshalDoc(tch)
	if err != nil {
		return teacher.Teacher{}, err
	}
	if _, err = repo.db.Exec(`INSERT INTO teacher (id, doc) VALUES ($1, $2)`, tch.ID, doc); err != nil {
		return teacher.Teacher{}, errors.Wrap(err, "inserting teacher")
	}
	return tch, nil
}

func (repo *teacherRepository) QueryAllTeachers() ([]teacher.Teacher, error) {
	var rows []docRow
	if err := repo.db.Select(&rows, `SELECT id, doc FROM teacher ORDER BY doc ->> 'name'`); err != nil {
		return nil, errors.Wrap(err, "querying teachers")
	}
	teachers := make([]teacher.Teacher, 0, len(rows))
	for _, row := range rows {
		var tch teacher.Teacher
		if err := unmarshalDoc(row, &tch); err != nil {
			return nil, err
		}
		teachers = append(teachers, tch)
	}
	return teachers, nil
}

func (repo *teacherRepository) GetTeacherByID(id string) (teacher.Teacher, error) {
	if _, err := uuid.Parse(id); err != nil {
		return teacher.Teacher{}, teacher.ErrNotFound
	}
	return repo.getBy(`id = $1`, id)
}

func (repo *teacherRepository) GetTeacherByEmail(email string) (teacher.Teacher, error) {
	return repo.getBy(`doc ->> 'email' = $1`, email)
}

func (repo *teacherRepository) AddTeacherClass(id, classID string) (teacher.Teacher, error) {
	return repo.mutate(id, func(tch *teacher.Teacher) error {
		for _, cid := range tch.Classes {
			if cid == classID {
				return nil
			}
		}
		tch.Classes = append(tch.Classes, classID)
		tch.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (repo *teacherRepository) RemoveTeacherClass(id, classID string) (teacher.Teacher, error) {
	return repo.mutate(id, func(tch *teacher.Teacher) error {
		for i, cid := range tch.Classes {
			if cid == classID {
				tch.Classes = append(tch.Classes[:i], tch.Classes[i+1:]...)
				tch.UpdatedAt = time.Now().UTC()
				break
			}
		}
		return nil
	})
}

func (repo *teacherRepository) DeleteTeacher(id string) error {
	if _, err := repo.db.Exec(`DELETE FROM teacher WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting teacher")
	}
	return nil
}

func (repo *teacherRepository) getBy(clause string, args ...interface{}) (teacher.Teacher, error) {
	var row docRow
	err := repo.db.Get(&row, `SELECT id, doc FROM teacher WHERE `+clause, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return teacher.Teacher{}, teacher.ErrNotFound
		}
		return teacher.Teacher{}, errors.Wrap(err, "getting teacher")
	}
	var tch teacher.Teacher
	if err = unmarshalDoc(row, &tch); err != nil {
		return teacher.Teacher{}, err
	}
	return tch, nil
}

func (repo *teacherRepository) mutate(id string, fn func(tch *teacher.Teacher) error) (teacher.Teacher, error) {
	var tch teacher.Teacher
	err := inTx(repo.db, func(tx *sqlx.Tx) error {
		if err := getForUpdate(tx, "teacher", id, &tch, teacher.ErrNotFound); err != nil {
			return err
		}
		if err := fn(&tch); err != nil {
			return err
		}
		return saveDoc(tx, "teacher", id, tch)
	})
	if err != nil {
		return teacher.Teacher{}, err
	}
	return tch, nil
}
