package pgdb

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core/student"
)

type studentRepository struct {
	db *sqlx.DB
}

func NewStudentRepository(db *sqlx.DB) student.Repository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) CheckEmailUniqueness(email string, excludedStudents ...student.Student) error {
	exclIDs := make([]string, 0, len(excludedStudents))
	for _, st := range excludedStudents {
		exclIDs = append(exclIDs, st.ID)
	}
	var exists bool
	err := repo.db.Get(&exists, `
		SELECT EXISTS (
			SELECT 1 FROM student WHERE doc ->> 'email' = $1 AND NOT (id::text = ANY($2))
		)`, email, pq.Array(exclIDs))
	if err != nil {
		return errors.Wrap(err, "checking student email")
	}
	if exists {
		return student.ErrEmailExists
	}
	return nil
}

func (repo *studentRepository) CreateStudent(st student.Student) (student.Student, error) {
	if st.ID == "" {
		st.ID = uuid.New().String()
	}
	doc, err := marshalDoc(st)
	if err != nil {
		return student.Student{}, err
	}
	if _, err = repo.db.Exec(`INSERT INTO student (id, doc) VALUES ($1, $2)`, st.ID, doc); err != nil {
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return st, nil
}

func (repo *studentRepository) QueryAllStudents() ([]student.Student, error) {
	return repo.selectStudents(`SELECT id, doc FROM student`)
}

func (repo *studentRepository) GetStudentByID(id string) (student.Student, error) {
	if _, err := uuid.Parse(id); err != nil {
		return student.Student{}, student.ErrNotFound
	}
	return repo.getBy(`id = $1`, id)
}

func (repo *studentRepository) GetStudentByEmail(email string) (student.Student, error) {
	return repo.getBy(`doc ->> 'email' = $1`, email)
}

func (repo *studentRepository) FilterStudentsByClass(classID string) ([]student.Student, error) {
	return repo.selectStudents(
		`SELECT id, doc FROM student WHERE doc ->> 'class' = $1 ORDER BY doc ->> 'name'`, classID)
}

func (repo *studentRepository) UpdateStudent(st student.Student) (student.Student, error) {
	return repo.mutate(st.ID, func(orig *student.Student) error {
		orig.Name = st.Name
		orig.Phone = st.Phone
		orig.Address = st.Address
		orig.DOB = st.DOB
		orig.Gender = st.Gender
		orig.UpdatedAt = st.UpdatedAt
		return nil
	})
}

func (repo *studentRepository) SetStudentClass(id string, classID null.String) (student.Student, error) {
	return repo.mutate(id, func(st *student.Student) error {
		st.ClassID = classID
		st.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (repo *studentRepository) AddStudentBook(id, bookID string) (student.Student, error) {
	return repo.mutate(id, func(st *student.Student) error {
		if len(st.IssuedBooks) >= student.MaxOpenLoans {
			return student.ErrBorrowLimit
		}
		st.IssuedBooks = append(st.IssuedBooks, bookID)
		st.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (repo *studentRepository) RemoveStudentBook(id, bookID string, penaltyDays int) (student.Student, error) {
	return repo.mutate(id, func(st *student.Student) error {
		idx := -1
		for i, bid := range st.IssuedBooks {
			if bid == bookID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return student.ErrHasNoBook
		}
		st.IssuedBooks = append(st.IssuedBooks[:idx], st.IssuedBooks[idx+1:]...)
		st.LibraryPenalty += penaltyDays
		st.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (repo *studentRepository) AddStudentScorecard(id, scorecardID string, score int) (student.Student, error) {
	return repo.mutate(id, func(st *student.Student) error {
		st.Scorecards = append(st.Scorecards, scorecardID)
		st.TotalScore += score
		st.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (repo *studentRepository) AdjustStudentScore(id string, delta int) (student.Student, error) {
	return repo.mutate(id, func(st *student.Student) error {
		st.TotalScore += delta
		st.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (repo *studentRepository) RemoveStudentScorecard(id, scorecardID string, score int) (student.Student, error) {
	return repo.mutate(id, func(st *student.Student) error {
		for i, sid := range st.Scorecards {
			if sid == scorecardID {
				st.Scorecards = append(st.Scorecards[:i], st.Scorecards[i+1:]...)
				st.TotalScore -= score
				st.UpdatedAt = time.Now().UTC()
				break
			}
		}
		return nil
	})
}

func (repo *studentRepository) DeleteStudent(id string) error {
	if _, err := repo.db.Exec(`DELETE FROM student WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return nil
}

func (repo *studentRepository) getBy(clause string, args ...interface{}) (student.Student, error) {
	var row docRow
	err := repo.db.Get(&row, `SELECT id, doc FROM student WHERE `+clause, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return student.Student{}, student.ErrNotFound
		}
		return student.Student{}, errors.Wrap(err, "getting student")
	}
	var st student.Student
	if err = unmarshalDoc(row, &st); err != nil {
		return student.Student{}, err
	}
	return st, nil
}

func (repo *studentRepository) selectStudents(q string, args ...interface{}) ([]student.Student, error) {
	var rows []docRow
	if err := repo.db.Select(&rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]student.Student, 0, len(rows))
	for _, row := range rows {
		var st student.Student
		if err := unmarshalDoc(row, &st); err != nil {
			return nil, err
		}
		students = append(students, st)
	}
	return students, nil
}

// mutate applies fn to the locked document and saves it.
func (repo *studentRepository) mutate(id string, fn func(st *student.Student) error) (student.Student, error) {
	var st student.Student
	err := inTx(repo.db, func(tx *sqlx.Tx) error {
		if err := getForUpdate(tx, "student", id, &st, student.ErrNotFound); err != nil {
			return err
		}
		if err := fn(&st); err != nil {
			return err
		}
		return saveDoc(tx, "student", id, st)
	})
	if err != nil {
		return student.Student{}, err
	}
	return st, nil
}
