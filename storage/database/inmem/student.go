package inmemdb

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core/student"
)

type studentRepository struct {
	db *studentTable
}

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{db: db.student}
}

func (repo *studentRepository) query() []student.Student {
	students := make([]student.Student, 0, len(repo.db.table))
	for _, s := range repo.db.table {
		students = append(students, *s)
	}
	return students
}

func (repo *studentRepository) CheckEmailUniqueness(email string, excludedStudents ...student.Student) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	excluded := make(map[string]struct{}, len(excludedStudents))
	for _, st := range excludedStudents {
		excluded[st.ID] = struct{}{}
	}
	for _, st := range repo.query() {
		if _, ok := excluded[st.ID]; ok {
			continue
		}
		if st.Email == email {
			return student.ErrEmailExists
		}
	}
	return nil
}

func (repo *studentRepository) CreateStudent(st student.Student) (student.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if st.ID == "" {
		st.ID = uuid.New().String()
	}
	repo.db.table[st.ID] = &st
	return st, nil
}

func (repo *studentRepository) QueryAllStudents() ([]student.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.query(), nil
}

func (repo *studentRepository) GetStudentByID(id string) (student.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if st, ok := repo.db.table[id]; ok {
		return *st, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) GetStudentByEmail(email string) (student.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, st := range repo.query() {
		if st.Email == email {
			return st, nil
		}
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) FilterStudentsByClass(classID string) ([]student.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var students []student.Student
	for _, st := range repo.query() {
		if st.ClassID.Valid && st.ClassID.String == classID {
			students = append(students, st)
		}
	}
	sort.SliceStable(students, func(i, j int) bool { return students[i].Name < students[j].Name })
	return students, nil
}

func (repo *studentRepository) UpdateStudent(st student.Student) (student.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	origSt, ok := repo.db.table[st.ID]
	if !ok {
		return student.Student{}, student.ErrNotFound
	}
	origSt.Name = st.Name
	origSt.Phone = st.Phone
	origSt.Address = st.Address
	origSt.DOB = st.DOB
	origSt.Gender = st.Gender
	origSt.UpdatedAt = st.UpdatedAt
	return *origSt, nil
}

func (repo *studentRepository) SetStudentClass(id string, classID null.String) (student.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	st, ok := repo.db.table[id]
	if !ok {
		return student.Student{}, student.ErrNotFound
	}
	st.ClassID = classID
	st.UpdatedAt = time.Now().UTC()
	return *st, nil
}

func (repo *studentRepository) AddStudentBook(id, bookID string) (student.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	st, ok := repo.db.table[id]
	if !ok {
		return student.Student{}, student.ErrNotFound
	}
	if len(st.IssuedBooks) >= student.MaxOpenLoans {
		return student.Student{}, student.ErrBorrowLimit
	}
	st.IssuedBooks = append(st.IssuedBooks, bookID)
	st.UpdatedAt = time.Now().UTC()
	return *st, nil
}

func (repo *studentRepository) RemoveStudentBook(id, bookID string, penaltyDays int) (student.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	st, ok := repo.db.table[id]
	if !ok {
		return student.Student{}, student.ErrNotFound
	}
	idx := -1
	for i, bid := range st.IssuedBooks {
		if bid == bookID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return student.Student{}, student.ErrHasNoBook
	}
	st.IssuedBooks = append(st.IssuedBooks[:idx], st.IssuedBooks[idx+1:]...)
	st.LibraryPenalty += penaltyDays
	st.UpdatedAt = time.Now().UTC()
	return *st, nil
}

func (repo *studentRepository) AddStudentScorecard(id, scorecardID string, score int) (student.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	st, ok := repo.db.table[id]
	if !ok {
		return student.Student{}, student.ErrNotFound
	}
	st.Scorecards = append(st.Scorecards, scorecardID)
	st.TotalScore += score
	st.UpdatedAt = time.Now().UTC()
	return *st, nil
}

func (repo *studentRepository) AdjustStudentScore(id string, delta int) (student.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	st, ok := repo.db.table[id]
	if !ok {
		return student.Student{}, student.ErrNotFound
	}
	st.TotalScore += delta
	st.UpdatedAt = time.Now().UTC()
	return *st, nil
}

func (repo *studentRepository) RemoveStudentScorecard(id, scorecardID string, score int) (student.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	st, ok := repo.db.table[id]
	if !ok {
		return student.Student{}, student.ErrNotFound
	}
	for i, sid := range st.Scorecards {
		if sid == scorecardID {
			st.Scorecards = append(st.Scorecards[:i], st.Scorecards[i+1:]...)
			st.TotalScore -= score
			st.UpdatedAt = time.Now().UTC()
			break
		}
	}
	return *st, nil
}

func (repo *studentRepository) DeleteStudent(id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	delete(repo.db.table, id)
	return nil
}
