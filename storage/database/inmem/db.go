package inmemdb

import (
	"sync"

	"github.com/trezcool/shule/core/class"
	"github.com/trezcool/shule/core/library"
	"github.com/trezcool/shule/core/scorecard"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/core/teacher"
	"github.com/trezcool/shule/core/user"
)

type (
	DB struct {
		user      *userTable
		student   *studentTable
		teacher   *teacherTable
		class     *classTable
		book      *bookTable
		scorecard *scorecardTable
	}

	userTable struct {
		table map[string]*user.User
		mutex sync.RWMutex
	}
	studentTable struct {
		table map[string]*student.Student
		mutex sync.RWMutex
	}
	teacherTable struct {
		table map[string]*teacher.Teacher
		mutex sync.RWMutex
	}
	classTable struct {
		table map[string]*class.Class
		mutex sync.RWMutex
	}
	bookTable struct {
		table map[string]*library.Book
		mutex sync.RWMutex
	}
	scorecardTable struct {
		table map[string]*scorecard.Scorecard
		mutex sync.RWMutex
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:      &userTable{table: make(map[string]*user.User)},
		student:   &studentTable{table: make(map[string]*student.Student)},
		teacher:   &teacherTable{table: make(map[string]*teacher.Teacher)},
		class:     &classTable{table: make(map[string]*class.Class)},
		book:      &bookTable{table: make(map[string]*library.Book)},
		scorecard: &scorecardTable{table: make(map[string]*scorecard.Scorecard)},
	}
	return db, nil
}
