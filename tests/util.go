package testutil

import (
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/class"
	"github.com/trezcool/shule/core/library"
	"github.com/trezcool/shule/core/scorecard"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/core/teacher"
	"github.com/trezcool/shule/core/user"
)

// NewConfig returns a Config suitable for tests; nothing external is contacted.
func NewConfig() *core.Config {
	return &core.Config{
		TestMode:        true,
		Env:             "TEST",
		AppName:         "Shule",
		SecretKey:       []byte("secret"),
		FrontendBaseURL: "http://localhost:3000",
		Server: core.ServerConfig{
			JWTExpirationDelta:        7 * 24 * time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		},
	}
}

type noopLogger struct{}

func (noopLogger) Enable(bool)                  {}
func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) Fatal(string, ...interface{}) {}

// NewLogger returns a logger that discards everything.
func NewLogger() core.Logger { return noopLogger{} }

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateStudent(t *testing.T, repo student.Repository, name, email string) student.Student {
	t.Helper()

	now := time.Now().UTC()
	st, err := repo.CreateStudent(student.Student{
		Name:      name,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return st
}

func CreateTeacher(t *testing.T, repo teacher.Repository, name, email string) teacher.Teacher {
	t.Helper()

	now := time.Now().UTC()
	tch, err := repo.CreateTeacher(teacher.Teacher{
		Name:      name,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateTeacher() failed: %v", err)
	}
	return tch
}

func CreateClass(t *testing.T, repo class.Repository, name string, capacity int) class.Class {
	t.Helper()

	now := time.Now().UTC()
	cls, err := repo.CreateClass(class.Class{
		Name:      name,
		Capacity:  capacity,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateClass() failed: %v", err)
	}
	return cls
}

func CreateBook(t *testing.T, repo library.Repository, title, author string, quantity int) library.Book {
	t.Helper()

	now := time.Now().UTC()
	bk, err := repo.CreateBook(library.Book{
		Title:     title,
		Author:    author,
		Quantity:  quantity,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateBook() failed: %v", err)
	}
	return bk
}

func CreateScorecard(
	t *testing.T,
	repo scorecard.Repository,
	stRepo student.Repository,
	studentID, subject string,
	examDate time.Time,
	score int,
) scorecard.Scorecard {
	t.Helper()

	now := time.Now().UTC()
	sc, err := repo.CreateScorecard(scorecard.Scorecard{
		StudentID: studentID,
		Subject:   subject,
		ExamDate:  examDate,
		Score:     score,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateScorecard() failed: %v", err)
	}
	if _, err = stRepo.AddStudentScorecard(studentID, sc.ID, sc.Score); err != nil {
		t.Fatalf("CreateScorecard() failed: %v", err)
	}
	return sc
}

// EnrollStudent links the student and the class on both sides.
func EnrollStudent(t *testing.T, clsRepo class.Repository, stRepo student.Repository, classID, studentID string) {
	t.Helper()

	if _, err := clsRepo.AddClassStudent(classID, studentID); err != nil {
		t.Fatalf("EnrollStudent() failed: %v", err)
	}
	if _, err := stRepo.SetStudentClass(studentID, null.StringFrom(classID)); err != nil {
		t.Fatalf("EnrollStudent() failed: %v", err)
	}
}
