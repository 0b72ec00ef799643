package scorecard_test

import (
	"testing"
	"time"

	"github.com/pkg/errors"

	. "github.com/trezcool/shule/core/scorecard"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/storage/database/inmem"
	"github.com/trezcool/shule/tests"
)

func setup(t *testing.T) (Service, Repository, student.Repository) {
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	repo := inmemdb.NewScorecardRepository(db)
	stRepo := inmemdb.NewStudentRepository(db)
	return NewService(repo, stRepo), repo, stRepo
}

func Test_service_Add(t *testing.T) {
	svc, _, stRepo := setup(t)

	st := testutil.CreateStudent(t, stRepo, "Awe", "awe@test.cd")
	examDate := time.Date(2021, 6, 15, 0, 0, 0, 0, time.UTC)

	sc, err := svc.Add(NewScorecard{StudentID: st.ID, Subject: "math", ExamDate: examDate, Score: 80}, "tch1")
	if err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if sc.ID == "" {
		t.Error("Add() did not assign an ID")
	}
	if sc.RecordedBy != "tch1" {
		t.Errorf("Add() RecordedBy = %s, want tch1", sc.RecordedBy)
	}

	refreshed, err := stRepo.GetStudentByID(st.ID)
	if err != nil {
		t.Fatalf("GetStudentByID() failed: %v", err)
	}
	if refreshed.TotalScore != 80 || len(refreshed.Scorecards) != 1 {
		t.Errorf("Add() TotalScore = %d (%d cards), want 80 (1 card)", refreshed.TotalScore, len(refreshed.Scorecards))
	}

	// same subject and exam date
	_, err = svc.Add(NewScorecard{StudentID: st.ID, Subject: "math", ExamDate: examDate, Score: 60}, "tch2")
	if errors.Cause(err) != ErrExists {
		t.Errorf("Add() error = %v, want %v", err, ErrExists)
	}
	// same subject, another sitting: ok
	if _, err = svc.Add(NewScorecard{StudentID: st.ID, Subject: "math", ExamDate: examDate.AddDate(0, 3, 0), Score: 60}, "tch1"); err != nil {
		t.Errorf("Add() retake failed: %v", err)
	}

	// unknown student
	_, err = svc.Add(NewScorecard{StudentID: "b5abe926-78a7-461c-9a40-513c4a5de9ba", Subject: "math", ExamDate: examDate, Score: 50}, "tch1")
	if errors.Cause(err) != student.ErrNotFound {
		t.Errorf("Add() error = %v, want %v", err, student.ErrNotFound)
	}
}

func Test_service_Update(t *testing.T) {
	svc, _, stRepo := setup(t)

	st := testutil.CreateStudent(t, stRepo, "Awe", "awe@test.cd")
	examDate := time.Date(2021, 6, 15, 0, 0, 0, 0, time.UTC)

	sc, err := svc.Add(NewScorecard{StudentID: st.ID, Subject: "math", ExamDate: examDate, Score: 80}, "tch1")
	if err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	// another teacher cannot touch it
	if _, err = svc.Update(sc.ID, UpdateScorecard{Score: 90}, "tch2", false); errors.Cause(err) != ErrNotOwner {
		t.Errorf("Update() error = %v, want %v", err, ErrNotOwner)
	}

	// the recording teacher can; the student's total moves by the difference
	upd, err := svc.Update(sc.ID, UpdateScorecard{Score: 65}, "tch1", false)
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if upd.Score != 65 {
		t.Errorf("Update() Score = %d, want 65", upd.Score)
	}
	refreshed, err := stRepo.GetStudentByID(st.ID)
	if err != nil {
		t.Fatalf("GetStudentByID() failed: %v", err)
	}
	if refreshed.TotalScore != 65 {
		t.Errorf("Update() TotalScore = %d, want 65", refreshed.TotalScore)
	}

	// an admin can too
	if _, err = svc.Update(sc.ID, UpdateScorecard{Score: 70}, "adm1", true); err != nil {
		t.Errorf("Update() as admin failed: %v", err)
	}
	refreshed, _ = stRepo.GetStudentByID(st.ID)
	if refreshed.TotalScore != 70 {
		t.Errorf("Update() TotalScore = %d, want 70", refreshed.TotalScore)
	}
}

func Test_service_Delete(t *testing.T) {
	svc, _, stRepo := setup(t)

	st := testutil.CreateStudent(t, stRepo, "Awe", "awe@test.cd")
	examDate := time.Date(2021, 6, 15, 0, 0, 0, 0, time.UTC)

	sc, err := svc.Add(NewScorecard{StudentID: st.ID, Subject: "math", ExamDate: examDate, Score: 80}, "tch1")
	if err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	if err = svc.Delete(sc.ID, "tch2", false); errors.Cause(err) != ErrNotOwner {
		t.Errorf("Delete() error = %v, want %v", err, ErrNotOwner)
	}
	if err = svc.Delete(sc.ID, "tch1", false); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err = svc.GetByID(sc.ID); errors.Cause(err) != ErrNotFound {
		t.Errorf("GetByID() error = %v, want %v", err, ErrNotFound)
	}

	refreshed, err := stRepo.GetStudentByID(st.ID)
	if err != nil {
		t.Fatalf("GetStudentByID() failed: %v", err)
	}
	if refreshed.TotalScore != 0 || len(refreshed.Scorecards) != 0 {
		t.Errorf("Delete() TotalScore = %d (%d cards), want 0 (0 cards)", refreshed.TotalScore, len(refreshed.Scorecards))
	}

	// the (subject, exam date) pair is free again
	if _, err = svc.Add(NewScorecard{StudentID: st.ID, Subject: "math", ExamDate: examDate, Score: 50}, "tch1"); err != nil {
		t.Errorf("Add() after delete failed: %v", err)
	}
}

func Test_service_ForStudent(t *testing.T) {
	svc, _, stRepo := setup(t)

	st := testutil.CreateStudent(t, stRepo, "Awe", "awe@test.cd")
	d1 := time.Date(2021, 3, 15, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 3, 0)
	d3 := d1.AddDate(0, 6, 0)

	for _, c := range []struct {
		subject string
		date    time.Time
		score   int
	}{
		{"math", d1, 60},
		{"physics", d3, 90},
		{"math", d2, 75},
	} {
		if _, err := svc.Add(NewScorecard{StudentID: st.ID, Subject: c.subject, ExamDate: c.date, Score: c.score}, "tch1"); err != nil {
			t.Fatalf("Add() failed: %v", err)
		}
	}

	cards, err := svc.ForStudent(st.ID)
	if err != nil {
		t.Fatalf("ForStudent() failed: %v", err)
	}
	if len(cards) != 3 {
		t.Fatalf("ForStudent() returned %d cards, want 3", len(cards))
	}
	// newest exam first
	for i, want := range []time.Time{d3, d2, d1} {
		if !cards[i].ExamDate.Equal(want) {
			t.Errorf("ForStudent()[%d].ExamDate = %v, want %v", i, cards[i].ExamDate, want)
		}
	}
}

func Test_service_Rankings(t *testing.T) {
	svc, repo, stRepo := setup(t)

	st1 := testutil.CreateStudent(t, stRepo, "Awe", "awe@test.cd")
	st2 := testutil.CreateStudent(t, stRepo, "King", "king@test.cd")
	st3 := testutil.CreateStudent(t, stRepo, "Hero", "hero@test.cd")
	st4 := testutil.CreateStudent(t, stRepo, "Zed", "zed@test.cd") // no scorecards

	examDate := time.Date(2021, 6, 15, 0, 0, 0, 0, time.UTC)
	testutil.CreateScorecard(t, repo, stRepo, st1.ID, "math", examDate, 60)
	testutil.CreateScorecard(t, repo, stRepo, st1.ID, "physics", examDate, 90) // avg 75
	testutil.CreateScorecard(t, repo, stRepo, st2.ID, "math", examDate, 75)    // avg 75, ties with st1
	testutil.CreateScorecard(t, repo, stRepo, st3.ID, "math", examDate, 90)    // avg 90

	ranks, err := svc.Rankings()
	if err != nil {
		t.Fatalf("Rankings() failed: %v", err)
	}
	if len(ranks) != 4 {
		t.Fatalf("Rankings() returned %d ranks, want 4", len(ranks))
	}

	wantOrder := []string{st3.ID, st1.ID, st2.ID, st4.ID} // tie broken by name: Awe before King
	for i, want := range wantOrder {
		if ranks[i].Student.ID != want {
			t.Errorf("Rankings()[%d].Student = %s, want %s", i, ranks[i].Student.Name, want)
		}
		if ranks[i].Position != i+1 {
			t.Errorf("Rankings()[%d].Position = %d, want %d", i, ranks[i].Position, i+1)
		}
	}
	if ranks[0].Average != 90 {
		t.Errorf("Rankings()[0].Average = %v, want 90", ranks[0].Average)
	}
	// the ungraded student trails with a zero average
	if ranks[3].Average != 0 {
		t.Errorf("Rankings()[3].Average = %v, want 0", ranks[3].Average)
	}

	// stable across reruns
	again, err := svc.Rankings()
	if err != nil {
		t.Fatalf("Rankings() failed: %v", err)
	}
	for i := range ranks {
		if again[i].Student.ID != ranks[i].Student.ID {
			t.Errorf("Rankings() rerun changed order at %d: %s != %s", i, again[i].Student.Name, ranks[i].Student.Name)
		}
	}
}
