package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/trezcool/shule/core/scorecard"
	"github.com/trezcool/shule/tests"
)

func Test_scorecardApi_create(t *testing.T) {
	app := setup(t)

	_, tchToken := createTeacherUser(t, "Prof", "prof01", "prof@test.cd")
	st, stToken := createStudentUser(t, "Awe", "awe001", "awe@test.cd")

	examDate := time.Date(2021, 6, 15, 0, 0, 0, 0, time.UTC)
	body := marchallObj(t, scorecard.NewScorecard{StudentID: st.ID, Subject: "Math", ExamDate: examDate, Score: 80, Comments: "solid work"})

	// grading is staff work
	req, rec := newAuthRequest(http.MethodPost, "/v1/scorecards", stToken, body)
	app.ServeHTTP(rec, req)
	checkError(t, rec, http.StatusForbidden, errPermissionDenied)

	req, rec = newAuthRequest(http.MethodPost, "/v1/scorecards", tchToken, body)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusCreated)
	var sc scorecard.Scorecard
	decodeInto(t, rec, &sc)
	if sc.Subject != "math" { // subjects are normalized
		t.Errorf("create Subject = %s, want math", sc.Subject)
	}
	if sc.Comments != "solid work" {
		t.Errorf("create Comments = %s, want solid work", sc.Comments)
	}

	// one scorecard per (student, subject, exam date)
	req, rec = newAuthRequest(http.MethodPost, "/v1/scorecards", tchToken, body)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusBadRequest)

	// score bounds
	body = marchallObj(t, scorecard.NewScorecard{StudentID: st.ID, Subject: "Physics", ExamDate: examDate, Score: 150})
	req, rec = newAuthRequest(http.MethodPost, "/v1/scorecards", tchToken, body)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusBadRequest)
}

func Test_scorecardApi_ownership(t *testing.T) {
	app := setup(t)

	_, adminToken := createAdmin(t)
	_, tchToken := createTeacherUser(t, "Prof", "prof01", "prof@test.cd")
	_, otherToken := createTeacherUser(t, "Rival", "rival1", "rival@test.cd")
	st, _ := createStudentUser(t, "Awe", "awe001", "awe@test.cd")

	examDate := time.Date(2021, 6, 15, 0, 0, 0, 0, time.UTC)
	body := marchallObj(t, scorecard.NewScorecard{StudentID: st.ID, Subject: "math", ExamDate: examDate, Score: 80})
	req, rec := newAuthRequest(http.MethodPost, "/v1/scorecards", tchToken, body)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusCreated)
	var sc scorecard.Scorecard
	decodeInto(t, rec, &sc)

	upd := marchallObj(t, scorecard.UpdateScorecard{Score: 60})

	// another teacher may not regrade it
	req, rec = newAuthRequest(http.MethodPut, "/v1/scorecards/"+sc.ID, otherToken, upd)
	app.ServeHTTP(rec, req)
	checkError(t, rec, http.StatusForbidden, httpErr{Error: "scorecard was recorded by another teacher"})

	// the recording teacher may
	req, rec = newAuthRequest(http.MethodPut, "/v1/scorecards/"+sc.ID, tchToken, upd)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)
	decodeInto(t, rec, &sc)
	if sc.Score != 60 {
		t.Errorf("update Score = %d, want 60", sc.Score)
	}
	refreshed, err := stRepo.GetStudentByID(st.ID)
	if err != nil {
		t.Fatalf("GetStudentByID() failed: %v", err)
	}
	if refreshed.TotalScore != 60 {
		t.Errorf("TotalScore = %d, want 60", refreshed.TotalScore)
	}

	// admins override ownership
	req, rec = newAuthRequest(http.MethodDelete, "/v1/scorecards/"+sc.ID, adminToken)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusNoContent)
	refreshed, _ = stRepo.GetStudentByID(st.ID)
	if refreshed.TotalScore != 0 {
		t.Errorf("TotalScore = %d, want 0", refreshed.TotalScore)
	}
}

func Test_scorecardApi_queryForStudent(t *testing.T) {
	app := setup(t)

	_, tchToken := createTeacherUser(t, "Prof", "prof01", "prof@test.cd")
	st, stToken := createStudentUser(t, "Awe", "awe001", "awe@test.cd")
	other, otherToken := createStudentUser(t, "King", "king01", "king@test.cd")

	examDate := time.Date(2021, 6, 15, 0, 0, 0, 0, time.UTC)
	testutil.CreateScorecard(t, scRepo, stRepo, st.ID, "math", examDate, 80)
	testutil.CreateScorecard(t, scRepo, stRepo, st.ID, "physics", examDate.AddDate(0, 0, 7), 90)

	// own results
	req, rec := newAuthRequest(http.MethodGet, "/v1/scorecards/students/"+st.ID, stToken)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)
	var cards []scorecard.Scorecard
	decodeInto(t, rec, &cards)
	if len(cards) != 2 {
		t.Fatalf("queryForStudent returned %d cards, want 2", len(cards))
	}
	// newest exam first
	if cards[0].Subject != "physics" {
		t.Errorf("queryForStudent[0].Subject = %s, want physics", cards[0].Subject)
	}

	// someone else's results are invisible
	req, rec = newAuthRequest(http.MethodGet, "/v1/scorecards/students/"+st.ID, otherToken)
	app.ServeHTTP(rec, req)
	checkError(t, rec, http.StatusNotFound, httpErr{Error: "not found"})

	// staff see them
	req, rec = newAuthRequest(http.MethodGet, "/v1/scorecards/students/"+other.ID, tchToken)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)
}

func Test_scorecardApi_rankings(t *testing.T) {
	app := setup(t)

	_, tchToken := createTeacherUser(t, "Prof", "prof01", "prof@test.cd")
	st1, _ := createStudentUser(t, "Awe", "awe001", "awe@test.cd")
	st2, _ := createStudentUser(t, "King", "king01", "king@test.cd")
	st3, _ := createStudentUser(t, "Zed", "zed001", "zed@test.cd") // no grades

	examDate := time.Date(2021, 6, 15, 0, 0, 0, 0, time.UTC)
	testutil.CreateScorecard(t, scRepo, stRepo, st1.ID, "math", examDate, 60)
	testutil.CreateScorecard(t, scRepo, stRepo, st2.ID, "math", examDate, 90)

	req, rec := newAuthRequest(http.MethodGet, "/v1/scorecards/rankings", tchToken)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)
	var ranks []scorecard.Rank
	decodeInto(t, rec, &ranks)
	if len(ranks) != 3 {
		t.Fatalf("rankings returned %d ranks, want 3", len(ranks))
	}
	wantOrder := []string{st2.ID, st1.ID, st3.ID}
	for i, want := range wantOrder {
		if ranks[i].Student.ID != want {
			t.Errorf("rankings[%d] = %s, want %s", i, ranks[i].Student.Name, want)
		}
	}
}
