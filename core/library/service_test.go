package library_test

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	. "github.com/trezcool/shule/core/library"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/services/email"
	"github.com/trezcool/shule/storage/database/inmem"
	"github.com/trezcool/shule/tests"
)

func setup(t *testing.T) (Service, Repository, student.Repository) {
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	repo := inmemdb.NewBookRepository(db)
	stRepo := inmemdb.NewStudentRepository(db)
	mailSvc := emailsvc.NewConsoleServiceMock(testutil.NewConfig())
	svc := NewService(repo, stRepo, mailSvc, testutil.NewLogger())
	return svc, repo, stRepo
}

func Test_service_Add(t *testing.T) {
	svc, repo, _ := setup(t)

	bk, err := svc.Add(NewBook{Title: "Ingenious Hidalgo", Author: "Cervantes", Quantity: 3, Price: 25}, "lib1")
	if err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if bk.ID == "" {
		t.Error("Add() did not assign an ID")
	}
	if bk.Quantity != 3 {
		t.Errorf("Add() Quantity = %d, want 3", bk.Quantity)
	}

	// same title, different author: ok
	if _, err = svc.Add(NewBook{Title: "Ingenious Hidalgo", Author: "Avellaneda", Quantity: 1}, "lib1"); err != nil {
		t.Errorf("Add() same title, different author failed: %v", err)
	}

	// duplicate title+author
	if _, err = svc.Add(NewBook{Title: "Ingenious Hidalgo", Author: "Cervantes", Quantity: 1}, "lib1"); errors.Cause(err) != ErrTitleExists {
		t.Errorf("Add() error = %v, want %v", err, ErrTitleExists)
	}

	if _, err = repo.GetBookByTitle("Ingenious Hidalgo", "Cervantes"); err != nil {
		t.Errorf("GetBookByTitle() failed: %v", err)
	}
}

func Test_service_Update(t *testing.T) {
	svc, repo, _ := setup(t)

	bk1 := testutil.CreateBook(t, repo, "Dune", "Herbert", 2)
	testutil.CreateBook(t, repo, "Hyperion", "Simmons", 1)

	// retitle onto an existing title+author
	_, err := svc.Update(bk1.ID, UpdateBook{Title: null.StringFrom("Hyperion"), Author: null.StringFrom("Simmons")})
	if errors.Cause(err) != ErrTitleExists {
		t.Errorf("Update() error = %v, want %v", err, ErrTitleExists)
	}

	// partial update leaves unset fields alone
	upd, err := svc.Update(bk1.ID, UpdateBook{Quantity: null.IntFrom(5)})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if upd.Title != "Dune" || upd.Author != "Herbert" {
		t.Errorf("Update() changed title/author: got %s by %s", upd.Title, upd.Author)
	}
	if upd.Quantity != 5 {
		t.Errorf("Update() Quantity = %d, want 5", upd.Quantity)
	}

	if _, err = svc.Update("4272913d-a6c0-4e21-a139-6a17f4f980bf", UpdateBook{}); errors.Cause(err) != ErrNotFound {
		t.Errorf("Update() error = %v, want %v", err, ErrNotFound)
	}
}

func Test_service_IssueReturn(t *testing.T) {
	svc, repo, stRepo := setup(t)

	bk := testutil.CreateBook(t, repo, "Dune", "Herbert", 1)
	st1 := testutil.CreateStudent(t, stRepo, "Awe", "awe@test.cd")
	st2 := testutil.CreateStudent(t, stRepo, "King", "king@test.cd")

	issueDate := time.Date(2021, 3, 1, 9, 0, 0, 0, time.UTC)
	SetNowFunc(func() time.Time { return issueDate })
	defer SetNowFunc(time.Now)

	issued, err := svc.Issue(bk.ID, st1.ID)
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}
	if issued.Quantity != 0 {
		t.Errorf("Issue() Quantity = %d, want 0", issued.Quantity)
	}
	loan, ok := issued.LoanFor(st1.ID)
	if !ok {
		t.Fatal("Issue() did not record the loan")
	}
	if want := issueDate.Add(LoanPeriod); !loan.DueDate.Equal(want) {
		t.Errorf("Issue() DueDate = %v, want %v", loan.DueDate, want)
	}
	refreshed, err := stRepo.GetStudentByID(st1.ID)
	if err != nil {
		t.Fatalf("GetStudentByID() failed: %v", err)
	}
	if !refreshed.HasBook(bk.ID) {
		t.Error("Issue() did not record the book on the student")
	}

	// double issue to the same student
	if _, err = svc.Issue(bk.ID, st1.ID); errors.Cause(err) != ErrAlreadyIssued {
		t.Errorf("Issue() error = %v, want %v", err, ErrAlreadyIssued)
	}
	// last copy is out
	if _, err = svc.Issue(bk.ID, st2.ID); errors.Cause(err) != ErrOutOfStock {
		t.Errorf("Issue() error = %v, want %v", err, ErrOutOfStock)
	}

	// return 5 days and change past due: 5 whole penalty days
	SetNowFunc(func() time.Time { return loan.DueDate.Add(5*24*time.Hour + 7*time.Hour) })

	returned, days, err := svc.Return(bk.ID, st1.ID)
	if err != nil {
		t.Fatalf("Return() failed: %v", err)
	}
	if days != 5 {
		t.Errorf("Return() days = %d, want 5", days)
	}
	if returned.Quantity != 1 {
		t.Errorf("Return() Quantity = %d, want 1", returned.Quantity)
	}
	if len(returned.Loans) != 0 {
		t.Errorf("Return() left %d open loans", len(returned.Loans))
	}
	refreshed, err = stRepo.GetStudentByID(st1.ID)
	if err != nil {
		t.Fatalf("GetStudentByID() failed: %v", err)
	}
	if refreshed.HasBook(bk.ID) {
		t.Error("Return() left the book on the student")
	}
	if refreshed.LibraryPenalty != 5 {
		t.Errorf("Return() LibraryPenalty = %d, want 5", refreshed.LibraryPenalty)
	}

	// returning again
	if _, _, err = svc.Return(bk.ID, st1.ID); errors.Cause(err) != ErrNotIssued {
		t.Errorf("Return() error = %v, want %v", err, ErrNotIssued)
	}
}

func Test_service_Return_onTime(t *testing.T) {
	svc, repo, stRepo := setup(t)

	bk := testutil.CreateBook(t, repo, "Dune", "Herbert", 1)
	st := testutil.CreateStudent(t, stRepo, "Awe", "awe@test.cd")

	issueDate := time.Date(2021, 3, 1, 9, 0, 0, 0, time.UTC)
	SetNowFunc(func() time.Time { return issueDate })
	defer SetNowFunc(time.Now)

	if _, err := svc.Issue(bk.ID, st.ID); err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}

	// an hour before due: no penalty
	SetNowFunc(func() time.Time { return issueDate.Add(LoanPeriod - time.Hour) })

	_, days, err := svc.Return(bk.ID, st.ID)
	if err != nil {
		t.Fatalf("Return() failed: %v", err)
	}
	if days != 0 {
		t.Errorf("Return() days = %d, want 0", days)
	}
	refreshed, err := stRepo.GetStudentByID(st.ID)
	if err != nil {
		t.Fatalf("GetStudentByID() failed: %v", err)
	}
	if refreshed.LibraryPenalty != 0 {
		t.Errorf("Return() LibraryPenalty = %d, want 0", refreshed.LibraryPenalty)
	}
}

func Test_service_Issue_borrowLimit(t *testing.T) {
	svc, repo, stRepo := setup(t)

	st := testutil.CreateStudent(t, stRepo, "Awe", "awe@test.cd")
	for i, title := range []string{"B1", "B2", "B3"} {
		bk := testutil.CreateBook(t, repo, title, "A", 1)
		if _, err := svc.Issue(bk.ID, st.ID); err != nil {
			t.Fatalf("Issue() #%d failed: %v", i+1, err)
		}
	}

	extra := testutil.CreateBook(t, repo, "B4", "A", 1)
	if _, err := svc.Issue(extra.ID, st.ID); errors.Cause(err) != student.ErrBorrowLimit {
		t.Errorf("Issue() error = %v, want %v", err, student.ErrBorrowLimit)
	}
	// the copy stayed on the shelf
	refreshed, err := repo.GetBookByID(extra.ID)
	if err != nil {
		t.Fatalf("GetBookByID() failed: %v", err)
	}
	if refreshed.Quantity != 1 || len(refreshed.Loans) != 0 {
		t.Errorf("Issue() did not restock: Quantity = %d, Loans = %d", refreshed.Quantity, len(refreshed.Loans))
	}
}

func Test_service_Delete(t *testing.T) {
	svc, repo, stRepo := setup(t)

	bk := testutil.CreateBook(t, repo, "Dune", "Herbert", 2)
	st := testutil.CreateStudent(t, stRepo, "Awe", "awe@test.cd")

	if _, err := svc.Issue(bk.ID, st.ID); err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}
	if err := svc.Delete(bk.ID); errors.Cause(err) != ErrHasOpenLoans {
		t.Errorf("Delete() error = %v, want %v", err, ErrHasOpenLoans)
	}

	if _, _, err := svc.Return(bk.ID, st.ID); err != nil {
		t.Fatalf("Return() failed: %v", err)
	}
	if err := svc.Delete(bk.ID); err != nil {
		t.Errorf("Delete() failed: %v", err)
	}
	if _, err := svc.GetByID(bk.ID); errors.Cause(err) != ErrNotFound {
		t.Errorf("GetByID() error = %v, want %v", err, ErrNotFound)
	}
}

func Test_service_Overdue(t *testing.T) {
	svc, repo, stRepo := setup(t)

	bk1 := testutil.CreateBook(t, repo, "Dune", "Herbert", 1)
	bk2 := testutil.CreateBook(t, repo, "Hyperion", "Simmons", 1)
	bk3 := testutil.CreateBook(t, repo, "Solaris", "Lem", 1)
	st1 := testutil.CreateStudent(t, stRepo, "Awe", "awe@test.cd")
	st2 := testutil.CreateStudent(t, stRepo, "King", "king@test.cd")

	base := time.Date(2021, 3, 1, 9, 0, 0, 0, time.UTC)
	defer SetNowFunc(time.Now)

	issue := func(bookID, studentID string, at time.Time) {
		SetNowFunc(func() time.Time { return at })
		if _, err := svc.Issue(bookID, studentID); err != nil {
			t.Fatalf("Issue() failed: %v", err)
		}
	}
	issue(bk1.ID, st1.ID, base)                     // 10 days late at check time
	issue(bk2.ID, st2.ID, base.Add(-48*time.Hour))  // 12 days late
	issue(bk3.ID, st1.ID, base.Add(15*24*time.Hour)) // not due yet

	SetNowFunc(func() time.Time { return base.Add(LoanPeriod + 10*24*time.Hour + time.Minute) })

	overdue, err := svc.Overdue()
	if err != nil {
		t.Fatalf("Overdue() failed: %v", err)
	}
	if len(overdue) != 2 {
		t.Fatalf("Overdue() returned %d loans, want 2", len(overdue))
	}
	// most overdue first
	if overdue[0].Book.ID != bk2.ID || overdue[0].Days != 12 {
		t.Errorf("Overdue()[0] = %s/%d days, want %s/12 days", overdue[0].Book.ID, overdue[0].Days, bk2.ID)
	}
	if overdue[1].Book.ID != bk1.ID || overdue[1].Days != 10 {
		t.Errorf("Overdue()[1] = %s/%d days, want %s/10 days", overdue[1].Book.ID, overdue[1].Days, bk1.ID)
	}
	if overdue[0].StudentName != st2.Name || overdue[0].StudentEmail != st2.Email {
		t.Errorf("Overdue()[0] borrower = %s <%s>, want %s <%s>",
			overdue[0].StudentName, overdue[0].StudentEmail, st2.Name, st2.Email)
	}
}

func Test_service_NotifyOverdue(t *testing.T) {
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	repo := inmemdb.NewBookRepository(db)
	stRepo := inmemdb.NewStudentRepository(db)

	conf := testutil.NewConfig()
	conf.WorkDir = filepath.Join("..", "..")
	core.ParseEmailTemplates(conf, testutil.NewLogger())

	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	svc := NewService(repo, stRepo, mailSvc, testutil.NewLogger())

	bk := testutil.CreateBook(t, repo, "Dune", "Herbert", 1)
	st := testutil.CreateStudent(t, stRepo, "Awe", "awe@test.cd")

	base := time.Date(2021, 3, 1, 9, 0, 0, 0, time.UTC)
	SetNowFunc(func() time.Time { return base })
	defer SetNowFunc(time.Now)

	if _, err = svc.Issue(bk.ID, st.ID); err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}

	SetNowFunc(func() time.Time { return base.Add(LoanPeriod + 3*24*time.Hour + time.Minute) })

	sent := len(emailsvc.SentMessages)
	if err = svc.NotifyOverdue(); err != nil {
		t.Fatalf("NotifyOverdue() failed: %v", err)
	}
	msgs := emailsvc.SentMessages[sent:]
	if len(msgs) != 1 {
		t.Fatalf("NotifyOverdue() sent %d messages, want 1", len(msgs))
	}
	msg := msgs[0]
	if msg.To[0].Address != st.Email {
		t.Errorf("NotifyOverdue() To = %s, want %s", msg.To[0].Address, st.Email)
	}
	if want := "Overdue book: Dune"; msg.Subject != want {
		t.Errorf("NotifyOverdue() Subject = %q, want %q", msg.Subject, want)
	}
	if !strings.Contains(msg.TextContent, "3 day(s) overdue") {
		t.Errorf("NotifyOverdue() body does not mention the penalty:\n%s", msg.TextContent)
	}
}
