package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core/library"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/tests"
)

func Test_libraryApi_books(t *testing.T) {
	app := setup(t)

	_, adminToken := createAdmin(t)
	_, tchToken := createTeacherUser(t, "Prof", "prof01", "prof@test.cd")
	_, libToken := createTeacherUser(t, "Libr", "libr01", "libr@test.cd", user.RoleLibrarian)
	_, stToken := createStudentUser(t, "Awe", "awe001", "awe@test.cd")

	body := marchallObj(t, library.NewBook{Title: "Dune", Author: "Herbert", Quantity: 3, Price: 25})

	// a plain teacher is not library staff
	req, rec := newAuthRequest(http.MethodPost, "/v1/books", tchToken, body)
	app.ServeHTTP(rec, req)
	checkError(t, rec, http.StatusForbidden, errPermissionDenied)

	req, rec = newAuthRequest(http.MethodPost, "/v1/books", libToken, body)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusCreated)
	var bk library.Book
	decodeInto(t, rec, &bk)
	if bk.ID == "" || bk.Quantity != 3 {
		t.Errorf("create returned %+v", bk)
	}

	// duplicate title+author
	req, rec = newAuthRequest(http.MethodPost, "/v1/books", libToken, body)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusBadRequest)

	// anyone signed in can browse the catalog
	req, rec = newAuthRequest(http.MethodGet, "/v1/books", stToken)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)
	var books []library.Book
	decodeInto(t, rec, &books)
	if len(books) != 1 {
		t.Errorf("query returned %d books, want 1", len(books))
	}

	// but not unauthenticated
	req, rec = newRequest(http.MethodGet, "/v1/books")
	app.ServeHTTP(rec, req)
	checkError(t, rec, http.StatusUnauthorized, errMissingToken)

	// update
	req, rec = newAuthRequest(http.MethodPut, "/v1/books/"+bk.ID, adminToken,
		marchallObj(t, library.UpdateBook{Quantity: null.IntFrom(5)}))
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)
	decodeInto(t, rec, &bk)
	if bk.Quantity != 5 {
		t.Errorf("update Quantity = %d, want 5", bk.Quantity)
	}

	// destroy
	req, rec = newAuthRequest(http.MethodDelete, "/v1/books/"+bk.ID, libToken)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusNoContent)
}

func Test_libraryApi_issueReturn(t *testing.T) {
	app := setup(t)

	_, libToken := createTeacherUser(t, "Libr", "libr01", "libr@test.cd", user.RoleLibrarian)
	st, _ := createStudentUser(t, "Awe", "awe001", "awe@test.cd")
	bk := testutil.CreateBook(t, bkRepo, "Dune", "Herbert", 1)

	req, rec := newAuthRequest(http.MethodPost, "/v1/books/"+bk.ID+"/issue/"+st.ID, libToken)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)
	var issued library.Book
	decodeInto(t, rec, &issued)
	if issued.Quantity != 0 || len(issued.Loans) != 1 {
		t.Errorf("issue returned %+v", issued)
	}

	// the same copy cannot go out twice
	req, rec = newAuthRequest(http.MethodPost, "/v1/books/"+bk.ID+"/issue/"+st.ID, libToken)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusBadRequest)

	req, rec = newAuthRequest(http.MethodPost, "/v1/books/"+bk.ID+"/return/"+st.ID, libToken)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)
	var resp echoapi.ReturnResponse
	decodeInto(t, rec, &resp)
	if resp.PenaltyDays != 0 {
		t.Errorf("return PenaltyDays = %d, want 0", resp.PenaltyDays)
	}
	if resp.Book.Quantity != 1 {
		t.Errorf("return Quantity = %d, want 1", resp.Book.Quantity)
	}

	// nothing left to return
	req, rec = newAuthRequest(http.MethodPost, "/v1/books/"+bk.ID+"/return/"+st.ID, libToken)
	app.ServeHTTP(rec, req)
	checkError(t, rec, http.StatusNotFound, httpErr{Error: "book is not issued to this student"})
}

func Test_libraryApi_overdue(t *testing.T) {
	app := setup(t)

	_, libToken := createTeacherUser(t, "Libr", "libr01", "libr@test.cd", user.RoleLibrarian)
	st, _ := createStudentUser(t, "Awe", "awe001", "awe@test.cd")
	bk := testutil.CreateBook(t, bkRepo, "Dune", "Herbert", 1)

	// a loan four days past due
	now := time.Now().UTC()
	if _, err := bkRepo.AddBookLoan(bk.ID, library.Loan{
		StudentID: st.ID,
		IssueDate: now.Add(-34 * 24 * time.Hour),
		DueDate:   now.Add(-4*24*time.Hour - time.Minute),
	}); err != nil {
		t.Fatalf("AddBookLoan() failed: %v", err)
	}
	if _, err := stRepo.AddStudentBook(st.ID, bk.ID); err != nil {
		t.Fatalf("AddStudentBook() failed: %v", err)
	}

	req, rec := newAuthRequest(http.MethodGet, "/v1/books/overdue", libToken)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)
	var overdue []library.OverdueLoan
	decodeInto(t, rec, &overdue)
	if len(overdue) != 1 {
		t.Fatalf("overdue returned %d loans, want 1", len(overdue))
	}
	if overdue[0].Days != 4 {
		t.Errorf("overdue Days = %d, want 4", overdue[0].Days)
	}
	if overdue[0].StudentEmail != st.Email {
		t.Errorf("overdue StudentEmail = %s, want %s", overdue[0].StudentEmail, st.Email)
	}

	req, rec = newAuthRequest(http.MethodPost, "/v1/books/overdue/notify", libToken)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)

	// returning the book settles the penalty on the student
	req, rec = newAuthRequest(http.MethodPost, "/v1/books/"+bk.ID+"/return/"+st.ID, libToken)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)
	var resp echoapi.ReturnResponse
	decodeInto(t, rec, &resp)
	if resp.PenaltyDays != 4 {
		t.Errorf("return PenaltyDays = %d, want 4", resp.PenaltyDays)
	}
	refreshed, err := stRepo.GetStudentByID(st.ID)
	if err != nil {
		t.Fatalf("GetStudentByID() failed: %v", err)
	}
	if refreshed.LibraryPenalty != 4 {
		t.Errorf("LibraryPenalty = %d, want 4", refreshed.LibraryPenalty)
	}
}
