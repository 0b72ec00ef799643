package library

import (
	"fmt"
	"net/mail"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/student"
)

var (
	// errors
	ErrNotFound      = core.NewError(core.KindNotFound, "book not found")
	ErrTitleExists   = core.NewError(core.KindConflict, "a book with this title and author already exists")
	ErrOutOfStock    = core.NewError(core.KindCapacityExceeded, "book is out of stock")
	ErrAlreadyIssued = core.NewError(core.KindConflict, "book is already issued to this student")
	ErrNotIssued     = core.NewError(core.KindNotFound, "book is not issued to this student")
	ErrHasOpenLoans  = core.NewError(core.KindConflict, "book has open loans")
)

var nowFunc = time.Now // mocked in tests

type (
	Repository interface {
		CheckTitleUniqueness(title, author string, excludedBooks ...Book) error
		CreateBook(bk Book) (Book, error)
		QueryAllBooks() ([]Book, error)
		GetBookByID(id string) (Book, error)
		GetBookByTitle(title, author string) (Book, error)
		UpdateBook(bk Book) (Book, error)
		// AddBookLoan appends the loan and decrements the shelf quantity in a
		// single conditional write; fails with ErrOutOfStock when no copy is
		// left and with ErrAlreadyIssued when the student already holds one.
		AddBookLoan(id string, loan Loan) (Book, error)
		// RemoveBookLoan drops the student's loan and increments the shelf
		// quantity in a single write; fails with ErrNotIssued when the student
		// holds no open loan.
		RemoveBookLoan(id, studentID string) (Book, Loan, error)
		DeleteBook(id string) error
	}

	// OverdueLoan pairs an overdue loan with its book, the resolved borrower
	// and the accrued penalty.
	OverdueLoan struct {
		Book         Book   `json:"book"`
		Loan         Loan   `json:"loan"`
		StudentName  string `json:"student_name"`
		StudentEmail string `json:"student_email"`
		Days         int    `json:"days"`
	}

	Service interface {
		Add(nb NewBook, addedBy string) (Book, error)
		Update(id string, ub UpdateBook) (Book, error)
		QueryAll() ([]Book, error)
		GetByID(id string) (Book, error)
		// Issue checks out one copy of the book to the student.
		Issue(bookID, studentID string) (Book, error)
		// Return closes the student's loan, restocks the copy and accrues the
		// overdue penalty, if any, on the student. It returns the penalty days
		// charged.
		Return(bookID, studentID string) (Book, int, error)
		Delete(id string) error
		// ForEachOverdue calls fn for every open loan past due; iteration
		// stops at the first error.
		ForEachOverdue(fn func(bk Book, loan Loan, days int) error) error
		// Overdue returns all loans past due, most overdue first.
		Overdue() ([]OverdueLoan, error)
		// NotifyOverdue emails every student holding an overdue book.
		NotifyOverdue() error
	}

	service struct {
		repo    Repository
		stRepo  student.Repository
		mailSvc core.EmailService
		logger  core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, stRepo student.Repository, mailSvc core.EmailService, logger core.Logger) Service {
	return &service{
		repo:    repo,
		stRepo:  stRepo,
		mailSvc: mailSvc,
		logger:  logger,
	}
}

func (svc *service) Add(nb NewBook, addedBy string) (Book, error) {
	if err := svc.repo.CheckTitleUniqueness(nb.Title, nb.Author); err != nil {
		return Book{}, err
	}
	now := nowFunc().UTC()
	bk := Book{
		Title:     nb.Title,
		Author:    nb.Author,
		Quantity:  nb.Quantity,
		Price:     nb.Price,
		AddedBy:   addedBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateBook(bk)
}

func (svc *service) Update(id string, ub UpdateBook) (Book, error) {
	bk, err := svc.repo.GetBookByID(id)
	if err != nil {
		return Book{}, err
	}
	title, author := bk.Title, bk.Author
	if ub.Title.Valid {
		title = ub.Title.String
	}
	if ub.Author.Valid {
		author = ub.Author.String
	}
	if title != bk.Title || author != bk.Author {
		if err = svc.repo.CheckTitleUniqueness(title, author, bk); err != nil {
			return Book{}, err
		}
	}
	bk.Title = title
	bk.Author = author
	if ub.Quantity.Valid {
		bk.Quantity = int(ub.Quantity.Int)
	}
	if ub.Price.Valid {
		bk.Price = int(ub.Price.Int)
	}
	bk.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateBook(bk)
}

// QueryAll returns the catalog sorted in ascending order by title.
func (svc *service) QueryAll() ([]Book, error) {
	books, err := svc.repo.QueryAllBooks()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(books, func(i, j int) bool { return books[i].Title < books[j].Title })
	return books, nil
}

func (svc *service) GetByID(id string) (Book, error) {
	return svc.repo.GetBookByID(id)
}

// Issue checks out a copy. The book's conditional loan write guards both the
// stock level and the single-loan-per-student rule; the student's borrow limit
// is enforced on their side, and a late failure there puts the copy back.
func (svc *service) Issue(bookID, studentID string) (Book, error) {
	st, err := svc.stRepo.GetStudentByID(studentID)
	if err != nil {
		return Book{}, err
	}
	if st.HasBook(bookID) {
		return Book{}, ErrAlreadyIssued
	}
	if len(st.IssuedBooks) >= student.MaxOpenLoans {
		return Book{}, student.ErrBorrowLimit
	}

	now := nowFunc().UTC()
	loan := Loan{
		StudentID: studentID,
		IssueDate: now,
		DueDate:   now.Add(LoanPeriod),
	}
	bk, err := svc.repo.AddBookLoan(bookID, loan)
	if err != nil {
		return Book{}, err
	}
	if _, err = svc.stRepo.AddStudentBook(studentID, bookID); err != nil {
		if _, _, rbErr := svc.repo.RemoveBookLoan(bookID, studentID); rbErr != nil {
			svc.logger.Error(fmt.Sprintf("restocking book %s after failed issue to student %s: %v", bookID, studentID, rbErr), rbErr)
			return Book{}, core.NewError(core.KindStore, fmt.Sprintf("book issue partially applied: %v", err))
		}
		return Book{}, err
	}
	return bk, nil
}

// Return closes the loan. The penalty is the number of whole days past due at
// return time, charged to the student together with the loan removal.
func (svc *service) Return(bookID, studentID string) (Book, int, error) {
	if _, err := svc.stRepo.GetStudentByID(studentID); err != nil {
		return Book{}, 0, err
	}
	bk, loan, err := svc.repo.RemoveBookLoan(bookID, studentID)
	if err != nil {
		return Book{}, 0, err
	}
	days := loan.PenaltyDays(nowFunc().UTC())
	if _, err = svc.stRepo.RemoveStudentBook(studentID, bookID, days); err != nil {
		return Book{}, 0, core.NewError(core.KindStore, fmt.Sprintf("book return partially applied: %v", err))
	}
	return bk, days, nil
}

// Delete removes a book from the catalog. A book with open loans cannot be
// deleted.
func (svc *service) Delete(id string) error {
	bk, err := svc.repo.GetBookByID(id)
	if err != nil {
		return err
	}
	if len(bk.Loans) > 0 {
		return ErrHasOpenLoans
	}
	return svc.repo.DeleteBook(id)
}

func (svc *service) ForEachOverdue(fn func(bk Book, loan Loan, days int) error) error {
	books, err := svc.repo.QueryAllBooks()
	if err != nil {
		return err
	}
	now := nowFunc().UTC()
	for _, bk := range books {
		for _, loan := range bk.OverdueLoans(now) {
			if err = fn(bk, loan, loan.PenaltyDays(now)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (svc *service) Overdue() ([]OverdueLoan, error) {
	var overdue []OverdueLoan
	err := svc.ForEachOverdue(func(bk Book, loan Loan, days int) error {
		ol := OverdueLoan{Book: bk, Loan: loan, Days: days}
		if st, err := svc.stRepo.GetStudentByID(loan.StudentID); err == nil {
			ol.StudentName = st.Name
			ol.StudentEmail = st.Email
		}
		overdue = append(overdue, ol)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(overdue, func(i, j int) bool { return overdue[i].Days > overdue[j].Days })
	return overdue, nil
}

// NotifyOverdue emails each student holding an overdue book, one message per
// loan. A student lookup failure is logged and skipped.
func (svc *service) NotifyOverdue() error {
	var msgs []*core.EmailMessage
	err := svc.ForEachOverdue(func(bk Book, loan Loan, days int) error {
		st, err := svc.stRepo.GetStudentByID(loan.StudentID)
		if err != nil {
			svc.logger.Warn(fmt.Sprintf("overdue notice for book %s: student %s: %v", bk.ID, loan.StudentID, err), err)
			return nil
		}
		msgs = append(msgs, &core.EmailMessage{
			To:           []mail.Address{{Name: st.Name, Address: st.Email}},
			Subject:      fmt.Sprintf("Overdue book: %s", bk.Title),
			TemplateName: "overdue-notice",
			TemplateData: struct {
				StudentName string
				BookTitle   string
				BookAuthor  string
				DueDate     string
				Days        int
			}{
				StudentName: st.Name,
				BookTitle:   bk.Title,
				BookAuthor:  bk.Author,
				DueDate:     loan.DueDate.Format("02 Jan 2006"),
				Days:        days,
			},
		})
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "collecting overdue loans")
	}
	if len(msgs) > 0 {
		svc.mailSvc.SendMessages(msgs...)
	}
	return nil
}
