package inmemdb

import (
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core/library"
)

type bookRepository struct {
	db *bookTable
}

func NewBookRepository(db *DB) library.Repository {
	return &bookRepository{db: db.book}
}

func (repo *bookRepository) query() []library.Book {
	books := make([]library.Book, 0, len(repo.db.table))
	for _, b := range repo.db.table {
		books = append(books, *b)
	}
	return books
}

func (repo *bookRepository) CheckTitleUniqueness(title, author string, excludedBooks ...library.Book) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	excluded := make(map[string]struct{}, len(excludedBooks))
	for _, bk := range excludedBooks {
		excluded[bk.ID] = struct{}{}
	}
	for _, bk := range repo.query() {
		if _, ok := excluded[bk.ID]; ok {
			continue
		}
		if bk.Title == title && bk.Author == author {
			return library.ErrTitleExists
		}
	}
	return nil
}

func (repo *bookRepository) CreateBook(bk library.Book) (library.Book, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if bk.ID == "" {
		bk.ID = uuid.New().String()
	}
	repo.db.table[bk.ID] = &bk
	return bk, nil
}

func (repo *bookRepository) QueryAllBooks() ([]library.Book, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.query(), nil
}

func (repo *bookRepository) GetBookByID(id string) (library.Book, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if bk, ok := repo.db.table[id]; ok {
		return *bk, nil
	}
	return library.Book{}, library.ErrNotFound
}

func (repo *bookRepository) GetBookByTitle(title, author string) (library.Book, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, bk := range repo.query() {
		if bk.Title == title && bk.Author == author {
			return bk, nil
		}
	}
	return library.Book{}, library.ErrNotFound
}

func (repo *bookRepository) UpdateBook(bk library.Book) (library.Book, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	origBk, ok := repo.db.table[bk.ID]
	if !ok {
		return library.Book{}, library.ErrNotFound
	}
	origBk.Title = bk.Title
	origBk.Author = bk.Author
	origBk.Quantity = bk.Quantity
	origBk.Price = bk.Price
	origBk.UpdatedAt = bk.UpdatedAt
	return *origBk, nil
}

// AddBookLoan holds the write lock across the stock check, the loan append
// and the quantity decrement, so two concurrent issues cannot both take the
// last copy.
func (repo *bookRepository) AddBookLoan(id string, loan library.Loan) (library.Book, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	bk, ok := repo.db.table[id]
	if !ok {
		return library.Book{}, library.ErrNotFound
	}
	if _, ok = bk.LoanFor(loan.StudentID); ok {
		return library.Book{}, library.ErrAlreadyIssued
	}
	if !bk.Available() {
		return library.Book{}, library.ErrOutOfStock
	}
	bk.Loans = append(bk.Loans, loan)
	bk.Quantity--
	bk.UpdatedAt = time.Now().UTC()
	return *bk, nil
}

func (repo *bookRepository) RemoveBookLoan(id, studentID string) (library.Book, library.Loan, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	bk, ok := repo.db.table[id]
	if !ok {
		return library.Book{}, library.Loan{}, library.ErrNotFound
	}
	for i, loan := range bk.Loans {
		if loan.StudentID == studentID {
			bk.Loans = append(bk.Loans[:i], bk.Loans[i+1:]...)
			bk.Quantity++
			bk.UpdatedAt = time.Now().UTC()
			return *bk, loan, nil
		}
	}
	return library.Book{}, library.Loan{}, library.ErrNotIssued
}

func (repo *bookRepository) DeleteBook(id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	delete(repo.db.table, id)
	return nil
}
