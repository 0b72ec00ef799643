package pgdb

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/library"
)

type bookRepository struct {
	db *sqlx.DB
}

func NewBookRepository(db *sqlx.DB) library.Repository {
	return &bookRepository{db: db}
}

func (repo *bookRepository) CheckTitleUniqueness(title, author string, excludedBooks ...library.Book) error {
	exclIDs := make([]string, 0, len(excludedBooks))
	for _, bk := range excludedBooks {
		exclIDs = append(exclIDs, bk.ID)
	}
	var exists bool
	err := repo.db.Get(&exists, `
		SELECT EXISTS (
			SELECT 1 FROM book
			WHERE doc ->> 'title' = $1 AND doc ->> 'author' = $2 AND NOT (id::text = ANY($3))
		)`, title, author, pq.Array(exclIDs))
	if err != nil {
		return errors.Wrap(err, "checking book title")
	}
	if exists {
		return library.ErrTitleExists
	}
	return nil
}

func (repo *bookRepository) CreateBook(bk library.Book) (library.Book, error) {
	if bk.ID == "" {
		bk.ID = uuid.New().String()
	}
	doc, err := marshalDoc(bk)
	if err != nil {
		return library.Book{}, err
	}
	if _, err = repo.db.Exec(`INSERT INTO book (id, doc) VALUES ($1, $2)`, bk.ID, doc); err != nil {
		return library.Book{}, errors.Wrap(err, "inserting book")
	}
	return bk, nil
}

func (repo *bookRepository) QueryAllBooks() ([]library.Book, error) {
	var rows []docRow
	if err := repo.db.Select(&rows, `SELECT id, doc FROM book`); err != nil {
		return nil, errors.Wrap(err, "querying books")
	}
	books := make([]library.Book, 0, len(rows))
	for _, row := range rows {
		var bk library.Book
		if err := unmarshalDoc(row, &bk); err != nil {
			return nil, err
		}
		books = append(books, bk)
	}
	return books, nil
}

func (repo *bookRepository) GetBookByID(id string) (library.Book, error) {
	if _, err := uuid.Parse(id); err != nil {
		return library.Book{}, library.ErrNotFound
	}
	return repo.getBy(`id = $1`, id)
}

func (repo *bookRepository) GetBookByTitle(title, author string) (library.Book, error) {
	return repo.getBy(`doc ->> 'title' = $1 AND doc ->> 'author' = $2`, title, author)
}

func (repo *bookRepository) UpdateBook(bk library.Book) (library.Book, error) {
	return repo.mutate(bk.ID, func(orig *library.Book) error {
		orig.Title = bk.Title
		orig.Author = bk.Author
		orig.Quantity = bk.Quantity
		orig.Price = bk.Price
		orig.UpdatedAt = bk.UpdatedAt
		return nil
	})
}

// AddBookLoan locks the book row across the stock check, the loan append and
// the quantity decrement, so two concurrent issues cannot both take the last
// copy.
func (repo *bookRepository) AddBookLoan(id string, loan library.Loan) (library.Book, error) {
	return repo.mutate(id, func(bk *library.Book) error {
		if _, ok := bk.LoanFor(loan.StudentID); ok {
			return library.ErrAlreadyIssued
		}
		if !bk.Available() {
			return library.ErrOutOfStock
		}
		bk.Loans = append(bk.Loans, loan)
		bk.Quantity--
		bk.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (repo *bookRepository) RemoveBookLoan(id, studentID string) (library.Book, library.Loan, error) {
	var removed library.Loan
	bk, err := repo.mutate(id, func(bk *library.Book) error {
		for i, loan := range bk.Loans {
			if loan.StudentID == studentID {
				removed = loan
				bk.Loans = append(bk.Loans[:i], bk.Loans[i+1:]...)
				bk.Quantity++
				bk.UpdatedAt = time.Now().UTC()
				return nil
			}
		}
		return library.ErrNotIssued
	})
	if err != nil {
		return library.Book{}, library.Loan{}, err
	}
	return bk, removed, nil
}

func (repo *bookRepository) DeleteBook(id string) error {
	if _, err := repo.db.Exec(`DELETE FROM book WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting book")
	}
	return nil
}

func (repo *bookRepository) getBy(clause string, args ...interface{}) (library.Book, error) {
	var row docRow
	err := repo.db.Get(&row, `SELECT id, doc FROM book WHERE `+clause, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return library.Book{}, library.ErrNotFound
		}
		return library.Book{}, errors.Wrap(err, "getting book")
	}
	var bk library.Book
	if err = unmarshalDoc(row, &bk); err != nil {
		return library.Book{}, err
	}
	return bk, nil
}

func (repo *bookRepository) mutate(id string, fn func(bk *library.Book) error) (library.Book, error) {
	var bk library.Book
	err := inTx(repo.db, func(tx *sqlx.Tx) error {
		if err := getForUpdate(tx, "book", id, &bk, library.ErrNotFound); err != nil {
			return err
		}
		if err := fn(&bk); err != nil {
			return err
		}
		return saveDoc(tx, "book", id, bk)
	})
	if err != nil {
		return library.Book{}, err
	}
	return bk, nil
}
