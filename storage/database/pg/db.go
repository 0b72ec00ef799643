// Package pgdb persists each entity as a JSONB document keyed by uuid.
// Uniqueness rules live in expression indexes (see fs/migrations); writes
// that must be atomic read the row FOR UPDATE inside a transaction.
package pgdb

import (
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"
)

type docRow struct {
	ID  string         `db:"id"`
	Doc types.JSONText `db:"doc"`
}

func unmarshalDoc(row docRow, dst interface{}) error {
	if err := json.Unmarshal(row.Doc, dst); err != nil {
		return errors.Wrapf(err, "decoding document %s", row.ID)
	}
	return nil
}

func marshalDoc(src interface{}) (types.JSONText, error) {
	doc, err := json.Marshal(src)
	if err != nil {
		return nil, errors.Wrap(err, "encoding document")
	}
	return doc, nil
}

// inTx runs fn in a transaction, rolling back on error.
func inTx(db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.Beginx()
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}
	return nil
}

// getForUpdate loads and locks the document row; notFoundErr is returned for
// a missing row.
func getForUpdate(tx *sqlx.Tx, table, id string, dst interface{}, notFoundErr error) error {
	var row docRow
	if err := tx.Get(&row, `SELECT id, doc FROM `+table+` WHERE id = $1 FOR UPDATE`, id); err != nil {
		if err == sql.ErrNoRows {
			return notFoundErr
		}
		return errors.Wrapf(err, "locking %s %s", table, id)
	}
	return unmarshalDoc(row, dst)
}

func saveDoc(tx *sqlx.Tx, table, id string, src interface{}) error {
	doc, err := marshalDoc(src)
	if err != nil {
		return err
	}
	if _, err = tx.Exec(`UPDATE `+table+` SET doc = $2 WHERE id = $1`, id, doc); err != nil {
		return errors.Wrapf(err, "updating %s %s", table, id)
	}
	return nil
}
