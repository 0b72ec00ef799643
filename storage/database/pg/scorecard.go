package pgdb

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/scorecard"
)

type scorecardRepository struct {
	db *sqlx.DB
}

func NewScorecardRepository(db *sqlx.DB) scorecard.Repository {
	return &scorecardRepository{db: db}
}

func (repo *scorecardRepository) CheckUniqueness(studentID, subject string, examDate time.Time, excludedCards ...scorecard.Scorecard) error {
	exclIDs := make([]string, 0, len(excludedCards))
	for _, sc := range excludedCards {
		exclIDs = append(exclIDs, sc.ID)
	}
	var exists bool
	err := repo.db.Get(&exists, `
		SELECT EXISTS (
			SELECT 1 FROM scorecard
			WHERE doc ->> 'student' = $1 AND doc ->> 'subject' = $2
			  AND (doc ->> 'exam_date')::timestamptz = $3 AND NOT (id::text = ANY($4))
		)`, studentID, subject, examDate, pq.Array(exclIDs))
	if err != nil {
		return errors.Wrap(err, "checking scorecard uniqueness")
	}
	if exists {
		return scorecard.ErrExists
	}
	return nil
}

func (repo *scorecardRepository) CreateScorecard(sc scorecard.Scorecard) (scorecard.Scorecard, error) {
	if sc.ID == "" {
		sc.ID = uuid.New().String()
	}
	doc, err := marshalDoc(sc)
	if err != nil {
		return scorecard.Scorecard{}, err
	}
	if _, err = repo.db.Exec(`INSERT INTO scorecard (id, doc) VALUES ($1, $2)`, sc.ID, doc); err != nil {
		return scorecard.Scorecard{}, errors.Wrap(err, "inserting scorecard")
	}
	return sc, nil
}

func (repo *scorecardRepository) QueryAllScorecards() ([]scorecard.Scorecard, error) {
	return repo.selectCards(`SELECT id, doc FROM scorecard`)
}

func (repo *scorecardRepository) GetScorecardByID(id string) (scorecard.Scorecard, error) {
	if _, err := uuid.Parse(id); err != nil {
		return scorecard.Scorecard{}, scorecard.ErrNotFound
	}
	var row docRow
	err := repo.db.Get(&row, `SELECT id, doc FROM scorecard WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return scorecard.Scorecard{}, scorecard.ErrNotFound
		}
		return scorecard.Scorecard{}, errors.Wrap(err, "getting scorecard")
	}
	var sc scorecard.Scorecard
	if err = unmarshalDoc(row, &sc); err != nil {
		return scorecard.Scorecard{}, err
	}
	return sc, nil
}

func (repo *scorecardRepository) FilterScorecardsByStudent(studentID string) ([]scorecard.Scorecard, error) {
	return repo.selectCards(
		`SELECT id, doc FROM scorecard WHERE doc ->> 'student' = $1`, studentID)
}

func (repo *scorecardRepository) UpdateScorecard(sc scorecard.Scorecard) (scorecard.Scorecard, error) {
	var updated scorecard.Scorecard
	err := inTx(repo.db, func(tx *sqlx.Tx) error {
		var orig scorecard.Scorecard
		if err := getForUpdate(tx, "scorecard", sc.ID, &orig, scorecard.ErrNotFound); err != nil {
			return err
		}
		orig.Score = sc.Score
		orig.UpdatedAt = sc.UpdatedAt
		updated = orig
		return saveDoc(tx, "scorecard", sc.ID, orig)
	})
	if err != nil {
		return scorecard.Scorecard{}, err
	}
	return updated, nil
}

func (repo *scorecardRepository) DeleteScorecard(id string) error {
	if _, err := repo.db.Exec(`DELETE FROM scorecard WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting scorecard")
	}
	return nil
}

func (repo *scorecardRepository) selectCards(q string, args ...interface{}) ([]scorecard.Scorecard, error) {
	var rows []docRow
	if err := repo.db.Select(&rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying scorecards")
	}
	cards := make([]scorecard.Scorecard, 0, len(rows))
	for _, row := range rows {
		var sc scorecard.Scorecard
		if err := unmarshalDoc(row, &sc); err != nil {
			return nil, err
		}
		cards = append(cards, sc)
	}
	return cards, nil
}
