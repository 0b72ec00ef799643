package inmemdb

import (
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core/scorecard"
)

type scorecardRepository struct {
	db *scorecardTable
}

func NewScorecardRepository(db *DB) scorecard.Repository {
	return &scorecardRepository{db: db.scorecard}
}

func (repo *scorecardRepository) query() []scorecard.Scorecard {
	cards := make([]scorecard.Scorecard, 0, len(repo.db.table))
	for _, sc := range repo.db.table {
		cards = append(cards, *sc)
	}
	return cards
}

func (repo *scorecardRepository) CheckUniqueness(studentID, subject string, examDate time.Time, excludedCards ...scorecard.Scorecard) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	excluded := make(map[string]struct{}, len(excludedCards))
	for _, sc := range excludedCards {
		excluded[sc.ID] = struct{}{}
	}
	for _, sc := range repo.query() {
		if _, ok := excluded[sc.ID]; ok {
			continue
		}
		if sc.StudentID == studentID && sc.Subject == subject && sc.ExamDate.Equal(examDate) {
			return scorecard.ErrExists
		}
	}
	return nil
}

func (repo *scorecardRepository) CreateScorecard(sc scorecard.Scorecard) (scorecard.Scorecard, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if sc.ID == "" {
		sc.ID = uuid.New().String()
	}
	repo.db.table[sc.ID] = &sc
	return sc, nil
}

func (repo *scorecardRepository) QueryAllScorecards() ([]scorecard.Scorecard, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.query(), nil
}

func (repo *scorecardRepository) GetScorecardByID(id string) (scorecard.Scorecard, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if sc, ok := repo.db.table[id]; ok {
		return *sc, nil
	}
	return scorecard.Scorecard{}, scorecard.ErrNotFound
}

func (repo *scorecardRepository) FilterScorecardsByStudent(studentID string) ([]scorecard.Scorecard, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var cards []scorecard.Scorecard
	for _, sc := range repo.query() {
		if sc.StudentID == studentID {
			cards = append(cards, sc)
		}
	}
	return cards, nil
}

func (repo *scorecardRepository) UpdateScorecard(sc scorecard.Scorecard) (scorecard.Scorecard, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	origSc, ok := repo.db.table[sc.ID]
	if !ok {
		return scorecard.Scorecard{}, scorecard.ErrNotFound
	}
	origSc.Score = sc.Score
	origSc.UpdatedAt = sc.UpdatedAt
	return *origSc, nil
}

func (repo *scorecardRepository) DeleteScorecard(id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	delete(repo.db.table, id)
	return nil
}
