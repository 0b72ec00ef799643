package pgdb

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/user"
)

// userDoc restores the password hash that the model hides from API payloads.
type userDoc struct {
	user.User
	PasswordHash []byte `json:"password_hash"`
}

func newUserDoc(usr user.User) userDoc {
	return userDoc{User: usr, PasswordHash: usr.PasswordHash}
}

func (d userDoc) user() user.User {
	usr := d.User
	usr.PasswordHash = d.PasswordHash
	return usr
}

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUsernameUniqueness(username, email string, excludedUsers ...user.User) error {
	exclIDs := make([]string, 0, len(excludedUsers))
	for _, usr := range excludedUsers {
		exclIDs = append(exclIDs, usr.ID)
	}

	var rows []docRow
	err := repo.db.Select(&rows, `
		SELECT id, doc FROM "user"
		WHERE (doc ->> 'username' = $1 OR doc ->> 'email' = $2) AND NOT (id::text = ANY($3))`,
		username, email, pq.Array(exclIDs))
	if err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, row := range rows {
		var doc userDoc
		if err = unmarshalDoc(row, &doc); err != nil {
			return err
		}
		if username != "" && doc.Username == username {
			return user.ErrUsernameExists
		}
		if doc.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	doc, err := marshalDoc(newUserDoc(usr))
	if err != nil {
		return user.User{}, err
	}
	if _, err = repo.db.Exec(`INSERT INTO "user" (id, doc) VALUES ($1, $2)`, usr.ID, doc); err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) QueryAllUsers() ([]user.User, error) {
	var rows []docRow
	if err := repo.db.Select(&rows, `SELECT id, doc FROM "user"`); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		var doc userDoc
		if err := unmarshalDoc(row, &doc); err != nil {
			return nil, err
		}
		users = append(users, doc.user())
	}
	return users, nil
}

func (repo *userRepository) getBy(clause string, args ...interface{}) (user.User, error) {
	var row docRow
	err := repo.db.Get(&row, `SELECT id, doc FROM "user" WHERE `+clause, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user")
	}
	var doc userDoc
	if err = unmarshalDoc(row, &doc); err != nil {
		return user.User{}, err
	}
	return doc.user(), nil
}

func (repo *userRepository) GetUserByID(id string) (user.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return user.User{}, user.ErrNotFound
	}
	return repo.getBy(`id = $1`, id)
}

func (repo *userRepository) GetUserByUsername(username string) (user.User, error) {
	return repo.getBy(`doc ->> 'username' = $1`, username)
}

func (repo *userRepository) GetUserByEmail(email string) (user.User, error) {
	return repo.getBy(`doc ->> 'email' = $1`, email)
}

func (repo *userRepository) GetUserByUsernameOrEmail(username string) (user.User, error) {
	return repo.getBy(`doc ->> 'username' = $1 OR doc ->> 'email' = $1`, username)
}

func (repo *userRepository) FilterUsers(filter user.QueryFilter) ([]user.User, error) {
	clauses := []string{"TRUE"}
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		clauses = append(clauses, fmt.Sprintf(
			"(doc ->> 'name' ILIKE %[1]s OR doc ->> 'username' ILIKE %[1]s OR doc ->> 'email' ILIKE %[1]s)", p))
	}
	if filter.Roles != nil {
		var roleClauses []string
		for _, role := range filter.Roles {
			roleClauses = append(roleClauses, fmt.Sprintf(
				"EXISTS (SELECT 1 FROM jsonb_array_elements_text(doc -> 'roles') r WHERE r LIKE %s || '%%')", arg(role)))
		}
		clauses = append(clauses, "("+strings.Join(roleClauses, " OR ")+")")
	}
	if filter.IsActive != nil {
		clauses = append(clauses, fmt.Sprintf("(doc ->> 'is_active')::boolean = %s", arg(*filter.IsActive)))
	}
	if !filter.CreatedFrom.IsZero() {
		clauses = append(clauses, fmt.Sprintf("(doc ->> 'created_at')::timestamptz >= %s", arg(filter.CreatedFrom)))
	}
	if !filter.CreatedTo.IsZero() {
		clauses = append(clauses, fmt.Sprintf("(doc ->> 'created_at')::timestamptz <= %s", arg(filter.CreatedTo)))
	}

	var rows []docRow
	q := `SELECT id, doc FROM "user" WHERE ` + strings.Join(clauses, " AND ")
	if err := repo.db.Select(&rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		var doc userDoc
		if err := unmarshalDoc(row, &doc); err != nil {
			return nil, err
		}
		users = append(users, doc.user())
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(usr user.User, isActive *bool) (user.User, error) {
	var updated user.User
	err := inTx(repo.db, func(tx *sqlx.Tx) error {
		var doc userDoc
		if err := getForUpdate(tx, `"user"`, usr.ID, &doc, user.ErrNotFound); err != nil {
			return err
		}
		orig := doc.user()
		if usr.Roles != nil {
			orig.Roles = usr.Roles
		}
		if usr.PasswordHash != nil {
			orig.PasswordHash = usr.PasswordHash
		}
		if isActive != nil {
			orig.IsActive = *isActive
		}
		if usr.Name != "" {
			orig.Name = usr.Name
		}
		if usr.Username != "" {
			orig.Username = usr.Username
		}
		if usr.Email != "" {
			orig.Email = usr.Email
		}
		orig.UpdatedAt = usr.UpdatedAt
		updated = orig
		return saveDoc(tx, `"user"`, orig.ID, newUserDoc(orig))
	})
	if err != nil {
		return user.User{}, err
	}
	return updated, nil
}

func (repo *userRepository) SetUserLastLogin(id string, t time.Time) (user.User, error) {
	var updated user.User
	err := inTx(repo.db, func(tx *sqlx.Tx) error {
		var doc userDoc
		if err := getForUpdate(tx, `"user"`, id, &doc, user.ErrNotFound); err != nil {
			return err
		}
		usr := doc.user()
		usr.LastLogin = t
		updated = usr
		return saveDoc(tx, `"user"`, id, newUserDoc(usr))
	})
	if err != nil {
		return user.User{}, err
	}
	return updated, nil
}

func (repo *userRepository) DeleteUsersByID(ids ...string) error {
	if _, err := repo.db.Exec(`DELETE FROM "user" WHERE id::text = ANY($1)`, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}
