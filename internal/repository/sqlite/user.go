package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	moderncsqlite "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"

	"github.com/sakif/social-graph/internal/apperror"
	"github.com/sakif/social-graph/internal/model"
	"github.com/sakif/social-graph/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, email, first_name, last_name, password_hash, image, about_me,
	friends_list, pending_request, posts, created_at, updated_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// Create inserts a new user document. It assigns the ID and timestamps.
// Returns apperror.ErrConflict if the email is already registered.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	friends, pending, posts, err := encodeLists(user)
	if err != nil {
		return fmt.Errorf("sqlite: encoding user %s: %w", user.ID, err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		user.Image,
		user.AboutMe,
		friends,
		pending,
		posts,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
	}
	return nil
}

// FindByID retrieves a user by id.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) FindByID(ctx context.Context, id string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// FindByEmail retrieves a user by email. The email is matched exactly; the
// service layer normalises it before calling.
func (db *DB) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return u, nil
}

// Save overwrites the whole user document in one statement.
// UpdatedAt is set to now on the caller's struct.
func (db *DB) Save(ctx context.Context, user *model.User) error {
	friends, pending, posts, err := encodeLists(user)
	if err != nil {
		return fmt.Errorf("sqlite: encoding user %s: %w", user.ID, err)
	}

	user.UpdatedAt = time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE users
		 SET email = ?, first_name = ?, last_name = ?, password_hash = ?, image = ?, about_me = ?,
		     friends_list = ?, pending_request = ?, posts = ?, updated_at = ?
		 WHERE id = ?`,
		user.Email,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		user.Image,
		user.AboutMe,
		friends,
		pending,
		posts,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("sqlite: saving user %s: %w", user.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", user.ID)
	}
	return nil
}

// Delete removes a user (and with it every embedded post) and returns the
// record as it was before deletion.
func (db *DB) Delete(ctx context.Context, id string) (*model.User, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: beginning delete of user %s: %w", id, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	u, err := scanUser(tx.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: loading user %s for delete: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("sqlite: deleting user %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: committing delete of user %s: %w", id, err)
	}
	return u, nil
}

// List returns every user, oldest first.
func (db *DB) List(ctx context.Context) ([]model.User, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}
	return users, nil
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u                       model.User
		friends, pending, posts string
	)
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&u.PasswordHash,
		&u.Image,
		&u.AboutMe,
		&friends,
		&pending,
		&posts,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(friends), &u.FriendsList); err != nil {
		return nil, fmt.Errorf("decoding friends_list: %w", err)
	}
	if err := json.Unmarshal([]byte(pending), &u.PendingRequest); err != nil {
		return nil, fmt.Errorf("decoding pending_request: %w", err)
	}
	if err := json.Unmarshal([]byte(posts), &u.Posts); err != nil {
		return nil, fmt.Errorf("decoding posts: %w", err)
	}
	if u.Posts == nil {
		u.Posts = []model.Post{}
	}
	return &u, nil
}

func encodeLists(u *model.User) (friends, pending, posts string, err error) {
	f, err := json.Marshal(u.FriendsList)
	if err != nil {
		return "", "", "", err
	}
	p, err := json.Marshal(u.PendingRequest)
	if err != nil {
		return "", "", "", err
	}
	postList := u.Posts
	if postList == nil {
		postList = []model.Post{}
	}
	ps, err := json.Marshal(postList)
	if err != nil {
		return "", "", "", err
	}
	return string(f), string(p), string(ps), nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *moderncsqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlitelib.SQLITE_CONSTRAINT_UNIQUE
}
