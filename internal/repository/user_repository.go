package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/crmdesk/crmdesk/internal/utils"
)

// Recognized role values for users.role.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// ValidRole reports whether s is a recognized role name.
func ValidRole(s string) bool { return s == RoleAdmin || s == RoleUser }

// User mirrors the 'users' table. It is the authoritative profile record;
// session snapshots cached elsewhere are denormalized copies of this row.
type User struct {
	ID           uint64    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	DisplayName  string    `json:"display_name"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserPatch carries the updatable profile fields. Nil pointers mean
// "leave unchanged".
type UserPatch struct {
	DisplayName *string
	Role        *string
	IsActive    *bool
	Password    *string
}

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userCols = "id,email,password_hash,display_name,role,is_active,created_at,updated_at"

func scanUser(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	return u, err
}

// Create inserts a user and returns its ID. The password is hashed here
// so callers never handle the digest themselves.
func (r *UserRepo) Create(ctx context.Context, email, password, displayName, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, display_name, role) VALUES (?,?,?,?)",
		email, hash, displayName, role)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id. This is the authoritative profile read
// the access guard uses on admin-gated checks.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE id=? LIMIT 1", id))
}

// List returns all users ordered by id. When activeOnly is set,
// soft-deleted rows are filtered out.
func (r *UserRepo) List(ctx context.Context, activeOnly bool) ([]*User, error) {
	q := "SELECT " + userCols + " FROM users"
	if activeOnly {
		q += " WHERE is_active=1"
	}
	q += " ORDER BY id"
	rows, err := r.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*User
	for rows.Next() {
		u := new(User)
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Update applies a partial profile update. It returns ErrNotFound when
// the id matches no row and the fresh row on success.
func (r *UserRepo) Update(ctx context.Context, id uint64, p UserPatch, cost int) (User, error) {
	sets := make([]string, 0, 4)
	args := make([]any, 0, 5)
	if p.DisplayName != nil {
		sets = append(sets, "display_name=?")
		args = append(args, *p.DisplayName)
	}
	if p.Role != nil {
		sets = append(sets, "role=?")
		args = append(args, *p.Role)
	}
	if p.IsActive != nil {
		sets = append(sets, "is_active=?")
		args = append(args, *p.IsActive)
	}
	if p.Password != nil {
		hash, err := utils.HashPassword(*p.Password, cost)
		if err != nil {
			return User{}, err
		}
		sets = append(sets, "password_hash=?")
		args = append(args, hash)
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	args = append(args, id)
	q := "UPDATE users SET " + strings.Join(sets, ", ") + ", updated_at=CURRENT_TIMESTAMP WHERE id=?"
	if _, err := r.DB.ExecContext(ctx, q, args...); err != nil {
		if isDuplicate(err) {
			return User{}, ErrEmailExists
		}
		return User{}, err
	}
	return r.GetByID(ctx, id)
}

// Deactivate soft-deletes a user. Repeating the call on an already
// inactive user is a no-op, not an error; a missing id is ErrNotFound.
func (r *UserRepo) Deactivate(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET is_active=0, updated_at=CURRENT_TIMESTAMP WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// MySQL reports zero affected rows both for a missing id and for a
		// row that is already inactive; only the former is an error.
		var exists int
		err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id=? LIMIT 1", id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// Count returns the number of user rows. Used by the admin seeding
// command to decide whether bootstrapping is needed.
func (r *UserRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n)
	return n, err
}

// isDuplicate detects the MySQL duplicate-key error (1062).
func isDuplicate(err error) bool {
	return err != nil && strings.Contains(err.Error(), "1062")
}
