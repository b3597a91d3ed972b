// This file defines the Customer record and its repository. Customers are
// never hard-deleted: delete requests flip is_active off so history stays
// queryable, and the same policy applies to users.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// Customer mirrors the 'customers' table. Optional columns (phone,
// company, address, notes) default to an empty string rather than NULL so
// the struct scans without nullable wrappers.
type Customer struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Company   string    `json:"company"`
	Address   string    `json:"address"`
	Notes     string    `json:"notes"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CustomerPatch carries updatable customer fields; nil means unchanged.
type CustomerPatch struct {
	Name    *string
	Email   *string
	Phone   *string
	Company *string
	Address *string
	Notes   *string
}

type CustomerRepo struct{ DB *sql.DB }

func NewCustomerRepo(db *sql.DB) *CustomerRepo { return &CustomerRepo{DB: db} }

const customerCols = "id,name,email,phone,company,address,notes,is_active,created_at,updated_at"

// Create inserts a new customer. On success the ID and server-generated
// timestamps are populated on c via a follow-up SELECT.
func (r *CustomerRepo) Create(ctx context.Context, c *Customer) error {
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO customers (name, email, phone, company, address, notes) VALUES (?,?,?,?,?,?)",
		c.Name, c.Email, c.Phone, c.Company, c.Address, c.Notes)
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)

	got, err := r.GetByID(ctx, c.ID)
	if err != nil {
		return err
	}
	*c = got
	return nil
}

// GetByID fetches a customer regardless of its active flag.
func (r *CustomerRepo) GetByID(ctx context.Context, id uint64) (Customer, error) {
	var c Customer
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+customerCols+" FROM customers WHERE id=? LIMIT 1", id).
		Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Company, &c.Address, &c.Notes, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ErrNotFound
	}
	return c, err
}

// List returns customers ordered by id. With activeOnly set, soft-deleted
// rows are excluded.
func (r *CustomerRepo) List(ctx context.Context, activeOnly bool) ([]*Customer, error) {
	q := "SELECT " + customerCols + " FROM customers"
	if activeOnly {
		q += " WHERE is_active=1"
	}
	q += " ORDER BY id"
	rows, err := r.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Customer
	for rows.Next() {
		c := new(Customer)
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Company, &c.Address, &c.Notes, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Update applies a partial update and returns the fresh row. A missing id
// is ErrNotFound.
func (r *CustomerRepo) Update(ctx context.Context, id uint64, p CustomerPatch) (Customer, error) {
	sets := make([]string, 0, 6)
	args := make([]any, 0, 7)
	if p.Name != nil {
		sets = append(sets, "name=?")
		args = append(args, *p.Name)
	}
	if p.Email != nil {
		sets = append(sets, "email=?")
		args = append(args, strings.ToLower(strings.TrimSpace(*p.Email)))
	}
	if p.Phone != nil {
		sets = append(sets, "phone=?")
		args = append(args, *p.Phone)
	}
	if p.Company != nil {
		sets = append(sets, "company=?")
		args = append(args, *p.Company)
	}
	if p.Address != nil {
		sets = append(sets, "address=?")
		args = append(args, *p.Address)
	}
	if p.Notes != nil {
		sets = append(sets, "notes=?")
		args = append(args, *p.Notes)
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	args = append(args, id)
	q := "UPDATE customers SET " + strings.Join(sets, ", ") + ", updated_at=CURRENT_TIMESTAMP WHERE id=?"
	if _, err := r.DB.ExecContext(ctx, q, args...); err != nil {
		if isDuplicate(err) {
			return Customer{}, ErrEmailExists
		}
		return Customer{}, err
	}
	return r.GetByID(ctx, id)
}

// Deactivate soft-deletes a customer. A second call on the same id is a
// no-op so repeated deletes stay idempotent; only a missing id errors.
func (r *CustomerRepo) Deactivate(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE customers SET is_active=0, updated_at=CURRENT_TIMESTAMP WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM customers WHERE id=? LIMIT 1", id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
