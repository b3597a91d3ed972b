package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newCustomerMock(t *testing.T) (sqlmock.Sqlmock, *CustomerRepo) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return mock, NewCustomerRepo(db)
}

func customerRow(id uint64, name, email string, active bool) *sqlmock.Rows {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	return sqlmock.NewRows([]string{"id", "name", "email", "phone", "company", "address", "notes", "is_active", "created_at", "updated_at"}).
		AddRow(id, name, email, "", "", "", "", active, now, now)
}

func TestCustomerCreatePopulatesServerFields(t *testing.T) {
	mock, r := newCustomerMock(t)

	mock.ExpectExec("INSERT INTO customers (name, email, phone, company, address, notes) VALUES (?,?,?,?,?,?)").
		WithArgs("Acme Corp", "sales@acme.test", "", "", "", "").
		WillReturnResult(sqlmock.NewResult(12, 1))
	mock.ExpectQuery("SELECT id,name,email,phone,company,address,notes,is_active,created_at,updated_at FROM customers WHERE id=? LIMIT 1").
		WithArgs(uint64(12)).
		WillReturnRows(customerRow(12, "Acme Corp", "sales@acme.test", true))

	c := &Customer{Name: "Acme Corp", Email: "Sales@Acme.Test"}
	if err := r.Create(context.Background(), c); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if c.ID != 12 {
		t.Fatalf("expected server-assigned id 12, got %d", c.ID)
	}
	if c.Email != "sales@acme.test" {
		t.Fatalf("expected normalized email, got %q", c.Email)
	}
	if c.CreatedAt.IsZero() || c.UpdatedAt.IsZero() {
		t.Fatal("expected server timestamps to be populated")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestCustomerCreateDuplicateEmail(t *testing.T) {
	mock, r := newCustomerMock(t)

	mock.ExpectExec("INSERT INTO customers (name, email, phone, company, address, notes) VALUES (?,?,?,?,?,?)").
		WillReturnError(errors.New("Error 1062 (23000): Duplicate entry"))

	err := r.Create(context.Background(), &Customer{Name: "Acme", Email: "dup@acme.test"})
	if !errors.Is(err, ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}
}

func TestCustomerListIncludesCreatedRecord(t *testing.T) {
	mock, r := newCustomerMock(t)

	rows := customerRow(1, "First", "first@x.test", true).
		AddRow(uint64(12), "Acme Corp", "sales@acme.test", "", "", "", "", true,
			time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC), time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	mock.ExpectQuery("SELECT id,name,email,phone,company,address,notes,is_active,created_at,updated_at FROM customers WHERE is_active=1 ORDER BY id").
		WillReturnRows(rows)

	items, err := r.List(context.Background(), true)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 customers, got %d", len(items))
	}
	if items[1].ID != 12 || items[1].Name != "Acme Corp" || items[1].Email != "sales@acme.test" {
		t.Fatalf("created record missing from list: %+v", items[1])
	}
}

func TestCustomerGetByIDNotFound(t *testing.T) {
	mock, r := newCustomerMock(t)

	mock.ExpectQuery("SELECT id,name,email,phone,company,address,notes,is_active,created_at,updated_at FROM customers WHERE id=? LIMIT 1").
		WithArgs(uint64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := r.GetByID(context.Background(), 99)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCustomerUpdatePartialFields(t *testing.T) {
	mock, r := newCustomerMock(t)

	mock.ExpectExec("UPDATE customers SET name=?, notes=?, updated_at=CURRENT_TIMESTAMP WHERE id=?").
		WithArgs("New Name", "vip", uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT id,name,email,phone,company,address,notes,is_active,created_at,updated_at FROM customers WHERE id=? LIMIT 1").
		WithArgs(uint64(3)).
		WillReturnRows(customerRow(3, "New Name", "c@x.test", true))

	name, notes := "New Name", "vip"
	got, err := r.Update(context.Background(), 3, CustomerPatch{Name: &name, Notes: &notes})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if got.Name != "New Name" {
		t.Fatalf("expected updated name, got %q", got.Name)
	}
}

func TestCustomerDeactivateIsIdempotent(t *testing.T) {
	mock, r := newCustomerMock(t)
	ctx := context.Background()

	// First delete flips the flag.
	mock.ExpectExec("UPDATE customers SET is_active=0, updated_at=CURRENT_TIMESTAMP WHERE id=?").
		WithArgs(uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := r.Deactivate(ctx, 5); err != nil {
		t.Fatalf("first Deactivate() error: %v", err)
	}

	// Second delete touches no row but the id still exists: no error.
	mock.ExpectExec("UPDATE customers SET is_active=0, updated_at=CURRENT_TIMESTAMP WHERE id=?").
		WithArgs(uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT 1 FROM customers WHERE id=? LIMIT 1").
		WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	if err := r.Deactivate(ctx, 5); err != nil {
		t.Fatalf("second Deactivate() must not error, got %v", err)
	}
}

func TestCustomerDeactivateMissingIsNotFound(t *testing.T) {
	mock, r := newCustomerMock(t)

	mock.ExpectExec("UPDATE customers SET is_active=0, updated_at=CURRENT_TIMESTAMP WHERE id=?").
		WithArgs(uint64(404)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT 1 FROM customers WHERE id=? LIMIT 1").
		WithArgs(uint64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}))

	if err := r.Deactivate(context.Background(), 404); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
