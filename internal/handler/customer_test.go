package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/crmdesk/crmdesk/internal/repository"
)

const selectCustomerByID = "SELECT id,name,email,phone,company,address,notes,is_active,created_at,updated_at FROM customers WHERE id=? LIMIT 1"

func customerFixture(t *testing.T) (*CustomerHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewCustomerHandler(repository.NewCustomerRepo(db)), mock
}

func customerRows(id uint64, name, email string, active bool) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{"id", "name", "email", "phone", "company", "address", "notes", "is_active", "created_at", "updated_at"}).
		AddRow(id, name, email, "", "", "", "", active, now, now)
}

func customerCtx(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func withID(c echo.Context, id string) echo.Context {
	c.SetParamNames("id")
	c.SetParamValues(id)
	return c
}

func TestCustomerCreate(t *testing.T) {
	h, mock := customerFixture(t)

	mock.ExpectExec("INSERT INTO customers (name, email, phone, company, address, notes) VALUES (?,?,?,?,?,?)").
		WithArgs("Acme Corp", "sales@acme.test", "", "", "", "").
		WillReturnResult(sqlmock.NewResult(12, 1))
	mock.ExpectQuery(selectCustomerByID).
		WithArgs(uint64(12)).
		WillReturnRows(customerRows(12, "Acme Corp", "sales@acme.test", true))

	c, rec := customerCtx(http.MethodPost, "/v1/customers", `{"name":"Acme Corp","email":"Sales@Acme.test"}`)
	_ = h.Create(c)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var got repository.Customer
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.ID != 12 || !got.IsActive {
		t.Fatalf("unexpected created customer: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestCustomerCreateMissingFields(t *testing.T) {
	h, _ := customerFixture(t)

	c, rec := customerCtx(http.MethodPost, "/v1/customers", `{"name":"No Email"}`)
	_ = h.Create(c)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCustomerCreateDuplicateEmail(t *testing.T) {
	h, mock := customerFixture(t)

	mock.ExpectExec("INSERT INTO customers (name, email, phone, company, address, notes) VALUES (?,?,?,?,?,?)").
		WithArgs("Acme Corp", "sales@acme.test", "", "", "", "").
		WillReturnError(errDuplicateKey{})

	c, rec := customerCtx(http.MethodPost, "/v1/customers", `{"name":"Acme Corp","email":"sales@acme.test"}`)
	_ = h.Create(c)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate email, got %d: %s", rec.Code, rec.Body.String())
	}
}

// errDuplicateKey mimics the driver's duplicate-entry error text.
type errDuplicateKey struct{}

func (errDuplicateKey) Error() string {
	return "Error 1062 (23000): Duplicate entry 'sales@acme.test' for key 'customers.email'"
}

func TestCustomerGetNotFound(t *testing.T) {
	h, mock := customerFixture(t)

	mock.ExpectQuery(selectCustomerByID).
		WithArgs(uint64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	c, rec := customerCtx(http.MethodGet, "/v1/customers/99", "")
	_ = h.Get(withID(c, "99"))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCustomerGetInvalidID(t *testing.T) {
	h, _ := customerFixture(t)

	c, rec := customerCtx(http.MethodGet, "/v1/customers/abc", "")
	_ = h.Get(withID(c, "abc"))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCustomerListHidesInactiveByDefault(t *testing.T) {
	h, mock := customerFixture(t)

	mock.ExpectQuery("SELECT id,name,email,phone,company,address,notes,is_active,created_at,updated_at FROM customers WHERE is_active=1 ORDER BY id").
		WillReturnRows(customerRows(1, "Acme Corp", "sales@acme.test", true))

	c, rec := customerCtx(http.MethodGet, "/v1/customers", "")
	_ = h.List(c)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Items []repository.Customer `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Name != "Acme Corp" {
		t.Fatalf("unexpected list: %+v", resp.Items)
	}
}

func TestCustomerListIncludeInactive(t *testing.T) {
	h, mock := customerFixture(t)

	mock.ExpectQuery("SELECT id,name,email,phone,company,address,notes,is_active,created_at,updated_at FROM customers ORDER BY id").
		WillReturnRows(customerRows(2, "Old Co", "old@co.test", false))

	c, rec := customerCtx(http.MethodGet, "/v1/customers?include_inactive=true", "")
	_ = h.List(c)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestCustomerUpdatePartial(t *testing.T) {
	h, mock := customerFixture(t)

	mock.ExpectExec("UPDATE customers SET notes=?, updated_at=CURRENT_TIMESTAMP WHERE id=?").
		WithArgs("vip account", uint64(12)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(selectCustomerByID).
		WithArgs(uint64(12)).
		WillReturnRows(customerRows(12, "Acme Corp", "sales@acme.test", true))

	c, rec := customerCtx(http.MethodPut, "/v1/customers/12", `{"notes":"vip account"}`)
	_ = h.Update(withID(c, "12"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestCustomerUpdateEmptyName(t *testing.T) {
	h, _ := customerFixture(t)

	c, rec := customerCtx(http.MethodPut, "/v1/customers/12", `{"name":"  "}`)
	_ = h.Update(withID(c, "12"))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCustomerDeleteIdempotent(t *testing.T) {
	h, mock := customerFixture(t)

	// First delete flips the row.
	mock.ExpectExec("UPDATE customers SET is_active=0, updated_at=CURRENT_TIMESTAMP WHERE id=?").
		WithArgs(uint64(12)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Second delete matches no rows but the record still exists.
	mock.ExpectExec("UPDATE customers SET is_active=0, updated_at=CURRENT_TIMESTAMP WHERE id=?").
		WithArgs(uint64(12)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT 1 FROM customers WHERE id=? LIMIT 1").
		WithArgs(uint64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	for i := 0; i < 2; i++ {
		c, rec := customerCtx(http.MethodDelete, "/v1/customers/12", "")
		_ = h.Delete(withID(c, "12"))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("delete %d: expected 204, got %d", i+1, rec.Code)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestCustomerDeleteMissing(t *testing.T) {
	h, mock := customerFixture(t)

	mock.ExpectExec("UPDATE customers SET is_active=0, updated_at=CURRENT_TIMESTAMP WHERE id=?").
		WithArgs(uint64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT 1 FROM customers WHERE id=? LIMIT 1").
		WithArgs(uint64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}))

	c, rec := customerCtx(http.MethodDelete, "/v1/customers/99", "")
	_ = h.Delete(withID(c, "99"))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
