package app

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestCreateEmployeeWithNestedEntities(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()

	emp, err := a.CreateEmployee(ctx, map[string]any{
		"name":       "Ada Lovelace",
		"address":    "12 Analytical Way",
		"is_manager": true,
		"position":   map[string]any{"name": "Engineer", "salary": "85000.50"},
		"department": map[string]any{"name": "R&D"},
		"status":     map[string]any{"name": "Active"},
	})
	if err != nil {
		t.Fatalf("create employee: %v", err)
	}
	if !emp.IsManager {
		t.Fatalf("is_manager not set")
	}
	if emp.Position == nil || emp.Position.Name != "Engineer" {
		t.Fatalf("position not embedded: %+v", emp.Position)
	}
	if got := emp.Position.Salary.String(); got != "85000.50" {
		t.Fatalf("salary = %q, want 85000.50", got)
	}
	if emp.Department == nil || emp.Department.Name != "R&D" {
		t.Fatalf("department not embedded: %+v", emp.Department)
	}
	if emp.Status == nil || emp.Status.Name != "Active" {
		t.Fatalf("status not embedded: %+v", emp.Status)
	}
	if emp.Created.IsZero() || emp.LastUpdated.IsZero() {
		t.Fatalf("timestamps not populated")
	}
}

func TestCreateEmployeeLongFields(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()

	emp, err := a.CreateEmployee(ctx, map[string]any{
		"name":    strings.Repeat("n", 255),
		"address": strings.Repeat("a", 2000),
	})
	if err != nil {
		t.Fatalf("long fields should be accepted: %v", err)
	}
	if len(emp.Name) != 255 || len(emp.Address) != 2000 {
		t.Fatalf("fields truncated: name=%d address=%d", len(emp.Name), len(emp.Address))
	}

	_, err = a.CreateEmployee(ctx, map[string]any{
		"name":    strings.Repeat("n", 256),
		"address": "1 Main St",
	})
	var fieldErrs FieldErrors
	if !errors.As(err, &fieldErrs) {
		t.Fatalf("expected field errors for oversized name, got %v", err)
	}
	if !strings.Contains(fieldErrs["name"], "no more than 255") {
		t.Fatalf("name error = %q", fieldErrs["name"])
	}
}

func TestCreateEmployeeMissingScalars(t *testing.T) {
	a, _ := newTestApp(t)
	_, err := a.CreateEmployee(context.Background(), map[string]any{})
	var fieldErrs FieldErrors
	if !errors.As(err, &fieldErrs) {
		t.Fatalf("expected field errors, got %v", err)
	}
	if fieldErrs["name"] != "This field is required." || fieldErrs["address"] != "This field is required." {
		t.Fatalf("unexpected errors: %v", fieldErrs)
	}
}

func TestUpdateEmployeePartialKeepsAbsentKeys(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()

	emp, err := a.CreateEmployee(ctx, map[string]any{
		"name":     "Ada",
		"address":  "1 Main St",
		"position": map[string]any{"name": "Engineer", "salary": "60000"},
		"status":   map[string]any{"name": "Active"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	patched, err := a.UpdateEmployee(ctx, emp.ID, map[string]any{"address": "2 Side St"}, true)
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if patched.Address != "2 Side St" || patched.Name != "Ada" {
		t.Fatalf("scalar merge wrong: %+v", patched)
	}
	if patched.Position == nil || patched.Status == nil {
		t.Fatalf("absent relational keys must keep their values")
	}

	// explicit null clears
	cleared, err := a.UpdateEmployee(ctx, emp.ID, map[string]any{"position": nil}, true)
	if err != nil {
		t.Fatalf("patch null: %v", err)
	}
	if cleared.Position != nil {
		t.Fatalf("explicit null should clear the reference")
	}
	if cleared.Status == nil {
		t.Fatalf("untouched reference lost")
	}
}

func TestUpdateEmployeeFullReplacesEverything(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()

	emp, err := a.CreateEmployee(ctx, map[string]any{
		"name":     "Ada",
		"address":  "1 Main St",
		"position": map[string]any{"name": "Engineer", "salary": "60000"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	replaced, err := a.UpdateEmployee(ctx, emp.ID, map[string]any{
		"name":    "Ada L",
		"address": "1 Main St",
	}, false)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if replaced.Position != nil {
		t.Fatalf("absent relation on full update must clear the reference")
	}

	_, err = a.UpdateEmployee(ctx, emp.ID, map[string]any{"address": "x"}, false)
	var fieldErrs FieldErrors
	if !errors.As(err, &fieldErrs) {
		t.Fatalf("full update without name should fail, got %v", err)
	}
}

func TestUpdateEmployeeUnknownID(t *testing.T) {
	a, _ := newTestApp(t)
	_, err := a.UpdateEmployee(context.Background(), 42, map[string]any{"name": "X", "address": "Y"}, false)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeletePositionCascadesToEmployees(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()

	emp, err := a.CreateEmployee(ctx, map[string]any{
		"name":     "Ada",
		"address":  "1 Main St",
		"position": map[string]any{"name": "Engineer", "salary": "60000"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := a.DeletePosition(ctx, emp.Position.ID); err != nil {
		t.Fatalf("delete position: %v", err)
	}
	if _, err := a.GetEmployee(ctx, emp.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("employee should cascade away, got %v", err)
	}
}

func TestStatusValidation(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()

	_, err := a.CreateStatus(ctx, map[string]any{})
	var fieldErrs FieldErrors
	if !errors.As(err, &fieldErrs) {
		t.Fatalf("expected field errors, got %v", err)
	}
	if fieldErrs["name"] != "This field is required." {
		t.Fatalf("name error = %q", fieldErrs["name"])
	}

	_, err = a.CreateStatus(ctx, map[string]any{"name": strings.Repeat("x", 51)})
	if !errors.As(err, &fieldErrs) {
		t.Fatalf("expected length error, got %v", err)
	}
	if !strings.Contains(fieldErrs["name"], "no more than 50") {
		t.Fatalf("length message = %q", fieldErrs["name"])
	}
}

func TestDepartmentManagerValidation(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()

	_, err := a.CreateDepartment(ctx, map[string]any{"name": "Sales", "manager": float64(99)})
	var fieldErrs FieldErrors
	if !errors.As(err, &fieldErrs) {
		t.Fatalf("expected field errors, got %v", err)
	}
	if fieldErrs["manager"] != "Invalid ID" {
		t.Fatalf("manager error = %q", fieldErrs["manager"])
	}

	emp, err := a.CreateEmployee(ctx, map[string]any{"name": "Ada", "address": "1 Main St"})
	if err != nil {
		t.Fatalf("create employee: %v", err)
	}
	dep, err := a.CreateDepartment(ctx, map[string]any{"name": "Sales", "manager": float64(emp.ID)})
	if err != nil {
		t.Fatalf("create department: %v", err)
	}
	if dep.ManagerID == nil || *dep.ManagerID != emp.ID {
		t.Fatalf("manager not set: %v", dep.ManagerID)
	}

	// partial update without the manager key keeps the manager
	updated, err := a.UpdateDepartment(ctx, dep.ID, map[string]any{"name": "Sales EMEA"}, true)
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if updated.ManagerID == nil {
		t.Fatalf("manager lost on partial update")
	}

	// full update without the manager key clears it
	updated, err = a.UpdateDepartment(ctx, dep.ID, map[string]any{"name": "Sales EMEA"}, false)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if updated.ManagerID != nil {
		t.Fatalf("manager should be cleared on full update")
	}
}

func TestPositionSalaryValidation(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()

	_, err := a.CreatePosition(ctx, map[string]any{"name": "Engineer", "salary": "60000.123"})
	var fieldErrs FieldErrors
	if !errors.As(err, &fieldErrs) {
		t.Fatalf("expected field errors, got %v", err)
	}
	if !strings.Contains(fieldErrs["salary"], "2 decimal places") {
		t.Fatalf("salary error = %q", fieldErrs["salary"])
	}

	p, err := a.CreatePosition(ctx, map[string]any{"name": "Engineer", "salary": 60000.0})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := p.Salary.String(); got != "60000.00" {
		t.Fatalf("salary = %q", got)
	}
}

func TestLoginLogout(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()

	if err := a.EnsureBootstrapUser(ctx, "admin", "admin@example.com", "s3cret"); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	// idempotent
	if err := a.EnsureBootstrapUser(ctx, "admin", "admin@example.com", "s3cret"); err != nil {
		t.Fatalf("bootstrap twice: %v", err)
	}

	if _, _, err := a.Login(ctx, "admin", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: %v", err)
	}
	if _, _, err := a.Login(ctx, "nobody", "s3cret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user: %v", err)
	}

	user, token, err := a.Login(ctx, "admin", "s3cret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if token == "" || user.Username != "admin" {
		t.Fatalf("bad login result: %q %+v", token, user)
	}

	got, ok, err := a.UserFromToken(ctx, token)
	if err != nil || !ok {
		t.Fatalf("token lookup: ok=%v err=%v", ok, err)
	}
	if got.ID != user.ID {
		t.Fatalf("token resolved wrong user")
	}

	if err := a.Logout(token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, ok, err := a.UserFromToken(ctx, token); err != nil || ok {
		t.Fatalf("revoked token must not resolve: ok=%v err=%v", ok, err)
	}
}

func TestImageOpsWithoutObjectStore(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()
	emp, err := a.CreateEmployee(ctx, map[string]any{"name": "Ada", "address": "1 Main St"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := a.UploadEmployeeImage(ctx, emp.ID, "a.png", "image/png", strings.NewReader("x"), 1); !errors.Is(err, ErrImageStorageNotConfigured) {
		t.Fatalf("expected storage-not-configured, got %v", err)
	}
	if _, err := a.EmployeeImageURL(ctx, emp.ID); !errors.Is(err, ErrImageStorageNotConfigured) {
		t.Fatalf("expected storage-not-configured, got %v", err)
	}
}
