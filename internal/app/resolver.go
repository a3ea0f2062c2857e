package app

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"staffdesk/internal/events"
	"staffdesk/internal/store"
	"staffdesk/pkg/domain"
)

const msgInvalidID = "Invalid ID"

// refSpec holds the per-entity hooks the reference resolver dispatches to.
// Adding a referenceable entity means adding one entry to App.refs.
type refSpec struct {
	// lookup reports whether a row with the given id exists.
	lookup func(ctx context.Context, id uint) (bool, error)
	// inline validates an inline object, reuses an identical existing row
	// or creates a new one, and returns its id. Validation failures come
	// back in the map, keyed by field name.
	inline func(ctx context.Context, obj map[string]any) (uint, map[string]string, error)
}

// resolveReference turns one relational value from an employee write payload
// into a foreign key. The accepted shapes:
//
//   - absent or null: no reference
//   - object: validate required fields, then reuse an existing row with
//     identical fields or create a new one
//   - integral number or numeric string: must identify an existing row,
//     otherwise InvalidReferenceError
//   - any other shape: treated as no reference
func (a *App) resolveReference(ctx context.Context, kind domain.RefKind, raw any) (*uint, error) {
	spec, ok := a.refs[kind]
	if !ok {
		return nil, fmt.Errorf("unknown reference kind %q", kind)
	}
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		id, fieldErrs, err := spec.inline(ctx, v)
		if err != nil {
			return nil, err
		}
		if len(fieldErrs) > 0 {
			return nil, &ValidationError{Entity: string(kind), Fields: fieldErrs}
		}
		return &id, nil
	case string:
		id64, err := strconv.ParseUint(strings.TrimSpace(v), 10, 32)
		if err != nil {
			return nil, &InvalidReferenceError{Entity: string(kind)}
		}
		return a.lookupReference(ctx, kind, spec, uint(id64))
	case float64:
		if v != math.Trunc(v) {
			return nil, nil
		}
		if v < 0 {
			return nil, &InvalidReferenceError{Entity: string(kind)}
		}
		return a.lookupReference(ctx, kind, spec, uint(v))
	default:
		return nil, nil
	}
}

func (a *App) lookupReference(ctx context.Context, kind domain.RefKind, spec refSpec, id uint) (*uint, error) {
	found, err := spec.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &InvalidReferenceError{Entity: string(kind)}
	}
	return &id, nil
}

func (a *App) positionExists(ctx context.Context, id uint) (bool, error) {
	_, ok, err := a.store.GetPosition(ctx, id)
	return ok, err
}

func (a *App) departmentExists(ctx context.Context, id uint) (bool, error) {
	_, ok, err := a.store.GetDepartment(ctx, id)
	return ok, err
}

func (a *App) statusExists(ctx context.Context, id uint) (bool, error) {
	_, ok, err := a.store.GetStatus(ctx, id)
	return ok, err
}

func (a *App) employeeExists(ctx context.Context, id uint) (bool, error) {
	_, ok, err := a.store.GetEmployeeRecord(ctx, id)
	return ok, err
}

func (a *App) inlinePosition(ctx context.Context, obj map[string]any) (uint, map[string]string, error) {
	fieldErrs := map[string]string{}
	name := textField(obj, "name", maxPositionNameLen, fieldErrs)
	salary, salaryErr := salaryField(obj, "salary")
	if salaryErr != "" {
		fieldErrs["salary"] = salaryErr
	}
	if len(fieldErrs) > 0 {
		return 0, fieldErrs, nil
	}
	existing, ok, err := a.store.MatchPosition(ctx, store.PositionMatch{Name: &name, Salary: &salary})
	if err != nil {
		return 0, nil, err
	}
	if ok {
		return existing.ID, nil, nil
	}
	created, err := a.store.CreatePosition(ctx, domain.Position{Name: name, Salary: salary})
	if err != nil {
		return 0, nil, err
	}
	a.publish(ctx, "position", events.ActionCreated, created.ID)
	return created.ID, nil, nil
}

func (a *App) inlineDepartment(ctx context.Context, obj map[string]any) (uint, map[string]string, error) {
	fieldErrs := map[string]string{}
	name := textField(obj, "name", maxDepartmentNameLen, fieldErrs)
	var managerID *uint
	_, managerSet := obj["manager"]
	if raw := obj["manager"]; raw != nil {
		id, ok := numericID(raw)
		if !ok {
			fieldErrs["manager"] = msgInvalidID
		} else if exists, err := a.employeeExists(ctx, id); err != nil {
			return 0, nil, err
		} else if !exists {
			fieldErrs["manager"] = msgInvalidID
		} else {
			managerID = &id
		}
	}
	if len(fieldErrs) > 0 {
		return 0, fieldErrs, nil
	}
	existing, ok, err := a.store.MatchDepartment(ctx, store.DepartmentMatch{Name: &name, ManagerID: managerID, ManagerSet: managerSet})
	if err != nil {
		return 0, nil, err
	}
	if ok {
		return existing.ID, nil, nil
	}
	created, err := a.store.CreateDepartment(ctx, domain.Department{Name: name, ManagerID: managerID})
	if err != nil {
		return 0, nil, err
	}
	a.publish(ctx, "department", events.ActionCreated, created.ID)
	return created.ID, nil, nil
}

func (a *App) inlineStatus(ctx context.Context, obj map[string]any) (uint, map[string]string, error) {
	fieldErrs := map[string]string{}
	name := textField(obj, "name", maxStatusNameLen, fieldErrs)
	if len(fieldErrs) > 0 {
		return 0, fieldErrs, nil
	}
	existing, ok, err := a.store.MatchStatus(ctx, store.StatusMatch{Name: &name})
	if err != nil {
		return 0, nil, err
	}
	if ok {
		return existing.ID, nil, nil
	}
	created, err := a.store.CreateStatus(ctx, domain.Status{Name: name})
	if err != nil {
		return 0, nil, err
	}
	a.publish(ctx, "status", events.ActionCreated, created.ID)
	return created.ID, nil, nil
}

// textField extracts a required text field, recording a validation message
// when it is absent, null, blank, or over the length limit.
func textField(obj map[string]any, field string, maxLen int, errs map[string]string) string {
	raw, present := obj[field]
	if !present || raw == nil {
		errs[field] = msgFieldRequired
		return ""
	}
	s, ok := raw.(string)
	if !ok {
		errs[field] = "Not a valid string."
		return ""
	}
	s = strings.TrimSpace(s)
	if s == "" {
		errs[field] = msgFieldRequired
		return ""
	}
	if maxLen > 0 && len([]rune(s)) > maxLen {
		errs[field] = fmt.Sprintf("Ensure this field has no more than %d characters.", maxLen)
		return ""
	}
	return s
}

// salaryField extracts a required salary, returning a validation message
// for anything that is not a representable two-decimal amount.
func salaryField(obj map[string]any, field string) (domain.Salary, string) {
	raw, present := obj[field]
	if !present || raw == nil {
		return domain.Salary{}, msgFieldRequired
	}
	switch v := raw.(type) {
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return domain.Salary{}, msgFieldRequired
		}
		s, err := domain.SalaryFromString(v)
		if err != nil {
			return domain.Salary{}, err.Error()
		}
		return s, ""
	case float64:
		s, err := domain.NewSalary(decimal.NewFromFloat(v))
		if err != nil {
			return domain.Salary{}, err.Error()
		}
		return s, ""
	default:
		return domain.Salary{}, "a valid number is required"
	}
}

// numericID parses an identifier supplied as a JSON number or numeric string.
func numericID(raw any) (uint, bool) {
	switch v := raw.(type) {
	case float64:
		if v < 0 || v != math.Trunc(v) {
			return 0, false
		}
		return uint(v), true
	case string:
		id64, err := strconv.ParseUint(strings.TrimSpace(v), 10, 32)
		if err != nil {
			return 0, false
		}
		return uint(id64), true
	default:
		return 0, false
	}
}
