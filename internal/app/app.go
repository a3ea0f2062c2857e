package app

import (
	"context"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"staffdesk/internal/events"
	"staffdesk/internal/storage"
	"staffdesk/internal/store"
	"staffdesk/internal/util"
	"staffdesk/pkg/auth"
	"staffdesk/pkg/domain"
)

const (
	maxStatusNameLen     = 50
	maxPositionNameLen   = 100
	maxDepartmentNameLen = 100
	maxEmployeeNameLen   = 255

	imageURLExpiry = 15 * time.Minute
)

// App implements the HR operations on top of a Store. The HTTP layer decodes
// requests into loosely typed payload maps and hands them here; all
// validation, reference resolution, and event publishing happens in App.
type App struct {
	store    store.Store
	sessions store.SessionStore
	objects  storage.ObjectStore
	events   events.Publisher
	refs     map[domain.RefKind]refSpec
}

// New wires an App. objects may be nil when no image storage is configured;
// pub may be nil to disable event publishing.
func New(st store.Store, sessions store.SessionStore, objects storage.ObjectStore, pub events.Publisher) *App {
	if pub == nil {
		pub = events.NoopPublisher{}
	}
	a := &App{store: st, sessions: sessions, objects: objects, events: pub}
	a.refs = map[domain.RefKind]refSpec{
		domain.RefPosition:   {lookup: a.positionExists, inline: a.inlinePosition},
		domain.RefDepartment: {lookup: a.departmentExists, inline: a.inlineDepartment},
		domain.RefStatus:     {lookup: a.statusExists, inline: a.inlineStatus},
	}
	return a
}

// publish emits an entity-change event. Failures are logged and swallowed;
// the write has already committed.
func (a *App) publish(ctx context.Context, entity, action string, id uint) {
	ev := events.Event{Entity: entity, Action: action, ID: id, At: time.Now().UTC()}
	if err := a.events.Publish(ctx, ev); err != nil {
		util.LoggerFromContext(ctx).Warn("event publish failed",
			"entity", entity, "action", action, "id", id, "error", err)
	}
}

// --- statuses ---

func (a *App) CreateStatus(ctx context.Context, payload map[string]any) (domain.Status, error) {
	fieldErrs := map[string]string{}
	name := textField(payload, "name", maxStatusNameLen, fieldErrs)
	if len(fieldErrs) > 0 {
		return domain.Status{}, FieldErrors(fieldErrs)
	}
	created, err := a.store.CreateStatus(ctx, domain.Status{Name: name})
	if err != nil {
		return domain.Status{}, err
	}
	a.publish(ctx, "status", events.ActionCreated, created.ID)
	return created, nil
}

func (a *App) GetStatus(ctx context.Context, id uint) (domain.Status, error) {
	s, ok, err := a.store.GetStatus(ctx, id)
	if err != nil {
		return domain.Status{}, err
	}
	if !ok {
		return domain.Status{}, ErrNotFound
	}
	return s, nil
}

func (a *App) ListStatuses(ctx context.Context) ([]domain.Status, error) {
	return a.store.ListStatuses(ctx)
}

func (a *App) UpdateStatus(ctx context.Context, id uint, payload map[string]any, partial bool) (domain.Status, error) {
	current, ok, err := a.store.GetStatus(ctx, id)
	if err != nil {
		return domain.Status{}, err
	}
	if !ok {
		return domain.Status{}, ErrNotFound
	}
	fieldErrs := map[string]string{}
	if _, present := payload["name"]; present || !partial {
		current.Name = textField(payload, "name", maxStatusNameLen, fieldErrs)
	}
	if len(fieldErrs) > 0 {
		return domain.Status{}, FieldErrors(fieldErrs)
	}
	updated, err := a.store.UpdateStatus(ctx, current)
	if err != nil {
		return domain.Status{}, err
	}
	a.publish(ctx, "status", events.ActionUpdated, updated.ID)
	return updated, nil
}

func (a *App) DeleteStatus(ctx context.Context, id uint) error {
	deleted, err := a.store.DeleteStatus(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	a.publish(ctx, "status", events.ActionDeleted, id)
	return nil
}

// --- positions ---

func (a *App) CreatePosition(ctx context.Context, payload map[string]any) (domain.Position, error) {
	p, err := a.positionFromPayload(domain.Position{}, payload, false)
	if err != nil {
		return domain.Position{}, err
	}
	created, err := a.store.CreatePosition(ctx, p)
	if err != nil {
		return domain.Position{}, err
	}
	a.publish(ctx, "position", events.ActionCreated, created.ID)
	return created, nil
}

func (a *App) GetPosition(ctx context.Context, id uint) (domain.Position, error) {
	p, ok, err := a.store.GetPosition(ctx, id)
	if err != nil {
		return domain.Position{}, err
	}
	if !ok {
		return domain.Position{}, ErrNotFound
	}
	return p, nil
}

func (a *App) ListPositions(ctx context.Context) ([]domain.Position, error) {
	return a.store.ListPositions(ctx)
}

func (a *App) UpdatePosition(ctx context.Context, id uint, payload map[string]any, partial bool) (domain.Position, error) {
	current, ok, err := a.store.GetPosition(ctx, id)
	if err != nil {
		return domain.Position{}, err
	}
	if !ok {
		return domain.Position{}, ErrNotFound
	}
	p, err := a.positionFromPayload(current, payload, partial)
	if err != nil {
		return domain.Position{}, err
	}
	updated, err := a.store.UpdatePosition(ctx, p)
	if err != nil {
		return domain.Position{}, err
	}
	a.publish(ctx, "position", events.ActionUpdated, updated.ID)
	return updated, nil
}

func (a *App) DeletePosition(ctx context.Context, id uint) error {
	deleted, err := a.store.DeletePosition(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	a.publish(ctx, "position", events.ActionDeleted, id)
	return nil
}

func (a *App) positionFromPayload(current domain.Position, payload map[string]any, partial bool) (domain.Position, error) {
	fieldErrs := map[string]string{}
	if _, present := payload["name"]; present || !partial {
		current.Name = textField(payload, "name", maxPositionNameLen, fieldErrs)
	}
	if _, present := payload["salary"]; present || !partial {
		salary, msg := salaryField(payload, "salary")
		if msg != "" {
			fieldErrs["salary"] = msg
		} else {
			current.Salary = salary
		}
	}
	if len(fieldErrs) > 0 {
		return domain.Position{}, FieldErrors(fieldErrs)
	}
	return current, nil
}

// --- departments ---

func (a *App) CreateDepartment(ctx context.Context, payload map[string]any) (domain.Department, error) {
	d, err := a.departmentFromPayload(ctx, domain.Department{}, payload, false)
	if err != nil {
		return domain.Department{}, err
	}
	created, err := a.store.CreateDepartment(ctx, d)
	if err != nil {
		return domain.Department{}, err
	}
	a.publish(ctx, "department", events.ActionCreated, created.ID)
	return created, nil
}

func (a *App) GetDepartment(ctx context.Context, id uint) (domain.Department, error) {
	d, ok, err := a.store.GetDepartment(ctx, id)
	if err != nil {
		return domain.Department{}, err
	}
	if !ok {
		return domain.Department{}, ErrNotFound
	}
	return d, nil
}

func (a *App) ListDepartments(ctx context.Context) ([]domain.Department, error) {
	return a.store.ListDepartments(ctx)
}

func (a *App) UpdateDepartment(ctx context.Context, id uint, payload map[string]any, partial bool) (domain.Department, error) {
	current, ok, err := a.store.GetDepartment(ctx, id)
	if err != nil {
		return domain.Department{}, err
	}
	if !ok {
		return domain.Department{}, ErrNotFound
	}
	d, err := a.departmentFromPayload(ctx, current, payload, partial)
	if err != nil {
		return domain.Department{}, err
	}
	updated, err := a.store.UpdateDepartment(ctx, d)
	if err != nil {
		return domain.Department{}, err
	}
	a.publish(ctx, "department", events.ActionUpdated, updated.ID)
	return updated, nil
}

func (a *App) DeleteDepartment(ctx context.Context, id uint) error {
	deleted, err := a.store.DeleteDepartment(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	a.publish(ctx, "department", events.ActionDeleted, id)
	return nil
}

func (a *App) departmentFromPayload(ctx context.Context, current domain.Department, payload map[string]any, partial bool) (domain.Department, error) {
	fieldErrs := map[string]string{}
	if _, present := payload["name"]; present || !partial {
		current.Name = textField(payload, "name", maxDepartmentNameLen, fieldErrs)
	}
	if raw, present := payload["manager"]; present || !partial {
		switch {
		case !present || raw == nil:
			current.ManagerID = nil
		default:
			id, ok := numericID(raw)
			if !ok {
				fieldErrs["manager"] = msgInvalidID
				break
			}
			exists, err := a.employeeExists(ctx, id)
			if err != nil {
				return domain.Department{}, err
			}
			if !exists {
				fieldErrs["manager"] = msgInvalidID
				break
			}
			current.ManagerID = &id
		}
	}
	if len(fieldErrs) > 0 {
		return domain.Department{}, FieldErrors(fieldErrs)
	}
	return current, nil
}

// --- employees ---

func (a *App) CreateEmployee(ctx context.Context, payload map[string]any) (domain.Employee, error) {
	rec, err := a.employeeRecordFromPayload(ctx, store.EmployeeRecord{}, payload, false)
	if err != nil {
		return domain.Employee{}, err
	}
	created, err := a.store.CreateEmployee(ctx, rec)
	if err != nil {
		return domain.Employee{}, err
	}
	a.publish(ctx, "employee", events.ActionCreated, created.ID)
	return created, nil
}

func (a *App) GetEmployee(ctx context.Context, id uint) (domain.Employee, error) {
	e, ok, err := a.store.GetEmployee(ctx, id)
	if err != nil {
		return domain.Employee{}, err
	}
	if !ok {
		return domain.Employee{}, ErrNotFound
	}
	return e, nil
}

func (a *App) ListEmployees(ctx context.Context, f store.EmployeeFilter) ([]domain.Employee, error) {
	return a.store.ListEmployees(ctx, f)
}

func (a *App) UpdateEmployee(ctx context.Context, id uint, payload map[string]any, partial bool) (domain.Employee, error) {
	current, ok, err := a.store.GetEmployeeRecord(ctx, id)
	if err != nil {
		return domain.Employee{}, err
	}
	if !ok {
		return domain.Employee{}, ErrNotFound
	}
	rec, err := a.employeeRecordFromPayload(ctx, current, payload, partial)
	if err != nil {
		return domain.Employee{}, err
	}
	updated, err := a.store.UpdateEmployee(ctx, rec)
	if err != nil {
		return domain.Employee{}, err
	}
	a.publish(ctx, "employee", events.ActionUpdated, updated.ID)
	return updated, nil
}

func (a *App) DeleteEmployee(ctx context.Context, id uint) error {
	rec, ok, err := a.store.GetEmployeeRecord(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	deleted, err := a.store.DeleteEmployee(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	if rec.ImageKey != "" && a.objects != nil {
		if err := a.objects.Delete(ctx, rec.ImageKey); err != nil {
			util.LoggerFromContext(ctx).Warn("delete employee image failed", "id", id, "error", err)
		}
	}
	a.publish(ctx, "employee", events.ActionDeleted, id)
	return nil
}

func (a *App) EmployeeCount(ctx context.Context) (int, error) {
	return a.store.CountEmployees(ctx)
}

// employeeRecordFromPayload merges an employee write payload into rec.
// With partial set, absent keys keep their current value; otherwise absent
// relational keys clear the reference. Relations resolve in a fixed order
// and the first failure aborts; earlier inline creations are not undone.
func (a *App) employeeRecordFromPayload(ctx context.Context, rec store.EmployeeRecord, payload map[string]any, partial bool) (store.EmployeeRecord, error) {
	fieldErrs := map[string]string{}
	if _, present := payload["name"]; present || !partial {
		rec.Name = textField(payload, "name", maxEmployeeNameLen, fieldErrs)
	}
	if _, present := payload["address"]; present || !partial {
		// address is a text column; no length cap
		rec.Address = textField(payload, "address", 0, fieldErrs)
	}
	if raw, present := payload["is_manager"]; present {
		if b, ok := raw.(bool); ok {
			rec.IsManager = b
		} else {
			fieldErrs["is_manager"] = "Must be a valid boolean."
		}
	} else if !partial {
		rec.IsManager = false
	}
	if len(fieldErrs) > 0 {
		return rec, FieldErrors(fieldErrs)
	}

	relations := []struct {
		kind domain.RefKind
		key  string
		dst  **uint
	}{
		{domain.RefPosition, "position", &rec.PositionID},
		{domain.RefDepartment, "department", &rec.DepartmentID},
		{domain.RefStatus, "status", &rec.StatusID},
	}
	for _, rel := range relations {
		raw, present := payload[rel.key]
		if partial && !present {
			continue
		}
		id, err := a.resolveReference(ctx, rel.kind, raw)
		if err != nil {
			return rec, err
		}
		*rel.dst = id
	}
	return rec, nil
}

// --- auth ---

func (a *App) Login(ctx context.Context, username, password string) (domain.User, string, error) {
	user, ok, err := a.store.GetUserByUsername(ctx, username)
	if err != nil {
		return domain.User{}, "", err
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	token, err := a.sessions.NewSession(strconv.FormatUint(uint64(user.ID), 10))
	if err != nil {
		return domain.User{}, "", err
	}
	return user, token, nil
}

func (a *App) Logout(token string) error {
	return a.sessions.DeleteSession(token)
}

// UserFromToken resolves a bearer token to its user. The second return is
// false for invalid, expired, or revoked tokens.
func (a *App) UserFromToken(ctx context.Context, token string) (domain.User, bool, error) {
	uid, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, false, err
	}
	id64, err := strconv.ParseUint(uid, 10, 32)
	if err != nil {
		return domain.User{}, false, nil
	}
	user, ok, err := a.store.GetUserByID(ctx, uint(id64))
	if err != nil {
		return domain.User{}, false, err
	}
	return user, ok, nil
}

// EnsureBootstrapUser creates the initial API user if it does not exist yet.
func (a *App) EnsureBootstrapUser(ctx context.Context, username, email, password string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil
	}
	if _, ok, err := a.store.GetUserByUsername(ctx, username); err != nil {
		return err
	} else if ok {
		return nil
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = a.store.CreateUser(ctx, domain.User{Username: username, Email: email, PasswordHash: hash})
	return err
}

// --- images ---

// UploadEmployeeImage stores the image under a fresh object key, records it
// on the employee, then removes the previous object best-effort.
func (a *App) UploadEmployeeImage(ctx context.Context, id uint, filename, contentType string, r io.Reader, size int64) (domain.ImageMeta, error) {
	if a.objects == nil {
		return domain.ImageMeta{}, ErrImageStorageNotConfigured
	}
	rec, ok, err := a.store.GetEmployeeRecord(ctx, id)
	if err != nil {
		return domain.ImageMeta{}, err
	}
	if !ok {
		return domain.ImageMeta{}, ErrNotFound
	}
	key := "employees/" + uuid.NewString() + strings.ToLower(filepath.Ext(filename))
	if err := a.objects.Put(ctx, key, r, size, contentType); err != nil {
		return domain.ImageMeta{}, err
	}
	meta := domain.ImageMeta{Filename: filename, ContentType: contentType, SizeBytes: size}
	if err := a.store.SetEmployeeImage(ctx, id, key, meta); err != nil {
		return domain.ImageMeta{}, err
	}
	if rec.ImageKey != "" {
		if err := a.objects.Delete(ctx, rec.ImageKey); err != nil {
			util.LoggerFromContext(ctx).Warn("delete previous image failed", "id", id, "error", err)
		}
	}
	a.publish(ctx, "employee", events.ActionUpdated, id)
	return meta, nil
}

// EmployeeImageURL returns a short-lived download URL for the employee image.
func (a *App) EmployeeImageURL(ctx context.Context, id uint) (string, error) {
	if a.objects == nil {
		return "", ErrImageStorageNotConfigured
	}
	rec, ok, err := a.store.GetEmployeeRecord(ctx, id)
	if err != nil {
		return "", err
	}
	if !ok || rec.ImageKey == "" {
		return "", ErrNotFound
	}
	return a.objects.PresignGet(ctx, rec.ImageKey, imageURLExpiry)
}
