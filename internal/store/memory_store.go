package store

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"staffdesk/pkg/domain"
)

// MemoryStore keeps all rows in-process. It mirrors the Postgres store's
// semantics, including recursive cascade deletes, and is used by tests.
type MemoryStore struct {
	mu          sync.RWMutex
	statuses    map[uint]domain.Status
	positions   map[uint]domain.Position
	departments map[uint]domain.Department
	employees   map[uint]EmployeeRecord
	users       map[uint]domain.User
	usernames   map[string]uint
	created     map[string]time.Time // "<table>/<id>" -> created timestamp
	updated     map[string]time.Time
	nextID      uint
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		statuses:    make(map[uint]domain.Status),
		positions:   make(map[uint]domain.Position),
		departments: make(map[uint]domain.Department),
		employees:   make(map[uint]EmployeeRecord),
		users:       make(map[uint]domain.User),
		usernames:   make(map[string]uint),
	}
}

func (m *MemoryStore) allocID() uint {
	m.nextID++
	return m.nextID
}

// statuses

func (m *MemoryStore) CreateStatus(_ context.Context, s domain.Status) (domain.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	s.ID = m.allocID()
	s.Created = now
	s.LastUpdated = now
	m.statuses[s.ID] = s
	return s, nil
}

func (m *MemoryStore) GetStatus(_ context.Context, id uint) (domain.Status, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.statuses[id]
	return s, ok, nil
}

func (m *MemoryStore) ListStatuses(_ context.Context) ([]domain.Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Status, 0, len(m.statuses))
	for id := uint(1); id <= m.nextID; id++ {
		if s, ok := m.statuses[id]; ok {
			res = append(res, s)
		}
	}
	return res, nil
}

func (m *MemoryStore) UpdateStatus(_ context.Context, s domain.Status) (domain.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.statuses[s.ID]
	if !ok {
		return domain.Status{}, ErrNotFound
	}
	current.Name = s.Name
	current.LastUpdated = time.Now().UTC()
	m.statuses[s.ID] = current
	return current, nil
}

func (m *MemoryStore) DeleteStatus(_ context.Context, id uint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.statuses[id]; !ok {
		return false, nil
	}
	delete(m.statuses, id)
	for eid, rec := range m.employees {
		if rec.StatusID != nil && *rec.StatusID == id {
			m.deleteEmployeeCascade(eid)
		}
	}
	return true, nil
}

func (m *MemoryStore) MatchStatus(_ context.Context, match StatusMatch) (domain.Status, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id := uint(1); id <= m.nextID; id++ {
		s, ok := m.statuses[id]
		if !ok {
			continue
		}
		if match.Name != nil && s.Name != *match.Name {
			continue
		}
		return s, true, nil
	}
	return domain.Status{}, false, nil
}

// positions

func (m *MemoryStore) CreatePosition(_ context.Context, p domain.Position) (domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	p.ID = m.allocID()
	p.Created = now
	p.LastUpdated = now
	m.positions[p.ID] = p
	return p, nil
}

func (m *MemoryStore) GetPosition(_ context.Context, id uint) (domain.Position, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.positions[id]
	return p, ok, nil
}

func (m *MemoryStore) ListPositions(_ context.Context) ([]domain.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Position, 0, len(m.positions))
	for id := uint(1); id <= m.nextID; id++ {
		if p, ok := m.positions[id]; ok {
			res = append(res, p)
		}
	}
	return res, nil
}

func (m *MemoryStore) UpdatePosition(_ context.Context, p domain.Position) (domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.positions[p.ID]
	if !ok {
		return domain.Position{}, ErrNotFound
	}
	current.Name = p.Name
	current.Salary = p.Salary
	current.LastUpdated = time.Now().UTC()
	m.positions[p.ID] = current
	return current, nil
}

func (m *MemoryStore) DeletePosition(_ context.Context, id uint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.positions[id]; !ok {
		return false, nil
	}
	delete(m.positions, id)
	for eid, rec := range m.employees {
		if rec.PositionID != nil && *rec.PositionID == id {
			m.deleteEmployeeCascade(eid)
		}
	}
	return true, nil
}

func (m *MemoryStore) MatchPosition(_ context.Context, match PositionMatch) (domain.Position, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id := uint(1); id <= m.nextID; id++ {
		p, ok := m.positions[id]
		if !ok {
			continue
		}
		if match.Name != nil && p.Name != *match.Name {
			continue
		}
		if match.Salary != nil && !p.Salary.Equal(*match.Salary) {
			continue
		}
		return p, true, nil
	}
	return domain.Position{}, false, nil
}

// departments

func (m *MemoryStore) CreateDepartment(_ context.Context, d domain.Department) (domain.Department, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	d.ID = m.allocID()
	d.Created = now
	d.LastUpdated = now
	m.departments[d.ID] = d
	return d, nil
}

func (m *MemoryStore) GetDepartment(_ context.Context, id uint) (domain.Department, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.departments[id]
	return d, ok, nil
}

func (m *MemoryStore) ListDepartments(_ context.Context) ([]domain.Department, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Department, 0, len(m.departments))
	for id := uint(1); id <= m.nextID; id++ {
		if d, ok := m.departments[id]; ok {
			res = append(res, d)
		}
	}
	return res, nil
}

func (m *MemoryStore) UpdateDepartment(_ context.Context, d domain.Department) (domain.Department, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.departments[d.ID]
	if !ok {
		return domain.Department{}, ErrNotFound
	}
	current.Name = d.Name
	current.ManagerID = d.ManagerID
	current.LastUpdated = time.Now().UTC()
	m.departments[d.ID] = current
	return current, nil
}

func (m *MemoryStore) DeleteDepartment(_ context.Context, id uint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.departments[id]; !ok {
		return false, nil
	}
	m.deleteDepartmentCascade(id)
	return true, nil
}

func (m *MemoryStore) MatchDepartment(_ context.Context, match DepartmentMatch) (domain.Department, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id := uint(1); id <= m.nextID; id++ {
		d, ok := m.departments[id]
		if !ok {
			continue
		}
		if match.Name != nil && d.Name != *match.Name {
			continue
		}
		if match.ManagerSet && !equalUintPtr(d.ManagerID, match.ManagerID) {
			continue
		}
		return d, true, nil
	}
	return domain.Department{}, false, nil
}

// cascade helpers; callers hold the write lock. Rows are removed before
// recursing, so mutual employee/department references terminate.

func (m *MemoryStore) deleteEmployeeCascade(id uint) {
	if _, ok := m.employees[id]; !ok {
		return
	}
	delete(m.employees, id)
	for did, dep := range m.departments {
		if dep.ManagerID != nil && *dep.ManagerID == id {
			m.deleteDepartmentCascade(did)
		}
	}
}

func (m *MemoryStore) deleteDepartmentCascade(id uint) {
	if _, ok := m.departments[id]; !ok {
		return
	}
	delete(m.departments, id)
	for eid, rec := range m.employees {
		if rec.DepartmentID != nil && *rec.DepartmentID == id {
			m.deleteEmployeeCascade(eid)
		}
	}
}

// employees

func (m *MemoryStore) CreateEmployee(_ context.Context, rec EmployeeRecord) (domain.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	rec.ID = m.allocID()
	m.employees[rec.ID] = rec
	m.setTimes("employees", rec.ID, now, now)
	return m.projectEmployee(rec), nil
}

func (m *MemoryStore) GetEmployee(_ context.Context, id uint) (domain.Employee, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.employees[id]
	if !ok {
		return domain.Employee{}, false, nil
	}
	return m.projectEmployee(rec), true, nil
}

func (m *MemoryStore) GetEmployeeRecord(_ context.Context, id uint) (EmployeeRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.employees[id]
	return rec, ok, nil
}

func (m *MemoryStore) ListEmployees(_ context.Context, f EmployeeFilter) ([]domain.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Employee, 0, len(m.employees))
	for id := uint(1); id <= m.nextID; id++ {
		rec, ok := m.employees[id]
		if !ok {
			continue
		}
		if f.PositionID != nil && !equalUintPtr(rec.PositionID, f.PositionID) {
			continue
		}
		if f.DepartmentID != nil && !equalUintPtr(rec.DepartmentID, f.DepartmentID) {
			continue
		}
		if f.StatusID != nil && !equalUintPtr(rec.StatusID, f.StatusID) {
			continue
		}
		if f.Search != "" {
			needle := strings.ToLower(f.Search)
			if !strings.Contains(strings.ToLower(rec.Name), needle) &&
				!strings.Contains(strings.ToLower(rec.Address), needle) {
				continue
			}
		}
		res = append(res, m.projectEmployee(rec))
	}
	return res, nil
}

func (m *MemoryStore) UpdateEmployee(_ context.Context, rec EmployeeRecord) (domain.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.employees[rec.ID]
	if !ok {
		return domain.Employee{}, ErrNotFound
	}
	current.Name = rec.Name
	current.Address = rec.Address
	current.IsManager = rec.IsManager
	current.PositionID = rec.PositionID
	current.DepartmentID = rec.DepartmentID
	current.StatusID = rec.StatusID
	m.employees[rec.ID] = current
	m.touch("employees", rec.ID)
	return m.projectEmployee(current), nil
}

func (m *MemoryStore) DeleteEmployee(_ context.Context, id uint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.employees[id]; !ok {
		return false, nil
	}
	m.deleteEmployeeCascade(id)
	return true, nil
}

func (m *MemoryStore) CountEmployees(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.employees), nil
}

func (m *MemoryStore) SetEmployeeImage(_ context.Context, id uint, key string, meta domain.ImageMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.employees[id]
	if !ok {
		return ErrNotFound
	}
	rec.ImageKey = key
	metaCopy := meta
	rec.ImageMeta = &metaCopy
	m.employees[id] = rec
	m.touch("employees", id)
	return nil
}

// users

func (m *MemoryStore) CreateUser(_ context.Context, u domain.User) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	u.ID = m.allocID()
	u.Created = now
	u.LastUpdated = now
	m.users[u.ID] = u
	m.usernames[u.Username] = u.ID
	return u, nil
}

func (m *MemoryStore) GetUserByUsername(_ context.Context, username string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.usernames[username]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) GetUserByID(_ context.Context, id uint) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// projection helpers; callers hold at least the read lock.

func (m *MemoryStore) projectEmployee(rec EmployeeRecord) domain.Employee {
	created, updated := m.times("employees", rec.ID)
	e := domain.Employee{
		ID:          rec.ID,
		Name:        rec.Name,
		Address:     rec.Address,
		IsManager:   rec.IsManager,
		ImageKey:    rec.ImageKey,
		Created:     created,
		LastUpdated: updated,
	}
	if rec.PositionID != nil {
		if p, ok := m.positions[*rec.PositionID]; ok {
			e.Position = &p
		}
	}
	if rec.DepartmentID != nil {
		if d, ok := m.departments[*rec.DepartmentID]; ok {
			e.Department = &d
		}
	}
	if rec.StatusID != nil {
		if s, ok := m.statuses[*rec.StatusID]; ok {
			e.Status = &s
		}
	}
	return e
}

func (m *MemoryStore) setTimes(table string, id uint, created, updated time.Time) {
	if m.created == nil {
		m.created = make(map[string]time.Time)
		m.updated = make(map[string]time.Time)
	}
	key := timesKey(table, id)
	m.created[key] = created
	m.updated[key] = updated
}

func (m *MemoryStore) touch(table string, id uint) {
	if m.updated == nil {
		m.updated = make(map[string]time.Time)
	}
	m.updated[timesKey(table, id)] = time.Now().UTC()
}

func (m *MemoryStore) times(table string, id uint) (time.Time, time.Time) {
	key := timesKey(table, id)
	return m.created[key], m.updated[key]
}

func timesKey(table string, id uint) string {
	return table + "/" + strconv.FormatUint(uint64(id), 10)
}

func equalUintPtr(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
