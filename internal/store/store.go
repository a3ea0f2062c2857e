package store

import (
	"context"
	"errors"

	"staffdesk/pkg/domain"
)

// ErrNotFound indicates the target row does not exist.
var ErrNotFound = errors.New("record not found")

// EmployeeRecord is the flat, identifier-based shape of an employee row,
// used for writes and partial updates. Reads return domain.Employee with
// relations embedded instead.
type EmployeeRecord struct {
	ID           uint
	Name         string
	Address      string
	IsManager    bool
	PositionID   *uint
	DepartmentID *uint
	StatusID     *uint
	ImageKey     string
	ImageMeta    *domain.ImageMeta
}

// EmployeeFilter selects employees by relation equality and free-text search.
type EmployeeFilter struct {
	PositionID   *uint
	DepartmentID *uint
	StatusID     *uint
	Search       string
}

// StatusMatch is an exact-match lookup over supplied Status fields.
type StatusMatch struct {
	Name *string
}

// PositionMatch is an exact-match lookup over supplied Position fields.
type PositionMatch struct {
	Name   *string
	Salary *domain.Salary
}

// DepartmentMatch is an exact-match lookup over supplied Department fields.
// ManagerSet distinguishes "manager not supplied" from "manager is null".
type DepartmentMatch struct {
	Name       *string
	ManagerID  *uint
	ManagerSet bool
}

// Store defines persistence operations for HR entities and API users.
// Creation and last-updated timestamps are populated by the store; callers
// never set them.
type Store interface {
	// statuses
	CreateStatus(ctx context.Context, s domain.Status) (domain.Status, error)
	GetStatus(ctx context.Context, id uint) (domain.Status, bool, error)
	ListStatuses(ctx context.Context) ([]domain.Status, error)
	UpdateStatus(ctx context.Context, s domain.Status) (domain.Status, error)
	DeleteStatus(ctx context.Context, id uint) (bool, error)
	MatchStatus(ctx context.Context, m StatusMatch) (domain.Status, bool, error)

	// positions
	CreatePosition(ctx context.Context, p domain.Position) (domain.Position, error)
	GetPosition(ctx context.Context, id uint) (domain.Position, bool, error)
	ListPositions(ctx context.Context) ([]domain.Position, error)
	UpdatePosition(ctx context.Context, p domain.Position) (domain.Position, error)
	DeletePosition(ctx context.Context, id uint) (bool, error)
	MatchPosition(ctx context.Context, m PositionMatch) (domain.Position, bool, error)

	// departments
	CreateDepartment(ctx context.Context, d domain.Department) (domain.Department, error)
	GetDepartment(ctx context.Context, id uint) (domain.Department, bool, error)
	ListDepartments(ctx context.Context) ([]domain.Department, error)
	UpdateDepartment(ctx context.Context, d domain.Department) (domain.Department, error)
	DeleteDepartment(ctx context.Context, id uint) (bool, error)
	MatchDepartment(ctx context.Context, m DepartmentMatch) (domain.Department, bool, error)

	// employees
	CreateEmployee(ctx context.Context, rec EmployeeRecord) (domain.Employee, error)
	GetEmployee(ctx context.Context, id uint) (domain.Employee, bool, error)
	GetEmployeeRecord(ctx context.Context, id uint) (EmployeeRecord, bool, error)
	ListEmployees(ctx context.Context, f EmployeeFilter) ([]domain.Employee, error)
	UpdateEmployee(ctx context.Context, rec EmployeeRecord) (domain.Employee, error)
	DeleteEmployee(ctx context.Context, id uint) (bool, error)
	CountEmployees(ctx context.Context) (int, error)
	SetEmployeeImage(ctx context.Context, id uint, key string, meta domain.ImageMeta) error

	// users
	CreateUser(ctx context.Context, u domain.User) (domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (domain.User, bool, error)
	GetUserByID(ctx context.Context, id uint) (domain.User, bool, error)
}

// SessionStore issues and validates bearer session tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}
