package domain

import "time"

// RefKind identifies an entity type an employee can reference.
type RefKind string

const (
	RefPosition   RefKind = "position"
	RefDepartment RefKind = "department"
	RefStatus     RefKind = "status"
)

type Status struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Created     time.Time `json:"created"`
	LastUpdated time.Time `json:"last_updated"`
}

type Position struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Salary      Salary    `json:"salary"`
	Created     time.Time `json:"created"`
	LastUpdated time.Time `json:"last_updated"`
}

type Department struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	ManagerID   *uint     `json:"manager"`
	Created     time.Time `json:"created"`
	LastUpdated time.Time `json:"last_updated"`
}

// Employee is always rendered with its relations embedded in full
// (or explicit null), never as bare identifiers.
type Employee struct {
	ID          uint        `json:"id"`
	Name        string      `json:"name"`
	Address     string      `json:"address"`
	IsManager   bool        `json:"is_manager"`
	Position    *Position   `json:"position"`
	Department  *Department `json:"department"`
	Status      *Status     `json:"status"`
	ImageKey    string      `json:"-"`
	Created     time.Time   `json:"created"`
	LastUpdated time.Time   `json:"last_updated"`
}

// ImageMeta describes an uploaded employee image.
type ImageMeta struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
}

type User struct {
	ID           uint      `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Created      time.Time `json:"created"`
	LastUpdated  time.Time `json:"last_updated"`
}
