package store

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// GORM models used for persistence. Relational deletes cascade to
// referencing rows at the database level.
type StatusModel struct {
	ID          uint      `gorm:"primaryKey"`
	Name        string    `gorm:"type:varchar(50);not null"`
	Created     time.Time `gorm:"autoCreateTime"`
	LastUpdated time.Time `gorm:"autoUpdateTime"`
}

func (StatusModel) TableName() string { return "statuses" }

type PositionModel struct {
	ID          uint            `gorm:"primaryKey"`
	Name        string          `gorm:"type:varchar(100);not null"`
	Salary      decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	Created     time.Time       `gorm:"autoCreateTime"`
	LastUpdated time.Time       `gorm:"autoUpdateTime"`
}

func (PositionModel) TableName() string { return "positions" }

type DepartmentModel struct {
	ID          uint           `gorm:"primaryKey"`
	Name        string         `gorm:"type:varchar(100);not null"`
	ManagerID   *uint          `gorm:"index"`
	Manager     *EmployeeModel `gorm:"foreignKey:ManagerID;constraint:OnDelete:CASCADE"`
	Created     time.Time      `gorm:"autoCreateTime"`
	LastUpdated time.Time      `gorm:"autoUpdateTime"`
}

func (DepartmentModel) TableName() string { return "departments" }

type EmployeeModel struct {
	ID           uint             `gorm:"primaryKey"`
	Name         string           `gorm:"type:varchar(255);not null"`
	Address      string           `gorm:"type:text;not null"`
	IsManager    bool             `gorm:"not null;default:false"`
	PositionID   *uint            `gorm:"index"`
	Position     *PositionModel   `gorm:"foreignKey:PositionID;constraint:OnDelete:CASCADE"`
	DepartmentID *uint            `gorm:"index"`
	Department   *DepartmentModel `gorm:"foreignKey:DepartmentID;constraint:OnDelete:CASCADE"`
	StatusID     *uint            `gorm:"index"`
	Status       *StatusModel     `gorm:"foreignKey:StatusID;constraint:OnDelete:CASCADE"`
	ImageKey     string
	ImageMeta    datatypes.JSON `gorm:"type:jsonb"`
	Created      time.Time      `gorm:"autoCreateTime"`
	LastUpdated  time.Time      `gorm:"autoUpdateTime"`
}

func (EmployeeModel) TableName() string { return "employees" }

type UserModel struct {
	ID           uint      `gorm:"primaryKey"`
	Username     string    `gorm:"type:varchar(150);uniqueIndex;not null"`
	Email        string    `gorm:"type:varchar(254);not null"`
	PasswordHash string    `gorm:"not null"`
	Created      time.Time `gorm:"autoCreateTime"`
	LastUpdated  time.Time `gorm:"autoUpdateTime"`
}

func (UserModel) TableName() string { return "users" }
