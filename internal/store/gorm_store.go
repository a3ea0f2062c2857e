package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"staffdesk/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&StatusModel{}, &PositionModel{}, &DepartmentModel{}, &EmployeeModel{}, &UserModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// statuses

func (s *GormStore) CreateStatus(ctx context.Context, st domain.Status) (domain.Status, error) {
	model := StatusModel{Name: st.Name}
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.Status{}, err
	}
	return statusFromModel(model), nil
}

func (s *GormStore) GetStatus(ctx context.Context, id uint) (domain.Status, bool, error) {
	var model StatusModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Status{}, false, nil
		}
		return domain.Status{}, false, err
	}
	return statusFromModel(model), true, nil
}

func (s *GormStore) ListStatuses(ctx context.Context) ([]domain.Status, error) {
	var models []StatusModel
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Status, 0, len(models))
	for _, m := range models {
		res = append(res, statusFromModel(m))
	}
	return res, nil
}

func (s *GormStore) UpdateStatus(ctx context.Context, st domain.Status) (domain.Status, error) {
	if err := s.db.WithContext(ctx).Model(&StatusModel{}).
		Where("id = ?", st.ID).
		Updates(map[string]any{"name": st.Name}).Error; err != nil {
		return domain.Status{}, err
	}
	updated, ok, err := s.GetStatus(ctx, st.ID)
	if err != nil {
		return domain.Status{}, err
	}
	if !ok {
		return domain.Status{}, ErrNotFound
	}
	return updated, nil
}

func (s *GormStore) DeleteStatus(ctx context.Context, id uint) (bool, error) {
	tx := s.db.WithContext(ctx).Delete(&StatusModel{}, "id = ?", id)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (s *GormStore) MatchStatus(ctx context.Context, m StatusMatch) (domain.Status, bool, error) {
	tx := s.db.WithContext(ctx).Model(&StatusModel{})
	if m.Name != nil {
		tx = tx.Where("name = ?", *m.Name)
	}
	var model StatusModel
	if err := tx.Order("id ASC").First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Status{}, false, nil
		}
		return domain.Status{}, false, err
	}
	return statusFromModel(model), true, nil
}

// positions

func (s *GormStore) CreatePosition(ctx context.Context, p domain.Position) (domain.Position, error) {
	model := PositionModel{Name: p.Name, Salary: p.Salary.Decimal()}
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.Position{}, err
	}
	return positionFromModel(model), nil
}

func (s *GormStore) GetPosition(ctx context.Context, id uint) (domain.Position, bool, error) {
	var model PositionModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Position{}, false, nil
		}
		return domain.Position{}, false, err
	}
	return positionFromModel(model), true, nil
}

func (s *GormStore) ListPositions(ctx context.Context) ([]domain.Position, error) {
	var models []PositionModel
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Position, 0, len(models))
	for _, m := range models {
		res = append(res, positionFromModel(m))
	}
	return res, nil
}

func (s *GormStore) UpdatePosition(ctx context.Context, p domain.Position) (domain.Position, error) {
	if err := s.db.WithContext(ctx).Model(&PositionModel{}).
		Where("id = ?", p.ID).
		Updates(map[string]any{"name": p.Name, "salary": p.Salary.Decimal()}).Error; err != nil {
		return domain.Position{}, err
	}
	updated, ok, err := s.GetPosition(ctx, p.ID)
	if err != nil {
		return domain.Position{}, err
	}
	if !ok {
		return domain.Position{}, ErrNotFound
	}
	return updated, nil
}

func (s *GormStore) DeletePosition(ctx context.Context, id uint) (bool, error) {
	tx := s.db.WithContext(ctx).Delete(&PositionModel{}, "id = ?", id)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (s *GormStore) MatchPosition(ctx context.Context, m PositionMatch) (domain.Position, bool, error) {
	tx := s.db.WithContext(ctx).Model(&PositionModel{})
	if m.Name != nil {
		tx = tx.Where("name = ?", *m.Name)
	}
	if m.Salary != nil {
		tx = tx.Where("salary = ?", m.Salary.Decimal())
	}
	var model PositionModel
	if err := tx.Order("id ASC").First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Position{}, false, nil
		}
		return domain.Position{}, false, err
	}
	return positionFromModel(model), true, nil
}

// departments

func (s *GormStore) CreateDepartment(ctx context.Context, d domain.Department) (domain.Department, error) {
	model := DepartmentModel{Name: d.Name, ManagerID: d.ManagerID}
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.Department{}, err
	}
	return departmentFromModel(model), nil
}

func (s *GormStore) GetDepartment(ctx context.Context, id uint) (domain.Department, bool, error) {
	var model DepartmentModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Department{}, false, nil
		}
		return domain.Department{}, false, err
	}
	return departmentFromModel(model), true, nil
}

func (s *GormStore) ListDepartments(ctx context.Context) ([]domain.Department, error) {
	var models []DepartmentModel
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Department, 0, len(models))
	for _, m := range models {
		res = append(res, departmentFromModel(m))
	}
	return res, nil
}

func (s *GormStore) UpdateDepartment(ctx context.Context, d domain.Department) (domain.Department, error) {
	if err := s.db.WithContext(ctx).Model(&DepartmentModel{}).
		Where("id = ?", d.ID).
		Updates(map[string]any{"name": d.Name, "manager_id": d.ManagerID}).Error; err != nil {
		return domain.Department{}, err
	}
	updated, ok, err := s.GetDepartment(ctx, d.ID)
	if err != nil {
		return domain.Department{}, err
	}
	if !ok {
		return domain.Department{}, ErrNotFound
	}
	return updated, nil
}

func (s *GormStore) DeleteDepartment(ctx context.Context, id uint) (bool, error) {
	tx := s.db.WithContext(ctx).Delete(&DepartmentModel{}, "id = ?", id)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (s *GormStore) MatchDepartment(ctx context.Context, m DepartmentMatch) (domain.Department, bool, error) {
	tx := s.db.WithContext(ctx).Model(&DepartmentModel{})
	if m.Name != nil {
		tx = tx.Where("name = ?", *m.Name)
	}
	if m.ManagerSet {
		if m.ManagerID == nil {
			tx = tx.Where("manager_id IS NULL")
		} else {
			tx = tx.Where("manager_id = ?", *m.ManagerID)
		}
	}
	var model DepartmentModel
	if err := tx.Order("id ASC").First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Department{}, false, nil
		}
		return domain.Department{}, false, err
	}
	return departmentFromModel(model), true, nil
}

// employees

func (s *GormStore) CreateEmployee(ctx context.Context, rec EmployeeRecord) (domain.Employee, error) {
	model := EmployeeModel{
		Name:         rec.Name,
		Address:      rec.Address,
		IsManager:    rec.IsManager,
		PositionID:   rec.PositionID,
		DepartmentID: rec.DepartmentID,
		StatusID:     rec.StatusID,
		ImageKey:     rec.ImageKey,
	}
	if rec.ImageMeta != nil {
		meta, err := json.Marshal(rec.ImageMeta)
		if err != nil {
			return domain.Employee{}, fmt.Errorf("marshal image meta: %w", err)
		}
		model.ImageMeta = meta
	}
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.Employee{}, err
	}
	created, ok, err := s.GetEmployee(ctx, model.ID)
	if err != nil {
		return domain.Employee{}, err
	}
	if !ok {
		return domain.Employee{}, ErrNotFound
	}
	return created, nil
}

func (s *GormStore) GetEmployee(ctx context.Context, id uint) (domain.Employee, bool, error) {
	var model EmployeeModel
	if err := s.db.WithContext(ctx).
		Preload("Position").Preload("Department").Preload("Status").
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Employee{}, false, nil
		}
		return domain.Employee{}, false, err
	}
	return employeeFromModel(model), true, nil
}

func (s *GormStore) GetEmployeeRecord(ctx context.Context, id uint) (EmployeeRecord, bool, error) {
	var model EmployeeModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return EmployeeRecord{}, false, nil
		}
		return EmployeeRecord{}, false, err
	}
	return recordFromModel(model), true, nil
}

func (s *GormStore) ListEmployees(ctx context.Context, f EmployeeFilter) ([]domain.Employee, error) {
	tx := s.db.WithContext(ctx).
		Preload("Position").Preload("Department").Preload("Status").
		Order("id ASC")
	if f.PositionID != nil {
		tx = tx.Where("position_id = ?", *f.PositionID)
	}
	if f.DepartmentID != nil {
		tx = tx.Where("department_id = ?", *f.DepartmentID)
	}
	if f.StatusID != nil {
		tx = tx.Where("status_id = ?", *f.StatusID)
	}
	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		tx = tx.Where("name ILIKE ? OR address ILIKE ?", pattern, pattern)
	}
	var models []EmployeeModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Employee, 0, len(models))
	for _, m := range models {
		res = append(res, employeeFromModel(m))
	}
	return res, nil
}

func (s *GormStore) UpdateEmployee(ctx context.Context, rec EmployeeRecord) (domain.Employee, error) {
	updates := map[string]any{
		"name":          rec.Name,
		"address":       rec.Address,
		"is_manager":    rec.IsManager,
		"position_id":   rec.PositionID,
		"department_id": rec.DepartmentID,
		"status_id":     rec.StatusID,
	}
	if err := s.db.WithContext(ctx).Model(&EmployeeModel{}).
		Where("id = ?", rec.ID).
		Updates(updates).Error; err != nil {
		return domain.Employee{}, err
	}
	updated, ok, err := s.GetEmployee(ctx, rec.ID)
	if err != nil {
		return domain.Employee{}, err
	}
	if !ok {
		return domain.Employee{}, ErrNotFound
	}
	return updated, nil
}

func (s *GormStore) DeleteEmployee(ctx context.Context, id uint) (bool, error) {
	tx := s.db.WithContext(ctx).Delete(&EmployeeModel{}, "id = ?", id)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (s *GormStore) CountEmployees(ctx context.Context) (int, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&EmployeeModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func (s *GormStore) SetEmployeeImage(ctx context.Context, id uint, key string, meta domain.ImageMeta) error {
	encoded, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal image meta: %w", err)
	}
	tx := s.db.WithContext(ctx).Model(&EmployeeModel{}).
		Where("id = ?", id).
		Updates(map[string]any{"image_key": key, "image_meta": datatypes.JSON(encoded)})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// users

func (s *GormStore) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	model := UserModel{Username: u.Username, Email: u.Email, PasswordHash: u.PasswordHash}
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.User{}, err
	}
	return userFromModel(model), nil
}

func (s *GormStore) GetUserByUsername(ctx context.Context, username string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).First(&model, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

func (s *GormStore) GetUserByID(ctx context.Context, id uint) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// model conversions

func statusFromModel(m StatusModel) domain.Status {
	return domain.Status{
		ID:          m.ID,
		Name:        m.Name,
		Created:     m.Created,
		LastUpdated: m.LastUpdated,
	}
}

func positionFromModel(m PositionModel) domain.Position {
	salary, _ := domain.NewSalary(m.Salary)
	return domain.Position{
		ID:          m.ID,
		Name:        m.Name,
		Salary:      salary,
		Created:     m.Created,
		LastUpdated: m.LastUpdated,
	}
}

func departmentFromModel(m DepartmentModel) domain.Department {
	return domain.Department{
		ID:          m.ID,
		Name:        m.Name,
		ManagerID:   m.ManagerID,
		Created:     m.Created,
		LastUpdated: m.LastUpdated,
	}
}

func employeeFromModel(m EmployeeModel) domain.Employee {
	e := domain.Employee{
		ID:          m.ID,
		Name:        m.Name,
		Address:     m.Address,
		IsManager:   m.IsManager,
		ImageKey:    m.ImageKey,
		Created:     m.Created,
		LastUpdated: m.LastUpdated,
	}
	if m.Position != nil {
		pos := positionFromModel(*m.Position)
		e.Position = &pos
	}
	if m.Department != nil {
		dep := departmentFromModel(*m.Department)
		e.Department = &dep
	}
	if m.Status != nil {
		st := statusFromModel(*m.Status)
		e.Status = &st
	}
	return e
}

func recordFromModel(m EmployeeModel) EmployeeRecord {
	rec := EmployeeRecord{
		ID:           m.ID,
		Name:         m.Name,
		Address:      m.Address,
		IsManager:    m.IsManager,
		PositionID:   m.PositionID,
		DepartmentID: m.DepartmentID,
		StatusID:     m.StatusID,
		ImageKey:     m.ImageKey,
	}
	if len(m.ImageMeta) > 0 {
		var meta domain.ImageMeta
		if err := json.Unmarshal(m.ImageMeta, &meta); err == nil {
			rec.ImageMeta = &meta
		}
	}
	return rec
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Username:     m.Username,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Created:      m.Created,
		LastUpdated:  m.LastUpdated,
	}
}
