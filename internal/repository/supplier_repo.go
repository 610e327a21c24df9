package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"invoice-bookkeeping-backend/internal/apperror"
	"invoice-bookkeeping-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SupplierRepository struct {
	db *gorm.DB
}

func NewSupplierRepository(db *gorm.DB) *SupplierRepository {
	return &SupplierRepository{db: db}
}

func (r *SupplierRepository) WithTx(tx *gorm.DB) *SupplierRepository {
	return &SupplierRepository{db: tx}
}

// List returns suppliers ordered by name.
func (r *SupplierRepository) List(ctx context.Context) ([]models.Supplier, error) {
	suppliers := []models.Supplier{}
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&suppliers).Error; err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	return suppliers, nil
}

func (r *SupplierRepository) Names(ctx context.Context) ([]string, error) {
	names := []string{}
	if err := r.db.WithContext(ctx).Model(&models.Supplier{}).Order("name ASC").Pluck("name", &names).Error; err != nil {
		return nil, fmt.Errorf("list supplier names: %w", err)
	}
	return names, nil
}

func (r *SupplierRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Supplier, error) {
	var s models.Supplier
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("supplier", id.String())
		}
		return nil, fmt.Errorf("get supplier: %w", err)
	}
	return &s, nil
}

// FindByName matches case-insensitively. Returns nil, nil when absent.
func (r *SupplierRepository) FindByName(ctx context.Context, name string) (*models.Supplier, error) {
	var s models.Supplier
	err := r.db.WithContext(ctx).Where("LOWER(name) = ?", strings.ToLower(strings.TrimSpace(name))).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find supplier: %w", err)
	}
	return &s, nil
}

// Create rejects a name that already exists in any letter case.
func (r *SupplierRepository) Create(ctx context.Context, s *models.Supplier) error {
	existing, err := r.FindByName(ctx, s.Name)
	if err != nil {
		return err
	}
	if existing != nil {
		return apperror.AlreadyExists("supplier", existing.Name)
	}
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperror.AlreadyExists("supplier", s.Name)
		}
		return fmt.Errorf("insert supplier: %w", err)
	}
	return nil
}

func (r *SupplierRepository) Rename(ctx context.Context, id uuid.UUID, name string) (*models.Supplier, error) {
	s, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	existing, err := r.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.ID != id {
		return nil, apperror.AlreadyExists("supplier", existing.Name)
	}
	s.Name = name
	if err := r.db.WithContext(ctx).Model(s).Update("name", name).Error; err != nil {
		return nil, fmt.Errorf("rename supplier: %w", err)
	}
	return s, nil
}

func (r *SupplierRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&models.Supplier{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete supplier: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("supplier", id.String())
	}
	return nil
}
