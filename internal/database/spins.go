package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"spinwheel/internal/models"
)

var (
	// ErrDuplicateEmail means the unique email index rejected the insert.
	ErrDuplicateEmail = errors.New("email already has a spin")
	ErrNotFound       = errors.New("spin not found")
)

// SpinStore persists SpinRecords. The unique index on spins.email is the
// authoritative one-spin-per-email guard.
type SpinStore struct {
	db *gorm.DB
}

func NewSpinStore(db *gorm.DB) *SpinStore {
	return &SpinStore{db: db}
}

// Insert writes rec in a single statement. On success rec.ID and
// rec.CreatedAt are populated.
func (s *SpinStore) Insert(ctx context.Context, rec *models.SpinRecord) error {
	err := s.db.WithContext(ctx).Create(rec).Error
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return ErrDuplicateEmail
	default:
		return fmt.Errorf("insert spin: %w", err)
	}
}

func (s *SpinStore) FindByEmail(ctx context.Context, email string) (*models.SpinRecord, error) {
	var rec models.SpinRecord
	err := s.db.WithContext(ctx).Where("email = ?", email).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find spin: %w", err)
	}
	return &rec, nil
}

// List returns every spin, newest first.
func (s *SpinStore) List(ctx context.Context) ([]models.SpinRecord, error) {
	spins := make([]models.SpinRecord, 0)
	if err := s.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Find(&spins).Error; err != nil {
		return nil, fmt.Errorf("list spins: %w", err)
	}
	return spins, nil
}

func (s *SpinStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.SpinRecord{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count spins: %w", err)
	}
	return n, nil
}

func (s *SpinStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// lib/pq errors are not translated by the postgres dialector.
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
