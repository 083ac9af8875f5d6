package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/celestiaorg/geoimport/internal/ports"
)

// Store bundles the repositories sharing one database handle
type Store struct {
	db       *gorm.DB
	features *FeatureRepository
	imports  *ImportItemRepository
}

var _ ports.Store = (*Store)(nil)

// NewStore creates a store over db
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:       db,
		features: NewFeatureRepository(db),
		imports:  NewImportItemRepository(db),
	}
}

// Features returns the feature repository
func (s *Store) Features() ports.FeatureRepository {
	return s.features
}

// Imports returns the import item repository
func (s *Store) Imports() ports.ImportRepository {
	return s.imports
}

// Transaction runs fn with a store bound to a single database transaction
func (s *Store) Transaction(ctx context.Context, fn func(tx ports.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}
