package repos

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/suite"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/celestiaorg/geoimport/internal/db/dbtest"
	"github.com/celestiaorg/geoimport/internal/db/models"
	"github.com/celestiaorg/geoimport/internal/types"
)

// DBRepositoryTestSuite provides a base test suite for repository tests
type DBRepositoryTestSuite struct {
	suite.Suite
	db          *gorm.DB
	ctx         context.Context
	store       *Store
	featureRepo *FeatureRepository
	importRepo  *ImportItemRepository
}

// randomOwnerID creates a random owner ID using crypto/rand
func (s *DBRepositoryTestSuite) randomOwnerID() uint {
	n, err := rand.Int(rand.Reader, big.NewInt(1000))
	s.Require().NoError(err, "Failed to generate random owner ID")
	return uint(n.Uint64() + 1) // +1 to avoid 0
}

func (s *DBRepositoryTestSuite) SetupTest() {
	s.db = dbtest.Open(s.T())
	s.store = NewStore(s.db)
	s.featureRepo = NewFeatureRepository(s.db)
	s.importRepo = NewImportItemRepository(s.db)
	s.ctx = context.Background()
}

// Helper methods for creating test data

func (s *DBRepositoryTestSuite) newFeature(ownerID uint, geom orb.Geometry, name string, tags ...string) *models.Feature {
	f, err := models.NewFeature(ownerID, types.Feature{
		Geometry:   geom,
		Properties: types.FeatureProperties{Name: name, Tags: tags},
	}, nil)
	s.Require().NoError(err)
	return f
}

func (s *DBRepositoryTestSuite) createTestFeature(ownerID uint, geom orb.Geometry, name string, tags ...string) *models.Feature {
	f := s.newFeature(ownerID, geom, name, tags...)
	s.Require().NoError(s.db.Create(f).Error)
	return f
}

func (s *DBRepositoryTestSuite) createTestItem(ownerID uint) *models.ImportItem {
	item := &models.ImportItem{
		OwnerID:  ownerID,
		Filename: fmt.Sprintf("upload-%d.kml", ownerID),
		Status:   models.ImportItemStatusPending,
		JobID:    "job-1",
	}
	s.Require().NoError(s.importRepo.Create(s.ctx, item))
	return item
}

func (s *DBRepositoryTestSuite) createTestCollection(ownerID uint, tags []string, ids []uint) *models.Collection {
	tagJSON, err := json.Marshal(tags)
	s.Require().NoError(err)
	idJSON, err := json.Marshal(ids)
	s.Require().NoError(err)

	collection := &models.Collection{
		OwnerID:    ownerID,
		Name:       "trip",
		Tags:       datatypes.JSON(tagJSON),
		FeatureIDs: datatypes.JSON(idJSON),
	}
	s.Require().NoError(s.featureRepo.CreateCollection(s.ctx, collection))
	return collection
}

// TestDBRepository runs the test suite for the DBRepository to verify no panic
func TestDBRepository(t *testing.T) {
	suite.Run(t, new(DBRepositoryTestSuite))
}
