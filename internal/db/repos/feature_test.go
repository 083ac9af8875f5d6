package repos

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/suite"

	"github.com/celestiaorg/geoimport/internal/db/models"
	"github.com/celestiaorg/geoimport/internal/ports"
	"github.com/celestiaorg/geoimport/internal/types"
)

type FeatureRepositoryTestSuite struct {
	DBRepositoryTestSuite
}

func TestFeatureRepository(t *testing.T) {
	suite.Run(t, new(FeatureRepositoryTestSuite))
}

func (s *FeatureRepositoryTestSuite) TestBulkCreate_SkipsExistingHashes() {
	ownerID := s.randomOwnerID()
	first := []*models.Feature{
		s.newFeature(ownerID, orb.Point{1, 1}, "a"),
		s.newFeature(ownerID, orb.Point{2, 2}, "b"),
	}
	inserted, err := s.featureRepo.BulkCreate(s.ctx, first)
	s.Require().NoError(err)
	s.Equal(2, inserted)

	again := []*models.Feature{
		s.newFeature(ownerID, orb.Point{1, 1}, "a"),
		s.newFeature(ownerID, orb.Point{3, 3}, "c"),
	}
	inserted, err = s.featureRepo.BulkCreate(s.ctx, again)
	s.Require().NoError(err)
	s.Equal(1, inserted)

	// the same content for another owner is a different feature
	other := []*models.Feature{s.newFeature(ownerID+1000, orb.Point{1, 1}, "a")}
	inserted, err = s.featureRepo.BulkCreate(s.ctx, other)
	s.Require().NoError(err)
	s.Equal(1, inserted)

	hashes, err := s.featureRepo.GetExistingHashes(s.ctx, ownerID)
	s.Require().NoError(err)
	s.Equal(3, hashes.Size())
	s.True(hashes.Contains(first[0].ContentHash))

	_, err = s.featureRepo.BulkCreate(s.ctx, []*models.Feature{{OwnerID: 0}})
	s.Error(err)
}

func (s *FeatureRepositoryTestSuite) TestFindByGeometry() {
	ownerID := s.randomOwnerID()
	point := s.createTestFeature(ownerID, orb.Point{10, 20}, "well")
	s.createTestFeature(ownerID, orb.Point{10, 20.5}, "other")
	s.createTestFeature(ownerID+1000, orb.Point{10, 20}, "not mine")

	key, err := types.GeometryKey(orb.Point{10, 20})
	s.Require().NoError(err)

	found, err := s.featureRepo.FindByGeometry(s.ctx, ownerID, "Point", key)
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Equal(point.ID, found[0].ID)

	// equality, not intersection: a line through the point does not match
	found, err = s.featureRepo.FindByGeometry(s.ctx, ownerID, "LineString", key)
	s.Require().NoError(err)
	s.Empty(found)
}

func (s *FeatureRepositoryTestSuite) TestFindByGeometries() {
	ownerID := s.randomOwnerID()
	a := s.createTestFeature(ownerID, orb.LineString{{0, 0}, {1, 1}}, "a")
	b := s.createTestFeature(ownerID, orb.LineString{{5, 5}, {6, 6}}, "b")

	keyA, _ := types.GeometryKey(orb.LineString{{0, 0}, {1, 1}})
	keyB, _ := types.GeometryKey(orb.LineString{{5, 5}, {6, 6}})
	keyMissing, _ := types.GeometryKey(orb.LineString{{9, 9}, {8, 8}})

	found, err := s.featureRepo.FindByGeometries(s.ctx, ownerID, "LineString", []string{keyA, keyB, keyMissing, keyA})
	s.Require().NoError(err)
	s.Len(found, 2)
	s.Equal(a.ID, found[keyA][0].ID)
	s.Equal(b.ID, found[keyB][0].ID)
	s.NotContains(found, keyMissing)
}

func (s *FeatureRepositoryTestSuite) TestQueryFeatures_Bound() {
	ownerID := s.randomOwnerID()
	inside := s.createTestFeature(ownerID, orb.Point{5, 5}, "inside")
	crossing := s.createTestFeature(ownerID, orb.LineString{{-5, 0}, {2, 2}}, "crossing")
	s.createTestFeature(ownerID, orb.Point{50, 50}, "outside")
	s.createTestFeature(ownerID+1000, orb.Point{5, 5}, "not mine")

	bound := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}}
	filter := ports.FeatureFilter{OwnerID: ownerID, Bound: &bound}

	count, err := s.featureRepo.CountFeatures(s.ctx, filter)
	s.Require().NoError(err)
	s.Equal(int64(2), count)

	features, err := s.featureRepo.QueryFeatures(s.ctx, filter)
	s.Require().NoError(err)
	s.Require().Len(features, 2)
	s.Equal(inside.ID, features[0].ID)
	s.Equal(crossing.ID, features[1].ID)

	filter.Limit = 1
	features, err = s.featureRepo.QueryFeatures(s.ctx, filter)
	s.Require().NoError(err)
	s.Require().Len(features, 1)
	s.Equal(inside.ID, features[0].ID)

	count, err = s.featureRepo.CountFeatures(s.ctx, filter)
	s.Require().NoError(err)
	s.Equal(int64(2), count, "count ignores the limit")
}

func (s *FeatureRepositoryTestSuite) TestQueryFeatures_Tags() {
	ownerID := s.randomOwnerID()
	hike := s.createTestFeature(ownerID, orb.Point{1, 1}, "a", "hike", "summer")
	bike := s.createTestFeature(ownerID, orb.Point{2, 2}, "b", "bike")
	s.createTestFeature(ownerID, orb.Point{3, 3}, "c", "hiker")

	features, err := s.featureRepo.QueryFeatures(s.ctx, ports.FeatureFilter{OwnerID: ownerID, Tags: []string{"HIKE", "bike"}})
	s.Require().NoError(err)
	s.Require().Len(features, 2)
	s.Equal(hike.ID, features[0].ID)
	s.Equal(bike.ID, features[1].ID)
}

func (s *FeatureRepositoryTestSuite) TestQueryFeatures_Collection() {
	ownerID := s.randomOwnerID()
	tagged := s.createTestFeature(ownerID, orb.Point{1, 1}, "tagged", "trip")
	listed := s.createTestFeature(ownerID, orb.Point{2, 2}, "listed")
	s.createTestFeature(ownerID, orb.Point{3, 3}, "neither")
	foreign := s.createTestFeature(ownerID+1000, orb.Point{4, 4}, "foreign", "trip")

	collection := s.createTestCollection(ownerID, []string{"trip"}, []uint{listed.ID, foreign.ID})
	loaded, err := s.featureRepo.GetCollection(s.ctx, ownerID, collection.ID)
	s.Require().NoError(err)
	tags, err := loaded.TagList()
	s.Require().NoError(err)
	ids, err := loaded.IDList()
	s.Require().NoError(err)

	features, err := s.featureRepo.QueryFeatures(s.ctx, ports.FeatureFilter{
		OwnerID:        ownerID,
		CollectionTags: tags,
		FeatureIDs:     ids,
	})
	s.Require().NoError(err)
	s.Require().Len(features, 2)
	s.Equal(tagged.ID, features[0].ID)
	s.Equal(listed.ID, features[1].ID)

	features, err = s.featureRepo.QueryFeatures(s.ctx, ports.FeatureFilter{OwnerID: ownerID, FeatureIDs: []uint{listed.ID}})
	s.Require().NoError(err)
	s.Require().Len(features, 1)

	_, err = s.featureRepo.GetCollection(s.ctx, ownerID+1000, collection.ID)
	s.ErrorIs(err, types.ErrNotFound)
}

func (s *FeatureRepositoryTestSuite) TestReplaceGeometry() {
	ownerID := s.randomOwnerID()
	original := s.createTestFeature(ownerID, orb.Point{1, 1}, "pin")

	updated, err := s.featureRepo.ReplaceGeometry(s.ctx, ownerID, original.ID, types.Feature{Geometry: orb.Point{7, 8}})
	s.Require().NoError(err)
	s.Equal(original.ID, updated.ID)
	s.Equal("pin", updated.Name)
	s.NotEqual(original.ContentHash, updated.ContentHash)

	stored, err := s.featureRepo.GetByID(s.ctx, ownerID, original.ID)
	s.Require().NoError(err)
	s.Equal(7.0, stored.MinLon)
	s.Equal(updated.ContentHash, stored.ContentHash)

	_, err = s.featureRepo.ReplaceGeometry(s.ctx, ownerID, original.ID+100, types.Feature{Geometry: orb.Point{0, 0}})
	s.ErrorIs(err, types.ErrNotFound)
}

func (s *FeatureRepositoryTestSuite) TestDeleteByIDs() {
	ownerID := s.randomOwnerID()
	a := s.createTestFeature(ownerID, orb.Point{1, 1}, "a")
	b := s.createTestFeature(ownerID, orb.Point{2, 2}, "b")
	foreign := s.createTestFeature(ownerID+1000, orb.Point{3, 3}, "c")

	deleted, err := s.featureRepo.DeleteByIDs(s.ctx, ownerID, []uint{a.ID, foreign.ID})
	s.Require().NoError(err)
	s.Equal(int64(1), deleted)

	_, err = s.featureRepo.GetByID(s.ctx, ownerID, a.ID)
	s.ErrorIs(err, types.ErrNotFound)
	_, err = s.featureRepo.GetByID(s.ctx, ownerID, b.ID)
	s.NoError(err)
	_, err = s.featureRepo.GetByID(s.ctx, ownerID+1000, foreign.ID)
	s.NoError(err)
}
