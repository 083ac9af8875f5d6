package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-set/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/celestiaorg/geoimport/internal/db/dbtest"
	"github.com/celestiaorg/geoimport/internal/db/models"
	"github.com/celestiaorg/geoimport/internal/db/repos"
	"github.com/celestiaorg/geoimport/internal/events"
	"github.com/celestiaorg/geoimport/internal/ports"
	"github.com/celestiaorg/geoimport/internal/types"
)

const (
	waitFor = 5 * time.Second
	tick    = 5 * time.Millisecond
)

// recordingSink keeps every published event
type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *recordingSink) Publish(ownerID uint, eventType events.EventType, payload interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events.Event{Type: eventType, OwnerID: ownerID, Payload: payload})
}

func (s *recordingSink) ofType(eventType events.EventType) []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []events.Event
	for _, e := range s.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func newTestStore(t *testing.T) *repos.Store {
	return repos.NewStore(dbtest.Open(t))
}

func pointFeature(lon, lat float64, name string, tags ...string) types.Feature {
	return types.Feature{
		Geometry:   orb.Point{lon, lat},
		Properties: types.FeatureProperties{Name: name, Tags: tags},
	}
}

// commitFeatures writes features straight into the library
func commitFeatures(t *testing.T, store *repos.Store, ownerID uint, features ...types.Feature) []*models.Feature {
	t.Helper()
	rows := make([]*models.Feature, 0, len(features))
	for _, f := range features {
		row, err := models.NewFeature(ownerID, f, nil)
		require.NoError(t, err)
		rows = append(rows, row)
	}
	n, err := store.Features().BulkCreate(context.Background(), rows)
	require.NoError(t, err)
	require.Equal(t, len(rows), n)
	return rows
}

// waitForTerminal waits until the job reaches a terminal status and returns its final state
func waitForTerminal(t *testing.T, tracker *StatusTracker, jobID string) types.JobSnapshot {
	t.Helper()
	require.Eventually(t, func() bool {
		status, ok := tracker.GetJobStatus(jobID)
		return ok && status.IsTerminal()
	}, waitFor, tick, "job %s did not finish", jobID)
	snapshot, _ := tracker.GetJob(jobID)
	return snapshot
}

func kmlDocument(placemarks ...string) []byte {
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2"><Document>`
	for _, p := range placemarks {
		doc += p
	}
	return []byte(doc + "</Document></kml>")
}

func kmlPoint(name string, lon, lat float64) string {
	return fmt.Sprintf("<Placemark><name>%s</name><Point><coordinates>%g,%g</coordinates></Point></Placemark>", name, lon, lat)
}

// blockingConverter signals when Convert is entered and returns once released
type blockingConverter struct {
	started chan struct{}
	release chan struct{}
	// honorContext makes Convert return as soon as its context ends
	honorContext bool
}

func newBlockingConverter(honorContext bool) *blockingConverter {
	return &blockingConverter{
		started:      make(chan struct{}, 1),
		release:      make(chan struct{}),
		honorContext: honorContext,
	}
}

func (c *blockingConverter) Convert(ctx context.Context, _ []byte, _ string) (*geojson.FeatureCollection, []string, error) {
	c.started <- struct{}{}
	if c.honorContext {
		select {
		case <-c.release:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	} else {
		<-c.release
	}
	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(orb.Point{1, 1})
	f.Properties["name"] = "blocked"
	fc.Append(f)
	return fc, nil, nil
}

type acceptAllValidator struct{}

func (acceptAllValidator) Validate([]byte, string) error { return nil }

// mockFeatureRepository is a testify mock of ports.FeatureRepository
type mockFeatureRepository struct {
	mock.Mock
}

var _ ports.FeatureRepository = (*mockFeatureRepository)(nil)

func (m *mockFeatureRepository) FindByGeometry(ctx context.Context, ownerID uint, geometryType, geometryKey string) ([]models.Feature, error) {
	args := m.Called(ctx, ownerID, geometryType, geometryKey)
	return args.Get(0).([]models.Feature), args.Error(1)
}

func (m *mockFeatureRepository) FindByGeometries(ctx context.Context, ownerID uint, geometryType string, geometryKeys []string) (map[string][]models.Feature, error) {
	args := m.Called(ctx, ownerID, geometryType, geometryKeys)
	return args.Get(0).(map[string][]models.Feature), args.Error(1)
}

func (m *mockFeatureRepository) GetByID(ctx context.Context, ownerID, id uint) (*models.Feature, error) {
	args := m.Called(ctx, ownerID, id)
	return args.Get(0).(*models.Feature), args.Error(1)
}

func (m *mockFeatureRepository) BulkCreate(ctx context.Context, features []*models.Feature) (int, error) {
	args := m.Called(ctx, features)
	return args.Int(0), args.Error(1)
}

func (m *mockFeatureRepository) GetExistingHashes(ctx context.Context, ownerID uint) (*set.Set[string], error) {
	args := m.Called(ctx, ownerID)
	return args.Get(0).(*set.Set[string]), args.Error(1)
}

func (m *mockFeatureRepository) ReplaceGeometry(ctx context.Context, ownerID, id uint, feature types.Feature) (*models.Feature, error) {
	args := m.Called(ctx, ownerID, id, feature)
	return args.Get(0).(*models.Feature), args.Error(1)
}

func (m *mockFeatureRepository) DeleteByIDs(ctx context.Context, ownerID uint, ids []uint) (int64, error) {
	args := m.Called(ctx, ownerID, ids)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockFeatureRepository) CountFeatures(ctx context.Context, filter ports.FeatureFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockFeatureRepository) QueryFeatures(ctx context.Context, filter ports.FeatureFilter) ([]models.Feature, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]models.Feature), args.Error(1)
}

func (m *mockFeatureRepository) CreateCollection(ctx context.Context, collection *models.Collection) error {
	args := m.Called(ctx, collection)
	return args.Error(0)
}

func (m *mockFeatureRepository) GetCollection(ctx context.Context, ownerID, id uint) (*models.Collection, error) {
	args := m.Called(ctx, ownerID, id)
	return args.Get(0).(*models.Collection), args.Error(1)
}
