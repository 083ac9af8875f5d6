// Package mock provides a configurable in-memory client.Client for tests
package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/celestiaorg/geoimport/internal/db/models"
	"github.com/celestiaorg/geoimport/internal/types"
	"github.com/celestiaorg/geoimport/pkg/api/v1/client"
)

// ErrNotConfigured is returned by methods whose function field is nil
var ErrNotConfigured = errors.New("mock: method not configured")

// MockClient implements the Client interface for testing
type MockClient struct {
	// Function fields that can be set to mock behavior
	HealthCheckFn      func(ctx context.Context) (map[string]string, error)
	UploadFn           func(ctx context.Context, filename string, data []byte, replacementTargetID uint) (types.UploadResponse, error)
	ListImportsFn      func(ctx context.Context, status string, page int) ([]models.ImportItem, error)
	GetImportFn        func(ctx context.Context, id uint) (models.ImportItem, error)
	CommitImportsFn    func(ctx context.Context, req types.CommitRequest) (types.JobResponse, error)
	DeleteImportFn     func(ctx context.Context, id uint) (types.JobResponse, error)
	ListJobsFn         func(ctx context.Context, status string) ([]types.JobSnapshot, error)
	GetJobFn           func(ctx context.Context, id string) (types.JobSnapshot, error)
	CancelJobFn        func(ctx context.Context, id string) (types.CancelResponse, error)
	WaitForJobFn       func(ctx context.Context, id string, interval time.Duration) (types.JobSnapshot, error)
	GetFeaturesFn      func(ctx context.Context, q types.BBoxQuery) (types.BBoxResponse, error)
	DeleteFeaturesFn   func(ctx context.Context, req types.DeleteFeaturesRequest) (types.JobResponse, error)
	CreateCollectionFn func(ctx context.Context, req types.CreateCollectionRequest) (*models.Collection, error)

	mu sync.Mutex

	// Call tracking for verification
	UploadCalls []struct {
		Filename            string
		Size                int
		ReplacementTargetID uint
	}
	ListImportsCalls []struct {
		Status string
		Page   int
	}
	CommitImportsCalls    []types.CommitRequest
	DeleteImportCalls     []uint
	ListJobsCalls         []string
	GetJobCalls           []string
	CancelJobCalls        []string
	WaitForJobCalls       []string
	GetFeaturesCalls      []types.BBoxQuery
	DeleteFeaturesCalls   []types.DeleteFeaturesRequest
	CreateCollectionCalls []types.CreateCollectionRequest
}

var _ client.Client = &MockClient{}

// HealthCheck implements the Client interface
func (m *MockClient) HealthCheck(ctx context.Context) (map[string]string, error) {
	if m.HealthCheckFn != nil {
		return m.HealthCheckFn(ctx)
	}
	return map[string]string{"status": "healthy"}, nil
}

// Upload implements the Client interface
func (m *MockClient) Upload(ctx context.Context, filename string, data []byte, replacementTargetID uint) (types.UploadResponse, error) {
	m.mu.Lock()
	m.UploadCalls = append(m.UploadCalls, struct {
		Filename            string
		Size                int
		ReplacementTargetID uint
	}{filename, len(data), replacementTargetID})
	m.mu.Unlock()

	if m.UploadFn != nil {
		return m.UploadFn(ctx, filename, data, replacementTargetID)
	}
	return types.UploadResponse{}, ErrNotConfigured
}

// ListImports implements the Client interface
func (m *MockClient) ListImports(ctx context.Context, status string, page int) ([]models.ImportItem, error) {
	m.mu.Lock()
	m.ListImportsCalls = append(m.ListImportsCalls, struct {
		Status string
		Page   int
	}{status, page})
	m.mu.Unlock()

	if m.ListImportsFn != nil {
		return m.ListImportsFn(ctx, status, page)
	}
	return nil, ErrNotConfigured
}

// GetImport implements the Client interface
func (m *MockClient) GetImport(ctx context.Context, id uint) (models.ImportItem, error) {
	if m.GetImportFn != nil {
		return m.GetImportFn(ctx, id)
	}
	return models.ImportItem{}, ErrNotConfigured
}

// CommitImports implements the Client interface
func (m *MockClient) CommitImports(ctx context.Context, req types.CommitRequest) (types.JobResponse, error) {
	m.mu.Lock()
	m.CommitImportsCalls = append(m.CommitImportsCalls, req)
	m.mu.Unlock()

	if m.CommitImportsFn != nil {
		return m.CommitImportsFn(ctx, req)
	}
	return types.JobResponse{}, ErrNotConfigured
}

// DeleteImport implements the Client interface
func (m *MockClient) DeleteImport(ctx context.Context, id uint) (types.JobResponse, error) {
	m.mu.Lock()
	m.DeleteImportCalls = append(m.DeleteImportCalls, id)
	m.mu.Unlock()

	if m.DeleteImportFn != nil {
		return m.DeleteImportFn(ctx, id)
	}
	return types.JobResponse{}, ErrNotConfigured
}

// ListJobs implements the Client interface
func (m *MockClient) ListJobs(ctx context.Context, status string) ([]types.JobSnapshot, error) {
	m.mu.Lock()
	m.ListJobsCalls = append(m.ListJobsCalls, status)
	m.mu.Unlock()

	if m.ListJobsFn != nil {
		return m.ListJobsFn(ctx, status)
	}
	return nil, ErrNotConfigured
}

// GetJob implements the Client interface
func (m *MockClient) GetJob(ctx context.Context, id string) (types.JobSnapshot, error) {
	m.mu.Lock()
	m.GetJobCalls = append(m.GetJobCalls, id)
	m.mu.Unlock()

	if m.GetJobFn != nil {
		return m.GetJobFn(ctx, id)
	}
	return types.JobSnapshot{}, ErrNotConfigured
}

// CancelJob implements the Client interface
func (m *MockClient) CancelJob(ctx context.Context, id string) (types.CancelResponse, error) {
	m.mu.Lock()
	m.CancelJobCalls = append(m.CancelJobCalls, id)
	m.mu.Unlock()

	if m.CancelJobFn != nil {
		return m.CancelJobFn(ctx, id)
	}
	return types.CancelResponse{}, ErrNotConfigured
}

// WaitForJob implements the Client interface
func (m *MockClient) WaitForJob(ctx context.Context, id string, interval time.Duration) (types.JobSnapshot, error) {
	m.mu.Lock()
	m.WaitForJobCalls = append(m.WaitForJobCalls, id)
	m.mu.Unlock()

	if m.WaitForJobFn != nil {
		return m.WaitForJobFn(ctx, id, interval)
	}
	return types.JobSnapshot{}, ErrNotConfigured
}

// GetFeatures implements the Client interface
func (m *MockClient) GetFeatures(ctx context.Context, q types.BBoxQuery) (types.BBoxResponse, error) {
	m.mu.Lock()
	m.GetFeaturesCalls = append(m.GetFeaturesCalls, q)
	m.mu.Unlock()

	if m.GetFeaturesFn != nil {
		return m.GetFeaturesFn(ctx, q)
	}
	return types.BBoxResponse{}, ErrNotConfigured
}

// DeleteFeatures implements the Client interface
func (m *MockClient) DeleteFeatures(ctx context.Context, req types.DeleteFeaturesRequest) (types.JobResponse, error) {
	m.mu.Lock()
	m.DeleteFeaturesCalls = append(m.DeleteFeaturesCalls, req)
	m.mu.Unlock()

	if m.DeleteFeaturesFn != nil {
		return m.DeleteFeaturesFn(ctx, req)
	}
	return types.JobResponse{}, ErrNotConfigured
}

// CreateCollection implements the Client interface
func (m *MockClient) CreateCollection(ctx context.Context, req types.CreateCollectionRequest) (*models.Collection, error) {
	m.mu.Lock()
	m.CreateCollectionCalls = append(m.CreateCollectionCalls, req)
	m.mu.Unlock()

	if m.CreateCollectionFn != nil {
		return m.CreateCollectionFn(ctx, req)
	}
	return nil, ErrNotConfigured
}
