// Package client provides the API client for interacting with the geoimport API
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/celestiaorg/geoimport/internal/db/models"
	"github.com/celestiaorg/geoimport/internal/types"
	"github.com/celestiaorg/geoimport/pkg/api/v1/handlers"
	"github.com/celestiaorg/geoimport/pkg/api/v1/routes"
)

// Client defaults
const (
	// DefaultTimeout is the default timeout for API requests
	DefaultTimeout = 30 * time.Second
	// DefaultUploadTimeout is the timeout for file uploads
	DefaultUploadTimeout = 5 * time.Minute
	// DefaultPollInterval is how often WaitForJob checks the job status
	DefaultPollInterval = 500 * time.Millisecond
)

// Client is the interface for API client
type Client interface {
	// Health Check
	HealthCheck(ctx context.Context) (map[string]string, error)

	// Import Endpoints
	Upload(ctx context.Context, filename string, data []byte, replacementTargetID uint) (types.UploadResponse, error)
	ListImports(ctx context.Context, status string, page int) ([]models.ImportItem, error)
	GetImport(ctx context.Context, id uint) (models.ImportItem, error)
	CommitImports(ctx context.Context, req types.CommitRequest) (types.JobResponse, error)
	DeleteImport(ctx context.Context, id uint) (types.JobResponse, error)

	// Job Endpoints
	ListJobs(ctx context.Context, status string) ([]types.JobSnapshot, error)
	GetJob(ctx context.Context, id string) (types.JobSnapshot, error)
	CancelJob(ctx context.Context, id string) (types.CancelResponse, error)
	WaitForJob(ctx context.Context, id string, interval time.Duration) (types.JobSnapshot, error)

	// Feature Endpoints
	GetFeatures(ctx context.Context, q types.BBoxQuery) (types.BBoxResponse, error)
	DeleteFeatures(ctx context.Context, req types.DeleteFeaturesRequest) (types.JobResponse, error)

	// Collection Endpoints
	CreateCollection(ctx context.Context, req types.CreateCollectionRequest) (*models.Collection, error)
}

var _ Client = &APIClient{}

// Options contains configuration options for the API client
type Options struct {
	// BaseURL is the base URL of the API
	BaseURL string

	// Timeout is the request timeout
	Timeout time.Duration

	// UserID is sent in the X-User-ID header of every request
	UserID uint
}

// DefaultOptions returns the default client options
func DefaultOptions() *Options {
	return &Options{
		BaseURL: routes.DefaultBaseURL,
		Timeout: DefaultTimeout,
	}
}

// APIClient implements the Client interface
type APIClient struct {
	baseURL string
	timeout time.Duration
	userID  uint
}

// NewClient creates a new API client with the given options
func NewClient(opts *Options) (Client, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	// Validate the base URL
	_, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &APIClient{
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		timeout: timeout,
		userID:  opts.UserID,
	}, nil
}

// envelope is the Slug response wrapper with the payload left undecoded
type envelope struct {
	Slug  types.Slug      `json:"slug"`
	Error string          `json:"error,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// createAgent creates a new Fiber Agent for the given method and endpoint
func (c *APIClient) createAgent(ctx context.Context, method, endpoint string, body interface{}) (*fiber.Agent, error) {
	// Resolve the endpoint URL
	fullURL := c.baseURL + endpoint

	// Create a new agent based on the HTTP method
	var agent *fiber.Agent
	switch method {
	case http.MethodGet:
		agent = fiber.Get(fullURL)
	case http.MethodPost:
		agent = fiber.Post(fullURL)
	case http.MethodPut:
		agent = fiber.Put(fullURL)
	case http.MethodDelete:
		agent = fiber.Delete(fullURL)
	case http.MethodPatch:
		agent = fiber.Patch(fullURL)
	default:
		return nil, fmt.Errorf("unsupported HTTP method: %s", method)
	}

	// Set timeout from context or client default
	if deadline, ok := ctx.Deadline(); ok {
		agent.Timeout(time.Until(deadline))
	} else {
		agent.Timeout(c.timeout)
	}

	// Set common headers
	agent.Set("Content-Type", "application/json")
	agent.Set("Accept", "application/json")
	if c.userID != 0 {
		agent.Set(handlers.UserIDHeader, strconv.FormatUint(uint64(c.userID), 10))
	}

	// Add body if provided
	if body != nil {
		agent.JSON(body)
	}

	return agent, nil
}

// doRequest sends the HTTP request and decodes the Slug envelope into v
func (c *APIClient) doRequest(agent *fiber.Agent, v interface{}) error {
	// Execute the request
	statusCode, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("error sending request: %w", errs[0])
	}

	var env envelope
	decodeErr := json.Unmarshal(body, &env)

	// Check for non-success status codes
	if statusCode < 200 || statusCode >= 300 {
		msg := string(body)
		if decodeErr == nil && env.Error != "" {
			msg = env.Error
		}
		return &fiber.Error{
			Code:    statusCode,
			Message: msg,
		}
	}

	if v == nil || len(body) == 0 {
		return nil
	}
	if decodeErr != nil {
		return fmt.Errorf("error decoding response: %w", decodeErr)
	}

	// Responses outside the envelope, like the health check, decode as is
	payload := []byte(env.Data)
	if env.Slug == "" {
		payload = body
	}
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}
	return nil
}

// executeRequest creates an agent, sends the request, and processes the response
func (c *APIClient) executeRequest(ctx context.Context, method, endpoint string, body, response interface{}) error {
	agent, err := c.createAgent(ctx, method, endpoint, body)
	if err != nil {
		return err
	}

	return c.doRequest(agent, response)
}

// Health check implementation

// HealthCheck checks the health of the API
func (c *APIClient) HealthCheck(ctx context.Context) (map[string]string, error) {
	endpoint := routes.HealthCheckURL()
	var response map[string]string
	if err := c.executeRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return map[string]string{}, err
	}
	return response, nil
}

// Import methods implementation

// Upload sends a file for processing. A non zero replacementTargetID makes
// the upload replace the geometry of that feature.
func (c *APIClient) Upload(ctx context.Context, filename string, data []byte, replacementTargetID uint) (types.UploadResponse, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultUploadTimeout)
		defer cancel()
	}

	agent, err := c.createAgent(ctx, http.MethodPost, routes.UploadImportURL(), nil)
	if err != nil {
		return types.UploadResponse{}, err
	}

	args := fiber.AcquireArgs()
	defer fiber.ReleaseArgs(args)
	if replacementTargetID != 0 {
		args.Set("replacement_target_id", strconv.FormatUint(uint64(replacementTargetID), 10))
	}
	agent.FileData(&fiber.FormFile{
		Fieldname: "file",
		Name:      filename,
		Content:   data,
	}).MultipartForm(args)

	var response types.UploadResponse
	if err := c.doRequest(agent, &response); err != nil {
		return types.UploadResponse{}, err
	}
	return response, nil
}

// ListImports lists import items, optionally filtered by status
func (c *APIClient) ListImports(ctx context.Context, status string, page int) ([]models.ImportItem, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}

	var response types.ListResponse[models.ImportItem]
	if err := c.executeRequest(ctx, http.MethodGet, routes.ListImportsURL(q), nil, &response); err != nil {
		return []models.ImportItem{}, err
	}
	return response.Rows, nil
}

// GetImport retrieves an import item with its staged features
func (c *APIClient) GetImport(ctx context.Context, id uint) (models.ImportItem, error) {
	endpoint := routes.GetImportURL(strconv.FormatUint(uint64(id), 10))
	var response models.ImportItem
	if err := c.executeRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return models.ImportItem{}, err
	}
	return response, nil
}

// CommitImports queues the commit of import items into the feature library
func (c *APIClient) CommitImports(ctx context.Context, req types.CommitRequest) (types.JobResponse, error) {
	var response types.JobResponse
	if err := c.executeRequest(ctx, http.MethodPost, routes.CommitImportURL(), req, &response); err != nil {
		return types.JobResponse{}, err
	}
	return response, nil
}

// DeleteImport queues the deletion of an import item
func (c *APIClient) DeleteImport(ctx context.Context, id uint) (types.JobResponse, error) {
	endpoint := routes.DeleteImportURL(strconv.FormatUint(uint64(id), 10))
	var response types.JobResponse
	if err := c.executeRequest(ctx, http.MethodDelete, endpoint, nil, &response); err != nil {
		return types.JobResponse{}, err
	}
	return response, nil
}

// Job methods implementation

// ListJobs lists the user's jobs, optionally filtered by status
func (c *APIClient) ListJobs(ctx context.Context, status string) ([]types.JobSnapshot, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}

	var response types.ListResponse[types.JobSnapshot]
	if err := c.executeRequest(ctx, http.MethodGet, routes.ListJobsURL(q), nil, &response); err != nil {
		return []types.JobSnapshot{}, err
	}
	return response.Rows, nil
}

// GetJob retrieves a job by ID
func (c *APIClient) GetJob(ctx context.Context, id string) (types.JobSnapshot, error) {
	var response types.JobSnapshot
	if err := c.executeRequest(ctx, http.MethodGet, routes.GetJobURL(id), nil, &response); err != nil {
		return types.JobSnapshot{}, err
	}
	return response, nil
}

// CancelJob requests cancellation of a job
func (c *APIClient) CancelJob(ctx context.Context, id string) (types.CancelResponse, error) {
	var response types.CancelResponse
	if err := c.executeRequest(ctx, http.MethodPost, routes.CancelJobURL(id), nil, &response); err != nil {
		return types.CancelResponse{}, err
	}
	return response, nil
}

// WaitForJob polls a job until it reaches a terminal status or ctx ends
func (c *APIClient) WaitForJob(ctx context.Context, id string, interval time.Duration) (types.JobSnapshot, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		job, err := c.GetJob(ctx, id)
		if err != nil {
			return types.JobSnapshot{}, err
		}
		if job.Status.IsTerminal() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Feature methods implementation

// GetFeatures returns the features in a viewport
func (c *APIClient) GetFeatures(ctx context.Context, q types.BBoxQuery) (types.BBoxResponse, error) {
	var response types.BBoxResponse
	if err := c.executeRequest(ctx, http.MethodGet, routes.GetFeaturesURL(bboxParams(q)), nil, &response); err != nil {
		return types.BBoxResponse{}, err
	}
	return response, nil
}

// DeleteFeatures queues the deletion of library features
func (c *APIClient) DeleteFeatures(ctx context.Context, req types.DeleteFeaturesRequest) (types.JobResponse, error) {
	var response types.JobResponse
	if err := c.executeRequest(ctx, http.MethodDelete, routes.DeleteFeaturesURL(), req, &response); err != nil {
		return types.JobResponse{}, err
	}
	return response, nil
}

// Collection methods implementation

// CreateCollection stores a named collection of features
func (c *APIClient) CreateCollection(ctx context.Context, req types.CreateCollectionRequest) (*models.Collection, error) {
	var response models.Collection
	if err := c.executeRequest(ctx, http.MethodPost, routes.CreateCollectionURL(), req, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// bboxParams creates url.Values from a BBoxQuery
func bboxParams(q types.BBoxQuery) url.Values {
	params := url.Values{}
	params.Set("bbox", q.String())
	if q.Zoom != 0 {
		params.Set("zoom", strconv.Itoa(q.Zoom))
	}
	if len(q.Tags) > 0 {
		params.Set("tags", strings.Join(q.Tags, ","))
	}
	if q.CollectionID != 0 {
		params.Set("collection_id", strconv.FormatUint(uint64(q.CollectionID), 10))
	}
	if q.Limit != 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	return params
}
