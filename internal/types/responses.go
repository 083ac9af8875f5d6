package types

import (
	"strings"

	"github.com/paulmach/orb/geojson"
)

// Slug is a type for the slug field in the response
// It is mainly used for the client to understand the type of the response
type Slug string

// nolint:gochecknoglobals
const (
	SuccessSlug      Slug = "success"
	ErrorSlug        Slug = "error"
	InvalidInputSlug Slug = "invalid-input"
	NotFoundSlug     Slug = "not-found"
	ConflictSlug     Slug = "conflict"
	ServerErrorSlug  Slug = "server-error"
)

// SlugResponse is the response envelope for the API
type SlugResponse struct {
	Slug  Slug        `json:"slug"`
	Error string      `json:"error,omitempty"`
	Data  interface{} `json:"data,omitempty"`
}

// ErrInvalidInput returns a SlugResponse with the InvalidInputSlug and the error message
func ErrInvalidInput(msg string) SlugResponse {
	return SlugResponse{Slug: InvalidInputSlug, Error: msg}
}

// ErrNotFoundResponse returns a SlugResponse with the NotFoundSlug and the error message
func ErrNotFoundResponse(msg string) SlugResponse {
	return SlugResponse{Slug: NotFoundSlug, Error: msg}
}

// ErrConflict returns a SlugResponse with the ConflictSlug and the error message
func ErrConflict(msg string) SlugResponse {
	return SlugResponse{Slug: ConflictSlug, Error: msg}
}

// ErrServer returns a SlugResponse with the ServerErrorSlug and the error message
func ErrServer(msg string) SlugResponse {
	return SlugResponse{Slug: ServerErrorSlug, Error: msg}
}

// Success returns a SlugResponse with the SuccessSlug and the data
func Success(data interface{}) SlugResponse {
	return SlugResponse{Slug: SuccessSlug, Data: data}
}

// PaginationResponse represents pagination information for list endpoints
type PaginationResponse struct {
	// Total number of items available across all pages
	Total int `json:"total"`

	// Current page number (1-based)
	Page int `json:"page"`

	// Maximum number of items per page
	Limit int `json:"limit"`

	// Number of items skipped from the beginning of the result set
	Offset int `json:"offset"`
}

// ListResponse defines a generic response structure for listing resources
type ListResponse[T any] struct {
	// Array of resource items
	Rows []T `json:"rows"`

	// Pagination information for the result set
	Pagination PaginationResponse `json:"pagination"`
}

// UploadResponse is returned when an upload is accepted
type UploadResponse struct {
	JobID        string `json:"job_id"`
	ImportItemID uint   `json:"import_item_id"`
}

// JobResponse is returned when a background job is started
type JobResponse struct {
	JobID string `json:"job_id"`
}

// CancelResponse reports whether a cancel request changed the job
type CancelResponse struct {
	JobID     string `json:"job_id"`
	Cancelled bool   `json:"cancelled"`
}

// CommitRequest asks for import items to be committed into the feature library
type CommitRequest struct {
	ItemIDs []uint `json:"item_ids"`
	// IncludeDuplicates commits features flagged as library duplicates too.
	// Exact content-hash matches are always skipped.
	IncludeDuplicates bool `json:"include_duplicates"`
}

// Validate validates the commit request
func (r *CommitRequest) Validate() error {
	if len(r.ItemIDs) == 0 {
		return NewValidationError("item_ids", "at least one import item is required")
	}
	for _, id := range r.ItemIDs {
		if id == 0 {
			return NewValidationError("item_ids", "item ids must be positive")
		}
	}
	return nil
}

// DeleteFeaturesRequest asks for committed features to be removed
type DeleteFeaturesRequest struct {
	IDs []uint `json:"ids"`
}

// Validate validates the delete request
func (r *DeleteFeaturesRequest) Validate() error {
	if len(r.IDs) == 0 {
		return NewValidationError("ids", "at least one feature id is required")
	}
	return nil
}

// CreateCollectionRequest defines a collection by tags, explicit feature IDs or both
type CreateCollectionRequest struct {
	Name       string   `json:"name"`
	Tags       []string `json:"tags,omitempty"`
	FeatureIDs []uint   `json:"feature_ids,omitempty"`
}

// Validate validates the collection request
func (r *CreateCollectionRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return NewValidationError("name", "collection name is required")
	}
	if len(r.Tags) == 0 && len(r.FeatureIDs) == 0 {
		return NewValidationError("tags", "a collection needs at least one tag or feature id")
	}
	for _, tag := range r.Tags {
		if strings.TrimSpace(tag) == "" {
			return NewValidationError("tags", "tags must not be empty")
		}
	}
	for _, id := range r.FeatureIDs {
		if id == 0 {
			return NewValidationError("feature_ids", "feature ids must be positive")
		}
	}
	return nil
}

// BBoxResponse is the viewport query result. FallbackUsed is set when the
// viewport could not be applied and the world-wide result was returned.
type BBoxResponse struct {
	Features     *geojson.FeatureCollection `json:"features"`
	Total        int64                      `json:"total"`
	FallbackUsed bool                       `json:"fallback_used"`
	Mode         string                     `json:"mode"`
}
