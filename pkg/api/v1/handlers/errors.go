// Package handlers provides HTTP request handling
package handlers

// Common error messages
const (
	ErrMsgInvalidReqBody  = "Invalid request body"
	ErrMsgUserIDRequired  = "X-User-ID header is required"
	ErrMsgInvalidUserID   = "X-User-ID must be a positive integer"
	ErrMsgInternal        = "Internal server error"
	ErrMsgQueueFull       = "Too many jobs in progress, try again later"
	ErrMsgServiceStopping = "Service is shutting down"
)

// Import item error messages
const (
	ErrMsgFileRequired      = "A file is required in the \"file\" form field"
	ErrMsgFileReadFailed    = "Failed to read uploaded file"
	ErrMsgInvalidItemID     = "Import item id must be a positive integer"
	ErrMsgInvalidTargetID   = "replacement_target_id must be a positive integer"
	ErrMsgItemNotFound      = "Import item not found"
	ErrMsgInvalidItemStatus = "Invalid import item status"
	ErrMsgListItemsFailed   = "Failed to list import items"
	ErrMsgGetItemFailed     = "Failed to get import item"
	ErrMsgUploadFailed      = "Failed to start upload"
	ErrMsgDeleteItemFailed  = "Failed to start import item deletion"
	ErrMsgCommitFailed      = "Failed to start commit"
)

// Job error messages
const (
	ErrMsgJobIDRequired = "Job id is required"
	ErrMsgJobNotFound   = "Job not found"
	ErrMsgJobRunning    = "Job is already running"
	ErrMsgCancelFailed  = "Failed to cancel job"
	ErrMsgGetJobFailed  = "Failed to get job"
)

// Feature error messages
const (
	ErrMsgBBoxRequired           = "bbox query parameter is required"
	ErrMsgInvalidCollectionID    = "collection_id must be a positive integer"
	ErrMsgQueryFailed            = "Failed to query features"
	ErrMsgDeleteFailed           = "Failed to start feature deletion"
	ErrMsgCreateCollectionFailed = "Failed to create collection"
)

// Pagination error messages
const (
	ErrMsgNegativePagination = "Page must be a positive number from 1"
)
