package types

// UploadResult is the result of a completed upload job
type UploadResult struct {
	ImportItemID       uint `json:"import_item_id"`
	FeatureCount       int  `json:"feature_count"`
	DuplicateCount     int  `json:"duplicate_count"`
	InternalDuplicates int  `json:"internal_duplicates"`
	Replacement        bool `json:"replacement,omitempty"`
}

// CommitItemResult reports what a commit did with one import item
type CommitItemResult struct {
	ImportItemID uint   `json:"import_item_id"`
	Imported     int    `json:"imported"`
	Skipped      int    `json:"skipped"`
	Replaced     uint   `json:"replaced_feature_id,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// CommitResult is the result of a completed bulk import job
type CommitResult struct {
	Items    []CommitItemResult `json:"items"`
	Imported int                `json:"imported"`
	Skipped  int                `json:"skipped"`
}

// DeleteResult is the result of a completed delete or bulk delete job
type DeleteResult struct {
	ImportItemID uint  `json:"import_item_id,omitempty"`
	Requested    int   `json:"requested,omitempty"`
	Deleted      int64 `json:"deleted"`
}

// ItemEvent is the payload of import item notifications
type ItemEvent struct {
	ImportItemID   uint   `json:"import_item_id"`
	JobID          string `json:"job_id,omitempty"`
	Filename       string `json:"filename,omitempty"`
	Status         string `json:"status,omitempty"`
	FeatureCount   int    `json:"feature_count"`
	DuplicateCount int    `json:"duplicate_count"`
}

// FeaturesEvent is the payload of feature library notifications
type FeaturesEvent struct {
	JobID        string `json:"job_id"`
	ImportItemID uint   `json:"import_item_id,omitempty"`
	Count        int64  `json:"count"`
}
