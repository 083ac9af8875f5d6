package models

import (
	"fmt"
	"strings"
)

const (
	// DefaultLimit is the max number of rows that are retrieved from the DB per listing API call
	DefaultLimit = 50
)

// ListOptions represents pagination options for list operations
type ListOptions struct {
	Limit  int `json:"limit"`  // Number of items to return
	Offset int `json:"offset"` // Number of items to skip
}

// ValidateOwnerID rejects the zero owner; every row belongs to exactly one user
func ValidateOwnerID(ownerID uint) error {
	if ownerID == 0 {
		return fmt.Errorf("owner_id cannot be 0")
	}
	return nil
}

// tagIndex renders tags as ",a,b," so a single tag can be matched with LIKE '%,a,%'
// on every dialect.
func tagIndex(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	cleaned := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(t, ",", " ")))
		if t != "" {
			cleaned = append(cleaned, t)
		}
	}
	if len(cleaned) == 0 {
		return ""
	}
	return "," + strings.Join(cleaned, ",") + ","
}

// TagPattern returns the LIKE pattern matching one tag in a tag index column
func TagPattern(tag string) string {
	t := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(tag, ",", " ")))
	t = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(t)
	return "%," + t + ",%"
}
