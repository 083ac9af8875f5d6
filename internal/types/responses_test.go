package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateCollectionRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateCollectionRequest
		wantErr bool
	}{
		{name: "tags", req: CreateCollectionRequest{Name: "trip", Tags: []string{"hike"}}},
		{name: "ids", req: CreateCollectionRequest{Name: "trip", FeatureIDs: []uint{3}}},
		{name: "blank name", req: CreateCollectionRequest{Name: "  ", Tags: []string{"hike"}}, wantErr: true},
		{name: "no members", req: CreateCollectionRequest{Name: "trip"}, wantErr: true},
		{name: "blank tag", req: CreateCollectionRequest{Name: "trip", Tags: []string{" "}}, wantErr: true},
		{name: "zero id", req: CreateCollectionRequest{Name: "trip", FeatureIDs: []uint{0}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.True(t, IsValidationError(err), "got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
