package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckCounts(t *testing.T) {
	tests := []struct {
		name             string
		records, batches int
		wantErr          bool
	}{
		{"valid", 40, 8, false},
		{"batch larger than records", 3, 8, false},
		{"negative batch", 40, -1, true},
		{"zero batch", 40, 0, true},
		{"zero records", 0, 8, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkCounts(tt.records, tt.batches)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
