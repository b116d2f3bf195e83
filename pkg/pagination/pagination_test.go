package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		page       int
		limit      int
		wantOffset int
		wantLimit  int
	}{
		{"first page", 1, 10, 0, 10},
		{"second page", 2, 5, 5, 5},
		{"page below one clamps", 0, 10, 0, 10},
		{"negative page clamps", -3, 10, 0, 10},
		{"zero limit gets default", 1, 0, 0, DefaultLimit},
		{"pathological limit gets default", 1, 100000, 0, DefaultLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offset, limit := Calculate(tt.page, tt.limit)
			assert.Equal(t, tt.wantOffset, offset)
			assert.Equal(t, tt.wantLimit, limit)
		})
	}
}

func TestNewMeta(t *testing.T) {
	t.Parallel()

	meta := NewMeta(2, 5, 12)
	assert.Equal(t, 2, meta.Page)
	assert.Equal(t, 5, meta.Limit)
	assert.EqualValues(t, 12, meta.Total)
	assert.EqualValues(t, 3, meta.Pages)

	empty := NewMeta(1, 10, 0)
	assert.EqualValues(t, 0, empty.Pages)
}
