package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in  string
		out string
		ok  bool
	}{
		{"2024-03-15T10:11:12+01:00", "2024-03-15", true},
		{"2024-03-15T23:30:00-05:00", "2024-03-15", true},
		{"2024-03-15T00:00:00Z", "2024-03-15", true},
		{"2024-03-15T10:11:12.345+02:00", "2024-03-15", true},
		{"2024-03-15T10:11:12", "2024-03-15", true},
		{"2024-03-15 10:11:12", "2024-03-15", true},
		{"2024-03-15", "2024-03-15", true},
		{"  2024-03-15  ", "2024-03-15", true},
		{"", "", false},
		{"   ", "", false},
		{"15.03.2024", "", false},
		{"garbage", "", false},
	}

	for _, tt := range tests {
		out, ok := NormalizeDate(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.out, out, tt.in)
	}
}

func TestNormalizeDateIsIdempotent(t *testing.T) {
	for _, in := range []string{"2024-03-15T10:11:12+01:00", "2023-12-31", "2020-02-29T00:00:00Z"} {
		once, ok := NormalizeDate(in)
		assert.True(t, ok)

		twice, ok := NormalizeDate(once)
		assert.True(t, ok)
		assert.Equal(t, once, twice)
	}
}
