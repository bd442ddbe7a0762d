package sets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupe(t *testing.T) {
	tests := []struct {
		name     string
		input    []int
		expected []int
	}{
		{
			name:     "nil slice",
			input:    nil,
			expected: nil,
		},
		{
			name:     "empty slice",
			input:    []int{},
			expected: []int{},
		},
		{
			name:     "removes duplicates preserving order",
			input:    []int{3, 1, 3, 2, 1},
			expected: []int{3, 1, 2},
		},
		{
			name:     "already unique",
			input:    []int{1, 2, 3},
			expected: []int{1, 2, 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Dedupe(tt.input))
		})
	}
}

func TestCanonical(t *testing.T) {
	t.Run("insertion order is irrelevant", func(t *testing.T) {
		assert.Equal(t, Canonical([]uint32{3, 1, 2}), Canonical([]uint32{2, 3, 1, 1}))
	})

	t.Run("does not modify input", func(t *testing.T) {
		in := []uint32{3, 1, 3}
		_ = Canonical(in)
		assert.Equal(t, []uint32{3, 1, 3}, in)
	})
}

func TestContains(t *testing.T) {
	set := Canonical([]uint32{5, 1, 3})
	assert.True(t, Contains(set, uint32(3)))
	assert.False(t, Contains(set, uint32(2)))
	assert.False(t, Contains([]uint32(nil), uint32(1)))
}
