package replay_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/replayer/pkg/replay"
)

func TestBoundaryIndices(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		length int
		stride int
		want   []int
	}{
		{"partial final stride", 120, 50, []int{49, 99, 119}},
		{"exact multiple", 100, 50, []int{49, 99}},
		{"shorter than stride", 7, 50, []int{6}},
		{"single commit", 1, 50, []int{0}},
		{"stride of one", 4, 1, []int{0, 1, 2, 3}},
		{"one past multiple", 51, 50, []int{49, 50}},
		{"empty", 0, 50, nil},
		{"zero stride", 10, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, replay.BoundaryIndices(tt.length, tt.stride))
		})
	}
}

func TestBoundaryIndices_NeverPastEnd(t *testing.T) {
	t.Parallel()

	for length := 1; length <= 300; length++ {
		for stride := 1; stride <= 60; stride++ {
			got := replay.BoundaryIndices(length, stride)

			require.Len(t, got, (length+stride-1)/stride, "L=%d B=%d", length, stride)

			for i, idx := range got {
				want := min((i+1)*stride-1, length-1)
				require.Equal(t, want, idx, "L=%d B=%d i=%d", length, stride, i)
				require.Less(t, idx, length)
			}

			require.Equal(t, length-1, got[len(got)-1])
		}
	}
}

func TestCommitRef_Short(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0123456", replay.CommitRef("0123456789abcdef").Short())
	assert.Equal(t, "abc", replay.CommitRef("abc").Short())
}
