package kernelmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCPURange(t *testing.T) {
	cases := []struct {
		in   string
		want []int
	}{
		{"", nil},
		{"0", []int{0}},
		{"0-3", []int{0, 1, 2, 3}},
		{"0-1,4,6-7", []int{0, 1, 4, 6, 7}},
	}
	for _, c := range cases {
		got, err := parseCPURange(c.in)
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}
}

func TestParseCPURangeInvalid(t *testing.T) {
	_, err := parseCPURange("0-x")
	assert.Error(t, err)
}
