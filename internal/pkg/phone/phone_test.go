package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct{ input, want string }{
		{"9876543210", "+919876543210"},
		{"+919876543210", "+919876543210"},
		{"+14155552671", "+14155552671"},
		{"5876543210", "5876543210"}, // invalid leading digit, passed through
		{"12345", "12345"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Normalize(c.input), "input: %q", c.input)
	}
}

func TestMask_TenDigits(t *testing.T) {
	assert.Equal(t, "987*****10", Mask("9876543210"))
}

func TestMask_PreservesFirstThreeAndLastTwo(t *testing.T) {
	m := Mask("9876543210")
	assert.Len(t, m, 10)
	assert.Equal(t, "987", m[:3])
	assert.Equal(t, "10", m[8:])
	assert.Equal(t, "*****", m[3:8])
}

func TestMask_NonStandardLength(t *testing.T) {
	assert.Equal(t, "**********71", Mask("+14155552671"))
	assert.Equal(t, "12", Mask("12"))
}
