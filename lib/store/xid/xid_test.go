package xid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	x, err := Parse("1:0a0b:ff")
	require.NoError(t, err)
	assert.Equal(t, int32(1), x.FormatID)
	assert.Equal(t, []byte{0x0a, 0x0b}, x.GlobalTransactionID)
	assert.Equal(t, []byte{0xff}, x.BranchQualifier)

	x, err = Parse("-7:01:")
	require.NoError(t, err)
	assert.Equal(t, int32(-7), x.FormatID)
	assert.Empty(t, x.BranchQualifier)
}

func TestRoundTrip(t *testing.T) {
	x := New(4711)
	parsed, err := Parse(x.String())
	require.NoError(t, err)
	assert.True(t, parsed.Equal(x))
	assert.Equal(t, x.String(), parsed.String())
}

func TestParseIsCanonical(t *testing.T) {
	inputs := []string{"0:00:", "1:0a0b:ff", "-7:01:", "2147483647:ff:00", "-2147483648:10:20"}
	for _, input := range inputs {
		x, err := Parse(input)
		require.NoError(t, err, input)
		assert.Equal(t, input, x.String())
	}
}

func TestNewIsUnique(t *testing.T) {
	a, b := New(1), New(1)
	assert.False(t, a.Equal(b))
	assert.NoError(t, a.Validate())
}

func TestParseMalformed(t *testing.T) {
	inputs := []string{
		"",
		"not-a-valid-xid",
		":",
		"::",
		"1::",
		"1:0a",
		"1:0a:0b:0c",
		"x:0a:0b",
		"99999999999:0a:0b",
		"1:0:0b",
		"1:zz:0b",
		"1:0a:0",
		"1:0a:gg",
		"1:" + strings.Repeat("ab", MaxPartLength+1) + ":",
		"1:0a:" + strings.Repeat("ab", MaxPartLength+1),
		strings.Repeat("1", 1000),
		strings.Repeat(":", 1000),
		// non-canonical spellings of valid ids
		"+1:0a:",
		"01:0a:",
		"-0:0a:",
		"1:0A:",
		"1:0a:FF",
	}

	for _, input := range inputs {
		assert.NotPanics(t, func() {
			_, err := Parse(input)
			assert.ErrorIs(t, err, ErrMalformed, "input %q", input)
		})
	}
}

func TestValidate(t *testing.T) {
	assert.ErrorIs(t, XID{}.Validate(), ErrMalformed)
	assert.ErrorIs(t, XID{GlobalTransactionID: make([]byte, MaxPartLength+1)}.Validate(), ErrMalformed)
	assert.ErrorIs(t, XID{GlobalTransactionID: []byte{1}, BranchQualifier: make([]byte, MaxPartLength+1)}.Validate(), ErrMalformed)
	assert.NoError(t, XID{GlobalTransactionID: make([]byte, MaxPartLength), BranchQualifier: make([]byte, MaxPartLength)}.Validate())
}
