package sign

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleVRS(t *testing.T) {
	r := strings.Repeat("a", 64)
	s := strings.Repeat("b", 64)

	vrs, err := AssembleVRS("1", r, s)
	require.NoError(t, err)
	assert.Len(t, vrs, 130)
	assert.Equal(t, "01"+r+s, vrs)
}

func TestAssembleVRSPadsShortComponents(t *testing.T) {
	vrs, err := AssembleVRS("0x1", "0xabc", "0xff")
	require.NoError(t, err)
	assert.Len(t, vrs, 130)
	assert.Equal(t, "01", vrs[:2])
	assert.Equal(t, "abc", vrs[2+61:66])
	assert.True(t, strings.HasPrefix(vrs[2:66], "0000"))
	assert.True(t, strings.HasSuffix(vrs, "ff"))
}

func TestAssembleVRSRejectsOversizedComponents(t *testing.T) {
	_, err := AssembleVRS("01", strings.Repeat("a", 65), strings.Repeat("b", 64))
	assert.Error(t, err)

	_, err = AssembleVRS("012", strings.Repeat("a", 64), strings.Repeat("b", 64))
	assert.Error(t, err)
}

func TestHasRecovery(t *testing.T) {
	assert.False(t, Parts{}.HasRecovery())
	assert.False(t, Parts{V: "0x"}.HasRecovery())
	assert.True(t, Parts{V: "01"}.HasRecovery())
	assert.True(t, Parts{V: "0x00"}.HasRecovery())
}

func TestTrialResolverOrder(t *testing.T) {
	r := strings.Repeat("1", 64)
	s := strings.Repeat("2", 64)
	resolver, err := NewTrialResolver(r, s)
	require.NoError(t, err)

	var seen []string
	for {
		candidate, ok := resolver.Next()
		if !ok {
			break
		}
		assert.Len(t, candidate.Signature, 130)
		assert.Equal(t, candidate.V, candidate.Signature[:2])
		assert.Equal(t, r+s, candidate.Signature[2:])
		seen = append(seen, candidate.V)
	}

	assert.Equal(t, []string{"01", "00", "02", "03"}, seen)
	assert.True(t, resolver.Exhausted())
	assert.Equal(t, 4, resolver.Attempted())
}

func TestTrialResolverStripsPrefixes(t *testing.T) {
	resolver, err := NewTrialResolver("0x"+strings.Repeat("a", 64), "0x"+strings.Repeat("b", 64))
	require.NoError(t, err)

	candidate, ok := resolver.Next()
	require.True(t, ok)
	assert.Equal(t, "01"+strings.Repeat("a", 64)+strings.Repeat("b", 64), candidate.Signature)
	assert.Equal(t, 1, resolver.Attempted())
	assert.False(t, resolver.Exhausted())
}
