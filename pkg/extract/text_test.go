package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/bsdetect/pkg/apperr"
)

func TestValidateTextBoundaries(t *testing.T) {
	err := ValidateText(strings.Repeat("a", 9))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrTextTooShort)
	assert.True(t, apperr.IsValidation(err))

	assert.NoError(t, ValidateText(strings.Repeat("a", 10)))
	assert.NoError(t, ValidateText(strings.Repeat("a", MaxTextLength)))
	assert.ErrorIs(t, ValidateText(strings.Repeat("a", MaxTextLength+1)), apperr.ErrTextTooLong)
}

func TestValidateTextCountsCharactersNotBytes(t *testing.T) {
	// Ten two-byte characters.
	assert.NoError(t, ValidateText(strings.Repeat("ø", 10)))
	assert.ErrorIs(t, ValidateText(strings.Repeat("ø", 9)), apperr.ErrTextTooShort)
}

func TestNormalizeWhitespace(t *testing.T) {
	for _, tc := range []struct {
		in, want string
	}{
		{"  hello \t  world  ", "hello world"},
		{"a\n\n\n  b", "a\nb"},
		{"\r\n line one \r\n\r\n line two\r\n", "line one\nline two"},
		{"   \n \t \n", ""},
	} {
		assert.Equal(t, tc.want, normalizeWhitespace(tc.in), "%q", tc.in)
	}
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", truncateRunes("abc", 5))
	assert.Equal(t, "ab", truncateRunes("abc", 2))
	assert.Equal(t, "æø", truncateRunes("æøå", 2))
	assert.Equal(t, "", truncateRunes("æøå", 0))
}
