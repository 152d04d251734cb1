package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateSlug(t *testing.T) {
	require.NoError(t, ValidateSlug("acme"))
	require.NoError(t, ValidateSlug("acme-corp"))
	require.NoError(t, ValidateSlug("a1b"))

	require.ErrorIs(t, ValidateSlug("ab"), ErrSlugTooShort)
	require.ErrorIs(t, ValidateSlug(strings.Repeat("a", 65)), ErrSlugTooLong)
	require.ErrorIs(t, ValidateSlug("-acme"), ErrInvalidSlug)
	require.ErrorIs(t, ValidateSlug("acme-"), ErrInvalidSlug)
	require.ErrorIs(t, ValidateSlug("ac me"), ErrInvalidSlug)
	require.ErrorIs(t, ValidateSlug("ac_me"), ErrInvalidSlug)
}

func TestNormalizeSlug(t *testing.T) {
	require.Equal(t, "acme-corp", NormalizeSlug("  Acme-Corp  "))
}

func TestNormalizeEmail(t *testing.T) {
	email, err := NormalizeEmail("  jo@example.com ")
	require.NoError(t, err)
	require.Equal(t, "jo@example.com", email)

	_, err = NormalizeEmail("")
	require.Error(t, err)

	_, err = NormalizeEmail("not-an-email")
	require.Error(t, err)

	_, err = NormalizeEmail(strings.Repeat("a", 320) + "@example.com")
	require.Error(t, err)
}

func TestValidateDisplayName(t *testing.T) {
	require.NoError(t, ValidateDisplayName("Jo"))
	require.Error(t, ValidateDisplayName("   "))
	require.Error(t, ValidateDisplayName(strings.Repeat("x", 101)))
}

func TestValidateAvatarURL(t *testing.T) {
	require.NoError(t, ValidateAvatarURL(""))
	require.NoError(t, ValidateAvatarURL("https://example.com/avatar.png"))
	require.Error(t, ValidateAvatarURL("ftp://example.com/avatar.png"))
	require.Error(t, ValidateAvatarURL("https://"))
	require.Error(t, ValidateAvatarURL("https://example.com/"+strings.Repeat("x", 500)))
}
