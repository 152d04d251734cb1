package auth

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestCreateToken_AndValidateToken(t *testing.T) {
	user := SessionUser{
		ID:          uuid.New(),
		Email:       "jo@example.com",
		DisplayName: "Jo",
	}
	secret := "test-secret"

	token, err := CreateToken(user, secret, 7)
	require.NoError(t, err)

	claims, err := ValidateToken(token, secret)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)
	require.Equal(t, user.ID.String(), claims.Subject)
	require.Equal(t, user.Email, claims.Email)
	require.Equal(t, user.DisplayName, claims.DisplayName)
	require.NotNil(t, claims.ExpiresAt)

	require.Equal(t, user, claims.User())
}

func TestValidateToken_WrongSecret(t *testing.T) {
	user := SessionUser{ID: uuid.New(), Email: "jo@example.com"}
	token, err := CreateToken(user, "secret-a", 7)
	require.NoError(t, err)

	_, err = ValidateToken(token, "secret-b")
	require.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	user := SessionUser{ID: uuid.New(), Email: "jo@example.com"}
	token, err := CreateToken(user, "secret", -1)
	require.NoError(t, err)

	_, err = ValidateToken(token, "secret")
	require.Error(t, err)
}

func TestValidateToken_Garbage(t *testing.T) {
	_, err := ValidateToken("not-a-jwt", "secret")
	require.Error(t, err)
}
