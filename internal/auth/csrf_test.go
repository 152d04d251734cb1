package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func csrfRequest(cookie, header string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/v1/orgs", nil)
	if cookie != "" {
		r.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: cookie})
	}
	if header != "" {
		r.Header.Set("X-CSRF-Token", header)
	}
	return r
}

func TestValidateCSRF_Match(t *testing.T) {
	token, err := GenerateCSRFToken()
	require.NoError(t, err)

	require.NoError(t, ValidateCSRF(csrfRequest(token, token)))
}

func TestValidateCSRF_MissingCookie(t *testing.T) {
	require.Error(t, ValidateCSRF(csrfRequest("", "sometoken")))
}

func TestValidateCSRF_MissingHeader(t *testing.T) {
	require.Error(t, ValidateCSRF(csrfRequest("sometoken", "")))
}

func TestValidateCSRF_Mismatch(t *testing.T) {
	require.Error(t, ValidateCSRF(csrfRequest("token-a", "token-b")))
}
