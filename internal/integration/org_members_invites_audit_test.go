package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orgbase/orgbase/internal/app"
	"github.com/orgbase/orgbase/internal/auth"
	"github.com/orgbase/orgbase/internal/config"
	"github.com/orgbase/orgbase/internal/invites"
	"github.com/orgbase/orgbase/internal/mailer"
	"github.com/orgbase/orgbase/internal/orgs"
	"github.com/stretchr/testify/require"
)

type envelopeResponse struct {
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
}

type errorEnvelope struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id"`
	} `json:"error"`
}

type inviteCreated struct {
	Invite struct {
		ID        uuid.UUID `json:"id"`
		Email     string    `json:"email"`
		Role      string    `json:"role"`
		ExpiresAt time.Time `json:"expires_at"`
		Token     string    `json:"token"`
		AcceptURL string    `json:"accept_url"`
	} `json:"invite"`
	EmailSent bool `json:"email_sent"`
}

func TestE2E_OrgInvites_Members_OwnerGuardrails_Audit(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	cfg := &config.Config{
		Env:               "dev",
		HTTPAddr:          ":0",
		BaseURL:           "http://localhost",
		DBDSN:             "unused",
		JWTSecret:         "test-secret",
		LogLevel:          "error",
		LoginRateLimitRPM: 120,
		SessionDays:       7,
		InviteTTLDays:     7,
		MailTimeoutMS:     2000,
	}

	srv := httptest.NewServer(app.NewRouter(pool, cfg, mailer.NewLogSender()))
	t.Cleanup(srv.Close)

	ownerEmail := "owner@example.com"
	inviteeEmail := "invitee@example.com"
	adminEmail := "second-admin@example.com"
	password := "password123"

	ownerClient := newCookieClient(t)
	inviteeClient := newCookieClient(t)

	ownerID, ownerCSRF := registerUser(t, ownerClient, srv.URL, ownerEmail, password)
	inviteeID, inviteeCSRF := registerUser(t, inviteeClient, srv.URL, inviteeEmail, password)

	orgID := createOrg(t, ownerClient, srv.URL, ownerCSRF, "Acme", "acme")

	// Malformed email is rejected before the invite workflow runs.
	{
		errEnv := doJSONExpectError(t, ownerClient, http.MethodPost, srv.URL+"/api/v1/orgs/"+orgID.String()+"/invites", ownerCSRF, http.StatusBadRequest, map[string]any{
			"email": "not-an-email",
		})
		require.Equal(t, "bad_request", errEnv.Error.Code)
	}

	// Non-members cannot create invites.
	{
		errEnv := doJSONExpectError(t, inviteeClient, http.MethodPost, srv.URL+"/api/v1/orgs/"+orgID.String()+"/invites", inviteeCSRF, http.StatusForbidden, map[string]any{
			"email": "someone@example.com",
		})
		require.Equal(t, "forbidden", errEnv.Error.Code)
	}

	created := createInvite(t, ownerClient, srv.URL, ownerCSRF, orgID, inviteeEmail, orgs.RoleMember)
	require.True(t, strings.HasPrefix(created.Invite.Token, invites.TokenPrefix))
	require.Contains(t, created.Invite.AcceptURL, created.Invite.Token)
	require.True(t, created.EmailSent)

	// One pending invite per (org, email).
	{
		errEnv := doJSONExpectError(t, ownerClient, http.MethodPost, srv.URL+"/api/v1/orgs/"+orgID.String()+"/invites", ownerCSRF, http.StatusConflict, map[string]any{
			"email": inviteeEmail,
		})
		require.Equal(t, "conflict", errEnv.Error.Code)
	}

	// An unknown token is indistinguishable from a missing invite.
	{
		errEnv := doJSONExpectError(t, inviteeClient, http.MethodPost, srv.URL+"/api/v1/invites/accept", inviteeCSRF, http.StatusNotFound, map[string]any{
			"token": "obi_bogus",
		})
		require.Equal(t, "not_found", errEnv.Error.Code)
	}

	acceptEnv := acceptInvite(t, inviteeClient, srv.URL, inviteeCSRF, created.Invite.Token)
	require.False(t, acceptEnv.AlreadyMember)
	require.Equal(t, orgID, acceptEnv.Organization.ID)
	require.Equal(t, string(orgs.RoleMember), string(acceptEnv.Membership.Role))

	// Inviting an existing member conflicts.
	{
		errEnv := doJSONExpectError(t, ownerClient, http.MethodPost, srv.URL+"/api/v1/orgs/"+orgID.String()+"/invites", ownerCSRF, http.StatusConflict, map[string]any{
			"email": inviteeEmail,
		})
		require.Equal(t, "conflict", errEnv.Error.Code)
	}

	// MEMBERs cannot create, list, or audit.
	{
		errEnv := doJSONExpectError(t, inviteeClient, http.MethodPost, srv.URL+"/api/v1/orgs/"+orgID.String()+"/invites", inviteeCSRF, http.StatusForbidden, map[string]any{
			"email": "other@example.com",
		})
		require.Equal(t, "forbidden", errEnv.Error.Code)

		resp, err := inviteeClient.Get(srv.URL + "/api/v1/orgs/" + orgID.String() + "/invites")
		require.NoError(t, err)
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		resp.Body.Close()

		resp, err = inviteeClient.Get(srv.URL + "/api/v1/orgs/" + orgID.String() + "/audit")
		require.NoError(t, err)
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		resp.Body.Close()
	}

	// Accepting while already a member consumes the invite and succeeds.
	{
		staleToken := insertInviteRow(t, pool, orgID, inviteeEmail, ownerID)

		env := acceptInvite(t, inviteeClient, srv.URL, inviteeCSRF, staleToken)
		require.True(t, env.AlreadyMember)

		errEnv := doJSONExpectError(t, inviteeClient, http.MethodPost, srv.URL+"/api/v1/invites/accept", inviteeCSRF, http.StatusNotFound, map[string]any{
			"token": staleToken,
		})
		require.Equal(t, "not_found", errEnv.Error.Code)
	}

	// Bring in a second ADMIN through a normal invite.
	adminClient := newCookieClient(t)
	adminID, adminCSRF := registerUser(t, adminClient, srv.URL, adminEmail, password)
	adminInvite := createInvite(t, ownerClient, srv.URL, ownerCSRF, orgID, adminEmail, orgs.RoleAdmin)
	adminAccept := acceptInvite(t, adminClient, srv.URL, adminCSRF, adminInvite.Invite.Token)
	require.Equal(t, string(orgs.RoleAdmin), string(adminAccept.Membership.Role))

	members := listMembers(t, ownerClient, srv.URL, orgID)
	require.Len(t, members, 3)

	membershipByUser := make(map[uuid.UUID]orgs.MemberInfo)
	for _, m := range members {
		membershipByUser[m.UserID] = m
	}
	require.True(t, membershipByUser[ownerID].IsOwner)
	require.False(t, membershipByUser[inviteeID].IsOwner)
	require.Equal(t, orgs.RoleAdmin, membershipByUser[adminID].Role)
	require.False(t, membershipByUser[adminID].IsOwner)

	// The owner's membership cannot be removed, even by another ADMIN.
	{
		target := membershipByUser[ownerID].MembershipID
		errEnv := doJSONExpectError(t, adminClient, http.MethodDelete, srv.URL+"/api/v1/orgs/"+orgID.String()+"/members/"+target.String(), adminCSRF, http.StatusForbidden, nil)
		require.Equal(t, "forbidden", errEnv.Error.Code)
	}

	// Self-removal through the member route is rejected.
	{
		target := membershipByUser[ownerID].MembershipID
		errEnv := doJSONExpectError(t, ownerClient, http.MethodDelete, srv.URL+"/api/v1/orgs/"+orgID.String()+"/members/"+target.String(), ownerCSRF, http.StatusBadRequest, nil)
		require.Equal(t, "bad_request", errEnv.Error.Code)
	}

	// Ordinary member removal works.
	{
		target := membershipByUser[inviteeID].MembershipID
		doJSONExpectSuccess(t, ownerClient, http.MethodDelete, srv.URL+"/api/v1/orgs/"+orgID.String()+"/members/"+target.String(), ownerCSRF, http.StatusOK, nil)

		require.Len(t, listMembers(t, ownerClient, srv.URL, orgID), 2)
	}

	// An expired invite is gone, not consumable.
	{
		daveEmail := "dave@example.com"
		expired := createInvite(t, ownerClient, srv.URL, ownerCSRF, orgID, daveEmail, orgs.RoleMember)

		_, err := pool.Exec(context.Background(), `
			UPDATE org_invites SET expires_at = NOW() - INTERVAL '1 hour' WHERE id = $1
		`, expired.Invite.ID)
		require.NoError(t, err)

		daveClient := newCookieClient(t)
		_, daveCSRF := registerUser(t, daveClient, srv.URL, daveEmail, password)

		errEnv := doJSONExpectError(t, daveClient, http.MethodPost, srv.URL+"/api/v1/invites/accept", daveCSRF, http.StatusGone, map[string]any{
			"token": expired.Invite.Token,
		})
		require.Equal(t, "gone", errEnv.Error.Code)
	}

	// Cancel deletes the pending invite; cancelling twice is a 404.
	{
		cancelled := createInvite(t, ownerClient, srv.URL, ownerCSRF, orgID, "erin@example.com", orgs.RoleMember)

		doJSONExpectSuccess(t, ownerClient, http.MethodDelete, srv.URL+"/api/v1/invites/"+cancelled.Invite.ID.String(), ownerCSRF, http.StatusOK, nil)

		errEnv := doJSONExpectError(t, ownerClient, http.MethodDelete, srv.URL+"/api/v1/invites/"+cancelled.Invite.ID.String(), ownerCSRF, http.StatusNotFound, nil)
		require.Equal(t, "not_found", errEnv.Error.Code)
	}

	events := listAudit(t, ownerClient, srv.URL, orgID, 50)
	actions := make(map[string]bool)
	for _, ev := range events {
		actions[ev.Action] = true
	}
	require.True(t, actions["org.created"], "missing org.created audit event")
	require.True(t, actions["org.invite_created"], "missing org.invite_created audit event")
	require.True(t, actions["org.invite_accepted"], "missing org.invite_accepted audit event")
	require.True(t, actions["org.invite_revoked"], "missing org.invite_revoked audit event")
	require.True(t, actions["org.member_removed"], "missing org.member_removed audit event")

	// Deleting the org is reserved for the owner, not every ADMIN.
	{
		errEnv := doJSONExpectError(t, adminClient, http.MethodDelete, srv.URL+"/api/v1/orgs/"+orgID.String(), adminCSRF, http.StatusForbidden, nil)
		require.Equal(t, "forbidden", errEnv.Error.Code)

		doJSONExpectSuccess(t, ownerClient, http.MethodDelete, srv.URL+"/api/v1/orgs/"+orgID.String(), ownerCSRF, http.StatusOK, nil)
	}
}

func newCookieClient(t *testing.T) *http.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

// registerUser signs the user up and returns their ID plus the CSRF token
// issued alongside the session cookie.
func registerUser(t *testing.T, client *http.Client, baseURL, email, password string) (uuid.UUID, string) {
	t.Helper()

	env := postJSONExpectStatus(t, client, baseURL+"/api/v1/auth/register", "", http.StatusCreated, map[string]any{
		"email":    email,
		"password": password,
	})

	var parsed struct {
		User struct {
			ID uuid.UUID `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &parsed))
	require.NotEqual(t, uuid.Nil, parsed.User.ID)

	return parsed.User.ID, csrfFromJar(t, client, baseURL)
}

func csrfFromJar(t *testing.T, client *http.Client, baseURL string) string {
	t.Helper()

	u, err := url.Parse(baseURL)
	require.NoError(t, err)

	for _, c := range client.Jar.Cookies(u) {
		if c.Name == auth.CSRFCookieName {
			return c.Value
		}
	}

	t.Fatalf("no CSRF cookie in jar for %s", baseURL)
	return ""
}

func createOrg(t *testing.T, client *http.Client, baseURL, csrfToken, name, slug string) uuid.UUID {
	t.Helper()

	env := postJSONExpectStatus(t, client, baseURL+"/api/v1/orgs", csrfToken, http.StatusCreated, map[string]any{
		"name": name,
		"slug": slug,
	})

	var parsed struct {
		Org struct {
			ID uuid.UUID `json:"id"`
		} `json:"org"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &parsed))
	require.NotEqual(t, uuid.Nil, parsed.Org.ID)

	return parsed.Org.ID
}

func createInvite(t *testing.T, client *http.Client, baseURL, csrfToken string, orgID uuid.UUID, email string, role orgs.OrgRole) inviteCreated {
	t.Helper()

	env := postJSONExpectStatus(t, client, baseURL+"/api/v1/orgs/"+orgID.String()+"/invites", csrfToken, http.StatusCreated, map[string]any{
		"email": email,
		"role":  string(role),
	})

	var parsed inviteCreated
	require.NoError(t, json.Unmarshal(env.Data, &parsed))
	require.NotEqual(t, uuid.Nil, parsed.Invite.ID)
	require.NotEmpty(t, parsed.Invite.Token)

	return parsed
}

type acceptResponse struct {
	Organization struct {
		ID   uuid.UUID `json:"id"`
		Name string    `json:"name"`
		Slug string    `json:"slug"`
	} `json:"organization"`
	Membership struct {
		ID   uuid.UUID    `json:"id"`
		Role orgs.OrgRole `json:"role"`
	} `json:"membership"`
	AlreadyMember bool `json:"already_member"`
}

func acceptInvite(t *testing.T, client *http.Client, baseURL, csrfToken, token string) acceptResponse {
	t.Helper()

	env := postJSONExpectStatus(t, client, baseURL+"/api/v1/invites/accept", csrfToken, http.StatusOK, map[string]any{
		"token": token,
	})

	var parsed acceptResponse
	require.NoError(t, json.Unmarshal(env.Data, &parsed))

	return parsed
}

// insertInviteRow plants a pending invite directly, bypassing the
// already-a-member check in the create workflow, and returns its
// plaintext token.
func insertInviteRow(t *testing.T, pool *pgxpool.Pool, orgID uuid.UUID, email string, createdBy uuid.UUID) string {
	t.Helper()

	token, tokenHash, err := invites.GenerateToken()
	require.NoError(t, err)

	_, err = pool.Exec(context.Background(), `
		INSERT INTO org_invites (org_id, email, role, token_hash, created_by_user_id, expires_at)
		VALUES ($1, $2, 'MEMBER', $3, $4, NOW() + INTERVAL '7 days')
	`, orgID, email, tokenHash, createdBy)
	require.NoError(t, err)

	return token
}

func listMembers(t *testing.T, client *http.Client, baseURL string, orgID uuid.UUID) []orgs.MemberInfo {
	t.Helper()

	resp, err := client.Get(baseURL + "/api/v1/orgs/" + orgID.String() + "/members")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", string(body))

	var env struct {
		RequestID string `json:"request_id"`
		Data      struct {
			Members []orgs.MemberInfo `json:"members"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &env))
	require.NotEmpty(t, env.RequestID)

	return env.Data.Members
}

func listAudit(t *testing.T, client *http.Client, baseURL string, orgID uuid.UUID, limit int) []struct {
	Action string `json:"action"`
} {
	t.Helper()

	u := baseURL + "/api/v1/orgs/" + orgID.String() + "/audit?limit=" + strconv.Itoa(limit)
	resp, err := client.Get(u)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", string(body))

	var env struct {
		RequestID string `json:"request_id"`
		Data      struct {
			Events []struct {
				Action string `json:"action"`
			} `json:"events"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &env))
	require.NotEmpty(t, env.RequestID)

	return env.Data.Events
}

func postJSONExpectStatus(t *testing.T, client *http.Client, urlStr, csrfToken string, wantStatus int, payload any) envelopeResponse {
	t.Helper()

	respBody := doJSONExpectStatus(t, client, http.MethodPost, urlStr, csrfToken, wantStatus, payload)

	var env envelopeResponse
	require.NoError(t, json.Unmarshal(respBody, &env))
	require.NotEmpty(t, env.RequestID)

	return env
}

func doJSONExpectSuccess(t *testing.T, client *http.Client, method, urlStr, csrfToken string, wantStatus int, payload any) envelopeResponse {
	t.Helper()

	respBody := doJSONExpectStatus(t, client, method, urlStr, csrfToken, wantStatus, payload)

	var env envelopeResponse
	require.NoError(t, json.Unmarshal(respBody, &env))
	require.NotEmpty(t, env.RequestID)

	return env
}

func doJSONExpectError(t *testing.T, client *http.Client, method, urlStr, csrfToken string, wantStatus int, payload any) errorEnvelope {
	t.Helper()

	respBody := doJSONExpectStatus(t, client, method, urlStr, csrfToken, wantStatus, payload)

	var env errorEnvelope
	require.NoError(t, json.Unmarshal(respBody, &env))
	require.NotEmpty(t, env.Error.RequestID)

	return env
}

func doJSONExpectStatus(t *testing.T, client *http.Client, method, urlStr, csrfToken string, wantStatus int, payload any) []byte {
	t.Helper()

	var bodyReader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, urlStr, bodyReader)
	require.NoError(t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if csrfToken != "" && (method == http.MethodPost || method == http.MethodPatch || method == http.MethodDelete) {
		req.Header.Set(auth.CSRFHeaderName, csrfToken)
	}

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, wantStatus, resp.StatusCode, "body: %s", string(body))

	return body
}
