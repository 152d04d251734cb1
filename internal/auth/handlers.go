package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orgbase/orgbase/internal/apperrors"
	"github.com/orgbase/orgbase/internal/audit"
	"github.com/orgbase/orgbase/internal/validation"
	"github.com/rs/zerolog/log"
)

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// UserResponse is the public shape of a user record
type UserResponse struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Bio         string    `json:"bio"`
	AvatarURL   string    `json:"avatar_url"`
	CreatedAt   time.Time `json:"created_at"`
}

// HandleRegister processes user registration
func HandleRegister(pool *pgxpool.Pool, auditor *audit.Writer, jwtSecret string, sessionDays int, isProduction bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		email, err := validation.NormalizeEmail(req.Email)
		if err != nil {
			apperrors.WriteBadRequest(w, r, err.Error())
			return
		}

		if len(req.Password) < MinPasswordLength {
			apperrors.WriteBadRequest(w, r, "Password must be at least 8 characters")
			return
		}

		displayName := strings.TrimSpace(req.DisplayName)
		if displayName == "" {
			// Default display name is the email local-part.
			displayName = email[:strings.Index(email, "@")]
		}
		if err := validation.ValidateDisplayName(displayName); err != nil {
			apperrors.WriteBadRequest(w, r, err.Error())
			return
		}

		passwordHash, err := HashPassword(req.Password)
		if err != nil {
			log.Error().Err(err).Msg("Failed to hash password")
			apperrors.WriteInternalError(w, r, "Failed to create account")
			return
		}

		var user UserResponse
		query := `
			INSERT INTO users (email, password_hash, display_name)
			VALUES ($1, $2, $3)
			RETURNING id, email, display_name, bio, avatar_url, created_at
		`

		err = pool.QueryRow(r.Context(), query, email, passwordHash, displayName).Scan(
			&user.ID,
			&user.Email,
			&user.DisplayName,
			&user.Bio,
			&user.AvatarURL,
			&user.CreatedAt,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
				apperrors.WriteConflict(w, r, "Email address already registered")
				return
			}

			log.Error().Err(err).Str("email", email).Msg("Failed to insert user")
			apperrors.WriteInternalError(w, r, "Failed to create account")
			return
		}

		if err := auditor.LogUserSignup(r.Context(), user.ID, email); err != nil {
			log.Error().Err(err).Str("user_id", user.ID.String()).Msg("Failed to log audit event")
		}

		if err := issueSession(w, user, jwtSecret, sessionDays, isProduction); err != nil {
			log.Error().Err(err).Msg("Failed to create session")
			apperrors.WriteInternalError(w, r, "Failed to create session")
			return
		}

		log.Info().
			Str("user_id", user.ID.String()).
			Str("email", email).
			Msg("User registered successfully")

		apperrors.WriteSuccess(w, r, http.StatusCreated, map[string]any{
			"user": user,
		})
	}
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin processes user authentication
func HandleLogin(pool *pgxpool.Pool, auditor *audit.Writer, jwtSecret string, sessionDays int, isProduction bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		email := strings.TrimSpace(req.Email)
		if email == "" || req.Password == "" {
			apperrors.WriteUnauthorized(w, r, "Invalid credentials")
			return
		}

		var user UserResponse
		var passwordHash string
		query := `
			SELECT id, email, display_name, bio, avatar_url, created_at, password_hash
			FROM users
			WHERE LOWER(email) = LOWER($1)
		`

		err := pool.QueryRow(r.Context(), query, email).Scan(
			&user.ID,
			&user.Email,
			&user.DisplayName,
			&user.Bio,
			&user.AvatarURL,
			&user.CreatedAt,
			&passwordHash,
		)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// Unknown user and wrong password are indistinguishable.
				log.Debug().Str("email", email).Msg("Login failed: user not found")
				logLoginFailure(r, auditor, email)
				apperrors.WriteUnauthorized(w, r, "Invalid credentials")
				return
			}
			log.Error().Err(err).Str("email", email).Msg("Failed to query user")
			apperrors.WriteInternalError(w, r, "Login failed")
			return
		}

		if err := VerifyPassword(passwordHash, req.Password); err != nil {
			log.Debug().Str("email", email).Msg("Login failed: wrong password")
			logLoginFailure(r, auditor, email)
			apperrors.WriteUnauthorized(w, r, "Invalid credentials")
			return
		}

		if err := issueSession(w, user, jwtSecret, sessionDays, isProduction); err != nil {
			log.Error().Err(err).Msg("Failed to create session")
			apperrors.WriteInternalError(w, r, "Failed to create session")
			return
		}

		log.Info().
			Str("user_id", user.ID.String()).
			Str("email", user.Email).
			Msg("User logged in successfully")

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"user": user,
		})
	}
}

// HandleLogout clears the session cookie
func HandleLogout(w http.ResponseWriter, r *http.Request) {
	ClearSessionCookie(w)

	if userID := GetUserID(r.Context()); userID != uuid.Nil {
		log.Info().Str("user_id", userID.String()).Msg("User logged out")
	}

	apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
		"logged_out": true,
	})
}

// issueSession signs a session token for the user and sets the session
// and CSRF cookies.
func issueSession(w http.ResponseWriter, user UserResponse, jwtSecret string, sessionDays int, isProduction bool) error {
	token, err := CreateToken(SessionUser{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		AvatarURL:   user.AvatarURL,
	}, jwtSecret, sessionDays)
	if err != nil {
		return err
	}

	SetSessionCookie(w, token, sessionDays, isProduction)

	csrfToken, err := GenerateCSRFToken()
	if err != nil {
		return err
	}
	SetCSRFCookie(w, csrfToken, isProduction)

	return nil
}

func logLoginFailure(r *http.Request, auditor *audit.Writer, email string) {
	if err := auditor.LogLoginFailed(r.Context(), email, r.RemoteAddr); err != nil {
		log.Error().Err(err).Msg("Failed to log audit event")
	}
}
