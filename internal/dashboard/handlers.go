package dashboard

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/opensass/eldflow/internal/dashboard/api"
	"github.com/opensass/eldflow/internal/storage"
)

func (s *Server) setTokenCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	})
}

func (s *Server) clearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.config.SecureCookies,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "ok",
		"active_sessions": s.auth.ActiveSessions(r.Context()),
		"cached_panels":   s.panels.Len(),
	})
}

// handleSignup registers a driver.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	driver, err := s.auth.Signup(r.Context(), req)
	switch {
	case errors.Is(err, ErrEmailTaken):
		WriteError(w, http.StatusConflict, "An account with this email already exists")
		return
	case errors.Is(err, ErrNameRequired), errors.Is(err, ErrInvalidEmail), errors.Is(err, ErrWeakPassword):
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.logger.Error().Err(err).Msg("Signup error")
		WriteError(w, http.StatusInternalServerError, "Signup failed")
		return
	}

	s.logger.Info().Str("driver_id", driver.ID).Msg("Driver registered")
	WriteJSON(w, http.StatusCreated, driver)
}

// handleLogin handles driver login requests.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		WriteError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	session, token, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			WriteError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		s.logger.Error().Err(err).Msg("Login error")
		WriteError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	driver, err := s.auth.Driver(r.Context(), session.DriverID)
	if err != nil {
		s.logger.Error().Err(err).Msg("Login error")
		WriteError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	s.setTokenCookie(w, token, session.ExpiresAt)
	WriteJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: session.ExpiresAt,
		Driver:    driver,
	})

	s.logger.Info().
		Str("driver_id", session.DriverID).
		Str("session_id", session.ID).
		Msg("Driver logged in")
}

// handleLogout handles driver logout requests.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	id, _ := api.IdentityFromContext(r.Context())

	if id.SessionID != "" {
		if err := s.auth.Logout(r.Context(), id.SessionID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.logger.Error().Err(err).Str("session_id", id.SessionID).Msg("Logout error")
		}
		s.panels.Forget(id.SessionID)
	}

	s.clearTokenCookie(w)
	WriteJSON(w, http.StatusOK, SuccessResponse{Message: "Logged out successfully"})

	s.logger.Info().Str("session_id", id.SessionID).Msg("Driver logged out")
}

// handleMe returns the current driver.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := api.IdentityFromContext(r.Context())

	driver, err := s.auth.Driver(r.Context(), id.DriverID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			WriteError(w, http.StatusUnauthorized, "Account no longer exists")
			return
		}
		s.logger.Error().Err(err).Msg("Failed to load driver")
		WriteError(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}

	WriteJSON(w, http.StatusOK, driver)
}

// handleUpdateProfile updates the editable profile fields.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, _ := api.IdentityFromContext(r.Context())

	var req ProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	driver, err := s.auth.UpdateProfile(r.Context(), id.DriverID, req)
	switch {
	case errors.Is(err, ErrNameRequired):
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, storage.ErrNotFound):
		WriteError(w, http.StatusNotFound, "Driver not found")
		return
	case err != nil:
		s.logger.Error().Err(err).Str("driver_id", id.DriverID).Msg("Profile update error")
		WriteError(w, http.StatusInternalServerError, "Failed to update profile")
		return
	}

	WriteJSON(w, http.StatusOK, driver)
}

// handleChangePassword handles password change requests.
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	id, _ := api.IdentityFromContext(r.Context())

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.OldPassword == "" || req.NewPassword == "" {
		WriteError(w, http.StatusBadRequest, "Old and new passwords are required")
		return
	}

	if err := s.auth.ChangePassword(r.Context(), id.DriverID, req.OldPassword, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			WriteError(w, http.StatusUnauthorized, "Invalid current password")
		case errors.Is(err, ErrWeakPassword):
			WriteError(w, http.StatusBadRequest, err.Error())
		default:
			s.logger.Error().Err(err).Str("driver_id", id.DriverID).Msg("Password change error")
			WriteError(w, http.StatusInternalServerError, "Failed to change password")
		}
		return
	}

	WriteJSON(w, http.StatusOK, SuccessResponse{Message: "Password changed successfully"})

	s.logger.Info().Str("driver_id", id.DriverID).Msg("Driver changed password")
}
