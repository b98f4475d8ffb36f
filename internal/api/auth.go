package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"eggmanager/internal/app"
	"eggmanager/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

func (api *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	ctx := r.Context()
	ip := api.clientIP(r)
	now := api.now().UTC()

	ban, err := api.Store.ActiveBan(ctx, ip, now)
	if err != nil {
		api.writeError(w, err)
		return
	}
	if ban != nil {
		writeMessage(w, http.StatusForbidden, "Your IP is banned. Reason: "+ban.Reason)
		return
	}

	user, err := api.Store.GetUserByUsername(req.Username)
	if err != nil {
		api.writeError(w, err)
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		api.failedLogin(w, r, ip, now)
		return
	}

	if err := api.Store.ClearFailedLogins(ctx, ip); err != nil {
		api.log.Warn("clearing login attempts failed", zap.String("ip", ip), zap.Error(err))
	}
	api.recordAction(r, user.Username, ip, "login", "Successful login")

	tokenString, err := api.issueToken(user)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Error signing token")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookieName,
		Value:    tokenString,
		Expires:  now.Add(api.Config.TokenTTL),
		HttpOnly: true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, LoginResponse{
		Token: tokenString,
		User:  user,
	})
}

// failedLogin counts the attempt and bans the IP once the limit is reached.
func (api *Server) failedLogin(w http.ResponseWriter, r *http.Request, ip string, now time.Time) {
	ctx := r.Context()
	attempts, err := api.Store.RecordFailedLogin(ctx, ip, now)
	if err != nil {
		api.writeError(w, err)
		return
	}
	if attempts < api.Config.MaxLoginAttempts {
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	expires := now.Add(api.Config.BanDuration)
	ban := &domain.Ban{IP: ip, Reason: "Too many failed login attempts", ExpiresAt: &expires}
	if err := api.Store.CreateBan(ctx, ban); err != nil {
		api.writeError(w, err)
		return
	}
	if err := api.Store.ClearFailedLogins(ctx, ip); err != nil {
		api.log.Warn("clearing login attempts failed", zap.String("ip", ip), zap.Error(err))
	}
	api.log.Warn("ip banned after failed logins", zap.String("ip", ip), zap.Int("attempts", attempts))
	writeMessage(w, http.StatusForbidden,
		fmt.Sprintf("Too many failed attempts. Your IP has been banned for %s.", humanDuration(api.Config.BanDuration)))
}

func humanDuration(d time.Duration) string {
	if d%time.Hour == 0 {
		hours := int(d / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return d.String()
}

func (api *Server) issueToken(user *domain.User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"role":     user.Role,
		"exp":      api.now().Add(api.Config.TokenTTL).Unix(),
	})
	return token.SignedString([]byte(api.Config.JWTSecret))
}

func (api *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookieName,
		Value:    "",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusOK)
}

func (api *Server) currentUser(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	caller, ok := callerFrom(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}
	user, err := api.Store.GetUserByID(caller.ID)
	if err != nil {
		api.writeError(w, err)
		return nil, false
	}
	if user == nil {
		writeMessage(w, http.StatusNotFound, "User not found")
		return nil, false
	}
	return user, true
}

func (api *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := api.currentUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type ProfileRequest struct {
	PanelURL    string `json:"panelUrl"`
	PanelAPIKey string `json:"panelApiKey"`
}

func (api *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := api.currentUser(w, r)
	if !ok {
		return
	}
	var req ProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	panelURL := strings.TrimRight(strings.TrimSpace(req.PanelURL), "/")
	if err := api.Store.UpdatePanelCredentials(user.ID, panelURL, strings.TrimSpace(req.PanelAPIKey)); err != nil {
		api.writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Profile updated successfully.")
}

type PasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (api *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := api.currentUser(w, r)
	if !ok {
		return
	}
	var req PasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)) != nil {
		writeMessage(w, http.StatusBadRequest, "Incorrect current password.")
		return
	}
	if req.NewPassword != req.ConfirmPassword {
		writeMessage(w, http.StatusBadRequest, "New passwords do not match.")
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		writeMessage(w, http.StatusBadRequest, fmt.Sprintf("Password must be at least %d characters long.", minPasswordLength))
		return
	}

	hashedPassword, err := app.HashPassword(req.NewPassword)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Error hashing password")
		return
	}
	if err := api.Store.UpdatePassword(user.ID, hashedPassword); err != nil {
		api.writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Password changed successfully.")
}

// recordAction never fails the request it describes.
func (api *Server) recordAction(r *http.Request, username, ip, action, details string) {
	entry := domain.ActionLog{Username: username, IP: ip, Action: action, Details: details, Timestamp: api.now().UTC()}
	if err := api.Store.RecordAction(r.Context(), entry); err != nil {
		api.log.Warn("recording action failed", zap.String("action", action), zap.Error(err))
	}
}
