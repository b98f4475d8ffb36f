package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	"eggmanager/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

type ContextKey string

const (
	CallerContextKey ContextKey = "caller"
	tokenCookieName             = "token"
)

// AuthMiddleware accepts a bearer header, the token cookie, or ?token= for
// websocket clients that cannot set headers.
func (api *Server) AuthMiddleware(next http.Handler, requiredRole string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var tokenString string
		authHeader := r.Header.Get("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}

		if tokenString == "" {
			if cookie, err := r.Cookie(tokenCookieName); err == nil {
				tokenString = cookie.Value
			}
		}

		if tokenString == "" {
			tokenString = r.URL.Query().Get("token")
		}

		if tokenString == "" {
			writeMessage(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(api.Config.JWTSecret), nil
		}, jwt.WithTimeFunc(api.now))

		if err != nil || !token.Valid {
			writeMessage(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			writeMessage(w, http.StatusUnauthorized, "Invalid token claims")
			return
		}

		userID, ok := claims["user_id"].(string)
		if !ok || userID == "" {
			writeMessage(w, http.StatusUnauthorized, "Invalid user ID in token")
			return
		}

		user, err := api.Store.GetUserByID(userID)
		if err != nil {
			api.writeError(w, err)
			return
		}
		if user == nil {
			writeMessage(w, http.StatusUnauthorized, "User not found")
			return
		}

		if requiredRole == domain.RoleAdmin && user.Role != domain.RoleAdmin {
			writeMessage(w, http.StatusForbidden, "Forbidden")
			return
		}

		caller := domain.Caller{ID: user.ID, Username: user.Username, Role: user.Role, IP: api.clientIP(r)}
		ctx := context.WithValue(r.Context(), CallerContextKey, caller)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func callerFrom(r *http.Request) (domain.Caller, bool) {
	caller, ok := r.Context().Value(CallerContextKey).(domain.Caller)
	return caller, ok
}

// clientIP uses the first X-Forwarded-For entry only when TrustProxy is set.
func (api *Server) clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); api.TrustProxy && fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
