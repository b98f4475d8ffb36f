package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"eggmanager/internal/app"
	"eggmanager/internal/domain"
)

const actionLogLimit = 100

type CreateUserRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	Role        string `json:"role"`
	PanelURL    string `json:"panelUrl"`
	PanelAPIKey string `json:"panelApiKey"`
}

func (api *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := api.Store.ListUsers()
	if err != nil {
		api.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (api *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "Username and password required")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeMessage(w, http.StatusBadRequest, "Password must be at least 6 characters long.")
		return
	}
	role := req.Role
	if role == "" {
		role = domain.RoleUser
	}
	if role != domain.RoleUser && role != domain.RoleAdmin {
		writeMessage(w, http.StatusBadRequest, "Role must be admin or user")
		return
	}

	existing, err := api.Store.GetUserByUsername(req.Username)
	if err != nil {
		api.writeError(w, err)
		return
	}
	if existing != nil {
		writeMessage(w, http.StatusConflict, "User already exists")
		return
	}

	hashedPassword, err := app.HashPassword(req.Password)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Error hashing password")
		return
	}

	newUser := &domain.User{
		Username:    req.Username,
		Password:    hashedPassword,
		Role:        role,
		PanelURL:    strings.TrimRight(strings.TrimSpace(req.PanelURL), "/"),
		PanelAPIKey: strings.TrimSpace(req.PanelAPIKey),
	}
	if err := api.Store.CreateUser(newUser); err != nil {
		api.writeError(w, err)
		return
	}

	caller, _ := callerFrom(r)
	api.recordAction(r, caller.Username, caller.IP, "user_create", "Created user "+newUser.Username+" ("+role+")")
	writeJSON(w, http.StatusCreated, newUser)
}

func (api *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeMessage(w, http.StatusBadRequest, "Missing ID")
		return
	}

	caller, _ := callerFrom(r)
	if caller.ID == id {
		writeMessage(w, http.StatusBadRequest, "Cannot delete your own account")
		return
	}

	if err := api.Store.DeleteUser(id); err != nil {
		api.writeError(w, err)
		return
	}
	api.recordAction(r, caller.Username, caller.IP, "user_delete", "Deleted user "+id)
	w.WriteHeader(http.StatusNoContent)
}

func (api *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := api.Store.ListActions(r.Context(), actionLogLimit)
	if err != nil {
		api.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

type BanRequest struct {
	IP     string `json:"ip"`
	Reason string `json:"reason"`
}

func (api *Server) handleListBans(w http.ResponseWriter, r *http.Request) {
	bans, err := api.Store.ListBans(r.Context())
	if err != nil {
		api.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bans)
}

// handleCreateBan adds a ban with no expiry.
func (api *Server) handleCreateBan(w http.ResponseWriter, r *http.Request) {
	var req BanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	req.IP = strings.TrimSpace(req.IP)
	if req.IP == "" {
		writeMessage(w, http.StatusBadRequest, "IP required")
		return
	}
	if req.Reason == "" {
		req.Reason = "Banned by administrator"
	}

	ban := &domain.Ban{IP: req.IP, Reason: req.Reason}
	if err := api.Store.CreateBan(r.Context(), ban); err != nil {
		writeMessage(w, http.StatusBadRequest, "Error banning IP: "+err.Error())
		return
	}
	caller, _ := callerFrom(r)
	api.recordAction(r, caller.Username, caller.IP, "ip_ban", "Banned "+ban.IP+": "+ban.Reason)
	writeJSON(w, http.StatusCreated, ban)
}

func (api *Server) handleDeleteBan(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid ban ID")
		return
	}
	if err := api.Store.DeleteBan(r.Context(), uint(id)); err != nil {
		api.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
