package api

import (
	"encoding/json"
	"net/http"
)

type PowerRequest struct {
	Signal  string `json:"signal"`
	OwnerID string `json:"ownerId"`
}

type CommandRequest struct {
	Command string `json:"command"`
	OwnerID string `json:"ownerId"`
}

type BackupRequest struct {
	Name    string `json:"name"`
	OwnerID string `json:"ownerId"`
}

func (api *Server) handleListServers(w http.ResponseWriter, r *http.Request) {
	caller, _ := callerFrom(r)
	servers, err := api.Control.ResolveAndAggregate(r.Context(), caller)
	if err != nil {
		api.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, servers)
}

func (api *Server) handleServerStates(w http.ResponseWriter, r *http.Request) {
	caller, _ := callerFrom(r)
	states, err := api.Control.ServerStates(r.Context(), caller)
	if err != nil {
		api.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, states)
}

func (api *Server) handlePower(w http.ResponseWriter, r *http.Request) {
	var req PowerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	caller, _ := callerFrom(r)
	res, err := api.Control.PerformPower(r.Context(), caller, req.OwnerID, r.PathValue("id"), req.Signal)
	api.writeResult(w, res, err)
}

func (api *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	caller, _ := callerFrom(r)
	res, err := api.Control.PerformCommand(r.Context(), caller, req.OwnerID, r.PathValue("id"), req.Command)
	api.writeResult(w, res, err)
}

func (api *Server) handleListBackups(w http.ResponseWriter, r *http.Request) {
	caller, _ := callerFrom(r)
	backups, err := api.Control.ListBackups(r.Context(), caller, r.URL.Query().Get("owner"), r.PathValue("id"))
	if err != nil {
		api.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, backups)
}

func (api *Server) handleCreateBackup(w http.ResponseWriter, r *http.Request) {
	var req BackupRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
	}
	caller, _ := callerFrom(r)
	res, err := api.Control.CreateBackup(r.Context(), caller, req.OwnerID, r.PathValue("id"), req.Name)
	api.writeResult(w, res, err)
}

func (api *Server) handleDeleteBackup(w http.ResponseWriter, r *http.Request) {
	caller, _ := callerFrom(r)
	res, err := api.Control.DeleteBackup(r.Context(), caller, r.URL.Query().Get("owner"), r.PathValue("id"), r.PathValue("uuid"))
	api.writeResult(w, res, err)
}

// handleConsole resolves and authorizes before upgrading, so a refused
// caller gets a plain HTTP error instead of a socket.
func (api *Server) handleConsole(w http.ResponseWriter, r *http.Request) {
	caller, _ := callerFrom(r)
	session, err := api.Control.OpenConsole(r.Context(), caller, r.URL.Query().Get("owner"), r.PathValue("id"))
	if err != nil {
		api.writeError(w, err)
		return
	}
	api.Bridge.Serve(w, r, session)
}
