package api

import (
	"io"
	"net/http"
	"path"
)

const maxFileBody = 8 << 20

func (api *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	dir := r.URL.Query().Get("dir")
	if dir == "" {
		dir = "/"
	}

	caller, _ := callerFrom(r)
	files, err := api.Control.ListFiles(r.Context(), caller, r.URL.Query().Get("owner"), r.PathValue("id"), path.Clean("/"+dir))
	if err != nil {
		api.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (api *Server) handleGetFileContent(w http.ResponseWriter, r *http.Request) {
	file := r.URL.Query().Get("file")
	if file == "" {
		writeMessage(w, http.StatusBadRequest, "Missing file")
		return
	}

	caller, _ := callerFrom(r)
	content, err := api.Control.ReadFile(r.Context(), caller, r.URL.Query().Get("owner"), r.PathValue("id"), path.Clean("/"+file))
	if err != nil {
		api.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, content)
}

// handleSaveFileContent takes the raw file body, not JSON.
func (api *Server) handleSaveFileContent(w http.ResponseWriter, r *http.Request) {
	file := r.URL.Query().Get("file")
	if file == "" {
		writeMessage(w, http.StatusBadRequest, "Missing file")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxFileBody))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Error reading body")
		return
	}

	caller, _ := callerFrom(r)
	res, err := api.Control.WriteFile(r.Context(), caller, r.URL.Query().Get("owner"), r.PathValue("id"), path.Clean("/"+file), string(body))
	api.writeResult(w, res, err)
}
