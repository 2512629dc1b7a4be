package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"bizdash/backend/internal/service"
	"bizdash/backend/internal/sheets"
)

// handleSheetAction serves /api/v1/sheets/{group}/{test|export|import|sync}.
func (a *API) handleSheetAction(w http.ResponseWriter, r *http.Request) {
	tail := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/sheets/"), "/")
	parts := strings.Split(tail, "/")
	if len(parts) != 2 {
		writeError(w, http.StatusNotFound, errors.New("expected /api/v1/sheets/{group}/{action}"))
		return
	}
	group, err := sheets.ParseGroup(parts[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	action := sheets.Action(parts[1])

	if action == sheets.ActionTest {
		if r.Method != http.MethodGet && r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
	} else if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	ctx := r.Context()
	var message string
	switch action {
	case sheets.ActionTest:
		message, err = a.service.TestSheet(ctx, group)
	case sheets.ActionExport:
		message, err = a.service.ExportToSheet(ctx, group)
	case sheets.ActionImport:
		err = a.service.ImportFromSheet(ctx, group)
		message = "imported"
	case sheets.ActionSync:
		err = a.service.SyncWithSheet(ctx, group)
		message = "synchronized"
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown sheet action "+parts[1]))
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"group":   group,
		"action":  action,
		"message": message,
		"summary": a.service.Summary(),
	})
}

type transportRequest struct {
	Transport string `json:"transport"`
}

func (a *API) handleSheetTransport(w http.ResponseWriter, r *http.Request) {
	client := a.service.Sheets()
	if client == nil {
		writeServiceError(w, service.ErrNoSheets)
		return
	}

	switch r.Method {
	case http.MethodGet:
		endpoints := make(map[sheets.Group]bool, len(sheets.Groups()))
		for _, group := range sheets.Groups() {
			endpoints[group] = client.URL(group) != ""
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"transport":  client.Transport(),
			"available":  sheets.Strategies(),
			"configured": endpoints,
		})
	case http.MethodPut:
		var req transportRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		strategy, err := sheets.ParseStrategy(req.Transport)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := client.SetTransport(strategy); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"transport": strategy})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSheetLog(w http.ResponseWriter, r *http.Request) {
	client := a.service.Sheets()
	if client == nil {
		writeServiceError(w, service.ErrNoSheets)
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"entries": client.Log().Entries()})
	case http.MethodDelete:
		client.Log().Clear()
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeMethodNotAllowed(w)
	}
}
