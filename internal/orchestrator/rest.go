package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/haasonsaas/toolmind/internal/reasoner"
	"github.com/haasonsaas/toolmind/internal/sandbox"
	"github.com/haasonsaas/toolmind/internal/toolstore"
	"github.com/haasonsaas/toolmind/pkg/models"
)

// toolExecutor is the subset of *sandbox.Executor the REST surface needs
// for the administrative /tools/{id}/execute endpoint, which bypasses AG
// entirely.
type toolExecutor interface {
	Execute(ctx context.Context, tool *models.Tool, args map[string]any) sandbox.Result
}

// RESTHandler implements spec.md §6's non-streaming REST surface: tool
// administration plus the non-streaming ask/ask_sync form.
type RESTHandler struct {
	ts    toolstore.Store
	ex    toolExecutor
	agent *reasoner.Agent
}

// NewRESTHandler builds the REST surface over the given Tool Store,
// Sandboxed Executor, and Reasoning Agent.
func NewRESTHandler(ts toolstore.Store, ex toolExecutor, agent *reasoner.Agent) *RESTHandler {
	return &RESTHandler{ts: ts, ex: ex, agent: agent}
}

// Routes registers every REST endpoint plus the WebSocket streaming
// channel on mux, using Go 1.22+ method-and-pattern routing the way the
// teacher's gateway.http_server wires its own http.ServeMux.
func (h *RESTHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("POST /ask", h.ask)

	mux.HandleFunc("GET /tools", h.listTools)
	mux.HandleFunc("POST /tools", h.createTool)
	mux.HandleFunc("GET /tools/bugged/list", h.listBugged)
	mux.HandleFunc("GET /tools/search/{query}", h.searchTools)
	mux.HandleFunc("GET /tools/name/{name}", h.getToolByName)
	mux.HandleFunc("GET /tools/{id}", h.getTool)
	mux.HandleFunc("PUT /tools/{id}", h.updateTool)
	mux.HandleFunc("DELETE /tools/{id}", h.deleteTool)
	mux.HandleFunc("POST /tools/{id}/execute", h.executeTool)
	mux.HandleFunc("POST /tools/{id}/clear-bugs", h.clearBugs)
	mux.HandleFunc("POST /tools/{id}/deactivate", h.deactivateTool)

	mux.Handle("/ws", NewWSHandler(h.agent))
}

func (h *RESTHandler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ask is the non-streaming ask_sync form: it collects the agent's internal
// event stream and returns only the terminal payload, per spec.md §4.5.
func (h *RESTHandler) ask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string         `json:"question"`
		History  []models.Event `json:"history,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	evt, err := h.agent.AskSync(r.Context(), req.Question, req.History)
	if err != nil {
		// err only ever wraps an EventError terminal (see Agent.AskSync);
		// the event itself carries the error summary the caller needs.
		writeJSON(w, http.StatusUnprocessableEntity, evt)
		return
	}
	writeJSON(w, http.StatusOK, evt)
}

func (h *RESTHandler) listTools(w http.ResponseWriter, r *http.Request) {
	opts := toolstore.ListOptions{
		ActiveOnly:    r.URL.Query().Get("active_only") == "true",
		ExcludeBugged: r.URL.Query().Get("exclude_bugged") == "true",
		Category:      r.URL.Query().Get("category"),
	}
	tools, err := h.ts.List(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tools)
}

func (h *RESTHandler) getTool(w http.ResponseWriter, r *http.Request) {
	tool, err := h.ts.GetByID(r.Context(), r.PathValue("id"))
	h.writeToolOrNotFound(w, tool, err)
}

func (h *RESTHandler) getToolByName(w http.ResponseWriter, r *http.Request) {
	tool, err := h.ts.GetByName(r.Context(), r.PathValue("name"))
	h.writeToolOrNotFound(w, tool, err)
}

func (h *RESTHandler) writeToolOrNotFound(w http.ResponseWriter, tool *models.Tool, err error) {
	if errors.Is(err, toolstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tool)
}

func (h *RESTHandler) createTool(w http.ResponseWriter, r *http.Request) {
	var spec models.ToolSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tool, err := h.ts.Create(r.Context(), spec)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tool)
}

func (h *RESTHandler) updateTool(w http.ResponseWriter, r *http.Request) {
	var patch models.ToolPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tool, err := h.ts.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tool)
}

func (h *RESTHandler) deleteTool(w http.ResponseWriter, r *http.Request) {
	if err := h.ts.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RESTHandler) executeTool(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Args map[string]any `json:"args"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tool, err := h.ts.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	result := h.ex.Execute(r.Context(), tool, body.Args)
	if !result.Ok() {
		writeJSON(w, http.StatusUnprocessableEntity, result.Err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"value": result.Value})
}

func (h *RESTHandler) searchTools(w http.ResponseWriter, r *http.Request) {
	query := r.PathValue("query")
	opts := toolstore.SearchOptions{
		ExcludeBugged: r.URL.Query().Get("exclude_bugged") == "true",
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		opts.Limit = limit
	}
	if threshold, err := strconv.ParseFloat(r.URL.Query().Get("threshold"), 64); err == nil {
		opts.Threshold = threshold
	}
	hits, err := h.ts.Search(r.Context(), query, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, hits)
}

func (h *RESTHandler) clearBugs(w http.ResponseWriter, r *http.Request) {
	tool, err := h.ts.ClearBugs(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tool)
}

func (h *RESTHandler) deactivateTool(w http.ResponseWriter, r *http.Request) {
	tool, err := h.ts.Deactivate(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tool)
}

func (h *RESTHandler) listBugged(w http.ResponseWriter, r *http.Request) {
	tools, err := h.ts.List(r.Context(), toolstore.ListOptions{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	bugged := make([]*models.Tool, 0)
	for _, t := range tools {
		if t.IsBugged {
			bugged = append(bugged, t)
		}
	}
	writeJSON(w, http.StatusOK, bugged)
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, toolstore.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, toolstore.ErrNameConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, toolstore.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
