package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sandevgo/readr/internal/core"
	"github.com/sandevgo/readr/internal/service/reader"
	"github.com/sandevgo/readr/pkg/log"
)

// maxDocumentBytes caps uploaded document bodies at 20 MB.
const maxDocumentBytes = 20 << 20

type Handler struct {
	service *reader.Service
}

func NewHandler(service *reader.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /documents", h.CreateDocument)
	mux.HandleFunc("GET /documents/{id}/status", h.DocumentStatus)
	mux.HandleFunc("POST /ask", h.Ask)
	mux.HandleFunc("PUT /sessions/{id}/position", h.SetPosition)
	return CorrelationID(mux)
}

type documentResponse struct {
	DocumentID   string   `json:"document_id"`
	State        string   `json:"state"`
	ChunkCount   int      `json:"chunk_count"`
	FailedChunks []string `json:"failed_chunks,omitempty"`
	Error        string   `json:"error,omitempty"`
}

func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxDocumentBytes)

	var req struct {
		ID    string `json:"id"`
		Title string `json:"title"`
		Text  string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	status, err := h.service.LoadDocument(r.Context(), core.Document{ID: req.ID, Title: req.Title, Text: req.Text})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusAccepted, statusResponse(status))
}

func (h *Handler) DocumentStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.Status(r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, statusResponse(status))
}

func statusResponse(st core.BuildStatus) documentResponse {
	return documentResponse{
		DocumentID:   st.DocumentID,
		State:        string(st.State),
		ChunkCount:   st.ChunkCount,
		FailedChunks: st.FailedChunks,
		Error:        st.Err,
	}
}

type agentStatus struct {
	Agent  string `json:"agent"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type askResponse struct {
	SessionID        string        `json:"session_id"`
	TurnID           string        `json:"turn_id"`
	Answer           string        `json:"answer"`
	Agents           []agentStatus `json:"agents"`
	EvidenceRefs     []string      `json:"evidence_refs,omitempty"`
	DegradedAgents   []string      `json:"degraded_agents,omitempty"`
	ExternalDegraded bool          `json:"external_degraded"`
	CreatedAt        time.Time     `json:"created_at"`
}

func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID   string `json:"session_id"`
		DocumentID  string `json:"document_id"`
		Query       string `json:"query"`
		Focus       string `json:"focus"`
		ReadingMode bool   `json:"reading_mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	turn, err := h.service.Ask(r.Context(), reader.AskRequest{
		SessionID:   req.SessionID,
		DocumentID:  req.DocumentID,
		Query:       req.Query,
		Focus:       core.AnalysisFocus(req.Focus),
		ReadingMode: req.ReadingMode,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	degraded := make([]string, 0, len(turn.DegradedAgents))
	for _, a := range turn.DegradedAgents {
		degraded = append(degraded, string(a))
	}
	statuses := make([]agentStatus, 0, len(turn.AgentResults))
	for _, res := range turn.AgentResults {
		statuses = append(statuses, agentStatus{
			Agent:  string(res.Agent),
			Status: string(res.Status),
			Error:  res.Err,
		})
	}

	h.writeJSON(w, r, http.StatusOK, askResponse{
		SessionID:        turn.SessionID,
		TurnID:           turn.ID,
		Answer:           turn.Answer,
		Agents:           statuses,
		EvidenceRefs:     turn.EvidenceRefs(),
		DegradedAgents:   degraded,
		ExternalDegraded: turn.ExternalDegraded,
		CreatedAt:        turn.CreatedAt,
	})
}

func (h *Handler) SetPosition(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DocumentID string  `json:"document_id"`
		Fraction   float64 `json:"fraction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.service.SetPosition(r.Context(), r.PathValue("id"), req.DocumentID, req.Fraction); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case core.IsInputError(err):
		h.writeError(w, r, "INVALID_INPUT", err.Error(), http.StatusBadRequest)
	case errors.Is(err, core.ErrNotFound):
		h.writeError(w, r, "NOT_FOUND", err.Error(), http.StatusNotFound)
	case errors.Is(err, core.ErrRetrievalUnavailable):
		h.writeError(w, r, "RETRIEVAL_UNAVAILABLE", err.Error(), http.StatusServiceUnavailable)
	default:
		log.FromCtx(r.Context()).Error().Err(err).Msg("request failed")
		h.writeError(w, r, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	payload := map[string]any{
		"error": map[string]string{
			"code":           code,
			"message":        message,
			"correlation_id": GetCorrelationID(r.Context()),
		},
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.FromCtx(r.Context()).Error().Err(err).Msg("failed to encode error response")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]any{"data": payload}); err != nil {
		log.FromCtx(r.Context()).Error().Err(err).Msg("failed to encode response")
	}
}
