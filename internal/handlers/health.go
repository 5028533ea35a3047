package handlers

import (
	"FadNote/internal/service"
	"net/http"
	"time"
)

type HealthHandler struct {
	NoteService *service.NoteService
	now         func() time.Time
}

func NewHealthHandler(noteService *service.NoteService) *HealthHandler {
	return &HealthHandler{NoteService: noteService, now: time.Now}
}

type storageStatus struct {
	Type   string `json:"type"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type healthResponse struct {
	Status    string        `json:"status"`
	Storage   storageStatus `json:"storage"`
	Timestamp string        `json:"timestamp"`
}

// Health проверяет доступность хранилища. 503, если оно не отвечает.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	rep := h.NoteService.Health(r.Context())
	resp := healthResponse{
		Status:    "ok",
		Storage:   storageStatus{Type: rep.Backend, Status: rep.Status, Error: rep.Detail},
		Timestamp: h.now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK
	if !rep.OK() {
		resp.Status = "error"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
