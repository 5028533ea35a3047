package handlers

import (
	"FadNote/internal/noteid"
	"FadNote/internal/service"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// TTLHeader - необязательный заголовок со временем жизни заметки в секундах.
const TTLHeader = "X-Note-TTL"

// NoteHandler - HTTP-обёртка над NoteService. Тело заметки для сервера непрозрачно.
type NoteHandler struct {
	NoteService *service.NoteService
	Logger      *zap.SugaredLogger
}

// NewNoteHandler создаёт хендлер заметок
func NewNoteHandler(noteService *service.NoteService, logger *zap.SugaredLogger) *NoteHandler {
	return &NoteHandler{NoteService: noteService, Logger: logger}
}

type createResponse struct {
	Success   bool   `json:"success"`
	ID        string `json:"id"`
	ExpiresIn int64  `json:"expiresIn"`
}

type errorResponse struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeNotFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, errorResponse{
		Error: "Note not found or already viewed",
		Hint:  "Notes are deleted after first view",
	})
}

// Create сохраняет зашифрованную заметку: POST /n (id генерируется) или POST /n/{id}.
func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id != "" && !noteid.Validate(id) {
		writeError(w, http.StatusBadRequest, "Invalid ID format")
		return
	}

	ttl, err := service.ParseTTL(r.Header.Get(TTLHeader))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid TTL")
		return
	}

	// на байт больше лимита, чтобы отличить «ровно лимит» от «больше лимита»
	limit := int64(h.NoteService.MaxBytes())
	r.Body = http.MaxBytesReader(w, r.Body, limit+1)
	blob, err := io.ReadAll(r.Body)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, "Note too large (max 1MB)")
			return
		}
		h.Logger.Warnw("Create: failed to read body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.NoteService.Create(r.Context(), blob, ttl, id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, createResponse{Success: true, ID: res.ID, ExpiresIn: res.ExpiresIn})
	case errors.Is(err, service.ErrInvalidID):
		writeError(w, http.StatusBadRequest, "Invalid ID format")
	case errors.Is(err, service.ErrEmptyPayload):
		writeError(w, http.StatusBadRequest, "Empty note")
	case errors.Is(err, service.ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "Note too large (max 1MB)")
	case errors.Is(err, service.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "Note ID already exists")
	default:
		writeError(w, http.StatusServiceUnavailable, "Failed to store note")
	}
}

// Read отдаёт заметку и удаляет её: второй запрос получит 404.
func (h *NoteHandler) Read(w http.ResponseWriter, r *http.Request) {
	blob, err := h.NoteService.Consume(r.Context(), chi.URLParam(r, "id"))
	switch {
	case err == nil:
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("X-Note-Status", "deleted")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(blob)
	case errors.Is(err, service.ErrInvalidID):
		writeError(w, http.StatusBadRequest, "Invalid ID format")
	case errors.Is(err, service.ErrNotFound):
		writeNotFound(w)
	default:
		writeError(w, http.StatusServiceUnavailable, "Failed to retrieve note")
	}
}

// Delete удаляет заметку без чтения. Ответ одинаков для существующей и отсутствующей заметки.
func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.NoteService.Discard(r.Context(), chi.URLParam(r, "id"))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, service.ErrInvalidID):
		writeError(w, http.StatusBadRequest, "Invalid ID format")
	default:
		writeError(w, http.StatusServiceUnavailable, "Failed to delete note")
	}
}
