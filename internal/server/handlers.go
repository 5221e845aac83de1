package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"runtime"
	"strings"

	units "github.com/docker/go-units"

	"github.com/ChamsBouzaiene/petchat/internal/gateway"
	"github.com/ChamsBouzaiene/petchat/internal/media"
	"github.com/ChamsBouzaiene/petchat/internal/session"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type sessionRequest struct {
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	Success   bool   `json:"success"`
	Response  string `json:"response"`
	Degraded  bool   `json:"degraded"`
	Timestamp string `json:"timestamp"`
	SessionID string `json:"session_id"`
}

type uploadResponse struct {
	Success   bool   `json:"success"`
	Response  string `json:"response"`
	Degraded  bool   `json:"degraded"`
	Filename  string `json:"filename"`
	Filesize  int64  `json:"filesize"`
	Timestamp string `json:"timestamp"`
	SessionID string `json:"session_id"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
	GoVersion string `json:"go_version"`
	APIStatus string `json:"api_status"`
	Provider  string `json:"provider"`
	Sessions  int    `json:"sessions"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type historyEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type historyResponse struct {
	Success   bool           `json:"success"`
	SessionID string         `json:"session_id"`
	History   []historyEntry `json:"history"`
	Count     int            `json:"count"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, chatSchema, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := session.ResolveID(req.SessionID)

	ctx, cancel := s.gatewayContext(r)
	defer cancel()

	result, err := s.opts.Chat.Complete(ctx, id, req.Message)
	if err != nil {
		log.Printf("[http] request_id=%s session=%s chat failed: %v", RequestID(r.Context()), id, err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{
		Success:   true,
		Response:  result.Text,
		Degraded:  result.Degraded(),
		Timestamp: s.timestamp(),
		SessionID: id,
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	requestID := RequestID(r.Context())
	if limit := s.opts.Media.MaxSize(); limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, tooLargeMessage(s.opts.Media))
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid upload: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("video")
	if err != nil {
		// Parts without a filename are parsed as plain values.
		if _, ok := r.MultipartForm.Value["video"]; ok {
			writeError(w, http.StatusBadRequest, "no file selected")
			return
		}
		writeError(w, http.StatusBadRequest, "no video file uploaded")
		return
	}
	defer file.Close()

	if err := media.ValidateFilename(header.Filename); err != nil {
		if errors.Is(err, media.ErrEmptyFilename) {
			writeError(w, http.StatusBadRequest, "no file selected")
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported file format, allowed formats: %s", strings.Join(media.AllowedExtensions, ", ")))
		return
	}

	stored, err := s.opts.Media.Save(header.Filename, file)
	switch {
	case errors.Is(err, media.ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, tooLargeMessage(s.opts.Media))
		return
	case err != nil:
		log.Printf("[http] request_id=%s store upload: %v", requestID, err)
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	id := session.ResolveID(r.FormValue("session_id"))
	ctx, cancel := s.gatewayContext(r)
	defer cancel()

	log.Printf("[http] request_id=%s session=%s analyzing %s", requestID, id, stored.Name)
	result := s.opts.Video.Analyze(ctx, gateway.VideoRequest{
		Path:      stored.Path,
		Caption:   r.FormValue("message"),
		SessionID: id,
	})
	writeJSON(w, http.StatusOK, uploadResponse{
		Success:   true,
		Response:  result.Text,
		Degraded:  result.Degraded(),
		Filename:  stored.Name,
		Filesize:  stored.Size,
		Timestamp: s.timestamp(),
		SessionID: id,
	})
}

func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	f, info, err := s.opts.Media.Open(r.PathValue("filename"))
	switch {
	case errors.Is(err, media.ErrNotFound):
		writeError(w, http.StatusNotFound, "video not found")
		return
	case err != nil:
		log.Printf("[http] request_id=%s open video: %v", RequestID(r.Context()), err)
		writeError(w, http.StatusInternalServerError, "failed to open video")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", media.ContentType(info.Name()))
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	apiStatus := "not_configured"
	if s.opts.APIConfigured {
		apiStatus = "configured"
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Service:   s.opts.Service,
		Timestamp: s.timestamp(),
		GoVersion: runtime.Version(),
		APIStatus: apiStatus,
		Provider:  s.opts.Provider,
		Sessions:  s.opts.Store.Count(),
	})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeJSON(r, sessionSchema, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := session.ResolveID(req.SessionID)
	s.opts.Store.Clear(id)
	log.Printf("[http] request_id=%s session=%s history cleared", RequestID(r.Context()), id)
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "conversation history cleared"})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeJSON(r, sessionSchema, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := session.ResolveID(req.SessionID)
	turns := s.opts.Store.Get(id)
	entries := make([]historyEntry, 0, len(turns))
	for _, t := range turns {
		entries = append(entries, historyEntry{Role: string(t.Role), Content: t.Content})
	}
	writeJSON(w, http.StatusOK, historyResponse{
		Success:   true,
		SessionID: id,
		History:   entries,
		Count:     len(entries),
	})
}

func tooLargeMessage(store *media.Storage) string {
	return fmt.Sprintf("file too large, maximum size is %s", units.BytesSize(float64(store.MaxSize())))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Success: false, Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
