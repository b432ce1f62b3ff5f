package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/rkirkendall/lumina/internal/ai"
	"github.com/rkirkendall/lumina/internal/imagecodec"
	"github.com/rkirkendall/lumina/internal/studio"
)

const (
	maxJSONBytes = 1 << 20
	// Multipart framing on top of the image itself.
	maxUploadBytes = imagecodec.MaxUploadBytes + 1<<20
)

// App serves a single orchestrator.
type App struct {
	Studio *studio.Orchestrator
	Logger zerolog.Logger
}

// NewApp wraps orch for the HTTP handlers.
func NewApp(orch *studio.Orchestrator, logger zerolog.Logger) *App {
	return &App{Studio: orch, Logger: logger}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type uploadResponse struct {
	Accepted bool            `json:"accepted"`
	Session  studio.Snapshot `json:"session"`
}

type actionRequest struct {
	Prompt string `json:"prompt"`
	Mode   string `json:"mode,omitempty"`
}

type actionResponse struct {
	Action   studio.Action       `json:"action"`
	Produced bool                `json:"produced"`
	Record   *studio.ImageAction `json:"record,omitempty"`
	Session  studio.Snapshot     `json:"session"`
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply    *studio.Message `json:"reply,omitempty"`
	Fallback bool            `json:"fallback,omitempty"`
	Session  studio.Snapshot `json:"session"`
}

type modeRequest struct {
	Mode string `json:"mode"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, errorResponse{Error: kind, Message: message})
}

func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return false
	}
	return true
}

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) Session(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.Studio.Snapshot())
}

func (a *App) SetMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if !a.decode(w, r, &req) {
		return
	}
	m, err := studio.ParseMode(req.Mode)
	if err == nil {
		err = a.Studio.SetMode(m)
	}
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_mode", err.Error())
		return
	}
	a.json(w, http.StatusOK, a.Studio.Snapshot())
}

// UploadImage accepts either a multipart form with a "file" field or the raw
// image as the request body.
func (a *App) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	var src io.Reader = r.Body
	if ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); ct == "multipart/form-data" {
		f, _, err := r.FormFile("file")
		if err != nil {
			if isTooLarge(err) {
				a.error(w, http.StatusRequestEntityTooLarge, "too_large", imagecodec.ErrTooLarge.Error())
				return
			}
			a.error(w, http.StatusBadRequest, "bad_request", "missing file field")
			return
		}
		defer f.Close()
		src = f
	}

	ok, err := a.Studio.IngestImage(src)
	if err != nil {
		if isTooLarge(err) {
			a.error(w, http.StatusRequestEntityTooLarge, "too_large", imagecodec.ErrTooLarge.Error())
			return
		}
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	a.json(w, http.StatusOK, uploadResponse{Accepted: ok, Session: a.Studio.Snapshot()})
}

func (a *App) ClearImage(w http.ResponseWriter, r *http.Request) {
	a.Studio.ClearImage()
	a.json(w, http.StatusOK, a.Studio.Snapshot())
}

// DownloadImage returns the current image bytes with a file name matching
// their type.
func (a *App) DownloadImage(w http.ResponseWriter, r *http.Request) {
	snap := a.Studio.Snapshot()
	if !snap.HasImage() {
		a.error(w, http.StatusNotFound, "not_found", "no current image")
		return
	}
	raw, mimeType, err := snap.CurrentImage.Decode()
	if err != nil {
		a.Logger.Error().Err(err).Msg("decode current image")
		a.error(w, http.StatusInternalServerError, "internal", "current image is unreadable")
		return
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(raw)))
	w.Header().Set("Content-Disposition", `attachment; filename="lumina`+imagecodec.Extension(mimeType)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

// ImageAction runs generate or edit. The mode defaults to the session's
// active mode when omitted.
func (a *App) ImageAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if !a.decode(w, r, &req) {
		return
	}
	mode := a.Studio.Mode()
	if req.Mode != "" {
		m, err := studio.ParseMode(req.Mode)
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_mode", err.Error())
			return
		}
		mode = m
	}

	res, err := a.Studio.PerformImageAction(r.Context(), req.Prompt, mode)
	switch {
	case errors.Is(err, studio.ErrBusy):
		a.error(w, http.StatusConflict, "busy", err.Error())
		return
	case errors.Is(err, studio.ErrEmptyPrompt):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	case errors.Is(err, ai.ErrGateway):
		a.error(w, http.StatusBadGateway, "gateway_error", studio.FailureNotice)
		return
	case err != nil:
		a.error(w, http.StatusInternalServerError, "internal", studio.FailureNotice)
		return
	}
	a.json(w, http.StatusOK, actionResponse{
		Action:   res.Action,
		Produced: res.Produced,
		Record:   res.Record,
		Session:  a.Studio.Snapshot(),
	})
}

// Chat runs one assistant turn. A failed round trip is not reported to the
// client; the response carries the session with the user turn and no reply.
func (a *App) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !a.decode(w, r, &req) {
		return
	}
	res, err := a.Studio.PerformChatTurn(r.Context(), req.Message)
	switch {
	case errors.Is(err, studio.ErrBusy):
		a.error(w, http.StatusConflict, "busy", err.Error())
		return
	case errors.Is(err, studio.ErrEmptyPrompt):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	case err != nil:
		a.json(w, http.StatusOK, chatResponse{Session: a.Studio.Snapshot()})
		return
	}
	reply := res.Reply
	a.json(w, http.StatusOK, chatResponse{Reply: &reply, Fallback: res.Fallback, Session: a.Studio.Snapshot()})
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe) || errors.Is(err, imagecodec.ErrTooLarge)
}
