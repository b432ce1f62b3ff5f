// Package studio owns the single editing session: the current image, the
// active mode, the chat transcript and the busy flag. Shells read snapshots
// and change state only through the orchestrator's intents and setters.
package studio

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rkirkendall/lumina/internal/imagecodec"
)

// Mode selects what a submitted prompt does.
type Mode string

const (
	ModeCreate    Mode = "create"
	ModeEdit      Mode = "edit"
	ModeAssistant Mode = "assistant"
)

var (
	// ErrUnknownMode is returned by ParseMode for unrecognized input.
	ErrUnknownMode = errors.New("unknown mode")
	// ErrBusy is returned when an intent is submitted while another is pending.
	ErrBusy = errors.New("another request is in progress")
	// ErrEmptyPrompt is returned for blank prompts and chat messages.
	ErrEmptyPrompt = errors.New("prompt is empty")
)

// ParseMode accepts create, edit or assistant, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeCreate, ModeEdit, ModeAssistant:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Role identifies the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one transcript entry. Messages are never modified after append.
type Message struct {
	ID        string           `json:"id"`
	Role      Role             `json:"role"`
	Content   string           `json:"content"`
	Image     imagecodec.Image `json:"image,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

func newMessage(role Role, content string, img imagecodec.Image, at time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Image:     img,
		CreatedAt: at,
	}
}

// Transcript texts. These are user-facing and match the studio's Spanish UI.
const (
	GenerateLabel  = "Generar"
	EditLabel      = "Editar"
	Acknowledgment = "¡Listo! He procesado tu solicitud."
	ChatFallback   = "No pude procesar esa respuesta."
	FailureNotice  = "Hubo un error al procesar tu solicitud. Por favor intenta de nuevo."
)

// ImageAction records one completed generate or edit round trip.
type ImageAction struct {
	ID        string           `json:"id"`
	Kind      Action           `json:"kind"`
	Prompt    string           `json:"prompt"`
	Result    imagecodec.Image `json:"result"`
	Timestamp time.Time        `json:"timestamp"`
}

// Messages returns the user request and the assistant acknowledgment
// carrying the result image.
func (a ImageAction) Messages() []Message {
	label := GenerateLabel
	if a.Kind == ActionEdit {
		label = EditLabel
	}
	return []Message{
		newMessage(RoleUser, label+": "+a.Prompt, "", a.Timestamp),
		newMessage(RoleAssistant, Acknowledgment, a.Result, a.Timestamp),
	}
}

// Snapshot is a deep copy of session state for rendering.
type Snapshot struct {
	CurrentImage imagecodec.Image `json:"current_image,omitempty"`
	Mode         Mode             `json:"mode"`
	History      []Message        `json:"history"`
	Busy         bool             `json:"busy"`
}

// HasImage reports whether a current image is present.
func (s Snapshot) HasImage() bool { return !s.CurrentImage.IsZero() }
