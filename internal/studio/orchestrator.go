package studio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rkirkendall/lumina/internal/ai"
	"github.com/rkirkendall/lumina/internal/imagecodec"
)

// Notifier surfaces a one-shot failure message to the user.
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(message string)

func (f NotifierFunc) Notify(message string) { f(message) }

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger used for failed round trips.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithNotifier sets where image-action failures are reported.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithClock overrides the time source used for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

type session struct {
	currentImage imagecodec.Image
	mode         Mode
	history      []Message
	busy         bool
}

// Orchestrator owns the session and runs the two intents against a gateway.
//
// At most one intent is pending at a time; a second submission while busy
// fails with ErrBusy and leaves the session untouched. The lock guards field
// updates only and is never held across a gateway call.
type Orchestrator struct {
	gateway  ai.Gateway
	notifier Notifier
	logger   zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	session session
}

// New returns an orchestrator with an empty session in create mode.
func New(gateway ai.Gateway, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gateway:  gateway,
		notifier: NotifierFunc(func(string) {}),
		logger:   zerolog.Nop(),
		now:      time.Now,
		session:  session{mode: ModeCreate},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ActionResult describes how an image action settled.
type ActionResult struct {
	Action Action
	// Produced is false when the gateway returned no image.
	Produced bool
	// Record is set when Produced is true.
	Record *ImageAction
}

// PerformImageAction generates or edits according to mode. A NoOp resolution
// returns immediately without touching state. A produced image becomes the
// current image and adds two transcript messages; an absent result changes
// nothing. Gateway failures are reported through the Notifier and returned.
func (o *Orchestrator) PerformImageAction(ctx context.Context, prompt string, mode Mode) (ActionResult, error) {
	o.mu.Lock()
	action := ResolveAction(mode, !o.session.currentImage.IsZero())
	if action == ActionNoOp {
		o.mu.Unlock()
		return ActionResult{Action: ActionNoOp}, nil
	}
	if strings.TrimSpace(prompt) == "" {
		o.mu.Unlock()
		return ActionResult{Action: action}, ErrEmptyPrompt
	}
	if o.session.busy {
		o.mu.Unlock()
		return ActionResult{Action: action}, ErrBusy
	}
	o.session.busy = true
	source := o.session.currentImage
	o.mu.Unlock()
	defer o.release()

	var (
		img imagecodec.Image
		err error
	)
	switch action {
	case ActionGenerate:
		img, err = o.gateway.GenerateImage(ctx, prompt)
	case ActionEdit:
		img, err = o.gateway.EditImage(ctx, source, prompt)
	}
	if err != nil {
		o.logger.Error().Err(err).Str("action", string(action)).Msg("image action failed")
		o.notifier.Notify(FailureNotice)
		return ActionResult{Action: action}, err
	}
	if img.IsZero() {
		o.logger.Info().Str("action", string(action)).Msg("image action produced no image")
		return ActionResult{Action: action}, nil
	}

	record := &ImageAction{
		ID:        uuid.NewString(),
		Kind:      action,
		Prompt:    prompt,
		Result:    img,
		Timestamp: o.now(),
	}
	o.mu.Lock()
	o.session.currentImage = img
	o.session.history = append(o.session.history, record.Messages()...)
	o.mu.Unlock()
	return ActionResult{Action: action, Produced: true, Record: record}, nil
}

// ChatResult describes how a chat turn settled.
type ChatResult struct {
	Reply Message
	// Fallback is true when the service returned no text and the fixed
	// fallback reply was recorded instead.
	Fallback bool
}

// PerformChatTurn records message as a user turn before calling the
// assistant, then appends the reply (or the fallback text when none came
// back). On a gateway failure the user turn stays and no reply is added; the
// failure is logged and returned but not reported through the Notifier.
func (o *Orchestrator) PerformChatTurn(ctx context.Context, message string) (ChatResult, error) {
	if strings.TrimSpace(message) == "" {
		return ChatResult{}, ErrEmptyPrompt
	}
	o.mu.Lock()
	if o.session.busy {
		o.mu.Unlock()
		return ChatResult{}, ErrBusy
	}
	o.session.busy = true
	o.session.history = append(o.session.history, newMessage(RoleUser, message, "", o.now()))
	contextImage := o.session.currentImage
	o.mu.Unlock()
	defer o.release()

	text, err := o.gateway.ChatWithAssistant(ctx, message, contextImage)
	if err != nil {
		o.logger.Error().Err(err).Msg("chat turn failed")
		return ChatResult{}, err
	}
	fallback := text == ""
	if fallback {
		text = ChatFallback
	}
	reply := newMessage(RoleAssistant, text, "", o.now())
	o.mu.Lock()
	o.session.history = append(o.session.history, reply)
	o.mu.Unlock()
	return ChatResult{Reply: reply, Fallback: fallback}, nil
}

func (o *Orchestrator) release() {
	o.mu.Lock()
	o.session.busy = false
	o.mu.Unlock()
}

// SetMode switches the active mode. The current image is kept.
func (o *Orchestrator) SetMode(m Mode) error {
	parsed, err := ParseMode(string(m))
	if err != nil {
		return err
	}
	o.mu.Lock()
	o.session.mode = parsed
	o.mu.Unlock()
	return nil
}

// SetImage installs img as the current image without going through the gateway.
func (o *Orchestrator) SetImage(img imagecodec.Image) {
	o.mu.Lock()
	o.session.currentImage = img
	o.mu.Unlock()
}

// ClearImage removes the current image. The transcript is kept.
func (o *Orchestrator) ClearImage() {
	o.SetImage("")
}

// IngestImage reads an uploaded or dropped file. A valid image becomes the
// current image and switches the session to edit mode. Content that is not an
// image is rejected silently: it returns false and a nil error and leaves
// state untouched. Read failures and oversized uploads are returned as errors,
// also without touching state.
func (o *Orchestrator) IngestImage(r io.Reader) (bool, error) {
	img, err := imagecodec.FromReader(r)
	if errors.Is(err, imagecodec.ErrNotImage) {
		o.logger.Debug().Msg("ignored non-image upload")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ingest image: %w", err)
	}
	o.mu.Lock()
	o.session.currentImage = img
	o.session.mode = ModeEdit
	o.mu.Unlock()
	return true, nil
}

// Mode returns the active mode.
func (o *Orchestrator) Mode() Mode {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.mode
}

// Snapshot returns a copy of the session that is safe to keep and modify.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	history := make([]Message, len(o.session.history))
	copy(history, o.session.history)
	return Snapshot{
		CurrentImage: o.session.currentImage,
		Mode:         o.session.mode,
		History:      history,
		Busy:         o.session.busy,
	}
}
