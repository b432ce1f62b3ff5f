// Package shell is the interactive terminal front end of the studio. It reads
// one line at a time, dispatches plain text by the active mode and handles
// slash commands for switching modes and managing the current image.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/rs/zerolog"

	"github.com/rkirkendall/lumina/internal/ai"
	"github.com/rkirkendall/lumina/internal/imagecodec"
	"github.com/rkirkendall/lumina/internal/studio"
)

const maxLineBytes = 1 << 20

const helpText = `Escribe un prompt y pulsa Enter. Según el modo activo:
  crear      genera una imagen nueva
  editar     modifica la imagen actual
  asistente  conversa con Lumina sobre tu imagen

Comandos:
  /mode create|edit|assistant  cambia de modo
  /open <ruta>                 carga una imagen y pasa a modo editar
  /save <ruta>                 guarda la imagen actual
  /clear                       quita la imagen actual
  /history                     muestra la conversación
  /status                      muestra modo e imagen
  /help                        esta ayuda
  /quit                        salir`

// Option configures a Shell.
type Option func(*Shell)

// WithLogger sets the logger passed to the orchestrator.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Shell) { s.logger = l }
}

// WithMarkdown renders assistant replies through r. Without it replies are
// printed as plain text.
func WithMarkdown(r *glamour.TermRenderer) Option {
	return func(s *Shell) { s.markdown = r }
}

// Shell is a line-oriented studio session bound to one orchestrator.
type Shell struct {
	orch     *studio.Orchestrator
	in       io.Reader
	out      io.Writer
	logger   zerolog.Logger
	markdown *glamour.TermRenderer
}

// New builds a shell with a fresh session backed by gateway. Image-action
// failures are printed as an alert line.
func New(gateway ai.Gateway, in io.Reader, out io.Writer, opts ...Option) *Shell {
	s := &Shell{in: in, out: out, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	s.orch = studio.New(gateway,
		studio.WithLogger(s.logger),
		studio.WithNotifier(studio.NotifierFunc(s.alert)),
	)
	return s
}

// Orchestrator exposes the underlying session.
func (s *Shell) Orchestrator() *studio.Orchestrator { return s.orch }

// Run reads lines until EOF, /quit or ctx is cancelled.
func (s *Shell) Run(ctx context.Context) error {
	fmt.Fprintln(s.out, bannerStyle.Render("Lumina Studio"))
	fmt.Fprintln(s.out, metaStyle.Render("/help para ver los comandos"))

	sc := bufio.NewScanner(s.in)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for {
		s.prompt()
		if !sc.Scan() {
			break
		}
		if ctx.Err() != nil {
			return nil
		}
		if quit := s.Handle(ctx, sc.Text()); quit {
			return nil
		}
	}
	return sc.Err()
}

func (s *Shell) prompt() {
	fmt.Fprintf(s.out, "%s › ", modeBadge(s.orch.Mode()))
}

// Handle processes one input line and reports whether the shell should exit.
func (s *Shell) Handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		s.submit(ctx, line)
		return false
	}

	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(s.out, helpText)
	case "/mode":
		s.setMode(arg)
	case "/open":
		s.open(arg)
	case "/save":
		s.save(arg)
	case "/clear":
		s.orch.ClearImage()
		fmt.Fprintln(s.out, metaStyle.Render("imagen eliminada"))
	case "/history":
		s.history()
	case "/status":
		s.status()
	default:
		fmt.Fprintln(s.out, alertStyle.Render("comando desconocido: "+name))
	}
	return false
}

// submit dispatches text by the active mode, mirroring the studio's input bar.
func (s *Shell) submit(ctx context.Context, text string) {
	mode := s.orch.Mode()
	if mode == studio.ModeAssistant {
		s.chat(ctx, text)
		return
	}
	// Edit without an image does nothing, not even the progress line.
	if studio.ResolveAction(mode, s.orch.Snapshot().HasImage()) == studio.ActionNoOp {
		return
	}
	fmt.Fprintln(s.out, busyStyle.Render("procesando…"))
	res, err := s.orch.PerformImageAction(ctx, text, mode)
	switch {
	case errors.Is(err, studio.ErrBusy):
		fmt.Fprintln(s.out, busyStyle.Render("espera a que termine la solicitud en curso"))
	case err != nil:
		// Gateway failures are already reported through the notifier.
		if !errors.Is(err, ai.ErrGateway) {
			fmt.Fprintln(s.out, alertStyle.Render(err.Error()))
		}
	case res.Produced:
		s.printMessage(studio.RoleAssistant, studio.Acknowledgment)
		fmt.Fprintln(s.out, metaStyle.Render(describe(res.Record.Result)+"  /save <ruta> para guardarla"))
	case res.Action == studio.ActionNoOp:
	default:
		fmt.Fprintln(s.out, metaStyle.Render("no se generó ninguna imagen"))
	}
}

func (s *Shell) chat(ctx context.Context, text string) {
	res, err := s.orch.PerformChatTurn(ctx, text)
	if errors.Is(err, studio.ErrBusy) {
		fmt.Fprintln(s.out, busyStyle.Render("espera a que termine la solicitud en curso"))
		return
	}
	if err != nil {
		return
	}
	s.printMessage(studio.RoleAssistant, res.Reply.Content)
}

func (s *Shell) setMode(arg string) {
	m, err := studio.ParseMode(arg)
	if err != nil {
		fmt.Fprintln(s.out, alertStyle.Render("uso: /mode create|edit|assistant"))
		return
	}
	if err := s.orch.SetMode(m); err != nil {
		fmt.Fprintln(s.out, alertStyle.Render(err.Error()))
		return
	}
	fmt.Fprintln(s.out, "modo "+modeBadge(m))
}

func (s *Shell) open(path string) {
	if path == "" {
		fmt.Fprintln(s.out, alertStyle.Render("uso: /open <ruta>"))
		return
	}
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintln(s.out, alertStyle.Render(err.Error()))
		return
	}
	defer f.Close()
	ok, err := s.orch.IngestImage(f)
	if err != nil {
		fmt.Fprintln(s.out, alertStyle.Render(err.Error()))
		return
	}
	if !ok {
		s.logger.Debug().Str("path", path).Msg("ignored non-image file")
		return
	}
	fmt.Fprintln(s.out, metaStyle.Render("imagen cargada "+describe(s.orch.Snapshot().CurrentImage))+" "+modeBadge(studio.ModeEdit))
}

func (s *Shell) save(path string) {
	if path == "" {
		fmt.Fprintln(s.out, alertStyle.Render("uso: /save <ruta>"))
		return
	}
	snap := s.orch.Snapshot()
	if !snap.HasImage() {
		fmt.Fprintln(s.out, alertStyle.Render("no hay imagen para guardar"))
		return
	}
	path, matches := imagecodec.OutputPath(snap.CurrentImage, path)
	if !matches {
		fmt.Fprintln(s.out, busyStyle.Render("la imagen es "+snap.CurrentImage.MIMEType()+"; la extensión de "+path+" no coincide"))
	}
	if err := imagecodec.WriteFile(snap.CurrentImage, path); err != nil {
		fmt.Fprintln(s.out, alertStyle.Render(err.Error()))
		return
	}
	fmt.Fprintln(s.out, metaStyle.Render("guardada en "+path))
}

func (s *Shell) history() {
	snap := s.orch.Snapshot()
	if len(snap.History) == 0 {
		fmt.Fprintln(s.out, metaStyle.Render("(sin mensajes)"))
		return
	}
	for _, m := range snap.History {
		s.printMessage(m.Role, m.Content)
		if !m.Image.IsZero() {
			fmt.Fprintln(s.out, metaStyle.Render("  "+describe(m.Image)))
		}
	}
}

func (s *Shell) status() {
	snap := s.orch.Snapshot()
	img := "sin imagen"
	if snap.HasImage() {
		img = describe(snap.CurrentImage)
	}
	fmt.Fprintf(s.out, "%s %s  %d mensajes\n", modeBadge(snap.Mode), metaStyle.Render(img), len(snap.History))
}

func (s *Shell) printMessage(role studio.Role, content string) {
	if role == studio.RoleAssistant && s.markdown != nil {
		if rendered, err := s.markdown.Render(content); err == nil {
			fmt.Fprintf(s.out, "%s\n%s", roleLabel(role), rendered)
			return
		}
	}
	fmt.Fprintf(s.out, "%s: %s\n", roleLabel(role), content)
}

func (s *Shell) alert(message string) {
	fmt.Fprintln(s.out, alertStyle.Render("⚠ "+message))
}

func describe(img imagecodec.Image) string {
	raw, mime, err := img.Decode()
	if err != nil {
		return "[imagen]"
	}
	return fmt.Sprintf("[imagen %s, %d KB]", mime, (len(raw)+1023)/1024)
}
