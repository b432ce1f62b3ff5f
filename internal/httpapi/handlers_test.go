package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/rkirkendall/lumina/internal/ai"
	"github.com/rkirkendall/lumina/internal/imagecodec"
	"github.com/rkirkendall/lumina/internal/studio"
)

type stubGateway struct {
	image imagecodec.Image
	text  string
	err   error
	block chan struct{}
	start chan struct{}
}

func (g *stubGateway) pause() {
	if g.start != nil {
		g.start <- struct{}{}
	}
	if g.block != nil {
		<-g.block
	}
}

func (g *stubGateway) GenerateImage(ctx context.Context, prompt string) (imagecodec.Image, error) {
	g.pause()
	if g.err != nil {
		return "", &ai.GatewayError{Op: ai.OpGenerate, Err: g.err}
	}
	return g.image, nil
}

func (g *stubGateway) EditImage(ctx context.Context, source imagecodec.Image, prompt string) (imagecodec.Image, error) {
	g.pause()
	if g.err != nil {
		return "", &ai.GatewayError{Op: ai.OpEdit, Err: g.err}
	}
	return g.image, nil
}

func (g *stubGateway) ChatWithAssistant(ctx context.Context, message string, contextImage imagecodec.Image) (string, error) {
	g.pause()
	if g.err != nil {
		return "", &ai.GatewayError{Op: ai.OpChat, Err: g.err}
	}
	return g.text, nil
}

func newTestServer(t *testing.T, gw ai.Gateway) (*httptest.Server, *studio.Orchestrator) {
	t.Helper()
	orch := studio.New(gw)
	srv := httptest.NewServer(NewRouter(NewApp(orch, zerolog.Nop()), zerolog.Nop()))
	t.Cleanup(srv.Close)
	return srv, orch
}

func samplePNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 3, 3))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func do(t *testing.T, method, url, contentType string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, &stubGateway{})
	resp := do(t, http.MethodGet, srv.URL+"/v1/healthz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]string
	decodeBody(t, resp, &body)
	if body["status"] != "ok" {
		t.Fatalf("unexpected health body: %v", body)
	}
}

func TestRequestLoggerRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	h := RequestLogger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/x", nil))
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one json log line: %v", err)
	}
	if entry["status"] != float64(http.StatusTeapot) || entry["path"] != "/v1/x" {
		t.Fatalf("unexpected log entry: %v", entry)
	}
}

func TestGenerateAction(t *testing.T) {
	img := imagecodec.Encode(samplePNG(t), "image/png")
	srv, _ := newTestServer(t, &stubGateway{image: img})

	resp := do(t, http.MethodPost, srv.URL+"/v1/actions", "application/json", []byte(`{"prompt":"a red cube"}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body actionResponse
	decodeBody(t, resp, &body)
	if body.Action != studio.ActionGenerate || !body.Produced || body.Record == nil {
		t.Fatalf("unexpected action response: %+v", body)
	}
	if body.Session.CurrentImage != img || len(body.Session.History) != 2 {
		t.Fatalf("unexpected session: %+v", body.Session)
	}
	if body.Session.History[0].Content != "Generar: a red cube" {
		t.Fatalf("unexpected label %q", body.Session.History[0].Content)
	}
}

func TestEditWithoutImageIsNoOp(t *testing.T) {
	srv, _ := newTestServer(t, &stubGateway{image: "data:image/png;base64,AA=="})
	resp := do(t, http.MethodPost, srv.URL+"/v1/actions", "application/json", []byte(`{"prompt":"blue","mode":"edit"}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body actionResponse
	decodeBody(t, resp, &body)
	if body.Action != studio.ActionNoOp || body.Produced || len(body.Session.History) != 0 {
		t.Fatalf("expected noop, got %+v", body)
	}
}

func TestActionGatewayFailure(t *testing.T) {
	srv, orch := newTestServer(t, &stubGateway{err: errors.New("upstream")})
	resp := do(t, http.MethodPost, srv.URL+"/v1/actions", "application/json", []byte(`{"prompt":"a red cube"}`))
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
	var body errorResponse
	decodeBody(t, resp, &body)
	if body.Message != studio.FailureNotice {
		t.Fatalf("expected failure notice, got %q", body.Message)
	}
	if snap := orch.Snapshot(); snap.HasImage() || len(snap.History) != 0 || snap.Busy {
		t.Fatalf("expected untouched session, got %+v", snap)
	}
}

func TestActionBadInput(t *testing.T) {
	srv, _ := newTestServer(t, &stubGateway{})
	cases := []string{`{"prompt":"x","mode":"paint"}`, `{"prompt":"  "}`, `not json`}
	for _, c := range cases {
		resp := do(t, http.MethodPost, srv.URL+"/v1/actions", "application/json", []byte(c))
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", c, resp.StatusCode)
		}
	}
}

func TestActionWhileBusy(t *testing.T) {
	gw := &stubGateway{image: "data:image/png;base64,AA==", block: make(chan struct{}), start: make(chan struct{}, 1)}
	srv, _ := newTestServer(t, gw)

	first := make(chan int, 1)
	go func() {
		req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/actions", strings.NewReader(`{"prompt":"one"}`))
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			first <- 0
			return
		}
		resp.Body.Close()
		first <- resp.StatusCode
	}()
	<-gw.start

	resp := do(t, http.MethodPost, srv.URL+"/v1/chat", "application/json", []byte(`{"message":"hola"}`))
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	close(gw.block)
	if code := <-first; code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", code)
	}
}

func TestChatReplyAndSilentFailure(t *testing.T) {
	srv, _ := newTestServer(t, &stubGateway{text: "Usa luz suave."})
	resp := do(t, http.MethodPost, srv.URL+"/v1/chat", "application/json", []byte(`{"message":"¿consejo?"}`))
	var ok chatResponse
	decodeBody(t, resp, &ok)
	if resp.StatusCode != http.StatusOK || ok.Reply == nil || ok.Reply.Content != "Usa luz suave." {
		t.Fatalf("unexpected chat response %d: %+v", resp.StatusCode, ok)
	}

	srv, _ = newTestServer(t, &stubGateway{err: errors.New("down")})
	resp = do(t, http.MethodPost, srv.URL+"/v1/chat", "application/json", []byte(`{"message":"¿consejo?"}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected silent 200, got %d", resp.StatusCode)
	}
	var failed chatResponse
	decodeBody(t, resp, &failed)
	if failed.Reply != nil || len(failed.Session.History) != 1 || failed.Session.History[0].Role != studio.RoleUser {
		t.Fatalf("expected only the user turn, got %+v", failed)
	}
}

func TestChatFallback(t *testing.T) {
	srv, _ := newTestServer(t, &stubGateway{})
	resp := do(t, http.MethodPost, srv.URL+"/v1/chat", "application/json", []byte(`{"message":"hola"}`))
	var body chatResponse
	decodeBody(t, resp, &body)
	if !body.Fallback || body.Reply == nil || body.Reply.Content != studio.ChatFallback {
		t.Fatalf("expected fallback reply, got %+v", body)
	}
}

func TestUploadRawAndDownload(t *testing.T) {
	srv, orch := newTestServer(t, &stubGateway{})
	raw := samplePNG(t)

	resp := do(t, http.MethodPost, srv.URL+"/v1/session/image", "image/png", raw)
	var up uploadResponse
	decodeBody(t, resp, &up)
	if resp.StatusCode != http.StatusOK || !up.Accepted || up.Session.Mode != studio.ModeEdit {
		t.Fatalf("unexpected upload response %d: %+v", resp.StatusCode, up)
	}
	if orch.Mode() != studio.ModeEdit {
		t.Fatal("expected orchestrator in edit mode")
	}

	resp = do(t, http.MethodGet, srv.URL+"/v1/session/image", "", nil)
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("unexpected download %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	var got bytes.Buffer
	if _, err := got.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got.Bytes(), raw) {
		t.Fatal("downloaded bytes differ from upload")
	}

	resp = do(t, http.MethodDelete, srv.URL+"/v1/session/image", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp = do(t, http.MethodGet, srv.URL+"/v1/session/image", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after clear, got %d", resp.StatusCode)
	}
}

func TestUploadMultipart(t *testing.T) {
	srv, _ := newTestServer(t, &stubGateway{})
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "photo.png")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(samplePNG(t)); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	resp := do(t, http.MethodPost, srv.URL+"/v1/session/image", mw.FormDataContentType(), buf.Bytes())
	var up uploadResponse
	decodeBody(t, resp, &up)
	if !up.Accepted || !up.Session.HasImage() {
		t.Fatalf("expected accepted upload, got %+v", up)
	}
}

func TestUploadNonImageNotAccepted(t *testing.T) {
	srv, orch := newTestServer(t, &stubGateway{})
	_ = orch.SetMode(studio.ModeAssistant)
	resp := do(t, http.MethodPost, srv.URL+"/v1/session/image", "text/csv", []byte("a,b\n1,2\n"))
	var up uploadResponse
	decodeBody(t, resp, &up)
	if resp.StatusCode != http.StatusOK || up.Accepted {
		t.Fatalf("expected accepted=false, got %d %+v", resp.StatusCode, up)
	}
	if up.Session.HasImage() || up.Session.Mode != studio.ModeAssistant {
		t.Fatalf("expected unchanged session, got %+v", up.Session)
	}
}

func TestSetModeEndpoint(t *testing.T) {
	srv, orch := newTestServer(t, &stubGateway{})
	resp := do(t, http.MethodPut, srv.URL+"/v1/session/mode", "application/json", []byte(`{"mode":"assistant"}`))
	if resp.StatusCode != http.StatusOK || orch.Mode() != studio.ModeAssistant {
		t.Fatalf("expected assistant mode, got %d %q", resp.StatusCode, orch.Mode())
	}
	resp = do(t, http.MethodPut, srv.URL+"/v1/session/mode", "application/json", []byte(`{"mode":"paint"}`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	resp = do(t, http.MethodGet, srv.URL+"/v1/session", "", nil)
	var snap studio.Snapshot
	decodeBody(t, resp, &snap)
	if snap.Mode != studio.ModeAssistant {
		t.Fatalf("expected assistant in snapshot, got %q", snap.Mode)
	}
}
