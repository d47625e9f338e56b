package broker

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"promptcoach/internal/models"
)

type fakeRemote struct {
	text      string
	textErr   error
	imageURL  string
	imageErr  error
	status    CredentialStatus
	block     bool
	textCalls int
	imgCalls  int
	prompts   []string
}

func (f *fakeRemote) DispatchText(ctx context.Context, message string, lang models.Language) (string, error) {
	f.textCalls++
	f.prompts = append(f.prompts, message)
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.text, f.textErr
}

func (f *fakeRemote) DispatchImage(ctx context.Context, prompt string, lang models.Language) (string, error) {
	f.imgCalls++
	f.prompts = append(f.prompts, prompt)
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.imageURL, f.imageErr
}

func (f *fakeRemote) CheckCredential(ctx context.Context) CredentialStatus {
	return f.status
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestBroker(remote RemoteDispatcher) *Broker {
	return New(remote, Options{DefaultQuota: 2, ResetQuota: 5, Timeout: time.Second, Logger: quietLogger()})
}

func TestHandleTurnCredentialMissingUsesCanned(t *testing.T) {
	remote := &fakeRemote{status: CredentialStatus{Valid: false, Err: ErrCredentialMissing}}
	b := newTestBroker(remote)
	s := b.NewSession(context.Background(), "s1", models.LanguageEN)

	reply := b.HandleTurn(context.Background(), s, TurnRequest{Message: "hello there"})
	if remote.textCalls != 0 || remote.imgCalls != 0 {
		t.Fatalf("remote invoked without credential: text=%d image=%d", remote.textCalls, remote.imgCalls)
	}
	if reply.Source != SourceCanned {
		t.Fatalf("expected canned source, got %s", reply.Source)
	}
	if reply.Content != b.canned.Lookup("hello there", models.LanguageEN) {
		t.Fatalf("unexpected canned reply: %q", reply.Content)
	}

	img := b.HandleTurn(context.Background(), s, TurnRequest{Message: "draw a cat"})
	if remote.imgCalls != 0 || img.Kind != ReplyText {
		t.Fatalf("image dispatched without credential")
	}
	if s.Quota().Remaining() != 2 {
		t.Fatalf("quota changed without dispatch: %d", s.Quota().Remaining())
	}
}

func TestHandleTurnNilRemote(t *testing.T) {
	b := newTestBroker(nil)
	s := b.NewSession(context.Background(), "s1", "")
	if s.Language != models.LanguageES {
		t.Fatalf("expected default language es, got %s", s.Language)
	}
	reply := b.HandleTurn(context.Background(), s, TurnRequest{Message: "hola"})
	if reply.Source != SourceCanned || !strings.Contains(reply.Content, "Hola") {
		t.Fatalf("unexpected reply: %+v", reply)
	}
}

func TestHandleTurnTextSuccessCommitsQuota(t *testing.T) {
	remote := &fakeRemote{text: "A prompt is an instruction.", status: CredentialStatus{Valid: true}}
	b := newTestBroker(remote)
	s := b.NewSession(context.Background(), "s1", models.LanguageEN)

	reply := b.HandleTurn(context.Background(), s, TurnRequest{Message: "What is a prompt?"})
	if reply.Source != SourceRemote || reply.Content != "A prompt is an instruction." || reply.Kind != ReplyText {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if s.Quota().Remaining() != 1 {
		t.Fatalf("expected remaining 1, got %d", s.Quota().Remaining())
	}

	b.HandleTurn(context.Background(), s, TurnRequest{Message: "again"})
	third := b.HandleTurn(context.Background(), s, TurnRequest{Message: "and again"})
	if remote.textCalls != 2 {
		t.Fatalf("expected 2 remote calls, got %d", remote.textCalls)
	}
	if third.Source != SourceCanned || s.Quota().Remaining() != 0 {
		t.Fatalf("expected canned after quota exhausted: %+v remaining=%d", third, s.Quota().Remaining())
	}

	transcript := s.Transcript()
	if len(transcript) != 6 {
		t.Fatalf("expected 6 transcript turns, got %d", len(transcript))
	}
	if transcript[0].Role != models.RoleUser || transcript[1].Role != models.RoleSystem {
		t.Fatalf("unexpected transcript order: %+v", transcript[:2])
	}
}

func TestHandleTurnEmptyTextFallsBack(t *testing.T) {
	remote := &fakeRemote{text: "   ", status: CredentialStatus{Valid: true}}
	b := newTestBroker(remote)
	s := b.NewSession(context.Background(), "s1", models.LanguageEN)

	reply := b.HandleTurn(context.Background(), s, TurnRequest{Message: "give me an example"})
	if reply.Source != SourceFallback {
		t.Fatalf("expected fallback, got %s", reply.Source)
	}
	if reply.Content != b.canned.Lookup("give me an example", models.LanguageEN) {
		t.Fatalf("unexpected fallback content: %q", reply.Content)
	}
	if s.Quota().Remaining() != 2 {
		t.Fatalf("failed dispatch consumed quota: %d", s.Quota().Remaining())
	}
}

func TestHandleTurnSpanishImageFailure(t *testing.T) {
	remote := &fakeRemote{imageErr: errors.New("500 from images endpoint"), status: CredentialStatus{Valid: true}}
	b := newTestBroker(remote)
	s := b.NewSession(context.Background(), "s1", models.LanguageES)

	if got := b.classifier.Classify("dibuja un gato", models.LanguageES); got != IntentImage {
		t.Fatalf("expected image intent, got %s", got)
	}
	reply := b.HandleTurn(context.Background(), s, TurnRequest{Message: "dibuja un gato"})
	if reply.Content != "Ocurrió un error al generar la imagen. Por favor, intenta con una descripción diferente." {
		t.Fatalf("unexpected reply: %q", reply.Content)
	}
	if remote.imgCalls != 1 {
		t.Fatalf("expected one image dispatch, got %d", remote.imgCalls)
	}
	if s.Quota().Remaining() != 2 {
		t.Fatalf("failed dispatch consumed quota: %d", s.Quota().Remaining())
	}
}

func TestHandleTurnImageFailureWording(t *testing.T) {
	cases := []struct {
		name     string
		lang     models.Language
		message  string
		imageErr error
		imageURL string
		want     string
	}{
		{"en dispatch error", models.LanguageEN, "draw a cat", errors.New("500 from images endpoint"), "",
			"An error occurred while generating the image. Please try with a different description."},
		{"en empty url", models.LanguageEN, "draw a cat", nil, "  ", "Couldn't generate the image"},
		{"es empty url", models.LanguageES, "dibuja un gato", nil, "", "No pude generar la imagen"},
		{"es missing key", models.LanguageES, "dibuja un gato", ErrCredentialMissing, "",
			"No se pudo generar la imagen: clave de API no encontrada."},
	}
	for _, tc := range cases {
		remote := &fakeRemote{imageErr: tc.imageErr, imageURL: tc.imageURL, status: CredentialStatus{Valid: true}}
		b := newTestBroker(remote)
		s := b.NewSession(context.Background(), "s1", tc.lang)
		reply := b.HandleTurn(context.Background(), s, TurnRequest{Message: tc.message})
		if reply.Content != tc.want || reply.Source != SourceFallback {
			t.Fatalf("%s: unexpected reply %+v", tc.name, reply)
		}
	}
}

func TestHandleTurnImageSuccess(t *testing.T) {
	remote := &fakeRemote{imageURL: "https://x.com/a.png", status: CredentialStatus{Valid: true}}
	b := newTestBroker(remote)
	s := b.NewSession(context.Background(), "s1", models.LanguageEN)

	reply := b.HandleTurn(context.Background(), s, TurnRequest{Message: "Draw a robot"})
	if reply.Kind != ReplyImage || reply.ImageURL != "https://x.com/a.png" {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if !strings.Contains(reply.Content, ": https://x.com/a.png") {
		t.Fatalf("image url not embedded: %q", reply.Content)
	}
	if s.Quota().Remaining() != 1 {
		t.Fatalf("expected remaining 1, got %d", s.Quota().Remaining())
	}
}

func TestHandleTurnForceImage(t *testing.T) {
	remote := &fakeRemote{imageURL: "https://x.com/b.png", status: CredentialStatus{Valid: true}}
	b := newTestBroker(remote)
	s := b.NewSession(context.Background(), "s1", models.LanguageES)

	reply := b.HandleTurn(context.Background(), s, TurnRequest{Message: "un volcán", ForceImage: true})
	if reply.Kind != ReplyImage {
		t.Fatalf("expected image reply, got %+v", reply)
	}
	if remote.prompts[0] != "Genera una imagen de: un volcán" {
		t.Fatalf("unexpected forwarded prompt: %q", remote.prompts[0])
	}
}

func TestHandleTurnTimeoutFallsBackToCanned(t *testing.T) {
	remote := &fakeRemote{block: true, status: CredentialStatus{Valid: true}}
	b := New(remote, Options{DefaultQuota: 2, Timeout: 20 * time.Millisecond, Logger: quietLogger()})
	s := b.NewSession(context.Background(), "s1", models.LanguageEN)

	text := b.HandleTurn(context.Background(), s, TurnRequest{Message: "tell me about bias"})
	if text.Source != SourceFallback || text.Content != b.canned.Lookup("tell me about bias", models.LanguageEN) {
		t.Fatalf("unexpected text timeout reply: %+v", text)
	}
	img := b.HandleTurn(context.Background(), s, TurnRequest{Message: "draw a tree"})
	if img.Source != SourceFallback || img.Kind != ReplyText || img.Content == "Couldn't generate the image" {
		t.Fatalf("image timeout should use canned table: %+v", img)
	}
	if s.Quota().Remaining() != 2 {
		t.Fatalf("timeouts consumed quota: %d", s.Quota().Remaining())
	}
}

func TestHandleTurnDisabledByUser(t *testing.T) {
	remote := &fakeRemote{text: "remote", status: CredentialStatus{Valid: true}}
	b := newTestBroker(remote)
	s := b.NewSession(context.Background(), "s1", models.LanguageEN)
	s.Quota().SetEnabled(false)

	reply := b.HandleTurn(context.Background(), s, TurnRequest{Message: "hi"})
	if remote.textCalls != 0 || reply.Source != SourceCanned {
		t.Fatalf("remote used while disabled: calls=%d reply=%+v", remote.textCalls, reply)
	}
}

func TestResetQuota(t *testing.T) {
	b := newTestBroker(nil)
	s := b.NewSession(context.Background(), "s1", models.LanguageEN)
	if got := b.ResetQuota(s); got != 5 {
		t.Fatalf("expected 5 after reset, got %d", got)
	}
	if got := b.ResetQuota(s); got != 5 {
		t.Fatalf("reset not idempotent: %d", got)
	}
}

func TestCheckCredentialWithoutRemote(t *testing.T) {
	status := newTestBroker(nil).CheckCredential(context.Background())
	if status.Valid || !errors.Is(status.Err, ErrCredentialMissing) || status.Message != "No API key found in environment variables" {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestSessionSnapshotRoundTrip(t *testing.T) {
	remote := &fakeRemote{text: "ok", status: CredentialStatus{Valid: true}}
	b := newTestBroker(remote)
	s := b.NewSession(context.Background(), "abc", models.LanguageEN)
	b.HandleTurn(context.Background(), s, TurnRequest{Message: "hello"})
	s.Quota().SetEnabled(false)

	restored := RestoreSession(s.Snapshot())
	if restored.ID != "abc" || restored.Language != models.LanguageEN {
		t.Fatalf("identity lost: %+v", restored)
	}
	if restored.Quota().Remaining() != 1 || restored.Quota().Enabled() {
		t.Fatalf("quota lost: remaining=%d enabled=%v", restored.Quota().Remaining(), restored.Quota().Enabled())
	}
	if !restored.RemoteAvailable() || len(restored.Transcript()) != 2 {
		t.Fatalf("state lost: available=%v transcript=%d", restored.RemoteAvailable(), len(restored.Transcript()))
	}
}

func TestSessionSetLanguage(t *testing.T) {
	s := RestoreSession(models.ChatSession{ID: "x", Language: "fr"})
	if s.Language != models.LanguageES {
		t.Fatalf("unsupported snapshot language kept: %s", s.Language)
	}
	if !s.SetLanguage("EN") || s.Language != models.LanguageEN {
		t.Fatalf("language not switched: %s", s.Language)
	}
	if s.SetLanguage("de") || s.Language != models.LanguageEN {
		t.Fatalf("unsupported tag accepted: %s", s.Language)
	}
}
