package channel_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/bontonsw/grievbot/internal/channel"
	"github.com/bontonsw/grievbot/internal/complaints"
	"github.com/bontonsw/grievbot/internal/complaints/mock"
)

type frame struct {
	Type    string   `json:"type"`
	Text    string   `json:"text,omitempty"`
	Step    string   `json:"step,omitempty"`
	Options []string `json:"options,omitempty"`
}

// wsSession wraps a dialed connection with JSON frame helpers.
type wsSession struct {
	t    *testing.T
	conn *websocket.Conn
	ctx  context.Context
}

func dialSession(t *testing.T, client complaints.Client, path string) *wsSession {
	t.Helper()

	h := channel.NewHandler(client, channel.WithOriginPatterns([]string{"*"}))
	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("Dial(%s) error = %v", path, err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "test done") })

	return &wsSession{t: t, conn: conn, ctx: ctx}
}

func (s *wsSession) send(f frame) {
	s.t.Helper()
	data, err := json.Marshal(f)
	if err != nil {
		s.t.Fatalf("marshal frame: %v", err)
	}
	if err := s.conn.Write(s.ctx, websocket.MessageText, data); err != nil {
		s.t.Fatalf("write frame: %v", err)
	}
}

func (s *wsSession) recv() frame {
	s.t.Helper()
	_, data, err := s.conn.Read(s.ctx)
	if err != nil {
		s.t.Fatalf("read frame: %v", err)
	}
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		s.t.Fatalf("unmarshal frame %q: %v", data, err)
	}
	return f
}

// recvUntilState reads frames until the next state frame, returning the
// bot/user frames seen on the way plus the state frame itself.
func (s *wsSession) recvUntilState() ([]frame, frame) {
	s.t.Helper()
	var msgs []frame
	for {
		f := s.recv()
		if f.Type == "state" {
			return msgs, f
		}
		msgs = append(msgs, f)
	}
}

func botTexts(msgs []frame) []string {
	var out []string
	for _, m := range msgs {
		if m.Type == "bot" {
			out = append(out, m.Text)
		}
	}
	return out
}

func testClient() *mock.Client {
	return &mock.Client{
		Customer: complaints.Customer{
			BeneficiaryNo: "BEN123",
			Name:          "Asha Rao",
			Phone:         "+919600000001",
		},
		Categories: []string{"Power failure", "Billing issue", "Others"},
		Receipt:    complaints.Receipt{ComplaintID: "CMP-9XK2LM"},
	}
}

func TestTextSessionGreeting(t *testing.T) {
	t.Parallel()
	sess := dialSession(t, testClient(), "/ws/text")

	msgs, state := sess.recvUntilState()
	if len(botTexts(msgs)) == 0 {
		t.Fatal("no greeting received")
	}
	if state.Step != "identify" {
		t.Errorf("initial step = %q, want identify", state.Step)
	}
}

func TestTextRegisterFlow(t *testing.T) {
	t.Parallel()
	client := testClient()
	sess := dialSession(t, client, "/ws/text")
	sess.recvUntilState()

	sess.send(frame{Type: "utterance", Text: "BEN123"})
	_, state := sess.recvUntilState()
	if state.Step != "mode_select" {
		t.Fatalf("step after identify = %q, want mode_select", state.Step)
	}

	sess.send(frame{Type: "utterance", Text: "1"})
	_, state = sess.recvUntilState()
	if state.Step != "action_select" {
		t.Fatalf("step after mode select = %q, want action_select", state.Step)
	}

	sess.send(frame{Type: "utterance", Text: "register a complaint"})
	_, state = sess.recvUntilState()
	if state.Step != "await_issue" {
		t.Fatalf("step after register = %q, want await_issue", state.Step)
	}
	if len(state.Options) == 0 {
		t.Fatal("state frame carries no category options")
	}

	sess.send(frame{Type: "select", Text: "Power failure"})
	msgs, state := sess.recvUntilState()
	var filed bool
	for _, text := range botTexts(msgs) {
		if strings.Contains(text, "CMP-9XK2LM") {
			filed = true
		}
	}
	if !filed {
		t.Error("no confirmation with complaint ID received")
	}
	if state.Step != "await_continue" {
		t.Errorf("step after filing = %q, want await_continue", state.Step)
	}
	if len(client.CreateCalls) != 1 {
		t.Fatalf("CreateCalls = %d, want 1", len(client.CreateCalls))
	}
	if got := client.CreateCalls[0].Channel; got != complaints.ChannelText {
		t.Errorf("filed channel = %q, want text", got)
	}
}

func TestSelectRejectedOnVoiceChannel(t *testing.T) {
	t.Parallel()
	sess := dialSession(t, testClient(), "/ws/voice")
	sess.recvUntilState()

	sess.send(frame{Type: "select", Text: "Power failure"})
	f := sess.recv()
	if f.Type != "error" {
		t.Fatalf("frame type = %q, want error", f.Type)
	}
}

func TestCancelRejectedOnTextChannel(t *testing.T) {
	t.Parallel()
	sess := dialSession(t, testClient(), "/ws/text")
	sess.recvUntilState()

	sess.send(frame{Type: "cancel"})
	f := sess.recv()
	if f.Type != "error" {
		t.Fatalf("frame type = %q, want error", f.Type)
	}
}

func TestVoiceCancelGesture(t *testing.T) {
	t.Parallel()
	sess := dialSession(t, testClient(), "/ws/voice")
	sess.recvUntilState()

	sess.send(frame{Type: "cancel"})
	msgs, _ := sess.recvUntilState()
	var notice bool
	for _, text := range botTexts(msgs) {
		if strings.Contains(text, "Recording canceled") {
			notice = true
		}
	}
	if !notice {
		t.Error("no cancellation notice received")
	}
}

func TestUnknownFrameType(t *testing.T) {
	t.Parallel()
	sess := dialSession(t, testClient(), "/ws/text")
	sess.recvUntilState()

	sess.send(frame{Type: "resize"})
	f := sess.recv()
	if f.Type != "error" || !strings.Contains(f.Text, "unknown frame type") {
		t.Fatalf("frame = %+v, want unknown-frame error", f)
	}
}

func TestSessionEndsOnExit(t *testing.T) {
	t.Parallel()
	sess := dialSession(t, testClient(), "/ws/voice")
	sess.recvUntilState()

	sess.send(frame{Type: "utterance", Text: "BEN123"})
	_, state := sess.recvUntilState()
	if state.Step != "action_select" {
		t.Fatalf("voice step after identify = %q, want action_select", state.Step)
	}

	sess.send(frame{Type: "utterance", Text: "view complaints"})
	_, state = sess.recvUntilState()
	if state.Step != "await_continue" {
		t.Fatalf("step after view = %q, want await_continue", state.Step)
	}

	sess.send(frame{Type: "utterance", Text: "exit"})
	_, state = sess.recvUntilState()
	if state.Step != "done" {
		t.Fatalf("step after exit = %q, want done", state.Step)
	}

	// The server closes once the session is done.
	_, _, err := sess.conn.Read(sess.ctx)
	if err == nil {
		t.Fatal("expected connection to close after terminal step")
	}
	if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure {
		t.Errorf("close status = %v, want normal closure", status)
	}
}
