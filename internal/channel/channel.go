// Package channel exposes the dialogue engine over WebSocket, one surface
// per endpoint:
//
//   - /ws/text  — the web chat widget: typed utterances plus dropdown
//     selections for issue categories.
//   - /ws/voice — the voice gateway: speech transcripts plus the cancel
//     gesture for aborting a capture.
//
// Each accepted connection owns exactly one engine session; when the socket
// closes, the session closes with it.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"github.com/bontonsw/grievbot/internal/complaints"
	"github.com/bontonsw/grievbot/internal/dialog"
	"github.com/bontonsw/grievbot/internal/observe"
)

// Client frame types.
const (
	frameUtterance = "utterance"
	frameSelect    = "select"
	frameCancel    = "cancel"
)

// Server frame types.
const (
	frameBot   = "bot"
	frameUser  = "user"
	frameState = "state"
	frameError = "error"
)

// inFrame is a message from the client.
type inFrame struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// outFrame is a message to the client. State frames carry the current step
// and, in the register flow, the category options the UI should offer.
type outFrame struct {
	Type    string   `json:"type"`
	Text    string   `json:"text,omitempty"`
	Step    string   `json:"step,omitempty"`
	Options []string `json:"options,omitempty"`
}

// HandlerOption configures a [Handler].
type HandlerOption func(*Handler)

// WithOriginPatterns sets the origins accepted on upgrade. Default: same
// origin only.
func WithOriginPatterns(patterns []string) HandlerOption {
	return func(h *Handler) { h.originPatterns = patterns }
}

// WithMetrics attaches observability instruments to each session's engine.
func WithMetrics(m *observe.Metrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// WithEngineOptions appends options passed to every session engine, on top
// of the channel and metrics wiring the handler does itself.
func WithEngineOptions(opts ...dialog.EngineOption) HandlerOption {
	return func(h *Handler) { h.engineOpts = append(h.engineOpts, opts...) }
}

// WithEngineOptionsFunc sets a per-session option source, evaluated when a
// connection is accepted. Lets a config reload change dialogue tuning for
// sessions started afterwards without touching live ones.
func WithEngineOptionsFunc(f func() []dialog.EngineOption) HandlerOption {
	return func(h *Handler) { h.engineOptsFunc = f }
}

// Handler upgrades HTTP requests to WebSocket dialogue sessions.
type Handler struct {
	client         complaints.Client
	metrics        *observe.Metrics
	engineOpts     []dialog.EngineOption
	engineOptsFunc func() []dialog.EngineOption
	originPatterns []string
}

// NewHandler creates a Handler running sessions against client.
func NewHandler(client complaints.Client, opts ...HandlerOption) *Handler {
	h := &Handler{client: client}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Register adds the text and voice endpoints to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/text", h.handle(complaints.ChannelText))
	mux.HandleFunc("GET /ws/voice", h.handle(complaints.ChannelVoice))
}

func (h *Handler) handle(ch complaints.Channel) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: h.originPatterns,
		})
		if err != nil {
			slog.Warn("channel: websocket accept failed", "channel", ch, "err", err)
			return
		}
		defer conn.Close(websocket.StatusInternalError, "session aborted")

		h.serve(r.Context(), conn, ch)
		conn.Close(websocket.StatusNormalClosure, "session ended")
	}
}

// serve runs one dialogue session over conn until the peer disconnects or
// the session reaches its terminal step.
func (h *Handler) serve(ctx context.Context, conn *websocket.Conn, ch complaints.Channel) {
	opts := make([]dialog.EngineOption, 0, len(h.engineOpts)+2)
	opts = append(opts, h.engineOpts...)
	if h.engineOptsFunc != nil {
		opts = append(opts, h.engineOptsFunc()...)
	}
	if h.metrics != nil {
		opts = append(opts, dialog.WithMetrics(h.metrics))
	}

	eng := dialog.NewEngine(ch, h.client, opts...)
	eng.Start(ctx)
	defer eng.Close()

	slog.Info("channel: session started", "channel", ch)

	// sent tracks how much of the transcript has been flushed, so each
	// settle only emits the new entries.
	sent := 0
	if err := h.flush(ctx, conn, eng, &sent); err != nil {
		return
	}

	for {
		var in inFrame
		if err := readJSON(ctx, conn, &in); err != nil {
			if !isNormalClose(err) {
				slog.Debug("channel: read failed", "channel", ch, "err", err)
			}
			return
		}

		err := h.dispatch(ctx, eng, ch, in)
		switch {
		case errors.Is(err, dialog.ErrSessionClosed):
			return
		case err != nil:
			if werr := writeJSON(ctx, conn, outFrame{Type: frameError, Text: err.Error()}); werr != nil {
				return
			}
			continue
		}

		if err := h.flush(ctx, conn, eng, &sent); err != nil {
			return
		}
		if eng.Step() == dialog.StepDone {
			slog.Info("channel: session completed", "channel", ch)
			return
		}
	}
}

// dispatch routes one client frame to the engine. Frames a surface does not
// support are rejected rather than ignored, so a misbehaving client hears
// about it.
func (h *Handler) dispatch(ctx context.Context, eng *dialog.Engine, ch complaints.Channel, in inFrame) error {
	switch in.Type {
	case frameUtterance:
		return eng.Submit(ctx, in.Text)
	case frameSelect:
		if ch != complaints.ChannelText {
			return errors.New("channel: select frames are text-channel only")
		}
		return eng.Select(ctx, in.Text)
	case frameCancel:
		if ch != complaints.ChannelVoice {
			return errors.New("channel: cancel frames are voice-channel only")
		}
		return eng.CancelCapture(ctx)
	default:
		return errors.New("channel: unknown frame type " + in.Type)
	}
}

// flush sends any transcript entries the client has not seen, followed by a
// state frame with the current step and category options.
func (h *Handler) flush(ctx context.Context, conn *websocket.Conn, eng *dialog.Engine, sent *int) error {
	transcript := eng.Transcript()
	for ; *sent < len(transcript); *sent++ {
		m := transcript[*sent]
		typ := frameBot
		if m.Origin == dialog.OriginUser {
			typ = frameUser
		}
		if err := writeJSON(ctx, conn, outFrame{Type: typ, Text: m.Text}); err != nil {
			return err
		}
	}
	return writeJSON(ctx, conn, outFrame{
		Type:    frameState,
		Step:    string(eng.Step()),
		Options: eng.IssueOptions(),
	})
}

func readJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	_, data, err := conn.Read(ctx)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

func isNormalClose(err error) bool {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return errors.Is(err, context.Canceled)
}
