package dialog

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/bontonsw/grievbot/internal/complaints"
	"github.com/bontonsw/grievbot/internal/observe"
)

const (
	defaultQueueSize = 16

	// maxEffectChain bounds the effect→result→effect loop per submission.
	// The machine currently never chains two effects; the bound is a
	// guard against a future transition bug looping forever.
	maxEffectChain = 4
)

// ErrSessionClosed is returned by Submit and friends after Close.
var ErrSessionClosed = errors.New("dialog: session closed")

// EngineOption configures an [Engine] during construction.
type EngineOption func(*Engine)

// WithRules overrides the classification policy. Default: [DefaultRules].
func WithRules(r Rules) EngineOption {
	return func(e *Engine) { e.rules = r }
}

// WithMetrics attaches observability instruments. Default: none.
func WithMetrics(m *observe.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithQueueSize sets the input queue capacity. Submissions beyond it block
// the caller until the worker catches up. Default: 16.
func WithQueueSize(n int) EngineOption {
	return func(e *Engine) { e.queue = make(chan queueItem, n) }
}

// queueItem is one unit of serialized work: a machine event or a capture
// cancellation marker.
type queueItem struct {
	ev     Event
	cancel bool
	done   chan struct{}
}

// Engine drives one conversation session. All input — typed text, speech
// transcripts, dropdown selections, cancel gestures — funnels through a
// single queue consumed by one worker goroutine, so utterances are applied
// strictly in submission order and a service call in flight can never be
// raced by a second input observing pre-call state.
//
// Engine methods are safe for concurrent use.
type Engine struct {
	client  complaints.Client
	rules   Rules
	metrics *observe.Metrics

	queue chan queueItem

	mu         sync.RWMutex
	state      State
	transcript []Message

	// cancelPending is set between a cancel gesture and the worker
	// reaching its queue entry; submissions dispatched in that window get
	// their settle messages suppressed.
	cancelPending atomic.Bool

	startOnce sync.Once
	closeOnce sync.Once
	stop      context.CancelFunc
	stopped   chan struct{}
}

// NewEngine creates an Engine for one session on the given channel.
// Call [Engine.Start] before submitting input.
func NewEngine(channel complaints.Channel, client complaints.Client, opts ...EngineOption) *Engine {
	e := &Engine{
		client:  client,
		rules:   DefaultRules(),
		queue:   make(chan queueItem, defaultQueueSize),
		state:   State{Channel: channel, Step: StepStart},
		stopped: make(chan struct{}),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Start emits the greeting, moves the session to the identify step, and
// launches the worker goroutine. Start is idempotent; only the first call
// has any effect. The session lives until Close or ctx cancellation.
func (e *Engine) Start(ctx context.Context) {
	e.startOnce.Do(func() {
		e.mu.Lock()
		e.state.Step = StepIdentify
		e.transcript = append(e.transcript, Message{Origin: OriginBot, Text: msgGreeting})
		e.mu.Unlock()

		if e.metrics != nil {
			e.metrics.ActiveSessions.Add(ctx, 1)
		}

		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		e.stop = cancel
		go e.run(runCtx)
	})
}

// Close stops the worker. In-flight work finishes first; queued submissions
// that were never processed settle with ErrSessionClosed. Closing a session
// that never started is a no-op.
func (e *Engine) Close() {
	if e.stop == nil {
		return
	}
	e.stop()
	<-e.stopped
	e.closeOnce.Do(func() {
		if e.metrics != nil {
			e.metrics.ActiveSessions.Add(context.Background(), -1)
		}
	})
}

// Submit feeds one raw utterance into the session and returns once it has
// fully settled: state committed, transcript appended. Dialogue-level
// problems (unknown customer, service errors, unclassifiable input) are
// never returned as errors — they become bot messages. The only error
// conditions are a closed session and ctx cancellation while waiting.
func (e *Engine) Submit(ctx context.Context, raw string) error {
	return e.enqueue(ctx, queueItem{ev: Utterance{Raw: raw}, done: make(chan struct{})})
}

// Select feeds a direct UI selection (text-channel dropdown value) into the
// session. Same settle semantics as Submit.
func (e *Engine) Select(ctx context.Context, value string) error {
	return e.enqueue(ctx, queueItem{ev: Utterance{Raw: value, Selection: true}, done: make(chan struct{})})
}

// CancelCapture handles the voice channel's cancel gesture. It never aborts
// a service call that is already in flight — the call's state change still
// applies — but bot messages resulting from calls dispatched in the
// cancellation window are suppressed, and a cancellation notice is appended
// to the transcript.
func (e *Engine) CancelCapture(ctx context.Context) error {
	e.cancelPending.Store(true)
	return e.enqueue(ctx, queueItem{cancel: true, done: make(chan struct{})})
}

// Transcript returns a snapshot of the transcript in conversation order.
func (e *Engine) Transcript() []Message {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Message, len(e.transcript))
	copy(out, e.transcript)
	return out
}

// Step returns the session's current step.
func (e *Engine) Step() Step {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Step
}

// IssueOptions returns the categories offered in the current register flow.
// The text adapter renders them as a dropdown.
func (e *Engine) IssueOptions() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, len(e.state.IssueOptions))
	copy(out, e.state.IssueOptions)
	return out
}

func (e *Engine) enqueue(ctx context.Context, item queueItem) error {
	select {
	case <-e.stopped:
		return ErrSessionClosed
	default:
	}

	select {
	case e.queue <- item:
	case <-e.stopped:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-item.done:
		return nil
	case <-e.stopped:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.stopped)
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-e.queue:
			e.process(ctx, item)
			close(item.done)
		}
	}
}

// process applies one queue item: runs the transition chain, executes at
// most one declared effect per stage, and commits state plus transcript
// atomically once everything has settled.
func (e *Engine) process(ctx context.Context, item queueItem) {
	if item.cancel {
		e.cancelPending.Store(false)
		e.mu.Lock()
		e.transcript = append(e.transcript, Message{Origin: OriginBot, Text: "❌ Recording canceled"})
		e.mu.Unlock()
		return
	}

	e.mu.RLock()
	st := e.state
	e.mu.RUnlock()

	out := Transition(st, item.ev, e.rules)
	msgs := collect(nil, out)

	// suppressFrom marks where settle messages begin once a cancel
	// gesture has landed in the dispatch window; -1 means nothing is
	// suppressed.
	suppressFrom := -1

	for i := 0; out.Effect != nil && i < maxEffectChain; i++ {
		if suppressFrom < 0 && e.cancelPending.Load() {
			suppressFrom = len(msgs)
		}
		result := e.execute(ctx, out.Effect)
		if suppressFrom < 0 && e.cancelPending.Load() {
			// The gesture landed while the call was in flight; the
			// state change still applies, the messages do not.
			suppressFrom = len(msgs)
		}
		out = Transition(out.State, result, e.rules)
		msgs = collect(msgs, out)
	}

	if suppressFrom >= 0 {
		kept := msgs[:suppressFrom]
		for _, m := range msgs[suppressFrom:] {
			if m.Origin != OriginBot {
				kept = append(kept, m)
			}
		}
		msgs = kept
	}

	e.mu.Lock()
	prev := e.state.Step
	e.state = out.State
	e.transcript = append(e.transcript, msgs...)
	e.mu.Unlock()

	if e.metrics != nil && out.State.Step != prev {
		e.metrics.DialogTransitions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("from", string(prev)),
			attribute.String("to", string(out.State.Step)),
			attribute.String("channel", string(st.Channel)),
		))
	}
}

// execute runs one declared effect against the complaint service and maps
// its settlement to a machine event. Failures are downgraded to events —
// they never escape the engine.
func (e *Engine) execute(ctx context.Context, eff Effect) Event {
	start := time.Now()
	op := "fetch"
	var ev Event

	switch ef := eff.(type) {
	case FetchCustomerEffect:
		cust, err := e.client.FetchCustomer(ctx, ef.BeneficiaryNo)
		switch {
		case errors.Is(err, complaints.ErrNotFound):
			ev = LookupFailed{}
		case err != nil:
			slog.Warn("dialog: fetch customer failed", "beneficiary_no", ef.BeneficiaryNo, "err", err)
			ev = ServiceFailed{Op: op}
		default:
			ev = CustomerResolved{Customer: cust}
		}

	case ListPendingEffect:
		op = "pending"
		list, err := e.client.ListPendingComplaints(ctx, ef.BeneficiaryNo)
		if err != nil {
			slog.Warn("dialog: list pending failed", "beneficiary_no", ef.BeneficiaryNo, "err", err)
			ev = ServiceFailed{Op: op}
		} else {
			ev = PendingListed{List: list}
		}

	case ListCategoriesEffect:
		op = "categories"
		labels, err := e.client.ListIssueCategories(ctx)
		if err != nil {
			slog.Warn("dialog: list categories failed", "err", err)
			ev = ServiceFailed{Op: op}
		} else {
			ev = CategoriesListed{Labels: labels}
		}

	case CreateComplaintEffect:
		op = "create"
		rec, err := e.client.CreateComplaint(ctx, ef.Payload)
		if err != nil {
			slog.Warn("dialog: create complaint failed", "issue_type", ef.Payload.IssueType, "err", err)
			ev = ServiceFailed{Op: op}
		} else {
			slog.Info("dialog: complaint filed",
				"complaint_id", rec.ComplaintID,
				"issue_type", ef.Payload.IssueType,
				"channel", ef.Payload.Channel,
			)
			ev = ComplaintFiled{Receipt: rec}
		}

	default:
		ev = ServiceFailed{Op: op}
	}

	if e.metrics != nil {
		status := "ok"
		if _, failed := ev.(ServiceFailed); failed {
			status = "error"
		}
		e.metrics.ServiceCallDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("status", status),
		))
	}
	return ev
}

// collect appends an outcome's transcript additions, user entries first.
func collect(msgs []Message, out Outcome) []Message {
	for _, u := range out.User {
		msgs = append(msgs, Message{Origin: OriginUser, Text: u})
	}
	for _, b := range out.Bot {
		msgs = append(msgs, Message{Origin: OriginBot, Text: b})
	}
	return msgs
}
