package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nearyou/nearsync/internal/core/domain"
	"github.com/nearyou/nearsync/internal/core/ports"
	"github.com/nearyou/nearsync/internal/pkg/metrics"
)

// ErrLiveChannelLost signals that the live channel is gone for the rest of
// the session and updates now arrive through polling.
var ErrLiveChannelLost = errors.New("live channel lost, session degraded to polling")

// errAlreadyRunning guards double Connect calls.
var errAlreadyRunning = errors.New("live service already running")

// Close codes on the live channel. CloseNormal marks an intentional
// disconnect; any other code triggers the reconnect path.
const (
	closeNormal    = 1000
	closeGoingAway = 1001
)

// LiveConfig tunes the connection state machine. Zero values are not valid;
// use config defaults in production and shrunk durations in tests.
type LiveConfig struct {
	Backoff       time.Duration // delay between reconnect attempts
	MaxAttempts   int           // reconnect ceiling before polling takes over
	FallbackAfter time.Duration // supervisory limit for reaching Open
	PollInterval  time.Duration // polling cadence after fallback
}

// LiveService owns the live-update channel lifecycle: connect, authenticate,
// receive, reconnect with backoff, and fall over to periodic polling once the
// reconnect budget is exhausted. A single supervisory goroutine owns every
// state transition, so inbound updates reach the tracker strictly in arrival
// order.
type LiveService struct {
	dialer  ports.ChannelDialer
	tokens  ports.TokenSource
	poller  ports.PositionPoller
	tracker *TrackerService
	events  ports.EventPublisher // optional
	cfg     LiveConfig

	mu            sync.Mutex
	state         domain.ConnState
	attempts      int
	clean         bool
	running       bool
	ch            ports.LiveChannel
	cancel        context.CancelFunc
	done          chan struct{}
	onState       []func(domain.ConnState)
	onTerminal    []func(error)
	terminalFired bool
}

// NewLiveService wires the state machine. events may be nil.
func NewLiveService(dialer ports.ChannelDialer, tokens ports.TokenSource, poller ports.PositionPoller, tracker *TrackerService, events ports.EventPublisher, cfg LiveConfig) *LiveService {
	return &LiveService{
		dialer:  dialer,
		tokens:  tokens,
		poller:  poller,
		tracker: tracker,
		events:  events,
		cfg:     cfg,
		state:   domain.StateDisconnected,
	}
}

// OnStateChange registers a transition observer. Register before Connect.
func (s *LiveService) OnStateChange(fn func(domain.ConnState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onState = append(s.onState, fn)
}

// OnTerminalFailure registers a handler fired once per session when the live
// channel is abandoned for polling. The session keeps working; the handler
// exists so callers can surface the degradation instead of discovering it
// from transport silence.
func (s *LiveService) OnTerminalFailure(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTerminal = append(s.onTerminal, fn)
}

// State returns the current connection state.
func (s *LiveService) State() domain.ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect starts the supervisory loop. It returns immediately; progress is
// observable through OnStateChange.
func (s *LiveService) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.clean = false
	s.attempts = 0
	s.terminalFired = false
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go s.run(runCtx, done)
	return nil
}

// Disconnect tears the session down intentionally: the clean-closure marker
// suppresses auto-reconnect, the channel is closed with code 1000, and all
// timers die with the context. Idempotent.
func (s *LiveService) Disconnect() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.clean = true
	ch := s.ch
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	if ch != nil {
		_ = ch.Close(closeNormal)
	}
	cancel()
	<-done
}

func (s *LiveService) run(ctx context.Context, done chan struct{}) {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.ch = nil
		s.mu.Unlock()
		s.setState(domain.StateDisconnected)
		close(done)
	}()

	// Supervisory deadline: if the channel never reaches Open in time, a
	// slow or hung handshake must not block updates indefinitely.
	deadline := time.Now().Add(s.cfg.FallbackAfter)
	opened := false

	for {
		if ctx.Err() != nil {
			return
		}

		s.setState(domain.StateConnecting)

		dialCtx, dialCancel := ctx, context.CancelFunc(func() {})
		if !opened {
			dialCtx, dialCancel = context.WithDeadline(ctx, deadline)
		}
		ch, err := s.dialer.Dial(dialCtx)
		if err == nil {
			err = s.session(ctx, ch, &opened)
		}
		dialCancel()

		if s.isClean() || ctx.Err() != nil {
			return
		}
		slog.Warn("live channel closed unexpectedly", "error", err)

		if !opened && time.Now().After(deadline) {
			s.pollLoop(ctx)
			return
		}

		s.mu.Lock()
		if s.attempts >= s.cfg.MaxAttempts {
			s.mu.Unlock()
			slog.Error("reconnect budget exhausted", "attempts", s.cfg.MaxAttempts)
			s.pollLoop(ctx)
			return
		}
		s.attempts++
		attempt := s.attempts
		s.mu.Unlock()

		s.setState(domain.StateReconnecting)
		metrics.ReconnectAttempts.Inc()
		slog.Info("reconnect scheduled", "attempt", attempt, "backoff", s.cfg.Backoff.String())

		wait := s.cfg.Backoff
		if !opened {
			if remaining := time.Until(deadline); remaining < wait {
				// The supervisory deadline fires before the next
				// attempt would run.
				select {
				case <-ctx.Done():
					return
				case <-time.After(remaining):
				}
				s.pollLoop(ctx)
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// session authenticates on a fresh channel and pumps frames until closure.
func (s *LiveService) session(ctx context.Context, ch ports.LiveChannel, opened *bool) error {
	s.mu.Lock()
	s.ch = ch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.ch = nil
		s.mu.Unlock()
		_ = ch.Close(closeGoingAway)
	}()

	tok, err := s.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("fetch auth token: %w", err)
	}

	// The channel is ready: Open, reset the attempt counter, and send the
	// authentication frame as the first outbound message.
	s.setState(domain.StateOpen)
	s.mu.Lock()
	s.attempts = 0
	s.mu.Unlock()
	*opened = true

	if err := ch.WriteJSON(map[string]string{"token": tok}); err != nil {
		return fmt.Errorf("send auth frame: %w", err)
	}

	for {
		data, err := ch.ReadMessage()
		if err != nil {
			return err
		}
		if err := s.handleFrame(ctx, data); err != nil {
			return err
		}
	}
}

// handleFrame dispatches one inbound frame by tag. Malformed payloads are
// dropped with a warning and never change state; server error frames force a
// closure so the reconnect path runs.
func (s *LiveService) handleFrame(ctx context.Context, data []byte) error {
	var frame struct {
		Type   string          `json:"type"`
		Error  string          `json:"error"`
		UserID int64           `json:"user_id"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		metrics.WSFrames.WithLabelValues("malformed").Inc()
		slog.Warn("dropping malformed frame", "error", err)
		return nil
	}

	if frame.Error != "" {
		metrics.WSFrames.WithLabelValues("error").Inc()
		return fmt.Errorf("server error frame: %s", frame.Error)
	}

	switch frame.Type {
	case "connection_established":
		metrics.WSFrames.WithLabelValues("connection_established").Inc()
		slog.Info("live channel confirmed", "user_id", frame.UserID)
	case "position_update":
		var u domain.PositionUpdate
		if err := json.Unmarshal(frame.Data, &u); err != nil {
			metrics.WSFrames.WithLabelValues("malformed").Inc()
			slog.Warn("dropping malformed position payload", "error", err)
			return nil
		}
		metrics.WSFrames.WithLabelValues("position_update").Inc()
		s.tracker.OnUpdate(ctx, u)
	default:
		metrics.WSFrames.WithLabelValues("unknown").Inc()
		slog.Warn("dropping frame with unknown type", "type", frame.Type)
	}
	return nil
}

// pollLoop is the degraded update source for the rest of the session.
func (s *LiveService) pollLoop(ctx context.Context) {
	s.setState(domain.StatePolledFallback)
	metrics.FallbackActivations.Inc()
	s.fireTerminal(ErrLiveChannelLost)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollOnce(ctx)
		}
	}
}

func (s *LiveService) pollOnce(ctx context.Context) {
	start := time.Now()
	updates, err := s.poller.LatestPositions(ctx)
	metrics.PollDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		slog.Warn("position poll failed", "error", err)
		return
	}
	if len(updates) > 0 {
		// Most-recent first; only the head drives the tracker.
		s.tracker.OnUpdate(ctx, updates[0])
	}
}

func (s *LiveService) isClean() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clean
}

func (s *LiveService) setState(next domain.ConnState) {
	s.mu.Lock()
	prev := s.state
	if prev == next {
		s.mu.Unlock()
		return
	}
	s.state = next
	handlers := make([]func(domain.ConnState), len(s.onState))
	copy(handlers, s.onState)
	s.mu.Unlock()

	slog.Info("connection state changed", "from", prev.String(), "to", next.String())
	metrics.StateTransitions.WithLabelValues(prev.String(), next.String()).Inc()
	if s.events != nil {
		_ = s.events.PublishStateChange(context.Background(), prev, next)
	}
	for _, fn := range handlers {
		fn(next)
	}
}

func (s *LiveService) fireTerminal(err error) {
	s.mu.Lock()
	if s.terminalFired {
		s.mu.Unlock()
		return
	}
	s.terminalFired = true
	handlers := make([]func(error), len(s.onTerminal))
	copy(handlers, s.onTerminal)
	s.mu.Unlock()

	for _, fn := range handlers {
		fn(err)
	}
}
