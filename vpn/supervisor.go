package vpn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"vpnswitch/common"
)

// Tuning holds the supervisor timing knobs. Zero values are replaced
// with the package defaults, so callers only set what they care about.
type Tuning struct {
	// ConnectAttempts is how many times a connect is tried before the
	// transition resolves to Failed.
	ConnectAttempts int
	// PollInterval is the pause between status checks while waiting
	// for a transition to be confirmed.
	PollInterval time.Duration
	// PollAttempts bounds the status checks after a connect.
	PollAttempts int
	// DisconnectPollAttempts bounds the status checks after a
	// disconnect.
	DisconnectPollAttempts int
	// RetryDelay is the pause between connect attempts.
	RetryDelay time.Duration
	// StatusCheckInterval is how often an established connection is
	// re-checked for silent drops.
	StatusCheckInterval time.Duration
	// QueueCapacity bounds the pending request queue.
	QueueCapacity int
	// SwitchAbortOnDisconnectFailure stops a profile switch when the
	// previous profile cannot be confirmed down.
	SwitchAbortOnDisconnectFailure bool
}

// DefaultTuning returns the stock timing configuration.
func DefaultTuning() Tuning {
	return Tuning{
		ConnectAttempts:                common.DefaultConnectAttempts,
		PollInterval:                   common.DefaultPollInterval,
		PollAttempts:                   common.DefaultPollAttempts,
		DisconnectPollAttempts:         common.DefaultDisconnectPollAttempts,
		RetryDelay:                     common.DefaultRetryDelay,
		StatusCheckInterval:            common.DefaultStatusCheckInterval,
		QueueCapacity:                  common.DefaultQueueCapacity,
		SwitchAbortOnDisconnectFailure: true,
	}
}

func (t *Tuning) sanitize() {
	d := DefaultTuning()
	if t.ConnectAttempts < 1 {
		t.ConnectAttempts = d.ConnectAttempts
	}
	if t.PollInterval <= 0 {
		t.PollInterval = d.PollInterval
	}
	if t.PollAttempts < 1 {
		t.PollAttempts = d.PollAttempts
	}
	if t.DisconnectPollAttempts < 1 {
		t.DisconnectPollAttempts = d.DisconnectPollAttempts
	}
	if t.RetryDelay <= 0 {
		t.RetryDelay = d.RetryDelay
	}
	if t.StatusCheckInterval <= 0 {
		t.StatusCheckInterval = d.StatusCheckInterval
	}
	if t.QueueCapacity < 1 {
		t.QueueCapacity = d.QueueCapacity
	}
}

type reqKind int

const (
	reqConnect reqKind = iota
	reqDisconnect
)

// request is one queued command. reply is buffered so the loop never
// blocks on a caller that walked away.
type request struct {
	kind    reqKind
	profile *Profile // connect target
	name    string   // disconnect target, "" means whatever is up
	reply   chan error
}

// pollOutcome is how a bounded wait ended.
type pollOutcome int

const (
	// pollConfirmed: the awaited tunnel state was observed (for retry
	// waits, the delay simply elapsed).
	pollConfirmed pollOutcome = iota
	// pollExhausted: the attempt budget ran out first.
	pollExhausted
	// pollSuperseded: a newer request wants the line.
	pollSuperseded
	// pollStopped: the supervisor is shutting down.
	pollStopped
)

// Supervisor owns the connection lifecycle. All state mutation happens
// on its single loop goroutine; front ends talk to it through the
// bounded request queue and read-only snapshots, so two of them can
// never race a pair of backend invocations against each other.
type Supervisor struct {
	backend Backend
	tune    Tuning

	mu    sync.RWMutex
	state ConnectionState

	requests chan request
	backlog  []request // loop-private, holds drained arrivals

	events    *eventLog
	eventFeed *common.Broadcaster[Event]
	stateFeed *common.Broadcaster[ConnectionState]

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewSupervisor builds a supervisor for the given backend. Call Start
// to begin processing requests and Stop to shut down.
func NewSupervisor(backend Backend, tune Tuning) *Supervisor {
	tune.sanitize()
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		backend:   backend,
		tune:      tune,
		state:     idleState(),
		requests:  make(chan request, tune.QueueCapacity),
		events:    newEventLog(common.EventLogCapacity),
		eventFeed: common.NewBroadcaster[Event]("events"),
		stateFeed: common.NewBroadcaster[ConnectionState]("state"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the supervisor loop.
func (s *Supervisor) Start() {
	s.wg.Add(1)
	go s.loop()
}

// Stop shuts the loop down. An in-flight transition is resolved to
// Failed with reason "cancelled" and queued requests are answered with
// ErrCancelled. Safe to call more than once.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
		s.stateFeed.Close()
		s.eventFeed.Close()
	})
}

// Adopt seeds the state with a tunnel that was already established
// when the process started. Only valid before the first request.
func (s *Supervisor) Adopt(name string) {
	s.mu.Lock()
	adopted := s.state.Phase == PhaseIdle
	if adopted {
		s.state = connectedState(name, time.Now())
	}
	s.mu.Unlock()
	if adopted {
		s.stateFeed.Broadcast(s.State())
		s.event(common.LevelInfo, "adopted existing connection to %s", name)
	}
}

// Connect queues a connect request and waits for it to resolve. If a
// different profile is active it is disconnected first. Connecting to
// the profile that is already up succeeds without touching the backend.
func (s *Supervisor) Connect(ctx context.Context, profile *Profile) error {
	if profile == nil || strings.TrimSpace(profile.Name) == "" {
		return common.WrapError(common.ErrInvalidInput, "no profile to connect")
	}
	req := request{kind: reqConnect, profile: profile.Clone(), reply: make(chan error, 1)}
	return s.enqueue(ctx, req)
}

// Disconnect queues a disconnect request and waits for it to resolve.
// An empty name targets whichever profile is up. Disconnecting while
// idle, or naming a profile that is not the active one, succeeds
// without touching the backend.
func (s *Supervisor) Disconnect(ctx context.Context, name string) error {
	req := request{kind: reqDisconnect, name: strings.TrimSpace(name), reply: make(chan error, 1)}
	return s.enqueue(ctx, req)
}

// State returns a snapshot of the current connection state.
func (s *Supervisor) State() ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Events returns a copy of the bounded activity log, oldest first.
func (s *Supervisor) Events() []Event {
	return s.events.snapshot()
}

// SubscribeState returns a channel of state snapshots. Slow readers
// miss updates rather than blocking the supervisor.
func (s *Supervisor) SubscribeState() chan ConnectionState {
	return s.stateFeed.Subscribe()
}

func (s *Supervisor) UnsubscribeState(ch chan ConnectionState) {
	s.stateFeed.Unsubscribe(ch)
}

// SubscribeEvents returns a channel of new activity log entries.
func (s *Supervisor) SubscribeEvents() chan Event {
	return s.eventFeed.Subscribe()
}

func (s *Supervisor) UnsubscribeEvents(ch chan Event) {
	s.eventFeed.Unsubscribe(ch)
}

func (s *Supervisor) enqueue(ctx context.Context, req request) error {
	if s.ctx.Err() != nil {
		return common.ErrCancelled
	}
	select {
	case s.requests <- req:
	default:
		return common.WrapError(common.ErrQueueBusy,
			fmt.Sprintf("%d requests already pending", cap(s.requests)))
	}

	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		// Prefer a reply that raced with shutdown.
		select {
		case err := <-req.reply:
			return err
		default:
			return common.ErrCancelled
		}
	}
}

func (s *Supervisor) loop() {
	defer s.wg.Done()

	check := time.NewTicker(s.tune.StatusCheckInterval)
	defer check.Stop()

	for {
		if len(s.backlog) > 0 {
			req := s.backlog[0]
			s.backlog = s.backlog[1:]
			s.handle(req)
			continue
		}
		select {
		case <-s.ctx.Done():
			s.drainOnShutdown()
			return
		case req := <-s.requests:
			s.handle(req)
		case <-check.C:
			s.checkDrop()
		}
	}
}

func (s *Supervisor) handle(req request) {
	switch req.kind {
	case reqConnect:
		s.doConnect(req)
	case reqDisconnect:
		s.doDisconnect(req)
	}
}

func (s *Supervisor) doConnect(req request) {
	p := req.profile

	if cur := s.State(); cur.Phase == PhaseConnected && cur.Profile == p.Name {
		s.event(common.LevelInfo, "already connected to %s", p.Name)
		reply(req, nil)
		return
	}

	// Smart switching: at most one VPN may be up, so everything else
	// comes down first. The whole sequence runs inside this single
	// request, no queued command can slip into the gap.
	for _, name := range s.switchTargets(p.Name) {
		s.event(common.LevelInfo, "disconnecting %s to make way for %s", name, p.Name)
		outcome, err := s.teardown(reqConnect, name)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				s.resolveCancelled(req, p.Name)
				return
			}
			if s.tune.SwitchAbortOnDisconnectFailure {
				reason := fmt.Sprintf("could not disconnect %s: %v", name, err)
				s.setState(failedState(p.Name, reason))
				s.event(common.LevelError, "%s", reason)
				reply(req, err)
				return
			}
			s.event(common.LevelWarn, "disconnect of %s failed, connecting %s anyway: %v", name, p.Name, err)
			continue
		}
		switch outcome {
		case pollSuperseded:
			s.resolveSuperseded(req, p.Name)
			return
		case pollStopped:
			s.resolveCancelled(req, p.Name)
			return
		case pollExhausted:
			if s.tune.SwitchAbortOnDisconnectFailure {
				reason := fmt.Sprintf("%s still up after %d checks, not connecting %s",
					name, s.tune.DisconnectPollAttempts, p.Name)
				s.setState(failedState(p.Name, reason))
				s.event(common.LevelError, "%s", reason)
				reply(req, common.WrapError(common.ErrTimeout, reason))
				return
			}
			s.event(common.LevelWarn, "%s not confirmed down, connecting %s anyway", name, p.Name)
		}
	}

	maxAttempts := s.tune.ConnectAttempts
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		s.setState(connectingState(p.Name, attempt, maxAttempts))
		if attempt == 1 {
			s.event(common.LevelInfo, "connecting to %s", p.Name)
		} else {
			s.event(common.LevelInfo, "retrying %s (attempt %d/%d)", p.Name, attempt, maxAttempts)
		}

		err := s.backend.Connect(s.ctx, p)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				s.resolveCancelled(req, p.Name)
				return
			}
			s.event(common.LevelError, "connect to %s failed: %v", p.Name, err)
			if attempt == maxAttempts {
				s.setState(failedState(p.Name, err.Error()))
				reply(req, err)
				return
			}
		} else {
			switch s.awaitTunnel(reqConnect, p.Name, TunnelConnected, s.tune.PollAttempts) {
			case pollConfirmed:
				s.setState(connectedState(p.Name, time.Now()))
				s.event(common.LevelInfo, "connected to %s", p.Name)
				reply(req, nil)
				return
			case pollSuperseded:
				s.resolveSuperseded(req, p.Name)
				return
			case pollStopped:
				s.resolveCancelled(req, p.Name)
				return
			case pollExhausted:
				s.event(common.LevelWarn, "%s did not come up within %d status checks",
					p.Name, s.tune.PollAttempts)
				if attempt == maxAttempts {
					reason := fmt.Sprintf("connection to %s not confirmed", p.Name)
					s.setState(failedState(p.Name, reason))
					reply(req, common.WrapError(common.ErrTimeout, reason))
					return
				}
			}
		}

		switch s.waitRetry(reqConnect, p.Name) {
		case pollSuperseded:
			s.resolveSuperseded(req, p.Name)
			return
		case pollStopped:
			s.resolveCancelled(req, p.Name)
			return
		}
	}
}

func (s *Supervisor) doDisconnect(req request) {
	cur := s.State()

	if cur.Phase == PhaseIdle {
		s.event(common.LevelDebug, "disconnect requested while idle, nothing to do")
		reply(req, nil)
		return
	}
	target := cur.Profile
	if req.name != "" && req.name != target {
		s.event(common.LevelInfo, "%s is not the active profile, nothing to do", req.name)
		reply(req, nil)
		return
	}

	s.event(common.LevelInfo, "disconnecting from %s", target)
	outcome, err := s.teardown(reqDisconnect, target)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			s.resolveCancelled(req, target)
			return
		}
		s.setState(failedState(target, err.Error()))
		s.event(common.LevelError, "disconnect from %s failed: %v", target, err)
		reply(req, err)
		return
	}
	switch outcome {
	case pollConfirmed:
		s.setState(idleState())
		s.event(common.LevelInfo, "disconnected from %s", target)
		reply(req, nil)
	case pollSuperseded:
		s.resolveSuperseded(req, target)
	case pollStopped:
		s.resolveCancelled(req, target)
	case pollExhausted:
		reason := fmt.Sprintf("%s still reported up after %d checks", target, s.tune.DisconnectPollAttempts)
		s.setState(failedState(target, reason))
		s.event(common.LevelError, "%s", reason)
		reply(req, common.WrapError(common.ErrTimeout, reason))
	}
}

// teardown brings one tunnel down and waits for the backend to agree.
func (s *Supervisor) teardown(inFlight reqKind, name string) (pollOutcome, error) {
	s.setState(disconnectingState(name))
	if err := s.backend.Disconnect(s.ctx, name); err != nil {
		return pollExhausted, err
	}
	return s.awaitTunnel(inFlight, name, TunnelDisconnected, s.tune.DisconnectPollAttempts), nil
}

// switchTargets lists the tunnels that must come down before next can
// connect: the logically active profile plus anything the backend
// reports as up, deduplicated.
func (s *Supervisor) switchTargets(next string) []string {
	var targets []string
	seen := map[string]bool{next: true}

	if cur := s.State(); cur.IsBusy() && !seen[cur.Profile] {
		targets = append(targets, cur.Profile)
		seen[cur.Profile] = true
	}

	active, err := s.backend.Active(s.ctx)
	if err != nil {
		s.event(common.LevelWarn, "could not list active tunnels: %v", err)
	}
	for _, a := range active {
		if a.Name != "" && !seen[a.Name] {
			targets = append(targets, a.Name)
			seen[a.Name] = true
		}
	}
	return targets
}

// awaitTunnel polls the backend until the wanted state is observed or
// the attempt budget runs out. Unknown answers are never conclusive
// and just consume an attempt. A superseding arrival or shutdown ends
// the wait early.
func (s *Supervisor) awaitTunnel(inFlight reqKind, name string, want TunnelState, attempts int) pollOutcome {
	ticker := time.NewTicker(s.tune.PollInterval)
	defer ticker.Stop()

	for i := 0; i < attempts; i++ {
		select {
		case <-s.ctx.Done():
			return pollStopped
		case <-ticker.C:
		}

		if s.pendingSupersedes(inFlight, name) {
			return pollSuperseded
		}

		status, err := s.backend.Status(s.ctx, name)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return pollStopped
			}
			s.event(common.LevelWarn, "status check for %s failed: %v", name, err)
			continue
		}
		if status.State == want {
			return pollConfirmed
		}
		if status.State == TunnelUnknown && status.Raw != "" {
			common.LogDebug("status of %s inconclusive: %s", name, status.Raw)
		}
	}
	return pollExhausted
}

// waitRetry pauses between connect attempts, waking early on shutdown
// or a superseding arrival. Returns pollConfirmed when the delay
// simply elapsed.
func (s *Supervisor) waitRetry(inFlight reqKind, name string) pollOutcome {
	timer := time.NewTimer(s.tune.RetryDelay)
	defer timer.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return pollStopped
		case <-timer.C:
			return pollConfirmed
		case r := <-s.requests:
			s.backlog = append(s.backlog, r)
			if s.pendingSupersedes(inFlight, name) {
				return pollSuperseded
			}
		}
	}
}

// pendingSupersedes drains immediately available arrivals into the
// backlog and reports whether any of them supersedes the transition in
// flight. The backlog keeps arrival order either way.
func (s *Supervisor) pendingSupersedes(inFlight reqKind, target string) bool {
	for {
		select {
		case r := <-s.requests:
			s.backlog = append(s.backlog, r)
			continue
		default:
		}
		break
	}
	for _, r := range s.backlog {
		if supersedes(inFlight, target, r) {
			return true
		}
	}
	return false
}

// supersedes decides whether a pending request should abandon the
// transition in flight. A connect for a different profile always
// does. A disconnect aimed at the profile being connected (or at
// whatever is up) abandons a connect; nothing supersedes a disconnect
// of the same profile because its work is already the caller's intent.
func supersedes(inFlight reqKind, target string, next request) bool {
	switch next.kind {
	case reqConnect:
		return next.profile.Name != target
	case reqDisconnect:
		if inFlight != reqConnect {
			return false
		}
		return next.name == "" || next.name == target
	default:
		return false
	}
}

func (s *Supervisor) resolveSuperseded(req request, name string) {
	s.setState(failedState(name, "superseded by a newer request"))
	s.event(common.LevelInfo, "transition on %s superseded by a newer request", name)
	reply(req, common.ErrSuperseded)
}

func (s *Supervisor) resolveCancelled(req request, name string) {
	s.setState(failedState(name, "cancelled on shutdown"))
	s.event(common.LevelWarn, "transition on %s cancelled on shutdown", name)
	reply(req, common.ErrCancelled)
}

// checkDrop verifies an established connection is still up. Runs only
// between requests, never during a transition.
func (s *Supervisor) checkDrop() {
	cur := s.State()
	if cur.Phase != PhaseConnected {
		return
	}
	status, err := s.backend.Status(s.ctx, cur.Profile)
	if err != nil {
		common.LogWarn("drop check for %s failed: %v", cur.Profile, err)
		return
	}
	if status.State == TunnelDisconnected {
		s.setState(failedState(cur.Profile, "connection dropped"))
		s.event(common.LevelWarn, "connection to %s dropped", cur.Profile)
	}
}

func (s *Supervisor) drainOnShutdown() {
	for {
		select {
		case r := <-s.requests:
			s.backlog = append(s.backlog, r)
			continue
		default:
		}
		break
	}
	for _, r := range s.backlog {
		reply(r, common.ErrCancelled)
	}
	s.backlog = nil
}

func (s *Supervisor) setState(next ConnectionState) {
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
	common.LogDebug("connection state: %s", next)
	s.stateFeed.Broadcast(next)
}

func (s *Supervisor) event(level common.LogLevel, format string, args ...any) {
	e := Event{Timestamp: time.Now(), Level: level, Message: fmt.Sprintf(format, args...)}
	s.events.append(e)
	s.eventFeed.Broadcast(e)
	switch level {
	case common.LevelDebug:
		common.LogDebug("%s", e.Message)
	case common.LevelWarn:
		common.LogWarn("%s", e.Message)
	case common.LevelError:
		common.LogError("%s", e.Message)
	default:
		common.LogInfo("%s", e.Message)
	}
}

func reply(req request, err error) {
	if req.reply != nil {
		req.reply <- err
	}
}
