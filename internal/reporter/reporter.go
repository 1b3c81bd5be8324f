// Package reporter wires the channel registry to the reporting service:
// it owns the credentials, at most one live session, the keep-alive timer,
// and the aggregate status and counters shown at the front-end boundary.
package reporter

import (
	"context"
	"errors"
	"sync"
	"time"

	"eve-intel-reporter/internal/chatlogs"
	"eve-intel-reporter/internal/client"
	"eve-intel-reporter/internal/logging"
	"eve-intel-reporter/internal/runctx"
	"eve-intel-reporter/internal/status"
)

const (
	defaultKeepAlivePeriod = 1 * time.Minute
	defaultSessionTimeout  = 10 * time.Minute
	defaultAuthRetryWindow = 1 * time.Hour

	dispatchBuffer = 64
	logoffTimeout  = 5 * time.Second
)

var errReporterDisposed = errors.New("reporter disposed")

type Options struct {
	Username     string
	PasswordHash string
	LogDir       string

	// KeepAlivePeriod is how often the session is pinged while one exists.
	// SessionTimeout is the idle window after which a session is logged off
	// proactively instead of kept alive. AuthRetryWindow is how long a
	// failed authentication suppresses further attempts with the same
	// credentials.
	KeepAlivePeriod time.Duration
	SessionTimeout  time.Duration
	AuthRetryWindow time.Duration

	Registry chatlogs.RegistryOptions
	Now      func() time.Time
}

// Counters is a frozen copy of the cumulative reporting totals.
type Counters struct {
	Sent    int64
	Dropped int64
	Users   int
}

// Callbacks are the outward notification streams. All of them are delivered
// asynchronously on the dispatch worker, never on the goroutine that
// produced the event.
type Callbacks struct {
	OnEntry    func(chatlogs.Entry)
	OnStatus   func()
	OnCounters func()
}

// Reporter owns one channel registry and at most one reporting session.
// Created once, started and stopped any number of times, disposed once.
type Reporter struct {
	opts      Options
	client    *client.Client
	logger    *logging.Logger
	callbacks Callbacks
	registry  *chatlogs.Registry

	// authMu serializes session creation so concurrent entries cannot race
	// two AUTH calls for the same credentials.
	authMu sync.Mutex

	mu              sync.Mutex
	started         bool
	disposed        bool
	fatal           bool
	session         *client.Session
	authAt          time.Time
	lastAuthFailure time.Time
	netState        status.Status
	sent            int64
	dropped         int64
	users           int
	runCtx          context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup

	dispatch       chan func()
	dispatchCancel context.CancelFunc
	dispatchWG     sync.WaitGroup
}

func New(opts Options, cli *client.Client, logger *logging.Logger, callbacks Callbacks) *Reporter {
	if cli == nil {
		panic("reporter.New: client must not be nil")
	}
	if logger == nil {
		panic("reporter.New: logger must not be nil")
	}
	if opts.KeepAlivePeriod <= 0 {
		opts.KeepAlivePeriod = defaultKeepAlivePeriod
	}
	if opts.SessionTimeout <= 0 {
		opts.SessionTimeout = defaultSessionTimeout
	}
	if opts.AuthRetryWindow <= 0 {
		opts.AuthRetryWindow = defaultAuthRetryWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	opts.Registry.Dir = opts.LogDir
	// Sessions stamp report activity with the same clock the idle-timeout
	// math reads.
	cli.SetClock(opts.Now)

	r := &Reporter{
		opts:      opts,
		client:    cli,
		logger:    logger,
		callbacks: callbacks,
		netState:  status.Waiting,
		dispatch:  make(chan func(), dispatchBuffer),
	}
	r.registry = chatlogs.NewRegistry(opts.Registry, cli, logger, chatlogs.RegistryCallbacks{
		OnEntry:         r.handleEntry,
		OnStatusChanged: r.notifyStatus,
	})

	dispatchCtx, dispatchCancel := context.WithCancel(context.Background())
	r.dispatchCancel = dispatchCancel
	r.dispatchWG.Add(1)
	go r.dispatchLoop(dispatchCtx)
	return r
}

// Start opens the registry (triggering the initial channel-list fetch) and
// arms the keep-alive timer. Idempotent: a second call while running is a
// no-op. Returns an error only after Dispose.
func (r *Reporter) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return errReporterDisposed
	}
	if r.started {
		r.mu.Unlock()
		return nil
	}
	r.started = true
	runCtx, cancel := context.WithCancel(ctx)
	r.runCtx = runCtx
	r.cancel = cancel
	r.mu.Unlock()

	r.logger.Info("reporter starting",
		logging.Field("log_dir", r.opts.LogDir),
		logging.Field("username", r.opts.Username),
	)
	r.registry.Open(runCtx)
	r.wg.Add(1)
	go r.keepAliveLoop(runCtx)
	r.notifyStatus()
	return nil
}

// Stop tears down the keep-alive timer, stops all channels, and logs off
// any open session. Idempotent and safe without a prior Start.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.started = false
	cancel := r.cancel
	r.cancel = nil
	r.runCtx = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
	r.registry.Close()

	r.mu.Lock()
	session := r.session
	r.session = nil
	r.netState = status.Waiting
	r.mu.Unlock()
	if session != nil && session.IsConnected() {
		ctx, done := context.WithTimeout(context.Background(), logoffTimeout)
		if err := session.Logoff(ctx); err != nil {
			r.logger.Debug("logoff at stop failed", logging.Field("error", err))
		}
		done()
	}
	r.logger.Info("reporter stopped")
	r.notifyStatus()
}

// Dispose stops the reporter and shuts down notification delivery. The
// reporter rejects any later Start.
func (r *Reporter) Dispose() {
	r.Stop()
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return
	}
	r.disposed = true
	r.mu.Unlock()
	r.dispatchCancel()
	r.dispatchWG.Wait()
}

// Status collapses the registry status and the session condition into the
// single externally visible value.
func (r *Reporter) Status() status.Status {
	r.mu.Lock()
	disposed := r.disposed
	fatal := r.fatal
	started := r.started
	netState := r.netState
	r.mu.Unlock()
	if disposed {
		return status.Disposed
	}
	if fatal {
		return status.FatalError
	}
	if !started {
		return status.Stopped
	}
	return status.Combine(r.registry.Status(), netState)
}

func (r *Reporter) Counters() Counters {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Counters{Sent: r.sent, Dropped: r.dropped, Users: r.users}
}

// Snapshot returns the frozen per-channel view for display.
func (r *Reporter) Snapshot() []chatlogs.ChannelInfo {
	return r.registry.Snapshot()
}

// SetCredentials replaces the username and password hash. A change lifts
// the authentication-failure backoff so the next entry attempts a fresh
// AUTH immediately.
func (r *Reporter) SetCredentials(username string, passwordHash string) {
	r.mu.Lock()
	changed := username != r.opts.Username || passwordHash != r.opts.PasswordHash
	r.opts.Username = username
	r.opts.PasswordHash = passwordHash
	if changed {
		r.lastAuthFailure = time.Time{}
		if r.netState == status.AuthenticationError {
			r.netState = status.Waiting
		}
	}
	r.mu.Unlock()
	if changed {
		r.notifyStatus()
	}
}

// handleEntry receives one parsed entry from the registry: republish it to
// observers, then submit it on the (lazily authenticated) session.
func (r *Reporter) handleEntry(entry chatlogs.Entry) {
	if r.callbacks.OnEntry != nil {
		fn := r.callbacks.OnEntry
		r.enqueue(func() { fn(entry) })
	}

	r.mu.Lock()
	ctx := r.runCtx
	r.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		r.countDropped(entry, errors.New("reporter not running"))
		return
	}
	r.submitEntry(ctx, entry)
}

func (r *Reporter) submitEntry(ctx context.Context, entry chatlogs.Entry) {
	session, err := r.getSession(ctx)
	if err != nil {
		r.countDropped(entry, err)
		return
	}

	err = session.Report(ctx, entry.Channel, entry.Time, entry.Message)
	if client.IsSessionExpired(err) || errors.Is(err, client.ErrSessionClosed) {
		// The token went stale between entries. One fresh session gets one
		// more try before the entry is counted as dropped.
		r.clearSession(session)
		if session, err = r.getSession(ctx); err == nil {
			err = session.Report(ctx, entry.Channel, entry.Time, entry.Message)
		}
	}
	if err != nil {
		r.countDropped(entry, err)
		return
	}

	r.mu.Lock()
	r.sent++
	r.users = session.Users()
	r.netState = status.Active
	r.mu.Unlock()
	r.logger.Debug("intel entry reported",
		logging.Field("channel", entry.Channel),
		logging.Field("time", entry.Time),
	)
	r.notifyCounters()
	r.notifyStatus()
}

// getSession returns the live session, authenticating one if none exists.
// A failed authentication within the retry window fails fast with an
// authentication-error classification instead of hitting the network again.
func (r *Reporter) getSession(ctx context.Context) (*client.Session, error) {
	r.authMu.Lock()
	defer r.authMu.Unlock()

	r.mu.Lock()
	if r.session != nil && r.session.IsConnected() {
		session := r.session
		r.mu.Unlock()
		return session, nil
	}
	username := r.opts.Username
	passwordHash := r.opts.PasswordHash
	lastFailure := r.lastAuthFailure
	window := r.opts.AuthRetryWindow
	now := r.opts.Now()
	r.mu.Unlock()

	if !lastFailure.IsZero() && now.Sub(lastFailure) < window {
		return nil, &client.AuthError{Message: "previous attempt failed, retry window has not elapsed"}
	}

	session, err := r.client.Authenticate(ctx, username, passwordHash)
	if err != nil {
		r.mu.Lock()
		if client.IsAuthenticationError(err) {
			r.lastAuthFailure = r.opts.Now()
			r.netState = status.AuthenticationError
		} else {
			r.netState = status.NetworkError
		}
		r.mu.Unlock()
		r.notifyStatus()
		return nil, err
	}

	session.SetOnClosed(r.notifyStatus)
	r.mu.Lock()
	r.session = session
	r.authAt = r.opts.Now()
	r.lastAuthFailure = time.Time{}
	r.users = session.Users()
	r.netState = status.Active
	r.mu.Unlock()
	r.notifyCounters()
	r.notifyStatus()
	return session, nil
}

// clearSession drops the tracked session if it is still the given one, so a
// concurrent re-authentication is never discarded.
func (r *Reporter) clearSession(session *client.Session) {
	r.mu.Lock()
	if r.session == session {
		r.session = nil
	}
	r.mu.Unlock()
}

func (r *Reporter) countDropped(entry chatlogs.Entry, err error) {
	r.mu.Lock()
	r.dropped++
	if client.IsAuthenticationError(err) {
		r.netState = status.AuthenticationError
	} else if r.netState != status.AuthenticationError {
		r.netState = status.NetworkError
	}
	r.mu.Unlock()
	r.logger.Warn("intel entry dropped",
		logging.Field("channel", entry.Channel),
		logging.Field("error", err),
	)
	r.notifyCounters()
	r.notifyStatus()
}

func (r *Reporter) keepAliveLoop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.opts.KeepAlivePeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("stopping keep-alive loop: context canceled")
			return
		case <-ticker.C:
			r.keepAliveTick(ctx)
		}
	}
}

// keepAliveTick pings the session if one exists. A session idle longer than
// the timeout window is logged off proactively instead, so the remote side
// never holds a stale token.
func (r *Reporter) keepAliveTick(ctx context.Context) {
	r.mu.Lock()
	session := r.session
	authAt := r.authAt
	r.mu.Unlock()
	if session == nil || !session.IsConnected() {
		return
	}

	idleSince := session.LastReportAt()
	if idleSince.IsZero() {
		idleSince = authAt
	}
	if r.opts.Now().Sub(idleSince) > r.opts.SessionTimeout {
		r.logger.Info("reporting session idle, logging off",
			logging.Field("idle_since", idleSince),
		)
		if err := session.Logoff(ctx); err != nil {
			r.logger.Debug("idle logoff failed", logging.Field("error", err))
		}
		r.clearSession(session)
		r.mu.Lock()
		r.netState = status.Waiting
		r.mu.Unlock()
		r.notifyStatus()
		return
	}

	err := session.KeepAlive(ctx)
	switch {
	case err == nil:
		r.mu.Lock()
		r.users = session.Users()
		r.netState = status.Active
		r.mu.Unlock()
		r.notifyCounters()
	case client.IsSessionExpired(err) || errors.Is(err, client.ErrSessionClosed):
		r.clearSession(session)
		r.mu.Lock()
		r.netState = status.Waiting
		r.mu.Unlock()
		r.notifyStatus()
	default:
		if ctx.Err() != nil {
			return
		}
		r.mu.Lock()
		r.netState = status.NetworkError
		r.mu.Unlock()
		r.logger.Warn("keep-alive failed", logging.Field("error", err))
		r.notifyStatus()
	}
}

func (r *Reporter) notifyStatus() {
	if r.callbacks.OnStatus != nil {
		r.enqueue(r.callbacks.OnStatus)
	}
}

func (r *Reporter) notifyCounters() {
	if r.callbacks.OnCounters != nil {
		r.enqueue(r.callbacks.OnCounters)
	}
}

// enqueue hands one notification to the dispatch worker. Delivery is best
// effort: when the worker is saturated the notification is skipped rather
// than blocking the producer, since every stream is advisory.
func (r *Reporter) enqueue(fn func()) {
	r.mu.Lock()
	disposed := r.disposed
	r.mu.Unlock()
	if disposed {
		return
	}
	select {
	case r.dispatch <- fn:
	default:
		r.logger.Debug("notification dispatch queue full, skipping delivery")
	}
}

// dispatchLoop delivers outward notifications off the producing goroutines.
// A panicking observer marks the reporter fatal instead of crashing the
// process.
func (r *Reporter) dispatchLoop(ctx context.Context) {
	defer r.dispatchWG.Done()
	for {
		fn, ok := runctx.RecvOrDone(ctx, "notification dispatcher", r.logger, r.dispatch)
		if !ok {
			return
		}
		r.invoke(fn)
	}
}

func (r *Reporter) invoke(fn func()) {
	defer func() {
		if p := recover(); p != nil {
			r.mu.Lock()
			r.fatal = true
			r.mu.Unlock()
			r.logger.Error("notification observer panicked", logging.Field("panic", p))
		}
	}()
	fn()
}
