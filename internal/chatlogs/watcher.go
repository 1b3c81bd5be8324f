package chatlogs

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"eve-intel-reporter/internal/logging"
	"eve-intel-reporter/internal/status"
)

const (
	defaultTickPeriod  = 5 * time.Second
	defaultGracePeriod = 5 * time.Second
	defaultExpireAfter = 30 * time.Minute
)

var errWatcherDisposed = errors.New("channel watcher disposed")

type WatcherOptions struct {
	Dir         string
	TickPeriod  time.Duration
	GracePeriod time.Duration
	ExpireAfter time.Duration
	Now         func() time.Time
}

type WatcherCallbacks struct {
	OnEntry  func(Entry)
	OnStatus func(channel string, s status.Status)
}

// ChannelInfo is a frozen per-channel view handed to callers for display.
type ChannelInfo struct {
	Name        string
	Status      status.Status
	ActiveFile  string
	LastEntryAt time.Time
	Reported    int64
}

// Watcher tracks which physical file on disk is "the" current log for one
// named channel and produces parsed entries from it.
//
// File-modification timestamps are unreliable and change notifications can
// be delayed, duplicated, or tied to file close rather than write, so the
// watcher always prefers direct evidence (lines actually read) over indirect
// evidence. Create notifications switch files immediately; change
// notifications for another file are buffered and only acted on when the
// current file stays silent past the grace period.
type Watcher struct {
	name      string
	opts      WatcherOptions
	logger    *logging.Logger
	callbacks WatcherCallbacks

	mu          sync.Mutex
	state       status.Status
	tailer      *Tailer
	openedAt    time.Time
	lastEntry   time.Time
	pendingPath string
	pendingAt   time.Time
	expiredPath string
	reported    int64
}

func NewWatcher(name string, opts WatcherOptions, logger *logging.Logger, callbacks WatcherCallbacks) *Watcher {
	if logger == nil {
		panic("chatlogs.NewWatcher: logger must not be nil")
	}
	if opts.TickPeriod <= 0 {
		opts.TickPeriod = defaultTickPeriod
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = defaultGracePeriod
	}
	if opts.ExpireAfter <= 0 {
		opts.ExpireAfter = defaultExpireAfter
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Watcher{
		name:      name,
		opts:      opts,
		logger:    logger,
		callbacks: callbacks,
		state:     status.Stopped,
	}
}

func (w *Watcher) Name() string { return w.name }

func (w *Watcher) Status() status.Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Watcher) Snapshot() ChannelInfo {
	w.mu.Lock()
	defer w.mu.Unlock()
	info := ChannelInfo{
		Name:        w.name,
		Status:      w.state,
		LastEntryAt: w.lastEntry,
		Reported:    w.reported,
	}
	if w.tailer != nil {
		info.ActiveFile = w.tailer.Path
	}
	return info
}

// Start scans the directory for the current log file. Starting an already
// started watcher is a no-op; starting a disposed one is a contract
// violation.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == status.Disposed {
		return errWatcherDisposed
	}
	if w.state != status.Stopped {
		return nil
	}
	w.setStateLocked(status.Starting)
	w.rescanLocked(w.opts.Now())
	return nil
}

func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == status.Stopped || w.state == status.Disposed {
		return
	}
	w.setStateLocked(status.Stopping)
	w.closeFileLocked()
	w.pendingPath = ""
	w.setStateLocked(status.Stopped)
}

func (w *Watcher) Dispose() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == status.Disposed {
		return
	}
	w.closeFileLocked()
	w.pendingPath = ""
	w.setStateLocked(status.Disposed)
}

// HandleCreate reacts to a filesystem "file created" notification. A newly
// created matching file is always more relevant than whatever is open, so
// the watcher switches to it immediately.
func (w *Watcher) HandleCreate(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.runningLocked() || !w.matchesChannel(path) {
		return
	}
	w.logger.Debug("new log file created",
		logging.Field("channel", w.name),
		logging.Field("path", path),
	)
	w.switchToLocked(path)
}

// HandleChange reacts to a filesystem "file changed" notification. If no
// file is open the named file is opened right away; otherwise the
// notification is buffered and only acted on if the open file stays silent
// past the grace period.
func (w *Watcher) HandleChange(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.runningLocked() || !w.matchesChannel(path) {
		return
	}
	if w.tailer == nil {
		w.switchToLocked(path)
		return
	}
	if filepath.Clean(path) == filepath.Clean(w.tailer.Path) {
		return
	}
	w.pendingPath = path
	w.pendingAt = w.opts.Now()
}

// Tick reads newly appended lines, applies the buffered-change grace period,
// expires inactive files, and rescans when nothing is open. Ticks and
// notification handling for one channel are serialized by the watcher mutex.
func (w *Watcher) Tick(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.runningLocked() {
		return
	}

	if w.tailer == nil {
		w.rescanLocked(now)
		if w.tailer == nil {
			return
		}
	}

	lines, err := w.tailer.ReadNewLines()
	if err != nil {
		w.logger.Debugf("failed to read %s: %v", w.tailer.Path, err)
		w.closeFileLocked()
		if w.pendingPath != "" {
			pending := w.pendingPath
			w.pendingPath = ""
			w.switchToLocked(pending)
		} else {
			w.setStateLocked(status.Waiting)
		}
		return
	}

	emitted := w.emitLinesLocked(lines, now)
	if emitted > 0 {
		w.lastEntry = now
	}
	if len(lines) > 0 {
		// Any new line, entry or not, is direct evidence the open file is
		// live: discard any buffered change notification. Only parsed
		// entries feed the expiry clock, so a file emitting nothing but
		// headers still expires below.
		w.pendingPath = ""
	} else if w.pendingPath != "" && now.Sub(w.pendingAt) > w.opts.GracePeriod {
		pending := w.pendingPath
		w.pendingPath = ""
		w.logger.Debug("switching after silent grace period",
			logging.Field("channel", w.name),
			logging.Field("to", pending),
		)
		w.switchToLocked(pending)
		return
	}

	idleSince := w.lastEntry
	if idleSince.IsZero() || w.openedAt.After(idleSince) {
		idleSince = w.openedAt
	}
	if !idleSince.IsZero() && now.Sub(idleSince) > w.opts.ExpireAfter {
		w.logger.Info("closing inactive log file",
			logging.Field("channel", w.name),
			logging.Field("path", w.tailer.Path),
		)
		// Remember the abandoned file so the next rescan does not just
		// reopen it; a fresh notification for it clears the mark.
		w.expiredPath = filepath.Clean(w.tailer.Path)
		w.closeFileLocked()
		w.setStateLocked(status.Waiting)
	}
}

func (w *Watcher) runningLocked() bool {
	switch w.state {
	case status.Stopped, status.Stopping, status.Disposed:
		return false
	default:
		return true
	}
}

func (w *Watcher) matchesChannel(path string) bool {
	meta, ok := parseLogFileName(path)
	if !ok {
		return false
	}
	return foldChannelName(meta.ChannelName) == foldChannelName(w.name)
}

// rescanLocked lists the channel's log files, discards anything stamped
// before the last scheduled downtime, and opens the newest survivor seeked
// to end of file.
func (w *Watcher) rescanLocked(now time.Time) {
	entries, err := os.ReadDir(w.opts.Dir)
	if err != nil {
		w.closeFileLocked()
		w.setStateLocked(status.InvalidPath)
		return
	}

	cutoff := LastDowntime(now)
	best := ""
	var bestTS time.Time
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		meta, ok := parseLogFileName(entry.Name())
		if !ok {
			continue
		}
		if foldChannelName(meta.ChannelName) != foldChannelName(w.name) {
			continue
		}
		if !meta.Timestamp.After(cutoff) {
			continue
		}
		if w.expiredPath != "" && filepath.Clean(filepath.Join(w.opts.Dir, entry.Name())) == w.expiredPath {
			continue
		}
		if best == "" || meta.Timestamp.After(bestTS) {
			best = filepath.Join(w.opts.Dir, entry.Name())
			bestTS = meta.Timestamp
		}
	}

	if best == "" {
		if w.tailer == nil {
			w.setStateLocked(status.Waiting)
		}
		return
	}
	if w.tailer != nil && filepath.Clean(w.tailer.Path) == filepath.Clean(best) {
		return
	}
	w.switchToLocked(best)
}

// switchToLocked closes the current file and opens the named one positioned
// at its current end of file, so pre-existing content is never emitted.
func (w *Watcher) switchToLocked(path string) {
	w.closeFileLocked()
	tailer := &Tailer{Path: path}
	if err := tailer.Prime(); err != nil {
		w.logger.Debugf("failed to open %s: %v", path, err)
		w.setStateLocked(status.Waiting)
		return
	}
	w.tailer = tailer
	w.openedAt = w.opts.Now()
	w.expiredPath = ""
	w.logger.Info("tracking log file",
		logging.Field("channel", w.name),
		logging.Field("path", path),
	)
	w.setStateLocked(status.Active)
}

func (w *Watcher) closeFileLocked() {
	w.tailer = nil
	w.openedAt = time.Time{}
}

func (w *Watcher) emitLinesLocked(lines []string, now time.Time) int {
	emitted := 0
	for _, line := range lines {
		parsed, ok := ParseLine(line)
		if !ok {
			continue
		}
		emitted++
		w.reported++
		if w.callbacks.OnEntry != nil {
			w.callbacks.OnEntry(Entry{
				Channel: w.name,
				Time:    parsed.Time,
				Message: parsed.Message,
			})
		}
	}
	return emitted
}

func (w *Watcher) setStateLocked(next status.Status) {
	if w.state == next {
		return
	}
	w.state = next
	if w.callbacks.OnStatus != nil {
		w.callbacks.OnStatus(w.name, next)
	}
}
