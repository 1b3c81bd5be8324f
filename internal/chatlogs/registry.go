package chatlogs

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"eve-intel-reporter/internal/logging"
	"eve-intel-reporter/internal/status"
)

const (
	defaultRefreshPeriod = 24 * time.Hour
	defaultRetryPeriod   = 15 * time.Minute
)

// ListFetcher downloads the authoritative channel-name list. Satisfied by
// *client.Client.
type ListFetcher interface {
	FetchChannelList(ctx context.Context) ([]string, error)
}

// ChannelWatcher is the per-channel capability the registry manages. The
// real implementation is *Watcher; tests substitute fakes through the
// factory.
type ChannelWatcher interface {
	Name() string
	Start() error
	Stop()
	Dispose()
	Status() status.Status
	Snapshot() ChannelInfo
	Tick(now time.Time)
	HandleCreate(path string)
	HandleChange(path string)
}

type WatcherFactory func(name string, callbacks WatcherCallbacks) ChannelWatcher

type RegistryOptions struct {
	Dir           string
	RefreshPeriod time.Duration
	RetryPeriod   time.Duration
	TickPeriod    time.Duration
	Watcher       WatcherOptions
	Factory       WatcherFactory
}

type RegistryCallbacks struct {
	OnEntry         func(Entry)
	OnStatusChanged func()
}

// Registry owns the set of channel watchers, kept in sync with the remote
// channel list. It runs one loop multiplexing the list-refresh timer, the
// shared read tick, and filesystem notifications fanned out to members.
type Registry struct {
	opts      RegistryOptions
	lists     ListFetcher
	logger    *logging.Logger
	callbacks RegistryCallbacks
	factory   WatcherFactory

	mu       sync.Mutex
	watchers map[string]ChannelWatcher
	statuses map[string]status.Status
	opened   bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewRegistry(opts RegistryOptions, lists ListFetcher, logger *logging.Logger, callbacks RegistryCallbacks) *Registry {
	if logger == nil {
		panic("chatlogs.NewRegistry: logger must not be nil")
	}
	if lists == nil {
		panic("chatlogs.NewRegistry: list fetcher must not be nil")
	}
	if opts.RefreshPeriod <= 0 {
		opts.RefreshPeriod = defaultRefreshPeriod
	}
	if opts.RetryPeriod <= 0 {
		opts.RetryPeriod = defaultRetryPeriod
	}
	if opts.TickPeriod <= 0 {
		opts.TickPeriod = defaultTickPeriod
	}
	opts.Watcher.Dir = opts.Dir
	r := &Registry{
		opts:      opts,
		lists:     lists,
		logger:    logger,
		callbacks: callbacks,
		watchers:  map[string]ChannelWatcher{},
		statuses:  map[string]status.Status{},
	}
	r.factory = opts.Factory
	if r.factory == nil {
		r.factory = func(name string, callbacks WatcherCallbacks) ChannelWatcher {
			return NewWatcher(name, r.opts.Watcher, r.logger, callbacks)
		}
	}
	return r
}

// Open starts the registry loop: the initial channel-list fetch, periodic
// refreshes, the shared tick, and directory notifications. Idempotent.
func (r *Registry) Open(ctx context.Context) {
	r.mu.Lock()
	if r.opened {
		r.mu.Unlock()
		return
	}
	r.opened = true
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run(runCtx)
}

// Close stops the loop and disposes all member watchers. Idempotent and safe
// to call without Open.
func (r *Registry) Close() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.opened = false
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	r.wg.Wait()

	r.mu.Lock()
	watchers := r.watchers
	r.watchers = map[string]ChannelWatcher{}
	r.statuses = map[string]status.Status{}
	r.mu.Unlock()
	for _, w := range watchers {
		w.Stop()
		w.Dispose()
	}
}

// Status collapses all member channel statuses into one value. It reads the
// status cache maintained by watcher callbacks, so it is safe to call from
// inside a watcher notification.
func (r *Registry) Status() status.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	statuses := make([]status.Status, 0, len(r.statuses))
	for _, s := range r.statuses {
		statuses = append(statuses, s)
	}
	return status.Combine(statuses...)
}

// Snapshot returns a frozen per-channel view; callers never see the live
// collection.
func (r *Registry) Snapshot() []ChannelInfo {
	r.mu.Lock()
	watchers := make([]ChannelWatcher, 0, len(r.watchers))
	for _, w := range r.watchers {
		watchers = append(watchers, w)
	}
	r.mu.Unlock()

	infos := make([]ChannelInfo, 0, len(watchers))
	for _, w := range watchers {
		infos = append(infos, w.Snapshot())
	}
	return infos
}

func (r *Registry) run(ctx context.Context) {
	defer r.wg.Done()

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		r.logger.Warn("failed to initialize filesystem watcher, relying on ticks only",
			logging.Field("error", err))
	} else {
		defer fsWatcher.Close()
	}
	fsWatching := false

	refresh := time.NewTimer(0)
	defer refresh.Stop()
	tick := time.NewTicker(r.opts.TickPeriod)
	defer tick.Stop()

	var fsEvents chan fsnotify.Event
	var fsErrors chan error
	if fsWatcher != nil {
		fsEvents = fsWatcher.Events
		fsErrors = fsWatcher.Errors
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("stopping channel registry: context canceled")
			return
		case <-refresh.C:
			if r.refreshChannels(ctx) {
				refresh.Reset(r.opts.RefreshPeriod)
			} else {
				refresh.Reset(r.opts.RetryPeriod)
			}
		case event := <-fsEvents:
			r.handleFSEvent(event)
		case err := <-fsErrors:
			if err != nil {
				r.logger.Warn("filesystem watcher error", logging.Field("error", err))
			}
		case now := <-tick.C:
			// The watched directory may appear after startup; keep trying.
			if fsWatcher != nil && !fsWatching {
				if addErr := fsWatcher.Add(r.opts.Dir); addErr == nil {
					fsWatching = true
					r.logger.Debugf("watching directory: %s", r.opts.Dir)
				}
			}
			r.tickAll(now)
		}
	}
}

// refreshChannels downloads the channel list and reconciles the watcher set.
// Reports false when the list is unavailable this cycle, in which case the
// existing set is left untouched and the fetch is retried sooner.
func (r *Registry) refreshChannels(ctx context.Context) bool {
	names, err := r.lists.FetchChannelList(ctx)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Warn("channel list unavailable, keeping current channel set",
				logging.Field("error", err))
		}
		return false
	}
	if len(names) == 0 {
		r.logger.Warn("channel list empty, keeping current channel set")
		return false
	}
	r.reconcile(names)
	return true
}

func (r *Registry) reconcile(names []string) {
	desired := make(map[string]string, len(names))
	for _, name := range names {
		key := foldChannelName(name)
		if key == "" {
			continue
		}
		if _, exists := desired[key]; !exists {
			desired[key] = name
		}
	}

	var removed []ChannelWatcher
	var added []ChannelWatcher

	r.mu.Lock()
	for key, w := range r.watchers {
		if _, ok := desired[key]; ok {
			continue
		}
		removed = append(removed, w)
		delete(r.watchers, key)
		delete(r.statuses, key)
	}
	for key, name := range desired {
		if _, ok := r.watchers[key]; ok {
			continue
		}
		w := r.factory(name, WatcherCallbacks{
			OnEntry:  r.forwardEntry,
			OnStatus: r.onWatcherStatus,
		})
		r.watchers[key] = w
		r.statuses[key] = status.Stopped
		added = append(added, w)
	}
	r.mu.Unlock()

	for _, w := range removed {
		r.logger.Info("channel removed from list", logging.Field("channel", w.Name()))
		w.Stop()
		w.Dispose()
	}
	for _, w := range added {
		r.logger.Info("channel added from list", logging.Field("channel", w.Name()))
		if err := w.Start(); err != nil {
			r.logger.Warn("failed to start channel watcher",
				logging.Field("channel", w.Name()),
				logging.Field("error", err))
		}
		r.recordStatus(w.Name(), w.Status())
	}
	if (len(removed) > 0 || len(added) > 0) && r.callbacks.OnStatusChanged != nil {
		r.callbacks.OnStatusChanged()
	}
}

// handleFSEvent routes one directory notification to the watcher whose
// channel the filename belongs to. Rename events name the old path, so they
// are ignored here: a vanished file surfaces as a read failure on the next
// tick, which closes it and rescans without losing appended lines.
func (r *Registry) handleFSEvent(event fsnotify.Event) {
	meta, ok := parseLogFileName(event.Name)
	if !ok {
		return
	}
	r.mu.Lock()
	w, found := r.watchers[foldChannelName(meta.ChannelName)]
	r.mu.Unlock()
	if !found {
		return
	}
	path := filepath.Clean(event.Name)
	if event.Op&fsnotify.Create != 0 {
		w.HandleCreate(path)
	} else if event.Op&fsnotify.Write != 0 {
		w.HandleChange(path)
	}
}

func (r *Registry) tickAll(now time.Time) {
	r.mu.Lock()
	watchers := make([]ChannelWatcher, 0, len(r.watchers))
	for _, w := range r.watchers {
		watchers = append(watchers, w)
	}
	r.mu.Unlock()
	for _, w := range watchers {
		w.Tick(now)
	}
}

func (r *Registry) forwardEntry(entry Entry) {
	if r.callbacks.OnEntry != nil {
		r.callbacks.OnEntry(entry)
	}
}

func (r *Registry) onWatcherStatus(name string, s status.Status) {
	r.recordStatus(name, s)
	if r.callbacks.OnStatusChanged != nil {
		r.callbacks.OnStatusChanged()
	}
}

func (r *Registry) recordStatus(name string, s status.Status) {
	key := foldChannelName(name)
	r.mu.Lock()
	if _, tracked := r.watchers[key]; tracked {
		r.statuses[key] = s
	}
	r.mu.Unlock()
}
