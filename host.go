// host.go: extension host with load/unload/reload lifecycle over the routing tree
//
// Copyright (C) 2026 Stormy-RPG
// SPDX-License-Identifier: AGPL-3.0-only

package mailbot

import (
	"context"
	"fmt"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Host owns the routing tree, the extension registry, the scheduler and the
// shared HTTP application, and exposes the extension lifecycle: Load, Unload,
// Reload, LoadAll, plus filesystem-driven hot reload through the watcher.
//
// Lifecycle operations are serialized by a single mutex; operations on
// different keys therefore never interleave either, which is stricter than
// required but keeps the control path single-threaded. The routing tree is
// guarded by a read/write lock: Dispatch takes the read side, lifecycle
// mutation the write side, so an observer never sees a partially loaded or
// partially unloaded extension.
type Host struct {
	cfg    HostConfig
	logger Logger
	source Source
	sched  *Scheduler

	registry *Registry

	router *Router
	treeMu sync.RWMutex

	lifecycleMu sync.Mutex

	stashMu sync.RWMutex
	stash   map[string]any

	messenger Messenger
	httpApp   *gin.Engine

	watchMu sync.Mutex
	watcher *ChangeWatcher

	hooksMu      sync.Mutex
	startupHooks []func(ctx context.Context) error
}

// Option customizes host construction.
type Option func(*Host)

// WithLogger sets the host logger.
func WithLogger(logger Logger) Option {
	return func(h *Host) { h.logger = logger }
}

// WithSource sets the code source consulted by Load. Defaults to DefaultSource.
func WithSource(src Source) Option {
	return func(h *Host) { h.source = src }
}

// WithMessenger sets the outbound message transport handed to extensions.
func WithMessenger(m Messenger) Option {
	return func(h *Host) { h.messenger = m }
}

// NewHost creates a host from the given configuration.
func NewHost(cfg HostConfig, opts ...Option) (*Host, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	h := &Host{
		cfg:      cfg,
		logger:   DefaultLogger(),
		source:   DefaultSource,
		registry: NewRegistry(),
		router:   NewRouter("root"),
		stash:    make(map[string]any),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.sched == nil {
		h.sched = NewScheduler(h.logger)
	}
	if cfg.HTTPAddr != "" {
		gin.SetMode(gin.ReleaseMode)
		h.httpApp = gin.New()
		h.httpApp.Use(gin.Recovery())
	}
	return h, nil
}

// Config returns the host configuration.
func (h *Host) Config() HostConfig { return h.cfg }

// Logger returns the host logger.
func (h *Host) Logger() Logger { return h.logger }

// Router returns the root of the routing tree. Mutating it directly bypasses
// ownership tracking; extensions must register through their Scope instead.
func (h *Host) Router() *Router { return h.router }

// Scheduler returns the host scheduler.
func (h *Host) Scheduler() *Scheduler { return h.sched }

// Registry returns the extension registry.
func (h *Host) Registry() *Registry { return h.registry }

// Messenger returns the outbound message transport, or nil if none is wired.
func (h *Host) Messenger() Messenger { return h.messenger }

// HTTP returns the shared HTTP application, or nil when HTTPAddr is unset.
func (h *Host) HTTP() *gin.Engine { return h.httpApp }

// Load loads the extension identified by key.
func (h *Host) Load(key string) error {
	return h.LoadInPackage(key, "")
}

// LoadInPackage loads key, resolving a leading-dot relative key against pkg.
func (h *Host) LoadInPackage(key, pkg string) error {
	h.lifecycleMu.Lock()
	defer h.lifecycleMu.Unlock()
	return h.load(key, pkg)
}

// Unload tears down and removes the extension identified by key.
func (h *Host) Unload(key string) error {
	h.lifecycleMu.Lock()
	defer h.lifecycleMu.Unlock()
	return h.unload(key, "")
}

// Reload unloads key if loaded, then loads it again. Reloading a key that was
// never loaded behaves like a plain load. If the load phase fails after a
// successful unload the key ends up unloaded; there is no rollback to the
// previous unit, since its state was already torn down.
func (h *Host) Reload(key string) error {
	h.lifecycleMu.Lock()
	defer h.lifecycleMu.Unlock()

	if err := h.unload(key, ""); err != nil && !IsExtensionNotLoaded(err) {
		return err
	}
	if err := h.load(key, ""); err != nil {
		return err
	}
	h.logger.Info("Extension reloaded", "key", key)
	return nil
}

// LoadAll scans the configured extension root and loads every discovered key.
// The first failure aborts the startup load and is returned to the caller,
// which decides whether it is fatal.
func (h *Host) LoadAll() error {
	keys, err := ScanDirectory(h.cfg.ExtensionRoot, h.cfg.ScanOptions())
	if err != nil {
		return err
	}
	for key := range keys {
		if err := h.Load(key); err != nil {
			return err
		}
	}
	return nil
}

// load implements the loader; the caller holds lifecycleMu.
func (h *Host) load(key, pkg string) error {
	key, err := resolveKey(key, pkg)
	if err != nil {
		return err
	}
	if h.registry.Contains(key) {
		return NewExtensionAlreadyLoadedError(key)
	}

	unit, err := h.source.Resolve(key)
	if err != nil {
		return err
	}
	if unit.Setup == nil {
		h.source.Invalidate(key)
		return NewNoEntryPointError(key)
	}

	scope := newScope(h, key)
	if err := runEntryPoint(unit.Setup, scope); err != nil {
		h.rollbackLoad(scope)
		h.source.Invalidate(key)
		return NewExtensionFailedError(key, err)
	}

	// Setup succeeded: splice the staged registrations into the live tree in
	// one critical section, so dispatchers go from seeing none of the
	// extension's handlers to seeing all of them.
	scope.commit()

	rec := &ExtensionRecord{
		Key:        key,
		Unit:       unit,
		HandlerIDs: scope.handlerIDs,
		JobIDs:     scope.jobIDs,
	}
	h.registry.Put(rec)
	h.logger.Info("Extension is ready", "key", key, "handlers", len(rec.HandlerIDs))
	return nil
}

// unload implements the unloader; the caller holds lifecycleMu.
func (h *Host) unload(key, pkg string) error {
	key, err := resolveKey(key, pkg)
	if err != nil {
		return err
	}
	rec, ok := h.registry.Get(key)
	if !ok {
		return NewExtensionNotLoadedError(key)
	}

	// Teardown is best-effort: a failure is downgraded to a warning and the
	// unload proceeds, because partial cleanup beats a stuck extension.
	if rec.Unit.Teardown != nil {
		scope := liveScope(h, key)
		if err := runEntryPoint(rec.Unit.Teardown, scope); err != nil {
			h.logger.Warn("Teardown raised an error", "key", key, "error", err)
		}
	}

	h.treeMu.Lock()
	removed := h.router.removeOwned(key)
	h.treeMu.Unlock()

	h.registry.Remove(key)
	h.clearState(key)
	h.source.Invalidate(key)

	h.logger.Info("Extension has been unloaded", "key", key, "handlers_removed", removed)
	return nil
}

// rollbackLoad undoes the side effects of a failed Setup: staged handlers are
// discarded unseen, already-scheduled jobs are cancelled, private state is
// dropped. The registry was never touched.
func (h *Host) rollbackLoad(scope *Scope) {
	h.sched.RemoveOwned(scope.key)
	h.clearState(scope.key)
}

// runEntryPoint invokes an extension entry point, converting a panic into an
// ordinary error so extension code cannot take the host down.
func runEntryPoint(fn func(*Scope) error, scope *Scope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("entry point panicked: %v", r)
		}
	}()
	return fn(scope)
}

// Dispatch routes one update through the tree. It reports whether a handler
// matched; the handler's error, if any, is returned as-is. The matching walk
// runs under the tree read lock; the callback runs outside it so handlers
// are free to invoke lifecycle operations.
func (h *Host) Dispatch(ctx context.Context, upd *Update) (bool, error) {
	h.treeMu.RLock()
	cb, ok := h.router.match(upd)
	h.treeMu.RUnlock()

	if !ok {
		return false, nil
	}
	if h.messenger != nil {
		ctx = ContextWithMessenger(ctx, h.messenger)
	}
	return true, cb(ctx, upd)
}

// OnStartup registers a hook executed by Start before polling begins.
func (h *Host) OnStartup(fn func(ctx context.Context) error) {
	h.hooksMu.Lock()
	defer h.hooksMu.Unlock()
	h.startupHooks = append(h.startupHooks, fn)
}

// Start runs the startup hooks, starts the scheduler, and, when watching is
// enabled, starts the extension change watcher. Hook failures are returned
// to the caller: the startup sequence is the one place a lifecycle error may
// be treated as fatal.
func (h *Host) Start(ctx context.Context) error {
	h.hooksMu.Lock()
	hooks := make([]func(context.Context) error, len(h.startupHooks))
	copy(hooks, h.startupHooks)
	h.hooksMu.Unlock()

	for _, hook := range hooks {
		if err := hook(ctx); err != nil {
			return err
		}
	}

	h.sched.Start()

	if h.cfg.Watch {
		if err := h.EnableWatch(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Stop stops the watcher and the scheduler. Loaded extensions stay loaded;
// process exit is the final teardown.
func (h *Host) Stop() {
	h.DisableWatch()
	h.sched.Stop()
}

// EnableWatch starts the extension change watcher. A no-op when one is
// already running; the runtime config watcher toggles this live.
func (h *Host) EnableWatch(ctx context.Context) error {
	h.watchMu.Lock()
	defer h.watchMu.Unlock()
	if h.watcher != nil {
		return nil
	}
	w, err := NewChangeWatcher(h.cfg.ExtensionRoot, h, WatcherOptions{
		Scan:     h.cfg.ScanOptions(),
		Debounce: h.cfg.DebounceWindow,
		Logger:   h.logger,
	})
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	h.watcher = w
	return nil
}

// DisableWatch stops the extension change watcher, if running.
func (h *Host) DisableWatch() {
	h.watchMu.Lock()
	defer h.watchMu.Unlock()
	if h.watcher != nil {
		h.watcher.Stop()
		h.watcher = nil
	}
}

// Watcher returns the running change watcher, or nil.
func (h *Host) Watcher() *ChangeWatcher {
	h.watchMu.Lock()
	defer h.watchMu.Unlock()
	return h.watcher
}

// setState stores an extension-private value.
func (h *Host) setState(key string, v any) {
	h.stashMu.Lock()
	defer h.stashMu.Unlock()
	h.stash[key] = v
}

// state retrieves an extension-private value.
func (h *Host) state(key string) (any, bool) {
	h.stashMu.RLock()
	defer h.stashMu.RUnlock()
	v, ok := h.stash[key]
	return v, ok
}

// clearState drops an extension-private value.
func (h *Host) clearState(key string) {
	h.stashMu.Lock()
	defer h.stashMu.Unlock()
	delete(h.stash, key)
}

// Scope is the key-scoped view of the host handed to extension entry points.
//
// Every registration made through it is tagged with the extension key, which
// is what lets the unloader find and remove exactly this extension's
// handlers later. During Setup the registrations are staged and only spliced
// into the live tree once Setup returns without error; after that the scope
// mutates the tree directly under the tree lock.
type Scope struct {
	host *Host
	key  string
	live bool

	stagedHandlers []Handler
	stagedChildren []*Router
	handlerIDs     map[string]struct{}
	jobIDs         []cron.EntryID
}

func newScope(h *Host, key string) *Scope {
	return &Scope{host: h, key: key, handlerIDs: make(map[string]struct{})}
}

func liveScope(h *Host, key string) *Scope {
	s := newScope(h, key)
	s.live = true
	return s
}

// Key returns the extension key this scope is bound to.
func (s *Scope) Key() string { return s.key }

// Logger returns the host logger annotated with the extension key.
func (s *Scope) Logger() Logger {
	return s.host.logger.With("extension", s.key)
}

// Host returns the owning host.
func (s *Scope) Host() *Host { return s.host }

// Messenger returns the outbound message transport, or nil.
func (s *Scope) Messenger() Messenger { return s.host.messenger }

// HTTP returns the shared HTTP application, or nil when disabled. Routes
// registered on it are not removed on unload; the HTTP surface is additive.
func (s *Scope) HTTP() *gin.Engine { return s.host.httpApp }

// Handle registers a handler on the root routing node, tagged with the
// extension key, and returns its ID.
func (s *Scope) Handle(f Filter, cb HandlerFunc) string {
	h := Handler{ID: uuid.NewString(), Owner: s.key, Filter: f, Callback: cb}
	s.handlerIDs[h.ID] = struct{}{}

	if !s.live {
		s.stagedHandlers = append(s.stagedHandlers, h)
		return h.ID
	}
	s.host.treeMu.Lock()
	s.host.router.handlers = append(s.host.router.handlers, h)
	s.host.treeMu.Unlock()
	return h.ID
}

// OnCommand registers a handler for a "/name" command.
func (s *Scope) OnCommand(name string, cb HandlerFunc) string {
	return s.Handle(Command(name), cb)
}

// IncludeRouter attaches a router built by the extension as a child of the
// root node. The router and all of its untagged handlers are stamped with
// the extension key, so unloading detaches the whole subtree in one step.
func (s *Scope) IncludeRouter(r *Router) {
	for _, id := range r.stampOwner(s.key) {
		s.handlerIDs[id] = struct{}{}
	}

	if !s.live {
		s.stagedChildren = append(s.stagedChildren, r)
		return
	}
	s.host.treeMu.Lock()
	s.host.router.include(r)
	s.host.treeMu.Unlock()
}

// Schedule adds a background job under a cron spec, tagged with the key.
// Teardown is responsible for removing it; the host only cancels jobs when
// rolling back a failed Setup.
func (s *Scope) Schedule(spec string, job func()) (cron.EntryID, error) {
	id, err := s.host.sched.Schedule(s.key, spec, job)
	if err != nil {
		return 0, err
	}
	s.jobIDs = append(s.jobIDs, id)
	return id, nil
}

// RemoveJob cancels a previously scheduled job.
func (s *Scope) RemoveJob(id cron.EntryID) {
	s.host.sched.Remove(id)
}

// SetState stores extension-private state on the host.
func (s *Scope) SetState(v any) {
	s.host.setState(s.key, v)
}

// State retrieves extension-private state from the host.
func (s *Scope) State() (any, bool) {
	return s.host.state(s.key)
}

// commit splices the staged registrations into the live tree in a single
// critical section and switches the scope to live mode.
func (s *Scope) commit() {
	s.host.treeMu.Lock()
	s.host.router.handlers = append(s.host.router.handlers, s.stagedHandlers...)
	s.host.router.children = append(s.host.router.children, s.stagedChildren...)
	s.host.treeMu.Unlock()

	s.stagedHandlers = nil
	s.stagedChildren = nil
	s.live = true
}
