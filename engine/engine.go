package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/careroute/interlink/channel"
	"github.com/careroute/interlink/connector"
	pkgerrors "github.com/careroute/interlink/errors"
	"github.com/careroute/interlink/metric"
	"github.com/careroute/interlink/natsclient"
	"github.com/careroute/interlink/response"
	"github.com/careroute/interlink/script"
	"github.com/careroute/interlink/serializer"
)

// Dependencies carries the shared services every channel runtime draws on.
// Connectors is the only required field; the rest default to working
// zero-cost implementations.
type Dependencies struct {
	// Connectors resolves source and destination connector types for
	// deployed channels. Required.
	Connectors *connector.Registry

	// Sandbox executes filter, transformer, and batch scripts. Nil means
	// a sandbox with default limits, shared by every channel so compiled
	// scripts are cached once.
	Sandbox *script.Sandbox

	// Serializers resolves channel data types. Nil means the built-in
	// registry with RAW and DELIMITED.
	Serializers *serializer.Registry

	// NATSClient provides broker access for NATS-backed connectors.
	// Channels that only use other connector types may leave it nil.
	NATSClient *natsclient.Client

	// Metrics registers engine and per-channel metrics. Nil disables
	// metrics entirely.
	Metrics *metric.MetricsRegistry

	// AutoResponder generates wire-format acknowledgments for channels
	// whose origin expects more than a plain status reply.
	AutoResponder response.AutoResponder

	// Logger for engine and channel output. Nil means slog.Default().
	Logger *slog.Logger
}

// Engine deploys channels and drives their lifecycle. Each deployed channel
// gets its own Runtime; the engine tracks them by channel ID and starts and
// stops them individually or as a group.
type Engine struct {
	deps     Dependencies
	serverID string
	logger   *slog.Logger
	metrics  *engineMetrics

	mu       sync.RWMutex
	runtimes map[string]*Runtime
}

// NewEngine creates an engine identified by serverID. An empty serverID
// falls back to the hostname. Metrics registration failures are logged and
// leave the engine running without metrics.
func NewEngine(serverID string, deps Dependencies) (*Engine, error) {
	if deps.Connectors == nil {
		return nil, pkgerrors.WrapFatal(pkgerrors.ErrMissingConfig, "Engine", "NewEngine",
			"connector registry required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "engine")

	if deps.Sandbox == nil {
		sandbox, err := script.New(script.DefaultConfig(), logger)
		if err != nil {
			return nil, pkgerrors.WrapFatal(err, "Engine", "NewEngine", "create script sandbox")
		}
		deps.Sandbox = sandbox
	}
	if deps.Serializers == nil {
		deps.Serializers = serializer.NewRegistry()
	}
	if serverID == "" {
		serverID = defaultServerID()
	}

	metrics, err := newEngineMetrics(deps.Metrics)
	if err != nil {
		logger.Error("engine metrics disabled", "error", err)
		metrics = nil
	}

	return &Engine{
		deps:     deps,
		serverID: serverID,
		logger:   logger,
		metrics:  metrics,
		runtimes: make(map[string]*Runtime),
	}, nil
}

// ServerID returns the identifier stamped on every message this engine
// produces.
func (e *Engine) ServerID() string { return e.serverID }

// Deploy validates the channel, builds its runtime, and initializes its
// connectors. The channel is registered under its (possibly generated) ID
// but does not process payloads until started.
func (e *Engine) Deploy(ch channel.Channel) (*Runtime, error) {
	start := time.Now()
	success := false
	defer func() {
		e.metrics.recordDeploy(ch.Name, success, time.Since(start).Seconds())
	}()

	rt, err := NewRuntime(ch, RuntimeOptions{
		Connectors:  e.deps.Connectors,
		Sandbox:     e.deps.Sandbox,
		Serializers: e.deps.Serializers,
		Dependencies: connector.Dependencies{
			NATSClient: e.deps.NATSClient,
			Metrics:    e.deps.Metrics,
			Logger:     e.deps.Logger,
		},
		AutoResponder: e.deps.AutoResponder,
		ServerID:      e.serverID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "Engine", "Deploy", "build channel runtime")
	}

	e.mu.Lock()
	if _, exists := e.runtimes[rt.ChannelID()]; exists {
		e.mu.Unlock()
		return nil, pkgerrors.WrapInvalid(
			fmt.Errorf("channel %q is already deployed", rt.ChannelID()),
			"Engine", "Deploy", "register channel runtime")
	}
	for _, other := range e.runtimes {
		if other.ChannelName() == rt.ChannelName() {
			e.mu.Unlock()
			return nil, pkgerrors.WrapInvalid(
				fmt.Errorf("channel name %q is already deployed as %q", rt.ChannelName(), other.ChannelID()),
				"Engine", "Deploy", "register channel runtime")
		}
	}
	e.runtimes[rt.ChannelID()] = rt
	e.mu.Unlock()

	if err := rt.Initialize(); err != nil {
		e.mu.Lock()
		delete(e.runtimes, rt.ChannelID())
		e.mu.Unlock()
		return nil, pkgerrors.Wrap(err, "Engine", "Deploy", "initialize channel connectors")
	}

	success = true
	e.logger.Info("channel deployed",
		"channel", rt.ChannelName(),
		"channel_id", rt.ChannelID())
	return rt, nil
}

// Undeploy stops the channel if it is running and removes it from the
// engine. The timeout bounds the stop.
func (e *Engine) Undeploy(channelID string, timeout time.Duration) error {
	e.mu.Lock()
	rt, ok := e.runtimes[channelID]
	if !ok {
		e.mu.Unlock()
		return e.notDeployed(channelID, "Undeploy")
	}
	delete(e.runtimes, channelID)
	e.mu.Unlock()

	if rt.IsRunning() {
		if err := e.stopRuntime(rt, timeout); err != nil {
			return pkgerrors.Wrap(err, "Engine", "Undeploy", "stop channel runtime")
		}
	}

	e.logger.Info("channel undeployed",
		"channel", rt.ChannelName(),
		"channel_id", channelID)
	return nil
}

// StartChannel starts a single deployed channel.
func (e *Engine) StartChannel(ctx context.Context, channelID string) error {
	rt, ok := e.Runtime(channelID)
	if !ok {
		return e.notDeployed(channelID, "StartChannel")
	}
	return e.startRuntime(ctx, rt)
}

// StopChannel stops a single deployed channel. The channel stays deployed
// but must be redeployed before it can run again.
func (e *Engine) StopChannel(channelID string, timeout time.Duration) error {
	rt, ok := e.Runtime(channelID)
	if !ok {
		return e.notDeployed(channelID, "StopChannel")
	}
	if !rt.IsRunning() {
		return nil
	}
	return e.stopRuntime(rt, timeout)
}

// Start starts every deployed channel that is not already running. Channels
// start concurrently; the first failure is returned but does not interrupt
// the others.
func (e *Engine) Start(ctx context.Context) error {
	var g errgroup.Group
	for _, rt := range e.snapshot() {
		if rt.IsRunning() {
			continue
		}
		rt := rt
		g.Go(func() error {
			return e.startRuntime(ctx, rt)
		})
	}
	if err := g.Wait(); err != nil {
		return pkgerrors.Wrap(err, "Engine", "Start", "start deployed channels")
	}

	e.logger.Info("engine started", "channels", len(e.ChannelIDs()))
	return nil
}

// Stop stops every running channel, giving each the full timeout. Channels
// stop concurrently; the first failure is returned after all have been
// attempted.
func (e *Engine) Stop(timeout time.Duration) error {
	var g errgroup.Group
	for _, rt := range e.snapshot() {
		if !rt.IsRunning() {
			continue
		}
		rt := rt
		g.Go(func() error {
			return e.stopRuntime(rt, timeout)
		})
	}
	if err := g.Wait(); err != nil {
		return pkgerrors.Wrap(err, "Engine", "Stop", "stop running channels")
	}

	e.logger.Info("engine stopped")
	return nil
}

func (e *Engine) startRuntime(ctx context.Context, rt *Runtime) error {
	start := time.Now()
	success := false
	defer func() {
		e.metrics.recordStart(rt.ChannelName(), success, time.Since(start).Seconds())
	}()

	if err := rt.Start(ctx); err != nil {
		return err
	}
	success = true
	return nil
}

func (e *Engine) stopRuntime(rt *Runtime, timeout time.Duration) error {
	start := time.Now()
	success := false
	defer func() {
		e.metrics.recordStop(rt.ChannelName(), success, time.Since(start).Seconds())
	}()

	if err := rt.Stop(timeout); err != nil {
		return err
	}
	success = true
	return nil
}

func (e *Engine) notDeployed(channelID, method string) error {
	return pkgerrors.WrapInvalid(
		fmt.Errorf("channel %q is not deployed", channelID),
		"Engine", method, "runtime lookup")
}

// Runtime returns the runtime deployed under channelID.
func (e *Engine) Runtime(channelID string) (*Runtime, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rt, ok := e.runtimes[channelID]
	return rt, ok
}

// RuntimeByName returns the runtime whose channel carries the given name.
func (e *Engine) RuntimeByName(name string) (*Runtime, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, rt := range e.runtimes {
		if rt.ChannelName() == name {
			return rt, true
		}
	}
	return nil, false
}

// ChannelIDs returns the deployed channel IDs in sorted order.
func (e *Engine) ChannelIDs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.runtimes))
	for id := range e.runtimes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Stats returns a snapshot of every deployed channel, sorted by channel
// name.
func (e *Engine) Stats() []RuntimeStats {
	runtimes := e.snapshot()
	stats := make([]RuntimeStats, 0, len(runtimes))
	for _, rt := range runtimes {
		stats = append(stats, rt.Stats())
	}
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].ChannelName < stats[j].ChannelName
	})
	return stats
}

func (e *Engine) snapshot() []*Runtime {
	e.mu.RLock()
	defer e.mu.RUnlock()
	runtimes := make([]*Runtime, 0, len(e.runtimes))
	for _, rt := range e.runtimes {
		runtimes = append(runtimes, rt)
	}
	return runtimes
}
