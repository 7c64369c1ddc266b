package engine

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/careroute/interlink/batch"
	"github.com/careroute/interlink/channel"
	"github.com/careroute/interlink/connector"
	pkgerrors "github.com/careroute/interlink/errors"
	"github.com/careroute/interlink/message"
	"github.com/careroute/interlink/metric"
	"github.com/careroute/interlink/pipeline"
	"github.com/careroute/interlink/pkg/retry"
	"github.com/careroute/interlink/pkg/worker"
	"github.com/careroute/interlink/response"
	"github.com/careroute/interlink/script"
	"github.com/careroute/interlink/serializer"
)

// Channel status gauge values. These match the help text on the
// interlink_channel_status metric.
const (
	channelStopped = iota
	channelStarting
	channelRunning
	channelStopping
	channelFailed
)

// RuntimeOptions carries the collaborators a runtime needs beyond its
// channel definition.
type RuntimeOptions struct {
	// Connectors resolves the channel's connector types. Required.
	Connectors *connector.Registry

	// Sandbox executes the channel's filter and transformer scripts. One
	// sandbox is shared engine-wide so compiled scripts are cached across
	// channels. Required.
	Sandbox *script.Sandbox

	// Serializers resolves the channel's data types. Nil means the
	// built-in registry with RAW and DELIMITED.
	Serializers *serializer.Registry

	// Dependencies is handed to the connector factories.
	Dependencies connector.Dependencies

	// AutoResponder overrides the plain status reply for channels whose
	// origin expects a wire-format acknowledgment.
	AutoResponder response.AutoResponder

	// ServerID tags every message with the server that processed it.
	// Empty falls back to the hostname.
	ServerID string
}

// destination pairs one enabled destination definition with its transport.
type destination struct {
	def       channel.Destination
	transport connector.Destination
}

// payloadWork carries one inbound payload through the worker pool. done is
// buffered so a worker never blocks handing back its result, even when the
// submitting handler has already given up waiting.
type payloadWork struct {
	payload *connector.Payload
	done    chan payloadResult
}

type payloadResult struct {
	response *message.Response
	err      error
}

// Runtime owns one deployed channel end to end. The source connector feeds
// raw payloads into a bounded worker pool; each worker splits its payload
// into units, runs every unit through the source pipeline and the
// destination chain, and hands the selected response back to the source.
//
// A runtime is single-use: once stopped its worker pool has drained and it
// cannot start again. Redeploying the channel builds a fresh runtime.
type Runtime struct {
	channel  channel.Channel
	serverID string

	source       connector.Source
	destinations []destination

	executor    *pipeline.Executor
	selector    *response.Selector
	sandbox     *script.Sandbox
	serializers *serializer.Registry

	pool    *worker.Pool[*payloadWork]
	limiter *rate.Limiter

	metrics *metric.Metrics
	logger  *slog.Logger

	lifecycleMu sync.Mutex
	running     bool
	stopped     bool

	messageID atomic.Int64
	batchID   atomic.Int64
	payloads  atomic.Int64
	units     atomic.Int64
}

// NewRuntime builds the runtime for one channel definition. The definition
// is defaulted and validated here and the connector factories run here, so
// every configuration problem surfaces before the channel touches a
// transport.
func NewRuntime(ch channel.Channel, opts RuntimeOptions) (*Runtime, error) {
	if opts.Connectors == nil {
		return nil, pkgerrors.WrapFatal(pkgerrors.ErrMissingConfig, "Runtime", "NewRuntime",
			"connector registry required")
	}
	if opts.Sandbox == nil {
		return nil, pkgerrors.WrapFatal(pkgerrors.ErrMissingConfig, "Runtime", "NewRuntime",
			"script sandbox required")
	}
	if opts.Serializers == nil {
		opts.Serializers = serializer.NewRegistry()
	}
	if opts.ServerID == "" {
		opts.ServerID = defaultServerID()
	}

	ch.ApplyDefaults()
	if err := ch.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Dependencies.GetLogger().With("component", "channel-runtime", "channel", ch.Name)

	var core *metric.Metrics
	if opts.Dependencies.Metrics != nil {
		core = opts.Dependencies.Metrics.CoreMetrics()
	}

	executor, err := pipeline.NewExecutorWithMetrics(opts.Sandbox, opts.Serializers, core, logger)
	if err != nil {
		return nil, err
	}

	var selOpts []response.Option
	if opts.AutoResponder != nil {
		selOpts = append(selOpts, response.WithAutoResponder(opts.AutoResponder))
	}
	selector, err := response.NewSelector(ch.Response, logger, selOpts...)
	if err != nil {
		return nil, err
	}

	source, err := opts.Connectors.NewSource(ch.Source.Connector, opts.Dependencies)
	if err != nil {
		return nil, err
	}

	enabled := ch.EnabledDestinations()
	destinations := make([]destination, 0, len(enabled))
	for _, def := range enabled {
		transport, err := opts.Connectors.NewDestination(def, opts.Dependencies)
		if err != nil {
			return nil, err
		}
		destinations = append(destinations, destination{def: def, transport: transport})
	}

	r := &Runtime{
		channel:      ch,
		serverID:     opts.ServerID,
		source:       source,
		destinations: destinations,
		executor:     executor,
		selector:     selector,
		sandbox:      opts.Sandbox,
		serializers:  opts.Serializers,
		metrics:      core,
		logger:       logger,
	}

	pool, err := worker.NewPool(ch.Source.MaxProcessingThreads, ch.Source.QueueCapacity, r.processPayload)
	if err != nil {
		return nil, err
	}
	r.pool = pool

	if ch.Source.RateLimit.PerSecond > 0 {
		burst := ch.Source.RateLimit.Burst
		if burst <= 0 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(ch.Source.RateLimit.PerSecond), burst)
	}

	return r, nil
}

func defaultServerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "interlink"
	}
	return host
}

// ChannelID returns the deployed channel's identifier.
func (r *Runtime) ChannelID() string { return r.channel.ID }

// ChannelName returns the deployed channel's name.
func (r *Runtime) ChannelName() string { return r.channel.Name }

// IsRunning reports whether the channel is accepting payloads.
func (r *Runtime) IsRunning() bool {
	r.lifecycleMu.Lock()
	defer r.lifecycleMu.Unlock()
	return r.running
}

// Initialize prepares the channel's connectors without starting delivery.
func (r *Runtime) Initialize() error {
	if err := r.source.Initialize(); err != nil {
		return pkgerrors.Wrap(err, "Runtime", "Initialize",
			fmt.Sprintf("source connector for channel %q", r.channel.Name))
	}
	for i := range r.destinations {
		d := &r.destinations[i]
		if err := d.transport.Initialize(); err != nil {
			return pkgerrors.Wrap(err, "Runtime", "Initialize",
				fmt.Sprintf("destination %q", d.def.Name))
		}
	}
	return nil
}

// Start brings the channel online: destinations first so the pipeline never
// dispatches into a dead transport, then the worker pool, then the source.
// A failed start cleans up whatever came up and leaves the runtime stopped.
func (r *Runtime) Start(ctx context.Context) error {
	r.lifecycleMu.Lock()
	defer r.lifecycleMu.Unlock()

	if r.running {
		return pkgerrors.WrapFatal(pkgerrors.ErrAlreadyStarted, "Runtime", "Start",
			fmt.Sprintf("channel %q", r.channel.Name))
	}
	if r.stopped {
		return pkgerrors.WrapInvalid(pkgerrors.ErrAlreadyStopped, "Runtime", "Start",
			fmt.Sprintf("channel %q must be redeployed", r.channel.Name))
	}

	r.setChannelStatus(channelStarting)

	for i := range r.destinations {
		d := &r.destinations[i]
		if err := d.transport.Start(ctx); err != nil {
			r.stopDestinations(i, 5*time.Second)
			r.stopped = true
			r.setChannelStatus(channelFailed)
			return pkgerrors.Wrap(err, "Runtime", "Start",
				fmt.Sprintf("destination %q", d.def.Name))
		}
	}
	if err := r.pool.Start(ctx); err != nil {
		r.stopDestinations(len(r.destinations), 5*time.Second)
		r.stopped = true
		r.setChannelStatus(channelFailed)
		return err
	}
	if err := r.source.Start(ctx, r.handle); err != nil {
		if perr := r.pool.Stop(5 * time.Second); perr != nil {
			r.logger.Warn("worker pool cleanup failed", "error", perr)
		}
		r.stopDestinations(len(r.destinations), 5*time.Second)
		r.stopped = true
		r.setChannelStatus(channelFailed)
		return pkgerrors.Wrap(err, "Runtime", "Start", "source connector")
	}

	r.running = true
	r.setChannelStatus(channelRunning)
	r.logger.Info("channel started",
		"channelId", r.channel.ID,
		"destinations", len(r.destinations),
		"workers", r.channel.Source.MaxProcessingThreads,
		"queueCapacity", r.channel.Source.QueueCapacity)
	return nil
}

// Stop takes the channel offline: the source stops accepting first, queued
// payloads drain through the pool, then the destination transports close.
// Every stage runs even when an earlier one fails; the first error is
// returned. Stop on a runtime that never started is a no-op.
func (r *Runtime) Stop(timeout time.Duration) error {
	r.lifecycleMu.Lock()
	defer r.lifecycleMu.Unlock()

	if !r.running {
		return nil
	}
	r.running = false
	r.stopped = true
	r.setChannelStatus(channelStopping)

	deadline := time.Now().Add(timeout)
	var firstErr error

	if err := r.source.Stop(time.Until(deadline)); err != nil {
		firstErr = err
		r.logger.Warn("source stop failed", "error", err)
	}
	if err := r.pool.Stop(time.Until(deadline)); err != nil {
		if firstErr == nil {
			firstErr = err
		}
		r.logger.Warn("worker pool stop failed", "error", err)
	}
	for i := len(r.destinations) - 1; i >= 0; i-- {
		d := &r.destinations[i]
		if err := d.transport.Stop(time.Until(deadline)); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			r.logger.Warn("destination stop failed", "destination", d.def.Name, "error", err)
		}
	}

	r.setChannelStatus(channelStopped)
	r.logger.Info("channel stopped",
		"channelId", r.channel.ID,
		"payloads", r.payloads.Load(),
		"units", r.units.Load())
	return firstErr
}

// stopDestinations stops the first n destination transports in reverse
// order, logging failures instead of returning them.
func (r *Runtime) stopDestinations(n int, timeout time.Duration) {
	for i := n - 1; i >= 0; i-- {
		d := &r.destinations[i]
		if err := d.transport.Stop(timeout); err != nil {
			r.logger.Warn("destination stop failed", "destination", d.def.Name, "error", err)
		}
	}
}

func (r *Runtime) setChannelStatus(status int) {
	if r.metrics != nil {
		r.metrics.RecordChannelStatus(r.channel.Name, status)
	}
}

// handle is the connector.Handler installed on the source. It admits the
// payload through the rate limiter, hands it to the worker pool and blocks
// until the worker reports the selected response. Backpressure surfaces
// here: a full queue rejects the payload with a transient error so the
// origin can retry.
func (r *Runtime) handle(ctx context.Context, payload *connector.Payload) (*message.Response, error) {
	if payload == nil {
		return nil, pkgerrors.WrapInvalid(fmt.Errorf("nil payload"),
			"Runtime", "handle", "validate input")
	}
	r.payloads.Add(1)
	if r.metrics != nil {
		r.metrics.RecordMessageReceived(r.channel.Name)
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, pkgerrors.WrapTransient(err, "Runtime", "handle", "rate limit admission")
		}
	}

	work := &payloadWork{payload: payload, done: make(chan payloadResult, 1)}
	if err := r.pool.Submit(work); err != nil {
		return nil, err
	}
	if r.metrics != nil {
		r.metrics.RecordQueueDepth(r.channel.Name, r.pool.QueueDepth())
	}

	select {
	case res := <-work.done:
		return res.response, res.err
	case <-ctx.Done():
		return nil, pkgerrors.WrapTransient(ctx.Err(), "Runtime", "handle", "wait for processing")
	}
}

// processPayload is the pool processor. One worker owns one payload end to
// end, so units within a payload always process in sequence order.
func (r *Runtime) processPayload(ctx context.Context, work *payloadWork) error {
	resp, err := r.runPayload(ctx, work.payload)
	work.done <- payloadResult{response: resp, err: err}
	return err
}

// runPayload splits one payload and processes every unit. The reply is the
// first unit that answered with an error, otherwise the last unit's
// response, so a batched origin always learns about a failure.
func (r *Runtime) runPayload(ctx context.Context, payload *connector.Payload) (*message.Response, error) {
	batchID := r.batchID.Add(1)

	// The batch map carries connector metadata plus anything a script-mode
	// splitter writes; every unit's source map starts from it.
	batchMap := message.NewMap()
	seedMetadata(batchMap, payload.Metadata)

	splitter, err := batch.NewSplitter(r.channel.Source.Batch, payload.Data,
		&batch.ScriptEnv{Sandbox: r.sandbox, SourceMap: batchMap})
	if err != nil {
		// Configuration errors abort the run before any unit is produced.
		return nil, err
	}

	current, err := splitter.Next(ctx)
	if err != nil {
		if stderrors.Is(err, batch.ErrExhausted) {
			r.logger.Debug("payload produced no units", "batchId", batchID)
			return nil, nil
		}
		r.logger.Error("batch splitting failed before the first unit",
			"batchId", batchID, "error", err)
		resp := message.NewResponse(message.StatusError, "batch processing failed")
		resp.Error = err.Error()
		return resp, nil
	}

	var last, firstError *message.Response
	for current != nil {
		// Read ahead one unit so the current one knows whether it
		// completes the batch.
		next, nextErr := splitter.Next(ctx)
		complete := nextErr != nil && stderrors.Is(nextErr, batch.ErrExhausted)
		if complete {
			next, nextErr = nil, nil
		}

		resp := r.processUnit(ctx, batchMap, batchID, current, complete)
		last = resp
		if firstError == nil && resp != nil && resp.Status == message.StatusError {
			firstError = resp
		}

		if nextErr != nil {
			// A failed fetch loses the stream position. Units already
			// processed stand; the rest of the payload is abandoned.
			r.logger.Error("batch unit fetch failed mid-stream",
				"batchId", batchID,
				"afterSequenceId", current.SequenceID,
				"error", nextErr)
			if firstError == nil {
				firstError = message.NewResponse(message.StatusError, "batch processing failed")
				firstError.Error = nextErr.Error()
			}
			break
		}
		current = next
	}

	if firstError != nil {
		return firstError, nil
	}
	return last, nil
}

// processUnit runs one batch unit through the full pipeline: source filter
// and transformer, the destination chain, then response selection.
func (r *Runtime) processUnit(ctx context.Context, batchMap *message.Map, batchID int64, unit *batch.Unit, batchComplete bool) *message.Response {
	messageID := r.messageID.Add(1)
	now := time.Now()
	r.units.Add(1)
	if r.metrics != nil {
		r.metrics.RecordBatchUnit(r.channel.Name, r.batchMode())
	}

	msg := message.NewMessage(messageID, r.channel.ID, r.serverID, now)
	src := message.NewConnectorMessage(messageID, message.SourceMetaDataID, r.channel.ID,
		message.SourceConnectorName, r.serverID, now)

	inboundType := r.channel.Source.Transformer.InboundDataType
	if inboundType == "" {
		inboundType = serializer.DataTypeRaw
	}
	src.SetContent(message.NewContent(message.ContentRaw, unit.Data, inboundType))

	sm := src.SourceMap()
	sm.Merge(batchMap)
	sm.Put("batchId", batchID)
	sm.Put("batchSequenceId", unit.SequenceID)
	sm.Put("batchComplete", batchComplete)
	if ser, err := r.serializers.Get(inboundType); err == nil {
		ser.PopulateMetaData(unit.Data, sm)
	}

	msg.AddConnectorMessage(src)

	if err := r.executor.Process(ctx, src, &r.channel.Source.Filter, &r.channel.Source.Transformer); err != nil {
		src.SetStatus(message.StatusError)
		src.SetContent(message.NewContent(message.ContentProcessingError, err.Error(), ""))
		r.logger.Error("source pipeline failed", "messageId", messageID, "error", err)
	}

	if r.metrics != nil {
		r.metrics.RecordMessageProcessed(r.channel.Name, src.Status().String())
	}

	if src.Status() == message.StatusTransformed {
		start := time.Now()
		r.dispatch(ctx, msg, src)
		if r.metrics != nil {
			r.metrics.RecordStageDuration(r.channel.Name, "dispatch", time.Since(start))
		}
	}

	resp, err := r.selector.Select(msg)
	if err != nil {
		r.logger.Error("response selection failed", "messageId", messageID, "error", err)
		resp = message.NewResponse(message.StatusError, "response selection failed")
		resp.Error = err.Error()
	}
	if resp != nil && r.metrics != nil {
		r.metrics.RecordResponseSelected(r.channel.Name, string(r.selector.Mode()))
	}
	return resp
}

// batchMode is the effective splitting strategy label, accounting for the
// record-mode default.
func (r *Runtime) batchMode() string {
	if r.channel.Source.Batch.Mode == "" {
		return string(batch.ModeRecord)
	}
	return string(r.channel.Source.Batch.Mode)
}

// dispatch runs the destination chain in declaration order. Each
// destination gets its own connector message whose raw content is the
// source's encoded output, and whose channel and response maps carry
// forward from the previous link so later destinations see earlier ones'
// writes. Every enabled destination records an outcome, filtered and
// errored ones included; response selection needs the complete set.
func (r *Runtime) dispatch(ctx context.Context, msg *message.Message, src *message.ConnectorMessage) {
	outbound := outboundContent(src)

	prev := src
	for i := range r.destinations {
		d := &r.destinations[i]
		cm := message.NewConnectorMessage(src.MessageID, d.def.MetaDataID, r.channel.ID,
			d.def.Name, r.serverID, time.Now())
		if outbound != nil {
			cm.SetContent(message.NewContent(message.ContentRaw, outbound.Content, outbound.DataType))
		}
		cm.SourceMap().Merge(src.SourceMap())
		cm.ChannelMap().Merge(prev.ChannelMap())
		cm.ResponseMap().Merge(prev.ResponseMap())
		msg.AddConnectorMessage(cm)

		if err := r.executor.Process(ctx, cm, &d.def.Filter, &d.def.Transformer); err != nil {
			cm.SetStatus(message.StatusError)
			cm.SetContent(message.NewContent(message.ContentProcessingError, err.Error(), ""))
			r.logger.Error("destination pipeline failed",
				"messageId", cm.MessageID, "destination", d.def.Name, "error", err)
		}

		if cm.Status() == message.StatusTransformed {
			r.send(ctx, d, cm)
		}

		if r.metrics != nil {
			r.metrics.RecordDispatch(r.channel.Name, d.def.Name, cm.Status().String())
		}
		r.recordResponse(src, cm, d)
		prev = cm
	}
}

// send dispatches one transformed destination message under the
// destination's retry policy. A transient failure that survives the
// retries becomes QUEUED when the destination opts into queueOnFailure;
// otherwise the failure is final.
func (r *Runtime) send(ctx context.Context, d *destination, cm *message.ConnectorMessage) {
	status, err := retry.DoWithResult(ctx, d.def.RetryConfig(), func(ctx context.Context) (message.Status, error) {
		return d.transport.Send(ctx, cm)
	})
	if err != nil {
		if d.def.QueueOnFailure && pkgerrors.Classify(err) == pkgerrors.ErrorTransient {
			cm.SetStatus(message.StatusQueued)
			r.logger.Warn("send failed, message queued",
				"messageId", cm.MessageID, "destination", d.def.Name, "error", err)
			return
		}
		cm.SetStatus(message.StatusError)
		cm.SetContent(message.NewContent(message.ContentProcessingError, err.Error(), ""))
		r.logger.Error("send failed",
			"messageId", cm.MessageID, "destination", d.def.Name, "error", err)
		return
	}

	cm.SetStatus(status)
	if c := outboundContent(cm); c != nil {
		cm.SetContent(message.NewContent(message.ContentSent, c.Content, c.DataType))
	}
}

// recordResponse publishes the destination's outcome into the response
// maps under both the destination name and its d<metaDataId> alias. The
// source's own map gets the same entries because named response selection
// reads there.
func (r *Runtime) recordResponse(src, cm *message.ConnectorMessage, d *destination) {
	resp := message.NewResponse(cm.Status(),
		fmt.Sprintf("destination %q: %s", d.def.Name, cm.Status()))
	if cm.Status() == message.StatusError {
		if c := cm.GetContent(message.ContentProcessingError); c != nil {
			resp.Error = c.Content
		}
	}

	if data, err := json.Marshal(resp); err == nil {
		cm.SetContent(message.NewContent(message.ContentResponse, string(data), ""))
	}

	alias := "d" + strconv.Itoa(d.def.MetaDataID)
	cm.ResponseMap().Put(d.def.Name, resp)
	cm.ResponseMap().Put(alias, resp)
	src.ResponseMap().Put(d.def.Name, resp)
	src.ResponseMap().Put(alias, resp)
}

// outboundContent is what the source hands the destination chain: the
// encoded slot when the outbound serializer produced one, else the
// transformed or raw content.
func outboundContent(cm *message.ConnectorMessage) *message.Content {
	for _, t := range []message.ContentType{
		message.ContentEncoded,
		message.ContentTransformed,
		message.ContentRaw,
	} {
		if c := cm.GetContent(t); c != nil {
			return c
		}
	}
	return nil
}

// seedMetadata copies connector metadata into the batch map in sorted key
// order, so source maps are deterministic for a given payload.
func seedMetadata(m *message.Map, metadata map[string]any) {
	if len(metadata) == 0 {
		return
	}
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		m.Put(k, metadata[k])
	}
}

// RuntimeStats is a point-in-time view of one channel's activity.
type RuntimeStats struct {
	ChannelID   string           `json:"channelId"`
	ChannelName string           `json:"channelName"`
	Running     bool             `json:"running"`
	Payloads    int64            `json:"payloads"`
	Units       int64            `json:"units"`
	Pool        worker.PoolStats `json:"pool"`
}

// Stats returns a snapshot of the runtime's counters.
func (r *Runtime) Stats() RuntimeStats {
	r.lifecycleMu.Lock()
	running := r.running
	r.lifecycleMu.Unlock()

	return RuntimeStats{
		ChannelID:   r.channel.ID,
		ChannelName: r.channel.Name,
		Running:     running,
		Payloads:    r.payloads.Load(),
		Units:       r.units.Load(),
		Pool:        r.pool.Stats(),
	}
}
