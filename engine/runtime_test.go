package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careroute/interlink/batch"
	"github.com/careroute/interlink/channel"
	"github.com/careroute/interlink/connector"
	pkgerrors "github.com/careroute/interlink/errors"
	"github.com/careroute/interlink/message"
	"github.com/careroute/interlink/pipeline"
	"github.com/careroute/interlink/response"
	"github.com/careroute/interlink/script"
)

// fakeSource captures the handler installed at Start so tests can push
// payloads through the runtime as if a transport delivered them.
type fakeSource struct {
	mu          sync.Mutex
	initialized bool
	started     bool
	stopped     bool
	initErr     error
	startErr    error
	handler     connector.Handler
}

func (s *fakeSource) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = true
	return s.initErr
}

func (s *fakeSource) Start(_ context.Context, handler connector.Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	s.started = true
	s.handler = handler
	return nil
}

func (s *fakeSource) Stop(time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

func (s *fakeSource) deliver(t *testing.T, payload *connector.Payload) (*message.Response, error) {
	t.Helper()
	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()
	require.NotNil(t, handler, "source was never started")
	return handler(context.Background(), payload)
}

// fakeDestination records every send and answers with a scripted sequence
// of errors followed by the configured status. Leaving status at its zero
// value answers SENT.
type fakeDestination struct {
	mu          sync.Mutex
	initialized bool
	started     bool
	stopped     bool
	startErr    error
	sendErrs    []error // consumed one per call; nil entries succeed
	status      message.Status
	contents    []string
}

func (d *fakeDestination) Initialize() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.initialized = true
	return nil
}

func (d *fakeDestination) Start(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.startErr != nil {
		return d.startErr
	}
	d.started = true
	return nil
}

func (d *fakeDestination) Stop(time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	return nil
}

func (d *fakeDestination) Send(_ context.Context, msg *message.ConnectorMessage) (message.Status, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.contents = append(d.contents, connector.DispatchContent(msg))
	if len(d.sendErrs) > 0 {
		err := d.sendErrs[0]
		d.sendErrs = d.sendErrs[1:]
		if err != nil {
			return message.StatusError, err
		}
	}
	if d.status == message.StatusReceived {
		return message.StatusSent, nil
	}
	return d.status, nil
}

func (d *fakeDestination) sent() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.contents))
	copy(out, d.contents)
	return out
}

func (d *fakeDestination) wasStopped() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopped
}

// fakeRegistry wires the fakes into a connector registry under the types
// "test-source" and "test-dest". Destination fakes resolve by name.
func fakeRegistry(t *testing.T, src *fakeSource, dests map[string]*fakeDestination) *connector.Registry {
	t.Helper()
	reg := connector.NewRegistry()
	err := reg.RegisterSource("test-source", func(channel.Connector, connector.Dependencies) (connector.Source, error) {
		return src, nil
	})
	require.NoError(t, err)
	err = reg.RegisterDestination("test-dest", func(dest channel.Destination, _ connector.Dependencies) (connector.Destination, error) {
		d, ok := dests[dest.Name]
		require.True(t, ok, "no fake for destination %q", dest.Name)
		return d, nil
	})
	require.NoError(t, err)
	return reg
}

func testDestination(name string) channel.Destination {
	return channel.Destination{
		Name:      name,
		Connector: channel.Connector{Type: "test-dest"},
	}
}

func testChannel(dests ...channel.Destination) channel.Channel {
	return channel.Channel{
		Name: "adt-intake",
		Source: channel.Source{
			Connector: channel.Connector{Type: "test-source"},
		},
		Destinations: dests,
		Response:     response.Config{Mode: response.ModeDestinationsCompleted},
	}
}

func newTestRuntime(t *testing.T, ch channel.Channel, src *fakeSource, dests map[string]*fakeDestination) *Runtime {
	t.Helper()
	sandbox, err := script.New(script.DefaultConfig(), nil)
	require.NoError(t, err)

	rt, err := NewRuntime(ch, RuntimeOptions{
		Connectors: fakeRegistry(t, src, dests),
		Sandbox:    sandbox,
		ServerID:   "test-server",
	})
	require.NoError(t, err)
	return rt
}

func startTestRuntime(t *testing.T, ch channel.Channel, src *fakeSource, dests map[string]*fakeDestination) *Runtime {
	t.Helper()
	rt := newTestRuntime(t, ch, src, dests)
	require.NoError(t, rt.Initialize())
	require.NoError(t, rt.Start(context.Background()))
	t.Cleanup(func() { _ = rt.Stop(5 * time.Second) })
	return rt
}

func TestNewRuntime_Validation(t *testing.T) {
	sandbox, err := script.New(script.DefaultConfig(), nil)
	require.NoError(t, err)

	_, err = NewRuntime(testChannel(testDestination("d")), RuntimeOptions{Sandbox: sandbox})
	assert.True(t, pkgerrors.IsFatal(err), "missing connector registry should be fatal")

	_, err = NewRuntime(testChannel(testDestination("d")), RuntimeOptions{
		Connectors: connector.NewRegistry(),
	})
	assert.True(t, pkgerrors.IsFatal(err), "missing sandbox should be fatal")

	// Unknown connector types surface at construction, not at start.
	_, err = NewRuntime(testChannel(testDestination("d")), RuntimeOptions{
		Connectors: connector.NewRegistry(),
		Sandbox:    sandbox,
	})
	require.Error(t, err)

	ch := testChannel()
	_, err = NewRuntime(ch, RuntimeOptions{
		Connectors: fakeRegistry(t, &fakeSource{}, nil),
		Sandbox:    sandbox,
	})
	require.Error(t, err, "a channel without destinations should not deploy")
}

func TestRuntime_PayloadFlowsToDestination(t *testing.T) {
	src := &fakeSource{}
	dest := &fakeDestination{}
	startTestRuntime(t, testChannel(testDestination("primary")), src, map[string]*fakeDestination{"primary": dest})

	resp, err := src.deliver(t, &connector.Payload{Data: "MSH|A01"})
	require.NoError(t, err)

	require.NotNil(t, resp)
	assert.Equal(t, message.StatusSent, resp.Status)
	assert.Equal(t, "Message successfully processed", resp.Message)
	assert.Equal(t, []string{"MSH|A01"}, dest.sent())
}

func TestRuntime_BatchUnitsSeeSequenceAndCompletion(t *testing.T) {
	ch := testChannel(testDestination("primary"))
	ch.Source.Batch = batch.Config{Mode: batch.ModeRecord, RecordDelimiter: "\n"}
	ch.Source.Transformer = pipeline.Transformer{Steps: []pipeline.Step{{
		SequenceNumber: 1,
		Name:           "stamp-batch-position",
		Script:         `msg + "|" + sourceMap.get("batchSequenceId") + "|" + sourceMap.get("batchComplete")`,
		Enabled:        true,
	}}}

	src := &fakeSource{}
	dest := &fakeDestination{}
	startTestRuntime(t, ch, src, map[string]*fakeDestination{"primary": dest})

	resp, err := src.deliver(t, &connector.Payload{Data: "a\nb\nc"})
	require.NoError(t, err)

	require.NotNil(t, resp)
	assert.Equal(t, message.StatusSent, resp.Status)
	assert.Equal(t, []string{"a|1|false", "b|2|false", "c|3|true"}, dest.sent())
}

func TestRuntime_ConnectorMetadataReachesScripts(t *testing.T) {
	ch := testChannel(testDestination("primary"))
	ch.Source.Transformer = pipeline.Transformer{Steps: []pipeline.Step{{
		SequenceNumber: 1,
		Name:           "stamp-subject",
		Script:         `msg + "|" + sourceMap.get("subject")`,
		Enabled:        true,
	}}}

	src := &fakeSource{}
	dest := &fakeDestination{}
	startTestRuntime(t, ch, src, map[string]*fakeDestination{"primary": dest})

	_, err := src.deliver(t, &connector.Payload{
		Data:     "x",
		Metadata: map[string]any{"subject": "hl7.adt.a01"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"x|hl7.adt.a01"}, dest.sent())
}

func TestRuntime_FilteredMessageSkipsDispatch(t *testing.T) {
	ch := testChannel(testDestination("primary"))
	ch.Source.Filter = pipeline.Filter{Rules: []pipeline.Rule{{
		SequenceNumber: 1,
		Name:           "reject-all",
		Script:         "false",
		Enabled:        true,
	}}}
	ch.Response = response.Config{Mode: response.ModePostSource}

	src := &fakeSource{}
	dest := &fakeDestination{}
	startTestRuntime(t, ch, src, map[string]*fakeDestination{"primary": dest})

	resp, err := src.deliver(t, &connector.Payload{Data: "MSH|A01"})
	require.NoError(t, err)

	require.NotNil(t, resp)
	assert.Equal(t, message.StatusFiltered, resp.Status)
	assert.Empty(t, dest.sent())
}

func TestRuntime_FirstErroredUnitWinsTheReply(t *testing.T) {
	ch := testChannel(testDestination("primary"))
	ch.Source.Batch = batch.Config{Mode: batch.ModeRecord, RecordDelimiter: "\n"}
	ch.Source.Filter = pipeline.Filter{Rules: []pipeline.Rule{{
		SequenceNumber: 1,
		Name:           "poison-check",
		Script:         `if (msg == "bad") { throw new Error("poison record") } true`,
		Enabled:        true,
	}}}
	ch.Response = response.Config{Mode: response.ModePostSource}

	src := &fakeSource{}
	dest := &fakeDestination{}
	startTestRuntime(t, ch, src, map[string]*fakeDestination{"primary": dest})

	resp, err := src.deliver(t, &connector.Payload{Data: "bad\ngood"})
	require.NoError(t, err)

	// The second unit processed and dispatched, but the reply carries the
	// first unit's failure.
	require.NotNil(t, resp)
	assert.Equal(t, message.StatusError, resp.Status)
	assert.Contains(t, resp.Error, "poison record")
	assert.Equal(t, []string{"good"}, dest.sent())
}

func TestRuntime_EmptyPayloadProducesNoResponse(t *testing.T) {
	src := &fakeSource{}
	dest := &fakeDestination{}
	startTestRuntime(t, testChannel(testDestination("primary")), src, map[string]*fakeDestination{"primary": dest})

	resp, err := src.deliver(t, &connector.Payload{Data: ""})
	require.NoError(t, err)

	assert.Nil(t, resp)
	assert.Empty(t, dest.sent())
}

func TestRuntime_SendRetriesUntilSuccess(t *testing.T) {
	dest := &fakeDestination{sendErrs: []error{
		pkgerrors.WrapTransient(errors.New("connection reset"), "fake", "Send", "first attempt"),
		nil,
	}}

	d := testDestination("primary")
	d.RetryCount = 1
	d.RetryIntervalMillis = 1

	src := &fakeSource{}
	startTestRuntime(t, testChannel(d), src, map[string]*fakeDestination{"primary": dest})

	resp, err := src.deliver(t, &connector.Payload{Data: "MSH|A01"})
	require.NoError(t, err)

	require.NotNil(t, resp)
	assert.Equal(t, message.StatusSent, resp.Status)
	assert.Len(t, dest.sent(), 2, "failed attempt plus the retry")
}

func TestRuntime_QueueOnFailureMarksQueued(t *testing.T) {
	dest := &fakeDestination{sendErrs: []error{
		pkgerrors.WrapTransient(errors.New("broker unavailable"), "fake", "Send", "attempt"),
	}}

	d := testDestination("primary")
	d.QueueOnFailure = true

	src := &fakeSource{}
	startTestRuntime(t, testChannel(d), src, map[string]*fakeDestination{"primary": dest})

	resp, err := src.deliver(t, &connector.Payload{Data: "MSH|A01"})
	require.NoError(t, err)

	require.NotNil(t, resp)
	assert.Equal(t, message.StatusQueued, resp.Status)
	assert.Equal(t, "Message queued for delivery", resp.Message)
}

func TestRuntime_SendFailureBecomesErrorResponse(t *testing.T) {
	dest := &fakeDestination{sendErrs: []error{
		pkgerrors.WrapTransient(errors.New("endpoint rejected message"), "fake", "Send", "attempt"),
	}}

	src := &fakeSource{}
	startTestRuntime(t, testChannel(testDestination("primary")), src, map[string]*fakeDestination{"primary": dest})

	resp, err := src.deliver(t, &connector.Payload{Data: "MSH|A01"})
	require.NoError(t, err)

	require.NotNil(t, resp)
	assert.Equal(t, message.StatusError, resp.Status)
	assert.Contains(t, resp.Error, "endpoint rejected message")
}

func TestRuntime_QueuedTransportStatusPropagates(t *testing.T) {
	dest := &fakeDestination{status: message.StatusQueued}

	src := &fakeSource{}
	startTestRuntime(t, testChannel(testDestination("primary")), src, map[string]*fakeDestination{"primary": dest})

	resp, err := src.deliver(t, &connector.Payload{Data: "MSH|A01"})
	require.NoError(t, err)

	require.NotNil(t, resp)
	assert.Equal(t, message.StatusQueued, resp.Status)
}

func TestRuntime_NamedResponseReadsDestinationOutcome(t *testing.T) {
	ch := testChannel(testDestination("primary"))
	ch.Response = response.Config{Mode: response.ModeNamed, ResponseKey: "primary"}

	src := &fakeSource{}
	dest := &fakeDestination{}
	startTestRuntime(t, ch, src, map[string]*fakeDestination{"primary": dest})

	resp, err := src.deliver(t, &connector.Payload{Data: "MSH|A01"})
	require.NoError(t, err)

	require.NotNil(t, resp)
	assert.Equal(t, message.StatusSent, resp.Status)
	assert.Equal(t, `destination "primary": SENT`, resp.Message)
}

func TestRuntime_NamedResponseResolvesMetaDataAlias(t *testing.T) {
	ch := testChannel(testDestination("primary"))
	ch.Response = response.Config{Mode: response.ModeNamed, ResponseKey: "d1"}

	src := &fakeSource{}
	dest := &fakeDestination{}
	startTestRuntime(t, ch, src, map[string]*fakeDestination{"primary": dest})

	resp, err := src.deliver(t, &connector.Payload{Data: "MSH|A01"})
	require.NoError(t, err)

	require.NotNil(t, resp)
	assert.Equal(t, message.StatusSent, resp.Status)
}

func TestRuntime_ChannelMapChainsAcrossDestinations(t *testing.T) {
	first := testDestination("first")
	first.Transformer = pipeline.Transformer{Steps: []pipeline.Step{{
		SequenceNumber: 1,
		Name:           "leave-note",
		Script:         `channelMap.put("note", "relay"); msg`,
		Enabled:        true,
	}}}
	second := testDestination("second")
	second.Transformer = pipeline.Transformer{Steps: []pipeline.Step{{
		SequenceNumber: 1,
		Name:           "read-note",
		Script:         `msg + "-" + channelMap.get("note")`,
		Enabled:        true,
	}}}

	src := &fakeSource{}
	firstDest := &fakeDestination{}
	secondDest := &fakeDestination{}
	startTestRuntime(t, testChannel(first, second), src, map[string]*fakeDestination{
		"first":  firstDest,
		"second": secondDest,
	})

	resp, err := src.deliver(t, &connector.Payload{Data: "x"})
	require.NoError(t, err)

	require.NotNil(t, resp)
	assert.Equal(t, message.StatusSent, resp.Status)
	assert.Equal(t, []string{"x"}, firstDest.sent())
	assert.Equal(t, []string{"x-relay"}, secondDest.sent())
}

func TestRuntime_DominantStatusAcrossDestinations(t *testing.T) {
	// One destination delivers, the other fails: the reconciled reply is
	// the failure.
	good := &fakeDestination{}
	bad := &fakeDestination{sendErrs: []error{
		pkgerrors.WrapTransient(errors.New("refused"), "fake", "Send", "attempt"),
	}}

	src := &fakeSource{}
	startTestRuntime(t, testChannel(testDestination("good"), testDestination("bad")), src,
		map[string]*fakeDestination{"good": good, "bad": bad})

	resp, err := src.deliver(t, &connector.Payload{Data: "MSH|A01"})
	require.NoError(t, err)

	require.NotNil(t, resp)
	assert.Equal(t, message.StatusError, resp.Status)
	assert.Len(t, good.sent(), 1)
}

func TestRuntime_LifecycleGuards(t *testing.T) {
	src := &fakeSource{}
	dest := &fakeDestination{}
	rt := newTestRuntime(t, testChannel(testDestination("primary")), src, map[string]*fakeDestination{"primary": dest})
	require.NoError(t, rt.Initialize())

	require.NoError(t, rt.Start(context.Background()))
	assert.True(t, rt.IsRunning())

	err := rt.Start(context.Background())
	assert.True(t, pkgerrors.IsFatal(err), "double start should be fatal")

	require.NoError(t, rt.Stop(5*time.Second))
	assert.False(t, rt.IsRunning())
	assert.True(t, src.stopped)
	assert.True(t, dest.wasStopped())

	require.NoError(t, rt.Stop(5*time.Second), "stop is idempotent")

	err = rt.Start(context.Background())
	assert.True(t, pkgerrors.IsInvalid(err), "a stopped runtime must be redeployed")
}

func TestRuntime_DestinationStartFailureStopsEarlierOnes(t *testing.T) {
	first := &fakeDestination{}
	second := &fakeDestination{startErr: errors.New("dial failed")}

	src := &fakeSource{}
	rt := newTestRuntime(t, testChannel(testDestination("first"), testDestination("second")), src,
		map[string]*fakeDestination{"first": first, "second": second})
	require.NoError(t, rt.Initialize())

	err := rt.Start(context.Background())
	require.Error(t, err)
	assert.False(t, rt.IsRunning())
	assert.True(t, first.wasStopped(), "the destination that started must be stopped again")
}

func TestRuntime_SourceStartFailureCleansUp(t *testing.T) {
	src := &fakeSource{startErr: errors.New("bind failed")}
	dest := &fakeDestination{}
	rt := newTestRuntime(t, testChannel(testDestination("primary")), src, map[string]*fakeDestination{"primary": dest})
	require.NoError(t, rt.Initialize())

	err := rt.Start(context.Background())
	require.Error(t, err)
	assert.False(t, rt.IsRunning())
	assert.True(t, dest.wasStopped(), "destinations that came up must come down")

	err = rt.Start(context.Background())
	assert.True(t, pkgerrors.IsInvalid(err), "a failed start leaves the runtime unusable")
}

func TestRuntime_Stats(t *testing.T) {
	src := &fakeSource{}
	dest := &fakeDestination{}
	rt := startTestRuntime(t, testChannel(testDestination("primary")), src, map[string]*fakeDestination{"primary": dest})

	_, err := src.deliver(t, &connector.Payload{Data: "a\nb"})
	require.NoError(t, err)

	require.NoError(t, rt.Stop(5*time.Second))

	stats := rt.Stats()
	assert.Equal(t, "adt-intake", stats.ChannelName)
	assert.False(t, stats.Running)
	assert.Equal(t, int64(1), stats.Payloads)
	assert.Equal(t, int64(2), stats.Units)
	assert.Equal(t, int64(1), stats.Pool.Submitted)
	assert.Equal(t, int64(1), stats.Pool.Processed)
}
