// Package natsclient manages the broker connection for the engine, with a
// circuit breaker around connection attempts.
package natsclient

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	pkgerrors "github.com/careroute/interlink/errors"
	"github.com/careroute/interlink/metric"
)

// ConnectionStatus represents the state of the broker connection.
type ConnectionStatus int

// Possible connection statuses.
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusCircuitOpen
)

// String returns the string representation of ConnectionStatus.
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned while the circuit breaker is holding attempts
// back. The message keeps it classified transient so callers back off and
// retry rather than give up.
var ErrCircuitOpen = stderrors.New("circuit breaker is open, retry after backoff")

// Msg is one delivered subscription message. Reply is empty when the
// publisher did not ask for a response.
type Msg struct {
	Subject string
	Reply   string
	Data    []byte
}

// MsgHandler processes one delivered message.
type MsgHandler func(ctx context.Context, msg *Msg)

// Status holds a point-in-time view of the connection.
type Status struct {
	Status          ConnectionStatus
	FailureCount    int32
	LastFailureTime time.Time
	Reconnects      int32
	RTT             time.Duration
}

// Client manages one NATS connection with reconnect handling, a circuit
// breaker on connection attempts, and broker metrics.
type Client struct {
	url      string
	status   atomic.Value // ConnectionStatus
	failures atomic.Int32
	logger   *slog.Logger

	conn *nats.Conn
	js   jetstream.JetStream
	subs []*nats.Subscription

	// Circuit breaker
	lastFailure      atomic.Value // time.Time
	backoff          atomic.Value // time.Duration
	circuitFailures  atomic.Int32
	circuitThreshold int32
	maxBackoff       time.Duration

	// Connection options
	maxReconnects  int
	reconnectWait  time.Duration
	pingInterval   time.Duration
	timeout        time.Duration
	drainTimeout   time.Duration
	messageTimeout time.Duration

	// Authentication
	username string
	password string
	token    string

	// TLS
	tlsEnabled  bool
	tlsCertFile string
	tlsKeyFile  string
	tlsCAFile   string

	clientName string

	metrics    *metric.Metrics
	reconnects atomic.Int32

	onDisconnect func(error)
	onReconnect  func()

	mu      sync.RWMutex
	closeMu sync.Mutex
	closed  atomic.Bool
}

// NewClient creates a client for the given broker URL. The connection is
// not established until Connect.
func NewClient(url string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		url:              url,
		logger:           slog.Default().With("component", "natsclient"),
		maxReconnects:    -1, // infinite by default
		reconnectWait:    2 * time.Second,
		pingInterval:     30 * time.Second,
		circuitThreshold: 5,
		maxBackoff:       time.Minute,
		timeout:          5 * time.Second,
		drainTimeout:     30 * time.Second,
		messageTimeout:   30 * time.Second,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, pkgerrors.WrapInvalid(err, "Client", "NewClient", "apply option")
		}
	}

	c.status.Store(StatusDisconnected)
	c.backoff.Store(time.Second)
	c.lastFailure.Store(time.Time{})

	c.logger.Debug("created NATS client", "url", url)
	return c, nil
}

// URL returns the broker URL.
func (c *Client) URL() string {
	return c.url
}

// Status returns the current connection status.
func (c *Client) Status() ConnectionStatus {
	val := c.status.Load()
	if val == nil {
		return StatusDisconnected
	}
	return val.(ConnectionStatus)
}

// setStatus updates the status and the broker gauge.
func (c *Client) setStatus(status ConnectionStatus) {
	c.status.Store(status)
	if c.metrics != nil {
		c.metrics.RecordBrokerStatus(status == StatusConnected)
	}
}

// IsHealthy reports whether the connection is established.
func (c *Client) IsHealthy() bool {
	return c.Status() == StatusConnected
}

// Failures returns the total connection failures recorded.
func (c *Client) Failures() int32 {
	return c.failures.Load()
}

// Backoff returns the current circuit backoff duration.
func (c *Client) Backoff() time.Duration {
	return c.backoff.Load().(time.Duration)
}

// Connection returns the underlying NATS connection, nil before Connect.
func (c *Client) Connection() *nats.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

// SetConnection injects a connection, for tests.
func (c *Client) SetConnection(conn *nats.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
	if conn != nil && conn.IsConnected() {
		c.setStatus(StatusConnected)
	}
}

// recordFailure counts a connection failure and opens the circuit once the
// threshold is crossed, doubling the backoff up to the cap.
func (c *Client) recordFailure() {
	total := c.failures.Add(1)
	c.lastFailure.Store(time.Now())
	circuitFailures := c.circuitFailures.Add(1)

	c.logger.Debug("recorded connection failure",
		"total", total, "circuit_failures", circuitFailures)

	if circuitFailures < c.circuitThreshold {
		return
	}

	currentBackoff := c.backoff.Load().(time.Duration)
	newBackoff := currentBackoff * 2
	if newBackoff > c.maxBackoff {
		newBackoff = c.maxBackoff
	}

	currentStatus := c.Status()
	if currentStatus != StatusCircuitOpen {
		// Only one goroutine wins the transition.
		if c.status.CompareAndSwap(currentStatus, StatusCircuitOpen) {
			if c.metrics != nil {
				c.metrics.RecordBrokerStatus(false)
			}
			c.backoff.Store(newBackoff)
			c.circuitFailures.Store(0)
			c.logger.Warn("circuit breaker opened",
				"failures", circuitFailures, "backoff", currentBackoff)
			time.AfterFunc(currentBackoff, c.testCircuit)
		}
		return
	}

	c.backoff.Store(newBackoff)
	c.circuitFailures.Store(0)
	c.logger.Warn("circuit breaker still open", "backoff", newBackoff)
}

// resetCircuit clears failure counters after a successful operation.
func (c *Client) resetCircuit() {
	c.failures.Store(0)
	c.circuitFailures.Store(0)
	c.backoff.Store(time.Second)
	c.lastFailure.Store(time.Time{})

	if c.Status() == StatusCircuitOpen {
		c.setStatus(StatusDisconnected)
	}
}

// testCircuit half-opens the circuit after the backoff elapses so the next
// Connect attempt is allowed through.
func (c *Client) testCircuit() {
	if c.Status() == StatusCircuitOpen {
		c.logger.Debug("circuit breaker backoff elapsed, allowing next attempt")
		c.setStatus(StatusDisconnected)
	}
}

// WaitForConnection blocks until the connection is healthy or the context
// expires.
func (c *Client) WaitForConnection(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return pkgerrors.WrapTransient(ctx.Err(), "Client", "WaitForConnection", "wait for connection")
		case <-ticker.C:
			if c.IsHealthy() {
				return nil
			}
		}
	}
}

// GetStatus returns current status information.
func (c *Client) GetStatus() *Status {
	status := &Status{
		Status:          c.Status(),
		FailureCount:    c.failures.Load(),
		LastFailureTime: c.lastFailure.Load().(time.Time),
		Reconnects:      c.reconnects.Load(),
	}

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn != nil && conn.IsConnected() {
		if rtt, err := conn.RTT(); err == nil {
			status.RTT = rtt
		}
	}
	return status
}

// buildConnectionOptions assembles nats.Options from the client configuration.
func (c *Client) buildConnectionOptions() []nats.Option {
	opts := []nats.Option{
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.PingInterval(c.pingInterval),
		nats.Timeout(c.timeout),
		nats.DrainTimeout(c.drainTimeout),
		nats.DisconnectErrHandler(c.handleDisconnect),
		nats.ReconnectHandler(c.handleReconnect),
		nats.ClosedHandler(c.handleClosed),
		nats.ErrorHandler(c.handleError),
	}

	if c.username != "" && c.password != "" {
		opts = append(opts, nats.UserInfo(c.username, c.password))
	}
	if c.token != "" {
		opts = append(opts, nats.Token(c.token))
	}
	if c.tlsEnabled {
		if c.tlsCertFile != "" && c.tlsKeyFile != "" {
			opts = append(opts, nats.ClientCert(c.tlsCertFile, c.tlsKeyFile))
		}
		if c.tlsCAFile != "" {
			opts = append(opts, nats.RootCAs(c.tlsCAFile))
		}
	}
	if c.clientName != "" {
		opts = append(opts, nats.Name(c.clientName))
	}
	return opts
}

// Connect establishes the broker connection and initializes JetStream.
// While the circuit is open, attempts fail fast with ErrCircuitOpen.
func (c *Client) Connect(ctx context.Context) error {
	if c.Status() == StatusCircuitOpen {
		c.logger.Debug("circuit breaker open, skipping connection attempt")
		return ErrCircuitOpen
	}

	c.setStatus(StatusConnecting)
	c.logger.Info("connecting to broker", "url", c.url)

	opts := c.buildConnectionOptions()

	connectDone := make(chan error, 1)
	go func() {
		conn, err := nats.Connect(c.url, opts...)
		if err != nil {
			connectDone <- err
			return
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		if js, err := jetstream.New(conn); err == nil {
			c.mu.Lock()
			c.js = js
			c.mu.Unlock()
		}
		connectDone <- nil
	}()

	select {
	case err := <-connectDone:
		if err != nil {
			c.recordFailure()
			if c.Status() != StatusCircuitOpen {
				c.setStatus(StatusDisconnected)
			}
			if c.Status() == StatusCircuitOpen {
				return ErrCircuitOpen
			}
			return pkgerrors.WrapTransient(err, "Client", "Connect", "establish connection")
		}
	case <-ctx.Done():
		c.recordFailure()
		if c.Status() != StatusCircuitOpen {
			c.setStatus(StatusDisconnected)
		}
		return pkgerrors.WrapTransient(ctx.Err(), "Client", "Connect", "connection canceled")
	}

	c.setStatus(StatusConnected)
	c.resetCircuit()
	c.logger.Info("connected to broker", "url", c.url)
	return nil
}

// Close drains subscriptions and shuts the connection down. Safe to call
// more than once.
func (c *Client) Close(ctx context.Context) error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed.Load() {
		return nil
	}
	c.closed.Store(true)

	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for _, sub := range c.subs {
		if err := sub.Unsubscribe(); err != nil {
			errs = append(errs, pkgerrors.Wrap(err, "Client", "Close", "unsubscribe"))
			c.logger.Error("failed to unsubscribe", "error", err)
		}
	}
	c.subs = nil

	if c.conn != nil {
		drainTimeout := c.drainTimeout
		if deadline, ok := ctx.Deadline(); ok {
			if remaining := time.Until(deadline); remaining > 0 && remaining < drainTimeout {
				drainTimeout = remaining
			}
		}

		drainDone := make(chan error, 1)
		go func() {
			drainDone <- c.conn.Drain()
		}()

		select {
		case err := <-drainDone:
			if err != nil {
				errs = append(errs, pkgerrors.Wrap(err, "Client", "Close", "drain connection"))
				c.logger.Error("drain error", "error", err)
			}
		case <-time.After(drainTimeout):
			errs = append(errs, pkgerrors.WrapTransient(
				fmt.Errorf("drain timeout after %v", drainTimeout), "Client", "Close", "drain"))
			c.logger.Error("drain timeout, force closing", "timeout", drainTimeout)
		case <-ctx.Done():
			errs = append(errs, pkgerrors.Wrap(ctx.Err(), "Client", "Close", "drain canceled"))
		}

		c.conn.Close()
		c.conn = nil
	}

	// Clear credentials from memory.
	c.username = ""
	c.password = ""
	c.token = ""

	c.setStatus(StatusDisconnected)

	return stderrors.Join(errs...)
}

// Subscription is an active subject subscription. Unsubscribe tears it down
// without touching the rest of the client.
type Subscription struct {
	sub    *nats.Subscription
	client *Client
}

// Subject returns the subscribed subject.
func (s *Subscription) Subject() string {
	if s == nil || s.sub == nil {
		return ""
	}
	return s.sub.Subject
}

// Unsubscribe drains the subscription so in-flight deliveries finish, then
// drops it from the client's close set. Safe to call more than once.
func (s *Subscription) Unsubscribe() error {
	if s == nil || s.sub == nil {
		return nil
	}
	err := s.sub.Drain()
	s.client.removeSub(s.sub)
	s.sub = nil
	if err != nil && !stderrors.Is(err, nats.ErrConnectionClosed) {
		return pkgerrors.Wrap(err, "Subscription", "Unsubscribe", "drain subscription")
	}
	return nil
}

// Subscribe delivers messages on subject to handler. Each delivery gets a
// context bounded by the configured message timeout.
func (c *Client) Subscribe(ctx context.Context, subject string, handler MsgHandler) (*Subscription, error) {
	return c.subscribe(ctx, subject, "", handler)
}

// QueueSubscribe is Subscribe within a queue group: the broker delivers
// each message to one member of the group.
func (c *Client) QueueSubscribe(ctx context.Context, subject, queue string, handler MsgHandler) (*Subscription, error) {
	return c.subscribe(ctx, subject, queue, handler)
}

func (c *Client) subscribe(ctx context.Context, subject, queue string, handler MsgHandler) (*Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || !c.conn.IsConnected() {
		return nil, pkgerrors.WrapTransient(pkgerrors.ErrNoConnection, "Client", "Subscribe", "check connection")
	}

	natsHandler := func(m *nats.Msg) {
		msgCtx, cancel := context.WithTimeout(ctx, c.messageTimeout)
		defer cancel()
		handler(msgCtx, &Msg{Subject: m.Subject, Reply: m.Reply, Data: m.Data})
	}

	var sub *nats.Subscription
	var err error
	if queue != "" {
		sub, err = c.conn.QueueSubscribe(subject, queue, natsHandler)
	} else {
		sub, err = c.conn.Subscribe(subject, natsHandler)
	}
	if err != nil {
		return nil, pkgerrors.WrapTransient(err, "Client", "Subscribe", fmt.Sprintf("subscribe to %s", subject))
	}

	c.subs = append(c.subs, sub)
	return &Subscription{sub: sub, client: c}, nil
}

func (c *Client) removeSub(sub *nats.Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			return
		}
	}
}

// Publish sends data on subject.
func (c *Client) Publish(_ context.Context, subject string, data []byte) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return pkgerrors.WrapTransient(pkgerrors.ErrNoConnection, "Client", "Publish", "check connection")
	}
	return conn.Publish(subject, data)
}

// JetStream returns the JetStream context.
func (c *Client) JetStream() (jetstream.JetStream, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.js == nil {
		return nil, pkgerrors.WrapTransient(pkgerrors.ErrNoConnection,
			"Client", "JetStream", "get JetStream context")
	}
	return c.js, nil
}

// EnsureStream creates the stream or returns the existing one.
func (c *Client) EnsureStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	if c.Status() == StatusCircuitOpen {
		return nil, ErrCircuitOpen
	}
	if c.Status() != StatusConnected {
		return nil, pkgerrors.WrapTransient(pkgerrors.ErrNoConnection, "Client", "EnsureStream", "check connection")
	}

	js, err := c.JetStream()
	if err != nil {
		c.recordFailure()
		return nil, err
	}

	stream, err := js.CreateOrUpdateStream(ctx, cfg)
	if err != nil {
		c.recordFailure()
		return nil, pkgerrors.WrapTransient(err, "Client", "EnsureStream",
			fmt.Sprintf("create stream %s", cfg.Name))
	}

	c.resetCircuit()
	return stream, nil
}

// PublishToStream publishes on subject with JetStream acknowledgement, so
// the write is durable once this returns.
func (c *Client) PublishToStream(ctx context.Context, subject string, data []byte) error {
	if c.Status() == StatusCircuitOpen {
		return ErrCircuitOpen
	}
	if c.Status() != StatusConnected {
		return pkgerrors.WrapTransient(pkgerrors.ErrNoConnection, "Client", "PublishToStream", "check connection")
	}

	js, err := c.JetStream()
	if err != nil {
		c.recordFailure()
		return err
	}

	if _, err := js.Publish(ctx, subject, data); err != nil {
		c.recordFailure()
		return pkgerrors.WrapTransient(err, "Client", "PublishToStream",
			fmt.Sprintf("publish to %s", subject))
	}

	c.resetCircuit()
	return nil
}

// Event handlers wired into the NATS connection.

func (c *Client) handleDisconnect(_ *nats.Conn, err error) {
	c.setStatus(StatusReconnecting)
	c.logger.Warn("broker disconnected", "error", err)

	c.mu.RLock()
	onDisconnect := c.onDisconnect
	c.mu.RUnlock()
	if onDisconnect != nil {
		go onDisconnect(err)
	}
}

func (c *Client) handleReconnect(conn *nats.Conn) {
	c.setStatus(StatusConnected)
	c.resetCircuit()
	c.reconnects.Add(1)
	if c.metrics != nil {
		c.metrics.RecordBrokerReconnect()
	}
	c.logger.Info("broker reconnected", "url", conn.ConnectedUrl())

	c.mu.RLock()
	onReconnect := c.onReconnect
	c.mu.RUnlock()
	if onReconnect != nil {
		go onReconnect()
	}
}

func (c *Client) handleClosed(_ *nats.Conn) {
	c.setStatus(StatusDisconnected)
	c.logger.Info("broker connection closed")
}

func (c *Client) handleError(_ *nats.Conn, sub *nats.Subscription, err error) {
	if sub != nil {
		c.logger.Error("NATS subscription error", "subject", sub.Subject, "error", err)
		return
	}
	c.logger.Error("NATS error", "error", err)
}
