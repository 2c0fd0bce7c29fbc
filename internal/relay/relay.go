package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/traffic-relay/internal/infrastructure/mqtt"
)

// State is the connection state of the relay.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnected    State = "connected"
)

// defaultCheckInterval is the liveness check period when none is configured.
const defaultCheckInterval = time.Second

// recordTimeout bounds a single recorder call.
const recordTimeout = 2 * time.Second

// changeQueueSize is the number of changes buffered for recorders.
const changeQueueSize = 256

// Broker is the MQTT surface the relay needs.
// *mqtt.Client satisfies it.
type Broker interface {
	// Connect makes a single connection attempt.
	Connect(ctx context.Context) error
	// Subscribe registers handler for topic on the current session.
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	// IsConnected reports whether the session is up.
	IsConnected() bool
	// HasSubscription reports whether topic is subscribed on the current session.
	HasSubscription(topic string) bool
	// Disconnect drops the current session.
	Disconnect()
}

// Broadcaster pushes a text frame to every connected browser.
type Broadcaster interface {
	Broadcast(frame string)
}

// Change describes one accepted light update.
type Change struct {
	Light    Light
	Value    string
	Snapshot Snapshot
	At       time.Time
}

// ChangeRecorder receives every accepted update after it has been broadcast.
// Recorders run on the relay's own goroutine, never on the broker's
// message path.
type ChangeRecorder interface {
	RecordChange(ctx context.Context, change Change) error
}

// Logger defines the logging interface for the relay.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options holds everything needed to build a Relay.
type Options struct {
	// Store holds the light values. Required.
	Store *Store

	// Broker is the MQTT session. Required.
	Broker Broker

	// Broadcaster receives every frame. Required.
	Broadcaster Broadcaster

	// Light1Topic and Light2Topic are the exact topics bound to each slot.
	Light1Topic string
	Light2Topic string

	// QoS is the subscription QoS.
	QoS byte

	// Policy decides the wait between failed attempts. Defaults to a fixed 5s.
	Policy DelayPolicy

	// Sleep waits between attempts. Defaults to SleepContext.
	Sleep Sleeper

	// CheckInterval is the liveness check period while connected.
	CheckInterval time.Duration

	// Logger is optional.
	Logger Logger
}

// Relay keeps a broker session alive and turns every message on the two
// light topics into a store update followed by one broadcast.
//
// While disconnected it attempts to connect, waiting Policy.Next between
// failures, forever. On every successful connect it subscribes to both
// topics and broadcasts the current values even if nothing changed.
//
// Thread Safety: all exported methods are safe for concurrent use. Store
// mutation, snapshot and broadcast run under one mutex, so frames leave in
// the order updates were applied.
type Relay struct {
	store  *Store
	broker Broker
	out    Broadcaster
	logger Logger

	topics   map[string]Light
	order    []string
	qos      byte
	policy   DelayPolicy
	sleep    Sleeper
	interval time.Duration
	now      func() time.Time

	// relayMu serialises store mutation and broadcast.
	relayMu sync.Mutex

	recorders   []ChangeRecorder
	recordersMu sync.RWMutex

	// changes feeds recorders; full means the change is dropped.
	changes chan Change

	// lost carries connection-lost notifications into the run loop.
	lost chan error

	mu             sync.RWMutex
	running        bool
	state          State
	attempts       uint64
	connects       uint64
	relayed        uint64
	dropped        uint64
	changesDropped uint64
	lastError      error
	connectedSince time.Time
}

// New creates a relay. Call Run to start it.
func New(opts Options) (*Relay, error) {
	if opts.Store == nil {
		return nil, ErrNoStore
	}
	if opts.Broker == nil {
		return nil, ErrNoBroker
	}
	if opts.Broadcaster == nil {
		return nil, ErrNoBroadcaster
	}
	if opts.Light1Topic == "" || opts.Light2Topic == "" || opts.Light1Topic == opts.Light2Topic {
		return nil, ErrInvalidTopics
	}
	if opts.Policy == nil {
		opts.Policy = FixedDelay(5 * time.Second)
	}
	if opts.Sleep == nil {
		opts.Sleep = SleepContext
	}
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = defaultCheckInterval
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}

	return &Relay{
		store:  opts.Store,
		broker: opts.Broker,
		out:    opts.Broadcaster,
		logger: opts.Logger,
		topics: map[string]Light{
			opts.Light1Topic: Light1,
			opts.Light2Topic: Light2,
		},
		order:    []string{opts.Light1Topic, opts.Light2Topic},
		qos:      opts.QoS,
		policy:   opts.Policy,
		sleep:    opts.Sleep,
		interval: opts.CheckInterval,
		now:      time.Now,
		lost:     make(chan error, 1),
		changes:  make(chan Change, changeQueueSize),
		state:    StateDisconnected,
	}, nil
}

// AddRecorder registers a recorder for accepted changes.
func (r *Relay) AddRecorder(rec ChangeRecorder) {
	r.recordersMu.Lock()
	r.recorders = append(r.recorders, rec)
	r.recordersMu.Unlock()
}

// Run drives the connection state machine until ctx is cancelled. It
// also feeds queued changes to the recorders, and drains the queue before
// returning. It returns nil on cancellation.
func (r *Relay) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	r.running = true
	r.mu.Unlock()

	recordersDone := make(chan struct{})
	go func() {
		defer close(recordersDone)
		r.runRecorders(ctx)
	}()

	defer func() {
		<-recordersDone
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
		r.setDisconnected(nil)
	}()

	failures := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		if err := r.connect(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			delay := r.policy.Next(failures)
			r.logger.Warn("broker connect failed, retrying",
				"error", err,
				"attempt", failures,
				"delay", delay,
			)
			if sleepErr := r.sleep(ctx, delay); sleepErr != nil {
				return nil
			}
			continue
		}

		failures = 0
		r.logger.Info("broker connected", "topics", r.order)
		r.Announce()

		cause := r.waitForLoss(ctx)
		if ctx.Err() != nil {
			return nil
		}
		r.broker.Disconnect()
		r.setDisconnected(cause)
		r.logger.Warn("broker connection lost", "error", cause)
	}
}

// connect performs one attempt: connect, then subscribe to both topics.
// A subscribe failure drops the session and counts as a failed attempt.
func (r *Relay) connect(ctx context.Context) error {
	// Losses reported for an earlier session are stale.
	select {
	case <-r.lost:
	default:
	}

	r.mu.Lock()
	r.attempts++
	r.mu.Unlock()

	if err := r.broker.Connect(ctx); err != nil {
		r.setLastError(err)
		return err
	}

	for _, topic := range r.order {
		if err := r.broker.Subscribe(topic, r.qos, r.HandleMessage); err != nil {
			r.broker.Disconnect()
			err = fmt.Errorf("subscribing to %s: %w", topic, err)
			r.setLastError(err)
			return err
		}
	}

	r.mu.Lock()
	r.state = StateConnected
	r.connects++
	r.connectedSince = r.now()
	r.mu.Unlock()
	return nil
}

// waitForLoss blocks while connected. It returns the loss cause, or nil
// when ctx is cancelled.
func (r *Relay) waitForLoss(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-r.lost:
			if err == nil {
				err = mqtt.ErrNotConnected
			}
			return err
		case <-ticker.C:
			if !r.broker.IsConnected() {
				return mqtt.ErrNotConnected
			}
		}
	}
}

// NotifyDisconnected reports a lost connection from the broker callback.
// It never blocks.
func (r *Relay) NotifyDisconnected(err error) {
	select {
	case r.lost <- err:
	default:
	}
}

// HandleMessage applies a broker message. It matches mqtt.MessageHandler.
//
// The payload is stored verbatim in the slot bound to topic and the new
// snapshot is broadcast. Messages on any other topic are dropped without
// touching the store or broadcasting.
func (r *Relay) HandleMessage(topic string, payload []byte) error {
	light, ok := r.topics[topic]
	if !ok {
		r.mu.Lock()
		r.dropped++
		r.mu.Unlock()
		r.logger.Debug("ignoring message on unbound topic", "topic", topic)
		return nil
	}

	value := string(payload)

	r.relayMu.Lock()
	r.store.Set(light, value)
	snap := r.store.Snapshot()
	r.out.Broadcast(snap.Frame())
	r.relayMu.Unlock()

	r.mu.Lock()
	r.relayed++
	r.mu.Unlock()

	r.logger.Debug("light updated", "light", light, "value", value)

	r.enqueue(Change{Light: light, Value: value, Snapshot: snap, At: r.now()})
	return nil
}

// Announce broadcasts the current values without changing them.
func (r *Relay) Announce() {
	r.relayMu.Lock()
	defer r.relayMu.Unlock()
	r.out.Broadcast(r.store.Snapshot().Frame())
}

// enqueue hands change to the recorder goroutine without blocking.
func (r *Relay) enqueue(change Change) {
	r.recordersMu.RLock()
	n := len(r.recorders)
	r.recordersMu.RUnlock()
	if n == 0 {
		return
	}

	select {
	case r.changes <- change:
	default:
		r.mu.Lock()
		r.changesDropped++
		r.mu.Unlock()
		r.logger.Warn("recorder queue full, change not recorded", "light", change.Light)
	}
}

// runRecorders delivers queued changes until ctx is cancelled, then
// flushes whatever is still queued.
func (r *Relay) runRecorders(ctx context.Context) {
	for {
		select {
		case change := <-r.changes:
			r.record(change)
		case <-ctx.Done():
			for {
				select {
				case change := <-r.changes:
					r.record(change)
				default:
					return
				}
			}
		}
	}
}

func (r *Relay) record(change Change) {
	r.recordersMu.RLock()
	recorders := r.recorders
	r.recordersMu.RUnlock()

	for _, rec := range recorders {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		if err := rec.RecordChange(ctx, change); err != nil {
			r.logger.Warn("recording light change failed",
				"light", change.Light,
				"error", err,
			)
		}
		cancel()
	}
}

func (r *Relay) setLastError(err error) {
	r.mu.Lock()
	r.lastError = err
	r.mu.Unlock()
}

func (r *Relay) setDisconnected(cause error) {
	r.mu.Lock()
	r.state = StateDisconnected
	r.connectedSince = time.Time{}
	if cause != nil {
		r.lastError = cause
	}
	r.mu.Unlock()
}

// State returns the current connection state.
func (r *Relay) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// HealthCheck reports an error unless the broker session is up and
// subscribed to both light topics.
func (r *Relay) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("relay health check: %w", err)
	}
	if state := r.State(); state != StateConnected {
		return fmt.Errorf("relay %s: %w", state, mqtt.ErrNotConnected)
	}
	for _, topic := range r.order {
		if !r.broker.HasSubscription(topic) {
			return fmt.Errorf("%w: %s", ErrNotSubscribed, topic)
		}
	}
	return nil
}

// Stats holds relay counters for the metrics endpoint.
type Stats struct {
	State           State     `json:"state"`
	ConnectAttempts uint64    `json:"connect_attempts"`
	Connects        uint64    `json:"connects"`
	MessagesRelayed uint64    `json:"messages_relayed"`
	MessagesDropped uint64    `json:"messages_dropped"`
	ChangesDropped  uint64    `json:"changes_dropped"`
	ConnectedSince  time.Time `json:"connected_since,omitzero"`
	LastError       string    `json:"last_error,omitempty"`
}

// Stats returns current statistics for the relay.
func (r *Relay) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{
		State:           r.state,
		ConnectAttempts: r.attempts,
		Connects:        r.connects,
		MessagesRelayed: r.relayed,
		MessagesDropped: r.dropped,
		ChangesDropped:  r.changesDropped,
		ConnectedSince:  r.connectedSince,
	}
	if r.lastError != nil {
		stats.LastError = r.lastError.Error()
	}
	return stats
}

// Snapshot returns the current light values.
func (r *Relay) Snapshot() Snapshot {
	return r.store.Snapshot()
}
