package security

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultRecentSize = 500
	DefaultQueueSize  = 256
)

// Sink receives events at or above its minimum severity.
type Sink interface {
	Name() string
	MinSeverity() Severity
	Deliver(ctx context.Context, e Event) error
}

// Store persists events beyond the in-memory window.
type Store interface {
	Save(ctx context.Context, e Event) error
	List(ctx context.Context, q Query) ([]Event, error)
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// Emitter is what the rest of the gateway needs from a Pipeline.
type Emitter interface {
	Emit(ctx context.Context, e Event) Event
}

// Recorder counts events, typically into Prometheus.
type Recorder interface {
	SecurityEvent(eventType, severity string)
}

type Options struct {
	Logger              *zap.Logger
	Store               Store
	Sinks               []Sink
	Metrics             Recorder
	RecentSize          int
	QueueSize           int
	DeliveriesPerSecond float64
	DeliveryTimeout     time.Duration
	Now                 func() time.Time
}

type delivery struct {
	sink  Sink
	event Event
}

type Summary struct {
	Total      int            `json:"total"`
	BySeverity map[string]int `json:"by_severity"`
	ByType     map[string]int `json:"by_type"`
	Dropped    int            `json:"dropped_deliveries"`
	Since      time.Time      `json:"since"`
}

// Pipeline is created once per process and shared by everything that reports
// events. Delivery to sinks happens on a single background worker.
type Pipeline struct {
	logger  *zap.Logger
	store   Store
	sinks   []Sink
	metrics Recorder
	limiter *rate.Limiter
	timeout time.Duration
	now     func() time.Time

	mu      sync.RWMutex
	recent  []Event
	next    int
	full    bool
	total   int
	bySev   map[string]int
	byType  map[string]int
	dropped int
	started time.Time

	qmu    sync.RWMutex
	queue  chan delivery
	closed bool
	done   chan struct{}
}

func NewPipeline(opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.RecentSize <= 0 {
		opts.RecentSize = DefaultRecentSize
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.DeliveriesPerSecond <= 0 {
		opts.DeliveriesPerSecond = 5
	}
	if opts.DeliveryTimeout <= 0 {
		opts.DeliveryTimeout = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	p := &Pipeline{
		logger:  opts.Logger.Named("security"),
		store:   opts.Store,
		sinks:   opts.Sinks,
		metrics: opts.Metrics,
		limiter: rate.NewLimiter(rate.Limit(opts.DeliveriesPerSecond), 10),
		timeout: opts.DeliveryTimeout,
		now:     opts.Now,
		recent:  make([]Event, opts.RecentSize),
		bySev:   make(map[string]int),
		byType:  make(map[string]int),
		started: opts.Now(),
		queue:   make(chan delivery, opts.QueueSize),
		done:    make(chan struct{}),
	}

	go p.run()
	return p
}

// Emit records e and schedules its delivery. The stored copy is returned.
func (p *Pipeline) Emit(ctx context.Context, e Event) Event {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = p.now()
	}

	p.log(e)
	p.remember(e)

	if p.metrics != nil {
		p.metrics.SecurityEvent(e.Type, e.Severity.String())
	}

	if p.store != nil {
		if err := p.store.Save(ctx, e); err != nil {
			p.logger.Error("Failed to persist security event", zap.String("event_id", e.ID), zap.Error(err))
		}
	}

	for _, sink := range p.sinks {
		if e.Severity >= sink.MinSeverity() {
			p.enqueue(delivery{sink: sink, event: e})
		}
	}
	return e
}

func (p *Pipeline) log(e Event) {
	fields := []zap.Field{
		zap.String("event_id", e.ID),
		zap.String("event_type", e.Type),
		zap.String("severity", e.Severity.String()),
	}
	if e.IP != "" {
		fields = append(fields, zap.String("ip", e.IP))
	}
	if e.Path != "" {
		fields = append(fields, zap.String("path", e.Path))
	}
	if len(e.Details) > 0 {
		fields = append(fields, zap.Any("details", e.Details))
	}

	switch {
	case e.Severity >= SeverityHigh:
		p.logger.Error(e.Message, fields...)
	case e.Severity == SeverityMedium:
		p.logger.Warn(e.Message, fields...)
	default:
		p.logger.Info(e.Message, fields...)
	}
}

func (p *Pipeline) remember(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.recent[p.next] = e
	p.next++
	if p.next == len(p.recent) {
		p.next = 0
		p.full = true
	}
	p.total++
	p.bySev[e.Severity.String()]++
	p.byType[e.Type]++
}

func (p *Pipeline) enqueue(d delivery) {
	p.qmu.RLock()
	defer p.qmu.RUnlock()

	if p.closed {
		return
	}
	select {
	case p.queue <- d:
	default:
		p.mu.Lock()
		p.dropped++
		p.mu.Unlock()
		p.logger.Warn("Security event delivery queue full, dropping",
			zap.String("sink", d.sink.Name()),
			zap.String("event_id", d.event.ID))
	}
}

func (p *Pipeline) run() {
	defer close(p.done)
	for d := range p.queue {
		// Wait only fails on a cancelled context; Background never is
		_ = p.limiter.Wait(context.Background())

		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		err := d.sink.Deliver(ctx, d.event)
		cancel()
		if err != nil {
			p.logger.Warn("Security event delivery failed",
				zap.String("sink", d.sink.Name()),
				zap.String("event_id", d.event.ID),
				zap.Error(err))
		}
	}
}

// Close stops accepting deliveries and waits for queued ones to finish.
func (p *Pipeline) Close() {
	p.qmu.Lock()
	if p.closed {
		p.qmu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.qmu.Unlock()

	<-p.done
}

type Query struct {
	Limit       int
	MinSeverity Severity
	Type        string
	Since       time.Time
}

// Recent returns in-memory events matching q, newest first.
func (p *Pipeline) Recent(q Query) []Event {
	p.mu.RLock()
	defer p.mu.RUnlock()

	size := p.next
	if p.full {
		size = len(p.recent)
	}

	var out []Event
	for i := 0; i < size; i++ {
		idx := (p.next - 1 - i + len(p.recent)) % len(p.recent)
		e := p.recent[idx]
		if !q.matches(e) {
			continue
		}
		out = append(out, e)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out
}

func (q Query) matches(e Event) bool {
	if e.Severity < q.MinSeverity {
		return false
	}
	if q.Type != "" && e.Type != q.Type {
		return false
	}
	if !q.Since.IsZero() && e.CreatedAt.Before(q.Since) {
		return false
	}
	return true
}

// History reads persisted events, falling back to memory without a store.
func (p *Pipeline) History(ctx context.Context, q Query) ([]Event, error) {
	if p.store == nil {
		return p.Recent(q), nil
	}
	return p.store.List(ctx, q)
}

func (p *Pipeline) Summary() Summary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := Summary{
		Total:      p.total,
		BySeverity: make(map[string]int, len(p.bySev)),
		ByType:     make(map[string]int, len(p.byType)),
		Dropped:    p.dropped,
		Since:      p.started,
	}
	for k, v := range p.bySev {
		s.BySeverity[k] = v
	}
	for k, v := range p.byType {
		s.ByType[k] = v
	}
	return s
}

// Purge deletes persisted events older than retention.
func (p *Pipeline) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	if p.store == nil {
		return 0, nil
	}
	return p.store.Purge(ctx, p.now().Add(-retention))
}
