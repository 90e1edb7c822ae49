package report

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/eventlatency/errors"
	"github.com/c360/eventlatency/latency"
	"github.com/c360/eventlatency/pkg/retry"
	"github.com/c360/eventlatency/pkg/timestamp"
)

// DefaultSubject is the subject summaries are published on when none is set.
const DefaultSubject = "eventlatency.summary"

// Publisher is the core NATS publish call. *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// StreamPublisher is the JetStream publish call. jetstream.JetStream satisfies it.
type StreamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Event is the JSON payload published for each summary.
type Event struct {
	ID          string  `json:"id"`
	Appender    string  `json:"appender,omitempty"`
	WindowStart int64   `json:"window_start_ms"`
	WindowEnd   int64   `json:"window_end_ms"`
	Count       int     `json:"count"`
	Max         int64   `json:"max_ms"`
	Min         int64   `json:"min_ms"`
	Mean        float64 `json:"mean_ms"`
	Median      int64   `json:"median_ms"`
}

// NATSSink publishes each summary as an Event, either fire-and-forget over
// core NATS or acknowledged through JetStream. JetStream publishes carry the
// event ID as message ID so the server can drop duplicates.
type NATSSink struct {
	subject  string
	appender string
	conn     Publisher
	js       StreamPublisher
	retry    *retry.Config
	logger   *slog.Logger
}

// NATSOption configures a NATSSink
type NATSOption func(*NATSSink)

// WithSubject overrides DefaultSubject.
func WithSubject(subject string) NATSOption {
	return func(s *NATSSink) {
		if subject != "" {
			s.subject = subject
		}
	}
}

// WithAppender stamps events with the appender name.
func WithAppender(name string) NATSOption {
	return func(s *NATSSink) {
		s.appender = name
	}
}

// WithJetStream publishes through JetStream instead of core NATS.
func WithJetStream(js StreamPublisher) NATSOption {
	return func(s *NATSSink) {
		s.js = js
	}
}

// WithRetry retries transient publish failures with cfg before Write gives up.
func WithRetry(cfg retry.Config) NATSOption {
	return func(s *NATSSink) {
		s.retry = &cfg
	}
}

// WithNATSLogger sets the sink logger.
func WithNATSLogger(logger *slog.Logger) NATSOption {
	return func(s *NATSSink) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewNATSSink creates a sink publishing through conn, or through JetStream
// when WithJetStream is given. One of the two is required.
func NewNATSSink(conn Publisher, opts ...NATSOption) (*NATSSink, error) {
	s := &NATSSink{
		subject: DefaultSubject,
		conn:    conn,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.conn == nil && s.js == nil {
		return nil, errors.WrapInvalid(errors.ErrNoConnection, "NATSSink", "NewNATSSink", "publisher is required")
	}
	return s, nil
}

// Subject returns the publish subject.
func (s *NATSSink) Subject() string {
	return s.subject
}

// Write publishes summary.
func (s *NATSSink) Write(ctx context.Context, summary latency.Summary) error {
	event := Event{
		ID:          uuid.NewString(),
		Appender:    s.appender,
		WindowStart: timestamp.ToUnixMs(summary.WindowStart),
		WindowEnd:   timestamp.ToUnixMs(summary.WindowEnd),
		Count:       summary.Count,
		Max:         summary.Max,
		Min:         summary.Min,
		Mean:        summary.Mean,
		Median:      summary.Median,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return errors.WrapInvalid(err, "NATSSink", "Write", "marshal event")
	}

	publish := func() error {
		return s.publish(ctx, event.ID, data)
	}
	if s.retry != nil {
		err = retry.Do(ctx, *s.retry, publish)
	} else {
		err = publish()
	}
	if err != nil {
		return err
	}

	s.logger.Debug("Published latency summary",
		"component", "report",
		"subject", s.subject,
		"event_id", event.ID)
	return nil
}

func (s *NATSSink) publish(ctx context.Context, id string, data []byte) error {
	if s.js != nil {
		if _, err := s.js.Publish(ctx, s.subject, data, jetstream.WithMsgID(id)); err != nil {
			return errors.WrapTransient(err, "NATSSink", "Write", "publish to stream "+s.subject)
		}
		return nil
	}
	if err := s.conn.Publish(s.subject, data); err != nil {
		return errors.WrapTransient(err, "NATSSink", "Write", "publish to "+s.subject)
	}
	return nil
}
