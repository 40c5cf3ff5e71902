// Package notify announces finished runs on a NATS subject.
package notify

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/scampish/internal/config"
	ferrors "git.home.luguber.info/inful/scampish/internal/foundation/errors"
)

// RunEvent is the message published when a run finishes.
type RunEvent struct {
	RunID        string    `json:"run_id"`
	Status       string    `json:"status"`
	Trigger      string    `json:"trigger,omitempty"`
	SourceBucket string    `json:"source_bucket"`
	Target       string    `json:"target"`
	DestBucket   string    `json:"dest_bucket,omitempty"`
	Pages        int       `json:"pages"`
	Assets       int       `json:"assets"`
	DurationMS   int64     `json:"duration_ms"`
	FailedStage  string    `json:"failed_stage,omitempty"`
	Error        string    `json:"error,omitempty"`
	FinishedAt   time.Time `json:"finished_at"`
}

// Publisher sends raw messages. *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Notifier publishes RunEvents as JSON on "<subject>.<status>".
type Notifier struct {
	pub     Publisher
	subject string
	logger  *slog.Logger
}

// New creates a Notifier publishing through pub.
func New(pub Publisher, subject string, logger *slog.Logger) *Notifier {
	if subject == "" {
		subject = config.DefaultNotifySubject
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{pub: pub, subject: subject, logger: logger}
}

// Subject returns the subject ev is published on.
func (n *Notifier) Subject(ev RunEvent) string {
	return n.subject + "." + ev.Status
}

// RunFinished publishes ev.
func (n *Notifier) RunFinished(ev RunEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "failed to encode run event").Build()
	}
	subject := n.Subject(ev)
	if err := n.pub.Publish(subject, data); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryNotify, "failed to publish run event").
			WithContext("subject", subject).
			Build()
	}
	n.logger.Debug("Published run event", slog.String("subject", subject), slog.String("run_id", ev.RunID))
	return nil
}

// Connect dials the configured NATS server. The returned close func flushes
// pending messages before closing the connection.
func Connect(cfg config.NotifyConfig, logger *slog.Logger) (*Notifier, func(), error) {
	conn, err := nats.Connect(cfg.NATSURL,
		nats.Name("scampish"),
		nats.Timeout(cfg.Timeout),
	)
	if err != nil {
		return nil, nil, ferrors.WrapError(err, ferrors.CategoryNotify, "failed to connect to NATS").
			WithContext("url", cfg.NATSURL).
			Retryable().
			Build()
	}
	closer := func() {
		if err := conn.FlushTimeout(cfg.Timeout); err != nil {
			slog.Warn("Failed to flush NATS connection", "error", err)
		}
		conn.Close()
	}
	return New(conn, cfg.Subject, logger), closer, nil
}
