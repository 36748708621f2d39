// Package bus is the NATS surface: run requests come in, run outcomes go
// out for downstream analysis pipelines.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS subjects for the negotiation run lifecycle.
const (
	SubjectRunRequested = "parley.negotiation.requested"
	SubjectRunCompleted = "parley.negotiation.completed"
	SubjectRunFailed    = "parley.negotiation.failed"
)

// RunRequest asks for one negotiation run of a named scenario. Empty persona
// fields mean no persona modifier.
type RunRequest struct {
	Scenario  string `json:"scenario"`
	PersonaA  string `json:"persona_a,omitempty"`
	PersonaB  string `json:"persona_b,omitempty"`
	MaxRounds int    `json:"max_rounds,omitempty"`
}

// RunCompleted announces a run that reached a terminal verdict.
type RunCompleted struct {
	RunID            string   `json:"run_id"`
	Scenario         string   `json:"scenario"`
	State            string   `json:"state"`
	Rounds           int      `json:"rounds"`
	AgreementReached bool     `json:"agreement_reached"`
	AgreedPrice      *float64 `json:"agreed_price,omitempty"`
	Winner           string   `json:"winner"`
}

// RunFailed announces a run aborted by a non-recoverable failure.
type RunFailed struct {
	RunID    string `json:"run_id"`
	Scenario string `json:"scenario"`
	Round    int    `json:"round"`
	Error    string `json:"error"`
}

type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.conn.Close()
}
