package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/t77yq/self-healing/internal/config"
	"github.com/t77yq/self-healing/internal/model"
)

const (
	streamMaxAge   = 7 * 24 * time.Hour
	streamMaxMsgs  = -1
	publishTimeout = 5 * time.Second
)

// Publisher publishes healing actions to a JetStream stream so that other
// systems can follow remediation activity. It implements storage.Sink.
type Publisher struct {
	js     nats.JetStreamContext
	logger *zap.Logger
	stream string
	prefix string
}

// NewPublisher creates a publisher and makes sure its stream exists
func NewPublisher(js nats.JetStreamContext, stream, prefix string, logger *zap.Logger) (*Publisher, error) {
	p := &Publisher{
		js:     js,
		logger: logger.Named("events"),
		stream: stream,
		prefix: prefix,
	}

	if err := p.setupStream(); err != nil {
		return nil, fmt.Errorf("failed to setup stream: %w", err)
	}
	return p, nil
}

func (p *Publisher) setupStream() error {
	_, err := p.js.AddStream(&nats.StreamConfig{
		Name:     p.stream,
		Subjects: []string{p.prefix + ".>"},
		Storage:  nats.FileStorage,
		MaxAge:   streamMaxAge,
		MaxMsgs:  streamMaxMsgs,
	})
	if err != nil {
		if errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			p.logger.Info("Stream already exists", zap.String("stream", p.stream))
			return nil
		}
		return err
	}

	p.logger.Info("Stream created successfully", zap.String("stream", p.stream))
	return nil
}

// Subject returns the subject a healing action for alertName is published on
func (p *Publisher) Subject(alertName string) string {
	token := strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, alertName)
	if token == "" {
		token = "_"
	}
	return p.prefix + "." + token
}

// Store publishes one healing action
func (p *Publisher) Store(ctx context.Context, action *model.HealingAction) error {
	data, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("failed to marshal healing action: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	subject := p.Subject(action.AlertName)
	if _, err := p.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish healing action: %w", err)
	}

	p.logger.Debug("Healing action published",
		zap.String("subject", subject),
		zap.String("status", string(action.Status)))
	return nil
}

// Subscribe delivers every healing action published after the call until ctx is done
func (p *Publisher) Subscribe(ctx context.Context, handler func(*model.HealingAction)) error {
	sub, err := p.js.Subscribe(p.prefix+".>", func(msg *nats.Msg) {
		var action model.HealingAction
		if err := json.Unmarshal(msg.Data, &action); err != nil {
			p.logger.Error("Failed to unmarshal healing action", zap.Error(err))
			return
		}

		handler(&action)
		msg.Ack()
	}, nats.DeliverNew())
	if err != nil {
		return fmt.Errorf("failed to subscribe to healing actions: %w", err)
	}

	go func() {
		<-ctx.Done()
		sub.Unsubscribe()
	}()

	return nil
}

// Connect dials the NATS server described by cfg
func Connect(cfg config.NATSConfig, name string, logger *zap.Logger) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.ConnectTimeout),
		nats.PingInterval(20 * time.Second),
		nats.MaxPingsOutstanding(5),
		nats.DrainTimeout(10 * time.Second),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			logger.Error("NATS connection error",
				zap.String("subject", subject),
				zap.Error(err))
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected",
				zap.String("url", nc.ConnectedUrl()))
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}
