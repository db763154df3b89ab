package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/jacentio/ordinal/internal/config"
	"github.com/jacentio/ordinal/notify"
	"github.com/jacentio/ordinal/order"
	"github.com/jacentio/ordinal/sqlstore"
	"github.com/jacentio/ordinal/store"
)

// Session is an opened backend with its orderer.
type Session struct {
	Orderer *order.Orderer

	// Tables is set for the DynamoDB backend so init can create the table.
	Tables store.TableAPI
	Table  string

	closers []func() error
}

// Close releases everything the session opened, newest first.
func (s *Session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Opener opens a session for a configuration.
type Opener func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Session, error)

// OpenBackend opens the configured backend and, when a NATS URL is set,
// attaches a JetStream notifier.
func OpenBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Session, error) {
	s := &Session{}

	var backend order.Backend
	switch cfg.Backend {
	case config.BackendSQLite:
		st, err := sqlstore.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, st.Close)
		backend = st
	case config.BackendDynamoDB:
		client, err := cfg.DynamoDB.NewClient(ctx)
		if err != nil {
			return nil, err
		}
		backend = store.New(client, cfg.StoreConfig())
		s.Tables = client
		s.Table = cfg.DynamoDB.Table
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	s.Orderer = order.New(backend, logger)

	if cfg.NATS.URL != "" {
		n, closeConn, err := connectNotifier(ctx, cfg.NATS)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, closeConn)
		s.Orderer.SetNotifier(n)
		logger.Debug("publishing change events", "url", cfg.NATS.URL, "prefix", cfg.NATS.SubjectPrefix)
	}

	return s, nil
}

func connectNotifier(ctx context.Context, cfg config.NATSConfig) (*notify.JetStreamNotifier, func() error, error) {
	nc, err := nats.Connect(cfg.URL, nats.Name("ordinal"))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create jetstream: %w", err)
	}

	n, err := notify.NewJetStreamNotifier(ctx, js, notify.Options{
		SubjectPrefix: cfg.SubjectPrefix,
		StreamName:    cfg.StreamName,
		RetryAttempts: 2,
	})
	if err != nil {
		nc.Close()
		return nil, nil, err
	}
	return n, nc.Drain, nil
}
