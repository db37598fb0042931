package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

// DefaultEtcdPrefix roots every key written by EtcdWriter
const DefaultEtcdPrefix = "/hostcheck"

// EtcdConfig holds connection settings for EtcdWriter
type EtcdConfig struct {
	Endpoints   []string
	Prefix      string
	DialTimeout time.Duration
}

// EtcdWriter stores records in etcd, one key per record
type EtcdWriter struct {
	client *clientv3.Client
	prefix string
}

// NewEtcdWriter connects to the configured endpoints
func NewEtcdWriter(cfg EtcdConfig, logger *zap.Logger) (*EtcdWriter, error) {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
		Logger:      logger.Named("etcd"),
	})
	if err != nil {
		return nil, fmt.Errorf("connect etcd: %w", err)
	}
	return NewEtcdWriterFromClient(cli, cfg.Prefix), nil
}

// NewEtcdWriterFromClient wraps an existing client
func NewEtcdWriterFromClient(cli *clientv3.Client, prefix string) *EtcdWriter {
	if prefix == "" {
		prefix = DefaultEtcdPrefix
	}
	return &EtcdWriter{client: cli, prefix: strings.TrimSuffix(prefix, "/")}
}

// Write puts the record only if its key has never been created
func (e *EtcdWriter) Write(ctx context.Context, rec Record) error {
	key := Key(e.prefix, rec)
	resp, err := e.client.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
		Then(clientv3.OpPut(key, string(rec.Payload))).
		Commit()
	if err != nil {
		return fmt.Errorf("etcd txn %s: %w", key, err)
	}
	if !resp.Succeeded {
		return fmt.Errorf("%s: %w", key, ErrExists)
	}
	return nil
}

// Close releases the etcd connection
func (e *EtcdWriter) Close() error {
	return e.client.Close()
}
