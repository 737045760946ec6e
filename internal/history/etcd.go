package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"kalafw/internal/config"
	coreerrors "kalafw/internal/core/errors"
)

const etcdCallTimeout = 5 * time.Second

// kv is the subset of clientv3.KV used by EtcdStore.
type kv interface {
	Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
	Put(ctx context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error)
}

// EtcdStore keeps the newline-joined history under a single etcd key.
type EtcdStore struct {
	client *clientv3.Client
	kv     kv
	key    string
}

// NewEtcdStore connects to the configured endpoints.
func NewEtcdStore(cfg config.EtcdConfig) (*EtcdStore, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("etcd endpoints not configured")
	}

	dialTimeout := 5 * time.Second
	if cfg.DialTimeout != "" {
		d, err := time.ParseDuration(cfg.DialTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid etcd dial timeout: %w", err)
		}
		dialTimeout = d
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	return &EtcdStore{client: client, kv: client, key: cfg.Key}, nil
}

func newEtcdStoreWith(kv kv, key string) *EtcdStore {
	return &EtcdStore{kv: kv, key: key}
}

func (s *EtcdStore) Load(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, etcdCallTimeout)
	defer cancel()

	resp, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, coreerrors.NewHistoryError(fmt.Sprintf("failed to get key %s", s.key), err)
	}
	if len(resp.Kvs) == 0 {
		return nil, nil
	}

	var entries []string
	for _, line := range strings.Split(string(resp.Kvs[0].Value), "\n") {
		if line != "" {
			entries = append(entries, line)
		}
	}
	return entries, nil
}

func (s *EtcdStore) Save(ctx context.Context, entries []string) error {
	ctx, cancel := context.WithTimeout(ctx, etcdCallTimeout)
	defer cancel()

	if _, err := s.kv.Put(ctx, s.key, strings.Join(entries, "\n")); err != nil {
		return coreerrors.NewHistoryError(fmt.Sprintf("failed to set key %s", s.key), err)
	}
	return nil
}

func (s *EtcdStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// NewStore builds the store selected by cfg.History.Backend.
func NewStore(cfg *config.Config) (Store, error) {
	switch cfg.History.Backend {
	case config.HistoryEtcd:
		return NewEtcdStore(cfg.History.Etcd)
	default:
		if cfg.Session.HistoryFile == "" {
			return NopStore{}, nil
		}
		return NewFileStore(cfg.Session.HistoryFile), nil
	}
}
