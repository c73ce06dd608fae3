package store

import (
	"context"

	"github.com/ValerySidorin/ferry/pkg/util"
	"github.com/go-kit/log"
	"github.com/grafana/dskit/kv"
	"github.com/grafana/dskit/kv/codec"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const credentialKey = "credential"

// KVStore shares the credential between ingest processes through consul or
// etcd.
type KVStore struct {
	kvStore kv.Client
}

func NewKVStore(cfg util.KVConfig, reg prometheus.Registerer, logger log.Logger) (*KVStore, error) {
	c, err := kv.NewClient(cfg.ToKVConfig(), codec.String{}, reg, logger)
	if err != nil {
		return nil, errors.Wrap(err, "create credential kv client")
	}

	return &KVStore{kvStore: c}, nil
}

func (s *KVStore) Get(ctx context.Context) ([]byte, error) {
	v, err := s.kvStore.Get(ctx, credentialKey)
	if err != nil {
		return nil, errors.Wrap(err, "get credential from kv")
	}
	if v == nil {
		return nil, nil
	}

	str, ok := v.(string)
	if !ok {
		return nil, errors.Errorf("unexpected credential value type %T", v)
	}
	return []byte(str), nil
}

func (s *KVStore) Put(ctx context.Context, b []byte) error {
	err := s.kvStore.CAS(ctx, credentialKey, func(in interface{}) (out interface{}, retry bool, err error) {
		return string(b), false, nil
	})
	if err != nil {
		return errors.Wrap(err, "put credential to kv")
	}

	return nil
}
