package config

import (
	"encoding/hex"
	"fmt"
)

// Store kinds
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreFile   = "file"
)

type StoreConfig interface {
	GetStoreKind() string
	GetRedisAddr() string
	GetStoreFile() string
	GetStoreKey() ([]byte, error)
	GetNamespace() string
}

type Store struct {
	Kind      string `env:"LOGIN_STORE" envDefault:"memory"`
	RedisAddr string `env:"LOGIN_REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	File      string `env:"LOGIN_STORE_FILE" envDefault:"./data/tokens.json"`
	Key       string `env:"LOGIN_STORE_KEY"`
	Namespace string `env:"LOGIN_NAMESPACE" envDefault:"sociallogin_"`
}

var _ StoreConfig = Store{}

func (s Store) GetStoreKind() string {
	return s.Kind
}

func (s Store) GetRedisAddr() string {
	return s.RedisAddr
}

func (s Store) GetStoreFile() string {
	return s.File
}

// GetStoreKey decodes the hex encoded 32 byte file store key. An unset key returns nil.
func (s Store) GetStoreKey() ([]byte, error) {
	if s.Key == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(s.Key)
	if err != nil {
		return nil, fmt.Errorf("[config GetStoreKey] LOGIN_STORE_KEY is not hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("[config GetStoreKey] LOGIN_STORE_KEY must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

// GetNamespace prefixes every key written to the store.
func (s Store) GetNamespace() string {
	return s.Namespace
}
