package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Storage keys. Each key holds one JSON-serialized aggregate.
const (
	KeyProducts    = "products"
	KeyCart        = "cart"
	KeyUsers       = "users"
	KeyCurrentUser = "currentUser"
	KeyOrders      = "orders"
)

// ErrKeyNotFound is returned by Get when the key has never been set
// or was removed.
var ErrKeyNotFound = errors.New("key not found")

// Store is the key-value storage contract the repositories are built on.
// Implementations must treat values as opaque bytes.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// GetJSON loads key and unmarshals it into v. A missing key is reported
// as ErrKeyNotFound so callers can fall back to an empty aggregate.
func GetJSON(ctx context.Context, s Store, key string, v interface{}) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode value for key %q: %w", key, err)
	}
	return nil
}

// SetJSON marshals v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode value for key %q: %w", key, err)
	}
	return s.Set(ctx, key, data)
}
