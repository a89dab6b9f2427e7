package storage

import (
	"context"
)

type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Remove deletes every given key; missing keys are not an error.
	Remove(ctx context.Context, keys ...string) error
	Keys(ctx context.Context) ([]string, error)
}
