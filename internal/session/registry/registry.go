// Package registry is the fast, TTL-backed record of which access and
// refresh token ids are currently live and how they point at each other.
//
// Two key families exist:
//
//	refresh:<rjti> -> ajti currently bound to the refresh token
//	access:<ajti>  -> rjti the access token was minted from
package registry

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound    = errors.New("registry: not found")
	ErrUnavailable = errors.New("registry: unavailable")
)

const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

// Key builds the "<kind>:<id>" key for a registry entry.
func Key(kind, id string) string {
	return kind + ":" + id
}

// AccessKey is shorthand for Key(KindAccess, ajti).
func AccessKey(ajti string) string { return Key(KindAccess, ajti) }

// RefreshKey is shorthand for Key(KindRefresh, rjti).
func RefreshKey(rjti string) string { return Key(KindRefresh, rjti) }

type OpKind uint8

const (
	OpSet OpKind = iota + 1
	OpDelete
)

// Op is one step of an atomic batch.
type Op struct {
	Kind  OpKind
	Key   string
	Value string
	TTL   time.Duration
}

func Set(key, value string, ttl time.Duration) Op {
	return Op{Kind: OpSet, Key: key, Value: value, TTL: ttl}
}

func Delete(key string) Op {
	return Op{Kind: OpDelete, Key: key}
}

// Registry is implemented by the Redis store. Every method is bounded by the
// caller's context; nothing is retried.
type Registry interface {
	// Set writes key with the given ttl. A non-positive ttl is rejected.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Get returns ErrNotFound when the key is absent or expired.
	Get(ctx context.Context, key string) (string, error)

	Delete(ctx context.Context, keys ...string) error

	// Exec applies ops as one all-or-nothing batch.
	Exec(ctx context.Context, ops ...Op) error

	// Rebind atomically moves the refresh family rjti onto newAJTI: the
	// previously bound access entry is deleted, access:<newAJTI> is written
	// with accessTTL and refresh:<rjti> is repointed keeping its own ttl.
	// It returns the previous ajti, or ErrNotFound when the family is gone.
	Rebind(ctx context.Context, rjti, newAJTI string, accessTTL time.Duration) (string, error)

	// Unbind atomically deletes refresh:<rjti> and the access entry it
	// points at. It returns the ajti that was bound, or ErrNotFound.
	Unbind(ctx context.Context, rjti string) (string, error)

	Ping(ctx context.Context) error
	Close() error
}
