// Package persistence implements the driver-agnostic store for aggregate
// download counts, the whitelist, and private-mode keys (C4), with a
// self-registering driver registry (C14) adapted from the teacher's
// backend.Register("uguu", &uguuDriver{}) idiom.
package persistence

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrUnknownDriver is returned by Open for a driver name with no registered
// factory.
var ErrUnknownDriver = errors.New("persistence: unknown driver")

// PeerKey is a private-mode authorization key, per SPEC_FULL.md §3.
type PeerKey struct {
	Key        string
	ValidUntil *time.Time // nil means permanent
}

// Driver is the interface every persistence backend implements, per
// SPEC_FULL.md §4.4.
type Driver interface {
	CreateTables(ctx context.Context) error
	DropTables(ctx context.Context) error

	LoadAllTorrentDownloads(ctx context.Context) (map[[20]byte]uint32, error)
	LoadTorrentDownloads(ctx context.Context, infoHash [20]byte) (uint32, error)
	SaveTorrentDownloads(ctx context.Context, infoHash [20]byte, n uint32) error
	IncreaseDownloadsForTorrent(ctx context.Context, infoHash [20]byte) error

	LoadGlobalDownloads(ctx context.Context) (uint32, bool, error)
	SaveGlobalDownloads(ctx context.Context, n uint32) error
	IncreaseGlobalDownloads(ctx context.Context) error

	LoadWhitelist(ctx context.Context) ([][20]byte, error)
	AddToWhitelist(ctx context.Context, infoHash [20]byte) error
	RemoveFromWhitelist(ctx context.Context, infoHash [20]byte) error
	IsWhitelisted(ctx context.Context, infoHash [20]byte) (bool, error)

	LoadKeys(ctx context.Context) ([]PeerKey, error)
	AddKey(ctx context.Context, key PeerKey) error
	RemoveKey(ctx context.Context, key string) error
	GetKey(ctx context.Context, key string) (PeerKey, bool, error)

	Close() error
}

// Factory constructs a Driver from a driver-specific DSN string.
type Factory func(dsn string) (Driver, error)

var (
	registryMu sync.Mutex
	registry   = make(map[string]Factory)
)

// Register makes a driver factory available under name. It is meant to be
// called from a driver package's init(), mirroring the teacher's
// backend.Register self-registration idiom.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Open looks up the factory registered under name and invokes it with dsn.
func Open(name, dsn string) (Driver, error) {
	registryMu.Lock()
	factory, ok := registry[name]
	registryMu.Unlock()
	if !ok {
		return nil, ErrUnknownDriver
	}
	return factory(dsn)
}
