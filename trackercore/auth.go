package trackercore

import (
	"context"
	"errors"
	"time"

	"github.com/majestrate/bittorrent-tracker/clock"
	"github.com/majestrate/bittorrent-tracker/persistence"
)

// ErrUnknownKey and ErrKeyExpired are returned by Authenticate for private
// mode's key-based gate, per SPEC_FULL.md §4.5.
var (
	ErrUnknownKey = errors.New("trackercore: unknown authentication key")
	ErrKeyExpired = errors.New("trackercore: authentication key expired")
)

// AuthenticationService gates announces/scrapes by a 32-character passkey
// when the tracker is configured for private mode, grounded on the teacher's
// private-mode passkey check in the deleted tracker/scrape.go (FindUser).
type AuthenticationService struct {
	Enabled bool
	Store   persistence.Driver
	Clock   clock.Clock
}

// Authenticate succeeds unconditionally when private mode is disabled;
// otherwise it looks key up in the persistence-backed key table and checks
// expiry against the service's clock.
func (a *AuthenticationService) Authenticate(ctx context.Context, key string) error {
	if !a.Enabled {
		return nil
	}
	pk, ok, err := a.Store.GetKey(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnknownKey
	}
	if pk.ValidUntil != nil && a.now().After(*pk.ValidUntil) {
		return ErrKeyExpired
	}
	return nil
}

func (a *AuthenticationService) now() time.Time {
	if a.Clock == nil {
		return time.Now()
	}
	return a.Clock.Now()
}
