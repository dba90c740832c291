package trackercore

import (
	"context"
	"errors"

	"github.com/majestrate/bittorrent-tracker/persistence"
	"github.com/majestrate/bittorrent-tracker/swarm"
)

// ErrNotWhitelisted is returned by Authorize when the tracker runs in listed
// mode and infoHash has no whitelist entry.
var ErrNotWhitelisted = errors.New("trackercore: torrent not whitelisted")

// WhitelistAuthorization gates announces/scrapes by info-hash when the
// tracker is configured for listed mode, grounded on the teacher's
// config.WhitelistConfig + passkey check in the deleted tracker/scrape.go.
type WhitelistAuthorization struct {
	Enabled bool
	Store   persistence.Driver
}

// Authorize succeeds unconditionally when listed mode is disabled; otherwise
// it consults the persistence-backed whitelist.
func (w *WhitelistAuthorization) Authorize(ctx context.Context, infoHash swarm.InfoHash) error {
	if !w.Enabled {
		return nil
	}
	listed, err := w.Store.IsWhitelisted(ctx, infoHash)
	if err != nil {
		return err
	}
	if !listed {
		return ErrNotWhitelisted
	}
	return nil
}
