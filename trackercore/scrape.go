package trackercore

import (
	"context"

	"github.com/majestrate/bittorrent-tracker/swarm"
)

// ScrapeData is the result of a scrape request: one SwarmMetadata per
// requested info-hash, zeroed for any torrent the registry has no swarm for.
type ScrapeData struct {
	Files map[swarm.InfoHash]swarm.SwarmMetadata
}

// ScrapeHandler implements the shared scrape control flow, grounded on the
// teacher's tracker/scrape.go HandleScrape (now deleted, see DESIGN.md).
type ScrapeHandler struct {
	Registry *swarm.Registry
}

// HandleScrape looks up SwarmMetadata for every requested info-hash.
func (h *ScrapeHandler) HandleScrape(ctx context.Context, infoHashes []swarm.InfoHash) (ScrapeData, error) {
	files := make(map[swarm.InfoHash]swarm.SwarmMetadata, len(infoHashes))
	for _, ih := range infoHashes {
		files[ih] = h.Registry.GetSwarmMetadataOrDefault(ih)
	}
	return ScrapeData{Files: files}, nil
}
