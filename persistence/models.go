package persistence

import "time"

// torrentDownloadsRow is the GORM model for the torrent_downloads table,
// per SPEC_FULL.md §6's persistent-state layout.
type torrentDownloadsRow struct {
	InfoHash   string `gorm:"primaryKey;column:info_hash;size:40"`
	Downloaded uint32 `gorm:"column:downloaded"`
}

func (torrentDownloadsRow) TableName() string { return "torrent_downloads" }

// globalDownloadsRow is the singleton-row GORM model for global_downloads.
type globalDownloadsRow struct {
	ID         uint   `gorm:"primaryKey;column:id"`
	Downloaded uint32 `gorm:"column:downloaded"`
}

func (globalDownloadsRow) TableName() string { return "global_downloads" }

// whitelistRow is the GORM model for the whitelist table.
type whitelistRow struct {
	InfoHash string `gorm:"primaryKey;column:info_hash;size:40"`
}

func (whitelistRow) TableName() string { return "whitelist" }

// keyRow is the GORM model for the keys table.
type keyRow struct {
	Key        string     `gorm:"primaryKey;column:key;size:32"`
	ValidUntil *time.Time `gorm:"column:valid_until"`
}

func (keyRow) TableName() string { return "keys" }
