package persistence

import (
	"context"
	"encoding/hex"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// gormDriver implements Driver over a *gorm.DB; both the sqlite and mysql
// drivers are thin constructors around this shared implementation, grounded
// on
// _examples/other_examples/935d4a95_chihaya-chihaya__storage-database-peer_store.go.go's
// NewPostgres/NewSqlite construction pattern (open dialector, AutoMigrate,
// share one implementation struct).
type gormDriver struct {
	db *gorm.DB
}

func newGormDriver(db *gorm.DB) (*gormDriver, error) {
	if err := db.AutoMigrate(&torrentDownloadsRow{}, &globalDownloadsRow{}, &whitelistRow{}, &keyRow{}); err != nil {
		return nil, err
	}
	return &gormDriver{db: db}, nil
}

func hashHex(h [20]byte) string { return hex.EncodeToString(h[:]) }

func (d *gormDriver) CreateTables(ctx context.Context) error {
	return d.db.WithContext(ctx).AutoMigrate(&torrentDownloadsRow{}, &globalDownloadsRow{}, &whitelistRow{}, &keyRow{})
}

func (d *gormDriver) DropTables(ctx context.Context) error {
	return d.db.WithContext(ctx).Migrator().DropTable(&torrentDownloadsRow{}, &globalDownloadsRow{}, &whitelistRow{}, &keyRow{})
}

func (d *gormDriver) LoadAllTorrentDownloads(ctx context.Context) (map[[20]byte]uint32, error) {
	var rows []torrentDownloadsRow
	if err := d.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[[20]byte]uint32, len(rows))
	for _, row := range rows {
		raw, err := hex.DecodeString(row.InfoHash)
		if err != nil || len(raw) != 20 {
			continue
		}
		var h [20]byte
		copy(h[:], raw)
		out[h] = row.Downloaded
	}
	return out, nil
}

func (d *gormDriver) LoadTorrentDownloads(ctx context.Context, infoHash [20]byte) (uint32, error) {
	var row torrentDownloadsRow
	err := d.db.WithContext(ctx).Where("info_hash = ?", hashHex(infoHash)).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return 0, nil
	}
	return row.Downloaded, err
}

func (d *gormDriver) SaveTorrentDownloads(ctx context.Context, infoHash [20]byte, n uint32) error {
	row := torrentDownloadsRow{InfoHash: hashHex(infoHash), Downloaded: n}
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "info_hash"}},
		DoUpdates: clause.AssignmentColumns([]string{"downloaded"}),
	}).Create(&row).Error
}

func (d *gormDriver) IncreaseDownloadsForTorrent(ctx context.Context, infoHash [20]byte) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row torrentDownloadsRow
		err := tx.Where("info_hash = ?", hashHex(infoHash)).First(&row).Error
		switch err {
		case gorm.ErrRecordNotFound:
			return tx.Create(&torrentDownloadsRow{InfoHash: hashHex(infoHash), Downloaded: 1}).Error
		case nil:
			return tx.Model(&row).Update("downloaded", row.Downloaded+1).Error
		default:
			return err
		}
	})
}

func (d *gormDriver) LoadGlobalDownloads(ctx context.Context) (uint32, bool, error) {
	var row globalDownloadsRow
	err := d.db.WithContext(ctx).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return 0, false, nil
	}
	return row.Downloaded, err == nil, err
}

func (d *gormDriver) SaveGlobalDownloads(ctx context.Context, n uint32) error {
	row := globalDownloadsRow{ID: 1, Downloaded: n}
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"downloaded"}),
	}).Create(&row).Error
}

func (d *gormDriver) IncreaseGlobalDownloads(ctx context.Context) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row globalDownloadsRow
		err := tx.First(&row).Error
		switch err {
		case gorm.ErrRecordNotFound:
			return tx.Create(&globalDownloadsRow{ID: 1, Downloaded: 1}).Error
		case nil:
			return tx.Model(&row).Update("downloaded", row.Downloaded+1).Error
		default:
			return err
		}
	})
}

func (d *gormDriver) LoadWhitelist(ctx context.Context) ([][20]byte, error) {
	var rows []whitelistRow
	if err := d.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([][20]byte, 0, len(rows))
	for _, row := range rows {
		raw, err := hex.DecodeString(row.InfoHash)
		if err != nil || len(raw) != 20 {
			continue
		}
		var h [20]byte
		copy(h[:], raw)
		out = append(out, h)
	}
	return out, nil
}

func (d *gormDriver) AddToWhitelist(ctx context.Context, infoHash [20]byte) error {
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&whitelistRow{InfoHash: hashHex(infoHash)}).Error
}

func (d *gormDriver) RemoveFromWhitelist(ctx context.Context, infoHash [20]byte) error {
	return d.db.WithContext(ctx).Delete(&whitelistRow{}, "info_hash = ?", hashHex(infoHash)).Error
}

func (d *gormDriver) IsWhitelisted(ctx context.Context, infoHash [20]byte) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&whitelistRow{}).Where("info_hash = ?", hashHex(infoHash)).Count(&count).Error
	return count > 0, err
}

func (d *gormDriver) LoadKeys(ctx context.Context) ([]PeerKey, error) {
	var rows []keyRow
	if err := d.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]PeerKey, 0, len(rows))
	for _, row := range rows {
		out = append(out, PeerKey{Key: row.Key, ValidUntil: row.ValidUntil})
	}
	return out, nil
}

func (d *gormDriver) AddKey(ctx context.Context, key PeerKey) error {
	row := keyRow{Key: key.Key, ValidUntil: key.ValidUntil}
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"valid_until"}),
	}).Create(&row).Error
}

func (d *gormDriver) RemoveKey(ctx context.Context, key string) error {
	return d.db.WithContext(ctx).Delete(&keyRow{}, "key = ?", key).Error
}

func (d *gormDriver) GetKey(ctx context.Context, key string) (PeerKey, bool, error) {
	var row keyRow
	err := d.db.WithContext(ctx).Where("key = ?", key).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return PeerKey{}, false, nil
	}
	if err != nil {
		return PeerKey{}, false, err
	}
	return PeerKey{Key: row.Key, ValidUntil: row.ValidUntil}, true, nil
}

func (d *gormDriver) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
