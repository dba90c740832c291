package persistence

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func init() {
	Register("sqlite", openSqlite)
}

// openSqlite opens dsn (a sqlite DSN, e.g. "file:tracker.db?cache=shared")
// and migrates the schema, grounded on
// _examples/other_examples/935d4a95_chihaya-chihaya__storage-database-peer_store.go.go's
// NewSqlite constructor.
func openSqlite(dsn string) (Driver, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return newGormDriver(db)
}
