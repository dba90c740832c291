package persistence

import (
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func init() {
	Register("mysql", openMysql)
}

// openMysql opens dsn (a MySQL DSN, e.g.
// "user:pass@tcp(127.0.0.1:3306)/tracker?parseTime=true") and migrates the
// schema, grounded on
// _examples/other_examples/935d4a95_chihaya-chihaya__storage-database-peer_store.go.go's
// NewPostgres constructor generalized to the mysql dialector.
func openMysql(dsn string) (Driver, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return newGormDriver(db)
}
