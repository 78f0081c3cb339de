package test

import (
	dbUtils "tokamak-group-rollup/database"

	"github.com/jmoiron/sqlx"
)

// WipeDB redo all the migrations of the SQL DB, efectively recreating the
// original state
func WipeDB(db *sqlx.DB) {
	if err := dbUtils.MigrationsDown(db.DB, 0); err != nil {
		panic(err)
	}
	if err := dbUtils.MigrationsUp(db.DB); err != nil {
		panic(err)
	}
}

// MigrationsDownTest downs all the migrations of the SQL DB
func MigrationsDownTest(db *sqlx.DB) {
	if err := dbUtils.MigrationsDown(db.DB, 0); err != nil {
		panic(err)
	}
}

// MigrationsUpTest runs all the migrations of the SQL DB
func MigrationsUpTest(db *sqlx.DB) {
	if err := dbUtils.MigrationsUp(db.DB); err != nil {
		panic(err)
	}
}
