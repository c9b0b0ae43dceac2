package repository

import (
	"errors"

	"gorm.io/gorm"
)

// ErrStale is returned by conditional updates whose WHERE clause no longer matches,
// i.e. a concurrent writer changed the row first.
var ErrStale = errors.New("row was modified concurrently")

// conn returns tx when the caller runs inside a transaction, db otherwise.
func conn(db, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return db
}
