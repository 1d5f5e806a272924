package database

import (
	"time"

	"gorm.io/gorm"
)

type Database struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db, now: time.Now}
}

// WithClock подменяет источник времени (используется в тестах для устаревших строк).
func (d *Database) WithClock(now func() time.Time) *Database {
	d.now = now
	return d
}

func (d *Database) clock() time.Time {
	if d.now == nil {
		return time.Now().UTC()
	}
	return d.now().UTC()
}
