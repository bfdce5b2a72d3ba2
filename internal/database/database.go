package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the sqlite handle with trackbook storage operations. All
// occupancy mutations go through reservation transactions defined in
// bookings.go; nothing else touches the counters.
type DB struct {
	*sql.DB
	logger *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dsn := path
	if path == ":memory:" {
		dsn = "file::memory:?cache=shared"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_busy_timeout=10000&_journal_mode=WAL", path)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// shared-cache in-memory DB lives as long as one connection does
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return &DB{DB: db, logger: logger}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS events (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            host_id INTEGER NOT NULL,
            name TEXT NOT NULL,
            address TEXT NOT NULL,
            longitude REAL NOT NULL DEFAULT 0,
            latitude REAL NOT NULL DEFAULT 0,
            description TEXT,
            start_at DATETIME NOT NULL,
            end_at DATETIME NOT NULL,
            more_info TEXT NOT NULL DEFAULT '[]',
            status TEXT NOT NULL DEFAULT 'open',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS tracks (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            host_id INTEGER NOT NULL,
            name TEXT NOT NULL,
            category TEXT NOT NULL,
            address TEXT NOT NULL,
            longitude REAL NOT NULL DEFAULT 0,
            latitude REAL NOT NULL DEFAULT 0,
            description TEXT,
            track_days TEXT NOT NULL DEFAULT '[]',
            total_track_day_in_month INTEGER NOT NULL DEFAULT 0,
            status TEXT NOT NULL DEFAULT 'deactivated',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS event_slots (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            event_id INTEGER NOT NULL REFERENCES events(id),
            host_id INTEGER NOT NULL,
            slot_no TEXT NOT NULL,
            price REAL NOT NULL,
            currency TEXT NOT NULL,
            max_people INTEGER NOT NULL CHECK (max_people >= 1),
            current_people INTEGER NOT NULL DEFAULT 0
                CHECK (current_people >= 0 AND current_people <= max_people),
            description TEXT,
            status TEXT NOT NULL DEFAULT 'open',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS track_slots (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            track_id INTEGER NOT NULL REFERENCES tracks(id),
            host_id INTEGER NOT NULL,
            day TEXT NOT NULL,
            slot_no TEXT NOT NULL,
            start_time TEXT NOT NULL,
            end_time TEXT NOT NULL,
            price REAL NOT NULL,
            currency TEXT NOT NULL,
            max_people INTEGER NOT NULL CHECK (max_people >= 1),
            description TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS bookings (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            user_id INTEGER NOT NULL,
            host_id INTEGER NOT NULL,
            event_id INTEGER,
            event_slot_id INTEGER,
            track_id INTEGER,
            track_slot_id INTEGER,
            date TEXT NOT NULL,
            start_at DATETIME NOT NULL,
            end_at DATETIME NOT NULL,
            price REAL NOT NULL,
            currency TEXT NOT NULL,
            num_people INTEGER NOT NULL CHECK (num_people >= 1),
            booking_for TEXT,
            more_info TEXT NOT NULL DEFAULT '[]',
            status TEXT NOT NULL DEFAULT 'unpaid',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS payments (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            user_id INTEGER NOT NULL,
            host_id INTEGER NOT NULL,
            business_type TEXT NOT NULL,
            event_id INTEGER,
            track_id INTEGER,
            amount REAL NOT NULL,
            currency TEXT NOT NULL,
            checkout_session_id TEXT NOT NULL UNIQUE,
            payment_intent_id TEXT,
            is_promotion BOOLEAN NOT NULL DEFAULT 0,
            status TEXT NOT NULL DEFAULT 'unpaid',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS payment_bookings (
            payment_id INTEGER NOT NULL REFERENCES payments(id),
            booking_id INTEGER NOT NULL REFERENCES bookings(id),
            PRIMARY KEY (payment_id, booking_id)
        )`,
		`CREATE TABLE IF NOT EXISTS promotions (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            host_id INTEGER NOT NULL,
            track_id INTEGER NOT NULL REFERENCES tracks(id),
            checkout_session_id TEXT NOT NULL UNIQUE,
            banner_image TEXT NOT NULL,
            expired_at DATETIME NOT NULL,
            status TEXT NOT NULL DEFAULT 'unpaid',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE INDEX IF NOT EXISTS idx_events_host ON events(host_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_status ON events(status)`,
		`CREATE INDEX IF NOT EXISTS idx_tracks_host ON tracks(host_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tracks_status ON tracks(status)`,
		`CREATE INDEX IF NOT EXISTS idx_event_slots_event ON event_slots(event_id)`,
		`CREATE INDEX IF NOT EXISTS idx_track_slots_track ON track_slots(track_id)`,
		`CREATE INDEX IF NOT EXISTS idx_track_slots_day ON track_slots(day)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_user ON bookings(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_event_slot ON bookings(event_slot_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_track_slot_date ON bookings(track_slot_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_status ON payments(status)`,
		`CREATE INDEX IF NOT EXISTS idx_promotions_status ON promotions(status)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}
