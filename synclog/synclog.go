// Package synclog records the clock's NTP sync history in a sqlite
// database so the status page can show how the clock has been keeping
// time.
package synclog

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const initDatabase = `
CREATE TABLE IF NOT EXISTS sync (date datetime not null, server text not null, offset_ns integer not null, rtt_ns integer not null, error text not null);
`

type DB struct {
	*sql.DB
}

func OpenDatabase(filename string) (*DB, error) {
	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(initDatabase); err != nil {
		return nil, err
	}
	return &DB{db}, nil
}

// RecordSync stores a successful sync.
func (db *DB) RecordSync(server string, offset, rtt time.Duration) error {
	if _, err := db.Exec("insert into sync values(?, ?, ?, ?, '')", time.Now(), server, offset.Nanoseconds(), rtt.Nanoseconds()); err != nil {
		return fmt.Errorf("record sync: %w", err)
	}
	return nil
}

// RecordFailure stores a failed sync attempt.
func (db *DB) RecordFailure(server string, syncErr error) error {
	if _, err := db.Exec("insert into sync values(?, ?, 0, 0, ?)", time.Now(), server, syncErr.Error()); err != nil {
		return fmt.Errorf("record sync failure: %w", err)
	}
	return nil
}

// Sync is one recorded sync attempt.  Error is empty for successes.
type Sync struct {
	Date   time.Time
	Server string
	Offset time.Duration
	RTT    time.Duration
	Error  string
}

// RecentSyncs returns up to n attempts, newest first.
func (db *DB) RecentSyncs(n int) ([]Sync, error) {
	rows, err := db.Query("select date, server, offset_ns, rtt_ns, error from sync order by date desc limit ?", n)
	if err != nil {
		return nil, fmt.Errorf("query syncs: %w", err)
	}
	defer rows.Close()
	var result []Sync
	for rows.Next() {
		var s Sync
		var offset, rtt int64
		if err := rows.Scan(&s.Date, &s.Server, &offset, &rtt, &s.Error); err != nil {
			return nil, fmt.Errorf("scan sync row: %w", err)
		}
		s.Offset = time.Duration(offset)
		s.RTT = time.Duration(rtt)
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read syncs: %w", err)
	}
	return result, nil
}
