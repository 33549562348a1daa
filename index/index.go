// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package index implements the keyed store the scanner populates and the
// reconstructor reads: the source, meta, uids, and blocks relations the
// recovery pipeline shares. Any transactional keyed store exposing this
// schema would do; an embedded SQL engine keeps the index a single
// portable file that a partial scan can leave behind in a usable state.
package index

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS source (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	path TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS uids (
	uid     TEXT PRIMARY KEY,
	version INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS meta (
	uid           TEXT PRIMARY KEY,
	filesize      INTEGER NOT NULL DEFAULT -1,
	filename      TEXT NOT NULL DEFAULT '',
	sbxname       TEXT NOT NULL DEFAULT '',
	file_datetime INTEGER NOT NULL DEFAULT -1,
	sbx_datetime  INTEGER NOT NULL DEFAULT -1,
	source_id     INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS blocks (
	uid          TEXT NOT NULL,
	block_number INTEGER NOT NULL,
	source_id    INTEGER NOT NULL,
	offset       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS blocks_uid_num_offset ON blocks(uid, block_number, offset);
`

// CommitInterval is how often a long scan commits its batched inserts, so
// that a crash or kill loses at most this much work. It matches the
// format's design notes' "~0.5s of scan time" guidance.
const CommitInterval = 500 * time.Millisecond

// Store is a single open handle onto an index database. It batches writes
// in an implicit transaction and commits on a timer via MaybeCommit, or
// unconditionally via Commit. Reads run inside the same transaction, so a
// query issued mid-scan observes the batched inserts that have not yet
// been committed.
type Store struct {
	db             *sql.DB
	tx             *sql.Tx
	lastCommit     time.Time
	commitInterval time.Duration
}

// Open creates path if it does not exist and ensures the schema is
// present.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sbx: open index %s: %w", path, err)
	}
	// A single connection keeps every statement, including reads issued
	// while a batch transaction is open, on one sqlite handle. Without it
	// a :memory: index would shear into one empty database per pooled
	// connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sbx: create index schema: %w", err)
	}
	s := &Store{db: db, commitInterval: CommitInterval, lastCommit: time.Now()}
	if err := s.begin(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) begin() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("sbx: begin index transaction: %w", err)
	}
	s.tx = tx
	s.lastCommit = time.Now()
	return nil
}

// InsertSource records path, returning its stable source id. Calling it
// twice for the same path returns the same id.
func (s *Store) InsertSource(path string) (int64, error) {
	if _, err := s.tx.Exec(`INSERT OR IGNORE INTO source(path) VALUES (?)`, path); err != nil {
		return 0, fmt.Errorf("sbx: insert source: %w", err)
	}
	var id int64
	if err := s.tx.QueryRow(`SELECT id FROM source WHERE path = ?`, path).Scan(&id); err != nil {
		return 0, fmt.Errorf("sbx: lookup source id: %w", err)
	}
	return id, nil
}

// InsertUID records that uid was observed at version. It is idempotent.
func (s *Store) InsertUID(uid string, version int) error {
	_, err := s.tx.Exec(`INSERT OR IGNORE INTO uids(uid, version) VALUES (?, ?)`, uid, version)
	return err
}

// InsertBlock records one observed block occurrence.
func (s *Store) InsertBlock(uid string, blockNumber uint32, sourceID, offset int64) error {
	_, err := s.tx.Exec(`INSERT INTO blocks(uid, block_number, source_id, offset) VALUES (?, ?, ?, ?)`,
		uid, blockNumber, sourceID, offset)
	return err
}

// MetaRecord is one observed block-0 row.
type MetaRecord struct {
	UID          string
	FileSize     int64
	Filename     string
	SbxName      string
	FileDatetime int64
	SbxDatetime  int64
	SourceID     int64
}

// InsertMeta records the metadata observed in a container's block 0. Only
// the first observation for a given UID is kept.
func (s *Store) InsertMeta(m MetaRecord) error {
	_, err := s.tx.Exec(`INSERT OR IGNORE INTO meta(uid, filesize, filename, sbxname, file_datetime, sbx_datetime, source_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.UID, m.FileSize, m.Filename, m.SbxName, m.FileDatetime, m.SbxDatetime, m.SourceID)
	return err
}

// MaybeCommit commits and starts a new transaction if CommitInterval has
// elapsed since the last commit, so a long scan aborted mid-run still
// yields a usable partial index.
func (s *Store) MaybeCommit() error {
	if time.Since(s.lastCommit) < s.commitInterval {
		return nil
	}
	return s.Commit()
}

// Commit commits the current transaction and starts a new one.
func (s *Store) Commit() error {
	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("sbx: commit index: %w", err)
	}
	return s.begin()
}

// Close commits any pending work and closes the underlying database.
func (s *Store) Close() error {
	if s.tx != nil {
		if err := s.tx.Commit(); err != nil {
			s.db.Close()
			return fmt.Errorf("sbx: final commit: %w", err)
		}
	}
	return s.db.Close()
}
