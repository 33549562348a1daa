// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package index

import (
	"database/sql"
	"fmt"
)

// BlockRecord is one row of the blocks relation, naming where in which
// source a given (uid, block_number) occurrence was found.
type BlockRecord struct {
	BlockNumber uint32
	SourcePath  string
	Offset      int64
}

// BlocksForUID returns every block record for uid, de-duplicated by block
// number and ordered by block number ascending. When more than one source
// offset carries the same block number, the one with the lowest rowid
// (first inserted) wins — any choice is correct since all copies must
// decode identically by CRC.
func (s *Store) BlocksForUID(uid string) ([]BlockRecord, error) {
	rows, err := s.tx.Query(`
		SELECT b.block_number, src.path, b.offset
		FROM blocks b
		JOIN source src ON src.id = b.source_id
		WHERE b.rowid IN (
			SELECT MIN(rowid) FROM blocks WHERE uid = ? GROUP BY block_number
		)
		ORDER BY b.block_number ASC`, uid)
	if err != nil {
		return nil, fmt.Errorf("sbx: query blocks for %s: %w", uid, err)
	}
	defer rows.Close()

	var out []BlockRecord
	for rows.Next() {
		var r BlockRecord
		if err := rows.Scan(&r.BlockNumber, &r.SourcePath, &r.Offset); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MetaForUID returns the recorded block-0 metadata for uid, if any.
func (s *Store) MetaForUID(uid string) (*MetaRecord, error) {
	var m MetaRecord
	m.UID = uid
	err := s.tx.QueryRow(`SELECT filesize, filename, sbxname, file_datetime, sbx_datetime, source_id
		FROM meta WHERE uid = ?`, uid).
		Scan(&m.FileSize, &m.Filename, &m.SbxName, &m.FileDatetime, &m.SbxDatetime, &m.SourceID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sbx: query meta for %s: %w", uid, err)
	}
	return &m, nil
}

// VersionForUID returns the container version recorded for uid.
func (s *Store) VersionForUID(uid string) (int, error) {
	var version int
	err := s.tx.QueryRow(`SELECT version FROM uids WHERE uid = ?`, uid).Scan(&version)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("sbx: no uid recorded for %s", uid)
	}
	return version, err
}

// ListUIDs returns every UID the scan observed, in insertion order.
func (s *Store) ListUIDs() ([]string, error) {
	rows, err := s.tx.Query(`SELECT uid FROM uids ORDER BY rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		out = append(out, uid)
	}
	return out, rows.Err()
}

// ResolveByFilename returns the UID whose recorded original filename
// matches name, if any.
func (s *Store) ResolveByFilename(name string) (string, bool, error) {
	return s.resolveBy("filename", name)
}

// ResolveBySbxName returns the UID whose recorded container filename
// matches name, if any.
func (s *Store) ResolveBySbxName(name string) (string, bool, error) {
	return s.resolveBy("sbxname", name)
}

func (s *Store) resolveBy(column, value string) (string, bool, error) {
	var uid string
	err := s.tx.QueryRow(fmt.Sprintf(`SELECT uid FROM meta WHERE %s = ?`, column), value).Scan(&uid)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return uid, true, nil
}

// ReportRow is one line of the human-readable recoverability report,
// grounded on the original SeqBox recovery tool's report() function.
type ReportRow struct {
	UID          string
	BlockCount   int
	FileSize     int64
	SizeEstimate bool // true when FileSize was inferred from block count
	SbxName      string
}

// Report lists every UID the index knows about, with its block count and
// a filesize that's exact when FSZ was recorded and an estimate (flagged)
// otherwise.
func (s *Store) Report(payloadSizeForEstimate func(uid string) int) ([]ReportRow, error) {
	uids, err := s.ListUIDs()
	if err != nil {
		return nil, err
	}
	var out []ReportRow
	for _, uid := range uids {
		blocks, err := s.BlocksForUID(uid)
		if err != nil {
			return nil, err
		}
		row := ReportRow{UID: uid, BlockCount: len(blocks)}
		meta, err := s.MetaForUID(uid)
		if err != nil {
			return nil, err
		}
		if meta != nil {
			row.SbxName = meta.SbxName
		}
		if meta != nil && meta.FileSize >= 0 {
			row.FileSize = meta.FileSize
		} else {
			row.SizeEstimate = true
			dataBlocks := 0
			for _, b := range blocks {
				if b.BlockNumber > 0 {
					dataBlocks++
				}
			}
			row.FileSize = int64(dataBlocks * payloadSizeForEstimate(uid))
		}
		out = append(out, row)
	}
	return out, nil
}
