// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package sbx

import (
	"fmt"
)

// Recognized metadata TLV tags, in their canonical encoding order.
const (
	tagFilename    = "FNM"
	tagSbxFilename = "SNM"
	tagFileSize    = "FSZ"
	tagFileDate    = "FDT"
	tagSbxDate     = "SDT"
	tagHash        = "HSH"
)

// canonicalTagOrder is the order the encoder emits TLV records in; only
// tags actually present in a Metadata value are written.
var canonicalTagOrder = []string{tagFilename, tagSbxFilename, tagFileSize, tagFileDate, tagSbxDate, tagHash}

// multihashSHA256 is the one-byte algorithm code this package writes into
// the HSH record: multihash code 0x12 means SHA-256.
const multihashSHA256 = 0x12

// UnknownTLV preserves a metadata record this version of the package does
// not recognize, so a round trip through Decode/Encode never silently
// drops unrecognized forward-compatible data the caller explicitly chose
// to keep.
type UnknownTLV struct {
	Tag   string
	Value []byte
}

// Metadata is the decoded content of a container's block 0. Every field is
// optional, matching the format's TLV design: absence of FSZ means the
// last data block is padded, absence of HSH means no integrity check is
// possible, and so on.
type Metadata struct {
	Filename     string // FNM: original filename
	HasFilename  bool
	SbxFilename  string // SNM: container filename
	HasSbxName   bool
	FileSize     uint64 // FSZ: original file size in bytes
	HasFileSize  bool
	FileDate     int64 // FDT: original file mtime, epoch seconds
	HasFileDate  bool
	SbxDate      int64 // SDT: container creation time, epoch seconds
	HasSbxDate   bool
	Hash         []byte // HSH: raw digest bytes (without the multihash frame)
	HashAlgo     byte   // multihash algorithm code; only meaningful if Hash != nil
	HasHash      bool
	Unknown      []UnknownTLV
}

// SetFileSize is a convenience setter that also flips the presence flag.
func (m *Metadata) SetFileSize(n uint64) { m.FileSize, m.HasFileSize = n, true }

// SetHash stores a SHA-256 digest as a multihash-framed HSH record.
func (m *Metadata) SetHash(digest []byte) {
	m.Hash, m.HashAlgo, m.HasHash = digest, multihashSHA256, true
}

// encodeTLV serializes m into the canonical tag order, returning a byte
// slice no larger than payloadSize. It returns an error if the encoded
// form would not fit.
func encodeTLV(m *Metadata, payloadSize int) ([]byte, error) {
	var out []byte
	appendRecord := func(tag string, value []byte) error {
		if len(value) > 255 {
			return fmt.Errorf("sbx: metadata field %q too long: %d bytes", tag, len(value))
		}
		out = append(out, tag...)
		out = append(out, byte(len(value)))
		out = append(out, value...)
		return nil
	}
	if m.HasFilename {
		if err := appendRecord(tagFilename, []byte(m.Filename)); err != nil {
			return nil, err
		}
	}
	if m.HasSbxName {
		if err := appendRecord(tagSbxFilename, []byte(m.SbxFilename)); err != nil {
			return nil, err
		}
	}
	if m.HasFileSize {
		if err := appendRecord(tagFileSize, beUint(m.FileSize)); err != nil {
			return nil, err
		}
	}
	if m.HasFileDate {
		if err := appendRecord(tagFileDate, beInt(m.FileDate)); err != nil {
			return nil, err
		}
	}
	if m.HasSbxDate {
		if err := appendRecord(tagSbxDate, beInt(m.SbxDate)); err != nil {
			return nil, err
		}
	}
	if m.HasHash {
		value := append([]byte{m.HashAlgo, byte(len(m.Hash))}, m.Hash...)
		if err := appendRecord(tagHash, value); err != nil {
			return nil, err
		}
	}
	for _, u := range m.Unknown {
		if err := appendRecord(u.Tag, u.Value); err != nil {
			return nil, err
		}
	}
	if len(out) > payloadSize {
		return nil, fmt.Errorf("sbx: metadata block too large: %d bytes > %d payload", len(out), payloadSize)
	}
	padded := make([]byte, payloadSize)
	copy(padded, out)
	for i := len(out); i < payloadSize; i++ {
		padded[i] = Padding
	}
	return padded, nil
}

// decodeTLV parses the TLV stream of a block-0 payload, stopping at the
// 0x1A 0x1A 0x1A sentinel or at the end of the payload, whichever comes
// first. Any tag it does not recognize is preserved in Unknown rather than
// discarded. A length that would run past the payload is reported as
// TruncatedTlv.
func decodeTLV(payload []byte) (*Metadata, error) {
	m := &Metadata{}
	p := 0
	for p+3 <= len(payload) {
		tag := payload[p : p+3]
		if tag[0] == Padding && tag[1] == Padding && tag[2] == Padding {
			break
		}
		if p+4 > len(payload) {
			return nil, &Error{Kind: TruncatedTlv, Offset: -1, Err: fmt.Errorf("sbx: truncated tlv tag at byte %d", p)}
		}
		length := int(payload[p+3])
		start := p + 4
		end := start + length
		if end > len(payload) {
			return nil, &Error{Kind: TruncatedTlv, Offset: -1, Err: fmt.Errorf("sbx: tlv %q length %d exceeds payload", tag, length)}
		}
		value := payload[start:end]
		switch string(tag) {
		case tagFilename:
			m.Filename, m.HasFilename = string(value), true
		case tagSbxFilename:
			m.SbxFilename, m.HasSbxName = string(value), true
		case tagFileSize:
			m.FileSize, m.HasFileSize = uint64FromBE(value), true
		case tagFileDate:
			m.FileDate, m.HasFileDate = int64FromBE(value), true
		case tagSbxDate:
			m.SbxDate, m.HasSbxDate = int64FromBE(value), true
		case tagHash:
			if len(value) >= 2 {
				algo, dlen := value[0], int(value[1])
				if 2+dlen <= len(value) {
					m.HashAlgo = algo
					m.Hash = append([]byte(nil), value[2:2+dlen]...)
					m.HasHash = true
				}
			}
		default:
			m.Unknown = append(m.Unknown, UnknownTLV{Tag: string(tag), Value: append([]byte(nil), value...)})
		}
		p = end
	}
	return m, nil
}

// beUint encodes v as a fixed 8-byte big-endian value, matching the
// original SeqBox encoder's FSZ.to_bytes(8, byteorder='big').
func beUint(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

func beInt(v int64) []byte {
	return beUint(uint64(v))
}

func uint64FromBE(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = (v << 8) | uint64(c)
	}
	return v
}

func int64FromBE(b []byte) int64 {
	if len(b) == 0 {
		return 0
	}
	v := uint64FromBE(b)
	// sign-extend from the width actually stored.
	bits := uint(len(b)) * 8
	if bits < 64 && v&(1<<(bits-1)) != 0 {
		v |= ^uint64(0) << bits
	}
	return int64(v)
}
