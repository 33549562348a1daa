// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package sbx

import (
	"encoding/binary"
	"fmt"
)

// Codec encodes and decodes blocks of one version, one UID, and
// (optionally) one password. A Codec holds only values derived at
// construction; Encode and Decode take every other input per call and never
// mutate the Codec, so one Codec may be used from several goroutines.
type Codec struct {
	layout   blockLayout
	uid      UID
	whitener *whitener // nil if no password was configured
}

// NewCodec constructs a Codec for version with the given container UID.
// If password is non-empty, every block this Codec encodes or decodes is
// XOR-whitened with a keystream sized to this version's block size.
func NewCodec(version Version, uid UID, password string) (*Codec, error) {
	layout, err := layoutForVersion(version)
	if err != nil {
		return nil, err
	}
	c := &Codec{layout: layout, uid: uid}
	if password != "" {
		c.whitener = newWhitener(password, layout.blockSize)
	}
	return c, nil
}

// Version returns the container version this codec was built for.
func (c *Codec) Version() Version { return c.layout.version }

// BlockSize returns the on-wire size, in bytes, of every block this codec
// produces.
func (c *Codec) BlockSize() int { return c.layout.blockSize }

// PayloadSize returns the number of payload bytes available per block.
func (c *Codec) PayloadSize() int { return c.layout.payloadSize }

// UID returns the container UID this codec was constructed with.
func (c *Codec) UID() UID { return c.uid }

// Encode assembles one on-wire block. For blockNumber == 0, payload is
// ignored in favor of serializing metadata as the canonical TLV stream (a
// nil metadata yields an all-padding block 0); for blockNumber > 0, payload is used directly and must be no
// longer than PayloadSize (the caller pads the final block itself, since
// only it knows which block is final).
func (c *Codec) Encode(blockNumber uint32, payload []byte, metadata *Metadata) ([]byte, error) {
	var body []byte
	if blockNumber == 0 {
		if metadata == nil {
			metadata = &Metadata{}
		}
		tlv, err := encodeTLV(metadata, c.layout.payloadSize)
		if err != nil {
			return nil, err
		}
		body = tlv
	} else {
		if len(payload) > c.layout.payloadSize {
			return nil, fmt.Errorf("sbx: payload of %d bytes exceeds payload size %d", len(payload), c.layout.payloadSize)
		}
		body = payload
	}

	block := make([]byte, c.layout.blockSize)
	block[0], block[1], block[2] = fileMagic[0], fileMagic[1], fileMagic[2]
	block[3] = byte(c.layout.version)
	copy(block[6:12], c.uid[:])
	binary.BigEndian.PutUint32(block[12:16], blockNumber)
	copy(block[16:16+len(body)], body)

	check := newCRC(c.layout.version)
	check.update(block[6:])
	binary.BigEndian.PutUint16(block[4:6], check.sum())

	if c.whitener != nil {
		c.whitener.xorInPlace(block)
	}
	return block, nil
}

// Decode validates and parses one on-wire block. It returns a typed *Error
// (see ErrorKind) on any framing or integrity failure; no partial state is
// returned on error.
func (c *Codec) Decode(raw []byte) (*DecodedBlock, error) {
	if len(raw) != c.layout.blockSize {
		return nil, &Error{Kind: BadSize, Offset: -1, Err: fmt.Errorf("sbx: block is %d bytes, want %d", len(raw), c.layout.blockSize)}
	}

	block := raw
	if c.whitener != nil {
		block = c.whitener.xor(raw)
	}

	if block[0] != fileMagic[0] || block[1] != fileMagic[1] || block[2] != fileMagic[2] {
		return nil, &Error{Kind: BadMagic, Offset: -1, Err: fmt.Errorf("sbx: bad magic %q", block[0:3])}
	}
	version := Version(block[3])
	if version != c.layout.version {
		return nil, &Error{Kind: UnsupportedVersion, Offset: -1, Err: fmt.Errorf("sbx: block version %d, codec configured for %d", version, c.layout.version)}
	}

	storedCRC := binary.BigEndian.Uint16(block[4:6])
	check := newCRC(version)
	check.update(block[6:])
	if check.sum() != storedCRC {
		return nil, &Error{Kind: BadCrc, Offset: -1, Err: fmt.Errorf("sbx: crc mismatch: stored %#04x computed %#04x", storedCRC, check.sum())}
	}

	d := &DecodedBlock{Version: version}
	copy(d.UID[:], block[6:12])
	d.BlockNumber = binary.BigEndian.Uint32(block[12:16])
	d.Payload = append([]byte(nil), block[16:]...)

	if d.BlockNumber == 0 {
		meta, err := decodeTLV(d.Payload)
		if err != nil {
			return nil, err
		}
		d.Metadata = meta
	}
	return d, nil
}

// ContainerVersion inspects the first four on-wire bytes of a container,
// stripping the whitener first when password is non-empty, and returns
// the version they declare. It is how a decoder bootstraps a Codec before
// the container's block size is known. The first four keystream bytes are
// independent of the block size, so a four-byte whitener suffices here.
func ContainerVersion(header []byte, password string) (Version, error) {
	if len(header) < 4 {
		return 0, &Error{Kind: NotASeqBoxFile, Offset: -1, Err: fmt.Errorf("sbx: %d byte header, want at least 4", len(header))}
	}
	hdr := header[:4]
	if password != "" {
		hdr = newWhitener(password, 4).xor(hdr)
	}
	if hdr[0] != fileMagic[0] || hdr[1] != fileMagic[1] || hdr[2] != fileMagic[2] {
		return 0, &Error{Kind: NotASeqBoxFile, Offset: -1, Err: fmt.Errorf("sbx: missing SBx magic")}
	}
	version := Version(hdr[3])
	if _, err := layoutForVersion(version); err != nil {
		return 0, err
	}
	return version, nil
}

// ProbeMagic returns the expected 4-byte on-wire prefix ("SBx" + version)
// for this codec, whitened if a password is configured. The scanner
// compares candidate offsets against this value instead of running a full
// Decode at every position.
func (c *Codec) ProbeMagic() [4]byte {
	var magic [4]byte
	magic[0], magic[1], magic[2] = fileMagic[0], fileMagic[1], fileMagic[2]
	magic[3] = byte(c.layout.version)
	if c.whitener != nil {
		w := c.whitener.xor(magic[:])
		copy(magic[:], w)
	}
	return magic
}
