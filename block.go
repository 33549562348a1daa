// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package sbx

import (
	"crypto/rand"
	"fmt"
)

// Version identifies an SBX container format version. Each version fixes
// the on-wire block size for every block in a container.
type Version uint8

// Supported container versions. Each fixes an on-wire block size; the
// header layout is identical across them.
const (
	Version1 Version = 1 // 512 byte blocks
	Version2 Version = 2 // 128 byte blocks
	Version3 Version = 3 // 4096 byte blocks
)

// HeaderSize is constant across all supported versions: 3 bytes magic,
// 1 byte version, 2 bytes CRC, 6 bytes UID, 4 bytes block number.
const HeaderSize = 16

// fileMagic is the fixed 3-byte prefix common to every SBX block,
// regardless of version.
var fileMagic = [3]byte{'S', 'B', 'x'}

// Padding is the byte used to pad the metadata block and the final data
// block out to the full payload size.
const Padding = 0x1A

// UIDSize is the size, in bytes, of a container's UID.
const UIDSize = 6

// UID is the 48-bit identifier that distinguishes one container from
// another on the same medium.
type UID [UIDSize]byte

// String renders u as lowercase hex, matching the "<hex-uid>.sbx" naming
// convention used when recovering a container without a known filename.
func (u UID) String() string {
	return fmt.Sprintf("%012x", [UIDSize]byte(u))
}

// IsZero reports whether u is the zero UID.
func (u UID) IsZero() bool {
	return u == UID{}
}

// NewUID draws a cryptographically insignificant 48-bit random UID. It is
// not a cryptographic operation: the format only needs a value unlikely to
// collide with other containers on the same medium.
func NewUID() (UID, error) {
	var u UID
	if _, err := rand.Read(u[:]); err != nil {
		return UID{}, fmt.Errorf("sbx: generate uid: %w", err)
	}
	return u, nil
}

// blockLayout holds the derived, per-version sizes used throughout the
// codec. It never changes once a Codec is constructed for a version.
type blockLayout struct {
	version     Version
	blockSize   int
	headerSize  int
	payloadSize int
}

// layoutForVersion returns the block/header/payload sizes for version v,
// or an UnsupportedVersion-kind error if v is not one this package supports.
func layoutForVersion(v Version) (blockLayout, error) {
	switch v {
	case Version1:
		return blockLayout{version: v, blockSize: 512, headerSize: HeaderSize, payloadSize: 512 - HeaderSize}, nil
	case Version2:
		return blockLayout{version: v, blockSize: 128, headerSize: HeaderSize, payloadSize: 128 - HeaderSize}, nil
	case Version3:
		return blockLayout{version: v, blockSize: 4096, headerSize: HeaderSize, payloadSize: 4096 - HeaderSize}, nil
	default:
		return blockLayout{}, &Error{Kind: UnsupportedVersion, Err: fmt.Errorf("sbx: unsupported version %d", v)}
	}
}

// PayloadSizeForVersion returns the payload bytes available per block of
// version v, for callers that need it without constructing a Codec.
func PayloadSizeForVersion(v Version) (int, error) {
	layout, err := layoutForVersion(v)
	if err != nil {
		return 0, err
	}
	return layout.payloadSize, nil
}

// DecodedBlock is the result of a successful Codec.Decode.
type DecodedBlock struct {
	Version     Version
	UID         UID
	BlockNumber uint32
	Payload     []byte // raw payload bytes, including any trailing Padding

	// Metadata is populated only when BlockNumber == 0.
	Metadata *Metadata
}

// IsMetadata reports whether d is block 0 of its container.
func (d *DecodedBlock) IsMetadata() bool {
	return d.BlockNumber == 0
}
