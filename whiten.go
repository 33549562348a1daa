// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package sbx

import "crypto/sha256"

// whitener is a password-derived XOR pad. It is explicitly not
// cryptography: its only purpose is to keep the SBx magic number from
// showing up to a casual magic-number scan of raw media. Anyone who knows
// the magic can recover the first four keystream bytes, and the scanner
// itself relies on that.
type whitener struct {
	keystream []byte
}

// newWhitener derives a keystream of exactly length bytes from password.
// k0 is the password itself; each subsequent ki is SHA-256 of the
// concatenation of every k before it (k0..ki-1), and ki (i>=1) is appended
// to the output stream. The keystream is the first length bytes of that
// stream, so it is deterministic for a given (password, length) and must
// be reused unchanged for every block of a container.
func newWhitener(password string, length int) *whitener {
	history := []byte(password) // k0, k1, ... concatenated as we go
	var stream []byte
	for len(stream) < length {
		sum := sha256.Sum256(history)
		history = append(history, sum[:]...)
		stream = append(stream, sum[:]...)
	}
	return &whitener{keystream: stream[:length]}
}

// xor returns buf XOR'd with the keystream, starting at the keystream's
// beginning. buf must not be longer than the keystream length the
// whitener was constructed with.
func (w *whitener) xor(buf []byte) []byte {
	out := make([]byte, len(buf))
	for i, b := range buf {
		out[i] = b ^ w.keystream[i]
	}
	return out
}

// xorInPlace is the same operation as xor but overwrites buf instead of
// allocating a new slice; used on the hot path inside Codec.
func (w *whitener) xorInPlace(buf []byte) {
	for i := range buf {
		buf[i] ^= w.keystream[i]
	}
}
