// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package sbx implements the SeqBox (.sbx) container format: a
// self-describing, block-structured container designed so that a file can
// be reconstructed by scanning raw storage even after the filesystem that
// held the .sbx file is gone.
//
// A container is a sequence of fixed-size blocks of one version and one
// UID. Block 0, if present, carries TLV-encoded metadata about the
// original file; blocks 1..N carry the file's bytes in order. Every block
// is individually verified by a version-keyed CRC-16, so blocks can be
// identified and reassembled purely from their own content.
//
// Encode and Decode stream a file to and from a container. Scan and
// Recover carve containers out of raw sources (disk images, damaged
// filesystems, arbitrary blobs) that may hold blocks out of order,
// duplicated, or interleaved with unrelated data; the index package is
// the keyed store a Scan populates and a Recover reads back.
package sbx
