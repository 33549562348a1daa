// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package sbx

import (
	"bytes"
	"testing"

	"github.com/cosnicolaou/sbx/internal/testutil"
)

func encodeBytes(t *testing.T, codec *Codec, data []byte, meta *Metadata) []byte {
	t.Helper()
	var out bytes.Buffer
	if _, err := Encode(&out, bytes.NewReader(data), codec, meta); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return out.Bytes()
}

func TestEncodeBlockCount(t *testing.T) {
	uid, _ := NewUID()
	codec, err := NewCodec(Version2, uid, "")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	// Version2's payload is 112 bytes; "ABC" needs exactly one data block
	// plus the metadata block.
	out := encodeBytes(t, codec, []byte("ABC"), nil)
	if got, want := len(out), codec.BlockSize()*2; got != want {
		t.Errorf("output size: got %v, want %v", got, want)
	}
}

func TestEncodeOneByteOverPayloadSize(t *testing.T) {
	uid, _ := NewUID()
	codec, err := NewCodec(Version1, uid, "")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	// payload size for Version1 is 496; one byte over a single block's
	// worth must still produce exactly two data blocks, not a spurious
	// trailing empty one.
	data := testutil.GenPredictableRandomData(497)
	out := encodeBytes(t, codec, data, nil)
	if got, want := len(out), codec.BlockSize()*3; got != want { // meta + 2 data blocks
		t.Errorf("output size: got %v, want %v", got, want)
	}
}

func TestEncodeOmitMetadata(t *testing.T) {
	uid, _ := NewUID()
	codec, err := NewCodec(Version1, uid, "")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	data := testutil.GenPredictableRandomData(10)
	var out bytes.Buffer
	result, err := Encode(&out, bytes.NewReader(data), codec, nil, OmitMetadata())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got, want := result.BlocksWritten, 1; got != want {
		t.Errorf("BlocksWritten: got %v, want %v", got, want)
	}
	if got, want := out.Len(), codec.BlockSize(); got != want {
		t.Errorf("output size: got %v, want %v", got, want)
	}
}

func TestEncodeDecodeFullRoundTrip(t *testing.T) {
	uid, _ := NewUID()
	codec, err := NewCodec(Version1, uid, "")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	data := testutil.GenPredictableRandomData(1337)
	meta := &Metadata{Filename: "x.bin", HasFilename: true}
	encoded := encodeBytes(t, codec, data, meta)

	var decodedData bytes.Buffer
	result, err := Decode(&decodedData, bytes.NewReader(encoded), codec)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(decodedData.Bytes(), data) {
		t.Fatal("decoded data did not match the original")
	}
	if !result.HashVerified {
		t.Error("expected HashVerified")
	}
	if result.Metadata == nil || result.Metadata.Filename != "x.bin" {
		t.Errorf("metadata did not survive the round trip: %+v", result.Metadata)
	}
}

func TestEncodeDecodeWhitenedRoundTrip(t *testing.T) {
	uid, _ := NewUID()
	codec, err := NewCodec(Version3, uid, "a password")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	data := testutil.GenPredictableRandomData(9000)
	encoded := encodeBytes(t, codec, data, nil)

	var decodedData bytes.Buffer
	if _, err := Decode(&decodedData, bytes.NewReader(encoded), codec); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(decodedData.Bytes(), data) {
		t.Fatal("decoded data did not match the original through whitening")
	}
}
