// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package sbx

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/cosnicolaou/sbx/index"
	"github.com/cosnicolaou/sbx/internal/testutil"
)

func TestScanFindsBlocksEmbeddedInRawMedia(t *testing.T) {
	uid, _ := NewUID()
	codec, err := NewCodec(Version2, uid, "")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	data := testutil.GenPredictableRandomData(300)
	var container bytes.Buffer
	if _, err := Encode(&container, bytes.NewReader(data), codec, &Metadata{}); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	// embed the container in the middle of unrelated "raw device" bytes.
	media := append(testutil.GenReproducibleRandomData(1024), container.Bytes()...)
	media = append(media, testutil.GenReproducibleRandomData(512)...)

	path := filepath.Join(t.TempDir(), "device.img")
	if err := testutil.WriteRawFile(path, media); err != nil {
		t.Fatalf("WriteRawFile: %v", err)
	}

	src, err := OpenSource(path)
	if err != nil {
		t.Fatalf("OpenSource: %v", err)
	}
	defer src.Close()

	store, err := index.Open(":memory:")
	if err != nil {
		t.Fatalf("index.Open: %v", err)
	}
	defer store.Close()

	stats, err := Scan([]*Source{src}, Version2, store, ScanStep(1))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	wantBlocks := 1 + (300+codec.PayloadSize()-1)/codec.PayloadSize() // metadata + ceil(data/payload)
	if got, want := stats.BlocksRecorded, wantBlocks; got != want {
		t.Errorf("BlocksRecorded: got %v, want %v", got, want)
	}
	if got, want := stats.MetadataBlocks, 1; got != want {
		t.Errorf("MetadataBlocks: got %v, want %v", got, want)
	}

	uids, err := store.ListUIDs()
	if err != nil {
		t.Fatalf("ListUIDs: %v", err)
	}
	if got, want := len(uids), 1; got != want {
		t.Fatalf("recorded uid count: got %v, want %v", got, want)
	}
	if got, want := uids[0], uid.String(); got != want {
		t.Errorf("recorded uid: got %v, want %v", got, want)
	}
}

func TestScanIsIdempotent(t *testing.T) {
	uid, _ := NewUID()
	codec, _ := NewCodec(Version1, uid, "")
	data := testutil.GenPredictableRandomData(50)
	var container bytes.Buffer
	if _, err := Encode(&container, bytes.NewReader(data), codec, &Metadata{}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	path := filepath.Join(t.TempDir(), "device.img")
	if err := testutil.WriteRawFile(path, container.Bytes()); err != nil {
		t.Fatalf("WriteRawFile: %v", err)
	}
	src, err := OpenSource(path)
	if err != nil {
		t.Fatalf("OpenSource: %v", err)
	}
	defer src.Close()

	store, err := index.Open(":memory:")
	if err != nil {
		t.Fatalf("index.Open: %v", err)
	}
	defer store.Close()

	first, err := Scan([]*Source{src}, Version1, store)
	if err != nil {
		t.Fatalf("first Scan: %v", err)
	}
	if _, err := Scan([]*Source{src}, Version1, store); err != nil {
		t.Fatalf("second Scan: %v", err)
	}
	blocks, err := store.BlocksForUID(uid.String())
	if err != nil {
		t.Fatalf("BlocksForUID: %v", err)
	}
	if got, want := len(blocks), first.BlocksRecorded; got != want {
		t.Errorf("re-scanning duplicated block records: got %v distinct, want %v", got, want)
	}
}
