// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package sbx

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/cosnicolaou/sbx/index"
	"github.com/cosnicolaou/sbx/internal/testutil"
)

func scanIntoStore(t *testing.T, store *index.Store, path string, version Version) {
	t.Helper()
	src, err := OpenSource(path)
	if err != nil {
		t.Fatalf("OpenSource: %v", err)
	}
	defer src.Close()
	if _, err := Scan([]*Source{src}, version, store); err != nil {
		t.Fatalf("Scan: %v", err)
	}
}

func TestRecoverRoundTrip(t *testing.T) {
	uid, _ := NewUID()
	codec, err := NewCodec(Version1, uid, "")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	data := testutil.GenPredictableRandomData(2000)
	meta := &Metadata{Filename: "payload.bin", HasFilename: true, SbxFilename: "payload.bin.sbx", HasSbxName: true}
	var container bytes.Buffer
	if _, err := Encode(&container, bytes.NewReader(data), codec, meta); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	dir := t.TempDir()
	devicePath := filepath.Join(dir, "device.img")
	if err := testutil.WriteRawFile(devicePath, container.Bytes()); err != nil {
		t.Fatalf("WriteRawFile: %v", err)
	}

	store, err := index.Open(":memory:")
	if err != nil {
		t.Fatalf("index.Open: %v", err)
	}
	defer store.Close()
	scanIntoStore(t, store, devicePath, Version1)

	destDir := t.TempDir()
	results, err := Recover(store, destDir, Selector{All: true})
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if got, want := len(results), 1; got != want {
		t.Fatalf("recovered container count: got %v, want %v", got, want)
	}
	r := results[0]
	if r.Err != nil {
		t.Fatalf("recover error: %v", r.Err)
	}
	if got, want := r.OutputPath, filepath.Join(destDir, "payload.bin.sbx"); got != want {
		t.Errorf("OutputPath: got %v, want %v", got, want)
	}
	if r.MissingBlocks != 0 {
		t.Errorf("MissingBlocks: got %v, want 0", r.MissingBlocks)
	}

	rebuilt, err := os.ReadFile(r.OutputPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(rebuilt, container.Bytes()) {
		t.Fatal("recovered container bytes did not match the original on-wire bytes")
	}
}

func TestRecoverFillSynthesizesGaps(t *testing.T) {
	uid, _ := NewUID()
	codec, err := NewCodec(Version2, uid, "")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	payload := func(b byte) []byte { return bytes.Repeat([]byte{b}, codec.PayloadSize()) }
	block0, _ := codec.Encode(0, nil, &Metadata{})
	block1, _ := codec.Encode(1, payload(1), nil)
	block3, _ := codec.Encode(3, payload(3), nil)
	// block 2 is deliberately missing from the media.
	media := append(append(append([]byte{}, block0...), block1...), block3...)

	dir := t.TempDir()
	devicePath := filepath.Join(dir, "device.img")
	if err := testutil.WriteRawFile(devicePath, media); err != nil {
		t.Fatalf("WriteRawFile: %v", err)
	}

	store, err := index.Open(":memory:")
	if err != nil {
		t.Fatalf("index.Open: %v", err)
	}
	defer store.Close()
	scanIntoStore(t, store, devicePath, Version2)

	destDir := t.TempDir()
	resultsNoFill, err := Recover(store, destDir, Selector{All: true})
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if got, want := resultsNoFill[0].MissingBlocks, 1; got != want {
		t.Errorf("MissingBlocks without fill: got %v, want %v", got, want)
	}

	destDirFill := t.TempDir()
	resultsFill, err := Recover(store, destDirFill, Selector{All: true}, Fill())
	if err != nil {
		t.Fatalf("Recover with fill: %v", err)
	}
	r := resultsFill[0]
	if got, want := r.MissingBlocks, 1; got != want {
		t.Errorf("MissingBlocks with fill: got %v, want %v", got, want)
	}
	// block0 + synthesized block2 + block1 + block3 == 4 blocks written.
	if got, want := r.BlocksWritten, 4; got != want {
		t.Errorf("BlocksWritten: got %v, want %v", got, want)
	}
}

func TestResolveSelectorNothingToRecover(t *testing.T) {
	store, err := index.Open(":memory:")
	if err != nil {
		t.Fatalf("index.Open: %v", err)
	}
	defer store.Close()
	_, err = ResolveSelector(store, Selector{All: true})
	if got, want := KindOf(err), NothingToRecover; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}
