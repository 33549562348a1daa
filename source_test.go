// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package sbx

import (
	"path/filepath"
	"testing"

	"github.com/cosnicolaou/sbx/internal/testutil"
)

func TestOpenSourceSizesCorrectly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.bin")
	data := testutil.GenPredictableRandomData(4096)
	if err := testutil.WriteRawFile(path, data); err != nil {
		t.Fatalf("WriteRawFile: %v", err)
	}
	src, err := OpenSource(path)
	if err != nil {
		t.Fatalf("OpenSource: %v", err)
	}
	defer src.Close()
	if got, want := src.Size(), int64(len(data)); got != want {
		t.Errorf("Size: got %v, want %v", got, want)
	}
	buf := make([]byte, 16)
	if _, err := src.ReadAt(buf, 100); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if string(buf) != string(data[100:116]) {
		t.Error("ReadAt returned the wrong bytes")
	}
}

func TestOpenSourcesClosesOnPartialFailure(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.bin")
	if err := testutil.WriteRawFile(good, []byte("hello")); err != nil {
		t.Fatalf("WriteRawFile: %v", err)
	}
	missing := filepath.Join(dir, "does-not-exist.bin")

	_, err := OpenSources([]string{good, missing})
	if err == nil {
		t.Fatal("expected an error opening a nonexistent source")
	}
}

func TestCloseSourcesThenDoubleClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.bin")
	if err := testutil.WriteRawFile(path, []byte("data")); err != nil {
		t.Fatalf("WriteRawFile: %v", err)
	}
	src, err := OpenSource(path)
	if err != nil {
		t.Fatalf("OpenSource: %v", err)
	}
	if err := CloseSources([]*Source{src}); err != nil {
		t.Fatalf("CloseSources: %v", err)
	}
	// closing an already-closed source must be a no-op, not an error.
	if err := src.Close(); err != nil {
		t.Errorf("double Close: %v", err)
	}
}
