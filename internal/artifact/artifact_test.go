package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"shelflife/internal/models"
)

type sample struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

func TestEnvelopeRoundTrip(t *testing.T) {
	in := sample{Name: "means", Values: []float64{1.5, -2, 0}}

	var buf bytes.Buffer
	if err := Encode(&buf, "sample", in); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var out sample
	if err := Decode(bytes.NewReader(buf.Bytes()), "sample", &out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Name != in.Name || len(out.Values) != len(in.Values) {
		t.Fatalf("got %+v, want %+v", out, in)
	}
	for i := range in.Values {
		if out.Values[i] != in.Values[i] {
			t.Errorf("value %d: got %v, want %v", i, out.Values[i], in.Values[i])
		}
	}
}

func TestDecodeRejectsCorruptEnvelopes(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, "sample", sample{Name: "a"}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	valid := buf.Bytes()

	var env Envelope
	if err := json.Unmarshal(valid, &env); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	rewrite := func(mutate func(*Envelope)) []byte {
		e := env
		mutate(&e)
		data, err := json.Marshal(e)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		return data
	}

	tests := []struct {
		name string
		data []byte
		kind string
	}{
		{"not json", []byte("pickle"), "sample"},
		{"truncated", valid[:len(valid)/2], "sample"},
		{"wrong kind", valid, "forest"},
		{"future version", rewrite(func(e *Envelope) { e.Version = FormatVersion + 1 }), "sample"},
		{"no payload", rewrite(func(e *Envelope) { e.Payload = nil }), "sample"},
		{"tampered payload", rewrite(func(e *Envelope) { e.Payload = json.RawMessage(`{"name":"b"}`) }), "sample"},
		{"bad checksum", rewrite(func(e *Envelope) { e.Checksum = "00" }), "sample"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out sample
			err := Decode(bytes.NewReader(tt.data), tt.kind, &out)
			if !errors.Is(err, models.ErrCorruptArtifact) {
				t.Errorf("got %v, want ErrCorruptArtifact", err)
			}
		})
	}
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewFileStore(filepath.Join(dir, "models"), nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	if _, err := store.Read(ctx, "missing.json"); !errors.Is(err, models.ErrArtifactNotFound) {
		t.Errorf("missing key: got %v, want ErrArtifactNotFound", err)
	}

	if err := store.Write(ctx, "v1/forest.json", []byte("first")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := store.Write(ctx, "v1/forest.json", []byte("second")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	data, err := store.Read(ctx, "v1/forest.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "second" {
		t.Errorf("got %q, want %q", data, "second")
	}

	entries, err := os.ReadDir(filepath.Join(dir, "models", "v1"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %d entries", len(entries))
	}
}

func TestFileStoreRejectsBadKeys(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	if err := store.Write(ctx, "", []byte("x")); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("empty key: got %v", err)
	}
	if _, err := store.Read(ctx, "../etc/passwd"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("traversal: got %v", err)
	}
}

func TestFileStoreHonoursContext(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Write(ctx, "a.json", []byte("x")); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}
