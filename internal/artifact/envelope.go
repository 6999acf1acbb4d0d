// Package artifact persists fitted pipeline components as versioned, checksummed blobs.
package artifact

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"shelflife/internal/models"
)

// FormatVersion is written into every envelope. Readers reject other versions.
const FormatVersion = 1

// Envelope wraps a component payload with enough metadata to validate it before use.
type Envelope struct {
	Kind     string          `json:"kind"`
	Version  int             `json:"version"`
	Checksum string          `json:"checksum"`
	Payload  json.RawMessage `json:"payload"`
}

// Encode marshals v and writes it to w inside an envelope of the given kind.
func Encode(w io.Writer, kind string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", kind, err)
	}

	env := Envelope{
		Kind:     kind,
		Version:  FormatVersion,
		Checksum: checksum(payload),
		Payload:  payload,
	}

	enc := json.NewEncoder(w)
	if err := enc.Encode(env); err != nil {
		return fmt.Errorf("failed to write %s artifact: %w", kind, err)
	}
	return nil
}

// Decode reads an envelope of the given kind from r and unmarshals its payload into v.
// Any structural problem is reported as models.ErrCorruptArtifact.
func Decode(r io.Reader, kind string, v any) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read %s artifact: %w", kind, err)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return corruptf("%s artifact is not a valid envelope: %v", kind, err)
	}
	if env.Kind != kind {
		return corruptf("expected %s artifact, got %q", kind, env.Kind)
	}
	if env.Version != FormatVersion {
		return corruptf("%s artifact version %d is not supported", kind, env.Version)
	}
	if len(env.Payload) == 0 {
		return corruptf("%s artifact has no payload", kind)
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, env.Payload); err != nil {
		return corruptf("%s artifact payload: %v", kind, err)
	}
	if checksum(compact.Bytes()) != env.Checksum {
		return corruptf("%s artifact checksum mismatch", kind)
	}

	if err := json.Unmarshal(compact.Bytes(), v); err != nil {
		return corruptf("%s artifact payload: %v", kind, err)
	}
	return nil
}

func checksum(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func corruptf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", models.ErrCorruptArtifact, fmt.Sprintf(format, args...))
}
