package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"github.com/kitchenops/mealgroom/internal/log"
)

// compressAbove is the serialized size past which the file is gzipped.
const compressAbove = 100 * 1024

// Load error sentinels. The UX treats all three as "offer start fresh";
// logs distinguish them.
var (
	ErrMissing            = errors.New("session file missing")
	ErrCorrupted          = errors.New("session file corrupted")
	ErrIncompatibleSchema = errors.New("session file has incompatible schema")
)

// Store reads and writes the session file. Save is not safe for concurrent
// use with itself; the orchestrator serializes calls.
type Store struct {
	path   string
	logger log.Logger
}

// NewStore creates a Store for the given file path.
func NewStore(path string, logger log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{path: path, logger: logger}
}

// Path returns the session file location.
func (st *Store) Path() string { return st.path }

// Load reads and validates the session file. The returned error is one of
// the package sentinels, possibly wrapped with detail.
func (st *Store) Load() (*State, error) {
	raw, err := os.ReadFile(st.path)
	if os.IsNotExist(err) {
		return nil, ErrMissing
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}

	data, err := maybeGunzip(raw)
	if err != nil {
		st.logger.Warn("session file not decompressible", "path", st.path, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		st.logger.Warn("session file not parseable", "path", st.path, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	if state.SchemaVersion != SchemaVersion {
		st.logger.Warn("session schema mismatch",
			"path", st.path, "found", state.SchemaVersion, "want", SchemaVersion)
		return nil, fmt.Errorf("%w: found %q", ErrIncompatibleSchema, state.SchemaVersion)
	}
	if err := state.Validate(); err != nil {
		st.logger.Warn("session invariants violated", "path", st.path, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	return &state, nil
}

// Save writes the state atomically: serialize, write to a temporary file in
// the same directory, fsync, rename over the target. Files above 100 KB are
// gzipped; Load detects the magic bytes either way.
func (st *Store) Save(state *State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize session: %w", err)
	}
	if len(data) > compressAbove {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return fmt.Errorf("compress session: %w", err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("compress session: %w", err)
		}
		st.logger.Debug("session compressed", "raw", len(data), "gz", buf.Len())
		data = buf.Bytes()
	}

	dir := filepath.Dir(st.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if err := os.Rename(tmpName, st.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	st.logger.Debug("session saved", "path", st.path, "bytes", len(data))
	return nil
}

// Discard deletes the session file. Missing is not an error.
func (st *Store) Discard() error {
	err := os.Remove(st.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("discard session: %w", err)
	}
	st.logger.Info("session discarded", "path", st.path)
	return nil
}

// maybeGunzip decompresses raw when it carries the gzip magic.
func maybeGunzip(raw []byte) ([]byte, error) {
	if len(raw) < 2 || raw[0] != 0x1f || raw[1] != 0x8b {
		return raw, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
