package replay

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const (
	directoryPermission = 0o750
	zstdExtension       = ".zst"
)

// WriteSnapshot stores the population as JSON, zstd-compressed when path
// ends in .zst.
func WriteSnapshot(path string, population []Participant) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	defer f.Close()

	var w io.Writer = f
	var enc *zstd.Encoder
	if strings.HasSuffix(path, zstdExtension) {
		enc, err = zstd.NewWriter(f)
		if err != nil {
			return fmt.Errorf("create zstd encoder: %w", err)
		}
		w = enc
	}

	je := json.NewEncoder(w)
	je.SetIndent("", "  ")
	if err := je.Encode(population); err != nil {
		if enc != nil {
			_ = enc.Close()
		}
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if enc != nil {
		if err := enc.Close(); err != nil {
			return fmt.Errorf("finalize compression: %w", err)
		}
	}
	return f.Close()
}

// ReadSnapshot loads a population written by WriteSnapshot.
func ReadSnapshot(path string) ([]Participant, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, zstdExtension) {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("create zstd decoder: %w", err)
		}
		defer dec.Close()
		r = dec
	}

	var population []Participant
	if err := json.NewDecoder(r).Decode(&population); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return population, nil
}
