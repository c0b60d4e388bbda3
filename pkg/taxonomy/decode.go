package taxonomy

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// MaxFileSize bounds tree files read from disk.
const MaxFileSize = 16 * 1024 * 1024 // 16MB

// ErrUnsupportedFormat is returned by LoadFile for unknown extensions.
var ErrUnsupportedFormat = errors.New("unsupported taxonomy file format")

// Decode reads a JSON tree. An empty body decodes to an empty tree.
func Decode(r io.Reader) (*Tree, error) {
	var tree Tree
	dec := json.NewDecoder(r)
	if err := dec.Decode(&tree); err != nil {
		if errors.Is(err, io.EOF) {
			return &Tree{}, nil
		}
		return nil, fmt.Errorf("decode taxonomy json: %w", err)
	}
	return &tree, nil
}

// DecodeTOML reads a TOML tree written as [[identities]] tables.
func DecodeTOML(r io.Reader) (*Tree, error) {
	var tree Tree
	if _, err := toml.NewDecoder(r).Decode(&tree); err != nil {
		return nil, fmt.Errorf("decode taxonomy toml: %w", err)
	}
	return &tree, nil
}

// LoadFile loads a tree from path, choosing the decoder by extension
// (.json or .toml).
func LoadFile(path string) (*Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open taxonomy file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat taxonomy file: %w", err)
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("taxonomy file too large: %d bytes (max %d)", info.Size(), MaxFileSize)
	}
	return DecodeFormat(f, filepath.Ext(path))
}

// DecodeFormat decodes r as "json" or "toml". A leading dot is accepted so
// filepath.Ext can be passed directly.
func DecodeFormat(r io.Reader, format string) (*Tree, error) {
	switch strings.TrimPrefix(strings.ToLower(format), ".") {
	case "json":
		return Decode(r)
	case "toml":
		return DecodeTOML(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}
