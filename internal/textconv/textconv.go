// Package textconv rewrites legacy-encoded Japanese text files as UTF-8.
package textconv

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
)

// candidate pairs an encoding with the name reported on conversion.
type candidate struct {
	name string
	enc  encoding.Encoding
}

// Candidates are tried in order; the first clean decode wins.
// ShiftJIS comes first: x/text's implementation covers the Windows
// code page 932 superset, which matches how the library site encodes
// its files in practice.
var candidates = []candidate{
	{"shift_jis", japanese.ShiftJIS},
	{"euc-jp", japanese.EUCJP},
	{"iso-2022-jp", japanese.ISO2022JP},
}

// Converter converts recognized text files to UTF-8 in place.
type Converter struct {
	exts map[string]struct{}
}

// New builds a Converter recognizing the given extensions (".txt" etc.,
// matched case-insensitively).
func New(exts []string) *Converter {
	m := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		m[strings.ToLower(e)] = struct{}{}
	}
	return &Converter{exts: m}
}

// ConvertIfNeeded rewrites path as UTF-8 when it holds legacy-encoded
// text, returning the name of the detected encoding. It returns "" and
// no error when the file is left untouched: unrecognized extension,
// already valid UTF-8, probably binary, or no candidate decodes it.
// Converted output uses \n line endings and no byte-order mark.
func (c *Converter) ConvertIfNeeded(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := c.exts[ext]; !ok {
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	if utf8.Valid(data) {
		return "", nil
	}
	// A null byte suggests binary content mislabeled with a text
	// extension; leave it alone.
	if bytes.IndexByte(data, 0) >= 0 {
		return "", nil
	}

	for _, cand := range candidates {
		text, ok := decodeStrict(data, cand.enc)
		if !ok {
			continue
		}
		text = normalizeNewlines(text)
		if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
			return "", fmt.Errorf("rewrite %s as utf-8: %w", path, err)
		}
		return cand.name, nil
	}
	return "", nil
}

// decodeStrict decodes data with enc, failing the candidate when the
// decoder errors or substitutes replacement runes for invalid bytes.
func decodeStrict(data []byte, enc encoding.Encoding) (string, bool) {
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", false
	}
	if bytes.ContainsRune(out, utf8.RuneError) {
		return "", false
	}
	return string(out), true
}

// normalizeNewlines rewrites CRLF and bare CR line endings as LF.
func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
