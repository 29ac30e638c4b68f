package spedparser

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// DefaultEncoding is the encoding SPED files are published in.
const DefaultEncoding = "latin-1"

// LookupEncoding resolves an encoding name. An empty name selects
// DefaultEncoding.
func LookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "latin-1", "latin1", "iso-8859-1", "iso8859-1", "iso_8859-1":
		return charmap.ISO8859_1, nil
	case "cp1252", "windows-1252", "windows1252":
		return charmap.Windows1252, nil
	case "utf-8", "utf8":
		return unicode.UTF8, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
}
