// =============================================================================
// SPED Toolkit - Access-Key Extractor
// =============================================================================
//
// This module harvests the 44-digit access keys ("chaves de acesso") of
// inbound electronic documents from a SPED file:
//
//   C100 with IND_OPER = 0  ->  NFe key at position 9
//   D100 with IND_OPER = 0  ->  CTe key at position 10
//
// Keys are deduplicated per document family. The result is written to a
// UTF-8 text file with one section per family and also returned as a list
// for the remote download client.
//
// =============================================================================

package keys

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/ginjaninja78/sped-toolkit/internal/spedparser"
)

// KeyLength is the number of digits of an access key.
const KeyLength = 44

// inboundIndicator is the IND_OPER value of inbound documents.
const inboundIndicator = "0"

// Section markers of the key file.
const (
	HeaderCTe   = "=== CTe ==="
	HeaderNoCTe = "=== NENHUM CTe ==="
	HeaderNFe   = "=== NFe ==="
	HeaderNoNFe = "=== NENHUMA NFe ==="
)

// sources maps a document record type to the family and key position.
var sources = map[string]struct {
	family   Family
	position int
}{
	"C100": {FamilyNFe, 9},
	"D100": {FamilyCTe, 10},
}

// Family is an electronic document family.
type Family string

const (
	FamilyNFe Family = "NFe"
	FamilyCTe Family = "CTe"
)

// =============================================================================
// KEY SET
// =============================================================================

// KeySet holds the deduplicated keys of one run.
type KeySet struct {
	nfe map[string]struct{}
	cte map[string]struct{}
}

// NewKeySet returns an empty set.
func NewKeySet() *KeySet {
	return &KeySet{
		nfe: make(map[string]struct{}),
		cte: make(map[string]struct{}),
	}
}

// Add records key under family. It returns false for unknown families.
func (s *KeySet) Add(family Family, key string) bool {
	switch family {
	case FamilyNFe:
		s.nfe[key] = struct{}{}
	case FamilyCTe:
		s.cte[key] = struct{}{}
	default:
		return false
	}
	return true
}

// NFe returns the NFe keys sorted ascending.
func (s *KeySet) NFe() []string { return sorted(s.nfe) }

// CTe returns the CTe keys sorted ascending.
func (s *KeySet) CTe() []string { return sorted(s.cte) }

// All returns the NFe keys followed by the CTe keys, each sorted ascending.
func (s *KeySet) All() []string {
	return append(s.NFe(), s.CTe()...)
}

func sorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// NormalizeKey strips every non-digit character from raw and reports
// whether exactly KeyLength digits remain.
func NormalizeKey(raw string) (string, bool) {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	key := b.String()
	return key, len(key) == KeyLength
}

// =============================================================================
// EXTRACTION
// =============================================================================

// Options configures an extraction run.
type Options struct {
	// Encoding of the SPED input. Default: "latin-1"
	Encoding string

	// Progress, when set, receives completion percentages.
	Progress spedparser.ProgressFunc
}

// Result is the outcome of an extraction run.
type Result struct {
	Success bool
	Message string
	Err     error

	// Keys is the combined list: NFe keys then CTe keys, each sorted.
	Keys []string

	// NFe and CTe are the per-family keys, sorted.
	NFe []string
	CTe []string

	LinesRead int
}

// Extract reads inputPath and writes the key file to outputPath. The
// output is only created after the input has been read completely.
func Extract(ctx context.Context, inputPath, outputPath string, opts Options) Result {
	fail := func(err error) Result {
		return Result{Success: false, Message: "Error: " + err.Error(), Err: err, Keys: []string{}}
	}

	enc, err := spedparser.LookupEncoding(opts.Encoding)
	if err != nil {
		return fail(err)
	}

	reader, err := spedparser.Open(inputPath, enc)
	if err != nil {
		return fail(err)
	}
	defer reader.Close()

	set, linesRead, err := collect(reader, spedparser.NewProgress(ctx, opts.Progress, inputPath))
	if err != nil {
		return fail(err)
	}

	if err := writeFile(outputPath, set); err != nil {
		return fail(err)
	}

	if opts.Progress != nil {
		opts.Progress(100)
	}

	nfe, cte := set.NFe(), set.CTe()
	return Result{
		Success:   true,
		Message:   fmt.Sprintf("Success!\nCTe: %d\nNFe: %d", len(cte), len(nfe)),
		Keys:      append(append([]string{}, nfe...), cte...),
		NFe:       nfe,
		CTe:       cte,
		LinesRead: linesRead,
	}
}

// Collect extracts keys from an already-decoded stream.
func Collect(ctx context.Context, r io.Reader) (*KeySet, error) {
	set, _, err := collect(spedparser.NewReader(r, nil), spedparser.NewProgressTotal(ctx, nil, 0))
	return set, err
}

func collect(reader *spedparser.Reader, progress *spedparser.Progress) (*KeySet, int, error) {
	set := NewKeySet()
	linesRead := 0

	for reader.Next() {
		linesRead++
		if err := progress.Tick(linesRead); err != nil {
			return nil, linesRead, err
		}

		rec, ok := spedparser.Parse(reader.Line())
		if !ok {
			continue
		}

		src, ok := sources[rec.Registro]
		if !ok || rec.Len() <= src.position || rec.Field(2) != inboundIndicator {
			continue
		}

		if key, ok := NormalizeKey(rec.Field(src.position)); ok {
			set.Add(src.family, key)
		}
	}

	return set, linesRead, reader.Err()
}

// =============================================================================
// KEY FILE
// =============================================================================

// WriteKeys writes the two-section key file: CTe keys first, then NFe
// keys. An empty family gets its "none" marker instead of a list.
func WriteKeys(w io.Writer, set *KeySet) error {
	bw := bufio.NewWriter(w)

	if cte := set.CTe(); len(cte) > 0 {
		bw.WriteString(HeaderCTe + "\n" + strings.Join(cte, "\n") + "\n\n")
	} else {
		bw.WriteString(HeaderNoCTe + "\n\n")
	}

	if nfe := set.NFe(); len(nfe) > 0 {
		bw.WriteString(HeaderNFe + "\n" + strings.Join(nfe, "\n") + "\n")
	} else {
		bw.WriteString(HeaderNoNFe + "\n")
	}

	return bw.Flush()
}

func writeFile(path string, set *KeySet) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create key file: %w", err)
	}

	if err := WriteKeys(file, set); err != nil {
		file.Close()
		return fmt.Errorf("failed to write key file: %w", err)
	}

	return file.Close()
}
