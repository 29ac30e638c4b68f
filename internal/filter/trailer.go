package filter

import (
	"bufio"
	"fmt"
	"sort"
	"strconv"

	"github.com/ginjaninja78/sped-toolkit/internal/spedparser"
)

// Trailer record types.
const (
	regBlock9Open  = "9001"
	regCount       = "9900"
	regBlock9Close = "9990"
	regFileEnd     = "9999"
)

// block9Movement is the value written to the regenerated 9001 record.
const block9Movement = "0"

// Counts maps a record type to the number of lines written with it.
type Counts map[string]int

// Add counts one line of registro.
func (c Counts) Add(registro string) {
	c[registro]++
}

// Registros returns the counted record types in ascending lexical order.
func (c Counts) Registros() []string {
	regs := make([]string, 0, len(c))
	for reg := range c {
		regs = append(regs, reg)
	}
	sort.Strings(regs)
	return regs
}

// writeTrailer regenerates block 9 from counts and advances *written for
// every line emitted before 9999. Each line ends with eol:
//
//   |9001|0|
//   |9900|<registro>|<count>|   one per counted registro, ascending
//   |9990|<n+3>|
//   |9999|<total lines including itself>|
func writeTrailer(w *bufio.Writer, eol string, counts Counts, written *int) error {
	emit := func(line string) error {
		if _, err := w.WriteString(line + eol); err != nil {
			return fmt.Errorf("failed to write trailer: %w", err)
		}
		return nil
	}

	counts.Add(regBlock9Open)
	if err := emit(spedparser.Format(regBlock9Open, block9Movement)); err != nil {
		return err
	}
	*written++

	n := 0
	for _, reg := range counts.Registros() {
		if reg == regBlock9Close || reg == regFileEnd {
			continue
		}
		if err := emit(spedparser.Format(regCount, reg, strconv.Itoa(counts[reg]))); err != nil {
			return err
		}
		*written++
		n++
	}

	if err := emit(spedparser.Format(regBlock9Close, strconv.Itoa(n+3))); err != nil {
		return err
	}
	*written++

	if err := emit(spedparser.Format(regFileEnd, strconv.Itoa(*written+1))); err != nil {
		return err
	}
	*written++

	return nil
}
