// =============================================================================
// SPED Toolkit - Block Context Tracker
// =============================================================================
//
// A SPED file is split into lettered blocks. Each block is opened by a
// "xx01" record and closed by a "xx90" record:
//
//   0001 ... 0990   block 0 (header and registers)
//   C001 ... C990   block C (goods documents)
//   D001 ... D990   block D (transport / communication documents)
//   E001 ... E990   block E (ICMS/IPI assessment)
//   ...
//   9001 ... 9990   block 9 (control / trailer)
//
// The tracker is forward-only: only openers change the current block. A
// closer does not reset state because the next opener always supersedes it.
//
// =============================================================================

package spedparser

// Block identifies a structural block of a SPED file.
type Block string

// Known blocks. BlockNone is the state before the first opener.
const (
	BlockNone Block = ""
	Block0    Block = "0"
	BlockC    Block = "C"
	BlockD    Block = "D"
	BlockE    Block = "E"
	BlockG    Block = "G"
	BlockH    Block = "H"
	BlockK    Block = "K"
	Block1    Block = "1"
	Block9    Block = "9"
)

// blockOpeners maps opener record types to the block they open.
var blockOpeners = map[string]Block{
	"0001": Block0,
	"C001": BlockC,
	"D001": BlockD,
	"E001": BlockE,
	"G001": BlockG,
	"H001": BlockH,
	"K001": BlockK,
	"1001": Block1,
	"9001": Block9,
}

// blockClosers maps closer record types to the block they close.
var blockClosers = map[string]Block{
	"0990": Block0,
	"C990": BlockC,
	"D990": BlockD,
	"E990": BlockE,
	"G990": BlockG,
	"H990": BlockH,
	"K990": BlockK,
	"1990": Block1,
	"9990": Block9,
}

// OpenerBlock returns the block opened by registro, if any.
func OpenerBlock(registro string) (Block, bool) {
	b, ok := blockOpeners[registro]
	return b, ok
}

// IsOpener reports whether registro opens a block.
func IsOpener(registro string) bool {
	_, ok := blockOpeners[registro]
	return ok
}

// IsCloser reports whether registro closes a block.
func IsCloser(registro string) bool {
	_, ok := blockClosers[registro]
	return ok
}

// IsStructural reports whether registro is a block opener or closer.
func IsStructural(registro string) bool {
	return IsOpener(registro) || IsCloser(registro)
}

// Tracker maps the stream of record types to the currently open block.
// The zero value is ready to use and starts in BlockNone.
type Tracker struct {
	current Block
}

// NewTracker returns a tracker in BlockNone.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Advance feeds one record type to the tracker and returns the block that
// is open after it.
func (t *Tracker) Advance(registro string) Block {
	if b, ok := blockOpeners[registro]; ok {
		t.current = b
	}
	return t.current
}

// Open forces the current block. The file header (0000) uses it to enter
// block 0 before 0001 is seen.
func (t *Tracker) Open(b Block) {
	t.current = b
}

// Current returns the currently open block.
func (t *Tracker) Current() Block {
	return t.current
}
