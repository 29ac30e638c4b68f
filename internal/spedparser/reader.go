// =============================================================================
// SPED Toolkit - Streaming Line Reader
// =============================================================================
//
// SPED files routinely run to millions of lines, so they are never loaded
// into memory. The Reader decodes the legacy 8-bit encoding on the fly and
// hands out one line at a time.
//
// USAGE:
//   reader, err := spedparser.Open(path, enc)
//   if err != nil {
//       return err
//   }
//   defer reader.Close()
//
//   for reader.Next() {
//       line := reader.Line()
//       // Process the line...
//   }
//
//   if err := reader.Err(); err != nil {
//       return err
//   }
//
// =============================================================================

package spedparser

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// ErrNotAFile is returned when an input path exists but is not a regular file.
var ErrNotAFile = errors.New("input path is not a regular file")

// readBufferSize is the size of the buffered reader wrapped around the input.
const readBufferSize = 64 * 1024

// =============================================================================
// INPUT VALIDATION
// =============================================================================

// CheckInput verifies that path names a readable regular file.
//
// RETURNS:
//   - nil when the file can be processed.
//   - A wrapped os error when the path is missing or unreadable.
//   - ErrNotAFile when the path is a directory or special file.
func CheckInput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access input %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s: %w", path, ErrNotAFile)
	}
	return nil
}

// =============================================================================
// READER
// =============================================================================

// Reader yields decoded lines from a SPED source.
type Reader struct {
	closer     io.Closer
	reader     *bufio.Reader
	line       string
	lineNumber int
	terminator string
	err        error
	done       bool
}

// Open validates path and opens it for reading with the given encoding.
func Open(path string, enc encoding.Encoding) (*Reader, error) {
	if err := CheckInput(path); err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}

	r := NewReader(file, enc)
	r.closer = file
	return r, nil
}

// NewReader wraps an arbitrary source. A nil encoding reads bytes as-is.
func NewReader(src io.Reader, enc encoding.Encoding) *Reader {
	if enc != nil {
		src = transform.NewReader(src, enc.NewDecoder())
	}
	return &Reader{
		reader: bufio.NewReaderSize(src, readBufferSize),
	}
}

// Next advances to the next line. It returns false at end of input or on
// error; check Err afterwards.
func (r *Reader) Next() bool {
	if r.done || r.err != nil {
		return false
	}

	line, err := r.reader.ReadString('\n')
	if err != nil && err != io.EOF {
		r.err = fmt.Errorf("error reading line %d: %w", r.lineNumber+1, err)
		return false
	}
	if err == io.EOF {
		r.done = true
		if line == "" {
			return false
		}
	}

	r.lineNumber++
	if r.terminator == "" && strings.HasSuffix(line, "\n") {
		r.terminator = "\n"
		if strings.HasSuffix(line, "\r\n") {
			r.terminator = "\r\n"
		}
	}
	r.line = strings.TrimRight(line, "\r\n")
	return true
}

// Terminator returns the line ending of the first terminated line read so
// far, "\r\n" or "\n". It is "\n" until such a line has been read.
func (r *Reader) Terminator() string {
	if r.terminator == "" {
		return "\n"
	}
	return r.terminator
}

// Line returns the current line without its terminator.
func (r *Reader) Line() string {
	return r.line
}

// LineNumber returns the 1-indexed number of the current line.
func (r *Reader) LineNumber() int {
	return r.lineNumber
}

// Err returns the first read error, if any.
func (r *Reader) Err() error {
	return r.err
}

// Close closes the underlying file when the reader owns one.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// =============================================================================
// LINE COUNTING
// =============================================================================

// CountLines counts the lines of a file without decoding it. A final line
// without a terminator is counted.
func CountLines(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	return countLines(file)
}

func countLines(src io.Reader) (int, error) {
	buf := make([]byte, 32*1024)
	count := 0
	var last byte

	for {
		n, err := src.Read(buf)
		if n > 0 {
			count += bytes.Count(buf[:n], []byte{'\n'})
			last = buf[n-1]
		}

		switch {
		case err == io.EOF:
			if last != 0 && last != '\n' {
				count++
			}
			return count, nil
		case err != nil:
			return count, err
		}
	}
}
