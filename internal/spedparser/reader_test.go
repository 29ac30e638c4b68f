package spedparser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"
)

func TestReaderLines(t *testing.T) {
	src := "|0000|a|\r\n|C001|0|\n\n|9999|3|"
	r := NewReader(strings.NewReader(src), nil)

	var lines []string
	for r.Next() {
		lines = append(lines, r.Line())
	}
	if err := r.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}

	want := []string{"|0000|a|", "|C001|0|", "", "|9999|3|"}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines %q, want %d", len(lines), lines, len(want))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i+1, lines[i], want[i])
		}
	}
	if r.LineNumber() != 4 {
		t.Errorf("LineNumber() = %d, want 4", r.LineNumber())
	}
}

func TestReaderTerminator(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"crlf", "|0000|a|\r\n|C001|0|\r\n", "\r\n"},
		{"lf", "|0000|a|\n|C001|0|\n", "\n"},
		{"first line decides", "|0000|a|\r\n|C001|0|\n", "\r\n"},
		{"unterminated", "|0000|a|", "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(strings.NewReader(tt.src), nil)
			for r.Next() {
			}
			if got := r.Terminator(); got != tt.want {
				t.Errorf("Terminator() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReaderDecodesLatin1(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sped.txt")

	// "|0150|SÃO PAULO|" in ISO-8859-1.
	raw := []byte("|0150|S\xc3O PAULO|\n")
	if err := os.WriteFile(path, raw, 0644); err != nil {
		t.Fatal(err)
	}

	r, err := Open(path, charmap.ISO8859_1)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if !r.Next() {
		t.Fatalf("Next() = false, err = %v", r.Err())
	}
	if got := r.Line(); got != "|0150|SÃO PAULO|" {
		t.Errorf("Line() = %q", got)
	}
}

func TestOpenRejectsDirectoryAndMissing(t *testing.T) {
	dir := t.TempDir()

	if _, err := Open(dir, nil); !errors.Is(err, ErrNotAFile) {
		t.Errorf("Open(dir) err = %v, want ErrNotAFile", err)
	}
	if _, err := Open(filepath.Join(dir, "missing.txt"), nil); err == nil {
		t.Error("Open(missing) succeeded")
	}
}

func TestCountLines(t *testing.T) {
	tests := []struct {
		content string
		want    int
	}{
		{"", 0},
		{"a\n", 1},
		{"a\nb", 2},
		{"a\nb\n", 2},
		{"\n\n\n", 3},
	}

	dir := t.TempDir()
	for i, tt := range tests {
		path := filepath.Join(dir, "f"+string(rune('a'+i)))
		if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
			t.Fatal(err)
		}
		got, err := CountLines(path)
		if err != nil {
			t.Fatalf("CountLines: %v", err)
		}
		if got != tt.want {
			t.Errorf("CountLines(%q) = %d, want %d", tt.content, got, tt.want)
		}
	}
}

func TestLookupEncoding(t *testing.T) {
	for _, name := range []string{"", "latin-1", "ISO-8859-1", "cp1252", "utf-8"} {
		if _, err := LookupEncoding(name); err != nil {
			t.Errorf("LookupEncoding(%q): %v", name, err)
		}
	}
	if _, err := LookupEncoding("ebcdic"); err == nil {
		t.Error("LookupEncoding(ebcdic) succeeded")
	}
}

func TestProgressTick(t *testing.T) {
	var reports []int
	p := NewProgressTotal(context.Background(), func(pct int) { reports = append(reports, pct) }, 10000)

	for i := 1; i <= 10000; i++ {
		if err := p.Tick(i); err != nil {
			t.Fatalf("Tick(%d): %v", i, err)
		}
	}
	p.Done()

	want := []int{50, 99, 100}
	if len(reports) != len(want) {
		t.Fatalf("reports = %v, want %v", reports, want)
	}
	for i := range want {
		if reports[i] != want[i] {
			t.Errorf("reports[%d] = %d, want %d", i, reports[i], want[i])
		}
	}
}

func TestProgressCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewProgressTotal(ctx, nil, 0)
	if err := p.Tick(1); err != nil {
		t.Errorf("Tick between checkpoints returned %v", err)
	}
	if err := p.Tick(ProgressInterval); !errors.Is(err, context.Canceled) {
		t.Errorf("Tick at checkpoint = %v, want context.Canceled", err)
	}
}
