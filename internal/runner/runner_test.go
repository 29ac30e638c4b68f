package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ginjaninja78/sped-toolkit/internal/history"
	"github.com/ginjaninja78/sped-toolkit/internal/report"
)

const nfeKey = "35250112345678000199550010000001001000001001"

// spedFile is a small file with one in-range NFe carrying one C170 item.
func spedFile() string {
	c170 := make([]string, 38)
	c170[1] = "C170"
	c170[7] = "1000,00"
	c170[11] = "5102"
	c170[25], c170[26], c170[27], c170[30] = "01", "100,00", "1,65", "1,65"
	c170[31], c170[32], c170[33], c170[36] = "01", "100,00", "7,6", "7,60"

	return "|0000|017|0|01012025|31012025|EMPRESA|\n" +
		"|C001|0|\n" +
		"|C100|0|1|P1|55|00|1|100|" + nfeKey + "|15012025|15012025|1000,00|\n" +
		strings.Join(c170, "|") + "\n" +
		"|C990|4|\n" +
		"|9001|0|\n" +
		"|9990|2|\n" +
		"|9999|8|\n"
}

type memRecorder struct {
	mu   sync.Mutex
	runs []history.Run
}

func (m *memRecorder) Record(run history.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

type memLogger struct {
	mu    sync.Mutex
	lines []string
}

func (m *memLogger) log(level, msg string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = append(m.lines, level+" "+fmt.Sprintf(msg, args...))
}

func (m *memLogger) Debug(msg string, args ...interface{}) { m.log("DEBUG", msg, args...) }
func (m *memLogger) Info(msg string, args ...interface{})  { m.log("INFO", msg, args...) }
func (m *memLogger) Warn(msg string, args ...interface{})  { m.log("WARN", msg, args...) }
func (m *memLogger) Error(msg string, args ...interface{}) { m.log("ERROR", msg, args...) }

func (m *memLogger) contains(s string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.lines {
		if strings.Contains(l, s) {
			return true
		}
	}
	return false
}

func setup(t *testing.T) (string, *Runner, *memRecorder, *memLogger) {
	t.Helper()
	dir := t.TempDir()
	in := filepath.Join(dir, "sped.txt")
	if err := os.WriteFile(in, []byte(spedFile()), 0644); err != nil {
		t.Fatal(err)
	}

	rec := &memRecorder{}
	logger := &memLogger{}
	r := New(Options{Logger: logger, Recorder: rec, SessionID: "s1", User: "ana"})
	return in, r, rec, logger
}

func TestRunOperations(t *testing.T) {
	in, r, rec, logger := setup(t)
	dir := filepath.Dir(in)

	jan1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	jan31 := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		job         Job
		wantMessage string
	}{
		{Job{Operation: OpFilter, InputPath: in, OutputPath: filepath.Join(dir, "f.txt"), Start: jan1, End: jan31}, "lines written"},
		{Job{Operation: OpKeys, InputPath: in, OutputPath: filepath.Join(dir, "k.txt")}, "NFe: 1"},
		{Job{Operation: OpAggregate, InputPath: in, OutputPath: filepath.Join(dir, "a.xlsx")}, "1 rows"},
	}

	for _, tt := range tests {
		t.Run(string(tt.job.Operation), func(t *testing.T) {
			res := r.Run(context.Background(), tt.job)
			if !res.Success {
				t.Fatalf("Run failed: %v (%s)", res.Error, res.Message)
			}
			if !strings.Contains(res.Message, tt.wantMessage) {
				t.Errorf("Message = %q, want %q", res.Message, tt.wantMessage)
			}
			if res.OutputFile != tt.job.OutputPath {
				t.Errorf("OutputFile = %q", res.OutputFile)
			}
			if _, err := os.Stat(tt.job.OutputPath); err != nil {
				t.Errorf("output missing: %v", err)
			}
			if res.RunID == "" {
				t.Error("empty RunID")
			}
		})
	}

	if len(rec.runs) != len(tests) {
		t.Fatalf("recorded %d runs, want %d", len(rec.runs), len(tests))
	}
	for _, run := range rec.runs {
		if run.SessionID != "s1" || run.User != "ana" || !run.Success {
			t.Errorf("recorded run = %+v", run)
		}
	}
	if !logger.contains("INFO Starting keys") {
		t.Errorf("log lines = %v", logger.lines)
	}
}

func TestRunKeysResult(t *testing.T) {
	in, r, _, _ := setup(t)
	res := r.Run(context.Background(), Job{Operation: OpKeys, InputPath: in, OutputPath: filepath.Join(filepath.Dir(in), "k.txt")})
	if len(res.Keys) != 1 || res.Keys[0] != nfeKey {
		t.Errorf("Keys = %v", res.Keys)
	}
}

func TestRunProgress(t *testing.T) {
	in, r, _, logger := setup(t)
	dir := filepath.Dir(in)

	var reports []int
	res := r.Run(context.Background(), Job{
		Operation:  OpKeys,
		InputPath:  in,
		OutputPath: filepath.Join(dir, "k1.txt"),
		Progress:   func(p int) { reports = append(reports, p) },
	})
	if !res.Success {
		t.Fatalf("Run failed: %v", res.Error)
	}
	if len(reports) == 0 || reports[len(reports)-1] != 100 {
		t.Errorf("progress reports = %v, want a final 100", reports)
	}
	if !logger.contains("DEBUG keys " + in + ": 100%") {
		t.Errorf("progress not logged: %v", logger.lines)
	}

	if r.progress(Job{Operation: OpKeys, InputPath: in}) != nil {
		t.Error("job without a callback got a progress func")
	}
}

func TestRunAggregateEmpty(t *testing.T) {
	_, r, _, _ := setup(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "empty.txt")
	os.WriteFile(in, []byte("|0000|017|0|01012025|31012025|X|\n"), 0644)
	out := filepath.Join(dir, "a.xlsx")

	res := r.Run(context.Background(), Job{Operation: OpAggregate, InputPath: in, OutputPath: out})
	if !res.Success || res.OutputFile != "" {
		t.Errorf("empty aggregation: %+v", res)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("report written for an empty table")
	}
	if _, err := report.ReadTable(out); err == nil {
		t.Error("ReadTable on missing report succeeded")
	}
}

func TestRunValidate(t *testing.T) {
	in, r, _, logger := setup(t)
	dir := filepath.Dir(in)
	out := filepath.Join(dir, "v.log")

	// The fixture has no 9900 rows and a stale 9990.
	res := r.Run(context.Background(), Job{Operation: OpValidate, InputPath: in, OutputPath: out})
	if res.Success || res.Validation == nil || res.Validation.IsValid {
		t.Fatalf("stale trailer accepted: %+v", res)
	}
	if res.OutputFile != out {
		t.Errorf("OutputFile = %q, want error log", res.OutputFile)
	}
	if !logger.contains("WARN Validation finding") {
		t.Error("findings not logged")
	}

	filtered := filepath.Join(dir, "f.txt")
	r.Run(context.Background(), Job{
		Operation: OpFilter, InputPath: in, OutputPath: filtered,
		Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
	})
	res = r.Run(context.Background(), Job{Operation: OpValidate, InputPath: filtered, OutputPath: filepath.Join(dir, "v2.log")})
	if !res.Success {
		t.Errorf("filter output failed validation: %s", res.Message)
	}
	if res.OutputFile != "" {
		t.Errorf("error log written for a clean file: %q", res.OutputFile)
	}
}

func TestRunFailureIsRecorded(t *testing.T) {
	_, r, rec, logger := setup(t)
	res := r.Run(context.Background(), Job{Operation: OpKeys, InputPath: "/nonexistent/sped.txt", OutputPath: filepath.Join(t.TempDir(), "k.txt")})
	if res.Success || res.Error == nil {
		t.Fatalf("missing input succeeded: %+v", res)
	}
	if len(rec.runs) != 1 || rec.runs[0].Success {
		t.Errorf("recorded = %+v", rec.runs)
	}
	if !logger.contains("ERROR Failed keys") {
		t.Errorf("log lines = %v", logger.lines)
	}

	res = r.Run(context.Background(), Job{Operation: "bogus"})
	if res.Success || res.Error == nil {
		t.Error("unknown operation succeeded")
	}
}

func TestRunAll(t *testing.T) {
	in, r, rec, _ := setup(t)
	dir := filepath.Dir(in)

	var jobs []Job
	for i := 0; i < 6; i++ {
		op := OpKeys
		ext := ".txt"
		if i%2 == 1 {
			op, ext = OpAggregate, ".xlsx"
		}
		jobs = append(jobs, Job{Operation: op, InputPath: in, OutputPath: filepath.Join(dir, fmt.Sprintf("out%d%s", i, ext))})
	}

	results := r.RunAll(context.Background(), jobs, 2)
	if len(results) != len(jobs) {
		t.Fatalf("got %d results", len(results))
	}
	for i, res := range results {
		if res.Job.OutputPath != jobs[i].OutputPath {
			t.Errorf("result %d is for %s, want %s", i, res.Job.OutputPath, jobs[i].OutputPath)
		}
		if !res.Success {
			t.Errorf("job %d failed: %v", i, res.Error)
		}
	}
	if len(rec.runs) != len(jobs) {
		t.Errorf("recorded %d runs", len(rec.runs))
	}
}

func TestParseOperation(t *testing.T) {
	for _, name := range []string{"filter", "keys", "aggregate", "validate"} {
		op, err := ParseOperation(name)
		if err != nil || string(op) != name {
			t.Errorf("ParseOperation(%q) = %q, %v", name, op, err)
		}
	}
	if _, err := ParseOperation("merge"); err == nil {
		t.Error("ParseOperation(merge) succeeded")
	}
	if OpAggregate.Extension() != ".xlsx" || OpKeys.Extension() != ".txt" {
		t.Error("unexpected extensions")
	}
}

func TestSession(t *testing.T) {
	dir := t.TempDir()

	s, err := StartSession(dir, "Ana Souza/../x", "debug", false)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if filepath.Dir(s.Path) != dir || !strings.HasPrefix(filepath.Base(s.Path), "session_Ana_Souza____x_") {
		t.Errorf("Path = %q", s.Path)
	}

	s.Info("processing %s", "sped.txt")
	s.Debug("checkpoint %d%%", 50)
	if err := s.End(); err != nil {
		t.Fatalf("End: %v", err)
	}

	content, err := os.ReadFile(s.Path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Session started", "processing sped.txt", "checkpoint 50%", "Session ended"} {
		if !strings.Contains(string(content), want) {
			t.Errorf("session log lacks %q:\n%s", want, content)
		}
	}

	if _, err := StartSession(dir, "x", "loud", false); err == nil {
		t.Error("invalid level accepted")
	}
}
