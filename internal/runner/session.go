package runner

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Logger is the logging surface used by the runner and the CLI.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// sessionTimeFormat is used in session file names.
const sessionTimeFormat = "20060102_150405"

// Session is one run of the toolkit by one user. It owns the session log
// file and is the Logger handed to the runner.
type Session struct {
	ID        string
	User      string
	Path      string
	StartedAt time.Time

	file   *os.File
	logger *log.Logger
}

// StartSession creates logDir/session_<user>_<timestamp>.txt and writes the
// start banner. When echo is set, log lines are also written to stderr.
func StartSession(logDir, user, level string, echo bool) (*Session, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	now := time.Now()
	name := fmt.Sprintf("session_%s_%s.txt", sanitizeUser(user), now.Format(sessionTimeFormat))
	path := filepath.Join(logDir, name)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create session log: %w", err)
	}

	var w io.Writer = file
	if echo {
		w = io.MultiWriter(file, os.Stderr)
	}

	s := &Session{
		ID:        uuid.New().String(),
		User:      user,
		Path:      path,
		StartedAt: now,
		file:      file,
		logger: log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "2006-01-02 15:04:05",
			Level:           lvl,
		}),
	}

	s.logger.Info("Session started", "session", s.ID, "user", user)
	return s, nil
}

// End writes the closing line and closes the log file.
func (s *Session) End() error {
	s.logger.Info("Session ended", "session", s.ID, "duration", time.Since(s.StartedAt).Round(time.Millisecond))
	return s.file.Close()
}

func (s *Session) Debug(msg string, args ...interface{}) { s.logger.Debugf(msg, args...) }
func (s *Session) Info(msg string, args ...interface{})  { s.logger.Infof(msg, args...) }
func (s *Session) Warn(msg string, args ...interface{})  { s.logger.Warnf(msg, args...) }
func (s *Session) Error(msg string, args ...interface{}) { s.logger.Errorf(msg, args...) }

// sanitizeUser keeps file-name-safe characters of user.
func sanitizeUser(user string) string {
	user = strings.TrimSpace(user)
	if user == "" {
		return "anonymous"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, user)
}

// nopLogger discards everything.
type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
