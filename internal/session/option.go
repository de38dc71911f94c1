package session

import (
	"log/slog"
	"time"
)

// Option configures a Session.
type Option func(*Session)

// WithName sets the session name used in journal rows and events.
func WithName(name string) Option {
	return func(s *Session) {
		s.name = name
	}
}

// WithJournal records accepted rounds and edits.
func WithJournal(j Journal) Option {
	return func(s *Session) {
		s.journal = j
	}
}

// WithPublisher installs the tree change hook.
func WithPublisher(p Publisher) Option {
	return func(s *Session) {
		s.publish = p
	}
}

// WithCanvas sets the canvas size sent with recognition requests.
func WithCanvas(width, height int) Option {
	return func(s *Session) {
		s.width, s.height = width, height
	}
}

// WithRecognizeAfterErase issues a new recognition round after every erase.
func WithRecognizeAfterErase(enabled bool) Option {
	return func(s *Session) {
		s.recognizeAfterErase = enabled
	}
}

// WithScribbleErase turns strokes that look like scribbles into erasers.
// hold is how long, in stroke time units, the scribble shape must persist.
func WithScribbleErase(enabled bool, hold time.Duration) Option {
	return func(s *Session) {
		s.scribbleErase = enabled
		s.scribbleHold = float64(hold.Milliseconds())
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}
