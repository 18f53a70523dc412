// Package session holds the state of one photobooth session
package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aouyang1/photobooth/capture"
	"github.com/aouyang1/photobooth/catalog"
	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

const MaxCaptionLength = 50

var (
	ErrSessionFull   = errors.New("session is full")
	ErrFrameMismatch = errors.New("frame does not belong to layout")
)

// Session is the ordered set of stills, caption and choices of one visit to
// the booth. It is safe for concurrent use.
type Session struct {
	mu sync.Mutex

	id      string
	layout  catalog.Layout
	frame   catalog.Frame
	stills  []capture.Still
	caption string

	lastActivity time.Time
	now          func() time.Time
}

func New(layout catalog.Layout, frame catalog.Frame) (*Session, error) {
	if frame.LayoutID != layout.ID {
		return nil, fmt.Errorf("%w: %s is not a %s frame", ErrFrameMismatch, frame.ID, layout.ID)
	}
	s := &Session{
		id:     uuid.NewString(),
		layout: layout,
		frame:  frame,
		stills: make([]capture.Still, 0, layout.Shots),
		now:    time.Now,
	}
	s.lastActivity = s.now()
	return s, nil
}

// FromParams starts a session from navigation parameters, falling back to the
// catalog defaults for anything absent or unknown.
func FromParams(layoutID, frameID string) *Session {
	layout, frame := catalog.Resolve(layoutID, frameID)
	s, _ := New(layout, frame)
	return s
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Layout() catalog.Layout {
	return s.layout
}

func (s *Session) Frame() catalog.Frame {
	return s.frame
}

func (s *Session) touch() {
	s.lastActivity = s.now()
}

// AppendStill adds the next still. At capacity it returns ErrSessionFull and
// leaves the stills unchanged. The returned index is the shot index after the
// append.
func (s *Session) AppendStill(still capture.Still) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.stills) >= s.layout.Shots {
		return len(s.stills), ErrSessionFull
	}
	s.stills = append(s.stills, still)
	s.touch()
	return len(s.stills), nil
}

// SetCaption stores text normalised to NFC and silently truncated to
// MaxCaptionLength characters.
func (s *Session) SetCaption(text string) string {
	caption := TruncateCaption(text)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.caption = caption
	s.touch()
	return caption
}

func TruncateCaption(text string) string {
	text = norm.NFC.String(text)
	runes := []rune(text)
	if len(runes) > MaxCaptionLength {
		return string(runes[:MaxCaptionLength])
	}
	return text
}

// Reset clears stills and caption. Layout and frame are kept.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stills = make([]capture.Still, 0, s.layout.Shots)
	s.caption = ""
	s.touch()
}

func (s *Session) IsComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stills) == s.layout.Shots
}

// ShotIndex is the zero based index of the next shot.
func (s *Session) ShotIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stills)
}

func (s *Session) Caption() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caption
}

// IdleSince returns how long the session has gone without a change.
func (s *Session) IdleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastActivity)
}

// Snapshot is an immutable copy of the session.
type Snapshot struct {
	ID        string
	Layout    catalog.Layout
	Frame     catalog.Frame
	Stills    []capture.Still
	Caption   string
	Complete  bool
	ShotIndex int
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	stills := make([]capture.Still, len(s.stills))
	copy(stills, s.stills)
	return Snapshot{
		ID:        s.id,
		Layout:    s.layout,
		Frame:     s.frame,
		Stills:    stills,
		Caption:   s.caption,
		Complete:  len(stills) == s.layout.Shots,
		ShotIndex: len(stills),
	}
}

// HasCaption reports whether the caption has visible text.
func (snap Snapshot) HasCaption() bool {
	return strings.TrimSpace(snap.Caption) != ""
}
