// Package scope tracks which statement builder is currently active.
//
// A Stack is owned by a single build (see query.Session) and is never shared
// between goroutines. Every Enter returns a Guard; callers defer Guard.Exit so
// the frame is popped on every exit path, including panics.
package scope

import (
	"strings"

	"github.com/shipq/critq/sqlerr"
)

// Kind identifies what kind of builder pushed a frame.
type Kind string

const (
	Select Kind = "SELECT"
	Update Kind = "UPDATE"
	Delete Kind = "DELETE"
	Insert Kind = "INSERT"
)

// Frame is one entry on the stack.
type Frame struct {
	Kind  Kind
	Label string // usually the target table
}

func (f Frame) String() string {
	if f.Label == "" {
		return string(f.Kind)
	}
	return string(f.Kind) + " " + f.Label
}

// Stack is a LIFO stack of frames.
type Stack struct {
	frames []*Guard
}

// New returns an empty stack.
func New() *Stack {
	return &Stack{}
}

// Guard releases the frame it was returned for.
type Guard struct {
	stack  *Stack
	frame  Frame
	exited bool
}

// Enter pushes f and returns the guard that pops it.
func (s *Stack) Enter(f Frame) *Guard {
	g := &Guard{stack: s, frame: f}
	s.frames = append(s.frames, g)
	return g
}

// Frame returns the frame this guard was created for.
func (g *Guard) Frame() Frame { return g.frame }

// Exit pops the guard's frame. Calling Exit again is a no-op. Exiting a guard
// that is not the top of the stack panics with a usage error; the stack is
// left untouched in that case.
func (g *Guard) Exit() {
	if g.exited {
		return
	}
	s := g.stack
	n := len(s.frames)
	if n == 0 || s.frames[n-1] != g {
		panic(sqlerr.UsageArgs("scope.Exit", []any{g.frame.String()},
			"interleaved scope exit (top is %s)", s.topLabel()))
	}
	s.frames[n-1] = nil
	s.frames = s.frames[:n-1]
	g.exited = true
}

// Peek returns the innermost frame.
func (s *Stack) Peek() (Frame, bool) {
	if len(s.frames) == 0 {
		return Frame{}, false
	}
	return s.frames[len(s.frames)-1].frame, true
}

// Depth returns the number of open frames.
func (s *Stack) Depth() int { return len(s.frames) }

// Path returns the frame labels from outermost to innermost.
func (s *Stack) Path() []string {
	path := make([]string, len(s.frames))
	for i, g := range s.frames {
		path[i] = g.frame.String()
	}
	return path
}

// String renders the path as "UPDATE users > SELECT orders".
func (s *Stack) String() string {
	return strings.Join(s.Path(), " > ")
}

func (s *Stack) topLabel() string {
	if f, ok := s.Peek(); ok {
		return f.String()
	}
	return "<empty>"
}
