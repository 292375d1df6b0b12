package walkthrough

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	// ErrInvalidValue is returned when an interaction value cannot be stored
	// for a widget (not a number, not one of the options, ...).
	ErrInvalidValue = errors.New("invalid widget value")

	// ErrUnknownWidget is returned when an interaction targets no widget.
	ErrUnknownWidget = errors.New("unknown widget")

	// ErrUnknownAction is returned for an interaction action other than
	// set or reset.
	ErrUnknownAction = errors.New("unknown action")
)

// LiveBlockError reports a live code sample that failed while rendering.
type LiveBlockError struct {
	BlockID string
	Err     error
}

func (e *LiveBlockError) Error() string {
	return fmt.Sprintf("live block %s: %v", e.BlockID, e.Err)
}

func (e *LiveBlockError) Unwrap() error { return e.Err }

// ParseError is an authoring mistake in a tutorial source, located by line
// and optionally column.
type ParseError struct {
	File    string
	Line    int // 1-indexed
	Column  int // 1-indexed, 0 when unknown
	Message string
	Hint    string
	Related string // e.g. "\"a\" first defined at line 1"

	source []byte
}

func (e *ParseError) Error() string {
	return e.Format()
}

// Format renders the error for a terminal: location, message, a window of
// source lines around Line, then any hint and related note.
func (e *ParseError) Format() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Error in %s\n\n", e.File)
	fmt.Fprintf(&b, "Line %d: %s\n", e.Line, e.Message)
	b.WriteString(e.excerpt(2))

	if e.Hint != "" {
		fmt.Fprintf(&b, "\nTip: %s\n", e.Hint)
	}
	if e.Related != "" {
		fmt.Fprintf(&b, "\nSee also: %s\n", e.Related)
	}
	return b.String()
}

// sourceLines returns the text the error points into. Content attached by the
// parser wins over re-reading File from disk.
func (e *ParseError) sourceLines() []string {
	src := e.source
	if src == nil {
		if e.File == "" {
			return nil
		}
		data, err := os.ReadFile(e.File)
		if err != nil {
			return nil
		}
		src = data
	}
	lines := strings.Split(strings.TrimSuffix(string(src), "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// excerpt numbers radius lines either side of Line and marks Column with a
// caret.
func (e *ParseError) excerpt(radius int) string {
	lines := e.sourceLines()
	if e.Line < 1 || e.Line > len(lines) {
		return ""
	}

	var b strings.Builder
	b.WriteByte('\n')
	for n := max(1, e.Line-radius); n <= min(len(lines), e.Line+radius); n++ {
		gutter := fmt.Sprintf("  %2d | ", n)
		b.WriteString(gutter)
		b.WriteString(lines[n-1])
		b.WriteByte('\n')
		if n == e.Line && e.Column > 0 {
			b.WriteString(strings.Repeat(" ", len(gutter)+e.Column-1))
			b.WriteString("^\n")
		}
	}
	return b.String()
}

// NewParseError returns an error at line of file.
func NewParseError(file string, line int, message string) *ParseError {
	return &ParseError{
		File:    file,
		Line:    line,
		Message: message,
	}
}

// WithColumn sets the 1-indexed column the caret points at.
func (e *ParseError) WithColumn(col int) *ParseError {
	e.Column = col
	return e
}

// WithHint attaches a suggested fix.
func (e *ParseError) WithHint(hint string) *ParseError {
	e.Hint = hint
	return e
}

// WithRelated notes another location involved in the error.
func (e *ParseError) WithRelated(related string) *ParseError {
	e.Related = related
	return e
}

func (e *ParseError) withSource(content []byte) *ParseError {
	if e.source == nil {
		e.source = content
	}
	return e
}
