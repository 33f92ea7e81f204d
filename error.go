package tango

import "fmt"

// ErrorKind describes the type of error.
type ErrorKind int

const (
	// ErrSyntax is a malformed template: bad tag arguments, unbalanced
	// blocks, unparsable expressions.
	ErrSyntax ErrorKind = iota
	// ErrUnknownTag is a block tag with no registered compile function.
	ErrUnknownTag
	// ErrUnknownFilter is a filter name with no registration.
	ErrUnknownFilter
	// ErrTemplateNotFound is a template name the loader cannot satisfy.
	ErrTemplateNotFound
	// ErrUnpack is a loop unpacking an element whose size does not match
	// the declared variable count.
	ErrUnpack
	// ErrFilter is a filter that failed at render time.
	ErrFilter
	// ErrRender is any other failure surfaced while rendering.
	ErrRender
)

func (k ErrorKind) String() string {
	switch k {
	case ErrSyntax:
		return "syntax error"
	case ErrUnknownTag:
		return "unknown tag"
	case ErrUnknownFilter:
		return "unknown filter"
	case ErrTemplateNotFound:
		return "template not found"
	case ErrUnpack:
		return "unpack mismatch"
	case ErrFilter:
		return "filter error"
	case ErrRender:
		return "render error"
	default:
		return "error"
	}
}

// Error represents an error that occurred during template processing.
type Error struct {
	Kind    ErrorKind
	Message string
	Name    string // template name
	Line    int    // 1-based source line, 0 when unknown
}

func (e *Error) Error() string {
	if e.Name != "" && e.Line > 0 {
		return fmt.Sprintf("%s: %s (in %s, line %d)", e.Kind, e.Message, e.Name, e.Line)
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s: %s (line %d)", e.Kind, e.Message, e.Line)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewError creates a new error.
func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// WithLine adds the source line to an error.
func (e *Error) WithLine(line int) *Error {
	e.Line = line
	return e
}

// WithName adds the template name to an error.
func (e *Error) WithName(name string) *Error {
	e.Name = name
	return e
}

func syntaxErrorf(format string, args ...any) *Error {
	return NewError(ErrSyntax, fmt.Sprintf(format, args...))
}
