package sandbox

import "fmt"

type Kind int

const (
	NoEntryPoint Kind = iota + 1
	ParseError
	NotCallable
	RuntimeError
)

func (k Kind) String() string {
	switch k {
	case NoEntryPoint:
		return "NoEntryPoint"
	case ParseError:
		return "ParseError"
	case NotCallable:
		return "NotCallable"
	case RuntimeError:
		return "RuntimeError"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// BuildError reports why patch text could not be turned into a handle.
type BuildError struct {
	Kind Kind
	Err  error
}

var (
	ErrNoEntryPoint = &BuildError{Kind: NoEntryPoint}
	ErrParse        = &BuildError{Kind: ParseError}
	ErrNotCallable  = &BuildError{Kind: NotCallable}
	ErrRuntime      = &BuildError{Kind: RuntimeError}
)

func (b *BuildError) Error() string {
	switch b.Kind {
	case NoEntryPoint:
		return "no " + EntryPoint + " function found in code"
	case NotCallable:
		return EntryPoint + " is not a function"
	case ParseError:
		if b.Err != nil {
			return "parse error: " + b.Err.Error()
		}
		return "parse error"
	}
	if b.Err != nil {
		return b.Err.Error()
	}
	return "runtime error"
}

func (b *BuildError) Unwrap() error {
	return b.Err
}

// Is matches any BuildError of the same kind when target carries no cause,
// so errors.Is(err, ErrParse) works.
func (b *BuildError) Is(target error) bool {
	t, ok := target.(*BuildError)
	if !ok {
		return false
	}
	return t.Kind == b.Kind && t.Err == nil
}
