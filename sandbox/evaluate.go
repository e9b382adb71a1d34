// Package sandbox turns patch text into a disposable handle.
//
// It is not an isolation boundary: it strips export syntax, checks that an
// entry point exists and runs the code in a fresh JavaScript runtime that only
// sees the audio library and the capability object. Hostile code, infinite
// loops and resource exhaustion are not defended against.
package sandbox

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dop251/goja"
)

// Program is patch text that passed the syntactic checks.
type Program struct {
	program *goja.Program
}

// Compile strips exports, checks for the entry point and compiles the wrapper.
// It fails with NoEntryPoint or ParseError.
func Compile(src string) (*Program, error) {
	stripped := StripExports(src)
	if !strings.Contains(stripped, EntryPoint) {
		return nil, &BuildError{Kind: NoEntryPoint}
	}
	program, err := goja.Compile("patch.js", Wrap(stripped), false)
	if err != nil {
		return nil, &BuildError{Kind: ParseError, Err: err}
	}
	return &Program{
		program: program,
	}, nil
}

// Run resolves the entry point in a fresh runtime and invokes it with the
// capability object. It fails with NotCallable or RuntimeError; whatever the
// library created before a failure is released.
func (p *Program) Run(caps Capabilities) (handle *Handle, err error) {
	if caps.Library == nil {
		return nil, &BuildError{Kind: RuntimeError, Err: errors.New("audio library not available")}
	}

	vm := goja.New()
	binding := caps.Library.Bind(vm)
	defer func() {
		if rec := recover(); rec != nil {
			handle = nil
			err = &BuildError{Kind: RuntimeError, Err: fmt.Errorf("panic: %v", rec)}
		}
		if err != nil {
			binding.Release()
		}
	}()

	wrapper, err := vm.RunProgram(p.program)
	if err != nil {
		return nil, &BuildError{Kind: RuntimeError, Err: err}
	}
	resolve, ok := goja.AssertFunction(wrapper)
	if !ok {
		return nil, &BuildError{Kind: RuntimeError, Err: errors.New("wrapper did not evaluate to a function")}
	}

	// top level statements of the patch run here
	entryValue, err := resolve(goja.Undefined(), binding.Handle())
	if err != nil {
		return nil, &BuildError{Kind: RuntimeError, Err: err}
	}
	entry, ok := goja.AssertFunction(entryValue)
	if !ok {
		return nil, &BuildError{Kind: NotCallable}
	}

	result, err := entry(goja.Undefined(), newContext(vm, caps, binding))
	if err != nil {
		return nil, &BuildError{Kind: RuntimeError, Err: err}
	}

	if isAbsent(result) {
		return nil, &BuildError{Kind: RuntimeError, Err: errors.New(EntryPoint + " must return an object with a dispose function")}
	}
	obj := result.ToObject(vm)
	dispose, ok := goja.AssertFunction(obj.Get("dispose"))
	if !ok {
		return nil, &BuildError{Kind: RuntimeError, Err: errors.New(EntryPoint + " must return an object with a dispose function")}
	}

	return &Handle{
		this:    obj,
		dispose: dispose,
		binding: binding,
	}, nil
}

// Evaluate compiles src and runs it against caps.
func Evaluate(src string, caps Capabilities) (*Handle, error) {
	program, err := Compile(src)
	if err != nil {
		return nil, err
	}
	return program.Run(caps)
}

// Handle is the result of a successful build.
type Handle struct {
	this     *goja.Object
	dispose  goja.Callable
	binding  Binding
	disposed bool
}

// Dispose runs the patch's dispose function once, then releases anything the
// patch left behind. Errors and panics from patch code are returned, never raised.
func (h *Handle) Dispose() (err error) {
	if h.disposed {
		return nil
	}
	h.disposed = true
	defer h.binding.Release()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("dispose panicked: %v", rec)
		}
	}()
	_, err = h.dispose(h.this)
	return err
}

func (h *Handle) Disposed() bool {
	return h.disposed
}
