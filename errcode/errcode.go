package errcode

// Code is a stable error identifier for bus operations.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK            Code = "ok"
	Busy          Code = "busy"
	InvalidParams Code = "invalid_params"
	NotConfigured Code = "not_configured"
	Closed        Code = "closed"

	// Bus taxonomy.
	AddressNAK     Code = "address_nak"
	BufferOverflow Code = "buffer_overflow"
	RoleMismatch   Code = "role_mismatch"
	Timeout        Code = "timeout"

	// Module ownership.
	UnknownModule Code = "unknown_module"
	ModuleInUse   Code = "module_in_use"

	Error Code = "error" // generic fallback
)

// E keeps the operation name and an optional cause next to a Code.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Is lets errors.Is(err, errcode.Timeout) match a wrapped code.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

// Wrap attaches an operation name to a code.
func Wrap(op string, c Code) error { return &E{C: c, Op: op} }

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}
