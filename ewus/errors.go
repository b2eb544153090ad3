package ewus

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a protocol error. The server reports failures through fault
// codes that name an exception type; these are flattened into a closed set of
// kinds carried by an Error value.
type Kind int

// The error kinds reported by the service, plus KindUnknown for unexpected
// responses and transport failures.
const (
	KindUnknown         Kind = iota // unparsable or unexpected response, transport failure
	KindAuthentication              // invalid operator credentials
	KindAuthorization               // operator not permitted to perform the operation
	KindSession                     // missing, invalid or expired session
	KindAuthToken                   // invalid authorisation token
	KindMissingInput                // missing or malformed input data
	KindService                     // generic server-side service error
	KindServer                      // generic infrastructure error
	KindPasswordExpired             // the operator's password has expired
)

var kindNames = [...]string{
	"unknown",
	"authentication",
	"authorization",
	"session",
	"authToken",
	"missingInput",
	"service",
	"server",
	"passwordExpired",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Error is a typed protocol error. Code carries the raw fault code when the
// error originated from a server fault block.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("ewus: %s (%s): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("ewus: %s: %s", e.Kind, e.Message)
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of a protocol error, or KindUnknown for any other
// error value.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// faultMatchers maps exception-name substrings to error kinds. Order matters:
// the first matching substring wins.
var faultMatchers = []struct {
	substr string
	kind   Kind
}{
	{"Authentication", KindAuthentication},
	{"Authorization", KindAuthorization},
	{"Session", KindSession},
	{"AuthToken", KindAuthToken},
	{"Input", KindMissingInput},
	{"Service", KindService},
	{"Server", KindServer},
	{"PassExpired", KindPasswordExpired},
}

// classifyFault maps a fault code and message to a typed error. The type
// token is the part of the code after the last dot (fault codes look like
// "Client.AuthenticationException"); matching is by substring containment.
func classifyFault(code string, message string) *Error {
	token := code
	if i := strings.LastIndex(code, "."); i >= 0 {
		token = code[i+1:]
	}
	if message == "" {
		message = code
	}
	for _, m := range faultMatchers {
		if strings.Contains(token, m.substr) {
			return &Error{Kind: m.kind, Code: code, Message: message}
		}
	}
	return &Error{Kind: KindUnknown, Code: code, Message: fmt.Sprintf("unrecognised fault: %s - %s", code, message)}
}
