// internal/mbim/errors.go
package mbim

import "github.com/pkg/errors"

var (
	// ErrMalformed reports wire data that does not match its signature or overruns its container.
	ErrMalformed = errors.New("mbim: malformed message")

	// ErrSignature reports a signature/argument mismatch or an invalid signature string.
	ErrSignature = errors.New("mbim: signature mismatch")

	// ErrNesting reports containers nested deeper than MaxNesting.
	ErrNesting = errors.New("mbim: nesting too deep")

	// ErrUnsupported reports encodings this package does not implement (fixed-size nested structs).
	ErrUnsupported = errors.New("mbim: unsupported encoding")

	// ErrSealed reports a write to a sealed message or a second Finalize on one builder.
	ErrSealed = errors.New("mbim: message already sealed")

	// ErrNotSealed reports an attempt to read or send a message that was never finalized.
	ErrNotSealed = errors.New("mbim: message not sealed")

	// ErrFragment reports a fragment that does not continue its transaction.
	ErrFragment = errors.New("mbim: fragment out of sequence")
)
