// Package chainerr defines the node-wide error taxonomy described in §7 of
// the specification. Every entry point (add_transaction, apply_block,
// process_block, asset-action handlers) surfaces one of these kinds so
// callers can branch on Kind() instead of matching error strings.
package chainerr

import "fmt"

type Kind string

const (
	KindInvalidTransaction        Kind = "invalid_transaction"
	KindInvalidBlock              Kind = "invalid_block"
	KindAssetSizeExceeded         Kind = "asset_size_exceeded"
	KindInvalidDensityTransition  Kind = "invalid_density_transition"
	KindInvalidMetadataFormat     Kind = "invalid_metadata_format"
	KindAccessDenied              Kind = "access_denied"
	KindCrypto                    Kind = "crypto"
	KindState                     Kind = "state"
	KindVM                        Kind = "vm"
)

// Error wraps an underlying cause with a taxonomy Kind and a short reason.
type Error struct {
	kind   Kind
	reason string
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.reason, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.reason)
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Kind() Kind { return e.kind }

func New(kind Kind, reason string) *Error {
	return &Error{kind: kind, reason: reason}
}

func Wrap(kind Kind, reason string, cause error) *Error {
	return &Error{kind: kind, reason: reason, cause: cause}
}

// Is reports whether the first *Error found in err's Unwrap chain has the
// given Kind, e.g. chainerr.Is(err, chainerr.KindInvalidTransaction).
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ce, ok := err.(*Error); ok {
			e = ce
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return e != nil && e.kind == kind
}

func InvalidTransaction(reason string) *Error       { return New(KindInvalidTransaction, reason) }
func InvalidBlock(reason string) *Error             { return New(KindInvalidBlock, reason) }
func AccessDenied(reason string) *Error             { return New(KindAccessDenied, reason) }
func InvalidMetadataFormat(reason string) *Error     { return New(KindInvalidMetadataFormat, reason) }

func AssetSizeExceeded(actual, cap int) *Error {
	return New(KindAssetSizeExceeded, fmt.Sprintf("size %d exceeds cap %d", actual, cap))
}

func InvalidDensityTransition(from, to string) *Error {
	return New(KindInvalidDensityTransition, fmt.Sprintf("%s -> %s", from, to))
}
