package membership

import "errors"

// Mutating operations fail hard with one of these; either every effect of a
// call applies or none do. Proof verification never returns an error, only
// a boolean (see Engine.VerifyProof).
var (
	ErrUnauthorized  = errors.New("caller is not authorized")
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)
