package peg

import "errors"

// ErrNoNextBlock is returned by VerifyBMM when the mainchain has not yet
// mined a block atop header.PrevMainHash, so no BMM commitment can exist
// yet. Callers should retry later rather than treat this as a permanent
// rejection.
var ErrNoNextBlock = errors.New("no mainchain block follows prev main hash yet")
