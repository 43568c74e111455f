package archive

import (
	"errors"
	"fmt"

	"github.com/djkazic/plainchain/internal/types"
)

// ErrInvalidPrevSideHash is returned by AppendHeader when the header's
// PrevSideHash does not match the archive's current best hash.
var ErrInvalidPrevSideHash = errors.New("invalid previous side hash")

// ErrInvalidMerkleRoot is returned by PutBody when the header's MerkleRoot
// does not match the body's computed MerkleRoot.
var ErrInvalidMerkleRoot = errors.New("invalid merkle root")

// NoHeaderError is returned by PutBody when the header's hash is not yet
// indexed (AppendHeader must run first, in the same transaction).
type NoHeaderError struct {
	Hash types.BlockHash
}

func (e *NoHeaderError) Error() string {
	return fmt.Sprintf("no header with hash %x", e.Hash)
}
