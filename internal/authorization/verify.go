package authorization

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/djkazic/plainchain/internal/types"
)

// ErrInvalidSignature is returned when any authorization in a transaction or
// body fails to verify.
var ErrInvalidSignature = errors.New("invalid signature")

// VerifyTransaction checks every authorization of an AuthorizedTransaction
// against the canonical encoding of its own transaction.
func VerifyTransaction(at types.AuthorizedTransaction) error {
	message, err := types.MarshalCanonical(at.Transaction)
	if err != nil {
		return fmt.Errorf("marshal transaction: %w", err)
	}
	for _, auth := range at.Authorizations {
		if !ed25519.Verify(auth.PublicKey, message, auth.Signature) {
			return ErrInvalidSignature
		}
	}
	return nil
}

// message pairs an authorization with the bytes it was signed over.
type message struct {
	auth types.Authorization
	data []byte
}

// VerifyBody checks every authorization in a Body's flat authorization list
// against the serialised form of its owning transaction. Authorisations are
// partitioned into NumCPU chunks and verified concurrently; a real
// batch-verification primitive would let each chunk verify in one call, but
// no such primitive exists anywhere in the reachable ecosystem for ed25519
// in Go, so each chunk instead verifies its signatures pointwise — the
// fall-back the scheme explicitly allows. Any single invalid signature fails
// the whole body.
func VerifyBody(body types.Body) error {
	messages := make([]message, 0, len(body.Authorizations))
	authIdx := 0
	for _, tx := range body.Transactions {
		data, err := types.MarshalCanonical(tx)
		if err != nil {
			return fmt.Errorf("marshal transaction %s: %w", tx.Txid(), err)
		}
		for range tx.Inputs {
			if authIdx >= len(body.Authorizations) {
				return fmt.Errorf("body has fewer authorizations than inputs")
			}
			messages = append(messages, message{auth: body.Authorizations[authIdx], data: data})
			authIdx++
		}
	}
	if authIdx != len(body.Authorizations) {
		return fmt.Errorf("body has more authorizations (%d) than inputs (%d)", len(body.Authorizations), authIdx)
	}
	if len(messages) == 0 {
		return nil
	}

	workers := runtime.NumCPU()
	if workers > len(messages) {
		workers = len(messages)
	}
	chunkSize := (len(messages) + workers - 1) / workers

	g, _ := errgroup.WithContext(context.Background())
	for start := 0; start < len(messages); start += chunkSize {
		end := start + chunkSize
		if end > len(messages) {
			end = len(messages)
		}
		chunk := messages[start:end]
		g.Go(func() error {
			return verifyChunk(chunk)
		})
	}
	return g.Wait()
}

func verifyChunk(chunk []message) error {
	for _, m := range chunk {
		if !ed25519.Verify(m.auth.PublicKey, m.data, m.auth.Signature) {
			return ErrInvalidSignature
		}
	}
	return nil
}
