// Package wire defines the CBOR-encoded messages exchanged between nodes
// over netp2p's QUIC streams and datagrams.
package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/djkazic/plainchain/internal/types"
)

// ReadLimit bounds a single request/response read: a body can carry up to
// NumTransactions transactions plus a coinbase, so the ceiling needs
// headroom well past the upstream 1KiB figure.
const ReadLimit = 4 * 1024 * 1024

// RequestKind discriminates the bidirectional-stream request variants.
type RequestKind uint8

const (
	RequestGetBlock RequestKind = iota
	RequestPushTransaction
)

// Request is sent by a peer over a freshly opened bidirectional stream.
type Request struct {
	Kind        RequestKind               `cbor:"1,keyasint"`
	Height      uint32                    `cbor:"2,keyasint"`
	Transaction types.AuthorizedTransaction `cbor:"3,keyasint"`
}

// GetBlock builds a request for the block at height.
func GetBlock(height uint32) Request {
	return Request{Kind: RequestGetBlock, Height: height}
}

// PushTransaction builds a request announcing a transaction for the
// receiving peer's mempool.
func PushTransaction(at types.AuthorizedTransaction) Request {
	return Request{Kind: RequestPushTransaction, Transaction: at}
}

// ResponseKind discriminates the response variants.
type ResponseKind uint8

const (
	ResponseBlock ResponseKind = iota
	ResponseNoBlock
	ResponseTransactionAccepted
	ResponseTransactionRejected
)

// Response answers a Request on the same bidirectional stream.
type Response struct {
	Kind   ResponseKind  `cbor:"1,keyasint"`
	Header types.Header  `cbor:"2,keyasint"`
	Body   types.Body    `cbor:"3,keyasint"`
}

// Block builds a response carrying the requested header and body.
func Block(header types.Header, body types.Body) Response {
	return Response{Kind: ResponseBlock, Header: header, Body: body}
}

// NoBlock builds a response for a height the peer does not have.
func NoBlock() Response { return Response{Kind: ResponseNoBlock} }

// TransactionAccepted builds a response for a PushTransaction the peer
// admitted to its mempool.
func TransactionAccepted() Response { return Response{Kind: ResponseTransactionAccepted} }

// TransactionRejected builds a response for a PushTransaction the peer
// refused.
func TransactionRejected() Response { return Response{Kind: ResponseTransactionRejected} }

// PeerState is the lightweight heartbeat payload sent over an unreliable
// datagram on a fixed cadence.
type PeerState struct {
	BlockHeight uint32 `cbor:"1,keyasint"`
}

// EncodeRequest renders a Request to CBOR.
func EncodeRequest(r Request) ([]byte, error) {
	data, err := cbor.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return data, nil
}

// DecodeRequest parses a CBOR-encoded Request, rejecting anything past
// ReadLimit.
func DecodeRequest(data []byte) (Request, error) {
	var r Request
	if len(data) > ReadLimit {
		return r, fmt.Errorf("request too large: %d bytes", len(data))
	}
	if err := cbor.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("decode request: %w", err)
	}
	return r, nil
}

// EncodeResponse renders a Response to CBOR.
func EncodeResponse(r Response) ([]byte, error) {
	data, err := cbor.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return data, nil
}

// DecodeResponse parses a CBOR-encoded Response, rejecting anything past
// ReadLimit.
func DecodeResponse(data []byte) (Response, error) {
	var r Response
	if len(data) > ReadLimit {
		return r, fmt.Errorf("response too large: %d bytes", len(data))
	}
	if err := cbor.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("decode response: %w", err)
	}
	return r, nil
}

// EncodePeerState renders a heartbeat to CBOR.
func EncodePeerState(s PeerState) ([]byte, error) {
	return cbor.Marshal(s)
}

// DecodePeerState parses a CBOR-encoded heartbeat.
func DecodePeerState(data []byte) (PeerState, error) {
	var s PeerState
	err := cbor.Unmarshal(data, &s)
	return s, err
}
