package types

// Header binds a Body (via MerkleRoot) to its place in the chain (via
// PrevSideHash) and to the mainchain range its peg data was fetched against
// (via PrevMainHash).
type Header struct {
	MerkleRoot   MerkleRoot    `cbor:"1,keyasint"`
	PrevSideHash BlockHash     `cbor:"2,keyasint"`
	PrevMainHash MainBlockHash `cbor:"3,keyasint"`
}

// Hash is the content hash of the header.
func (h Header) Hash() BlockHash {
	return BlockHash(hash(h))
}
