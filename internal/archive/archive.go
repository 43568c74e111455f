// Package archive implements the append-only log of accepted headers and
// block bodies, keyed by height, plus a hash-to-height index. The chain is
// strictly linear: there is no fork choice, only extension.
package archive

import (
	"encoding/binary"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/djkazic/plainchain/internal/store"
	"github.com/djkazic/plainchain/internal/types"
)

const (
	bucketHeaders      = "headers"
	bucketBodies       = "bodies"
	bucketHashToHeight = "hash_to_height"
)

// Archive is the append-only header/body log.
type Archive struct {
	db     *bolt.DB
	logger *zap.Logger
}

// New declares the archive's buckets inside db and returns a handle to them.
func New(db *bolt.DB, logger *zap.Logger) (*Archive, error) {
	if err := store.EnsureBuckets(db, bucketHeaders, bucketBodies, bucketHashToHeight); err != nil {
		return nil, err
	}
	return &Archive{db: db, logger: logger}, nil
}

func heightKey(height uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, height)
	return b
}

// Height returns the height of the last appended header, or 0 when the
// archive is empty.
func (a *Archive) Height(tx *bolt.Tx) (uint32, error) {
	b := tx.Bucket([]byte(bucketHeaders))
	k, _ := b.Cursor().Last()
	if k == nil {
		return 0, nil
	}
	return binary.BigEndian.Uint32(k), nil
}

// BestHash returns the hash of the last appended header, or the all-zeros
// hash when the archive is empty.
func (a *Archive) BestHash(tx *bolt.Tx) (types.BlockHash, error) {
	b := tx.Bucket([]byte(bucketHeaders))
	_, v := b.Cursor().Last()
	if v == nil {
		return types.BlockHash{}, nil
	}
	var header types.Header
	if err := cbor.Unmarshal(v, &header); err != nil {
		return types.BlockHash{}, fmt.Errorf("unmarshal header: %w", err)
	}
	return header.Hash(), nil
}

// AppendHeader writes header at height+1, provided header.PrevSideHash
// equals the archive's current best hash.
func (a *Archive) AppendHeader(tx *bolt.Tx, header types.Header) error {
	height, err := a.Height(tx)
	if err != nil {
		return err
	}
	bestHash, err := a.BestHash(tx)
	if err != nil {
		return err
	}
	if header.PrevSideHash != bestHash {
		return ErrInvalidPrevSideHash
	}
	newHeight := height + 1
	data, err := types.MarshalCanonical(header)
	if err != nil {
		return fmt.Errorf("marshal header: %w", err)
	}
	headers := tx.Bucket([]byte(bucketHeaders))
	if err := headers.Put(heightKey(newHeight), data); err != nil {
		return err
	}
	hashToHeight := tx.Bucket([]byte(bucketHashToHeight))
	hash := header.Hash()
	if err := hashToHeight.Put(hash[:], heightKey(newHeight)); err != nil {
		return err
	}
	a.logger.Debug("header appended", zap.Uint32("height", newHeight), zap.Binary("hash", hash[:]))
	return nil
}

// PutBody writes body at the height indexed for header.Hash(), provided
// header.MerkleRoot matches body.MerkleRoot() and header.Hash() is indexed
// (AppendHeader must have run first, in the same transaction).
func (a *Archive) PutBody(tx *bolt.Tx, header types.Header, body types.Body) error {
	if header.MerkleRoot != body.MerkleRoot() {
		return ErrInvalidMerkleRoot
	}
	hash := header.Hash()
	hashToHeight := tx.Bucket([]byte(bucketHashToHeight))
	heightBytes := hashToHeight.Get(hash[:])
	if heightBytes == nil {
		return &NoHeaderError{Hash: hash}
	}
	data, err := types.MarshalCanonical(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}
	bodies := tx.Bucket([]byte(bucketBodies))
	return bodies.Put(heightBytes, data)
}

// GetHeader returns the header at height, or nil if none exists.
func (a *Archive) GetHeader(tx *bolt.Tx, height uint32) (*types.Header, error) {
	b := tx.Bucket([]byte(bucketHeaders))
	v := b.Get(heightKey(height))
	if v == nil {
		return nil, nil
	}
	var header types.Header
	if err := cbor.Unmarshal(v, &header); err != nil {
		return nil, fmt.Errorf("unmarshal header: %w", err)
	}
	return &header, nil
}

// GetBody returns the body at height, or nil if none exists.
func (a *Archive) GetBody(tx *bolt.Tx, height uint32) (*types.Body, error) {
	b := tx.Bucket([]byte(bucketBodies))
	v := b.Get(heightKey(height))
	if v == nil {
		return nil, nil
	}
	var body types.Body
	if err := cbor.Unmarshal(v, &body); err != nil {
		return nil, fmt.Errorf("unmarshal body: %w", err)
	}
	return &body, nil
}
