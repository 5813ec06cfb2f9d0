package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"

	"golang.org/x/crypto/sha3"
)

// Domain-separation tags. Leaf inputs and internal-node inputs are hashed
// under different prefixes so an internal node can never be presented as a
// leaf (or vice versa) to forge a membership proof.
const (
	leafTag = 0x00
	nodeTag = 0x01
)

// Hasher produces the digests used throughout a tree. Digests are lowercase
// hex strings; internal nodes hash the hex encodings of their children, in
// left-then-right order. Two trees built with different Hashers are never
// comparable.
type Hasher struct {
	newHash func() hash.Hash
	size    int // digest size in bytes
}

// SHA256Hasher returns the default Hasher, backed by SHA-256.
func SHA256Hasher() Hasher {
	return Hasher{newHash: sha256.New, size: sha256.Size}
}

// SHA3Hasher returns a Hasher backed by SHA3-256.
func SHA3Hasher() Hasher {
	return Hasher{newHash: sha3.New256, size: 32}
}

// LeafDigest returns the hex digest of a leaf: H(leafTag ∥ leaf).
func (h Hasher) LeafDigest(leaf []byte) string {
	d := h.newHash()
	d.Write([]byte{leafTag})
	d.Write(leaf)
	return hex.EncodeToString(d.Sum(nil))
}

// NodeDigest returns the hex digest of an internal node:
// H(nodeTag ∥ leftHex ∥ rightHex). Concatenation order is part of the
// contract; swapping the children changes the result.
func (h Hasher) NodeDigest(left, right string) string {
	d := h.newHash()
	d.Write([]byte{nodeTag})
	d.Write([]byte(left))
	d.Write([]byte(right))
	return hex.EncodeToString(d.Sum(nil))
}

// digestLen is the expected length of a hex-encoded digest.
func (h Hasher) digestLen() int {
	return h.size * 2
}
