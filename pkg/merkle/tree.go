package merkle

import "errors"

// ErrEmptyInput is returned by New when no leaves are supplied.
var ErrEmptyInput = errors.New("merkle: empty leaf sequence")

// ErrIndexOutOfRange is returned by Proof for an index outside [0, leafCount).
var ErrIndexOutOfRange = errors.New("merkle: leaf index out of range")

// Tree is an ordered binary hash tree. It is immutable once built: the root
// is a pure function of the ordered leaf sequence and the hasher, and
// rebuilding from the same leaves always yields the same root.
//
// Odd-node rule: when a level has an odd number of nodes, the last node is
// carried up UNCHANGED to the next level — it is not re-hashed and not
// duplicated. Construction and verification apply this rule identically;
// mixing it with a duplicate-and-rehash scheme produces divergent roots.
type Tree struct {
	hasher Hasher
	// levels[0] holds the leaf digests; levels[len-1] holds the single root.
	levels [][]string
}

// New builds a tree over the ordered leaves using the default SHA-256 hasher.
func New(leaves [][]byte) (*Tree, error) {
	return NewWithHasher(SHA256Hasher(), leaves)
}

// NewWithHasher builds a tree over the ordered leaves using h.
// All levels up to the root are computed eagerly, so Root and Proof never
// re-hash.
func NewWithHasher(h Hasher, leaves [][]byte) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyInput
	}

	level := make([]string, len(leaves))
	for i, leaf := range leaves {
		level[i] = h.LeafDigest(leaf)
	}
	levels := [][]string{level}

	for len(level) > 1 {
		next := make([]string, 0, (len(level)+1)/2)
		for i := 0; i+1 < len(level); i += 2 {
			next = append(next, h.NodeDigest(level[i], level[i+1]))
		}
		if len(level)%2 == 1 {
			// Carried up unchanged.
			next = append(next, level[len(level)-1])
		}
		levels = append(levels, next)
		level = next
	}

	return &Tree{hasher: h, levels: levels}, nil
}

// Root returns the tree's root digest. For a single-leaf tree the root
// equals the leaf digest.
func (t *Tree) Root() string {
	top := t.levels[len(t.levels)-1]
	return top[0]
}

// LeafCount returns the number of leaves the tree was built over.
func (t *Tree) LeafCount() int {
	return len(t.levels[0])
}

// LeafDigest returns the digest of the leaf at index.
func (t *Tree) LeafDigest(index int) (string, error) {
	if index < 0 || index >= t.LeafCount() {
		return "", ErrIndexOutOfRange
	}
	return t.levels[0][index], nil
}

// Proof returns the membership proof for the leaf at index: the sibling
// digest and its side at every level from the leaf up to, but excluding,
// the root. Levels where the node is carried up contribute no element, so
// a carried leaf's proof is shorter than the tree height.
func (t *Tree) Proof(index int) (Proof, error) {
	if index < 0 || index >= t.LeafCount() {
		return nil, ErrIndexOutOfRange
	}

	var proof Proof
	idx := index
	for _, level := range t.levels[:len(t.levels)-1] {
		switch {
		case idx%2 == 1:
			proof = append(proof, ProofNode{Digest: level[idx-1], Position: Left})
		case idx+1 < len(level):
			proof = append(proof, ProofNode{Digest: level[idx+1], Position: Right})
		default:
			// Last node of an odd level: carried up, no sibling here.
		}
		idx /= 2
	}
	return proof, nil
}
