package merkle

// Position is the side a proof sibling sits on, relative to the path node.
type Position string

const (
	Left  Position = "left"
	Right Position = "right"
)

// ProofNode is one step of a membership proof.
type ProofNode struct {
	Digest   string   `json:"digest"`
	Position Position `json:"position"`
}

// Proof is the ordered sibling sequence from the leaf level upward.
type Proof []ProofNode

// Verify checks a proof against the default SHA-256 hasher.
func Verify(leaf []byte, proof Proof, root string, index int) bool {
	return VerifyWithHasher(SHA256Hasher(), leaf, proof, root, index)
}

// VerifyWithHasher reports whether proof demonstrates that leaf is the
// index-th leaf of the tree with the given root. It is pure: no tree
// instance is needed, nothing is mutated, and it returns false — never
// panics — on any malformed input.
//
// The fold applies the same left-then-right concatenation and the same
// carry-up odd-node rule as construction, and it checks the claimed index
// against the proof's shape exactly:
//
//   - Until a carry is seen, each position fixes one index bit (sibling on
//     the right ⇒ even, on the left ⇒ odd), so the index must fold to 0.
//   - A left sibling at an even index is only legal for a carried node. A
//     carried node is the rightmost of an odd-length level and stays
//     rightmost at every level above, so from the first carry onward the
//     level lengths — and therefore every remaining position — are fully
//     determined. Index 0 can never carry.
func VerifyWithHasher(h Hasher, leaf []byte, proof Proof, root string, index int) bool {
	if index < 0 || len(root) != h.digestLen() {
		return false
	}

	cur := h.LeafDigest(leaf)
	idx := index
	carried := false
	length := 0 // current level length; meaningful only once carried

	for _, n := range proof {
		if len(n.Digest) != h.digestLen() {
			return false
		}

		if carried {
			// Rightmost node: carry through odd levels until it can pair.
			for idx%2 == 0 {
				if idx == 0 {
					return false
				}
				idx /= 2
				length = (length + 1) / 2
			}
			if n.Position != Left {
				return false
			}
			cur = h.NodeDigest(n.Digest, cur)
			idx /= 2
			length /= 2
			continue
		}

		switch n.Position {
		case Right:
			if idx%2 != 0 {
				return false
			}
			cur = h.NodeDigest(cur, n.Digest)
			idx /= 2
		case Left:
			if idx%2 == 1 {
				cur = h.NodeDigest(n.Digest, cur)
				idx /= 2
				break
			}
			// First carry: the node is the last of an odd-length level.
			if idx == 0 {
				return false
			}
			carried = true
			length = idx + 1
			for idx%2 == 0 {
				if idx == 0 {
					return false
				}
				idx /= 2
				length = (length + 1) / 2
			}
			cur = h.NodeDigest(n.Digest, cur)
			idx /= 2
			length /= 2
		default:
			return false
		}
	}

	if !carried {
		return idx == 0 && cur == root
	}
	// Trailing carries up to the root contribute no proof elements.
	for length > 1 {
		if idx%2 != 0 {
			return false
		}
		idx /= 2
		length = (length + 1) / 2
	}
	return cur == root
}
