package vault

import (
	"bytes"
	"fmt"
	"sort"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ProofNode is one step of a whitelist membership proof. Left reports whether
// the sibling digest sits on the left of the running digest at that level.
type ProofNode struct {
	Sibling [32]byte
	Left    bool
}

// LeafDigest derives the whitelist leaf for a wallet. The digest binds only
// the address; proofs carry no amount caps.
func LeafDigest(addr [20]byte) [32]byte {
	var leaf [32]byte
	copy(leaf[:], ethcrypto.Keccak256(addr[:]))
	return leaf
}

func combineDigests(left, right [32]byte) [32]byte {
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256(left[:], right[:]))
	return out
}

// VerifyWhitelist folds the proof over the wallet's leaf and compares the
// result with the published root. It is pure and fails closed: malformed
// input produces false, never a structured error that leaks tree shape.
func VerifyWhitelist(addr [20]byte, proof []ProofNode, root [32]byte) bool {
	if root == ([32]byte{}) {
		return false
	}
	acc := LeafDigest(addr)
	for _, node := range proof {
		if node.Left {
			acc = combineDigests(node.Sibling, acc)
		} else {
			acc = combineDigests(acc, node.Sibling)
		}
	}
	return acc == root
}

// WhitelistTree builds the membership commitment the verifier checks against.
// The production proof service maintains the same construction off-line; this
// implementation backs tests and operator tooling. Leaves are sorted before
// hashing so the root is independent of input order, and odd levels duplicate
// their last digest.
type WhitelistTree struct {
	leaves []([32]byte)
	levels [][][32]byte
	index  map[[32]byte]int
}

// NewWhitelistTree constructs the tree for the provided wallet set.
func NewWhitelistTree(wallets [][20]byte) (*WhitelistTree, error) {
	if len(wallets) == 0 {
		return nil, fmt.Errorf("vault: whitelist requires at least one wallet")
	}
	leaves := make([][32]byte, 0, len(wallets))
	seen := make(map[[32]byte]struct{}, len(wallets))
	for _, wallet := range wallets {
		leaf := LeafDigest(wallet)
		if _, dup := seen[leaf]; dup {
			continue
		}
		seen[leaf] = struct{}{}
		leaves = append(leaves, leaf)
	}
	sort.Slice(leaves, func(i, j int) bool {
		return bytes.Compare(leaves[i][:], leaves[j][:]) < 0
	})
	index := make(map[[32]byte]int, len(leaves))
	for i, leaf := range leaves {
		index[leaf] = i
	}
	tree := &WhitelistTree{leaves: leaves, index: index}
	tree.build()
	return tree, nil
}

func (t *WhitelistTree) build() {
	level := append([][32]byte{}, t.leaves...)
	t.levels = [][][32]byte{level}
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([][32]byte, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next = append(next, combineDigests(level[i], level[i+1]))
		}
		t.levels = append(t.levels, next)
		level = next
	}
}

// Root returns the tree's commitment digest.
func (t *WhitelistTree) Root() [32]byte {
	if t == nil || len(t.levels) == 0 {
		return [32]byte{}
	}
	top := t.levels[len(t.levels)-1]
	if len(top) != 1 {
		return [32]byte{}
	}
	return top[0]
}

// Proof returns the sibling path for the supplied wallet, or false when the
// wallet is not a member.
func (t *WhitelistTree) Proof(addr [20]byte) ([]ProofNode, bool) {
	if t == nil {
		return nil, false
	}
	pos, ok := t.index[LeafDigest(addr)]
	if !ok {
		return nil, false
	}
	proof := make([]ProofNode, 0, len(t.levels)-1)
	for depth := 0; depth < len(t.levels)-1; depth++ {
		level := t.levels[depth]
		siblingPos := pos ^ 1
		var sibling [32]byte
		if siblingPos < len(level) {
			sibling = level[siblingPos]
		} else {
			// odd level: the last digest pairs with itself
			sibling = level[pos]
		}
		proof = append(proof, ProofNode{Sibling: sibling, Left: pos%2 == 1})
		pos /= 2
	}
	return proof, true
}
