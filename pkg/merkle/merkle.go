package merkle

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Layr-Labs/eigenx-channels-go/pkg/messages"
)

// BuildMerkleTree creates a binary merkle tree from leaf hashes.
// Leaves are sorted ascending before the tree is built so that every party
// derives the same root from the same set of locks.
// If there's an odd number of nodes at any level, the last node is duplicated.
func BuildMerkleTree(leaves [][32]byte) (*MerkleTree, error) {
	if len(leaves) == 0 {
		return nil, fmt.Errorf("cannot build merkle tree from empty leaf list")
	}

	sorted := SortLeaves(leaves)

	levels := make([][][32]byte, 0)
	levels = append(levels, sorted)

	currentLevel := sorted
	for len(currentLevel) > 1 {
		nextLevel := make([][32]byte, 0, (len(currentLevel)+1)/2)

		for i := 0; i < len(currentLevel); i += 2 {
			left := currentLevel[i]
			right := left
			if i+1 < len(currentLevel) {
				right = currentLevel[i+1]
			}
			nextLevel = append(nextLevel, hashPair(left, right))
		}

		levels = append(levels, nextLevel)
		currentLevel = nextLevel
	}

	return &MerkleTree{
		Leaves: sorted,
		Root:   currentLevel[0],
		levels: levels,
	}, nil
}

// IndexOf returns the position of leaf in the sorted leaves, or -1
func (mt *MerkleTree) IndexOf(leaf [32]byte) int {
	i := sort.Search(len(mt.Leaves), func(i int) bool {
		return bytes.Compare(mt.Leaves[i][:], leaf[:]) >= 0
	})
	if i < len(mt.Leaves) && mt.Leaves[i] == leaf {
		return i
	}
	return -1
}

// GenerateProof creates a merkle proof for the leaf at the given index.
func (mt *MerkleTree) GenerateProof(leafIndex int) (*MerkleProof, error) {
	if leafIndex < 0 || leafIndex >= len(mt.Leaves) {
		return nil, fmt.Errorf("leaf index %d out of bounds (tree has %d leaves)", leafIndex, len(mt.Leaves))
	}

	proof := make([][32]byte, 0, len(mt.levels)-1)
	index := leafIndex

	for level := 0; level < len(mt.levels)-1; level++ {
		currentLevel := mt.levels[level]

		siblingIndex := index + 1
		if index%2 == 1 {
			siblingIndex = index - 1
		}
		// last node on an odd level is paired with itself
		if siblingIndex >= len(currentLevel) {
			siblingIndex = index
		}

		proof = append(proof, currentLevel[siblingIndex])
		index = index / 2
	}

	return &MerkleProof{
		LeafIndex: leafIndex,
		Leaf:      mt.Leaves[leafIndex],
		Proof:     proof,
	}, nil
}

// VerifyProof recomputes the root from a proof and compares it with root.
func VerifyProof(proof *MerkleProof, root [32]byte) bool {
	if proof == nil {
		return false
	}

	currentHash := proof.Leaf
	index := proof.LeafIndex

	for _, siblingHash := range proof.Proof {
		if index%2 == 0 {
			currentHash = hashPair(currentHash, siblingHash)
		} else {
			currentHash = hashPair(siblingHash, currentHash)
		}
		index = index / 2
	}

	return currentHash == root
}

// LockLeaf returns the merkle leaf for a lock: keccak256(lock.Encode())
func LockLeaf(lock messages.Lock) [32]byte {
	return [32]byte(lock.Hash())
}

// LocksRoot computes the root over a set of pending locks. No locks yields the zero root.
func LocksRoot(locks []messages.Lock) common.Hash {
	if len(locks) == 0 {
		return common.Hash{}
	}
	leaves := make([][32]byte, len(locks))
	for i, lock := range locks {
		leaves[i] = LockLeaf(lock)
	}
	tree, err := BuildMerkleTree(leaves)
	if err != nil {
		return common.Hash{}
	}
	return common.Hash(tree.Root)
}

// ProveLock builds the inclusion proof of lock within locks
func ProveLock(locks []messages.Lock, lock messages.Lock) (*MerkleProof, common.Hash, error) {
	leaves := make([][32]byte, len(locks))
	for i, l := range locks {
		leaves[i] = LockLeaf(l)
	}
	tree, err := BuildMerkleTree(leaves)
	if err != nil {
		return nil, common.Hash{}, err
	}
	index := tree.IndexOf(LockLeaf(lock))
	if index < 0 {
		return nil, common.Hash{}, fmt.Errorf("lock %s is not part of the tree", lock.HashLock.Hex())
	}
	proof, err := tree.GenerateProof(index)
	if err != nil {
		return nil, common.Hash{}, err
	}
	return proof, common.Hash(tree.Root), nil
}

// SortLeaves returns a copy of leaves in ascending byte order.
func SortLeaves(leaves [][32]byte) [][32]byte {
	sorted := make([][32]byte, len(leaves))
	copy(sorted, leaves)

	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i][:], sorted[j][:]) < 0
	})

	return sorted
}

// hashPair computes keccak256(left || right)
func hashPair(left, right [32]byte) [32]byte {
	data := make([]byte, 64)
	copy(data[0:32], left[:])
	copy(data[32:64], right[:])

	return [32]byte(crypto.Keccak256Hash(data))
}
