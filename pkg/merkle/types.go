package merkle

// MerkleTree represents a binary merkle tree over lock leaves.
// The tree uses keccak256 hashing for Solidity compatibility.
type MerkleTree struct {
	// Leaves contains the leaf hashes in ascending order
	Leaves [][32]byte

	// Root is the merkle root hash
	Root [32]byte

	// levels[0] = leaves, levels[len-1] = root
	levels [][][32]byte
}

// MerkleProof represents a proof that a leaf is included in the tree.
type MerkleProof struct {
	// LeafIndex is the index of the leaf in the sorted leaves array
	LeafIndex int

	// Leaf is the hash of the leaf being proven
	Leaf [32]byte

	// Proof contains the sibling hashes from leaf to root
	Proof [][32]byte
}
