/*
Package messages defines the signed hash-time-locked transfer messages exchanged between
channel participants.

Every signed kind has a packed, fixed-width hash pre-image that the settlement contract
recomputes with keccak256(abi.encodePacked(...)):

	Proof            (nonce, transferredAmount, channelAddress, locksRoot, messageHash)
	Lock             (amount, expiration, hashLock)
	DirectTransfer   (msgID, nonce, transferredAmount, channelAddress, locksRoot, to)
	LockedTransfer   DirectTransfer || keccak(Lock)
	MediatedTransfer LockedTransfer || target || initiator || keccak(Lock)
	RequestSecret    (msgID, to, hashLock, amount)
	RevealSecret     (secret, to)
	SecretToProof    (msgID, nonce, transferredAmount, channelAddress, locksRoot, to, secret)

uint256 values occupy 32 big-endian bytes, addresses 20 bytes and bytes32 values 32 bytes.
Signatures and any field not listed above never influence a digest.

On the wire each message is a JSON document tagged with an explicit "kind" discriminator.
*/
package messages
