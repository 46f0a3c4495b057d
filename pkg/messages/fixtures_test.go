package messages

import (
	"github.com/Layr-Labs/eigenx-channels-go/pkg/crypto"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	testChannel   = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	testTo        = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	testTarget    = common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	testInitiator = common.HexToAddress("0xdddddddddddddddddddddddddddddddddddddddd")
	testSecret    = common.HexToHash("0x5ec2e75ec2e75ec2e75ec2e75ec2e75ec2e75ec2e75ec2e75ec2e75ec2e75ec2")
)

func testHeader() ProofHeader {
	return ProofHeader{
		Nonce:             1,
		TransferredAmount: *uint256.NewInt(100),
		ChannelAddress:    testChannel,
	}
}

func testLock() Lock {
	return Lock{
		Amount:     *uint256.NewInt(50),
		Expiration: 1000,
		HashLock:   crypto.Hash(testSecret.Bytes()),
	}
}

func testMediatedTransfer() *MediatedTransfer {
	return &MediatedTransfer{
		ProofHeader: testHeader(),
		MsgID:       1,
		To:          testTo,
		Lock:        testLock(),
		Target:      testTarget,
		Initiator:   testInitiator,
	}
}

// testMessages returns one populated value of every kind
func testMessages() []Message {
	lock := testLock()
	return []Message{
		&Proof{ProofHeader: testHeader(), MessageHash: crypto.Hash([]byte("message"))},
		&DirectTransfer{ProofHeader: testHeader(), MsgID: 7, To: testTo},
		&LockedTransfer{ProofHeader: testHeader(), MsgID: 8, To: testTo, Lock: lock},
		testMediatedTransfer(),
		&RequestSecret{MsgID: 1, To: testInitiator, HashLock: lock.HashLock, Amount: *uint256.NewInt(50)},
		&RevealSecret{To: testTarget, Secret: testSecret},
		&SecretToProof{ProofHeader: testHeader(), MsgID: 1, To: testTo, Secret: testSecret},
		&Ack{To: testTo, MessageHash: crypto.Hash([]byte("acked")), MsgID: 9},
	}
}
