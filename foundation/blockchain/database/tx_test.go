package database_test

import (
	"testing"

	"github.com/auriumchain/node/foundation/blockchain/database"
	"github.com/auriumchain/node/foundation/blockchain/hash"
)

func Test_TxID(t *testing.T) {
	t.Log("Given the need to identify transactions by their content.")
	{
		t.Logf("\tTest 0:\tWhen constructing transactions.")
		{
			tx := database.NewTx(
				[]database.TxInput{{PrevTxID: "aa", OutputIndex: 1}},
				[]database.TxOutput{{Amount: 10, Address: "bob"}},
				2,
				1729382500,
			)

			if err := tx.VerifyID(); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould verify its own id: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould verify its own id.", success)

			tx.Inputs[0].Proof = "deadbeef"
			tx.Signature = "cafe"
			if err := tx.VerifyID(); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould keep the id when proofs change: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould keep the id when proofs change.", success)

			tx.Outputs[0].Amount = 11
			if err := tx.VerifyID(); err == nil {
				t.Fatalf("\t%s\tTest 0:\tShould detect a changed amount.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould detect a changed amount.", success)
		}

		t.Logf("\tTest 1:\tWhen constructing coinbase transactions.")
		{
			cb1 := database.NewCoinbaseTx(1, "alice", 50, 1729382500)
			cb2 := database.NewCoinbaseTx(2, "alice", 50, 1729382500)

			if !cb1.IsCoinbase() || cb1.Inputs[0].PrevTxID != hash.ZeroHash {
				t.Fatalf("\t%s\tTest 1:\tShould be a coinbase.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould be a coinbase.", success)

			if cb1.ID == cb2.ID {
				t.Fatalf("\t%s\tTest 1:\tShould get distinct ids at distinct heights.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould get distinct ids at distinct heights.", success)

			two := database.NewTx(
				[]database.TxInput{{PrevTxID: hash.ZeroHash}, {PrevTxID: hash.ZeroHash, OutputIndex: 1}},
				nil, 0, 1729382500,
			)
			if two.IsCoinbase() {
				t.Fatalf("\t%s\tTest 1:\tShould not treat two sentinel inputs as a coinbase.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould not treat two sentinel inputs as a coinbase.", success)
		}
	}
}

func Test_Block(t *testing.T) {
	t.Log("Given the need to hash block headers.")
	{
		t.Logf("\tTest 0:\tWhen changing header fields.")
		{
			parent := database.Block{Index: 4, Hash: hash.ZeroHash}
			cb := database.NewCoinbaseTx(5, "alice", 50, 1729382500)

			b, err := database.NewBlock(parent, []database.Tx{cb}, 2, "alice", 1729382500)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to construct a block: %v", failed, err)
			}

			if b.Index != 5 || b.PrevHash != hash.ZeroHash || b.Nonce != 0 || b.Hash != "" {
				t.Fatalf("\t%s\tTest 0:\tShould construct an unmined child: %s", failed, b)
			}
			t.Logf("\t%s\tTest 0:\tShould construct an unmined child.", success)

			h := b.HeaderHash()
			b.Hash = "ignored"
			if b.HeaderHash() != h {
				t.Fatalf("\t%s\tTest 0:\tShould not hash the stored hash field.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould not hash the stored hash field.", success)

			mutations := []func(b *database.Block){
				func(b *database.Block) { b.Index++ },
				func(b *database.Block) { b.Timestamp++ },
				func(b *database.Block) { b.MerkleRoot = hash.ZeroHash },
				func(b *database.Block) { b.PrevHash = "ab" },
				func(b *database.Block) { b.Nonce++ },
				func(b *database.Block) { b.Difficulty++ },
				func(b *database.Block) { b.MinerAddress = "bob" },
			}
			for i, mutate := range mutations {
				c := b
				mutate(&c)
				if c.HeaderHash() == h {
					t.Fatalf("\t%s\tTest 0:\tShould change the hash for mutation %d.", failed, i)
				}
			}
			t.Logf("\t%s\tTest 0:\tShould change the hash for every header field.", success)
		}

		t.Logf("\tTest 1:\tWhen computing merkle roots.")
		{
			root, err := database.MerkleRoot(nil)
			if err != nil || root != hash.ZeroHash {
				t.Fatalf("\t%s\tTest 1:\tShould get the zero root for no transactions: %s", failed, root)
			}
			t.Logf("\t%s\tTest 1:\tShould get the zero root for no transactions.", success)

			cb := database.NewCoinbaseTx(1, "alice", 50, 1729382500)
			root, err = database.MerkleRoot([]database.Tx{cb})
			exp := hash.Bytes(cb.ID)
			if err != nil || root != hash.Hex(append(append([]byte{}, exp...), exp...)) {
				t.Fatalf("\t%s\tTest 1:\tShould pair a single transaction with itself: %s", failed, root)
			}
			t.Logf("\t%s\tTest 1:\tShould pair a single transaction with itself.", success)
		}
	}
}

func Test_Reward(t *testing.T) {
	tt := []struct {
		index uint64
		exp   uint64
	}{
		{0, 50_00000000},
		{database.HalvingInterval - 1, 50_00000000},
		{database.HalvingInterval, 25_00000000},
		{2 * database.HalvingInterval, 12_50000000},
		{63 * database.HalvingInterval, 50_00000000 >> 63},
		{64 * database.HalvingInterval, 0},
		{1000 * database.HalvingInterval, 0},
	}

	t.Log("Given the need to compute the issuance schedule.")
	{
		for testID, tst := range tt {
			if got := database.Reward(tst.index); got != tst.exp {
				t.Fatalf("\t%s\tTest %d:\tShould get reward %d at index %d: got %d", failed, testID, tst.exp, tst.index, got)
			}
			t.Logf("\t%s\tTest %d:\tShould get reward %d at index %d.", success, testID, tst.exp, tst.index)
		}
	}
}
