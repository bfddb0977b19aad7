package validator_test

import (
	"context"
	"testing"
	"time"

	"github.com/auriumchain/node/foundation/blockchain/database"
	"github.com/auriumchain/node/foundation/blockchain/genesis"
	"github.com/auriumchain/node/foundation/blockchain/pow"
	"github.com/auriumchain/node/foundation/blockchain/validator"
	"github.com/davecgh/go-spew/spew"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// now is the fixed validator clock, a day after genesis.
var now = time.Unix(genesis.Timestamp+86_400, 0)

func newValidator() *validator.Validator {
	v := validator.New()
	v.Now = func() time.Time { return now }
	return v
}

// build assembles an unmined child of parent with a full reward coinbase
// followed by the extra transactions.
func build(t *testing.T, parent database.Block, difficulty uint, trans ...database.Tx) database.Block {
	index := parent.Index + 1
	ts := parent.Timestamp + 30
	coinbase := database.NewCoinbaseTx(index, "miner", database.Reward(index), ts)

	b, err := database.NewBlock(parent, append([]database.Tx{coinbase}, trans...), difficulty, "miner", ts)
	if err != nil {
		t.Fatalf("unable to construct block: %v", err)
	}

	return b
}

// mine solves the block.
func mine(t *testing.T, b database.Block) database.Block {
	mined, err := pow.Mine(context.Background(), b, nil)
	if err != nil {
		t.Fatalf("unable to mine block: %v", err)
	}

	return mined
}

// =============================================================================

func Test_HonestChain(t *testing.T) {
	v := newValidator()

	t.Log("Given the need to accept honestly mined blocks.")
	{
		t.Logf("\tTest 0:\tWhen mining 5 blocks with difficulty 4 on top of genesis.")
		{
			chain := []database.Block{genesis.Block()}
			for range 5 {
				parent := chain[len(chain)-1]
				b := mine(t, build(t, parent, 4))

				if err := v.Validate(b, parent); err != nil {
					t.Logf("\t%s\tTest 0:\tblock: %s", failed, spew.Sdump(b))
					t.Fatalf("\t%s\tTest 0:\tShould accept block %d against its parent: %v", failed, b.Index, err)
				}
				chain = append(chain, b)
			}
			t.Logf("\t%s\tTest 0:\tShould accept every block against its parent.", success)

			if len(chain) != 6 {
				t.Fatalf("\t%s\tTest 0:\tShould have a chain of length 6: got %d", failed, len(chain))
			}
			t.Logf("\t%s\tTest 0:\tShould have a chain of length 6.", success)

			if err := v.ValidateChain(chain); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould validate the whole chain: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould validate the whole chain.", success)

			tampered := make([]database.Block, len(chain))
			copy(tampered, chain)
			tampered[3].Nonce++
			tampered[3].Hash = tampered[3].HeaderHash()

			if err := v.ValidateChain(tampered); !validator.IsValidationError(err) {
				t.Fatalf("\t%s\tTest 0:\tShould reject a chain with a changed nonce: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould reject a chain with a changed nonce.", success)

			stolen := make([]database.Block, len(chain))
			copy(stolen, chain)
			stolen[2].Trans = []database.Tx{database.NewCoinbaseTx(2, "attacker", database.Reward(2), stolen[2].Timestamp)}

			if err := v.ValidateChain(stolen); validator.RuleOf(err) != validator.RuleProofOfWork {
				t.Fatalf("\t%s\tTest 0:\tShould reject a chain with stored transactions replaced: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould reject a chain with stored transactions replaced.", success)

			foreign := append([]database.Block{{Index: 0, Hash: chain[1].Hash}}, chain[1:]...)
			if err := v.ValidateChain(foreign); validator.RuleOf(err) != validator.RuleGenesis {
				t.Fatalf("\t%s\tTest 0:\tShould reject a foreign genesis wholesale: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould reject a foreign genesis wholesale.", success)
		}
	}
}

func Test_Rules(t *testing.T) {
	g := genesis.Block()

	spendA := database.NewTx([]database.TxInput{{PrevTxID: "aa", OutputIndex: 0}}, []database.TxOutput{{Amount: 1, Address: "bob"}}, 0, g.Timestamp+10)
	spendB := database.NewTx([]database.TxInput{{PrevTxID: "aa", OutputIndex: 0}}, []database.TxOutput{{Amount: 1, Address: "eve"}}, 0, g.Timestamp+11)
	spendC := database.NewTx([]database.TxInput{{PrevTxID: "aa", OutputIndex: 1}}, []database.TxOutput{{Amount: 1, Address: "eve"}}, 0, g.Timestamp+11)

	type table struct {
		name  string
		block func(t *testing.T) database.Block
		v     func(v *validator.Validator)
		rule  validator.Rule
	}

	tt := []table{
		{
			name: "future timestamp",
			block: func(t *testing.T) database.Block {
				b := build(t, g, 1)
				b.Timestamp = now.Add(3 * time.Hour).Unix()
				return b
			},
			rule: validator.RuleTimestamp,
		},
		{
			name: "timestamp before parent",
			block: func(t *testing.T) database.Block {
				b := build(t, g, 1)
				b.Timestamp = g.Timestamp - 1
				return b
			},
			rule: validator.RuleTimestamp,
		},
		{
			name: "negative timestamp",
			block: func(t *testing.T) database.Block {
				b := build(t, g, 1)
				b.Timestamp = -1
				return b
			},
			rule: validator.RuleTimestamp,
		},
		{
			name:  "too many transactions",
			block: func(t *testing.T) database.Block { return build(t, g, 1, spendA, spendC) },
			v:     func(v *validator.Validator) { v.MaxTxPerBlock = 2 },
			rule:  validator.RuleSize,
		},
		{
			name:  "oversized block",
			block: func(t *testing.T) database.Block { return build(t, g, 1) },
			v:     func(v *validator.Validator) { v.MaxBlockSize = 100 },
			rule:  validator.RuleSize,
		},
		{
			name: "no transactions",
			block: func(t *testing.T) database.Block {
				b := build(t, g, 1)
				b.Trans = nil
				return b
			},
			rule: validator.RuleTxShape,
		},
		{
			name: "first transaction not coinbase",
			block: func(t *testing.T) database.Block {
				b := build(t, g, 1, spendA)
				b.Trans = b.Trans[1:]
				return b
			},
			rule: validator.RuleTxShape,
		},
		{
			name: "second coinbase",
			block: func(t *testing.T) database.Block {
				return build(t, g, 1, database.NewCoinbaseTx(1, "eve", 1, g.Timestamp+30))
			},
			rule: validator.RuleTxShape,
		},
		{
			name: "excessive reward",
			block: func(t *testing.T) database.Block {
				b := build(t, g, 1)
				b.Trans[0] = database.NewCoinbaseTx(1, "miner", database.Reward(1)+1, b.Timestamp)
				return b
			},
			rule: validator.RuleReward,
		},
		{
			name: "overflowing reward",
			block: func(t *testing.T) database.Block {
				b := build(t, g, 1)
				b.Trans[0].Outputs = []database.TxOutput{{Amount: ^uint64(0), Address: "a"}, {Amount: 2, Address: "b"}}
				return b
			},
			rule: validator.RuleReward,
		},
		{
			name:  "unmined block",
			block: func(t *testing.T) database.Block { return build(t, g, 1) },
			rule:  validator.RuleProofOfWork,
		},
		{
			name: "hash not meeting difficulty",
			block: func(t *testing.T) database.Block {
				b := build(t, g, 64)
				b.Hash = b.HeaderHash()
				return b
			},
			rule: validator.RuleProofOfWork,
		},
		{
			name: "zero difficulty",
			block: func(t *testing.T) database.Block {
				b := build(t, g, 0)
				b.Hash = b.HeaderHash()
				return b
			},
			rule: validator.RuleProofOfWork,
		},
		{
			name: "wrong parent",
			block: func(t *testing.T) database.Block {
				b := build(t, g, 1)
				b.PrevHash = b.MerkleRoot
				return mine(t, b)
			},
			rule: validator.RuleLinkage,
		},
		{
			name: "wrong index",
			block: func(t *testing.T) database.Block {
				b := build(t, g, 1)
				b.Index = 2
				return mine(t, b)
			},
			rule: validator.RuleLinkage,
		},
		{
			name: "transactions swapped under a mined header",
			block: func(t *testing.T) database.Block {
				b := mine(t, build(t, g, 2))
				b.Trans = []database.Tx{database.NewCoinbaseTx(1, "attacker", database.Reward(1), b.Timestamp)}
				return b
			},
			rule: validator.RuleProofOfWork,
		},
		{
			name: "transaction id not matching its content",
			block: func(t *testing.T) database.Block {
				b := mine(t, build(t, g, 1, spendA))
				b.Trans[1].ID = spendC.ID
				return b
			},
			rule: validator.RuleProofOfWork,
		},
		{
			name:  "double spend across transactions",
			block: func(t *testing.T) database.Block { return mine(t, build(t, g, 1, spendA, spendB)) },
			rule:  validator.RuleDoubleSpend,
		},
		{
			name:  "distinct outpoints",
			block: func(t *testing.T) database.Block { return mine(t, build(t, g, 1, spendA, spendC)) },
			rule:  "",
		},
		{
			name: "reward at the bound",
			block: func(t *testing.T) database.Block {
				b := build(t, g, 1)
				b.Trans[0] = database.NewCoinbaseTx(1, "miner", database.Reward(1), b.Timestamp)
				root, err := database.MerkleRoot(b.Trans)
				if err != nil {
					t.Fatalf("unable to compute merkle root: %v", err)
				}
				b.MerkleRoot = root
				return mine(t, b)
			},
			rule: "",
		},
	}

	t.Log("Given the need to reject blocks breaking a rule.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen validating a block with %s.", testID, tst.name)
			{
				f := func(t *testing.T) {
					v := newValidator()
					if tst.v != nil {
						tst.v(v)
					}

					err := v.Validate(tst.block(t), g)

					if tst.rule == "" {
						if err != nil {
							t.Fatalf("\t%s\tTest %d:\tShould accept the block: %v", failed, testID, err)
						}
						t.Logf("\t%s\tTest %d:\tShould accept the block.", success, testID)
						return
					}

					if got := validator.RuleOf(err); got != tst.rule {
						t.Fatalf("\t%s\tTest %d:\tShould fail rule %s: got %q: %v", failed, testID, tst.rule, got, err)
					}
					t.Logf("\t%s\tTest %d:\tShould fail rule %s: %v", success, testID, tst.rule, err)

					if tst.rule == validator.RuleDoubleSpend && !validator.IsFatal(err) {
						t.Fatalf("\t%s\tTest %d:\tShould mark a double spend as fatal.", failed, testID)
					}
				}

				t.Run(tst.name, f)
			}
		}
	}
}
