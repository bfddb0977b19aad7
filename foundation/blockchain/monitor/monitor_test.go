package monitor_test

import (
	"strings"
	"sync"
	"testing"

	"github.com/auriumchain/node/foundation/blockchain/database"
	"github.com/auriumchain/node/foundation/blockchain/genesis"
	"github.com/auriumchain/node/foundation/blockchain/monitor"
	"github.com/davecgh/go-spew/spew"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// recorder keeps the messages the monitor publishes.
type recorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recorder) ev(v string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, v)
}

// =============================================================================

func Test_Checks(t *testing.T) {
	g := genesis.Block()
	coinbase := database.NewCoinbaseTx(1, "miner", database.Reward(1), g.Timestamp+30)
	spend := database.NewTx([]database.TxInput{{PrevTxID: "aa"}}, []database.TxOutput{{Amount: 1, Address: "bob"}}, 0, g.Timestamp)

	block := func(nonce uint64, trans ...database.Tx) database.Block {
		b, _ := database.NewBlock(g, append([]database.Tx{coinbase}, trans...), 1, "miner", g.Timestamp+30)
		b.Nonce = nonce
		return b
	}

	cfg := monitor.Config{
		LargeBlockBytes:  2_000,
		ManyTransactions: 2,
		LargeAmount:      100,
		ManyOutputs:      2,
		HeightJump:       100,
	}

	tt := []struct {
		name  string
		check func(m *monitor.Monitor)
		level monitor.Level
	}{
		{"quiet block", func(m *monitor.Monitor) { m.CheckBlock(block(5_000)) }, ""},
		{"low nonce", func(m *monitor.Monitor) { m.CheckBlock(block(7)) }, monitor.LevelInfo},
		{"many transactions", func(m *monitor.Monitor) { m.CheckBlock(block(5_000, spend, spend)) }, monitor.LevelWarning},
		{"large block", func(m *monitor.Monitor) {
			b := block(5_000)
			b.MinerAddress = strings.Repeat("m", 4_000)
			m.CheckBlock(b)
		}, monitor.LevelWarning},
		{"quiet transaction", func(m *monitor.Monitor) { m.CheckTransaction(spend) }, ""},
		{"large amount", func(m *monitor.Monitor) {
			m.CheckTransaction(database.NewTx(spend.Inputs, []database.TxOutput{{Amount: 101, Address: "bob"}}, 0, 1))
		}, monitor.LevelWarning},
		{"many outputs", func(m *monitor.Monitor) {
			outs := []database.TxOutput{{Amount: 1, Address: "a"}, {Amount: 1, Address: "b"}, {Amount: 1, Address: "c"}}
			m.CheckTransaction(database.NewTx(spend.Inputs, outs, 0, 1))
		}, monitor.LevelWarning},
		{"no inputs", func(m *monitor.Monitor) {
			m.CheckTransaction(database.NewTx(nil, spend.Outputs, 0, 1))
		}, monitor.LevelCritical},
		{"steady peer", func(m *monitor.Monitor) { m.CheckPeerHeight("p:9080", 10, 10, 12) }, ""},
		{"regressed peer", func(m *monitor.Monitor) { m.CheckPeerHeight("p:9080", 20, 10, 13) }, monitor.LevelCritical},
		{"jumping peer", func(m *monitor.Monitor) { m.CheckPeerHeight("p:9080", 0, 10, 111) }, monitor.LevelWarning},
	}

	t.Log("Given the need to raise alerts on suspicious activity.")
	{
		for testID, test := range tt {
			tf := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen checking a %s.", testID, test.name)
				{
					var rec recorder
					m := monitor.New(cfg, rec.ev)

					test.check(m)
					alerts := m.Recent(10)

					if test.level == "" {
						if len(alerts) != 0 {
							t.Logf("\t\tTest %d:\tGot: %s", testID, spew.Sdump(alerts))
							t.Fatalf("\t%s\tTest %d:\tShould raise no alert.", failed, testID)
						}
						t.Logf("\t%s\tTest %d:\tShould raise no alert.", success, testID)
						return
					}

					if len(alerts) != 1 || alerts[0].Level != test.level {
						t.Logf("\t\tTest %d:\tGot: %s", testID, spew.Sdump(alerts))
						t.Fatalf("\t%s\tTest %d:\tShould raise one %s alert.", failed, testID, test.level)
					}
					t.Logf("\t%s\tTest %d:\tShould raise one %s alert.", success, testID, test.level)

					if len(rec.msgs) != 1 || !strings.HasPrefix(rec.msgs[0], "events: alert: ") {
						t.Fatalf("\t%s\tTest %d:\tShould publish the alert as an event: %v", failed, testID, rec.msgs)
					}
					t.Logf("\t%s\tTest %d:\tShould publish the alert as an event.", success, testID)
				}
			}

			t.Run(test.name, tf)
		}
	}
}

func Test_Bounded(t *testing.T) {
	t.Log("Given the need to keep a bounded list of alerts.")
	{
		m := monitor.New(monitor.Config{MaxAlerts: 3}, nil)

		for i := range 5 {
			m.CheckPeerHeight("p:9080", uint64(100+i), 0, 0)
		}

		alerts := m.Recent(10)
		if len(alerts) != 3 {
			t.Fatalf("\t%s\tShould keep the 3 latest alerts: got %d", failed, len(alerts))
		}
		if !strings.Contains(alerts[2].Details, "104") || !strings.Contains(alerts[0].Details, "102") {
			t.Logf("\t\tGot: %s", spew.Sdump(alerts))
			t.Fatalf("\t%s\tShould drop the oldest alerts first.", failed)
		}
		t.Logf("\t%s\tShould keep the 3 latest alerts, oldest first.", success)

		if got := m.Recent(1); len(got) != 1 || got[0] != alerts[2] {
			t.Fatalf("\t%s\tShould return the most recent alert.", failed)
		}
		t.Logf("\t%s\tShould return the most recent alert.", success)

		if len(m.Critical()) != 3 {
			t.Fatalf("\t%s\tShould list the critical alerts.", failed)
		}
		t.Logf("\t%s\tShould list the critical alerts.", success)

		m.Clear()
		if len(m.Recent(10)) != 0 {
			t.Fatalf("\t%s\tShould clear the alerts.", failed)
		}
		t.Logf("\t%s\tShould clear the alerts.", success)
	}
}
