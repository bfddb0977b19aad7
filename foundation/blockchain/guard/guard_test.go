package guard_test

import (
	"errors"
	"testing"
	"time"

	"github.com/auriumchain/node/foundation/blockchain/guard"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const addr = "10.0.0.7"

func newGuard() (*guard.Guard, *guard.ManualClock) {
	clock := guard.NewManualClock(time.Date(2024, 10, 20, 0, 0, 0, 0, time.UTC))
	return guard.New(guard.DefaultConfig(), clock, nil), clock
}

// =============================================================================

func Test_BlockFlood(t *testing.T) {
	t.Log("Given the need to ban an address flooding block announcements.")
	{
		t.Logf("\tTest 0:\tWhen an address sends 61 blocks within one window.")
		{
			g, clock := newGuard()

			for i := range 60 {
				if err := g.AllowBlock(addr); err != nil {
					t.Fatalf("\t%s\tTest 0:\tShould admit block %d: %v", failed, i+1, err)
				}
				clock.Advance(500 * time.Millisecond)
			}
			t.Logf("\t%s\tTest 0:\tShould admit the first 60 blocks.", success)

			if err := g.AllowBlock(addr); !errors.Is(err, guard.ErrRateLimited) {
				t.Fatalf("\t%s\tTest 0:\tShould reject the 61st block: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould reject the 61st block.", success)

			if !g.IsBanned(addr) {
				t.Fatalf("\t%s\tTest 0:\tShould report the address as banned.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould report the address as banned.", success)

			if err := g.AllowMessage(addr, 10); !errors.Is(err, guard.ErrBanned) {
				t.Fatalf("\t%s\tTest 0:\tShould reject any request while banned: %v", failed, err)
			}
			if err := g.AllowConnection(addr); !errors.Is(err, guard.ErrBanned) {
				t.Fatalf("\t%s\tTest 0:\tShould reject connections while banned: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould reject any request while banned.", success)

			if banned := g.Banned(); len(banned) != 1 || banned[0].Addr != addr {
				t.Fatalf("\t%s\tTest 0:\tShould list the banned address: %+v", failed, banned)
			}
			t.Logf("\t%s\tTest 0:\tShould list the banned address.", success)

			clock.Advance(15*time.Minute + time.Second)
			if g.IsBanned(addr) {
				t.Fatalf("\t%s\tTest 0:\tShould lift the ban after the ban duration.", failed)
			}
			if err := g.AllowBlock(addr); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould admit the address again: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould admit the address again after the ban expires.", success)
		}

		t.Logf("\tTest 1:\tWhen the ban is revoked explicitly.")
		{
			g, _ := newGuard()

			for range 61 {
				g.AllowBlock(addr)
			}
			if !g.IsBanned(addr) {
				t.Fatalf("\t%s\tTest 1:\tShould report the address as banned.", failed)
			}

			if !g.Unban(addr) {
				t.Fatalf("\t%s\tTest 1:\tShould be able to unban the address.", failed)
			}
			if err := g.AllowBlock(addr); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould admit the address after unban: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould admit the address after unban.", success)

			if g.Unban(addr) {
				t.Fatalf("\t%s\tTest 1:\tShould report nothing to unban.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould report nothing to unban.", success)
		}

		t.Logf("\tTest 2:\tWhen blocks are spread over more than one window.")
		{
			g, clock := newGuard()

			for i := range 120 {
				if err := g.AllowBlock(addr); err != nil {
					t.Fatalf("\t%s\tTest 2:\tShould admit block %d: %v", failed, i+1, err)
				}
				clock.Advance(1100 * time.Millisecond)
			}
			t.Logf("\t%s\tTest 2:\tShould admit blocks under the sliding limit.", success)
		}
	}
}

func Test_Messages(t *testing.T) {
	t.Log("Given the need to limit generic messages.")
	{
		t.Logf("\tTest 0:\tWhen a message is over the size cap.")
		{
			g, _ := newGuard()

			if err := g.AllowMessage(addr, 10*1024*1024); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould admit a message at the cap: %v", failed, err)
			}
			if err := g.AllowMessage(addr, 10*1024*1024+1); !errors.Is(err, guard.ErrMessageTooLarge) {
				t.Fatalf("\t%s\tTest 0:\tShould reject a message over the cap: %v", failed, err)
			}
			if !g.IsBanned(addr) {
				t.Fatalf("\t%s\tTest 0:\tShould ban the sender.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould reject and ban an oversized message.", success)
		}

		t.Logf("\tTest 1:\tWhen more than 300 messages arrive within one window.")
		{
			g, _ := newGuard()

			for i := range 300 {
				if err := g.AllowMessage(addr, 100); err != nil {
					t.Fatalf("\t%s\tTest 1:\tShould admit message %d: %v", failed, i+1, err)
				}
			}
			if err := g.AllowMessage(addr, 100); !errors.Is(err, guard.ErrRateLimited) {
				t.Fatalf("\t%s\tTest 1:\tShould reject the 301st message: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould reject the 301st message.", success)

			if g.IsBanned("10.0.0.8") {
				t.Fatalf("\t%s\tTest 1:\tShould not ban other addresses.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould not ban other addresses.", success)
		}
	}
}

func Test_Connections(t *testing.T) {
	t.Log("Given the need to cap concurrent connections.")
	{
		t.Logf("\tTest 0:\tWhen a fourth connection arrives.")
		{
			g, _ := newGuard()

			for i := range 3 {
				if err := g.AllowConnection(addr); err != nil {
					t.Fatalf("\t%s\tTest 0:\tShould admit connection %d: %v", failed, i+1, err)
				}
			}

			if err := g.AllowConnection(addr); !errors.Is(err, guard.ErrTooManyConnections) {
				t.Fatalf("\t%s\tTest 0:\tShould reject the fourth connection: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould reject the fourth connection.", success)

			if g.IsBanned(addr) {
				t.Fatalf("\t%s\tTest 0:\tShould not ban for the connection cap.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould not ban for the connection cap.", success)

			g.ReleaseConnection(addr)
			if err := g.AllowConnection(addr); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould admit after a disconnect: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould admit after a disconnect.", success)

			if st := g.Stats(addr); st.Connections != 3 {
				t.Fatalf("\t%s\tTest 0:\tShould report 3 connections: got %d", failed, st.Connections)
			}
		}
	}
}

func Test_Sweep(t *testing.T) {
	g, clock := newGuard()

	g.AllowMessage("idle", 1)
	g.AllowConnection("connected")
	g.Ban("banned", 24*time.Hour)

	clock.Advance(2 * time.Hour)

	if n := g.Sweep(); n != 1 {
		t.Fatalf("\t%s\tShould sweep only the idle address: swept %d", failed, n)
	}
	t.Logf("\t%s\tShould sweep only the idle address.", success)

	if st := g.Stats("connected"); st.Connections != 1 {
		t.Fatalf("\t%s\tShould keep the connected address.", failed)
	}
	if !g.IsBanned("banned") {
		t.Fatalf("\t%s\tShould keep the banned address.", failed)
	}
	t.Logf("\t%s\tShould keep connected and banned addresses.", success)
}
