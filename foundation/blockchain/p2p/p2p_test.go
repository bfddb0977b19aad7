package p2p_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/auriumchain/node/foundation/blockchain/database"
	"github.com/auriumchain/node/foundation/blockchain/genesis"
	"github.com/auriumchain/node/foundation/blockchain/guard"
	"github.com/auriumchain/node/foundation/blockchain/p2p"
	"github.com/davecgh/go-spew/spew"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const clientID = "127.0.0.1:9999"

// node is a ledger stand in that serves a fixed chain and records what
// peers tell it.
type node struct {
	mu       sync.Mutex
	blocks   []database.Block
	received []database.Block
	seen     map[string]uint64
}

func newNode(t *testing.T, height int) *node {
	return newNodeWithMiner(t, height, "miner")
}

// newNodeWithMiner builds the chain with the specified miner address, a long
// address fattens every block.
func newNodeWithMiner(t *testing.T, height int, miner string) *node {
	gen := genesis.Block()
	blocks := []database.Block{gen}

	for i := 1; i <= height; i++ {
		ts := gen.Timestamp + int64(i)
		cb := database.NewCoinbaseTx(uint64(i), miner, 1, ts)

		b, err := database.NewBlock(blocks[i-1], []database.Tx{cb}, 1, miner, ts)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to build block %d: %v", failed, i, err)
		}
		b.Hash = b.HeaderHash()
		blocks = append(blocks, b)
	}

	return &node{blocks: blocks, seen: make(map[string]uint64)}
}

func (n *node) QueryGenesisHash() string { return n.blocks[0].Hash }
func (n *node) QueryHeight() uint64      { return uint64(len(n.blocks) - 1) }

func (n *node) QueryBlocksByNumber(from uint64, to uint64) []database.Block {
	last := uint64(len(n.blocks) - 1)
	if to > last {
		to = last
	}
	if from > to {
		return nil
	}
	return n.blocks[from : to+1]
}

func (n *node) PeerSeen(host string, height uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seen[host] = height
}

func (n *node) ProcessPeerBlock(from string, block database.Block) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.received = append(n.received, block)
	return nil
}

func (n *node) counts() (int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.received), len(n.seen)
}

// foreign announces a genesis nobody else runs.
type foreign struct{}

func (foreign) QueryGenesisHash() string { return strings.Repeat("f", 64) }
func (foreign) QueryHeight() uint64      { return 0 }

// =============================================================================

func credentials(t *testing.T) p2p.Credentials {
	_, creds, err := p2p.GenerateCredentials([]string{"127.0.0.1"}, time.Hour)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to generate credentials: %v", failed, err)
	}
	return creds
}

func startServer(t *testing.T, h p2p.Handler, creds p2p.Credentials, cfg guard.Config) (*p2p.Server, *guard.Guard) {
	tlsCfg, err := creds.ServerConfig()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to build the server tls config: %v", failed, err)
	}

	g := guard.New(cfg, guard.SystemClock{}, nil)

	srv, err := p2p.NewServer(p2p.ServerConfig{
		Host:    "127.0.0.1:0",
		PeerID:  "server",
		TLS:     tlsCfg,
		Guard:   g,
		Handler: h,
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the server: %v", failed, err)
	}

	if err := srv.Listen(); err != nil {
		t.Fatalf("\t%s\tShould be able to listen: %v", failed, err)
	}
	t.Cleanup(func() { srv.Shutdown() })

	return srv, g
}

func dialer(t *testing.T, creds p2p.Credentials, local p2p.Local) p2p.Dialer {
	tlsCfg, err := creds.ClientConfig()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to build the client tls config: %v", failed, err)
	}

	return p2p.Dialer{
		TLS:     tlsCfg,
		PeerID:  clientID,
		Local:   local,
		Timeout: 5 * time.Second,
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("\t%s\tShould %s.", failed, what)
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Logf("\t%s\tShould %s.", success, what)
}

// =============================================================================

func Test_Codec(t *testing.T) {
	t.Log("Given the need to frame messages on the wire.")
	{
		msg, err := p2p.NewMessage(p2p.TypeRequestBlocks, p2p.RequestBlocks{From: 4, To: 9})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to build a message: %v", failed, err)
		}

		var buf bytes.Buffer
		if err := p2p.WriteMessage(&buf, msg); err != nil {
			t.Fatalf("\t%s\tShould be able to write a frame: %v", failed, err)
		}
		frameSize := buf.Len() - 4

		got, size, err := p2p.ReadMessage(bytes.NewReader(buf.Bytes()), 1024)
		if err != nil || size != frameSize {
			t.Fatalf("\t%s\tShould be able to read the frame back: size %d: %v", failed, size, err)
		}

		var req p2p.RequestBlocks
		if err := got.ParsePayload(&req); err != nil || req.From != 4 || req.To != 9 {
			t.Logf("got: %s", spew.Sdump(got))
			t.Fatalf("\t%s\tShould get back the same payload: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to round trip a frame.", success)

		r := bytes.NewReader(buf.Bytes())
		if _, size, err := p2p.ReadMessage(r, 8); !errors.Is(err, p2p.ErrFrameTooLarge) || size != frameSize {
			t.Fatalf("\t%s\tShould refuse a frame over the cap: size %d: %v", failed, size, err)
		}
		if r.Len() != frameSize {
			t.Fatalf("\t%s\tShould not read the body of a refused frame: %d left", failed, r.Len())
		}
		t.Logf("\t%s\tShould refuse a frame over the cap before reading it.", success)

		bad := []byte{0, 0, 0, 5, '{', '"', 'x', '"', '}'}
		if _, _, err := p2p.ReadMessage(bytes.NewReader(bad), 1024); !errors.Is(err, p2p.ErrStructural) {
			t.Fatalf("\t%s\tShould refuse malformed json: %v", failed, err)
		}
		t.Logf("\t%s\tShould refuse malformed json.", success)

		untyped := []byte{0, 0, 0, 2, '{', '}'}
		if _, _, err := p2p.ReadMessage(bytes.NewReader(untyped), 1024); !errors.Is(err, p2p.ErrStructural) {
			t.Fatalf("\t%s\tShould refuse a message without a type: %v", failed, err)
		}
		t.Logf("\t%s\tShould refuse a message without a type.", success)

		if _, _, err := p2p.ReadMessage(bytes.NewReader([]byte{0, 0}), 1024); err == nil {
			t.Fatalf("\t%s\tShould fail on a short header.", failed)
		}
		t.Logf("\t%s\tShould fail on a short header.", success)
	}
}

func Test_Session(t *testing.T) {
	creds := credentials(t)
	server := newNode(t, 12)
	client := newNode(t, 0)

	srv, _ := startServer(t, server, creds, guard.DefaultConfig())
	srvAddr := srv.Addr().String()

	t.Log("Given the need to talk to a peer over mutual TLS.")
	{

		ctx := context.Background()

		c, err := dialer(t, creds, client).Dial(ctx, srvAddr)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to dial the server: %v", failed, err)
		}
		defer c.Close()
		t.Logf("\t%s\tShould be able to dial the server.", success)

		if c.Remote().Height != 12 || c.Remote().PeerID != "server" || c.Remote().Version != p2p.Version {
			t.Logf("remote: %s", spew.Sdump(c.Remote()))
			t.Fatalf("\t%s\tShould get the server handshake.", failed)
		}
		t.Logf("\t%s\tShould get the server handshake.", success)

		h, err := c.Height(ctx)
		if err != nil || h != 12 {
			t.Fatalf("\t%s\tShould get the server height: %d: %v", failed, h, err)
		}
		t.Logf("\t%s\tShould get the server height.", success)

		blocks, err := c.Blocks(ctx, 3, 7)
		if err != nil || len(blocks) != 5 {
			t.Fatalf("\t%s\tShould get the requested range: %d: %v", failed, len(blocks), err)
		}
		for i, b := range blocks {
			if b.Index != uint64(3+i) || b.Hash != server.blocks[3+i].Hash {
				t.Fatalf("\t%s\tShould get the range in ascending order: blk[%d]", failed, b.Index)
			}
		}
		t.Logf("\t%s\tShould get the requested range in order.", success)

		blocks, err = c.Blocks(ctx, 10, 2000)
		if err != nil || len(blocks) != 3 {
			t.Fatalf("\t%s\tShould get a range clipped to the tip: %d: %v", failed, len(blocks), err)
		}
		t.Logf("\t%s\tShould get a range clipped to the tip.", success)

		if err := c.Ping(ctx); err != nil {
			t.Fatalf("\t%s\tShould be able to ping: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to ping.", success)

		if err := c.SendBlock(ctx, server.blocks[5]); err != nil {
			t.Fatalf("\t%s\tShould be able to send a block: %v", failed, err)
		}
		waitFor(t, "deliver the announced block", func() bool {
			received, _ := server.counts()
			return received == 1
		})

		server.mu.Lock()
		height, exists := server.seen[clientID]
		server.mu.Unlock()
		if !exists || height != 0 {
			t.Fatalf("\t%s\tShould record the client as a peer.", failed)
		}
		t.Logf("\t%s\tShould record the client as a peer.", success)
	}
}

func Test_Admission(t *testing.T) {
	creds := credentials(t)
	server := newNode(t, 2)

	srv, _ := startServer(t, server, creds, guard.DefaultConfig())
	ctx := context.Background()

	t.Log("Given the need to only talk to nodes of the same network.")
	{
		_, err := dialer(t, creds, foreign{}).Dial(ctx, srv.Addr().String())
		if !errors.Is(err, p2p.ErrRejected) {
			t.Fatalf("\t%s\tShould reject a foreign genesis: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject a foreign genesis.", success)

		if _, seen := server.counts(); seen != 0 {
			t.Fatalf("\t%s\tShould not record a foreign peer.", failed)
		}
		t.Logf("\t%s\tShould not record a foreign peer.", success)

		other := credentials(t)
		if _, err := dialer(t, other, newNode(t, 0)).Dial(ctx, srv.Addr().String()); err == nil {
			t.Fatalf("\t%s\tShould refuse a certificate from another authority.", failed)
		}
		t.Logf("\t%s\tShould refuse a certificate from another authority.", success)
	}
}

func Test_GuardBlocks(t *testing.T) {
	creds := credentials(t)
	server := newNode(t, 4)

	cfg := guard.DefaultConfig()
	cfg.MaxBlocksPerMin = 2

	srv, g := startServer(t, server, creds, cfg)
	ctx := context.Background()
	d := dialer(t, creds, newNode(t, 0))

	t.Log("Given the need to screen block announcements before they reach the ledger.")
	{
		c, err := d.Dial(ctx, srv.Addr().String())
		if err != nil {
			t.Fatalf("\t%s\tShould be able to dial the server: %v", failed, err)
		}
		defer c.Close()

		for i := 1; i <= 3; i++ {
			c.SendBlock(ctx, server.blocks[i])
		}

		waitFor(t, "ban the flooding address", func() bool { return g.IsBanned("127.0.0.1") })

		if received, _ := server.counts(); received != 2 {
			t.Fatalf("\t%s\tShould hand only the admitted blocks to the ledger: got %d", failed, received)
		}
		t.Logf("\t%s\tShould hand only the admitted blocks to the ledger.", success)

		if _, err := d.Dial(ctx, srv.Addr().String()); !errors.Is(err, p2p.ErrRejected) {
			t.Fatalf("\t%s\tShould reject a banned address: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject a banned address.", success)

		g.Unban("127.0.0.1")

		c2, err := d.Dial(ctx, srv.Addr().String())
		if err != nil {
			t.Fatalf("\t%s\tShould admit the address after unban: %v", failed, err)
		}
		c2.Close()
		t.Logf("\t%s\tShould admit the address after unban.", success)
	}
}

func Test_GuardSize(t *testing.T) {
	creds := credentials(t)
	server := newNode(t, 1)

	cfg := guard.DefaultConfig()
	cfg.MaxMessageBytes = 2048

	srv, g := startServer(t, server, creds, cfg)
	ctx := context.Background()

	t.Log("Given the need to cap the size of a message.")
	{
		c, err := dialer(t, creds, newNode(t, 0)).Dial(ctx, srv.Addr().String())
		if err != nil {
			t.Fatalf("\t%s\tShould be able to dial the server: %v", failed, err)
		}
		defer c.Close()

		big := server.blocks[1]
		big.MinerAddress = strings.Repeat("a", 4096)
		c.SendBlock(ctx, big)

		waitFor(t, "ban an address sending an oversized frame", func() bool { return g.IsBanned("127.0.0.1") })

		if received, _ := server.counts(); received != 0 {
			t.Fatalf("\t%s\tShould not hand the oversized block to the ledger.", failed)
		}
		t.Logf("\t%s\tShould not hand the oversized block to the ledger.", success)
	}
}

func Test_PeerIDs(t *testing.T) {
	creds := credentials(t)
	server := newNode(t, 1)

	cfg := guard.DefaultConfig()
	cfg.MaxConnections = 10

	srv, _ := startServer(t, server, creds, cfg)
	ctx := context.Background()

	// session dials with the peer id and completes a round trip so the
	// server is done with the handshake.
	session := func(peerID string) {
		d := dialer(t, creds, newNode(t, 0))
		d.PeerID = peerID

		c, err := d.Dial(ctx, srv.Addr().String())
		if err != nil {
			t.Fatalf("\t%s\tShould be able to dial as %q: %v", failed, peerID, err)
		}
		defer c.Close()

		if err := c.Ping(ctx); err != nil {
			t.Fatalf("\t%s\tShould be able to ping as %q: %v", failed, peerID, err)
		}
	}

	t.Log("Given the need to only record peer ids a node can dial back.")
	{
		for _, id := range []string{"not-a-host", ":9080", "127.0.0.1:0", "127.0.0.1:http"} {
			session(id)
		}

		if _, seen := server.counts(); seen != 0 {
			t.Logf("seen: %s", spew.Sdump(server.seen))
			t.Fatalf("\t%s\tShould not record ids that are not host:port.", failed)
		}
		t.Logf("\t%s\tShould not record ids that are not host:port.", success)

		for i := range 6 {
			session(fmt.Sprintf("10.0.0.%d:9080", i+1))
		}

		if _, seen := server.counts(); seen != 4 {
			t.Logf("seen: %s", spew.Sdump(server.seen))
			t.Fatalf("\t%s\tShould cap the ids recorded for one address: got %d", failed, seen)
		}
		t.Logf("\t%s\tShould cap the ids recorded for one address.", success)

		session("10.0.0.1:9080")
		if _, seen := server.counts(); seen != 4 {
			t.Fatalf("\t%s\tShould keep recording an id already admitted: got %d", failed, seen)
		}
		t.Logf("\t%s\tShould keep recording an id already admitted.", success)
	}
}

func Test_RangeFitsFrame(t *testing.T) {
	creds := credentials(t)
	server := newNodeWithMiner(t, 40, strings.Repeat("m", 3500))

	cfg := guard.DefaultConfig()
	cfg.MaxMessageBytes = 64 * 1024

	srv, _ := startServer(t, server, creds, cfg)
	ctx := context.Background()

	d := dialer(t, creds, newNode(t, 0))
	d.MaxMessageBytes = cfg.MaxMessageBytes

	t.Log("Given the need to answer a range with blocks larger than one frame.")
	{
		t.Logf("\tTest 0:\tWhen requesting 40 blocks of %d bytes with a %d byte frame cap.", server.blocks[1].Size(), cfg.MaxMessageBytes)
		{
			c, err := d.Dial(ctx, srv.Addr().String())
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to dial the server: %v", failed, err)
			}
			defer c.Close()

			blocks, err := c.Blocks(ctx, 1, 40)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould get a reply within the frame cap: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould get a reply within the frame cap.", success)

			if len(blocks) == 0 || len(blocks) >= 40 {
				t.Fatalf("\t%s\tTest 0:\tShould get a shortened reply: got %d", failed, len(blocks))
			}
			t.Logf("\t%s\tTest 0:\tShould get a shortened reply of %d blocks.", success, len(blocks))

			from := uint64(1)
			for from <= 40 {
				blocks, err := c.Blocks(ctx, from, 40)
				if err != nil || len(blocks) == 0 {
					t.Fatalf("\t%s\tTest 0:\tShould keep making progress from %d: %v", failed, from, err)
				}
				for _, b := range blocks {
					if b.Index != from {
						t.Fatalf("\t%s\tTest 0:\tShould get blocks in order: got %d, exp %d", failed, b.Index, from)
					}
					from++
				}
			}
			t.Logf("\t%s\tTest 0:\tShould fetch the whole range in shortened replies.", success)
		}
	}
}

func Test_ConnectionCap(t *testing.T) {
	creds := credentials(t)
	server := newNode(t, 1)

	cfg := guard.DefaultConfig()
	cfg.MaxConnections = 1

	srv, g := startServer(t, server, creds, cfg)
	ctx := context.Background()
	d := dialer(t, creds, newNode(t, 0))

	t.Log("Given the need to cap concurrent connections per address.")
	{
		c, err := d.Dial(ctx, srv.Addr().String())
		if err != nil {
			t.Fatalf("\t%s\tShould be able to dial the server: %v", failed, err)
		}

		if _, err := d.Dial(ctx, srv.Addr().String()); !errors.Is(err, p2p.ErrRejected) {
			t.Fatalf("\t%s\tShould refuse a connection over the cap: %v", failed, err)
		}
		t.Logf("\t%s\tShould refuse a connection over the cap.", success)

		if g.IsBanned("127.0.0.1") {
			t.Fatalf("\t%s\tShould not ban for reaching the cap.", failed)
		}
		t.Logf("\t%s\tShould not ban for reaching the cap.", success)

		c.Close()

		waitFor(t, "free the slot on disconnect", func() bool {
			c, err := d.Dial(ctx, srv.Addr().String())
			if err != nil {
				return false
			}
			c.Close()
			return true
		})
	}
}
