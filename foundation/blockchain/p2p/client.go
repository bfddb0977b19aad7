package p2p

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/auriumchain/node/foundation/blockchain/database"
	"github.com/auriumchain/node/foundation/blockchain/guard"
)

// DefaultTimeout bounds every round trip made by a client.
const DefaultTimeout = 10 * time.Second

// Set of errors a client reports about the remote node.
var (
	ErrRejected       = errors.New("rejected by peer")
	ErrForeignGenesis = errors.New("peer runs a foreign genesis")
)

// Dialer opens client sessions to peers.
type Dialer struct {
	TLS             *tls.Config
	PeerID          string
	Local           Local
	Timeout         time.Duration
	MaxMessageBytes int
}

// Dial connects to the host and runs the handshake. The session is refused
// when the peer announces a different genesis.
func (d Dialer) Dial(ctx context.Context, host string) (*Client, error) {
	timeout := d.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	maxBytes := d.MaxMessageBytes
	if maxBytes == 0 {
		maxBytes = guard.DefaultConfig().MaxMessageBytes
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	td := tls.Dialer{
		NetDialer: &net.Dialer{Timeout: timeout},
		Config:    d.TLS,
	}

	conn, err := td.DialContext(dialCtx, "tcp", host)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", host, err)
	}

	c := Client{
		host:     host,
		conn:     conn,
		timeout:  timeout,
		maxBytes: maxBytes,
	}

	hs := Handshake{
		Version:     Version,
		Height:      d.Local.QueryHeight(),
		PeerID:      d.PeerID,
		GenesisHash: d.Local.QueryGenesisHash(),
	}

	if err := c.roundTrip(ctx, TypeHandshake, hs, TypeHandshake, &c.remote); err != nil {
		conn.Close()
		return nil, err
	}

	if c.remote.GenesisHash != hs.GenesisHash {
		conn.Close()
		return nil, fmt.Errorf("%w: %s: %s", ErrForeignGenesis, host, c.remote.GenesisHash)
	}

	return &c, nil
}

// =============================================================================

// Client is one session with a peer. Round trips are serialized.
type Client struct {
	host     string
	conn     net.Conn
	timeout  time.Duration
	maxBytes int
	remote   Handshake
	mu       sync.Mutex
}

// Host returns the address the client dialed.
func (c *Client) Host() string {
	return c.host
}

// Remote returns the handshake the peer answered with.
func (c *Client) Remote() Handshake {
	return c.remote
}

// Height asks the peer for the index of its tip.
func (c *Client) Height(ctx context.Context) (uint64, error) {
	var resp HeightResponse
	if err := c.roundTrip(ctx, TypeHeightQuery, nil, TypeHeightResponse, &resp); err != nil {
		return 0, err
	}

	return resp.Height, nil
}

// Blocks asks the peer for the closed range [from, to]. Ranges larger than
// MaxBlocksPerRequest come back truncated by the peer.
func (c *Client) Blocks(ctx context.Context, from uint64, to uint64) ([]database.Block, error) {
	var resp SendBlocks
	if err := c.roundTrip(ctx, TypeRequestBlocks, RequestBlocks{From: from, To: to}, TypeSendBlocks, &resp); err != nil {
		return nil, err
	}

	if uint64(len(resp.Blocks)) > to-from+1 {
		return nil, fmt.Errorf("%w: asked for %d blocks, got %d", ErrStructural, to-from+1, len(resp.Blocks))
	}

	return resp.Blocks, nil
}

// SendBlock announces the block to the peer. No answer is expected.
func (c *Client) SendBlock(ctx context.Context, block database.Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	stop := c.deadline(ctx)
	defer stop()

	msg, err := NewMessage(TypeNewBlock, NewBlock{Block: block})
	if err != nil {
		return err
	}

	return WriteMessage(c.conn, msg)
}

// Ping checks the peer is alive.
func (c *Client) Ping(ctx context.Context) error {
	return c.roundTrip(ctx, TypePing, nil, TypePong, nil)
}

// Close ends the session.
func (c *Client) Close() error {
	return c.conn.Close()
}

// =============================================================================

// roundTrip writes one request and waits for the wanted answer. A Reject
// from the peer is turned into ErrRejected.
func (c *Client) roundTrip(ctx context.Context, reqType MessageType, payload any, want MessageType, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	stop := c.deadline(ctx)
	defer stop()

	req, err := NewMessage(reqType, payload)
	if err != nil {
		return err
	}

	if err := WriteMessage(c.conn, req); err != nil {
		return c.ctxErr(ctx, err)
	}

	resp, _, err := ReadMessage(c.conn, c.maxBytes)
	if err != nil {
		return c.ctxErr(ctx, err)
	}

	switch resp.Type {
	case want:
		if v == nil {
			return nil
		}
		return resp.ParsePayload(v)

	case TypeReject:
		var rej Reject
		resp.ParsePayload(&rej)
		return fmt.Errorf("%w: %s: %s", ErrRejected, c.host, rej.Reason)
	}

	return fmt.Errorf("%w: expected %s, got %s", ErrStructural, want, resp.Type)
}

// deadline applies the earlier of the client timeout and the context
// deadline to the connection, and interrupts blocked I/O when the context
// is canceled. The returned function releases the context hook.
func (c *Client) deadline(ctx context.Context) func() {
	d := time.Now().Add(c.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(d) {
		d = dl
	}
	c.conn.SetDeadline(d)

	stop := context.AfterFunc(ctx, func() {
		c.conn.SetDeadline(time.Now())
	})

	return func() { stop() }
}

func (c *Client) ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("%s: %w", c.host, err)
}
