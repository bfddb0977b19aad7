package p2p

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/auriumchain/node/foundation/blockchain/database"
	"github.com/auriumchain/node/foundation/blockchain/guard"
)

// DefaultIdleTimeout is how long a connection may stay silent.
const DefaultIdleTimeout = 2 * time.Minute

// Bounds on draining a rejected connection.
const (
	lingerTimeout = time.Second
	lingerBytes   = 1 << 20
)

// Bounds on the peer ids recorded from handshakes. A remote address may
// announce at most maxIDsPerAddr distinct ids and at most maxClaimAddrs
// addresses are tracked. Connections past either bound are still served
// but are not recorded as peers.
const (
	maxIDsPerAddr = 4
	maxClaimAddrs = 4096
)

// Local provides what a node announces about itself in the handshake.
type Local interface {
	QueryGenesisHash() string
	QueryHeight() uint64
}

// Handler is the ledger behavior the server needs to answer peers.
type Handler interface {
	Local
	QueryBlocksByNumber(from uint64, to uint64) []database.Block
	PeerSeen(host string, height uint64)
	ProcessPeerBlock(from string, block database.Block) error
}

// ServerConfig represents the configuration required to start the server.
type ServerConfig struct {
	Host        string
	PeerID      string
	TLS         *tls.Config
	Guard       *guard.Guard
	Handler     Handler
	IdleTimeout time.Duration
	EvHandler   func(v string, args ...any)
}

// Server accepts peer connections. Every connection, frame and announced
// block is screened by the guard before the handler sees it.
type Server struct {
	cfg      ServerConfig
	ev       func(v string, args ...any)
	listener net.Listener
	wg       sync.WaitGroup
	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	claims   map[string]map[string]struct{}
	shut     chan struct{}
}

// NewServer constructs a server that is not listening yet.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.TLS == nil {
		return nil, errors.New("tls configuration required")
	}
	if cfg.Guard == nil {
		return nil, errors.New("guard required")
	}
	if cfg.Handler == nil {
		return nil, errors.New("handler required")
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}

	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	s := Server{
		cfg:    cfg,
		ev:     ev,
		conns:  make(map[net.Conn]struct{}),
		claims: make(map[string]map[string]struct{}),
		shut:   make(chan struct{}),
	}

	return &s, nil
}

// Listen binds the listener and starts the accept loop.
func (s *Server) Listen() error {
	listener, err := tls.Listen("tcp", s.cfg.Host, s.cfg.TLS)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Host, err)
	}
	s.listener = listener

	s.ev("p2p: listening: %s", listener.Addr())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop()
	}()

	return nil
}

// Addr returns the address the server is bound to.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Shutdown stops accepting, closes every open connection and waits for
// the connection goroutines to return.
func (s *Server) Shutdown() error {
	s.ev("p2p: shutdown: started")
	defer s.ev("p2p: shutdown: completed")

	close(s.shut)

	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}

	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()

	return err
}

// =============================================================================

func (s *Server) acceptLoop() {
	s.ev("p2p: acceptLoop: G started")
	defer s.ev("p2p: acceptLoop: G completed")

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.isShutdown() || errors.Is(err, net.ErrClosed) {
				return
			}
			s.ev("p2p: acceptLoop: ERROR: %s", err)
			continue
		}

		s.track(conn, true)

		s.wg.Add(1)
		go func() {
			defer func() {
				s.track(conn, false)
				conn.Close()
				s.wg.Done()
			}()
			s.handleConn(conn)
		}()
	}
}

// handleConn runs the handshake and then serves requests until the peer
// goes away, misbehaves or the server shuts down.
func (s *Server) handleConn(conn net.Conn) {
	addr := remoteHost(conn)

	if err := s.cfg.Guard.AllowConnection(addr); err != nil {
		s.ev("p2p: conn[%s]: refused: %s", addr, err)
		s.reject(conn, err.Error())
		return
	}
	defer s.cfg.Guard.ReleaseConnection(addr)

	msg, err := s.read(conn, addr)
	if err != nil {
		s.drop(conn, addr, err)
		return
	}

	if msg.Type != TypeHandshake {
		s.reject(conn, "handshake required")
		return
	}

	var hs Handshake
	if err := msg.ParsePayload(&hs); err != nil {
		s.drop(conn, addr, err)
		return
	}

	if hs.GenesisHash != s.cfg.Handler.QueryGenesisHash() {
		s.ev("p2p: conn[%s]: foreign genesis[%s]", addr, hs.GenesisHash)
		s.reject(conn, "foreign genesis")
		return
	}

	reply := Handshake{
		Version:     Version,
		Height:      s.cfg.Handler.QueryHeight(),
		PeerID:      s.cfg.PeerID,
		GenesisHash: s.cfg.Handler.QueryGenesisHash(),
	}
	if err := s.write(conn, TypeHandshake, reply); err != nil {
		s.ev("p2p: conn[%s]: write handshake: %s", addr, err)
		return
	}

	peerID := hs.PeerID
	if !s.admitPeerID(addr, peerID) {
		if peerID != "" {
			s.ev("p2p: conn[%s]: peer id[%s] not recorded", addr, peerID)
		}
		peerID = ""
	}

	if peerID != "" {
		s.cfg.Handler.PeerSeen(peerID, hs.Height)
	}

	s.ev("p2p: conn[%s]: peer[%s]: version[%s]: height[%d]", addr, peerID, hs.Version, hs.Height)

	for {
		msg, err := s.read(conn, addr)
		if err != nil {
			s.drop(conn, addr, err)
			return
		}

		if !s.dispatch(conn, addr, peerID, msg) {
			return
		}
	}
}

// dispatch serves one message. It reports whether the connection stays open.
func (s *Server) dispatch(conn net.Conn, addr string, peerID string, msg Message) bool {
	switch msg.Type {
	case TypeHeightQuery:
		resp := HeightResponse{Height: s.cfg.Handler.QueryHeight()}
		return s.write(conn, TypeHeightResponse, resp) == nil

	case TypeRequestBlocks:
		var req RequestBlocks
		if err := msg.ParsePayload(&req); err != nil {
			s.drop(conn, addr, err)
			return false
		}

		if req.To < req.From {
			s.reject(conn, "invalid block range")
			return false
		}
		if req.To-req.From >= MaxBlocksPerRequest {
			req.To = req.From + MaxBlocksPerRequest - 1
		}

		blocks := s.cfg.Handler.QueryBlocksByNumber(req.From, req.To)
		resp := SendBlocks{Blocks: fitFrame(blocks, s.cfg.Guard.Config().MaxMessageBytes)}
		return s.write(conn, TypeSendBlocks, resp) == nil

	case TypeNewBlock:
		if err := s.cfg.Guard.AllowBlock(addr); err != nil {
			s.drop(conn, addr, err)
			return false
		}

		var nb NewBlock
		if err := msg.ParsePayload(&nb); err != nil {
			s.drop(conn, addr, err)
			return false
		}

		if err := s.cfg.Handler.ProcessPeerBlock(peerID, nb.Block); err != nil {
			s.ev("p2p: conn[%s]: blk[%d]: rejected: %s", addr, nb.Block.Index, err)
		}
		return true

	case TypePing:
		return s.write(conn, TypePong, nil) == nil

	case TypePong, TypeHandshake:
		return true

	case TypeReject:
		var rej Reject
		msg.ParsePayload(&rej)
		s.ev("p2p: conn[%s]: peer rejected: %s", addr, rej.Reason)
		return false
	}

	s.reject(conn, fmt.Sprintf("unknown message type %q", msg.Type))
	return false
}

// read reads one frame and charges it to the guard before returning it.
func (s *Server) read(conn net.Conn, addr string) (Message, error) {
	conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))

	msg, size, err := ReadMessage(conn, s.cfg.Guard.Config().MaxMessageBytes)
	if size > 0 {
		if gerr := s.cfg.Guard.AllowMessage(addr, size); gerr != nil {
			return Message{}, gerr
		}
	}

	return msg, err
}

func (s *Server) write(conn net.Conn, msgType MessageType, payload any) error {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		return err
	}

	conn.SetWriteDeadline(time.Now().Add(s.cfg.IdleTimeout))
	return WriteMessage(conn, msg)
}

// drop logs why a connection ends. Guard violations and malformed input are
// answered with a Reject first.
func (s *Server) drop(conn net.Conn, addr string, err error) {
	switch {
	case errors.Is(err, guard.ErrBanned),
		errors.Is(err, guard.ErrRateLimited),
		errors.Is(err, guard.ErrMessageTooLarge),
		errors.Is(err, ErrStructural):
		s.ev("p2p: conn[%s]: dropped: %s", addr, err)
		s.reject(conn, err.Error())

	case s.isShutdown():

	default:
		s.ev("p2p: conn[%s]: closed: %s", addr, err)
	}
}

// reject sends the reason and lingers until the peer closes so the reject
// is not lost to a reset.
func (s *Server) reject(conn net.Conn, reason string) {
	if err := s.write(conn, TypeReject, Reject{Reason: reason}); err != nil {
		return
	}

	if tc, ok := conn.(*tls.Conn); ok {
		tc.CloseWrite()
	}

	conn.SetReadDeadline(time.Now().Add(lingerTimeout))
	io.Copy(io.Discard, io.LimitReader(conn, lingerBytes))
}

// admitPeerID reports whether the id announced by the remote address may
// be recorded as a peer. The id must be a dialable host:port.
func (s *Server) admitPeerID(addr string, id string) bool {
	if !validPeerID(id) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids, exists := s.claims[addr]
	if !exists {
		if len(s.claims) >= maxClaimAddrs {
			return false
		}
		ids = make(map[string]struct{})
		s.claims[addr] = ids
	}

	if _, exists := ids[id]; exists {
		return true
	}

	if len(ids) >= maxIDsPerAddr {
		return false
	}
	ids[id] = struct{}{}

	return true
}

func (s *Server) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if add {
		s.conns[conn] = struct{}{}
		return
	}
	delete(s.conns, conn)
}

func (s *Server) isShutdown() bool {
	select {
	case <-s.shut:
		return true
	default:
		return false
	}
}

// validPeerID reports whether the id is a host:port with a usable port.
func validPeerID(id string) bool {
	host, port, err := net.SplitHostPort(id)
	if err != nil || host == "" {
		return false
	}

	p, err := strconv.Atoi(port)
	return err == nil && p > 0 && p <= 65535
}

// remoteHost returns the host part of the remote address. The guard keys
// its state by host so reconnecting from a new port does not reset it.
func remoteHost(conn net.Conn) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}
	return host
}
