// Package p2p implements the peer to peer wire protocol: the message
// variants, the length prefixed framing, the mutual TLS transport and the
// server and client that speak it.
package p2p

import (
	"encoding/json"
	"fmt"

	"github.com/auriumchain/node/foundation/blockchain/database"
)

// Version is the protocol version announced in the handshake.
const Version = "1.0"

// MaxBlocksPerRequest caps the number of blocks a single RequestBlocks may
// ask for. Larger ranges are fetched in chunks.
const MaxBlocksPerRequest = 500

// frameHeadroom is kept free for the envelope around a block list.
const frameHeadroom = 1024

// MessageType tags the payload carried by a message.
type MessageType string

// Set of message types spoken on the wire.
const (
	TypeHandshake      MessageType = "handshake"
	TypeHeightQuery    MessageType = "height_query"
	TypeHeightResponse MessageType = "height_response"
	TypeRequestBlocks  MessageType = "request_blocks"
	TypeSendBlocks     MessageType = "send_blocks"
	TypeNewBlock       MessageType = "new_block"
	TypePing           MessageType = "ping"
	TypePong           MessageType = "pong"
	TypeReject         MessageType = "reject"
)

// Message is the envelope every frame carries.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Handshake is the first message exchanged in both directions.
type Handshake struct {
	Version     string `json:"version"`
	Height      uint64 `json:"height"`
	PeerID      string `json:"peer_id"`
	GenesisHash string `json:"genesis_hash"`
}

// HeightResponse answers a height query.
type HeightResponse struct {
	Height uint64 `json:"height"`
}

// RequestBlocks asks for the closed range [From, To].
type RequestBlocks struct {
	From uint64 `json:"from"`
	To   uint64 `json:"to"`
}

// SendBlocks answers a RequestBlocks in ascending index order.
type SendBlocks struct {
	Blocks []database.Block `json:"blocks"`
}

// fitFrame returns the longest prefix of blocks whose encoding stays within
// maxBytes once wrapped in an envelope. The first block is always kept so a
// range request makes progress.
func fitFrame(blocks []database.Block, maxBytes int) []database.Block {
	budget := maxBytes - frameHeadroom

	var total int
	for i, block := range blocks {
		total += block.Size() + 1
		if total > budget && i > 0 {
			return blocks[:i]
		}
	}

	return blocks
}

// NewBlock announces a freshly mined or accepted block.
type NewBlock struct {
	Block database.Block `json:"block"`
}

// Reject is sent before the connection is closed on an admission failure.
type Reject struct {
	Reason string `json:"reason"`
}

// NewMessage creates a message with the given type and payload. A nil
// payload produces an empty message of that type.
func NewMessage(msgType MessageType, payload any) (Message, error) {
	if payload == nil {
		return Message{Type: msgType}, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s: %w", msgType, err)
	}

	return Message{Type: msgType, Payload: data}, nil
}

// ParsePayload unmarshals the message payload into the provided value.
func (m Message) ParsePayload(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%w: %s: missing payload", ErrStructural, m.Type)
	}

	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrStructural, m.Type, err)
	}

	return nil
}
