package p2p

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
)

// Set of errors produced while reading and writing frames.
var (
	ErrFrameTooLarge = errors.New("frame exceeds the message size cap")
	ErrStructural    = errors.New("malformed message")
)

// headerSize is the size of the big endian length prefix.
const headerSize = 4

// WriteMessage writes the message as one frame: a u32 big endian length
// followed by the JSON encoded envelope.
func WriteMessage(w io.Writer, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	if uint64(len(data)) > math.MaxUint32 {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(data))
	}

	frame := make([]byte, headerSize+len(data))
	binary.BigEndian.PutUint32(frame, uint32(len(data)))
	copy(frame[headerSize:], data)

	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	return nil
}

// ReadMessage reads one frame. The declared size is returned as soon as the
// header is read so the caller can account for it even when the frame is
// refused. A declared size over max is refused before the body is read.
func ReadMessage(r io.Reader, max int) (Message, int, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Message{}, 0, err
	}

	size := int(binary.BigEndian.Uint32(header[:]))
	if size > max {
		return Message{}, size, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, size, max)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return Message{}, size, err
	}

	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return Message{}, size, fmt.Errorf("%w: %v", ErrStructural, err)
	}

	if msg.Type == "" {
		return Message{}, size, fmt.Errorf("%w: missing type", ErrStructural)
	}

	return msg, size, nil
}
