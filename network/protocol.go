package network

import (
	"encoding/binary"
	"errors"
	"io"
)

// MessageType identifies the semantic meaning of a message
type MessageType uint8

const (
	// Liveness, answered inside the peer manager
	MsgHeartbeat MessageType = 0x01
	MsgAck       MessageType = 0x04

	// Field
	MsgStateSync MessageType = 0x11 // Mantle state + particle snapshot
	MsgEvent     MessageType = 0x12 // Settle events
)

// HeaderSize is the fixed frame header: [Type:1][Flags:1][Seq:4][Ack:4][Len:2]
const HeaderSize = 12

// MaxPayload is the largest payload the 16-bit length field can carry
const MaxPayload = 65535

// FlagNeedAck asks the receiver to answer with MsgAck
const FlagNeedAck uint8 = 0x01

var ErrPayloadTooLarge = errors.New("payload exceeds maximum size")

// Message is one framed network message
type Message struct {
	Type    MessageType
	Flags   uint8
	Seq     uint32 // Sender's sequence number
	Ack     uint32 // Last received sequence from peer
	Payload []byte
}

// Encode writes header and payload as a single write
func (m *Message) Encode(w io.Writer) error {
	payloadLen := len(m.Payload)
	if payloadLen > MaxPayload {
		return ErrPayloadTooLarge
	}

	frame := make([]byte, HeaderSize+payloadLen)
	frame[0] = byte(m.Type)
	frame[1] = m.Flags
	binary.BigEndian.PutUint32(frame[2:6], m.Seq)
	binary.BigEndian.PutUint32(frame[6:10], m.Ack)
	binary.BigEndian.PutUint16(frame[10:12], uint16(payloadLen))
	copy(frame[HeaderSize:], m.Payload)

	_, err := w.Write(frame)
	return err
}

// Decode reads one message from r
func Decode(r io.Reader) (*Message, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	m := &Message{
		Type:  MessageType(header[0]),
		Flags: header[1],
		Seq:   binary.BigEndian.Uint32(header[2:6]),
		Ack:   binary.BigEndian.Uint32(header[6:10]),
	}

	if n := binary.BigEndian.Uint16(header[10:12]); n > 0 {
		m.Payload = make([]byte, n)
		if _, err := io.ReadFull(r, m.Payload); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// NewMessage creates a message with the given type and payload
func NewMessage(t MessageType, payload []byte) *Message {
	return &Message{Type: t, Payload: payload}
}
