// Package wire encodes and decodes the peer-to-peer datagram protocol.
//
// All integers are little-endian. Every message starts with a five byte
// header: a one byte type followed by a uint32 sequence number.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Type identifies a message.
type Type uint8

const (
	TypePing  Type = 1
	TypePong  Type = 2
	TypeAudio Type = 3
)

func (t Type) String() string {
	switch t {
	case TypePing:
		return "ping"
	case TypePong:
		return "pong"
	case TypeAudio:
		return "audio"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Sizes of the fixed parts of each message.
const (
	HeaderSize      = 5
	PongSize        = HeaderSize + 8
	AudioHeaderSize = HeaderSize + 8 + 1 + 1 + 2

	MaxPayloadSize = math.MaxUint16
)

var (
	// ErrTruncated is returned when a message is shorter than its declared size.
	ErrTruncated = errors.New("wire: truncated message")
	// ErrUnknownType is returned for an unrecognised message type.
	ErrUnknownType = errors.New("wire: unknown message type")
	// ErrPayloadTooLarge is returned when an audio payload does not fit the size field.
	ErrPayloadTooLarge = errors.New("wire: payload too large")
)

// Header is common to every message.
type Header struct {
	Type     Type
	Sequence uint32
}

// Message is a decoded datagram. Fields beyond Header are only meaningful
// for the message type that carries them.
type Message struct {
	Header

	// Pong
	Timestamp int64

	// Audio
	SampleID int64
	StreamID uint8
	Channels uint8
	Payload  []byte
}

// Ping builds a ping message.
func Ping(seq uint32) Message {
	return Message{Header: Header{Type: TypePing, Sequence: seq}}
}

// Pong builds a pong message carrying the responder's clock reading.
func Pong(seq uint32, timestamp int64) Message {
	return Message{Header: Header{Type: TypePong, Sequence: seq}, Timestamp: timestamp}
}

// Audio builds an audio message.
func Audio(seq uint32, sampleID int64, streamID, channels uint8, payload []byte) Message {
	return Message{
		Header:   Header{Type: TypeAudio, Sequence: seq},
		SampleID: sampleID,
		StreamID: streamID,
		Channels: channels,
		Payload:  payload,
	}
}

// Size is the encoded length of m.
func (m Message) Size() int {
	switch m.Type {
	case TypePong:
		return PongSize
	case TypeAudio:
		return AudioHeaderSize + len(m.Payload)
	default:
		return HeaderSize
	}
}

// Append encodes m onto dst.
func (m Message) Append(dst []byte) ([]byte, error) {
	switch m.Type {
	case TypePing, TypePong, TypeAudio:
	default:
		return dst, fmt.Errorf("%w: %d", ErrUnknownType, m.Type)
	}
	if m.Type == TypeAudio && len(m.Payload) > MaxPayloadSize {
		return dst, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(m.Payload))
	}

	dst = append(dst, byte(m.Type))
	dst = binary.LittleEndian.AppendUint32(dst, m.Sequence)

	switch m.Type {
	case TypePong:
		dst = binary.LittleEndian.AppendUint64(dst, uint64(m.Timestamp))
	case TypeAudio:
		dst = binary.LittleEndian.AppendUint64(dst, uint64(m.SampleID))
		dst = append(dst, m.StreamID, m.Channels)
		dst = binary.LittleEndian.AppendUint16(dst, uint16(len(m.Payload)))
		dst = append(dst, m.Payload...)
	}

	return dst, nil
}

// Parse decodes one datagram. The returned Payload aliases data.
// Trailing bytes after a complete message are ignored.
func Parse(data []byte) (Message, error) {
	var m Message
	if len(data) < HeaderSize {
		return m, ErrTruncated
	}

	m.Type = Type(data[0])
	m.Sequence = binary.LittleEndian.Uint32(data[1:5])

	switch m.Type {
	case TypePing:
	case TypePong:
		if len(data) < PongSize {
			return Message{}, ErrTruncated
		}
		m.Timestamp = int64(binary.LittleEndian.Uint64(data[5:13]))
	case TypeAudio:
		if len(data) < AudioHeaderSize {
			return Message{}, ErrTruncated
		}
		m.SampleID = int64(binary.LittleEndian.Uint64(data[5:13]))
		m.StreamID = data[13]
		m.Channels = data[14]
		size := int(binary.LittleEndian.Uint16(data[15:17]))
		if len(data)-AudioHeaderSize < size {
			return Message{}, fmt.Errorf("%w: payload %d of %d bytes", ErrTruncated, len(data)-AudioHeaderSize, size)
		}
		m.Payload = data[AudioHeaderSize : AudioHeaderSize+size : AudioHeaderSize+size]
	default:
		return Message{}, fmt.Errorf("%w: %d", ErrUnknownType, data[0])
	}

	return m, nil
}
