// Package wire implements the Wayland wire protocol codec: message
// framing, argument encoding/decoding, and the fixed-point number
// format (§4.7 proxy wire handling). It is transport-agnostic; Conn in
// conn.go carries messages and fds over a real Unix socket.
package wire

import (
	"encoding/binary"
	"errors"
	"math"
)

// ObjectID is a client-chosen wire object id (wl_display is always 1).
type ObjectID uint32

// Opcode identifies a request or event within one interface.
type Opcode uint16

// Fixed is a Wayland 24.8 fixed-point number.
type Fixed int32

// FixedFromFloat clamps f to what Fixed's underlying int32 can hold
// before converting, since pointer coordinates can come from a
// resolution far larger than the 24.8 format's range.
func FixedFromFloat(f float64) Fixed {
	const maxVal = float64(math.MaxInt32) / 256.0
	const minVal = float64(math.MinInt32) / 256.0
	if f > maxVal {
		f = maxVal
	} else if f < minVal {
		f = minVal
	}
	return Fixed(f * 256.0)
}

func (f Fixed) Float() float64   { return float64(f) / 256.0 }
func FixedFromInt(i int32) Fixed { return Fixed(i << 8) }
func (f Fixed) Int() int32       { return int32(f) >> 8 }

const (
	headerSize     = 8
	maxMessageSize = 64 * 1024
)

var (
	ErrMessageTooLarge     = errors.New("wire: message exceeds maximum size")
	ErrMessageTooSmall     = errors.New("wire: message smaller than header")
	ErrBufferTooSmall      = errors.New("wire: buffer too small for message")
	ErrInvalidStringLen    = errors.New("wire: invalid string length")
	ErrInvalidArrayLen     = errors.New("wire: invalid array length")
	ErrUnexpectedEOF       = errors.New("wire: unexpected end of message")
	ErrStringNotTerminated = errors.New("wire: string not null-terminated")
	ErrNoMoreFDs           = errors.New("wire: no more file descriptors in message")
)

// Message is one framed wire message: the target/source object, the
// opcode, raw argument bytes, and any fds carried alongside it via
// SCM_RIGHTS.
type Message struct {
	ObjectID ObjectID
	Opcode   Opcode
	Args     []byte
	FDs      []int
}

func (m *Message) Size() int { return headerSize + len(m.Args) }

func paddingFor(length int) int { return (4 - (length % 4)) % 4 }

// Encoder appends Wayland-encoded arguments to an internal buffer.
type Encoder struct {
	buf []byte
}

func NewEncoder(capacity int) *Encoder { return &Encoder{buf: make([]byte, 0, capacity)} }

func (e *Encoder) Reset()         { e.buf = e.buf[:0] }
func (e *Encoder) Bytes() []byte  { return e.buf }

func (e *Encoder) PutInt32(v int32)   { e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(v)) }
func (e *Encoder) PutUint32(v uint32) { e.buf = binary.LittleEndian.AppendUint32(e.buf, v) }
func (e *Encoder) PutFixed(v Fixed)   { e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(v)) }
func (e *Encoder) PutObject(id ObjectID) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(id))
}
func (e *Encoder) PutNewID(id ObjectID) { e.PutObject(id) }

// PutNewIDFull appends a dynamically-bound new_id: interface name,
// version, then the object id, the shape wl_registry.bind uses.
func (e *Encoder) PutNewIDFull(iface string, version uint32, id ObjectID) {
	e.PutString(iface)
	e.PutUint32(version)
	e.PutUint32(uint32(id))
}

func (e *Encoder) PutString(s string) {
	length := uint32(len(s) + 1)
	e.buf = binary.LittleEndian.AppendUint32(e.buf, length)
	e.buf = append(e.buf, s...)
	e.buf = append(e.buf, 0)
	for i := 0; i < paddingFor(int(length)); i++ {
		e.buf = append(e.buf, 0)
	}
}

func (e *Encoder) PutArray(data []byte) {
	length := uint32(len(data))
	e.buf = binary.LittleEndian.AppendUint32(e.buf, length)
	e.buf = append(e.buf, data...)
	for i := 0; i < paddingFor(int(length)); i++ {
		e.buf = append(e.buf, 0)
	}
}

// Decoder reads Wayland-encoded arguments back out of a byte slice,
// tracking the fds that rode alongside it separately (fds are not
// interleaved with the byte stream on the wire).
type Decoder struct {
	buf    []byte
	offset int
	fds    []int
	fdIdx  int
}

func NewDecoder(buf []byte) *Decoder { return &Decoder{buf: buf} }

func (d *Decoder) Reset(buf []byte, fds []int) {
	d.buf, d.offset, d.fds, d.fdIdx = buf, 0, fds, 0
}

func (d *Decoder) Remaining() int { return len(d.buf) - d.offset }
func (d *Decoder) HasMore() bool  { return d.offset < len(d.buf) }

func (d *Decoder) Int32() (int32, error) {
	if d.offset+4 > len(d.buf) {
		return 0, ErrUnexpectedEOF
	}
	v := int32(binary.LittleEndian.Uint32(d.buf[d.offset:]))
	d.offset += 4
	return v, nil
}

func (d *Decoder) Uint32() (uint32, error) {
	if d.offset+4 > len(d.buf) {
		return 0, ErrUnexpectedEOF
	}
	v := binary.LittleEndian.Uint32(d.buf[d.offset:])
	d.offset += 4
	return v, nil
}

func (d *Decoder) Fixed() (Fixed, error) {
	v, err := d.Uint32()
	return Fixed(v), err
}

func (d *Decoder) Object() (ObjectID, error) {
	v, err := d.Uint32()
	return ObjectID(v), err
}

func (d *Decoder) NewID() (ObjectID, error) { return d.Object() }

func (d *Decoder) String() (string, error) {
	length, err := d.Uint32()
	if err != nil {
		return "", err
	}
	if length == 0 {
		return "", nil
	}
	if length > maxMessageSize {
		return "", ErrInvalidStringLen
	}
	paddedLen := int(length) + paddingFor(int(length))
	if d.offset+paddedLen > len(d.buf) {
		return "", ErrUnexpectedEOF
	}
	if d.buf[d.offset+int(length)-1] != 0 {
		return "", ErrStringNotTerminated
	}
	data := d.buf[d.offset : d.offset+int(length)-1]
	d.offset += paddedLen
	return string(data), nil
}

func (d *Decoder) Array() ([]byte, error) {
	length, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	if length == 0 {
		return nil, nil
	}
	if length > maxMessageSize {
		return nil, ErrInvalidArrayLen
	}
	paddedLen := int(length) + paddingFor(int(length))
	if d.offset+paddedLen > len(d.buf) {
		return nil, ErrUnexpectedEOF
	}
	data := make([]byte, length)
	copy(data, d.buf[d.offset:d.offset+int(length)])
	d.offset += paddedLen
	return data, nil
}

// FD consumes the next fd carried alongside this message.
func (d *Decoder) FD() (int, error) {
	if d.fdIdx >= len(d.fds) {
		return -1, ErrNoMoreFDs
	}
	fd := d.fds[d.fdIdx]
	d.fdIdx++
	return fd, nil
}

func (d *Decoder) DecodeHeader() (ObjectID, Opcode, int, error) {
	if d.Remaining() < headerSize {
		return 0, 0, 0, ErrMessageTooSmall
	}
	objectID, err := d.Object()
	if err != nil {
		return 0, 0, 0, err
	}
	sizeAndOpcode, err := d.Uint32()
	if err != nil {
		return 0, 0, 0, err
	}
	size := int(sizeAndOpcode >> 16)
	opcode := Opcode(sizeAndOpcode & 0xFFFF)
	if size < headerSize {
		return 0, 0, 0, ErrMessageTooSmall
	}
	if size > maxMessageSize {
		return 0, 0, 0, ErrMessageTooLarge
	}
	return objectID, opcode, size, nil
}

// DecodeMessage decodes one framed message starting at the decoder's
// current offset. FDs must be attached by the caller afterward — the
// decoder has no way to know how many a given opcode expects.
func (d *Decoder) DecodeMessage() (*Message, error) {
	objectID, opcode, size, err := d.DecodeHeader()
	if err != nil {
		return nil, err
	}
	argsSize := size - headerSize
	if d.offset+argsSize > len(d.buf) {
		return nil, ErrBufferTooSmall
	}
	args := make([]byte, argsSize)
	copy(args, d.buf[d.offset:d.offset+argsSize])
	d.offset += argsSize
	return &Message{ObjectID: objectID, Opcode: opcode, Args: args}, nil
}

// EncodeMessage frames a complete message. FDs are not encoded here;
// the Conn passes them alongside via SCM_RIGHTS.
func EncodeMessage(msg *Message) ([]byte, error) {
	totalSize := headerSize + len(msg.Args)
	if totalSize > maxMessageSize {
		return nil, ErrMessageTooLarge
	}
	buf := make([]byte, totalSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(msg.ObjectID))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(totalSize)<<16|uint32(msg.Opcode))
	copy(buf[8:], msg.Args)
	return buf, nil
}

// MessageBuilder accumulates arguments (and fds) for one outgoing
// message, chaining Put* calls the way a generated protocol stub
// would.
type MessageBuilder struct {
	encoder *Encoder
	fds     []int
}

func NewMessageBuilder() *MessageBuilder { return &MessageBuilder{encoder: NewEncoder(256)} }

func (b *MessageBuilder) PutInt32(v int32) *MessageBuilder  { b.encoder.PutInt32(v); return b }
func (b *MessageBuilder) PutUint32(v uint32) *MessageBuilder { b.encoder.PutUint32(v); return b }
func (b *MessageBuilder) PutFixed(v Fixed) *MessageBuilder  { b.encoder.PutFixed(v); return b }
func (b *MessageBuilder) PutObject(id ObjectID) *MessageBuilder {
	b.encoder.PutObject(id)
	return b
}
func (b *MessageBuilder) PutNewID(id ObjectID) *MessageBuilder { b.encoder.PutNewID(id); return b }
func (b *MessageBuilder) PutString(s string) *MessageBuilder   { b.encoder.PutString(s); return b }
func (b *MessageBuilder) PutArray(data []byte) *MessageBuilder { b.encoder.PutArray(data); return b }
func (b *MessageBuilder) PutFD(fd int) *MessageBuilder {
	b.fds = append(b.fds, fd)
	return b
}

// BuildMessage finishes the message with the given header fields.
func (b *MessageBuilder) BuildMessage(objectID ObjectID, opcode Opcode) *Message {
	args := make([]byte, len(b.encoder.Bytes()))
	copy(args, b.encoder.Bytes())
	fds := make([]int, len(b.fds))
	copy(fds, b.fds)
	return &Message{ObjectID: objectID, Opcode: opcode, Args: args, FDs: fds}
}
