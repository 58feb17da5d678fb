package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFixedRoundTrip(t *testing.T) {
	cases := []float64{0, 42, -42, 3.5, -3.5, 0.125}
	for _, f := range cases {
		got := FixedFromFloat(f).Float()
		require.InDelta(t, f, got, 0.004)
	}
}

func TestFixedFromIntRoundTrip(t *testing.T) {
	cases := []int32{0, 42, -42, 8388607, -8388608}
	for _, i := range cases {
		require.Equal(t, i, FixedFromInt(i).Int())
	}
}

func TestEncodeDecodeMessageRoundTrip(t *testing.T) {
	builder := NewMessageBuilder()
	builder.PutInt32(-7).PutUint32(42).PutString("hello").PutArray([]byte{1, 2, 3})
	msg := builder.BuildMessage(3, 5)

	encoded, err := EncodeMessage(msg)
	require.NoError(t, err)

	dec := NewDecoder(encoded)
	objID, opcode, size, err := dec.DecodeHeader()
	require.NoError(t, err)
	require.Equal(t, ObjectID(3), objID)
	require.Equal(t, Opcode(5), opcode)
	require.Equal(t, len(encoded), size)

	i32, err := dec.Int32()
	require.NoError(t, err)
	require.Equal(t, int32(-7), i32)

	u32, err := dec.Uint32()
	require.NoError(t, err)
	require.Equal(t, uint32(42), u32)

	s, err := dec.String()
	require.NoError(t, err)
	require.Equal(t, "hello", s)

	arr, err := dec.Array()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, arr)

	require.False(t, dec.HasMore())
}

func TestDecodeMessageSplitsArgsFromHeader(t *testing.T) {
	builder := NewMessageBuilder()
	builder.PutUint32(99)
	msg := builder.BuildMessage(1, 0)
	encoded, err := EncodeMessage(msg)
	require.NoError(t, err)

	dec := NewDecoder(encoded)
	decoded, err := dec.DecodeMessage()
	require.NoError(t, err)
	require.Equal(t, ObjectID(1), decoded.ObjectID)
	require.Equal(t, Opcode(0), decoded.Opcode)
	require.Len(t, decoded.Args, 4)
}

func TestDecoderRejectsTruncatedHeader(t *testing.T) {
	dec := NewDecoder([]byte{1, 2, 3})
	_, _, _, err := dec.DecodeHeader()
	require.ErrorIs(t, err, ErrMessageTooSmall)
}

func TestDecoderStringRequiresNullTerminator(t *testing.T) {
	enc := NewEncoder(16)
	enc.PutUint32(4)
	enc.buf = append(enc.buf, 'a', 'b', 'c', 'x') // not null-terminated
	dec := NewDecoder(enc.Bytes())
	_, err := dec.String()
	require.ErrorIs(t, err, ErrStringNotTerminated)
}

func TestDecoderFDExhaustion(t *testing.T) {
	dec := NewDecoder(nil)
	dec.fds = []int{5}
	fd, err := dec.FD()
	require.NoError(t, err)
	require.Equal(t, 5, fd)

	_, err = dec.FD()
	require.ErrorIs(t, err, ErrNoMoreFDs)
}

func TestMessageSize(t *testing.T) {
	msg := &Message{Args: make([]byte, 12)}
	require.Equal(t, 20, msg.Size())
}
