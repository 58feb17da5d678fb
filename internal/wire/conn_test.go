//go:build linux

package wire

import (
	"net"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func socketpairConns(t *testing.T) (*Conn, *Conn) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)

	fileA := os.NewFile(uintptr(fds[0]), "a")
	fileB := os.NewFile(uintptr(fds[1]), "b")

	connA, err := net.FileConn(fileA)
	require.NoError(t, err)
	fileA.Close()
	connB, err := net.FileConn(fileB)
	require.NoError(t, err)
	fileB.Close()

	a, err := NewConn(connA)
	require.NoError(t, err)
	b, err := NewConn(connB)
	require.NoError(t, err)

	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return a, b
}

func TestConnSendRecvRoundTrip(t *testing.T) {
	a, b := socketpairConns(t)

	builder := NewMessageBuilder()
	builder.PutUint32(123)
	msg := builder.BuildMessage(7, 2)

	require.NoError(t, a.Send(msg))

	got, err := b.Recv()
	require.NoError(t, err)
	require.Equal(t, ObjectID(7), got.ObjectID)
	require.Equal(t, Opcode(2), got.Opcode)

	dec := NewDecoder(got.Args)
	v, err := dec.Uint32()
	require.NoError(t, err)
	require.Equal(t, uint32(123), v)
}

func TestConnSendRecvPassesFDs(t *testing.T) {
	a, b := socketpairConns(t)

	tmp, err := os.CreateTemp(t.TempDir(), "fdtest")
	require.NoError(t, err)
	defer tmp.Close()

	builder := NewMessageBuilder()
	builder.PutFD(int(tmp.Fd()))
	msg := builder.BuildMessage(1, 0)

	require.NoError(t, a.Send(msg))

	got, err := b.Recv()
	require.NoError(t, err)
	require.Len(t, got.FDs, 1)
	require.NotEqual(t, -1, got.FDs[0])
	unix.Close(got.FDs[0])
}

func TestConnCloseIsIdempotentAndRejectsSend(t *testing.T) {
	a, _ := socketpairConns(t)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	err := a.Send(NewMessageBuilder().BuildMessage(1, 0))
	require.ErrorIs(t, err, ErrConnClosed)
}
