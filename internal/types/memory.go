package types

import (
	"fmt"
	"syscall"
)

// MemoryPool is a handle to a shared-memory region imported from a
// client file descriptor (§3 Memory pool / memory view). A pool
// outlives all its views; destroying it invalidates every view.
type MemoryPool struct {
	ID   MemoryPoolID
	data []byte
	fd   int
}

// MapMemoryPool mmaps the given fd read-write for size bytes, the
// same shared-memory-import pattern the Wayland wl_shm protocol uses
// for wl_shm_pool.
func MapMemoryPool(id MemoryPoolID, fd int, size int) (*MemoryPool, error) {
	data, err := syscall.Mmap(fd, 0, size, syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap pool fd %d (%d bytes): %w", fd, size, err)
	}
	return &MemoryPool{ID: id, data: data, fd: fd}, nil
}

// Close unmaps the pool and closes its backing fd. Invalid to call
// while any view into this pool is still referenced.
func (p *MemoryPool) Close() error {
	if p.data != nil {
		if err := syscall.Munmap(p.data); err != nil {
			return fmt.Errorf("munmap pool: %w", err)
		}
		p.data = nil
	}
	return syscall.Close(p.fd)
}

// Bytes returns the pool's backing memory.
func (p *MemoryPool) Bytes() []byte { return p.data }

// MemoryView is a rectangular window (offset, width, height, stride)
// into one pool (§3 Memory pool / memory view).
type MemoryView struct {
	ID     MemoryViewID
	Pool   MemoryPoolID
	Offset int
	Width  int
	Height int
	Stride int
}

// Pixels returns the view's backing bytes, sliced from the pool. The
// pool must still be mapped; callers are expected to check pool
// liveness through the coordinator before calling this (a destroyed
// pool invalidates all of its views per §3).
func (v *MemoryView) Pixels(pool *MemoryPool) ([]byte, error) {
	size := v.Stride * v.Height
	if v.Offset+size > len(pool.data) {
		return nil, fmt.Errorf("view %d out of bounds: offset=%d size=%d pool=%d bytes", v.ID, v.Offset, size, len(pool.data))
	}
	return pool.data[v.Offset : v.Offset+size], nil
}

// DupFD duplicates a raw client-supplied fd so the pool can outlive
// the wire message that carried it (the kernel closes the original
// once the recvmsg buffer holding its SCM_RIGHTS control message is
// reused).
func DupFD(fd int) (int, error) {
	nfd, err := syscall.Dup(fd)
	if err != nil {
		return -1, fmt.Errorf("dup fd %d: %w", fd, err)
	}
	// Ensure it isn't inherited by children the compositor may spawn.
	syscall.CloseOnExec(nfd)
	return nfd, nil
}
