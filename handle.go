// Copyright 2025 CloudWeGo Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build linux

package uringloop

import (
	"runtime"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/cloudwego/uringloop/uring"
)

// Descriptor is anything backed by one file descriptor.
type Descriptor interface {
	Fd() int
}

// fdHandle exclusively owns one descriptor and holds a reference on its Reactor.
// fd is -1 once the descriptor has been closed, released or moved away.
//
// A handle dropped while still open is closed by its finalizer: the fd is
// handed to the reactor and closed fire-and-forget at the next Poll.
type fdHandle struct {
	r        *Reactor
	fd       int
	borrowed bool // never closed, holds no reference
}

func newFDHandle(r *Reactor, fd int) *fdHandle {
	h := &fdHandle{r: r, fd: fd}
	r.acquire()
	runtime.SetFinalizer(h, (*fdHandle).finalize)
	return h
}

func (h *fdHandle) finalize() {
	if h.fd >= 0 {
		h.r.orphans.push(h.fd)
	}
}

// Fd returns the descriptor, -1 once closed.
func (h *fdHandle) Fd() int {
	return h.fd
}

// Reactor returns the reactor serving this handle.
func (h *fdHandle) Reactor() *Reactor {
	return h.r
}

// Close closes the descriptor through the ring and waits for it.
// Closing a closed handle does nothing.
func (h *fdHandle) Close() error {
	if h.fd < 0 || h.borrowed {
		return nil
	}
	fd := h.fd
	h.detach()
	defer h.r.release()
	op := h.r.queue(uring.Close(fd), 0)
	if op.Err() != nil {
		return unix.Close(fd)
	}
	_, err := op.Await()
	return err
}

// Release closes the descriptor without waiting, the result is discarded.
func (h *fdHandle) Release() {
	if h.fd < 0 || h.borrowed {
		return
	}
	fd := h.fd
	h.detach()
	h.r.closeDetach(fd)
	h.r.release()
}

// detach marks the handle closed without touching the descriptor.
func (h *fdHandle) detach() {
	h.fd = -1
	runtime.SetFinalizer(h, nil)
}

// move transfers the descriptor and the reactor reference to a new handle.
func (h *fdHandle) move() *fdHandle {
	if h.borrowed {
		return h
	}
	n := &fdHandle{r: h.r, fd: h.fd}
	if h.fd >= 0 {
		h.detach()
		runtime.SetFinalizer(n, (*fdHandle).finalize)
	}
	return n
}

// do queues op and awaits it while the handle and every descriptor in also are kept reachable.
func (h *fdHandle) do(op uring.Op, also ...Descriptor) (int, error) {
	n, err := h.r.queue(op, 0).Await()
	runtime.KeepAlive(h)
	for _, d := range also {
		runtime.KeepAlive(d)
	}
	return n, err
}

// ioHandle carries the byte stream operations shared by files, sockets and pipes.
// A negative offset reads or writes at the file cursor.
type ioHandle struct {
	*fdHandle
}

// Read reads into buf at off.
func (h ioHandle) Read(buf []byte, off int64) (int, error) {
	return h.do(uring.Read(h.fd, buf, off))
}

// Write writes buf at off.
func (h ioHandle) Write(buf []byte, off int64) (int, error) {
	return h.do(uring.Write(h.fd, buf, off))
}

// Readv reads into bufs at off.
func (h ioHandle) Readv(bufs [][]byte, off int64) (int, error) {
	return h.do(uring.ReadV(h.fd, bufs, off))
}

// Writev writes bufs at off.
func (h ioHandle) Writev(bufs [][]byte, off int64) (int, error) {
	return h.do(uring.WriteV(h.fd, bufs, off))
}

// ReadFixed reads into buf, which must lie within registered buffer index.
func (h ioHandle) ReadFixed(buf []byte, off int64, index uint16) (int, error) {
	return h.do(uring.ReadFixed(h.fd, buf, off, index))
}

// WriteFixed writes buf, which must lie within registered buffer index.
func (h ioHandle) WriteFixed(buf []byte, off int64, index uint16) (int, error) {
	return h.do(uring.WriteFixed(h.fd, buf, off, index))
}

// Tee duplicates up to n bytes from this pipe to the pipe dst without consuming them.
func (h ioHandle) Tee(dst Descriptor, n uint32, flags uint32) (int, error) {
	return h.do(uring.Tee(h.fd, dst.Fd(), n, flags), dst)
}

// SpliceTo moves up to n bytes from this descriptor to dst, one side must be a pipe.
func (h ioHandle) SpliceTo(dst Descriptor, offIn, offOut int64, n uint32, flags uint32) (int, error) {
	return h.do(uring.Splice(h.fd, offIn, dst.Fd(), offOut, n, flags), dst)
}

// SpliceFrom moves up to n bytes from src to this descriptor, one side must be a pipe.
func (h ioHandle) SpliceFrom(src Descriptor, offIn, offOut int64, n uint32, flags uint32) (int, error) {
	return h.do(uring.Splice(src.Fd(), offIn, h.fd, offOut, n, flags), src)
}

func checkPath(path string) error {
	if strings.IndexByte(path, 0) >= 0 {
		return syscall.EINVAL
	}
	return nil
}
