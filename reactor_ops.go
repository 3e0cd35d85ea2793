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
	"syscall"
	"time"

	"github.com/cloudwego/uringloop/uring"
)

// Submit queues any ring operation, flags are IOSQE_* flags such as
// uring.IOSQE_IO_LINK. The operation is pushed to the kernel at the next Poll.
func (r *Reactor) Submit(op uring.Op, flags uint8) *Op {
	return r.queue(op, flags)
}

// Nop queues an operation that completes with 0.
func (r *Reactor) Nop() *Op {
	return r.queue(uring.Nop(), 0)
}

// Timeout queues a timer that completes with ETIME after d.
func (r *Reactor) Timeout(d time.Duration) *Op {
	return r.queue(uring.Timeout(d, 0, 0), 0)
}

// PollAdd queues a one shot readiness poll of fd, it completes with the ready mask.
func (r *Reactor) PollAdd(fd int, mask uint32) *Op {
	return r.queue(uring.PollAdd(fd, mask), 0)
}

// Cancel asks the kernel to cancel target. target still completes, usually with ECANCELED.
func (r *Reactor) Cancel(target *Op) *Op {
	if target.done || target.tag == 0 {
		op := &Op{r: r}
		op.fail(syscall.ENOENT)
		return op
	}
	return r.queue(uring.AsyncCancel(target.tag, 0), 0)
}

// RegisterFiles registers fds with the ring for fixed file operations.
func (r *Reactor) RegisterFiles(fds []int32) error {
	if r.closed {
		return Exception(ErrReactorClosed, "")
	}
	return r.ring.RegisterFiles(fds)
}

// UnregisterFiles drops the registered file table.
func (r *Reactor) UnregisterFiles() error {
	if r.closed {
		return Exception(ErrReactorClosed, "")
	}
	return r.ring.UnRegisterFiles()
}

// UpdateFiles replaces registered files starting at offset, -1 clears a slot.
func (r *Reactor) UpdateFiles(offset uint32, fds []int32) error {
	if r.closed {
		return Exception(ErrReactorClosed, "")
	}
	return r.ring.UpdateFiles(offset, fds)
}

// RegisterBuffers pins bufs for ReadFixed and WriteFixed, buffer i is index i.
// The caller keeps bufs alive and unmodified in size until UnregisterBuffers.
func (r *Reactor) RegisterBuffers(bufs [][]byte) error {
	if r.closed {
		return Exception(ErrReactorClosed, "")
	}
	iovs := make([]syscall.Iovec, len(bufs))
	for i, b := range bufs {
		if len(b) == 0 {
			return syscall.EINVAL
		}
		iovs[i].Base = &b[0]
		iovs[i].SetLen(len(b))
	}
	return r.ring.RegisterBuffers(iovs)
}

// UnregisterBuffers drops the registered buffers.
func (r *Reactor) UnregisterBuffers() error {
	if r.closed {
		return Exception(ErrReactorClosed, "")
	}
	return r.ring.UnRegisterBuffers()
}
