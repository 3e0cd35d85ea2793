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
	"errors"
	"math/rand"
	"syscall"

	"github.com/cloudwego/uringloop/uring"
)

type completionOrder int

const (
	fifo completionOrder = iota
	reverse
	shuffle
)

var errWouldBlock = errors.New("fake ring: wait would block forever")

// fakeRing is an in-memory ring. Submitted entries complete at submit time
// unless hold is set, as long as the completion queue has room.
type fakeRing struct {
	sqCap  int // free submission entries
	cqCap  int // unacknowledged plus in-kernel completions, 0 is unbounded
	order  completionOrder
	hold   bool
	result func(sqe *uring.URingSQE) int32
	rnd    *rand.Rand

	probe    *uring.Probe
	features uint32

	queued    []*uring.URingSQE
	inKernel  []uring.URingSQE
	cq        []*uring.URingCQE
	submitted []uring.URingSQE // every entry handed to the kernel
	completed []uint64         // user data in completion order
	nextCalls int
	closed    bool
	files     []int32
	buffers   int
}

func newFakeRing(sqCap, cqCap int) *fakeRing {
	ops := make([]uint8, 0, uring.IORING_OP_LAST)
	for op := uint8(0); op < uring.IORING_OP_LAST; op++ {
		ops = append(ops, op)
	}
	return &fakeRing{
		sqCap: sqCap,
		cqCap: cqCap,
		rnd:   rand.New(rand.NewSource(1)),
		probe: uring.NewProbe(ops...),
	}
}

// without removes opcodes from the probe.
func (f *fakeRing) without(skip ...uint8) *fakeRing {
	var ops []uint8
	for op := uint8(0); op < uring.IORING_OP_LAST; op++ {
		supported := true
		for _, s := range skip {
			if s == op {
				supported = false
			}
		}
		if supported {
			ops = append(ops, op)
		}
	}
	f.probe = uring.NewProbe(ops...)
	return f
}

func (f *fakeRing) NextSQE() *uring.URingSQE {
	f.nextCalls++
	if len(f.queued) >= f.sqCap {
		return nil
	}
	sqe := &uring.URingSQE{}
	f.queued = append(f.queued, sqe)
	return sqe
}

func (f *fakeRing) Submit() (uint, error) {
	if len(f.queued) > 0 && f.cqCap > 0 && len(f.cq)+len(f.inKernel) >= f.cqCap {
		return 0, syscall.EBUSY
	}
	n := len(f.queued)
	for _, sqe := range f.queued {
		f.inKernel = append(f.inKernel, *sqe)
		f.submitted = append(f.submitted, *sqe)
	}
	f.queued = f.queued[:0]
	if !f.hold {
		f.complete(len(f.inKernel))
	}
	return uint(n), nil
}

func (f *fakeRing) SubmitAndWait(nr uint32) (uint, error) {
	n, err := f.Submit()
	if err != nil {
		return n, err
	}
	if len(f.cq) < int(nr) {
		return n, errWouldBlock
	}
	return n, nil
}

// complete moves up to n in-kernel entries to the completion queue.
func (f *fakeRing) complete(n int) int {
	if n > len(f.inKernel) {
		n = len(f.inKernel)
	}
	batch := make([]uring.URingSQE, n)
	copy(batch, f.inKernel[:n])
	f.inKernel = append(f.inKernel[:0], f.inKernel[n:]...)
	switch f.order {
	case reverse:
		for i, j := 0, len(batch)-1; i < j; i, j = i+1, j-1 {
			batch[i], batch[j] = batch[j], batch[i]
		}
	case shuffle:
		f.rnd.Shuffle(len(batch), func(i, j int) { batch[i], batch[j] = batch[j], batch[i] })
	}
	for i := range batch {
		var res int32
		if f.result != nil {
			res = f.result(&batch[i])
		}
		f.cq = append(f.cq, &uring.URingCQE{UserData: batch[i].UserData, Res: res})
		f.completed = append(f.completed, batch[i].UserData)
	}
	return n
}

func (f *fakeRing) PeekBatchCQE(cqes []*uring.URingCQE) int {
	return copy(cqes, f.cq)
}

func (f *fakeRing) Advance(nr uint32) {
	f.cq = f.cq[nr:]
}

func (f *fakeRing) Probe() (*uring.Probe, error) { return f.probe, nil }
func (f *fakeRing) Features() uint32             { return f.features }
func (f *fakeRing) CQEntries() uint32            { return 64 }
func (f *fakeRing) Fd() int                      { return -1 }

func (f *fakeRing) Close() error {
	f.closed = true
	return nil
}

func (f *fakeRing) RegisterFiles(fds []int32) error {
	f.files = append([]int32(nil), fds...)
	return nil
}

func (f *fakeRing) UnRegisterFiles() error {
	f.files = nil
	return nil
}

func (f *fakeRing) UpdateFiles(offset uint32, fds []int32) error {
	if int(offset)+len(fds) > len(f.files) {
		return syscall.EINVAL
	}
	copy(f.files[offset:], fds)
	return nil
}

func (f *fakeRing) RegisterBuffers(buffers []syscall.Iovec) error {
	f.buffers = len(buffers)
	return nil
}

func (f *fakeRing) UnRegisterBuffers() error {
	f.buffers = 0
	return nil
}

// count returns how many submitted entries carry opcode.
func (f *fakeRing) count(opcode uint8) (n int) {
	for i := range f.submitted {
		if f.submitted[i].OpCode == opcode {
			n++
		}
	}
	return n
}

func newFakeReactor(f *fakeRing, ops ...Option) *Reactor {
	r, err := newReactor(f, newOptions(ops))
	if err != nil {
		panic(err)
	}
	return r
}
