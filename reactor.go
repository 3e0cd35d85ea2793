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
	"context"
	"errors"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/cloudwego/uringloop/internal/runner"
	"github.com/cloudwego/uringloop/uring"
)

const defaultEntries = 128

// Reactor owns one io_uring instance. It turns operations into submission
// entries and completions into resumed tasks.
//
// A Reactor is reference counted: the application holds one reference,
// every open handle and every running Task holds another. The ring is torn
// down when the last one is released.
type Reactor struct {
	ring      ring
	supported OpSet
	features  Feature

	cqes     []*uring.URingCQE
	cqeCount uint32 // drained but not yet acknowledged
	slab     opSlab
	inflight int // entries queued or in the kernel, fire-and-forget closes included

	current  *coroutine
	draining bool
	tasks    int

	refs     int
	released bool // the application reference is gone
	closed   bool
	deferred bool // teardown requested while draining
	closeErr error

	orphans orphanList

	onDetachedError func(error)
}

// New creates a Reactor with a ring of at least entries submission entries,
// 128 when entries is 0. The kernel capabilities are probed once, here.
func New(entries uint32, ops ...Option) (*Reactor, error) {
	if entries == 0 {
		entries = defaultEntries
	}
	opts := newOptions(ops)
	u, err := uring.IOURing(entries, opts.setupOps()...)
	if err != nil {
		return nil, err
	}
	r, err := newReactor(u, opts)
	if err != nil {
		_ = u.Close()
		return nil, err
	}
	return r, nil
}

func newReactor(rg ring, opts *options) (*Reactor, error) {
	probe, err := rg.Probe()
	if err != nil {
		return nil, err
	}
	r := &Reactor{
		ring:            rg,
		features:        Feature(rg.Features()),
		cqes:            make([]*uring.URingCQE, rg.CQEntries()),
		slab:            newOpSlab(),
		refs:            1,
		onDetachedError: opts.onDetachedError,
	}
	for op := 0; op <= int(probe.LastOp()); op++ {
		if probe.Supported(uint8(op)) {
			r.supported.set(uint8(op))
		}
	}
	return r, nil
}

// Fd returns the ring fd, see WithAttachWQ.
func (r *Reactor) Fd() int {
	return r.ring.Fd()
}

// Supported reports whether the running kernel implements opcode op.
func (r *Reactor) Supported(op uint8) bool {
	return r.supported.Has(op)
}

// Features returns the optional ring features reported at setup.
func (r *Reactor) Features() Feature {
	return r.features
}

// Inflight returns the number of operations queued or in the kernel.
func (r *Reactor) Inflight() int {
	return r.inflight
}

// Close drops the application reference. The ring stays alive until every
// handle has been closed or released and every task has finished.
// It is safe to call Close multiple times.
func (r *Reactor) Close() error {
	if r.released {
		return nil
	}
	r.released = true
	if !r.closed && !r.draining && r.current == nil {
		r.reapOrphans()
	}
	r.release()
	return r.closeErr
}

func (r *Reactor) acquire() {
	r.refs++
}

func (r *Reactor) release() {
	r.refs--
	if r.refs > 0 || r.closed {
		return
	}
	if r.draining {
		r.deferred = true
		return
	}
	r.teardown()
}

// teardown closes the ring. Whatever is still in flight is abandoned to the kernel,
// the memory it references is kept reachable for the rest of the process.
func (r *Reactor) teardown() {
	r.closed = true
	for _, fd := range r.orphans.take() {
		_ = unix.Close(fd)
	}
	if r.inflight > 0 {
		_, _ = r.ring.Submit()
	}
	if ops := r.slab.ops(); len(ops) > 0 {
		logger.Printf("URINGLOOP: reactor closed with %d operations in flight", len(ops))
		abandon(ops)
	}
	r.closeErr = r.ring.Close()
}

// getSQE returns a free submission entry. When the SQ is full it acknowledges
// the completions drained so far, pushes the queued entries to the kernel and
// tries once more.
func (r *Reactor) getSQE() (*uring.URingSQE, error) {
	if sqe := r.ring.NextSQE(); sqe != nil {
		return sqe, nil
	}
	r.ring.Advance(r.cqeCount)
	r.cqeCount = 0
	if _, err := r.submit(false); err != nil && !isBusy(err) {
		return nil, err
	}
	if sqe := r.ring.NextSQE(); sqe != nil {
		return sqe, nil
	}
	return nil, Exception(ErrSQExhausted, "")
}

// queue fills one submission entry for op. Failures are carried by the returned Op.
func (r *Reactor) queue(op uring.Op, flags uint8) *Op {
	o := &Op{r: r, op: op}
	if r.closed {
		o.fail(Exception(ErrReactorClosed, ""))
		return o
	}
	if code := op.Code(); !r.supported.Has(code) {
		o.fail(Exception(ErrUnsupported, uring.OpName(code)))
		return o
	}
	sqe, err := r.getSQE()
	if err != nil {
		o.fail(err)
		return o
	}
	op.Prep(sqe)
	sqe.SetFlags(flags &^ uring.IOSQE_CQE_SKIP_SUCCESS)
	o.tag = r.slab.put(o)
	sqe.SetUserData(o.tag)
	r.inflight++
	return o
}

// closeDetach queues a close nobody waits for. Its completion carries tag 0
// and is dropped by the drain.
func (r *Reactor) closeDetach(fd int) {
	if r.closed || !r.supported.Has(uring.IORING_OP_CLOSE) {
		_ = unix.Close(fd)
		return
	}
	sqe, err := r.getSQE()
	if err != nil {
		_ = unix.Close(fd)
		return
	}
	uring.Close(fd).Prep(sqe)
	sqe.SetUserData(0)
	r.inflight++
}

// Poll submits the queued entries, blocks until at least one completion is
// available and resumes the tasks waiting on the drained completions.
// It returns the number of completions drained.
func (r *Reactor) Poll() (int, error) {
	return r.poll(true)
}

// PollNoWait is Poll without blocking, it may drain nothing.
func (r *Reactor) PollNoWait() (int, error) {
	return r.poll(false)
}

func (r *Reactor) poll(wait bool) (int, error) {
	if r.draining || r.current != nil {
		return 0, Exception(ErrReentrantPoll, "")
	}
	if r.closed {
		return 0, Exception(ErrReactorClosed, "")
	}
	r.reapOrphans()
	if wait && r.inflight == 0 {
		return 0, Exception(ErrNothingInflight, "")
	}
	if _, err := r.submit(wait); err != nil && !isBusy(err) {
		return 0, err
	}
	return r.drain(), nil
}

// submit pushes the queued entries, an interrupted wait is restarted.
func (r *Reactor) submit(wait bool) (n uint, err error) {
	for {
		if wait {
			n, err = r.ring.SubmitAndWait(1)
		} else {
			n, err = r.ring.Submit()
		}
		if !errors.Is(err, syscall.EINTR) {
			return n, err
		}
	}
}

// drain processes every completion visible right now, in ring order,
// and acknowledges them in one batch at the end.
func (r *Reactor) drain() int {
	r.draining = true
	defer r.drained()
	n := r.ring.PeekBatchCQE(r.cqes)
	for i := 0; i < n; i++ {
		tag, res := r.cqes[i].UserData, r.cqes[i].Res
		r.cqes[i] = nil
		r.cqeCount++
		r.inflight--
		if tag == 0 {
			continue
		}
		op := r.slab.take(tag)
		if op == nil {
			logger.Printf("URINGLOOP: completion with unknown tag %#x dropped, res=%d", tag, res)
			continue
		}
		op.complete(res)
		if co := op.co; co != nil {
			op.co = nil
			r.resume(co)
		}
	}
	return n
}

// drained acknowledges the processed completions, also when a resumed task panicked.
func (r *Reactor) drained() {
	r.ring.Advance(r.cqeCount)
	r.cqeCount = 0
	r.draining = false
	if r.deferred {
		r.deferred = false
		r.teardown()
	}
}

// Run polls until nothing is in flight or ctx is done. Cancellation is noticed
// through an eventfd polled on the ring, so a blocked Run wakes up immediately.
func (r *Reactor) Run(ctx context.Context) error {
	var wake *Op
	if ctx.Done() != nil {
		efd, err := unix.Eventfd(0, unix.EFD_CLOEXEC)
		if err != nil {
			return err
		}
		defer unix.Close(efd)
		wake = r.queue(uring.PollAdd(efd, unix.POLLIN), 0)
		if err := wake.Err(); err != nil {
			return err
		}
		stop := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
			case <-stop:
			}
			var one [8]byte
			one[0] = 1
			_, _ = unix.Write(efd, one[:])
		}()
		defer func() {
			close(stop)
			_, _ = wake.Await()
		}()
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.inflight == 0 || (wake != nil && r.inflight == 1 && !wake.Done()) {
			return nil
		}
		if _, err := r.Poll(); err != nil {
			return err
		}
	}
}

// reapOrphans closes the descriptors of handles that were collected without being closed.
func (r *Reactor) reapOrphans() {
	for _, fd := range r.orphans.take() {
		logger.Printf("URINGLOOP: fd %d was garbage collected without Close", fd)
		r.closeDetach(fd)
		r.release()
	}
}

func isBusy(err error) bool {
	return errors.Is(err, syscall.EBUSY) || errors.Is(err, syscall.EAGAIN)
}

// orphanList collects descriptors from finalizers, which run on their own goroutine.
type orphanList struct {
	mu  sync.Mutex
	fds []int
}

func (l *orphanList) push(fd int) {
	l.mu.Lock()
	l.fds = append(l.fds, fd)
	l.mu.Unlock()
}

func (l *orphanList) take() []int {
	l.mu.Lock()
	fds := l.fds
	l.fds = nil
	l.mu.Unlock()
	return fds
}

var abandoned struct {
	sync.Mutex
	ops []*Op
}

func abandon(ops []*Op) {
	abandoned.Lock()
	abandoned.ops = append(abandoned.ops, ops...)
	abandoned.Unlock()
}

// reportDetached hands the error of a detached task to the hook, outside of the reactor.
func (r *Reactor) reportDetached(err error) {
	if err == nil || r.onDetachedError == nil {
		return
	}
	hook := r.onDetachedError
	runner.RunTask(context.Background(), func() {
		hook(err)
	})
}
