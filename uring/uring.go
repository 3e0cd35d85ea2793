// Copyright 2022 CloudWeGo Authors
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

// Package uring is a thin binding of the linux io_uring(7) interface:
// ring setup and mapping, submission and completion queues, the operation
// catalogue, capability probing and resource registration.
//
// A URing is not safe for concurrent use; it is meant to be driven by one goroutine.
package uring

import (
	"errors"
	"runtime"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ErrSQFull is returned by Queue when no submission entry is free.
var ErrSQFull = errors.New("uring: submission queue is full")

// IOURing create new io_uring instance with Setup Options
func IOURing(entries uint32, ops ...SetupOp) (u *URing, err error) {
	params := &ringParams{}
	for _, op := range ops {
		op(params)
	}
	fd, err := sysSetUp(entries, params)
	if err != nil {
		return nil, err
	}
	u = &URing{params: params, fd: fd, sqRing: &uringSQ{}, cqRing: &uringCQ{}}
	if err = u.sysMmap(params); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	return u, nil
}

// Fd will return fd of URing
func (u *URing) Fd() int {
	return u.fd
}

// Features returns the IORING_FEAT_* flags reported by the kernel at setup.
func (u *URing) Features() uint32 {
	return u.params.features
}

// Flags returns the IORING_SETUP_* flags the ring was created with.
func (u *URing) Flags() uint32 {
	return u.params.flags
}

// SQEntries returns the size of the submission queue.
func (u *URing) SQEntries() uint32 {
	return u.params.sqEntries
}

// CQEntries returns the size of the completion queue.
func (u *URing) CQEntries() uint32 {
	return u.params.cqEntries
}

// NextSQE returns the next free submission entry, or nil when the SQ is full.
// The entry becomes visible to the kernel at the next Submit.
func (u *URing) NextSQE() *URingSQE {
	return u.nextSQE()
}

// Queue add an operation to SQ queue
func (u *URing) Queue(op Op, flags uint8, userData uint64) error {
	sqe := u.nextSQE()
	if sqe == nil {
		return ErrSQFull
	}
	op.Prep(sqe)
	sqe.SetFlags(sqe.Flags | flags)
	sqe.SetUserData(userData)
	return nil
}

// Probe implements URing, it returns io_uring probe
func (u *URing) Probe() (*Probe, error) {
	probe := &Probe{}
	err := sysRegister(u.fd, IORING_REGISTER_PROBE, unsafe.Pointer(probe), len(probe.ops))
	if err != nil {
		return nil, err
	}
	return probe, nil
}

// Advance implements URing, it must be called after PeekBatchCQE()
func (u *URing) Advance(nr uint32) {
	if nr != 0 {
		// Ensure that the kernel only sees the new value of the head
		// index after the CQEs have been read.
		storeRelease(u.cqRing.kHead, *u.cqRing.kHead+nr)
	}
}

// Close implements URing, it unmaps the rings and closes the ring fd.
func (u *URing) Close() error {
	err := u.sysMunmap()
	if u.fd >= 0 {
		if cerr := unix.Close(u.fd); err == nil {
			err = cerr
		}
		u.fd = -1
	}
	return err
}

// ------------------------------------------ implement submission ------------------------------------------

// Submit will return the number of SQEs submitted.
func (u *URing) Submit() (uint, error) {
	return u.submitAndWait(0)
}

// SubmitAndWait is the same as Submit(), but takes an additional parameter
// nr that lets you specify how many completions to wait for.
// This call will block until nr submission requests are processed by the kernel
// and their details placed in the CQ.
func (u *URing) SubmitAndWait(nr uint32) (uint, error) {
	return u.submitAndWait(nr)
}

// ------------------------------------------ implement completion ------------------------------------------

// WaitCQE implements URing, it returns an I/O CQE, waiting for it if necessary
func (u *URing) WaitCQE() (cqe *URingCQE, err error) {
	return u.WaitCQENr(1)
}

// WaitCQENr implements URing, it returns an I/O CQE, waiting for nr completions if one isn't readily available
func (u *URing) WaitCQENr(nr uint32) (cqe *URingCQE, err error) {
	return u.getCQE(getData{
		waitNr: nr,
		sz:     NSIG / 8,
	})
}

// WaitCQETimeout implements URing, it waits at most timeout for one completion
// and returns ETIME when none arrived.
// Without IORING_FEAT_EXT_ARG a timeout SQE is used internally, tagged with LIBURING_UDATA_TIMEOUT.
func (u *URing) WaitCQETimeout(timeout time.Duration) (*URingCQE, error) {
	if u.params.features&IORING_FEAT_EXT_ARG != 0 {
		ts := unix.NsecToTimespec(timeout.Nanoseconds())
		arg := &getEventsArg{sigMaskSz: NSIG / 8, ts: uint64(uintptr(unsafe.Pointer(&ts)))}
		cqe, err := u.getCQE(getData{
			waitNr:   1,
			getFlags: IORING_ENTER_EXT_ARG,
			arg:      unsafe.Pointer(arg),
			sz:       int(_sizeEventsArg),
			hasTS:    true,
		})
		runtime.KeepAlive(arg)
		runtime.KeepAlive(&ts)
		return cqe, err
	}
	toSubmit, err := u.submitTimeout(timeout)
	if err != nil {
		return nil, err
	}
	return u.getCQE(getData{
		submit: toSubmit,
		waitNr: 1,
		sz:     NSIG / 8,
	})
}

// PeekBatchCQE implements URing, it fills in an array of I/O CQE up to count,
// if they are available, returning the count of completions filled.
// Does not wait for completions. They have to be already available for them to be returned by this function.
func (u *URing) PeekBatchCQE(cqes []*URingCQE) int {
	n := u.peekBatchCQE(cqes)
	if n == 0 && u.cqRingNeedFlush() {
		_, _ = sysEnter(u.fd, 0, 0, IORING_ENTER_GETEVENTS, nil, NSIG/8)
		n = u.peekBatchCQE(cqes)
	}
	return n
}

// CQESeen implements URing, it must be called after WaitCQE()
// and after the cqe has been processed by the application.
func (u *URing) CQESeen() {
	u.Advance(1)
}
