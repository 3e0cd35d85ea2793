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

package uring

import (
	"syscall"
	"time"
	"unsafe"
)

// LIBURING_UDATA_TIMEOUT tags the internal timeout of WaitCQETimeout on kernels without EXT_ARG.
const LIBURING_UDATA_TIMEOUT = ^uint64(0)

type getData struct {
	submit   uint32
	waitNr   uint32
	getFlags uint32
	sz       int
	arg      unsafe.Pointer
	hasTS    bool
}

// getCQE implements URing
func (u *URing) getCQE(data getData) (cqe *URingCQE, err error) {
	var looped bool
	for {
		var needEnter bool
		var flags, nrAvail uint32

		nrAvail, cqe, err = u.peekCQE()
		if err != nil {
			break
		}
		if cqe == nil && data.waitNr == 0 && data.submit == 0 {
			// If we already looped once, we already entered
			// the kernel. Since there's nothing to submit or
			// wait for, don't keep retrying.
			if looped || !u.cqRingNeedEnter() {
				err = syscall.EAGAIN
				break
			}
			needEnter = true
		}
		if data.waitNr > nrAvail || needEnter {
			flags = IORING_ENTER_GETEVENTS | data.getFlags
			needEnter = true
		}
		if u.sqRingNeedEnter(data.submit, &flags) {
			needEnter = true
		}
		if !needEnter {
			break
		}
		if looped && data.hasTS {
			if cqe == nil {
				err = syscall.ETIME
			}
			break
		}

		var ret uint
		ret, err = sysEnter(u.fd, data.submit, data.waitNr, flags, data.arg, data.sz)
		if err != nil {
			break
		}
		data.submit -= uint32(ret)
		if cqe != nil {
			break
		}
		looped = true
	}
	return cqe, err
}

// submitTimeout queues the internal timeout entry and flushes the SQ.
func (u *URing) submitTimeout(timeout time.Duration) (uint32, error) {
	sqe := u.nextSQE()
	if sqe == nil {
		if _, err := u.Submit(); err != nil {
			return 0, err
		}
		if sqe = u.nextSQE(); sqe == nil {
			return 0, syscall.EAGAIN
		}
	}
	u.timeout = Timeout(timeout, 1, 0)
	u.timeout.Prep(sqe)
	sqe.SetUserData(LIBURING_UDATA_TIMEOUT)
	return u.flushSQ(), nil
}

// cqeAt returns the entry at ring position pos.
func (u *URing) cqeAt(pos uint32) *URingCQE {
	cq := u.cqRing
	return (*URingCQE)(unsafe.Add(cq.cqes, uintptr((pos&*cq.kRingMask)<<cq.cqeShift)*_sizeCQE))
}

// peekCQE implements URing, internal timeout completions are consumed here.
func (u *URing) peekCQE() (avail uint32, cqe *URingCQE, err error) {
	for {
		tail := loadAcquire(u.cqRing.kTail)
		head := *u.cqRing.kHead

		cqe = nil
		avail = tail - head
		if avail == 0 {
			break
		}
		cqe = u.cqeAt(head)
		if u.params.features&IORING_FEAT_EXT_ARG == 0 && cqe.UserData == LIBURING_UDATA_TIMEOUT {
			err = cqe.Error()
			u.Advance(1)
			if err == nil {
				continue
			}
			cqe = nil
		}
		break
	}
	return avail, cqe, err
}

// peekBatchCQE implements URing
func (u *URing) peekBatchCQE(cqes []*URingCQE) int {
	ready := u.cqRing.ready()
	count := uint32(len(cqes))
	if ready < count {
		count = ready
	}
	head := *u.cqRing.kHead
	for i := uint32(0); i < count; i++ {
		cqes[i] = u.cqeAt(head + i)
	}
	return int(count)
}

// ready implements URing
func (c *uringCQ) ready() uint32 {
	return loadAcquire(c.kTail) - *c.kHead
}
