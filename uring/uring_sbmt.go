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
	"sync/atomic"
	"unsafe"
)

// URing means I/O Userspace Ring
type URing struct {
	cqRing *uringCQ
	sqRing *uringSQ

	fd     int
	params *ringParams

	// keeps the internal timeout alive while the kernel reads it
	timeout *TimeoutOp
}

// uringSQ means Submit Queue
type uringSQ struct {
	buff    []byte
	sqeBuff []byte

	kHead        *uint32
	kTail        *uint32
	kRingMask    *uint32
	kRingEntries *uint32
	kFlags       *uint32
	kDropped     *uint32
	array        *uint32

	sqeHead  uint32
	sqeTail  uint32
	sqeShift uint32

	ringSize uint64
}

// uringCQ means Completion Queue
type uringCQ struct {
	buff   []byte
	kFlags *uint32

	kHead        *uint32
	kTail        *uint32
	kRingMask    *uint32
	kRingEntries *uint32
	kOverflow    *uint32
	cqes         unsafe.Pointer
	cqeShift     uint32

	ringSize uint64
}

func loadAcquire(p *uint32) uint32 {
	return atomic.LoadUint32(p)
}

func storeRelease(p *uint32, v uint32) {
	atomic.StoreUint32(p, v)
}

// submitAndWait implements URing
func (u *URing) submitAndWait(nr uint32) (uint, error) {
	return u.submit(u.flushSQ(), nr)
}

// submit implements URing
func (u *URing) submit(submitted uint32, nr uint32) (uint, error) {
	var flags uint32
	needEnter := u.sqRingNeedEnter(submitted, &flags)
	if nr > 0 || u.params.flags&IORING_SETUP_IOPOLL != 0 || u.cqRingNeedFlush() {
		flags |= IORING_ENTER_GETEVENTS
		needEnter = true
	}
	if !needEnter {
		return uint(submitted), nil
	}
	return sysEnter(u.fd, submitted, nr, flags, nil, NSIG/8)
}

// flushSQ publishes the locally queued entries and returns the number the kernel has not consumed yet.
func (u *URing) flushSQ() uint32 {
	sq := u.sqRing
	mask := *sq.kRingMask
	tail := *sq.kTail
	for ; sq.sqeHead != sq.sqeTail; sq.sqeHead++ {
		*(*uint32)(unsafe.Add(unsafe.Pointer(sq.array), uintptr(tail&mask)*_sizeU32)) = sq.sqeHead & mask
		tail++
	}
	storeRelease(sq.kTail, tail)
	return tail - loadAcquire(sq.kHead)
}

// nextSQE implements URing
func (u *URing) nextSQE() *URingSQE {
	sq := u.sqRing
	head := loadAcquire(sq.kHead)
	next := sq.sqeTail + 1
	if next-head > *sq.kRingEntries {
		return nil
	}
	idx := uintptr((sq.sqeTail&*sq.kRingMask)<<sq.sqeShift) * _sizeSQE
	sqe := (*URingSQE)(unsafe.Pointer(&sq.sqeBuff[idx]))
	sq.sqeTail = next
	return sqe
}

// sqRingNeedEnter implements URing
func (u *URing) sqRingNeedEnter(submitted uint32, flags *uint32) bool {
	if submitted == 0 {
		return false
	}
	if u.params.flags&IORING_SETUP_SQPOLL == 0 {
		return true
	}
	if loadAcquire(u.sqRing.kFlags)&IORING_SQ_NEED_WAKEUP != 0 {
		*flags |= IORING_ENTER_SQ_WAKEUP
		return true
	}
	return false
}

// cqRingNeedFlush implements URing
func (u *URing) cqRingNeedFlush() bool {
	return loadAcquire(u.sqRing.kFlags)&(IORING_SQ_CQ_OVERFLOW|IORING_SQ_TASKRUN) != 0
}

// cqRingNeedEnter implements URing
func (u *URing) cqRingNeedEnter() bool {
	return u.params.flags&IORING_SETUP_IOPOLL != 0 || u.cqRingNeedFlush()
}
