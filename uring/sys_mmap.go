// Copyright 2021 CloudWeGo Authors
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
	"unsafe"

	"golang.org/x/sys/unix"
)

// Magic offsets for the application to mmap the data it needs
const (
	IORING_OFF_SQ_RING int64 = 0
	IORING_OFF_CQ_RING int64 = 0x8000000
	IORING_OFF_SQES    int64 = 0x10000000
)

// sysMunmap releases every mapping created by sysMmap, it is safe on a partial mapping.
func (u *URing) sysMunmap() (err error) {
	if u.sqRing.sqeBuff != nil {
		err = unix.Munmap(u.sqRing.sqeBuff)
		u.sqRing.sqeBuff = nil
	}
	if u.cqRing.buff != nil && (u.sqRing.buff == nil || &u.cqRing.buff[0] != &u.sqRing.buff[0]) {
		if merr := unix.Munmap(u.cqRing.buff); err == nil {
			err = merr
		}
	}
	u.cqRing.buff = nil
	if u.sqRing.buff != nil {
		if merr := unix.Munmap(u.sqRing.buff); err == nil {
			err = merr
		}
		u.sqRing.buff = nil
	}
	return err
}

// sysMmap is used to configure the URingSQE and URingCQE,
// it should only be called after the sysSetUp function has completed successfully.
func (u *URing) sysMmap(p *ringParams) (err error) {
	cqeSize := uintptr(_sizeCQE)
	if p.flags&IORING_SETUP_CQE32 != 0 {
		cqeSize *= 2
	}
	u.sqRing.ringSize = uint64(p.sqOffset.array) + uint64(p.sqEntries)*uint64(_sizeU32)
	u.cqRing.ringSize = uint64(p.cqOffset.cqes) + uint64(p.cqEntries)*uint64(cqeSize)

	if p.features&IORING_FEAT_SINGLE_MMAP != 0 {
		if u.cqRing.ringSize > u.sqRing.ringSize {
			u.sqRing.ringSize = u.cqRing.ringSize
		}
		u.cqRing.ringSize = u.sqRing.ringSize
	}

	prot, flags := unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE
	data, err := unix.Mmap(u.fd, IORING_OFF_SQ_RING, int(u.sqRing.ringSize), prot, flags)
	if err != nil {
		return err
	}
	u.sqRing.buff = data

	if p.features&IORING_FEAT_SINGLE_MMAP != 0 {
		u.cqRing.buff = u.sqRing.buff
	} else {
		data, err = unix.Mmap(u.fd, IORING_OFF_CQ_RING, int(u.cqRing.ringSize), prot, flags)
		if err != nil {
			_ = u.sysMunmap()
			return err
		}
		u.cqRing.buff = data
	}

	sqeSize := uintptr(_sizeSQE)
	if p.flags&IORING_SETUP_SQE128 != 0 {
		sqeSize *= 2
	}
	buff, err := unix.Mmap(u.fd, IORING_OFF_SQES, int(uintptr(p.sqEntries)*sqeSize), prot, flags)
	if err != nil {
		_ = u.sysMunmap()
		return err
	}
	u.sqRing.sqeBuff = buff
	u.sqRing.sqeShift = 0
	if p.flags&IORING_SETUP_SQE128 != 0 {
		u.sqRing.sqeShift = 1
	}

	sq := unsafe.Pointer(&u.sqRing.buff[0])
	u.sqRing.kHead = (*uint32)(unsafe.Add(sq, p.sqOffset.head))
	u.sqRing.kTail = (*uint32)(unsafe.Add(sq, p.sqOffset.tail))
	u.sqRing.kRingMask = (*uint32)(unsafe.Add(sq, p.sqOffset.ringMask))
	u.sqRing.kRingEntries = (*uint32)(unsafe.Add(sq, p.sqOffset.ringEntries))
	u.sqRing.kFlags = (*uint32)(unsafe.Add(sq, p.sqOffset.flags))
	u.sqRing.kDropped = (*uint32)(unsafe.Add(sq, p.sqOffset.dropped))
	u.sqRing.array = (*uint32)(unsafe.Add(sq, p.sqOffset.array))

	cq := unsafe.Pointer(&u.cqRing.buff[0])
	u.cqRing.kHead = (*uint32)(unsafe.Add(cq, p.cqOffset.head))
	u.cqRing.kTail = (*uint32)(unsafe.Add(cq, p.cqOffset.tail))
	u.cqRing.kRingMask = (*uint32)(unsafe.Add(cq, p.cqOffset.ringMask))
	u.cqRing.kRingEntries = (*uint32)(unsafe.Add(cq, p.cqOffset.ringEntries))
	u.cqRing.kOverflow = (*uint32)(unsafe.Add(cq, p.cqOffset.overflow))
	u.cqRing.cqes = unsafe.Add(cq, p.cqOffset.cqes)
	if p.cqOffset.flags != 0 {
		u.cqRing.kFlags = (*uint32)(unsafe.Add(cq, p.cqOffset.flags))
	}
	if p.flags&IORING_SETUP_CQE32 != 0 {
		u.cqRing.cqeShift = 1
	}

	// the local tail starts where the kernel left it, which matters for rings attached after use
	u.sqRing.sqeHead = *u.sqRing.kTail
	u.sqRing.sqeTail = u.sqRing.sqeHead
	return nil
}
