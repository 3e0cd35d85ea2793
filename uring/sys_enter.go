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
	"syscall"
	"unsafe"
)

// Submission Queue Entry, IO submission data structure
type URingSQE struct {
	OpCode      uint8  // type of operation for this sqe
	Flags       uint8  // IOSQE_ flags
	IOPrio      uint16 // ioprio for the request
	Fd          int32  // file descriptor to do IO on
	Off         uint64 // offset into file, or addr2
	Addr        uint64 // pointer to buffer or iovecs, or splice_off_in
	Len         uint32 // buffer size or number of iovecs
	UnionFlags  uint32 // rw_flags, fsync_flags, open_flags, msg_flags ...
	UserData    uint64 // data to be passed back at completion time
	BufIndex    uint16 // index into fixed buffers, or buf_group
	Personality uint16 // personality to use, if used
	SpliceFdIn  int32  // splice_fd_in, or file_index
	Addr3       uint64
	pad         uint64
}

const (
	_sizeU32 = unsafe.Sizeof(uint32(0))
	_sizeSQE = unsafe.Sizeof(URingSQE{})
	_sizeCQE = unsafe.Sizeof(URingCQE{})
)

// PrepRW implements SQE, it resets the entry and fills the common fields.
func (s *URingSQE) PrepRW(op uint8, fd int32, addr uintptr, len uint32, offset uint64) {
	*s = URingSQE{}
	s.OpCode = op
	s.Fd = fd
	s.Off = offset
	s.Addr = uint64(addr)
	s.Len = len
}

// SetFlags sets the IOSQE_* flags of the entry.
func (s *URingSQE) SetFlags(flags uint8) {
	s.Flags = flags
}

// SetUserData sets the user data field which the kernel passes back in the CQE.
func (s *URingSQE) SetUserData(ud uint64) {
	s.UserData = ud
}

// Completion Queue Event, IO completion data structure.
// On rings set up with IORING_SETUP_CQE32 each entry is followed by 16 extra bytes,
// which the ring skips over when indexing.
type URingCQE struct {
	UserData uint64 // sqe->data submission passed back
	Res      int32  // result code for this event
	Flags    uint32
}

// Error implements CQE, it returns nil for a non-negative result.
func (c *URingCQE) Error() error {
	if c.Res >= 0 {
		return nil
	}
	return syscall.Errno(-c.Res)
}

// Flags of CQE
// IORING_CQE_F_BUFFER	If set, the upper 16 bits are the buffer ID
// IORING_CQE_F_MORE	If set, parent SQE will generate more CQE entries
// IORING_CQE_F_SOCK_NONEMPTY	If set, more data to read after socket recv
const (
	IORING_CQE_F_BUFFER uint32 = 1 << iota
	IORING_CQE_F_MORE
	IORING_CQE_F_SOCK_NONEMPTY
)

const IORING_CQE_BUFFER_SHIFT = 16

// io_uring_enter(2) flags
const (
	IORING_ENTER_GETEVENTS uint32 = 1 << iota
	IORING_ENTER_SQ_WAKEUP
	IORING_ENTER_SQ_WAIT
	IORING_ENTER_EXT_ARG
	IORING_ENTER_REGISTERED_RING
)

const (
	IOSQE_FIXED_FILE_BIT = iota
	IOSQE_IO_DRAIN_BIT
	IOSQE_IO_LINK_BIT
	IOSQE_IO_HARDLINK_BIT
	IOSQE_ASYNC_BIT
	IOSQE_BUFFER_SELECT_BIT
	IOSQE_CQE_SKIP_SUCCESS_BIT
)

// Flags of SQE
const (
	// IOSQE_FIXED_FILE means use fixed fileset
	IOSQE_FIXED_FILE uint8 = 1 << IOSQE_FIXED_FILE_BIT
	// IOSQE_IO_DRAIN means issue after inflight IO
	IOSQE_IO_DRAIN uint8 = 1 << IOSQE_IO_DRAIN_BIT
	// IOSQE_IO_LINK means links next sqe
	IOSQE_IO_LINK uint8 = 1 << IOSQE_IO_LINK_BIT
	// IOSQE_IO_HARDLINK means like LINK, but stronger
	IOSQE_IO_HARDLINK uint8 = 1 << IOSQE_IO_HARDLINK_BIT
	// IOSQE_ASYNC means always go async
	IOSQE_ASYNC uint8 = 1 << IOSQE_ASYNC_BIT
	// IOSQE_BUFFER_SELECT means select buffer from sqe->buf_group
	IOSQE_BUFFER_SELECT uint8 = 1 << IOSQE_BUFFER_SELECT_BIT
	// IOSQE_CQE_SKIP_SUCCESS means don't post CQE if request succeeded
	IOSQE_CQE_SKIP_SUCCESS uint8 = 1 << IOSQE_CQE_SKIP_SUCCESS_BIT
)

// getEventsArg mirrors struct io_uring_getevents_arg.
type getEventsArg struct {
	sigMask   uint64
	sigMaskSz uint32
	pad       uint32
	ts        uint64
}

const _sizeEventsArg = unsafe.Sizeof(getEventsArg{})
