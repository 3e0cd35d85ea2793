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
	"strconv"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Op supports operations for SQE.
//
// An Op owns every piece of memory its entry points to (buffers, iovecs, paths,
// sockaddrs, timespecs), so the memory stays reachable for as long as the Op does.
// Callers must keep the Op alive until its completion has been reaped.
type Op interface {
	Prep(*URingSQE)
	Code() uint8
}

// Opcodes of URing Operation, values follow enum io_uring_op.
const (
	IORING_OP_NOP             uint8 = 0
	IORING_OP_READV           uint8 = 1
	IORING_OP_WRITEV          uint8 = 2
	IORING_OP_FSYNC           uint8 = 3
	IORING_OP_READ_FIXED      uint8 = 4
	IORING_OP_WRITE_FIXED     uint8 = 5
	IORING_OP_POLL_ADD        uint8 = 6
	IORING_OP_POLL_REMOVE     uint8 = 7
	IORING_OP_SYNC_FILE_RANGE uint8 = 8
	IORING_OP_SENDMSG         uint8 = 9
	IORING_OP_RECVMSG         uint8 = 10
	IORING_OP_TIMEOUT         uint8 = 11
	IORING_OP_TIMEOUT_REMOVE  uint8 = 12
	IORING_OP_ACCEPT          uint8 = 13
	IORING_OP_ASYNC_CANCEL    uint8 = 14
	IORING_OP_LINK_TIMEOUT    uint8 = 15
	IORING_OP_CONNECT         uint8 = 16
	IORING_OP_FALLOCATE       uint8 = 17
	IORING_OP_OPENAT          uint8 = 18
	IORING_OP_CLOSE           uint8 = 19
	IORING_OP_FILES_UPDATE    uint8 = 20
	IORING_OP_STATX           uint8 = 21
	IORING_OP_READ            uint8 = 22
	IORING_OP_WRITE           uint8 = 23
	IORING_OP_FADVISE         uint8 = 24
	IORING_OP_MADVISE         uint8 = 25
	IORING_OP_SEND            uint8 = 26
	IORING_OP_RECV            uint8 = 27
	IORING_OP_OPENAT2         uint8 = 28
	IORING_OP_EPOLL_CTL       uint8 = 29
	IORING_OP_SPLICE          uint8 = 30
	IORING_OP_PROVIDE_BUFFERS uint8 = 31
	IORING_OP_REMOVE_BUFFERS  uint8 = 32
	IORING_OP_TEE             uint8 = 33
	IORING_OP_SHUTDOWN        uint8 = 34
	IORING_OP_RENAMEAT        uint8 = 35
	IORING_OP_UNLINKAT        uint8 = 36
	IORING_OP_MKDIRAT         uint8 = 37
	IORING_OP_SYMLINKAT       uint8 = 38
	IORING_OP_LINKAT          uint8 = 39
	IORING_OP_MSG_RING        uint8 = 40
	IORING_OP_FSETXATTR       uint8 = 41
	IORING_OP_SETXATTR        uint8 = 42
	IORING_OP_FGETXATTR       uint8 = 43
	IORING_OP_GETXATTR        uint8 = 44
	IORING_OP_SOCKET          uint8 = 45
	IORING_OP_URING_CMD       uint8 = 46

	// this goes last, obviously
	IORING_OP_LAST uint8 = 47
)

// sqe->fsync_flags
const IORING_FSYNC_DATASYNC uint32 = 1 << 0

// sqe->timeout_flags
const (
	IORING_TIMEOUT_ABS uint32 = 1 << iota
	IORING_TIMEOUT_UPDATE
	IORING_TIMEOUT_BOOTTIME
	IORING_TIMEOUT_REALTIME
	IORING_LINK_TIMEOUT_UPDATE
	IORING_TIMEOUT_ETIME_SUCCESS
	IORING_TIMEOUT_CLOCK_MASK  = IORING_TIMEOUT_BOOTTIME | IORING_TIMEOUT_REALTIME
	IORING_TIMEOUT_UPDATE_MASK = IORING_TIMEOUT_UPDATE | IORING_LINK_TIMEOUT_UPDATE
)

// sqe->splice_flags, extends splice(2) flags
const SPLICE_F_FD_IN_FIXED uint32 = 1 << 31 // the last bit of __u32

// ASYNC_CANCEL flags.
const (
	IORING_ASYNC_CANCEL_ALL uint32 = 1 << iota
	IORING_ASYNC_CANCEL_FD
	IORING_ASYNC_CANCEL_ANY
	IORING_ASYNC_CANCEL_FD_FIXED
)

// offAtCursor makes read/write/splice use and advance the file position.
const offAtCursor = ^uint64(0)

func bufAddr(b []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))
}

// cstr returns path as a NUL terminated byte slice.
func cstr(path string) []byte {
	b := make([]byte, len(path)+1)
	copy(b, path)
	return b
}

func iovecs(bufs [][]byte) []unix.Iovec {
	vecs := make([]unix.Iovec, len(bufs))
	for i := range bufs {
		vecs[i].Base = unsafe.SliceData(bufs[i])
		vecs[i].SetLen(len(bufs[i]))
	}
	return vecs
}

func iovAddr(vecs []unix.Iovec) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(vecs)))
}

// offset converts a signed file offset, a negative one means the current file position.
func offset(off int64) uint64 {
	if off < 0 {
		return offAtCursor
	}
	return uint64(off)
}

// ------------------------------------------ implement Nop ------------------------------------------

func Nop() *NopOp {
	return &NopOp{}
}

type NopOp struct{}

func (op *NopOp) Prep(sqe *URingSQE) {
	sqe.PrepRW(op.Code(), -1, 0, 0, 0)
}

func (op *NopOp) Code() uint8 {
	return IORING_OP_NOP
}

// ------------------------------------------ implement Read ------------------------------------------

// Read reads into buf at off, a negative off reads at the file position.
func Read(fd int, buf []byte, off int64) *ReadOp {
	return &ReadOp{fd: fd, buf: buf, off: offset(off)}
}

type ReadOp struct {
	fd  int
	buf []byte
	off uint64
}

func (op *ReadOp) Prep(sqe *URingSQE) {
	sqe.PrepRW(op.Code(), int32(op.fd), bufAddr(op.buf), uint32(len(op.buf)), op.off)
}

func (op *ReadOp) Code() uint8 {
	return IORING_OP_READ
}

// ------------------------------------------ implement Write ------------------------------------------

// Write writes buf at off, a negative off writes at the file position.
func Write(fd int, buf []byte, off int64) *WriteOp {
	return &WriteOp{fd: fd, buf: buf, off: offset(off)}
}

type WriteOp struct {
	fd  int
	buf []byte
	off uint64
}

func (op *WriteOp) Prep(sqe *URingSQE) {
	sqe.PrepRW(op.Code(), int32(op.fd), bufAddr(op.buf), uint32(len(op.buf)), op.off)
}

func (op *WriteOp) Code() uint8 {
	return IORING_OP_WRITE
}

// ------------------------------------------ implement ReadV ------------------------------------------

func ReadV(fd int, bufs [][]byte, off int64) *ReadVOp {
	return &ReadVOp{fd: fd, bufs: bufs, vecs: iovecs(bufs), off: offset(off)}
}

type ReadVOp struct {
	fd   int
	bufs [][]byte
	vecs []unix.Iovec
	off  uint64
}

func (op *ReadVOp) Prep(sqe *URingSQE) {
	sqe.PrepRW(op.Code(), int32(op.fd), iovAddr(op.vecs), uint32(len(op.vecs)), op.off)
}

func (op *ReadVOp) Code() uint8 {
	return IORING_OP_READV
}

// ------------------------------------------ implement WriteV ------------------------------------------

func WriteV(fd int, bufs [][]byte, off int64) *WriteVOp {
	return &WriteVOp{fd: fd, bufs: bufs, vecs: iovecs(bufs), off: offset(off)}
}

type WriteVOp struct {
	fd   int
	bufs [][]byte
	vecs []unix.Iovec
	off  uint64
}

func (op *WriteVOp) Prep(sqe *URingSQE) {
	sqe.PrepRW(op.Code(), int32(op.fd), iovAddr(op.vecs), uint32(len(op.vecs)), op.off)
}

func (op *WriteVOp) Code() uint8 {
	return IORING_OP_WRITEV
}

// ------------------------------------------ implement ReadFixed ------------------------------------------

// ReadFixed reads into buf, which must lie inside the registered buffer at index.
func ReadFixed(fd int, buf []byte, off int64, index uint16) *ReadFixedOp {
	return &ReadFixedOp{fd: fd, buf: buf, off: offset(off), index: index}
}

type ReadFixedOp struct {
	fd    int
	buf   []byte
	off   uint64
	index uint16
}

func (op *ReadFixedOp) Prep(sqe *URingSQE) {
	sqe.PrepRW(op.Code(), int32(op.fd), bufAddr(op.buf), uint32(len(op.buf)), op.off)
	sqe.BufIndex = op.index
}

func (op *ReadFixedOp) Code() uint8 {
	return IORING_OP_READ_FIXED
}

// ------------------------------------------ implement WriteFixed ------------------------------------------

// WriteFixed writes buf, which must lie inside the registered buffer at index.
func WriteFixed(fd int, buf []byte, off int64, index uint16) *WriteFixedOp {
	return &WriteFixedOp{fd: fd, buf: buf, off: offset(off), index: index}
}

type WriteFixedOp struct {
	fd    int
	buf   []byte
	off   uint64
	index uint16
}

func (op *WriteFixedOp) Prep(sqe *URingSQE) {
	sqe.PrepRW(op.Code(), int32(op.fd), bufAddr(op.buf), uint32(len(op.buf)), op.off)
	sqe.BufIndex = op.index
}

func (op *WriteFixedOp) Code() uint8 {
	return IORING_OP_WRITE_FIXED
}

// ------------------------------------------ implement Fsync ------------------------------------------

// Fsync flushes fd, flags may hold IORING_FSYNC_DATASYNC.
func Fsync(fd int, flags uint32) *FsyncOp {
	return &FsyncOp{fd: fd, flags: flags}
}

type FsyncOp struct {
	fd    int
	flags uint32
}

func (op *FsyncOp) Prep(sqe *URingSQE) {
	sqe.PrepRW(op.Code(), int32(op.fd), 0, 0, 0)
	sqe.UnionFlags = op.flags
}

func (op *FsyncOp) Code() uint8 {
	return IORING_OP_FSYNC
}

// ------------------------------------------ implement SyncFileRange ------------------------------------------

func SyncFileRange(fd int, off uint64, nbytes uint32, flags uint32) *SyncFileRangeOp {
	return &SyncFileRangeOp{fd: fd, off: off, nbytes: nbytes, flags: flags}
}

type SyncFileRangeOp struct {
	fd     int
	off    uint64
	nbytes uint32
	flags  uint32
}

func (op *SyncFileRangeOp) Prep(sqe *URingSQE) {
	sqe.PrepRW(op.Code(), int32(op.fd), 0, op.nbytes, op.off)
	sqe.UnionFlags = op.flags
}

func (op *SyncFileRangeOp) Code() uint8 {
	return IORING_OP_SYNC_FILE_RANGE
}

// ------------------------------------------ implement Fallocate ------------------------------------------

func Fallocate(fd int, mode uint32, off, length uint64) *FallocateOp {
	return &FallocateOp{fd: fd, mode: mode, off: off, length: length}
}

type FallocateOp struct {
	fd     int
	mode   uint32
	off    uint64
	length uint64
}

func (op *FallocateOp) Prep(sqe *URingSQE) {
	sqe.PrepRW(op.Code(), int32(op.fd), 0, op.mode, op.off)
	sqe.Addr = op.length
}

func (op *FallocateOp) Code() uint8 {
	return IORING_OP_FALLOCATE
}

// ------------------------------------------ implement Close ------------------------------------------

func Close(fd int) *CloseOp {
	return &CloseOp{fd: fd}
}

type CloseOp struct {
	fd int
}

func (op *CloseOp) Prep(sqe *URingSQE) {
	sqe.PrepRW(op.Code(), int32(op.fd), 0, 0, 0)
}

func (op *CloseOp) Code() uint8 {
	return IORING_OP_CLOSE
}

// ------------------------------------------ implement Recv ------------------------------------------

func Recv(fd int, buf []byte, flags uint32) *RecvOp {
	return &RecvOp{fd: fd, buf: buf, flags: flags}
}

type RecvOp struct {
	fd    int
	buf   []byte
	flags uint32
}

func (op *RecvOp) Prep(sqe *URingSQE) {
	sqe.PrepRW(op.Code(), int32(op.fd), bufAddr(op.buf), uint32(len(op.buf)), 0)
	sqe.UnionFlags = op.flags
}

func (op *RecvOp) Code() uint8 {
	return IORING_OP_RECV
}

// SetBuff replaces the receive buffer, the op must not be in flight.
func (op *RecvOp) SetBuff(buf []byte) {
	op.buf = buf
}

// ------------------------------------------ implement Send ------------------------------------------

func Send(fd int, buf []byte, flags uint32) *SendOp {
	return &SendOp{fd: fd, buf: buf, flags: flags}
}

type SendOp struct {
	fd    int
	buf   []byte
	flags uint32
}

func (op *SendOp) Prep(sqe *URingSQE) {
	sqe.PrepRW(op.Code(), int32(op.fd), bufAddr(op.buf), uint32(len(op.buf)), 0)
	sqe.UnionFlags = op.flags
}

func (op *SendOp) Code() uint8 {
	return IORING_OP_SEND
}

// SetBuff replaces the send buffer, the op must not be in flight.
func (op *SendOp) SetBuff(buf []byte) {
	op.buf = buf
}

// ------------------------------------------ implement RecvMsg ------------------------------------------

// RecvMsg receives into bufs with optional ancillary data oob, the sender address
// is available from From once the op completed.
func RecvMsg(fd int, bufs [][]byte, oob []byte, flags uint32) *RecvMsgOp {
	op := &RecvMsgOp{fd: fd, bufs: bufs, oob: oob, vecs: iovecs(bufs), flags: flags}
	op.msg.Name = (*byte)(unsafe.Pointer(&op.name))
	op.msg.Namelen = unix.SizeofSockaddrAny
	op.msg.Iov = unsafe.SliceData(op.vecs)
	op.msg.SetIovlen(len(op.vecs))
	if len(oob) > 0 {
		op.msg.Control = unsafe.SliceData(oob)
		op.msg.SetControllen(len(oob))
	}
	return op
}

type RecvMsgOp struct {
	fd    int
	msg   unix.Msghdr
	name  unix.RawSockaddrAny
	bufs  [][]byte
	oob   []byte
	vecs  []unix.Iovec
	flags uint32
}

func (op *RecvMsgOp) Prep(sqe *URingSQE) {
	sqe.PrepRW(op.Code(), int32(op.fd), uintptr(unsafe.Pointer(&op.msg)), 1, 0)
	sqe.UnionFlags = op.flags
}

func (op *RecvMsgOp) Code() uint8 {
	return IORING_OP_RECVMSG
}

// From returns the sender address, nil for connected stream sockets.
func (op *RecvMsgOp) From() (unix.Sockaddr, error) {
	if op.msg.Namelen == 0 {
		return nil, nil
	}
	return ParseSockaddr(&op.name)
}

// Msghdr returns the header as updated by the kernel (flags, control length).
func (op *RecvMsgOp) Msghdr() *unix.Msghdr {
	return &op.msg
}

// ------------------------------------------ implement SendMsg ------------------------------------------

// SendMsg sends bufs with optional ancillary data oob to the optional address to.
func SendMsg(fd int, bufs [][]byte, oob []byte, to unix.Sockaddr, flags uint32) (*SendMsgOp, error) {
	op := &SendMsgOp{fd: fd, bufs: bufs, oob: oob, vecs: iovecs(bufs), flags: flags}
	if to != nil {
		n, err := PutSockaddr(&op.name, to)
		if err != nil {
			return nil, err
		}
		op.msg.Name = (*byte)(unsafe.Pointer(&op.name))
		op.msg.Namelen = n
	}
	op.msg.Iov = unsafe.SliceData(op.vecs)
	op.msg.SetIovlen(len(op.vecs))
	if len(oob) > 0 {
		op.msg.Control = unsafe.SliceData(oob)
		op.msg.SetControllen(len(oob))
	}
	return op, nil
}

type SendMsgOp struct {
	fd    int
	msg   unix.Msghdr
	name  unix.RawSockaddrAny
	bufs  [][]byte
	oob   []byte
	vecs  []unix.Iovec
	flags uint32
}

func (op *SendMsgOp) Prep(sqe *URingSQE) {
	sqe.PrepRW(op.Code(), int32(op.fd), uintptr(unsafe.Pointer(&op.msg)), 1, 0)
	sqe.UnionFlags = op.flags
}

func (op *SendMsgOp) Code() uint8 {
	return IORING_OP_SENDMSG
}

// ------------------------------------------ implement Accept ------------------------------------------

func Accept(fd int, flags uint32) *AcceptOp {
	return &AcceptOp{fd: fd, addrLen: unix.SizeofSockaddrAny, flags: flags}
}

type AcceptOp struct {
	fd      int
	addr    unix.RawSockaddrAny
	addrLen uint32
	flags   uint32
}

func (op *AcceptOp) Prep(sqe *URingSQE) {
	op.addrLen = unix.SizeofSockaddrAny
	sqe.PrepRW(op.Code(), int32(op.fd), uintptr(unsafe.Pointer(&op.addr)), 0, uint64(uintptr(unsafe.Pointer(&op.addrLen))))
	sqe.UnionFlags = op.flags
}

func (op *AcceptOp) Code() uint8 {
	return IORING_OP_ACCEPT
}

func (op *AcceptOp) Fd() int {
	return op.fd
}

// Sockaddr returns the peer address filled in by the kernel.
func (op *AcceptOp) Sockaddr() (unix.Sockaddr, error) {
	return ParseSockaddr(&op.addr)
}

// ------------------------------------------ implement Connect ------------------------------------------

func Connect(fd int, sa unix.Sockaddr) (*ConnectOp, error) {
	op := &ConnectOp{fd: fd}
	n, err := PutSockaddr(&op.addr, sa)
	if err != nil {
		return nil, err
	}
	op.addrLen = n
	return op, nil
}

type ConnectOp struct {
	fd      int
	addr    unix.RawSockaddrAny
	addrLen uint32
}

func (op *ConnectOp) Prep(sqe *URingSQE) {
	sqe.PrepRW(op.Code(), int32(op.fd), uintptr(unsafe.Pointer(&op.addr)), 0, uint64(op.addrLen))
}

func (op *ConnectOp) Code() uint8 {
	return IORING_OP_CONNECT
}

// ------------------------------------------ implement Shutdown ------------------------------------------

func Shutdown(fd int, how int) *ShutdownOp {
	return &ShutdownOp{fd: fd, how: how}
}

type ShutdownOp struct {
	fd  int
	how int
}

func (op *ShutdownOp) Prep(sqe *URingSQE) {
	sqe.PrepRW(op.Code(), int32(op.fd), 0, uint32(op.how), 0)
}

func (op *ShutdownOp) Code() uint8 {
	return IORING_OP_SHUTDOWN
}

// ------------------------------------------ implement Timeout ------------------------------------------

// Timeout completes after duration or once count other completions were posted, whichever comes first.
// A count of zero makes it a pure timer.
func Timeout(duration time.Duration, count uint64, flags uint32) *TimeoutOp {
	return &TimeoutOp{ts: unix.NsecToTimespec(duration.Nanoseconds()), count: count, flags: flags}
}

type TimeoutOp struct {
	ts    unix.Timespec
	count uint64
	flags uint32
}

func (op *TimeoutOp) Prep(sqe *URingSQE) {
	sqe.PrepRW(op.Code(), -1, uintptr(unsafe.Pointer(&op.ts)), 1, op.count)
	sqe.UnionFlags = op.flags
}

func (op *TimeoutOp) Code() uint8 {
	return IORING_OP_TIMEOUT
}

// ------------------------------------------ implement LinkTimeout ------------------------------------------

// LinkTimeout bounds the previous entry, which must carry IOSQE_IO_LINK.
func LinkTimeout(duration time.Duration, flags uint32) *LinkTimeoutOp {
	return &LinkTimeoutOp{ts: unix.NsecToTimespec(duration.Nanoseconds()), flags: flags}
}

type LinkTimeoutOp struct {
	ts    unix.Timespec
	flags uint32
}

func (op *LinkTimeoutOp) Prep(sqe *URingSQE) {
	sqe.PrepRW(op.Code(), -1, uintptr(unsafe.Pointer(&op.ts)), 1, 0)
	sqe.UnionFlags = op.flags
}

func (op *LinkTimeoutOp) Code() uint8 {
	return IORING_OP_LINK_TIMEOUT
}

// ------------------------------------------ implement AsyncCancel ------------------------------------------

// AsyncCancel cancels the in-flight entry whose user data equals userData.
func AsyncCancel(userData uint64, flags uint32) *AsyncCancelOp {
	return &AsyncCancelOp{userData: userData, flags: flags}
}

type AsyncCancelOp struct {
	userData uint64
	flags    uint32
}

func (op *AsyncCancelOp) Prep(sqe *URingSQE) {
	sqe.PrepRW(op.Code(), -1, uintptr(op.userData), 0, 0)
	sqe.UnionFlags = op.flags
}

func (op *AsyncCancelOp) Code() uint8 {
	return IORING_OP_ASYNC_CANCEL
}

// ------------------------------------------ implement PollAdd ------------------------------------------

func PollAdd(fd int, mask uint32) *PollAddOp {
	return &PollAddOp{fd: fd, pollMask: mask}
}

type PollAddOp struct {
	fd       int
	pollMask uint32
}

func (op *PollAddOp) Prep(sqe *URingSQE) {
	sqe.PrepRW(op.Code(), int32(op.fd), 0, 0, 0)
	sqe.UnionFlags = op.pollMask
}

func (op *PollAddOp) Code() uint8 {
	return IORING_OP_POLL_ADD
}

// ------------------------------------------ implement PollRemove ------------------------------------------

func PollRemove(userData uint64) *PollRemoveOp {
	return &PollRemoveOp{userData: userData}
}

type PollRemoveOp struct {
	userData uint64
}

func (op *PollRemoveOp) Prep(sqe *URingSQE) {
	sqe.PrepRW(op.Code(), -1, uintptr(op.userData), 0, 0)
}

func (op *PollRemoveOp) Code() uint8 {
	return IORING_OP_POLL_REMOVE
}

// ------------------------------------------ implement OpenAt ------------------------------------------

func OpenAt(dfd int, path string, flags int, mode uint32) *OpenAtOp {
	return &OpenAtOp{dfd: dfd, path: cstr(path), flags: flags, mode: mode}
}

type OpenAtOp struct {
	dfd   int
	path  []byte
	flags int
	mode  uint32
}

func (op *OpenAtOp) Prep(sqe *URingSQE) {
	sqe.PrepRW(op.Code(), int32(op.dfd), bufAddr(op.path), op.mode, 0)
	sqe.UnionFlags = uint32(op.flags)
}

func (op *OpenAtOp) Code() uint8 {
	return IORING_OP_OPENAT
}

// ------------------------------------------ implement OpenAt2 ------------------------------------------

func OpenAt2(dfd int, path string, how *unix.OpenHow) *OpenAt2Op {
	return &OpenAt2Op{dfd: dfd, path: cstr(path), how: *how}
}

type OpenAt2Op struct {
	dfd  int
	path []byte
	how  unix.OpenHow
}

func (op *OpenAt2Op) Prep(sqe *URingSQE) {
	sqe.PrepRW(op.Code(), int32(op.dfd), bufAddr(op.path), uint32(unix.SizeofOpenHow), uint64(uintptr(unsafe.Pointer(&op.how))))
}

func (op *OpenAt2Op) Code() uint8 {
	return IORING_OP_OPENAT2
}

// ------------------------------------------ implement Statx ------------------------------------------

func Statx(dfd int, path string, flags int, mask uint32, stat *unix.Statx_t) *StatxOp {
	return &StatxOp{dfd: dfd, path: cstr(path), flags: flags, mask: mask, stat: stat}
}

type StatxOp struct {
	dfd   int
	path  []byte
	flags int
	mask  uint32
	stat  *unix.Statx_t
}

func (op *StatxOp) Prep(sqe *URingSQE) {
	sqe.PrepRW(op.Code(), int32(op.dfd), bufAddr(op.path), op.mask, uint64(uintptr(unsafe.Pointer(op.stat))))
	sqe.UnionFlags = uint32(op.flags)
}

func (op *StatxOp) Code() uint8 {
	return IORING_OP_STATX
}

// ------------------------------------------ implement Splice ------------------------------------------

// Splice moves nbytes from fdIn to fdOut, one of them must be a pipe.
// A negative offset means the current position (or none, for pipes).
func Splice(fdIn int, offIn int64, fdOut int, offOut int64, nbytes uint32, flags uint32) *SpliceOp {
	return &SpliceOp{fdIn: fdIn, offIn: offset(offIn), fdOut: fdOut, offOut: offset(offOut), nbytes: nbytes, flags: flags}
}

type SpliceOp struct {
	fdIn   int
	offIn  uint64
	fdOut  int
	offOut uint64
	nbytes uint32
	flags  uint32
}

func (op *SpliceOp) Prep(sqe *URingSQE) {
	sqe.PrepRW(op.Code(), int32(op.fdOut), 0, op.nbytes, op.offOut)
	sqe.Addr = op.offIn
	sqe.SpliceFdIn = int32(op.fdIn)
	sqe.UnionFlags = op.flags
}

func (op *SpliceOp) Code() uint8 {
	return IORING_OP_SPLICE
}

// ------------------------------------------ implement Tee ------------------------------------------

// Tee duplicates nbytes from pipe fdIn to pipe fdOut without consuming them.
func Tee(fdIn, fdOut int, nbytes uint32, flags uint32) *TeeOp {
	return &TeeOp{fdIn: fdIn, fdOut: fdOut, nbytes: nbytes, flags: flags}
}

type TeeOp struct {
	fdIn   int
	fdOut  int
	nbytes uint32
	flags  uint32
}

func (op *TeeOp) Prep(sqe *URingSQE) {
	sqe.PrepRW(op.Code(), int32(op.fdOut), 0, op.nbytes, 0)
	sqe.SpliceFdIn = int32(op.fdIn)
	sqe.UnionFlags = op.flags
}

func (op *TeeOp) Code() uint8 {
	return IORING_OP_TEE
}

// ------------------------------------------ implement RenameAt ------------------------------------------

func RenameAt(oldDfd int, oldPath string, newDfd int, newPath string, flags uint32) *RenameAtOp {
	return &RenameAtOp{oldDfd: oldDfd, oldPath: cstr(oldPath), newDfd: newDfd, newPath: cstr(newPath), flags: flags}
}

type RenameAtOp struct {
	oldDfd  int
	oldPath []byte
	newDfd  int
	newPath []byte
	flags   uint32
}

func (op *RenameAtOp) Prep(sqe *URingSQE) {
	sqe.PrepRW(op.Code(), int32(op.oldDfd), bufAddr(op.oldPath), uint32(op.newDfd), uint64(bufAddr(op.newPath)))
	sqe.UnionFlags = op.flags
}

func (op *RenameAtOp) Code() uint8 {
	return IORING_OP_RENAMEAT
}

// ------------------------------------------ implement UnlinkAt ------------------------------------------

func UnlinkAt(dfd int, path string, flags int) *UnlinkAtOp {
	return &UnlinkAtOp{dfd: dfd, path: cstr(path), flags: flags}
}

type UnlinkAtOp struct {
	dfd   int
	path  []byte
	flags int
}

func (op *UnlinkAtOp) Prep(sqe *URingSQE) {
	sqe.PrepRW(op.Code(), int32(op.dfd), bufAddr(op.path), 0, 0)
	sqe.UnionFlags = uint32(op.flags)
}

func (op *UnlinkAtOp) Code() uint8 {
	return IORING_OP_UNLINKAT
}

// ------------------------------------------ implement MkdirAt ------------------------------------------

func MkdirAt(dfd int, path string, mode uint32) *MkdirAtOp {
	return &MkdirAtOp{dfd: dfd, path: cstr(path), mode: mode}
}

type MkdirAtOp struct {
	dfd  int
	path []byte
	mode uint32
}

func (op *MkdirAtOp) Prep(sqe *URingSQE) {
	sqe.PrepRW(op.Code(), int32(op.dfd), bufAddr(op.path), op.mode, 0)
}

func (op *MkdirAtOp) Code() uint8 {
	return IORING_OP_MKDIRAT
}

// ------------------------------------------ implement SymlinkAt ------------------------------------------

// SymlinkAt creates linkPath, relative to newDfd, pointing at target.
func SymlinkAt(target string, newDfd int, linkPath string) *SymlinkAtOp {
	return &SymlinkAtOp{target: cstr(target), newDfd: newDfd, linkPath: cstr(linkPath)}
}

type SymlinkAtOp struct {
	target   []byte
	newDfd   int
	linkPath []byte
}

func (op *SymlinkAtOp) Prep(sqe *URingSQE) {
	sqe.PrepRW(op.Code(), int32(op.newDfd), bufAddr(op.target), 0, uint64(bufAddr(op.linkPath)))
}

func (op *SymlinkAtOp) Code() uint8 {
	return IORING_OP_SYMLINKAT
}

// ------------------------------------------ implement LinkAt ------------------------------------------

func LinkAt(oldDfd int, oldPath string, newDfd int, newPath string, flags int) *LinkAtOp {
	return &LinkAtOp{oldDfd: oldDfd, oldPath: cstr(oldPath), newDfd: newDfd, newPath: cstr(newPath), flags: flags}
}

type LinkAtOp struct {
	oldDfd  int
	oldPath []byte
	newDfd  int
	newPath []byte
	flags   int
}

func (op *LinkAtOp) Prep(sqe *URingSQE) {
	sqe.PrepRW(op.Code(), int32(op.oldDfd), bufAddr(op.oldPath), uint32(op.newDfd), uint64(bufAddr(op.newPath)))
	sqe.UnionFlags = uint32(op.flags)
}

func (op *LinkAtOp) Code() uint8 {
	return IORING_OP_LINKAT
}

var opNames = [IORING_OP_LAST]string{
	"nop", "readv", "writev", "fsync", "read_fixed", "write_fixed", "poll_add", "poll_remove",
	"sync_file_range", "sendmsg", "recvmsg", "timeout", "timeout_remove", "accept", "async_cancel",
	"link_timeout", "connect", "fallocate", "openat", "close", "files_update", "statx", "read", "write",
	"fadvise", "madvise", "send", "recv", "openat2", "epoll_ctl", "splice", "provide_buffers",
	"remove_buffers", "tee", "shutdown", "renameat", "unlinkat", "mkdirat", "symlinkat", "linkat",
	"msg_ring", "fsetxattr", "setxattr", "fgetxattr", "getxattr", "socket", "uring_cmd",
}

// OpName returns the lower case name of opcode op.
func OpName(op uint8) string {
	if op < IORING_OP_LAST {
		return opNames[op]
	}
	return "op(" + strconv.Itoa(int(op)) + ")"
}
