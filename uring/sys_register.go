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
	"runtime"
	"syscall"
	"unsafe"
)

// io_uring_register(2) opcodes and arguments
const (
	IORING_REGISTER_BUFFERS = iota
	IORING_UNREGISTER_BUFFERS
	IORING_REGISTER_FILES
	IORING_UNREGISTER_FILES
	IORING_REGISTER_EVENTFD
	IORING_UNREGISTER_EVENTFD
	IORING_REGISTER_FILES_UPDATE
	IORING_REGISTER_EVENTFD_ASYNC
	IORING_REGISTER_PROBE
	IORING_REGISTER_PERSONALITY
	IORING_UNREGISTER_PERSONALITY
	IORING_REGISTER_RESTRICTIONS
	IORING_REGISTER_ENABLE_RINGS

	/* extended with tagging */
	IORING_REGISTER_FILES2
	IORING_REGISTER_FILES_UPDATE2
	IORING_REGISTER_BUFFERS2
	IORING_REGISTER_BUFFERS_UPDATE

	/* set/clear io-wq thread affinities */
	IORING_REGISTER_IOWQ_AFF
	IORING_UNREGISTER_IOWQ_AFF

	/* set/get max number of io-wq workers */
	IORING_REGISTER_IOWQ_MAX_WORKERS

	/* register/unregister io_uring fd with the ring */
	IORING_REGISTER_RING_FDS
	IORING_UNREGISTER_RING_FDS

	/* register ring based provide buffer group */
	IORING_REGISTER_PBUF_RING
	IORING_UNREGISTER_PBUF_RING

	/* this goes last */
	IORING_REGISTER_LAST
)

// filesUpdate mirrors struct io_uring_files_update.
type filesUpdate struct {
	offset uint32
	resv   uint32
	fds    uint64
}

// ------------------------------------------ implement io_uring_register ------------------------------------------

// RegisterBuffers registers shared buffers, ReadFixed/WriteFixed address them by index.
func (u *URing) RegisterBuffers(buffers []syscall.Iovec) error {
	if len(buffers) == 0 {
		return syscall.EINVAL
	}
	return sysRegister(u.fd, IORING_REGISTER_BUFFERS, unsafe.Pointer(&buffers[0]), len(buffers))
}

// UnRegisterBuffers unregisters shared buffers
func (u *URing) UnRegisterBuffers() error {
	return sysRegister(u.fd, IORING_UNREGISTER_BUFFERS, nil, 0)
}

// RegisterFiles registers a fixed file set, IOSQE_FIXED_FILE entries address it by index.
func (u *URing) RegisterFiles(fds []int32) error {
	if len(fds) == 0 {
		return syscall.EINVAL
	}
	return sysRegister(u.fd, IORING_REGISTER_FILES, unsafe.Pointer(&fds[0]), len(fds))
}

// UnRegisterFiles unregisters the fixed file set
func (u *URing) UnRegisterFiles() error {
	return sysRegister(u.fd, IORING_UNREGISTER_FILES, nil, 0)
}

// UpdateFiles replaces fixed files starting at offset, -1 clears a slot.
func (u *URing) UpdateFiles(offset uint32, fds []int32) error {
	if len(fds) == 0 {
		return syscall.EINVAL
	}
	up := &filesUpdate{offset: offset, fds: uint64(uintptr(unsafe.Pointer(&fds[0])))}
	err := sysRegister(u.fd, IORING_REGISTER_FILES_UPDATE, unsafe.Pointer(up), len(fds))
	runtime.KeepAlive(fds)
	return err
}
