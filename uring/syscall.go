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
	"errors"
	"os"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// NSIG is the number of signals on linux, io_uring_enter takes the sigset size in bytes.
const NSIG = 65

// sysRegister registers user buffers or files for use in an io_uring(7) instance referenced by fd.
// Registering files or user buffers allows the kernel to take long term references to internal data structures
// or create long term mappings of application memory, greatly reducing per-I/O overhead.
func sysRegister(ringFd int, op int, arg unsafe.Pointer, nrArgs int) error {
	_, _, errno := unix.Syscall6(unix.SYS_IO_URING_REGISTER, uintptr(ringFd), uintptr(op), uintptr(arg), uintptr(nrArgs), 0, 0)
	if errno != 0 {
		return os.NewSyscallError("io_uring_register", errno)
	}
	return nil
}

// sysSetUp sets up a SQ and CQ with at least entries entries, and
// returns a file descriptor which can be used to perform subsequent operations on the io_uring instance.
// The SQ and CQ are shared between userspace and the kernel, which eliminates the need to copy data when initiating and completing I/O.
func sysSetUp(entries uint32, params *ringParams) (int, error) {
	fd, _, errno := unix.Syscall(unix.SYS_IO_URING_SETUP, uintptr(entries), uintptr(unsafe.Pointer(params)), 0)
	if errno != 0 {
		return -1, os.NewSyscallError("io_uring_setup", errno)
	}
	return int(fd), nil
}

// sysEnter is used to initiate and complete I/O using the shared SQ and CQ setup by a call to io_uring_setup(2).
// A single call can both submit new I/O and wait for completions of I/O initiated by this call or previous calls to io_uring_enter().
// The returned count is the number of SQEs consumed, zero is a valid result.
func sysEnter(fd int, toSubmit, minComplete, flags uint32, arg unsafe.Pointer, sz int) (uint, error) {
	n, _, errno := unix.Syscall6(unix.SYS_IO_URING_ENTER, uintptr(fd), uintptr(toSubmit), uintptr(minComplete), uintptr(flags), uintptr(arg), uintptr(sz))
	if errno != 0 {
		return 0, os.NewSyscallError("io_uring_enter", errno)
	}
	return uint(n), nil
}

// IsUnavailable reports whether err means io_uring cannot be used in this process,
// e.g. an old kernel or a seccomp profile that filters the io_uring syscalls.
func IsUnavailable(err error) bool {
	return errors.Is(err, syscall.ENOSYS) || errors.Is(err, syscall.EPERM) || errors.Is(err, syscall.EACCES)
}
