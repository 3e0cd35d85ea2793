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
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/cloudwego/uringloop/uring"
)

// File is an open regular file, or any descriptor used with offset based I/O.
type File struct {
	ioHandle
}

// WrapFile takes ownership of an already open fd.
func WrapFile(r *Reactor, fd int) *File {
	return &File{ioHandle{newFDHandle(r, fd)}}
}

// Open opens path relative to the current directory, O_CLOEXEC is always added.
func Open(r *Reactor, path string, flags int, mode uint32) (*File, error) {
	return OpenAt(r, CWD(r), path, flags, mode)
}

// OpenAt opens path relative to dir.
func OpenAt(r *Reactor, dir Descriptor, path string, flags int, mode uint32) (*File, error) {
	fd, err := openAt(r, dir, path, flags, mode)
	if err != nil {
		return nil, err
	}
	return WrapFile(r, fd), nil
}

// OpenAt2 opens path relative to dir with the extended openat2(2) arguments.
func OpenAt2(r *Reactor, dir Descriptor, path string, how *unix.OpenHow) (*File, error) {
	fd, err := openAt2(r, dir, path, how)
	if err != nil {
		return nil, err
	}
	return WrapFile(r, fd), nil
}

func openAt(r *Reactor, dir Descriptor, path string, flags int, mode uint32) (int, error) {
	if err := checkPath(path); err != nil {
		return -1, err
	}
	fd, err := r.queue(uring.OpenAt(dir.Fd(), path, flags|unix.O_CLOEXEC, mode), 0).Await()
	runtime.KeepAlive(dir)
	if err != nil {
		return -1, Exception(err, "open "+path)
	}
	return fd, nil
}

func openAt2(r *Reactor, dir Descriptor, path string, how *unix.OpenHow) (int, error) {
	if err := checkPath(path); err != nil {
		return -1, err
	}
	h := *how
	h.Flags |= unix.O_CLOEXEC
	fd, err := r.queue(uring.OpenAt2(dir.Fd(), path, &h), 0).Await()
	runtime.KeepAlive(dir)
	if err != nil {
		return -1, Exception(err, "open "+path)
	}
	return fd, nil
}

// Move transfers ownership to the returned File, f is left closed.
func (f *File) Move() *File {
	return &File{ioHandle{f.move()}}
}

// Fsync flushes the file, flags may be uring.IORING_FSYNC_DATASYNC.
func (f *File) Fsync(flags uint32) error {
	_, err := f.do(uring.Fsync(f.fd, flags))
	return err
}

// SyncFileRange syncs n bytes at off, see sync_file_range(2).
func (f *File) SyncFileRange(off uint64, n uint32, flags uint32) error {
	_, err := f.do(uring.SyncFileRange(f.fd, off, n, flags))
	return err
}

// Fallocate manipulates the allocated space, see fallocate(2).
func (f *File) Fallocate(mode uint32, off, length uint64) error {
	_, err := f.do(uring.Fallocate(f.fd, mode, off, length))
	return err
}

// Statx returns the file status, mask selects the fields, unix.STATX_BASIC_STATS usually.
func (f *File) Statx(mask uint32) (*unix.Statx_t, error) {
	stat := &unix.Statx_t{}
	if _, err := f.do(uring.Statx(f.fd, "", unix.AT_EMPTY_PATH, mask, stat)); err != nil {
		return nil, err
	}
	return stat, nil
}
