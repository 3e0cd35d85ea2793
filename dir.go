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
	"golang.org/x/sys/unix"

	"github.com/cloudwego/uringloop/uring"
)

// Dir is an open directory, paths given to its methods are relative to it.
type Dir struct {
	*fdHandle
}

// CWD returns the current working directory of the process as a Dir on r.
// It is not a real descriptor: closing it does nothing.
func CWD(r *Reactor) *Dir {
	return &Dir{&fdHandle{r: r, fd: unix.AT_FDCWD, borrowed: true}}
}

// WrapDir takes ownership of an already open directory fd.
func WrapDir(r *Reactor, fd int) *Dir {
	return &Dir{newFDHandle(r, fd)}
}

// OpenDir opens the directory path.
func OpenDir(r *Reactor, path string) (*Dir, error) {
	return OpenDirAt(r, CWD(r), path)
}

// OpenDirAt opens the directory path relative to dir.
func OpenDirAt(r *Reactor, dir Descriptor, path string) (*Dir, error) {
	fd, err := openAt(r, dir, path, unix.O_DIRECTORY|unix.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	return WrapDir(r, fd), nil
}

// OpenDirAt2 opens the directory path relative to dir with openat2(2) arguments.
func OpenDirAt2(r *Reactor, dir Descriptor, path string, how *unix.OpenHow) (*Dir, error) {
	h := *how
	h.Flags |= unix.O_DIRECTORY
	fd, err := openAt2(r, dir, path, &h)
	if err != nil {
		return nil, err
	}
	return WrapDir(r, fd), nil
}

// Move transfers ownership to the returned Dir, d is left closed.
func (d *Dir) Move() *Dir {
	return &Dir{d.move()}
}

// Open opens the file path relative to d.
func (d *Dir) Open(path string, flags int, mode uint32) (*File, error) {
	return OpenAt(d.r, d, path, flags, mode)
}

// Statx returns the status of path, flags are AT_* flags such as unix.AT_SYMLINK_NOFOLLOW.
func (d *Dir) Statx(path string, flags int, mask uint32) (*unix.Statx_t, error) {
	if err := checkPath(path); err != nil {
		return nil, err
	}
	stat := &unix.Statx_t{}
	if _, err := d.do(uring.Statx(d.fd, path, flags, mask, stat)); err != nil {
		return nil, Exception(err, "statx "+path)
	}
	return stat, nil
}

// Mkdir creates the directory path.
func (d *Dir) Mkdir(path string, mode uint32) error {
	if err := checkPath(path); err != nil {
		return err
	}
	_, err := d.do(uring.MkdirAt(d.fd, path, mode))
	return wrapPath(err, "mkdir", path)
}

// Symlink creates link in d pointing to target.
func (d *Dir) Symlink(target, link string) error {
	return d.SymlinkTo(target, d, link)
}

// SymlinkTo creates link in newDir pointing to target.
func (d *Dir) SymlinkTo(target string, newDir Descriptor, link string) error {
	if err := checkPaths(target, link); err != nil {
		return err
	}
	_, err := d.do(uring.SymlinkAt(target, newDir.Fd(), link), newDir)
	return wrapPath(err, "symlink", link)
}

// Link creates the hard link newPath for oldPath, both relative to d.
func (d *Dir) Link(oldPath, newPath string, flags int) error {
	return d.LinkTo(oldPath, d, newPath, flags)
}

// LinkTo creates the hard link newPath in newDir for oldPath in d.
func (d *Dir) LinkTo(oldPath string, newDir Descriptor, newPath string, flags int) error {
	if err := checkPaths(oldPath, newPath); err != nil {
		return err
	}
	_, err := d.do(uring.LinkAt(d.fd, oldPath, newDir.Fd(), newPath, flags), newDir)
	return wrapPath(err, "link", newPath)
}

// Rename renames oldPath to newPath, both relative to d.
func (d *Dir) Rename(oldPath, newPath string, flags uint32) error {
	return d.RenameTo(oldPath, d, newPath, flags)
}

// RenameTo renames oldPath in d to newPath in newDir, flags are RENAME_* flags.
func (d *Dir) RenameTo(oldPath string, newDir Descriptor, newPath string, flags uint32) error {
	if err := checkPaths(oldPath, newPath); err != nil {
		return err
	}
	_, err := d.do(uring.RenameAt(d.fd, oldPath, newDir.Fd(), newPath, flags), newDir)
	return wrapPath(err, "rename", oldPath)
}

// Unlink removes path, unix.AT_REMOVEDIR removes a directory.
func (d *Dir) Unlink(path string, flags int) error {
	if err := checkPath(path); err != nil {
		return err
	}
	_, err := d.do(uring.UnlinkAt(d.fd, path, flags))
	return wrapPath(err, "unlink", path)
}

func checkPaths(a, b string) error {
	if err := checkPath(a); err != nil {
		return err
	}
	return checkPath(b)
}

func wrapPath(err error, op, path string) error {
	if err == nil {
		return nil
	}
	return Exception(err, op+" "+path)
}
