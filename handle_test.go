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
	"bytes"
	"errors"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"syscall"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/cloudwego/uringloop/uring"
)

func TestHandleCloseTwice(t *testing.T) {
	f := newFakeRing(4, 0)
	r := newFakeReactor(f)

	file := WrapFile(r, 1000)
	Equal(t, r.refs, 2)
	_, err := BlockOn(r, func() (int, error) {
		if err := file.Close(); err != nil {
			return 0, err
		}
		return 0, file.Close()
	})
	MustNil(t, err)
	Equal(t, file.Fd(), -1)
	Equal(t, f.count(uring.IORING_OP_CLOSE), 1)
	Equal(t, r.refs, 1)

	file.Release()
	Equal(t, f.count(uring.IORING_OP_CLOSE), 1)
	Equal(t, len(f.queued), 0)
}

func TestHandleRelease(t *testing.T) {
	f := newFakeRing(4, 0)
	r := newFakeReactor(f)

	sock := WrapSocket(r, 1000)
	sock.Release()
	sock.Release()
	Equal(t, sock.Fd(), -1)
	Equal(t, len(f.queued), 1)
	Equal(t, r.Inflight(), 1)

	n, err := r.Poll()
	MustNil(t, err)
	Equal(t, n, 1)
	Equal(t, f.count(uring.IORING_OP_CLOSE), 1)
	Equal(t, f.submitted[0].UserData, uint64(0))
	Equal(t, f.submitted[0].Fd, int32(1000))
	Equal(t, r.Inflight(), 0)
	Equal(t, r.slab.live, 0)
	Equal(t, r.refs, 1)
}

func TestHandleMove(t *testing.T) {
	f := newFakeRing(4, 0)
	r := newFakeReactor(f)

	a := WrapFile(r, 1000)
	b := a.Move()
	Equal(t, a.Fd(), -1)
	Equal(t, b.Fd(), 1000)
	Equal(t, r.refs, 2)
	a.Release()
	Equal(t, len(f.queued), 0)
	b.Release()
	Equal(t, len(f.queued), 1)
	Equal(t, r.refs, 1)

	cwd := CWD(r)
	MustNil(t, cwd.Close())
	Equal(t, cwd.Fd(), unix.AT_FDCWD)
	Equal(t, r.refs, 1)
}

func TestHandleBadPath(t *testing.T) {
	r := newFakeReactor(newFakeRing(4, 0))
	_, err := BlockOn(r, func() (*File, error) {
		return Open(r, "a\x00b", unix.O_RDONLY, 0)
	})
	MustTrue(t, errors.Is(err, syscall.EINVAL))
	Equal(t, r.Inflight(), 0)
}

func TestHandleArgumentKeptOpen(t *testing.T) {
	f := newFakeRing(8, 0)
	f.hold = true
	f.result = func(sqe *uring.URingSQE) int32 {
		if sqe.OpCode == uring.IORING_OP_OPENAT {
			return 2000
		}
		return 0
	}
	r := newFakeReactor(f)

	// the directories are only referenced by the suspended calls
	Go(r, func() error {
		file, err := OpenAt(r, WrapDir(r, 1000), "x", unix.O_RDONLY, 0)
		if err != nil {
			return err
		}
		file.Release()
		return nil
	})
	Go(r, func() error {
		return CWD(r).RenameTo("a", WrapDir(r, 1001), "b", 0)
	})
	for i := 0; i < 5; i++ {
		runtime.GC()
		time.Sleep(time.Millisecond)
	}

	_, err := r.PollNoWait()
	MustNil(t, err)
	Equal(t, f.count(uring.IORING_OP_OPENAT), 1)
	Equal(t, f.count(uring.IORING_OP_RENAMEAT), 1)
	Equal(t, f.count(uring.IORING_OP_CLOSE), 0)

	f.hold = false
	f.complete(len(f.inKernel))
	_, err = r.PollNoWait()
	MustNil(t, err)
	Equal(t, r.tasks, 0)
	// the opened file is released with a detached close
	_, err = r.PollNoWait()
	MustNil(t, err)
	Equal(t, f.count(uring.IORING_OP_CLOSE), 1)
	Equal(t, r.Inflight(), 0)
}

func TestPipeEcho(t *testing.T) {
	r := newTestReactor(t, 4)
	defer r.Close()

	p, err := NewPipe(r)
	MustNil(t, err)
	defer p.Release()

	msg := bytes.Repeat([]byte("uringloop"), 100)
	got, err := BlockOn(r, func() ([]byte, error) {
		if _, err := p.Write(msg); err != nil {
			return nil, err
		}
		buf := make([]byte, len(msg))
		for off := 0; off < len(buf); {
			n, err := p.Read(buf[off:])
			if err != nil {
				return nil, err
			}
			off += n
		}
		return buf, nil
	})
	MustNil(t, err)
	MustTrue(t, bytes.Equal(got, msg))

	_, err = BlockOn(r, func() (int, error) {
		if err := p.CloseWrite(); err != nil {
			return 0, err
		}
		return p.Read(make([]byte, 8))
	})
	MustNil(t, err)
	Equal(t, p.Writer().Fd(), -1)
	MustTrue(t, p.Reader().Fd() >= 0)
}

func TestFileReadWrite(t *testing.T) {
	r := newTestReactor(t, 8)
	defer r.Close()
	path := filepath.Join(t.TempDir(), "data")

	_, err := BlockOn(r, func() (int, error) {
		f, err := Open(r, path, unix.O_CREAT|unix.O_RDWR, 0o644)
		if err != nil {
			return 0, err
		}
		defer f.Close()

		if _, err = f.Write([]byte("hello "), 0); err != nil {
			return 0, err
		}
		if _, err = f.Writev([][]byte{[]byte("io_"), []byte("uring")}, 6); err != nil {
			return 0, err
		}
		if err = f.Fsync(0); err != nil {
			return 0, err
		}
		stat, err := f.Statx(unix.STATX_SIZE)
		if err != nil {
			return 0, err
		}
		Equal(t, stat.Size, uint64(14))

		head, tail := make([]byte, 6), make([]byte, 8)
		n, err := f.Readv([][]byte{head, tail}, 0)
		if err != nil {
			return 0, err
		}
		Equal(t, string(head)+string(tail), "hello io_uring")
		return n, nil
	})
	MustNil(t, err)

	data, err := os.ReadFile(path)
	MustNil(t, err)
	Equal(t, string(data), "hello io_uring")

	_, err = BlockOn(r, func() (*File, error) {
		return Open(r, filepath.Join(path, "missing"), unix.O_RDONLY, 0)
	})
	MustTrue(t, errors.Is(err, syscall.ENOTDIR))
}

func TestFileFixedBuffers(t *testing.T) {
	r := newTestReactor(t, 8)
	defer r.Close()
	if !r.Supported(uring.IORING_OP_WRITE_FIXED) {
		t.Skip("fixed buffers not supported")
	}
	bufs := [][]byte{make([]byte, 4096)}
	if err := r.RegisterBuffers(bufs); err != nil {
		t.Skipf("register buffers: %v", err)
	}
	defer r.UnregisterBuffers()

	path := filepath.Join(t.TempDir(), "fixed")
	copy(bufs[0], "fixed buffer")
	_, err := BlockOn(r, func() (int, error) {
		f, err := Open(r, path, unix.O_CREAT|unix.O_RDWR, 0o644)
		if err != nil {
			return 0, err
		}
		defer f.Close()
		if _, err = f.WriteFixed(bufs[0][:12], 0, 0); err != nil {
			return 0, err
		}
		clear(bufs[0])
		return f.ReadFixed(bufs[0][:12], 0, 0)
	})
	MustNil(t, err)
	Equal(t, string(bufs[0][:12]), "fixed buffer")
}

func TestDirOps(t *testing.T) {
	r := newTestReactor(t, 8)
	defer r.Close()
	root := t.TempDir()

	_, err := BlockOn(r, func() (int, error) {
		dir, err := OpenDir(r, root)
		if err != nil {
			return 0, err
		}
		defer dir.Close()

		if err = dir.Mkdir("sub", 0o755); err != nil {
			return 0, err
		}
		f, err := dir.Open("sub/a", unix.O_CREAT|unix.O_WRONLY, 0o644)
		if err != nil {
			return 0, err
		}
		if _, err = f.Write([]byte("abc"), 0); err != nil {
			return 0, err
		}
		if err = f.Close(); err != nil {
			return 0, err
		}
		if err = dir.Rename("sub/a", "sub/b", 0); err != nil {
			return 0, err
		}
		if err = dir.Symlink("sub/b", "link"); err != nil {
			return 0, err
		}
		if err = dir.Link("sub/b", "hard", 0); err != nil {
			return 0, err
		}
		stat, err := dir.Statx("link", 0, unix.STATX_SIZE)
		if err != nil {
			return 0, err
		}
		Equal(t, stat.Size, uint64(3))
		stat, err = dir.Statx("hard", 0, unix.STATX_NLINK)
		if err != nil {
			return 0, err
		}
		Equal(t, stat.Nlink, uint32(2))

		sub, err := OpenDirAt(r, dir, "sub")
		if err != nil {
			return 0, err
		}
		defer sub.Close()
		if err = sub.Unlink("b", 0); err != nil {
			return 0, err
		}
		if err = dir.Unlink("link", 0); err != nil {
			return 0, err
		}
		if err = dir.Unlink("hard", 0); err != nil {
			return 0, err
		}
		return 0, dir.Unlink("sub", unix.AT_REMOVEDIR)
	})
	MustNil(t, err)

	entries, err := os.ReadDir(root)
	MustNil(t, err)
	Equal(t, len(entries), 0)

	_, err = BlockOn(r, func() (int, error) {
		return 0, CWD(r).Unlink(filepath.Join(root, "missing"), 0)
	})
	MustTrue(t, errors.Is(err, syscall.ENOENT))
}

func TestSocketEcho(t *testing.T) {
	r := newTestReactor(t, 16)
	defer r.Close()

	ln, err := Listen(r, "127.0.0.1", 0)
	MustNil(t, err)
	defer ln.Release()
	port := ln.Addr().(*net.TCPAddr).Port

	Go(r, func() error {
		conn, peer, err := ln.Accept()
		if err != nil {
			return err
		}
		defer conn.Close()
		MustTrue(t, peer != nil)
		buf := make([]byte, 64)
		n, err := conn.Recv(buf, 0)
		if err != nil {
			return err
		}
		_, err = conn.Send(buf[:n], 0)
		return err
	})

	got, err := BlockOn(r, func() (string, error) {
		conn, err := Dial(r, "tcp", "localhost", port)
		if err != nil {
			return "", err
		}
		defer conn.Close()
		Equal(t, conn.RemoteAddr().String(), ln.Addr().String())
		if _, err = conn.Write([]byte("ping"), -1); err != nil {
			return "", err
		}
		buf := make([]byte, 64)
		n, err := conn.Read(buf, -1)
		if err != nil {
			return "", err
		}
		if err = conn.Shutdown(unix.SHUT_RDWR); err != nil {
			return "", err
		}
		return string(buf[:n]), nil
	})
	MustNil(t, err)
	Equal(t, got, "ping")
}

func TestSocketMsg(t *testing.T) {
	r := newTestReactor(t, 8)
	defer r.Close()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
	MustNil(t, err)
	a, b := WrapSocket(r, fds[0]), WrapSocket(r, fds[1])
	defer a.Release()
	defer b.Release()

	got, err := BlockOn(r, func() (string, error) {
		if _, err := a.Sendmsg([][]byte{[]byte("msg"), []byte("hdr")}, nil, nil, 0); err != nil {
			return "", err
		}
		buf := make([]byte, 16)
		n, _, _, flags, err := b.Recvmsg([][]byte{buf}, nil, 0)
		if err != nil {
			return "", err
		}
		Equal(t, flags&unix.MSG_TRUNC, 0)
		return string(buf[:n]), nil
	})
	MustNil(t, err)
	Equal(t, got, "msghdr")
}

func TestDialRefused(t *testing.T) {
	r := newTestReactor(t, 8)
	defer r.Close()

	ln, err := Listen(r, "127.0.0.1", 0)
	MustNil(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	_, err = BlockOn(r, func() (int, error) {
		return 0, ln.Close()
	})
	MustNil(t, err)

	_, err = BlockOn(r, func() (*Socket, error) {
		return Dial(r, "tcp4", "127.0.0.1", port)
	})
	MustTrue(t, errors.Is(err, syscall.ECONNREFUSED))
	Equal(t, r.refs, 1)
}

func TestCopy(t *testing.T) {
	r := newTestReactor(t, 8)
	defer r.Close()
	dir := t.TempDir()
	src, dst := filepath.Join(dir, "src"), filepath.Join(dir, "dst")
	data := bytes.Repeat([]byte("0123456789"), 20000)
	MustNil(t, os.WriteFile(src, data, 0o644))

	n, err := BlockOn(r, func() (int64, error) {
		in, err := Open(r, src, unix.O_RDONLY, 0)
		if err != nil {
			return 0, err
		}
		defer in.Close()
		out, err := Open(r, dst, unix.O_CREAT|unix.O_WRONLY, 0o644)
		if err != nil {
			return 0, err
		}
		defer out.Close()
		return Copy(r, out, in, -1)
	})
	MustNil(t, err)
	Equal(t, n, int64(len(data)))
	got, err := os.ReadFile(dst)
	MustNil(t, err)
	MustTrue(t, bytes.Equal(got, data))

	n, err = BlockOn(r, func() (int64, error) {
		in, err := Open(r, src, unix.O_RDONLY, 0)
		if err != nil {
			return 0, err
		}
		defer in.Close()
		p, err := NewPipe(r)
		if err != nil {
			return 0, err
		}
		defer p.Close()
		if _, err = bufferCopy(r, p.Writer(), in, 100); err != nil {
			return 0, err
		}
		buf := make([]byte, 100)
		if _, err = p.Read(buf); err != nil {
			return 0, err
		}
		Equal(t, string(buf), string(data[:100]))
		return 100, nil
	})
	MustNil(t, err)
	Equal(t, n, int64(100))
}
