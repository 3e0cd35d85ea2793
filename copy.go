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
	"errors"
	"io"
	"runtime"
	"syscall"

	"github.com/bytedance/gopkg/lang/mcache"
	"golang.org/x/sys/unix"

	"github.com/cloudwego/uringloop/uring"
)

const copyChunk = 64 << 10

// Copy moves n bytes from src to dst, or everything up to EOF when n is negative.
// Both descriptors are used at their file cursor.
//
// The data goes through an intermediate pipe with splice and never reaches
// user space. When the kernel cannot splice src, Copy falls back to a
// pooled buffer and read/write.
func Copy(r *Reactor, dst, src Descriptor, n int64) (written int64, err error) {
	defer runtime.KeepAlive(dst)
	defer runtime.KeepAlive(src)
	if r.Supported(uring.IORING_OP_SPLICE) {
		var fallback bool
		written, fallback, err = spliceCopy(r, dst, src, n)
		if !fallback {
			return written, err
		}
	}
	return bufferCopy(r, dst, src, n)
}

// spliceCopy reports fallback when the very first splice is refused.
func spliceCopy(r *Reactor, dst, src Descriptor, n int64) (written int64, fallback bool, err error) {
	p, err := NewPipe(r)
	if err != nil {
		return 0, true, nil
	}
	defer func() {
		if cerr := p.Close(); err == nil {
			err = cerr
		}
	}()
	for first := true; n < 0 || written < n; first = false {
		chunk := int64(copyChunk)
		if n >= 0 && n-written < chunk {
			chunk = n - written
		}
		in, err := r.queue(uring.Splice(src.Fd(), -1, p.w.fd, -1, uint32(chunk), unix.SPLICE_F_MOVE), 0).Await()
		if err != nil {
			if first && (errors.Is(err, syscall.EINVAL) || errors.Is(err, ErrUnsupported)) {
				return 0, true, nil
			}
			return written, false, err
		}
		if in == 0 {
			break
		}
		for in > 0 {
			out, err := r.queue(uring.Splice(p.r.fd, -1, dst.Fd(), -1, uint32(in), unix.SPLICE_F_MOVE), 0).Await()
			if err != nil {
				return written, false, err
			}
			if out == 0 {
				return written, false, io.ErrShortWrite
			}
			in -= out
			written += int64(out)
		}
	}
	return written, false, nil
}

func bufferCopy(r *Reactor, dst, src Descriptor, n int64) (written int64, err error) {
	buf := mcache.Malloc(copyChunk)
	defer mcache.Free(buf)
	for n < 0 || written < n {
		b := buf
		if n >= 0 && n-written < int64(len(b)) {
			b = b[:n-written]
		}
		nr, err := r.queue(uring.Read(src.Fd(), b, -1), 0).Await()
		if err != nil {
			return written, err
		}
		if nr == 0 {
			break
		}
		for off := 0; off < nr; {
			nw, err := r.queue(uring.Write(dst.Fd(), b[off:nr], -1), 0).Await()
			if err != nil {
				return written, err
			}
			if nw == 0 {
				return written, io.ErrShortWrite
			}
			off += nw
			written += int64(nw)
		}
	}
	return written, nil
}
