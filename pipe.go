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

	"golang.org/x/sys/unix"
)

// Pipe owns both ends of a pipe(2).
type Pipe struct {
	r, w ioHandle
}

// NewPipe creates a pipe bound to r.
func NewPipe(r *Reactor) (*Pipe, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		return nil, Exception(err, "pipe2")
	}
	return &Pipe{r: ioHandle{newFDHandle(r, fds[0])}, w: ioHandle{newFDHandle(r, fds[1])}}, nil
}

// Reader returns the read end, -1 once closed.
func (p *Pipe) Reader() Descriptor {
	return p.r
}

// Writer returns the write end, -1 once closed.
func (p *Pipe) Writer() Descriptor {
	return p.w
}

// Read reads from the read end.
func (p *Pipe) Read(buf []byte) (int, error) {
	return p.r.Read(buf, -1)
}

// Write writes to the write end.
func (p *Pipe) Write(buf []byte) (int, error) {
	return p.w.Write(buf, -1)
}

// CloseRead closes the read end.
func (p *Pipe) CloseRead() error {
	return p.r.Close()
}

// CloseWrite closes the write end, readers see EOF once the pipe is drained.
func (p *Pipe) CloseWrite() error {
	return p.w.Close()
}

// Close closes both ends.
func (p *Pipe) Close() error {
	return errors.Join(p.w.Close(), p.r.Close())
}

// Release closes both ends without waiting.
func (p *Pipe) Release() {
	p.w.Release()
	p.r.Release()
}
