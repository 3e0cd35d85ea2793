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
	"fmt"
	"syscall"
)

// extends syscall.Errno, the range is 0x100-0x1FF
const (
	// ErrUnsupported is returned when the running kernel does not implement the requested opcode.
	ErrUnsupported = syscall.Errno(0x101)
	// ErrSQExhausted is returned when no submission entry frees up after one flush of the ring.
	ErrSQExhausted = syscall.Errno(0x102)
	// ErrReactorClosed is returned when the reactor has already been torn down.
	ErrReactorClosed = syscall.Errno(0x103)
	// ErrNothingInflight is returned by a blocking Poll that has nothing to wait for.
	ErrNothingInflight = syscall.Errno(0x104)
	// ErrReentrantPoll is returned when Poll is called while the reactor is draining completions.
	ErrReentrantPoll = syscall.Errno(0x105)
	// ErrAwaited is returned when an Op is awaited a second time.
	ErrAwaited = syscall.Errno(0x106)
	// ErrNoAddress is returned when address resolution yields no usable candidate.
	ErrNoAddress = syscall.Errno(0x107)
)

const ErrnoMask = 0xFF

// Exception wraps err with a short context suffix, errors.Is still matches the original errno.
func Exception(err error, suffix string) error {
	no, ok := err.(syscall.Errno)
	if !ok {
		if suffix == "" {
			return err
		}
		return fmt.Errorf("%w %s", err, suffix)
	}
	return &exception{no: no, suffix: suffix}
}

type exception struct {
	no     syscall.Errno
	suffix string
}

func (e *exception) Error() string {
	var s string
	if int(e.no)&0x100 != 0 {
		s = errnos[int(e.no)&ErrnoMask]
	}
	if s == "" {
		s = e.no.Error()
	}
	if e.suffix != "" {
		s += " " + e.suffix
	}
	return s
}

func (e *exception) Is(target error) bool {
	if e == target {
		return true
	}
	if e.no == target {
		return true
	}
	return e.no.Is(target)
}

func (e *exception) Unwrap() error {
	return e.no
}

// resultError converts a negative completion result into an error.
func resultError(res int32) error {
	if res >= 0 {
		return nil
	}
	return syscall.Errno(-res)
}

var errnos = [...]string{
	ErrnoMask & ErrUnsupported:     "operation not supported by io_uring",
	ErrnoMask & ErrSQExhausted:     "failed to allocate sqe",
	ErrnoMask & ErrReactorClosed:   "reactor has been closed",
	ErrnoMask & ErrNothingInflight: "nothing in flight to wait for",
	ErrnoMask & ErrReentrantPoll:   "poll called while draining completions",
	ErrnoMask & ErrAwaited:         "operation already awaited",
	ErrnoMask & ErrNoAddress:       "no usable address",
}
