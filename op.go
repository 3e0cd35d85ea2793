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

import "github.com/cloudwego/uringloop/uring"

// Op is the handle of one submitted operation. It resolves exactly once,
// when the reactor drains the completion carrying its tag.
//
// An Op keeps the operation, and every buffer the kernel was given, reachable
// until the completion arrives, whether or not anybody awaits it.
type Op struct {
	r       *Reactor
	op      uring.Op
	tag     uint64
	res     int32
	err     error
	done    bool
	awaited bool
	co      *coroutine
}

// Await suspends until the operation completed and returns its result.
// A negative kernel result is returned as a syscall.Errno.
//
// Inside a Task the task is suspended and the reactor goes on with others.
// Outside of any Task, Await drives the reactor itself until the operation completed.
func (op *Op) Await() (int, error) {
	if op.err != nil {
		return 0, op.err
	}
	if op.awaited {
		return 0, Exception(ErrAwaited, "")
	}
	op.awaited = true
	if !op.done {
		if co := op.r.current; co != nil {
			op.co = co
			co.suspend()
		} else {
			for !op.done {
				if _, err := op.r.Poll(); err != nil {
					return 0, err
				}
			}
		}
	}
	if err := resultError(op.res); err != nil {
		return 0, err
	}
	return int(op.res), nil
}

// Done reports whether the completion has been drained.
func (op *Op) Done() bool {
	return op.done
}

// Result returns the raw completion result, only meaningful once Done.
func (op *Op) Result() int32 {
	return op.res
}

// Err returns the submission error, nil if the operation reached the ring.
func (op *Op) Err() error {
	return op.err
}

func (op *Op) fail(err error) {
	op.err = err
	op.done = true
	op.op = nil
}

func (op *Op) complete(res int32) {
	op.res = res
	op.done = true
	op.op = nil
}

// opSlab maps the user data of in-flight entries to their Op.
// A tag is (generation<<32 | index+1), so a slot reused for a later operation
// never matches an earlier tag, and tag 0 is never produced.
type opSlab struct {
	slots []opSlot
	first int32 // head of the free list, -1 if empty
	live  int
}

type opSlot struct {
	gen  uint32
	op   *Op
	next int32
}

const slabBlock = 64

func newOpSlab() opSlab {
	return opSlab{first: -1}
}

func (s *opSlab) put(op *Op) uint64 {
	if s.first < 0 {
		index := int32(len(s.slots))
		for i := int32(0); i < slabBlock; i++ {
			s.slots = append(s.slots, opSlot{next: s.first})
			s.first = index + i
		}
	}
	idx := s.first
	slot := &s.slots[idx]
	s.first = slot.next
	slot.op = op
	s.live++
	return uint64(slot.gen)<<32 | uint64(idx+1)
}

// take removes and returns the Op of tag, nil when the tag is stale or unknown.
func (s *opSlab) take(tag uint64) *Op {
	idx := int64(tag&0xFFFFFFFF) - 1
	if idx < 0 || idx >= int64(len(s.slots)) {
		return nil
	}
	slot := &s.slots[idx]
	if slot.op == nil || slot.gen != uint32(tag>>32) {
		return nil
	}
	op := slot.op
	slot.op = nil
	slot.gen++
	slot.next = s.first
	s.first = int32(idx)
	s.live--
	return op
}

// ops returns the Ops still in flight.
func (s *opSlab) ops() []*Op {
	ops := make([]*Op, 0, s.live)
	for i := range s.slots {
		if s.slots[i].op != nil {
			ops = append(ops, s.slots[i].op)
		}
	}
	return ops
}
