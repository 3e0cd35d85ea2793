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

import "fmt"

type coState int32

const (
	coCreated coState = iota
	coRunning
	coSuspended
	coFinished
)

// coroutine runs a function on its own goroutine, but only while its resumer
// is parked: control is handed back and forth over wake and park, so exactly
// one side runs at any time.
type coroutine struct {
	r        *Reactor
	body     func()
	state    coState
	wake     chan struct{}
	park     chan struct{}
	waiter   *coroutine // suspended in Join on this coroutine
	joined   bool
	detached bool
	errOf    func() error
	panicked interface{}
}

func newCoroutine(r *Reactor, body func()) *coroutine {
	return &coroutine{
		r:    r,
		body: body,
		wake: make(chan struct{}),
		park: make(chan struct{}),
	}
}

func (co *coroutine) run() {
	defer func() {
		if p := recover(); p != nil {
			co.panicked = p
		}
		co.state = coFinished
		co.park <- struct{}{}
	}()
	co.body()
}

// suspend gives control back to the resumer and blocks until resumed again.
func (co *coroutine) suspend() {
	co.state = coSuspended
	co.park <- struct{}{}
	<-co.wake
}

// resume runs co until it suspends or finishes.
func (r *Reactor) resume(co *coroutine) {
	switch co.state {
	case coRunning, coFinished:
		panic(fmt.Sprintf("uringloop: resume of a coroutine in state %d", co.state))
	}
	prev := r.current
	r.current = co
	if co.state == coCreated {
		co.state = coRunning
		r.acquire()
		r.tasks++
		go co.run()
	} else {
		co.state = coRunning
		co.wake <- struct{}{}
	}
	<-co.park
	r.current = prev
	if co.state == coFinished {
		r.finish(co)
	}
}

func (r *Reactor) finish(co *coroutine) {
	r.tasks--
	if co.panicked != nil {
		r.release()
		panic(co.panicked)
	}
	if co.detached && co.errOf != nil {
		r.reportDetached(co.errOf())
	}
	if w := co.waiter; w != nil {
		co.waiter = nil
		r.resume(w)
	}
	r.release()
}

// Task is a lazily started computation bound to a Reactor. Nothing runs until
// the task is joined or detached. A Task suspends whenever it awaits an Op and
// is resumed by the Poll that drains the completion.
//
// A panic inside a Task is re-raised on the goroutine that resumed it.
type Task[T any] struct {
	co  *coroutine
	val T
	err error
}

// NewTask binds fn to r without running it.
func NewTask[T any](r *Reactor, fn func() (T, error)) *Task[T] {
	t := &Task[T]{}
	t.co = newCoroutine(r, func() {
		t.val, t.err = fn()
	})
	t.co.errOf = func() error { return t.err }
	return t
}

// Join starts the task if needed and waits for its result.
//
// Called from inside another Task, the caller suspends until t finished.
// Called from the top level, Join drives the reactor with Poll until t finished.
// Only one caller may wait on a Task, a detached Task cannot be joined.
func (t *Task[T]) Join() (val T, err error) {
	co, r := t.co, t.co.r
	if co.detached {
		return val, Exception(ErrAwaited, "task detached")
	}
	if co.state == coCreated {
		if r.closed {
			return val, Exception(ErrReactorClosed, "")
		}
		r.resume(co)
	}
	if co.state != coFinished {
		if co.joined {
			return val, Exception(ErrAwaited, "task joined")
		}
		co.joined = true
		if cur := r.current; cur != nil {
			if cur == co {
				return val, Exception(ErrAwaited, "task joins itself")
			}
			co.waiter = cur
			cur.suspend()
		} else {
			for co.state != coFinished {
				if _, err = r.Poll(); err != nil {
					co.joined = false
					return val, err
				}
			}
		}
	}
	return t.val, t.err
}

// Detach starts the task and gives its completion up to the reactor.
// Its result is dropped. A non-nil error reaches the hook installed with
// WithOnDetachedError and is discarded silently otherwise.
// A panic is not dropped: it is re-raised on the goroutine driving the reactor,
// from Poll or from whichever call resumed the task.
func (t *Task[T]) Detach() {
	co := t.co
	if co.detached {
		return
	}
	co.detached = true
	if co.state == coCreated && !co.r.closed {
		co.r.resume(co)
	}
}

// Done reports whether the task finished.
func (t *Task[T]) Done() bool {
	return t.co.state == coFinished
}

// Go runs fn as a detached Task.
func Go(r *Reactor, fn func() error) {
	NewTask(r, func() (struct{}, error) {
		return struct{}{}, fn()
	}).Detach()
}

// BlockOn runs fn as a Task and drives r until it returns.
func BlockOn[T any](r *Reactor, fn func() (T, error)) (T, error) {
	return NewTask(r, fn).Join()
}
