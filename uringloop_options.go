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
	"time"

	"github.com/cloudwego/uringloop/uring"
)

// Option configures a Reactor.
type Option struct {
	f func(*options)
}

type options struct {
	setupFlags      uint32
	attachWQ        int
	sqThreadIdle    time.Duration
	sqThreadCPU     int
	cqSize          uint32
	onDetachedError func(error)
}

func newOptions(ops []Option) *options {
	opts := &options{attachWQ: -1, sqThreadCPU: -1}
	for _, do := range ops {
		do.f(opts)
	}
	return opts
}

// setupOps translates the options into ring setup parameters.
func (o *options) setupOps() []uring.SetupOp {
	var ops []uring.SetupOp
	flags := o.setupFlags &^ (uring.IORING_SETUP_SQPOLL | uring.IORING_SETUP_SQ_AFF | uring.IORING_SETUP_CQSIZE | uring.IORING_SETUP_ATTACH_WQ)
	if flags != 0 {
		ops = append(ops, uring.SetupFlags(flags))
	}
	if o.setupFlags&uring.IORING_SETUP_SQPOLL != 0 {
		ops = append(ops, uring.SQPoll(o.sqThreadIdle))
		if o.sqThreadCPU >= 0 {
			ops = append(ops, uring.SQAff(uint32(o.sqThreadCPU)))
		}
	}
	if o.cqSize > 0 {
		ops = append(ops, uring.CQSize(o.cqSize))
	}
	if o.attachWQ >= 0 {
		ops = append(ops, uring.AttachWQ(uint32(o.attachWQ)))
	}
	return ops
}

// WithSetupFlags ors raw IORING_SETUP_* flags into the ring setup.
func WithSetupFlags(flags uint32) Option {
	return Option{func(op *options) {
		op.setupFlags |= flags
	}}
}

// WithAttachWQ shares the kernel async worker queue of the ring behind fd,
// usually the Fd of another Reactor.
func WithAttachWQ(fd int) Option {
	return Option{func(op *options) {
		op.attachWQ = fd
	}}
}

// WithSQPoll starts a kernel thread polling the submission queue,
// it goes to sleep after idle without work.
func WithSQPoll(idle time.Duration) Option {
	return Option{func(op *options) {
		op.setupFlags |= uring.IORING_SETUP_SQPOLL
		op.sqThreadIdle = idle
	}}
}

// WithSQAffinity pins the SQPOLL thread to cpu, it implies WithSQPoll if not given.
func WithSQAffinity(cpu int) Option {
	return Option{func(op *options) {
		op.setupFlags |= uring.IORING_SETUP_SQPOLL
		op.sqThreadCPU = cpu
	}}
}

// WithCQSize sets the completion queue size, by default it is twice the submission queue.
func WithCQSize(n uint32) Option {
	return Option{func(op *options) {
		op.cqSize = n
	}}
}

// WithOnDetachedError registers a hook receiving the error of every detached Task
// that finished with one. The hook runs through the configured runner, never inside the reactor.
// Without it such errors are discarded.
func WithOnDetachedError(f func(error)) Option {
	return Option{func(op *options) {
		op.onDetachedError = f
	}}
}
