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
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/bytedance/gopkg/lang/fastrand"
	"golang.org/x/sync/errgroup"
)

// LoadBalance sets the load balancing method of a Group.
type LoadBalance int

const (
	// RoundRobin picks the reactors in turn.
	RoundRobin LoadBalance = iota
	// Random picks a reactor at random.
	Random
)

// Group is a set of independent reactors sharing one kernel async worker queue,
// usually one per OS thread. Reactors of a group share no other state.
type Group struct {
	reactors []*Reactor
	balance  LoadBalance
	next     uint32
}

// NewGroup creates n reactors, every reactor after the first attaches to the
// worker queue of the first one.
func NewGroup(n int, entries uint32, ops ...Option) (*Group, error) {
	if n < 1 {
		return nil, fmt.Errorf("invalid number of reactors[%d]", n)
	}
	g := &Group{reactors: make([]*Reactor, 0, n)}
	for i := 0; i < n; i++ {
		opts := ops
		if i > 0 {
			opts = append(ops[:len(ops):len(ops)], WithAttachWQ(g.reactors[0].Fd()))
		}
		r, err := New(entries, opts...)
		if err != nil {
			_ = g.Close()
			return nil, err
		}
		g.reactors = append(g.reactors, r)
	}
	return g, nil
}

// SetLoadBalance sets the method used by Pick.
func (g *Group) SetLoadBalance(lb LoadBalance) {
	g.balance = lb
}

// Reactors returns the reactors of the group.
func (g *Group) Reactors() []*Reactor {
	return g.reactors
}

// Pick selects a reactor based on the LoadBalance.
func (g *Group) Pick() *Reactor {
	n := len(g.reactors)
	if n == 1 {
		return g.reactors[0]
	}
	if g.balance == Random {
		return g.reactors[fastrand.Intn(n)]
	}
	return g.reactors[int(atomic.AddUint32(&g.next, 1)-1)%n]
}

// Run calls fn once per reactor, each on its own goroutine locked to an OS thread,
// and waits for all of them. The first error cancels ctx for the others and is returned.
// fn becomes the driver of its reactor for the duration of the call.
func (g *Group) Run(ctx context.Context, fn func(ctx context.Context, r *Reactor) error) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, r := range g.reactors {
		r := r
		eg.Go(func() error {
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()
			return fn(ctx, r)
		})
	}
	return eg.Wait()
}

// Close closes every reactor.
func (g *Group) Close() error {
	var first error
	for _, r := range g.reactors {
		if err := r.Close(); err != nil {
			logger.Printf("URINGLOOP: reactor close failed: %v", err)
			if first == nil {
				first = err
			}
		}
	}
	g.reactors = nil
	return first
}
