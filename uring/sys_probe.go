// Copyright 2022 CloudWeGo Authors
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

package uring

// Probe means Probing supported capabilities, it mirrors struct io_uring_probe.
type Probe struct {
	lastOp uint8 // last opcode supported
	opsLen uint8 // length of ops[] array below
	resv   uint16
	resv2  [3]uint32
	ops    [256]probeOp
}

// probeOp is params of Probe
type probeOp struct {
	op    uint8
	resv  uint8
	flags uint16 // IO_URING_OP_* flags
	resv2 uint32
}

// IO_URING_OP_SUPPORTED means OpFlags whether io_uring supported or not
const IO_URING_OP_SUPPORTED uint16 = 1 << 0

// NewProbe builds a probe that reports exactly ops as supported.
func NewProbe(ops ...uint8) *Probe {
	p := &Probe{}
	for _, op := range ops {
		p.ops[op].op = op
		p.ops[op].flags |= IO_URING_OP_SUPPORTED
		if op > p.lastOp {
			p.lastOp = op
		}
	}
	p.opsLen = p.lastOp + 1
	return p
}

// LastOp returns the last opcode known to the kernel.
func (p *Probe) LastOp() uint8 {
	return p.lastOp
}

// Supported implements Probe
func (p *Probe) Supported(op uint8) bool {
	if op > p.lastOp {
		return false
	}
	return p.ops[op].flags&IO_URING_OP_SUPPORTED != 0
}
