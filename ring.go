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
	"syscall"

	"github.com/cloudwego/uringloop/uring"
)

// ring is the part of *uring.URing the reactor drives.
type ring interface {
	NextSQE() *uring.URingSQE
	Submit() (uint, error)
	SubmitAndWait(nr uint32) (uint, error)
	PeekBatchCQE(cqes []*uring.URingCQE) int
	Advance(nr uint32)
	Probe() (*uring.Probe, error)
	Features() uint32
	CQEntries() uint32
	Fd() int
	Close() error

	RegisterFiles(fds []int32) error
	UnRegisterFiles() error
	UpdateFiles(offset uint32, fds []int32) error
	RegisterBuffers(buffers []syscall.Iovec) error
	UnRegisterBuffers() error
}

var _ ring = (*uring.URing)(nil)

// OpSet is the set of opcodes supported by the running kernel.
type OpSet [4]uint64

// Has reports whether op is in the set.
func (s *OpSet) Has(op uint8) bool {
	return s[op>>6]&(1<<(op&63)) != 0
}

func (s *OpSet) set(op uint8) {
	s[op>>6] |= 1 << (op & 63)
}

// Feature is the set of optional ring features reported at setup.
type Feature uint32

// Optional ring features.
const (
	FeatSingleMmap     = Feature(uring.IORING_FEAT_SINGLE_MMAP)
	FeatNoDrop         = Feature(uring.IORING_FEAT_NODROP)
	FeatSubmitStable   = Feature(uring.IORING_FEAT_SUBMIT_STABLE)
	FeatRWCurPos       = Feature(uring.IORING_FEAT_RW_CUR_POS)
	FeatCurPersonality = Feature(uring.IORING_FEAT_CUR_PERSONALITY)
	FeatFastPoll       = Feature(uring.IORING_FEAT_FAST_POLL)
	FeatPoll32Bits     = Feature(uring.IORING_FEAT_POLL_32BITS)
	FeatSQPollNonfixed = Feature(uring.IORING_FEAT_SQPOLL_NONFIXED)
	FeatExtArg         = Feature(uring.IORING_FEAT_EXT_ARG)
	FeatNativeWorkers  = Feature(uring.IORING_FEAT_NATIVE_WORKERS)
	FeatRsrcTags       = Feature(uring.IORING_FEAT_RSRC_TAGS)
	FeatCQESkip        = Feature(uring.IORING_FEAT_CQE_SKIP)
	FeatLinkedFile     = Feature(uring.IORING_FEAT_LINKED_FILE)
)

// Has reports whether every feature in f is present.
func (s Feature) Has(f Feature) bool {
	return s&f == f
}
