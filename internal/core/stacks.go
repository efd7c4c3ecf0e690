package core

import (
	"radworklist/internal/dicomblob"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/opencontainers/go-digest"
)

const (
	stackCacheTTL      = 10 * time.Minute
	stackCacheCapacity = 32
)

// stackKey names one version of an exam's blob. A replaced blob gets a new
// key, so its old ordering can only age out.
type stackKey struct {
	examId int64
	digest digest.Digest
}

type stackCache = ttlcache.Cache[stackKey, []dicomblob.StackImage]

func newStackCache() *stackCache {
	return ttlcache.New[stackKey, []dicomblob.StackImage](
		ttlcache.WithTTL[stackKey, []dicomblob.StackImage](stackCacheTTL),
		ttlcache.WithCapacity[stackKey, []dicomblob.StackImage](stackCacheCapacity),
	)
}

func (s *WorklistServer) cachedStack(examId int64, dgst digest.Digest) ([]dicomblob.StackImage, bool) {
	if s.stacks == nil {
		return nil, false
	}
	item := s.stacks.Get(stackKey{examId: examId, digest: dgst})
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

func (s *WorklistServer) cacheStack(examId int64, dgst digest.Digest, images []dicomblob.StackImage) {
	if s.stacks == nil {
		return
	}
	s.stacks.Set(stackKey{examId: examId, digest: dgst}, images, ttlcache.DefaultTTL)
}

// forgetStacks drops every cached ordering of the exam.
func (s *WorklistServer) forgetStacks(examId int64) {
	if s.stacks == nil {
		return
	}
	for _, key := range s.stacks.Keys() {
		if key.examId == examId {
			s.stacks.Delete(key)
		}
	}
}
