package sloghooks

import (
	"context"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/unkn0wn-root/cachekit"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	GetEvery   uint64
	PutEvery   uint64
	EvictEvery uint64
	// Optional key redactor. Defaults to an xxhash64 of the key.
	// Set KeepKeys to log storage keys verbatim.
	Redact   func(string) string
	KeepKeys bool
}

// Handler is a cachekit.ErrorHandler writing to slog. Read failures log at
// Warn (they degrade to a miss), everything else at Error.
type Handler struct {
	l    *slog.Logger
	opts Options

	getCtr   atomic.Uint64
	putCtr   atomic.Uint64
	evictCtr atomic.Uint64
}

var _ cachekit.ErrorHandler = (*Handler)(nil)

func New(l *slog.Logger, opts Options) *Handler {
	return &Handler{l: l, opts: opts}
}

func (h *Handler) redact(k string) string {
	if h.opts.KeepKeys || k == "" {
		return k
	}
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	return strconv.FormatUint(xxhash.Sum64String(k), 16)
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Handler) HandleError(op cachekit.Op, namespace, key string, err error) {
	if h.l == nil {
		return
	}
	level := slog.LevelError
	switch op {
	case cachekit.OpGet:
		if !sample(h.opts.GetEvery, &h.getCtr) {
			return
		}
		level = slog.LevelWarn
	case cachekit.OpPut:
		if !sample(h.opts.PutEvery, &h.putCtr) {
			return
		}
	case cachekit.OpEvict:
		if !sample(h.opts.EvictEvery, &h.evictCtr) {
			return
		}
	}
	h.l.Log(context.Background(), level, "cachekit."+string(op)+"_error",
		"ns", namespace,
		"key", h.redact(key),
		"err", err)
}
