package someip

import (
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultReassemblyTimeout is how long an incomplete reassembly context is
// kept before Cleanup discards it.
const DefaultReassemblyTimeout = 5 * time.Second

// DefaultMaxReassemblyContexts and DefaultMaxReassemblyBytes bound a
// TpReassembler created without explicit limits (§5, "Reassembly memory
// bound"): a flood of distinct (Service, Method, Client, Session) keys,
// or a few keys fed very large segmented messages, must not grow the
// reassembler without bound between Cleanup runs.
const (
	DefaultMaxReassemblyContexts = 256
	DefaultMaxReassemblyBytes    = 4 << 20 // 4 MiB buffered across all contexts
)

type reassemblyKey struct {
	Service ServiceId
	Method  MethodId
	Client  ClientId
	Session SessionId
}

type reassemblyContext struct {
	header      Header
	segments    map[uint32][]byte // keyed by offset in 16-byte units
	totalLength uint32
	haveTotal   bool
	createdAt   time.Time
	bufferedLen int // sum of len(payload) across segments, tracked incrementally
}

// TpReassembler reassembles SOME/IP-TP segments back into complete
// messages, tracking one context per (ServiceId, MethodId, ClientId,
// SessionId) tuple and garbage-collecting contexts that time out or that
// push the reassembler past its configured ceilings.
type TpReassembler struct {
	mu          sync.Mutex
	timeout     time.Duration
	maxContexts int
	maxBytes    int
	contexts    map[reassemblyKey]*reassemblyContext
	bufferedLen int // sum of bufferedLen across all contexts
}

// NewTpReassembler creates a reassembler using DefaultReassemblyTimeout and
// the default context/byte ceilings.
func NewTpReassembler() *TpReassembler {
	return NewTpReassemblerWithTimeout(DefaultReassemblyTimeout)
}

// NewTpReassemblerWithTimeout creates a reassembler with a custom context
// timeout and the default context/byte ceilings.
func NewTpReassemblerWithTimeout(timeout time.Duration) *TpReassembler {
	return NewTpReassemblerWithLimits(timeout, DefaultMaxReassemblyContexts, DefaultMaxReassemblyBytes)
}

// NewTpReassemblerWithLimits creates a reassembler with a custom timeout,
// maximum simultaneous contexts, and maximum total buffered bytes. A limit
// of 0 or less disables that particular ceiling.
func NewTpReassemblerWithLimits(timeout time.Duration, maxContexts, maxBytes int) *TpReassembler {
	return &TpReassembler{
		timeout:     timeout,
		maxContexts: maxContexts,
		maxBytes:    maxBytes,
		contexts:    make(map[reassemblyKey]*reassemblyContext),
	}
}

func keyFor(h Header) reassemblyKey {
	return reassemblyKey{Service: h.ServiceId, Method: h.MethodId, Client: h.ClientId, Session: h.SessionId}
}

// Feed adds one segment to the reassembler. It returns the complete
// message once every segment for its key has arrived, or nil if more
// segments are still needed.
func (r *TpReassembler) Feed(seg *TpSegment) (*Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := keyFor(seg.Header)
	ctx, ok := r.contexts[key]
	if !ok {
		if r.maxContexts > 0 && len(r.contexts) >= r.maxContexts {
			r.evictOldestLocked(key, "max_contexts")
		}
		ctx = &reassemblyContext{
			header:    seg.Header,
			segments:  make(map[uint32][]byte),
			createdAt: time.Now(),
		}
		r.contexts[key] = ctx
		reassemblyContextsGauge.Set(float64(len(r.contexts)))
	}

	if existing, ok := ctx.segments[seg.TpHeader.Offset]; ok {
		if string(existing) != string(seg.Payload) {
			log.Warnf("[SOMEIP-TP] overlapping segment at offset %d for service 0x%04X disagrees with previously stored bytes", seg.TpHeader.Offset, uint16(seg.Header.ServiceId))
		}
	} else {
		if r.maxBytes > 0 {
			for r.bufferedLen+len(seg.Payload) > r.maxBytes && r.evictOldestLocked(key, "max_bytes") {
			}
		}
		ctx.segments[seg.TpHeader.Offset] = seg.Payload
		ctx.bufferedLen += len(seg.Payload)
		r.bufferedLen += len(seg.Payload)
	}

	if !seg.TpHeader.More {
		ctx.totalLength = seg.TpHeader.ByteOffset() + uint32(len(seg.Payload))
		ctx.haveTotal = true
	}

	msg, complete := tryComplete(ctx)
	if complete {
		r.discardLocked(key)
		return msg, nil
	}
	return nil, nil
}

// evictOldestLocked drops the oldest context by createdAt, other than
// keep, incrementing the drop counter with the given reason. Returns
// false if there was nothing evictable (every remaining context is keep).
func (r *TpReassembler) evictOldestLocked(keep reassemblyKey, reason string) bool {
	var oldestKey reassemblyKey
	var oldest *reassemblyContext
	for k, ctx := range r.contexts {
		if k == keep {
			continue
		}
		if oldest == nil || ctx.createdAt.Before(oldest.createdAt) {
			oldestKey, oldest = k, ctx
		}
	}
	if oldest == nil {
		return false
	}
	log.Warnf("[SOMEIP-TP] dropping reassembly context for service 0x%04X session 0x%04X: %s ceiling exceeded",
		uint16(oldestKey.Service), uint16(oldestKey.Session), reason)
	reassemblyContextsDroppedTotal.WithLabelValues(reason).Inc()
	r.discardLocked(oldestKey)
	return true
}

// discardLocked removes a context and accounts its buffered bytes back
// out of the reassembler's running total. Caller holds r.mu.
func (r *TpReassembler) discardLocked(key reassemblyKey) {
	if ctx, ok := r.contexts[key]; ok {
		r.bufferedLen -= ctx.bufferedLen
		delete(r.contexts, key)
	}
	reassemblyContextsGauge.Set(float64(len(r.contexts)))
}

// tryComplete checks whether ctx's stored segments contiguously cover
// [0, totalLength) and, if so, assembles and returns the complete message.
func tryComplete(ctx *reassemblyContext) (*Message, bool) {
	if !ctx.haveTotal {
		return nil, false
	}

	offsets := make([]uint32, 0, len(ctx.segments))
	for off := range ctx.segments {
		offsets = append(offsets, off)
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })

	if len(offsets) == 0 || offsets[0] != 0 {
		return nil, false
	}

	var assembled []byte
	var bytesSoFar uint32
	for _, off := range offsets {
		if off*16 != bytesSoFar {
			return nil, false
		}
		payload := ctx.segments[off]
		assembled = append(assembled, payload...)
		bytesSoFar += uint32(len(payload))
	}

	if bytesSoFar != ctx.totalLength {
		return nil, false
	}

	h := ctx.header
	h.MessageType = h.MessageType.ToBase()
	h.Length = uint32(8 + len(assembled))
	return &Message{Header: h, Payload: assembled}, true
}

// Cleanup deletes contexts older than the reassembler's timeout and
// returns how many were removed.
func (r *TpReassembler) Cleanup() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, ctx := range r.contexts {
		if now.Sub(ctx.createdAt) > r.timeout {
			r.bufferedLen -= ctx.bufferedLen
			delete(r.contexts, key)
			removed++
		}
	}
	if removed > 0 {
		reassemblyContextsGauge.Set(float64(len(r.contexts)))
	}
	return removed
}

// ActiveContexts returns the number of reassembly contexts currently in
// progress.
func (r *TpReassembler) ActiveContexts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.contexts)
}
