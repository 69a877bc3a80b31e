package queue

import (
	cryptorand "crypto/rand"
	"fmt"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// idGenerator produces lexicographically sortable, time-ordered message
// identifiers with no cross-process coordination.
//
// Layout, most significant bits first: 48-bit millisecond timestamp, 4-bit
// version tag, 12-bit sub-millisecond fraction, 2-bit variant tag, 14-bit
// sequence, 48 random bits. The sequence increments whenever two identifiers
// would land in the same sub-millisecond slot, so identifiers generated by
// one process always sort in generation order even across clock regressions.
// Identifiers from different processes sort by wall clock only, so
// cross-process claim ordering is approximate.
type idGenerator struct {
	mu sync.Mutex
	// lastTick is the rendered timestamp of the previous identifier,
	// millis<<12 | frac.
	lastTick uint64
	seq      uint16
}

const (
	idVersion = 0x7
	seqMax    = 0x3fff // 14 bits
)

func newIDGenerator() *idGenerator {
	return &idGenerator{}
}

// next returns a new identifier in canonical fixed-width hex form.
func (g *idGenerator) next() string {
	now := uint64(time.Now().UnixNano())
	tick := now / uint64(time.Millisecond) << 12
	tick |= now % uint64(time.Millisecond) << 12 / uint64(time.Millisecond)

	g.mu.Lock()
	switch {
	case tick > g.lastTick:
		g.lastTick = tick
		g.seq = 0
	case g.seq < seqMax:
		tick = g.lastTick
		g.seq++
	default:
		// Sequence exhausted within one slot; borrow the next one.
		g.lastTick++
		tick = g.lastTick
		g.seq = 0
	}
	seq := g.seq
	g.mu.Unlock()

	millis := tick >> 12
	frac := tick & 0xfff

	var id uuid.UUID
	id[0] = byte(millis >> 40)
	id[1] = byte(millis >> 32)
	id[2] = byte(millis >> 24)
	id[3] = byte(millis >> 16)
	id[4] = byte(millis >> 8)
	id[5] = byte(millis)
	id[6] = idVersion<<4 | byte(frac>>8)&0x0f
	id[7] = byte(frac)
	id[8] = 0x80 | byte(seq>>8)&0x3f
	id[9] = byte(seq)
	fillRandom(id[10:])

	return id.String()
}

// fillRandom sources bits from the OS random source, falling back to a
// pseudo-random source when it is unavailable.
func fillRandom(p []byte) {
	if _, err := cryptorand.Read(p); err == nil {
		return
	}
	for i := range p {
		p[i] = byte(mathrand.Uint32())
	}
}

// NormalizeID canonicalizes a message identifier supplied by a caller,
// accepting any casing the hex encoding allows.
func NormalizeID(value string) (string, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return "", fmt.Errorf("parse message id %q: %w", value, err)
	}
	return id.String(), nil
}
