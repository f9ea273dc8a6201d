package ids

import (
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	nodeBits = 10
	seqBits  = 12
	maxNode  = 1<<nodeBits - 1
	seqMask  = 1<<seqBits - 1
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

// Generator hands out time-ordered 63-bit ids: 41 bits of milliseconds since
// epoch, 10 bits of node id, 12 bits of sequence.
type Generator struct {
	mu     sync.Mutex
	node   int64
	seq    int64
	lastMS int64
	now    func() int64
}

func NewGenerator(node int64) *Generator {
	if node < 0 || node > maxNode {
		node = 1
	}
	return &Generator{node: node, now: func() int64 { return time.Now().UnixMilli() }}
}

var defaultGen = NewGenerator(1)

// SetNodeID changes the node of the process-wide generator. Call it from main
// before serving.
func SetNodeID(node int64) {
	defaultGen.mu.Lock()
	defer defaultGen.mu.Unlock()
	if node < 0 || node > maxNode {
		node = 1
	}
	defaultGen.node = node
}

// NodeFromName maps a node name such as "gateway-1" onto the node id range.
func NodeFromName(name string) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum32() % (maxNode + 1))
}

func Generate() int64 { return defaultGen.Next() }

func GenerateString() string { return strconv.FormatInt(Generate(), 10) }

// NewEventID returns a random id for events that arrive without one.
func NewEventID() string { return uuid.NewString() }

func (g *Generator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	for {
		now := g.now()
		if now < g.lastMS {
			// clock moved backwards
			time.Sleep(time.Duration(g.lastMS-now) * time.Millisecond)
			continue
		}
		if now == g.lastMS {
			g.seq = (g.seq + 1) & seqMask
			if g.seq == 0 {
				for now <= g.lastMS {
					now = g.now()
				}
			}
		} else {
			g.seq = 0
		}
		g.lastMS = now

		ts := (now - epoch) & (1<<41 - 1)
		return ts<<(nodeBits+seqBits) | g.node<<seqBits | g.seq
	}
}
