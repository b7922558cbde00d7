package providers

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator produces the identifiers stamped onto synthesized envelopes
// and tool calls. It is injected so tests can substitute a deterministic
// sequence.
type IDGenerator interface {
	// CompletionID returns an id for a chat-completion envelope.
	CompletionID() string
	// CallID returns an id for a tool call the vendor left unnamed.
	CallID() string
}

// UUIDGenerator is the production IDGenerator.
type UUIDGenerator struct{}

func NewUUIDGenerator() UUIDGenerator {
	return UUIDGenerator{}
}

func (UUIDGenerator) CompletionID() string {
	return "chatcmpl-" + uuid.NewString()
}

func (UUIDGenerator) CallID() string {
	return "call_" + uuid.NewString()
}

// SequenceGenerator hands out monotonically numbered ids. Used in tests.
type SequenceGenerator struct {
	n atomic.Int64
}

func NewSequenceGenerator() *SequenceGenerator {
	return &SequenceGenerator{}
}

func (g *SequenceGenerator) CompletionID() string {
	return fmt.Sprintf("chatcmpl-%03d", g.n.Add(1))
}

func (g *SequenceGenerator) CallID() string {
	return fmt.Sprintf("call_%03d", g.n.Add(1))
}
