package conn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUnreliableOutgoingAlwaysEligible(t *testing.T) {
	o := &outgoingMessage{RequireAck: false}
	now := time.Unix(0, 0)
	assert.True(t, o.eligibleToSend(now, time.Hour))
}

func TestReliableOutgoingEligibleBeforeFirstSend(t *testing.T) {
	o := &outgoingMessage{RequireAck: true}
	now := time.Unix(0, 0)
	assert.True(t, o.eligibleToSend(now, time.Hour))
}

func TestReliableOutgoingWaitsForResendWindow(t *testing.T) {
	base := time.Unix(1000, 0)
	o := &outgoingMessage{RequireAck: true, sent: true, lastSendAttempt: base}
	window := 100 * time.Millisecond

	assert.False(t, o.eligibleToSend(base.Add(50*time.Millisecond), window))
	// The boundary is inclusive: spec mandates >=, not >.
	assert.True(t, o.eligibleToSend(base.Add(window), window))
	assert.True(t, o.eligibleToSend(base.Add(window+time.Millisecond), window))
}
