package conn

import "time"

// outgoingMessage is the per-record bookkeeping for one queued,
// transport-framed message. Lifetime: created on Send, destroyed
// immediately after first transmission when RequireAck is false, or
// upon receipt of a matching MessageAck when RequireAck is true
// (invariant I1).
type outgoingMessage struct {
	MessageID       uint16
	Bytes           []byte
	RequireAck      bool
	sent            bool
	lastSendAttempt time.Time
}

func (o *outgoingMessage) length() int { return len(o.Bytes) }

// eligibleToSend reports whether this record may be included in the
// next outbound datagram. Non-reliable records are always eligible
// (they are sent exactly once then dropped); reliable records are
// eligible on their first attempt, and afterwards only once the
// resend window has elapsed.
//
// The comparison is `now >= lastSendAttempt + window`, not a strict
// `>` — a resend-eligibility path in the predecessor implementation
// used `>` on one branch and `>=` on another; this spec mandates `>=`
// uniformly.
func (o *outgoingMessage) eligibleToSend(now time.Time, window time.Duration) bool {
	if !o.RequireAck {
		return true
	}
	if !o.sent {
		return true
	}
	return !now.Before(o.lastSendAttempt.Add(window))
}
