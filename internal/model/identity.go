package model

import "time"

// ResolvedIdentity is the outcome of resolving a CDR row: who answered and
// which external number was involved. Agent and Customer are either valid
// digit strings or the Unknown sentinel, never partially-validated values.
type ResolvedIdentity struct {
	// Agent is the internal extension that handled the call, or Unknown.
	Agent string
	// Customer is the external party's 10- or 11-digit number, or Unknown.
	Customer string
	// Timestamp is the best-guess call time (answer > start > end stamp).
	// Nil when the CDR carried no usable stamp; callers fall back to the
	// recording's modification time.
	Timestamp *time.Time

	// AgentSource and CustomerSource name the CDR field that yielded each
	// value, for the audit plan.
	AgentSource    string
	CustomerSource string
}

// AgentResolved reports whether an agent extension was recovered.
func (r ResolvedIdentity) AgentResolved() bool {
	return r.Agent != "" && r.Agent != Unknown
}

// CustomerResolved reports whether an external number was recovered.
func (r ResolvedIdentity) CustomerResolved() bool {
	return r.Customer != "" && r.Customer != Unknown
}
