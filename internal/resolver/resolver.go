// Package resolver recovers the answering agent and external party from a
// call-detail record.
package resolver

import (
	"strings"

	"github.com/pbx-ops/recsync/internal/model"
)

// Resolver derives identity from a CDR row. Implementations are pure and
// deterministic for a given row.
type Resolver interface {
	Resolve(cdr *model.CDR) model.ResolvedIdentity
}

// New returns the resolver for the configured strategy: "fulltext" for the
// full-field extension scan, anything else for the default field-priority
// resolver. known is the domain's extension directory.
func New(strategy string, known map[string]bool) Resolver {
	if strings.EqualFold(strategy, "fulltext") {
		return &FullTextResolver{known: known}
	}
	return &FieldResolver{known: known}
}

// FieldResolver resolves the agent through a prioritized list of CDR
// fields, first match wins:
//
//  1. the joined answering-extension field
//  2. the account code, when purely numeric
//  3. the presence identifier, digits before the "@"
//  4. the SIP to-user (inbound) or from-user (outbound)
//  5. direction-conditioned fallback against the known-extension directory
type FieldResolver struct {
	known map[string]bool
}

// NewFieldResolver creates the default resolver over a known-extension set.
func NewFieldResolver(known map[string]bool) *FieldResolver {
	return &FieldResolver{known: known}
}

// Resolve derives agent, customer, and best-guess timestamp from the row.
func (r *FieldResolver) Resolve(cdr *model.CDR) model.ResolvedIdentity {
	agent, agentSrc := r.resolveAgent(cdr)
	customer, custSrc := deriveCustomer(cdr, agent)

	return model.ResolvedIdentity{
		Agent:          agent,
		AgentSource:    agentSrc,
		Customer:       customer,
		CustomerSource: custSrc,
		Timestamp:      cdr.BestStamp(),
	}
}

func (r *FieldResolver) resolveAgent(cdr *model.CDR) (string, string) {
	// (1) extension already joined in the row
	if ext := strings.TrimSpace(cdr.Extension); allDigits(ext) {
		return ext, "extension"
	}

	// (2) purely numeric account code
	if acct := strings.TrimSpace(cdr.AccountCode); allDigits(acct) {
		return acct, "accountcode"
	}

	// (3) presence identifier, leading digits before "@"
	if pres := strings.TrimSpace(cdr.PresenceID); pres != "" {
		head, _, _ := strings.Cut(pres, "@")
		if allDigits(head) {
			return head, "presence_id"
		}
	}

	// (4) SIP-layer user fields by direction
	direction := cdr.NormalizedDirection()
	var sipUser, sipField string
	if direction == model.DirectionOutbound {
		sipUser, sipField = strings.TrimSpace(cdr.SIPFromUser), "sip_from_user"
	} else {
		sipUser, sipField = strings.TrimSpace(cdr.SIPToUser), "sip_to_user"
	}
	if allDigits(sipUser) {
		return sipUser, sipField
	}

	// (5) direction-conditioned fallback: the first call-leg number that is
	// a known extension.
	var candidates []struct{ num, field string }
	if direction == model.DirectionOutbound {
		candidates = []struct{ num, field string }{
			{cdr.CallerIDNumber, "caller_id_number"},
			{cdr.DestinationNumber, "destination_number"},
		}
	} else {
		candidates = []struct{ num, field string }{
			{cdr.DestinationNumber, "destination_number"},
			{cdr.CallerIDNumber, "caller_id_number"},
		}
	}
	for _, c := range candidates {
		digits := DigitsOnly(c.num)
		if digits != "" && r.known[digits] {
			return digits, c.field
		}
	}

	return model.Unknown, ""
}

// deriveCustomer picks the external number by direction, normalizes it, and
// rejects a result equal to the agent extension (an internal leg mislabeled
// as external).
func deriveCustomer(cdr *model.CDR, agent string) (string, string) {
	var raw, src string
	switch cdr.NormalizedDirection() {
	case model.DirectionInbound, model.DirectionLocal:
		raw, src = cdr.DestinationNumber, "destination_number"
	case model.DirectionOutbound:
		raw, src = cdr.CallerIDNumber, "caller_id_number"
	default:
		// Unknown direction: take whichever number carries more digits.
		caller := DigitsOnly(cdr.CallerIDNumber)
		dest := DigitsOnly(cdr.DestinationNumber)
		if len(caller) > len(dest) {
			raw, src = cdr.CallerIDNumber, "caller_id_number"
		} else {
			raw, src = cdr.DestinationNumber, "destination_number"
		}
	}

	customer := NormalizeCustomer(raw)
	if customer == model.Unknown {
		return model.Unknown, ""
	}
	if agent != model.Unknown && DigitsOnly(customer) == DigitsOnly(agent) {
		return model.Unknown, ""
	}
	return customer, src
}

// RederiveCustomer re-runs customer derivation against a peer leg, keeping
// the current identity's agent. Used when the primary row yielded no usable
// external number. Returns the identity updated only if the peer produced a
// valid number distinct from the agent.
func RederiveCustomer(id model.ResolvedIdentity, peer *model.CDR) model.ResolvedIdentity {
	if peer == nil {
		return id
	}
	customer, src := deriveCustomer(peer, id.Agent)
	if customer == model.Unknown {
		return id
	}
	id.Customer = customer
	id.CustomerSource = "peer:" + src
	return id
}
