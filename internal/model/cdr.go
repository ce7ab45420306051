package model

import (
	"strings"
	"time"
)

// Call directions as stored in the CDR direction column.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
	DirectionLocal    = "local"
)

// CDR is one call-detail-record row fetched from the telephony store,
// left-joined against the extension directory. Read-only; fetched fresh per
// file and never cached across runs.
type CDR struct {
	CallID     string // xml_cdr_uuid
	BridgeUUID string // peer-leg link, may be empty

	Direction string
	Status    string

	AnswerStamp *time.Time
	StartStamp  *time.Time
	EndStamp    *time.Time

	CallerIDName      string
	CallerIDNumber    string
	DestinationNumber string

	// Extension and ExtensionName come from the joined extension directory
	// row and are empty when the join found nothing.
	Extension     string
	ExtensionName string

	// Auxiliary fields used as fallback identity sources.
	AccountCode string
	PresenceID  string
	SIPToUser   string
	SIPFromUser string
}

// NormalizedDirection returns the direction lowercased and trimmed.
func (c *CDR) NormalizedDirection() string {
	return strings.ToLower(strings.TrimSpace(c.Direction))
}

// Answered reports whether the leg was answered, either by the presence of
// an answer stamp or an "answered" status.
func (c *CDR) Answered() bool {
	return c.AnswerStamp != nil || strings.EqualFold(strings.TrimSpace(c.Status), "answered")
}

// BestStamp returns the most reliable call timestamp available: answer,
// then start, then end. Nil when the row carries no usable stamp.
func (c *CDR) BestStamp() *time.Time {
	switch {
	case c.AnswerStamp != nil:
		return c.AnswerStamp
	case c.StartStamp != nil:
		return c.StartStamp
	default:
		return c.EndStamp
	}
}
