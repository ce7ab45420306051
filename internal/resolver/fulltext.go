package resolver

import (
	"sort"

	"github.com/pbx-ops/recsync/internal/model"
)

// FullTextResolver is the broader fallback strategy: it scans every
// auxiliary CDR field for any known extension. It risks false positives
// inside unrelated identifiers, so it is not the default.
type FullTextResolver struct {
	known map[string]bool
}

// NewFullTextResolver creates the full-field scan resolver.
func NewFullTextResolver(known map[string]bool) *FullTextResolver {
	return &FullTextResolver{known: known}
}

// Resolve scans the row's fields for a known extension, longest extensions
// first so that e.g. "1103" wins over "103" when both are known.
func (r *FullTextResolver) Resolve(cdr *model.CDR) model.ResolvedIdentity {
	agent, agentSrc := r.scanFields(cdr)
	customer, custSrc := deriveCustomer(cdr, agent)

	return model.ResolvedIdentity{
		Agent:          agent,
		AgentSource:    agentSrc,
		Customer:       customer,
		CustomerSource: custSrc,
		Timestamp:      cdr.BestStamp(),
	}
}

func (r *FullTextResolver) scanFields(cdr *model.CDR) (string, string) {
	fields := []struct{ value, name string }{
		{cdr.Extension, "extension"},
		{cdr.AccountCode, "accountcode"},
		{cdr.PresenceID, "presence_id"},
		{cdr.SIPToUser, "sip_to_user"},
		{cdr.SIPFromUser, "sip_from_user"},
		{cdr.CallerIDNumber, "caller_id_number"},
		{cdr.DestinationNumber, "destination_number"},
		{cdr.CallerIDName, "caller_id_name"},
	}

	exts := make([]string, 0, len(r.known))
	for ext := range r.known {
		exts = append(exts, ext)
	}
	sort.Slice(exts, func(i, j int) bool {
		if len(exts[i]) != len(exts[j]) {
			return len(exts[i]) > len(exts[j])
		}
		return exts[i] < exts[j]
	})

	for _, f := range fields {
		if f.value == "" {
			continue
		}
		for _, ext := range exts {
			if containsDigitRun(f.value, ext) {
				return ext, "fulltext:" + f.name
			}
		}
	}
	return model.Unknown, ""
}

// containsDigitRun reports whether ext occurs in s as a standalone digit
// run, not embedded inside a longer number.
func containsDigitRun(s, ext string) bool {
	for i := 0; i+len(ext) <= len(s); i++ {
		if s[i:i+len(ext)] != ext {
			continue
		}
		beforeOK := i == 0 || !isDigit(s[i-1])
		afterOK := i+len(ext) == len(s) || !isDigit(s[i+len(ext)])
		if beforeOK && afterOK {
			return true
		}
	}
	return false
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
