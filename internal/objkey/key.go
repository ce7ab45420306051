// Package objkey derives the canonical object-storage key for an uploaded
// recording. Keys must be stable: identical inputs always yield an
// identical key, which downstream idempotence and human audit rely on.
package objkey

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/pbx-ops/recsync/internal/model"
)

// unsafeChars matches every character stripped from the domain portion.
var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

const unknownPart = "UNKNOWN"

// Build constructs the storage key:
//
//	<domain>_CUST_<digits>_GUID_<callID>_AGENT_<ext>_DATETIME_<stamp><ext>
//
// Unresolved customer, agent, or timestamp render as the literal "UNKNOWN".
// The timestamp is UTC at second precision with colons replaced by hyphens.
func Build(domain, customer, callID, agent string, ts *time.Time, ext string) string {
	return fmt.Sprintf("%s_CUST_%s_GUID_%s_AGENT_%s_DATETIME_%s%s",
		NormalizeDomain(domain),
		part(customer),
		callID,
		part(agent),
		stamp(ts),
		ext,
	)
}

// WithPrefix joins an optional key prefix onto a key.
func WithPrefix(prefix, key string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

// NormalizeDomain strips every character outside [A-Za-z0-9_.-].
func NormalizeDomain(domain string) string {
	return unsafeChars.ReplaceAllString(domain, "")
}

func part(v string) string {
	if v == "" || v == model.Unknown {
		return unknownPart
	}
	return v
}

func stamp(ts *time.Time) string {
	if ts == nil {
		return unknownPart
	}
	return ts.UTC().Format("2006-01-02T15-04-05")
}
