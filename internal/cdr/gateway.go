// Package cdr queries the telephony platform's call-detail-record store.
package cdr

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/pbx-ops/recsync/internal/config"
	"github.com/pbx-ops/recsync/internal/model"
)

// Pool is the subset of pgxpool.Pool the gateway needs; pgxmock satisfies
// it for tests.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Gateway issues exact-match CDR lookups. One gateway (one pool) serves the
// entire run; a transport failure here is fatal to the run.
type Gateway struct {
	pool Pool
}

const cdrColumns = `
	c.xml_cdr_uuid,
	c.bridge_uuid,
	c.direction,
	c.status,
	c.answer_stamp,
	c.start_stamp,
	c.end_stamp,
	c.caller_id_name,
	c.caller_id_number,
	c.destination_number,
	c.accountcode,
	c.presence_id,
	c.sip_to_user,
	c.sip_from_user,
	e.extension,
	e.effective_caller_id_name AS extension_name`

// lookupSQL mirrors the platform's own UUID search: exact match on
// xml_cdr_uuid, joined to the extension directory, newest leg first.
const lookupSQL = `
SELECT` + cdrColumns + `
FROM v_xml_cdr AS c
LEFT JOIN v_extensions AS e ON e.extension_uuid = c.extension_uuid
WHERE c.xml_cdr_uuid = $1
ORDER BY c.start_stamp DESC
LIMIT 1`

// peerSQL fetches a related leg: either the row named by a bridge UUID, or
// the row whose bridge_uuid points back at the given leg.
const peerSQL = `
SELECT` + cdrColumns + `
FROM v_xml_cdr AS c
LEFT JOIN v_extensions AS e ON e.extension_uuid = c.extension_uuid
WHERE ($1::text IS NOT NULL AND c.xml_cdr_uuid = $1)
   OR ($2::text IS NOT NULL AND c.bridge_uuid = $2)
ORDER BY c.start_stamp DESC
LIMIT 1`

const extensionsSQL = `
SELECT e.extension
FROM v_extensions AS e
JOIN v_domains AS d ON d.domain_uuid = e.domain_uuid
WHERE d.domain_name = $1
ORDER BY e.extension`

// New connects to the CDR store and verifies the connection.
func New(ctx context.Context, cfg config.DBConfig) (*Gateway, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?connect_timeout=%d&application_name=recsync",
		url.QueryEscape(cfg.User),
		url.QueryEscape(cfg.Password),
		cfg.Host,
		cfg.Port,
		cfg.Name,
		cfg.ConnectTimeoutSecs,
	)

	pgxCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, eris.Wrap(err, "cdr: parse config")
	}
	// One sequential pipeline needs one connection.
	pgxCfg.MaxConns = 2
	pgxCfg.MinConns = 1
	pgxCfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "cdr: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "cdr: ping")
	}
	return &Gateway{pool: pool}, nil
}

// NewWithPool wraps an existing pool; used by tests.
func NewWithPool(pool Pool) *Gateway {
	return &Gateway{pool: pool}
}

// Close releases the connection pool.
func (g *Gateway) Close() {
	g.pool.Close()
}

// Lookup fetches the CDR for a call identifier. Returns (nil, nil) when no
// row matches: not-found is a valid terminal outcome, never retried. Any
// other error is a transport failure and must abort the run.
func (g *Gateway) Lookup(ctx context.Context, callID string) (*model.CDR, error) {
	row := g.pool.QueryRow(ctx, lookupSQL, callID)
	rec, err := scanCDR(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "cdr: lookup %s", callID)
	}
	return rec, nil
}

// LookupPeer fetches the bridged peer leg of a call: the row whose
// xml_cdr_uuid equals bridgeUUID, or failing that, the row whose
// bridge_uuid equals xmlUUID. Empty arguments are treated as absent.
func (g *Gateway) LookupPeer(ctx context.Context, xmlUUID, bridgeUUID string) (*model.CDR, error) {
	row := g.pool.QueryRow(ctx, peerSQL, nullable(bridgeUUID), nullable(xmlUUID))
	rec, err := scanCDR(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "cdr: lookup peer of %s", xmlUUID)
	}
	return rec, nil
}

// Extensions returns the extension directory for a domain, used by the
// resolver's known-extension checks. Fetched once per run.
func (g *Gateway) Extensions(ctx context.Context, domain string) (map[string]bool, error) {
	rows, err := g.pool.Query(ctx, extensionsSQL, domain)
	if err != nil {
		return nil, eris.Wrapf(err, "cdr: list extensions for %s", domain)
	}
	defer rows.Close()

	known := make(map[string]bool)
	for rows.Next() {
		var ext *string
		if err := rows.Scan(&ext); err != nil {
			return nil, eris.Wrap(err, "cdr: scan extension")
		}
		if ext != nil && *ext != "" {
			known[*ext] = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "cdr: iterate extensions")
	}
	return known, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func scanCDR(row pgx.Row) (*model.CDR, error) {
	var (
		callID, bridgeUUID                *string
		direction, status                 *string
		answerStamp, startStamp, endStamp *time.Time
		callerName, callerNum, destNum    *string
		accountCode, presenceID           *string
		sipToUser, sipFromUser            *string
		extension, extensionName          *string
	)

	err := row.Scan(
		&callID, &bridgeUUID,
		&direction, &status,
		&answerStamp, &startStamp, &endStamp,
		&callerName, &callerNum, &destNum,
		&accountCode, &presenceID,
		&sipToUser, &sipFromUser,
		&extension, &extensionName,
	)
	if err != nil {
		return nil, err
	}

	return &model.CDR{
		CallID:            deref(callID),
		BridgeUUID:        deref(bridgeUUID),
		Direction:         deref(direction),
		Status:            deref(status),
		AnswerStamp:       answerStamp,
		StartStamp:        startStamp,
		EndStamp:          endStamp,
		CallerIDName:      deref(callerName),
		CallerIDNumber:    deref(callerNum),
		DestinationNumber: deref(destNum),
		AccountCode:       deref(accountCode),
		PresenceID:        deref(presenceID),
		SIPToUser:         deref(sipToUser),
		SIPFromUser:       deref(sipFromUser),
		Extension:         deref(extension),
		ExtensionName:     deref(extensionName),
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
