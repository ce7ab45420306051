package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/pbx-ops/recsync/internal/cdr"
	"github.com/pbx-ops/recsync/internal/model"
	"github.com/pbx-ops/recsync/internal/resolver"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Probe the CDR store for one call identifier",
	Long: `Search the CDR store for an exact call-identifier match and print who
answered the call and the external number involved, re-deriving from the
bridged peer leg when the primary row is unreliable. Diagnostic tool; makes
no uploads and touches no state.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		callID, _ := cmd.Flags().GetString("uuid")
		if callID == "" {
			return eris.New("lookup: --uuid is required")
		}

		gateway, err := cdr.New(ctx, cfg.DB)
		if err != nil {
			return fatal(exitDBUnreach, err)
		}
		defer gateway.Close()

		row, err := gateway.Lookup(ctx, callID)
		if err != nil {
			return fatal(exitDBUnreach, err)
		}
		if row == nil {
			fmt.Println("No CDR found for that identifier (exact match).")
			return fatal(exitGeneric, eris.Errorf("lookup: no CDR for %s", callID))
		}

		known, err := gateway.Extensions(ctx, cfg.Recordings.Domain)
		if err != nil {
			return fatal(exitDBUnreach, err)
		}

		id := resolver.NewFieldResolver(known).Resolve(row)
		if !id.CustomerResolved() {
			peer, err := gateway.LookupPeer(ctx, row.CallID, row.BridgeUUID)
			if err != nil {
				return fatal(exitDBUnreach, err)
			}
			id = resolver.RederiveCustomer(id, peer)
		}

		who := "unknown"
		switch {
		case row.Answered() && row.Extension != "":
			who = fmt.Sprintf("%s %s", row.Extension, row.ExtensionName)
		case row.Answered():
			who = row.CallerIDName
		case row.Status != "":
			who = row.Status
		}

		fmt.Printf("answered_by: %s\n", who)
		fmt.Printf("direction: %s\n", orUnknown(row.NormalizedDirection()))
		fmt.Printf("agent: %s (source: %s)\n", id.Agent, orUnknown(id.AgentSource))
		if id.CustomerResolved() {
			fmt.Printf("external_number: %s (source: %s)\n", id.Customer, id.CustomerSource)
		} else {
			fmt.Printf("external_number_raw: %s\n", orUnknown(rawExternal(row)))
		}
		return nil
	},
}

func init() {
	lookupCmd.Flags().String("uuid", "", "call identifier to search (exact match)")
	rootCmd.AddCommand(lookupCmd)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func rawExternal(row *model.CDR) string {
	if row.NormalizedDirection() == model.DirectionOutbound {
		return row.CallerIDNumber
	}
	return row.DestinationNumber
}
