package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/wxbridge/internal/config"
	"github.com/nextlevelbuilder/wxbridge/internal/store/sqlite"
)

func pairingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pairing",
		Short: "Manage the pairing allow-store",
	}
	cmd.AddCommand(pairingApproveCmd())
	cmd.AddCommand(pairingListCmd())
	cmd.AddCommand(pairingRevokeCmd())
	return cmd
}

func openPairingStore() *sqlite.PairingStore {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %s\n", err)
		os.Exit(1)
	}
	s, err := sqlite.Open(cfg.PairingDBPath(), cfg.Pairing.TTLDays)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pairing store: %s\n", err)
		os.Exit(1)
	}
	return s
}

func pairingApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <code>",
		Short: "Approve a pending pairing request by its code",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			s := openPairingStore()
			defer s.Close()

			entry, err := s.Approve(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "approve: %s\n", err)
				os.Exit(1)
			}
			fmt.Printf("paired %s on %s\n", entry.SenderID, entry.Channel)
		},
	}
}

func pairingListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List approved senders and pending requests",
		Run: func(cmd *cobra.Command, args []string) {
			s := openPairingStore()
			defer s.Close()

			paired, err := s.ListPaired("")
			if err != nil {
				fmt.Fprintf(os.Stderr, "list: %s\n", err)
				os.Exit(1)
			}
			fmt.Printf("Paired senders (%d):\n", len(paired))
			for _, p := range paired {
				line := fmt.Sprintf("  %-24s %-10s since %s", p.SenderID, p.Channel, p.PairedAt.Format("2006-01-02"))
				if p.ExpiresAt != nil {
					line += fmt.Sprintf(" (expires %s)", p.ExpiresAt.Format("2006-01-02"))
				}
				fmt.Println(line)
			}

			pending, err := s.ListPending()
			if err != nil {
				fmt.Fprintf(os.Stderr, "list pending: %s\n", err)
				os.Exit(1)
			}
			if len(pending) > 0 {
				fmt.Printf("Pending requests (%d):\n", len(pending))
				for _, p := range pending {
					fmt.Printf("  %-24s %-10s code %s\n", p.SenderID, p.Channel, p.Code)
				}
			}
		},
	}
}

func pairingRevokeCmd() *cobra.Command {
	channel := "wechat"
	cmd := &cobra.Command{
		Use:   "revoke <sender-id>",
		Short: "Revoke a sender's pairing approval",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			s := openPairingStore()
			defer s.Close()

			if err := s.Revoke(args[0], channel); err != nil {
				fmt.Fprintf(os.Stderr, "revoke: %s\n", err)
				os.Exit(1)
			}
			fmt.Printf("revoked %s on %s\n", args[0], channel)
		},
	}
	cmd.Flags().StringVar(&channel, "channel", "wechat", "channel the approval belongs to")
	return cmd
}
