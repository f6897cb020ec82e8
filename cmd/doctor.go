package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/wxbridge/internal/config"
	"github.com/nextlevelbuilder/wxbridge/internal/store/sqlite"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("wxbridge doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, using defaults + env)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	wc := cfg.Channels.WeChat
	fmt.Println()
	fmt.Println("  WeChat:")
	fmt.Printf("    %-14s %v\n", "Enabled:", wc.Enabled)
	fmt.Printf("    %-14s %d account(s)\n", "Accounts:", len(wc.AccountIDs()))
	for _, id := range wc.AccountIDs() {
		acc := wc.ResolveAccount(id)
		status := "ready"
		switch {
		case !acc.Enabled:
			status = "disabled"
		case acc.ServerURL == "":
			status = "missing server_url"
		case acc.AuthToken == "":
			status = "missing auth_token"
		case acc.Wxid == "":
			status = "missing wxid"
		}
		fmt.Printf("    %-14s %s (%s)\n", id+":", status, acc.DMPolicy+"/"+acc.GroupPolicy)

		if acc.ServerURL != "" {
			fmt.Printf("      gateway:   %s %s\n", acc.ServerURL, probeGateway(acc.ServerURL))
		}
	}

	fmt.Println()
	fmt.Println("  Bridge:")
	fmt.Printf("    %-14s %s:%d\n", "Listen:", cfg.Bridge.Host, cfg.Bridge.Port)
	if cfg.Bridge.PublicURL != "" {
		fmt.Printf("    %-14s %s\n", "Public URL:", cfg.Bridge.PublicURL)
	} else {
		fmt.Printf("    %-14s (not set; webhook registration skipped, poll only)\n", "Public URL:")
	}

	fmt.Println()
	fmt.Printf("  Pairing DB: %s", cfg.PairingDBPath())
	if s, err := sqlite.Open(cfg.PairingDBPath(), cfg.Pairing.TTLDays); err != nil {
		fmt.Printf(" (ERROR: %s)\n", err)
	} else {
		paired, _ := s.ListPaired("")
		fmt.Printf(" (OK, %d paired)\n", len(paired))
		s.Close()
	}
}

// probeGateway checks basic reachability of the gateway host.
func probeGateway(serverURL string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serverURL, nil)
	if err != nil {
		return "(bad URL)"
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "(unreachable)"
	}
	resp.Body.Close()
	return "(reachable)"
}
