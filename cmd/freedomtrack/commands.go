package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/pmorrow/freedomtrack/internal/config"
	"github.com/pmorrow/freedomtrack/internal/history"
	"github.com/pmorrow/freedomtrack/internal/vault"
)

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded usage snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		records, err := history.New(cfg.Storage.DataDir).ReadAll()
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No usage recorded yet.")
			return nil
		}
		if limit > 0 && len(records) > limit {
			records = records[len(records)-limit:]
		}

		data := pterm.TableData{{"Date", "Used", "Remaining", "% used", "Change", "Cycle ends"}}
		var prev *history.Record
		for i := range records {
			r := records[i]
			remaining := "unlimited"
			if r.RemainingGB != nil {
				remaining = fmt.Sprintf("%.2f GB", *r.RemainingGB)
			}
			percent := "-"
			if pct, ok := r.PercentUsed(); ok {
				percent = fmt.Sprintf("%.0f%%", pct)
			}
			change := "-"
			if prev != nil {
				if r.UsedGB < prev.UsedGB {
					change = "new cycle"
				} else {
					change = fmt.Sprintf("+%.2f GB", r.UsedGB-prev.UsedGB)
				}
			}
			cycle := "-"
			if r.CycleEnd != nil {
				cycle = *r.CycleEnd
			}
			data = append(data, []string{
				r.Date.Format("2006-01-02"),
				fmt.Sprintf("%.2f GB", r.UsedGB),
				remaining,
				percent,
				change,
				cycle,
			})
			prev = &records[i]
		}

		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

func init() {
	historyCmd.Flags().Int("limit", 0, "show only the most recent N snapshots")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return fmt.Errorf("%w (valid keys: %s)", err, strings.Join(config.ValidKeys(), ", "))
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

// --- credentials ---

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Store the portal phone number and account PIN",
	Long: `Store the portal sign-in credentials in the platform secret store.

Credentials are read back only while a check is running and are never written
to the history file or anywhere else on disk.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reader := bufio.NewReader(os.Stdin)

		fmt.Fprint(os.Stderr, "Phone number (10 digits): ")
		phone, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading phone number: %w", err)
		}
		fmt.Fprint(os.Stderr, "Account PIN (4 digits): ")
		pin, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading PIN: %w", err)
		}

		creds := vault.Credentials{
			Phone: vault.NormalizePhone(phone),
			PIN:   strings.TrimSpace(pin),
		}
		if err := vault.SaveCredentials(vault.Open(), creds); err != nil {
			return err
		}

		printSuccess("Credentials stored for the number ending in %s", creds.Suffix(4))
		return nil
	},
}
