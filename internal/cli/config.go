package cli

import (
	"fmt"

	"github.com/andy/invoicer/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change settings",
	Long: `Show or change settings in the config file.

Secrets such as the narrator API key are read from the environment
(OPENAI_API_KEY, or a .env file) and are never written to the config file.`,
	Annotations: map[string]string{standalone: "true"},
}

var configShowCmd = &cobra.Command{
	Use:         "show",
	Short:       "Print the effective configuration",
	Annotations: map[string]string{standalone: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.ResolvePath(configFlag)
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}

		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}

		fmt.Printf("# %s\n", path)
		fmt.Print(string(out))

		narrator := "template (no API key)"
		switch {
		case !cfg.Narrator.Enabled:
			narrator = "template (disabled)"
		case cfg.Narrator.Available():
			narrator = "assisted, model " + cfg.Narrator.Model
		}
		fmt.Printf("# narrator: %s\n", narrator)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a config value, e.g. invoice.default_due_days 30",
	Long: `Set a config value by its dotted key:

  database.path, invoice.default_due_days, invoice.sent_backfill_hour,
  narrator.enabled, narrator.base_url, narrator.model, narrator.timeout,
  narrator.attempts, narrator.retry_delay, narrator.max_tokens,
  log.level, log.file`,
	Args:        cobra.ExactArgs(2),
	Annotations: map[string]string{standalone: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.ResolvePath(configFlag)
		cfg, err := config.LoadFile(path)
		if err != nil {
			return err
		}

		if err := cfg.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := cfg.Save(path); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		fmt.Printf("✓ %s = %s\n", args[0], args[1])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
