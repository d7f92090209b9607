package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tasklens/tasklens/errors"
)

// ConfigCmd inspects the effective configuration
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect effective configuration",
	Long: `Inspect the effective tasklens configuration.

Configuration sources (in order of precedence):
1. Environment variables (TASKLENS_* prefix)
2. Project config (./tasklens.toml, searched upward)
3. User config (~/.tasklens/config.toml)
4. Default values`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

func init() {
	ConfigCmd.AddCommand(configShowCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// API keys stay out of the output
	redacted := *cfg
	redacted.Providers.OpenAI.APIKey = redact(cfg.Providers.OpenAI.APIKey)
	redacted.Providers.OpenRouter.APIKey = redact(cfg.Providers.OpenRouter.APIKey)
	redacted.Providers.Anthropic.APIKey = redact(cfg.Providers.Anthropic.APIKey)

	out, err := json.MarshalIndent(redacted, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode configuration")
	}
	fmt.Println(string(out))
	return nil
}

func redact(key string) string {
	if key == "" {
		return ""
	}
	return "(set)"
}
