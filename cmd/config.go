package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/livepen/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect livepen configuration",
	Long: `Inspect the configuration livepen resolves from flags, LIVEPEN_*
environment variables and .livepen.yml.

Examples:
  livepen config show                       # Print the resolved configuration
  livepen config validate                   # Check .livepen.yml
  livepen config validate --file dev.yml    # Check a specific file`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration",
	Long: `Print the configuration after defaults, the config file, environment
overrides and flags have been applied. The output is valid .livepen.yml.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

var (
	configFile   string
	configStrict bool
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)

	configValidateCmd.Flags().
		StringVarP(&configFile, "file", "f", "", "Configuration file to validate (default: .livepen.yml)")
	configValidateCmd.Flags().BoolVar(&configStrict, "strict", false, "Treat warnings as errors")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	out, err := config.ToYAML(cfg)
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	target := configFile
	if target == "" {
		target = ".livepen.yml"
	}
	if _, err := os.Stat(target); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("configuration file %s does not exist", target)
		}
		return err
	}

	v := viper.New()
	v.SetConfigFile(target)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read configuration file: %w", err)
	}
	config.SetDefaults(v)

	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	result := config.ValidateConfig(&cfg)
	if !result.HasErrors() && !result.HasWarnings() {
		fmt.Fprintf(out, "%s is valid\n", target)
		return nil
	}

	fmt.Fprint(out, result.String())
	switch {
	case result.HasErrors():
		return fmt.Errorf("configuration validation failed with %d errors", len(result.Errors))
	case configStrict:
		return fmt.Errorf("configuration validation failed in strict mode with %d warnings", len(result.Warnings))
	}
	fmt.Fprintf(out, "%s is valid with %d warnings\n", target, len(result.Warnings))
	return nil
}
