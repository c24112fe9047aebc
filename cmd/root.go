package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/livepen/internal/config"
	"github.com/conneroisu/livepen/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "livepen",
	Short: "A live HTML and Tailwind CSS editor",
	Long: `livepen serves a browser editor with two buffers, HTML markup and a
Tailwind config, next to a sandboxed preview that recompiles as you type.

Quick Start:
  livepen serve                   Start the editor
  livepen render page.html        Render a file once to stdout
  livepen config show             Print the resolved configuration`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .livepen.yml, can also use LIVEPEN_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
}

// initConfig points viper at the config file and the environment.
//
// Priority (highest to lowest): --config, LIVEPEN_CONFIG_FILE, then
// .livepen.yml in the working directory. Every key can be overridden with
// LIVEPEN_<SECTION>_<KEY>, e.g. LIVEPEN_SERVER_PORT.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("LIVEPEN_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".livepen")
	}

	viper.SetEnvPrefix("LIVEPEN")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A missing file is fine; defaults apply.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig binds the command's flags and loads the configuration.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.GetViper()
	if err := bindFlags(cmd, v); err != nil {
		return nil, err
	}
	return config.LoadFrom(v)
}

func newLogger(cmd *cobra.Command, cfg *config.Config) logging.Logger {
	lc := cfg.LoggerConfig()
	lc.Output = cmd.ErrOrStderr()
	return logging.NewLogger(lc)
}
