package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/livepen/internal/version"
)

var (
	versionFormat   string
	versionShort    bool
	versionDetailed bool
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display the version, commit, build time, Go version and platform.

Examples:
  livepen version               # Version and build summary
  livepen version --short       # Version only
  livepen version --format json # Machine-readable output`,
	Args: cobra.NoArgs,
	RunE: runVersionCommand,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().StringVarP(&versionFormat, "format", "f", "text", "Output format (text, json)")
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Show short version only")
	versionCmd.Flags().BoolVar(&versionDetailed, "detailed", false, "Show detailed version information")
}

func runVersionCommand(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	switch versionFormat {
	case "json":
		info := version.GetBuildInfo()
		payload := struct {
			*version.BuildInfo
			IsRelease bool `json:"is_release"`
		}{info, version.IsRelease()}

		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(payload)
	case "text":
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json)", versionFormat)
	}

	if versionShort {
		fmt.Fprintln(out, version.GetShortVersion())
		return nil
	}

	if versionDetailed {
		fmt.Fprintln(out, version.GetDetailedVersion())
		if version.IsRelease() {
			fmt.Fprintln(out, "Build type: release")
		} else {
			fmt.Fprintln(out, "Build type: development")
		}
		return nil
	}

	info := version.GetBuildInfo()
	fmt.Fprintf(out, "livepen %s", info.Version)
	if info.GitCommit != "unknown" && len(info.GitCommit) >= 7 {
		fmt.Fprintf(out, " (%s)", info.GitCommit[:7])
	}
	if info.Dirty {
		fmt.Fprint(out, " (dirty)")
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Go: %s\nPlatform: %s\n", info.GoVersion, info.Platform)
	return nil
}
