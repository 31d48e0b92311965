// Package cli implements the tablesrv command line: the server itself and the
// administrative commands that act on the catalog directly.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/tansive/tablebase/internal/common/logtrace"
	"github.com/tansive/tablebase/internal/tablesrv/config"
	"github.com/tansive/tablebase/internal/tablesrv/tblcommon"
)

var (
	jsonOutput bool
	configFile string
)

const DefaultConfigFile = "tablesrv.conf"

// EnvConfigFile names the config file when --config is not given.
const EnvConfigFile = "TABLESRV_CONFIG"

var ErrAlreadyHandled = errors.New("already handled")

var okLabel = color.New(color.FgGreen)
var errorLabel = color.New(color.FgRed)

var rootCmd = &cobra.Command{
	Use:   "tablesrv [command] [flags]",
	Short: "tablesrv - dynamic table service",
	Long: `tablesrv serves tenant defined tables over HTTP and administers its catalog.

Examples:
  # Apply the catalog schema and start the server
  tablesrv migrate --config tablesrv.conf
  tablesrv serve --config tablesrv.conf

  # Create a project and a token for its owner
  tablesrv project create --owner users/alice
  tablesrv token create --user users/alice --ttl 24h

  # Define tables from a multi-document YAML file
  tablesrv table apply -f tables.yaml --project <id> --owner users/alice`,
	PersistentPreRunE: loadConfig,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to the config file")
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output in JSON format")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newProjectCmd())
	rootCmd.AddCommand(newTokenCmd())
	rootCmd.AddCommand(newTableCmd())
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, ErrAlreadyHandled) {
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(map[string]string{"error": err.Error()})
		} else {
			errorLabel.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func configPath() string {
	if configFile != "" {
		return configFile
	}
	if v := os.Getenv(EnvConfigFile); v != "" {
		return v
	}
	return DefaultConfigFile
}

// loadConfig loads the config file for every command except version.
func loadConfig(cmd *cobra.Command, args []string) error {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "version" {
			return nil
		}
	}
	if err := config.LoadConfig(configPath()); err != nil {
		return err
	}
	logtrace.InitLogger(config.Config().LogLevel)
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of tablesrv",
		Run: func(cmd *cobra.Command, args []string) {
			if jsonOutput {
				printJSON(map[string]string{
					"version":     tblcommon.ServerVersion,
					"api_version": tblcommon.ApiVersion,
					"config":      config.Version,
				})
				return
			}
			cmd.Printf("tablesrv %s (api %s, config format %s)\n", tblcommon.ServerVersion, tblcommon.ApiVersion, config.Version)
		},
	}
}

func printJSON(data any) {
	out, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(data, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

// printOK prints a status line, or v as JSON when --json is set.
func printOK(msg string, v any) {
	if jsonOutput {
		printJSON(v)
		return
	}
	okLabel.Print("✓ ")
	fmt.Println(msg)
}
