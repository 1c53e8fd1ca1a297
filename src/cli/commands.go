package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"analysis-broker/internal/common"
	versionpkg "analysis-broker/internal/version"
)

// CLI Constants
const (
	CmdRun        = "run"
	CmdClassify   = "classify"
	CmdConfig     = "config"
	CmdConfigInit = "init"
	CmdConfigShow = "show"
	CmdVersion    = "version"
	FlagConfig    = "config"
	FlagWatch     = "watch"
	FlagForce     = "force"
	FlagFormat    = "format"
	FlagVerbose   = "verbose"
	FlagOut       = "out"
)

// CLI Variables
var (
	configPath string
	watchRoot  string
	force      bool
	format     string
	verbose    bool
	outPath    string
)

// Root command
var rootCmd = &cobra.Command{
	Use:   "analysis-broker",
	Short: "Analysis Broker - schedules editor requests to an OmniSharp-style analysis server",
	Long: `Analysis Broker runs one language analysis server over stdio and multiplexes editor
requests onto it, ordering them by priority class.

QUICK START:
  analysis-broker run                      # Broker JSON requests from stdin
  analysis-broker classify /updatebuffer   # Show which class a command is scheduled in

PRIORITY CLASSES:
  Priority   buffer edits and keystroke formatting; one at a time, blocks everything else
  Normal     interactive lookups (completion, definition, usages); up to --concurrency in flight
  Deferred   everything else; max(concurrency/4, 2) in flight

Use 'analysis-broker <command> --help' for detailed command information.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Command definitions
var (
	runCmd = &cobra.Command{
		Use:   CmdRun,
		Short: "Start the analysis server and broker requests from stdin",
		Long: `Start the configured analysis server and read one JSON request per line from stdin:

  {"seq": 1, "command": "/gotodefinition", "arguments": {"FileName": "Program.cs", "Line": 3, "Column": 9}}

Each response is written to stdout as one JSON line:

  {"command": "/gotodefinition", "seq": 1, "success": true, "body": {...}}

Requests are answered as the server completes them, not in input order. Logs go to stderr.

Examples:
  analysis-broker run
  analysis-broker run --config broker.toml --watch ./src`,
		RunE: runRunCmd,
	}

	classifyCmd = &cobra.Command{
		Use:   CmdClassify + " <command>...",
		Short: "Show the priority class of server commands",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runClassifyCmd,
	}

	configCmd = &cobra.Command{
		Use:   CmdConfig,
		Short: "Manage the broker configuration",
		Long: `Write or display the broker configuration.

Examples:
  analysis-broker config init                  # Write defaults to ~/.analysis-broker/config.yaml
  analysis-broker config init --out broker.toml
  analysis-broker config show --format toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	versionCmd = &cobra.Command{
		Use:   CmdVersion,
		Short: "Show version information",
		RunE:  runVersionCmd,
	}
)

// Config subcommands
var (
	configInitCmd = &cobra.Command{
		Use:   CmdConfigInit,
		Short: "Write a default configuration file",
		RunE:  runConfigInitCmd,
	}

	configShowCmd = &cobra.Command{
		Use:   CmdConfigShow,
		Short: "Print the effective configuration",
		RunE:  runConfigShowCmd,
	}
)

func init() {
	// Run command flags
	runCmd.Flags().StringVarP(&configPath, FlagConfig, "c", "", "Configuration file path (optional, will use defaults if not provided)")
	runCmd.Flags().StringVarP(&watchRoot, FlagWatch, "w", "", "Workspace directory to watch for file changes")

	// Config command flags
	configCmd.PersistentFlags().StringVarP(&configPath, FlagConfig, "c", "", "Configuration file path (optional)")
	configInitCmd.Flags().StringVarP(&outPath, FlagOut, "o", "", "Output path (default ~/.analysis-broker/config.yaml)")
	configInitCmd.Flags().BoolVarP(&force, FlagForce, "f", false, "Overwrite an existing file")
	configShowCmd.Flags().StringVar(&format, FlagFormat, "yaml", "Output format: yaml or toml")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	// Version command flags
	versionCmd.Flags().BoolVarP(&verbose, FlagVerbose, "v", false, "Show detailed version information")

	// Add commands to root
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// Command runner functions

func runRunCmd(cmd *cobra.Command, args []string) error {
	return RunBroker(configPath, watchRoot, cmd.InOrStdin(), cmd.OutOrStdout())
}

func runClassifyCmd(cmd *cobra.Command, args []string) error {
	return ClassifyCommands(cmd.OutOrStdout(), args)
}

func runConfigInitCmd(cmd *cobra.Command, args []string) error {
	return InitConfig(outPath, force)
}

func runConfigShowCmd(cmd *cobra.Command, args []string) error {
	return ShowConfig(cmd.OutOrStdout(), configPath, format)
}

func runVersionCmd(cmd *cobra.Command, args []string) error {
	if verbose {
		fmt.Fprintln(cmd.OutOrStdout(), versionpkg.GetFullVersionInfo())
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "analysis-broker %s\n", versionpkg.GetVersion())
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteArgs runs the root command with explicit arguments
func ExecuteArgs(args []string) error {
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

// applyLogLevel configures every logger from the config value
func applyLogLevel(level string) {
	if common.ServerLogger.Level() == common.LogDebug {
		// ANALYSIS_BROKER_DEBUG wins over the config file
		return
	}
	common.SetGlobalLevel(common.ParseLogLevel(level))
}
