// Package main is the CLI entry point for thermalmon.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/thermal_mon/internal/daemon"
	"github.com/eliteGoblin/focusd/thermal_mon/internal/domain"
	"github.com/eliteGoblin/focusd/thermal_mon/internal/infra"
	"github.com/eliteGoblin/focusd/thermal_mon/internal/metrics"
	"github.com/eliteGoblin/focusd/thermal_mon/internal/profile"
	"github.com/eliteGoblin/focusd/thermal_mon/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "thermalmon",
	Short: "Per-application thermal profile controller",
	Long: `thermalmon watches which application is in the foreground and applies
the thermal profile selected for it. While the screen is off or the
device is locked the default profile is enforced.`,
	Version:      Version,
	SilenceUsage: true,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the background daemon",
	RunE:  runStart,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon and controller status",
	RunE:  runStatus,
}

var setCmd = &cobra.Command{
	Use:   "set <package> <profile>",
	Short: "Select the thermal profile for an application",
	Long: `Stores the profile used while <package> is in the foreground.
The running daemon picks the change up on the next foreground change.`,
	Args: cobra.ExactArgs(2),
	RunE: runSet,
}

var getCmd = &cobra.Command{
	Use:   "get <package>",
	Short: "Show the thermal profile selected for an application",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored application profiles",
	RunE:  runList,
}

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List available thermal profiles",
	RunE:  runProfiles,
}

var applyCmd = &cobra.Command{
	Use:   "apply <profile>",
	Short: "Write a profile to the thermal control files once",
	Long: `Writes <profile> to the configured control files without going through
the daemon. A running daemon overrides it on its next transition.`,
	Args: cobra.ExactArgs(1),
	RunE: runApply,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration, or write it with --write",
	RunE:  runConfig,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

// Hidden daemon command - used for self-exec by start
var daemonCmd = &cobra.Command{
	Use:    "daemon",
	Hidden: true,
	RunE:   runDaemon,
}

var (
	dataDir     string
	jsonOutput  bool
	writeConfig bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (default depends on run mode, or $"+infra.HomeEnv+")")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")
	configCmd.Flags().BoolVar(&writeConfig, "write", false, "Write the effective configuration to the config file")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(profilesCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(daemonCmd)
}

func resolvePaths() *infra.Paths {
	if dataDir != "" {
		return infra.PathsFor(dataDir)
	}
	return infra.DetectPaths()
}

// cliLogger keeps CLI output clean; only errors reach stderr.
func cliLogger() *zap.Logger {
	return daemon.NewLoggerOrStderr(daemon.LoggingConfig{Level: "error"})
}

func openSelector(paths *infra.Paths, logger *zap.Logger) (*usecase.ProfileSelector, domain.ProfileStore, error) {
	cfg, err := daemon.LoadConfig(paths)
	if err != nil {
		return nil, nil, err
	}
	store, err := infra.OpenProfileStore(cfg.Store.Backend, cfg.Store.Dir, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open profile store: %w", err)
	}
	return usecase.NewProfileSelector(store, metrics.NewUnregistered(), logger), store, nil
}

func runStart(cmd *cobra.Command, args []string) error {
	paths := resolvePaths()
	fmt.Printf("Run mode: %s\n", paths.Mode)
	fmt.Printf("Data directory: %s\n", paths.DataDir)

	if err := os.MkdirAll(paths.DataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	// Surface config errors here rather than in a detached process.
	if _, err := daemon.LoadConfig(paths); err != nil {
		return err
	}

	registry := infra.NewFileStatusRegistry(paths.StatusPath(), infra.NewProcessManager())
	if pid, alive, _ := daemon.RunningDaemon(registry); alive {
		fmt.Printf("thermalmon is already running (PID %d)\n", pid)
		return nil
	}
	if pid, err := daemon.ClearStale(registry); err != nil {
		fmt.Printf("Warning: %v\n", err)
	} else if pid != 0 {
		fmt.Printf("Removed stale status of PID %d\n", pid)
	}

	pid, err := daemon.StartDaemon(paths.DataDir)
	if err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	// Wait a moment for the daemon to register
	time.Sleep(500 * time.Millisecond)

	fmt.Printf("thermalmon started (PID %d)\n", pid)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	paths := resolvePaths()
	registry := infra.NewFileStatusRegistry(paths.StatusPath(), infra.NewProcessManager())

	fmt.Println("\n=== thermalmon Status ===")

	entry, err := registry.Read()
	if err != nil {
		return fmt.Errorf("failed to read status: %w", err)
	}
	if entry == nil {
		fmt.Println("Status: NOT RUNNING")
		fmt.Println("\nRun 'thermalmon start' to start the daemon.")
		return nil
	}

	alive, err := registry.IsDaemonAlive()
	if err != nil {
		return err
	}
	if alive {
		fmt.Printf("Status: RUNNING (PID %d)\n", entry.PID)
	} else {
		fmt.Printf("Status: NOT RUNNING (last PID %d)\n", entry.PID)
	}

	if entry.AppVersion != "" {
		fmt.Printf("Version: %s\n", entry.AppVersion)
	}
	if entry.StoreBackend != "" {
		fmt.Printf("Store: %s\n", entry.StoreBackend)
	}
	fmt.Printf("Controller: %s\n", entry.State)
	if entry.CurrentAppID != "" {
		fmt.Printf("Foreground: %s\n", entry.CurrentAppID)
	}
	fmt.Printf("Applied profile: %s\n", entry.LastAppliedProfile)
	if entry.WritePending {
		fmt.Println("Warning: last default profile write failed, will retry")
	}
	if entry.LastHeartbeat > 0 {
		lastBeat := time.Unix(entry.LastHeartbeat, 0)
		fmt.Printf("Last heartbeat: %s ago\n", time.Since(lastBeat).Round(time.Second))
	}

	fmt.Println("=========================")
	return nil
}

func runSet(cmd *cobra.Command, args []string) error {
	logger := cliLogger()
	defer func() { _ = logger.Sync() }()

	selector, store, err := openSelector(resolvePaths(), logger)
	if err != nil {
		return err
	}
	defer store.Close()

	kind, err := selector.Select(args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Printf("%s -> %s\n", args[0], kind)
	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	logger := cliLogger()
	defer func() { _ = logger.Sync() }()

	selector, store, err := openSelector(resolvePaths(), logger)
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Println(selector.Lookup(args[0]))
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	logger := cliLogger()
	defer func() { _ = logger.Sync() }()

	selector, store, err := openSelector(resolvePaths(), logger)
	if err != nil {
		return err
	}
	defer store.Close()

	entries := selector.List()
	if len(entries) == 0 {
		fmt.Println("No application profiles stored; every application uses default.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PACKAGE\tPROFILE")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\n", e.PackageID, e.Profile)
	}
	return w.Flush()
}

func runProfiles(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROFILE\tVALUE\tDESCRIPTION")
	for _, p := range profile.NewRegistry().GetAll() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", p.Kind(), p.ControlValue(), p.Description())
	}
	return w.Flush()
}

func runApply(cmd *cobra.Command, args []string) error {
	logger := cliLogger()
	defer func() { _ = logger.Sync() }()

	kind, err := domain.ParseProfileKind(args[0])
	if err != nil {
		return err
	}
	cfg, err := daemon.LoadConfig(resolvePaths())
	if err != nil {
		return err
	}
	points, err := cfg.ControlPoints(profile.NewRegistry())
	if err != nil {
		return err
	}

	writer := infra.NewSysfsWriter(points, logger)
	if err := writer.Apply(kind); err != nil {
		return err
	}
	for _, cp := range writer.ControlPoints() {
		if value, ok := cp.Values[kind]; ok {
			fmt.Printf("%s <- %s\n", cp.Path, value)
		}
	}
	fmt.Printf("Applied %s\n", kind)
	return nil
}

func runConfig(cmd *cobra.Command, args []string) error {
	paths := resolvePaths()
	cfg, err := daemon.LoadConfig(paths)
	if err != nil {
		return err
	}

	if writeConfig {
		if err := os.MkdirAll(paths.DataDir, 0700); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		if err := daemon.SaveConfig(cfg, paths.ConfigPath()); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		fmt.Printf("Wrote %s\n", paths.ConfigPath())
		return nil
	}

	fmt.Printf("# %s\n", paths.ConfigPath())
	return daemon.WriteConfig(cfg, os.Stdout)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	paths := resolvePaths()
	cfg, err := daemon.LoadConfig(paths)
	if err != nil {
		return err
	}

	logger := daemon.NewLoggerOrStderr(cfg.Logging)
	defer func() { _ = logger.Sync() }()

	d := domain.Daemon{
		PID:        os.Getpid(),
		StartedAt:  time.Now(),
		AppVersion: Version,
	}

	components, err := daemon.Build(cfg, paths, d, logger)
	if err != nil {
		logger.Error("failed to build daemon", zap.Error(err))
		return err
	}
	defer func() {
		if err := components.Close(); err != nil {
			logger.Warn("failed to close profile store", zap.Error(err))
		}
	}()

	// Set up graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return components.Service.Run(ctx)
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("thermalmon %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
