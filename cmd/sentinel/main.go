package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/payops/sentinel/internal/agent"
	"github.com/payops/sentinel/internal/config"
)

// version is set at release time via -ldflags; "dev" covers local builds.
var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sentinel",
		Short: "Payment gateway control-loop agent",
		Long:  "sentinel runs a continuous observe-reason-decide-act loop over simulated payment gateway traffic, intervening when issuer health drifts out of tolerance.",
	}

	cmd.AddCommand(
		runCmd(),
		initCmd(),
		statusCmd(),
		doctorCmd(),
		versionCmd(),
	)
	return cmd
}

// runCmd starts the agent in the foreground and blocks until it is
// signalled to stop.
func runCmd() *cobra.Command {
	var (
		configFile string
		portFlag   int
		demoMode   bool
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the control loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(configFile, portFlag, demoMode, logLevel)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "path to config YAML (defaults to ./sentinel.yaml if present)")
	cmd.Flags().IntVar(&portFlag, "port", 0, "override the management API port (0 = use config)")
	cmd.Flags().BoolVar(&demoMode, "demo", false, "force-enable demo-mode failure injection regardless of config")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")
	return cmd
}

func runAgent(configFile string, portFlag int, demoMode bool, logLevel string) error {
	if configFile == "" {
		configFile = findConfigFile()
	}

	cfgLoader := config.NewLoader()
	if configFile != "" {
		if err := cfgLoader.Load(configFile); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}

	cfg := cfgLoader.Get()
	if portFlag > 0 {
		cfg.Server.Port = portFlag
	}
	if demoMode {
		cfg.Loop.DemoMode = true
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logger := newLogger(cfg.LogLevel)

	if configFile != "" {
		watcher, err := config.NewWatcher(cfgLoader, logger)
		if err != nil {
			logger.Warn("config hot-reload unavailable", "error", err)
		} else if err := watcher.Start(); err != nil {
			logger.Warn("failed to start config watcher", "error", err)
		} else {
			defer watcher.Stop()
		}
	}

	a, err := agent.New(cfg, cfgLoader, logger)
	if err != nil {
		return fmt.Errorf("construct agent: %w", err)
	}
	defer a.Close()

	printBanner(cfg, configFile)

	ctx := context.Background()
	if err := a.Run(ctx); err != nil {
		return fmt.Errorf("agent run: %w", err)
	}
	return nil
}

func printBanner(cfg *config.Config, configFile string) {
	src := configFile
	if src == "" {
		src = "(built-in defaults)"
	}
	fmt.Println("+-----------------------------------------------------------+")
	fmt.Println("|  sentinel - payment gateway control loop                  |")
	fmt.Println("+-----------------------------------------------------------+")
	fmt.Printf("| config      : %-45s|\n", src)
	fmt.Printf("| issuers     : %-45s|\n", issuerNames(cfg))
	fmt.Printf("| cycle       : %-45s|\n", fmt.Sprintf("%dms", cfg.Loop.CycleIntervalMs))
	fmt.Printf("| demo mode   : %-45v|\n", cfg.Loop.DemoMode)
	fmt.Printf("| api port    : %-45s|\n", portLabel(cfg.Server.Port))
	fmt.Println("+-----------------------------------------------------------+")
}

func issuerNames(cfg *config.Config) string {
	names := make([]string, 0, len(cfg.Issuers))
	for _, i := range cfg.Issuers {
		names = append(names, i.Name)
	}
	return strings.Join(names, ", ")
}

func portLabel(port int) string {
	if port <= 0 {
		return "disabled"
	}
	return fmt.Sprintf(":%d", port)
}

// initCmd scaffolds a default config file.
func initCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				out = "sentinel.yaml"
			}
			if _, err := os.Stat(out); err == nil {
				return fmt.Errorf("%s already exists, not overwriting", out)
			}
			if err := config.GenerateDefault(out); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", out)
			fmt.Println("next: sentinel run --config", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path (default sentinel.yaml)")
	return cmd
}

// statusCmd polls a running agent's management API for a snapshot of
// current system stats.
func statusCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show stats from a running agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(resolvePort(port))
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "management API port (default 8088)")
	return cmd
}

func runStatus(port int) error {
	var stats struct {
		TotalCycles        int64   `json:"total_cycles"`
		TotalInterventions int64   `json:"total_interventions"`
		ActionRate         float64 `json:"action_rate"`
		AvgNRV             float64 `json:"avg_nrv"`
		SuccessRate        float64 `json:"evaluation_success_rate"`
	}
	if err := decodeJSON(fmt.Sprintf("http://localhost:%d/api/stats", port), &stats); err != nil {
		return fmt.Errorf("could not reach agent on port %d: %w", port, err)
	}

	fmt.Printf("cycles:        %d\n", stats.TotalCycles)
	fmt.Printf("interventions: %d\n", stats.TotalInterventions)
	fmt.Printf("action rate:   %.2f%%\n", stats.ActionRate*100)
	fmt.Printf("avg nrv:       %.2f\n", stats.AvgNRV)
	fmt.Printf("success rate:  %.2f%%\n", stats.SuccessRate*100)
	return nil
}

// doctorCmd sanity-checks the local environment before a run: config
// presence/validity, and whether a management API is already listening
// on the target port.
func doctorCmd() *cobra.Command {
	var configFile string
	var port int
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the local environment for common problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(configFile, port)
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "path to config YAML")
	cmd.Flags().IntVar(&port, "port", 8088, "management API port to probe")
	return cmd
}

func runDoctor(configFile string, port int) error {
	ok := true

	if configFile == "" {
		configFile = findConfigFile()
	}
	if configFile == "" {
		fmt.Println("[warn] no config file found, will run with built-in defaults")
	} else if _, err := os.Stat(configFile); err != nil {
		fmt.Printf("[fail] config file %s: %v\n", configFile, err)
		ok = false
	} else {
		loader := config.NewLoader()
		if err := loader.Load(configFile); err != nil {
			fmt.Printf("[fail] config file %s failed to load: %v\n", configFile, err)
			ok = false
		} else {
			fmt.Printf("[ok]   config file %s is valid\n", configFile)
		}
	}

	client := http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://localhost:%d/api/health", port))
	if err != nil {
		fmt.Printf("[info] no agent currently listening on :%d\n", port)
	} else {
		resp.Body.Close()
		fmt.Printf("[ok]   agent is listening on :%d\n", port)
	}

	if !ok {
		return fmt.Errorf("doctor found problems")
	}
	fmt.Println("all checks passed")
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("sentinel", version)
			return nil
		},
	}
}

// findConfigFile looks for a config file in the conventional local
// locations, returning "" if none exist.
func findConfigFile() string {
	candidates := []string{"sentinel.yaml", "sentinel.yml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "sentinel", "config.yaml"))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// resolvePort returns port if positive, otherwise the default management
// API port.
func resolvePort(port int) int {
	if port > 0 {
		return port
	}
	return 8088
}

func decodeJSON(url string, v interface{}) error {
	client := http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// newLogger builds a slog.Logger writing structured text to stderr at
// the configured level, defaulting to info on an unrecognized string.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}
