package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/leakguard/internal/config"
	"github.com/stellarlinkco/leakguard/internal/gateway"
	"github.com/stellarlinkco/leakguard/internal/logging"
	"github.com/stellarlinkco/leakguard/internal/store"
)

// CheckOptions for running checks with custom dependencies
type CheckOptions struct {
	Gateway gateway.Options
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
}

var rootCmd = &cobra.Command{
	Use:   "leakguard",
	Short: "leakguard - breach and reputation check bot",
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check a value once, or read values interactively",
	RunE:  runCheck,
}

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the bot (telegram channel + breach alerts + metrics)",
	RunE:  runGateway,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config and data directory",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show leakguard status",
	RunE:  runStatus,
}

var subscribersCmd = &cobra.Command{
	Use:   "subscribers",
	Short: "List subscribed user ids",
	RunE:  runSubscribers,
}

var (
	messageFlag string
	userFlag    int64
)

func init() {
	checkCmd.Flags().StringVarP(&messageFlag, "message", "m", "", "Single value to check")
	checkCmd.Flags().Int64Var(&userFlag, "user", 0, "User id the check is recorded for")
	rootCmd.AddCommand(checkCmd, gatewayCmd, onboardCmd, statusCmd, subscribersCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCheck(cmd *cobra.Command, args []string) error {
	return runCheckWithOptions(CheckOptions{
		Stdin:  cmd.InOrStdin(),
		Stdout: cmd.OutOrStdout(),
		Stderr: cmd.ErrOrStderr(),
	})
}

// runCheckWithOptions runs checks with injectable dependencies for testing
func runCheckWithOptions(opts CheckOptions) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	stdin := opts.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	logger := logging.New(cfg.Log, stderr)
	svc, err := gateway.OpenServices(cfg, logger, nil, opts.Gateway)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx := context.Background()

	// Single value mode
	if messageFlag != "" {
		fmt.Fprintln(stdout, svc.Engine.Handle(ctx, userFlag, messageFlag).Text)
		return nil
	}

	// REPL mode
	fmt.Fprintln(stdout, "leakguard check (type 'exit' to quit)")
	scanner := bufio.NewScanner(stdin)
	for {
		fmt.Fprint(stdout, "\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}
		fmt.Fprintln(stdout, svc.Engine.Handle(ctx, userFlag, input).Text)
	}
	return scanner.Err()
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w. Run 'leakguard onboard' or set TELEGRAM_BOT_TOKEN", err)
	}

	logger := logging.New(cfg.Log, cmd.ErrOrStderr())
	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	return gw.Run(context.Background())
}

func runOnboard(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfgPath := config.ConfigPath()

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := config.SaveConfig(config.DefaultConfig()); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Fprintf(out, "Created config: %s\n", cfgPath)
	} else {
		fmt.Fprintf(out, "Config already exists: %s\n", cfgPath)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := os.MkdirAll(cfg.Store.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	fmt.Fprintf(out, "Data dir ready: %s\n", cfg.Store.DataDir)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintf(out, "  1. Edit %s to set the bot token and API keys\n", cfgPath)
	fmt.Fprintln(out, "  2. Or set TELEGRAM_BOT_TOKEN, LEAKCHECK_API_KEY, VIRUSTOTAL_API_KEY, IPQS_API_KEY (a .env file works too)")
	fmt.Fprintln(out, "  3. Run 'leakguard check -m 8.8.8.8' to test")

	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(out, "Config: error (%v)\n", err)
		return nil
	}

	fmt.Fprintf(out, "Config: %s\n", config.ConfigPath())
	fmt.Fprintf(out, "Telegram: enabled=%v token=%s\n", cfg.Telegram.Enabled, maskKey(cfg.Telegram.Token))
	fmt.Fprintf(out, "LeakCheck key: %s\n", maskKey(cfg.Lookup.LeakCheck.APIKey))
	fmt.Fprintf(out, "VirusTotal key: %s\n", maskKey(cfg.Lookup.VirusTotal.APIKey))
	fmt.Fprintf(out, "IPQualityScore key: %s\n", maskKey(cfg.Lookup.IPQS.APIKey))
	fmt.Fprintf(out, "Store: %s (%s)\n", cfg.Store.Backend, cfg.Store.DataDir)
	fmt.Fprintf(out, "Alerts: enabled=%v every %s\n", cfg.Notify.Enabled, cfg.Notify.Interval)
	if cfg.Metrics.Enabled {
		fmt.Fprintf(out, "Metrics: http://%s/metrics\n", cfg.Metrics.Addr())
	} else {
		fmt.Fprintln(out, "Metrics: disabled")
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(out, "Validation: %v\n", err)
	}

	if _, err := os.Stat(cfg.Store.DataDir); err != nil {
		fmt.Fprintln(out, "Subscribers: data dir not found (run 'leakguard onboard')")
		return nil
	}
	st, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(out, "Subscribers: unavailable (%v)\n", err)
		return nil
	}
	defer st.Close()
	count, err := st.SubscriberCount()
	if err != nil {
		fmt.Fprintf(out, "Subscribers: unavailable (%v)\n", err)
		return nil
	}
	fmt.Fprintf(out, "Subscribers: %d\n", count)
	return nil
}

func runSubscribers(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ids, err := st.AllSubscribers()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, id := range ids {
		fmt.Fprintln(out, id)
	}
	return nil
}

func openStore(cfg *config.Config) (*store.Store, error) {
	logger := logging.New(cfg.Log, io.Discard)
	backend, err := store.OpenBackend(cfg.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return store.New(backend, logger, nil), nil
}

func maskKey(key string) string {
	switch {
	case key == "":
		return "not set"
	case len(key) > 8:
		return key[:4] + "..." + key[len(key)-4:]
	default:
		return "set"
	}
}
