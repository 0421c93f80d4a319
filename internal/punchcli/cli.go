package punchcli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/phillip-england/punchaudit/internal/apiapp"
	"github.com/phillip-england/punchaudit/internal/attendance"
	"github.com/phillip-england/punchaudit/internal/envutil"
	"github.com/phillip-england/punchaudit/internal/security"
	"github.com/phillip-england/punchaudit/internal/workbook"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var ErrUsage = errors.New("usage")

const usageText = `usage: punchaudit setup [--auth-username user --auth-password <password>] [--env-file .env] [--force]
       punchaudit process <file.xlsx|file.xls> [--out dir] [--workers n]
       punchaudit serve [--config punchaudit.yaml]`

type cli struct {
	verbose bool
	logger  *zap.Logger
}

func Execute(args []string) error {
	c := &cli{}
	root := c.rootCommand()
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	if c.logger != nil {
		_ = c.logger.Sync()
	}
	return err
}

func PrintUsage(w io.Writer) {
	fmt.Fprintln(w, usageText)
}

func usageError(msg string) error {
	return fmt.Errorf("%w: %s", ErrUsage, msg)
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "punchaudit",
		Short:         "Flag Friday late arrivals, early leaves and missing punches in attendance exports",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usageError(fmt.Sprintf("unknown command %q", args[0]))
			}
			return nil
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.logger != nil {
				return nil
			}
			config := zap.NewProductionConfig()
			if c.verbose {
				config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			logger, err := config.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			c.logger = logger
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return usageError("missing command")
		},
	}
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")
	root.AddCommand(c.setupCommand(), c.processCommand(), c.serveCommand())
	return root
}

func (c *cli) setupCommand() *cobra.Command {
	var (
		authUser string
		authPass string
		envPath  string
		force    bool
	)
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Write a .env file for the upload service",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (authUser == "") != (authPass == "") {
				return errors.New("--auth-username and --auth-password must be given together")
			}
			if authPass != "" {
				if _, err := security.HashPassword(authPass); err != nil {
					return fmt.Errorf("invalid auth password: %w", err)
				}
			}

			values := map[string]string{
				"API_ADDR":      ":8080",
				"MAX_UPLOAD_MB": "20",
				"SESSION_TTL":   "2h",
			}
			if authUser != "" {
				values["AUTH_USERNAME"] = authUser
				values["AUTH_PASSWORD"] = authPass
			}
			if err := envutil.WriteDotEnv(envPath, values, force); err != nil {
				return err
			}
			c.logger.Debug("env file written", zap.String("path", envPath), zap.Bool("auth", authUser != ""))
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", envPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&authUser, "auth-username", "", "basic auth username for the upload API")
	cmd.Flags().StringVar(&authPass, "auth-password", "", "basic auth password (min 12 chars)")
	cmd.Flags().StringVar(&envPath, "env-file", ".env", "path to .env file")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing env file")
	return cmd
}

func (c *cli) processCommand() *cobra.Command {
	var (
		outDir  string
		workers int
	)
	cmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Annotate one attendance workbook and write the result next to it",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usageError("process takes exactly one workbook path")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			sheet, err := workbook.ReadFile(input)
			if err != nil {
				return err
			}
			results, err := attendance.ProcessConcurrent(cmd.Context(), sheet.Rows, workers)
			if err != nil {
				return fmt.Errorf("process %s: %w", input, err)
			}

			if outDir == "" {
				outDir = filepath.Dir(input)
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("create directory %s: %w", outDir, err)
			}
			output := filepath.Join(outDir, workbook.OutputName(filepath.Base(input)))
			if err := workbook.WriteFile(output, workbook.ExportHeaders(sheet.Headers), results); err != nil {
				return err
			}

			summary := attendance.Summarize(results)
			c.logger.Info("attendance processed",
				zap.String("input", input),
				zap.String("output", output),
				zap.Int("rows", summary.Rows),
				zap.Int("dropped", sheet.Dropped),
				zap.Int("changed", summary.ChangedRows),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			fmt.Fprintf(cmd.OutOrStdout(), "rows=%d friday=%d changed=%d late=%d early=%d missing=%d\n",
				summary.Rows, summary.FridayRows, summary.ChangedRows,
				summary.LateRows, summary.EarlyLeaveRows, summary.MissingPunches)
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "output directory (default: next to the input)")
	cmd.Flags().IntVar(&workers, "workers", 0, "row workers (0 = one per CPU)")
	return cmd
}

func (c *cli) serveCommand() *cobra.Command {
	var (
		configPath string
		envPath    string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the upload, preview and export API",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := envutil.LoadDotEnv(envPath); err != nil {
				return fmt.Errorf("load %s: %w", envPath, err)
			}
			if configPath == "" {
				configPath = os.Getenv("PUNCHAUDIT_CONFIG")
			}
			cfg, err := apiapp.LoadConfig(configPath)
			if err != nil {
				return err
			}
			c.logger.Debug("config loaded",
				zap.String("path", configPath),
				zap.Int("workers", cfg.Workers),
			)

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			if err := apiapp.Run(ctx, cfg, c.logger); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "YAML config file (or PUNCHAUDIT_CONFIG)")
	cmd.Flags().StringVar(&envPath, "env-file", ".env", "optional .env file to load first")
	return cmd
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return usageError(fmt.Sprintf("%s takes no arguments", cmd.Name()))
	}
	return nil
}
