package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bakeassist/bakeassist/internal/config"
	syslogger "github.com/bakeassist/bakeassist/internal/system/logger"
)

var (
	logsLines  int
	logsFollow bool
	logsGrep   string
)

// logsCmd 查看当天日志，支持 -f 追踪
var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show the server log",
	Long: `Print the last lines of the newest log file.

  bakeassist logs -n 100
  bakeassist logs -f
  bakeassist logs --grep get_customer_invoices`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := resolveLogDir()
		files, err := syslogger.ListFiles(dir)
		if err != nil {
			return fmt.Errorf("list log files: %w", err)
		}
		if len(files) == 0 {
			fmt.Printf("No log files found in %s\n", dir)
			return nil
		}

		latest := files[0].Path
		lines, err := syslogger.Tail(latest, logsLines, logsGrep)
		if err != nil {
			return err
		}
		for _, line := range lines {
			fmt.Println(line)
		}
		if !logsFollow {
			return nil
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return syslogger.Follow(ctx, latest, os.Stdout)
	},
}

// logsListCmd 列出所有日志文件
var logsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all log files",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := resolveLogDir()
		files, err := syslogger.ListFiles(dir)
		if err != nil {
			return fmt.Errorf("list log files: %w", err)
		}
		if len(files) == 0 {
			fmt.Printf("No log files found in %s\n", dir)
			return nil
		}

		var total int64
		for _, f := range files {
			total += f.Size
		}
		fmt.Printf("Log files (%d, total %.1f MB):\n\n", len(files), float64(total)/1024/1024)
		for _, f := range files {
			fmt.Printf("  %-32s  %8.2f MB  %s\n", f.Name, float64(f.Size)/1024/1024, f.ModTime.Local().Format("2006-01-02 15:04:05"))
		}
		fmt.Printf("\nLog directory: %s\n", dir)
		return nil
	},
}

// logsCleanCmd 清理过期日志
var logsCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove log files past the retention period",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustLoadConfig()
		logCfg := cfg.Log
		logCfg.Stderr = false
		if logCfg.MaxAgeDays <= 0 {
			fmt.Println("Log retention is disabled (log.max_age_days = 0).")
			return nil
		}

		mgr, err := syslogger.New(logCfg)
		if err != nil {
			return fmt.Errorf("open log dir: %w", err)
		}
		defer mgr.Close()

		removed, err := mgr.Cleanup()
		if err != nil {
			return fmt.Errorf("cleanup logs: %w", err)
		}
		if removed == 0 {
			fmt.Println("No expired log files to clean.")
		} else {
			fmt.Printf("Removed %d expired log files (older than %d days)\n", removed, logCfg.MaxAgeDays)
		}
		return nil
	},
}

func init() {
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 50, "Number of lines to show")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow new output")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Only show lines containing this text (case-insensitive)")

	logsCmd.AddCommand(logsListCmd)
	logsCmd.AddCommand(logsCleanCmd)
}

// resolveLogDir 返回配置中的日志目录，未配置时使用默认目录
func resolveLogDir() string {
	cfg := mustLoadConfig()
	if cfg.Log.Dir != "" {
		return cfg.Log.Dir
	}
	return filepath.Join(config.ConfigDir(), "logs")
}
