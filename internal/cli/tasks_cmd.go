package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bakeassist/bakeassist/internal/system/tasklog"
)

var (
	tasksLimit    int
	tasksOffset   int
	tasksCustomer string
	tasksChannel  string
	tasksTool     string
	tasksStatus   string
	tasksSearch   string
	tasksSince    string
	tasksUntil    string
	tasksSort     string
	tasksMaxAge   int
	tasksMaxN     int
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Browse the chat turn audit log",
	Long: `View and manage the audit log of chat turns.
Every turn (customer, channel, message, tool used, reply and outcome) is recorded here.`,
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent turns",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openTaskStore()
		if err != nil {
			return err
		}
		defer store.Close()

		sortBy, sortDesc := parseSort(tasksSort)
		records, total, err := store.Query(tasklog.QueryParams{
			Customer: tasksCustomer,
			Channel:  tasksChannel,
			Tool:     tasksTool,
			Status:   tasksStatus,
			Search:   tasksSearch,
			Since:    tasksSince,
			Until:    tasksUntil,
			SortBy:   sortBy,
			SortDesc: sortDesc,
			Limit:    tasksLimit,
			Offset:   tasksOffset,
		})
		if err != nil {
			return fmt.Errorf("query turns: %w", err)
		}
		if len(records) == 0 {
			fmt.Println("No turns recorded.")
			return nil
		}

		fmt.Printf("Turns (%d/%d):\n\n", len(records), total)
		for _, r := range records {
			printRecordSummary(r)
		}
		if total > tasksOffset+tasksLimit {
			fmt.Printf("\n  ... %d more. Use --offset %d to see the next page.\n", total-tasksOffset-tasksLimit, tasksOffset+tasksLimit)
		}
		return nil
	},
}

var tasksShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one turn in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openTaskStore()
		if err != nil {
			return err
		}
		defer store.Close()

		var id int64
		if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
			return fmt.Errorf("invalid turn ID: %s", args[0])
		}
		rec, err := store.Get(id)
		if err != nil {
			return fmt.Errorf("get turn: %w", err)
		}
		if rec == nil {
			return fmt.Errorf("turn #%d not found", id)
		}
		data, _ := json.MarshalIndent(rec, "", "  ")
		fmt.Println(string(data))
		return nil
	},
}

var tasksStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show audit log statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openTaskStore()
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := store.GetStats()
		if err != nil {
			return fmt.Errorf("get stats: %w", err)
		}

		fmt.Println(styleTitle.Render("Chat turn statistics"))
		fmt.Printf("  Total turns:      %d\n", stats.TotalRecords)
		fmt.Printf("  Turns with tool:  %d\n", stats.ToolTurns)
		fmt.Printf("  Avg duration:     %.0fms\n", stats.AvgDurationMs)
		if stats.EarliestRecord != "" {
			fmt.Printf("  Earliest:         %s\n", formatTaskTime(stats.EarliestRecord))
		}
		if stats.LatestRecord != "" {
			fmt.Printf("  Latest:           %s\n", formatTaskTime(stats.LatestRecord))
		}
		printCounts("By status", stats.ByStatus)
		printCounts("By tool", stats.ByTool)
		printCounts("By channel", stats.ByChannel)

		fmt.Printf("\n  Database: %s\n", store.DBPath())
		return nil
	},
}

var tasksCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete old turns",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustLoadConfig()
		store, err := openTaskStore()
		if err != nil {
			return err
		}
		defer store.Close()

		maxAge := cfg.TaskLog.MaxAgeDays
		if cmd.Flags().Changed("max-age") {
			maxAge = tasksMaxAge
		}
		maxN := cfg.TaskLog.MaxRecords
		if cmd.Flags().Changed("max-records") {
			maxN = tasksMaxN
		}

		deleted, err := store.Cleanup(maxAge, maxN)
		if err != nil {
			return fmt.Errorf("cleanup turns: %w", err)
		}
		if deleted == 0 {
			fmt.Println("No turns to clean.")
		} else {
			fmt.Printf("Deleted %d turns (max-age=%d days, max-records=%d)\n", deleted, maxAge, maxN)
		}
		return nil
	},
}

func init() {
	tasksListCmd.Flags().IntVar(&tasksLimit, "limit", 20, "Max records to return")
	tasksListCmd.Flags().IntVar(&tasksOffset, "offset", 0, "Offset for pagination")
	tasksListCmd.Flags().StringVar(&tasksCustomer, "customer", "", "Filter by customer number")
	tasksListCmd.Flags().StringVar(&tasksChannel, "channel", "", "Filter by channel (http, websocket, cli)")
	tasksListCmd.Flags().StringVar(&tasksTool, "tool", "", "Filter by tool name")
	tasksListCmd.Flags().StringVar(&tasksStatus, "status", "", "Filter by status (success, error)")
	tasksListCmd.Flags().StringVar(&tasksSearch, "search", "", "Full-text search over message, reply and error")
	tasksListCmd.Flags().StringVar(&tasksSince, "since", "", "Only turns after this time (RFC3339)")
	tasksListCmd.Flags().StringVar(&tasksUntil, "until", "", "Only turns before this time (RFC3339)")
	tasksListCmd.Flags().StringVar(&tasksSort, "sort", "-created_at", "Sort field with direction: -created_at, +duration_ms, -generations, +tool")

	tasksCleanCmd.Flags().IntVar(&tasksMaxAge, "max-age", 30, "Max age in days")
	tasksCleanCmd.Flags().IntVar(&tasksMaxN, "max-records", 10000, "Max total records to keep")

	tasksCmd.AddCommand(tasksListCmd)
	tasksCmd.AddCommand(tasksShowCmd)
	tasksCmd.AddCommand(tasksStatsCmd)
	tasksCmd.AddCommand(tasksCleanCmd)
}

func openTaskStore() (*tasklog.Store, error) {
	cfg := mustLoadConfig()
	store, err := tasklog.NewStore(cfg.TaskLog.Path)
	if err != nil {
		return nil, fmt.Errorf("open task log: %w", err)
	}
	return store, nil
}

// parseSort reads "-field" (descending, the default) or "+field".
func parseSort(s string) (string, bool) {
	switch {
	case s == "":
		return "created_at", true
	case strings.HasPrefix(s, "+"):
		return strings.TrimPrefix(s, "+"), false
	default:
		return strings.TrimPrefix(s, "-"), true
	}
}

func printRecordSummary(r tasklog.TaskRecord) {
	status := styleSuccess.Render(r.Status)
	if r.Status == tasklog.StatusError {
		status = styleError.Render(r.Status)
	}
	tool := "-"
	if r.Tool != "" {
		tool = r.Tool + "/" + r.ToolStatus
	}
	fmt.Printf("  #%-6d [%s] customer=%-6s %-9s %s  %s\n", r.ID, formatTaskTime(r.CreatedAt), r.Customer, r.Channel, status, styleMuted.Render(tool))
	fmt.Printf("          msg:   %s\n", truncateString(r.Message, 70))
	if r.Reply != "" {
		fmt.Printf("          reply: %s\n", truncateString(r.Reply, 70))
	}
	if r.ErrorMessage != "" {
		fmt.Printf("          error: %s\n", truncateString(r.ErrorMessage, 70))
	}
	fmt.Printf("          %dms, %d generation(s)\n", r.DurationMs, r.Generations)
}

func printCounts(title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Printf("\n  %s:\n", title)
	for _, k := range keys {
		name := k
		if name == "" {
			name = "(none)"
		}
		fmt.Printf("    %-24s %d\n", name, counts[k])
	}
}

func truncateString(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func formatTaskTime(s string) string {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return s
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
