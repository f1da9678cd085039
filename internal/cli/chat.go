package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bakeassist/bakeassist/internal/agent"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with Bake Assist in the terminal",
	Long: `Start an interactive chat session as one customer.

Each message is an independent turn, exactly as over HTTP.
Type /quit (or press Ctrl+C) to leave.`,
	RunE: runChat,
}

var (
	chatFlags    overrideFlags
	chatCustomer string
)

func init() {
	chatFlags.register(chatCmd, false)
	chatCmd.Flags().StringVarP(&chatCustomer, "customer", "c", "", "Customer number (skips the picker)")
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	if err := chatFlags.apply(cmd, cfg); err != nil {
		return err
	}
	// Keep the terminal clean: logs go to file only.
	cfg.Log.Stderr = false
	logger, logMgr := setupLogging(cfg.Log)
	if logMgr != nil {
		defer logMgr.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	customer, err := pickCustomer(ctx, a, chatCustomer)
	if err != nil {
		return err
	}

	fmt.Println(styleBanner.Render("Bake Assist"))
	fmt.Println(styleMuted.Render(fmt.Sprintf("customer %s · model %s · /quit to leave", customer, a.models.Model())))
	fmt.Println()

	for {
		var msg string
		err := huh.NewInput().
			Title("You").
			Value(&msg).
			Run()
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		if err != nil {
			return err
		}
		msg = strings.TrimSpace(msg)
		switch msg {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		}
		fmt.Println(styleLabel.Render("You: ") + msg)

		res, err := runTurnWithSpinner(ctx, a.runner, &agent.RunRequest{
			TurnID:         uuid.NewString(),
			CustomerNumber: customer,
			Message:        msg,
			Channel:        "cli",
		})
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, context.Canceled) {
			fmt.Println(styleMuted.Render("cancelled"))
			continue
		}
		if err != nil {
			fmt.Println(styleError.Render("error: ") + err.Error())
			continue
		}
		fmt.Println(styleAssistant.Render(res.Reply))
		if res.Tool != nil {
			fmt.Println(styleMuted.Render(fmt.Sprintf("  tool %s (%s)", res.Tool.Tool, res.Tool.Status)))
		}
		fmt.Println()
	}
}

// pickCustomer verifies an explicit customer number or offers a picker.
func pickCustomer(ctx context.Context, a *app, explicit string) (string, error) {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		ok, err := a.db.CustomerExists(ctx, explicit)
		if err != nil {
			return "", fmt.Errorf("verify customer: %w", err)
		}
		if !ok {
			return "", fmt.Errorf("customer %s not found", explicit)
		}
		return explicit, nil
	}

	customers, err := a.db.ListCustomers(ctx)
	if err != nil {
		return "", fmt.Errorf("list customers: %w", err)
	}
	if len(customers) == 0 {
		return "", errors.New("no customers in the database")
	}

	options := make([]huh.Option[string], 0, len(customers))
	for _, c := range customers {
		label := fmt.Sprintf("%d  %s", c.PK, c.Name)
		if c.Group != "" {
			label += styleMuted.Render("  (" + c.Group + ")")
		}
		options = append(options, huh.NewOption(label, strconv.FormatInt(c.PK, 10)))
	}

	var selected string
	err = huh.NewSelect[string]().
		Title("Chat as which customer?").
		Options(options...).
		Height(12).
		Value(&selected).
		Run()
	if err != nil {
		return "", err
	}
	return selected, nil
}
