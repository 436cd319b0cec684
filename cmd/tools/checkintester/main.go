package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/muni-health/muni/backend/internal/analysis/triage"
	"github.com/muni-health/muni/backend/internal/config"
	"github.com/muni-health/muni/backend/internal/model/chat"
	"github.com/muni-health/muni/backend/internal/service/ai"
	chatservice "github.com/muni-health/muni/backend/internal/service/chat"
	"github.com/muni-health/muni/backend/internal/service/checkin"
)

var (
	rulesPath string
	condition string
	timeout   time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "checkintester",
	Short: "Manual tester for the check-in triage pipeline",
}

var sendCmd = &cobra.Command{
	Use:   "send [text]",
	Short: "Run one check-in turn against the configured chat model",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSend,
}

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Replay reply text from stdin through the triage classifier, one chunk per line",
	Args:  cobra.NoArgs,
	RunE:  runClassify,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rulesPath, "rules", "", "triage rules YAML (defaults to TRIAGE_RULES_PATH)")
	sendCmd.Flags().StringVar(&condition, "condition", "", "condition reported at onboarding")
	sendCmd.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "turn timeout")
	rootCmd.AddCommand(sendCmd, classifyCmd)
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] could not load .env, using system environment: %v", err)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadRules(cfg *config.Config) (triage.Rules, error) {
	path := rulesPath
	if path == "" && cfg != nil {
		path = cfg.Triage.RulesPath
	}
	return triage.LoadRules(path)
}

func runSend(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if !cfg.AI.Enabled() {
		return fmt.Errorf("chat model not configured: set ARK_API_KEY and Model")
	}

	rules, err := loadRules(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	aiService, err := ai.NewService(ctx, cfg.AI)
	if err != nil {
		return err
	}

	store := chatservice.NewService()
	session, err := store.CreateSession(ctx, chat.Profile{Condition: condition})
	if err != nil {
		return err
	}

	runner := checkin.NewService(aiService, store, rules)
	result, err := runner.Send(ctx, session.ID, strings.Join(args, " "), triage.SinkFunc(printMessage(cmd.OutOrStdout())))
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "-- turn %s halted=%t failed=%t\n", result.TurnID, result.Halted, result.Failed)
	return nil
}

func runClassify(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	rules, err := loadRules(cfg)
	if err != nil {
		return err
	}

	turn := triage.NewTurn(rules, "local", "replay", triage.SinkFunc(printMessage(cmd.OutOrStdout())))

	halted, err := replayChunks(cmd.InOrStdin(), turn)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	if halted {
		fmt.Fprintln(cmd.OutOrStdout(), "-- halted on safety alert")
		return nil
	}

	turn.Finish()
	return nil
}

// replayChunks pushes each line of r, newline included, as one streamed
// chunk. It reports whether the turn halted on an alert.
func replayChunks(r io.Reader, turn *triage.Turn) (bool, error) {
	reader := bufio.NewReader(r)
	for {
		chunk, err := reader.ReadString('\n')
		if chunk != "" && !turn.Push(chunk) {
			return true, nil
		}
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
	}
}

func printMessage(w io.Writer) func(chat.Message) {
	return func(msg chat.Message) {
		label := string(msg.Sender)
		if msg.Type != chat.TypeNone {
			label += "/" + string(msg.Type)
		}
		fmt.Fprintf(w, "[%s] %s\n", label, msg.Text)
	}
}
