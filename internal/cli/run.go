package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	orchestration "github.com/koscakluka/ema-voice/core"
	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/internal/config"
	"github.com/koscakluka/ema-voice/internal/tui"
)

var noTUI bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Listen for the wake phrase and hold conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration:\n%w", err)
		}

		orchestrator, closeDevice, err := orchestratorFromConfig(cfg)
		if err != nil {
			return err
		}
		defer closeDevice()
		defer orchestrator.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if noTUI || !tui.IsTTY() {
			return runConsole(ctx, orchestrator, cmd.OutOrStdout())
		}
		return runTUI(ctx, orchestrator)
	},
}

func init() {
	runCmd.Flags().BoolVar(&noTUI, "no-tui", false, "Print session events instead of the interactive view")
}

func runTUI(ctx context.Context, orchestrator *orchestration.Orchestrator) error {
	program := tea.NewProgram(tui.New(orchestrator), tea.WithAltScreen(), tea.WithContext(ctx))

	orchestrator.Orchestrate(ctx, orchestration.WithEventCallback(func(event events.Event) {
		program.Send(tui.EventMsg{Event: event})
	}))

	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("running interface: %w", err)
	}
	return nil
}

var (
	kindStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	userStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	marcoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func runConsole(ctx context.Context, orchestrator *orchestration.Orchestrator, out io.Writer) error {
	orchestrator.Orchestrate(ctx, orchestration.WithEventCallback(func(event events.Event) {
		if line, ok := consoleLine(event); ok {
			fmt.Fprintln(out, line)
		}
	}))
	fmt.Fprintln(out, kindStyle.Render("listening for the wake phrase, ctrl+c to quit"))

	<-ctx.Done()
	return nil
}

func consoleLine(event events.Event) (string, bool) {
	switch e := event.(type) {
	case events.SessionStateChanged:
		return kindStyle.Render(fmt.Sprintf("[%s -> %s]", e.From, e.To)), true
	case events.UserTranscriptFinal:
		return userStyle.Render("you: ") + e.Transcript, true
	case events.AssistantPlaybackStarted:
		return marcoStyle.Render("marco: ") + e.Text, true
	case events.PermissionDenied:
		return errorStyle.Render(e.Message), true
	case events.RecognitionFailed:
		logger.Warn("recognition failed", "kind", e.ErrorKind, "error", e.Err)
		return "", false
	case events.AssistantPlaybackEnded:
		if e.Error != "" {
			logger.Warn("playback failed", "kind", e.Error, "text", e.Text)
		}
		return "", false
	default:
		return "", false
	}
}
