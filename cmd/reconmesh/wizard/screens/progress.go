package screens

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mrsinham/reconmesh/cmd/reconmesh/wizard/components"
)

// StageMsg reports that a pipeline stage (series_inspector, segmenter, ...)
// has just finished.
type StageMsg struct {
	Name    string
	Elapsed time.Duration
}

// CompletionMsg is sent when the job finishes.
type CompletionMsg struct {
	STLKey   string
	GLBKey   string
	Duration time.Duration
}

// ErrorMsg is sent when the job fails.
type ErrorMsg struct {
	Error error
}

// stageOrder matches the orchestrator's fixed C1-C8 sequence.
var stageOrder = []string{
	"series_inspector", "series_selector", "volume_assembler",
	"fuser", "preprocessor", "segmenter", "surface", "exporter",
}

var (
	stageDoneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	stagePendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	stageActiveStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	elapsedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	cancelHintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
)

// ProgressScreen displays the orchestrator's stage-by-stage progress.
type ProgressScreen struct {
	done      map[string]time.Duration
	startTime time.Time
	cancelled bool
}

// NewProgressScreen creates a new progress screen.
func NewProgressScreen() *ProgressScreen {
	return &ProgressScreen{done: map[string]time.Duration{}, startTime: time.Now()}
}

func (s *ProgressScreen) Init() tea.Cmd { return nil }

func (s *ProgressScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			s.cancelled = true
			return s, tea.Quit
		}
	case StageMsg:
		s.done[msg.Name] = msg.Elapsed
	}
	return s, nil
}

func (s *ProgressScreen) View() string {
	if s.cancelled {
		return "Cancelled.\n"
	}

	title := components.TitleStyle.Render("Reconstructing mesh...")

	activeFound := false
	var sb strings.Builder
	sb.WriteString(title)
	sb.WriteString("\n\n")
	for _, name := range stageOrder {
		if elapsed, ok := s.done[name]; ok {
			sb.WriteString(stageDoneStyle.Render("✓ " + name))
			sb.WriteString(elapsedStyle.Render(fmt.Sprintf(" (%.2fs)", elapsed.Seconds())))
		} else if !activeFound {
			activeFound = true
			sb.WriteString(stageActiveStyle.Render("▸ " + name))
		} else {
			sb.WriteString(stagePendingStyle.Render("  " + name))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(elapsedStyle.Render(fmt.Sprintf("Elapsed: %.1fs", time.Since(s.startTime).Seconds())))
	sb.WriteString("\n\n")
	sb.WriteString(cancelHintStyle.Render("Press Ctrl+C to cancel"))
	return sb.String()
}

// Cancelled reports whether the user cancelled the run.
func (s *ProgressScreen) Cancelled() bool { return s.cancelled }
