package screens

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mrsinham/reconmesh/cmd/reconmesh/wizard/components"
)

var (
	summarySuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	summaryFailStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	summaryLabelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	summaryValueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	summaryHintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
)

// SummaryScreen displays the terminal Completed/Failed outcome of a job.
type SummaryScreen struct {
	completion *CompletionMsg
	failure    error
}

// NewSummaryScreen builds a summary for a successful run.
func NewSummaryScreen(c CompletionMsg) *SummaryScreen {
	return &SummaryScreen{completion: &c}
}

// NewFailureSummaryScreen builds a summary for a failed run.
func NewFailureSummaryScreen(err error) *SummaryScreen {
	return &SummaryScreen{failure: err}
}

func (s *SummaryScreen) Init() tea.Cmd { return nil }

func (s *SummaryScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "q", "ctrl+c", "enter":
			return s, tea.Quit
		}
	}
	return s, nil
}

func (s *SummaryScreen) View() string {
	var sb strings.Builder
	sb.WriteString(components.TitleStyle.Render("Reconstruction"))
	sb.WriteString("\n\n")

	if s.failure != nil {
		sb.WriteString(summaryFailStyle.Render("✗ Failed"))
		sb.WriteString("\n\n")
		sb.WriteString(summaryLabelStyle.Render(s.failure.Error()))
		sb.WriteString("\n\n")
		sb.WriteString(summaryHintStyle.Render("Press q to exit"))
		return sb.String()
	}

	sb.WriteString(summarySuccessStyle.Render("✓ Completed"))
	sb.WriteString("\n\n")
	sb.WriteString(summaryLabelStyle.Render("STL: "))
	sb.WriteString(summaryValueStyle.Render(s.completion.STLKey))
	sb.WriteString("\n")
	sb.WriteString(summaryLabelStyle.Render("GLB: "))
	sb.WriteString(summaryValueStyle.Render(s.completion.GLBKey))
	sb.WriteString("\n")
	sb.WriteString(summaryLabelStyle.Render("Duration: "))
	sb.WriteString(summaryValueStyle.Render(fmt.Sprintf("%.1fs", s.completion.Duration.Seconds())))
	sb.WriteString("\n\n")
	sb.WriteString(summaryHintStyle.Render("Press q to exit"))
	return sb.String()
}
