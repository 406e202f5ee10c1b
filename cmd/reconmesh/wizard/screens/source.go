package screens

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/mrsinham/reconmesh/cmd/reconmesh/wizard/components"
)

// SourceConfig holds the fields the source screen collects.
type SourceConfig struct {
	Source       string
	OutputPrefix string
}

// SourceScreen is the first wizard screen: where input series live and
// where output should land.
type SourceScreen struct {
	form      *huh.Form
	helpPanel *components.HelpPanel
	config    *SourceConfig
	width     int
	height    int
	done      bool
	cancelled bool
}

// NewSourceScreen creates the source screen, defaulting unset fields.
func NewSourceScreen(config *SourceConfig) *SourceScreen {
	if config.OutputPrefix == "" {
		config.OutputPrefix = "reconmesh-output"
	}

	s := &SourceScreen{helpPanel: components.NewHelpPanel(), config: config}

	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("source").
				Title("Source directory").
				Value(&config.Source).
				Validate(validateNonEmpty),

			huh.NewInput().
				Key("output_prefix").
				Title("Output prefix").
				Value(&config.OutputPrefix).
				Validate(validateNonEmpty),
		),
	)

	return s
}

func validateNonEmpty(s string) error {
	if s == "" {
		return fmt.Errorf("required")
	}
	return nil
}

func (s *SourceScreen) Init() tea.Cmd { return s.form.Init() }

func (s *SourceScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "esc" {
			s.cancelled = true
			return s, tea.Quit
		}
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		s.helpPanel.SetSize(msg.Width/3, msg.Height/2)
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}

	if focused := s.form.GetFocusedField(); focused != nil {
		s.helpPanel.SetField(focused.GetKey())
	}

	if s.form.State == huh.StateCompleted {
		s.done = true
	}

	return s, cmd
}

func (s *SourceScreen) View() string {
	if s.cancelled {
		return "Cancelled.\n"
	}

	title := components.TitleStyle.Render("Reconstruction - Source")

	content := lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		s.form.View(),
		"",
		s.helpPanel.View(),
		"",
		"Tab: Next field | Enter: Submit | Esc: Cancel",
	)

	return content
}

// Done reports whether the form was completed.
func (s *SourceScreen) Done() bool { return s.done }

// Cancelled reports whether the user cancelled.
func (s *SourceScreen) Cancelled() bool { return s.cancelled }

// Config returns the collected source settings.
func (s *SourceScreen) Config() *SourceConfig { return s.config }
