package screens

import (
	"fmt"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/mrsinham/reconmesh/cmd/reconmesh/wizard/components"
)

// OptionsConfig holds the fields the options screen collects.
type OptionsConfig struct {
	Tissues            []string
	ForceSeriesUID     string
	Force25D           bool
	DecimationMaxFaces int
	CompressorPath     string
}

// OptionsScreen is the second wizard screen: segmentation and export
// tuning.
type OptionsScreen struct {
	form      *huh.Form
	helpPanel *components.HelpPanel
	config    *OptionsConfig
	width     int
	height    int
	done      bool
	cancelled bool

	decimationMaxFacesStr string
}

// NewOptionsScreen creates the options screen, defaulting unset fields.
func NewOptionsScreen(config *OptionsConfig) *OptionsScreen {
	if len(config.Tissues) == 0 {
		config.Tissues = []string{"body"}
	}
	if config.DecimationMaxFaces == 0 {
		config.DecimationMaxFaces = 150_000
	}

	s := &OptionsScreen{
		helpPanel:             components.NewHelpPanel(),
		config:                config,
		decimationMaxFacesStr: strconv.Itoa(config.DecimationMaxFaces),
	}

	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Key("tissues").
				Title("Tissues").
				Options(
					huh.NewOption("body", "body"),
					huh.NewOption("bone", "bone"),
					huh.NewOption("muscle", "muscle"),
				).
				Value(&config.Tissues),

			huh.NewInput().
				Key("force_series").
				Title("Force series UID (optional)").
				Value(&config.ForceSeriesUID),

			huh.NewConfirm().
				Key("force_25d").
				Title("Allow the 2.5D bone branch").
				Value(&config.Force25D),

			huh.NewInput().
				Key("decimation_max_faces").
				Title("Decimation max faces").
				Value(&s.decimationMaxFacesStr).
				Validate(validateNonNegativeInt),

			huh.NewInput().
				Key("compressor_path").
				Title("Draco compressor path (optional)").
				Value(&config.CompressorPath),
		),
	)

	return s
}

func validateNonNegativeInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("must be a number")
	}
	if n < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func (s *OptionsScreen) Init() tea.Cmd { return s.form.Init() }

func (s *OptionsScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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
		s.syncConfigFromForm()
	}

	return s, cmd
}

func (s *OptionsScreen) syncConfigFromForm() {
	if n, err := strconv.Atoi(s.decimationMaxFacesStr); err == nil {
		s.config.DecimationMaxFaces = n
	}
}

func (s *OptionsScreen) View() string {
	if s.cancelled {
		return "Cancelled.\n"
	}

	title := components.TitleStyle.Render("Reconstruction - Options")

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
func (s *OptionsScreen) Done() bool { return s.done }

// Cancelled reports whether the user cancelled.
func (s *OptionsScreen) Cancelled() bool { return s.cancelled }

// Config returns the collected options.
func (s *OptionsScreen) Config() *OptionsConfig { return s.config }
