package wizard

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mrsinham/reconmesh/cmd/reconmesh/wizard/screens"
	"github.com/mrsinham/reconmesh/internal/blobstore"
	"github.com/mrsinham/reconmesh/internal/model"
	"github.com/mrsinham/reconmesh/internal/pipeline"
	"github.com/mrsinham/reconmesh/internal/reconerr"
	"github.com/mrsinham/reconmesh/internal/reconlog"
)

// Run steps through the four wizard screens (source, options, progress,
// summary) and, once confirmed, drives a single reconstruction job through
// the orchestrator. If fromConfig is set, the source/options screens are
// skipped and the saved JobState is used directly.
func Run(fromConfig string) error {
	var state JobState
	if fromConfig != "" {
		loaded, err := LoadFromYAML(fromConfig)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		state = loaded
	} else {
		state = DefaultJobState()

		srcCfg := &screens.SourceConfig{Source: state.Source, OutputPrefix: state.OutputPrefix}
		src := screens.NewSourceScreen(srcCfg)
		if err := runScreen(src); err != nil {
			return err
		}
		if src.Cancelled() {
			return nil
		}
		state.Source = srcCfg.Source
		state.OutputPrefix = srcCfg.OutputPrefix

		optCfg := &screens.OptionsConfig{
			Tissues:            state.Tissues,
			ForceSeriesUID:     state.ForceSeriesUID,
			Force25D:           state.Force25D,
			DecimationMaxFaces: state.DecimationMaxFaces,
			CompressorPath:     state.CompressorPath,
		}
		opt := screens.NewOptionsScreen(optCfg)
		if err := runScreen(opt); err != nil {
			return err
		}
		if opt.Cancelled() {
			return nil
		}
		state.Tissues = optCfg.Tissues
		state.ForceSeriesUID = optCfg.ForceSeriesUID
		state.Force25D = optCfg.Force25D
		state.DecimationMaxFaces = optCfg.DecimationMaxFaces
		state.CompressorPath = optCfg.CompressorPath
	}

	return runJob(state)
}

func runScreen(m tea.Model) error {
	p := tea.NewProgram(m)
	_, err := p.Run()
	return err
}

// jobResultMsg carries the orchestrator's terminal status into the
// progress screen's Update loop.
type jobResultMsg struct {
	status   reconerr.Status
	duration time.Duration
}

// progressModel wraps the progress screen, starts the job as a tea.Cmd,
// and switches to the summary screen once jobResultMsg arrives.
type progressModel struct {
	progress *screens.ProgressScreen
	run      func() tea.Msg
	cancel   context.CancelFunc
	done     tea.Model
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.progress.Init(), m.run)
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.done != nil {
		updated, cmd := m.done.Update(msg)
		m.done = updated
		return m, cmd
	}

	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "ctrl+c" {
		m.cancel()
	}

	if res, ok := msg.(jobResultMsg); ok {
		if res.status.Kind == reconerr.StatusCompleted {
			m.done = screens.NewSummaryScreen(screens.CompletionMsg{
				STLKey:   res.status.OutputSTL,
				GLBKey:   res.status.OutputGLB,
				Duration: res.duration,
			})
		} else {
			m.done = screens.NewFailureSummaryScreen(fmt.Errorf("%s", res.status.Error.Message))
		}
		return m, m.done.Init()
	}

	updated, cmd := m.progress.Update(msg)
	m.progress = updated.(*screens.ProgressScreen)
	return m, cmd
}

func (m *progressModel) View() string {
	if m.done != nil {
		return m.done.View()
	}
	return m.progress.View()
}

// runJob drives the progress screen while the orchestrator runs in the
// background, relaying stage completions via the running tea.Program.
func runJob(state JobState) error {
	store := blobstore.NewFSStore(state.Source)
	entries, err := os.ReadDir(state.Source)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}
	var keys []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".dcm") {
			keys = append(keys, e.Name())
		}
	}

	logger, err := reconlog.Open("reconmesh-audit.log.gz", true)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer logger.Close()

	job := model.Job{
		ID:            fmt.Sprintf("wizard-%d", time.Now().UnixNano()),
		InputBlobKeys: keys,
		OutputPrefix:  state.OutputPrefix,
	}
	cfg := ToPipelineConfig(state)
	orch := &pipeline.Orchestrator{Store: store, Logger: logger}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pm := &progressModel{progress: screens.NewProgressScreen(), cancel: cancel}
	p := tea.NewProgram(pm)

	orch.OnStage = func(name string, elapsed time.Duration) {
		p.Send(screens.StageMsg{Name: name, Elapsed: elapsed})
	}
	pm.run = func() tea.Msg {
		start := time.Now()
		status := orch.Run(ctx, job, cfg)
		return jobResultMsg{status: status, duration: time.Since(start)}
	}

	_, err = p.Run()
	return err
}
