// Package wizard provides an interactive TUI for configuring and running a
// single reconstruction job.
package wizard

// JobState holds everything the wizard screens collect before a run.
type JobState struct {
	Source       string // local directory of .dcm files
	OutputPrefix string

	Tissues        []string
	ForceSeriesUID string
	Force25D       bool

	DecimationMaxFaces int
	CompressorPath     string
}

// DefaultJobState mirrors config.Default for the fields the wizard edits.
func DefaultJobState() JobState {
	return JobState{
		Tissues:            []string{"body"},
		Force25D:           true,
		DecimationMaxFaces: 150_000,
	}
}
