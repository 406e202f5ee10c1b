// Package pipeline implements C9: the orchestrator driving C1-C8 in strict
// sequence, owning Volume/Mask lifetime, enforcing the memory guard,
// checking for cooperative cancellation at stage boundaries, and committing
// output atomically (spec §4.9, §5).
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/mrsinham/reconmesh/internal/blobstore"
	"github.com/mrsinham/reconmesh/internal/config"
	"github.com/mrsinham/reconmesh/internal/export"
	"github.com/mrsinham/reconmesh/internal/fuse"
	"github.com/mrsinham/reconmesh/internal/model"
	"github.com/mrsinham/reconmesh/internal/preprocess"
	"github.com/mrsinham/reconmesh/internal/reconerr"
	"github.com/mrsinham/reconmesh/internal/reconlog"
	"github.com/mrsinham/reconmesh/internal/segment"
	"github.com/mrsinham/reconmesh/internal/seriesinspector"
	"github.com/mrsinham/reconmesh/internal/seriesselector"
	"github.com/mrsinham/reconmesh/internal/surface"
	"github.com/mrsinham/reconmesh/internal/volumeassembler"
)

// Orchestrator drives a single Job through C1-C8 (spec §5 "single-threaded
// within one worker process").
type Orchestrator struct {
	Store  blobstore.Store
	Logger *reconlog.Logger

	// OnStage, if set, is called after each stage completes (e.g. to drive
	// a progress UI). It must not block.
	OnStage func(name string, elapsed time.Duration)
}

// Run executes job, uploading mesh.stl and mesh.glb under job.OutputPrefix
// on success. ctx is checked between stages for cooperative cancellation
// (spec §5).
func (o *Orchestrator) Run(ctx context.Context, job model.Job, cfg config.PipelineConfig) reconerr.Status {
	var warnings []*reconerr.Error

	logWarn := func(w *reconerr.Error) {
		if w == nil {
			return
		}
		warnings = append(warnings, w)
		if o.Logger != nil {
			o.Logger.Warn(w.Stage, w.Kind.String(), w.Message)
		}
	}

	stageTimer := func(name string) func(size int64, msg string) {
		start := time.Now()
		return func(size int64, msg string) {
			elapsed := time.Since(start)
			if o.Logger != nil {
				o.Logger.Stage(name, elapsed, size, msg)
			}
			if o.OnStage != nil {
				o.OnStage(name, elapsed)
			}
		}
	}

	if err := checkCancel(ctx); err != nil {
		return reconerr.Failed(reconerr.Wrap(err, reconerr.KindStageRecoverable, "orchestrator", "cancelled before start"))
	}

	// C1: Series Inspector
	done := stageTimer("series_inspector")
	inspected, err := seriesinspector.Inspect(ctx, o.Store, job.InputBlobKeys)
	if err != nil {
		return reconerr.Failed(toReconError(err, "series_inspector"))
	}
	for _, w := range inspected.Warnings {
		logWarn(reconerr.New(reconerr.KindStageRecoverable, "series_inspector", "%s: %v", w.Key, w.Err))
	}
	done(int64(len(inspected.Series)), fmt.Sprintf("inspected %d series", len(inspected.Series)))

	if err := checkCancel(ctx); err != nil {
		return reconerr.Failed(reconerr.Wrap(err, reconerr.KindStageRecoverable, "orchestrator", "cancelled after series_inspector"))
	}

	// C2: Series Selector
	done = stageTimer("series_selector")
	selection := seriesselector.Select(inspected.Series, cfg.ForceSeriesUID, cfg.MemoryGuardMaxSlices, cfg.MemoryGuardMaxSeries)
	if !selection.FusionUsable && len(selection.Alternates) > 0 {
		logWarn(reconerr.New(reconerr.KindQualityWarning, "series_selector", "memory guard downgraded to single-series processing"))
	}
	done(int64(len(selection.Alternates)+1), fmt.Sprintf("selected primary series %s", selection.Primary.SeriesUID))

	if err := checkCancel(ctx); err != nil {
		return reconerr.Failed(reconerr.Wrap(err, reconerr.KindStageRecoverable, "orchestrator", "cancelled after series_selector"))
	}

	primarySeries := inspected.Series[selection.Primary.SeriesUID]

	// C3: Volume Assembler
	done = stageTimer("volume_assembler")
	assembled, err := volumeassembler.Assemble(primarySeries)
	if err != nil {
		return reconerr.Failed(toReconError(err, "volume_assembler"))
	}
	for _, w := range assembled.Warnings {
		logWarn(w)
	}
	done(int64(assembled.Volume.NumVoxels()), fmt.Sprintf("assembled volume %dx%dx%d, r=%.2f", assembled.Volume.NX, assembled.Volume.NY, assembled.Volume.NZ, assembled.Anisotropy))

	if err := checkCancel(ctx); err != nil {
		return reconerr.Failed(reconerr.Wrap(err, reconerr.KindStageRecoverable, "orchestrator", "cancelled after volume_assembler"))
	}

	volume := assembled.Volume

	// C6: Multi-Plane Fuser (optional, gated by the memory guard)
	if selection.FusionUsable && len(selection.Alternates) > 0 {
		done = stageTimer("fuser")
		var moving []*model.Volume
		for _, alt := range selection.Alternates {
			altSeries, ok := inspected.Series[alt.SeriesUID]
			if !ok {
				continue
			}
			altAssembled, err := volumeassembler.Assemble(altSeries)
			if err != nil {
				logWarn(reconerr.New(reconerr.KindStageRecoverable, "fuser", "skipping unusable alternate series %s: %v", alt.SeriesUID, err))
				continue
			}
			moving = append(moving, altAssembled.Volume)
		}
		if len(moving) > 0 {
			fused := fuse.Fuse(volume, moving)
			volume = fused.Fused
		}
		done(int64(volume.NumVoxels()), "fused secondary series onto the primary grid")

		if err := checkCancel(ctx); err != nil {
			return reconerr.Failed(reconerr.Wrap(err, reconerr.KindStageRecoverable, "orchestrator", "cancelled after fuser"))
		}
	}

	// C4: Intensity Preprocessor
	done = stageTimer("preprocessor")
	preprocessed := preprocess.Run(volume)
	for _, w := range preprocessed.Warnings {
		logWarn(w)
	}
	done(int64(preprocessed.Volume.NumVoxels()), "preprocessed intensities")

	if err := checkCancel(ctx); err != nil {
		return reconerr.Failed(reconerr.Wrap(err, reconerr.KindStageRecoverable, "orchestrator", "cancelled after preprocessor"))
	}

	// C5: Segmenter
	done = stageTimer("segmenter")
	tissues := parseTissues(cfg.Tissues)
	use25D := assembled.Use25D && cfg.Force25D
	segmented, err := segment.Run(preprocessed.Volume, tissues, use25D)
	if err != nil {
		return reconerr.Failed(toReconError(err, "segmenter"))
	}
	for _, w := range segmented.Warnings {
		logWarn(w)
	}
	done(int64(len(segmented.Masks)), fmt.Sprintf("segmented %d tissue mask(s)", len(segmented.Masks)))

	if err := checkCancel(ctx); err != nil {
		return reconerr.Failed(reconerr.Wrap(err, reconerr.KindStageRecoverable, "orchestrator", "cancelled after segmenter"))
	}

	primaryMask := primaryMaskFor(segmented, tissues)
	if primaryMask == nil {
		return reconerr.Failed(reconerr.New(reconerr.KindDegenerateGeometry, "segmenter", "no mask available for any requested tissue"))
	}

	// C7: Surface Extractor
	done = stageTimer("surface")
	if cfg.MCStepSize != 1 {
		logWarn(reconerr.New(reconerr.KindQualityWarning, "surface", "requested marching-cubes step size %d overridden to 1", cfg.MCStepSize))
	}
	mesh, err := surface.Extract(primaryMask, surface.Options{DecimationMaxFaces: cfg.DecimationMaxFaces})
	if err != nil {
		return reconerr.Failed(toReconError(err, "surface"))
	}
	if cfg.DecimationMaxFaces > 0 && mesh.NumTriangles() > cfg.DecimationMaxFaces {
		logWarn(reconerr.New(reconerr.KindStageRecoverable, "surface", "no decimation backend available, keeping pre-decimation mesh with %d triangles", mesh.NumTriangles()))
	}
	done(int64(mesh.NumTriangles()), fmt.Sprintf("extracted mesh, %d triangles", mesh.NumTriangles()))

	if err := checkCancel(ctx); err != nil {
		return reconerr.Failed(reconerr.Wrap(err, reconerr.KindStageRecoverable, "orchestrator", "cancelled after surface"))
	}

	// C8: Exporter
	done = stageTimer("exporter")
	exported, err := export.Run(ctx, mesh, export.Config{
		CompressorPath:    cfg.CompressorPath,
		CompressorTimeout: cfg.CompressorTimeout,
		Draco:             export.DefaultDracoParams(),
	})
	if err != nil {
		return reconerr.Failed(toReconError(err, "exporter"))
	}
	for _, w := range exported.Warnings {
		logWarn(w)
	}
	done(int64(len(exported.STL)+len(exported.GLB)), "exported STL and GLB")

	// All-or-nothing upload (spec §5 "no partial-output commit").
	stlKey := job.OutputPrefix + "/mesh.stl"
	glbKey := job.OutputPrefix + "/mesh.glb"
	if err := o.Store.Put(ctx, stlKey, exported.STL, "application/octet-stream"); err != nil {
		return reconerr.Failed(reconerr.Wrap(err, reconerr.KindStageRecoverable, "orchestrator", "failed to upload STL"))
	}
	if err := o.Store.Put(ctx, glbKey, exported.GLB, "model/gltf-binary"); err != nil {
		return reconerr.Failed(reconerr.Wrap(err, reconerr.KindStageRecoverable, "orchestrator", "failed to upload GLB"))
	}

	return reconerr.Completed(stlKey, glbKey)
}

func checkCancel(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func parseTissues(names []string) []model.TissueClass {
	var out []model.TissueClass
	for _, n := range names {
		if tc, ok := model.ParseTissueClass(n); ok {
			out = append(out, tc)
		}
	}
	if len(out) == 0 {
		out = []model.TissueClass{model.TissueBody}
	}
	return out
}

// primaryMaskFor picks the surface-extraction target: the first
// non-TissueBody requested mask, falling back to the body mask (spec §4.7
// operates on "a binary Mask").
func primaryMaskFor(res *segment.Result, tissues []model.TissueClass) *model.Mask {
	for _, t := range tissues {
		if t == model.TissueBody {
			continue
		}
		if m, ok := res.Masks[t]; ok {
			return m
		}
	}
	return res.Masks[model.TissueBody]
}

func toReconError(err error, stage string) *reconerr.Error {
	if re, ok := err.(*reconerr.Error); ok {
		return re
	}
	return reconerr.Wrap(err, reconerr.KindStageRecoverable, stage, "%v", err)
}
