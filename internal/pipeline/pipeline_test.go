package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mrsinham/reconmesh/internal/model"
	"github.com/mrsinham/reconmesh/internal/reconerr"
	"github.com/mrsinham/reconmesh/internal/segment"
)

func TestParseTissuesDefaultsToBody(t *testing.T) {
	got := parseTissues(nil)
	if len(got) != 1 || got[0] != model.TissueBody {
		t.Fatalf("expected default [TissueBody], got %v", got)
	}
}

func TestParseTissuesSkipsUnknownNames(t *testing.T) {
	got := parseTissues([]string{"bone", "not-a-tissue", "muscle"})
	if len(got) != 2 {
		t.Fatalf("expected 2 recognized tissues, got %d: %v", len(got), got)
	}
}

func TestPrimaryMaskForPrefersNonBody(t *testing.T) {
	bodyMask := model.NewMask(model.Geometry{NX: 1, NY: 1, NZ: 1})
	boneMask := model.NewMask(model.Geometry{NX: 1, NY: 1, NZ: 1})
	res := &segment.Result{Masks: map[model.TissueClass]*model.Mask{
		model.TissueBody: bodyMask,
		model.TissueBone: boneMask,
	}}
	got := primaryMaskFor(res, []model.TissueClass{model.TissueBody, model.TissueBone})
	if got != boneMask {
		t.Fatal("expected bone mask to take priority over body mask")
	}
}

func TestPrimaryMaskForFallsBackToBody(t *testing.T) {
	bodyMask := model.NewMask(model.Geometry{NX: 1, NY: 1, NZ: 1})
	res := &segment.Result{Masks: map[model.TissueClass]*model.Mask{model.TissueBody: bodyMask}}
	got := primaryMaskFor(res, []model.TissueClass{model.TissueBody})
	if got != bodyMask {
		t.Fatal("expected body mask fallback")
	}
}

func TestPrimaryMaskForMissingMaskReturnsNil(t *testing.T) {
	res := &segment.Result{Masks: map[model.TissueClass]*model.Mask{}}
	if got := primaryMaskFor(res, []model.TissueClass{model.TissueBone}); got != nil {
		t.Fatalf("expected nil when requested tissue has no mask, got %v", got)
	}
}

func TestCheckCancelReturnsNilWhenLive(t *testing.T) {
	if err := checkCancel(context.Background()); err != nil {
		t.Fatalf("expected nil for a live context, got %v", err)
	}
}

func TestCheckCancelReturnsErrWhenDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := checkCancel(ctx); err == nil {
		t.Fatal("expected an error for a cancelled context")
	}
}

func TestCheckCancelReturnsErrAfterTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	time.Sleep(5 * time.Millisecond)
	if err := checkCancel(ctx); err == nil {
		t.Fatal("expected an error for an expired deadline")
	}
}

func TestToReconErrorPreservesExistingKind(t *testing.T) {
	original := reconerr.New(reconerr.KindDegenerateGeometry, "segmenter", "empty body mask")
	got := toReconError(original, "surface")
	if got != original {
		t.Fatal("expected an existing *reconerr.Error to pass through unchanged")
	}
}

func TestToReconErrorWrapsPlainError(t *testing.T) {
	got := toReconError(errors.New("boom"), "exporter")
	if got.Stage != "exporter" {
		t.Fatalf("expected wrapped error to carry the given stage, got %q", got.Stage)
	}
	if got.Kind != reconerr.KindStageRecoverable {
		t.Fatalf("expected a StageRecoverable kind for a plain error, got %v", got.Kind)
	}
}
