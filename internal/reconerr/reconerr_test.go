package reconerr

import (
	"errors"
	"testing"
)

func TestKind_Fatal(t *testing.T) {
	fatal := []Kind{KindInvalidInput, KindInconsistentSeries, KindDegenerateGeometry}
	for _, k := range fatal {
		if !k.Fatal() {
			t.Errorf("%s.Fatal() = false, want true", k)
		}
	}
	nonFatal := []Kind{KindQualityWarning, KindStageRecoverable}
	for _, k := range nonFatal {
		if k.Fatal() {
			t.Errorf("%s.Fatal() = true, want false", k)
		}
	}
}

func TestError_ErrorFormatsStageAndKind(t *testing.T) {
	err := New(KindDegenerateGeometry, "surface_extractor", "empty mask")
	want := "surface_extractor: DegenerateGeometry: empty mask"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestError_ErrorWithoutStage(t *testing.T) {
	err := &Error{Kind: KindQualityWarning, Message: "coverage low"}
	want := "QualityWarning: coverage low"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestWrap_PreservesCauseForUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(cause, KindStageRecoverable, "exporter", "upload failed")
	if !errors.Is(err, cause) {
		t.Error("errors.Is(wrapped, cause) = false, want true")
	}
}

func TestStatus_Completed(t *testing.T) {
	s := Completed("out/mesh.stl", "out/mesh.glb")
	if s.Kind != StatusCompleted {
		t.Errorf("Kind = %v, want StatusCompleted", s.Kind)
	}
	if s.OutputSTL != "out/mesh.stl" || s.OutputGLB != "out/mesh.glb" {
		t.Errorf("OutputSTL/OutputGLB = %q/%q, want out/mesh.stl, out/mesh.glb", s.OutputSTL, s.OutputGLB)
	}
	if s.Error != nil {
		t.Error("Completed status should carry no Error")
	}
}

func TestStatus_Failed(t *testing.T) {
	cause := New(KindInvalidInput, "series_inspector", "no readable slices")
	s := Failed(cause)
	if s.Kind != StatusFailed {
		t.Errorf("Kind = %v, want StatusFailed", s.Kind)
	}
	if s.Error != cause {
		t.Error("Failed status should carry the given Error")
	}
}

func TestStatusKind_String(t *testing.T) {
	cases := map[StatusKind]string{
		StatusPending:    "pending",
		StatusProcessing: "processing",
		StatusCompleted:  "completed",
		StatusFailed:     "failed",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("%v.String() = %q, want %q", k, got, want)
		}
	}
}
