package e2e

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// mustElement creates a DICOM element, panicking on error. Fixture shapes
// are fixed at compile time, so a failure here is a bug in the fixture
// builder itself, never bad input.
func mustElement(t tag.Tag, value interface{}) *dicom.Element {
	elem, err := dicom.NewElement(t, value)
	if err != nil {
		panic(fmt.Sprintf("failed to create element %v: %v", t, err))
	}
	return elem
}

// sliceSpec describes one synthetic MR slice at the tag level, giving the
// e2e fixtures exact control over geometry the high-level generator keeps
// fixed (slice thickness, series count, orientation).
type sliceSpec struct {
	SeriesUID         string
	SeriesDescription string
	SequenceName      string
	SOPInstanceUID    string
	InstanceNumber    int
	Rows, Columns     int
	PixelSpacingMM    float64
	SliceThicknessMM  float64
	PositionZ         float64
	ImageType         []string
}

// writeSlice encodes one synthetic MR slice to path using the same
// element-by-element construction as internal/dicom/generator.go, trimmed
// to the tags internal/seriesinspector actually reads.
func writeSlice(path string, sp sliceSpec) error {
	width, height := sp.Columns, sp.Rows
	pixelsPerFrame := width * height
	nativeFrame := frame.NewNativeFrame[uint16](16, height, width, pixelsPerFrame, 1)
	copy(nativeFrame.RawData, cylinderPattern(width, height))

	pixelDataInfo := dicom.PixelDataInfo{
		Frames: []*frame.Frame{
			{Encapsulated: false, NativeData: nativeFrame},
		},
	}

	imageType := sp.ImageType
	if len(imageType) == 0 {
		imageType = []string{"ORIGINAL", "PRIMARY"}
	}

	elements := []*dicom.Element{
		mustElement(tag.TransferSyntaxUID, []string{"1.2.840.10008.1.2.1"}),
		mustElement(tag.SOPClassUID, []string{"1.2.840.10008.5.1.4.1.1.4"}),
		mustElement(tag.SOPInstanceUID, []string{sp.SOPInstanceUID}),
		mustElement(tag.StudyInstanceUID, []string{"1.2.826.0.1.3680043.8.498.1.1"}),
		mustElement(tag.SeriesInstanceUID, []string{sp.SeriesUID}),
		mustElement(tag.Modality, []string{"MR"}),
		mustElement(tag.SeriesDescription, []string{sp.SeriesDescription}),
		mustElement(tag.SequenceName, []string{sp.SequenceName}),
		mustElement(tag.InstanceNumber, []string{fmt.Sprintf("%d", sp.InstanceNumber)}),
		mustElement(tag.Rows, []int{height}),
		mustElement(tag.Columns, []int{width}),
		mustElement(tag.BitsAllocated, []int{16}),
		mustElement(tag.BitsStored, []int{16}),
		mustElement(tag.HighBit, []int{15}),
		mustElement(tag.PixelRepresentation, []int{0}),
		mustElement(tag.SamplesPerPixel, []int{1}),
		mustElement(tag.PhotometricInterpretation, []string{"MONOCHROME2"}),
		mustElement(tag.PixelSpacing, []string{
			fmt.Sprintf("%.6f", sp.PixelSpacingMM),
			fmt.Sprintf("%.6f", sp.PixelSpacingMM),
		}),
		mustElement(tag.SliceThickness, []string{fmt.Sprintf("%.6f", sp.SliceThicknessMM)}),
		mustElement(tag.ImagePositionPatient, []string{"0", "0", fmt.Sprintf("%.6f", sp.PositionZ)}),
		mustElement(tag.ImageOrientationPatient, []string{"1", "0", "0", "0", "1", "0"}),
		mustElement(tag.ImageType, imageType),
		mustElement(tag.RescaleSlope, []string{"1"}),
		mustElement(tag.RescaleIntercept, []string{"0"}),
		mustElement(tag.PixelData, pixelDataInfo),
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return dicom.Write(f, dicom.Dataset{Elements: elements})
}

// cylinderPattern fills a slice with a smooth radial falloff from its
// center, giving Otsu-style thresholding a clean interior/exterior split
// without needing real anatomy.
func cylinderPattern(width, height int) []uint16 {
	out := make([]uint16, width*height)
	cx, cy := float64(width)/2, float64(height)/2
	maxDist := math.Sqrt(cx*cx + cy*cy)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dx, dy := float64(x)-cx, float64(y)-cy
			dist := math.Sqrt(dx*dx + dy*dy)
			norm := dist / maxDist
			intensity := (1.0 - norm) * 3000.0
			if intensity < 0 {
				intensity = 0
			}
			out[y*width+x] = uint16(intensity)
		}
	}
	return out
}

// buildSeries writes n contiguous axial slices of seriesUID under dir,
// named "<seriesUID>-NNN.dcm".
func buildSeries(dir, seriesUID, seriesDescription, sequenceName string, n, rows, cols int, pixelSpacingMM, thicknessMM float64) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		sp := sliceSpec{
			SeriesUID:         seriesUID,
			SeriesDescription: seriesDescription,
			SequenceName:      sequenceName,
			SOPInstanceUID:    fmt.Sprintf("%s.%d", seriesUID, i+1),
			InstanceNumber:    i + 1,
			Rows:              rows,
			Columns:           cols,
			PixelSpacingMM:    pixelSpacingMM,
			SliceThicknessMM:  thicknessMM,
			PositionZ:         float64(i) * thicknessMM,
		}
		path := filepath.Join(dir, fmt.Sprintf("%s-%03d.dcm", seriesUID, i+1))
		if err := writeSlice(path, sp); err != nil {
			return fmt.Errorf("write slice %d of series %s: %w", i+1, seriesUID, err)
		}
	}
	return nil
}

// buildLocalizerSeries writes n scout/localizer slices that
// internal/seriesinspector must drop before any series grouping happens.
func buildLocalizerSeries(dir, seriesUID string, n, rows, cols int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		sp := sliceSpec{
			SeriesUID:         seriesUID,
			SeriesDescription: "localizer",
			SequenceName:      "SCOUT",
			SOPInstanceUID:    fmt.Sprintf("%s.%d", seriesUID, i+1),
			InstanceNumber:    i + 1,
			Rows:              rows,
			Columns:           cols,
			PixelSpacingMM:    3.0,
			SliceThicknessMM:  5.0,
			PositionZ:         float64(i) * 5.0,
			ImageType:         []string{"ORIGINAL", "PRIMARY", "LOCALIZER"},
		}
		path := filepath.Join(dir, fmt.Sprintf("%s-%03d.dcm", seriesUID, i+1))
		if err := writeSlice(path, sp); err != nil {
			return fmt.Errorf("write localizer slice %d: %w", i+1, err)
		}
	}
	return nil
}
