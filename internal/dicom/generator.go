// Package dicom generates synthetic MR DICOM series for exercising the
// reconstruction pipeline's input stages in tests. It is a minimal,
// single-series fixture generator adapted from the teacher's much larger
// DICOM-generation product: no multi-study/multi-patient batching, no
// vendor corruption injection, no edge-case metadata variation and no
// DICOMDIR indexing, since nothing downstream of internal/seriesinspector
// reads any of that.
package dicom

import (
	"fmt"
	"hash/fnv"
	"math"
	randv2 "math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/mrsinham/reconmesh/internal/util"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// mustNewElement creates a new DICOM element, panicking on error. Fixture
// shapes are fixed at compile time, so a failure here is a bug in the
// generator itself, never bad input.
func mustNewElement(t tag.Tag, value interface{}) *dicom.Element {
	elem, err := dicom.NewElement(t, value)
	if err != nil {
		panic(fmt.Sprintf("failed to create element %v: %v", t, err))
	}
	return elem
}

// GeneratorOptions parameterizes one synthetic MR series.
type GeneratorOptions struct {
	NumImages int
	Width     int
	Height    int
	OutputDir string
	Seed      int64
	Workers   int // 0 = auto-detect based on CPU cores

	// Localizer makes the last of the NumImages images an oblique-orientation
	// LOCALIZER slice, for exercising the series inspector's scout-rejection
	// path.
	Localizer bool
}

// GeneratedFile describes one synthetic DICOM slice written to disk.
type GeneratedFile struct {
	Path           string
	SeriesUID      string
	SOPInstanceUID string
	InstanceNumber int
}

type imageTask struct {
	instanceNumber int
	filePath       string
	pixelSeed      uint64
	metadata       []*dicom.Element
	seriesUID      string
	sopInstanceUID string
}

const (
	pixelSpacingMM   = 1.0
	sliceThicknessMM = 2.0
)

// GenerateDICOMSeries writes opts.NumImages MR images under opts.OutputDir:
// contiguous axial slices, the last of which is a localizer when
// opts.Localizer is set.
func GenerateDICOMSeries(opts GeneratorOptions) ([]GeneratedFile, error) {
	if opts.NumImages <= 0 {
		return nil, fmt.Errorf("number of images must be > 0, got %d", opts.NumImages)
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("width and height must be > 0")
	}
	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	seed := opts.Seed
	if seed == 0 {
		h := fnv.New64a()
		_, _ = h.Write([]byte(opts.OutputDir)) // hash.Write never returns an error
		seed = int64(h.Sum64())
	}

	seriesUID := util.GenerateDeterministicUID(fmt.Sprintf("%s_series", opts.OutputDir))

	tasks := make([]imageTask, 0, opts.NumImages)
	for i := 1; i <= opts.NumImages; i++ {
		isLocalizer := opts.Localizer && i == opts.NumImages
		sopInstanceUID := util.GenerateDeterministicUID(fmt.Sprintf("%s_instance_%d", opts.OutputDir, i))

		imageOrientationPatient := []string{"1", "0", "0", "0", "1", "0"}
		imageType := []string{"ORIGINAL", "PRIMARY"}
		if isLocalizer {
			imageOrientationPatient = []string{"0.7071", "0", "0.7071", "0", "1", "0"}
			imageType = []string{"ORIGINAL", "PRIMARY", "LOCALIZER"}
		}

		z := -100.0 + float64(i-1)*sliceThicknessMM

		metadata := []*dicom.Element{
			mustNewElement(tag.TransferSyntaxUID, []string{"1.2.840.10008.1.2.1"}),
			mustNewElement(tag.SOPClassUID, []string{"1.2.840.10008.5.1.4.1.1.4"}),
			mustNewElement(tag.SOPInstanceUID, []string{sopInstanceUID}),
			mustNewElement(tag.SeriesInstanceUID, []string{seriesUID}),
			mustNewElement(tag.Modality, []string{"MR"}),
			mustNewElement(tag.SeriesDescription, []string{"Brain MRI"}),
			mustNewElement(tag.SequenceName, []string{"T1_MPRAGE"}),
			mustNewElement(tag.InstanceNumber, []string{fmt.Sprintf("%d", i)}),
			mustNewElement(tag.Rows, []int{opts.Height}),
			mustNewElement(tag.Columns, []int{opts.Width}),
			mustNewElement(tag.BitsAllocated, []int{16}),
			mustNewElement(tag.BitsStored, []int{16}),
			mustNewElement(tag.HighBit, []int{15}),
			mustNewElement(tag.PixelRepresentation, []int{0}),
			mustNewElement(tag.SamplesPerPixel, []int{1}),
			mustNewElement(tag.PhotometricInterpretation, []string{"MONOCHROME2"}),
			mustNewElement(tag.PixelSpacing, []string{
				fmt.Sprintf("%.6f", pixelSpacingMM),
				fmt.Sprintf("%.6f", pixelSpacingMM),
			}),
			mustNewElement(tag.SliceThickness, []string{fmt.Sprintf("%.6f", sliceThicknessMM)}),
			mustNewElement(tag.ImagePositionPatient, []string{"-100.000000", "-100.000000", fmt.Sprintf("%.6f", z)}),
			mustNewElement(tag.ImageOrientationPatient, imageOrientationPatient),
			mustNewElement(tag.ImageType, imageType),
			mustNewElement(tag.RescaleSlope, []string{"1"}),
			mustNewElement(tag.RescaleIntercept, []string{"0"}),
		}

		pixelSeedHash := fnv.New64a()
		_, _ = pixelSeedHash.Write([]byte(fmt.Sprintf("%d_pixel_%d", seed, i)))

		tasks = append(tasks, imageTask{
			instanceNumber: i,
			filePath:       filepath.Join(opts.OutputDir, fmt.Sprintf("IMG%04d.dcm", i)),
			pixelSeed:      pixelSeedHash.Sum64(),
			metadata:       metadata,
			seriesUID:      seriesUID,
			sopInstanceUID: sopInstanceUID,
		})
	}

	numWorkers := opts.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > len(tasks) {
		numWorkers = len(tasks)
	}

	taskChan := make(chan imageTask, len(tasks))
	errChan := make(chan error, len(tasks))

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskChan {
				errChan <- generateImageFromTask(task, opts.Width, opts.Height)
			}
		}()
	}
	for _, task := range tasks {
		taskChan <- task
	}
	close(taskChan)

	go func() {
		wg.Wait()
		close(errChan)
	}()

	var firstErr error
	for err := range errChan {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}

	files := make([]GeneratedFile, len(tasks))
	for i, task := range tasks {
		files[i] = GeneratedFile{
			Path:           task.filePath,
			SeriesUID:      task.seriesUID,
			SOPInstanceUID: task.sopInstanceUID,
			InstanceNumber: task.instanceNumber,
		}
	}
	return files, nil
}

// generateImageFromTask fills a smooth radial brain-like pattern plus noise
// into task's pixel data and writes the complete DICOM dataset to disk.
func generateImageFromTask(task imageTask, width, height int) error {
	pixelsPerFrame := width * height
	nativeFrame := frame.NewNativeFrame[uint16](16, height, width, pixelsPerFrame, 1)

	rng := randv2.New(randv2.NewPCG(task.pixelSeed, task.pixelSeed))
	cx, cy := float64(width)/2, float64(height)/2
	maxDist := math.Sqrt(cx*cx + cy*cy)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dx, dy := float64(x)-cx, float64(y)-cy
			dist := math.Sqrt(dx*dx + dy*dy)
			base := (1.0 - dist/maxDist) * 12000.0
			noise := (rng.Float64() - 0.5) * 6000.0
			v := base + noise
			if v < 0 {
				v = 0
			} else if v > 65535 {
				v = 65535
			}
			nativeFrame.RawData[y*width+x] = uint16(v)
		}
	}

	elements := make([]*dicom.Element, len(task.metadata)+1)
	copy(elements, task.metadata)
	elements[len(task.metadata)] = mustNewElement(tag.PixelData, dicom.PixelDataInfo{
		Frames: []*frame.Frame{{Encapsulated: false, NativeData: nativeFrame}},
	})

	f, err := os.Create(task.filePath)
	if err != nil {
		return err
	}
	defer f.Close()
	return dicom.Write(f, dicom.Dataset{Elements: elements})
}
