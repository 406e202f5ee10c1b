// Package seriesinspector implements C1: reading per-slice DICOM metadata,
// grouping slices into series, rejecting localizers/scouts, and validating
// intra-series geometry consistency (spec §4.1).
package seriesinspector

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/mrsinham/reconmesh/internal/blobstore"
	"github.com/mrsinham/reconmesh/internal/model"
	"github.com/mrsinham/reconmesh/internal/reconerr"
)

const stage = "series_inspector"

// Warning is a non-fatal per-slice parse failure (spec §4.1
// UnreadableSliceWarning).
type Warning struct {
	Key string
	Err error
}

// Result is the C1 output: the series map plus any non-fatal warnings
// collected along the way.
type Result struct {
	Series   map[string]*model.Series
	Warnings []Warning
}

// Inspect reads every blob in keys, groups survivors into Series, and
// returns InvalidInputError if no slice is readable at all (spec §4.1).
func Inspect(ctx context.Context, store blobstore.Store, keys []string) (*Result, error) {
	res := &Result{Series: map[string]*model.Series{}}

	readable := 0
	for _, key := range keys {
		data, err := store.Get(ctx, key)
		if err != nil {
			res.Warnings = append(res.Warnings, Warning{Key: key, Err: err})
			continue
		}
		sl, err := parseSlice(data)
		if err != nil {
			res.Warnings = append(res.Warnings, Warning{Key: key, Err: err})
			continue
		}
		readable++

		if isLocalizer(sl.ImageType) {
			continue // dropped per §4.1, never enters a Series
		}

		s := res.Series[sl.SeriesUID]
		if s == nil {
			s = &model.Series{SeriesUID: sl.SeriesUID}
			res.Series[sl.SeriesUID] = s
		}
		s.Slices = append(s.Slices, sl)
	}

	if readable == 0 {
		return nil, reconerr.New(reconerr.KindInvalidInput, stage, "no slice among %d inputs was readable", len(keys))
	}
	if len(res.Series) == 0 {
		return nil, reconerr.New(reconerr.KindInvalidInput, stage, "no series survived localizer filtering")
	}

	for _, s := range res.Series {
		if err := validateGeometry(s); err != nil {
			return nil, err
		}
	}

	return res, nil
}

func isLocalizer(imageType []string) bool {
	for _, t := range imageType {
		u := strings.ToUpper(t)
		if strings.Contains(u, "LOCALIZER") || strings.Contains(u, "SCOUT") {
			return true
		}
	}
	return false
}

// validateGeometry enforces that every Slice in s shares rows, columns,
// in-plane spacing and orientation (spec §3 "Series" invariants, §4.1).
// Slices missing orientation are retained but marked (§4.1); they are not
// compared for the orientation check.
func validateGeometry(s *model.Series) error {
	if len(s.Slices) == 0 {
		return nil
	}
	ref := s.Slices[0]
	for i := 1; i < len(s.Slices); i++ {
		sl := s.Slices[i]
		if sl.Rows != ref.Rows || sl.Columns != ref.Columns {
			return reconerr.New(reconerr.KindInconsistentSeries, stage,
				"series %s: slice %s has %dx%d, expected %dx%d",
				s.SeriesUID, sl.SOPInstanceUID, sl.Rows, sl.Columns, ref.Rows, ref.Columns)
		}
		if !closeEnough(sl.PixelSpacing[0], ref.PixelSpacing[0]) || !closeEnough(sl.PixelSpacing[1], ref.PixelSpacing[1]) {
			return reconerr.New(reconerr.KindInconsistentSeries, stage,
				"series %s: slice %s has pixel spacing %v, expected %v",
				s.SeriesUID, sl.SOPInstanceUID, sl.PixelSpacing, ref.PixelSpacing)
		}
		if sl.HasOrientation && ref.HasOrientation {
			if !vecClose(sl.RowAxis, ref.RowAxis) || !vecClose(sl.ColAxis, ref.ColAxis) {
				return reconerr.New(reconerr.KindInconsistentSeries, stage,
					"series %s: slice %s has a different orientation than the series", s.SeriesUID, sl.SOPInstanceUID)
			}
		}
	}
	return nil
}

func closeEnough(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-3
}

func vecClose(a, b model.Vec3) bool {
	for i := 0; i < 3; i++ {
		if !closeEnough(a[i], b[i]) {
			return false
		}
	}
	return true
}

// parseSlice reads one DICOM dataset from data and extracts the fields the
// pipeline needs, tolerating missing orientation (§4.1 "retained but
// marked").
func parseSlice(data []byte) (model.Slice, error) {
	ds, err := dicom.Parse(bytes.NewReader(data), int64(len(data)), nil)
	if err != nil {
		return model.Slice{}, fmt.Errorf("parse dicom: %w", err)
	}

	var sl model.Slice
	sl.SeriesUID = firstString(ds, tag.SeriesInstanceUID)
	sl.SOPInstanceUID = firstString(ds, tag.SOPInstanceUID)
	sl.ImageType = allStrings(ds, tag.ImageType)
	sl.IsLocalizer = isLocalizer(sl.ImageType)

	if rows, ok := firstInt(ds, tag.Rows); ok {
		sl.Rows = rows
	}
	if cols, ok := firstInt(ds, tag.Columns); ok {
		sl.Columns = cols
	}
	if n, ok := firstInt(ds, tag.InstanceNumber); ok {
		sl.InstanceIndex = n
	}
	if t, ok := firstFloat(ds, tag.SliceThickness); ok {
		sl.SliceThickness = t
	}

	if ps := allFloats(ds, tag.PixelSpacing); len(ps) == 2 {
		sl.PixelSpacing = [2]float64{ps[0], ps[1]}
	}

	if pos := allFloats(ds, tag.ImagePositionPatient); len(pos) == 3 {
		sl.Position = model.Vec3{pos[0], pos[1], pos[2]}
		sl.HasPosition = true
	}

	if iop := allFloats(ds, tag.ImageOrientationPatient); len(iop) == 6 {
		sl.RowAxis = model.Vec3{iop[0], iop[1], iop[2]}
		sl.ColAxis = model.Vec3{iop[3], iop[4], iop[5]}
		sl.HasOrientation = true
	}

	sl.RescaleSlope = 1
	if v, ok := firstFloat(ds, tag.RescaleSlope); ok {
		sl.RescaleSlope = v
	}
	if v, ok := firstFloat(ds, tag.RescaleIntercept); ok {
		sl.RescaleIntercept = v
	}

	sl.Pixels = extractPixels(ds, sl.Rows, sl.Columns)

	if sl.SeriesUID == "" {
		return model.Slice{}, fmt.Errorf("slice has no SeriesInstanceUID")
	}
	return sl, nil
}

func extractPixels(ds dicom.Dataset, rows, cols int) []uint16 {
	elem, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil
	}
	info, ok := elem.Value.GetValue().(dicom.PixelDataInfo)
	if !ok || len(info.Frames) == 0 {
		return nil
	}
	nf, err := info.Frames[0].GetNativeFrame()
	if err != nil || nf == nil {
		return nil
	}
	return nativeFrameUint16(nf, rows, cols)
}

// nativeFrameUint16 flattens a NativeFrame's per-pixel samples (first
// channel only, sufficient for grayscale MR data) into a row-major slice.
func nativeFrameUint16(nf *frame.NativeFrame, rows, cols int) []uint16 {
	out := make([]uint16, rows*cols)
	for i := 0; i < rows*cols && i < len(nf.Data); i++ {
		if len(nf.Data[i]) > 0 {
			out[i] = uint16(nf.Data[i][0])
		}
	}
	return out
}

func firstString(ds dicom.Dataset, t tag.Tag) string {
	ss := allStrings(ds, t)
	if len(ss) == 0 {
		return ""
	}
	return ss[0]
}

func allStrings(ds dicom.Dataset, t tag.Tag) []string {
	elem, err := ds.FindElementByTag(t)
	if err != nil || elem == nil {
		return nil
	}
	ss, _ := elem.Value.GetValue().([]string)
	return ss
}

func firstInt(ds dicom.Dataset, t tag.Tag) (int, bool) {
	ss := allStrings(ds, t)
	if len(ss) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(ss[0]))
	return n, err == nil
}

func firstFloat(ds dicom.Dataset, t tag.Tag) (float64, bool) {
	fs := allFloats(ds, t)
	if len(fs) == 0 {
		return 0, false
	}
	return fs[0], true
}

func allFloats(ds dicom.Dataset, t tag.Tag) []float64 {
	ss := allStrings(ds, t)
	out := make([]float64, 0, len(ss))
	for _, s := range ss {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil
		}
		out = append(out, f)
	}
	return out
}
