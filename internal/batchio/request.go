// Package batchio reads analysis requests from CSV/XLSX sheets and writes
// results back as spreadsheets.
package batchio

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/zoning-cli/internal/model"
)

// Request is one input row.
type Request struct {
	Row          int // 1-based data row, header excluded
	Address      string
	Measurements model.ProjectMeasurements
	// Err is set when the row could not be parsed; the row is reported, not analyzed.
	Err error
}

// Column names accepted in the header row (case-insensitive).
const (
	ColAddress             = "address"
	ColLotArea             = "lot_area"
	ColFootprintArea       = "footprint_area"
	ColCountableBuiltArea  = "countable_built_area"
	ColPermeableArea       = "permeable_area"
	ColFloors              = "floors"
	ColFrontSetback        = "front_setback"
	ColParkingTotal        = "parking_total"
	ColParkingSpecialNeeds = "parking_special_needs"
	ColParkingElderly      = "parking_elderly"
	ColHousingUnits        = "housing_units"
	ColCategories          = "categories"
)

// header maps column names to indexes.
type header map[string]int

func newHeader(cells []string) (header, error) {
	h := make(header, len(cells))
	for i, c := range cells {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(c, "\ufeff")))
		if name != "" {
			h[name] = i
		}
	}
	if _, ok := h[ColAddress]; !ok {
		return nil, eris.Errorf("batchio: header has no %q column", ColAddress)
	}
	return h, nil
}

func (h header) cell(row []string, col string) string {
	i, ok := h[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parse converts a data row. Blank numeric cells are zero.
func (h header) parse(n int, row []string) Request {
	req := Request{Row: n, Address: h.cell(row, ColAddress)}
	m := &req.Measurements

	floats := []struct {
		col string
		dst *float64
	}{
		{ColLotArea, &m.LotArea},
		{ColFootprintArea, &m.FootprintArea},
		{ColCountableBuiltArea, &m.CountableBuiltArea},
		{ColPermeableArea, &m.PermeableArea},
		{ColFrontSetback, &m.FrontSetback},
	}
	for _, f := range floats {
		v, err := parseFloat(h.cell(row, f.col))
		if err != nil {
			req.Err = eris.Wrapf(err, "batchio: row %d column %s", n, f.col)
			return req
		}
		*f.dst = v
	}

	ints := []struct {
		col string
		dst *int
	}{
		{ColFloors, &m.Floors},
		{ColParkingTotal, &m.ParkingTotal},
		{ColParkingSpecialNeeds, &m.ParkingSpecialNeeds},
		{ColParkingElderly, &m.ParkingElderly},
		{ColHousingUnits, &m.HousingUnits},
	}
	for _, f := range ints {
		v, err := parseInt(h.cell(row, f.col))
		if err != nil {
			req.Err = eris.Wrapf(err, "batchio: row %d column %s", n, f.col)
			return req
		}
		*f.dst = v
	}

	if cats := h.cell(row, ColCategories); cats != "" {
		m.Categories = make(map[string]bool)
		for _, c := range strings.Split(cats, ";") {
			if c = strings.TrimSpace(c); c != "" {
				m.Categories[c] = true
			}
		}
	}

	if req.Address == "" {
		req.Err = eris.Errorf("batchio: row %d has no address", n)
	}
	return req
}

// parseFloat accepts "1234.5" and the Brazilian "1.234,5".
func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "parse number %q", s)
	}
	if v < 0 {
		return 0, eris.Errorf("negative value %q", s)
	}
	return v, nil
}

func parseInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	f, err := parseFloat(s)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, eris.Errorf("expected a whole number, got %q", s)
	}
	return int(f), nil
}

// ReadFile loads every request from a .csv or .xlsx file.
func ReadFile(ctx context.Context, path string) ([]Request, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSVFile(ctx, path)
	case ".xlsx":
		return ReadXLSX(path, "")
	default:
		return nil, eris.Errorf("batchio: unsupported input %q (want .csv or .xlsx)", path)
	}
}
