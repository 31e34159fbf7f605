// Package markups reads and writes landmark point lists in the host
// application's markups CSV format (.fcsv) and in plain x,y,z CSV.
package markups

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"pointsetmatch/internal/models"
)

// FormatVersion is written to the header of every file this package produces
const FormatVersion = "4.11"

// defaultColumns is the column layout used when a file has no columns header
var defaultColumns = []string{
	"id", "x", "y", "z", "ow", "ox", "oy", "oz", "vis", "sel", "lock", "label", "desc", "associatedNodeID",
}

var (
	// ErrNoPoints is returned when a file contains no point rows.
	ErrNoPoints = errors.New("markups: no points found")
	// ErrMissingColumn is returned when a columns header lacks x, y or z.
	ErrMissingColumn = errors.New("markups: required column missing")
)

// columnLayout maps the columns this package cares about to field positions
type columnLayout struct {
	x, y, z   int
	label     int
	selected  int
	fieldsMin int
}

func layoutFor(columns []string) (columnLayout, error) {
	l := columnLayout{x: -1, y: -1, z: -1, label: -1, selected: -1}
	for i, c := range columns {
		switch strings.TrimSpace(strings.ToLower(c)) {
		case "x":
			l.x = i
		case "y":
			l.y = i
		case "z":
			l.z = i
		case "label":
			l.label = i
		case "sel":
			l.selected = i
		}
	}
	if l.x < 0 || l.y < 0 || l.z < 0 {
		return l, fmt.Errorf("%w: columns %v", ErrMissingColumn, columns)
	}
	l.fieldsMin = max(l.x, l.y, l.z) + 1
	return l, nil
}

// plainLayout reads rows that hold only x,y,z
var plainLayout = columnLayout{x: 0, y: 1, z: 2, label: -1, selected: -1, fieldsMin: 3}

// ReadFile reads a point list from path. The list is named after the file.
func ReadFile(path string) (models.FiducialList, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.FiducialList{}, fmt.Errorf("opening point list: %w", err)
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	list, err := Read(f, name)
	if err != nil {
		return list, fmt.Errorf("reading %s: %w", path, err)
	}
	return list, nil
}

// Read parses a point list. Lines starting with '#' are header comments;
// "CoordinateSystem" and "columns" headers are honored. Without a columns
// header, rows of three fields are read as x,y,z and longer rows use the
// default markups layout.
func Read(r io.Reader, name string) (models.FiducialList, error) {
	list := models.FiducialList{Name: name, CoordinateSystem: models.RAS}

	var layout *columnLayout
	scanner := bufio.NewScanner(r)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			key, value, ok := strings.Cut(strings.TrimSpace(strings.TrimPrefix(line, "#")), "=")
			if !ok {
				continue
			}
			key, value = strings.TrimSpace(key), strings.TrimSpace(value)
			switch strings.ToLower(key) {
			case "coordinatesystem":
				cs, err := parseCoordinateSystem(value)
				if err != nil {
					return list, fmt.Errorf("line %d: %w", lineNumber, err)
				}
				list.CoordinateSystem = cs
			case "columns":
				l, err := layoutFor(strings.Split(value, ","))
				if err != nil {
					return list, fmt.Errorf("line %d: %w", lineNumber, err)
				}
				layout = &l
			}
			continue
		}

		fields, err := csv.NewReader(strings.NewReader(line)).Read()
		if err != nil {
			return list, fmt.Errorf("line %d: %w", lineNumber, err)
		}
		rowLayout := layout
		if rowLayout == nil {
			if len(fields) >= len(defaultColumns)-2 {
				l, _ := layoutFor(defaultColumns)
				rowLayout = &l
			} else {
				rowLayout = &plainLayout
			}
		}
		fiducial, err := parseRow(fields, *rowLayout, len(list.Fiducials))
		if err != nil {
			return list, fmt.Errorf("line %d: %w", lineNumber, err)
		}
		list.Fiducials = append(list.Fiducials, fiducial)
	}
	if err := scanner.Err(); err != nil {
		return list, err
	}
	if len(list.Fiducials) == 0 {
		return list, ErrNoPoints
	}
	return list, nil
}

func parseCoordinateSystem(value string) (models.CoordinateSystem, error) {
	switch strings.ToUpper(value) {
	case "0", "RAS":
		return models.RAS, nil
	case "1", "LPS":
		return models.LPS, nil
	default:
		return "", fmt.Errorf("unsupported coordinate system %q", value)
	}
}

func parseRow(fields []string, l columnLayout, index int) (models.Fiducial, error) {
	if len(fields) < l.fieldsMin {
		return models.Fiducial{}, fmt.Errorf("expected at least %d fields, got %d", l.fieldsMin, len(fields))
	}
	var coords [3]float64
	for i, col := range []int{l.x, l.y, l.z} {
		v, err := strconv.ParseFloat(strings.TrimSpace(fields[col]), 64)
		if err != nil {
			return models.Fiducial{}, fmt.Errorf("parsing coordinate: %w", err)
		}
		coords[i] = v
	}

	f := models.Fiducial{Selected: true}
	f.Position.X, f.Position.Y, f.Position.Z = coords[0], coords[1], coords[2]
	if l.label >= 0 && l.label < len(fields) {
		f.Label = fields[l.label]
	}
	if f.Label == "" {
		f.Label = "F-" + strconv.Itoa(index+1)
	}
	if l.selected >= 0 && l.selected < len(fields) {
		f.Selected = strings.TrimSpace(fields[l.selected]) != "0"
	}
	return f, nil
}

// WriteFile writes list to path in markups CSV form
func WriteFile(path string, list models.FiducialList) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating point list: %w", err)
	}
	if err := Write(f, list); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Write writes list in markups CSV form
func Write(w io.Writer, list models.FiducialList) error {
	cs := list.CoordinateSystem
	if cs == "" {
		cs = models.RAS
	}
	header := fmt.Sprintf("# Markups fiducial file version = %s\n# CoordinateSystem = %s\n# columns = %s\n",
		FormatVersion, cs, strings.Join(defaultColumns, ","))
	if _, err := io.WriteString(w, header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	cw := csv.NewWriter(w)
	for i, f := range list.Fiducials {
		selected := "0"
		if f.Selected {
			selected = "1"
		}
		record := []string{
			fmt.Sprintf("%s_%d", list.Name, i),
			formatFloat(f.Position.X), formatFloat(f.Position.Y), formatFloat(f.Position.Z),
			"0", "0", "0", "1",
			"1", selected, "0",
			f.Label, "", "",
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing point %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
