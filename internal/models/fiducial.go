package models

import (
	"strconv"

	"gonum.org/v1/gonum/spatial/r3"
)

// CoordinateSystem names the anatomical frame point coordinates are given in
type CoordinateSystem string

const (
	// RAS is right-anterior-superior, the frame the host application works in
	RAS CoordinateSystem = "RAS"
	// LPS is left-posterior-superior, the DICOM patient frame
	LPS CoordinateSystem = "LPS"
)

// Fiducial is a single labelled landmark point
type Fiducial struct {
	// Label is the user-visible name of the point
	Label string

	// Position is the point location in millimeters
	Position r3.Vec

	// Selected marks points the user enabled for processing
	Selected bool
}

// FiducialList is an ordered list of landmarks read from or written to a
// markups file
type FiducialList struct {
	// Name identifies the list, usually the file base name
	Name string

	// CoordinateSystem is the frame Position values are expressed in
	CoordinateSystem CoordinateSystem

	Fiducials []Fiducial
}

// Positions returns the positions of every fiducial, in list order
func (l *FiducialList) Positions() []r3.Vec {
	out := make([]r3.Vec, len(l.Fiducials))
	for i, f := range l.Fiducials {
		out[i] = f.Position
	}
	return out
}

// SelectedPositions returns the positions of selected fiducials, in list order
func (l *FiducialList) SelectedPositions() []r3.Vec {
	var out []r3.Vec
	for _, f := range l.Fiducials {
		if f.Selected {
			out = append(out, f.Position)
		}
	}
	return out
}

// ToRAS converts the list in place to the RAS frame. LPS and RAS differ by
// the sign of the first two axes.
func (l *FiducialList) ToRAS() {
	if l.CoordinateSystem != LPS {
		l.CoordinateSystem = RAS
		return
	}
	for i := range l.Fiducials {
		p := &l.Fiducials[i].Position
		p.X, p.Y = -p.X, -p.Y
	}
	l.CoordinateSystem = RAS
}

// FromPositions builds a list with generated labels of the form prefix-N
func FromPositions(name, prefix string, positions []r3.Vec) FiducialList {
	list := FiducialList{Name: name, CoordinateSystem: RAS}
	for i, p := range positions {
		list.Fiducials = append(list.Fiducials, Fiducial{
			Label:    prefix + "-" + strconv.Itoa(i+1),
			Position: p,
			Selected: true,
		})
	}
	return list
}
