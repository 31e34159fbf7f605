package markups

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"pointsetmatch/internal/models"
)

const slicerFile = `# Markups fiducial file version = 4.11
# CoordinateSystem = LPS
# columns = id,x,y,z,ow,ox,oy,oz,vis,sel,lock,label,desc,associatedNodeID
vtkMRMLMarkupsFiducialNode_0,-12.5,30,4,0,0,0,1,1,1,0,Nasion,,
vtkMRMLMarkupsFiducialNode_1,40,2.25,-8,0,0,0,1,1,0,0,Left ear,,
vtkMRMLMarkupsFiducialNode_2,-38,1,-7.5,0,0,0,1,1,1,0,,,
`

func TestReadSlicerFile(t *testing.T) {
	list, err := Read(strings.NewReader(slicerFile), "fiducials")
	require.NoError(t, err)

	assert.Equal(t, "fiducials", list.Name)
	assert.Equal(t, models.LPS, list.CoordinateSystem)
	require.Len(t, list.Fiducials, 3)

	assert.Equal(t, "Nasion", list.Fiducials[0].Label)
	assert.Equal(t, r3.Vec{X: -12.5, Y: 30, Z: 4}, list.Fiducials[0].Position)
	assert.True(t, list.Fiducials[0].Selected)

	assert.Equal(t, "Left ear", list.Fiducials[1].Label)
	assert.False(t, list.Fiducials[1].Selected)

	// Unlabelled points get a generated label
	assert.Equal(t, "F-3", list.Fiducials[2].Label)

	assert.Len(t, list.SelectedPositions(), 2)

	list.ToRAS()
	assert.Equal(t, models.RAS, list.CoordinateSystem)
	assert.Equal(t, r3.Vec{X: 12.5, Y: -30, Z: 4}, list.Positions()[0])
}

func TestReadLegacyCoordinateSystemAndNoColumns(t *testing.T) {
	input := "# CoordinateSystem = 0\n" +
		"vtkMRMLMarkupsFiducialNode_0,1,2,3,0,0,0,1,1,1,0,A,,\n"
	list, err := Read(strings.NewReader(input), "legacy")
	require.NoError(t, err)
	assert.Equal(t, models.RAS, list.CoordinateSystem)
	require.Len(t, list.Fiducials, 1)
	assert.Equal(t, "A", list.Fiducials[0].Label)
	assert.Equal(t, r3.Vec{X: 1, Y: 2, Z: 3}, list.Fiducials[0].Position)
}

func TestReadPlainXYZ(t *testing.T) {
	input := "0,0,0\n\n1.5, 2, -3\n"
	list, err := Read(strings.NewReader(input), "plain")
	require.NoError(t, err)
	assert.Equal(t, []r3.Vec{{}, {X: 1.5, Y: 2, Z: -3}}, list.Positions())
	assert.Equal(t, "F-2", list.Fiducials[1].Label)
}

func TestReadErrors(t *testing.T) {
	_, err := Read(strings.NewReader("# just a comment\n"), "empty")
	assert.ErrorIs(t, err, ErrNoPoints)

	_, err = Read(strings.NewReader("# columns = id,x,y,label\n1,2,3,a\n"), "bad")
	assert.ErrorIs(t, err, ErrMissingColumn)

	_, err = Read(strings.NewReader("1,2,abc\n"), "bad")
	assert.Error(t, err)

	_, err = Read(strings.NewReader("1,2\n"), "short")
	assert.Error(t, err)

	_, err = Read(strings.NewReader("# CoordinateSystem = IJK\n1,2,3\n"), "frame")
	assert.Error(t, err)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.fcsv"))
	assert.Error(t, err)
}

func TestWriteReadRoundTrip(t *testing.T) {
	list := models.FromPositions("matched", "M", []r3.Vec{
		{X: 1, Y: 2, Z: 3},
		{X: -0.125, Y: 1e-3, Z: 250},
	})
	list.Fiducials[1].Selected = false

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, list))
	assert.Contains(t, buf.String(), "# Markups fiducial file version = 4.11")

	back, err := Read(&buf, "matched")
	require.NoError(t, err)
	assert.Equal(t, list, back)
}

func TestWriteFileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "matched.fcsv")
	list := models.FromPositions("matched", "M", []r3.Vec{{X: 1}, {Y: 1}, {Z: 1}})
	require.NoError(t, WriteFile(path, list))

	back, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "matched", back.Name)
	assert.Equal(t, list.Positions(), back.Positions())
}
