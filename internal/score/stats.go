// Package score rates exported CAD artifacts. It derives geometry
// statistics from STL and STEP files and maps them, together with the
// trial's parameter value, onto a 0-100 quality scale.
package score

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Stats summarizes an exported geometry file. Volume and Bounds are in
// model units (millimeters for the models we drive); STEP files carry
// no tessellation, so their Volume stays zero.
type Stats struct {
	Format   string `json:"format"`
	Vertices int    `json:"vertices"`
	Faces    int    `json:"faces"`
	Solids   int    `json:"solids,omitempty"`
	// Volume is in cubic model units (mm^3).
	Volume float64 `json:"volume"`
	Bounds Bounds  `json:"bounds"`
}

// Bounds is the axis-aligned bounding box of the geometry.
type Bounds struct {
	Min [3]float64 `json:"min"`
	Max [3]float64 `json:"max"`
}

// UnsupportedFormatError reports an artifact extension Analyze cannot
// handle.
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported geometry format %q", e.Ext)
}

// Analyze reads the artifact at path and computes its Stats. The format
// is inferred from the extension: .stl (ASCII or binary) and .step/.stp
// are supported.
func Analyze(path string) (Stats, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".stl":
		return analyzeSTL(path)
	case ".step", ".stp":
		return analyzeSTEP(path)
	default:
		return Stats{}, &UnsupportedFormatError{Ext: ext}
	}
}

type triangle [3][3]float64

func analyzeSTL(path string) (Stats, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Stats{}, fmt.Errorf("read stl: %w", err)
	}

	var tris []triangle
	if isBinarySTL(raw) {
		tris, err = parseBinarySTL(raw)
	} else {
		tris, err = parseASCIISTL(raw)
	}
	if err != nil {
		return Stats{}, err
	}
	if len(tris) == 0 {
		return Stats{}, fmt.Errorf("stl file %s contains no triangles", path)
	}

	return statsFromTriangles(tris), nil
}

// isBinarySTL applies the standard size heuristic: a binary STL is
// exactly 84 bytes of header plus 50 bytes per triangle. ASCII files
// starting with "solid" never match that length.
func isBinarySTL(raw []byte) bool {
	if len(raw) < 84 {
		return false
	}
	count := binary.LittleEndian.Uint32(raw[80:84])
	return len(raw) == 84+int(count)*50
}

func parseBinarySTL(raw []byte) ([]triangle, error) {
	count := int(binary.LittleEndian.Uint32(raw[80:84]))
	tris := make([]triangle, 0, count)
	offset := 84
	for i := 0; i < count; i++ {
		// Each record: normal (3 floats), vertices (9 floats),
		// attribute byte count (uint16).
		rec := raw[offset : offset+50]
		var tri triangle
		for v := 0; v < 3; v++ {
			for c := 0; c < 3; c++ {
				bits := binary.LittleEndian.Uint32(rec[12+v*12+c*4:])
				tri[v][c] = float64(math.Float32frombits(bits))
			}
		}
		tris = append(tris, tri)
		offset += 50
	}
	return tris, nil
}

func parseASCIISTL(raw []byte) ([]triangle, error) {
	var tris []triangle
	var current triangle
	verts := 0

	scanner := bufio.NewScanner(strings.NewReader(string(raw)))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || fields[0] != "vertex" {
			continue
		}
		if len(fields) != 4 {
			return nil, fmt.Errorf("stl line %d: malformed vertex", line)
		}
		for c := 0; c < 3; c++ {
			v, err := strconv.ParseFloat(fields[c+1], 64)
			if err != nil {
				return nil, fmt.Errorf("stl line %d: %w", line, err)
			}
			current[verts][c] = v
		}
		verts++
		if verts == 3 {
			tris = append(tris, current)
			verts = 0
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan stl: %w", err)
	}
	if verts != 0 {
		return nil, fmt.Errorf("stl file ends mid-facet")
	}
	return tris, nil
}

func statsFromTriangles(tris []triangle) Stats {
	unique := make(map[[3]float64]struct{})
	bounds := Bounds{
		Min: [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)},
		Max: [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)},
	}

	volume := 0.0
	for _, tri := range tris {
		// Signed volume of the tetrahedron (origin, v0, v1, v2);
		// summed over a closed mesh this yields the enclosed volume.
		volume += signedTetraVolume(tri)
		for _, v := range tri {
			unique[v] = struct{}{}
			for c := 0; c < 3; c++ {
				if v[c] < bounds.Min[c] {
					bounds.Min[c] = v[c]
				}
				if v[c] > bounds.Max[c] {
					bounds.Max[c] = v[c]
				}
			}
		}
	}

	return Stats{
		Format:   "stl",
		Vertices: len(unique),
		Faces:    len(tris),
		Solids:   1,
		Volume:   math.Abs(volume),
		Bounds:   bounds,
	}
}

func signedTetraVolume(t triangle) float64 {
	v0, v1, v2 := t[0], t[1], t[2]
	return (v0[0]*(v1[1]*v2[2]-v1[2]*v2[1]) +
		v0[1]*(v1[2]*v2[0]-v1[0]*v2[2]) +
		v0[2]*(v1[0]*v2[1]-v1[1]*v2[0])) / 6.0
}

// analyzeSTEP counts the boundary-representation entities a STEP export
// carries. Exact volume would need a BREP kernel, so it stays zero and
// the quality score leans on entity counts instead.
func analyzeSTEP(path string) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("read step: %w", err)
	}
	defer f.Close()

	stats := Stats{Format: "step"}
	sawHeader := false

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "ISO-10303") {
			sawHeader = true
		}
		stats.Vertices += strings.Count(line, "CARTESIAN_POINT")
		stats.Faces += strings.Count(line, "ADVANCED_FACE")
		stats.Solids += strings.Count(line, "CLOSED_SHELL")
	}
	if err := scanner.Err(); err != nil {
		return Stats{}, fmt.Errorf("scan step: %w", err)
	}
	if !sawHeader {
		return Stats{}, fmt.Errorf("file %s is not a STEP file (missing ISO-10303 header)", path)
	}
	return stats, nil
}
