package cad

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cae-assist/cae-cli/pkg/logger"
)

// Mock is an in-process stand-in for the bridge. It carries the same
// seed parameters a simple bracket model would expose and exports a
// real ASCII STL box sized by Length/Width/Height, so a sweep against
// the mock still exercises the geometry scorer.
type Mock struct {
	mu        sync.Mutex
	connected bool
	docPath   string
	params    map[string]float64

	// Failure injection for tests: non-nil errors are returned by the
	// corresponding call.
	RebuildErr error
	ExportErr  error
}

// NewMock returns a mock session with the default parameter set.
func NewMock() *Mock {
	return &Mock{
		params: map[string]float64{
			"Fillet_Radius": 5.0,
			"Length":        100.0,
			"Width":         50.0,
			"Height":        30.0,
		},
	}
}

func (m *Mock) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	logger.Debug("mock session connected")
	return nil
}

func (m *Mock) Open(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return ErrNotConnected
	}
	m.docPath = path
	return nil
}

func (m *Mock) Parameters(ctx context.Context) ([]Parameter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireDocumentLocked(); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(m.params))
	for name := range m.params {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Parameter, 0, len(names))
	for _, name := range names {
		out = append(out, Parameter{Name: name, Value: m.params[name], Unit: "mm"})
	}
	return out, nil
}

func (m *Mock) SetParameter(ctx context.Context, name string, value float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireDocumentLocked(); err != nil {
		return err
	}
	if _, ok := m.params[name]; !ok {
		return &UnknownParameterError{Name: name}
	}
	m.params[name] = value
	return nil
}

func (m *Mock) Rebuild(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireDocumentLocked(); err != nil {
		return err
	}
	return m.RebuildErr
}

// Export writes an ASCII STL box using the current Length, Width and
// Height parameters. STEP output is not emulated; request .stl paths
// when sweeping against the mock.
func (m *Mock) Export(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireDocumentLocked(); err != nil {
		return err
	}
	if m.ExportErr != nil {
		return m.ExportErr
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	stl := renderBoxSTL(m.params["Length"], m.params["Width"], m.params["Height"])
	if err := os.WriteFile(path, []byte(stl), 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

func (m *Mock) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docPath = ""
	return nil
}

func (m *Mock) requireDocumentLocked() error {
	if !m.connected {
		return ErrNotConnected
	}
	if m.docPath == "" {
		return ErrNoDocument
	}
	return nil
}

// renderBoxSTL emits the 12 triangles of an axis-aligned box with one
// corner at the origin.
func renderBoxSTL(l, w, h float64) string {
	// Vertex indices: bit 0 = x, bit 1 = y, bit 2 = z.
	v := [8][3]float64{}
	for i := 0; i < 8; i++ {
		if i&1 != 0 {
			v[i][0] = l
		}
		if i&2 != 0 {
			v[i][1] = w
		}
		if i&4 != 0 {
			v[i][2] = h
		}
	}

	faces := []struct {
		normal  [3]float64
		indices [2][3]int
	}{
		{[3]float64{0, 0, -1}, [2][3]int{{0, 2, 1}, {1, 2, 3}}},
		{[3]float64{0, 0, 1}, [2][3]int{{4, 5, 6}, {5, 7, 6}}},
		{[3]float64{0, -1, 0}, [2][3]int{{0, 1, 4}, {1, 5, 4}}},
		{[3]float64{0, 1, 0}, [2][3]int{{2, 6, 3}, {3, 6, 7}}},
		{[3]float64{-1, 0, 0}, [2][3]int{{0, 4, 2}, {2, 4, 6}}},
		{[3]float64{1, 0, 0}, [2][3]int{{1, 3, 5}, {3, 7, 5}}},
	}

	var b strings.Builder
	b.WriteString("solid box\n")
	for _, face := range faces {
		for _, tri := range face.indices {
			fmt.Fprintf(&b, "  facet normal %g %g %g\n", face.normal[0], face.normal[1], face.normal[2])
			b.WriteString("    outer loop\n")
			for _, idx := range tri {
				fmt.Fprintf(&b, "      vertex %g %g %g\n", v[idx][0], v[idx][1], v[idx][2])
			}
			b.WriteString("    endloop\n")
			b.WriteString("  endfacet\n")
		}
	}
	b.WriteString("endsolid box\n")
	return b.String()
}
