package mesh

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// Format is a mesh file format.
type Format string

const (
	FormatPLY Format = "ply"
	FormatOBJ Format = "obj"
	FormatSTL Format = "stl"
)

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")); Format(ext) {
	case FormatPLY, FormatOBJ, FormatSTL:
		return Format(ext), nil
	default:
		return "", fmt.Errorf("unsupported mesh format %q", ext)
	}
}

// Write encodes m to w in the given ASCII format.
func Write(w io.Writer, m *Mesh, f Format) error {
	if m == nil {
		return fmt.Errorf("write %s: nil mesh", f)
	}
	bw := bufio.NewWriter(w)
	var err error
	switch f {
	case FormatPLY:
		err = writePLY(bw, m)
	case FormatOBJ:
		err = writeOBJ(bw, m)
	case FormatSTL:
		err = writeSTL(bw, m)
	default:
		return fmt.Errorf("unsupported mesh format %q", f)
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", f, err)
	}
	return bw.Flush()
}

func writePLY(w *bufio.Writer, m *Mesh) error {
	fmt.Fprintf(w, "ply\nformat ascii 1.0\ncomment construction %s\n", m.Construction)
	fmt.Fprintf(w, "element vertex %d\nproperty float x\nproperty float y\nproperty float z\n", len(m.Vertices))
	fmt.Fprintf(w, "element face %d\nproperty list uchar int vertex_indices\nend_header\n", len(m.Faces))
	for _, v := range m.Vertices {
		fmt.Fprintf(w, "%g %g %g\n", v.X, v.Y, v.Z)
	}
	for _, f := range m.Faces {
		if _, err := fmt.Fprintf(w, "3 %d %d %d\n", f[0], f[1], f[2]); err != nil {
			return err
		}
	}
	return nil
}

func writeOBJ(w *bufio.Writer, m *Mesh) error {
	fmt.Fprintf(w, "# bodymeasure %s mesh\n", m.Construction)
	for _, v := range m.Vertices {
		fmt.Fprintf(w, "v %g %g %g\n", v.X, v.Y, v.Z)
	}
	// OBJ indices are 1-based.
	for _, f := range m.Faces {
		if _, err := fmt.Fprintf(w, "f %d %d %d\n", f[0]+1, f[1]+1, f[2]+1); err != nil {
			return err
		}
	}
	return nil
}

func writeSTL(w *bufio.Writer, m *Mesh) error {
	fmt.Fprintln(w, "solid body")
	for _, f := range m.Faces {
		a, b, c := m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]
		n := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
		if l := r3.Norm(n); l > 0 {
			n = r3.Scale(1/l, n)
		}
		fmt.Fprintf(w, "facet normal %g %g %g\n outer loop\n", n.X, n.Y, n.Z)
		for _, v := range [3]r3.Vec{a, b, c} {
			fmt.Fprintf(w, "  vertex %g %g %g\n", v.X, v.Y, v.Z)
		}
		if _, err := fmt.Fprintln(w, " endloop\nendfacet"); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "endsolid body")
	return err
}
