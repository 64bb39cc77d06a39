// Package mesh computes the enclosed volume of uploaded 3D meshes.
package mesh

import (
	"context"
	"math"

	"github.com/pkg/errors"
)

var (
	// ErrEmptyFile is returned for zero-length uploads
	ErrEmptyFile = errors.New("mesh file is empty")
	// ErrTruncated is returned when a binary STL is shorter than its triangle count says
	ErrTruncated = errors.New("mesh file is truncated")
	// ErrNoTriangles is returned for meshes without any facet
	ErrNoTriangles = errors.New("mesh has no triangles")
	// ErrDegenerate is returned when the mesh encloses no volume
	ErrDegenerate = errors.New("mesh encloses no volume")
)

// Analyzer extracts the enclosed volume, in mm³, of the mesh stored at path.
type Analyzer interface {
	Volume(ctx context.Context, path string) (float64, error)
}

// Vec3 is a vertex position
type Vec3 [3]float64

// Triangle is one facet of a mesh
type Triangle [3]Vec3

// signedVolume returns the signed volume of the tetrahedron formed by the
// triangle and the origin.
func (t Triangle) signedVolume() float64 {
	a, b, c := t[0], t[1], t[2]
	cross := Vec3{
		b[1]*c[2] - b[2]*c[1],
		b[2]*c[0] - b[0]*c[2],
		b[0]*c[1] - b[1]*c[0],
	}
	return (a[0]*cross[0] + a[1]*cross[1] + a[2]*cross[2]) / 6
}

// volumeAccumulator sums signed tetrahedron volumes facet by facet.
type volumeAccumulator struct {
	sum       float64
	triangles int
}

func (a *volumeAccumulator) add(t Triangle) {
	a.sum += t.signedVolume()
	a.triangles++
}

func (a *volumeAccumulator) volume() (float64, error) {
	if a.triangles == 0 {
		return 0, ErrNoTriangles
	}
	v := math.Abs(a.sum)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.Wrapf(ErrDegenerate, "volume is %v", v)
	}
	if v <= 0 {
		return 0, ErrDegenerate
	}
	return v, nil
}
