package mesh

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	stlHeaderSize   = 80
	stlTriangleSize = 50
	// ctxCheckEvery is how many facets are parsed between context checks
	ctxCheckEvery = 4096
)

// STLAnalyzer reads binary and ASCII STL files.
type STLAnalyzer struct{}

// NewSTLAnalyzer creates a new STLAnalyzer
func NewSTLAnalyzer() *STLAnalyzer {
	return &STLAnalyzer{}
}

// Volume parses the STL file at path and returns its enclosed volume.
func (a *STLAnalyzer) Volume(ctx context.Context, path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrap(err, "open mesh file")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, errors.Wrap(err, "stat mesh file")
	}
	if info.Size() == 0 {
		return 0, ErrEmptyFile
	}

	r := bufio.NewReader(f)
	head, err := r.Peek(stlHeaderSize + 4)
	if err != nil && err != io.EOF {
		return 0, errors.Wrap(err, "read mesh header")
	}

	var acc volumeAccumulator
	if isASCII(head, info.Size()) {
		err = readASCII(ctx, r, &acc)
	} else {
		err = readBinary(ctx, r, info.Size(), &acc)
	}
	if err != nil {
		return 0, err
	}
	return acc.volume()
}

// isASCII reports whether the file looks like an ASCII STL. Some exporters
// write binary files whose header starts with "solid", so a size matching
// the binary layout wins.
func isASCII(head []byte, size int64) bool {
	if !bytes.HasPrefix(bytes.TrimLeft(head, " \t\r\n"), []byte("solid")) {
		return false
	}
	if len(head) >= stlHeaderSize+4 {
		n := binary.LittleEndian.Uint32(head[stlHeaderSize:])
		if int64(stlHeaderSize+4)+int64(n)*stlTriangleSize == size {
			return false
		}
	}
	return true
}

func readBinary(ctx context.Context, r io.Reader, size int64, acc *volumeAccumulator) error {
	if size < stlHeaderSize+4 {
		return errors.Wrapf(ErrTruncated, "binary header needs %d bytes, file has %d", stlHeaderSize+4, size)
	}

	var header [stlHeaderSize + 4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return errors.Wrap(err, "read binary header")
	}
	count := binary.LittleEndian.Uint32(header[stlHeaderSize:])
	if count == 0 {
		return ErrNoTriangles
	}
	if want := int64(stlHeaderSize+4) + int64(count)*stlTriangleSize; size < want {
		return errors.Wrapf(ErrTruncated, "%d triangles need %d bytes, file has %d", count, want, size)
	}

	var buf [stlTriangleSize]byte
	for i := uint32(0); i < count; i++ {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return errors.Wrap(err, "mesh analysis interrupted")
			}
		}
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return errors.Wrapf(ErrTruncated, "triangle %d: %v", i, err)
		}
		var t Triangle
		// skip the 12-byte facet normal, it is recomputed implicitly
		for v := 0; v < 3; v++ {
			for c := 0; c < 3; c++ {
				off := 12 + v*12 + c*4
				t[v][c] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[off:])))
			}
		}
		acc.add(t)
	}
	return nil
}

func readASCII(ctx context.Context, r io.Reader, acc *volumeAccumulator) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var (
		line     int
		facets   int
		vertices []Vec3
	)
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch strings.ToLower(fields[0]) {
		case "vertex":
			if len(fields) != 4 {
				return errors.Errorf("line %d: vertex needs 3 coordinates, got %d", line, len(fields)-1)
			}
			var v Vec3
			for i := 0; i < 3; i++ {
				c, err := strconv.ParseFloat(fields[i+1], 64)
				if err != nil {
					return errors.Wrapf(err, "line %d: bad coordinate", line)
				}
				v[i] = c
			}
			vertices = append(vertices, v)
		case "endloop":
			if len(vertices) != 3 {
				return errors.Errorf("line %d: facet has %d vertices, want 3", line, len(vertices))
			}
			acc.add(Triangle{vertices[0], vertices[1], vertices[2]})
			vertices = vertices[:0]
			facets++
			if facets%ctxCheckEvery == 0 {
				if err := ctx.Err(); err != nil {
					return errors.Wrap(err, "mesh analysis interrupted")
				}
			}
		case "solid", "facet", "outer", "endfacet", "endsolid":
		default:
			return errors.Errorf("line %d: unexpected keyword %q", line, fields[0])
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "read ascii mesh")
	}
	if len(vertices) != 0 {
		return errors.Wrap(ErrTruncated, "unterminated facet")
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "mesh analysis interrupted")
	}
	return nil
}
