// Package vecmath holds the similarity helpers shared by the in-process
// vector stores.
package vecmath

import (
	"encoding/binary"
	"errors"
	"math"
	"sort"

	"paperindex/internal/domain"
)

// CosineDistance is 1 - cos(a, b). Zero vectors are at distance 1 from
// everything.
func CosineDistance(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// Nearest ranks records by distance to q and keeps the n closest. Equal
// distances order by id.
func Nearest(records []domain.VectorRecord, q []float32, n int) []domain.VectorHit {
	hits := make([]domain.VectorHit, len(records))
	for i, r := range records {
		hits[i] = domain.VectorHit{VectorRecord: r, Distance: CosineDistance(r.Embedding, q)}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].ID < hits[j].ID
	})
	if n >= 0 && n < len(hits) {
		hits = hits[:n]
	}
	return hits
}

// Encode packs v as little-endian float32s.
func Encode(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func Decode(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, errors.New("vector blob length not a multiple of 4")
	}
	v := make([]float32, len(blob)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return v, nil
}
