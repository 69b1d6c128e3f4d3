package utils

import (
	"testing"

	"github.com/twpayne/go-geos"
)

func TestSpatialIndexQuery(t *testing.T) {
	// 3x3 grid of unit squares, row-major from the bottom left.
	var geoms []*geos.Geom
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			geoms = append(geoms, square(float64(x), float64(y), float64(x+1), float64(y+1)))
		}
	}
	index := NewSpatialIndex(geoms)

	containsAll := func(got []int, want []int) bool {
		set := make(map[int]bool)
		for _, g := range got {
			set[g] = true
		}
		for _, w := range want {
			if !set[w] {
				return false
			}
		}
		return true
	}

	// Candidates may include extras but never miss a true hit.
	center := square(1.2, 1.2, 1.8, 1.8)
	if got := index.Query(center); !containsAll(got, []int{4}) {
		t.Errorf("query center: got %v, want superset of [4]", got)
	}

	spanning := square(0.5, 0.5, 2.5, 1.5)
	if got := index.Query(spanning); !containsAll(got, []int{0, 1, 2, 3, 4, 5}) {
		t.Errorf("query spanning: got %v, want superset of [0 1 2 3 4 5]", got)
	}

	if got := index.Query(nil); got != nil {
		t.Errorf("query nil: got %v, want nil", got)
	}
}

func TestSpatialIndexQuerySorted(t *testing.T) {
	geoms := []*geos.Geom{
		square(0, 0, 2, 2),
		square(1, 0, 3, 2),
		square(2, 0, 4, 2),
	}
	index := NewSpatialIndex(geoms)
	got := index.Query(square(0, 0, 4, 2))
	for i := 1; i < len(got); i++ {
		if got[i-1] >= got[i] {
			t.Fatalf("candidates not in ascending order: %v", got)
		}
	}
}
