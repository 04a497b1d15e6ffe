package lattice

import (
	"sync"
	"testing"
)

func ringMesh(t *testing.T, procsX, procsY int) *Mesh {
	t.Helper()
	m, err := NewMesh(Config{
		DimX: 16, DimY: 16,
		LengthX: 1, LengthY: 1,
		PeriodicX: true, PeriodicY: true,
	}, procsX, procsY)
	if err != nil {
		t.Fatalf("building mesh: %v", err)
	}
	return m
}

func TestNeighborsPeriodicWrap(t *testing.T) {
	m := ringMesh(t, 2, 2)
	// rank 0 sits at (0,0); every direction wraps inside the 2x2 torus.
	n := m.Neighbors(0)
	if n[Up] != 2 || n[Down] != 2 {
		t.Fatalf("vertical neighbors of rank 0: up %d down %d, want 2 and 2", n[Up], n[Down])
	}
	if n[Left] != 1 || n[Right] != 1 {
		t.Fatalf("horizontal neighbors of rank 0: left %d right %d, want 1 and 1", n[Left], n[Right])
	}
}

func TestNeighborsClosedEdge(t *testing.T) {
	m, err := NewMesh(Config{DimX: 16, DimY: 16, LengthX: 1, LengthY: 1}, 2, 1)
	if err != nil {
		t.Fatalf("building mesh: %v", err)
	}
	n := m.Neighbors(0)
	if n[Left] != NoNeighbor {
		t.Fatalf("closed edge has neighbor %d", n[Left])
	}
	if n[Right] != 1 {
		t.Fatalf("right neighbor of rank 0: got %d want 1", n[Right])
	}
	if n[Up] != NoNeighbor || n[Down] != NoNeighbor {
		t.Fatalf("single-row closed mesh has vertical neighbors %d,%d", n[Up], n[Down])
	}
}

func TestSingleColumnWrapsToSelf(t *testing.T) {
	m := ringMesh(t, 1, 2)
	n := m.Neighbors(0)
	if n[Left] != 0 || n[Right] != 0 {
		t.Fatalf("single periodic column should wrap to itself, got left %d right %d", n[Left], n[Right])
	}
}

func TestTilePartitioning(t *testing.T) {
	m := ringMesh(t, 2, 1)
	left, right := m.Tile(0), m.Tile(1)
	if left.InnerStartX != 0 || left.InnerEndX != 8 {
		t.Fatalf("rank 0 inner span [%d,%d), want [0,8)", left.InnerStartX, left.InnerEndX)
	}
	if right.InnerStartX != 8 || right.InnerEndX != 16 {
		t.Fatalf("rank 1 inner span [%d,%d), want [8,16)", right.InnerStartX, right.InnerEndX)
	}
	if left.DimX != 8+2*DefaultHalo {
		t.Fatalf("rank 0 tile width %d, want %d", left.DimX, 8+2*DefaultHalo)
	}
}

func TestSendRecvSlots(t *testing.T) {
	m := ringMesh(t, 2, 1)
	strip := [][]float64{{1, 2}, {3, 4}}
	// Rank 0 posts toward its right neighbor; rank 1 reads its Left slot.
	m.Send(1, Left, strip)
	got := m.Recv(1, Left)
	if len(got) != 2 || got[0][0] != 1 || got[1][1] != 4 {
		t.Fatalf("strip did not round-trip: %v", got)
	}
}

func TestReduceSumAcrossRanks(t *testing.T) {
	m := ringMesh(t, 2, 2)
	results := make([]float64, m.Procs())
	var wg sync.WaitGroup
	for rank := 0; rank < m.Procs(); rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			// Two rounds back to back exercise the generation barrier.
			results[rank] = m.ReduceSum(float64(rank + 1))
			results[rank] += m.ReduceSum(1)
		}(rank)
	}
	wg.Wait()
	for rank, got := range results {
		if got != 10+4 {
			t.Fatalf("rank %d reduce total: got %g want 14", rank, got)
		}
	}
}

func TestMeshRejectsUnevenSplit(t *testing.T) {
	if _, err := NewMesh(Config{DimX: 10, DimY: 16, LengthX: 1, LengthY: 1}, 4, 1); err == nil {
		t.Fatal("expected error for grid that does not split evenly")
	}
}
