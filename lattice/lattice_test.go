package lattice

import (
	"math"
	"testing"
)

func TestClosedSingleTileHasNoHalo(t *testing.T) {
	lat, err := New(Config{DimX: 16, DimY: 12, LengthX: 16, LengthY: 12})
	if err != nil {
		t.Fatalf("building lattice: %v", err)
	}
	if lat.HaloX != 0 || lat.HaloY != 0 {
		t.Fatalf("closed single tile got halo %d,%d", lat.HaloX, lat.HaloY)
	}
	if lat.DimX != 16 || lat.DimY != 12 {
		t.Fatalf("tile dims %dx%d, want 16x12", lat.DimX, lat.DimY)
	}
	if lat.InnerOffsetX() != 0 || lat.InnerWidth() != 16 {
		t.Fatalf("inner region misplaced: offset %d width %d", lat.InnerOffsetX(), lat.InnerWidth())
	}
}

func TestPeriodicSingleTileGrowsByHalo(t *testing.T) {
	lat, err := New(Config{DimX: 16, DimY: 16, LengthX: 1, LengthY: 1, PeriodicX: true, PeriodicY: true})
	if err != nil {
		t.Fatalf("building lattice: %v", err)
	}
	if lat.HaloX != DefaultHalo || lat.HaloY != DefaultHalo {
		t.Fatalf("periodic tile got halo %d,%d, want default %d", lat.HaloX, lat.HaloY, DefaultHalo)
	}
	if lat.DimX != 16+2*DefaultHalo {
		t.Fatalf("tile width %d, want %d", lat.DimX, 16+2*DefaultHalo)
	}
	if lat.InnerOffsetX() != DefaultHalo {
		t.Fatalf("inner offset %d, want %d", lat.InnerOffsetX(), DefaultHalo)
	}
}

func TestCoordinatesAreCellCentered(t *testing.T) {
	lat, err := New(Config{DimX: 8, DimY: 8, LengthX: 8, LengthY: 8})
	if err != nil {
		t.Fatalf("building lattice: %v", err)
	}
	// First cell center sits half a spacing inside the left edge.
	if x := lat.CoordX(0); math.Abs(x-(-3.5)) > 1e-15 {
		t.Fatalf("first cell center: got %g want -3.5", x)
	}
	if x := lat.CoordX(7); math.Abs(x-3.5) > 1e-15 {
		t.Fatalf("last cell center: got %g want 3.5", x)
	}
}

func TestPeriodicCoordinateWrap(t *testing.T) {
	lat, err := New(Config{DimX: 8, DimY: 8, LengthX: 8, LengthY: 8, PeriodicX: true, PeriodicY: true})
	if err != nil {
		t.Fatalf("building lattice: %v", err)
	}
	// The left halo mirrors the right edge of the box.
	if x := lat.CoordX(0); math.Abs(x-lat.CoordX(8)) > 1e-15 {
		t.Fatalf("halo coordinate did not wrap: %g vs %g", x, lat.CoordX(8))
	}
}

// A forced halo on a closed axis without neighbors has no cells behind
// it: borders clamps the tile at the grid edge, so a wrap keyed on the
// halo width would overwrite authoritative data. Construction must
// reject it.
func TestClosedSingleTileRejectsHaloOverride(t *testing.T) {
	if _, err := New(Config{DimX: 8, DimY: 8, LengthX: 1, LengthY: 1, HaloX: 4}); err == nil {
		t.Fatal("halo override on closed x axis accepted")
	}
	if _, err := New(Config{DimX: 8, DimY: 8, LengthX: 1, LengthY: 1, HaloY: 2}); err == nil {
		t.Fatal("halo override on closed y axis accepted")
	}
	// With neighbors along the axis the same override is meaningful.
	if _, err := NewMesh(Config{DimX: 8, DimY: 8, LengthX: 1, LengthY: 1, HaloX: 4}, 2, 1); err != nil {
		t.Fatalf("halo override with neighbors rejected: %v", err)
	}
	// So is a periodic single tile, which wraps onto itself.
	if _, err := New(Config{DimX: 8, DimY: 8, LengthX: 1, LengthY: 1, PeriodicX: true, HaloX: 4}); err != nil {
		t.Fatalf("halo override on periodic axis rejected: %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	bad := []Config{
		{DimX: 0, DimY: 8, LengthX: 1, LengthY: 1},
		{DimX: 7, DimY: 8, LengthX: 1, LengthY: 1},
		{DimX: 8, DimY: 8, LengthX: 0, LengthY: 1},
		{DimX: 8, DimY: 8, LengthX: 1, LengthY: 1, HaloX: 3},
		{DimX: 8, DimY: 8, LengthX: 1, LengthY: 1, HaloY: -2},
	}
	for i, cfg := range bad {
		if _, err := New(cfg); err == nil {
			t.Fatalf("config %d accepted: %+v", i, cfg)
		}
	}
}
