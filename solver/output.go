package solver

import (
	"bufio"
	"fmt"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// writeMatrix dumps a row-major w x h matrix as whitespace-separated
// text, one grid row per line.
func writeMatrix(filename string, data []float64, w, h int) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filename, err)
	}
	defer f.Close()
	bw := bufio.NewWriter(f)
	for iy := 0; iy < h; iy++ {
		for ix := 0; ix < w; ix++ {
			if ix > 0 {
				if _, err := bw.WriteRune(' '); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintf(bw, "%g", data[iy*w+ix]); err != nil {
				return err
			}
		}
		if _, err := bw.WriteRune('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteToFile writes the real and imaginary planes of the halo-free
// region to fileprefix + "-real.dat" / "-imag.dat".
func (s *State) WriteToFile(fileprefix string) error {
	l := s.Lat
	w, h := l.InnerWidth(), l.InnerHeight()
	re := make([]float64, w*h)
	im := make([]float64, w*h)
	for iy := 0; iy < h; iy++ {
		for ix := 0; ix < w; ix++ {
			i := (iy+l.InnerOffsetY())*l.DimX + ix + l.InnerOffsetX()
			re[iy*w+ix] = s.Real[i]
			im[iy*w+ix] = s.Imag[i]
		}
	}
	if err := writeMatrix(fileprefix+"-real.dat", re, w, h); err != nil {
		return err
	}
	return writeMatrix(fileprefix+"-imag.dat", im, w, h)
}

// WriteParticleDensity writes the density matrix to fileprefix + ".dat".
func (s *State) WriteParticleDensity(fileprefix string) error {
	l := s.Lat
	return writeMatrix(fileprefix+".dat", s.Density(), l.InnerWidth(), l.InnerHeight())
}

// WritePhase writes the phase matrix to fileprefix + ".dat".
func (s *State) WritePhase(fileprefix string) error {
	l := s.Lat
	return writeMatrix(fileprefix+".dat", s.Phase(), l.InnerWidth(), l.InnerHeight())
}

// fieldGrid adapts a flat matrix with physical extents to the heatmap
// plotter.
type fieldGrid struct {
	w, h   int
	dx, dy float64
	x0, y0 float64
	data   []float64
}

func (g fieldGrid) Dims() (c, r int)   { return g.w, g.h }
func (g fieldGrid) Z(c, r int) float64 { return g.data[r*g.w+c] }
func (g fieldGrid) X(c int) float64    { return g.x0 + float64(c)*g.dx }
func (g fieldGrid) Y(r int) float64    { return g.y0 + float64(r)*g.dy }

// SaveHeatmapPNG renders a row-major matrix over the grid's physical
// extent as a PNG heatmap.
func SaveHeatmapPNG(s *State, data []float64, title, filename string) error {
	l := s.Lat
	g := fieldGrid{
		w: l.InnerWidth(), h: l.InnerHeight(),
		dx: l.DeltaX, dy: l.DeltaY,
		x0: l.CoordX(l.InnerOffsetX()),
		y0: l.CoordY(l.InnerOffsetY()),
		data: data,
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"
	pal := moreland.Kindlmann().Palette(255)
	p.Add(plotter.NewHeatMap(g, pal))

	c := vgimg.NewWith(vgimg.UseWH(6*vg.Inch, 6*vg.Inch), vgimg.UseDPI(150))
	dc := draw.New(c)
	p.Draw(dc)
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filename, err)
	}
	defer f.Close()
	png := vgimg.PngCanvas{Canvas: c}
	if _, err := png.WriteTo(f); err != nil {
		return fmt.Errorf("rendering %s: %w", filename, err)
	}
	return nil
}
