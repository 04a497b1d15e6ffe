package kernel

// Block tiling: a band is never advanced in place over the whole tile.
// Each block is copied into a scratch field, advanced there, and only the
// region that received full stencil coverage is copied back. Interior
// block boundaries overlap by the halo thickness because the rotation
// passes read past each block edge. The block size is a locality knob
// only; results do not depend on it.

// band is one horizontal strip of the tile scheduled as a unit. readY and
// readHeight delimit the rows fed to the stencil; writeOffset and
// writeHeight the rows of the result that are kept. All in lattice units.
type band struct {
	readY       int
	readHeight  int
	writeOffset int
	writeHeight int
}

// bandPass bundles the immutable per-step geometry shared by every band.
type bandPass struct {
	tileW  int
	blockW int
	haloX  int
	a, b   float64
	imag   bool
	src    *quadField
	next   *quadField
	pot    *quadField // nil for free evolution
}

// runBlock copies one block in, applies the potential phase and the full
// kinetic pass sequence, and copies the kept window back out.
func (bp *bandPass) runBlock(scratch *quadField, bd band, readX, readWidth, keepX, keepWidth int) {
	tw2 := bp.tileW / 2
	readIdx := (bd.readY/2)*tw2 + readX/2
	copyQuads(scratch, 0, bp.src, readIdx, readWidth/2, bd.readHeight/2)
	if bp.pot != nil {
		applyPotential(scratch, bp.pot, readIdx, readWidth/2, bd.readHeight/2)
	}
	fullStep(scratch, bp.blockW/2, readWidth/2, bd.readHeight/2, bp.a, bp.b, bp.imag)

	blockReadIdx := (bd.writeOffset/2)*(bp.blockW/2) + (keepX-readX)/2
	writeIdx := (bd.readY/2+bd.writeOffset/2)*tw2 + keepX/2
	copyQuads(bp.next, writeIdx, scratch, blockReadIdx, keepWidth/2, bd.writeHeight/2)
}

// processBand advances one band of the tile. inner selects the regular
// interior blocks, sides the first and last block of the band (the ones
// that read the tile's own left and right halo columns).
func (bp *bandPass) processBand(scratch *quadField, bd band, inner, sides bool) {
	tileW, blockW, haloX := bp.tileW, bp.blockW, bp.haloX
	if tileW <= blockW {
		if sides {
			// One block covers the whole band.
			bp.runBlock(scratch, bd, 0, tileW, 0, tileW)
		}
		return
	}
	if sides {
		// First block keeps everything up to its right overlap.
		bp.runBlock(scratch, bd, 0, blockW, 0, blockW-haloX)
		// Remainder block at the far edge: the smallest marching position
		// at or past tileW-blockW, so its kept region starts exactly where
		// the last interior block stopped.
		stride := blockW - 2*haloX
		blockStart := (tileW - blockW + stride - 1) / stride * stride
		bp.runBlock(scratch, bd, blockStart, tileW-blockStart, blockStart+haloX, tileW-blockStart-haloX)
	}
	if inner {
		for blockStart := blockW - 2*haloX; blockStart < tileW-blockW; blockStart += blockW - 2*haloX {
			bp.runBlock(scratch, bd, blockStart, blockW, blockStart+haloX, blockW-2*haloX)
		}
	}
}
