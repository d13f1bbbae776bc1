package ppu

// scanOAM builds the object buffer for the line about to be drawn: up to
// 10 objects whose Y range covers ly, in OAM index order (the order real
// hardware's linear scan naturally produces, and the order priority ties
// are broken by during compositing).
func (p *PPU) scanOAM() {
	height := 8
	if p.lcdc&0x04 != 0 {
		height = 16
	}
	p.objBuf = p.objBuf[:0]
	ly := int(p.ly)
	for i := range p.oam {
		o := p.oam[i]
		top := int(o.Y) - 16
		if ly < top || ly >= top+height {
			continue
		}
		p.objBuf = append(p.objBuf, o)
		if len(p.objBuf) == 10 {
			break
		}
	}
}

// renderScanline composites background, window, and object pixels for the
// current LY into the framebuffer, applying BGP/OBPx at the point each
// pixel is emitted (matching how the real LCD driver works: the
// framebuffer stores final shades, not raw tile-palette indices).
func (p *PPU) renderScanline() {
	ly := int(p.ly)
	if ly >= ScreenH {
		return
	}

	var bgIndex [ScreenW]byte
	if p.lcdc&0x01 != 0 {
		p.renderBackground(ly, &bgIndex)
	}

	windowVisible := p.lcdc&0x20 != 0 && p.lcdc&0x01 != 0 && int(p.wy) <= ly && p.wx <= 166
	if windowVisible {
		p.renderWindow(ly, &bgIndex)
		p.windowLine++
	}

	for x := 0; x < ScreenW; x++ {
		p.fb[ly][x] = applyPalette(bgIndex[x], p.bgp)
	}

	if p.lcdc&0x02 != 0 {
		p.renderObjects(ly, &bgIndex)
	}
}

func (p *PPU) renderBackground(ly int, out *[ScreenW]byte) {
	mapBase := uint16(0x9800)
	if p.lcdc&0x08 != 0 {
		mapBase = 0x9C00
	}
	y := (ly + int(p.scy)) & 0xFF
	tileRow := y / 8
	fineY := y % 8
	for x := 0; x < ScreenW; x++ {
		sx := (x + int(p.scx)) & 0xFF
		tileCol := sx / 8
		fineX := sx % 8
		tileIdx := p.vram[mapBase-0x8000+uint16(tileRow*32+tileCol)]
		lo, hi := p.tileRowBytes(tileIdx, fineY)
		out[x] = pixelFromRow(lo, hi, fineX)
	}
}

func (p *PPU) renderWindow(ly int, out *[ScreenW]byte) {
	mapBase := uint16(0x9800)
	if p.lcdc&0x40 != 0 {
		mapBase = 0x9C00
	}
	tileRow := p.windowLine / 8
	fineY := p.windowLine % 8
	wx := int(p.wx) - 7
	for x := 0; x < ScreenW; x++ {
		if x < wx {
			continue
		}
		col := x - wx
		tileCol := col / 8
		fineX := col % 8
		tileIdx := p.vram[mapBase-0x8000+uint16(tileRow*32+tileCol)]
		lo, hi := p.tileRowBytes(tileIdx, fineY)
		out[x] = pixelFromRow(lo, hi, fineX)
	}
}

func (p *PPU) renderObjects(ly int, bgIndex *[ScreenW]byte) {
	height := 8
	if p.lcdc&0x04 != 0 {
		height = 16
	}
	// Earlier-in-OAM objects win ties at the same X, so walk the buffer
	// back to front and let earlier entries overwrite later ones.
	for i := len(p.objBuf) - 1; i >= 0; i-- {
		o := p.objBuf[i]
		top := int(o.Y) - 16
		row := ly - top
		if o.yFlip() {
			row = height - 1 - row
		}
		tile := o.Tile
		if height == 16 {
			tile &^= 0x01
			if row >= 8 {
				tile |= 0x01
				row -= 8
			}
		}
		lo, hi := p.tileRowBytes(tile, row)
		left := int(o.X) - 8
		for col := 0; col < 8; col++ {
			x := left + col
			if x < 0 || x >= ScreenW {
				continue
			}
			fx := col
			if o.xFlip() {
				fx = 7 - col
			}
			idx := pixelFromRow(lo, hi, fx)
			if idx == 0 {
				continue
			}
			if o.bgPriority() && bgIndex[x] != 0 {
				continue
			}
			pal := p.obp0
			if o.palette() == 1 {
				pal = p.obp1
			}
			p.fb[ly][x] = applyPalette(idx, pal)
		}
	}
}

func (p *PPU) tileRowBytes(tile byte, fineY int) (lo, hi byte) {
	var base uint16
	if p.lcdc&0x10 != 0 {
		base = 0x8000 + uint16(tile)*16
	} else {
		base = uint16(0x9000 + int(int8(tile))*16)
	}
	off := base - 0x8000 + uint16(fineY)*2
	return p.vram[off], p.vram[off+1]
}

func pixelFromRow(lo, hi byte, fineX int) byte {
	bit := 7 - fineX
	l := (lo >> bit) & 1
	h := (hi >> bit) & 1
	return l | h<<1
}

func applyPalette(index, palette byte) byte {
	return (palette >> (index * 2)) & 0x03
}
