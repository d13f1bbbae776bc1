// Package ppu implements the DMG Pixel Processing Unit: the OAM
// scan/drawing/HBlank/VBlank mode state machine, tile-data and tile-map
// storage, and background/window/object scanline rendering into a
// 160x144 framebuffer of 2-bit shades.
package ppu

// Mode is one of the four PPU scanline states.
type Mode byte

const (
	HBlank Mode = iota
	VBlank
	OamScan
	Drawing
)

const (
	ScreenW = 160
	ScreenH = 144

	oamScanCycles  = 20
	drawingCycles  = 43
	hblankCycles   = 51
	cyclesPerLine  = oamScanCycles + drawingCycles + hblankCycles // 114
	linesPerFrame  = 154
	vblankStartsAt = 144
)

// Object is one decoded OAM entry (Y, X, tile index, attribute flags).
type Object struct {
	Y, X, Tile, Flags byte
}

func (o Object) bgPriority() bool { return o.Flags&0x80 != 0 }
func (o Object) yFlip() bool      { return o.Flags&0x40 != 0 }
func (o Object) xFlip() bool      { return o.Flags&0x20 != 0 }
func (o Object) palette() byte    { return (o.Flags >> 4) & 1 }

// PPU owns VRAM, OAM, the LCD control/status registers, and the visible
// framebuffer. Reads/writes of 0x8000-0x9FFF and 0xFE00-0xFE9F and the PPU
// I/O registers at 0xFF40-0xFF4B (except the DMA register 0xFF46, which
// the bus owns) are routed here by the bus.
type PPU struct {
	vram [0x2000]byte
	oam  [40]Object

	lcdc byte
	stat byte // bits 3-6 enable flags + coincidence; low 2 bits mirror mode
	scy  byte
	scx  byte
	ly   byte
	lyc  byte
	bgp  byte
	obp0 byte
	obp1 byte
	wy   byte
	wx   byte

	mode       Mode
	cycleInLine int // 0..113
	windowLine  int // internal window-line counter, advances only on visible lines

	objBuf    []Object
	fb        [ScreenH][ScreenW]byte

	vblankIRQ bool
	statIRQ   bool
}

func New() *PPU {
	p := &PPU{}
	p.mode = OamScan
	return p
}

// CPURead handles VRAM, OAM, and the PPU I/O register block.
func (p *PPU) CPURead(addr uint16) byte {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if p.lcdOn() && p.mode == Drawing {
			return 0xFF
		}
		return p.vram[addr-0x8000]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if p.lcdOn() && (p.mode == OamScan || p.mode == Drawing) {
			return 0xFF
		}
		return p.oamByte(addr - 0xFE00)
	case addr == 0xFF40:
		return p.lcdc
	case addr == 0xFF41:
		return 0x80 | (p.stat & 0x7F) | byte(p.mode)&0x03
	case addr == 0xFF42:
		return p.scy
	case addr == 0xFF43:
		return p.scx
	case addr == 0xFF44:
		return p.ly
	case addr == 0xFF45:
		return p.lyc
	case addr == 0xFF47:
		return p.bgp
	case addr == 0xFF48:
		return p.obp0
	case addr == 0xFF49:
		return p.obp1
	case addr == 0xFF4A:
		return p.wy
	case addr == 0xFF4B:
		return p.wx
	default:
		return 0xFF
	}
}

func (p *PPU) oamByte(off uint16) byte {
	o := p.oam[off/4]
	switch off % 4 {
	case 0:
		return o.Y
	case 1:
		return o.X
	case 2:
		return o.Tile
	default:
		return o.Flags
	}
}

func (p *PPU) setOAMByte(off uint16, v byte) {
	o := &p.oam[off/4]
	switch off % 4 {
	case 0:
		o.Y = v
	case 1:
		o.X = v
	case 2:
		o.Tile = v
	default:
		o.Flags = v
	}
}

// CPUWrite handles VRAM, OAM, and the PPU I/O register block. The bus is
// responsible for masking OAM writes out entirely while DMA is active.
func (p *PPU) CPUWrite(addr uint16, v byte) {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if p.lcdOn() && p.mode == Drawing {
			return
		}
		p.vram[addr-0x8000] = v
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if p.lcdOn() && (p.mode == OamScan || p.mode == Drawing) {
			return
		}
		p.setOAMByte(addr-0xFE00, v)
	case addr == 0xFF40:
		prev := p.lcdc
		p.lcdc = v
		if prev&0x80 != 0 && v&0x80 == 0 {
			p.ly, p.cycleInLine, p.windowLine = 0, 0, 0
			p.setMode(HBlank)
		} else if prev&0x80 == 0 && v&0x80 != 0 {
			p.ly, p.cycleInLine, p.windowLine = 0, 0, 0
			p.setMode(OamScan)
			p.scanOAM()
		}
	case addr == 0xFF41:
		p.stat = (p.stat & 0x03) | (v & 0x78)
	case addr == 0xFF42:
		p.scy = v
	case addr == 0xFF43:
		p.scx = v
	case addr == 0xFF44:
		// LY is read-only on real hardware; writes are ignored.
	case addr == 0xFF45:
		p.lyc = v
		p.updateCoincidence()
	case addr == 0xFF47:
		p.bgp = v
	case addr == 0xFF48:
		p.obp0 = v
	case addr == 0xFF49:
		p.obp1 = v
	case addr == 0xFF4A:
		p.wy = v
	case addr == 0xFF4B:
		p.wx = v
	}
}

func (p *PPU) lcdOn() bool { return p.lcdc&0x80 != 0 }

// LY exposes the current scanline directly; guest reads of FF44 go through
// CPURead instead.
func (p *PPU) LY() byte { return p.ly }

func (p *PPU) setMode(m Mode) {
	p.mode = m
	switch m {
	case HBlank:
		if p.stat&(1<<3) != 0 {
			p.statIRQ = true
		}
	case OamScan:
		if p.stat&(1<<5) != 0 {
			p.statIRQ = true
		}
	case VBlank:
		if p.stat&(1<<4) != 0 {
			p.statIRQ = true
		}
	}
}

func (p *PPU) updateCoincidence() {
	if p.ly == p.lyc {
		p.stat |= 1 << 2
		if p.stat&(1<<6) != 0 {
			p.statIRQ = true
		}
	} else {
		p.stat &^= 1 << 2
	}
}

// Step advances the PPU state machine by exactly one M-cycle, per the
// mode-duration table in the component design (20 OamScan + 43 Drawing +
// 51 HBlank per visible line; 10 full lines of VBlank). It reports any
// V-blank or STAT interrupt edge raised this cycle.
func (p *PPU) Step() (vblankIRQ, statIRQ bool) {
	p.vblankIRQ, p.statIRQ = false, false
	if !p.lcdOn() {
		return false, false
	}

	p.cycleInLine++
	if p.ly < vblankStartsAt {
		switch {
		case p.cycleInLine <= oamScanCycles:
			if p.mode != OamScan {
				p.setMode(OamScan)
				p.scanOAM()
			}
		case p.cycleInLine <= oamScanCycles+drawingCycles:
			if p.mode != Drawing {
				p.setMode(Drawing)
			}
		default:
			if p.mode != HBlank {
				p.renderScanline()
				p.setMode(HBlank)
			}
		}
	}

	if p.cycleInLine >= cyclesPerLine {
		p.cycleInLine = 0
		p.ly++
		if p.ly == vblankStartsAt {
			p.setMode(VBlank)
			p.vblankIRQ = true
			if p.stat&(1<<4) != 0 {
				p.statIRQ = true
			}
		} else if p.ly > 153 {
			p.ly = 0
			p.windowLine = 0
			p.setMode(OamScan)
			p.scanOAM()
		} else if p.ly < vblankStartsAt {
			p.setMode(OamScan)
			p.scanOAM()
		}
		p.updateCoincidence()
	}

	vblankIRQ, statIRQ = p.vblankIRQ, p.statIRQ
	return
}

// Framebuffer returns the 160x144 array of 2-bit shades (0..3), already
// passed through BGP/OBPx. The host maps these through a 4-entry palette.
func (p *PPU) Framebuffer() *[ScreenH][ScreenW]byte { return &p.fb }

func (p *PPU) BGP() byte  { return p.bgp }
func (p *PPU) OBP0() byte { return p.obp0 }
func (p *PPU) OBP1() byte { return p.obp1 }
func (p *PPU) LCDC() byte { return p.lcdc }
func (p *PPU) SCY() byte  { return p.scy }
func (p *PPU) SCX() byte  { return p.scx }
func (p *PPU) WY() byte   { return p.wy }
func (p *PPU) WX() byte   { return p.wx }
