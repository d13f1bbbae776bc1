package ppu

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newEnabledPPU() *PPU {
	p := New()
	p.CPUWrite(0xFF40, 0x80) // LCD on, everything else default off
	return p
}

func TestModeSequencePerVisibleLine(t *testing.T) {
	p := newEnabledPPU()

	for i := 0; i < oamScanCycles; i++ {
		p.Step()
	}
	require.Equal(t, OamScan, p.mode)

	for i := 0; i < drawingCycles; i++ {
		p.Step()
	}
	require.Equal(t, Drawing, p.mode)

	for i := 0; i < hblankCycles-1; i++ {
		p.Step()
	}
	require.Equal(t, HBlank, p.mode, "one cycle before the line ends")

	p.Step() // the line's final cycle rolls LY over and re-enters OamScan
	require.EqualValues(t, 1, p.LY())
	require.Equal(t, OamScan, p.mode, "start of the next line")
}

func TestVBlankIRQFiresAtLine144(t *testing.T) {
	p := newEnabledPPU()
	sawVBlank := false
	for line := 0; line < vblankStartsAt && !sawVBlank; line++ {
		for c := 0; c < cyclesPerLine; c++ {
			if vb, _ := p.Step(); vb {
				sawVBlank = true
				break
			}
		}
	}
	require.True(t, sawVBlank, "expected a V-Blank IRQ edge at line %d", vblankStartsAt)
	require.EqualValues(t, vblankStartsAt, p.LY())
}

func TestFrameIsExactly17556MCycles(t *testing.T) {
	p := newEnabledPPU()
	want := linesPerFrame * cyclesPerLine
	for i := 0; i < want-1; i++ {
		p.Step()
	}
	require.NotZero(t, p.LY(), "LY should not wrap to 0 before a full frame elapsed")

	p.Step() // the want-th cycle: should land exactly back on line 0
	require.Zero(t, p.LY(), "LY after %d M-cycles", want)
}

func TestLYCCoincidenceSetsSTATBit(t *testing.T) {
	p := newEnabledPPU()
	p.CPUWrite(0xFF45, 0x00) // LYC=0, matches LY=0 at power-on
	require.NotZero(t, p.CPURead(0xFF41)&(1<<2), "STAT coincidence bit should be set when LY==LYC")
}

func TestVRAMBlockedDuringDrawing(t *testing.T) {
	p := newEnabledPPU()
	for i := 0; i < oamScanCycles+1; i++ {
		p.Step()
	}
	require.Equal(t, Drawing, p.mode)

	p.CPUWrite(0x8000, 0x42)
	require.NotEqualValues(t, 0x42, p.CPURead(0x8000), "VRAM write during Drawing should be ignored")
}

func TestOAMScanCapsAtTenObjects(t *testing.T) {
	p := New()
	for i := 0; i < 40; i++ {
		p.setOAMByte(uint16(i*4+0), 16) // Y=16 so every object is on line 0
		p.setOAMByte(uint16(i*4+1), byte(i))
		p.setOAMByte(uint16(i*4+2), 0)
		p.setOAMByte(uint16(i*4+3), 0)
	}
	p.CPUWrite(0xFF40, 0x80)
	p.scanOAM()
	require.Len(t, p.objBuf, 10)
}
