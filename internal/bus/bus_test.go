package bus

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hoppla20/gbemu-go/internal/cart"
)

func newTestBus() *Bus {
	rom := make([]byte, 0x8000)
	return New(cart.NewMbc0(rom))
}

func TestWRAMReadWriteRoundTrip(t *testing.T) {
	b := newTestBus()
	b.Write(0xC000, 0x42)
	require.EqualValues(t, 0x42, b.Read(0xC000))
}

func TestEchoRAMMirrorsWRAM(t *testing.T) {
	b := newTestBus()
	b.Write(0xC010, 0x7A)
	require.EqualValues(t, 0x7A, b.Read(0xE010), "echo RAM should mirror C010")
}

func TestHRAMReadWriteRoundTrip(t *testing.T) {
	b := newTestBus()
	b.Write(0xFF80, 0x99)
	require.EqualValues(t, 0x99, b.Read(0xFF80))
}

func TestUnusableRegionReadsZeroWhenDMAIdleAndAbsorbsWrites(t *testing.T) {
	b := newTestBus()
	b.Write(0xFEA0, 0x55)
	require.EqualValues(t, 0x00, b.Read(0xFEA0), "unusable region reads 0x00 while DMA is idle")
}

func TestDMALocksOutNonHRAMAccess(t *testing.T) {
	b := newTestBus()
	b.Write(0xC000, 0xAB) // seed WRAM before DMA starts
	b.Write(0xFF46, 0xC0) // start OAM DMA from source 0xC000

	// While DMA is active, only HRAM is reachable; everything else reads
	// back as if masked.
	require.NotEqualValues(t, 0xAB, b.Read(0xC000), "WRAM should not be reachable while DMA is active")

	b.Write(0xFF80, 0x11)
	require.EqualValues(t, 0x11, b.Read(0xFF80), "HRAM must remain reachable during DMA")
}

func TestUnusableRegionReadsFFWhileDMAActive(t *testing.T) {
	b := newTestBus()
	b.Write(0xFF46, 0xC0) // start OAM DMA
	require.EqualValues(t, 0xFF, b.Read(0xFEA0), "unusable region reads 0xFF while DMA is active")
}

func TestDMACopiesAfterStartupDelay(t *testing.T) {
	b := newTestBus()
	for i := 0; i < 0xA0; i++ {
		b.Write(0xC000+uint16(i), byte(i))
	}
	b.Write(0xFF46, 0xC0)

	// 2 M-cycles of startup, then 160 one-byte copies.
	for i := 0; i < 2+160; i++ {
		b.Step()
	}
	require.False(t, b.dmaActive, "DMA should be finished after 162 M-cycles")
	require.EqualValues(t, 0x00, b.PPU().CPURead(0xFE00))
	require.EqualValues(t, 0x05, b.PPU().CPURead(0xFE05))
}

func TestSetPPUEnabledSkipsPPUAdvancement(t *testing.T) {
	b := newTestBus()
	b.SetPPUEnabled(false)
	b.PPU().CPUWrite(0xFF40, 0x80) // LCD on
	for i := 0; i < 200; i++ {
		b.Step()
	}
	require.Zero(t, b.PPU().LY(), "PPU should not advance while disabled")
}

func TestSaveStateRoundTrip(t *testing.T) {
	b := newTestBus()
	b.Write(0xC000, 0x21)
	b.Write(0xFF80, 0x99)
	data, err := b.SaveState()
	require.NoError(t, err)

	b2 := newTestBus()
	require.NoError(t, b2.LoadState(data))
	require.EqualValues(t, 0x21, b2.Read(0xC000))
	require.EqualValues(t, 0x99, b2.Read(0xFF80))
}
