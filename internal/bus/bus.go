// Package bus wires the CPU-visible address space together: cartridge
// ROM/RAM, work RAM, high RAM, the PPU, timer, serial port, joypad, and
// the interrupt controller, plus the OAM DMA sequencer.
package bus

import (
	"bytes"
	"encoding/gob"
	"io"
	"log/slog"

	"github.com/hoppla20/gbemu-go/internal/cart"
	"github.com/hoppla20/gbemu-go/internal/irq"
	"github.com/hoppla20/gbemu-go/internal/joypad"
	"github.com/hoppla20/gbemu-go/internal/ppu"
	"github.com/hoppla20/gbemu-go/internal/serial"
	"github.com/hoppla20/gbemu-go/internal/timer"
)

// Bus implements the full DMG memory map.
type Bus struct {
	cart   cart.Cartridge
	wram   [0x2000]byte
	hram   [0x7F]byte
	ppu    *ppu.PPU
	irq    *irq.Controller
	timer  *timer.Timer
	serial *serial.Serial
	joyp   *joypad.Joypad

	dma      byte
	dmaActive bool
	dmaStartup int // 2 M-cycles before the first byte actually copies
	dmaSrc   uint16
	dmaIndex int

	ppuEnabled bool
}

// New wires a Bus around an already-constructed cartridge. The PPU
// advances by default; disable it with SetPPUEnabled for headless runs.
func New(c cart.Cartridge) *Bus {
	return &Bus{
		cart:       c,
		ppu:        ppu.New(),
		irq:        irq.New(),
		timer:      timer.New(),
		serial:     serial.New(),
		joyp:       joypad.New(),
		ppuEnabled: true,
	}
}

func (b *Bus) PPU() *ppu.PPU           { return b.ppu }
func (b *Bus) IRQ() *irq.Controller    { return b.irq }
func (b *Bus) Timer() *timer.Timer     { return b.timer }
func (b *Bus) Serial() *serial.Serial  { return b.serial }
func (b *Bus) Joypad() *joypad.Joypad  { return b.joyp }
func (b *Bus) Cartridge() cart.Cartridge { return b.cart }

func (b *Bus) SetSerialSink(w io.Writer) { b.serial.SetSink(w) }

// Read services a CPU-initiated memory read. During OAM DMA only HRAM
// (0xFF80-0xFFFE) is reachable; everything else reads 0xFF.
func (b *Bus) Read(addr uint16) byte {
	if b.dmaActive && !(addr >= 0xFF80 && addr <= 0xFFFE) {
		return 0xFF
	}
	return b.read(addr)
}

func (b *Bus) read(addr uint16) byte {
	switch {
	case addr < 0x8000:
		return b.cart.Read(addr)
	case addr <= 0x9FFF:
		return b.ppu.CPURead(addr)
	case addr <= 0xBFFF:
		return b.cart.Read(addr)
	case addr <= 0xDFFF:
		return b.wram[addr-0xC000]
	case addr <= 0xFDFF:
		return b.wram[addr-0x2000-0xC000]
	case addr <= 0xFE9F:
		return b.ppu.CPURead(addr)
	case addr >= 0xFEA0 && addr <= 0xFEFF:
		if b.dmaActive {
			return 0xFF
		}
		return 0x00
	case addr == 0xFF00:
		return b.joyp.ReadP1()
	case addr == 0xFF01:
		return b.serial.SB()
	case addr == 0xFF02:
		return b.serial.SC()
	case addr == 0xFF04:
		return b.timer.DIV()
	case addr == 0xFF05:
		return b.timer.TIMA()
	case addr == 0xFF06:
		return b.timer.TMA()
	case addr == 0xFF07:
		return b.timer.TAC()
	case addr == 0xFF0F:
		return b.irq.ReadIF()
	case addr >= 0xFF10 && addr <= 0xFF3F:
		slog.Debug("read of unimplemented audio register", "addr", addr)
		return 0x00
	case addr >= 0xFF40 && addr <= 0xFF4B && addr != 0xFF46:
		return b.ppu.CPURead(addr)
	case addr == 0xFF46:
		return b.dma
	case addr >= 0xFF80 && addr <= 0xFFFE:
		return b.hram[addr-0xFF80]
	case addr == 0xFFFF:
		return b.irq.ReadIE()
	default:
		return 0xFF
	}
}

// Write services a CPU-initiated memory write. During OAM DMA only HRAM
// is writable; everything else is dropped.
func (b *Bus) Write(addr uint16, v byte) {
	if b.dmaActive && !(addr >= 0xFF80 && addr <= 0xFFFE) {
		return
	}
	switch {
	case addr < 0x8000:
		b.cart.Write(addr, v)
	case addr <= 0x9FFF:
		b.ppu.CPUWrite(addr, v)
	case addr <= 0xBFFF:
		b.cart.Write(addr, v)
	case addr <= 0xDFFF:
		b.wram[addr-0xC000] = v
	case addr <= 0xFDFF:
		b.wram[addr-0x2000-0xC000] = v
	case addr <= 0xFE9F:
		b.ppu.CPUWrite(addr, v)
	case addr >= 0xFEA0 && addr <= 0xFEFF:
		// unusable region, writes absorbed
	case addr == 0xFF00:
		b.joyp.WriteP1(v)
	case addr == 0xFF01:
		b.serial.WriteSB(v)
	case addr == 0xFF02:
		b.serial.WriteSC(v)
	case addr == 0xFF04:
		b.timer.WriteDIV()
	case addr == 0xFF05:
		b.timer.WriteTIMA(v)
	case addr == 0xFF06:
		b.timer.WriteTMA(v)
	case addr == 0xFF07:
		b.timer.WriteTAC(v)
	case addr == 0xFF0F:
		b.irq.WriteIF(v)
	case addr >= 0xFF40 && addr <= 0xFF4B && addr != 0xFF46:
		b.ppu.CPUWrite(addr, v)
	case addr == 0xFF46:
		b.startDMA(v)
	case addr >= 0xFF80 && addr <= 0xFFFE:
		b.hram[addr-0xFF80] = v
	case addr == 0xFFFF:
		b.irq.WriteIE(v)
	}
}

func (b *Bus) startDMA(v byte) {
	b.dma = v
	b.dmaActive = true
	b.dmaStartup = 2
	b.dmaSrc = uint16(v) << 8
	b.dmaIndex = 0
}

// SetPPUEnabled controls whether Step advances the PPU. Disabling it
// skips scanline/mode work entirely for headless CPU-only runs (no
// V-Blank/STAT interrupts are posted either), matching the driver API's
// graphics_enabled=false fast path.
func (b *Bus) SetPPUEnabled(enabled bool) { b.ppuEnabled = enabled }

// Step advances every peripheral by exactly one M-cycle: OAM DMA, the
// PPU (unless disabled via SetPPUEnabled), the timer, and the joypad
// edge latch, posting any interrupt requests raised this cycle into the
// IF register. Callers that need the CPU's own bus access interleaved
// between the DMA copy and the rest of the peripherals (the documented
// per-M-cycle ordering) should call StepDMA and StepPeripherals
// directly instead.
func (b *Bus) Step() {
	b.StepDMA()
	b.StepPeripherals()
}

// StepDMA advances only the OAM DMA sequencer by one M-cycle.
func (b *Bus) StepDMA() {
	b.stepDMA()
}

// StepPeripherals advances the PPU, timer, and joypad edge latch by one
// M-cycle, posting any interrupt requests raised this cycle into the IF
// register.
func (b *Bus) StepPeripherals() {
	if b.ppuEnabled {
		if vblank, stat := b.ppu.Step(); vblank || stat {
			if vblank {
				b.irq.Request(irq.VBlank)
			}
			if stat {
				b.irq.Request(irq.LCD)
			}
		}
	}

	if b.timer.Step() {
		b.irq.Request(irq.Timer)
	}

	if b.joyp.TakeIRQ() {
		b.irq.Request(irq.Joypad)
	}
}

func (b *Bus) stepDMA() {
	if !b.dmaActive {
		return
	}
	if b.dmaStartup > 0 {
		b.dmaStartup--
		return
	}
	if b.dmaIndex < 0xA0 {
		v := b.read(b.dmaSrc + uint16(b.dmaIndex))
		b.ppu.CPUWrite(0xFE00+uint16(b.dmaIndex), v)
		b.dmaIndex++
	}
	if b.dmaIndex >= 0xA0 {
		b.dmaActive = false
	}
}

// busState is the gob-serializable snapshot of everything the bus owns
// directly; the cartridge's battery-backed RAM is saved separately via
// cart.Cartridge.SaveState.
type busState struct {
	WRAM [0x2000]byte
	HRAM [0x7F]byte
	DMA  byte
}

func (b *Bus) SaveState() ([]byte, error) {
	var buf bytes.Buffer
	st := busState{WRAM: b.wram, HRAM: b.hram, DMA: b.dma}
	if err := gob.NewEncoder(&buf).Encode(st); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (b *Bus) LoadState(data []byte) error {
	var st busState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return err
	}
	b.wram, b.hram, b.dma = st.WRAM, st.HRAM, st.DMA
	return nil
}
