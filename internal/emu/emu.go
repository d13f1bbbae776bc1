// Package emu assembles the CPU, bus, and their peripherals into the
// single-ROM-at-a-time machine the command-line front ends drive: one
// Step call retires exactly one M-cycle, with StepInstruction and
// StepFrame built on top for callers that don't need that granularity.
package emu

import (
	"fmt"
	"io"

	"github.com/hoppla20/gbemu-go/internal/bus"
	"github.com/hoppla20/gbemu-go/internal/cart"
	"github.com/hoppla20/gbemu-go/internal/cpu"
	"github.com/hoppla20/gbemu-go/internal/joypad"
	"github.com/hoppla20/gbemu-go/internal/ppu"
)

// mCyclesPerFrame is 154 lines x 114 M-cycles/line.
const mCyclesPerFrame = 154 * 114

// Emulator owns one cartridge's worth of running state.
type Emulator struct {
	cpu *cpu.CPU
	bus *bus.Bus

	header *cart.Header

	graphicsEnabled bool
	frameMCycles    int
}

// New loads rom, parses its header, and wires a fresh CPU/bus pair at the
// documented DMG post-boot register state (there is no boot ROM stage).
// When graphicsEnabled is false the PPU is not advanced at all (no
// scanline work, no V-Blank/STAT interrupts), the fast path headless
// CPU-test runners want; games that gate logic on STAT/LY need it true.
func New(rom []byte, graphicsEnabled bool, serialSink io.Writer) (*Emulator, error) {
	c, h, err := cart.New(rom)
	if err != nil {
		return nil, fmt.Errorf("emu: %w", err)
	}
	b := bus.New(c)
	b.SetPPUEnabled(graphicsEnabled)
	if serialSink != nil {
		b.SetSerialSink(serialSink)
	}
	cp := cpu.New()
	cp.ResetPostBoot()

	return &Emulator{cpu: cp, bus: b, header: h, graphicsEnabled: graphicsEnabled}, nil
}

func (e *Emulator) Header() *cart.Header { return e.header }
func (e *Emulator) Bus() *bus.Bus        { return e.bus }
func (e *Emulator) CPU() *cpu.CPU        { return e.cpu }

// Step advances every component by exactly one M-cycle in the order a
// real DMG commits them within a cycle: the OAM DMA byte copy first, so
// it is visible to the CPU's own bus access this same cycle, then the
// CPU micro-step itself, and only afterward the PPU/timer/joypad
// advance (and any interrupt posting that falls out of it) — so a CPU
// read of FF05/FF44/FF41 this cycle observes the value as it stood
// before this cycle's PPU/timer update, not after.
func (e *Emulator) Step() (instructionRetired bool) {
	e.bus.StepDMA()
	instructionRetired = e.cpu.Step(e.bus)
	e.bus.StepPeripherals()
	e.frameMCycles++
	if e.frameMCycles >= mCyclesPerFrame {
		e.frameMCycles = 0
	}
	return instructionRetired
}

// StepInstruction steps until the in-flight CPU instruction (or interrupt
// dispatch) retires.
func (e *Emulator) StepInstruction() {
	for !e.Step() {
	}
}

// StepFrame runs exactly one frame's worth of M-cycles (17,556).
func (e *Emulator) StepFrame() {
	for i := 0; i < mCyclesPerFrame; i++ {
		e.Step()
	}
}

// Framebuffer exposes the PPU's 160x144 2-bit-shade grid directly.
func (e *Emulator) Framebuffer() *[ppu.ScreenH][ppu.ScreenW]byte { return e.bus.PPU().Framebuffer() }

// KeyEvent forwards a button press/release to the joypad.
func (e *Emulator) KeyEvent(btn joypad.Button, pressed bool) { e.bus.Joypad().KeyEvent(btn, pressed) }

// SaveState snapshots bus RAM and cartridge battery RAM; CPU register
// state is included so a save can resume mid-instruction-boundary.
type SaveState struct {
	CPUState  cpuState
	BusState  []byte
	CartState []byte
}

type cpuState struct {
	A, F, B, C, D, E, H, L byte
	SP, PC                 uint16
	IME                    bool
}

func (e *Emulator) Save() (*SaveState, error) {
	busBytes, err := e.bus.SaveState()
	if err != nil {
		return nil, err
	}
	return &SaveState{
		CPUState: cpuState{
			A: e.cpu.A, F: e.cpu.F, B: e.cpu.B, C: e.cpu.C,
			D: e.cpu.D, E: e.cpu.E, H: e.cpu.H, L: e.cpu.L,
			SP: e.cpu.SP, PC: e.cpu.PC, IME: e.cpu.IME,
		},
		BusState:  busBytes,
		CartState: e.bus.Cartridge().SaveState(),
	}, nil
}

func (e *Emulator) Load(s *SaveState) error {
	if err := e.bus.LoadState(s.BusState); err != nil {
		return err
	}
	e.bus.Cartridge().LoadState(s.CartState)
	e.cpu.A, e.cpu.F = s.CPUState.A, s.CPUState.F
	e.cpu.B, e.cpu.C = s.CPUState.B, s.CPUState.C
	e.cpu.D, e.cpu.E = s.CPUState.D, s.CPUState.E
	e.cpu.H, e.cpu.L = s.CPUState.H, s.CPUState.L
	e.cpu.SP, e.cpu.PC = s.CPUState.SP, s.CPUState.PC
	e.cpu.IME = s.CPUState.IME
	return nil
}
