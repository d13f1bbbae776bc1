package emu

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hoppla20/gbemu-go/internal/joypad"
)

func makeROM(program []byte) []byte {
	rom := make([]byte, 0x8000)
	copy(rom[0x0100:], program)
	rom[0x0147] = 0x00 // ROM ONLY
	rom[0x0148] = 0x00
	return rom
}

func TestNewPostBootRegisterState(t *testing.T) {
	rom := makeROM([]byte{0x00})
	e, err := New(rom, false, nil)
	require.NoError(t, err)
	c := e.CPU()
	require.EqualValues(t, 0x0100, c.PC)
	require.EqualValues(t, 0xFFFE, c.SP)
}

func TestStepInstructionRetiresOneInstructionAtATime(t *testing.T) {
	rom := makeROM([]byte{0x00, 0x00, 0x3E, 0x07}) // NOP; NOP; LD A,7
	e, err := New(rom, false, nil)
	require.NoError(t, err)

	e.StepInstruction()
	require.EqualValues(t, 0x0101, e.CPU().PC)

	e.StepInstruction()
	e.StepInstruction()
	require.EqualValues(t, 0x07, e.CPU().A)
}

func TestGraphicsDisabledNeverAdvancesPPU(t *testing.T) {
	rom := makeROM([]byte{0x00})
	e, err := New(rom, false, nil)
	require.NoError(t, err)

	e.Bus().PPU().CPUWrite(0xFF40, 0x80)
	for i := 0; i < 500; i++ {
		e.Step()
	}
	require.Zero(t, e.Bus().PPU().LY(), "PPU should never advance when graphicsEnabled is false")
}

func TestSerialSinkReceivesBytes(t *testing.T) {
	// LD A,'X'; LD (0xFF01),A; LD A,0x81; LD (0xFF02),A
	prog := []byte{
		0x3E, 'X',
		0xEA, 0x01, 0xFF,
		0x3E, 0x81,
		0xEA, 0x02, 0xFF,
	}
	rom := makeROM(prog)
	var sink strings.Builder
	e, err := New(rom, false, &sink)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		e.StepInstruction()
	}
	require.Equal(t, "X", sink.String())
}

func TestKeyEventReachesJoypad(t *testing.T) {
	rom := makeROM([]byte{0x00})
	e, err := New(rom, false, nil)
	require.NoError(t, err)

	e.KeyEvent(joypad.A, true)
	e.Bus().Joypad().WriteP1(0x10)
	require.Zero(t, e.Bus().Joypad().ReadP1()&0x01, "A press should clear bit 0 (active-low) in the joypad read")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	rom := makeROM([]byte{0x3E, 0x55}) // LD A,0x55
	e, err := New(rom, false, nil)
	require.NoError(t, err)
	e.StepInstruction()

	snap, err := e.Save()
	require.NoError(t, err)

	e2, err := New(rom, false, nil)
	require.NoError(t, err)
	require.NoError(t, e2.Load(snap))
	require.EqualValues(t, 0x55, e2.CPU().A)
	require.Equal(t, e.CPU().PC, e2.CPU().PC)
}
