package cpu

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hoppla20/gbemu-go/internal/bus"
	"github.com/hoppla20/gbemu-go/internal/cart"
)

func newCPUWithROM(code []byte) (*CPU, *bus.Bus) {
	rom := make([]byte, 0x8000)
	copy(rom, code)
	b := bus.New(cart.NewMbc0(rom))
	c := New()
	return c, b
}

// runInstruction steps the CPU until exactly one instruction (or
// interrupt dispatch) retires, returning the number of M-cycles spent.
func runInstruction(c *CPU, b *bus.Bus) int {
	cycles := 0
	for {
		cycles++
		if c.Step(b) {
			return cycles
		}
	}
}

func TestNopAndPC(t *testing.T) {
	c, b := newCPUWithROM([]byte{0x00})
	require.Equal(t, 1, runInstruction(c, b))
	require.EqualValues(t, 1, c.PC)
}

func TestLdAd8AndXorA(t *testing.T) {
	c, b := newCPUWithROM([]byte{0x3E, 0x12, 0xAF}) // LD A,0x12; XOR A
	runInstruction(c, b)
	require.EqualValues(t, 0x12, c.A)

	runInstruction(c, b)
	require.EqualValues(t, 0x00, c.A)
	require.True(t, c.Z(), "Z flag not set after XOR A")
	require.Zero(t, c.F&0x0F, "low nibble of F must always read zero")
}

func TestLdA16AAndBack(t *testing.T) {
	prog := []byte{
		0x3E, 0x77, // LD A,0x77
		0xEA, 0x00, 0xC0, // LD (0xC000),A
		0x3E, 0x00, // LD A,0x00
		0xFA, 0x00, 0xC0, // LD A,(0xC000)
	}
	c, b := newCPUWithROM(prog)
	runInstruction(c, b)
	runInstruction(c, b)
	require.EqualValues(t, 0x77, b.Read(0xC000))

	runInstruction(c, b)
	runInstruction(c, b)
	require.EqualValues(t, 0x77, c.A)
}

func TestJPThenJR(t *testing.T) {
	rom := make([]byte, 0x8000)
	rom[0x0000] = 0xC3 // JP 0x0010
	rom[0x0001] = 0x10
	rom[0x0002] = 0x00
	rom[0x0010] = 0x18 // JR -2 (infinite self-loop)
	rom[0x0011] = 0xFE
	b := bus.New(cart.NewMbc0(rom))
	c := New()

	cycles := runInstruction(c, b)
	require.Equal(t, 4, cycles)
	require.EqualValues(t, 0x0010, c.PC)

	pcBefore := c.PC
	cycles = runInstruction(c, b)
	require.Equal(t, 3, cycles)
	require.Equal(t, pcBefore, c.PC)
}

func TestIncBFlags(t *testing.T) {
	c, b := newCPUWithROM([]byte{0x04, 0x04}) // INC B twice
	c.B = 0x0F
	c.F = 0x10 // carry set initially
	runInstruction(c, b)
	require.EqualValues(t, 0x10, c.B)
	require.True(t, c.Hc(), "INC B should set H flag")
	require.True(t, c.Cy(), "INC B should preserve C flag")

	c.B = 0xFF
	runInstruction(c, b)
	require.EqualValues(t, 0x00, c.B)
	require.True(t, c.Z(), "INC B to 0 should set Z flag")
}

func TestCallAndRet(t *testing.T) {
	rom := make([]byte, 0x8000)
	rom[0x0000] = 0xCD // CALL 0x0005
	rom[0x0001] = 0x05
	rom[0x0002] = 0x00
	rom[0x0005] = 0xC9 // RET
	b := bus.New(cart.NewMbc0(rom))
	c := New()
	c.SP = 0xFFFE

	cycles := runInstruction(c, b)
	require.EqualValues(t, 0x0005, c.PC)
	require.Equal(t, 6, cycles)

	cycles = runInstruction(c, b)
	require.EqualValues(t, 0x0003, c.PC, "RET did not return to 0003")
	require.Equal(t, 4, cycles)
}

func TestHaltWakesOnPendingInterrupt(t *testing.T) {
	c, b := newCPUWithROM([]byte{0x76}) // HALT
	c.IME = false
	runInstruction(c, b)
	require.True(t, c.Halted())

	// Wake condition is IE&IF!=0 regardless of IME.
	b.IRQ().WriteIE(0x01)
	b.IRQ().WriteIF(0x01)
	c.Step(b)
	require.False(t, c.Halted(), "expected CPU to wake once an enabled interrupt is pending")
}

func TestHaltDoesNotRetireWhileWaiting(t *testing.T) {
	c, b := newCPUWithROM([]byte{0x76}) // HALT
	c.IME = false
	runInstruction(c, b) // HALT itself retires
	require.True(t, c.Halted())

	// No interrupt pending yet: every idle M-cycle must report
	// completed=false, never a spuriously retired instruction.
	for i := 0; i < 5; i++ {
		require.False(t, c.Step(b), "HALT should not report a retired instruction while waiting")
		require.True(t, c.Halted())
	}

	b.IRQ().WriteIE(0x01)
	b.IRQ().WriteIF(0x01)
	require.True(t, c.Step(b), "waking HALT and decoding the next instruction should retire it")
	require.False(t, c.Halted())
}

func TestEIDelaysOneInstruction(t *testing.T) {
	// EI; NOP; NOP -- interrupt should not be serviced until after the
	// NOP immediately following EI has itself retired.
	c, b := newCPUWithROM([]byte{0xFB, 0x00, 0x00})
	b.IRQ().WriteIE(0x01)
	b.IRQ().WriteIF(0x01)

	runInstruction(c, b) // EI
	require.False(t, c.IME, "IME should not be active immediately after EI")

	runInstruction(c, b) // NOP after EI: still not serviced mid-instruction
	if c.PC != 0x0040 {
		// either still at 0x0002 (about to dispatch) or already inside
		// the vector; both are acceptable depending on exact boundary,
		// but PC must not have silently skipped the ISR.
		require.EqualValues(t, 0x0002, c.PC, "unexpected PC after EI+NOP")
	}
}

func TestCBBitAndSetRes(t *testing.T) {
	// LD B,0x00; CB 0x40 (BIT 0,B); CB 0xC0 (SET 0,B); CB 0x80 (RES 0,B)
	c, b := newCPUWithROM([]byte{0x06, 0x00, 0xCB, 0x40, 0xCB, 0xC0, 0xCB, 0x80})
	runInstruction(c, b) // LD B,0
	runInstruction(c, b) // BIT 0,B
	require.True(t, c.Z(), "BIT 0,B on 0 should set Z")

	runInstruction(c, b) // SET 0,B
	require.EqualValues(t, 0x01, c.B)

	runInstruction(c, b) // RES 0,B
	require.EqualValues(t, 0x00, c.B)
}

func TestPushPopRoundTrip(t *testing.T) {
	c, b := newCPUWithROM([]byte{0xC5, 0xD1}) // PUSH BC; POP DE
	c.SP = 0xFFFE
	c.SetBC(0xBEEF)
	runInstruction(c, b)
	runInstruction(c, b)
	require.EqualValues(t, 0xBEEF, c.DE())
	require.EqualValues(t, 0xFFFE, c.SP)
}
