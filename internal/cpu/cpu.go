package cpu

import (
	"github.com/hoppla20/gbemu-go/internal/bus"
	"github.com/hoppla20/gbemu-go/internal/irq"
)

// microStep is one queued machine cycle's worth of work. The queue for an
// instruction holds exactly (total M-cycles - 1) of these: the opcode
// fetch itself is the M-cycle spent building the queue, so by the time a
// microStep runs, its own cycle has already been "spent" by the Step call
// that executes it.
type microStep func(c *CPU, b *bus.Bus)

// CPU is the SM83 core. Execution is entirely M-cycle stepped: one call
// to Step retires exactly one machine cycle, either fetching and
// decoding the next instruction (or installing an interrupt dispatch) or
// running the next queued microStep of the instruction already in
// flight.
type CPU struct {
	Registers

	IME      bool
	eiArmed  bool
	halted   bool
	stopped  bool

	queue []microStep
}

// New returns a CPU with SP/PC zeroed; callers that skip the boot ROM
// should call ResetPostBoot.
func New() *CPU {
	return &CPU{}
}

// ResetPostBoot sets the register file to the documented DMG post-boot
// values, for runs that start execution at 0x0100 without a boot ROM.
func (c *CPU) ResetPostBoot() {
	c.A, c.F = 0x01, 0xB0
	c.B, c.C = 0x00, 0x13
	c.D, c.E = 0x00, 0xD8
	c.H, c.L = 0x01, 0x4D
	c.SP = 0xFFFE
	c.PC = 0x0100
	c.IME = false
	c.halted = false
	c.eiArmed = false
}

// Halted reports whether the core is currently in HALT.
func (c *CPU) Halted() bool { return c.halted }

// Step advances the CPU by exactly one machine cycle and reports whether
// an instruction (or interrupt dispatch) retired on this call.
func (c *CPU) Step(b *bus.Bus) (completed bool) {
	if len(c.queue) == 0 {
		if !c.beginNext(b) {
			return false
		}
		return len(c.queue) == 0
	}
	step := c.queue[0]
	c.queue = c.queue[1:]
	step(c, b)
	return len(c.queue) == 0
}

// beginNext starts whatever happens on the next M-cycle: servicing a
// pending interrupt, decoding a new instruction, or simply staying
// HALTed. It reports whether it actually started something this cycle;
// a HALT that checked for a wake condition and stayed asleep returns
// false so Step does not report a spuriously retired instruction.
func (c *CPU) beginNext(b *bus.Bus) bool {
	if c.halted {
		if b.IRQ().Pending() {
			c.halted = false
		} else {
			return false
		}
	}

	if c.IME {
		if src, ok := b.IRQ().Next(); ok {
			c.beginInterrupt(b, src)
			return true
		}
	}

	// Snapshot before decoding: EI arms c.eiArmed as a side effect of its
	// own decode, and that arming must not take effect until the
	// instruction after the one being decoded right now.
	applyEI := c.eiArmed

	opcode := b.Read(c.PC)
	c.PC++
	c.queue = decodeBase(c, b, opcode)

	if applyEI {
		c.IME = true
		c.eiArmed = false
	}
	return true
}

// beginInterrupt queues the 5 M-cycle interrupt-acknowledge sequence: two
// internal delay cycles, push PC high, push PC low, then jump to the
// vector. IF is cleared and IME disabled up front, matching the point at
// which real hardware commits to servicing this source.
func (c *CPU) beginInterrupt(b *bus.Bus, src irq.Source) {
	c.IME = false
	b.IRQ().Acknowledge(src)
	vector := src.Vector()

	c.queue = []microStep{
		func(c *CPU, b *bus.Bus) {},
		func(c *CPU, b *bus.Bus) {
			c.SP--
			b.Write(c.SP, byte(c.PC>>8))
		},
		func(c *CPU, b *bus.Bus) {
			c.SP--
			b.Write(c.SP, byte(c.PC))
		},
		func(c *CPU, b *bus.Bus) {
			c.PC = vector
		},
	}
}
