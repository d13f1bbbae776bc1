package cpu

import (
	"github.com/hoppla20/gbemu-go/internal/bits"
	"github.com/hoppla20/gbemu-go/internal/bus"
)

// decodeCB builds the queue for a CB-prefixed opcode. cb is the second
// byte already read by the caller (read eagerly, the same convention used
// for every other operand byte in decode.go); as there, the queue is
// padded for that byte's cycle, so it holds one cycle fewer than the
// instruction's total.
func decodeCB(c *CPU, b *bus.Bus, cb byte) []microStep {
	x := cb >> 6
	y := (cb >> 3) & 7
	z := cb & 7

	switch x {
	case 0:
		if z == 6 {
			return fill(3, func(c *CPU, b *bus.Bus) {
				v := b.Read(c.HL())
				res, cy := applyShift(y, v, c.Cy())
				b.Write(c.HL(), res)
				c.setFlag(flagZ, res == 0)
				c.setFlag(flagN, false)
				c.setFlag(flagH, false)
				c.setFlag(flagC, cy != 0)
			})
		}
		v := c.getReg(b, z)
		res, cy := applyShift(y, v, c.Cy())
		c.setReg(b, z, res)
		c.setFlag(flagZ, res == 0)
		c.setFlag(flagN, false)
		c.setFlag(flagH, false)
		c.setFlag(flagC, cy != 0)
		return fill(1, noop)
	case 1:
		if z == 6 {
			return fill(2, func(c *CPU, b *bus.Bus) {
				v := b.Read(c.HL())
				c.setFlag(flagZ, !bits.Bit(v, uint(y)))
				c.setFlag(flagN, false)
				c.setFlag(flagH, true)
			})
		}
		v := c.getReg(b, z)
		c.setFlag(flagZ, !bits.Bit(v, uint(y)))
		c.setFlag(flagN, false)
		c.setFlag(flagH, true)
		return fill(1, noop)
	case 2:
		if z == 6 {
			return fill(3, func(c *CPU, b *bus.Bus) {
				v := b.Read(c.HL())
				b.Write(c.HL(), bits.Set(v, uint(y), false))
			})
		}
		c.setReg(b, z, bits.Set(c.getReg(b, z), uint(y), false))
		return fill(1, noop)
	default:
		if z == 6 {
			return fill(3, func(c *CPU, b *bus.Bus) {
				v := b.Read(c.HL())
				b.Write(c.HL(), bits.Set(v, uint(y), true))
			})
		}
		c.setReg(b, z, bits.Set(c.getReg(b, z), uint(y), true))
		return fill(1, noop)
	}
}

// applyShift dispatches CB's eight rotate/shift operations (sub-opcode y)
// over an 8-bit value, returning the new value and the carry-out bit.
func applyShift(y byte, v byte, carryIn bool) (res, cy byte) {
	switch y {
	case 0:
		return rlc(v)
	case 1:
		return rrc(v)
	case 2:
		return rl(v, carryIn)
	case 3:
		return rr(v, carryIn)
	case 4:
		return sla(v)
	case 5:
		return sra(v)
	case 6:
		return swap(v), 0
	default:
		return srl(v)
	}
}
