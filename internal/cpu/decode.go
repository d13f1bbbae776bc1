package cpu

import "github.com/hoppla20/gbemu-go/internal/bus"

// getReg and setReg map the z80-style 3-bit register field to a register.
// Index 6 is "(HL)", routed through the bus instead of a register.
func (c *CPU) getReg(b *bus.Bus, idx byte) byte {
	switch idx {
	case 0:
		return c.B
	case 1:
		return c.C
	case 2:
		return c.D
	case 3:
		return c.E
	case 4:
		return c.H
	case 5:
		return c.L
	case 6:
		return b.Read(c.HL())
	default:
		return c.A
	}
}

func (c *CPU) setReg(b *bus.Bus, idx byte, v byte) {
	switch idx {
	case 0:
		c.B = v
	case 1:
		c.C = v
	case 2:
		c.D = v
	case 3:
		c.E = v
	case 4:
		c.H = v
	case 5:
		c.L = v
	case 6:
		b.Write(c.HL(), v)
	default:
		c.A = v
	}
}

func (c *CPU) getRP(p byte) uint16 {
	switch p {
	case 0:
		return c.BC()
	case 1:
		return c.DE()
	case 2:
		return c.HL()
	default:
		return c.SP
	}
}

func (c *CPU) setRP(p byte, v uint16) {
	switch p {
	case 0:
		c.SetBC(v)
	case 1:
		c.SetDE(v)
	case 2:
		c.SetHL(v)
	default:
		c.SP = v
	}
}

func (c *CPU) getRP2(p byte) uint16 {
	if p == 3 {
		return c.AF()
	}
	return c.getRP(p)
}

func (c *CPU) setRP2(p byte, v uint16) {
	if p == 3 {
		c.SetAF(v)
		return
	}
	c.setRP(p, v)
}

func (c *CPU) checkCond(cc byte) bool {
	switch cc {
	case 0:
		return !c.Z()
	case 1:
		return c.Z()
	case 2:
		return !c.Cy()
	default:
		return c.Cy()
	}
}

func fill(total int, commit microStep) []microStep {
	if total <= 0 {
		if commit != nil {
			return []microStep{commit}
		}
		return nil
	}
	q := make([]microStep, total)
	for i := 0; i < total-1; i++ {
		q[i] = func(c *CPU, b *bus.Bus) {}
	}
	q[total-1] = commit
	return q
}

func noop(c *CPU, b *bus.Bus) {}

// decodeBase reads any immediate operand bytes the opcode needs (via b,
// advancing PC) and returns the queue of remaining microSteps — the
// opcode fetch itself was already spent by the Step call that got here.
func decodeBase(c *CPU, b *bus.Bus, op byte) []microStep {
	x := op >> 6
	y := (op >> 3) & 7
	z := op & 7
	p := y >> 1
	q := y & 1

	switch x {
	case 0:
		return decodeX0(c, b, y, z, p, q)
	case 1:
		if y == 6 && z == 6 {
			c.halted = true
			return nil
		}
		if y == 6 {
			return fill(1, func(c *CPU, b *bus.Bus) { b.Write(c.HL(), c.getReg(b, z)) })
		}
		if z == 6 {
			return fill(1, func(c *CPU, b *bus.Bus) { c.setReg(b, y, c.getReg(b, 6)) })
		}
		c.setReg(b, y, c.getReg(b, z))
		return nil
	case 2:
		if z == 6 {
			return fill(1, func(c *CPU, b *bus.Bus) { c.applyALU(y, b.Read(c.HL())) })
		}
		c.applyALU(y, c.getReg(b, z))
		return nil
	default:
		return decodeX3(c, b, y, z, p, q)
	}
}

func decodeX0(c *CPU, b *bus.Bus, y, z, p, q byte) []microStep {
	switch z {
	case 0:
		switch {
		case y == 0:
			return nil // NOP
		case y == 1:
			lo := b.Read(c.PC)
			c.PC++
			hi := b.Read(c.PC)
			c.PC++
			addr := uint16(hi)<<8 | uint16(lo)
			return fill(4, func(c *CPU, b *bus.Bus) {
				b.Write(addr, byte(c.SP))
				b.Write(addr+1, byte(c.SP>>8))
			})
		case y == 2:
			c.stopped = true
			b.Read(c.PC)
			c.PC++
			return nil
		case y == 3:
			off := int8(b.Read(c.PC))
			c.PC++
			target := uint16(int32(c.PC) + int32(off))
			return fill(2, func(c *CPU, b *bus.Bus) { c.PC = target })
		default:
			off := int8(b.Read(c.PC))
			c.PC++
			target := uint16(int32(c.PC) + int32(off))
			if c.checkCond(y - 4) {
				return fill(2, func(c *CPU, b *bus.Bus) { c.PC = target })
			}
			return fill(1, noop)
		}
	case 1:
		if q == 0 {
			lo := b.Read(c.PC)
			c.PC++
			hi := b.Read(c.PC)
			c.PC++
			v := uint16(hi)<<8 | uint16(lo)
			return fill(2, func(c *CPU, b *bus.Bus) { c.setRP(p, v) })
		}
		return fill(1, func(c *CPU, b *bus.Bus) {
			res, h, cy := addHL16(c.HL(), c.getRP(p))
			c.SetHL(res)
			c.setFlag(flagN, false)
			c.setFlag(flagH, h)
			c.setFlag(flagC, cy)
		})
	case 2:
		if q == 0 {
			addr := addrFor0x2(c, p)
			return fill(1, func(c *CPU, b *bus.Bus) { b.Write(addr, c.A) })
		}
		addr := addrFor0x2(c, p)
		return fill(1, func(c *CPU, b *bus.Bus) { c.A = b.Read(addr) })
	case 3:
		if q == 0 {
			return fill(1, func(c *CPU, b *bus.Bus) { c.setRP(p, c.getRP(p)+1) })
		}
		return fill(1, func(c *CPU, b *bus.Bus) { c.setRP(p, c.getRP(p)-1) })
	case 4:
		if y == 6 {
			return fill(2, func(c *CPU, b *bus.Bus) {
				res, z, h := inc8(b.Read(c.HL()))
				b.Write(c.HL(), res)
				c.setFlag(flagZ, z)
				c.setFlag(flagN, false)
				c.setFlag(flagH, h)
			})
		}
		res, z, h := inc8(c.getReg(b, y))
		c.setReg(b, y, res)
		c.setFlag(flagZ, z)
		c.setFlag(flagN, false)
		c.setFlag(flagH, h)
		return nil
	case 5:
		if y == 6 {
			return fill(2, func(c *CPU, b *bus.Bus) {
				res, z, h := dec8(b.Read(c.HL()))
				b.Write(c.HL(), res)
				c.setFlag(flagZ, z)
				c.setFlag(flagN, true)
				c.setFlag(flagH, h)
			})
		}
		res, z, h := dec8(c.getReg(b, y))
		c.setReg(b, y, res)
		c.setFlag(flagZ, z)
		c.setFlag(flagN, true)
		c.setFlag(flagH, h)
		return nil
	case 6:
		imm := b.Read(c.PC)
		c.PC++
		if y == 6 {
			return fill(2, func(c *CPU, b *bus.Bus) { b.Write(c.HL(), imm) })
		}
		return fill(1, func(c *CPU, b *bus.Bus) { c.setReg(b, y, imm) })
	default: // z == 7
		return decodeRotA(c, y)
	}
}

func addrFor0x2(c *CPU, p byte) uint16 {
	switch p {
	case 0:
		return c.BC()
	case 1:
		return c.DE()
	case 2:
		v := c.HL()
		c.SetHL(v + 1)
		return v
	default:
		v := c.HL()
		c.SetHL(v - 1)
		return v
	}
}

func decodeRotA(c *CPU, y byte) []microStep {
	switch y {
	case 0:
		res, cy := rlc(c.A)
		c.A = res
		c.setZNHC(false, false, false, cy != 0)
	case 1:
		res, cy := rrc(c.A)
		c.A = res
		c.setZNHC(false, false, false, cy != 0)
	case 2:
		res, cy := rl(c.A, c.Cy())
		c.A = res
		c.setZNHC(false, false, false, cy != 0)
	case 3:
		res, cy := rr(c.A, c.Cy())
		c.A = res
		c.setZNHC(false, false, false, cy != 0)
	case 4:
		res, flags := daa(c.A, c.F)
		c.A = res
		c.F = flags
	case 5:
		c.A = ^c.A
		c.setFlag(flagN, true)
		c.setFlag(flagH, true)
	case 6:
		c.setFlag(flagN, false)
		c.setFlag(flagH, false)
		c.setFlag(flagC, true)
	case 7:
		c.setFlag(flagN, false)
		c.setFlag(flagH, false)
		c.setFlag(flagC, !c.Cy())
	}
	return nil
}

func decodeX3(c *CPU, b *bus.Bus, y, z, p, q byte) []microStep {
	switch z {
	case 0:
		switch {
		case y <= 3:
			if c.checkCond(y) {
				return fill(4, func(c *CPU, b *bus.Bus) {
					lo := b.Read(c.SP)
					c.SP++
					hi := b.Read(c.SP)
					c.SP++
					c.PC = uint16(hi)<<8 | uint16(lo)
				})
			}
			return fill(1, noop)
		case y == 4:
			off := b.Read(c.PC)
			c.PC++
			addr := 0xFF00 + uint16(off)
			return fill(2, func(c *CPU, b *bus.Bus) { b.Write(addr, c.A) })
		case y == 5:
			off := int8(b.Read(c.PC))
			c.PC++
			return fill(3, func(c *CPU, b *bus.Bus) {
				res, h, cy := addSP8(c.SP, off)
				c.SP = res
				c.setZNHC(false, false, h, cy)
			})
		case y == 6:
			off := b.Read(c.PC)
			c.PC++
			addr := 0xFF00 + uint16(off)
			return fill(2, func(c *CPU, b *bus.Bus) { c.A = b.Read(addr) })
		default:
			off := int8(b.Read(c.PC))
			c.PC++
			return fill(2, func(c *CPU, b *bus.Bus) {
				res, h, cy := addSP8(c.SP, off)
				c.SetHL(res)
				c.setZNHC(false, false, h, cy)
			})
		}
	case 1:
		if q == 0 {
			return fill(2, func(c *CPU, b *bus.Bus) {
				lo := b.Read(c.SP)
				c.SP++
				hi := b.Read(c.SP)
				c.SP++
				c.setRP2(p, uint16(hi)<<8|uint16(lo))
			})
		}
		switch p {
		case 0:
			return fill(3, func(c *CPU, b *bus.Bus) {
				lo := b.Read(c.SP)
				c.SP++
				hi := b.Read(c.SP)
				c.SP++
				c.PC = uint16(hi)<<8 | uint16(lo)
			})
		case 1:
			return fill(3, func(c *CPU, b *bus.Bus) {
				lo := b.Read(c.SP)
				c.SP++
				hi := b.Read(c.SP)
				c.SP++
				c.PC = uint16(hi)<<8 | uint16(lo)
				c.eiArmed = false
				c.IME = true
			})
		case 2:
			c.PC = c.HL()
			return nil
		default:
			return fill(1, func(c *CPU, b *bus.Bus) { c.SP = c.HL() })
		}
	case 2:
		switch {
		case y <= 3:
			lo := b.Read(c.PC)
			c.PC++
			hi := b.Read(c.PC)
			c.PC++
			target := uint16(hi)<<8 | uint16(lo)
			if c.checkCond(y) {
				return fill(3, func(c *CPU, b *bus.Bus) { c.PC = target })
			}
			return fill(2, noop)
		case y == 4:
			addr := 0xFF00 + uint16(c.C)
			return fill(1, func(c *CPU, b *bus.Bus) { b.Write(addr, c.A) })
		case y == 5:
			lo := b.Read(c.PC)
			c.PC++
			hi := b.Read(c.PC)
			c.PC++
			addr := uint16(hi)<<8 | uint16(lo)
			return fill(3, func(c *CPU, b *bus.Bus) { b.Write(addr, c.A) })
		case y == 6:
			addr := 0xFF00 + uint16(c.C)
			return fill(1, func(c *CPU, b *bus.Bus) { c.A = b.Read(addr) })
		default:
			lo := b.Read(c.PC)
			c.PC++
			hi := b.Read(c.PC)
			c.PC++
			addr := uint16(hi)<<8 | uint16(lo)
			return fill(3, func(c *CPU, b *bus.Bus) { c.A = b.Read(addr) })
		}
	case 3:
		switch y {
		case 0:
			lo := b.Read(c.PC)
			c.PC++
			hi := b.Read(c.PC)
			c.PC++
			target := uint16(hi)<<8 | uint16(lo)
			return fill(3, func(c *CPU, b *bus.Bus) { c.PC = target })
		case 1:
			cb := b.Read(c.PC)
			c.PC++
			return decodeCB(c, b, cb)
		case 6:
			c.IME = false
			c.eiArmed = false
			return nil
		case 7:
			c.eiArmed = true
			return nil
		default:
			// 0xD3,0xDB,0xE3,0xEB: illegal on SM83. Enter the halted state;
			// an enabled pending interrupt wakes the core as after HALT.
			c.halted = true
			return nil
		}
	case 4:
		if y > 3 {
			c.halted = true
			return nil
		}
		lo := b.Read(c.PC)
		c.PC++
		hi := b.Read(c.PC)
		c.PC++
		target := uint16(hi)<<8 | uint16(lo)
		if c.checkCond(y) {
			return fill(5, func(c *CPU, b *bus.Bus) {
				c.SP--
				b.Write(c.SP, byte(c.PC>>8))
				c.SP--
				b.Write(c.SP, byte(c.PC))
				c.PC = target
			})
		}
		return fill(2, noop)
	case 5:
		if q == 0 {
			return fill(3, func(c *CPU, b *bus.Bus) {
				v := c.getRP2(p)
				c.SP--
				b.Write(c.SP, byte(v>>8))
				c.SP--
				b.Write(c.SP, byte(v))
			})
		}
		if p == 0 {
			lo := b.Read(c.PC)
			c.PC++
			hi := b.Read(c.PC)
			c.PC++
			target := uint16(hi)<<8 | uint16(lo)
			return fill(5, func(c *CPU, b *bus.Bus) {
				c.SP--
				b.Write(c.SP, byte(c.PC>>8))
				c.SP--
				b.Write(c.SP, byte(c.PC))
				c.PC = target
			})
		}
		// 0xDD,0xED,0xFD: illegal.
		c.halted = true
		return nil
	case 6:
		imm := b.Read(c.PC)
		c.PC++
		return fill(1, func(c *CPU, b *bus.Bus) { c.applyALU(y, imm) })
	default: // z == 7, RST
		target := uint16(y) * 8
		return fill(3, func(c *CPU, b *bus.Bus) {
			c.SP--
			b.Write(c.SP, byte(c.PC>>8))
			c.SP--
			b.Write(c.SP, byte(c.PC))
			c.PC = target
		})
	}
}
