// Package cart implements the cartridge memory-bank-controller abstraction:
// a common Read/Write interface plus a header-driven factory choosing
// between the no-bank controller and the bank-switched MBC families.
package cart

import "fmt"

// Cartridge is the minimal interface the bus needs for ROM/RAM banking.
// Addresses are CPU addresses (0x0000-0x7FFF for ROM/control, 0xA000-0xBFFF
// for external RAM).
type Cartridge interface {
	Read(addr uint16) byte
	Write(addr uint16, value byte)

	SaveState() []byte
	LoadState(data []byte)
}

// BadMbcBuffer is returned by New when the header describes an unsupported
// or malformed configuration. It is a constructor-time error only; step()
// never returns it.
type BadMbcBuffer struct {
	Reason string
}

func (e *BadMbcBuffer) Error() string { return "cart: bad MBC buffer: " + e.Reason }

// New parses the cartridge header and instantiates the matching controller.
func New(rom []byte) (Cartridge, *Header, error) {
	h, err := ParseHeader(rom)
	if err != nil {
		return nil, nil, &BadMbcBuffer{Reason: err.Error()}
	}
	switch h.CartType {
	case 0x00:
		return NewMbc0(rom), h, nil
	case 0x01, 0x02, 0x03:
		return NewMbc1(rom, h.RAMSizeBytes), h, nil
	case 0x05, 0x06:
		return NewMbc2(rom), h, nil
	default:
		return nil, nil, &BadMbcBuffer{Reason: fmt.Sprintf("unsupported cartridge type 0x%02X", h.CartType)}
	}
}
