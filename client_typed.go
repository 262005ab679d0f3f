package modbus

import (
	"encoding/binary"
	"math"
)

// WordOrder controls how multi-register values are reassembled into a
// wider integer or float, replacing a free-form byte-order string
// compared with == with a real enum the compiler can check.
type WordOrder int

const (
	// BigEndian: registers and the bytes within each register are both
	// most-significant-first — the wire's own byte order, unchanged.
	BigEndian WordOrder = iota
	// LittleEndian: both register order and intra-register byte order
	// reversed, the layout little-endian-native devices tend to use.
	LittleEndian
	// MixedBigEndian (a.k.a. "byte swap"): registers most-significant-first,
	// bytes within each register reversed.
	MixedBigEndian
	// MixedLittleEndian (a.k.a. "word swap"): registers least-significant-
	// first, bytes within each register in wire order.
	MixedLittleEndian
)

// toCanonicalBytes reassembles regs into a big-endian byte slice of
// len(regs)*2, undoing whichever WordOrder was used to lay it out on the
// wire, so every decode below can assume plain big-endian bytes.
func toCanonicalBytes(regs []uint16, order WordOrder) []byte {
	out := make([]byte, len(regs)*2)
	switch order {
	case BigEndian:
		for i, r := range regs {
			binary.BigEndian.PutUint16(out[2*i:], r)
		}
	case LittleEndian:
		for i, r := range regs {
			j := len(regs) - 1 - i
			binary.LittleEndian.PutUint16(out[2*j:], r)
		}
	case MixedBigEndian:
		for i, r := range regs {
			binary.LittleEndian.PutUint16(out[2*i:], r)
		}
	case MixedLittleEndian:
		for i, r := range regs {
			j := len(regs) - 1 - i
			binary.BigEndian.PutUint16(out[2*j:], r)
		}
	}
	return out
}

// ReadUint32 reads two holding registers at address and reassembles them
// into a uint32 per order.
func (c *Client) ReadUint32(address uint16, order WordOrder) (uint32, error) {
	regs, err := c.ReadHoldingRegisters(address, 2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(toCanonicalBytes(regs, order)), nil
}

// ReadUint64 reads four holding registers at address and reassembles them
// into a uint64 per order.
func (c *Client) ReadUint64(address uint16, order WordOrder) (uint64, error) {
	regs, err := c.ReadHoldingRegisters(address, 4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(toCanonicalBytes(regs, order)), nil
}

// ReadInt16 reads one holding register as a signed 16-bit value.
func (c *Client) ReadInt16(address uint16) (int16, error) {
	regs, err := c.ReadHoldingRegisters(address, 1)
	if err != nil {
		return 0, err
	}
	return int16(regs[0]), nil
}

// ReadInt32 reads two holding registers and reassembles them into an int32 per order.
func (c *Client) ReadInt32(address uint16, order WordOrder) (int32, error) {
	v, err := c.ReadUint32(address, order)
	return int32(v), err
}

// ReadInt64 reads four holding registers and reassembles them into an int64 per order.
func (c *Client) ReadInt64(address uint16, order WordOrder) (int64, error) {
	v, err := c.ReadUint64(address, order)
	return int64(v), err
}

// ReadFloat32 reads two holding registers as an IEEE-754 single-precision float.
func (c *Client) ReadFloat32(address uint16, order WordOrder) (float32, error) {
	v, err := c.ReadUint32(address, order)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// ReadFloat64 reads four holding registers as an IEEE-754 double-precision float.
func (c *Client) ReadFloat64(address uint16, order WordOrder) (float64, error) {
	v, err := c.ReadUint64(address, order)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// ReadBytes reads (length+1)/2 holding registers starting at address and
// returns the first length raw bytes in wire order.
func (c *Client) ReadBytes(address uint16, length uint16) ([]byte, error) {
	qty := (length + 1) / 2
	regs, err := c.ReadHoldingRegisters(address, qty)
	if err != nil {
		return nil, err
	}
	return packRegisters(regs)[:length], nil
}

// ReadString reads length bytes starting at address and returns them as a
// string, trimming trailing NUL padding (the common convention for
// fixed-width Modbus string fields).
func (c *Client) ReadString(address uint16, length uint16) (string, error) {
	raw, err := c.ReadBytes(address, length)
	if err != nil {
		return "", err
	}
	end := len(raw)
	for end > 0 && raw[end-1] == 0x00 {
		end--
	}
	return string(raw[:end]), nil
}

// ReadBit reads the holding register at address and reports whether bit
// (0 = least significant) is set.
func (c *Client) ReadBit(address uint16, bit uint8) (bool, error) {
	regs, err := c.ReadHoldingRegisters(address, 1)
	if err != nil {
		return false, err
	}
	if bit > 15 {
		return false, newError(KindEncode, "bit index %d out of range [0,15]", bit)
	}
	return regs[0]&(1<<bit) != 0, nil
}
