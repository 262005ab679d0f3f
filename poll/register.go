// Package poll is the application-level convenience layer this codec
// supports on top of the wire protocol: named device registers, grouped
// reads that coalesce adjacent addresses, and a ticking poller that turns
// them into a stream of decoded values.
package poll

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/graintech/modbus"
)

// DeviceRegister names one polled value: which unit, which function code,
// which address range, and how to decode the bytes that come back.
type DeviceRegister struct {
	Tag       string
	Alias     string
	UnitID    uint8
	Function  modbus.FunctionCode
	Address   uint16
	Quantity  uint16
	DataType  string
	WordOrder modbus.WordOrder
	BitMask   uint16
	Weight    float64

	// Value and Status are populated by a read; Value holds the raw
	// register/bit bytes for this register's slice of a grouped read.
	Value  []byte
	Status string
}

// DecodedValue holds every interpretation of a register's raw bytes a
// caller might want.
type DecodedValue struct {
	Raw     []byte
	Float64 float64
	AsType  any
}

func (dv DecodedValue) String() string {
	return fmt.Sprintf("raw=%v float64=%v asType=%v", dv.Raw, dv.Float64, dv.AsType)
}

// Decode interprets r.Value as r.DataType, applying WordOrder and Weight.
func (r DeviceRegister) Decode() (DecodedValue, error) {
	bytes := reorderWords(r.Value, r.WordOrder)
	res := DecodedValue{Raw: bytes}

	switch r.DataType {
	case "bool":
		if len(bytes) < 2 {
			return res, fmt.Errorf("modbus/poll: register %s: need 2 bytes for bool, got %d", r.Tag, len(bytes))
		}
		v := binary.BigEndian.Uint16(bytes[:2])
		set := v&r.BitMask != 0
		res.AsType = set
		if set {
			res.Float64 = 1
		}
	case "uint8":
		if len(bytes) < 1 {
			return res, fmt.Errorf("modbus/poll: register %s: empty value", r.Tag)
		}
		v := bytes[0]
		res.AsType, res.Float64 = v, float64(v)*r.Weight
	case "int8":
		if len(bytes) < 1 {
			return res, fmt.Errorf("modbus/poll: register %s: empty value", r.Tag)
		}
		v := int8(bytes[0])
		res.AsType, res.Float64 = v, float64(v)*r.Weight
	case "uint16":
		v := binary.BigEndian.Uint16(bytes[:2])
		res.AsType, res.Float64 = v, float64(v)*r.Weight
	case "int16":
		v := int16(binary.BigEndian.Uint16(bytes[:2]))
		res.AsType, res.Float64 = v, float64(v)*r.Weight
	case "uint32":
		v := binary.BigEndian.Uint32(bytes[:4])
		res.AsType, res.Float64 = v, float64(v)*r.Weight
	case "int32":
		v := int32(binary.BigEndian.Uint32(bytes[:4]))
		res.AsType, res.Float64 = v, float64(v)*r.Weight
	case "float32":
		v := math.Float32frombits(binary.BigEndian.Uint32(bytes[:4]))
		res.AsType, res.Float64 = v, float64(v)*r.Weight
	case "float64":
		v := math.Float64frombits(binary.BigEndian.Uint64(bytes[:8]))
		res.AsType, res.Float64 = v, v*r.Weight
	default:
		return res, fmt.Errorf("modbus/poll: register %s: unsupported data type %q", r.Tag, r.DataType)
	}
	return res, nil
}

// reorderWords applies a WordOrder to raw wire bytes, undoing whatever
// word/byte swap the device used, so Decode can always read big-endian.
func reorderWords(data []byte, order modbus.WordOrder) []byte {
	regs := make([]uint16, len(data)/2)
	for i := range regs {
		regs[i] = binary.BigEndian.Uint16(data[2*i:])
	}
	out := make([]byte, len(regs)*2)
	switch order {
	case modbus.BigEndian:
		for i, r := range regs {
			binary.BigEndian.PutUint16(out[2*i:], r)
		}
	case modbus.LittleEndian:
		for i, r := range regs {
			j := len(regs) - 1 - i
			binary.LittleEndian.PutUint16(out[2*j:], r)
		}
	case modbus.MixedBigEndian:
		for i, r := range regs {
			binary.LittleEndian.PutUint16(out[2*i:], r)
		}
	case modbus.MixedLittleEndian:
		for i, r := range regs {
			j := len(regs) - 1 - i
			binary.BigEndian.PutUint16(out[2*j:], r)
		}
	}
	return out
}
