package poll

import (
	"testing"

	"github.com/graintech/modbus"
)

func TestDecodeUint16(t *testing.T) {
	r := DeviceRegister{Tag: "t1", DataType: "uint16", WordOrder: modbus.BigEndian, Weight: 1, Value: []byte{0x01, 0x2C}}
	dv, err := r.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if dv.Float64 != 300 {
		t.Fatalf("Float64 = %v, want 300", dv.Float64)
	}
	if dv.AsType.(uint16) != 300 {
		t.Fatalf("AsType = %v, want uint16(300)", dv.AsType)
	}
}

func TestDecodeInt16Negative(t *testing.T) {
	r := DeviceRegister{Tag: "t2", DataType: "int16", WordOrder: modbus.BigEndian, Weight: 1, Value: []byte{0xFF, 0xFF}}
	dv, err := r.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if dv.AsType.(int16) != -1 {
		t.Fatalf("AsType = %v, want int16(-1)", dv.AsType)
	}
}

func TestDecodeWeightScaling(t *testing.T) {
	r := DeviceRegister{Tag: "t3", DataType: "uint16", WordOrder: modbus.BigEndian, Weight: 0.1, Value: []byte{0x00, 0x64}}
	dv, err := r.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if dv.Float64 != 10 {
		t.Fatalf("Float64 = %v, want 10 (100 * 0.1)", dv.Float64)
	}
}

func TestDecodeBoolBitMask(t *testing.T) {
	r := DeviceRegister{Tag: "t4", DataType: "bool", WordOrder: modbus.BigEndian, BitMask: 0x02, Value: []byte{0x00, 0x02}}
	dv, err := r.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if dv.AsType.(bool) != true {
		t.Fatalf("AsType = %v, want true", dv.AsType)
	}
}

func TestDecodeFloat32BigEndian(t *testing.T) {
	// 1.5f as IEEE-754 big endian: 0x3FC00000
	r := DeviceRegister{Tag: "t5", DataType: "float32", WordOrder: modbus.BigEndian, Weight: 1, Value: []byte{0x3F, 0xC0, 0x00, 0x00}}
	dv, err := r.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if dv.AsType.(float32) != 1.5 {
		t.Fatalf("AsType = %v, want float32(1.5)", dv.AsType)
	}
}

func TestDecodeFloat32LittleEndianWordOrder(t *testing.T) {
	// 1.5f on the wire fully byte-reversed ("DCBA"): LittleEndian undoes
	// both the word swap and the in-word byte swap to recover 0x3FC00000.
	r := DeviceRegister{Tag: "t6", DataType: "float32", WordOrder: modbus.LittleEndian, Weight: 1, Value: []byte{0x00, 0x00, 0xC0, 0x3F}}
	dv, err := r.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if dv.AsType.(float32) != 1.5 {
		t.Fatalf("AsType = %v, want float32(1.5)", dv.AsType)
	}
}

func TestDecodeFloat32MixedWordOrders(t *testing.T) {
	// 1.5f canonical bytes: 0x3F 0xC0 0x00 0x00.
	cases := []struct {
		name  string
		order modbus.WordOrder
		wire  []byte
	}{
		{"BADC", modbus.MixedBigEndian, []byte{0xC0, 0x3F, 0x00, 0x00}},
		{"CDAB", modbus.MixedLittleEndian, []byte{0x00, 0x00, 0x3F, 0xC0}},
	}
	for _, c := range cases {
		r := DeviceRegister{Tag: c.name, DataType: "float32", WordOrder: c.order, Weight: 1, Value: c.wire}
		dv, err := r.Decode()
		if err != nil {
			t.Fatalf("%s: Decode: %v", c.name, err)
		}
		if dv.AsType.(float32) != 1.5 {
			t.Fatalf("%s: AsType = %v, want float32(1.5)", c.name, dv.AsType)
		}
	}
}

func TestDecodeUnsupportedDataType(t *testing.T) {
	r := DeviceRegister{Tag: "t7", DataType: "nonsense", Value: []byte{0x00, 0x01}}
	if _, err := r.Decode(); err == nil {
		t.Fatalf("expected an error for an unsupported data type")
	}
}
