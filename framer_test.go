package modbus

import (
	"bytes"
	"testing"
)

func TestRTUFramerBuildExtract(t *testing.T) {
	framer, err := NewFramer(FramingRTU, RoleResponse)
	if err != nil {
		t.Fatalf("NewFramer: %v", err)
	}
	pduBytes := []byte{byte(FuncCodeReadHoldingRegisters), 0x02, 0x00, 0x0A, 0x00, 0x14}
	adu, err := framer.Build(pduBytes, 0x11, 0)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	framer.Feed(adu)
	res := framer.TryExtract()
	if res.Status != ExtractFrame {
		t.Fatalf("TryExtract status = %v, want ExtractFrame", res.Status)
	}
	if res.UnitID != 0x11 {
		t.Fatalf("UnitID = %#02x, want 0x11", res.UnitID)
	}
	if !bytes.Equal(res.PDUBytes, pduBytes) {
		t.Fatalf("PDUBytes = %v, want %v", res.PDUBytes, pduBytes)
	}
}

func TestRTUFramerFeedsPartialFrame(t *testing.T) {
	framer, _ := NewFramer(FramingRTU, RoleResponse)
	pduBytes := []byte{byte(FuncCodeReadHoldingRegisters), 0x02, 0x00, 0x0A, 0x00, 0x14}
	adu, _ := framer.Build(pduBytes, 0x11, 0)

	framer.Feed(adu[:len(adu)-1])
	if res := framer.TryExtract(); res.Status != ExtractIncomplete {
		t.Fatalf("TryExtract on partial frame = %v, want ExtractIncomplete", res.Status)
	}

	framer.Feed(adu[len(adu)-1:])
	if res := framer.TryExtract(); res.Status != ExtractFrame {
		t.Fatalf("TryExtract after completing frame = %v, want ExtractFrame", res.Status)
	}
}

func TestRTUFramerDiscardsCorruptCRC(t *testing.T) {
	framer, _ := NewFramer(FramingRTU, RoleResponse)
	pduBytes := []byte{byte(FuncCodeReadHoldingRegisters), 0x02, 0x00, 0x0A, 0x00, 0x14}
	adu, _ := framer.Build(pduBytes, 0x11, 0)
	adu[len(adu)-1] ^= 0xFF

	framer.Feed(adu)
	res := framer.TryExtract()
	if res.Status != ExtractCorrupt {
		t.Fatalf("TryExtract on corrupted CRC = %v, want ExtractCorrupt", res.Status)
	}
	if res.BytesDiscarded != 1 {
		t.Fatalf("BytesDiscarded = %d, want 1", res.BytesDiscarded)
	}
}

func TestSocketFramerBuildExtract(t *testing.T) {
	framer, err := NewFramer(FramingSocket, RoleResponse)
	if err != nil {
		t.Fatalf("NewFramer: %v", err)
	}
	pduBytes := []byte{byte(FuncCodeReadHoldingRegisters), 0x02, 0x00, 0x0A, 0x00, 0x14}
	adu, err := framer.Build(pduBytes, 0x11, 0x1234)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	framer.Feed(adu)
	res := framer.TryExtract()
	if res.Status != ExtractFrame {
		t.Fatalf("TryExtract status = %v, want ExtractFrame", res.Status)
	}
	if res.TID != 0x1234 {
		t.Fatalf("TID = %#04x, want 0x1234", res.TID)
	}
	if res.UnitID != 0x11 {
		t.Fatalf("UnitID = %#02x, want 0x11", res.UnitID)
	}
	if !bytes.Equal(res.PDUBytes, pduBytes) {
		t.Fatalf("PDUBytes = %v, want %v", res.PDUBytes, pduBytes)
	}
}

func TestSocketFramerMultipleFramesInOneFeed(t *testing.T) {
	framer, _ := NewFramer(FramingSocket, RoleResponse)
	pduBytes := []byte{byte(FuncCodeReadHoldingRegisters), 0x02, 0x00, 0x0A}
	a, _ := framer.Build(pduBytes, 1, 1)
	b, _ := framer.Build(pduBytes, 1, 2)

	framer.Feed(append(append([]byte{}, a...), b...))

	first := framer.TryExtract()
	if first.Status != ExtractFrame || first.TID != 1 {
		t.Fatalf("first frame = %+v", first)
	}
	second := framer.TryExtract()
	if second.Status != ExtractFrame || second.TID != 2 {
		t.Fatalf("second frame = %+v", second)
	}
	if third := framer.TryExtract(); third.Status != ExtractIncomplete {
		t.Fatalf("third TryExtract = %v, want ExtractIncomplete", third.Status)
	}
}

func TestASCIIFramerBuildExtract(t *testing.T) {
	framer, err := NewFramer(FramingASCII, RoleResponse)
	if err != nil {
		t.Fatalf("NewFramer: %v", err)
	}
	pduBytes := []byte{byte(FuncCodeReadHoldingRegisters), 0x02, 0x00, 0x0A, 0x00, 0x14}
	adu, err := framer.Build(pduBytes, 0x11, 0)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	framer.Feed(adu)
	res := framer.TryExtract()
	if res.Status != ExtractFrame {
		t.Fatalf("TryExtract status = %v, want ExtractFrame", res.Status)
	}
	if res.UnitID != 0x11 {
		t.Fatalf("UnitID = %#02x, want 0x11", res.UnitID)
	}
	if !bytes.Equal(res.PDUBytes, pduBytes) {
		t.Fatalf("PDUBytes = %v, want %v", res.PDUBytes, pduBytes)
	}
}
