package modbus

import (
	"reflect"
	"testing"
)

func encodeDecode(t *testing.T, pdu PDU, role Role) PDU {
	t.Helper()
	wire, err := Encode(pdu)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(wire, role)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return got
}

func TestReadBitsRequestRoundTrip(t *testing.T) {
	req, err := NewReadBitsRequest(10, 5)
	if err != nil {
		t.Fatalf("NewReadBitsRequest: %v", err)
	}
	pdu := PDU{FunctionCode: FuncCodeReadCoils, Payload: req}
	got := encodeDecode(t, pdu, RoleRequest)

	body, ok := got.Payload.(ReadBitsRequest)
	if !ok {
		t.Fatalf("decoded payload is %T, want ReadBitsRequest", got.Payload)
	}
	if body != req {
		t.Fatalf("round trip mismatch: got %+v, want %+v", body, req)
	}
}

func TestReadBitsRequestQuantityOutOfRange(t *testing.T) {
	if _, err := NewReadBitsRequest(0, 0); err == nil {
		t.Fatalf("expected an error for quantity 0")
	}
	if _, err := NewReadBitsRequest(0, MaxReadBitQuantity+1); err == nil {
		t.Fatalf("expected an error for quantity above MaxReadBitQuantity")
	}
}

func TestReadBitsResponseRoundTrip(t *testing.T) {
	values := []bool{true, false, true, true, false, false, false, false, true}
	pdu := PDU{FunctionCode: FuncCodeReadCoils, Payload: ReadBitsResponse{Values: values}}
	got := encodeDecode(t, pdu, RoleResponse)

	body, ok := got.Payload.(ReadBitsResponse)
	if !ok {
		t.Fatalf("decoded payload is %T, want ReadBitsResponse", got.Payload)
	}
	if !reflect.DeepEqual(body.Values[:len(values)], values) {
		t.Fatalf("round trip mismatch: got %v, want %v", body.Values[:len(values)], values)
	}
}

func TestWriteSingleCoilRoundTrip(t *testing.T) {
	pdu := PDU{FunctionCode: FuncCodeWriteSingleCoil, Payload: WriteSingleCoilRequest{Address: 42, Value: true}}
	got := encodeDecode(t, pdu, RoleRequest)

	body, ok := got.Payload.(WriteSingleCoilRequest)
	if !ok {
		t.Fatalf("decoded payload is %T, want WriteSingleCoilRequest", got.Payload)
	}
	if body.Address != 42 || !body.Value {
		t.Fatalf("round trip mismatch: got %+v", body)
	}
}

func TestReadRegistersRoundTrip(t *testing.T) {
	req, err := NewReadRegistersRequest(100, 3)
	if err != nil {
		t.Fatalf("NewReadRegistersRequest: %v", err)
	}
	pdu := PDU{FunctionCode: FuncCodeReadHoldingRegisters, Payload: req}
	got := encodeDecode(t, pdu, RoleRequest)

	body, ok := got.Payload.(ReadRegistersRequest)
	if !ok {
		t.Fatalf("decoded payload is %T, want ReadRegistersRequest", got.Payload)
	}
	if body != req {
		t.Fatalf("round trip mismatch: got %+v, want %+v", body, req)
	}

	resp := PDU{FunctionCode: FuncCodeReadHoldingRegisters, Payload: ReadRegistersResponse{Values: []uint16{1, 2, 3}}}
	gotResp := encodeDecode(t, resp, RoleResponse)
	respBody, ok := gotResp.Payload.(ReadRegistersResponse)
	if !ok {
		t.Fatalf("decoded payload is %T, want ReadRegistersResponse", gotResp.Payload)
	}
	if !reflect.DeepEqual(respBody.Values, []uint16{1, 2, 3}) {
		t.Fatalf("round trip mismatch: got %v", respBody.Values)
	}
}

func TestDecodeExceptionResponse(t *testing.T) {
	wire := []byte{byte(FuncCodeReadHoldingRegisters.WithException()), byte(ExcIllegalDataAddress)}
	got, err := Decode(wire, RoleResponse)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	body, ok := got.Payload.(ExceptionPDU)
	if !ok {
		t.Fatalf("decoded payload is %T, want ExceptionPDU", got.Payload)
	}
	if body.RequestFunctionCode != FuncCodeReadHoldingRegisters || body.ExceptionCode != ExcIllegalDataAddress {
		t.Fatalf("unexpected exception body: %+v", body)
	}
}

func TestDecodeUnknownFunctionCodeIsRaw(t *testing.T) {
	wire := []byte{0x55, 0x01, 0x02}
	got, err := Decode(wire, RoleRequest)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	body, ok := got.Payload.(RawPDU)
	if !ok {
		t.Fatalf("decoded payload is %T, want RawPDU", got.Payload)
	}
	if !reflect.DeepEqual(body.Data, []byte{0x01, 0x02}) {
		t.Fatalf("unexpected raw data: %v", body.Data)
	}
}

func TestDecodeEmptyFrame(t *testing.T) {
	if _, err := Decode(nil, RoleRequest); err == nil {
		t.Fatalf("expected an error decoding an empty frame")
	}
}

func TestMaskWriteRegisterApplyMask(t *testing.T) {
	got := ApplyMask(0x0012, 0x00F2, 0x0025)
	if got != 0x0017 {
		t.Fatalf("ApplyMask(0x0012, 0x00F2, 0x0025) = %#04x, want %#04x", got, 0x0017)
	}
}
