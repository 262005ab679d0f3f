package modbus

import "testing"

func TestReadExceptionStatusResponseRoundTrip(t *testing.T) {
	pdu := PDU{FunctionCode: FuncCodeReadExceptionStatus, Payload: ReadExceptionStatusResponse{Status: 0x55}}
	data, err := Encode(pdu)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data, RoleResponse)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	body, ok := got.Payload.(ReadExceptionStatusResponse)
	if !ok || body.Status != 0x55 {
		t.Fatalf("unexpected payload: %+v", got.Payload)
	}
}

func TestDiagnosticsRoundTrip(t *testing.T) {
	pdu := PDU{FunctionCode: FuncCodeDiagnostics, Payload: DiagnosticsPDU{SubFunction: 0, Data: []byte{0xAA, 0xBB}}}
	data, err := Encode(pdu)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data, RoleRequest)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	body, ok := got.Payload.(DiagnosticsPDU)
	if !ok || body.SubFunction != 0 || len(body.Data) != 2 || body.Data[0] != 0xAA {
		t.Fatalf("unexpected payload: %+v", got.Payload)
	}
}

func TestGetCommEventCounterResponseRoundTrip(t *testing.T) {
	pdu := PDU{FunctionCode: FuncCodeGetCommEventCounter, Payload: GetCommEventCounterResponse{Status: 0xFFFF, EventCount: 42}}
	data, err := Encode(pdu)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data, RoleResponse)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	body, ok := got.Payload.(GetCommEventCounterResponse)
	if !ok || body.EventCount != 42 {
		t.Fatalf("unexpected payload: %+v", got.Payload)
	}
}

func TestGetCommEventLogResponseRoundTrip(t *testing.T) {
	pdu := PDU{FunctionCode: FuncCodeGetCommEventLog, Payload: GetCommEventLogResponse{
		Status: 0, EventCount: 1, MessageCount: 2, Events: []byte{0x01, 0x02},
	}}
	data, err := Encode(pdu)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data, RoleResponse)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	body, ok := got.Payload.(GetCommEventLogResponse)
	if !ok || body.MessageCount != 2 || len(body.Events) != 2 {
		t.Fatalf("unexpected payload: %+v", got.Payload)
	}
}

func TestDecodeEmptyRequestRejectsNonEmptyBody(t *testing.T) {
	_, err := Decode([]byte{byte(FuncCodeReadExceptionStatus), 0x01}, RoleRequest)
	if err == nil {
		t.Fatalf("expected an error decoding a non-empty read exception status request")
	}
}
