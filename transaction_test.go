package modbus

import (
	"testing"
	"time"
)

func newTestTransactionManager(serial bool, turnaround time.Duration) (*TransactionManager, *[][]byte) {
	var sent [][]byte
	writeFrame := func(data []byte) error {
		sent = append(sent, append([]byte(nil), data...))
		return nil
	}
	m := NewTransactionManager(newSocketFramer(FramingSocket), serial, turnaround, writeFrame, nil, nil, nil)
	return m, &sent
}

func newTestTransactionManagerWithCustom(custom map[FunctionCode]CustomFunctionCodec) (*TransactionManager, *[][]byte) {
	var sent [][]byte
	writeFrame := func(data []byte) error {
		sent = append(sent, append([]byte(nil), data...))
		return nil
	}
	m := NewTransactionManager(newSocketFramer(FramingSocket), false, 0, writeFrame, nil, nil, custom)
	return m, &sent
}

func buildSocketResponseFrame(t *testing.T, tid uint16, unitID uint8, pdu PDU) []byte {
	t.Helper()
	pduBytes, err := Encode(pdu)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	f := newSocketFramer(FramingSocket)
	adu, err := f.Build(pduBytes, unitID, tid)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return adu
}

func TestTransactionManagerSubmitAndMatch(t *testing.T) {
	m, sent := newTestTransactionManager(false, 0)

	req, _ := NewReadRegistersRequest(0, 1)
	tid, resultCh, err := m.Submit(PDU{FunctionCode: FuncCodeReadHoldingRegisters, Payload: req}, 1, time.Second, 0)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(*sent) != 1 {
		t.Fatalf("sent %d frames, want 1", len(*sent))
	}

	respPDU := PDU{FunctionCode: FuncCodeReadHoldingRegisters, Payload: ReadRegistersResponse{Values: []uint16{99}}}
	adu := buildSocketResponseFrame(t, tid, 1, respPDU)
	m.OnBytes(adu)

	select {
	case res := <-resultCh:
		if res.Err != nil {
			t.Fatalf("unexpected error: %v", res.Err)
		}
		body, ok := res.PDU.Payload.(ReadRegistersResponse)
		if !ok || body.Values[0] != 99 {
			t.Fatalf("unexpected result: %+v", res.PDU.Payload)
		}
	default:
		t.Fatalf("expected a result to be available immediately after OnBytes")
	}
}

func TestTransactionManagerExceptionResponse(t *testing.T) {
	m, _ := newTestTransactionManager(false, 0)

	req, _ := NewReadRegistersRequest(0, 1)
	tid, resultCh, err := m.Submit(PDU{FunctionCode: FuncCodeReadHoldingRegisters, Payload: req}, 1, time.Second, 0)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	excPDU := PDU{FunctionCode: FuncCodeReadHoldingRegisters, Payload: ExceptionPDU{RequestFunctionCode: FuncCodeReadHoldingRegisters, ExceptionCode: ExcIllegalDataAddress}}
	adu := buildSocketResponseFrame(t, tid, 1, excPDU)
	m.OnBytes(adu)

	res := <-resultCh
	modErr, ok := res.Err.(*Error)
	if !ok {
		t.Fatalf("Err is %T, want *Error", res.Err)
	}
	if modErr.Kind != KindException || modErr.Exception != ExcIllegalDataAddress {
		t.Fatalf("unexpected error: %+v", modErr)
	}
}

func TestTransactionManagerMismatchedUnitIDIsIgnored(t *testing.T) {
	m, _ := newTestTransactionManager(false, 0)

	req, _ := NewReadRegistersRequest(0, 1)
	tid, resultCh, err := m.Submit(PDU{FunctionCode: FuncCodeReadHoldingRegisters, Payload: req}, 1, time.Second, 0)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	respPDU := PDU{FunctionCode: FuncCodeReadHoldingRegisters, Payload: ReadRegistersResponse{Values: []uint16{1}}}
	wrongUnit := buildSocketResponseFrame(t, tid, 9, respPDU)
	m.OnBytes(wrongUnit)

	select {
	case <-resultCh:
		t.Fatalf("expected no result for a response with a mismatched unit id")
	default:
	}

	correctUnit := buildSocketResponseFrame(t, tid, 1, respPDU)
	m.OnBytes(correctUnit)
	res := <-resultCh
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
}

func TestTransactionManagerTimeoutAfterRetries(t *testing.T) {
	m, sent := newTestTransactionManager(false, 0)

	req, _ := NewReadRegistersRequest(0, 1)
	_, resultCh, err := m.Submit(PDU{FunctionCode: FuncCodeReadHoldingRegisters, Payload: req}, 1, time.Millisecond, 1)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	m.OnTick(time.Now().Add(50 * time.Millisecond))
	if len(*sent) != 2 {
		t.Fatalf("sent %d frames after one retry tick, want 2 (initial + retry)", len(*sent))
	}

	m.OnTick(time.Now().Add(100 * time.Millisecond))
	res := <-resultCh
	if res.Err != ErrTimeout {
		t.Fatalf("got %v, want ErrTimeout", res.Err)
	}
}

func TestTransactionManagerCancel(t *testing.T) {
	m, _ := newTestTransactionManager(false, 0)

	req, _ := NewReadRegistersRequest(0, 1)
	tid, resultCh, err := m.Submit(PDU{FunctionCode: FuncCodeReadHoldingRegisters, Payload: req}, 1, time.Second, 0)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !m.Cancel(tid) {
		t.Fatalf("Cancel returned false for an outstanding transaction")
	}
	res := <-resultCh
	if res.Err != ErrCancelled {
		t.Fatalf("got %v, want ErrCancelled", res.Err)
	}
	if m.Cancel(tid) {
		t.Fatalf("Cancel returned true for an already-completed transaction")
	}
}

func TestTransactionManagerClose(t *testing.T) {
	m, _ := newTestTransactionManager(false, 0)

	req, _ := NewReadRegistersRequest(0, 1)
	_, resultCh, err := m.Submit(PDU{FunctionCode: FuncCodeReadHoldingRegisters, Payload: req}, 1, time.Second, 0)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	m.Close()
	res := <-resultCh
	if res.Err != ErrConnectionClosed {
		t.Fatalf("got %v, want ErrConnectionClosed", res.Err)
	}
}

func TestTransactionManagerUsesRegisteredCustomFunctionCodec(t *testing.T) {
	const vendorFC = FunctionCode(0x64)
	codec := CustomFunctionCodec{
		EncodeRequest: func(p Payload) ([]byte, error) {
			return []byte{0xAA}, nil
		},
		DecodeResponse: func(data []byte) (Payload, error) {
			if len(data) != 1 {
				return nil, newError(KindDecode, "vendor response: expected 1 byte, got %d", len(data))
			}
			return RawPDU{Data: data}, nil
		},
	}
	m, sent := newTestTransactionManagerWithCustom(map[FunctionCode]CustomFunctionCodec{vendorFC: codec})

	tid, resultCh, err := m.Submit(PDU{FunctionCode: vendorFC, Payload: RawPDU{}}, 1, time.Second, 0)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(*sent) != 1 {
		t.Fatalf("sent %d frames, want 1", len(*sent))
	}
	adu := (*sent)[0]
	// adu is MBAP header(7) + function code + the codec's single encoded byte.
	if adu[len(adu)-2] != byte(vendorFC) || adu[len(adu)-1] != 0xAA {
		t.Fatalf("unexpected ADU tail %x, want function code %#x followed by 0xAA", adu[len(adu)-2:], vendorFC)
	}

	f := newSocketFramer(FramingSocket)
	respADU, err := f.Build([]byte{byte(vendorFC), 0xBB}, 1, tid)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	m.OnBytes(respADU)

	res := <-resultCh
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	body, ok := res.PDU.Payload.(RawPDU)
	if !ok || len(body.Data) != 1 || body.Data[0] != 0xBB {
		t.Fatalf("response was not decoded through the registered custom codec: %+v", res.PDU.Payload)
	}
}

func TestTransactionManagerSerialBroadcastCompletesAfterTurnaround(t *testing.T) {
	m, sent := newTestTransactionManager(true, 10*time.Millisecond)

	_, resultCh, err := m.Submit(PDU{FunctionCode: FuncCodeWriteSingleRegister, Payload: WriteSingleRegisterRequest{Address: 0, Value: 1}}, 0, time.Second, 0)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(*sent) != 1 {
		t.Fatalf("sent %d frames, want 1", len(*sent))
	}

	select {
	case <-resultCh:
		t.Fatalf("broadcast should not complete before the turnaround elapses")
	default:
	}

	m.OnTick(time.Now().Add(20 * time.Millisecond))
	res := <-resultCh
	if res.Err != nil {
		t.Fatalf("unexpected error completing a broadcast: %v", res.Err)
	}
}
