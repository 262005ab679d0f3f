package modbus

import "encoding/binary"

func init() {
	registerDecoder(FuncCodeReadExceptionStatus, RoleRequest, decodeEmptyRequest(func() Payload { return ReadExceptionStatusRequest{} }))
	registerDecoder(FuncCodeReadExceptionStatus, RoleResponse, decodeReadExceptionStatusResponse)
	registerDecoder(FuncCodeDiagnostics, RoleRequest, decodeDiagnostics)
	registerDecoder(FuncCodeDiagnostics, RoleResponse, decodeDiagnostics)
	registerDecoder(FuncCodeGetCommEventCounter, RoleRequest, decodeEmptyRequest(func() Payload { return GetCommEventCounterRequest{} }))
	registerDecoder(FuncCodeGetCommEventCounter, RoleResponse, decodeGetCommEventCounterResponse)
	registerDecoder(FuncCodeGetCommEventLog, RoleRequest, decodeEmptyRequest(func() Payload { return GetCommEventLogRequest{} }))
	registerDecoder(FuncCodeGetCommEventLog, RoleResponse, decodeGetCommEventLogResponse)
}

// decodeEmptyRequest builds a decoder for the several function codes whose
// request carries no body at all (FC 7, 11, 12).
func decodeEmptyRequest(zero func() Payload) decodeFunc {
	return func(data []byte) (Payload, error) {
		if len(data) != 0 {
			return nil, newError(KindDecode, "expected empty request body, got %d bytes", len(data))
		}
		return zero(), nil
	}
}

// ReadExceptionStatusRequest (FC 7) has no body.
type ReadExceptionStatusRequest struct{}

func (ReadExceptionStatusRequest) isPayload()            {}
func (ReadExceptionStatusRequest) encodeBody() ([]byte, error) { return nil, nil }

type ReadExceptionStatusResponse struct {
	Status uint8
}

func (ReadExceptionStatusResponse) isPayload() {}

func (r ReadExceptionStatusResponse) encodeBody() ([]byte, error) {
	return []byte{r.Status}, nil
}

func decodeReadExceptionStatusResponse(data []byte) (Payload, error) {
	if len(data) != 1 {
		return nil, newError(KindDecode, "read exception status response: expected 1 byte, got %d", len(data))
	}
	return ReadExceptionStatusResponse{Status: data[0]}, nil
}

// DiagnosticsRequest/Response (FC 8): a diagnostics sub-function and two
// bytes of data. The response typically echoes the request (e.g. Return
// Query Data, sub-function 0x00).
type DiagnosticsPDU struct {
	SubFunction uint16
	Data        []byte
}

func (DiagnosticsPDU) isPayload() {}

func (d DiagnosticsPDU) encodeBody() ([]byte, error) {
	body := make([]byte, 2+len(d.Data))
	binary.BigEndian.PutUint16(body[0:2], d.SubFunction)
	copy(body[2:], d.Data)
	return body, nil
}

func decodeDiagnostics(data []byte) (Payload, error) {
	if len(data) < 2 {
		return nil, newError(KindDecode, "diagnostics body too short")
	}
	return DiagnosticsPDU{
		SubFunction: binary.BigEndian.Uint16(data[0:2]),
		Data:        append([]byte(nil), data[2:]...),
	}, nil
}

// GetCommEventCounterRequest (FC 11) has no body.
type GetCommEventCounterRequest struct{}

func (GetCommEventCounterRequest) isPayload()            {}
func (GetCommEventCounterRequest) encodeBody() ([]byte, error) { return nil, nil }

type GetCommEventCounterResponse struct {
	Status     uint16
	EventCount uint16
}

func (GetCommEventCounterResponse) isPayload() {}

func (r GetCommEventCounterResponse) encodeBody() ([]byte, error) {
	body := make([]byte, 4)
	binary.BigEndian.PutUint16(body[0:2], r.Status)
	binary.BigEndian.PutUint16(body[2:4], r.EventCount)
	return body, nil
}

func decodeGetCommEventCounterResponse(data []byte) (Payload, error) {
	if len(data) != 4 {
		return nil, newError(KindDecode, "get comm event counter response: expected 4 bytes, got %d", len(data))
	}
	return GetCommEventCounterResponse{
		Status:     binary.BigEndian.Uint16(data[0:2]),
		EventCount: binary.BigEndian.Uint16(data[2:4]),
	}, nil
}

// GetCommEventLogRequest (FC 12) has no body.
type GetCommEventLogRequest struct{}

func (GetCommEventLogRequest) isPayload()            {}
func (GetCommEventLogRequest) encodeBody() ([]byte, error) { return nil, nil }

type GetCommEventLogResponse struct {
	Status       uint16
	EventCount   uint16
	MessageCount uint16
	Events       []byte
}

func (GetCommEventLogResponse) isPayload() {}

func (r GetCommEventLogResponse) encodeBody() ([]byte, error) {
	byteCount := 6 + len(r.Events)
	body := make([]byte, 1+byteCount)
	body[0] = byte(byteCount)
	binary.BigEndian.PutUint16(body[1:3], r.Status)
	binary.BigEndian.PutUint16(body[3:5], r.EventCount)
	binary.BigEndian.PutUint16(body[5:7], r.MessageCount)
	copy(body[7:], r.Events)
	return body, nil
}

func decodeGetCommEventLogResponse(data []byte) (Payload, error) {
	if len(data) < 7 {
		return nil, newError(KindDecode, "get comm event log response too short")
	}
	bc := int(data[0])
	if len(data)-1 != bc {
		return nil, newError(KindDecode, "get comm event log: byte count %d does not match trailing %d bytes", bc, len(data)-1)
	}
	return GetCommEventLogResponse{
		Status:       binary.BigEndian.Uint16(data[1:3]),
		EventCount:   binary.BigEndian.Uint16(data[3:5]),
		MessageCount: binary.BigEndian.Uint16(data[5:7]),
		Events:       append([]byte(nil), data[7:]...),
	}, nil
}
