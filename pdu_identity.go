package modbus

func init() {
	registerDecoder(FuncCodeReportSlaveID, RoleRequest, decodeEmptyRequest(func() Payload { return ReportSlaveIDRequest{} }))
	registerDecoder(FuncCodeReportSlaveID, RoleResponse, decodeReportSlaveIDResponse)
	registerDecoder(FuncCodeEncapsulatedInterface, RoleRequest, decodeReadDeviceIdentificationRequest)
	registerDecoder(FuncCodeEncapsulatedInterface, RoleResponse, decodeReadDeviceIdentificationResponse)
}

// ReportSlaveIDRequest (FC 17) has no body.
type ReportSlaveIDRequest struct{}

func (ReportSlaveIDRequest) isPayload()            {}
func (ReportSlaveIDRequest) encodeBody() ([]byte, error) { return nil, nil }

type ReportSlaveIDResponse struct {
	ID        []byte
	RunStatus bool
	Data      []byte
}

func (ReportSlaveIDResponse) isPayload() {}

func (r ReportSlaveIDResponse) encodeBody() ([]byte, error) {
	byteCount := len(r.ID) + 1 + len(r.Data)
	body := make([]byte, 1+byteCount)
	body[0] = byte(byteCount)
	copy(body[1:], r.ID)
	statusByte := byte(0x00)
	if r.RunStatus {
		statusByte = 0xFF
	}
	body[1+len(r.ID)] = statusByte
	copy(body[2+len(r.ID):], r.Data)
	return body, nil
}

func decodeReportSlaveIDResponse(data []byte) (Payload, error) {
	if len(data) < 2 {
		return nil, newError(KindDecode, "report slave id response too short")
	}
	bc := int(data[0])
	if len(data)-1 != bc {
		return nil, newError(KindDecode, "report slave id: byte count %d does not match trailing %d bytes", bc, len(data)-1)
	}
	body := data[1:]
	if len(body) < 1 {
		return nil, newError(KindDecode, "report slave id: missing run status")
	}
	// The wire format has no length prefix splitting ID from Data — both
	// are vendor-defined bytes ahead of the trailing run status byte, so
	// everything before it decodes into ID and Data is always empty. A
	// response encoded with a non-empty Data will not round-trip through
	// Encode/Decode; only the combined ID+Data bytes are preserved.
	idLen := len(body) - 1
	return ReportSlaveIDResponse{
		ID:        append([]byte(nil), body[:idLen]...),
		RunStatus: body[idLen] == 0xFF,
	}, nil
}

// Device Identification (FC 43 / MEI type 0x0E). Object ids are grouped
// into three conformity-level categories by the Modbus spec (basic,
// regular, extended); this codec carries the raw object id/value pairs and
// leaves categorization to the caller/dispatcher.
type ReadDeviceIdentificationRequest struct {
	ReadDeviceIDCode uint8
	ObjectID         uint8
}

func (ReadDeviceIdentificationRequest) isPayload() {}

func (r ReadDeviceIdentificationRequest) encodeBody() ([]byte, error) {
	return []byte{MEITypeReadDeviceIdentification, r.ReadDeviceIDCode, r.ObjectID}, nil
}

func decodeReadDeviceIdentificationRequest(data []byte) (Payload, error) {
	if len(data) != 3 {
		return nil, newError(KindDecode, "read device identification request: expected 3 bytes, got %d", len(data))
	}
	if data[0] != MEITypeReadDeviceIdentification {
		return nil, newError(KindDecode, "unsupported MEI type 0x%02X", data[0])
	}
	return ReadDeviceIdentificationRequest{ReadDeviceIDCode: data[1], ObjectID: data[2]}, nil
}

// DeviceIDObject is one (id, value) pair in a Read Device Identification
// response, e.g. {0x00, "vendor name"}.
type DeviceIDObject struct {
	ID    uint8
	Value []byte
}

type ReadDeviceIdentificationResponse struct {
	ReadDeviceIDCode uint8
	Conformity       uint8
	MoreFollows      bool
	NextObjectID     uint8
	Objects          []DeviceIDObject
}

func (ReadDeviceIdentificationResponse) isPayload() {}

func (r ReadDeviceIdentificationResponse) encodeBody() ([]byte, error) {
	body := []byte{MEITypeReadDeviceIdentification, r.ReadDeviceIDCode, r.Conformity, boolByte(r.MoreFollows), r.NextObjectID, byte(len(r.Objects))}
	for _, obj := range r.Objects {
		body = append(body, obj.ID, byte(len(obj.Value)))
		body = append(body, obj.Value...)
	}
	return body, nil
}

func boolByte(b bool) byte {
	if b {
		return 0xFF
	}
	return 0x00
}

func decodeReadDeviceIdentificationResponse(data []byte) (Payload, error) {
	if len(data) < 6 {
		return nil, newError(KindDecode, "read device identification response too short")
	}
	if data[0] != MEITypeReadDeviceIdentification {
		return nil, newError(KindDecode, "unsupported MEI type 0x%02X", data[0])
	}
	count := int(data[5])
	objs := make([]DeviceIDObject, 0, count)
	rest := data[6:]
	for i := 0; i < count; i++ {
		if len(rest) < 2 {
			return nil, newError(KindDecode, "read device identification response: truncated object %d", i)
		}
		id := rest[0]
		length := int(rest[1])
		if len(rest) < 2+length {
			return nil, newError(KindDecode, "read device identification response: object %d value truncated", i)
		}
		objs = append(objs, DeviceIDObject{ID: id, Value: append([]byte(nil), rest[2:2+length]...)})
		rest = rest[2+length:]
	}
	return ReadDeviceIdentificationResponse{
		ReadDeviceIDCode: data[1],
		Conformity:       data[2],
		MoreFollows:      data[3] != 0x00,
		NextObjectID:     data[4],
		Objects:          objs,
	}, nil
}
