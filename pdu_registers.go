package modbus

import "encoding/binary"

func init() {
	registerDecoder(FuncCodeReadHoldingRegisters, RoleRequest, decodeReadRegistersRequest)
	registerDecoder(FuncCodeReadHoldingRegisters, RoleResponse, decodeReadRegistersResponse)
	registerDecoder(FuncCodeReadInputRegisters, RoleRequest, decodeReadRegistersRequest)
	registerDecoder(FuncCodeReadInputRegisters, RoleResponse, decodeReadRegistersResponse)
	registerDecoder(FuncCodeWriteSingleRegister, RoleRequest, decodeWriteSingleRegister)
	registerDecoder(FuncCodeWriteSingleRegister, RoleResponse, decodeWriteSingleRegister)
	registerDecoder(FuncCodeWriteMultipleRegisters, RoleRequest, decodeWriteMultipleRegistersRequest)
	registerDecoder(FuncCodeWriteMultipleRegisters, RoleResponse, decodeWriteMultipleRegistersResponse)
	registerDecoder(FuncCodeMaskWriteRegister, RoleRequest, decodeMaskWriteRegister)
	registerDecoder(FuncCodeMaskWriteRegister, RoleResponse, decodeMaskWriteRegister)
	registerDecoder(FuncCodeReadWriteMultipleRegisters, RoleRequest, decodeReadWriteMultipleRegistersRequest)
	registerDecoder(FuncCodeReadWriteMultipleRegisters, RoleResponse, decodeReadWriteMultipleRegistersResponse)
	registerDecoder(FuncCodeReadFIFOQueue, RoleRequest, decodeReadFIFOQueueRequest)
	registerDecoder(FuncCodeReadFIFOQueue, RoleResponse, decodeReadFIFOQueueResponse)
}

func packRegisters(values []uint16) []byte {
	out := make([]byte, 2*len(values))
	for i, v := range values {
		binary.BigEndian.PutUint16(out[2*i:2*i+2], v)
	}
	return out
}

func unpackRegisters(data []byte) []uint16 {
	out := make([]uint16, len(data)/2)
	for i := range out {
		out[i] = binary.BigEndian.Uint16(data[2*i : 2*i+2])
	}
	return out
}

// ReadRegistersRequest is shared by FC 3 (Holding) and FC 4 (Input).
type ReadRegistersRequest struct {
	Address  uint16
	Quantity uint16
}

func (ReadRegistersRequest) isPayload() {}

func NewReadRegistersRequest(address, quantity uint16) (ReadRegistersRequest, error) {
	if quantity < 1 || quantity > MaxReadRegisterQuantity {
		return ReadRegistersRequest{}, newError(KindEncode, "read registers quantity %d out of range [1,%d]", quantity, MaxReadRegisterQuantity)
	}
	return ReadRegistersRequest{Address: address, Quantity: quantity}, nil
}

func (r ReadRegistersRequest) encodeBody() ([]byte, error) {
	if r.Quantity < 1 || r.Quantity > MaxReadRegisterQuantity {
		return nil, newError(KindEncode, "read registers quantity %d out of range [1,%d]", r.Quantity, MaxReadRegisterQuantity)
	}
	body := make([]byte, 4)
	binary.BigEndian.PutUint16(body[0:2], r.Address)
	binary.BigEndian.PutUint16(body[2:4], r.Quantity)
	return body, nil
}

func decodeReadRegistersRequest(data []byte) (Payload, error) {
	if len(data) != 4 {
		return nil, newError(KindDecode, "read registers request: expected 4 bytes, got %d", len(data))
	}
	qty := binary.BigEndian.Uint16(data[2:4])
	if qty < 1 || qty > MaxReadRegisterQuantity {
		return nil, newError(KindDecode, "read registers quantity %d out of range [1,%d]", qty, MaxReadRegisterQuantity)
	}
	return ReadRegistersRequest{Address: binary.BigEndian.Uint16(data[0:2]), Quantity: qty}, nil
}

type ReadRegistersResponse struct {
	Values []uint16
}

func (ReadRegistersResponse) isPayload() {}

func (r ReadRegistersResponse) encodeBody() ([]byte, error) {
	if len(r.Values) < 1 || len(r.Values) > MaxReadRegisterQuantity {
		return nil, newError(KindEncode, "read registers response quantity %d out of range [1,%d]", len(r.Values), MaxReadRegisterQuantity)
	}
	packed := packRegisters(r.Values)
	body := make([]byte, 1+len(packed))
	body[0] = byte(len(packed))
	copy(body[1:], packed)
	return body, nil
}

func decodeReadRegistersResponse(data []byte) (Payload, error) {
	if len(data) < 1 {
		return nil, newError(KindDecode, "read registers response: missing byte count")
	}
	bc := int(data[0])
	if len(data)-1 != bc || bc%2 != 0 {
		return nil, newError(KindDecode, "read registers response: byte count %d invalid for %d trailing bytes", bc, len(data)-1)
	}
	return ReadRegistersResponse{Values: unpackRegisters(data[1:])}, nil
}

// WriteSingleRegisterRequest/Response (FC 6): response echoes the request.
type WriteSingleRegisterRequest struct {
	Address uint16
	Value   uint16
}

func (WriteSingleRegisterRequest) isPayload() {}

type WriteSingleRegisterResponse struct {
	Address uint16
	Value   uint16
}

func (WriteSingleRegisterResponse) isPayload() {}

func (r WriteSingleRegisterRequest) encodeBody() ([]byte, error) {
	body := make([]byte, 4)
	binary.BigEndian.PutUint16(body[0:2], r.Address)
	binary.BigEndian.PutUint16(body[2:4], r.Value)
	return body, nil
}

func (r WriteSingleRegisterResponse) encodeBody() ([]byte, error) {
	body := make([]byte, 4)
	binary.BigEndian.PutUint16(body[0:2], r.Address)
	binary.BigEndian.PutUint16(body[2:4], r.Value)
	return body, nil
}

func decodeWriteSingleRegister(data []byte) (Payload, error) {
	if len(data) != 4 {
		return nil, newError(KindDecode, "write single register: expected 4 bytes, got %d", len(data))
	}
	return WriteSingleRegisterRequest{
		Address: binary.BigEndian.Uint16(data[0:2]),
		Value:   binary.BigEndian.Uint16(data[2:4]),
	}, nil
}

// WriteMultipleRegistersRequest/Response (FC 16).
type WriteMultipleRegistersRequest struct {
	Address uint16
	Values  []uint16
}

func (WriteMultipleRegistersRequest) isPayload() {}

func (r WriteMultipleRegistersRequest) encodeBody() ([]byte, error) {
	qty := len(r.Values)
	if qty < 1 || qty > MaxWriteRegisterQuantity {
		return nil, newError(KindEncode, "write multiple registers quantity %d out of range [1,%d]", qty, MaxWriteRegisterQuantity)
	}
	packed := packRegisters(r.Values)
	body := make([]byte, 5+len(packed))
	binary.BigEndian.PutUint16(body[0:2], r.Address)
	binary.BigEndian.PutUint16(body[2:4], uint16(qty))
	body[4] = byte(len(packed))
	copy(body[5:], packed)
	return body, nil
}

func decodeWriteMultipleRegistersRequest(data []byte) (Payload, error) {
	if len(data) < 5 {
		return nil, newError(KindDecode, "write multiple registers request too short")
	}
	qty := binary.BigEndian.Uint16(data[2:4])
	if qty < 1 || qty > MaxWriteRegisterQuantity {
		return nil, newError(KindDecode, "write multiple registers quantity %d out of range [1,%d]", qty, MaxWriteRegisterQuantity)
	}
	bc := int(data[4])
	if bc != int(qty)*2 || len(data)-5 != bc {
		return nil, newError(KindDecode, "write multiple registers: byte count %d inconsistent with quantity %d", bc, qty)
	}
	return WriteMultipleRegistersRequest{
		Address: binary.BigEndian.Uint16(data[0:2]),
		Values:  unpackRegisters(data[5:]),
	}, nil
}

type WriteMultipleRegistersResponse struct {
	Address  uint16
	Quantity uint16
}

func (WriteMultipleRegistersResponse) isPayload() {}

func (r WriteMultipleRegistersResponse) encodeBody() ([]byte, error) {
	body := make([]byte, 4)
	binary.BigEndian.PutUint16(body[0:2], r.Address)
	binary.BigEndian.PutUint16(body[2:4], r.Quantity)
	return body, nil
}

func decodeWriteMultipleRegistersResponse(data []byte) (Payload, error) {
	if len(data) != 4 {
		return nil, newError(KindDecode, "write multiple registers response: expected 4 bytes, got %d", len(data))
	}
	return WriteMultipleRegistersResponse{
		Address:  binary.BigEndian.Uint16(data[0:2]),
		Quantity: binary.BigEndian.Uint16(data[2:4]),
	}, nil
}

// MaskWriteRegisterRequest/Response (FC 22): result = (current AND andMask) OR (orMask AND NOT andMask).
type MaskWriteRegisterRequest struct {
	Address uint16
	And     uint16
	Or      uint16
}

func (MaskWriteRegisterRequest) isPayload() {}

type MaskWriteRegisterResponse struct {
	Address uint16
	And     uint16
	Or      uint16
}

func (MaskWriteRegisterResponse) isPayload() {}

func (r MaskWriteRegisterRequest) encodeBody() ([]byte, error) {
	body := make([]byte, 6)
	binary.BigEndian.PutUint16(body[0:2], r.Address)
	binary.BigEndian.PutUint16(body[2:4], r.And)
	binary.BigEndian.PutUint16(body[4:6], r.Or)
	return body, nil
}

func (r MaskWriteRegisterResponse) encodeBody() ([]byte, error) {
	body := make([]byte, 6)
	binary.BigEndian.PutUint16(body[0:2], r.Address)
	binary.BigEndian.PutUint16(body[2:4], r.And)
	binary.BigEndian.PutUint16(body[4:6], r.Or)
	return body, nil
}

func decodeMaskWriteRegister(data []byte) (Payload, error) {
	if len(data) != 6 {
		return nil, newError(KindDecode, "mask write register: expected 6 bytes, got %d", len(data))
	}
	return MaskWriteRegisterRequest{
		Address: binary.BigEndian.Uint16(data[0:2]),
		And:     binary.BigEndian.Uint16(data[2:4]),
		Or:      binary.BigEndian.Uint16(data[4:6]),
	}, nil
}

// ApplyMask computes the new register value: (current AND and) OR (or AND NOT and).
func ApplyMask(current, and, or uint16) uint16 {
	return (current & and) | (or &^ and)
}

// ReadWriteMultipleRegistersRequest/Response (FC 23).
type ReadWriteMultipleRegistersRequest struct {
	ReadAddress  uint16
	ReadQuantity uint16
	WriteAddress uint16
	WriteValues  []uint16
}

func (ReadWriteMultipleRegistersRequest) isPayload() {}

func (r ReadWriteMultipleRegistersRequest) encodeBody() ([]byte, error) {
	if r.ReadQuantity < 1 || r.ReadQuantity > MaxReadWriteRegisterQuantity {
		return nil, newError(KindEncode, "read/write registers read quantity %d out of range [1,%d]", r.ReadQuantity, MaxReadWriteRegisterQuantity)
	}
	wqty := len(r.WriteValues)
	if wqty < 1 || wqty > MaxWriteReadRegisterQuantity {
		return nil, newError(KindEncode, "read/write registers write quantity %d out of range [1,%d]", wqty, MaxWriteReadRegisterQuantity)
	}
	packed := packRegisters(r.WriteValues)
	body := make([]byte, 9+len(packed))
	binary.BigEndian.PutUint16(body[0:2], r.ReadAddress)
	binary.BigEndian.PutUint16(body[2:4], r.ReadQuantity)
	binary.BigEndian.PutUint16(body[4:6], r.WriteAddress)
	binary.BigEndian.PutUint16(body[6:8], uint16(wqty))
	body[8] = byte(len(packed))
	copy(body[9:], packed)
	return body, nil
}

func decodeReadWriteMultipleRegistersRequest(data []byte) (Payload, error) {
	if len(data) < 9 {
		return nil, newError(KindDecode, "read/write registers request too short")
	}
	rqty := binary.BigEndian.Uint16(data[2:4])
	wqty := binary.BigEndian.Uint16(data[6:8])
	if rqty < 1 || rqty > MaxReadWriteRegisterQuantity {
		return nil, newError(KindDecode, "read/write registers read quantity %d out of range [1,%d]", rqty, MaxReadWriteRegisterQuantity)
	}
	if wqty < 1 || wqty > MaxWriteReadRegisterQuantity {
		return nil, newError(KindDecode, "read/write registers write quantity %d out of range [1,%d]", wqty, MaxWriteReadRegisterQuantity)
	}
	bc := int(data[8])
	if bc != int(wqty)*2 || len(data)-9 != bc {
		return nil, newError(KindDecode, "read/write registers: byte count %d inconsistent with write quantity %d", bc, wqty)
	}
	return ReadWriteMultipleRegistersRequest{
		ReadAddress:  binary.BigEndian.Uint16(data[0:2]),
		ReadQuantity: rqty,
		WriteAddress: binary.BigEndian.Uint16(data[4:6]),
		WriteValues:  unpackRegisters(data[9:]),
	}, nil
}

type ReadWriteMultipleRegistersResponse struct {
	Values []uint16
}

func (ReadWriteMultipleRegistersResponse) isPayload() {}

func (r ReadWriteMultipleRegistersResponse) encodeBody() ([]byte, error) {
	packed := packRegisters(r.Values)
	body := make([]byte, 1+len(packed))
	body[0] = byte(len(packed))
	copy(body[1:], packed)
	return body, nil
}

func decodeReadWriteMultipleRegistersResponse(data []byte) (Payload, error) {
	if len(data) < 1 {
		return nil, newError(KindDecode, "read/write registers response: missing byte count")
	}
	bc := int(data[0])
	if len(data)-1 != bc || bc%2 != 0 {
		return nil, newError(KindDecode, "read/write registers response: byte count %d invalid", bc)
	}
	return ReadWriteMultipleRegistersResponse{Values: unpackRegisters(data[1:])}, nil
}

// ReadFIFOQueueRequest/Response (FC 24). Response values are capped at 31
// per the Modbus spec (31 x 2 bytes + 2 byte-count + 2 fifo-count fits the
// 253-byte PDU ceiling).
type ReadFIFOQueueRequest struct {
	Address uint16
}

func (ReadFIFOQueueRequest) isPayload() {}

func (r ReadFIFOQueueRequest) encodeBody() ([]byte, error) {
	body := make([]byte, 2)
	binary.BigEndian.PutUint16(body, r.Address)
	return body, nil
}

func decodeReadFIFOQueueRequest(data []byte) (Payload, error) {
	if len(data) != 2 {
		return nil, newError(KindDecode, "read FIFO queue request: expected 2 bytes, got %d", len(data))
	}
	return ReadFIFOQueueRequest{Address: binary.BigEndian.Uint16(data)}, nil
}

type ReadFIFOQueueResponse struct {
	Values []uint16
}

func (ReadFIFOQueueResponse) isPayload() {}

func (r ReadFIFOQueueResponse) encodeBody() ([]byte, error) {
	if len(r.Values) > MaxFIFOQueueValues {
		return nil, newError(KindEncode, "FIFO queue has %d values, max %d", len(r.Values), MaxFIFOQueueValues)
	}
	packed := packRegisters(r.Values)
	byteCount := uint16(2 + len(packed))
	body := make([]byte, 4+len(packed))
	binary.BigEndian.PutUint16(body[0:2], byteCount)
	binary.BigEndian.PutUint16(body[2:4], uint16(len(r.Values)))
	copy(body[4:], packed)
	return body, nil
}

func decodeReadFIFOQueueResponse(data []byte) (Payload, error) {
	if len(data) < 4 {
		return nil, newError(KindDecode, "read FIFO queue response too short")
	}
	byteCount := binary.BigEndian.Uint16(data[0:2])
	fifoCount := binary.BigEndian.Uint16(data[2:4])
	if int(byteCount) != len(data)-2 {
		return nil, newError(KindDecode, "FIFO queue byte count %d does not match trailing %d bytes", byteCount, len(data)-2)
	}
	if int(fifoCount) != (len(data)-4)/2 {
		return nil, newError(KindDecode, "FIFO queue count %d does not match payload", fifoCount)
	}
	return ReadFIFOQueueResponse{Values: unpackRegisters(data[4:])}, nil
}
