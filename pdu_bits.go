package modbus

import "encoding/binary"

func init() {
	registerDecoder(FuncCodeReadCoils, RoleRequest, decodeReadBitsRequest)
	registerDecoder(FuncCodeReadCoils, RoleResponse, decodeReadBitsResponse)
	registerDecoder(FuncCodeReadDiscreteInputs, RoleRequest, decodeReadBitsRequest)
	registerDecoder(FuncCodeReadDiscreteInputs, RoleResponse, decodeReadBitsResponse)
	registerDecoder(FuncCodeWriteSingleCoil, RoleRequest, decodeWriteSingleCoil)
	registerDecoder(FuncCodeWriteSingleCoil, RoleResponse, decodeWriteSingleCoil)
	registerDecoder(FuncCodeWriteMultipleCoils, RoleRequest, decodeWriteMultipleCoilsRequest)
	registerDecoder(FuncCodeWriteMultipleCoils, RoleResponse, decodeWriteMultipleCoilsResponse)
}

// ReadBitsRequest is the body shared by FC 1 (Read Coils) and FC 2 (Read
// Discrete Inputs): a starting address and a quantity, 1..2000.
type ReadBitsRequest struct {
	Address  uint16
	Quantity uint16
}

func (ReadBitsRequest) isPayload() {}

// NewReadBitsRequest validates quantity before returning a usable request.
func NewReadBitsRequest(address, quantity uint16) (ReadBitsRequest, error) {
	if quantity < 1 || quantity > MaxReadBitQuantity {
		return ReadBitsRequest{}, newError(KindEncode, "read bits quantity %d out of range [1,%d]", quantity, MaxReadBitQuantity)
	}
	return ReadBitsRequest{Address: address, Quantity: quantity}, nil
}

func (r ReadBitsRequest) encodeBody() ([]byte, error) {
	if r.Quantity < 1 || r.Quantity > MaxReadBitQuantity {
		return nil, newError(KindEncode, "read bits quantity %d out of range [1,%d]", r.Quantity, MaxReadBitQuantity)
	}
	body := make([]byte, 4)
	binary.BigEndian.PutUint16(body[0:2], r.Address)
	binary.BigEndian.PutUint16(body[2:4], r.Quantity)
	return body, nil
}

func decodeReadBitsRequest(data []byte) (Payload, error) {
	if len(data) != 4 {
		return nil, newError(KindDecode, "read bits request: expected 4 bytes, got %d", len(data))
	}
	qty := binary.BigEndian.Uint16(data[2:4])
	if qty < 1 || qty > MaxReadBitQuantity {
		return nil, newError(KindDecode, "read bits quantity %d out of range [1,%d]", qty, MaxReadBitQuantity)
	}
	return ReadBitsRequest{
		Address:  binary.BigEndian.Uint16(data[0:2]),
		Quantity: qty,
	}, nil
}

// ReadBitsResponse carries the decoded coil/discrete-input values, already
// unpacked from the wire's LSB-first packed bitmap.
type ReadBitsResponse struct {
	Values []bool
}

func (ReadBitsResponse) isPayload() {}

func (r ReadBitsResponse) encodeBody() ([]byte, error) {
	if len(r.Values) < 1 || len(r.Values) > MaxReadBitQuantity {
		return nil, newError(KindEncode, "read bits response quantity %d out of range [1,%d]", len(r.Values), MaxReadBitQuantity)
	}
	packed := packBits(r.Values)
	body := make([]byte, 1+len(packed))
	body[0] = byte(len(packed))
	copy(body[1:], packed)
	return body, nil
}

func decodeReadBitsResponse(data []byte) (Payload, error) {
	if len(data) < 1 {
		return nil, newError(KindDecode, "read bits response: missing byte count")
	}
	bc := int(data[0])
	if len(data)-1 != bc {
		return nil, newError(KindDecode, "read bits response: byte count %d does not match trailing %d bytes", bc, len(data)-1)
	}
	// The number of valid bits is not recoverable from the response alone
	// (the final byte may be zero-padded); callers match it against the
	// quantity they requested. Decode exposes every bit in the byte count.
	return ReadBitsResponse{Values: unpackBits(data[1:], bc*8)}, nil
}

// WriteSingleCoilRequest / WriteSingleCoilResponse (FC 5): the response is
// an exact echo of the request on success.
type WriteSingleCoilRequest struct {
	Address uint16
	Value   bool
}

func (WriteSingleCoilRequest) isPayload() {}

type WriteSingleCoilResponse struct {
	Address uint16
	Value   bool
}

func (WriteSingleCoilResponse) isPayload() {}

func coilWireValue(v bool) uint16 {
	if v {
		return 0xFF00
	}
	return 0x0000
}

func (r WriteSingleCoilRequest) encodeBody() ([]byte, error) {
	body := make([]byte, 4)
	binary.BigEndian.PutUint16(body[0:2], r.Address)
	binary.BigEndian.PutUint16(body[2:4], coilWireValue(r.Value))
	return body, nil
}

func (r WriteSingleCoilResponse) encodeBody() ([]byte, error) {
	body := make([]byte, 4)
	binary.BigEndian.PutUint16(body[0:2], r.Address)
	binary.BigEndian.PutUint16(body[2:4], coilWireValue(r.Value))
	return body, nil
}

func decodeWriteSingleCoil(data []byte) (Payload, error) {
	if len(data) != 4 {
		return nil, newError(KindDecode, "write single coil: expected 4 bytes, got %d", len(data))
	}
	value := binary.BigEndian.Uint16(data[2:4])
	if value != 0x0000 && value != 0xFF00 {
		return nil, newError(KindDecode, "write single coil: invalid value 0x%04X", value)
	}
	addr := binary.BigEndian.Uint16(data[0:2])
	return WriteSingleCoilRequest{Address: addr, Value: value == 0xFF00}, nil
}

// WriteMultipleCoilsRequest / WriteMultipleCoilsResponse (FC 15).
type WriteMultipleCoilsRequest struct {
	Address uint16
	Values  []bool
}

func (WriteMultipleCoilsRequest) isPayload() {}

func (r WriteMultipleCoilsRequest) encodeBody() ([]byte, error) {
	qty := len(r.Values)
	if qty < 1 || qty > MaxWriteCoilQuantity {
		return nil, newError(KindEncode, "write multiple coils quantity %d out of range [1,%d]", qty, MaxWriteCoilQuantity)
	}
	packed := packBits(r.Values)
	body := make([]byte, 5+len(packed))
	binary.BigEndian.PutUint16(body[0:2], r.Address)
	binary.BigEndian.PutUint16(body[2:4], uint16(qty))
	body[4] = byte(len(packed))
	copy(body[5:], packed)
	return body, nil
}

func decodeWriteMultipleCoilsRequest(data []byte) (Payload, error) {
	if len(data) < 5 {
		return nil, newError(KindDecode, "write multiple coils request too short")
	}
	qty := binary.BigEndian.Uint16(data[2:4])
	if qty < 1 || qty > MaxWriteCoilQuantity {
		return nil, newError(KindDecode, "write multiple coils quantity %d out of range [1,%d]", qty, MaxWriteCoilQuantity)
	}
	bc := int(data[4])
	expected := byteCountForBits(int(qty))
	if bc != expected {
		return nil, newError(KindDecode, "write multiple coils: byte count %d does not match quantity %d (expected %d)", bc, qty, expected)
	}
	if len(data)-5 != bc {
		return nil, newError(KindDecode, "write multiple coils: byte count %d does not match trailing %d bytes", bc, len(data)-5)
	}
	return WriteMultipleCoilsRequest{
		Address: binary.BigEndian.Uint16(data[0:2]),
		Values:  unpackBits(data[5:], int(qty)),
	}, nil
}

type WriteMultipleCoilsResponse struct {
	Address  uint16
	Quantity uint16
}

func (WriteMultipleCoilsResponse) isPayload() {}

func (r WriteMultipleCoilsResponse) encodeBody() ([]byte, error) {
	body := make([]byte, 4)
	binary.BigEndian.PutUint16(body[0:2], r.Address)
	binary.BigEndian.PutUint16(body[2:4], r.Quantity)
	return body, nil
}

func decodeWriteMultipleCoilsResponse(data []byte) (Payload, error) {
	if len(data) != 4 {
		return nil, newError(KindDecode, "write multiple coils response: expected 4 bytes, got %d", len(data))
	}
	return WriteMultipleCoilsResponse{
		Address:  binary.BigEndian.Uint16(data[0:2]),
		Quantity: binary.BigEndian.Uint16(data[2:4]),
	}, nil
}
