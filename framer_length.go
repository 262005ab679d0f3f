package modbus

// pduBodyLength reports the length of a PDU body (everything after the
// function code byte, excluding any trailing checksum) when it can be
// determined from fixed-size fields alone. ok is false when the length
// depends on a byte-count field further into the body.
func pduBodyLength(fc FunctionCode, role Role) (length int, ok bool) {
	if fc.IsException() {
		return 1, true
	}
	switch role {
	case RoleRequest:
		switch fc {
		case FuncCodeReadCoils, FuncCodeReadDiscreteInputs,
			FuncCodeReadHoldingRegisters, FuncCodeReadInputRegisters:
			return 4, true
		case FuncCodeWriteSingleCoil, FuncCodeWriteSingleRegister:
			return 4, true
		case FuncCodeReadExceptionStatus, FuncCodeGetCommEventCounter, FuncCodeGetCommEventLog, FuncCodeReportSlaveID:
			return 0, true
		case FuncCodeDiagnostics:
			return 4, true
		case FuncCodeMaskWriteRegister:
			return 6, true
		case FuncCodeReadFIFOQueue:
			return 2, true
		case FuncCodeEncapsulatedInterface:
			return 3, true
		}
	case RoleResponse:
		switch fc {
		case FuncCodeWriteSingleCoil, FuncCodeWriteSingleRegister,
			FuncCodeWriteMultipleCoils, FuncCodeWriteMultipleRegisters:
			return 4, true
		case FuncCodeReadExceptionStatus:
			return 1, true
		case FuncCodeDiagnostics:
			return 4, true
		case FuncCodeGetCommEventCounter:
			return 4, true
		case FuncCodeMaskWriteRegister:
			return 6, true
		}
	}
	return 0, false
}

// byteCountOffset reports the offset within the PDU body (relative to the
// start of body, i.e. the byte right after the function code) of the 1-byte
// field that, once known, determines the rest of the body's length, for
// function codes whose length is otherwise indeterminate. The returned
// "header" is the number of body bytes that must already be present before
// the byte-count field itself can be read.
func byteCountOffset(fc FunctionCode, role Role) (offset int, header int, ok bool) {
	switch role {
	case RoleRequest:
		switch fc {
		case FuncCodeWriteMultipleCoils, FuncCodeWriteMultipleRegisters:
			return 4, 5, true
		case FuncCodeReadFileRecord, FuncCodeWriteFileRecord:
			return 0, 1, true
		case FuncCodeReadWriteMultipleRegisters:
			return 8, 9, true
		}
	case RoleResponse:
		switch fc {
		case FuncCodeReadCoils, FuncCodeReadDiscreteInputs,
			FuncCodeReadHoldingRegisters, FuncCodeReadInputRegisters,
			FuncCodeGetCommEventLog, FuncCodeReportSlaveID,
			FuncCodeReadFileRecord, FuncCodeWriteFileRecord,
			FuncCodeReadWriteMultipleRegisters:
			return 0, 1, true
		}
	}
	return 0, 0, false
}

// expectedBodyLength determines, from whatever prefix of the PDU body is
// currently available, either the full body length (ok=true) or that more
// bytes are needed before the length itself can be known (ok=false, no
// error). FC 24 (Read FIFO Queue) response and FC 43 (Read Device
// Identification) response are handled by their own helpers below because
// neither fits the single-byte-count-field shape.
func expectedBodyLength(fc FunctionCode, role Role, body []byte) (length int, ok bool) {
	if l, ok := pduBodyLength(fc, role); ok {
		return l, true
	}
	if role == RoleResponse && fc == FuncCodeReadFIFOQueue {
		return fifoQueueResponseLength(body)
	}
	if fc == FuncCodeEncapsulatedInterface && role == RoleResponse {
		return deviceIdentificationResponseLength(body)
	}
	off, header, ok := byteCountOffset(fc, role)
	if !ok {
		return 0, false
	}
	if len(body) < header {
		return 0, false
	}
	bc := int(body[off])
	return header + bc, true
}

func fifoQueueResponseLength(body []byte) (int, bool) {
	if len(body) < 2 {
		return 0, false
	}
	byteCount := int(body[0])<<8 | int(body[1])
	return 2 + byteCount, true
}

func deviceIdentificationResponseLength(body []byte) (int, bool) {
	const header = 6
	if len(body) < header {
		return 0, false
	}
	count := int(body[5])
	pos := header
	for i := 0; i < count; i++ {
		if len(body) < pos+2 {
			return 0, false
		}
		objLen := int(body[pos+1])
		pos += 2 + objLen
		if len(body) < pos {
			return 0, false
		}
	}
	return pos, true
}
