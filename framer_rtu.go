package modbus

// rtuFramer implements RTU framing: uid(1) + PDU + CRC-16/Modbus(2, little
// endian). There is no delimiter, so extraction is length-aware: it peeks
// the unit id and function code, looks up the expected body length for
// that (fc, role) pair, and falls back to peeking a declared byte-count
// field when the length can't be known from the function code alone.
type rtuFramer struct {
	role Role
	buf  []byte
}

func newRTUFramer(role Role) *rtuFramer {
	return &rtuFramer{role: role}
}

func (r *rtuFramer) Framing() Framing { return FramingRTU }

func (r *rtuFramer) Build(pduBytes []byte, unitID uint8, _ uint16) ([]byte, error) {
	if len(pduBytes) == 0 {
		return nil, newError(KindEncode, "empty PDU")
	}
	if len(pduBytes) > MaxPDULength {
		return nil, newError(KindEncode, "PDU length %d exceeds maximum %d", len(pduBytes), MaxPDULength)
	}
	frame := make([]byte, 0, 1+len(pduBytes)+2)
	frame = append(frame, unitID)
	frame = append(frame, pduBytes...)
	return appendCRC(frame), nil
}

func (r *rtuFramer) Feed(data []byte) {
	r.buf = append(r.buf, data...)
}

func (r *rtuFramer) TryExtract() ExtractResult {
	if len(r.buf) < 2 {
		return ExtractResult{Status: ExtractIncomplete}
	}
	unitID := r.buf[0]
	fc := FunctionCode(r.buf[1])
	bodyLen, ok := expectedBodyLength(fc, r.role, r.buf[2:])
	if !ok {
		if len(r.buf) >= MaxSerialADU {
			// Enough bytes for a full frame have accumulated and we still
			// can't determine a length: the function code (or its
			// byte-count prefix) is bogus. Resync one byte at a time.
			r.buf = r.buf[1:]
			return ExtractResult{Status: ExtractCorrupt, BytesDiscarded: 1}
		}
		return ExtractResult{Status: ExtractIncomplete}
	}
	total := 1 /*uid*/ + 1 /*fc*/ + bodyLen + 2 /*crc*/
	if total > MaxSerialADU {
		r.buf = r.buf[1:]
		return ExtractResult{Status: ExtractCorrupt, BytesDiscarded: 1}
	}
	if len(r.buf) < total {
		return ExtractResult{Status: ExtractIncomplete}
	}
	frame := r.buf[:total]
	if !verifyCRC(frame) {
		r.buf = r.buf[1:]
		return ExtractResult{Status: ExtractCorrupt, BytesDiscarded: 1}
	}
	pdu := append([]byte(nil), frame[1:total-2]...)
	r.buf = r.buf[total:]
	return ExtractResult{
		Status:           ExtractFrame,
		UnitID:           unitID,
		PDUBytes:         pdu,
		FunctionCodeHint: fc,
	}
}
