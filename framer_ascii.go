package modbus

import "encoding/hex"

const (
	asciiStart = ':'
	asciiCR    = '\r'
	asciiLF    = '\n'
)

// asciiFramer implements Modbus ASCII framing: ':' uid(2 hex) PDU(hex)
// LRC(2 hex) '\r\n'. role is currently unused — ASCII frame
// boundaries are delimiter-based, not length-aware — but is accepted for
// symmetry with the other serial framers and future extension-aware
// decoding.
type asciiFramer struct {
	role Role
	buf  []byte
}

func newASCIIFramer(role Role) *asciiFramer {
	return &asciiFramer{role: role}
}

func (a *asciiFramer) Framing() Framing { return FramingASCII }

func (a *asciiFramer) Build(pduBytes []byte, unitID uint8, _ uint16) ([]byte, error) {
	if len(pduBytes) == 0 {
		return nil, newError(KindEncode, "empty PDU")
	}
	if len(pduBytes) > MaxPDULength {
		return nil, newError(KindEncode, "PDU length %d exceeds maximum %d", len(pduBytes), MaxPDULength)
	}
	body := make([]byte, 0, 1+len(pduBytes))
	body = append(body, unitID)
	body = append(body, pduBytes...)
	lrc := LRC(body)
	body = append(body, lrc)

	encoded := make([]byte, hex.EncodedLen(len(body)))
	hex.Encode(encoded, body)
	for i := range encoded {
		if encoded[i] >= 'a' && encoded[i] <= 'f' {
			encoded[i] -= 'a' - 'A'
		}
	}

	frame := make([]byte, 0, 1+len(encoded)+2)
	frame = append(frame, asciiStart)
	frame = append(frame, encoded...)
	frame = append(frame, asciiCR, asciiLF)
	return frame, nil
}

func (a *asciiFramer) Feed(data []byte) {
	a.buf = append(a.buf, data...)
}

func (a *asciiFramer) TryExtract() ExtractResult {
	if len(a.buf) == 0 {
		return ExtractResult{Status: ExtractIncomplete}
	}
	if a.buf[0] != asciiStart {
		a.buf = a.buf[1:]
		return ExtractResult{Status: ExtractCorrupt, BytesDiscarded: 1}
	}
	end := -1
	for i := 1; i+1 < len(a.buf); i++ {
		if a.buf[i] == asciiCR && a.buf[i+1] == asciiLF {
			end = i
			break
		}
	}
	if end == -1 {
		if len(a.buf) > 2*MaxSerialADU+3 {
			a.buf = a.buf[1:]
			return ExtractResult{Status: ExtractCorrupt, BytesDiscarded: 1}
		}
		return ExtractResult{Status: ExtractIncomplete}
	}

	hexBody := a.buf[1:end]
	consumed := end + 2
	if len(hexBody)%2 != 0 {
		a.buf = a.buf[1:]
		return ExtractResult{Status: ExtractCorrupt, BytesDiscarded: 1}
	}
	decoded := make([]byte, hex.DecodedLen(len(hexBody)))
	if _, err := hex.Decode(decoded, hexBody); err != nil {
		a.buf = a.buf[1:]
		return ExtractResult{Status: ExtractCorrupt, BytesDiscarded: 1}
	}
	if len(decoded) < 3 || !verifyLRC(decoded) {
		a.buf = a.buf[1:]
		return ExtractResult{Status: ExtractCorrupt, BytesDiscarded: 1}
	}

	unitID := decoded[0]
	pdu := append([]byte(nil), decoded[1:len(decoded)-1]...)
	a.buf = a.buf[consumed:]
	hint := FunctionCode(0)
	if len(pdu) > 0 {
		hint = FunctionCode(pdu[0])
	}
	return ExtractResult{
		Status:           ExtractFrame,
		UnitID:           unitID,
		PDUBytes:         pdu,
		FunctionCodeHint: hint,
	}
}
