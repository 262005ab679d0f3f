package modbus

import "encoding/binary"

// mbapHeaderLen is the 7-byte MBAP header: tid(2) proto(2) len(2) uid(1).
const mbapHeaderLen = 7

// protocolIdentifier is always 0 for Modbus.
const protocolIdentifier = 0

// socketFramer implements MBAP framing. TLS reuses it verbatim: the TLS
// record layer is not relied on for frame boundaries.
type socketFramer struct {
	framing Framing
	buf     []byte
}

func newSocketFramer(f Framing) *socketFramer {
	return &socketFramer{framing: f}
}

func (s *socketFramer) Framing() Framing { return s.framing }

func (s *socketFramer) Build(pduBytes []byte, unitID uint8, tid uint16) ([]byte, error) {
	if len(pduBytes) == 0 {
		return nil, newError(KindEncode, "empty PDU")
	}
	if len(pduBytes) > MaxPDULength {
		return nil, newError(KindEncode, "PDU length %d exceeds maximum %d", len(pduBytes), MaxPDULength)
	}
	length := uint16(len(pduBytes) + 1) // + unit id
	frame := make([]byte, mbapHeaderLen+len(pduBytes))
	binary.BigEndian.PutUint16(frame[0:2], tid)
	binary.BigEndian.PutUint16(frame[2:4], protocolIdentifier)
	binary.BigEndian.PutUint16(frame[4:6], length)
	frame[6] = unitID
	copy(frame[7:], pduBytes)
	return frame, nil
}

func (s *socketFramer) Feed(data []byte) {
	s.buf = append(s.buf, data...)
}

// TryExtract needs >= 8 bytes just to learn len, then needs len+6 bytes
// total. On proto != 0 or len out of [1,254], it discards exactly one
// byte and resyncs rather than dropping the whole buffer, since framing
// desync after a restart should not be unrecoverable on an otherwise
// reliable transport.
func (s *socketFramer) TryExtract() ExtractResult {
	if len(s.buf) < mbapHeaderLen+1 {
		return ExtractResult{Status: ExtractIncomplete}
	}
	proto := binary.BigEndian.Uint16(s.buf[2:4])
	length := binary.BigEndian.Uint16(s.buf[4:6])
	if proto != protocolIdentifier || length < 1 || length > 254 {
		s.buf = s.buf[1:]
		return ExtractResult{Status: ExtractCorrupt, BytesDiscarded: 1}
	}
	total := mbapHeaderLen + int(length) - 1 // length counts unit id + PDU
	if len(s.buf) < total {
		return ExtractResult{Status: ExtractIncomplete}
	}
	tid := binary.BigEndian.Uint16(s.buf[0:2])
	unitID := s.buf[6]
	pdu := append([]byte(nil), s.buf[7:total]...)
	s.buf = s.buf[total:]
	hint := FunctionCode(0)
	if len(pdu) > 0 {
		hint = FunctionCode(pdu[0])
	}
	return ExtractResult{
		Status:           ExtractFrame,
		UnitID:           unitID,
		TID:              tid,
		PDUBytes:         pdu,
		FunctionCodeHint: hint,
	}
}
