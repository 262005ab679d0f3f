package modbus

// Framing names the five on-wire ADU layouts this package knows how to
// build and parse.
type Framing int

const (
	FramingSocket Framing = iota
	FramingRTU
	FramingASCII
	FramingBinary
	FramingTLS
)

func (f Framing) String() string {
	switch f {
	case FramingSocket:
		return "socket"
	case FramingRTU:
		return "rtu"
	case FramingASCII:
		return "ascii"
	case FramingBinary:
		return "binary"
	case FramingTLS:
		return "tls"
	default:
		return "unknown"
	}
}

// IsSerial reports whether the framing multiplexes a half-duplex serial
// link (strict request/response turn-taking, no pipelining, unit id 0 is
// broadcast). Socket and TLS framings are not serial.
func (f Framing) IsSerial() bool {
	return f == FramingRTU || f == FramingASCII || f == FramingBinary
}

// ExtractStatus is the outcome of one TryExtract call.
type ExtractStatus int

const (
	ExtractIncomplete ExtractStatus = iota
	ExtractFrame
	ExtractCorrupt
)

// ExtractResult is returned by Framer.TryExtract. Only the fields relevant
// to Status are meaningful: Frame fields for ExtractFrame, BytesDiscarded
// for ExtractCorrupt.
type ExtractResult struct {
	Status ExtractStatus

	UnitID           uint8
	TID              uint16 // meaningful only for Socket/TLS
	PDUBytes         []byte
	FunctionCodeHint FunctionCode

	BytesDiscarded int
}

// Framer converts between a PDU + unit id and the on-wire ADU bytes for one
// of the five framings, and recovers frames from a streaming byte buffer.
// A Framer is stateful (it owns an incoming byte buffer) and is scoped to a
// single connection — never shared across connections.
type Framer interface {
	// Build produces the full ADU for pdu addressed to unitID. tid is used
	// only by the Socket and TLS framers; RTU/ASCII/Binary ignore it.
	Build(pduBytes []byte, unitID uint8, tid uint16) ([]byte, error)

	// Feed appends data to the framer's internal buffer.
	Feed(data []byte)

	// TryExtract attempts to pull one frame out of the internal buffer,
	// advancing the buffer past whatever it consumed (including bytes
	// discarded on corruption). Callers should loop on TryExtract until it
	// returns ExtractIncomplete.
	TryExtract() ExtractResult

	// Framing reports which of the five wire formats this framer is.
	Framing() Framing
}

// NewFramer constructs the framer for f. extractRole tells the
// length-aware serial framers (RTU/ASCII/Binary) what role the *incoming*
// frames play — RoleResponse for a client framer awaiting replies,
// RoleRequest for a server framer awaiting incoming requests — since the
// body length for a given function code differs between the two. Socket
// and TLS framers ignore it: MBAP carries an explicit length field and
// never needs to guess.
//
// Socket and TLS share an implementation: TLS record boundaries are not
// relied upon, so the wire format is byte-identical to Socket/MBAP.
func NewFramer(f Framing, extractRole Role) (Framer, error) {
	switch f {
	case FramingSocket, FramingTLS:
		return newSocketFramer(f), nil
	case FramingRTU:
		return newRTUFramer(extractRole), nil
	case FramingASCII:
		return newASCIIFramer(extractRole), nil
	case FramingBinary:
		return newBinaryFramer(extractRole), nil
	default:
		return nil, newError(KindFraming, "unknown framing %v", f)
	}
}
