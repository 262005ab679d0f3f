package modbus

// FunctionCode identifies a Modbus request or response PDU. The high bit
// (0x80) distinguishes an exception response from its request counterpart.
type FunctionCode uint8

// Standard Modbus function codes.
const (
	FuncCodeReadCoils                  FunctionCode = 0x01
	FuncCodeReadDiscreteInputs         FunctionCode = 0x02
	FuncCodeReadHoldingRegisters       FunctionCode = 0x03
	FuncCodeReadInputRegisters         FunctionCode = 0x04
	FuncCodeWriteSingleCoil            FunctionCode = 0x05
	FuncCodeWriteSingleRegister        FunctionCode = 0x06
	FuncCodeReadExceptionStatus        FunctionCode = 0x07
	FuncCodeDiagnostics                FunctionCode = 0x08
	FuncCodeGetCommEventCounter        FunctionCode = 0x0B
	FuncCodeGetCommEventLog            FunctionCode = 0x0C
	FuncCodeWriteMultipleCoils         FunctionCode = 0x0F
	FuncCodeWriteMultipleRegisters     FunctionCode = 0x10
	FuncCodeReportSlaveID              FunctionCode = 0x11
	FuncCodeReadFileRecord             FunctionCode = 0x14
	FuncCodeWriteFileRecord            FunctionCode = 0x15
	FuncCodeMaskWriteRegister          FunctionCode = 0x16
	FuncCodeReadWriteMultipleRegisters FunctionCode = 0x17
	FuncCodeReadFIFOQueue              FunctionCode = 0x18
	FuncCodeEncapsulatedInterface      FunctionCode = 0x2B // MEI transport (Read Device Identification, sub-code 0x0E)
)

// exceptionBit, set in a response's function code, marks it as an exception.
const exceptionBit FunctionCode = 0x80

// IsException reports whether fc carries the exception bit.
func (fc FunctionCode) IsException() bool { return fc&exceptionBit != 0 }

// WithException returns the request function code with the exception bit set.
func (fc FunctionCode) WithException() FunctionCode { return fc | exceptionBit }

// WithoutException strips the exception bit, recovering the original request code.
func (fc FunctionCode) WithoutException() FunctionCode { return fc &^ exceptionBit }

// MEI (Modbus Encapsulated Interface) sub-type used by function code 0x2B.
const MEITypeReadDeviceIdentification = 0x0E

// ExceptionCode is the single byte carried by an exception response body.
type ExceptionCode uint8

// Standard Modbus exception codes.
const (
	ExcIllegalFunction                    ExceptionCode = 0x01
	ExcIllegalDataAddress                 ExceptionCode = 0x02
	ExcIllegalDataValue                   ExceptionCode = 0x03
	ExcSlaveDeviceFailure                 ExceptionCode = 0x04
	ExcAcknowledge                        ExceptionCode = 0x05
	ExcSlaveDeviceBusy                    ExceptionCode = 0x06
	ExcMemoryParityError                  ExceptionCode = 0x08
	ExcGatewayPathUnavailable              ExceptionCode = 0x0A
	ExcGatewayTargetDeviceFailedToRespond ExceptionCode = 0x0B
)

func (e ExceptionCode) String() string {
	switch e {
	case ExcIllegalFunction:
		return "illegal function"
	case ExcIllegalDataAddress:
		return "illegal data address"
	case ExcIllegalDataValue:
		return "illegal data value"
	case ExcSlaveDeviceFailure:
		return "slave device failure"
	case ExcAcknowledge:
		return "acknowledge"
	case ExcSlaveDeviceBusy:
		return "slave device busy"
	case ExcMemoryParityError:
		return "memory parity error"
	case ExcGatewayPathUnavailable:
		return "gateway path unavailable"
	case ExcGatewayTargetDeviceFailedToRespond:
		return "gateway target device failed to respond"
	default:
		return "unknown exception"
	}
}

// Role disambiguates request vs response decoding for function codes whose
// wire shape differs between the two.
type Role int

const (
	RoleRequest Role = iota
	RoleResponse
)

// Address-range limits enforced by the codec.
const (
	MaxReadBitQuantity      = 2000
	MaxReadRegisterQuantity = 125
	MaxWriteCoilQuantity    = 1968
	MaxWriteRegisterQuantity = 123
	MaxReadWriteRegisterQuantity = 125
	MaxWriteReadRegisterQuantity = 121
	MaxFIFOQueueValues     = 31

	MaxPDULength  = 253
	MaxSocketADU  = 260
	MaxSerialADU  = 256
)
