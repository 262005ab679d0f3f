package server

import (
	"go.uber.org/zap"

	"github.com/graintech/modbus"
)

// HandlerFunc serves one decoded request PDU against unitID and returns the
// response payload (or an error, translated to SLAVE_DEVICE_FAILURE by the
// caller). Used both by the built-in per-function-code handlers and by
// custom_functions registrations.
type HandlerFunc func(unitID uint8, req modbus.Payload) (modbus.Payload, error)

// Dispatcher runs the five-step request-handling algorithm over frames
// extracted by a Framer: resolve the unit id, decode, validate addresses,
// invoke the DataStore, encode the response.
type Dispatcher struct {
	store   DataStore
	units   map[uint8]bool
	ignoreMissing bool
	identity *Identity

	custom       map[modbus.FunctionCode]HandlerFunc
	customCodecs map[modbus.FunctionCode]modbus.CustomFunctionCodec
	logger       *zap.Logger
}

// NewDispatcher builds a Dispatcher serving store for the given unit ids.
// An empty units set means "respond for any unit id" (a single-slave
// gateway); ignoreMissing controls step 1's behavior for an unhosted unit.
func NewDispatcher(store DataStore, units []uint8, ignoreMissing bool, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	hosted := make(map[uint8]bool, len(units))
	for _, u := range units {
		hosted[u] = true
	}
	return &Dispatcher{
		store:         store,
		units:         hosted,
		ignoreMissing: ignoreMissing,
		custom:        make(map[modbus.FunctionCode]HandlerFunc),
		customCodecs:  make(map[modbus.FunctionCode]modbus.CustomFunctionCodec),
		logger:        logger,
	}
}

// SetIdentity attaches the identity block served by FC 17/43.
func (d *Dispatcher) SetIdentity(id *Identity) { d.identity = id }

// RegisterFunction adds or replaces the handler for a custom function
// code. Registering one of the codes the dispatcher already implements
// natively overrides the built-in behavior.
func (d *Dispatcher) RegisterFunction(fc modbus.FunctionCode, h HandlerFunc) {
	d.custom[fc] = h
}

// SetCustomFunctions wires Options.CustomFunctions into the dispatcher:
// codecs is consulted ahead of the built-in Encode/Decode registry for
// whatever function codes it names, independent of (and composable with)
// RegisterFunction's business-logic handlers. A function code whose
// HandlerFunc expects a typed Payload rather than the RawPDU fallback needs
// both registered: the codec to get there, the handler to act on it.
func (d *Dispatcher) SetCustomFunctions(codecs map[modbus.FunctionCode]modbus.CustomFunctionCodec) {
	d.customCodecs = codecs
}

// decodeRequest decodes one request PDU, preferring a registered custom
// codec's DecodeRequest over the built-in registry for its function code.
func (d *Dispatcher) decodeRequest(data []byte) (modbus.PDU, error) {
	if len(data) > 0 {
		fc := modbus.FunctionCode(data[0])
		if codec, ok := d.customCodecs[fc]; ok && codec.DecodeRequest != nil {
			payload, err := codec.DecodeRequest(data[1:])
			if err != nil {
				return modbus.PDU{}, err
			}
			return modbus.PDU{FunctionCode: fc, Payload: payload}, nil
		}
	}
	return modbus.Decode(data, modbus.RoleRequest)
}

// encodeResponse encodes one response PDU, preferring a registered custom
// codec's EncodeResponse over the built-in registry for its function code.
func (d *Dispatcher) encodeResponse(fc modbus.FunctionCode, payload modbus.Payload) ([]byte, error) {
	if codec, ok := d.customCodecs[fc]; ok && codec.EncodeResponse != nil {
		body, err := codec.EncodeResponse(payload)
		if err != nil {
			return nil, err
		}
		out := make([]byte, 1+len(body))
		out[0] = byte(fc)
		copy(out[1:], body)
		return out, nil
	}
	return modbus.Encode(modbus.PDU{FunctionCode: fc, Payload: payload})
}

// hostsAny reports whether this dispatcher answers for every unit id
// (no explicit allow-list was configured).
func (d *Dispatcher) hostsAny() bool { return len(d.units) == 0 }

// Dispatch runs the step 1-5 algorithm over one extracted request frame
// and returns the ADU bytes to write, or nil if nothing should be written
// (an ignored unknown unit, or a broadcast request per step 5).
func (d *Dispatcher) Dispatch(res modbus.ExtractResult, framer modbus.Framer, broadcastEnable bool) []byte {
	unitID := res.UnitID
	broadcast := broadcastEnable && unitID == 0

	if !d.hostsAny() && !d.units[unitID] {
		if d.ignoreMissing {
			d.logger.Debug("dropping request for unhosted unit", zap.Uint8("unit_id", unitID))
			return nil
		}
		return d.exceptionFrame(framer, unitID, res.TID, res.FunctionCodeHint, modbus.ExcGatewayPathUnavailable, broadcast)
	}

	reqPDU, err := d.decodeRequest(res.PDUBytes)
	if err != nil {
		return d.exceptionFrame(framer, unitID, res.TID, res.FunctionCodeHint, modbus.ExcIllegalDataValue, broadcast)
	}

	respPayload, excCode, ok := d.handle(unitID, reqPDU)
	if !ok {
		return d.exceptionFrame(framer, unitID, res.TID, reqPDU.FunctionCode, excCode, broadcast)
	}

	if broadcast {
		return nil
	}

	pduBytes, err := d.encodeResponse(reqPDU.FunctionCode, respPayload)
	if err != nil {
		d.logger.Error("failed to encode response", zap.Error(err))
		return nil
	}
	adu, err := framer.Build(pduBytes, unitID, res.TID)
	if err != nil {
		d.logger.Error("failed to build response frame", zap.Error(err))
		return nil
	}
	return adu
}

// handle runs steps 3-4: custom registry first (so a registration can
// override a built-in code), then the built-in table, then
// ILLEGAL_FUNCTION for anything unrecognized.
func (d *Dispatcher) handle(unitID uint8, req modbus.PDU) (modbus.Payload, modbus.ExceptionCode, bool) {
	if h, ok := d.custom[req.FunctionCode]; ok {
		resp, err := h(unitID, req.Payload)
		if err != nil {
			return nil, modbus.ExcSlaveDeviceFailure, false
		}
		return resp, 0, true
	}

	switch req.FunctionCode {
	case modbus.FuncCodeReadCoils:
		return d.readBits(Coils, req.Payload)
	case modbus.FuncCodeReadDiscreteInputs:
		return d.readBits(DiscreteInputs, req.Payload)
	case modbus.FuncCodeReadHoldingRegisters:
		return d.readRegisters(HoldingRegisters, req.Payload)
	case modbus.FuncCodeReadInputRegisters:
		return d.readRegisters(InputRegisters, req.Payload)
	case modbus.FuncCodeWriteSingleCoil:
		return d.writeSingleCoil(req.Payload)
	case modbus.FuncCodeWriteSingleRegister:
		return d.writeSingleRegister(req.Payload)
	case modbus.FuncCodeWriteMultipleCoils:
		return d.writeMultipleCoils(req.Payload)
	case modbus.FuncCodeWriteMultipleRegisters:
		return d.writeMultipleRegisters(req.Payload)
	case modbus.FuncCodeMaskWriteRegister:
		return d.maskWriteRegister(req.Payload)
	case modbus.FuncCodeReadWriteMultipleRegisters:
		return d.readWriteMultipleRegisters(req.Payload)
	case modbus.FuncCodeReportSlaveID:
		return d.reportSlaveID()
	case modbus.FuncCodeEncapsulatedInterface:
		return d.readDeviceIdentification(req.Payload)
	default:
		return nil, modbus.ExcIllegalFunction, false
	}
}

func (d *Dispatcher) readBits(space AddressSpace, payload modbus.Payload) (modbus.Payload, modbus.ExceptionCode, bool) {
	req, ok := payload.(modbus.ReadBitsRequest)
	if !ok {
		return nil, modbus.ExcIllegalDataValue, false
	}
	if !d.store.Validate(space, req.Address, req.Quantity) {
		return nil, modbus.ExcIllegalDataAddress, false
	}
	values, err := d.store.GetBits(space, req.Address, req.Quantity)
	if err != nil {
		return nil, modbus.ExcSlaveDeviceFailure, false
	}
	return modbus.ReadBitsResponse{Values: values}, 0, true
}

func (d *Dispatcher) readRegisters(space AddressSpace, payload modbus.Payload) (modbus.Payload, modbus.ExceptionCode, bool) {
	req, ok := payload.(modbus.ReadRegistersRequest)
	if !ok {
		return nil, modbus.ExcIllegalDataValue, false
	}
	if !d.store.Validate(space, req.Address, req.Quantity) {
		return nil, modbus.ExcIllegalDataAddress, false
	}
	values, err := d.store.GetRegisters(space, req.Address, req.Quantity)
	if err != nil {
		return nil, modbus.ExcSlaveDeviceFailure, false
	}
	return modbus.ReadRegistersResponse{Values: values}, 0, true
}

func (d *Dispatcher) writeSingleCoil(payload modbus.Payload) (modbus.Payload, modbus.ExceptionCode, bool) {
	req, ok := payload.(modbus.WriteSingleCoilRequest)
	if !ok {
		return nil, modbus.ExcIllegalDataValue, false
	}
	if !d.store.Validate(Coils, req.Address, 1) {
		return nil, modbus.ExcIllegalDataAddress, false
	}
	if err := d.store.SetBits(Coils, req.Address, []bool{req.Value}); err != nil {
		return nil, modbus.ExcSlaveDeviceFailure, false
	}
	return modbus.WriteSingleCoilResponse{Address: req.Address, Value: req.Value}, 0, true
}

func (d *Dispatcher) writeSingleRegister(payload modbus.Payload) (modbus.Payload, modbus.ExceptionCode, bool) {
	req, ok := payload.(modbus.WriteSingleRegisterRequest)
	if !ok {
		return nil, modbus.ExcIllegalDataValue, false
	}
	if !d.store.Validate(HoldingRegisters, req.Address, 1) {
		return nil, modbus.ExcIllegalDataAddress, false
	}
	if err := d.store.SetRegisters(HoldingRegisters, req.Address, []uint16{req.Value}); err != nil {
		return nil, modbus.ExcSlaveDeviceFailure, false
	}
	return modbus.WriteSingleRegisterResponse{Address: req.Address, Value: req.Value}, 0, true
}

func (d *Dispatcher) writeMultipleCoils(payload modbus.Payload) (modbus.Payload, modbus.ExceptionCode, bool) {
	req, ok := payload.(modbus.WriteMultipleCoilsRequest)
	if !ok {
		return nil, modbus.ExcIllegalDataValue, false
	}
	qty := uint16(len(req.Values))
	if !d.store.Validate(Coils, req.Address, qty) {
		return nil, modbus.ExcIllegalDataAddress, false
	}
	if err := d.store.SetBits(Coils, req.Address, req.Values); err != nil {
		return nil, modbus.ExcSlaveDeviceFailure, false
	}
	return modbus.WriteMultipleCoilsResponse{Address: req.Address, Quantity: qty}, 0, true
}

func (d *Dispatcher) writeMultipleRegisters(payload modbus.Payload) (modbus.Payload, modbus.ExceptionCode, bool) {
	req, ok := payload.(modbus.WriteMultipleRegistersRequest)
	if !ok {
		return nil, modbus.ExcIllegalDataValue, false
	}
	qty := uint16(len(req.Values))
	if !d.store.Validate(HoldingRegisters, req.Address, qty) {
		return nil, modbus.ExcIllegalDataAddress, false
	}
	if err := d.store.SetRegisters(HoldingRegisters, req.Address, req.Values); err != nil {
		return nil, modbus.ExcSlaveDeviceFailure, false
	}
	return modbus.WriteMultipleRegistersResponse{Address: req.Address, Quantity: qty}, 0, true
}

func (d *Dispatcher) maskWriteRegister(payload modbus.Payload) (modbus.Payload, modbus.ExceptionCode, bool) {
	req, ok := payload.(modbus.MaskWriteRegisterRequest)
	if !ok {
		return nil, modbus.ExcIllegalDataValue, false
	}
	if !d.store.Validate(HoldingRegisters, req.Address, 1) {
		return nil, modbus.ExcIllegalDataAddress, false
	}
	current, err := d.store.GetRegisters(HoldingRegisters, req.Address, 1)
	if err != nil {
		return nil, modbus.ExcSlaveDeviceFailure, false
	}
	newValue := modbus.ApplyMask(current[0], req.And, req.Or)
	if err := d.store.SetRegisters(HoldingRegisters, req.Address, []uint16{newValue}); err != nil {
		return nil, modbus.ExcSlaveDeviceFailure, false
	}
	return modbus.MaskWriteRegisterResponse{Address: req.Address, And: req.And, Or: req.Or}, 0, true
}

func (d *Dispatcher) readWriteMultipleRegisters(payload modbus.Payload) (modbus.Payload, modbus.ExceptionCode, bool) {
	req, ok := payload.(modbus.ReadWriteMultipleRegistersRequest)
	if !ok {
		return nil, modbus.ExcIllegalDataValue, false
	}
	if !d.store.Validate(HoldingRegisters, req.WriteAddress, uint16(len(req.WriteValues))) {
		return nil, modbus.ExcIllegalDataAddress, false
	}
	if !d.store.Validate(HoldingRegisters, req.ReadAddress, req.ReadQuantity) {
		return nil, modbus.ExcIllegalDataAddress, false
	}
	if err := d.store.SetRegisters(HoldingRegisters, req.WriteAddress, req.WriteValues); err != nil {
		return nil, modbus.ExcSlaveDeviceFailure, false
	}
	values, err := d.store.GetRegisters(HoldingRegisters, req.ReadAddress, req.ReadQuantity)
	if err != nil {
		return nil, modbus.ExcSlaveDeviceFailure, false
	}
	return modbus.ReadWriteMultipleRegistersResponse{Values: values}, 0, true
}

func (d *Dispatcher) reportSlaveID() (modbus.Payload, modbus.ExceptionCode, bool) {
	if d.identity == nil {
		return nil, modbus.ExcIllegalFunction, false
	}
	return d.identity.reportSlaveIDResponse(), 0, true
}

func (d *Dispatcher) readDeviceIdentification(payload modbus.Payload) (modbus.Payload, modbus.ExceptionCode, bool) {
	req, ok := payload.(modbus.ReadDeviceIdentificationRequest)
	if !ok {
		return nil, modbus.ExcIllegalDataValue, false
	}
	if d.identity == nil {
		return nil, modbus.ExcIllegalFunction, false
	}
	resp, err := d.identity.readDeviceIdentificationResponse(req.ReadDeviceIDCode, req.ObjectID)
	if err != nil {
		return nil, modbus.ExcIllegalDataAddress, false
	}
	return resp, 0, true
}

// exceptionFrame builds the wire bytes for a well-formed exception
// response, or nil on a broadcast request.
func (d *Dispatcher) exceptionFrame(framer modbus.Framer, unitID uint8, tid uint16, fc modbus.FunctionCode, code modbus.ExceptionCode, broadcast bool) []byte {
	if broadcast {
		return nil
	}
	pdu := modbus.PDU{FunctionCode: fc, Payload: modbus.ExceptionPDU{RequestFunctionCode: fc, ExceptionCode: code}}
	pduBytes, err := modbus.Encode(pdu)
	if err != nil {
		d.logger.Error("failed to encode exception response", zap.Error(err))
		return nil
	}
	adu, err := framer.Build(pduBytes, unitID, tid)
	if err != nil {
		d.logger.Error("failed to build exception frame", zap.Error(err))
		return nil
	}
	return adu
}
