package modbus

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Client is the blocking façade: it drives its own
// read loop and timer over a Transport, and lets callers issue one request
// at a time and block for the matched response. Internally it is a thin
// driver around TransactionManager — the reactor does the actual protocol
// work; Client's only job is turning "wait for my channel" into a normal
// function call.
type Client struct {
	transport Transport
	framer    Framer
	txm       *TransactionManager
	opts      Options
	logger    *zap.Logger

	unitMu sync.Mutex
	unitID uint8

	closeOnce sync.Once
	closed    chan struct{}
	readDone  chan struct{}
}

// NewClient builds a Client over transport using framing. transportIsSerial
// must reflect what transport actually is (a serial port vs a stream
// socket): Socket/TLS framing over a serial transport, or RTU/ASCII/Binary
// framing over a packet transport, is rejected rather than silently
// coerced.
func NewClient(transport Transport, framing Framing, transportIsSerial bool, opts Options, logger *zap.Logger) (*Client, error) {
	if err := validateFramingTransport(framing, transportIsSerial); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	framer, err := NewFramer(framing, RoleResponse)
	if err != nil {
		return nil, err
	}

	c := &Client{
		transport: transport,
		framer:    framer,
		opts:      opts,
		logger:    logger,
		unitID:    1,
		closed:    make(chan struct{}),
		readDone:  make(chan struct{}),
	}
	c.txm = NewTransactionManager(framer, framing.IsSerial(), opts.BroadcastTurnaround, transport.Send, logger, nil, opts.CustomFunctions)

	go c.readLoop()
	go c.tickLoop()
	return c, nil
}

// SetUnitID sets the unit id used by the typed convenience methods that
// don't take one explicitly (mirrors a per-handler
// SetSlaveId, but a Client has no handler to mutate).
func (c *Client) SetUnitID(id uint8) {
	c.unitMu.Lock()
	c.unitID = id
	c.unitMu.Unlock()
}

func (c *Client) currentUnitID() uint8 {
	c.unitMu.Lock()
	defer c.unitMu.Unlock()
	return c.unitID
}

// readLoop continuously pulls chunks off the transport and feeds the
// transaction manager, until the transport reports closed or errors.
func (c *Client) readLoop() {
	defer close(c.readDone)
	for {
		chunk, err := c.transport.Recv()
		if err != nil {
			c.txm.Close()
			return
		}
		if len(chunk) > 0 {
			c.txm.OnBytes(chunk)
		}
		select {
		case <-c.closed:
			return
		default:
		}
	}
}

// tickLoop periodically advances retry/timeout/broadcast-turnaround
// bookkeeping. The interval is a fraction of the configured timeout so
// deadlines aren't missed by more than that fraction.
func (c *Client) tickLoop() {
	interval := c.opts.Timeout / 10
	if interval <= 0 || interval > 50*time.Millisecond {
		interval = 20 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.closed:
			return
		case now := <-ticker.C:
			c.txm.OnTick(now)
		}
	}
}

// Close shuts down the read/tick loops and fails any outstanding
// transactions with ConnectionClosed. It does not close the underlying
// Transport — callers that own the Transport close it themselves.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.txm.Close()
	})
	return nil
}

// Do submits req addressed to unitID and blocks until it completes,
// honoring ctx cancellation. A well
// formed Modbus exception response is returned as (PDU, *Error) with
// Kind == KindException, not merely a nil PDU.
func (c *Client) Do(ctx context.Context, unitID uint8, req PDU) (PDU, error) {
	tid, resultCh, err := c.txm.Submit(req, unitID, c.opts.Timeout, c.opts.Retries)
	if err != nil {
		return PDU{}, err
	}
	select {
	case res := <-resultCh:
		return res.PDU, res.Err
	case <-ctx.Done():
		c.txm.Cancel(tid)
		return PDU{}, ErrCancelled
	case <-c.closed:
		return PDU{}, ErrConnectionClosed
	}
}

// call is the convenience-method entry point: it uses the Client's current
// default unit id and a background context, matching the
// synchronous ReadCoils/WriteSingleRegister/etc. call shape.
func (c *Client) call(req PDU) (PDU, error) {
	return c.Do(context.Background(), c.currentUnitID(), req)
}

// ReadCoils performs function code 1.
func (c *Client) ReadCoils(address, quantity uint16) ([]bool, error) {
	req, err := NewReadBitsRequest(address, quantity)
	if err != nil {
		return nil, err
	}
	resp, err := c.call(PDU{FunctionCode: FuncCodeReadCoils, Payload: req})
	if err != nil {
		return nil, err
	}
	body, ok := resp.Payload.(ReadBitsResponse)
	if !ok {
		return nil, newError(KindDecode, "unexpected payload type %T for read coils", resp.Payload)
	}
	return body.Values[:quantity], nil
}

// ReadDiscreteInputs performs function code 2.
func (c *Client) ReadDiscreteInputs(address, quantity uint16) ([]bool, error) {
	req, err := NewReadBitsRequest(address, quantity)
	if err != nil {
		return nil, err
	}
	resp, err := c.call(PDU{FunctionCode: FuncCodeReadDiscreteInputs, Payload: req})
	if err != nil {
		return nil, err
	}
	body, ok := resp.Payload.(ReadBitsResponse)
	if !ok {
		return nil, newError(KindDecode, "unexpected payload type %T for read discrete inputs", resp.Payload)
	}
	return body.Values[:quantity], nil
}

// ReadHoldingRegisters performs function code 3.
func (c *Client) ReadHoldingRegisters(address, quantity uint16) ([]uint16, error) {
	return c.readRegisters(FuncCodeReadHoldingRegisters, address, quantity)
}

// ReadInputRegisters performs function code 4.
func (c *Client) ReadInputRegisters(address, quantity uint16) ([]uint16, error) {
	return c.readRegisters(FuncCodeReadInputRegisters, address, quantity)
}

func (c *Client) readRegisters(fc FunctionCode, address, quantity uint16) ([]uint16, error) {
	req, err := NewReadRegistersRequest(address, quantity)
	if err != nil {
		return nil, err
	}
	resp, err := c.call(PDU{FunctionCode: fc, Payload: req})
	if err != nil {
		return nil, err
	}
	body, ok := resp.Payload.(ReadRegistersResponse)
	if !ok {
		return nil, newError(KindDecode, "unexpected payload type %T for read registers", resp.Payload)
	}
	return body.Values, nil
}

// WriteSingleCoil performs function code 5.
func (c *Client) WriteSingleCoil(address uint16, value bool) error {
	req := WriteSingleCoilRequest{Address: address, Value: value}
	_, err := c.call(PDU{FunctionCode: FuncCodeWriteSingleCoil, Payload: req})
	return err
}

// WriteSingleRegister performs function code 6.
func (c *Client) WriteSingleRegister(address, value uint16) error {
	req := WriteSingleRegisterRequest{Address: address, Value: value}
	_, err := c.call(PDU{FunctionCode: FuncCodeWriteSingleRegister, Payload: req})
	return err
}

// ReadExceptionStatus performs function code 7 (serial-only diagnostic).
func (c *Client) ReadExceptionStatus() (byte, error) {
	resp, err := c.call(PDU{FunctionCode: FuncCodeReadExceptionStatus, Payload: ReadExceptionStatusRequest{}})
	if err != nil {
		return 0, err
	}
	body, ok := resp.Payload.(ReadExceptionStatusResponse)
	if !ok {
		return 0, newError(KindDecode, "unexpected payload type %T for read exception status", resp.Payload)
	}
	return body.Status, nil
}

// WriteMultipleCoils performs function code 15.
func (c *Client) WriteMultipleCoils(address uint16, values []bool) (uint16, error) {
	req := WriteMultipleCoilsRequest{Address: address, Values: values}
	resp, err := c.call(PDU{FunctionCode: FuncCodeWriteMultipleCoils, Payload: req})
	if err != nil {
		return 0, err
	}
	body, ok := resp.Payload.(WriteMultipleCoilsResponse)
	if !ok {
		return 0, newError(KindDecode, "unexpected payload type %T for write multiple coils", resp.Payload)
	}
	return body.Quantity, nil
}

// WriteMultipleRegisters performs function code 16.
func (c *Client) WriteMultipleRegisters(address uint16, values []uint16) (uint16, error) {
	req := WriteMultipleRegistersRequest{Address: address, Values: values}
	resp, err := c.call(PDU{FunctionCode: FuncCodeWriteMultipleRegisters, Payload: req})
	if err != nil {
		return 0, err
	}
	body, ok := resp.Payload.(WriteMultipleRegistersResponse)
	if !ok {
		return 0, newError(KindDecode, "unexpected payload type %T for write multiple registers", resp.Payload)
	}
	return body.Quantity, nil
}

// MaskWriteRegister performs function code 22.
func (c *Client) MaskWriteRegister(address, andMask, orMask uint16) error {
	req := MaskWriteRegisterRequest{Address: address, And: andMask, Or: orMask}
	_, err := c.call(PDU{FunctionCode: FuncCodeMaskWriteRegister, Payload: req})
	return err
}

// ReadWriteMultipleRegisters performs function code 23.
func (c *Client) ReadWriteMultipleRegisters(readAddress, readQuantity, writeAddress uint16, writeValues []uint16) ([]uint16, error) {
	req := ReadWriteMultipleRegistersRequest{
		ReadAddress:  readAddress,
		ReadQuantity: readQuantity,
		WriteAddress: writeAddress,
		WriteValues:  writeValues,
	}
	resp, err := c.call(PDU{FunctionCode: FuncCodeReadWriteMultipleRegisters, Payload: req})
	if err != nil {
		return nil, err
	}
	body, ok := resp.Payload.(ReadWriteMultipleRegistersResponse)
	if !ok {
		return nil, newError(KindDecode, "unexpected payload type %T for read/write registers", resp.Payload)
	}
	return body.Values, nil
}

// ReadFIFOQueue performs function code 24.
func (c *Client) ReadFIFOQueue(address uint16) ([]uint16, error) {
	req := ReadFIFOQueueRequest{Address: address}
	resp, err := c.call(PDU{FunctionCode: FuncCodeReadFIFOQueue, Payload: req})
	if err != nil {
		return nil, err
	}
	body, ok := resp.Payload.(ReadFIFOQueueResponse)
	if !ok {
		return nil, newError(KindDecode, "unexpected payload type %T for read FIFO queue", resp.Payload)
	}
	return body.Values, nil
}

// ReadDeviceIdentification performs function code 43/14 (MEI Read Device
// Identification), a single read-device-id-code request. Callers needing
// every object in a category page through the follow-up objects using
// MoreFollows/NextObjectID on the returned response.
func (c *Client) ReadDeviceIdentification(readDeviceIDCode byte, objectID byte) (ReadDeviceIdentificationResponse, error) {
	req := ReadDeviceIdentificationRequest{ReadDeviceIDCode: readDeviceIDCode, ObjectID: objectID}
	resp, err := c.call(PDU{FunctionCode: FuncCodeEncapsulatedInterface, Payload: req})
	if err != nil {
		return ReadDeviceIdentificationResponse{}, err
	}
	body, ok := resp.Payload.(ReadDeviceIdentificationResponse)
	if !ok {
		return ReadDeviceIdentificationResponse{}, newError(KindDecode, "unexpected payload type %T for read device identification", resp.Payload)
	}
	return body, nil
}
