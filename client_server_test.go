package modbus_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/graintech/modbus"
	"github.com/graintech/modbus/server"
)

// loopbackTransport is a byte-stream modbus.Transport backed by channels,
// pairing with another loopbackTransport to link a Client directly to a
// server loop without a real socket.
type loopbackTransport struct {
	out    chan []byte
	in     chan []byte
	mu     sync.Mutex
	closed bool
}

func newLoopbackPair() (*loopbackTransport, *loopbackTransport) {
	a := &loopbackTransport{out: make(chan []byte, 16), in: make(chan []byte, 16)}
	b := &loopbackTransport{out: a.in, in: a.out}
	return a, b
}

func (p *loopbackTransport) Send(data []byte) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return io.ErrClosedPipe
	}
	p.out <- append([]byte(nil), data...)
	return nil
}

func (p *loopbackTransport) Recv() ([]byte, error) {
	chunk, ok := <-p.in
	if !ok {
		return nil, io.EOF
	}
	return chunk, nil
}

func (p *loopbackTransport) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.out)
	}
	return nil
}

func (p *loopbackTransport) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed
}

func newLiveClient(t *testing.T, store server.DataStore) (*modbus.Client, func()) {
	t.Helper()
	return newLiveClientWithOptions(t, store, nil, modbus.DefaultOptions())
}

// newLiveClientWithOptions is newLiveClient plus a hook to register custom
// function handlers on the server's Dispatcher and pass non-default Options
// (e.g. a custom function codec) to the client.
func newLiveClientWithOptions(t *testing.T, store server.DataStore, registerCustom func(*server.Dispatcher), opts modbus.Options) (*modbus.Client, func()) {
	t.Helper()
	dispatcher := server.NewDispatcher(store, nil, false, nil)
	if registerCustom != nil {
		registerCustom(dispatcher)
	}

	clientSide, serverSide := newLoopbackPair()
	serverFramer, err := modbus.NewFramer(modbus.FramingSocket, modbus.RoleRequest)
	if err != nil {
		t.Fatalf("NewFramer: %v", err)
	}
	go server.ServeConn(serverSide, serverFramer, dispatcher, false, nil)

	client, err := modbus.NewClient(clientSide, modbus.FramingSocket, false, opts, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	client.SetUnitID(1)

	cleanup := func() {
		client.Close()
		clientSide.Close()
		serverSide.Close()
	}
	return client, cleanup
}

func TestClientReadWriteHoldingRegisters(t *testing.T) {
	store := server.NewSequentialDataStore(0, 0, 10, 0)
	client, cleanup := newLiveClient(t, store)
	defer cleanup()

	if err := client.WriteSingleRegister(5, 777); err != nil {
		t.Fatalf("WriteSingleRegister: %v", err)
	}
	got, err := client.ReadHoldingRegisters(5, 1)
	if err != nil {
		t.Fatalf("ReadHoldingRegisters: %v", err)
	}
	if got[0] != 777 {
		t.Fatalf("got %d, want 777", got[0])
	}
}

func TestClientReadUint32WordOrder(t *testing.T) {
	store := server.NewSequentialDataStore(0, 0, 10, 0)
	// 0x11223344 laid out on the wire as two big-endian registers.
	if err := store.SetRegisters(server.HoldingRegisters, 0, []uint16{0x1122, 0x3344}); err != nil {
		t.Fatalf("SetRegisters: %v", err)
	}
	client, cleanup := newLiveClient(t, store)
	defer cleanup()

	got, err := client.ReadUint32(0, modbus.BigEndian)
	if err != nil {
		t.Fatalf("ReadUint32: %v", err)
	}
	if got != 0x11223344 {
		t.Fatalf("got %#x, want 0x11223344", got)
	}
}

func TestClientIllegalDataAddressSurfacesAsException(t *testing.T) {
	store := server.NewSequentialDataStore(0, 0, 2, 0)
	client, cleanup := newLiveClient(t, store)
	defer cleanup()

	_, err := client.ReadHoldingRegisters(50, 1)
	if err == nil {
		t.Fatalf("expected an error reading an out-of-range address")
	}
	modErr, ok := err.(*modbus.Error)
	if !ok {
		t.Fatalf("error is %T, want *modbus.Error", err)
	}
	if modErr.Kind != modbus.KindException {
		t.Fatalf("Kind = %v, want KindException", modErr.Kind)
	}
}

func TestClientCustomFunctionCodecRoundTripsThroughDispatcher(t *testing.T) {
	const vendorFC = modbus.FunctionCode(0x64)
	codec := modbus.CustomFunctionCodec{
		EncodeRequest: func(p modbus.Payload) ([]byte, error) {
			return []byte{0x2A}, nil
		},
		DecodeResponse: func(data []byte) (modbus.Payload, error) {
			return modbus.RawPDU{Data: data}, nil
		},
	}
	opts := modbus.NewOptions(modbus.WithCustomFunction(vendorFC, codec))

	store := server.NewSequentialDataStore(0, 0, 2, 0)
	client, cleanup := newLiveClientWithOptions(t, store, func(d *server.Dispatcher) {
		d.RegisterFunction(vendorFC, func(unitID uint8, req modbus.Payload) (modbus.Payload, error) {
			raw, ok := req.(modbus.RawPDU)
			if !ok || len(raw.Data) != 1 || raw.Data[0] != 0x2A {
				return nil, errors.New("unexpected vendor request body")
			}
			return modbus.RawPDU{Data: []byte{0x99}}, nil
		})
	}, opts)
	defer cleanup()

	resp, err := client.Do(context.Background(), 1, modbus.PDU{FunctionCode: vendorFC, Payload: modbus.RawPDU{}})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	body, ok := resp.Payload.(modbus.RawPDU)
	if !ok || len(body.Data) != 1 || body.Data[0] != 0x99 {
		t.Fatalf("response was not decoded through the registered custom codec: %+v", resp.Payload)
	}
}

func TestClientDoHonorsContextCancellation(t *testing.T) {
	store := server.NewSequentialDataStore(0, 0, 2, 0)
	client, cleanup := newLiveClient(t, store)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	req, _ := modbus.NewReadRegistersRequest(0, 1)
	_, err := client.Do(ctx, 1, modbus.PDU{FunctionCode: modbus.FuncCodeReadHoldingRegisters, Payload: req})
	if err != modbus.ErrCancelled {
		t.Fatalf("got %v, want ErrCancelled", err)
	}
}
