package modbus

// Transport is the minimal byte-stream collaborator the core consumes.
// Socket creation, TLS handshakes and serial port setup are deliberately
// outside this repository — callers hand in anything satisfying this
// interface, typically a small wrapper around a net.Conn or a serial port.
type Transport interface {
	// Send enqueues data for transmission, returning once it has been
	// handed to the OS (not once it has been acknowledged).
	Send(data []byte) error
	// Recv delivers the next opaque chunk of bytes. It returns io.EOF (or
	// an error wrapping it) when the peer has closed the connection.
	Recv() ([]byte, error)
	Close() error
	IsOpen() bool
}
