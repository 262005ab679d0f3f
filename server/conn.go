package server

import (
	"go.uber.org/zap"

	"github.com/graintech/modbus"
)

// ServeConn drives one connection's request/response loop: read bytes,
// extract frames via framer, dispatch each against dispatcher, write the
// response. It returns when transport.Recv returns an error (peer closed
// or transport failure), mirroring the per-connection goroutine shape of
// a typical Modbus TCP server (one net.Conn in, one loop, until EOF).
func ServeConn(transport modbus.Transport, framer modbus.Framer, dispatcher *Dispatcher, broadcastEnable bool, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
readLoop:
	for {
		chunk, err := transport.Recv()
		if err != nil {
			return err
		}
		framer.Feed(chunk)
		for {
			res := framer.TryExtract()
			switch res.Status {
			case modbus.ExtractIncomplete:
				continue readLoop
			case modbus.ExtractCorrupt:
				logger.Debug("discarding corrupt frame byte", zap.Int("discarded", res.BytesDiscarded))
				continue
			case modbus.ExtractFrame:
				adu := dispatcher.Dispatch(res, framer, broadcastEnable)
				if adu == nil {
					continue
				}
				if err := transport.Send(adu); err != nil {
					return err
				}
			}
		}
	}
}
