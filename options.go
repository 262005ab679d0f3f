package modbus

import "time"

// Options is the values-only configuration record the core recognizes.
// It is never populated from flags — CLI parsing stays an external
// concern — and is built with functional options, a
// DefaultRTUConfig-style construction.
type Options struct {
	Timeout               time.Duration
	Retries               int
	BroadcastEnable       bool
	BroadcastTurnaround   time.Duration
	IgnoreMissingSlaves   bool
	StrictTiming          bool
	HandleLocalEcho       bool
	CustomFunctions       map[FunctionCode]CustomFunctionCodec
}

// CustomFunctionCodec lets a caller register an encoder/decoder pair for a
// vendor function code, the one documented extension hook this codec
// permits beyond the standard table.
type CustomFunctionCodec struct {
	EncodeRequest  func(Payload) ([]byte, error)
	DecodeRequest  func([]byte) (Payload, error)
	EncodeResponse func(Payload) ([]byte, error)
	DecodeResponse func([]byte) (Payload, error)
}

// DefaultOptions returns the conservative defaults used when a caller
// doesn't override them.
func DefaultOptions() Options {
	return Options{
		Timeout:             time.Second,
		Retries:             3,
		BroadcastEnable:     false,
		BroadcastTurnaround:  100 * time.Millisecond,
		IgnoreMissingSlaves: false,
		StrictTiming:        false,
		HandleLocalEcho:     false,
	}
}

// Option mutates an Options record under construction.
type Option func(*Options)

func WithTimeout(d time.Duration) Option           { return func(o *Options) { o.Timeout = d } }
func WithRetries(n int) Option                     { return func(o *Options) { o.Retries = n } }
func WithBroadcastEnable(enable bool) Option       { return func(o *Options) { o.BroadcastEnable = enable } }
func WithBroadcastTurnaround(d time.Duration) Option {
	return func(o *Options) { o.BroadcastTurnaround = d }
}
func WithIgnoreMissingSlaves(v bool) Option { return func(o *Options) { o.IgnoreMissingSlaves = v } }
func WithStrictTiming(v bool) Option        { return func(o *Options) { o.StrictTiming = v } }
func WithHandleLocalEcho(v bool) Option     { return func(o *Options) { o.HandleLocalEcho = v } }
func WithCustomFunction(fc FunctionCode, codec CustomFunctionCodec) Option {
	return func(o *Options) {
		if o.CustomFunctions == nil {
			o.CustomFunctions = make(map[FunctionCode]CustomFunctionCodec)
		}
		o.CustomFunctions[fc] = codec
	}
}

// NewOptions applies opts over DefaultOptions.
func NewOptions(opts ...Option) Options {
	o := DefaultOptions()
	for _, apply := range opts {
		apply(&o)
	}
	return o
}

// validateFramingTransport rejects nonsensical (Framing, isSerial) pairings
// instead of silently coercing them: Socket/TLS framing requires a
// non-serial transport, and RTU/ASCII/Binary require a serial one.
func validateFramingTransport(f Framing, isSerialTransport bool) error {
	if f.IsSerial() != isSerialTransport {
		return newError(KindFraming, "framing %v is not valid over a %s transport", f, transportKindString(isSerialTransport))
	}
	return nil
}

func transportKindString(isSerial bool) string {
	if isSerial {
		return "serial"
	}
	return "packet/stream"
}
