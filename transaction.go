package modbus

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Result is delivered to a submitter's channel exactly once: either a decoded response PDU, or one of Timeout,
// ConnectionClosed, Cancelled or InvalidResponse in Err. A well-formed
// Modbus exception response is delivered with both PDU (its ExceptionPDU)
// and a KindException Err populated, since it is a valid — if negative —
// outcome rather than a transport failure.
type Result struct {
	PDU PDU
	Err error
}

// transactionRecord is the one-shot completion slot for a submitted request.
type transactionRecord struct {
	tid         uint16
	unitID      uint8
	requestFC   FunctionCode
	aduBytes    []byte // cached for retransmission
	timeout     time.Duration
	deadline    time.Time
	retriesLeft int
	broadcast   bool
	resultCh    chan Result
	done        bool
}

func (r *transactionRecord) complete(result Result) {
	if r.done {
		return
	}
	r.done = true
	r.resultCh <- result
	close(r.resultCh)
}

// TransactionManager is the per-connection reactor: it
// owns the framer's buffer, a tid -> record table, and (for half-duplex
// serial links) a FIFO of submissions waiting their turn. It is driven
// exclusively by Submit/OnBytes/OnTick/Cancel/Close — no goroutines or timers of
// its own, per the design notes' "callback pyramids for retries/timeouts"
// guidance: the caller (Client) supplies ticks.
type TransactionManager struct {
	mu sync.Mutex

	framer              Framer
	isSerial            bool
	broadcastTurnaround time.Duration
	writeFrame          func([]byte) error

	nextTID uint16
	pending map[uint16]*transactionRecord

	serialQueue  []*transactionRecord
	activeSerial *transactionRecord

	logger  *zap.Logger
	metrics *Metrics
	custom  map[FunctionCode]CustomFunctionCodec
}

// NewTransactionManager builds a manager for one connection. writeFrame is
// called with a fully built ADU whenever the manager needs to put bytes on
// the wire (initial send or retransmit); it is the only way this type
// touches the transport, keeping it transport-agnostic. custom supplies the
// Encode/Decode pair for any function code outside the built-in table
// (Options.CustomFunctions); a nil map means every request/response goes
// through the ordinary Encode/Decode registry.
func NewTransactionManager(framer Framer, isSerial bool, broadcastTurnaround time.Duration, writeFrame func([]byte) error, logger *zap.Logger, metrics *Metrics, custom map[FunctionCode]CustomFunctionCodec) *TransactionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransactionManager{
		framer:              framer,
		isSerial:            isSerial,
		broadcastTurnaround: broadcastTurnaround,
		writeFrame:          writeFrame,
		pending:             make(map[uint16]*transactionRecord),
		logger:              logger,
		metrics:             metrics,
		custom:              custom,
	}
}

// encodeRequest encodes pdu for the wire, preferring a registered custom
// codec's EncodeRequest over the built-in registry for its function code.
func (m *TransactionManager) encodeRequest(pdu PDU) ([]byte, error) {
	if codec, ok := m.custom[pdu.FunctionCode]; ok && codec.EncodeRequest != nil {
		body, err := codec.EncodeRequest(pdu.Payload)
		if err != nil {
			return nil, err
		}
		out := make([]byte, 1+len(body))
		out[0] = byte(pdu.FunctionCode)
		copy(out[1:], body)
		return out, nil
	}
	return Encode(pdu)
}

// decodeResponse decodes a response PDU, preferring a registered custom
// codec's DecodeResponse over the built-in registry for its function code.
// Exception responses always decode through the ordinary path regardless of
// any custom registration, since the exception bit overrides the function.
func (m *TransactionManager) decodeResponse(data []byte) (PDU, error) {
	if len(data) > 0 {
		fc := FunctionCode(data[0])
		if !fc.IsException() {
			if codec, ok := m.custom[fc]; ok && codec.DecodeResponse != nil {
				payload, err := codec.DecodeResponse(data[1:])
				if err != nil {
					return PDU{}, err
				}
				return PDU{FunctionCode: fc, Payload: payload}, nil
			}
		}
	}
	return Decode(data, RoleResponse)
}

// allocTID returns the next transaction id, monotonically increasing
// modulo 2^16 and skipping ids currently outstanding.
func (m *TransactionManager) allocTID() uint16 {
	for {
		m.nextTID++
		if _, inUse := m.pending[m.nextTID]; !inUse {
			return m.nextTID
		}
	}
}

// Submit encodes pdu, assigns a tid (meaningful only for Socket/TLS wire
// framing; serial links correlate purely by FIFO order), writes the ADU,
// and arms a deadline. The returned channel receives exactly one Result.
func (m *TransactionManager) Submit(pdu PDU, unitID uint8, timeout time.Duration, retries int) (uint16, <-chan Result, error) {
	pduBytes, err := m.encodeRequest(pdu)
	if err != nil {
		return 0, nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	broadcast := m.isSerial && unitID == 0
	tid := m.allocTID()
	adu, err := m.framer.Build(pduBytes, unitID, tid)
	if err != nil {
		return 0, nil, err
	}

	rec := &transactionRecord{
		tid:         tid,
		unitID:      unitID,
		requestFC:   pdu.FunctionCode,
		aduBytes:    adu,
		timeout:     timeout,
		retriesLeft: retries,
		broadcast:   broadcast,
		resultCh:    make(chan Result, 1),
	}

	if !m.isSerial {
		m.pending[tid] = rec
		rec.deadline = time.Now().Add(timeout)
		if err := m.writeFrame(adu); err != nil {
			delete(m.pending, tid)
			rec.complete(Result{Err: wrapError(KindConnectionClosed, err, "write failed")})
			return tid, rec.resultCh, nil
		}
		if m.metrics != nil {
			m.metrics.requestsSent.Inc()
		}
		return tid, rec.resultCh, nil
	}

	// Serial: strict half duplex. At most one ADU in flight; later submissions wait in FIFO order.
	m.pending[tid] = rec
	if m.activeSerial == nil {
		m.activateSerial(rec)
	} else {
		m.serialQueue = append(m.serialQueue, rec)
	}
	return tid, rec.resultCh, nil
}

// activateSerial writes rec's ADU and makes it the single in-flight serial
// transaction. Broadcasts (unit id 0) have no response: they complete
// synchronously after the write drains, followed by the mandatory
// turnaround delay — OnTick advances them to completion.
func (m *TransactionManager) activateSerial(rec *transactionRecord) {
	m.activeSerial = rec
	now := time.Now()
	if err := m.writeFrame(rec.aduBytes); err != nil {
		m.finishSerial(rec, Result{Err: wrapError(KindConnectionClosed, err, "write failed")})
		return
	}
	if m.metrics != nil {
		m.metrics.requestsSent.Inc()
	}
	if rec.broadcast {
		rec.deadline = now.Add(m.turnaround())
	} else {
		rec.deadline = now.Add(rec.timeout)
	}
}

func (m *TransactionManager) turnaround() time.Duration {
	if m.broadcastTurnaround <= 0 {
		return 100 * time.Millisecond
	}
	return m.broadcastTurnaround
}

// finishSerial completes rec. If rec is the active transaction it is
// cleared and the next queued submission (if any) is promoted; a record
// still waiting in the queue is only removed from it.
func (m *TransactionManager) finishSerial(rec *transactionRecord, result Result) {
	delete(m.pending, rec.tid)
	rec.complete(result)
	if m.activeSerial != rec {
		for i, q := range m.serialQueue {
			if q == rec {
				m.serialQueue = append(m.serialQueue[:i], m.serialQueue[i+1:]...)
				break
			}
		}
		return
	}
	m.activeSerial = nil
	if len(m.serialQueue) > 0 {
		next := m.serialQueue[0]
		m.serialQueue = m.serialQueue[1:]
		m.activateSerial(next)
	}
}

// OnBytes feeds data to the framer, extracts zero or more frames, and
// attempts to match each against a pending record.
func (m *TransactionManager) OnBytes(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.framer.Feed(data)
	for {
		res := m.framer.TryExtract()
		switch res.Status {
		case ExtractIncomplete:
			return
		case ExtractCorrupt:
			if m.metrics != nil {
				m.metrics.checksumErrors.Inc()
			}
			m.logger.Debug("discarding corrupt frame byte", zap.Int("discarded", res.BytesDiscarded))
			continue
		case ExtractFrame:
			m.matchFrame(res)
		}
	}
}

func (m *TransactionManager) matchFrame(res ExtractResult) {
	var rec *transactionRecord
	if m.isSerial {
		rec = m.activeSerial
	} else {
		rec = m.pending[res.TID]
	}
	if rec == nil {
		m.logger.Debug("dropping response with no matching transaction", zap.Uint16("tid", res.TID))
		return
	}
	if rec.unitID != res.UnitID {
		m.logger.Debug("dropping response with mismatched unit id", zap.Uint8("want", rec.unitID), zap.Uint8("got", res.UnitID))
		return
	}

	expected := rec.requestFC
	if res.FunctionCodeHint != expected && res.FunctionCodeHint != expected.WithException() {
		m.completeTransaction(rec, Result{Err: ErrInvalidResponse})
		return
	}

	pdu, err := m.decodeResponse(res.PDUBytes)
	if err != nil {
		m.completeTransaction(rec, Result{Err: err})
		return
	}

	result := Result{PDU: pdu}
	if ep, ok := pdu.Payload.(ExceptionPDU); ok {
		result.Err = NewExceptionError(ep.ExceptionCode)
	}
	if m.metrics != nil {
		m.metrics.responsesReceived.Inc()
	}
	m.completeTransaction(rec, result)
}

func (m *TransactionManager) completeTransaction(rec *transactionRecord, result Result) {
	if m.isSerial {
		m.finishSerial(rec, result)
		return
	}
	delete(m.pending, rec.tid)
	rec.complete(result)
}

// OnTick checks every outstanding record's deadline against now. Expired
// records either retransmit (retries remaining) or complete with Timeout.
func (m *TransactionManager) OnTick(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isSerial {
		m.tickSerial(now)
		return
	}
	for _, rec := range m.pending {
		if now.Before(rec.deadline) {
			continue
		}
		if rec.retriesLeft > 0 {
			rec.retriesLeft--
			rec.deadline = now.Add(rec.timeout)
			if m.metrics != nil {
				m.metrics.retries.Inc()
			}
			_ = m.writeFrame(rec.aduBytes)
			continue
		}
		delete(m.pending, rec.tid)
		rec.complete(Result{Err: ErrTimeout})
		if m.metrics != nil {
			m.metrics.timeouts.Inc()
		}
	}
}

func (m *TransactionManager) tickSerial(now time.Time) {
	rec := m.activeSerial
	if rec == nil || now.Before(rec.deadline) {
		return
	}
	if rec.broadcast {
		m.finishSerial(rec, Result{})
		return
	}
	if rec.retriesLeft > 0 {
		rec.retriesLeft--
		rec.deadline = now.Add(rec.timeout)
		if m.metrics != nil {
			m.metrics.retries.Inc()
		}
		_ = m.writeFrame(rec.aduBytes)
		return
	}
	if m.metrics != nil {
		m.metrics.timeouts.Inc()
	}
	m.finishSerial(rec, Result{Err: ErrTimeout})
}

// Cancel removes tid's record, atomically with completing its future as
// Cancelled. Any later bytes matching tid are discarded since
// the record is gone from the pending table.
func (m *TransactionManager) Cancel(tid uint16) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.pending[tid]
	if !ok {
		return false
	}
	if m.isSerial {
		m.finishSerial(rec, Result{Err: ErrCancelled})
	} else {
		delete(m.pending, tid)
		rec.complete(Result{Err: ErrCancelled})
	}
	return true
}

// Close completes every pending and queued transaction with
// ConnectionClosed, matching the "transport signals permanent failure"
// lifecycle edge.
func (m *TransactionManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for tid, rec := range m.pending {
		delete(m.pending, tid)
		rec.complete(Result{Err: ErrConnectionClosed})
	}
	for _, rec := range m.serialQueue {
		rec.complete(Result{Err: ErrConnectionClosed})
	}
	m.serialQueue = nil
	m.activeSerial = nil
}
