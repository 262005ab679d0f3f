package modbus

import "encoding/binary"

func init() {
	registerDecoder(FuncCodeReadFileRecord, RoleRequest, decodeReadFileRecordRequest)
	registerDecoder(FuncCodeReadFileRecord, RoleResponse, decodeReadFileRecordResponse)
	registerDecoder(FuncCodeWriteFileRecord, RoleRequest, decodeWriteFileRecordRequest)
	registerDecoder(FuncCodeWriteFileRecord, RoleResponse, decodeWriteFileRecordRequest)
}

// FileRecordRef addresses one sub-request within FC 20/21's reference list.
// Type is always 6 on the wire; RecordLength is in registers.
type FileRecordRef struct {
	FileNumber   uint16
	RecordNumber uint16
	RecordLength uint16
}

const fileRecordRefType = 6

// ReadFileRecordRequest (FC 20).
type ReadFileRecordRequest struct {
	Refs []FileRecordRef
}

func (ReadFileRecordRequest) isPayload() {}

func (r ReadFileRecordRequest) encodeBody() ([]byte, error) {
	body := make([]byte, 1+7*len(r.Refs))
	body[0] = byte(7 * len(r.Refs))
	for i, ref := range r.Refs {
		off := 1 + i*7
		body[off] = fileRecordRefType
		binary.BigEndian.PutUint16(body[off+1:off+3], ref.FileNumber)
		binary.BigEndian.PutUint16(body[off+3:off+5], ref.RecordNumber)
		binary.BigEndian.PutUint16(body[off+5:off+7], ref.RecordLength)
	}
	return body, nil
}

func decodeReadFileRecordRequest(data []byte) (Payload, error) {
	if len(data) < 1 {
		return nil, newError(KindDecode, "read file record request: missing byte count")
	}
	bc := int(data[0])
	if len(data)-1 != bc || bc%7 != 0 {
		return nil, newError(KindDecode, "read file record request: byte count %d invalid", bc)
	}
	refs := make([]FileRecordRef, bc/7)
	for i := range refs {
		off := 1 + i*7
		if data[off] != fileRecordRefType {
			return nil, newError(KindDecode, "read file record request: reference type %d != 6", data[off])
		}
		refs[i] = FileRecordRef{
			FileNumber:   binary.BigEndian.Uint16(data[off+1 : off+3]),
			RecordNumber: binary.BigEndian.Uint16(data[off+3 : off+5]),
			RecordLength: binary.BigEndian.Uint16(data[off+5 : off+7]),
		}
	}
	return ReadFileRecordRequest{Refs: refs}, nil
}

// FileRecordData is one sub-response within FC 20's response list.
type FileRecordData struct {
	Data []uint16
}

type ReadFileRecordResponse struct {
	Records []FileRecordData
}

func (ReadFileRecordResponse) isPayload() {}

func (r ReadFileRecordResponse) encodeBody() ([]byte, error) {
	var body []byte
	for _, rec := range r.Records {
		sub := make([]byte, 2+2*len(rec.Data))
		sub[0] = byte(1 + 2*len(rec.Data)) // file resp length, includes the reference type byte
		sub[1] = fileRecordRefType
		copy(sub[2:], packRegisters(rec.Data))
		body = append(body, sub...)
	}
	out := make([]byte, 1+len(body))
	out[0] = byte(len(body))
	copy(out[1:], body)
	return out, nil
}

func decodeReadFileRecordResponse(data []byte) (Payload, error) {
	if len(data) < 1 {
		return nil, newError(KindDecode, "read file record response: missing byte count")
	}
	bc := int(data[0])
	if len(data)-1 != bc {
		return nil, newError(KindDecode, "read file record response: byte count %d does not match trailing %d bytes", bc, len(data)-1)
	}
	body := data[1:]
	var records []FileRecordData
	for len(body) > 0 {
		if len(body) < 2 {
			return nil, newError(KindDecode, "read file record response: truncated sub-record")
		}
		subLen := int(body[0])
		if len(body) < 1+subLen {
			return nil, newError(KindDecode, "read file record response: sub-record length %d exceeds remaining body", subLen)
		}
		regData := body[2 : 1+subLen]
		records = append(records, FileRecordData{Data: unpackRegisters(regData)})
		body = body[1+subLen:]
	}
	return ReadFileRecordResponse{Records: records}, nil
}

// WriteFileRecordRequest (FC 21): response is an exact echo of the request.
type FileRecordWrite struct {
	Ref  FileRecordRef
	Data []uint16
}

type WriteFileRecordRequest struct {
	Writes []FileRecordWrite
}

func (WriteFileRecordRequest) isPayload() {}

func (r WriteFileRecordRequest) encodeBody() ([]byte, error) {
	var body []byte
	for _, w := range r.Writes {
		sub := make([]byte, 7+2*len(w.Data))
		sub[0] = fileRecordRefType
		binary.BigEndian.PutUint16(sub[1:3], w.Ref.FileNumber)
		binary.BigEndian.PutUint16(sub[3:5], w.Ref.RecordNumber)
		binary.BigEndian.PutUint16(sub[5:7], uint16(len(w.Data)))
		copy(sub[7:], packRegisters(w.Data))
		body = append(body, sub...)
	}
	out := make([]byte, 1+len(body))
	out[0] = byte(len(body))
	copy(out[1:], body)
	return out, nil
}

func decodeWriteFileRecordRequest(data []byte) (Payload, error) {
	if len(data) < 1 {
		return nil, newError(KindDecode, "write file record request: missing byte count")
	}
	bc := int(data[0])
	if len(data)-1 != bc {
		return nil, newError(KindDecode, "write file record request: byte count %d does not match trailing %d bytes", bc, len(data)-1)
	}
	body := data[1:]
	var writes []FileRecordWrite
	for len(body) > 0 {
		if len(body) < 7 {
			return nil, newError(KindDecode, "write file record request: truncated sub-write")
		}
		if body[0] != fileRecordRefType {
			return nil, newError(KindDecode, "write file record request: reference type %d != 6", body[0])
		}
		recLen := binary.BigEndian.Uint16(body[5:7])
		end := 7 + int(recLen)*2
		if len(body) < end {
			return nil, newError(KindDecode, "write file record request: sub-write length exceeds remaining body")
		}
		writes = append(writes, FileRecordWrite{
			Ref: FileRecordRef{
				FileNumber:   binary.BigEndian.Uint16(body[1:3]),
				RecordNumber: binary.BigEndian.Uint16(body[3:5]),
				RecordLength: recLen,
			},
			Data: unpackRegisters(body[7:end]),
		})
		body = body[end:]
	}
	return WriteFileRecordRequest{Writes: writes}, nil
}
