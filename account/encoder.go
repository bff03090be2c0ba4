package account

import (
	"encoding/binary"
	"errors"
	"math"
)

const recordVersion = 1

// ErrCorruptRecord is an exported constant or variable used by the authentication engine.
var ErrCorruptRecord = errors.New("corrupt session record")

// EncodeRecord serializes a [SessionRecord] to the length-prefixed binary
// layout the store's Lua scripts parse in place:
//
//	[1] version
//	[2] token length (uint16 BE)
//	[n] token
//	[2] device length (uint16 BE)
//	[n] device
//	[8] created-at unix seconds (int64 BE)
func EncodeRecord(rec SessionRecord) ([]byte, error) {
	if len(rec.Token) == 0 || len(rec.Token) > math.MaxUint16 {
		return nil, ErrCorruptRecord
	}
	if len(rec.DeviceInfo) > math.MaxUint16 {
		return nil, ErrCorruptRecord
	}

	out := make([]byte, 0, 1+2+len(rec.Token)+2+len(rec.DeviceInfo)+8)
	out = append(out, recordVersion)
	out = binary.BigEndian.AppendUint16(out, uint16(len(rec.Token)))
	out = append(out, rec.Token...)
	out = binary.BigEndian.AppendUint16(out, uint16(len(rec.DeviceInfo)))
	out = append(out, rec.DeviceInfo...)
	out = binary.BigEndian.AppendUint64(out, uint64(rec.CreatedAt))
	return out, nil
}

// DecodeRecord parses a binary session record produced by [EncodeRecord].
func DecodeRecord(data []byte) (SessionRecord, error) {
	var rec SessionRecord

	if len(data) < 1+2 {
		return rec, ErrCorruptRecord
	}
	if data[0] != recordVersion {
		return rec, ErrCorruptRecord
	}

	idx := 1
	tokenLen := int(binary.BigEndian.Uint16(data[idx:]))
	idx += 2
	if len(data) < idx+tokenLen+2 {
		return rec, ErrCorruptRecord
	}
	rec.Token = string(data[idx : idx+tokenLen])
	idx += tokenLen

	deviceLen := int(binary.BigEndian.Uint16(data[idx:]))
	idx += 2
	if len(data) < idx+deviceLen+8 {
		return rec, ErrCorruptRecord
	}
	rec.DeviceInfo = string(data[idx : idx+deviceLen])
	idx += deviceLen

	rec.CreatedAt = int64(binary.BigEndian.Uint64(data[idx:]))
	return rec, nil
}
