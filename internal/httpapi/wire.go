package httpapi

import (
	"io"
	"net/http"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/keyboxlab/keyboxd/internal/keybox/types"
)

// maxRequestBody caps the request body size for both binary and JSON
// payloads. The largest device message (an offline-log batch) stays well
// under this and everything else is a few hundred bytes.
const maxRequestBody = 16 << 10

// isBinary reports whether the device sent a protobuf payload. The
// firmware's nanopb client sets "application/x-protobuf".
func isBinary(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return ct == "application/x-protobuf" ||
		ct == "application/protobuf" ||
		ct == "application/octet-stream"
}

func readBody(r *http.Request) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
}

// Field numbers below mirror the firmware's .proto definitions and must
// not be renumbered.

// ScanRequest wire fields.
const (
	scanReqDeviceID    = 1
	scanReqTag         = 2
	scanReqRoom        = 3
	scanReqDoorClosed  = 4
	scanReqRequestedAt = 5
)

// ScanResponse wire fields.
const (
	scanRespOK         = 1
	scanRespKnown      = 2
	scanRespGranted    = 3
	scanRespSuppressed = 4
	scanRespReason     = 5
	scanRespAction     = 6
	scanRespPulseMS    = 7
	scanRespInstructor = 8
	scanRespRoom       = 9
	scanRespServerTime = 10
)

// HeartbeatRequest wire fields.
const (
	hbReqDeviceID  = 1
	hbReqFwVersion = 2
	hbReqUptimeS   = 3
	hbReqDoor      = 4
	hbReqRSSI      = 5
	hbReqIP        = 6
	hbReqFreeHeap  = 7
	hbReqSequence  = 8
)

// HeartbeatResponse wire fields.
const (
	hbRespOK         = 1
	hbRespKnown      = 2
	hbRespDeviceID   = 3
	hbRespRoom       = 4
	hbRespServerTime = 5
)

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, 1)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func marshalScanResponse(m types.ScanResponse) []byte {
	var b []byte
	b = appendBool(b, scanRespOK, m.OK)
	b = appendBool(b, scanRespKnown, m.Known)
	b = appendBool(b, scanRespGranted, m.Granted)
	b = appendBool(b, scanRespSuppressed, m.Suppressed)
	b = appendString(b, scanRespReason, m.Reason)
	b = appendString(b, scanRespAction, m.Action)
	b = appendUint(b, scanRespPulseMS, uint64(m.PulseMS))
	b = appendString(b, scanRespInstructor, m.Instructor)
	b = appendString(b, scanRespRoom, m.Room)
	b = appendString(b, scanRespServerTime, m.ServerTime)
	return b
}

func marshalHeartbeatResponse(m types.HeartbeatResponse) []byte {
	var b []byte
	b = appendBool(b, hbRespOK, m.OK)
	b = appendBool(b, hbRespKnown, m.Known)
	b = appendString(b, hbRespDeviceID, m.DeviceID)
	b = appendString(b, hbRespRoom, m.Room)
	b = appendString(b, hbRespServerTime, m.ServerTime)
	return b
}

func unmarshalScanRequest(data []byte) (types.ScanRequest, error) {
	var m types.ScanRequest
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return m, protowire.ParseError(n)
		}
		data = data[n:]

		switch {
		case typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return m, protowire.ParseError(n)
			}
			data = data[n:]
			switch num {
			case scanReqDeviceID:
				m.DeviceID = v
			case scanReqTag:
				m.Tag = v
			case scanReqRoom:
				m.Room = v
			case scanReqRequestedAt:
				m.RequestedAt = v
			}
		case typ == protowire.VarintType && num == scanReqDoorClosed:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return m, protowire.ParseError(n)
			}
			data = data[n:]
			closed := v != 0
			m.DoorClosed = &closed
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return m, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return m, nil
}

func unmarshalHeartbeatRequest(data []byte) (types.HeartbeatRequest, error) {
	var m types.HeartbeatRequest
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return m, protowire.ParseError(n)
		}
		data = data[n:]

		switch {
		case typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return m, protowire.ParseError(n)
			}
			data = data[n:]
			switch num {
			case hbReqDeviceID:
				m.DeviceID = v
			case hbReqFwVersion:
				m.FirmwareVersion = v
			case hbReqIP:
				m.IP = v
			}
		case typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return m, protowire.ParseError(n)
			}
			data = data[n:]
			switch num {
			case hbReqUptimeS:
				m.UptimeSeconds = v
			case hbReqDoor:
				closed := v != 0
				m.DoorClosed = &closed
			case hbReqRSSI:
				rssi := int(int32(v))
				m.RSSIDbm = &rssi
			case hbReqFreeHeap:
				m.FreeHeapBytes = v
			case hbReqSequence:
				m.Sequence = v
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return m, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return m, nil
}

func writeBinary(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", "application/x-protobuf")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
