package httpapi

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/keyboxlab/keyboxd/internal/keybox/actuator"
	"github.com/keyboxlab/keyboxd/internal/keybox/schedule"
	"github.com/keyboxlab/keyboxd/internal/keybox/service"
	"github.com/keyboxlab/keyboxd/internal/keybox/store/memory"
	"github.com/keyboxlab/keyboxd/internal/keybox/types"
)

// encodeScanRequest mirrors the firmware's nanopb encoder so the decoder
// can be tested against realistic payloads.
func encodeScanRequest(m types.ScanRequest) []byte {
	var b []byte
	b = appendString(b, scanReqDeviceID, m.DeviceID)
	b = appendString(b, scanReqTag, m.Tag)
	b = appendString(b, scanReqRoom, m.Room)
	if m.DoorClosed != nil {
		b = protowire.AppendTag(b, scanReqDoorClosed, protowire.VarintType)
		var v uint64
		if *m.DoorClosed {
			v = 1
		}
		b = protowire.AppendVarint(b, v)
	}
	b = appendString(b, scanReqRequestedAt, m.RequestedAt)
	return b
}

func encodeHeartbeatRequest(m types.HeartbeatRequest) []byte {
	var b []byte
	b = appendString(b, hbReqDeviceID, m.DeviceID)
	b = appendString(b, hbReqFwVersion, m.FirmwareVersion)
	b = appendUint(b, hbReqUptimeS, m.UptimeSeconds)
	if m.DoorClosed != nil {
		b = protowire.AppendTag(b, hbReqDoor, protowire.VarintType)
		var v uint64
		if *m.DoorClosed {
			v = 1
		}
		b = protowire.AppendVarint(b, v)
	}
	if m.RSSIDbm != nil {
		b = protowire.AppendTag(b, hbReqRSSI, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(uint32(int32(*m.RSSIDbm))))
	}
	b = appendString(b, hbReqIP, m.IP)
	b = appendUint(b, hbReqFreeHeap, m.FreeHeapBytes)
	b = appendUint(b, hbReqSequence, m.Sequence)
	return b
}

func TestUnmarshalScanRequest(t *testing.T) {
	closed := true
	in := types.ScanRequest{
		DeviceID:    "kbx-205",
		Tag:         "AA112233AA",
		Room:        "205",
		DoorClosed:  &closed,
		RequestedAt: "2026-08-24T09:00:00Z",
	}

	out, err := unmarshalScanRequest(encodeScanRequest(in))
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.DeviceID != in.DeviceID || out.Tag != in.Tag || out.Room != in.Room {
		t.Errorf("string fields: got %+v", out)
	}
	if out.DoorClosed == nil || !*out.DoorClosed {
		t.Error("door_closed presence lost")
	}
	if out.RequestedAt != in.RequestedAt {
		t.Errorf("requested_at: got %q", out.RequestedAt)
	}
}

func TestUnmarshalScanRequest_AbsentOptionalStaysNil(t *testing.T) {
	out, err := unmarshalScanRequest(encodeScanRequest(types.ScanRequest{
		DeviceID: "kbx-205",
		Tag:      "AA112233AA",
	}))
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.DoorClosed != nil {
		t.Error("absent door_closed must decode to nil")
	}
}

func TestUnmarshalScanRequest_SkipsUnknownFields(t *testing.T) {
	b := encodeScanRequest(types.ScanRequest{DeviceID: "kbx-205", Tag: "AA112233AA"})
	// A future firmware field this server doesn't know about.
	b = protowire.AppendTag(b, 99, protowire.BytesType)
	b = protowire.AppendString(b, "future")

	out, err := unmarshalScanRequest(b)
	if err != nil {
		t.Fatalf("unmarshal with unknown field: %v", err)
	}
	if out.DeviceID != "kbx-205" {
		t.Errorf("device_id: got %q", out.DeviceID)
	}
}

func TestUnmarshalScanRequest_Truncated(t *testing.T) {
	b := encodeScanRequest(types.ScanRequest{DeviceID: "kbx-205", Tag: "AA112233AA"})
	if _, err := unmarshalScanRequest(b[:len(b)-3]); err == nil {
		t.Error("truncated payload must fail to decode")
	}
}

func TestUnmarshalHeartbeatRequest(t *testing.T) {
	closed := false
	rssi := -61
	in := types.HeartbeatRequest{
		DeviceID:        "kbx-205",
		FirmwareVersion: "1.4.2",
		UptimeSeconds:   86400,
		DoorClosed:      &closed,
		RSSIDbm:         &rssi,
		IP:              "10.0.4.17",
		FreeHeapBytes:   181232,
		Sequence:        1207,
	}

	out, err := unmarshalHeartbeatRequest(encodeHeartbeatRequest(in))
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.DeviceID != in.DeviceID || out.FirmwareVersion != in.FirmwareVersion || out.IP != in.IP {
		t.Errorf("string fields: got %+v", out)
	}
	if out.UptimeSeconds != in.UptimeSeconds || out.FreeHeapBytes != in.FreeHeapBytes || out.Sequence != in.Sequence {
		t.Errorf("varint fields: got %+v", out)
	}
	if out.DoorClosed == nil || *out.DoorClosed {
		t.Error("door_closed=false presence lost")
	}
	if out.RSSIDbm == nil || *out.RSSIDbm != -61 {
		t.Errorf("rssi: got %v", out.RSSIDbm)
	}
}

// decodeScanResponse is the firmware-side decoder, enough of it to assert
// on responses in tests.
func decodeScanResponse(t *testing.T, data []byte) types.ScanResponse {
	t.Helper()
	var m types.ScanResponse
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			t.Fatalf("consume tag: %v", protowire.ParseError(n))
		}
		data = data[n:]

		switch typ {
		case protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				t.Fatalf("consume string: %v", protowire.ParseError(n))
			}
			data = data[n:]
			switch num {
			case scanRespReason:
				m.Reason = v
			case scanRespAction:
				m.Action = v
			case scanRespInstructor:
				m.Instructor = v
			case scanRespRoom:
				m.Room = v
			case scanRespServerTime:
				m.ServerTime = v
			}
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				t.Fatalf("consume varint: %v", protowire.ParseError(n))
			}
			data = data[n:]
			switch num {
			case scanRespOK:
				m.OK = v != 0
			case scanRespKnown:
				m.Known = v != 0
			case scanRespGranted:
				m.Granted = v != 0
			case scanRespSuppressed:
				m.Suppressed = v != 0
			case scanRespPulseMS:
				m.PulseMS = uint32(v)
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				t.Fatalf("skip field: %v", protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return m
}

func TestScanEndpoint_Binary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedules.yaml")
	const bundleYAML = `
term:
  academic_year: "2025-2026"
  semester: "1st"
rooms:
  - room: "205"
    slots:
      - days: [mon, tue, wed, thu, fri, sat, sun]
        start: "00:00"
        end: "23:59"
        instructor: "A. Reyes"
        tags: ["AA112233"]
`
	if err := os.WriteFile(path, []byte(bundleYAML), 0o644); err != nil {
		t.Fatalf("write bundle: %v", err)
	}
	bundle, err := schedule.Load(path)
	if err != nil {
		t.Fatalf("load bundle: %v", err)
	}

	logger := log.New(io.Discard, "", 0)
	registry := service.NewDeviceRegistry(memory.NewDeviceStore(map[string]string{"kbx-205": "205"}))
	srv := NewServer(Dependencies{
		Logger: logger,
		Addr:   ":0",
		AccessService: service.NewAccessService(service.AccessConfig{
			Registry:  registry,
			Schedules: schedule.NewStore(bundle),
			Locks:     actuator.NewController(5*time.Second, 10*time.Second),
			Attempts:  memory.NewAttemptStore(),
			Sessions:  memory.NewSessionStore(),
			Policy:    service.PolicySuppress,
			Logger:    logger,
		}),
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	body := encodeScanRequest(types.ScanRequest{DeviceID: "kbx-205", Tag: "AA112233AA"})
	resp, err := http.Post(ts.URL+"/v1/scan", "application/x-protobuf", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/x-protobuf" {
		t.Errorf("content-type: want application/x-protobuf, got %q", ct)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	sr := decodeScanResponse(t, raw)
	if !sr.Granted {
		t.Fatalf("expected grant, got reason %q", sr.Reason)
	}
	if sr.PulseMS != 5000 {
		t.Errorf("pulse_ms: want 5000, got %d", sr.PulseMS)
	}
	if sr.Action != service.ActionBorrow {
		t.Errorf("action: want %q, got %q", service.ActionBorrow, sr.Action)
	}
}

func TestScanEndpoint_BinaryGarbage_400(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	registry := service.NewDeviceRegistry(memory.NewDeviceStore(nil))
	srv := NewServer(Dependencies{
		Logger: logger,
		Addr:   ":0",
		AccessService: service.NewAccessService(service.AccessConfig{
			Registry:  registry,
			Schedules: schedule.NewStore(nil),
			Locks:     actuator.NewController(5*time.Second, 0),
			Attempts:  memory.NewAttemptStore(),
			Sessions:  memory.NewSessionStore(),
			Logger:    logger,
		}),
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	resp, err := http.Post(ts.URL+"/v1/scan", "application/x-protobuf", bytes.NewReader([]byte{0xFF, 0xFF, 0xFF}))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestMarshalScanResponse_ZeroValuesOmitted(t *testing.T) {
	b := marshalScanResponse(types.ScanResponse{})
	if len(b) != 0 {
		t.Errorf("all-zero response must encode empty, got %d bytes", len(b))
	}

	b = marshalScanResponse(types.ScanResponse{OK: true, Granted: true, PulseMS: 5000})
	if len(b) == 0 {
		t.Fatal("expected non-empty encoding")
	}
}
