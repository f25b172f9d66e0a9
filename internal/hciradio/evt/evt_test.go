package evt

import "testing"

func TestSynchronousConnectionCompleteUnmarshal(t *testing.T) {
	// A captured-shape Synchronous Connection Complete parameter block:
	// status 0, handle 0x0007, BD_ADDR, eSCO link type, timing fields, air mode.
	b := []byte{
		0x00,       // Status: success
		0x07, 0x00, // ConnectionHandle
		0x11, 0x22, 0x33, 0x44, 0x55, 0x66, // BDAddr
		LinkTypeESCO, // LinkType
		0x02,         // TransmitInterval
		0x01,         // RetransmitWindow
		0x3C, 0x00,   // RxPacketLength
		0x3C, 0x00, // TxPacketLength
		0x02, // AirMode (transparent)
	}

	var e SynchronousConnectionCompleteEvent
	if err := e.Unmarshal(b); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if e.Status != 0 {
		t.Fatalf("Status = %d, want 0", e.Status)
	}
	if e.ConnectionHandle != 0x0007 {
		t.Fatalf("ConnectionHandle = %#04x, want 0x0007", e.ConnectionHandle)
	}
	if e.BDAddr != ([6]byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66}) {
		t.Fatalf("BDAddr = %v, want 11:22:33:44:55:66", e.BDAddr)
	}
	if e.LinkType != LinkTypeESCO {
		t.Fatalf("LinkType = %d, want LinkTypeESCO", e.LinkType)
	}
	if e.RxPacketLength != 0x003C || e.TxPacketLength != 0x003C {
		t.Fatalf("packet lengths = %d/%d, want 60/60", e.RxPacketLength, e.TxPacketLength)
	}
	if e.Code() != SynchronousConnectionCompleteCode {
		t.Fatalf("Code() = %#02x, want %#02x", e.Code(), SynchronousConnectionCompleteCode)
	}
}

func TestSynchronousConnectionCompleteFailureStatus(t *testing.T) {
	// A non-zero status carries no meaningful handle; the adapter (see
	// internal/hciradio/socket) routes this to DiscComplete rather than
	// ConnComplete, but decoding itself must still succeed.
	b := make([]byte, 17)
	b[0] = 0x11 // HCI_ERR_PAGE_TIMEOUT-shaped failure status

	var e SynchronousConnectionCompleteEvent
	if err := e.Unmarshal(b); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if e.Status != 0x11 {
		t.Fatalf("Status = %#02x, want 0x11", e.Status)
	}
}

func TestConnectionRequestUnmarshal(t *testing.T) {
	b := []byte{
		0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, // BDAddr
		0x04, 0x02, 0x00, // ClassOfDevice
		LinkTypeSCO, // LinkType
	}
	var e ConnectionRequestEvent
	if err := e.Unmarshal(b); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if e.BDAddr != ([6]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}) {
		t.Fatalf("BDAddr = %v", e.BDAddr)
	}
	if e.LinkType != LinkTypeSCO {
		t.Fatalf("LinkType = %d, want LinkTypeSCO", e.LinkType)
	}
}
