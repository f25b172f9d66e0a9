package cmd

import "testing"

func TestSetupSyncConnMarshalLayout(t *testing.T) {
	c := SetupSyncConn{
		ConnectionHandle:     0x0042,
		TransmitBandwidth:    8000,
		ReceiveBandwidth:     8000,
		MaxLatency:           0xFFFF,
		VoiceSetting:         VoiceSettingCVSD,
		RetransmissionEffort: 0x02,
		PacketType:           0x0380,
	}
	b := make([]byte, c.Len())
	if err := c.Marshal(b); err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	want := []byte{
		0x42, 0x00, // ConnectionHandle
		0x40, 0x1F, 0x00, 0x00, // TransmitBandwidth (8000)
		0x40, 0x1F, 0x00, 0x00, // ReceiveBandwidth (8000)
		0xFF, 0xFF, // MaxLatency
		0x60, 0x00, // VoiceSetting (CVSD)
		0x02,       // RetransmissionEffort
		0x80, 0x03, // PacketType
	}
	if len(b) != len(want) {
		t.Fatalf("len = %d, want %d", len(b), len(want))
	}
	for i := range want {
		if b[i] != want[i] {
			t.Fatalf("byte %d = %#02x, want %#02x (full: %x)", i, b[i], want[i], b)
		}
	}
}

func TestSetupSyncConnOpCode(t *testing.T) {
	c := SetupSyncConn{}
	// OGF 0x01 (Link Control) << 10 | OCF 0x0028.
	if got, want := c.OpCode(), 0x0428; got != want {
		t.Fatalf("OpCode() = %#04x, want %#04x", got, want)
	}
}

func TestRejectSyncConnReqMarshal(t *testing.T) {
	c := RejectSyncConnReq{
		BDAddr: [6]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06},
		Reason: 0x0D,
	}
	b := make([]byte, c.Len())
	if err := c.Marshal(b); err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x0D}
	if len(b) != len(want) {
		t.Fatalf("len = %d, want %d", len(b), len(want))
	}
	for i := range want {
		if b[i] != want[i] {
			t.Fatalf("byte %d = %#02x, want %#02x", i, b[i], want[i])
		}
	}
}

func TestSetupSyncConnMarshalShortBuffer(t *testing.T) {
	c := SetupSyncConn{}
	b := make([]byte, c.Len()-1)
	if err := c.Marshal(b); err == nil {
		t.Fatal("expected a short-buffer error")
	}
}
