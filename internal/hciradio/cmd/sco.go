package cmd

// Opcodes for the HCI Synchronous Connection command subset [Vol 2, Part E,
// 7.1], OGF 0x01 (Link Control).
const (
	opSetupSyncConn           = 0x01<<10 | 0x0028
	opAcceptSyncConnReq       = 0x01<<10 | 0x0029
	opRejectSyncConnReq       = 0x01<<10 | 0x002A
	opEnhancedSetupSyncConn   = 0x01<<10 | 0x003D
	opEnhancedAcceptSyncConn  = 0x01<<10 | 0x003E
	opDisconnect              = 0x01<<10 | 0x0006
	opWriteVoiceSettings      = 0x03<<10 | 0x0026
)

// SetupSyncConn implements Setup Synchronous Connection (0x01|0x0028)
// [Vol 2, Part E, 7.1.25].
type SetupSyncConn struct {
	ConnectionHandle     uint16
	TransmitBandwidth    uint32
	ReceiveBandwidth     uint32
	MaxLatency           uint16
	VoiceSetting         uint16
	RetransmissionEffort uint8
	PacketType           uint16
}

// OpCode returns the command's opcode.
func (c SetupSyncConn) OpCode() int { return opSetupSyncConn }

// Len returns the marshaled parameter length.
func (c SetupSyncConn) Len() int { return 17 }

// Marshal serializes the command into b.
func (c *SetupSyncConn) Marshal(b []byte) error { return marshal(c, b) }

// SetupSyncConnRP is the return parameter for SetupSyncConn (via Command
// Status, not Command Complete; present for symmetry with CommandRP).
type SetupSyncConnRP struct {
	Status uint8
}

// Unmarshal deserializes the command's return parameters.
func (rp *SetupSyncConnRP) Unmarshal(b []byte) error { return unmarshal(rp, b) }

// EnhancedSetupSyncConn implements Enhanced Setup Synchronous Connection
// (0x01|0x003D) [Vol 2, Part E, 7.1.45]. Bundles voice settings, obviating a
// separate Write Voice Settings command.
type EnhancedSetupSyncConn struct {
	ConnectionHandle     uint16
	TransmitBandwidth    uint32
	ReceiveBandwidth     uint32
	MaxLatency           uint16
	TransmitCodingFormat [5]byte
	ReceiveCodingFormat  [5]byte
	TransmitCodecFrameSize uint16
	ReceiveCodecFrameSize  uint16
	InputBandwidth         uint32
	OutputBandwidth        uint32
	InputCodingFormat      [5]byte
	OutputCodingFormat     [5]byte
	InputCodedDataSize     uint16
	OutputCodedDataSize    uint16
	InputPCMDataFormat     uint8
	OutputPCMDataFormat    uint8
	InputPCMSamplePayloadMSBPosition  uint8
	OutputPCMSamplePayloadMSBPosition uint8
	InputDataPath          uint8
	OutputDataPath         uint8
	InputTransportUnitSize uint8
	OutputTransportUnitSize uint8
	RetransmissionEffort   uint8
	PacketType             uint16
}

// OpCode returns the command's opcode.
func (c EnhancedSetupSyncConn) OpCode() int { return opEnhancedSetupSyncConn }

// Len returns the marshaled parameter length.
func (c EnhancedSetupSyncConn) Len() int { return 59 }

// Marshal serializes the command into b.
func (c *EnhancedSetupSyncConn) Marshal(b []byte) error { return marshal(c, b) }

// AcceptSyncConnReq implements Accept Synchronous Connection Request
// (0x01|0x0029) [Vol 2, Part E, 7.1.26].
type AcceptSyncConnReq struct {
	BDAddr               [6]byte
	TransmitBandwidth    uint32
	ReceiveBandwidth     uint32
	MaxLatency           uint16
	VoiceSetting         uint16
	RetransmissionEffort uint8
	PacketType           uint16
}

// OpCode returns the command's opcode.
func (c AcceptSyncConnReq) OpCode() int { return opAcceptSyncConnReq }

// Len returns the marshaled parameter length.
func (c AcceptSyncConnReq) Len() int { return 21 }

// Marshal serializes the command into b.
func (c *AcceptSyncConnReq) Marshal(b []byte) error { return marshal(c, b) }

// RejectSyncConnReq implements Reject Synchronous Connection Request
// (0x01|0x002A) [Vol 2, Part E, 7.1.27].
type RejectSyncConnReq struct {
	BDAddr [6]byte
	Reason uint8
}

// OpCode returns the command's opcode.
func (c RejectSyncConnReq) OpCode() int { return opRejectSyncConnReq }

// Len returns the marshaled parameter length.
func (c RejectSyncConnReq) Len() int { return 7 }

// Marshal serializes the command into b.
func (c *RejectSyncConnReq) Marshal(b []byte) error {
	copy(b, c.BDAddr[:6])
	b[6] = c.Reason
	return nil
}

// Disconnect implements the Disconnect command (0x01|0x0006)
// [Vol 2, Part E, 7.1.6], used to tear down a synchronous connection handle
// the same way it tears down an ACL handle.
type Disconnect struct {
	ConnectionHandle uint16
	Reason           uint8
}

// OpCode returns the command's opcode.
func (c Disconnect) OpCode() int { return opDisconnect }

// Len returns the marshaled parameter length.
func (c Disconnect) Len() int { return 3 }

// Marshal serializes the command into b.
func (c *Disconnect) Marshal(b []byte) error { return marshal(c, b) }

// WriteVoiceSettings implements Write Voice Settings (0x03|0x0026)
// [Vol 2, Part E, 7.3.32], the legacy pre-enhanced-setup voice configuration
// command.
type WriteVoiceSettings struct {
	VoiceSetting uint16
}

// OpCode returns the command's opcode.
func (c WriteVoiceSettings) OpCode() int { return opWriteVoiceSettings }

// Len returns the marshaled parameter length.
func (c WriteVoiceSettings) Len() int { return 2 }

// Marshal serializes the command into b.
func (c *WriteVoiceSettings) Marshal(b []byte) error { return marshal(c, b) }

// WriteVoiceSettingsRP is the return parameter for WriteVoiceSettings.
type WriteVoiceSettingsRP struct {
	Status uint8
}

// Unmarshal deserializes the command's return parameters.
func (rp *WriteVoiceSettingsRP) Unmarshal(b []byte) error { return unmarshal(rp, b) }

// Voice setting encodings used with WriteVoiceSettings / EnhancedSetupSyncConn.
const (
	VoiceSettingCVSD  uint16 = 0x0060
	VoiceSettingTrans uint16 = 0x0003
)
