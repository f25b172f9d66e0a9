// Package evt decodes the HCI events the Synchronous Connection controller
// adapter needs, following the teacher's evt package idiom: plain structs
// with an Unmarshal([]byte) error method built on encoding/binary.
package evt

import (
	"bytes"
	"encoding/binary"
)

func unmarshal(e interface{}, b []byte) error {
	return binary.Read(bytes.NewBuffer(b), binary.LittleEndian, e)
}

// Event codes this adapter subscribes to.
const (
	DisconnectionCompleteCode     = 0x05
	ConnectionRequestCode         = 0x04
	SynchronousConnectionCompleteCode = 0x2C
	SynchronousConnectionChangedCode  = 0x2D
)

// Link types carried by ConnectionRequestEvent.LinkType.
const (
	LinkTypeSCO  uint8 = 0x00
	LinkTypeACL  uint8 = 0x01
	LinkTypeESCO uint8 = 0x02
)

// DisconnectionCompleteEvent implements Disconnection Complete
// (0x05) [Vol 2, Part E, 7.7.5].
type DisconnectionCompleteEvent struct {
	Status           uint8
	ConnectionHandle uint16
	Reason           uint8
}

// Code returns the event code.
func (e DisconnectionCompleteEvent) Code() int { return DisconnectionCompleteCode }

// Unmarshal deserializes the event.
func (e *DisconnectionCompleteEvent) Unmarshal(b []byte) error { return unmarshal(e, b) }

// ConnectionRequestEvent implements Connection Request (0x04)
// [Vol 2, Part E, 7.7.4], filtered by the adapter to LinkTypeSCO/LinkTypeESCO.
type ConnectionRequestEvent struct {
	BDAddr      [6]byte
	ClassOfDevice [3]byte
	LinkType    uint8
}

// Code returns the event code.
func (e ConnectionRequestEvent) Code() int { return ConnectionRequestCode }

// Unmarshal deserializes the event.
func (e *ConnectionRequestEvent) Unmarshal(b []byte) error { return unmarshal(e, b) }

// SynchronousConnectionCompleteEvent implements Synchronous Connection
// Complete (0x2C) [Vol 2, Part E, 7.7.35].
type SynchronousConnectionCompleteEvent struct {
	Status            uint8
	ConnectionHandle   uint16
	BDAddr            [6]byte
	LinkType          uint8
	TransmitInterval  uint8
	RetransmitWindow  uint8
	RxPacketLength    uint16
	TxPacketLength    uint16
	AirMode           uint8
}

// Code returns the event code.
func (e SynchronousConnectionCompleteEvent) Code() int {
	return SynchronousConnectionCompleteCode
}

// Unmarshal deserializes the event.
func (e *SynchronousConnectionCompleteEvent) Unmarshal(b []byte) error { return unmarshal(e, b) }

// SynchronousConnectionChangedEvent implements Synchronous Connection
// Changed (0x2D) [Vol 2, Part E, 7.7.36] — surfaced to the core as a
// LinkChange callback.
type SynchronousConnectionChangedEvent struct {
	Status           uint8
	ConnectionHandle uint16
	TransmitInterval uint8
	RetransmitWindow uint8
	RxPacketLength   uint16
	TxPacketLength   uint16
}

// Code returns the event code.
func (e SynchronousConnectionChangedEvent) Code() int {
	return SynchronousConnectionChangedCode
}

// Unmarshal deserializes the event.
func (e *SynchronousConnectionChangedEvent) Unmarshal(b []byte) error { return unmarshal(e, b) }
