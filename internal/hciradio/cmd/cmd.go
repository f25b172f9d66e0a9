// Package cmd implements wire encoding for the HCI Synchronous Connection
// command subset the core needs, in the style of the teacher's top-level
// cmd package (OpCode/Len/Marshal over a plain byte slice).
package cmd

import (
	"bytes"
	"encoding/binary"
	"io"
)

// Command is anything that can be marshaled onto an HCI command packet.
type Command interface {
	OpCode() int
	Len() int
	Marshal([]byte) error
}

// CommandRP unmarshals a command's return parameters.
type CommandRP interface {
	Unmarshal(b []byte) error
}

// Sender sends a Command and unmarshals its return parameters into r, if
// r is non-nil.
type Sender interface {
	Send(Command, CommandRP) error
}

// Send is a convenience wrapper around Sender.Send.
func Send(s Sender, c Command, r CommandRP) error {
	return s.Send(c, r)
}

func marshal(c Command, b []byte) error {
	buf := bytes.NewBuffer(b)
	buf.Reset()
	if buf.Cap() < c.Len() {
		return io.ErrShortBuffer
	}
	return binary.Write(buf, binary.LittleEndian, c)
}

func unmarshal(c CommandRP, b []byte) error {
	return binary.Read(bytes.NewBuffer(b), binary.LittleEndian, c)
}
