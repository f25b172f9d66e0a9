// Command agsco is a CLI harness for the SCO/eSCO control core: it drives a
// simulated controller (internal/hciradio/sim) through the scenarios of
// spec.md §8 without needing real Bluetooth hardware.
package main

import (
	"fmt"
	"os"
	"time"

	logxi "github.com/mgutz/logxi/v1"
	"github.com/urfave/cli"

	"github.com/CypherOS/system-bt/internal/hciradio/evt"
	"github.com/CypherOS/system-bt/internal/hciradio/sim"
	"github.com/CypherOS/system-bt/internal/scb"
	"github.com/CypherOS/system-bt/internal/sco"
)

var log = logxi.New("agsco")

func main() {
	app := cli.NewApp()
	app.Name = "agsco"
	app.Usage = "drive the SCO/eSCO control core against a simulated controller"
	app.Version = "0.0.1"
	app.Action = cli.ShowAppHelp
	app.Flags = []cli.Flag{
		cli.BoolFlag{Name: "enhanced", Usage: "simulate a controller with enhanced Setup Synchronous Connection support"},
	}

	app.Commands = []cli.Command{
		{
			Name:   "basic",
			Usage:  "open a CVSD link end to end (spec.md §8 scenario 1)",
			Action: runBasic,
		},
		{
			Name:   "wideband",
			Usage:  "negotiate mSBC and fall back through the retry ladder on repeated failure (spec.md §8 scenario 2)",
			Action: runWideband,
		},
		{
			Name:   "reject",
			Usage:  "reject an inbound connection request with no matching SCB (spec.md §8 scenario 6)",
			Action: runReject,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal("agsco: exiting", "err", err)
	}
}

// loggingSender stands in for the AT command layer's "+BCS" transmission; it
// only needs to ask the peer to pick a codec (spec.md §1 Non-goals excludes
// AT parsing from this core).
type loggingSender struct{}

func (loggingSender) SendCodecSelection(peer scb.Addr, c scb.Codec) error {
	fmt.Printf("AT> +BCS: %s -> %s\n", peer, c)
	return nil
}

// consoleObserver prints the upward AudioOpen/AudioClose notifications
// spec.md §6 describes.
type consoleObserver struct{}

func (consoleObserver) AudioOpen(handle int, appID uint32) {
	fmt.Printf("<< AudioOpen handle=%d app=%d\n", handle, appID)
}

func (consoleObserver) AudioClose(handle int, appID uint32) {
	fmt.Printf("<< AudioClose handle=%d app=%d\n", handle, appID)
}

func newMachine(c *cli.Context) (*sco.Machine, *sim.Controller, *scb.SCB) {
	controller := sim.New(c.GlobalBool("enhanced"))
	m, err := sco.New(controller, loggingSender{}, consoleObserver{})
	if err != nil {
		log.Fatal("agsco: building machine", "err", err)
	}

	peer := scb.Addr{0x11, 0x22, 0x33, 0x44, 0x55, 0x66}
	s, err := m.Registry().Alloc(peer)
	if err != nil {
		log.Fatal("agsco: allocating scb", "err", err)
	}
	s.SvcConn = true
	s.Features = scb.FeatESCO | scb.FeatCodec
	s.PeerFeatures = scb.FeatESCO | scb.FeatCodec
	s.PeerVersion = scb.HFPVersion15
	s.SCOCodec = scb.CodecCVSD

	return m, controller, s
}

func runBasic(c *cli.Context) error {
	m, controller, s := newMachine(c)
	defer m.Stop()

	m.Listen(s)
	m.Open(s)
	time.Sleep(10 * time.Millisecond)
	controller.CompleteOutbound(s.PeerAddr, 0)
	time.Sleep(10 * time.Millisecond)

	fmt.Printf("is_open=%v\n", m.IsOpen(s))
	m.Shutdown(s)
	return nil
}

func runWideband(c *cli.Context) error {
	m, controller, s := newMachine(c)
	defer m.Stop()

	s.SCOCodec = scb.CodecMSBC
	s.CodecUpdated = true

	m.Listen(s)
	m.Open(s)
	time.Sleep(10 * time.Millisecond)
	m.CodecNego(s, true)
	time.Sleep(10 * time.Millisecond)

	// Fail the mSBC T2 attempt twice: the retry ladder steps T2 -> T1 -> CVSD.
	controller.CompleteOutbound(s.PeerAddr, 1)
	time.Sleep(10 * time.Millisecond)
	controller.CompleteOutbound(s.PeerAddr, 1)
	time.Sleep(10 * time.Millisecond)
	controller.CompleteOutbound(s.PeerAddr, 0)
	time.Sleep(10 * time.Millisecond)

	fmt.Printf("is_open=%v in_use_codec=%v\n", m.IsOpen(s), s.InUseCodec)
	m.Shutdown(s)
	return nil
}

func runReject(c *cli.Context) error {
	controller := sim.New(c.GlobalBool("enhanced"))
	m, err := sco.New(controller, loggingSender{}, consoleObserver{})
	if err != nil {
		return err
	}
	defer m.Stop()

	stranger := scb.Addr{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	controller.DeliverConnRequest(stranger, evt.LinkTypeESCO)
	time.Sleep(10 * time.Millisecond)
	fmt.Println("rejected connection request from unregistered peer")
	return nil
}
