// Package link owns the bridge's startup policy: finding the baud rate a
// device is actually listening on, and arming its binary telemetry stream.
package link

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/vectornav/internal/monitoring"
)

// SupportedBaudRates is the device-defined candidate list, tried in this
// order during negotiation.
var SupportedBaudRates = []int{9600, 19200, 38400, 57600, 115200, 128000, 230400, 460800, 921600}

// IncompatibleBaud is listed as valid in the datasheet but rejected by VN-100
// units in the field, so it is never used as probe or target when the
// requested rate matches it.
const IncompatibleBaud = 128000

// ErrNoResponse means every candidate baud rate was exhausted without the
// device answering. After all known rates fail, the fault is wiring or
// hardware, not a transient, so the negotiator does not loop forever.
var ErrNoResponse = errors.New("no response from device at any supported baud rate")

// Device is the subset of the sensor handle the negotiator drives.
type Device interface {
	Connect(baud int) error
	Disconnect() error
	ChangeBaud(baud int) error
	VerifyConnectivity() bool
	SetResponseTimeout(d time.Duration)
	SetRetransmitDelay(d time.Duration)
}

// Config carries the negotiation parameters resolved from configuration.
type Config struct {
	// RequestedBaud is the rate the link runs at once established.
	RequestedBaud int

	// ResponseTimeout bounds each register command round trip.
	ResponseTimeout time.Duration

	// RetransmitDelay is the command re-send interval within the timeout.
	RetransmitDelay time.Duration

	// SettleDelay is the pause after a failed probe before the next
	// candidate. Defaults to 200ms.
	SettleDelay time.Duration

	// Candidates overrides SupportedBaudRates; tests use it.
	Candidates []int
}

// Negotiator establishes the serial link against a device whose current
// configured rate is unknown.
type Negotiator struct {
	dev Device
	cfg Config
}

// NewNegotiator returns a negotiator for the device.
func NewNegotiator(dev Device, cfg Config) *Negotiator {
	if cfg.SettleDelay == 0 {
		cfg.SettleDelay = 200 * time.Millisecond
	}
	if cfg.Candidates == nil {
		cfg.Candidates = SupportedBaudRates
	}
	return &Negotiator{dev: dev, cfg: cfg}
}

// Establish probes each candidate baud rate in order: connect at the
// candidate, command the device over to the requested rate, reconnect there.
// Each candidate is tried at most once; the first success wins. On
// exhaustion it returns ErrNoResponse — the caller is expected to keep the
// process alive in a degraded state so the failure stays observable.
func (n *Negotiator) Establish(ctx context.Context) error {
	n.dev.SetResponseTimeout(n.cfg.ResponseTimeout)
	n.dev.SetRetransmitDelay(n.cfg.RetransmitDelay)

	established := false
	for _, candidate := range n.cfg.Candidates {
		if err := ctx.Err(); err != nil {
			return err
		}
		if candidate == IncompatibleBaud || n.cfg.RequestedBaud == IncompatibleBaud {
			continue
		}

		monitoring.Logf("probing device at %d baud", candidate)
		if err := n.attempt(candidate); err != nil {
			// Timeouts, protocol errors and I/O errors all mean the same
			// thing here: wrong rate or absent device. Clean up and move on.
			n.dev.Disconnect()
			monitoring.Logf("no link at %d baud: %v", candidate, err)
			n.settle(ctx)
			continue
		}
		monitoring.Logf("link established at %d baud", n.cfg.RequestedBaud)
		established = true
		break
	}

	// Explicit post-loop verification. A failure here is reported but not
	// fatal: a connected-but-silent bridge is easier to diagnose remotely
	// than a dead process.
	if !n.dev.VerifyConnectivity() {
		monitoring.Logf("no device communication on the serial link")
		monitoring.Logf("check serial_baud; valid rates are %v", SupportedBaudRates)
		monitoring.Logf("note: %d is rejected by VN-100 units despite the datasheet", IncompatibleBaud)
		if !established {
			return ErrNoResponse
		}
	}
	if !established {
		return ErrNoResponse
	}
	return nil
}

func (n *Negotiator) attempt(candidate int) error {
	if err := n.dev.Connect(candidate); err != nil {
		return err
	}
	if err := n.dev.ChangeBaud(n.cfg.RequestedBaud); err != nil {
		return fmt.Errorf("switch to %d baud: %w", n.cfg.RequestedBaud, err)
	}
	return nil
}

func (n *Negotiator) settle(ctx context.Context) {
	t := time.NewTimer(n.cfg.SettleDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
