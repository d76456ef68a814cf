// Command spdm-loopback runs a full attestation conversation between an
// in-process requester and responder over the loopback transport: version,
// capability and algorithm negotiation, certificate retrieval, challenge,
// signed measurements, and a key-exchange session with heartbeat and
// teardown.
package main

import (
	"fmt"
	"os"

	"github.com/backkem/spdm/pkg/message"
	"github.com/backkem/spdm/pkg/protocol"
	"github.com/backkem/spdm/pkg/spdmtest"
)

func run() error {
	pair, err := spdmtest.NewPair(spdmtest.Config(), spdmtest.Config())
	if err != nil {
		return err
	}
	pair.Start()
	defer pair.Close()

	req := pair.Requester
	if err := req.SendReceiveVersion(); err != nil {
		return fmt.Errorf("version: %w", err)
	}
	if err := req.SendReceiveCapabilities(); err != nil {
		return fmt.Errorf("capabilities: %w", err)
	}
	if err := req.SendReceiveAlgorithms(); err != nil {
		return fmt.Errorf("algorithms: %w", err)
	}
	mask, _, err := req.SendReceiveDigests()
	if err != nil {
		return fmt.Errorf("digests: %w", err)
	}
	fmt.Printf("digests: slot mask 0x%02x\n", mask)

	if err := req.SendReceiveCertificate(0); err != nil {
		return fmt.Errorf("certificate: %w", err)
	}
	if err := req.SendReceiveChallenge(0, protocol.SummaryHashNone); err != nil {
		return fmt.Errorf("challenge: %w", err)
	}

	var record protocol.MeasurementRecord
	total, err := req.SendReceiveMeasurement(nil, 0,
		message.MeasAttrSignatureRequested, protocol.MeasurementOperationQueryTotal, &record)
	if err != nil {
		return fmt.Errorf("measurement total: %w", err)
	}
	fmt.Printf("measurements: %d indices\n", total)

	blocks, err := req.SendReceiveMeasurement(nil, 0,
		message.MeasAttrSignatureRequested, protocol.MeasurementOperationAll, &record)
	if err != nil {
		return fmt.Errorf("measurement all: %w", err)
	}
	fmt.Printf("measurements: %d blocks, %d record bytes\n", blocks, record.RecordLength)

	sessionID, err := req.SendReceiveKeyExchange(0, protocol.SummaryHashNone)
	if err != nil {
		return fmt.Errorf("key exchange: %w", err)
	}
	if err := req.SendReceiveFinish(sessionID, 0); err != nil {
		return fmt.Errorf("finish: %w", err)
	}
	if err := req.SendReceiveHeartbeat(sessionID); err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	if err := req.SendReceiveEndSession(sessionID); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	fmt.Printf("session 0x%08x completed\n", sessionID)
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
