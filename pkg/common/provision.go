package common

import "github.com/backkem/spdm/pkg/protocol"

// ProvisionInfo is the long-lived key material compartment of a Context:
// what the device was provisioned with before any protocol ran.
type ProvisionInfo struct {
	// MyCertChain holds the local certificate chain per slot, in full
	// SPDM chain format (header + DER certificates). Nil slots are
	// unpopulated.
	MyCertChain [protocol.MaxSlots]*protocol.CertChainBuffer

	// PeerCertChainData optionally pins the expected peer chain (DER
	// only, no SPDM header). When set, a retrieved chain must match it
	// byte for byte.
	PeerCertChainData *protocol.CertChainData

	// PskHint identifies the pre-shared key to the peer's secret store.
	PskHint []byte
}

// PeerInfo is the runtime view of the peer: certificate chains retrieved
// over GET_CERTIFICATE, per slot.
type PeerInfo struct {
	PeerCertChain [protocol.MaxSlots]*protocol.CertChainBuffer
}
