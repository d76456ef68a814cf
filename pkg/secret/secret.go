// Package secret defines the pluggable device-secret interfaces the
// Responder consults: measurement collection, measurement signing, and PSK
// derivation. Implementations live outside the core (a TPM shim, an OS
// attestation agent, a test vector provider); the engine only dispatches.
package secret

import (
	"github.com/backkem/spdm/pkg/protocol"
)

// MeasurementProvider collects the device's measurement blocks.
type MeasurementProvider interface {
	// MeasurementCollection returns the record for one measurement index,
	// or the full record for protocol.MeasurementIndexAll. A nil record
	// means the index does not exist.
	MeasurementCollection(version protocol.Version, spec protocol.MeasurementSpecification, hashAlgo protocol.MeasurementHashAlgo, index int) *protocol.MeasurementRecord

	// MeasurementSummaryHash computes the summary digest over the
	// measurements selected by summaryType. A nil digest means the
	// summary type is not supported.
	MeasurementSummaryHash(version protocol.Version, baseHash protocol.BaseHashAlgo, spec protocol.MeasurementSpecification, hashAlgo protocol.MeasurementHashAlgo, summaryType protocol.MeasurementSummaryHashType) *protocol.Digest
}

// AsymSigner signs with the device's slot private key. The key never
// crosses this interface.
type AsymSigner interface {
	// Sign signs message with the negotiated algorithms. A nil signature
	// means the device refused or cannot sign.
	Sign(hashAlgo protocol.BaseHashAlgo, asymAlgo protocol.BaseAsymAlgo, message []byte) *protocol.Signature
}

// PskSecretProvider expands the provisioned pre-shared key. The PSK itself
// never crosses this interface; only HKDF-Expand outputs do.
type PskSecretProvider interface {
	// HandshakeSecretHkdfExpand expands the PSK-derived handshake secret
	// with the given info string.
	HandshakeSecretHkdfExpand(version protocol.Version, hashAlgo protocol.BaseHashAlgo, pskHint, info []byte) (*protocol.HkdfKey, error)

	// MasterSecretHkdfExpand expands the PSK-derived master secret with
	// the given info string.
	MasterSecretHkdfExpand(version protocol.Version, hashAlgo protocol.BaseHashAlgo, pskHint, info []byte) (*protocol.HkdfKey, error)
}
