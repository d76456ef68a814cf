// Package common holds the shared engine state both protocol roles build
// on: the Context with its four compartments (config, provision, negotiate,
// runtime), peer state, the session table, transcript bookkeeping, and the
// plain and secured transport paths.
package common

import (
	"errors"

	"github.com/pion/logging"

	"github.com/backkem/spdm/pkg/protocol"
)

// TranscriptMode selects how measurement transcripts are represented.
type TranscriptMode int

const (
	// TranscriptRaw retains the exact message bytes in bounded buffers.
	TranscriptRaw TranscriptMode = iota

	// TranscriptHashed absorbs message bytes into a running hash context
	// instead of retaining them. Suited to long sessions on small
	// devices.
	TranscriptHashed
)

// Configuration errors.
var (
	ErrNoVersions = errors.New("common: config offers no SPDM versions")
	ErrNoHash     = errors.New("common: config offers no base hash algorithm")
	ErrNoAsym     = errors.New("common: config offers no base asym algorithm")
)

// ConfigInfo is the immutable, caller-chosen policy compartment of a
// Context. It is fixed at construction; negotiation picks from it.
type ConfigInfo struct {
	// SpdmVersions lists the offered versions in ascending order.
	SpdmVersions []protocol.Version

	// ReqCapabilities and RspCapabilities are the capability sets
	// advertised for each role. Only the set matching the local role is
	// sent on the wire.
	ReqCapabilities protocol.RequestCapabilityFlags
	RspCapabilities protocol.ResponseCapabilityFlags

	// CTExponent is the advertised cryptographic timeout exponent.
	CTExponent uint8

	// Offered algorithm masks.
	MeasurementSpecification protocol.MeasurementSpecification
	MeasurementHashAlgos     protocol.MeasurementHashAlgo
	BaseHashAlgos            protocol.BaseHashAlgo
	BaseAsymAlgos            protocol.BaseAsymAlgo
	DheAlgos                 protocol.DheAlgo
	AeadAlgos                protocol.AeadAlgo
	ReqAsymAlgos             protocol.ReqAsymAlgo
	KeySchedules             protocol.KeyScheduleAlgo

	// MaxSpdmMsgSize bounds a single SPDM message on either path.
	MaxSpdmMsgSize int

	// TranscriptCapacity bounds each raw transcript buffer.
	TranscriptCapacity int

	// RuntimeContentChangeSupport enables the 1.2 content-changed bits in
	// MEASUREMENTS Param2.
	RuntimeContentChangeSupport bool

	// TranscriptMode selects raw or running-hash transcripts.
	TranscriptMode TranscriptMode

	// HeartbeatPeriod is the heartbeat period offered on key exchange,
	// in the protocol's 2^CTExponent units. Zero disables heartbeats.
	HeartbeatPeriod uint8

	// LoggerFactory builds the engine's leveled loggers.
	LoggerFactory logging.LoggerFactory
}

// Validate checks the configuration for internal consistency.
func (c *ConfigInfo) Validate() error {
	if len(c.SpdmVersions) == 0 {
		return ErrNoVersions
	}
	if c.BaseHashAlgos == 0 {
		return ErrNoHash
	}
	if c.BaseAsymAlgos == 0 {
		return ErrNoAsym
	}
	return nil
}

// applyDefaults fills unset fields with workable defaults.
func (c *ConfigInfo) applyDefaults() {
	if c.MaxSpdmMsgSize == 0 {
		c.MaxSpdmMsgSize = defaultMaxSpdmMsgSize
	}
	if c.TranscriptCapacity == 0 {
		c.TranscriptCapacity = defaultTranscriptCapacity
	}
	if c.MeasurementSpecification == 0 {
		c.MeasurementSpecification = protocol.MeasSpecDMTF
	}
	if c.KeySchedules == 0 {
		c.KeySchedules = protocol.KeyScheduleSpdm
	}
	if c.LoggerFactory == nil {
		c.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
}

const (
	defaultMaxSpdmMsgSize     = 4096 + 1024
	defaultTranscriptCapacity = 16 * 1024
)
