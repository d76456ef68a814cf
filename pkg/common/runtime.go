package common

import (
	"github.com/backkem/spdm/pkg/protocol"
	"github.com/backkem/spdm/pkg/transcript"
)

// ConnectionState tracks how far negotiation has progressed on the main
// (non-session) channel.
type ConnectionState int

const (
	ConnectionNotStarted ConnectionState = iota
	ConnectionAfterVersion
	ConnectionAfterCapabilities
	ConnectionAfterAlgorithms
	ConnectionNegotiated
	ConnectionAuthenticated
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectionNotStarted:
		return "not-started"
	case ConnectionAfterVersion:
		return "after-version"
	case ConnectionAfterCapabilities:
		return "after-capabilities"
	case ConnectionAfterAlgorithms:
		return "after-algorithms"
	case ConnectionNegotiated:
		return "negotiated"
	case ConnectionAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// RuntimeInfo is the mutable per-connection compartment of a Context:
// transcripts, codec flags and connection state.
type RuntimeInfo struct {
	// ConnectionState is the negotiation progress on the main channel.
	ConnectionState ConnectionState

	// NeedMeasurementSignature tells the MEASUREMENTS codec whether the
	// trailing signature field is on the wire. Set by the engines before
	// encode/decode.
	NeedMeasurementSignature bool

	// NeedMeasurementSummaryHash tells the CHALLENGE_AUTH and
	// KEY_EXCHANGE_RSP codecs whether the summary hash field is on the
	// wire. Set from the request's summary hash type.
	NeedMeasurementSummaryHash bool

	// ContentChanged mirrors the last MEASUREMENTS response's
	// content-changed bits. Only updated from SPDM 1.2 on.
	ContentChanged protocol.ContentChanged

	// Rolling transcripts of the main channel. message_a covers
	// version/capability/algorithm negotiation, message_b digests and
	// certificates, message_c challenge/auth, message_m measurements.
	MessageA *transcript.ManagedBuffer
	MessageB *transcript.ManagedBuffer
	MessageC *transcript.ManagedBuffer
	MessageM *transcript.ManagedBuffer

	// DigestL1L2 is the running-hash form of the measurement transcript,
	// used instead of MessageM in TranscriptHashed mode. Nil until the
	// first measurement append.
	DigestL1L2 *transcript.HashedTranscript
}

// reset restores the runtime compartment to its post-construction state.
func (r *RuntimeInfo) reset() {
	r.ConnectionState = ConnectionNotStarted
	r.NeedMeasurementSignature = false
	r.NeedMeasurementSummaryHash = false
	r.ContentChanged = protocol.ContentChangeNotSupported
	r.MessageA.Reset()
	r.MessageB.Reset()
	r.MessageC.Reset()
	r.MessageM.Reset()
	r.DigestL1L2 = nil
}
