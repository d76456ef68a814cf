package protocol

// Signing-context material for SPDM 1.2 and later. A signature from 1.2 on
// is computed over
//
//	prefix || zero pad || context || hash(transcript)
//
// instead of over the raw transcript (DSP0274 Section 15).
var (
	// SigningPrefix12 is the 64-byte version prefix: the ASCII string
	// "dmtf-spdm-v1.2.*" repeated four times.
	SigningPrefix12 = []byte("dmtf-spdm-v1.2.*dmtf-spdm-v1.2.*dmtf-spdm-v1.2.*dmtf-spdm-v1.2.*")

	// SigningZeroPad separates the prefix from the context string.
	SigningZeroPad = [6]byte{}

	// Per-message context strings.
	SignContextMeasurements   = []byte("responder-measurements signing")
	SignContextChallengeAuth  = []byte("responder-challenge_auth signing")
	SignContextKeyExchangeRsp = []byte("responder-key_exchange_rsp signing")
	SignContextFinish         = []byte("requester-finish signing")
)

// SigningContextSize is the fixed size of the material preceding the
// transcript hash for a given context string.
func SigningContextSize(context []byte) int {
	return len(SigningPrefix12) + len(SigningZeroPad) + len(context)
}
