package protocol

import "github.com/backkem/spdm/pkg/codec"

// RequestResponseCode identifies an SPDM message. Request codes have the top
// bit set; response codes do not. Unknown codes are carried through decode
// unchanged rather than collapsed to a default.
type RequestResponseCode uint8

// Request codes (DSP0274 Table 4).
const (
	RequestGetDigests          RequestResponseCode = 0x81
	RequestGetCertificate      RequestResponseCode = 0x82
	RequestChallenge           RequestResponseCode = 0x83
	RequestGetVersion          RequestResponseCode = 0x84
	RequestGetMeasurements     RequestResponseCode = 0xE0
	RequestGetCapabilities     RequestResponseCode = 0xE1
	RequestNegotiateAlgorithms RequestResponseCode = 0xE3
	RequestKeyExchange         RequestResponseCode = 0xE4
	RequestFinish              RequestResponseCode = 0xE5
	RequestPskExchange         RequestResponseCode = 0xE6
	RequestPskFinish           RequestResponseCode = 0xE7
	RequestHeartbeat           RequestResponseCode = 0xE8
	RequestKeyUpdate           RequestResponseCode = 0xE9
	RequestEndSession          RequestResponseCode = 0xEC
	RequestRespondIfReady      RequestResponseCode = 0xFF
)

// Response codes (DSP0274 Table 5).
const (
	ResponseDigests        RequestResponseCode = 0x01
	ResponseCertificate    RequestResponseCode = 0x02
	ResponseChallengeAuth  RequestResponseCode = 0x03
	ResponseVersion        RequestResponseCode = 0x04
	ResponseMeasurements   RequestResponseCode = 0x60
	ResponseCapabilities   RequestResponseCode = 0x61
	ResponseAlgorithms     RequestResponseCode = 0x63
	ResponseKeyExchangeRsp RequestResponseCode = 0x64
	ResponseFinishRsp      RequestResponseCode = 0x65
	ResponsePskExchangeRsp RequestResponseCode = 0x66
	ResponsePskFinishRsp   RequestResponseCode = 0x67
	ResponseHeartbeatAck   RequestResponseCode = 0x68
	ResponseKeyUpdateAck   RequestResponseCode = 0x69
	ResponseEndSessionAck  RequestResponseCode = 0x6C
	ResponseError          RequestResponseCode = 0x7F
)

// IsRequest reports whether the code is in the request half of the space.
func (c RequestResponseCode) IsRequest() bool {
	return c&0x80 != 0
}

// Encode writes the code byte.
func (c RequestResponseCode) Encode(w *codec.Writer) error {
	return w.PutU8(uint8(c))
}

// ReadRequestResponseCode reads a code byte, preserving unknown values.
func ReadRequestResponseCode(r *codec.Reader) (RequestResponseCode, error) {
	b, err := r.U8()
	if err != nil {
		return 0, err
	}
	return RequestResponseCode(b), nil
}

func (c RequestResponseCode) String() string {
	switch c {
	case RequestGetDigests:
		return "GET_DIGESTS"
	case RequestGetCertificate:
		return "GET_CERTIFICATE"
	case RequestChallenge:
		return "CHALLENGE"
	case RequestGetVersion:
		return "GET_VERSION"
	case RequestGetMeasurements:
		return "GET_MEASUREMENTS"
	case RequestGetCapabilities:
		return "GET_CAPABILITIES"
	case RequestNegotiateAlgorithms:
		return "NEGOTIATE_ALGORITHMS"
	case RequestKeyExchange:
		return "KEY_EXCHANGE"
	case RequestFinish:
		return "FINISH"
	case RequestPskExchange:
		return "PSK_EXCHANGE"
	case RequestPskFinish:
		return "PSK_FINISH"
	case RequestHeartbeat:
		return "HEARTBEAT"
	case RequestKeyUpdate:
		return "KEY_UPDATE"
	case RequestEndSession:
		return "END_SESSION"
	case RequestRespondIfReady:
		return "RESPOND_IF_READY"
	case ResponseDigests:
		return "DIGESTS"
	case ResponseCertificate:
		return "CERTIFICATE"
	case ResponseChallengeAuth:
		return "CHALLENGE_AUTH"
	case ResponseVersion:
		return "VERSION"
	case ResponseMeasurements:
		return "MEASUREMENTS"
	case ResponseCapabilities:
		return "CAPABILITIES"
	case ResponseAlgorithms:
		return "ALGORITHMS"
	case ResponseKeyExchangeRsp:
		return "KEY_EXCHANGE_RSP"
	case ResponseFinishRsp:
		return "FINISH_RSP"
	case ResponsePskExchangeRsp:
		return "PSK_EXCHANGE_RSP"
	case ResponsePskFinishRsp:
		return "PSK_FINISH_RSP"
	case ResponseHeartbeatAck:
		return "HEARTBEAT_ACK"
	case ResponseKeyUpdateAck:
		return "KEY_UPDATE_ACK"
	case ResponseEndSessionAck:
		return "END_SESSION_ACK"
	case ResponseError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
