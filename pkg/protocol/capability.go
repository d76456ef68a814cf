package protocol

import "github.com/backkem/spdm/pkg/codec"

// RequestCapabilityFlags is the Requester capability bit set carried in
// GET_CAPABILITIES (DSP0274 Table 9). The set is closed: decoding rejects
// unknown bits.
type RequestCapabilityFlags uint32

const (
	ReqCapCert              RequestCapabilityFlags = 1 << 1
	ReqCapChal              RequestCapabilityFlags = 1 << 2
	ReqCapEncrypt           RequestCapabilityFlags = 1 << 6
	ReqCapMAC               RequestCapabilityFlags = 1 << 7
	ReqCapMutAuth           RequestCapabilityFlags = 1 << 8
	ReqCapKeyEx             RequestCapabilityFlags = 1 << 9
	ReqCapPsk               RequestCapabilityFlags = 1 << 10
	ReqCapEncap             RequestCapabilityFlags = 1 << 12
	ReqCapHbeat             RequestCapabilityFlags = 1 << 13
	ReqCapKeyUpd            RequestCapabilityFlags = 1 << 14
	ReqCapHandshakeInClear  RequestCapabilityFlags = 1 << 15
	ReqCapPubKeyID          RequestCapabilityFlags = 1 << 16
	ReqCapChunk             RequestCapabilityFlags = 1 << 17
)

// reqCapAllKnown is the union of all defined Requester capability bits.
const reqCapAllKnown = ReqCapCert | ReqCapChal | ReqCapEncrypt | ReqCapMAC |
	ReqCapMutAuth | ReqCapKeyEx | ReqCapPsk | ReqCapEncap | ReqCapHbeat |
	ReqCapKeyUpd | ReqCapHandshakeInClear | ReqCapPubKeyID | ReqCapChunk

// Contains reports whether all bits of other are set in f.
func (f RequestCapabilityFlags) Contains(other RequestCapabilityFlags) bool {
	return f&other == other
}

// Encode writes the flag set as a 32-bit little-endian value.
func (f RequestCapabilityFlags) Encode(w *codec.Writer) error {
	return w.PutU32(uint32(f))
}

// ReadRequestCapabilityFlags reads the flag set, rejecting unknown bits.
func ReadRequestCapabilityFlags(r *codec.Reader) (RequestCapabilityFlags, error) {
	v, err := r.U32()
	if err != nil {
		return 0, err
	}
	f := RequestCapabilityFlags(v)
	if f&^reqCapAllKnown != 0 {
		return 0, ErrUnknownBits
	}
	return f, nil
}

// ResponseCapabilityFlags is the Responder capability bit set carried in
// CAPABILITIES (DSP0274 Table 11). Closed set.
type ResponseCapabilityFlags uint32

const (
	RspCapCache             ResponseCapabilityFlags = 1 << 0
	RspCapCert              ResponseCapabilityFlags = 1 << 1
	RspCapChal              ResponseCapabilityFlags = 1 << 2
	RspCapMeasNoSig         ResponseCapabilityFlags = 1 << 3
	RspCapMeasSig           ResponseCapabilityFlags = 1 << 4
	RspCapMeasFresh         ResponseCapabilityFlags = 1 << 5
	RspCapEncrypt           ResponseCapabilityFlags = 1 << 6
	RspCapMAC               ResponseCapabilityFlags = 1 << 7
	RspCapMutAuth           ResponseCapabilityFlags = 1 << 8
	RspCapKeyEx             ResponseCapabilityFlags = 1 << 9
	RspCapPsk               ResponseCapabilityFlags = 1 << 10
	RspCapPskWithContext    ResponseCapabilityFlags = 1 << 11
	RspCapEncap             ResponseCapabilityFlags = 1 << 12
	RspCapHbeat             ResponseCapabilityFlags = 1 << 13
	RspCapKeyUpd            ResponseCapabilityFlags = 1 << 14
	RspCapHandshakeInClear  ResponseCapabilityFlags = 1 << 15
	RspCapPubKeyID          ResponseCapabilityFlags = 1 << 16
	RspCapChunk             ResponseCapabilityFlags = 1 << 17
	RspCapAliasCert         ResponseCapabilityFlags = 1 << 18
)

const rspCapAllKnown = RspCapCache | RspCapCert | RspCapChal | RspCapMeasNoSig |
	RspCapMeasSig | RspCapMeasFresh | RspCapEncrypt | RspCapMAC | RspCapMutAuth |
	RspCapKeyEx | RspCapPsk | RspCapPskWithContext | RspCapEncap | RspCapHbeat |
	RspCapKeyUpd | RspCapHandshakeInClear | RspCapPubKeyID | RspCapChunk |
	RspCapAliasCert

// Contains reports whether all bits of other are set in f.
func (f ResponseCapabilityFlags) Contains(other ResponseCapabilityFlags) bool {
	return f&other == other
}

// Encode writes the flag set as a 32-bit little-endian value.
func (f ResponseCapabilityFlags) Encode(w *codec.Writer) error {
	return w.PutU32(uint32(f))
}

// ReadResponseCapabilityFlags reads the flag set, rejecting unknown bits.
func ReadResponseCapabilityFlags(r *codec.Reader) (ResponseCapabilityFlags, error) {
	v, err := r.U32()
	if err != nil {
		return 0, err
	}
	f := ResponseCapabilityFlags(v)
	if f&^rspCapAllKnown != 0 {
		return 0, ErrUnknownBits
	}
	return f, nil
}
