package responder

import (
	"github.com/backkem/spdm/pkg/codec"
	"github.com/backkem/spdm/pkg/common"
	"github.com/backkem/spdm/pkg/crypto"
	"github.com/backkem/spdm/pkg/message"
	"github.com/backkem/spdm/pkg/protocol"
	"github.com/backkem/spdm/pkg/status"
	"github.com/backkem/spdm/pkg/transcript"
)

// handleGetMeasurements collects measurement blocks through the device's
// measurement provider and, when the request asks for it, signs the L1/L2
// transcript through the device's signer.
func (c *Context) handleGetMeasurements(sessionID *uint32, req []byte) ([]byte, error) {
	if c.Common.Runtime.ConnectionState < common.ConnectionNegotiated {
		return c.errorResponse(message.ErrorUnexpectedRequest, 0)
	}
	if c.Measurements == nil {
		return c.errorResponse(message.ErrorUnsupportedRequest, uint8(protocol.RequestGetMeasurements))
	}

	r := codec.NewReader(req)
	if _, err := message.ReadHeader(r); err != nil {
		return nil, status.ErrInvalidMsgField
	}
	var request message.GetMeasurementsRequest
	if err := request.Decode(c.Common, r); err != nil {
		return c.errorResponse(message.ErrorInvalidRequest, 0)
	}
	signatureRequested := request.Attributes.Contains(message.MeasAttrSignatureRequested)
	if signatureRequested && request.SlotID >= protocol.MaxSlots {
		return c.errorResponse(message.ErrorInvalidRequest, 0)
	}
	if signatureRequested && c.Signer == nil {
		return c.errorResponse(message.ErrorUnsupportedRequest, uint8(protocol.RequestGetMeasurements))
	}

	version := c.Common.Negotiate.SpdmVersionSel
	record, number, errRsp, err := c.collectMeasurements(&request)
	if errRsp != nil || err != nil {
		return errRsp, err
	}

	var nonce protocol.Nonce
	if err := crypto.Random(nonce[:]); err != nil {
		return nil, status.ErrCryptoError
	}
	contentChanged := protocol.ContentChangeNotSupported
	if version >= protocol.Version12 && c.Common.Config.RuntimeContentChangeSupport {
		contentChanged = protocol.ContentChangeNone
	}

	// The codec emits the signature field based on this flag.
	c.Common.Runtime.NeedMeasurementSignature = signatureRequested

	sigSize := 0
	signature := protocol.Signature{}
	if signatureRequested {
		sigSize = c.Common.Negotiate.BaseAsymSel.Size()
		signature.Data = make([]byte, sigSize)
	}

	raw := c.newMsgBuf()
	w := codec.NewWriter(raw)
	header := message.Header{Version: version, Code: protocol.ResponseMeasurements}
	if err := header.Encode(w); err != nil {
		return nil, status.ErrBufferFull
	}
	rsp := message.MeasurementsResponse{
		NumberOfMeasurements: number,
		ContentChanged:       contentChanged,
		SlotID:               request.SlotID,
		Record:               record,
		Nonce:                nonce,
		Signature:            signature,
	}
	if err := rsp.Encode(c.Common, w); err != nil {
		return nil, status.ErrBufferFull
	}
	out := w.Bytes()

	// The transcript covers the request and the response without the
	// trailing signature bytes.
	if err := c.Common.AppendMessageM(sessionID, req[:r.Used()]); err != nil {
		return nil, err
	}
	if err := c.Common.AppendMessageM(sessionID, out[:len(out)-sigSize]); err != nil {
		return nil, err
	}

	if signatureRequested {
		sig, err := c.signMeasurements(sessionID)
		if err != nil {
			c.Common.ResetMessageM(sessionID)
			return nil, err
		}
		copy(out[len(out)-sigSize:], sig.Data)
		// The signature closes this L1/L2 transaction.
		c.Common.ResetMessageM(sessionID)
	}
	return out, nil
}

// collectMeasurements resolves the requested operation against the
// provider. It returns either the record and Param1 value, or an error
// response to send back.
func (c *Context) collectMeasurements(request *message.GetMeasurementsRequest) (protocol.MeasurementRecord, uint8, []byte, error) {
	version := c.Common.Negotiate.SpdmVersionSel
	spec := c.Common.Negotiate.MeasurementSpecificationSel
	hashAlgo := c.Common.Negotiate.MeasurementHashSel

	switch request.Operation {
	case protocol.MeasurementOperationQueryTotal:
		all := c.Measurements.MeasurementCollection(version, spec, hashAlgo, protocol.MeasurementIndexAll)
		if all == nil {
			errRsp, err := c.errorResponse(message.ErrorInvalidRequest, 0)
			return protocol.MeasurementRecord{}, 0, errRsp, err
		}
		return protocol.MeasurementRecord{}, all.NumberOfBlocks, nil, nil

	case protocol.MeasurementOperationAll:
		all := c.Measurements.MeasurementCollection(version, spec, hashAlgo, protocol.MeasurementIndexAll)
		if all == nil {
			errRsp, err := c.errorResponse(message.ErrorInvalidRequest, 0)
			return protocol.MeasurementRecord{}, 0, errRsp, err
		}
		return *all, all.NumberOfBlocks, nil, nil

	default:
		one := c.Measurements.MeasurementCollection(version, spec, hashAlgo, int(request.Operation))
		if one == nil {
			errRsp, err := c.errorResponse(message.ErrorInvalidRequest, 0)
			return protocol.MeasurementRecord{}, 0, errRsp, err
		}
		return *one, one.NumberOfBlocks, nil, nil
	}
}

// signMeasurements signs the L1/L2 transcript with the device key.
func (c *Context) signMeasurements(sessionID *uint32) (*protocol.Signature, error) {
	signed, err := c.l1l2SignedMessage(sessionID)
	if err != nil {
		return nil, err
	}
	sig := c.Signer.Sign(c.Common.Negotiate.BaseHashSel, c.Common.Negotiate.BaseAsymSel, signed)
	if sig == nil {
		return nil, status.ErrCryptoError
	}
	return sig, nil
}

// l1l2SignedMessage builds the byte string the measurement signature
// covers, mirroring the requester's verification path.
func (c *Context) l1l2SignedMessage(sessionID *uint32) ([]byte, error) {
	version := c.Common.Negotiate.SpdmVersionSel
	hashAlgo := c.Common.Negotiate.BaseHashSel

	var l1l2Hash []byte
	var signed []byte
	if c.Common.Config.TranscriptMode == common.TranscriptHashed {
		hash, err := c.Common.L1L2Hash(sessionID)
		if err != nil {
			return nil, err
		}
		l1l2Hash = hash
	} else {
		l1l2 := transcript.NewManagedBuffer(2 * c.Common.Config.TranscriptCapacity)
		if version >= protocol.Version12 {
			if err := l1l2.Append(c.Common.Runtime.MessageA.Bytes()); err != nil {
				return nil, status.ErrBufferFull
			}
		}
		m, err := c.Common.L1L2Transcript(sessionID)
		if err != nil {
			return nil, err
		}
		if err := l1l2.Append(m); err != nil {
			return nil, status.ErrBufferFull
		}
		signed = l1l2.Bytes()
		if version >= protocol.Version12 {
			hash, err := crypto.HashAll(hashAlgo, signed)
			if err != nil {
				return nil, status.ErrCryptoError
			}
			l1l2Hash = hash
		}
	}

	if version >= protocol.Version12 {
		signed = signingMessage(protocol.SignContextMeasurements, l1l2Hash)
	} else if signed == nil {
		// Hashed mode before 1.2: the running digest stands in for the
		// retained transcript.
		signed = l1l2Hash
	}
	return signed, nil
}

// signingMessage builds the SPDM 1.2 signing wrapper:
// prefix || zero pad || context || transcript hash.
func signingMessage(context []byte, transcriptHash []byte) []byte {
	out := make([]byte, 0, protocol.SigningContextSize(context)+len(transcriptHash))
	out = append(out, protocol.SigningPrefix12...)
	out = append(out, protocol.SigningZeroPad[:]...)
	out = append(out, context...)
	out = append(out, transcriptHash...)
	return out
}
