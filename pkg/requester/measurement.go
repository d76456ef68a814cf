package requester

import (
	"github.com/backkem/spdm/pkg/codec"
	"github.com/backkem/spdm/pkg/common"
	"github.com/backkem/spdm/pkg/crypto"
	"github.com/backkem/spdm/pkg/message"
	"github.com/backkem/spdm/pkg/protocol"
	"github.com/backkem/spdm/pkg/status"
	"github.com/backkem/spdm/pkg/transcript"
)

// SendReceiveMeasurement runs GET_MEASUREMENTS/MEASUREMENTS, over a
// session when sessionID is non-nil. The measurement record is written to
// outRecord; the return value is the total number of indices when the
// operation queried it, and the number of returned blocks otherwise. When
// a signature was requested it is verified against the L1/L2 transcript,
// which is reset afterwards whether or not verification passed.
func (c *Context) SendReceiveMeasurement(sessionID *uint32, slotID uint8, attributes message.MeasurementAttributes, operation protocol.MeasurementOperation, outRecord *protocol.MeasurementRecord) (uint8, error) {
	c.log.Debugf("send spdm measurement")

	if slotID >= protocol.MaxSlots {
		return 0, status.ErrInvalidStateLocal
	}

	sent, err := c.encodeMeasurementRequest(attributes, operation, slotID)
	if err != nil {
		return 0, err
	}

	rcv := c.newMsgBuf()
	n, err := c.sendReceive(sessionID, sent, rcv)
	if err != nil {
		return 0, err
	}
	return c.handleMeasurementResponse(sessionID, slotID, attributes, operation, outRecord, sent, rcv[:n])
}

// encodeMeasurementRequest builds the request with a fresh nonce.
func (c *Context) encodeMeasurementRequest(attributes message.MeasurementAttributes, operation protocol.MeasurementOperation, slotID uint8) ([]byte, error) {
	raw := c.newMsgBuf()
	w := codec.NewWriter(raw)
	header := message.Header{
		Version: c.Common.Negotiate.SpdmVersionSel,
		Code:    protocol.RequestGetMeasurements,
	}
	if err := header.Encode(w); err != nil {
		return nil, status.ErrBufferFull
	}

	var nonce protocol.Nonce
	if err := crypto.Random(nonce[:]); err != nil {
		return nil, status.ErrCryptoError
	}
	request := message.GetMeasurementsRequest{
		Attributes: attributes,
		Operation:  operation,
		Nonce:      nonce,
		SlotID:     slotID,
	}
	if err := request.Encode(c.Common, w); err != nil {
		return nil, status.ErrBufferFull
	}
	return w.Bytes(), nil
}

func (c *Context) handleMeasurementResponse(sessionID *uint32, slotID uint8, attributes message.MeasurementAttributes, operation protocol.MeasurementOperation, outRecord *protocol.MeasurementRecord, sent, rcv []byte) (uint8, error) {
	// The codec reads the signature field based on this flag; set it
	// before decoding and before any transcript append.
	c.Common.Runtime.NeedMeasurementSignature = attributes.Contains(message.MeasAttrSignatureRequested)

	r := codec.NewReader(rcv)
	rspHeader, err := message.ReadHeader(r)
	if err != nil {
		return 0, status.ErrInvalidMsgField
	}
	if rspHeader.Version != c.Common.Negotiate.SpdmVersionSel {
		return 0, status.ErrInvalidMsgField
	}
	switch rspHeader.Code {
	case protocol.ResponseMeasurements:
	case protocol.ResponseError:
		return 0, c.handleErrorResponse(c.peekError(rcv))
	default:
		return 0, status.ErrErrorPeer
	}

	var measurements message.MeasurementsResponse
	if err := measurements.Decode(c.Common, r); err != nil {
		c.log.Errorf("measurements decode failed")
		return 0, status.ErrInvalidMsgField
	}
	used := r.Used()

	if c.Common.Negotiate.SpdmVersionSel >= protocol.Version12 {
		c.Common.Runtime.ContentChanged = measurements.ContentChanged
	}

	// The transcript covers the request and the response without its
	// trailing signature bytes.
	transcriptUsed := used
	if c.Common.Runtime.NeedMeasurementSignature {
		transcriptUsed -= c.Common.Negotiate.BaseAsymSel.Size()
	}
	if err := c.Common.AppendMessageM(sessionID, sent); err != nil {
		return 0, err
	}
	if err := c.Common.AppendMessageM(sessionID, rcv[:transcriptUsed]); err != nil {
		return 0, err
	}

	if attributes.Contains(message.MeasAttrSignatureRequested) {
		if err := c.verifyMeasurementSignature(slotID, sessionID, &measurements.Signature); err != nil {
			c.log.Errorf("measurement signature verification failed")
			c.Common.Metrics.VerifyFailure(metricsRole)
			c.Common.ResetMessageM(sessionID)
			return 0, status.ErrVerifFail
		}
		// The signature closes this L1/L2 transaction; the next one
		// starts from a clean transcript.
		c.Common.ResetMessageM(sessionID)
		c.log.Debugf("measurement signature verification passed")
	}

	*outRecord = measurements.Record

	if operation == protocol.MeasurementOperationQueryTotal {
		return measurements.NumberOfMeasurements, nil
	}
	return measurements.Record.NumberOfBlocks, nil
}

// verifyMeasurementSignature checks the L1/L2 signature against the peer
// certificate chain at slotID. For SPDM 1.2 and later the signed message
// is the signing-context wrapper around the transcript hash; earlier
// versions sign the raw transcript.
func (c *Context) verifyMeasurementSignature(slotID uint8, sessionID *uint32, signature *protocol.Signature) error {
	version := c.Common.Negotiate.SpdmVersionSel
	hashAlgo := c.Common.Negotiate.BaseHashSel

	var l1l2Hash []byte
	var signed []byte
	if c.Common.Config.TranscriptMode == common.TranscriptHashed {
		hash, err := c.Common.L1L2Hash(sessionID)
		if err != nil {
			return err
		}
		l1l2Hash = hash
	} else {
		l1l2 := transcript.NewManagedBuffer(2 * c.Common.Config.TranscriptCapacity)
		if version >= protocol.Version12 {
			if err := l1l2.Append(c.Common.Runtime.MessageA.Bytes()); err != nil {
				return status.ErrBufferFull
			}
		}
		m, err := c.Common.L1L2Transcript(sessionID)
		if err != nil {
			return err
		}
		if err := l1l2.Append(m); err != nil {
			return status.ErrBufferFull
		}
		signed = l1l2.Bytes()
		if version >= protocol.Version12 {
			hash, err := crypto.HashAll(hashAlgo, signed)
			if err != nil {
				return status.ErrCryptoError
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

	chain := c.Common.Peer.PeerCertChain[slotID]
	if chain == nil {
		c.log.Errorf("peer certificate chain not populated for slot %d", slotID)
		return status.ErrInvalidParameter
	}
	der := chain.DerData(hashAlgo)
	if der == nil {
		return status.ErrInvalidParameter
	}

	if err := crypto.AsymVerify(hashAlgo, c.Common.Negotiate.BaseAsymSel, der, signed, signature); err != nil {
		return status.ErrVerifFail
	}
	return nil
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
