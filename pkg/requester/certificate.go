package requester

import (
	"bytes"

	"github.com/backkem/spdm/pkg/codec"
	"github.com/backkem/spdm/pkg/common"
	"github.com/backkem/spdm/pkg/crypto"
	"github.com/backkem/spdm/pkg/message"
	"github.com/backkem/spdm/pkg/protocol"
	"github.com/backkem/spdm/pkg/status"
)

// sendReceiveCertificatePortion fetches one chain portion and appends both
// messages to message_b. Returns the portion and remainder lengths.
func (c *Context) sendReceiveCertificatePortion(slotID uint8, offset, length uint16) (uint16, uint16, error) {
	raw := c.newMsgBuf()
	w := codec.NewWriter(raw)
	header := message.Header{
		Version: c.Common.Negotiate.SpdmVersionSel,
		Code:    protocol.RequestGetCertificate,
	}
	if err := header.Encode(w); err != nil {
		return 0, 0, status.ErrBufferFull
	}
	request := message.GetCertificateRequest{SlotID: slotID, Offset: offset, Length: length}
	if err := request.Encode(c.Common, w); err != nil {
		return 0, 0, status.ErrBufferFull
	}
	sent := w.Bytes()

	if err := c.sendRequest(nil, sent); err != nil {
		return 0, 0, err
	}
	if err := c.Common.AppendMessageB(sent); err != nil {
		return 0, 0, err
	}

	rcv := c.newMsgBuf()
	n, err := c.receiveResponse(nil, rcv)
	if err != nil {
		return 0, 0, err
	}

	r := codec.NewReader(rcv[:n])
	rspHeader, err := message.ReadHeader(r)
	if err != nil {
		return 0, 0, status.ErrInvalidMsgField
	}
	if rspHeader.Version != c.Common.Negotiate.SpdmVersionSel {
		return 0, 0, status.ErrInvalidMsgField
	}
	switch rspHeader.Code {
	case protocol.ResponseCertificate:
	case protocol.ResponseError:
		return 0, 0, c.handleErrorResponse(c.peekError(rcv[:n]))
	default:
		return 0, 0, status.ErrErrorPeer
	}

	var rsp message.CertificateResponse
	if err := rsp.Decode(c.Common, r); err != nil {
		return 0, 0, status.ErrInvalidMsgField
	}
	if int(rsp.PortionLength) > protocol.MaxCertPortionSize ||
		int(offset)+int(rsp.PortionLength) > protocol.MaxCertChainSize {
		return 0, 0, status.ErrBufferFull
	}

	chain := c.Common.Peer.PeerCertChain[slotID]
	if chain == nil {
		chain = &protocol.CertChainBuffer{}
		c.Common.Peer.PeerCertChain[slotID] = chain
	}
	if err := chain.Append(int(offset), rsp.CertChain); err != nil {
		return 0, 0, status.ErrBufferFull
	}

	if err := c.Common.AppendMessageB(rcv[:r.Used()]); err != nil {
		return 0, 0, err
	}
	return rsp.PortionLength, rsp.RemainderLength, nil
}

// SendReceiveCertificate retrieves the full certificate chain from a slot
// portion by portion, then verifies it: structural header check, root hash
// check, optional byte-wise match against the pinned chain, and end-to-end
// chain validation.
func (c *Context) SendReceiveCertificate(slotID uint8) error {
	if slotID >= protocol.MaxSlots {
		return status.ErrInvalidParameter
	}
	if c.Common.Runtime.ConnectionState < common.ConnectionNegotiated {
		return status.ErrInvalidStateLocal
	}
	c.Common.Peer.PeerCertChain[slotID] = nil

	var offset uint16
	length := uint16(protocol.MaxCertPortionSize)
	for length != 0 {
		portion, remainder, err := c.sendReceiveCertificatePortion(slotID, offset, length)
		if err != nil {
			return err
		}
		offset += portion
		length = remainder
		if length > protocol.MaxCertPortionSize {
			length = protocol.MaxCertPortionSize
		}
	}
	c.log.Infof("retrieved certificate chain: slot %d, %d bytes", slotID, offset)

	if c.Common.Provision.PeerCertChainData != nil {
		if err := c.verifyPeerCertChain(slotID); err != nil {
			c.Common.Metrics.VerifyFailure(metricsRole)
			return err
		}
		c.log.Infof("certificate chain verification passed")
	}
	return nil
}

// verifyPeerCertChain checks the retrieved chain against the provisioned
// one: the header must be complete, the embedded root hash must match the
// actual root certificate, the DER payload must equal the pinned chain and
// must verify end to end.
func (c *Context) verifyPeerCertChain(slotID uint8) error {
	chain := c.Common.Peer.PeerCertChain[slotID]
	if chain == nil {
		return status.ErrInvalidStateLocal
	}
	hashAlgo := c.Common.Negotiate.BaseHashSel
	if chain.DataSize() <= protocol.CertChainHeaderSize(hashAlgo) {
		return status.ErrInvalidCert
	}

	der := chain.DerData(hashAlgo)
	rootBegin, rootEnd, err := crypto.GetCertFromChain(der, 0)
	if err != nil {
		return status.ErrInvalidCert
	}
	rootHash, err := crypto.HashAll(hashAlgo, der[rootBegin:rootEnd])
	if err != nil {
		return status.ErrCryptoError
	}
	if !bytes.Equal(rootHash, chain.RootHash(hashAlgo)) {
		c.log.Errorf("root certificate hash mismatch")
		return status.ErrInvalidCert
	}

	pinned := c.Common.Provision.PeerCertChainData
	if !bytes.Equal(der, pinned.Data) {
		c.log.Errorf("certificate chain does not match provisioned chain")
		return status.ErrInvalidCert
	}

	if err := crypto.VerifyCertChain(der); err != nil {
		c.log.Errorf("certificate chain validation failed: %v", err)
		return status.ErrVerifFail
	}
	return nil
}
