package responder

import (
	"github.com/backkem/spdm/pkg/codec"
	"github.com/backkem/spdm/pkg/common"
	"github.com/backkem/spdm/pkg/crypto"
	"github.com/backkem/spdm/pkg/message"
	"github.com/backkem/spdm/pkg/protocol"
	"github.com/backkem/spdm/pkg/status"
)

// handleGetDigests answers with the digest of every provisioned chain.
func (c *Context) handleGetDigests(sessionID *uint32, req []byte) ([]byte, error) {
	if c.Common.Runtime.ConnectionState < common.ConnectionNegotiated {
		return c.errorResponse(message.ErrorUnexpectedRequest, 0)
	}

	r := codec.NewReader(req)
	if _, err := message.ReadHeader(r); err != nil {
		return nil, status.ErrInvalidMsgField
	}
	var request message.GetDigestsRequest
	if err := request.Decode(c.Common, r); err != nil {
		return c.errorResponse(message.ErrorInvalidRequest, 0)
	}

	var mask uint8
	var digests [][]byte
	for slot := 0; slot < protocol.MaxSlots; slot++ {
		chain := c.Common.Provision.MyCertChain[slot]
		if chain == nil {
			continue
		}
		digest, err := crypto.HashAll(c.Common.Negotiate.BaseHashSel, chain.Data)
		if err != nil {
			return nil, status.ErrCryptoError
		}
		mask |= 1 << slot
		digests = append(digests, digest)
	}

	raw := c.newMsgBuf()
	w := codec.NewWriter(raw)
	header := message.Header{
		Version: c.Common.Negotiate.SpdmVersionSel,
		Code:    protocol.ResponseDigests,
	}
	if err := header.Encode(w); err != nil {
		return nil, status.ErrBufferFull
	}
	rsp := message.DigestsResponse{SlotMask: mask, Digests: digests}
	if err := rsp.Encode(c.Common, w); err != nil {
		return nil, status.ErrBufferFull
	}

	if err := c.Common.AppendMessageB(req[:r.Used()]); err != nil {
		return nil, err
	}
	if err := c.Common.AppendMessageB(w.Bytes()); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}
