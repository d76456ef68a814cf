package responder

import (
	"github.com/backkem/spdm/pkg/codec"
	"github.com/backkem/spdm/pkg/common"
	"github.com/backkem/spdm/pkg/message"
	"github.com/backkem/spdm/pkg/protocol"
	"github.com/backkem/spdm/pkg/status"
)

// handleGetCertificate serves one portion of a provisioned chain.
func (c *Context) handleGetCertificate(sessionID *uint32, req []byte) ([]byte, error) {
	if c.Common.Runtime.ConnectionState < common.ConnectionNegotiated {
		return c.errorResponse(message.ErrorUnexpectedRequest, 0)
	}

	r := codec.NewReader(req)
	if _, err := message.ReadHeader(r); err != nil {
		return nil, status.ErrInvalidMsgField
	}
	var request message.GetCertificateRequest
	if err := request.Decode(c.Common, r); err != nil {
		return c.errorResponse(message.ErrorInvalidRequest, 0)
	}

	if request.SlotID >= protocol.MaxSlots {
		return c.errorResponse(message.ErrorInvalidRequest, 0)
	}
	chain := c.Common.Provision.MyCertChain[request.SlotID]
	if chain == nil {
		return c.errorResponse(message.ErrorInvalidRequest, 0)
	}
	total := chain.DataSize()
	offset := int(request.Offset)
	if offset > total {
		return c.errorResponse(message.ErrorInvalidRequest, 0)
	}

	portion := int(request.Length)
	if portion > protocol.MaxCertPortionSize {
		portion = protocol.MaxCertPortionSize
	}
	if offset+portion > total {
		portion = total - offset
	}
	remainder := total - offset - portion

	raw := c.newMsgBuf()
	w := codec.NewWriter(raw)
	header := message.Header{
		Version: c.Common.Negotiate.SpdmVersionSel,
		Code:    protocol.ResponseCertificate,
	}
	if err := header.Encode(w); err != nil {
		return nil, status.ErrBufferFull
	}
	rsp := message.CertificateResponse{
		SlotID:          request.SlotID,
		PortionLength:   uint16(portion),
		RemainderLength: uint16(remainder),
		CertChain:       chain.Data[offset : offset+portion],
	}
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
