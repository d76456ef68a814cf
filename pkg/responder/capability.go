package responder

import (
	"github.com/backkem/spdm/pkg/codec"
	"github.com/backkem/spdm/pkg/common"
	"github.com/backkem/spdm/pkg/message"
	"github.com/backkem/spdm/pkg/protocol"
	"github.com/backkem/spdm/pkg/status"
)

// handleGetCapabilities records the requester's capabilities and answers
// with the configured responder set.
func (c *Context) handleGetCapabilities(sessionID *uint32, req []byte) ([]byte, error) {
	if c.Common.Runtime.ConnectionState < common.ConnectionAfterVersion {
		return c.errorResponse(message.ErrorUnexpectedRequest, 0)
	}

	r := codec.NewReader(req)
	if _, err := message.ReadHeader(r); err != nil {
		return nil, status.ErrInvalidMsgField
	}
	var request message.GetCapabilitiesRequest
	if err := request.Decode(c.Common, r); err != nil {
		return c.errorResponse(message.ErrorInvalidRequest, 0)
	}

	c.Common.Negotiate.ReqCTExponentSel = request.CTExponent
	c.Common.Negotiate.ReqCapabilitiesSel = request.Flags
	c.Common.Negotiate.RspCTExponentSel = c.Common.Config.CTExponent
	c.Common.Negotiate.RspCapabilitiesSel = c.Common.Config.RspCapabilities

	raw := c.newMsgBuf()
	w := codec.NewWriter(raw)
	header := message.Header{
		Version: c.Common.Negotiate.SpdmVersionSel,
		Code:    protocol.ResponseCapabilities,
	}
	if err := header.Encode(w); err != nil {
		return nil, status.ErrBufferFull
	}
	rsp := message.CapabilitiesResponse{
		CTExponent: c.Common.Config.CTExponent,
		Flags:      c.Common.Config.RspCapabilities,
	}
	if err := rsp.Encode(c.Common, w); err != nil {
		return nil, status.ErrBufferFull
	}

	if err := c.Common.AppendMessageA(req[:r.Used()]); err != nil {
		return nil, err
	}
	if err := c.Common.AppendMessageA(w.Bytes()); err != nil {
		return nil, err
	}
	c.Common.Runtime.ConnectionState = common.ConnectionAfterCapabilities
	return w.Bytes(), nil
}
