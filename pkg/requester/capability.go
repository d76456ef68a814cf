package requester

import (
	"github.com/backkem/spdm/pkg/codec"
	"github.com/backkem/spdm/pkg/common"
	"github.com/backkem/spdm/pkg/message"
	"github.com/backkem/spdm/pkg/protocol"
	"github.com/backkem/spdm/pkg/status"
)

// SendReceiveCapabilities runs GET_CAPABILITIES/CAPABILITIES and records
// both sides' capability selections.
func (c *Context) SendReceiveCapabilities() error {
	if c.Common.Runtime.ConnectionState < common.ConnectionAfterVersion {
		return status.ErrInvalidStateLocal
	}

	raw := c.newMsgBuf()
	w := codec.NewWriter(raw)
	header := message.Header{
		Version: c.Common.Negotiate.SpdmVersionSel,
		Code:    protocol.RequestGetCapabilities,
	}
	if err := header.Encode(w); err != nil {
		return status.ErrBufferFull
	}
	request := message.GetCapabilitiesRequest{
		CTExponent: c.Common.Config.CTExponent,
		Flags:      c.Common.Config.ReqCapabilities,
	}
	if err := request.Encode(c.Common, w); err != nil {
		return status.ErrBufferFull
	}
	sent := w.Bytes()

	rcv := c.newMsgBuf()
	n, err := c.sendReceive(nil, sent, rcv)
	if err != nil {
		return err
	}

	r := codec.NewReader(rcv[:n])
	rspHeader, err := message.ReadHeader(r)
	if err != nil {
		return status.ErrInvalidMsgField
	}
	if rspHeader.Version != c.Common.Negotiate.SpdmVersionSel {
		return status.ErrInvalidMsgField
	}
	switch rspHeader.Code {
	case protocol.ResponseCapabilities:
	case protocol.ResponseError:
		return c.handleErrorResponse(c.peekError(rcv[:n]))
	default:
		return status.ErrErrorPeer
	}

	var rsp message.CapabilitiesResponse
	if err := rsp.Decode(c.Common, r); err != nil {
		return status.ErrInvalidMsgField
	}

	c.Common.Negotiate.ReqCTExponentSel = request.CTExponent
	c.Common.Negotiate.ReqCapabilitiesSel = request.Flags
	c.Common.Negotiate.RspCTExponentSel = rsp.CTExponent
	c.Common.Negotiate.RspCapabilitiesSel = rsp.Flags

	if err := c.Common.AppendMessageA(sent); err != nil {
		return err
	}
	if err := c.Common.AppendMessageA(rcv[:r.Used()]); err != nil {
		return err
	}
	c.Common.Runtime.ConnectionState = common.ConnectionAfterCapabilities
	return nil
}
