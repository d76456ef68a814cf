package requester

import (
	"github.com/backkem/spdm/pkg/codec"
	"github.com/backkem/spdm/pkg/common"
	"github.com/backkem/spdm/pkg/message"
	"github.com/backkem/spdm/pkg/protocol"
	"github.com/backkem/spdm/pkg/status"
)

// SendReceiveDigests runs GET_DIGESTS/DIGESTS and returns the slot mask
// and the per-slot chain digests.
func (c *Context) SendReceiveDigests() (uint8, [][]byte, error) {
	if c.Common.Runtime.ConnectionState < common.ConnectionNegotiated {
		return 0, nil, status.ErrInvalidStateLocal
	}

	raw := c.newMsgBuf()
	w := codec.NewWriter(raw)
	header := message.Header{
		Version: c.Common.Negotiate.SpdmVersionSel,
		Code:    protocol.RequestGetDigests,
	}
	if err := header.Encode(w); err != nil {
		return 0, nil, status.ErrBufferFull
	}
	request := message.GetDigestsRequest{}
	if err := request.Encode(c.Common, w); err != nil {
		return 0, nil, status.ErrBufferFull
	}
	sent := w.Bytes()

	rcv := c.newMsgBuf()
	n, err := c.sendReceive(nil, sent, rcv)
	if err != nil {
		return 0, nil, err
	}

	r := codec.NewReader(rcv[:n])
	rspHeader, err := message.ReadHeader(r)
	if err != nil {
		return 0, nil, status.ErrInvalidMsgField
	}
	if rspHeader.Version != c.Common.Negotiate.SpdmVersionSel {
		return 0, nil, status.ErrInvalidMsgField
	}
	switch rspHeader.Code {
	case protocol.ResponseDigests:
	case protocol.ResponseError:
		return 0, nil, c.handleErrorResponse(c.peekError(rcv[:n]))
	default:
		return 0, nil, status.ErrErrorPeer
	}

	var rsp message.DigestsResponse
	if err := rsp.Decode(c.Common, r); err != nil {
		return 0, nil, status.ErrInvalidMsgField
	}

	if err := c.Common.AppendMessageB(sent); err != nil {
		return 0, nil, err
	}
	if err := c.Common.AppendMessageB(rcv[:r.Used()]); err != nil {
		return 0, nil, err
	}
	return rsp.SlotMask, rsp.Digests, nil
}
