package responder

import (
	"github.com/backkem/spdm/pkg/codec"
	"github.com/backkem/spdm/pkg/common"
	"github.com/backkem/spdm/pkg/message"
	"github.com/backkem/spdm/pkg/protocol"
	"github.com/backkem/spdm/pkg/status"
)

// handleGetVersion answers GET_VERSION with every configured version.
// GET_VERSION restarts negotiation, so runtime state resets first.
func (c *Context) handleGetVersion(sessionID *uint32, req []byte) ([]byte, error) {
	c.Common.ResetRuntimeInfo()

	r := codec.NewReader(req)
	if _, err := message.ReadHeader(r); err != nil {
		return nil, status.ErrInvalidMsgField
	}
	var request message.GetVersionRequest
	if err := request.Decode(c.Common, r); err != nil {
		return c.errorResponse(message.ErrorInvalidRequest, 0)
	}

	entries := make([]protocol.VersionEntry, 0, len(c.Common.Config.SpdmVersions))
	for _, v := range c.Common.Config.SpdmVersions {
		entries = append(entries, protocol.NewVersionEntry(v))
	}

	raw := c.newMsgBuf()
	w := codec.NewWriter(raw)
	header := message.Header{Version: protocol.Version10, Code: protocol.ResponseVersion}
	if err := header.Encode(w); err != nil {
		return nil, status.ErrBufferFull
	}
	rsp := message.VersionResponse{Versions: entries}
	if err := rsp.Encode(c.Common, w); err != nil {
		return nil, status.ErrBufferFull
	}

	// The requester commits to the highest common version; mirror that
	// selection so both sides gate later layouts identically.
	c.Common.Negotiate.SpdmVersionSel = c.highestConfigured()

	if err := c.Common.AppendMessageA(req[:r.Used()]); err != nil {
		return nil, err
	}
	if err := c.Common.AppendMessageA(w.Bytes()); err != nil {
		return nil, err
	}
	c.Common.Runtime.ConnectionState = common.ConnectionAfterVersion
	return w.Bytes(), nil
}

func (c *Context) highestConfigured() protocol.Version {
	best := c.Common.Config.SpdmVersions[0]
	for _, v := range c.Common.Config.SpdmVersions {
		if v > best {
			best = v
		}
	}
	return best
}
