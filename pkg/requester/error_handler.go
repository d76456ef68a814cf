package requester

import (
	"github.com/cenkalti/backoff"

	"github.com/backkem/spdm/pkg/codec"
	"github.com/backkem/spdm/pkg/common"
	"github.com/backkem/spdm/pkg/message"
	"github.com/backkem/spdm/pkg/protocol"
	"github.com/backkem/spdm/pkg/status"
)

// busyMaxRetries bounds transparent retries of Busy error responses.
const busyMaxRetries = 4

// peekError decodes a response as an ERROR payload if it is one. Returns
// nil when the response carries a different code.
func (c *Context) peekError(raw []byte) *message.ErrorResponse {
	r := codec.NewReader(raw)
	header, err := message.ReadHeader(r)
	if err != nil || header.Code != protocol.ResponseError {
		return nil
	}
	var errRsp message.ErrorResponse
	if err := errRsp.Decode(c.Common, r); err != nil {
		return nil
	}
	return &errRsp
}

// sendReceive transmits a request and receives its response, recovering
// what the protocol allows: Busy responses are retried with exponential
// back-off, ResponseNotReady is honored with RESPOND_IF_READY. Anything
// else is returned as received for the flow to judge.
func (c *Context) sendReceive(sessionID *uint32, raw []byte, buf []byte) (int, error) {
	var n int
	op := func() error {
		if err := c.sendRequest(sessionID, raw); err != nil {
			return backoff.Permanent(err)
		}
		m, err := c.receiveResponse(sessionID, buf)
		if err != nil {
			return backoff.Permanent(err)
		}
		if errRsp := c.peekError(buf[:m]); errRsp != nil && errRsp.Code == message.ErrorBusy {
			c.log.Debugf("peer busy, backing off")
			return status.ErrPeerBusy
		}
		n = m
		return nil
	}
	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), busyMaxRetries)
	if err := backoff.Retry(op, b); err != nil {
		return 0, err
	}

	if errRsp := c.peekError(buf[:n]); errRsp != nil && errRsp.Code == message.ErrorResponseNotReady {
		m, err := c.respondIfReady(sessionID, errRsp, buf)
		if err != nil {
			return 0, err
		}
		n = m
	}
	return n, nil
}

// respondIfReady retries a ResponseNotReady error by presenting the
// responder's token.
func (c *Context) respondIfReady(sessionID *uint32, errRsp *message.ErrorResponse, buf []byte) (int, error) {
	ext, err := message.ParseResponseNotReadyExt(errRsp.ExtendedData)
	if err != nil {
		return 0, status.ErrInvalidMsgField
	}
	c.log.Debugf("peer not ready, sending RESPOND_IF_READY token %d", ext.Token)

	raw := c.newMsgBuf()
	w := codec.NewWriter(raw)
	header := message.Header{
		Version: c.Common.Negotiate.SpdmVersionSel,
		Code:    protocol.RequestRespondIfReady,
	}
	if err := header.Encode(w); err != nil {
		return 0, status.ErrBufferFull
	}
	if err := w.PutU8(ext.RequestCode); err != nil { // param1
		return 0, status.ErrBufferFull
	}
	if err := w.PutU8(ext.Token); err != nil { // param2
		return 0, status.ErrBufferFull
	}
	if err := c.sendRequest(sessionID, w.Bytes()); err != nil {
		return 0, err
	}
	return c.receiveResponse(sessionID, buf)
}

// handleErrorResponse classifies an ERROR response that survived
// recovery. The flow that called it always surfaces a failure; this
// decides which one and records it.
func (c *Context) handleErrorResponse(errRsp *message.ErrorResponse) error {
	if errRsp == nil {
		return status.ErrInvalidMsgField
	}
	c.Common.Metrics.PeerError(metricsRole)
	c.log.Warnf("peer error response: code 0x%02x data 0x%02x", uint8(errRsp.Code), errRsp.Data)
	switch errRsp.Code {
	case message.ErrorBusy:
		return status.ErrPeerBusy
	case message.ErrorResponseNotReady:
		return status.ErrNotReady
	case message.ErrorRequestResynch:
		// The responder wants renegotiation from GET_VERSION.
		c.Common.Runtime.ConnectionState = common.ConnectionNotStarted
		return status.ErrErrorPeer
	default:
		return status.ErrErrorPeer
	}
}
