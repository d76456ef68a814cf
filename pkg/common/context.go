package common

import (
	"github.com/pion/logging"

	"github.com/backkem/spdm/pkg/metrics"
	"github.com/backkem/spdm/pkg/protocol"
	"github.com/backkem/spdm/pkg/status"
	"github.com/backkem/spdm/pkg/transcript"
	"github.com/backkem/spdm/pkg/transport"
)

// Context is the shared state of one SPDM endpoint: immutable config and
// provisioned material, the negotiation outcome, runtime transcripts, peer
// state and the session table. A Context is not internally synchronized;
// concurrent use requires external mutual exclusion. Distinct Contexts may
// run in parallel freely.
type Context struct {
	Config    ConfigInfo
	Provision ProvisionInfo
	Negotiate NegotiateInfo
	Runtime   RuntimeInfo
	Peer      PeerInfo

	// Metrics is an optional protocol counter sink; nil disables it.
	Metrics *metrics.Collector

	sessions [MaxSessions]*Session

	encap  transport.Encap
	device transport.DeviceIO
	log    logging.LeveledLogger

	// Scratch for transport framing, sized to the largest frame.
	frameBuf []byte
}

// NewContext creates a Context over the given transport encapsulation and
// device endpoint. The config is validated and defaulted; provision info is
// taken as-is; runtime and peer state start zeroed.
func NewContext(config ConfigInfo, provision ProvisionInfo, encap transport.Encap, device transport.DeviceIO, scope string) (*Context, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	c := &Context{
		Config:    config,
		Provision: provision,
		encap:     encap,
		device:    device,
		log:       config.LoggerFactory.NewLogger(scope),
		frameBuf:  make([]byte, config.MaxSpdmMsgSize+64),
	}
	c.Runtime.MessageA = transcript.NewManagedBuffer(config.TranscriptCapacity)
	c.Runtime.MessageB = transcript.NewManagedBuffer(config.TranscriptCapacity)
	c.Runtime.MessageC = transcript.NewManagedBuffer(config.TranscriptCapacity)
	c.Runtime.MessageM = transcript.NewManagedBuffer(config.TranscriptCapacity)
	c.Runtime.ContentChanged = protocol.ContentChangeNotSupported
	return c, nil
}

// Log returns the context's leveled logger.
func (c *Context) Log() logging.LeveledLogger {
	return c.log
}

// ResetRuntimeInfo clears transcripts and negotiation progress, returning
// the connection to its pre-GET_VERSION state. Sessions are dropped.
func (c *Context) ResetRuntimeInfo() {
	c.Runtime.reset()
	for i := range c.sessions {
		c.sessions[i] = nil
	}
}

// --- Session table ---------------------------------------------------

// NewSession allocates a table entry for id. Fails with ErrSessionLimit
// when the table is full and ErrInvalidParameter when the id exists.
func (c *Context) NewSession(id uint32) (*Session, error) {
	for _, s := range c.sessions {
		if s != nil && s.ID == id {
			return nil, status.ErrInvalidParameter
		}
	}
	for i, s := range c.sessions {
		if s == nil {
			sess := newSession(id, c.Config.TranscriptCapacity)
			c.sessions[i] = sess
			return sess, nil
		}
	}
	return nil, status.ErrSessionLimit
}

// Session looks up a session by id. Unknown ids return an error, never a
// panic.
func (c *Context) Session(id uint32) (*Session, error) {
	for _, s := range c.sessions {
		if s != nil && s.ID == id {
			return s, nil
		}
	}
	return nil, status.ErrSessionNotFound
}

// FreeSession removes a session from the table.
func (c *Context) FreeSession(id uint32) {
	for i, s := range c.sessions {
		if s != nil && s.ID == id {
			c.sessions[i] = nil
			return
		}
	}
}

// --- Transcript bookkeeping ------------------------------------------

func mapTranscriptErr(err error) error {
	if err != nil {
		return status.ErrBufferFull
	}
	return nil
}

// AppendMessageA logs negotiation-phase bytes.
func (c *Context) AppendMessageA(b []byte) error {
	return mapTranscriptErr(c.Runtime.MessageA.Append(b))
}

// AppendMessageB logs digest/certificate-phase bytes.
func (c *Context) AppendMessageB(b []byte) error {
	return mapTranscriptErr(c.Runtime.MessageB.Append(b))
}

// AppendMessageC logs challenge-phase bytes.
func (c *Context) AppendMessageC(b []byte) error {
	return mapTranscriptErr(c.Runtime.MessageC.Append(b))
}

// AppendMessageM logs measurement-phase bytes, into the session transcript
// when sessionID is non-nil, the main transcript otherwise. In hashed mode
// the bytes are absorbed into a running L1/L2 hash that is seeded with
// message_a for SPDM 1.2 and later.
func (c *Context) AppendMessageM(sessionID *uint32, b []byte) error {
	if c.Config.TranscriptMode == TranscriptHashed {
		return c.appendHashedM(sessionID, b)
	}
	buf := c.Runtime.MessageM
	if sessionID != nil {
		sess, err := c.Session(*sessionID)
		if err != nil {
			return err
		}
		buf = sess.MessageM
	}
	return mapTranscriptErr(buf.Append(b))
}

func (c *Context) appendHashedM(sessionID *uint32, b []byte) error {
	target := &c.Runtime.DigestL1L2
	if sessionID != nil {
		sess, err := c.Session(*sessionID)
		if err != nil {
			return err
		}
		target = &sess.DigestL1L2
	}
	if *target == nil {
		t, err := transcript.NewHashedTranscript(c.Negotiate.BaseHashSel)
		if err != nil {
			return status.ErrCryptoError
		}
		if c.Negotiate.SpdmVersionSel >= protocol.Version12 {
			if err := t.Append(c.Runtime.MessageA.Bytes()); err != nil {
				return status.ErrCryptoError
			}
		}
		*target = t
	}
	(*target).Append(b)
	return nil
}

// ResetMessageM discards the measurement transcript after a signed
// transaction completes or fails verification.
func (c *Context) ResetMessageM(sessionID *uint32) {
	if sessionID != nil {
		if sess, err := c.Session(*sessionID); err == nil {
			sess.MessageM.Reset()
			sess.DigestL1L2 = nil
		}
		return
	}
	c.Runtime.MessageM.Reset()
	c.Runtime.DigestL1L2 = nil
}

// L1L2Transcript returns the raw measurement transcript bytes for the main
// channel or a session. Raw mode only.
func (c *Context) L1L2Transcript(sessionID *uint32) ([]byte, error) {
	if sessionID == nil {
		return c.Runtime.MessageM.Bytes(), nil
	}
	sess, err := c.Session(*sessionID)
	if err != nil {
		return nil, err
	}
	return sess.MessageM.Bytes(), nil
}

// L1L2Hash returns the running L1/L2 digest. Hashed mode only; fails when
// no measurement bytes were absorbed yet.
func (c *Context) L1L2Hash(sessionID *uint32) ([]byte, error) {
	t := c.Runtime.DigestL1L2
	if sessionID != nil {
		sess, err := c.Session(*sessionID)
		if err != nil {
			return nil, err
		}
		t = sess.DigestL1L2
	}
	if t == nil {
		return nil, status.ErrInvalidStateLocal
	}
	return t.Finalize(), nil
}

// --- Transport -------------------------------------------------------

// SendMessage frames and transmits one SPDM payload on the main channel.
func (c *Context) SendMessage(spdm []byte) error {
	n, err := c.encap.Encap(spdm, c.frameBuf)
	if err != nil {
		c.log.Errorf("encap failed: %v", err)
		return status.ErrIo
	}
	if err := c.device.Send(c.frameBuf[:n]); err != nil {
		c.log.Errorf("send failed: %v", err)
		return status.ErrIo
	}
	return nil
}

// ReceiveMessage receives one frame and strips transport framing into buf,
// returning the SPDM payload length.
func (c *Context) ReceiveMessage(buf []byte) (int, error) {
	n, err := c.device.Receive(c.frameBuf)
	if err != nil {
		c.log.Errorf("receive failed: %v", err)
		return 0, status.ErrIo
	}
	used, err := c.encap.Decap(c.frameBuf[:n], buf)
	if err != nil {
		c.log.Errorf("decap failed: %v", err)
		return 0, status.ErrIo
	}
	return used, nil
}

// SendSecuredMessage wraps spdm in the session's secured framing before
// transport framing. requestDirection selects the traffic keys: true for
// requester-to-responder.
func (c *Context) SendSecuredMessage(sessionID uint32, spdm []byte, requestDirection bool) error {
	sess, err := c.Session(sessionID)
	if err != nil {
		return err
	}
	secured := make([]byte, len(spdm)+securedHeaderSize+32)
	n, err := sess.EncodeSecuredMessage(spdm, secured, requestDirection)
	if err != nil {
		return err
	}
	return c.SendMessage(secured[:n])
}

// ReceiveSecuredMessage receives one secured message for the session and
// returns the plaintext SPDM payload length in buf.
func (c *Context) ReceiveSecuredMessage(sessionID uint32, buf []byte, requestDirection bool) (int, error) {
	sess, err := c.Session(sessionID)
	if err != nil {
		return 0, err
	}
	raw := make([]byte, c.Config.MaxSpdmMsgSize+64)
	n, err := c.ReceiveMessage(raw)
	if err != nil {
		return 0, err
	}
	return sess.DecodeSecuredMessage(raw[:n], buf, requestDirection)
}
