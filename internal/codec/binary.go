package codec

import (
	"bytes"
	"fmt"

	"github.com/lithdew/bytesutil"
)

const (
	// HeaderLen is the length prefix plus the type byte.
	HeaderLen = 3

	// MaxFrameLen is the largest frame the uint16 prefix can describe.
	MaxFrameLen = 0xFFFF
)

// Binary is the default [Codec].
type Binary struct{}

var _ Codec = Binary{}

// Encode implements [Codec].
func (Binary) Encode(t Type, payload any) ([]byte, error) {
	dst := make([]byte, HeaderLen, 64)
	dst[2] = byte(t)

	var err error
	switch t {
	case ServerJoinReq:
		p, ok := payload.(*JoinRequest)
		if !ok {
			return nil, payloadMismatch(t, payload)
		}
		dst = append(dst, p.MajorVersion, p.MinorVersion, p.PatchVersion)
		if dst, err = appendStrings(dst, p.VersionLabel, p.Capability, p.Username); err != nil {
			return nil, err
		}
	case ServerJoinReply:
		p, ok := payload.(*JoinReply)
		if !ok {
			return nil, payloadMismatch(t, payload)
		}
		dst = append(dst, boolByte(p.YouCanJoin))
		if dst, err = appendStrings(dst, p.Message, p.Capability, p.ChallengeFile); err != nil {
			return nil, err
		}
		dst = bytesutil.AppendUint16BE(dst, uint16(p.ConnID))
	case ProcessingStarted, ProcessingFinished:
		p, ok := payload.(*ProcessingMark)
		if !ok {
			return nil, payloadMismatch(t, payload)
		}
		dst = bytesutil.AppendUint32BE(dst, p.RequestID)
	case ConnPing, ConnPong:
		if payload != nil {
			return nil, payloadMismatch(t, payload)
		}
	default:
		switch p := payload.(type) {
		case nil:
		case []byte:
			dst = append(dst, p...)
		default:
			return nil, payloadMismatch(t, payload)
		}
	}

	if len(dst) > MaxFrameLen {
		return nil, fmt.Errorf("codec: %s frame of %d bytes exceeds %d", t, len(dst), MaxFrameLen)
	}
	bytesutil.AppendUint16BE(dst[:0], uint16(len(dst)))
	return dst, nil
}

// Decode implements [Codec].
func (Binary) Decode(buf []byte) (Packet, int, error) {
	if len(buf) < 2 {
		return Packet{}, 0, ErrNeedMoreData
	}
	size := int(bytesutil.Uint16BE(buf[:2]))
	if size < HeaderLen {
		return Packet{}, 0, fmt.Errorf("%w: frame length %d below header size", ErrCorrupt, size)
	}
	if len(buf) < size {
		return Packet{}, 0, ErrNeedMoreData
	}

	t := Type(buf[2])
	body := buf[HeaderLen:size]
	payload, err := decodeBody(t, body)
	if err != nil {
		return Packet{}, 0, err
	}
	return Packet{Type: t, Payload: payload}, size, nil
}

func decodeBody(t Type, body []byte) (any, error) {
	r := reader{t: t, buf: body}
	var payload any

	switch t {
	case ServerJoinReq:
		p := &JoinRequest{
			MajorVersion: r.u8(),
			MinorVersion: r.u8(),
			PatchVersion: r.u8(),
		}
		p.VersionLabel = r.str()
		p.Capability = r.str()
		p.Username = r.str()
		payload = p
	case ServerJoinReply:
		p := &JoinReply{YouCanJoin: r.u8() != 0}
		p.Message = r.str()
		p.Capability = r.str()
		p.ChallengeFile = r.str()
		p.ConnID = int16(r.u16())
		payload = p
	case ProcessingStarted, ProcessingFinished:
		payload = &ProcessingMark{RequestID: r.u32()}
	case ConnPing, ConnPong:
	default:
		return append([]byte(nil), body...), nil
	}

	if r.err != nil {
		return nil, r.err
	}
	if len(r.buf) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes in %s", ErrCorrupt, len(r.buf), t)
	}
	return payload, nil
}

// reader consumes a frame body; the first short read latches err.
type reader struct {
	t   Type
	buf []byte
	err error
}

func (r *reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if len(r.buf) < n {
		r.err = fmt.Errorf("%w: truncated %s body", ErrCorrupt, r.t)
		return false
	}
	return true
}

func (r *reader) u8() byte {
	if !r.need(1) {
		return 0
	}
	b := r.buf[0]
	r.buf = r.buf[1:]
	return b
}

func (r *reader) u16() uint16 {
	if !r.need(2) {
		return 0
	}
	v := bytesutil.Uint16BE(r.buf[:2])
	r.buf = r.buf[2:]
	return v
}

func (r *reader) u32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := bytesutil.Uint32BE(r.buf[:4])
	r.buf = r.buf[4:]
	return v
}

func (r *reader) str() string {
	if r.err != nil {
		return ""
	}
	i := bytes.IndexByte(r.buf, 0)
	if i < 0 {
		r.err = fmt.Errorf("%w: unterminated string in %s", ErrCorrupt, r.t)
		return ""
	}
	s := string(r.buf[:i])
	r.buf = r.buf[i+1:]
	return s
}

func appendStrings(dst []byte, ss ...string) ([]byte, error) {
	for _, s := range ss {
		if bytes.IndexByte([]byte(s), 0) >= 0 {
			return nil, fmt.Errorf("codec: string %q contains NUL", s)
		}
		dst = append(dst, s...)
		dst = append(dst, 0)
	}
	return dst, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func payloadMismatch(t Type, payload any) error {
	return fmt.Errorf("codec: unexpected payload %T for %s", payload, t)
}
