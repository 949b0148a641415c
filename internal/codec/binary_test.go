package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBinary_JoinRequestWire(t *testing.T) {
	frame, err := Binary{}.Encode(ServerJoinReq, &JoinRequest{
		MajorVersion: 3, MinorVersion: 1, PatchVersion: 0,
		VersionLabel: "-dev", Capability: "+cap", Username: "alice",
	})
	require.NoError(t, err)

	want := []byte{0, 22, byte(ServerJoinReq), 3, 1, 0}
	want = append(want, "-dev\x00+cap\x00alice\x00"...)
	require.Equal(t, want, frame)

	pkt, n, err := Binary{}.Decode(frame)
	require.NoError(t, err)
	require.Equal(t, len(frame), n)
	require.Equal(t, ServerJoinReq, pkt.Type)
	require.Equal(t, "alice", pkt.Payload.(*JoinRequest).Username)
}

func TestBinary_JoinReply(t *testing.T) {
	frame, err := Binary{}.Encode(ServerJoinReply, &JoinReply{
		YouCanJoin: true, Message: "welcome", ConnID: -2,
	})
	require.NoError(t, err)

	pkt, _, err := Binary{}.Decode(frame)
	require.NoError(t, err)
	reply := pkt.Payload.(*JoinReply)
	require.True(t, reply.YouCanJoin)
	require.Equal(t, "welcome", reply.Message)
	require.EqualValues(t, -2, reply.ConnID)
}

func TestBinary_DecodeConsumesOneFrame(t *testing.T) {
	a, err := Binary{}.Encode(ProcessingStarted, &ProcessingMark{RequestID: 7})
	require.NoError(t, err)
	b, err := Binary{}.Encode(ConnPing, nil)
	require.NoError(t, err)

	buf := append(append([]byte{}, a...), b...)

	pkt, n, err := Binary{}.Decode(buf)
	require.NoError(t, err)
	require.Equal(t, len(a), n)
	require.EqualValues(t, 7, pkt.Payload.(*ProcessingMark).RequestID)

	pkt, n, err = Binary{}.Decode(buf[n:])
	require.NoError(t, err)
	require.Equal(t, HeaderLen, n)
	require.Equal(t, ConnPing, pkt.Type)
	require.Nil(t, pkt.Payload)
}

func TestBinary_NeedMoreData(t *testing.T) {
	frame, err := Binary{}.Encode(Type(42), []byte("some game data"))
	require.NoError(t, err)

	for cut := 0; cut < len(frame); cut++ {
		_, n, err := Binary{}.Decode(frame[:cut])
		require.ErrorIs(t, err, ErrNeedMoreData, "cut=%d", cut)
		require.Zero(t, n)
	}
}

func TestBinary_RawPayloadDoesNotAlias(t *testing.T) {
	frame, err := Binary{}.Encode(Type(42), []byte("abc"))
	require.NoError(t, err)

	pkt, _, err := Binary{}.Decode(frame)
	require.NoError(t, err)
	frame[HeaderLen] = 'X'
	require.Equal(t, []byte("abc"), pkt.Payload)
}

func TestBinary_Corrupt(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
	}{
		{"length below header", []byte{0, 2, 0}},
		{"truncated mark", []byte{0, 5, byte(ProcessingFinished), 0, 1}},
		{"trailing bytes", []byte{0, 4, byte(ConnPong), 9}},
		{"unterminated string", append([]byte{0, 9, byte(ServerJoinReq), 3, 1, 0}, "abc"...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Binary{}.Decode(tt.buf)
			require.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestBinary_EncodeErrors(t *testing.T) {
	_, err := Binary{}.Encode(ServerJoinReq, []byte("wrong"))
	require.Error(t, err)

	_, err = Binary{}.Encode(ServerJoinReq, &JoinRequest{Username: "a\x00b"})
	require.Error(t, err)

	_, err = Binary{}.Encode(Type(42), bytes.Repeat([]byte{1}, MaxFrameLen))
	require.Error(t, err)
}

func TestType_String(t *testing.T) {
	require.Equal(t, "SERVER_JOIN_REQ", ServerJoinReq.String())
	require.Equal(t, "PACKET_42", Type(42).String())
}
