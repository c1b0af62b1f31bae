package realtime

import (
	"testing"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishToSubscribers(t *testing.T) {
	h := NewHub()
	a, b := NewConn("a", 4), NewConn("b", 4)

	h.Subscribe(a, "sub-0", "/topic/room/1")
	h.Subscribe(b, "sub-7", "/topic/room/1")
	h.Subscribe(b, "sub-8", "/topic/room/2")

	delivered, dropped := h.Publish("/topic/room/1", "application/json", []byte(`{}`))
	require.Equal(t, 2, delivered)
	require.Zero(t, dropped)

	fa := <-a.send
	require.Equal(t, frame.MESSAGE, fa.Command)
	require.Equal(t, "sub-0", fa.Header.Get(frame.Subscription))
	require.Equal(t, "/topic/room/1", fa.Header.Get(frame.Destination))

	fb := <-b.send
	require.Equal(t, "sub-7", fb.Header.Get(frame.Subscription))
	require.Equal(t, fa.Header.Get(frame.MessageId), fb.Header.Get(frame.MessageId))

	require.Empty(t, b.send)
}

func TestHub_UnsubscribeAndDrop(t *testing.T) {
	h := NewHub()
	a := NewConn("a", 4)

	h.Subscribe(a, "s1", "/topic/room/1")
	h.Subscribe(a, "s2", "/topic/room/2")
	require.Equal(t, 1, h.Subscribers("/topic/room/1"))

	require.True(t, h.Unsubscribe(a, "s1"))
	require.False(t, h.Unsubscribe(a, "s1"))
	require.Zero(t, h.Subscribers("/topic/room/1"))

	h.Drop(a)
	require.Zero(t, h.Subscribers("/topic/room/2"))

	delivered, _ := h.Publish("/topic/room/2", "text/plain", []byte("x"))
	require.Zero(t, delivered)
}

func TestHub_ResubscribeSameID_MovesSubscription(t *testing.T) {
	h := NewHub()
	a := NewConn("a", 4)

	h.Subscribe(a, "s1", "/topic/room/1")
	h.Subscribe(a, "s1", "/topic/room/2")

	require.Zero(t, h.Subscribers("/topic/room/1"))
	require.Equal(t, 1, h.Subscribers("/topic/room/2"))
}

func TestHub_SlowConsumerDropped(t *testing.T) {
	h := NewHub()
	slow := NewConn("slow", 1)
	h.Subscribe(slow, "s", "/topic/room/1")

	d1, x1 := h.Publish("/topic/room/1", "text/plain", []byte("1"))
	d2, x2 := h.Publish("/topic/room/1", "text/plain", []byte("2"))

	require.Equal(t, 1, d1)
	require.Zero(t, x1)
	require.Zero(t, d2)
	require.Equal(t, 1, x2)
}

func TestNegotiateVersion(t *testing.T) {
	v, ok := negotiateVersion("")
	require.True(t, ok)
	require.Equal(t, "1.0", v)

	v, ok = negotiateVersion("1.0,1.1,1.2")
	require.True(t, ok)
	require.Equal(t, "1.2", v)

	v, ok = negotiateVersion("1.1, 1.0")
	require.True(t, ok)
	require.Equal(t, "1.1", v)

	_, ok = negotiateVersion("2.0")
	require.False(t, ok)
}

func TestCodec_DecodeFrames(t *testing.T) {
	data, err := encodeFrame(frame.New(frame.SEND, frame.Destination, "/app/chat/send"))
	require.NoError(t, err)

	frames, err := decodeFrames(data)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.Equal(t, frame.SEND, frames[0].Command)

	// Одни heart-beat'ы.
	frames, err = decodeFrames([]byte("\n\n"))
	require.NoError(t, err)
	require.Empty(t, frames)

	// Два кадра подряд с heart-beat'ами между ними.
	frames, err = decodeFrames([]byte("CONNECT\naccept-version:1.2\n\n\x00\n\r\nSEND\ndestination:/app/chat/send\ncontent-length:2\n\na\x00\x00"))
	require.NoError(t, err)
	require.Len(t, frames, 2)
	require.Equal(t, frame.CONNECT, frames[0].Command)
	require.Equal(t, []byte("a\x00"), frames[1].Body)
}

func TestCodec_DecodeFrames_Truncated(t *testing.T) {
	cases := map[string]string{
		"content_length_exceeds_body": "SEND\ndestination:/app/chat/send\ncontent-length:99\n\nshort\x00",
		"second_frame_cut":            "CONNECT\naccept-version:1.2\n\n\x00SEND\ndestination:/app/chat/send\ncontent-length:50\n\nab",
		"no_nul_terminator":           "SEND\ndestination:/app/chat/send\n\nhello",
		"headers_not_finished":        "SEND\ndestination:/app/chat/send\n",
		"bad_content_length":          "SEND\ncontent-length:abc\n\nhi\x00",
	}

	for name, raw := range cases {
		frames, err := decodeFrames([]byte(raw))
		require.Error(t, err, name)
		require.Nil(t, frames, name)
	}
}

func TestParseChatSend(t *testing.T) {
	in, err := parseChatSend([]byte(`{"roomId":3,"content":"  hi  "}`))
	require.NoError(t, err)
	require.EqualValues(t, 3, in.RoomID)
	require.Equal(t, "hi", in.Content)

	_, err = parseChatSend([]byte(`{"roomId":0,"content":"hi"}`))
	require.ErrorIs(t, err, errBadChatPayload)

	_, err = parseChatSend([]byte(`{"roomId":1,"content":"   "}`))
	require.ErrorIs(t, err, errEmptyContent)

	_, err = parseChatSend([]byte(`not json`))
	require.ErrorIs(t, err, errBadChatPayload)

	require.Equal(t, "/topic/room/42", RoomTopic(42))
}
