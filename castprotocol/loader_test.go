package castprotocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vishen/go-chromecast/cast"
)

type sentMessage struct {
	requestID   int
	payload     cast.Payload
	source      string
	destination string
	namespace   string
}

type fakeSender struct {
	sent []sentMessage
	err  error
}

func (f *fakeSender) Send(requestID int, payload cast.Payload, sourceID, destinationID, namespace string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{requestID, payload, sourceID, destinationID, namespace})
	return nil
}

func TestSendLoadPayload(t *testing.T) {
	assertions := require.New(t)

	conn := &fakeSender{}
	media := MediaInfo{
		ContentID:   "https://example.com/video.mp4",
		ContentType: "video/mp4",
		Title:       "Video by link",
	}

	assertions.NoError(SendLoad(conn, "transport-1", media, DefaultLoadOptions()))
	assertions.Len(conn.sent, 1)

	msg := conn.sent[0]
	assertions.Equal("sender-0", msg.source)
	assertions.Equal("transport-1", msg.destination)
	assertions.Equal("urn:x-cast:com.google.cast.media", msg.namespace)

	raw, err := json.Marshal(msg.payload)
	assertions.NoError(err)

	var got map[string]any
	assertions.NoError(json.Unmarshal(raw, &got))
	assertions.Equal("LOAD", got["type"])
	assertions.Equal(true, got["autoplay"])
	assertions.EqualValues(0, got["currentTime"])
	assertions.EqualValues(msg.requestID, got["requestId"])

	mediaObj := got["media"].(map[string]any)
	assertions.Equal("https://example.com/video.mp4", mediaObj["contentId"])
	assertions.Equal("video/mp4", mediaObj["contentType"])
	assertions.Equal("BUFFERED", mediaObj["streamType"])

	meta := mediaObj["metadata"].(map[string]any)
	assertions.Equal("Video by link", meta["title"])
	assertions.EqualValues(1, meta["metadataType"])
}

func TestSendLoadWithoutTransport(t *testing.T) {
	conn := &fakeSender{}
	if err := SendLoad(conn, "", MediaInfo{ContentID: "x"}, DefaultLoadOptions()); err == nil {
		t.Fatal("SendLoad() err = nil, want error for empty transport id")
	}
	if len(conn.sent) != 0 {
		t.Fatalf("SendLoad() sent %d messages, want 0", len(conn.sent))
	}
}

func TestLaunchAndConnectMessages(t *testing.T) {
	assertions := require.New(t)
	conn := &fakeSender{}

	assertions.NoError(LaunchDefaultReceiver(conn))
	assertions.NoError(ConnectTransport(conn, "transport-2"))
	assertions.Len(conn.sent, 2)

	assertions.Equal("receiver-0", conn.sent[0].destination)
	assertions.Equal("urn:x-cast:com.google.cast.receiver", conn.sent[0].namespace)
	launch := conn.sent[0].payload.(*launchPayload)
	assertions.Equal("LAUNCH", launch.Type)
	assertions.Equal(DefaultMediaReceiverAppID, launch.AppId)

	assertions.Equal("transport-2", conn.sent[1].destination)
	assertions.Equal("urn:x-cast:com.google.cast.tp.connection", conn.sent[1].namespace)
	assertions.NotEqual(conn.sent[0].requestID, conn.sent[1].requestID)
}

func TestSendErrorsAreWrapped(t *testing.T) {
	boom := errors.New("broken pipe")
	conn := &fakeSender{err: boom}

	if err := LaunchDefaultReceiver(conn); !errors.Is(err, boom) {
		t.Fatalf("LaunchDefaultReceiver() err = %v, want wrapped %v", err, boom)
	}
	if err := SendLoad(conn, "t", MediaInfo{}, LoadOptions{}); !errors.Is(err, boom) {
		t.Fatalf("SendLoad() err = %v, want wrapped %v", err, boom)
	}
}

func TestMediaItemDefaults(t *testing.T) {
	item := MediaInfo{ContentID: "u", ContentType: "video/mp4"}.item()
	if item.StreamType != StreamTypeBuffered {
		t.Fatalf("StreamType = %q, want %q", item.StreamType, StreamTypeBuffered)
	}
	if item.Metadata != nil {
		t.Fatalf("Metadata = %+v, want nil without title", item.Metadata)
	}
}
