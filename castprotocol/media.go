package castprotocol

// Stream types understood by the default media receiver.
const (
	StreamTypeBuffered = "BUFFERED"
	StreamTypeLive     = "LIVE"
)

// metadataTypeMovie is MediaMetadata.MEDIA_TYPE_MOVIE on the receiver side.
const metadataTypeMovie = 1

// MediaInfo describes the media item handed to the receiver.
type MediaInfo struct {
	ContentID   string
	ContentType string
	StreamType  string
	Title       string
	Duration    float32
}

// LoadOptions controls how the receiver starts playback.
type LoadOptions struct {
	Autoplay     bool
	PlayPosition int // seconds
}

// DefaultLoadOptions starts playback immediately from the beginning.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{Autoplay: true}
}

// MediaItem is the wire form of MediaInfo inside a LOAD request.
type MediaItem struct {
	ContentId   string     `json:"contentId"`
	ContentType string     `json:"contentType"`
	StreamType  string     `json:"streamType"`
	Duration    float32    `json:"duration,omitempty"`
	Metadata    *MediaMeta `json:"metadata,omitempty"`
}

// MediaMeta contains metadata about the media.
type MediaMeta struct {
	MetadataType int    `json:"metadataType"`
	Title        string `json:"title,omitempty"`
}

func (m MediaInfo) item() MediaItem {
	streamType := m.StreamType
	if streamType == "" {
		streamType = StreamTypeBuffered
	}

	item := MediaItem{
		ContentId:   m.ContentID,
		ContentType: m.ContentType,
		StreamType:  streamType,
		Duration:    m.Duration,
	}

	if m.Title != "" {
		item.Metadata = &MediaMeta{
			MetadataType: metadataTypeMovie,
			Title:        m.Title,
		}
	}

	return item
}
