package domain

const (
	// Provider tags
	MediaTypeYouTube = "youtube"
	YouTubeTLD       = "youtube.com"

	// Redis Key Patterns
	RedisKeyMediaPublisher = "media:%s:publisher"

	// Message Types
	MsgTypeMediaEvent        = "media_event"
	MsgTypePublisherActivity = "publisher_activity"
)
