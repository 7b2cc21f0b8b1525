package services

import (
	"encoding/json"
	"strings"
)

// markerPattern brackets a value inside a scraped page: the value starts right
// after prefix and runs up to the next suffix.
type markerPattern struct {
	prefix string
	suffix string
}

var (
	favIconPatterns = []markerPattern{
		{`"avatar":{"thumbnails":[{"url":"`, `"`},
		{`"width":88,"height":88},{"url":"`, `"`},
	}

	channelIDPatterns = []markerPattern{
		{`"ucid":"`, `"`},
		{`HeaderRenderer":{"channelId":"`, `"`},
		{`<link rel="canonical" href="https://www.youtube.com/channel/`, `">`},
		{`browseEndpoint":{"browseId":"`, `"`},
	}

	publisherNamePattern = markerPattern{`"author":"`, `"`}
)

// ExtractData returns the text between the first start marker and the next end
// marker. A missing start marker yields "".
func ExtractData(data, start, end string) string {
	i := strings.Index(data, start)
	if i < 0 {
		return ""
	}
	rest := data[i+len(start):]
	if j := strings.Index(rest, end); j >= 0 {
		return rest[:j]
	}
	return rest
}

func firstMatch(data string, patterns []markerPattern) string {
	for _, p := range patterns {
		if v := ExtractData(data, p.prefix, p.suffix); v != "" {
			return v
		}
	}
	return ""
}

func FavIconURL(data string) string {
	return firstMatch(data, favIconPatterns)
}

func ChannelID(data string) string {
	return firstMatch(data, channelIDPatterns)
}

// PublisherName extracts the author field. Scraped values may carry JSON code
// points (\u0026), so the value is decoded as a JSON string.
func PublisherName(data string) string {
	raw := ExtractData(data, publisherNamePattern.prefix, publisherNamePattern.suffix)
	var name string
	if err := json.Unmarshal([]byte(`"`+raw+`"`), &name); err != nil {
		return ""
	}
	return name
}

// JSONValue looks up a top-level string field of a JSON document.
func JSONValue(key, body string) string {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return ""
	}
	var value string
	if err := json.Unmarshal(doc[key], &value); err != nil {
		return ""
	}
	return value
}
