package upnp

import (
	"encoding/xml"
	"strconv"
	"strings"
)

// didlLite is the minimal subset of a DIDL-Lite metadata document this
// adapter reads out of AVTransport's GetPositionInfo response.
type didlLite struct {
	Item struct {
		Title  string `xml:"title"`
		Artist string `xml:"creator"`
		Album  string `xml:"album"`
	} `xml:"item"`
}

// parseDIDLTitleArtistAlbum extracts track metadata from a DIDL-Lite
// fragment. UPnP renderers report "NOT_IMPLEMENTED" or an empty string
// when nothing is playing; both parse to empty fields rather than errors.
func parseDIDLTitleArtistAlbum(raw string) (title, artist, album string) {
	if raw == "" || raw == "NOT_IMPLEMENTED" {
		return "", "", ""
	}
	var doc didlLite
	if err := xml.Unmarshal([]byte(raw), &doc); err != nil {
		return "", "", ""
	}
	return doc.Item.Title, doc.Item.Artist, doc.Item.Album
}

// parseHMSSeconds parses a UPnP "H+:MM:SS" duration/position string into
// whole seconds. Returns 0 for "NOT_IMPLEMENTED" or malformed input.
func parseHMSSeconds(s string) int {
	if s == "" || s == "NOT_IMPLEMENTED" {
		return 0
	}
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	secParts := strings.SplitN(parts[2], ".", 2)
	sec, err3 := strconv.Atoi(secParts[0])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0
	}
	return h*3600 + m*60 + sec
}
