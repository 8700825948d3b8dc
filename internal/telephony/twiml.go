package telephony

import (
	"bytes"
	"encoding/xml"
)

// Minimal TwiML builder for answering a call into a media stream or a
// conference bridge. It intentionally avoids any provider SDK dependency;
// only the verbs needed at the adapter boundary are modeled.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlConnect struct {
	XMLName xml.Name     `xml:"Connect"`
	Stream  *twimlStream `xml:"Stream,omitempty"`
}

type twimlStream struct {
	URL        string       `xml:"url,attr"`
	Parameters []twimlParam `xml:"Parameter"`
}

type twimlParam struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type twimlDial struct {
	XMLName    xml.Name         `xml:"Dial"`
	Conference *twimlConference `xml:"Conference,omitempty"`
}

type twimlConference struct {
	StartOnEnter bool   `xml:"startConferenceOnEnter,attr"`
	EndOnExit    bool   `xml:"endConferenceOnExit,attr"`
	Name         string `xml:",chardata"`
}

// StreamTwiML renders the answer document for an outbound call: connect the
// dialed leg to the media-stream endpoint, and additionally join it to a
// conference bridge when conferenceName is set.
func StreamTwiML(mediaWSURL, conferenceName string) string {
	r := twimlResponse{}

	stream := &twimlStream{
		URL:        mediaWSURL,
		Parameters: []twimlParam{{Name: "direction", Value: "both"}},
	}
	if conferenceName != "" {
		stream.Parameters = append(stream.Parameters, twimlParam{Name: "conferenceName", Value: conferenceName})
	}
	r.Verbs = append(r.Verbs, twimlConnect{Stream: stream})

	if conferenceName != "" {
		r.Verbs = append(r.Verbs, twimlDial{Conference: &twimlConference{
			StartOnEnter: true,
			EndOnExit:    true,
			Name:         conferenceName,
		}})
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		// The document is built from static types; encoding cannot fail on
		// well-formed input. Fall back to an empty response.
		return xml.Header + "<Response></Response>"
	}
	_ = enc.Flush()
	return buf.String()
}
