package telephony

import (
	"net/http"
	"strings"
)

// StatusCallbackForm captures the subset of provider status webhook fields the
// dialer cares about. Twilio sends application/x-www-form-urlencoded.
//
// Keep it minimal and provider-adapter-only; business logic (state
// transitions) belongs to the status monitor.
type StatusCallbackForm struct {
	CallSid        string
	AccountSid     string
	From           string
	To             string
	CallStatus     string
	Direction      string
	CallDuration   string
	Timestamp      string
	SequenceNumber string
	CallbackSource string
}

func ParseStatusCallback(r *http.Request) (StatusCallbackForm, error) {
	if err := r.ParseForm(); err != nil {
		return StatusCallbackForm{}, err
	}
	f := StatusCallbackForm{
		CallSid:        r.PostFormValue("CallSid"),
		AccountSid:     r.PostFormValue("AccountSid"),
		From:           normalizePhone(r.PostFormValue("From")),
		To:             normalizePhone(r.PostFormValue("To")),
		CallStatus:     r.PostFormValue("CallStatus"),
		Direction:      r.PostFormValue("Direction"),
		CallDuration:   r.PostFormValue("CallDuration"),
		Timestamp:      r.PostFormValue("Timestamp"),
		SequenceNumber: r.PostFormValue("SequenceNumber"),
		CallbackSource: r.PostFormValue("CallbackSource"),
	}
	return f, nil
}

func normalizePhone(s string) string {
	s = strings.TrimSpace(s)
	// Providers sometimes send "anonymous" or empty; keep as-is.
	return s
}

// Status translates the raw webhook status into the dialer vocabulary.
func (f StatusCallbackForm) Status() Status {
	return mapStatus(f.CallStatus)
}
