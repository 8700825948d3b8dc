package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dialer-platform/internal/config"
)

const defaultAPIBaseURL = "https://api.twilio.com/2010-04-01"

// TwilioDialer implements Dialer against the Twilio REST API.
// Voice calls are answered into a media stream (or a conference bridge when
// the request names one) via inline TwiML.
type TwilioDialer struct {
	accountSID string
	authToken  string
	callerID   string
	baseURL    string
	mediaWSURL string

	httpClient *http.Client
}

func NewTwilioDialer(cfg config.ProviderConfig) (*TwilioDialer, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, errors.New("telephony: provider credentials required")
	}
	baseURL := cfg.APIBaseURL
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}
	return &TwilioDialer{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		callerID:   cfg.CallerID,
		baseURL:    baseURL,
		mediaWSURL: cfg.MediaWSURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (d *TwilioDialer) Name() string { return "twilio" }

func (d *TwilioDialer) HealthCheck(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/Accounts/%s.json", d.baseURL, d.accountSID)
	var out struct {
		Status string `json:"status"`
	}
	return d.get(ctx, endpoint, &out)
}

// twilioCall is the subset of the Twilio call resource the dialer reads.
type twilioCall struct {
	SID    string `json:"sid"`
	To     string `json:"to"`
	From   string `json:"from"`
	Status string `json:"status"`
}

func (d *TwilioDialer) PlaceCall(ctx context.Context, req PlaceCallRequest) (Placement, error) {
	if req.To == "" {
		return Placement{}, fmt.Errorf("telephony: to number required: %w", ErrProviderRejected)
	}
	from := req.From
	if from == "" {
		from = d.callerID
	}

	data := url.Values{}
	data.Set("To", req.To)
	data.Set("From", from)
	data.Set("Twiml", StreamTwiML(d.mediaWSURL, req.ConferenceName))
	if req.StatusCallbackURL != "" {
		data.Set("StatusCallback", req.StatusCallbackURL)
		for _, ev := range []string{"initiated", "ringing", "answered", "completed"} {
			data.Add("StatusCallbackEvent", ev)
		}
	}
	if req.RingTimeoutSeconds > 0 {
		data.Set("Timeout", fmt.Sprintf("%d", req.RingTimeoutSeconds))
	}

	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls.json", d.baseURL, d.accountSID)
	var call twilioCall
	if err := d.post(ctx, endpoint, data, &call); err != nil {
		return Placement{}, errors.Join(ErrProviderRejected, err)
	}
	return Placement{
		CallID:         call.SID,
		Status:         mapStatus(call.Status),
		ConferenceName: req.ConferenceName,
	}, nil
}

func (d *TwilioDialer) CallStatus(ctx context.Context, callID string) (Status, error) {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls/%s.json", d.baseURL, d.accountSID, callID)
	var call twilioCall
	if err := d.get(ctx, endpoint, &call); err != nil {
		return "", err
	}
	return mapStatus(call.Status), nil
}

func (d *TwilioDialer) Hangup(ctx context.Context, callID string) (bool, error) {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls/%s.json", d.baseURL, d.accountSID, callID)
	data := url.Values{}
	data.Set("Status", "completed")

	var call twilioCall
	if err := d.post(ctx, endpoint, data, &call); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatus == http.StatusNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// mapStatus normalizes the provider status string; unknown values are treated
// as still-connecting rather than invented terminals.
func mapStatus(raw string) Status {
	switch Status(raw) {
	case StatusQueued, StatusRinging, StatusInProgress, StatusCompleted,
		StatusBusy, StatusNoAnswer, StatusFailed, StatusCanceled:
		return Status(raw)
	case "initiated":
		return StatusQueued
	default:
		return StatusQueued
	}
}

// APIError is a provider REST error payload.
type APIError struct {
	Code       int    `json:"code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"status"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twilio error %d: %s", e.Code, e.Message)
}

func (d *TwilioDialer) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return d.do(req, out)
}

func (d *TwilioDialer) post(ctx context.Context, endpoint string, data url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return d.do(req, out)
}

func (d *TwilioDialer) do(req *http.Request, out any) error {
	req.SetBasicAuth(d.accountSID, d.authToken)
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{HTTPStatus: resp.StatusCode}
		if err := json.Unmarshal(body, apiErr); err != nil {
			return fmt.Errorf("twilio error (%d): %s", resp.StatusCode, string(body))
		}
		if apiErr.HTTPStatus == 0 {
			apiErr.HTTPStatus = resp.StatusCode
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("telephony: parse response: %w", err)
		}
	}
	return nil
}
