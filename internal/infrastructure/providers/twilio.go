package providers

import (
	"context"
	"net/http"
	"net/url"
	"time"

	domain "walletcore.backend/internal/domain/providers"
)

const (
	TwilioName    = "twilio"
	twilioBaseURL = "https://api.twilio.com/2010-04-01"
)

// Twilio sends SMS through the Programmable Messaging API.
type Twilio struct {
	client     *restClient
	accountSID string
	from       string
}

func NewTwilio(accountSID, authToken, from, baseURL string, timeout time.Duration) *Twilio {
	auth := func(r *http.Request) { r.SetBasicAuth(accountSID, authToken) }
	return &Twilio{
		client:     newRESTClient(TwilioName, firstNonEmpty(baseURL, twilioBaseURL), timeout, auth),
		accountSID: accountSID,
		from:       from,
	}
}

func (p *Twilio) Name() string { return TwilioName }

func (p *Twilio) SendSMS(ctx context.Context, to, body string) (string, error) {
	var resp struct {
		SID          string `json:"sid"`
		ErrorMessage string `json:"error_message"`
	}
	form := url.Values{"To": {to}, "From": {p.from}, "Body": {body}}
	path := "/Accounts/" + url.PathEscape(p.accountSID) + "/Messages.json"
	if err := p.client.doForm(ctx, domain.CategorySMS, path, form, &resp); err != nil {
		return "", err
	}
	if resp.SID == "" {
		return "", domain.NewError(TwilioName, domain.CategorySMS, firstNonEmpty(resp.ErrorMessage, "no message sid returned"), nil)
	}
	return resp.SID, nil
}
