package providers

import (
	"context"
	"net/http"
	"time"

	domain "walletcore.backend/internal/domain/providers"
)

const (
	FCMName    = "fcm"
	fcmBaseURL = "https://fcm.googleapis.com"
)

// FCM sends device pushes through the Firebase HTTP endpoint.
type FCM struct {
	client *restClient
}

func NewFCM(serverKey, baseURL string, timeout time.Duration) *FCM {
	auth := func(r *http.Request) { r.Header.Set("Authorization", "key="+serverKey) }
	return &FCM{client: newRESTClient(FCMName, firstNonEmpty(baseURL, fcmBaseURL), timeout, auth)}
}

func (p *FCM) Name() string { return FCMName }

func (p *FCM) SendPush(ctx context.Context, deviceToken, title, body string, data map[string]string) (string, error) {
	var resp struct {
		Success int `json:"success"`
		Failure int `json:"failure"`
		Results []struct {
			MessageID string `json:"message_id"`
			Error     string `json:"error"`
		} `json:"results"`
	}
	payload := map[string]interface{}{
		"to":           deviceToken,
		"notification": map[string]string{"title": title, "body": body},
		"data":         data,
	}
	if err := p.client.doJSON(ctx, domain.CategoryPush, http.MethodPost, "/fcm/send", payload, &resp); err != nil {
		return "", err
	}
	if resp.Success == 0 || len(resp.Results) == 0 {
		msg := "push rejected"
		if len(resp.Results) > 0 && resp.Results[0].Error != "" {
			msg = resp.Results[0].Error
		}
		return "", domain.NewError(FCMName, domain.CategoryPush, msg, nil)
	}
	return resp.Results[0].MessageID, nil
}
