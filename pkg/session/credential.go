package session

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// Credential is a bearer token and the instant it stops being valid. It is
// never changed after creation, renewal produces a new value.
type Credential struct {
	AccessToken string
	ExpiresAt   time.Time
}

type persisted struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   string `json:"expires_at"`
}

// Token files written by earlier tooling carry a local time without offset.
var expiryLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

func (c Credential) MarshalJSON() ([]byte, error) {
	return json.Marshal(persisted{
		AccessToken: c.AccessToken,
		ExpiresAt:   c.ExpiresAt.Format(time.RFC3339Nano),
	})
}

func (c *Credential) UnmarshalJSON(b []byte) error {
	p := persisted{}
	if err := json.Unmarshal(b, &p); err != nil {
		return errors.Wrap(err, "decode credential")
	}
	if p.AccessToken == "" {
		return errors.New("credential has no access token")
	}

	for _, layout := range expiryLayouts {
		t, err := time.ParseInLocation(layout, p.ExpiresAt, time.Local)
		if err == nil {
			c.AccessToken = p.AccessToken
			c.ExpiresAt = t
			return nil
		}
	}

	return errors.Errorf("credential has invalid expiry %q", p.ExpiresAt)
}
