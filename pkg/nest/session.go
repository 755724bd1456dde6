package nest

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// ExpiryLayout is the format of the login response's expires_in field.
const ExpiryLayout = "Mon, 02-Jan-2006 15:04:05 MST"

// Session is one successful login. It is replaced as a whole on re-login.
type Session struct {
	AccessToken  string
	TransportURL string
	UserID       string
	ExpiresAt    time.Time
}

// Expired reports whether the session may no longer be used at now.
func (s *Session) Expired(now time.Time) bool {
	return s == nil || !now.Before(s.ExpiresAt)
}

// ParseExpiry parses an expires_in timestamp as UTC.
func ParseExpiry(v string) (time.Time, error) {
	t, err := time.ParseInLocation(ExpiryLayout, v, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse expiry %q: %w", v, err)
	}
	return t.UTC(), nil
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"userid"`
	ExpiresIn   string `json:"expires_in"`
	URLs        struct {
		TransportURL string `json:"transport_url"`
	} `json:"urls"`
}

func (r loginResponse) session() (*Session, error) {
	expires, err := ParseExpiry(r.ExpiresIn)
	if err != nil {
		return nil, err
	}
	return &Session{
		AccessToken:  r.AccessToken,
		TransportURL: r.URLs.TransportURL,
		UserID:       r.UserID,
		ExpiresAt:    expires,
	}, nil
}

// Snapshot is the full user document: namespace to object id to raw object.
type Snapshot map[string]map[string]json.RawMessage

// decodeSnapshot reads a user document. Top-level values that are not
// objects keyed by id are skipped.
func decodeSnapshot(r io.Reader) (Snapshot, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode user document: %w", err)
	}

	snap := make(Snapshot, len(raw))
	for ns, v := range raw {
		var objects map[string]json.RawMessage
		if err := json.Unmarshal(v, &objects); err != nil {
			continue
		}
		snap[ns] = objects
	}
	return snap, nil
}
