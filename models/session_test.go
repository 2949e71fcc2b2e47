package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestBrokerSession_Authenticated(t *testing.T) {
	tests := []struct {
		name    string
		session BrokerSession
		want    bool
	}{
		{
			name:    "zero value",
			session: BrokerSession{},
			want:    false,
		},
		{
			name:    "awaiting callback",
			session: BrokerSession{State: SessionStateAwaitingCallback},
			want:    false,
		},
		{
			name:    "authenticated with token",
			session: BrokerSession{State: SessionStateAuthenticated, AccessToken: "tok", ObtainedAt: time.Now()},
			want:    true,
		},
		{
			name:    "authenticated state without token",
			session: BrokerSession{State: SessionStateAuthenticated},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.session.Authenticated(); got != tt.want {
				t.Errorf("Authenticated() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBrokerSession_Invalidated(t *testing.T) {
	session := BrokerSession{
		State:       SessionStateAuthenticated,
		AccessToken: "tok",
		ObtainedAt:  time.Now(),
		ProfileID:   "AB1234",
	}

	got := session.Invalidated()

	if got.State != SessionStateUnauthenticated {
		t.Errorf("expected UNAUTHENTICATED, got %s", got.State)
	}
	if got.AccessToken != "" {
		t.Error("invalidated session should not retain the access token")
	}

	// The original value is untouched
	if session.State != SessionStateAuthenticated {
		t.Error("Invalidated must not mutate the receiver")
	}
}

func TestBrokerSession_AccessTokenNeverSerialized(t *testing.T) {
	session := BrokerSession{
		State:       SessionStateAuthenticated,
		AccessToken: "super-secret-token",
		ProfileID:   "AB1234",
	}

	data, err := json.Marshal(session)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	if strings.Contains(string(data), "super-secret-token") {
		t.Error("access token must not appear in JSON output")
	}
}
