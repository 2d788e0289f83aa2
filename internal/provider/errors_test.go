package provider

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
)

func TestClassify_ProviderMessages(t *testing.T) {
	cases := []struct {
		msg  string
		want Kind
	}{
		{"Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute and 500 calls per day.", KindRateLimited},
		{"We have detected your API key as demo and our standard API rate limit is 25 requests per day.", KindRateLimited},
		{"This is a premium endpoint. You may subscribe to any of the premium plans.", KindRateLimited},
		{"the parameter apikey is invalid or missing. Please claim your free API key.", KindInvalidCredential},
		{"Invalid API key", KindInvalidCredential},
		{"Invalid API call. Please retry or visit the documentation (https://www.alphavantage.co/documentation/) for TIME_SERIES_DAILY.", KindNotFound},
		{"No data found for symbol: ZZZZ", KindNotFound},
		{"something exploded", KindUpstream},
		{"", KindUpstream},
	}
	for _, c := range cases {
		if got := Classify(c.msg); got != c.want {
			t.Errorf("Classify(%q) = %s, want %s", c.msg, got, c.want)
		}
	}
}

func TestStatusError_Kinds(t *testing.T) {
	cases := map[int]Kind{
		http.StatusUnauthorized:        KindInvalidCredential,
		http.StatusForbidden:           KindInvalidCredential,
		http.StatusTooManyRequests:     KindRateLimited,
		http.StatusNotFound:            KindNotFound,
		http.StatusBadGateway:          KindUpstream,
		http.StatusInternalServerError: KindUpstream,
	}
	for status, want := range cases {
		err := StatusError("av", status, "")
		if err.Kind != want {
			t.Errorf("status %d: kind = %s, want %s", status, err.Kind, want)
		}
		if err.Message == "" {
			t.Errorf("status %d: empty message", status)
		}
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	base := &Error{Provider: "av", Kind: KindRateLimited, Message: "slow down"}
	wrapped := fmt.Errorf("fetch quote: %w", base)
	if KindOf(wrapped) != KindRateLimited {
		t.Fatalf("want rate_limited, got %s", KindOf(wrapped))
	}
	if KindOf(fmt.Errorf("plain")) != KindUpstream {
		t.Fatalf("unclassified errors should be upstream")
	}
}

func TestDate_JSON(t *testing.T) {
	d, err := ParseDate("2024-03-15")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	b, err := json.Marshal(DailyBar{Date: d})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back DailyBar
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Date.String() != "2024-03-15" {
		t.Fatalf("round trip date = %s", back.Date)
	}
	if _, err := ParseDate("15/03/2024"); err == nil {
		t.Fatalf("expected error for non ISO date")
	}
}
