package http

import (
	"net/http"
	"testing"
)

func TestResolverDisabledUsesRemoteAddr(t *testing.T) {
	res := ClientIPResolver{}
	r := &http.Request{RemoteAddr: "203.0.113.9:4455", Header: http.Header{"X-Forwarded-For": []string{"198.51.100.1"}}}

	ip, err := res.Resolve(r)
	if err != nil {
		t.Fatal(err)
	}
	if ip.String() != "203.0.113.9" {
		t.Fatalf("expected disabled mode to ignore the header, got %s", ip)
	}
}

func TestResolverEnabledUsesHeader(t *testing.T) {
	res := ClientIPResolver{Header: "X-Forwarded-For"}
	r := &http.Request{RemoteAddr: "10.0.0.1:4455", Header: http.Header{"X-Forwarded-For": []string{"198.51.100.1, 10.0.0.1"}}}

	ip, err := res.Resolve(r)
	if err != nil {
		t.Fatal(err)
	}
	if ip.String() != "198.51.100.1" {
		t.Fatalf("expected the first forwarded address, got %s", ip)
	}
}

func TestResolverEnabledFallsBackWithoutHeader(t *testing.T) {
	res := ClientIPResolver{Header: "X-Forwarded-For"}
	r := &http.Request{RemoteAddr: "10.0.0.1:4455", Header: http.Header{}}

	ip, err := res.Resolve(r)
	if err != nil {
		t.Fatal(err)
	}
	if ip.String() != "10.0.0.1" {
		t.Fatalf("expected fallback to RemoteAddr, got %s", ip)
	}
}
