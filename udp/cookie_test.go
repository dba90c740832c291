package udp

import (
	"net"
	"testing"
)

func TestCookieRoundTrip(t *testing.T) {
	secret, err := NewCookieSecret()
	if err != nil {
		t.Fatal(err)
	}
	addr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 54321}
	fp := FingerprintOf(addr)

	issueTime := 1000.0
	cookie := secret.Make(fp, issueTime)

	got, err := secret.Check(cookie, fp, [2]float64{900, 1100})
	if err != nil {
		t.Fatalf("expected valid cookie, got %v", err)
	}
	if got != issueTime {
		t.Fatalf("expected issueTime %v, got %v", issueTime, got)
	}
}

func TestCookieExpired(t *testing.T) {
	secret, err := NewCookieSecret()
	if err != nil {
		t.Fatal(err)
	}
	addr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 54321}
	fp := FingerprintOf(addr)

	cookie := secret.Make(fp, 1000.0)
	if _, err := secret.Check(cookie, fp, [2]float64{0, 100}); err != ErrCookieExpired {
		t.Fatalf("expected ErrCookieExpired, got %v", err)
	}
}

func TestCookieWrongFingerprintUnlikelyValid(t *testing.T) {
	secret, err := NewCookieSecret()
	if err != nil {
		t.Fatal(err)
	}
	a := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1}
	b := &net.UDPAddr{IP: net.ParseIP("10.0.0.2"), Port: 2}

	cookie := secret.Make(FingerprintOf(a), 1000.0)
	if _, err := secret.Check(cookie, FingerprintOf(b), [2]float64{900, 1100}); err != ErrCookieExpired {
		t.Fatalf("expected the wrong fingerprint to decode outside the valid window, got err=%v", err)
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	a := &net.UDPAddr{IP: net.ParseIP("192.0.2.1"), Port: 4321}
	b := &net.UDPAddr{IP: net.ParseIP("192.0.2.1"), Port: 4321}
	if FingerprintOf(a) != FingerprintOf(b) {
		t.Fatal("expected identical addresses to fingerprint identically")
	}
	c := &net.UDPAddr{IP: net.ParseIP("192.0.2.2"), Port: 4321}
	if FingerprintOf(a) == FingerprintOf(c) {
		t.Fatal("expected different IPs to fingerprint differently")
	}
}
