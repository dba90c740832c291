package persistence

import (
	"context"
	"testing"
)

func openTestDriver(t *testing.T) Driver {
	t.Helper()
	d, err := Open("sqlite", "file::memory:?cache=shared")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestTorrentDownloadsRoundTrip(t *testing.T) {
	ctx := context.Background()
	d := openTestDriver(t)
	var h [20]byte
	h[0] = 0xab

	if n, err := d.LoadTorrentDownloads(ctx, h); err != nil || n != 0 {
		t.Fatalf("expected 0, nil for unknown hash, got %d, %v", n, err)
	}

	if err := d.SaveTorrentDownloads(ctx, h, 5); err != nil {
		t.Fatal(err)
	}
	if n, err := d.LoadTorrentDownloads(ctx, h); err != nil || n != 5 {
		t.Fatalf("expected 5, got %d, %v", n, err)
	}

	if err := d.IncreaseDownloadsForTorrent(ctx, h); err != nil {
		t.Fatal(err)
	}
	if n, err := d.LoadTorrentDownloads(ctx, h); err != nil || n != 6 {
		t.Fatalf("expected 6 after increase, got %d, %v", n, err)
	}

	all, err := d.LoadAllTorrentDownloads(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if all[h] != 6 {
		t.Fatalf("expected all[h]=6, got %d", all[h])
	}
}

func TestGlobalDownloadsRoundTrip(t *testing.T) {
	ctx := context.Background()
	d := openTestDriver(t)

	if _, ok, err := d.LoadGlobalDownloads(ctx); err != nil || ok {
		t.Fatalf("expected no row initially, got ok=%v err=%v", ok, err)
	}
	for i := 0; i < 3; i++ {
		if err := d.IncreaseGlobalDownloads(ctx); err != nil {
			t.Fatal(err)
		}
	}
	n, ok, err := d.LoadGlobalDownloads(ctx)
	if err != nil || !ok || n != 3 {
		t.Fatalf("expected 3, true, nil, got %d, %v, %v", n, ok, err)
	}
}

func TestWhitelistRoundTrip(t *testing.T) {
	ctx := context.Background()
	d := openTestDriver(t)
	var h [20]byte
	h[0] = 0xcd

	if listed, err := d.IsWhitelisted(ctx, h); err != nil || listed {
		t.Fatalf("expected not whitelisted, got %v, %v", listed, err)
	}
	if err := d.AddToWhitelist(ctx, h); err != nil {
		t.Fatal(err)
	}
	if listed, err := d.IsWhitelisted(ctx, h); err != nil || !listed {
		t.Fatalf("expected whitelisted, got %v, %v", listed, err)
	}
	if err := d.RemoveFromWhitelist(ctx, h); err != nil {
		t.Fatal(err)
	}
	if listed, err := d.IsWhitelisted(ctx, h); err != nil || listed {
		t.Fatalf("expected removed, got %v, %v", listed, err)
	}
}

func TestKeyRoundTrip(t *testing.T) {
	ctx := context.Background()
	d := openTestDriver(t)

	if _, ok, err := d.GetKey(ctx, "abc123"); err != nil || ok {
		t.Fatalf("expected absent, got %v, %v", ok, err)
	}
	if err := d.AddKey(ctx, PeerKey{Key: "abc123"}); err != nil {
		t.Fatal(err)
	}
	pk, ok, err := d.GetKey(ctx, "abc123")
	if err != nil || !ok || pk.Key != "abc123" {
		t.Fatalf("unexpected key round trip: %+v, %v, %v", pk, ok, err)
	}
	if err := d.RemoveKey(ctx, "abc123"); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := d.GetKey(ctx, "abc123"); err != nil || ok {
		t.Fatalf("expected removed, got %v, %v", ok, err)
	}
}

func TestUnknownDriver(t *testing.T) {
	if _, err := Open("postgres", ""); err != ErrUnknownDriver {
		t.Fatalf("expected ErrUnknownDriver, got %v", err)
	}
}
