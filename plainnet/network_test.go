package plainnet

import (
	"context"
	"testing"
)

func TestListenAndPublicAddr(t *testing.T) {
	n := New()
	if err := n.Setup(); err != nil {
		t.Fatal(err)
	}

	l, err := n.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	addr, err := n.PublicAddr(context.Background(), l)
	if err != nil {
		t.Fatal(err)
	}
	if addr != l.Addr().String() {
		t.Fatalf("expected PublicAddr to echo the listener's own address, got %s vs %s", addr, l.Addr().String())
	}
}

func TestGetPublicPrivateAddrsIsIdentity(t *testing.T) {
	n := New()
	pub, priv := n.GetPublicPrivateAddrs("ignored", "127.0.0.1:6969")
	if pub != "127.0.0.1:6969" || priv != "127.0.0.1:6969" {
		t.Fatalf("expected both addresses to echo forward, got pub=%s priv=%s", pub, priv)
	}
}
