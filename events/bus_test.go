package events

import (
	"context"
	"testing"
	"time"
)

func TestSendWithNoReceivers(t *testing.T) {
	b := NewBus(true)
	res := b.Send(TorrentAdded{})
	if !res.NoReceivers {
		t.Fatalf("expected NoReceivers, got %+v", res)
	}
}

func TestSendDisabled(t *testing.T) {
	b := NewBus(false)
	r := b.Subscribe()
	_ = r
	res := b.Send(TorrentAdded{})
	if !res.Disabled {
		t.Fatalf("expected Disabled, got %+v", res)
	}
}

func TestDeliveryFIFO(t *testing.T) {
	b := NewBus(true)
	r1 := b.Subscribe()
	r2 := b.Subscribe()

	want := TorrentAdded{InfoHash: [20]byte{1}, FirstPeer: true}
	res := b.Send(want)
	if res.Delivered != 2 {
		t.Fatalf("expected Delivered=2, got %+v", res)
	}

	ctx := context.Background()
	for _, r := range []*Receiver{r1, r2} {
		ev, err := r.Recv(ctx)
		if err != nil {
			t.Fatal(err)
		}
		got, ok := ev.(TorrentAdded)
		if !ok || got != want {
			t.Fatalf("got %#v, want %#v", ev, want)
		}
	}
}

func TestLaggedReceiver(t *testing.T) {
	b := NewBus(true)
	r := b.Subscribe()

	for i := 0; i < Capacity+5; i++ {
		b.Send(TorrentAdded{FirstPeer: i == 0})
	}

	ctx := context.Background()
	_, err := r.Recv(ctx)
	lagged, ok := err.(*LaggedError)
	if !ok {
		t.Fatalf("expected *LaggedError, got %v", err)
	}
	if lagged.N != 5 {
		t.Fatalf("expected lag of 5, got %d", lagged.N)
	}
}

func TestClosedBus(t *testing.T) {
	b := NewBus(true)
	r := b.Subscribe()
	b.Close()

	ctx := context.Background()
	if _, err := r.Recv(ctx); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestRecvRespectsContextCancellation(t *testing.T) {
	b := NewBus(true)
	r := b.Subscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := r.Recv(ctx)
	if err != context.DeadlineExceeded {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}
