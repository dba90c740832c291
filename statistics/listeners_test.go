package statistics

import (
	"context"
	"testing"
	"time"

	"github.com/majestrate/bittorrent-tracker/events"
	"github.com/majestrate/bittorrent-tracker/metrics"
)

func TestListenerCountsAnnouncesAndPeers(t *testing.T) {
	bus := events.NewBus(true)
	coll := metrics.New()
	l := NewListener(coll)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		l.Run(ctx, bus)
		close(done)
	}()

	// Give the Run goroutine a chance to subscribe before sending, since
	// Send is a no-op when there are no receivers yet.
	for i := 0; i < 100 && bus.Send(events.TorrentAdded{}).NoReceivers; i++ {
		time.Sleep(time.Millisecond)
	}

	binding := events.ServerBinding{Protocol: "http", Family: events.FamilyInet}
	bus.Send(events.TcpAnnounce{Binding: binding})
	bus.Send(events.TcpAnnounce{Binding: binding})
	bus.Send(events.PeerAdded{InfoHash: [20]byte{1}, PeerID: [20]byte{2}})
	bus.Send(events.PeerRemoved{InfoHash: [20]byte{1}, PeerID: [20]byte{2}, Reason: "stopped"})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if sum, ok := coll.Sum(MetricHTTPCoreRequestsReceived, map[string]string{"request_kind": "announce"}); ok && sum == 2 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	sum, ok := coll.Sum(MetricHTTPCoreRequestsReceived, map[string]string{"request_kind": "announce"})
	if !ok || sum != 2 {
		t.Fatalf("expected 2 http announces recorded, got %v (ok=%v)", sum, ok)
	}

	current, ok := coll.Sum(MetricUniquePeersTotal, nil)
	if !ok || current != 0 {
		t.Fatalf("expected peer gauge to net to 0 after add+remove, got %v", current)
	}

	cancel()
	<-done
}

func TestListenerRecordsUdpResponseTime(t *testing.T) {
	bus := events.NewBus(true)
	coll := metrics.New()
	l := NewListener(coll)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		l.Run(ctx, bus)
		close(done)
	}()

	binding := events.ServerBinding{Protocol: "udp", Family: events.FamilyInet}
	for i := 0; i < 100 && bus.Send(events.UdpResponseSent{Binding: binding, RequestKind: events.RequestAnnounce, ReqProcessingTime: time.Millisecond}).NoReceivers; i++ {
		time.Sleep(time.Millisecond)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := coll.Sum(MetricUDPServerAvgProcessingTimeNs, map[string]string{"request_kind": "announce"}); ok {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if _, ok := coll.Sum(MetricUDPServerAvgProcessingTimeNs, map[string]string{"request_kind": "announce"}); !ok {
		t.Fatal("expected an avg processing time gauge sample")
	}
	if sum, ok := coll.Sum(MetricUDPServerResponsesSent, map[string]string{"request_kind": "announce"}); !ok || sum != 1 {
		t.Fatalf("expected 1 udp response sent recorded, got %v (ok=%v)", sum, ok)
	}

	cancel()
	<-done
}

func TestListenerLabelsEventsWithServerBinding(t *testing.T) {
	bus := events.NewBus(true)
	coll := metrics.New()
	l := NewListener(coll)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		l.Run(ctx, bus)
		close(done)
	}()

	binding := events.ServerBinding{Protocol: "udp", IP: []byte{10, 0, 0, 1}, Port: 6969, Family: events.FamilyInet, Type: events.IPTypePlain}
	for i := 0; i < 100 && bus.Send(events.UdpAnnounce{Binding: binding}).NoReceivers; i++ {
		time.Sleep(time.Millisecond)
	}

	criteria := map[string]string{
		"server_binding_protocol":          "udp",
		"server_binding_address_ip_family": "inet",
		"server_binding_address_ip_type":   "plain",
		"server_binding_port":              "6969",
		"request_kind":                     "announce",
	}
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if sum, ok := coll.Sum(MetricUDPCoreRequestsReceived, criteria); ok && sum == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if sum, ok := coll.Sum(MetricUDPCoreRequestsReceived, criteria); !ok || sum != 1 {
		t.Fatalf("expected the full server_binding_*/request_kind label set, got %v (ok=%v)", sum, ok)
	}

	cancel()
	<-done
}
