package udp

import (
	"encoding/binary"
	"testing"
)

func TestParseConnectRequest(t *testing.T) {
	b := make([]byte, 16)
	binary.BigEndian.PutUint64(b[0:8], ProtocolID)
	binary.BigEndian.PutUint32(b[8:12], uint32(ActionConnect))
	binary.BigEndian.PutUint32(b[12:16], 0x11223344)

	req, err := ParseConnectRequest(b)
	if err != nil {
		t.Fatal(err)
	}
	if req.TransactionID != 0x11223344 {
		t.Fatalf("unexpected transaction id: %x", req.TransactionID)
	}
}

func TestParseConnectRequestRejectsBadMagic(t *testing.T) {
	b := make([]byte, 16)
	binary.BigEndian.PutUint64(b[0:8], 0xdeadbeef)
	if _, err := ParseConnectRequest(b); err != ErrUnknownAction {
		t.Fatalf("expected ErrUnknownAction, got %v", err)
	}
}

func TestAnnounceRequestRoundTrip(t *testing.T) {
	b := make([]byte, 98)
	binary.BigEndian.PutUint64(b[0:8], 0xaabbccdd)
	binary.BigEndian.PutUint32(b[8:12], uint32(ActionAnnounce))
	binary.BigEndian.PutUint32(b[12:16], 7)
	for i := range b[16:36] {
		b[16+i] = byte(i)
	}
	for i := range b[36:56] {
		b[36+i] = byte(i + 1)
	}
	binary.BigEndian.PutUint64(b[56:64], 100)
	binary.BigEndian.PutUint64(b[64:72], 0)
	binary.BigEndian.PutUint64(b[72:80], 50)
	binary.BigEndian.PutUint32(b[80:84], uint32(WireEventCompleted))
	binary.BigEndian.PutUint32(b[92:96], 30)
	binary.BigEndian.PutUint16(b[96:98], 6881)

	req, err := ParseAnnounceRequest(b)
	if err != nil {
		t.Fatal(err)
	}
	if req.ConnectionID != 0xaabbccdd || req.TransactionID != 7 || req.Left != 0 || req.Downloaded != 100 {
		t.Fatalf("unexpected parse: %+v", req)
	}
	if req.Event != WireEventCompleted || req.NumWant != 30 || req.Port != 6881 {
		t.Fatalf("unexpected parse: %+v", req)
	}
}

func TestScrapeRequestRejectsMisalignedLength(t *testing.T) {
	b := make([]byte, 16+19)
	if _, err := ParseScrapeRequest(b); err != ErrShortPacket {
		t.Fatalf("expected ErrShortPacket, got %v", err)
	}
}

func TestWriteAnnounceResponseIncludesPeers(t *testing.T) {
	peers := []AnnouncePeer{{IP: []byte{1, 2, 3, 4}, Port: 6881}}
	resp := WriteAnnounceResponse(7, 1800, 2, 3, peers, ActionAnnounce)
	if len(resp) != 20+6 {
		t.Fatalf("expected 26 bytes, got %d", len(resp))
	}
	if binary.BigEndian.Uint32(resp[0:4]) != uint32(ActionAnnounce) {
		t.Fatal("expected action=1")
	}
	if binary.BigEndian.Uint16(resp[24:26]) != 6881 {
		t.Fatal("expected packed peer port")
	}
}

func TestWriteAnnounceResponseUsesV6Action(t *testing.T) {
	peers := []AnnouncePeer{{IP: make([]byte, 16), Port: 6881}}
	resp := WriteAnnounceResponse(7, 1800, 0, 1, peers, ActionAnnounceV6)
	if binary.BigEndian.Uint32(resp[0:4]) != uint32(ActionAnnounceV6) {
		t.Fatal("expected action=4 for an IPv6 announce response")
	}
	if len(resp) != 20+18 {
		t.Fatalf("expected 38 bytes, got %d", len(resp))
	}
}
