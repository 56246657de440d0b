package signaling

import (
	"encoding/json"
	"testing"

	"github.com/pion/webrtc/v4"
)

func msg(t *testing.T, typ string, payload any) *Message {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return &Message{Type: typ, Payload: data}
}

func TestDecode(t *testing.T) {
	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"}
	idx := uint16(0)
	cand := webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 1 10.0.0.1 5000 typ host", SDPMLineIndex: &idx}

	ev, err := Decode(msg(t, MessageTypeSignalOffer, map[string]any{"from": "x", "description": offer, "direct": true}))
	if err != nil {
		t.Fatalf("offer: %v", err)
	}
	o, ok := ev.(Offer)
	if !ok || o.From != "x" || !o.Direct || o.Description.Type != webrtc.SDPTypeOffer || o.Description.SDP != "v=0" {
		t.Fatalf("offer=%#v", ev)
	}

	ev, err = Decode(msg(t, MessageTypeSignalICECandidate, map[string]any{"from": "y", "candidate": cand}))
	if err != nil {
		t.Fatalf("candidate: %v", err)
	}
	c, ok := ev.(Candidate)
	if !ok || c.From != "y" || c.Candidate.Candidate != cand.Candidate || *c.Candidate.SDPMLineIndex != 0 {
		t.Fatalf("candidate=%#v", ev)
	}

	ev, _ = Decode(msg(t, MessageTypeRoomPeers, []Peer{}))
	if rp, ok := ev.(RoomPeers); !ok || len(rp.Peers) != 0 {
		t.Fatalf("room-peers=%#v", ev)
	}

	ev, _ = Decode(msg(t, MessageTypeIncomingCall, IncomingCallPayload{From: "s1", FromUserID: "alice"}))
	if ic, ok := ev.(IncomingCall); !ok || ic.FromUserID != "alice" {
		t.Fatalf("incoming-call=%#v", ev)
	}

	for typ, want := range map[string]Event{
		MessageTypeCallAccept:  CallAccepted{From: "p"},
		MessageTypeCallDecline: CallDeclined{From: "p"},
		MessageTypeCallEnd:     CallEnded{From: "p"},
	} {
		ev, err := Decode(msg(t, typ, CallPayload{From: "p"}))
		if err != nil || ev != want {
			t.Fatalf("%s: %#v %v", typ, ev, err)
		}
	}
}

func TestDecodeRejectsIncompleteSignals(t *testing.T) {
	if _, err := Decode(msg(t, MessageTypeSignalAnswer, map[string]string{"from": "x"})); err == nil {
		t.Fatalf("answer without description accepted")
	}
	if _, err := Decode(&Message{Type: MessageTypeUserJoined}); err == nil {
		t.Fatalf("empty payload accepted")
	}
	if ev, err := Decode(&Message{Type: "something-new"}); ev != nil || err != nil {
		t.Fatalf("unknown type: %#v %v", ev, err)
	}
}

func TestHandlerKeepsOrderAndCloses(t *testing.T) {
	in := make(chan *Message, 4)
	in <- msg(t, MessageTypeUserJoined, Peer{SocketID: "a"})
	in <- &Message{Type: MessageTypeUserLeft, Payload: []byte("{broken")}
	in <- msg(t, MessageTypeUserLeft, Peer{SocketID: "a"})
	close(in)

	h := NewHandler(in)
	go h.Start()

	var got []Event
	for ev := range h.Events() {
		got = append(got, ev)
	}
	if len(got) != 2 {
		t.Fatalf("events=%#v", got)
	}
	if _, ok := got[0].(UserJoined); !ok {
		t.Fatalf("first=%#v", got[0])
	}
	if _, ok := got[1].(UserLeft); !ok {
		t.Fatalf("second=%#v", got[1])
	}
}
