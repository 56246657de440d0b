package peer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/BioHazard786/huddle/internal/media"
	"github.com/BioHazard786/huddle/internal/version"
	"github.com/BioHazard786/huddle/internal/voice"
)

// controlChannelID is shared by both sides of a negotiated control channel.
const controlChannelID uint16 = 0

// ErrLinkClosed is returned by operations on a closed link.
var ErrLinkClosed = errors.New("link closed")

// Link is a single pion peer connection to one remote party.
type Link struct {
	remote  voice.Remote
	pc      *webrtc.PeerConnection
	control *webrtc.DataChannel
	events  voice.LinkEvents
	log     *slog.Logger

	mu        sync.Mutex
	remoteSet bool
	pending   []webrtc.ICECandidateInit
	muted     bool
	open      bool
	closed    bool
}

func newLink(pc *webrtc.PeerConnection, remote voice.Remote, events voice.LinkEvents, f *Factory) (*Link, error) {
	l := &Link{
		remote: remote,
		pc:     pc,
		events: events,
		log:    f.log.With("peer", remote.SocketID),
	}

	if f.source != nil {
		sender, err := pc.AddTrack(f.source.Track())
		if err != nil {
			return nil, fmt.Errorf("add audio track: %w", err)
		}
		go drainRTCP(sender)
	} else {
		if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			return nil, fmt.Errorf("add audio transceiver: %w", err)
		}
	}

	negotiated := true
	id := controlChannelID
	dc, err := pc.CreateDataChannel("control", &webrtc.DataChannelInit{Negotiated: &negotiated, ID: &id})
	if err != nil {
		return nil, fmt.Errorf("create control channel: %w", err)
	}
	l.control = dc
	l.setupControl()

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil || l.events.OnCandidate == nil {
			return
		}
		l.events.OnCandidate(c.ToJSON())
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		if l.events.OnState != nil {
			l.events.OnState(linkState(state))
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if track.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		read := func() (*rtp.Packet, error) {
			pkt, _, err := track.ReadRTP()
			return pkt, err
		}
		l.log.Debug("remote audio", "codec", track.Codec().MimeType)
		if f.recorder == nil {
			media.Discard(read)
			return
		}
		name := remote.SocketID
		if remote.UserID != "" {
			name = remote.UserID + "-" + remote.SocketID
		}
		if err := f.recorder.Record(name, read); err != nil {
			l.log.Debug("recording stopped", "err", err)
		}
	})

	return l, nil
}

func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

func (l *Link) setupControl() {
	l.control.OnOpen(func() {
		l.mu.Lock()
		l.open = true
		muted := l.muted
		l.mu.Unlock()

		l.send(MessageTypeHello, HelloPayload{Client: "huddle", Version: version.Version})
		l.send(MessageTypeMute, MutePayload{Muted: muted})
	})

	l.control.OnMessage(func(msg webrtc.DataChannelMessage) {
		var message Message
		if err := msgpack.Unmarshal(msg.Data, &message); err != nil {
			l.log.Debug("bad control message", "err", err)
			return
		}

		switch message.Type {
		case MessageTypeMute:
			var p MutePayload
			if err := message.DecodePayload(&p); err != nil {
				return
			}
			if l.events.OnRemoteMute != nil {
				l.events.OnRemoteMute(p.Muted)
			}

		case MessageTypeHello:
			var p HelloPayload
			if err := message.DecodePayload(&p); err == nil {
				l.log.Debug("remote client", "client", p.Client, "version", p.Version)
			}
		}
	})
}

func (l *Link) send(t string, payload any) {
	data, err := Encode(t, payload)
	if err != nil {
		l.log.Debug("encode control message", "type", t, "err", err)
		return
	}
	if err := l.control.Send(data); err != nil {
		l.log.Debug("send control message", "type", t, "err", err)
	}
}

// Offer creates an offer with trickle ICE; candidates follow through
// OnCandidate.
func (l *Link) Offer() (webrtc.SessionDescription, error) {
	offer, err := l.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := l.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return *l.pc.LocalDescription(), nil
}

// Answer applies a remote offer, flushes buffered candidates and returns
// the local answer.
func (l *Link) Answer(offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	if err := l.setRemote(offer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	answer, err := l.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := l.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return *l.pc.LocalDescription(), nil
}

// SetAnswer applies the remote answer to an offer made by this side.
func (l *Link) SetAnswer(answer webrtc.SessionDescription) error {
	return l.setRemote(answer)
}

func (l *Link) setRemote(desc webrtc.SessionDescription) error {
	if err := l.pc.SetRemoteDescription(desc); err != nil {
		return err
	}

	l.mu.Lock()
	l.remoteSet = true
	pending := l.pending
	l.pending = nil
	l.mu.Unlock()

	for _, c := range pending {
		if err := l.pc.AddICECandidate(c); err != nil {
			l.log.Debug("add buffered candidate", "err", err)
		}
	}
	return nil
}

// AddCandidate adds a remote ICE candidate, holding it until the remote
// description is set.
func (l *Link) AddCandidate(c webrtc.ICECandidateInit) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrLinkClosed
	}
	if !l.remoteSet {
		l.pending = append(l.pending, c)
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()
	return l.pc.AddICECandidate(c)
}

// SetMuted announces the mute state on the control channel, or on open
// if it is not open yet.
func (l *Link) SetMuted(muted bool) {
	l.mu.Lock()
	l.muted = muted
	open := l.open && !l.closed
	l.mu.Unlock()
	if open {
		l.send(MessageTypeMute, MutePayload{Muted: muted})
	}
}

// Close tears down the peer connection. It is safe to call more than once.
func (l *Link) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.pending = nil
	l.mu.Unlock()
	return l.pc.Close()
}

func linkState(s webrtc.PeerConnectionState) voice.LinkState {
	switch s {
	case webrtc.PeerConnectionStateConnecting:
		return voice.LinkConnecting
	case webrtc.PeerConnectionStateConnected:
		return voice.LinkConnected
	case webrtc.PeerConnectionStateDisconnected:
		return voice.LinkDisconnected
	case webrtc.PeerConnectionStateFailed:
		return voice.LinkFailed
	case webrtc.PeerConnectionStateClosed:
		return voice.LinkClosed
	}
	return voice.LinkNew
}
