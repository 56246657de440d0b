package peer

import (
	"fmt"
	"log/slog"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/huddle/internal/config"
	"github.com/BioHazard786/huddle/internal/logging"
	"github.com/BioHazard786/huddle/internal/media"
	"github.com/BioHazard786/huddle/internal/voice"
)

// Options configures a Factory.
type Options struct {
	Config *config.Config

	// Source is the shared outbound track. Without one, links only receive.
	Source *media.Source

	// Recorder receives remote audio. Without one, remote audio is discarded.
	Recorder *media.Recorder

	// ForceRelay restricts ICE to TURN candidates.
	ForceRelay bool

	Logger *slog.Logger
}

// Factory builds pion-backed voice links that share one API instance.
type Factory struct {
	api      *webrtc.API
	config   webrtc.Configuration
	source   *media.Source
	recorder *media.Recorder
	log      *slog.Logger
}

// NewFactory registers the default codecs and interceptors and routes
// pion's logging into slog.
func NewFactory(opts Options) (*Factory, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "peer")

	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}
	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, registry); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	se := webrtc.SettingEngine{LoggerFactory: logging.PionFactory{Logger: log}}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(registry),
		webrtc.WithSettingEngine(se),
	)

	return &Factory{
		api:      api,
		config:   Configuration(opts.Config, opts.ForceRelay),
		source:   opts.Source,
		recorder: opts.Recorder,
		log:      log,
	}, nil
}

// Configuration builds the ICE configuration from client config. A nil
// config yields no ICE servers, which is enough for loopback peers.
func Configuration(cfg *config.Config, forceRelay bool) webrtc.Configuration {
	if cfg == nil {
		return webrtc.Configuration{}
	}

	var iceServers []webrtc.ICEServer
	if stun := cfg.GetSTUNServers(); stun != nil {
		iceServers = append(iceServers, webrtc.ICEServer{URLs: stun})
	}

	turnServers := cfg.GetTURNServers()
	if turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	policy := webrtc.ICETransportPolicyAll
	if turnServers != nil && forceRelay {
		policy = webrtc.ICETransportPolicyRelay
	}

	return webrtc.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	}
}

var _ voice.LinkFactory = (*Factory)(nil)

// NewLink implements voice.LinkFactory.
func (f *Factory) NewLink(remote voice.Remote, events voice.LinkEvents) (voice.Link, error) {
	pc, err := f.api.NewPeerConnection(f.config)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	l, err := newLink(pc, remote, events, f)
	if err != nil {
		pc.Close()
		return nil, err
	}
	return l, nil
}
