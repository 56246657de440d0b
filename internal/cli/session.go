package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/BioHazard786/huddle/internal/config"
	"github.com/BioHazard786/huddle/internal/media"
	"github.com/BioHazard786/huddle/internal/peer"
	"github.com/BioHazard786/huddle/internal/signaling"
	"github.com/BioHazard786/huddle/internal/ui"
	"github.com/BioHazard786/huddle/internal/voice"
)

// errNoUser is returned by commands that need to know who you are.
var errNoUser = errors.New("no user id: pass --user or set HUDDLE_USER")

// ConnectionContext bundles the relay connection with its config.
type ConnectionContext struct {
	Client  *signaling.Client
	Handler *signaling.Handler
	Config  *config.Config
}

// NewConnectionContext connects to the relay behind a spinner and starts
// decoding its events.
func NewConnectionContext(ctx context.Context, cfg *config.Config) (*ConnectionContext, error) {
	stopSpinner := ui.RunConnectionSpinner("Connecting to relay...")
	defer stopSpinner()

	client := signaling.NewClient(cfg.WebSocketURL)
	if err := client.Connect(ctx); err != nil {
		return nil, voice.NewError("connect to relay", err)
	}

	handler := signaling.NewHandler(client.Incoming())
	go handler.Start()

	return &ConnectionContext{Client: client, Handler: handler, Config: cfg}, nil
}

func (c *ConnectionContext) Close() {
	if c.Client != nil {
		c.Client.Close()
	}
}

// LoadConfig resolves client settings from flags, the environment and
// .env. A missing relay address disables every calling command.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.Options{
		SignalingURL: flagSignalingURL,
		UserID:       flagUser,
		STUNServer:   flagSTUN,
		TURNServer:   flagTURN,
		TURNUser:     flagTURNUser,
		TURNPass:     flagTURNPass,
		RingTimeout:  flagRingTimeout,
		EnvFile:      flagEnvFile,
	})
	if err != nil {
		return nil, voice.NewError("load config", err)
	}
	if !cfg.CallsEnabled() {
		return nil, voice.ErrCallsDisabled
	}
	if flagRelay && cfg.GetTURNServers() == nil {
		return nil, fmt.Errorf("cannot force relay mode without TURN server configured")
	}
	return cfg, nil
}

// Media is the capture source, optional recorder and link factory one
// command shares across all of its peer links.
type Media struct {
	Source   *media.Source
	Recorder *media.Recorder
	Links    *peer.Factory
}

// OpenMedia opens the capture source, the optional recorder and the link
// factory and starts pacing audio.
func OpenMedia(ctx context.Context, cfg *config.Config) (*Media, error) {
	src, err := media.Open(flagInput)
	if err != nil {
		return nil, err
	}

	m := &Media{Source: src}
	if flagRecord != "" {
		if m.Recorder, err = media.NewRecorder(flagRecord); err != nil {
			src.Close()
			return nil, err
		}
	}

	forceRelay := flagRelay
	if !forceRelay && cfg.GetTURNServers() != nil && peer.RestrictedNetwork() {
		slog.Info("VPN or CGNAT detected, routing media through TURN")
		forceRelay = true
	}

	m.Links, err = peer.NewFactory(peer.Options{
		Config:     cfg,
		Source:     src,
		Recorder:   m.Recorder,
		ForceRelay: forceRelay,
		Logger:     slog.Default(),
	})
	if err != nil {
		m.Close()
		return nil, err
	}

	src.Start(ctx)
	return m, nil
}

func (m *Media) Close() {
	m.Source.Close()
	if m.Recorder != nil {
		if err := m.Recorder.Close(); err != nil {
			slog.Warn("finish recordings", "err", err)
		}
	}
}

// runView shows view while run works in the background. Quitting the view
// cancels run's context; run ending closes the view.
func runView(ctx context.Context, view tea.Model, run func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(view, tea.WithContext(ctx))
	errc := make(chan error, 1)
	go func() {
		err := run(ctx)
		errc <- err
		p.Send(ui.EndedMsg{Err: err})
	}()

	_, uiErr := p.Run()
	cancel()
	err := <-errc
	if err == nil && uiErr != nil && !errors.Is(uiErr, tea.ErrProgramKilled) {
		err = uiErr
	}
	return err
}
