package conference

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/n0remac/pttbridge/internal/audio"
	"github.com/n0remac/pttbridge/internal/config"
	"github.com/n0remac/pttbridge/internal/floor"
	"github.com/n0remac/pttbridge/internal/ids"
	"github.com/n0remac/pttbridge/internal/relay"
	"github.com/n0remac/pttbridge/internal/signaling"
	"github.com/n0remac/pttbridge/internal/store"
)

// ServerClientID is the reserved holder id the floor arbiter and P2P
// envelopes use to denote the server itself (spec.md §4.1, §6 "from =
// serverClientId").
const ServerClientID = "__server__"

// Conference wires together every component in spec.md §4 into one
// process-wide object: the registry (C4), the floor arbiter (C1), the
// relay driver (C2), the mic ingress (C8) and recorder (C9), and the
// client-name store. One Conference serves every WebSocket session.
type Conference struct {
	cfg *config.Config

	api       *webrtc.API
	iceServer webrtc.ICEServer

	registry      *registry
	arbiter       *floor.Arbiter
	relay         *relay.Driver
	recorder      *audio.Recorder
	names         *store.ClientNames
	subscriptions *store.Subscriptions

	stopSweeper chan struct{}
}

// New builds a Conference ready to serve ServeWS; it does not start
// listening on its own (cmd/server wires it into an http.ServeMux).
func New(cfg *config.Config, relayDrv *relay.Driver, names *store.ClientNames, subs *store.Subscriptions) (*Conference, error) {
	api, err := newAPI()
	if err != nil {
		return nil, err
	}

	c := &Conference{
		cfg:           cfg,
		api:           api,
		iceServer:     webrtc.ICEServer{URLs: []string{cfg.STUNServer}},
		registry:      newRegistry(),
		arbiter:       floor.New(cfg.PTTTimeout),
		relay:         relayDrv,
		recorder:      audio.NewRecorder(cfg),
		names:         names,
		subscriptions: subs,
		stopSweeper:   make(chan struct{}),
	}

	c.arbiter.StartSweeper(c.stopSweeper, c.onFloorTimeout)
	return c, nil
}

// Close stops background goroutines owned directly by the Conference
// (per-session teardown is the registry's job, driven by transport
// close).
func (c *Conference) Close() {
	close(c.stopSweeper)
}

// newAPI builds the pion WebRTC API registering mono Opus at the fixed
// payload type 111 spec.md §6 requires, following the teacher's
// newSFUAPI in webrtc/sfu.go (explicit MediaEngine + interceptor
// registry) trimmed to this spec's audio-only scope.
func newAPI() (*webrtc.API, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:  webrtc.MimeTypeOpus,
			ClockRate: 48000,
			Channels:  1,
		},
		PayloadType: audio.OpusPayloadType,
	}, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, err
	}
	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, ir); err != nil {
		return nil, err
	}
	return webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(ir)), nil
}

// ServeWS upgrades the HTTP request and runs the session to completion.
// One goroutine per session plus its own reader (this call) and writer
// (spawned below), the same shape as the teacher's SfuWebsocketHandler.
func (c *Conference) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[conference] WS upgrade failed: %v", err)
		return
	}

	clientID := ids.NewClientID()
	s := newSession(c, clientID, conn)
	c.registry.add(s)

	s.send(signaling.Envelope{
		Type:           signaling.TypeConfig,
		ClientID:       clientID,
		ICEServers:     []signaling.ICEServer{{URLs: c.iceServer.URLs}},
		VapidPublicKey: c.cfg.VapidPublicKey,
	})

	c.registry.broadcast(signaling.Envelope{
		Type:     signaling.TypeClientJoined,
		ClientID: clientID,
	}, clientID)

	s.main.armOfferWaitTimeout()

	go s.transport.writePump(func() {})
	s.transport.readPump(func(raw []byte) {
		dispatch(s, raw)
	}, s.teardown)

	// readPump returned: the connection is gone either way; readPump's own
	// onClose has already run teardown, which is idempotent, so calling it
	// again from here is a no-op.
	s.teardown()
}

// broadcastFloorStatus sends a ptt_status envelope to every session,
// reflecting the arbiter's current state (spec.md §4.1, §6).
func (c *Conference) broadcastFloorStatus() {
	st := c.arbiter.Snapshot()
	env := signaling.Envelope{
		Type:  signaling.TypePTTStatus,
		State: signaling.StateIdle,
	}
	if !st.IsIdle() {
		env.State = signaling.StateTransmitting
		env.Speaker = st.Holder
		env.SpeakerName = c.displayNameOf(st.Holder)
	}
	c.registry.broadcast(env, "")
}

// reservedDisplayNames maps the reserved floor-holder ids (spec.md §4.1's
// "Server microphone and external VOX use reserved holder ids distinct from
// any real clientId") to the friendly names scenario 3 puts on the wire;
// neither id has a registry session to look a display name up from.
var reservedDisplayNames = map[string]string{
	floor.ExternalHolder:  "外部デバイス",
	floor.ServerMicHolder: "Server Mic",
}

func (c *Conference) displayNameOf(clientID string) string {
	if name, ok := reservedDisplayNames[clientID]; ok {
		return name
	}
	if s := c.registry.get(clientID); s != nil {
		return s.displayName
	}
	return ""
}

// onFloorTimeout is the Arbiter sweeper's eviction callback (spec.md
// §4.1's sweepTimeout, wired via floor.Arbiter.StartSweeper).
func (c *Conference) onFloorTimeout(holder string) {
	c.onFloorReleased(holder)
}

// onFloorReleased runs every C2/C9 side effect spec.md §2's control-flow
// summary assigns to a floor release: relay off and, for a web holder, a
// finalized recording.
func (c *Conference) onFloorReleased(holder string) {
	c.relay.TurnOff()
	if isWebHolder(holder) {
		if final, err := c.recorder.EndSession(); err != nil {
			log.Printf("[conference] finalizing recording for %s: %v", holder, err)
		} else if final != "" {
			log.Printf("[conference] recording finalized: %s", final)
		}
	}
	c.broadcastFloorStatus()
}

// onFloorGranted runs the grant-side effects for a real client: relay on
// and a fresh recording slot. The external holder (already transmitting)
// and the server mic get neither; every grant broadcasts ptt_status.
func (c *Conference) onFloorGranted(holder string) {
	if isWebHolder(holder) {
		c.relay.TurnOn()
		if err := c.recorder.BeginSession(holder, time.Now()); err != nil {
			log.Printf("[conference] starting recording for %s: %v", holder, err)
		}
		if s := c.registry.get(holder); s != nil {
			c.names.Set(holder, s.displayName)
		}
	}
	c.broadcastFloorStatus()
}

func isWebHolder(holder string) bool {
	return holder != floor.None && holder != floor.ServerMicHolder && holder != floor.ExternalHolder
}

// RequestExternalFloor implements the VOX API's requestFloor(externalId)
// (spec.md §4.10 POST /api/vox/on).
func (c *Conference) RequestExternalFloor() (granted bool, reason string) {
	ok, holder, _ := c.arbiter.RequestFloor(floor.ExternalHolder)
	if !ok {
		return false, "busy:" + holder
	}
	c.onFloorGranted(floor.ExternalHolder)
	return true, ""
}

// ReleaseExternalFloor implements POST /api/vox/off.
func (c *Conference) ReleaseExternalFloor() {
	if c.arbiter.ReleaseFloor(floor.ExternalHolder) {
		c.onFloorReleased(floor.ExternalHolder)
	}
}

// ForceReleaseFloor implements POST /api/dash/ptt/release.
func (c *Conference) ForceReleaseFloor() {
	if holder, wasHeld := c.arbiter.ForceRelease(); wasHeld {
		c.onFloorReleased(holder)
	}
}

// FloorSnapshot exposes the arbiter's current state for the dashboard API.
func (c *Conference) FloorSnapshot() floor.State {
	return c.arbiter.Snapshot()
}

// ClientSnapshots lists every connected client for GET /api/dash/clients.
type ClientSnapshot struct {
	ClientID    string
	DisplayName string
	P2PState    string
}

func (c *Conference) ClientSnapshots() []ClientSnapshot {
	sessions := c.registry.list()
	out := make([]ClientSnapshot, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, ClientSnapshot{
			ClientID:    s.id,
			DisplayName: s.displayName,
			P2PState:    s.p2p.stateString(),
		})
	}
	return out
}

func (c *Conference) ClientCount() int { return c.registry.count() }

// DisconnectClient implements POST /api/dash/clients/:id/disconnect.
func (c *Conference) DisconnectClient(clientID string) bool {
	s := c.registry.get(clientID)
	if s == nil {
		return false
	}
	go s.teardown()
	return true
}

// micSinks adapts the registry's live P2P tracks into audio.SinkLister
// for the mic-ingress fan-out (C8).
func (c *Conference) micSinks() []audio.RTPSink {
	sessions := c.registry.list()
	out := make([]audio.RTPSink, 0, len(sessions))
	for _, s := range sessions {
		if sink := s.p2p.sink(); sink != nil {
			out = append(out, sink)
		}
	}
	return out
}

// StartMicIngress launches C8 if enabled in config; the returned context
// should be cancelled by the caller on shutdown.
func (c *Conference) StartMicIngress(ctx context.Context) {
	if !c.cfg.EnableServerMic {
		return
	}
	ing := audio.NewMicIngress(c.cfg.MicDevice, c.cfg.ServerMicMode, c.micHolder, c.micSinks, c.claimServerMic, c.releaseServerMic)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if err := ing.Run(ctx); err != nil {
				log.Printf("[conference] mic ingress exited: %v; restarting in 2s", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
		}
	}()
}

func (c *Conference) micHolder() string {
	return c.arbiter.Snapshot().Holder
}

// claimServerMic and releaseServerMic give SERVER_MIC_MODE=ptt's ingress
// loop (internal/audio.MicIngress) the same floor-contention path a web
// client's ptt_request/ptt_release drive, so a server-mic grant or release
// is broadcast as ptt_status (C4) like any other; the relay (C2) is not
// energized and no recording (C9) is made for the server mic.
func (c *Conference) claimServerMic() bool {
	granted, _, _ := c.arbiter.RequestFloor(floor.ServerMicHolder)
	if granted {
		c.onFloorGranted(floor.ServerMicHolder)
	}
	return granted
}

func (c *Conference) releaseServerMic() {
	if c.arbiter.ReleaseFloor(floor.ServerMicHolder) {
		c.onFloorReleased(floor.ServerMicHolder)
	}
}

// EnsureSpeaker starts the persistent-mode speaker subprocess at startup
// (spec.md §4.9: in persistent mode the same process survives across
// floors, so it is started once here rather than per floor grant).
func (c *Conference) EnsureSpeaker() error {
	return c.recorder.EnsureSpeaker()
}

// trackSink wraps a pion local audio track so it satisfies audio.RTPSink.
type trackSink struct {
	id    string
	track *webrtc.TrackLocalStaticRTP
}

func (t *trackSink) ID() string { return t.id }

func (t *trackSink) WriteRTP(pkt *rtp.Packet) error {
	return t.track.WriteRTP(pkt)
}

// ServerMic composes the reserved holder ids used across §4.1's edge case
// ("Server microphone and external VOX use reserved holder ids distinct
// from any real clientId").
func ServerMic() string { return floor.ServerMicHolder }
