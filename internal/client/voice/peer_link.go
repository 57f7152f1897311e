package voice

import (
	"encoding/json"
	"fmt"
	"sync"

	"drawza/internal/core/domain"
	"drawza/internal/protocol"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// link is one negotiable audio connection to a remote participant. The
// coordinator only sees this interface; tests substitute a stub.
type link interface {
	CreateOffer() (protocol.Signal, error)
	HandleOffer(protocol.Signal) (protocol.Signal, error)
	HandleAnswer(protocol.Signal) error
	AddCandidate(protocol.Signal) error
	State() domain.PeerLinkState
	Close() error
}

// PeerLink is the pion-backed link implementation. Negotiation is an
// explicit task: new -> offering|answering -> connected -> failed|closed,
// with teardown cancelling anything in flight.
type PeerLink struct {
	remote domain.ConnID
	pc     *webrtc.PeerConnection

	mu      sync.Mutex
	state   domain.PeerLinkState
	pending []webrtc.ICECandidateInit // remote candidates before the description

	logger *zap.SugaredLogger
}

// linkCallbacks are invoked from pion's goroutines.
type linkCallbacks struct {
	onSignal func(remote domain.ConnID, sig protocol.Signal)
	onClosed func(remote domain.ConnID)
	onTrack  func(remote domain.ConnID, track *webrtc.TrackRemote)
}

func newPeerLink(
	remote domain.ConnID,
	cfg webrtc.Configuration,
	localTrack webrtc.TrackLocal,
	cb linkCallbacks,
	logger *zap.SugaredLogger,
) (*PeerLink, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	l := &PeerLink{
		remote: remote,
		pc:     pc,
		state:  domain.LinkNew,
		logger: logger,
	}

	sender, err := pc.AddTrack(localTrack)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("add local track: %w", err)
	}
	go l.drainRTCP(sender)

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		raw, err := json.Marshal(c.ToJSON())
		if err != nil {
			l.logger.Warnw("failed to marshal candidate", "remote", remote, "error", err)
			return
		}
		cb.onSignal(remote, protocol.Signal{Type: protocol.SignalCandidate, Candidate: raw})
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateConnected:
			l.setState(domain.LinkConnected)
		case webrtc.PeerConnectionStateFailed:
			l.setState(domain.LinkFailed)
			cb.onClosed(remote)
		case webrtc.PeerConnectionStateClosed, webrtc.PeerConnectionStateDisconnected:
			l.setState(domain.LinkClosed)
			cb.onClosed(remote)
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		l.logger.Infow("remote track arrived",
			"remote", remote,
			"codec", track.Codec().MimeType,
		)
		if cb.onTrack != nil {
			cb.onTrack(remote, track)
		}
	})

	return l, nil
}

func (l *PeerLink) setState(state domain.PeerLinkState) {
	l.mu.Lock()
	l.state = state
	l.mu.Unlock()
}

func (l *PeerLink) State() domain.PeerLinkState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// CreateOffer produces the local offer and moves the link to offering.
func (l *PeerLink) CreateOffer() (protocol.Signal, error) {
	offer, err := l.pc.CreateOffer(nil)
	if err != nil {
		return protocol.Signal{}, fmt.Errorf("create offer: %w", err)
	}
	if err := l.pc.SetLocalDescription(offer); err != nil {
		return protocol.Signal{}, fmt.Errorf("set local description: %w", err)
	}
	l.setState(domain.LinkOffering)

	raw, err := json.Marshal(offer)
	if err != nil {
		return protocol.Signal{}, err
	}
	return protocol.Signal{Type: protocol.SignalOffer, SDP: raw}, nil
}

// HandleOffer applies a remote offer and returns the local answer.
func (l *PeerLink) HandleOffer(sig protocol.Signal) (protocol.Signal, error) {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(sig.SDP, &desc); err != nil {
		return protocol.Signal{}, fmt.Errorf("decode offer: %w", err)
	}
	if err := l.pc.SetRemoteDescription(desc); err != nil {
		return protocol.Signal{}, fmt.Errorf("set remote offer: %w", err)
	}
	l.flushPending()

	answer, err := l.pc.CreateAnswer(nil)
	if err != nil {
		return protocol.Signal{}, fmt.Errorf("create answer: %w", err)
	}
	if err := l.pc.SetLocalDescription(answer); err != nil {
		return protocol.Signal{}, fmt.Errorf("set local description: %w", err)
	}
	l.setState(domain.LinkAnswering)

	raw, err := json.Marshal(answer)
	if err != nil {
		return protocol.Signal{}, err
	}
	return protocol.Signal{Type: protocol.SignalAnswer, SDP: raw}, nil
}

// HandleAnswer applies the remote answer to a link this side offered on.
func (l *PeerLink) HandleAnswer(sig protocol.Signal) error {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(sig.SDP, &desc); err != nil {
		return fmt.Errorf("decode answer: %w", err)
	}
	if err := l.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote answer: %w", err)
	}
	l.flushPending()
	return nil
}

// AddCandidate applies a trickle ICE candidate. Candidates arriving before
// the remote description are held until it lands.
func (l *PeerLink) AddCandidate(sig protocol.Signal) error {
	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(sig.Candidate, &candidate); err != nil {
		return fmt.Errorf("decode candidate: %w", err)
	}

	l.mu.Lock()
	if l.pc.RemoteDescription() == nil {
		l.pending = append(l.pending, candidate)
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	return l.pc.AddICECandidate(candidate)
}

func (l *PeerLink) flushPending() {
	l.mu.Lock()
	pending := l.pending
	l.pending = nil
	l.mu.Unlock()

	for _, c := range pending {
		if err := l.pc.AddICECandidate(c); err != nil {
			l.logger.Warnw("failed to apply buffered candidate", "remote", l.remote, "error", err)
		}
	}
}

func (l *PeerLink) Close() error {
	l.setState(domain.LinkClosed)
	return l.pc.Close()
}

// drainRTCP consumes sender reports so pion's interceptors keep running;
// receiver reports feed the loss log.
func (l *PeerLink) drainRTCP(sender *webrtc.RTPSender) {
	for {
		packets, _, err := sender.ReadRTCP()
		if err != nil {
			return
		}
		for _, packet := range packets {
			if report, ok := packet.(*rtcp.ReceiverReport); ok {
				for _, r := range report.Reports {
					if r.FractionLost > 0 {
						l.logger.Debugw("audio loss reported",
							"remote", l.remote,
							"fraction_lost", r.FractionLost,
						)
					}
				}
			}
		}
	}
}
