package voice

import (
	"encoding/json"
	"testing"

	"drawza/internal/core/domain"
	"drawza/internal/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubLink struct {
	remote    domain.ConnID
	state     domain.PeerLinkState
	offers    int
	answers   int
	candidats int
	closed    bool
}

func (s *stubLink) CreateOffer() (protocol.Signal, error) {
	s.offers++
	s.state = domain.LinkOffering
	return protocol.Signal{Type: protocol.SignalOffer, SDP: json.RawMessage(`{"type":"offer","sdp":"v=0"}`)}, nil
}

func (s *stubLink) HandleOffer(protocol.Signal) (protocol.Signal, error) {
	s.state = domain.LinkAnswering
	return protocol.Signal{Type: protocol.SignalAnswer, SDP: json.RawMessage(`{"type":"answer","sdp":"v=0"}`)}, nil
}

func (s *stubLink) HandleAnswer(protocol.Signal) error {
	s.answers++
	s.state = domain.LinkConnected
	return nil
}

func (s *stubLink) AddCandidate(protocol.Signal) error {
	s.candidats++
	return nil
}

func (s *stubLink) State() domain.PeerLinkState { return s.state }

func (s *stubLink) Close() error {
	s.closed = true
	s.state = domain.LinkClosed
	return nil
}

type nullSource struct{ frames chan struct{} }

func newNullSource() *nullSource {
	return &nullSource{frames: make(chan struct{})}
}

func (n *nullSource) ReadFrame() ([]byte, uint32, error) {
	<-n.frames
	return nil, 0, errSourceClosed
}

func (n *nullSource) Close() error {
	close(n.frames)
	return nil
}

type sourceErr string

func (e sourceErr) Error() string { return string(e) }

const errSourceClosed = sourceErr("source closed")

type sentSignal struct {
	target domain.ConnID
	sig    protocol.Signal
}

func newTestCoordinator(t *testing.T) (*Coordinator, map[domain.ConnID]*stubLink, *[]sentSignal) {
	t.Helper()
	var sent []sentSignal
	links := make(map[domain.ConnID]*stubLink)

	c := NewCoordinator("room-1", nil, func(target domain.ConnID, sig protocol.Signal) error {
		sent = append(sent, sentSignal{target: target, sig: sig})
		return nil
	}, nil, zap.NewNop())

	c.newLink = func(remote domain.ConnID) (link, error) {
		l := &stubLink{remote: remote, state: domain.LinkNew}
		links[remote] = l
		return l, nil
	}

	require.NoError(t, c.Start(newNullSource(), false))
	t.Cleanup(c.Close)
	return c, links, &sent
}

func TestJoinerOffersToEveryRosterMember(t *testing.T) {
	c, links, sent := newTestCoordinator(t)

	c.HandleRoster([]protocol.VoiceUser{
		{SocketID: "b", UserName: "Bea"},
		{SocketID: "c", UserName: "Cal"},
	})

	assert.Equal(t, 2, c.LinkCount())
	require.Contains(t, links, domain.ConnID("b"))
	require.Contains(t, links, domain.ConnID("c"))
	assert.Equal(t, 1, links["b"].offers)
	assert.Equal(t, 1, links["c"].offers)

	require.Len(t, *sent, 2)
	assert.Equal(t, protocol.SignalOffer, (*sent)[0].sig.Type)
	assert.Len(t, c.Participants(), 2)
}

func TestRosterDoesNotDuplicateLinks(t *testing.T) {
	c, links, _ := newTestCoordinator(t)

	roster := []protocol.VoiceUser{{SocketID: "b", UserName: "Bea"}}
	c.HandleRoster(roster)
	c.HandleRoster(roster)

	assert.Equal(t, 1, c.LinkCount())
	assert.Equal(t, 1, links["b"].offers)
}

func TestFirstOfferCreatesAnsweringLink(t *testing.T) {
	c, links, sent := newTestCoordinator(t)

	c.HandleSignal(protocol.VoiceSignal{
		RoomID:       "room-1",
		FromSocketID: "joiner",
		FromUserName: "Joy",
		Signal:       protocol.Signal{Type: protocol.SignalOffer, SDP: json.RawMessage(`{"type":"offer","sdp":"v=0"}`)},
	})

	require.Contains(t, links, domain.ConnID("joiner"))
	assert.Equal(t, domain.LinkAnswering, links["joiner"].State())

	require.Len(t, *sent, 1)
	assert.Equal(t, domain.ConnID("joiner"), (*sent)[0].target)
	assert.Equal(t, protocol.SignalAnswer, (*sent)[0].sig.Type)
}

func TestAnswerAndCandidateRouteToExistingLink(t *testing.T) {
	c, links, _ := newTestCoordinator(t)
	c.HandleRoster([]protocol.VoiceUser{{SocketID: "b", UserName: "Bea"}})

	c.HandleSignal(protocol.VoiceSignal{
		RoomID:       "room-1",
		FromSocketID: "b",
		Signal:       protocol.Signal{Type: protocol.SignalAnswer, SDP: json.RawMessage(`{"type":"answer","sdp":"v=0"}`)},
	})
	assert.Equal(t, domain.LinkConnected, links["b"].State())

	c.HandleSignal(protocol.VoiceSignal{
		RoomID:       "room-1",
		FromSocketID: "b",
		Signal:       protocol.Signal{Type: protocol.SignalCandidate, Candidate: json.RawMessage(`{"candidate":"c"}`)},
	})
	assert.Equal(t, 1, links["b"].candidats)
}

func TestCandidateForUnknownPeerIsDropped(t *testing.T) {
	c, _, sent := newTestCoordinator(t)

	c.HandleSignal(protocol.VoiceSignal{
		RoomID:       "room-1",
		FromSocketID: "stranger",
		Signal:       protocol.Signal{Type: protocol.SignalCandidate, Candidate: json.RawMessage(`{"candidate":"c"}`)},
	})

	assert.Equal(t, 0, c.LinkCount())
	assert.Empty(t, *sent)
}

func TestSignalBeforeStartIsDropped(t *testing.T) {
	var sent []sentSignal
	c := NewCoordinator("room-1", nil, func(target domain.ConnID, sig protocol.Signal) error {
		sent = append(sent, sentSignal{target: target, sig: sig})
		return nil
	}, nil, zap.NewNop())

	c.HandleSignal(protocol.VoiceSignal{
		RoomID:       "room-1",
		FromSocketID: "b",
		Signal:       protocol.Signal{Type: protocol.SignalOffer, SDP: json.RawMessage(`{"type":"offer","sdp":"v=0"}`)},
	})

	assert.Equal(t, 0, c.LinkCount())
	assert.Empty(t, sent)
}

func TestUserLeftClosesLink(t *testing.T) {
	c, links, _ := newTestCoordinator(t)
	c.HandleRoster([]protocol.VoiceUser{{SocketID: "b", UserName: "Bea"}})

	c.HandleUserLeft("b")

	assert.True(t, links["b"].closed)
	assert.Equal(t, 0, c.LinkCount())
	assert.Empty(t, c.Participants())
}

func TestMuteUpdatesRosterFlagOnly(t *testing.T) {
	c, links, _ := newTestCoordinator(t)
	c.HandleRoster([]protocol.VoiceUser{{SocketID: "b", UserName: "Bea"}})

	c.HandleUserMuted("b", true)

	participants := c.Participants()
	require.Len(t, participants, 1)
	assert.True(t, participants[0].Muted)
	assert.False(t, links["b"].closed) // media untouched
}

func TestSetMutedTogglesLocalFlag(t *testing.T) {
	c, _, _ := newTestCoordinator(t)

	assert.False(t, c.Muted())
	c.SetMuted(true)
	assert.True(t, c.Muted())
}

func TestCloseTearsDownAllLinks(t *testing.T) {
	c, links, _ := newTestCoordinator(t)
	c.HandleRoster([]protocol.VoiceUser{
		{SocketID: "b"}, {SocketID: "c"},
	})

	c.Close()

	assert.True(t, links["b"].closed)
	assert.True(t, links["c"].closed)
	assert.Equal(t, 0, c.LinkCount())
}
