package voice

import (
	"sync"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type scriptedSource struct {
	frames chan []byte
}

func newScriptedSource() *scriptedSource {
	return &scriptedSource{frames: make(chan []byte, 16)}
}

func (s *scriptedSource) ReadFrame() ([]byte, uint32, error) {
	payload, ok := <-s.frames
	if !ok {
		return nil, 0, errSourceClosed
	}
	return payload, 960, nil
}

func (s *scriptedSource) Close() error {
	close(s.frames)
	return nil
}

type recordingTrack struct {
	mu      sync.Mutex
	packets []rtp.Packet
}

func (r *recordingTrack) WriteRTP(p *rtp.Packet) error {
	r.mu.Lock()
	r.packets = append(r.packets, *p)
	r.mu.Unlock()
	return nil
}

func (r *recordingTrack) snapshot() []rtp.Packet {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]rtp.Packet, len(r.packets))
	copy(out, r.packets)
	return out
}

func (r *recordingTrack) waitFor(t *testing.T, n int) []rtp.Packet {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := r.snapshot(); len(got) >= n {
			return got
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d packets", n)
	return nil
}

func TestMutedPumpKeepsStreamWarmWithSilence(t *testing.T) {
	source := newScriptedSource()
	track := &recordingTrack{}
	p := newPump(track, source, false, zap.NewNop().Sugar())
	go p.run()
	defer p.close()

	source.frames <- []byte{0x01}
	source.frames <- []byte{0x02}
	track.waitFor(t, 2)

	p.setMuted(true)
	source.frames <- []byte{0x03}
	source.frames <- []byte{0x04}
	packets := track.waitFor(t, 4)

	// Muting swaps payloads for silence but the packets keep flowing.
	require.Len(t, packets, 4)
	assert.Equal(t, []byte{0x01}, packets[0].Payload)
	assert.Equal(t, []byte{0x02}, packets[1].Payload)
	assert.Equal(t, opusSilence, packets[2].Payload)
	assert.Equal(t, opusSilence, packets[3].Payload)
}

func TestPumpTimestampsStayContiguousAcrossMute(t *testing.T) {
	source := newScriptedSource()
	track := &recordingTrack{}
	p := newPump(track, source, false, zap.NewNop().Sugar())
	go p.run()
	defer p.close()

	source.frames <- []byte{0x01}
	track.waitFor(t, 1)

	p.setMuted(true)
	source.frames <- []byte{0x02}
	track.waitFor(t, 2)

	p.setMuted(false)
	source.frames <- []byte{0x03}
	packets := track.waitFor(t, 3)

	for i := 1; i < len(packets); i++ {
		assert.Equal(t, packets[i-1].SequenceNumber+1, packets[i].SequenceNumber)
		assert.Equal(t, packets[i-1].Timestamp+960, packets[i].Timestamp)
	}
}
