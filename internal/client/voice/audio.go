package voice

import (
	"math/rand"
	"sync/atomic"

	"github.com/pion/rtp"
	"go.uber.org/zap"
)

// Source supplies encoded Opus frames from the capture device. ReadFrame
// blocks until a frame is available and returns the payload plus its
// duration in 48 kHz samples (960 for a 20 ms frame).
type Source interface {
	ReadFrame() (payload []byte, samples uint32, err error)
	Close() error
}

const opusPayloadType = 111

// opusSilence is a minimal Opus frame decoding to silence. Sent while
// muted so the stream never stops; mute stays a presentation flag.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// rtpWriter is the slice of TrackLocalStaticRTP the pump needs.
type rtpWriter interface {
	WriteRTP(p *rtp.Packet) error
}

// pump writes captured frames onto the local track as RTP. Muting
// substitutes silence frames but keeps the packet cadence, sequence
// numbers and timestamps intact.
type pump struct {
	track  rtpWriter
	source Source
	muted  atomic.Bool
	logger *zap.SugaredLogger

	ssrc uint32
	seq  uint16
	ts   uint32

	stop chan struct{}
	done chan struct{}
}

func newPump(track rtpWriter, source Source, muted bool, logger *zap.SugaredLogger) *pump {
	p := &pump{
		track:  track,
		source: source,
		logger: logger,
		ssrc:   rand.Uint32(),
		seq:    uint16(rand.Uint32()),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	p.muted.Store(muted)
	return p
}

func (p *pump) run() {
	defer close(p.done)
	for {
		select {
		case <-p.stop:
			return
		default:
		}

		payload, samples, err := p.source.ReadFrame()
		if err != nil {
			p.logger.Debugw("audio source closed", "error", err)
			return
		}

		p.seq++
		p.ts += samples

		if p.muted.Load() {
			payload = opusSilence
		}

		packet := &rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				PayloadType:    opusPayloadType,
				SequenceNumber: p.seq,
				Timestamp:      p.ts,
				SSRC:           p.ssrc,
			},
			Payload: payload,
		}
		if err := p.track.WriteRTP(packet); err != nil {
			p.logger.Debugw("failed to write audio frame", "error", err)
		}
	}
}

func (p *pump) setMuted(muted bool) {
	p.muted.Store(muted)
}

func (p *pump) close() {
	close(p.stop)
	p.source.Close()
	<-p.done
}
