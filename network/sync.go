package network

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/lixenwraith/triad/mantle"
	"github.com/lixenwraith/triad/particle"
)

// StateSync payload layout, little-endian so browsers can read particles as a Float32Array:
// [RPM:8][Entropy:8][Cycle:8][Phase:1][Timestamp:8][Tick:8][Count:4] then Count*[X:4][Y:4][Z:4][Layer:4]
const (
	syncHeaderSize = 45

	// ParticleStride is the encoded size of one particle (four float32)
	ParticleStride = 16

	// MaxSyncParticles is the largest snapshot one frame can carry
	MaxSyncParticles = (MaxPayload - syncHeaderSize) / ParticleStride
)

var (
	ErrShortPayload = errors.New("payload shorter than declared content")
	ErrBadParticles = errors.New("particle buffer length not a multiple of stride")
)

// StateSync is one broadcast frame of field state
type StateSync struct {
	State     mantle.State
	Tick      int64
	Particles []particle.Particle
}

// EncodeStateSync appends the payload for s to dst
// Snapshots larger than MaxSyncParticles are decimated to fit
func EncodeStateSync(dst []byte, s *StateSync) []byte {
	ps := Decimate(s.Particles, MaxSyncParticles)

	le := binary.LittleEndian
	dst = le.AppendUint64(dst, math.Float64bits(s.State.RPM))
	dst = le.AppendUint64(dst, math.Float64bits(s.State.Entropy))
	dst = le.AppendUint64(dst, uint64(s.State.Cycle))
	dst = append(dst, byte(s.State.Phase))
	dst = le.AppendUint64(dst, uint64(s.State.Timestamp))
	dst = le.AppendUint64(dst, uint64(s.Tick))
	dst = le.AppendUint32(dst, uint32(len(ps)))
	return AppendParticles(dst, ps)
}

// DecodeStateSync parses a payload, reusing s.Particles capacity
func DecodeStateSync(payload []byte, s *StateSync) error {
	if len(payload) < syncHeaderSize {
		return ErrShortPayload
	}

	le := binary.LittleEndian
	s.State.RPM = math.Float64frombits(le.Uint64(payload[0:8]))
	s.State.Entropy = math.Float64frombits(le.Uint64(payload[8:16]))
	s.State.Cycle = int64(le.Uint64(payload[16:24]))
	s.State.Phase = mantle.Phase(payload[24])
	s.State.Timestamp = int64(le.Uint64(payload[25:33]))
	s.Tick = int64(le.Uint64(payload[33:41]))
	count := int(le.Uint32(payload[41:45]))

	body := payload[syncHeaderSize:]
	if len(body) < count*ParticleStride {
		return ErrShortPayload
	}

	ps, err := ReadParticles(s.Particles[:0], body[:count*ParticleStride])
	if err != nil {
		return err
	}
	s.Particles = ps
	return nil
}

// AppendParticles appends X, Y, Z, Layer as float32 quadruples
func AppendParticles(dst []byte, ps []particle.Particle) []byte {
	le := binary.LittleEndian
	for i := range ps {
		p := &ps[i]
		dst = le.AppendUint32(dst, math.Float32bits(p.X))
		dst = le.AppendUint32(dst, math.Float32bits(p.Y))
		dst = le.AppendUint32(dst, math.Float32bits(p.Z))
		dst = le.AppendUint32(dst, math.Float32bits(float32(p.Layer)))
	}
	return dst
}

// ReadParticles decodes float32 quadruples into dst
// RPM is not carried on the wire and decodes as zero
func ReadParticles(dst []particle.Particle, buf []byte) ([]particle.Particle, error) {
	if len(buf)%ParticleStride != 0 {
		return dst, ErrBadParticles
	}

	le := binary.LittleEndian
	for off := 0; off < len(buf); off += ParticleStride {
		dst = append(dst, particle.Particle{
			X:     math.Float32frombits(le.Uint32(buf[off:])),
			Y:     math.Float32frombits(le.Uint32(buf[off+4:])),
			Z:     math.Float32frombits(le.Uint32(buf[off+8:])),
			Layer: uint8(math.Float32frombits(le.Uint32(buf[off+12:]))),
		})
	}
	return dst, nil
}

// Decimate returns at most max particles sampled at an even stride
// Returns ps unchanged when it already fits
func Decimate(ps []particle.Particle, max int) []particle.Particle {
	if max <= 0 {
		return nil
	}
	if len(ps) <= max {
		return ps
	}

	out := make([]particle.Particle, max)
	step := float64(len(ps)) / float64(max)
	for i := range out {
		out[i] = ps[int(float64(i)*step)]
	}
	return out
}

// EncodeSettles builds an event payload: [Tick:8][Count:4] then Count*[Index:4]
func EncodeSettles(dst []byte, tick int64, indices []uint32) []byte {
	le := binary.LittleEndian
	dst = le.AppendUint64(dst, uint64(tick))
	dst = le.AppendUint32(dst, uint32(len(indices)))
	for _, idx := range indices {
		dst = le.AppendUint32(dst, idx)
	}
	return dst
}

// DecodeSettles parses an event payload
func DecodeSettles(payload []byte) (tick int64, indices []uint32, err error) {
	if len(payload) < 12 {
		return 0, nil, ErrShortPayload
	}

	le := binary.LittleEndian
	tick = int64(le.Uint64(payload[0:8]))
	count := int(le.Uint32(payload[8:12]))
	if len(payload)-12 < count*4 {
		return 0, nil, ErrShortPayload
	}

	indices = make([]uint32, count)
	for i := range indices {
		indices[i] = le.Uint32(payload[12+i*4:])
	}
	return tick, indices, nil
}
