// Package voice mixes per-participant PCM arriving over a LiveKit room
// (standing in for a Discord voice channel, per DESIGN.md) into a single
// output ring buffer, publishing per-user speaking activity.
package voice

import (
	"context"
	"encoding/binary"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/webrtc/v4"
	"github.com/streamer45/silero-vad-go/speech"
	"gopkg.in/hraban/opus.v2"

	"github.com/kestrelrun/marathoncast/internal/store"
)

const (
	sampleRate   = 48000
	channels     = 2
	tickInterval = 20 * time.Millisecond
	fftBins      = 16
	publishEvery = 10 // ticks, ~200ms
	preRollTicks = 50 // ~1s of pre-roll

	vadSampleRate = 16000 // Silero VAD requires 16kHz mono
	vadThreshold  = 0.5
)

// Notifier is the Web Push surface the mixer publishes speaker activity
// to.
type Notifier interface {
	PublishVoiceState(VoiceState)
}

// UserVoiceState is one participant's activity this publish interval.
type UserVoiceState struct {
	Active bool
	Peak   float64
	DFT    [fftBins]float64
}

// VoiceState is one host's full voice-activity snapshot.
type VoiceState struct {
	Host       string
	VoiceUsers map[string]UserVoiceState
}

type trackState struct {
	decoder *opus.Decoder
	vad     *speech.Detector // nil if the VAD model failed to load; energy-only fallback

	mu      sync.Mutex
	pending []float32 // decoded samples awaiting the next tick, interleaved
}

// Mixer is one instance per host with voice enabled.
type Mixer struct {
	host       string
	roomName   string
	url        string
	apiKey     string
	apiSecret  string
	dftEnabled bool

	vadModelPath string

	store    *store.Store
	notifier Notifier
	log      *slog.Logger

	room *lksdk.Room

	mu     sync.Mutex
	tracks map[string]*trackState

	ring      [][]float32
	ringMu    sync.Mutex
	ringWrite int

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds a Mixer. vadModelPath, if non-empty, points at a Silero VAD
// ONNX model; each subscribed track gets its own detector used to gate
// "active" beyond the bare presence of decoded samples. An empty path
// falls back to energy-only activity (every track with pending samples
// counts as active).
func New(host, url, apiKey, apiSecret string, dftEnabled bool, vadModelPath string, st *store.Store, notifier Notifier, log *slog.Logger) *Mixer {
	if log == nil {
		log = slog.Default()
	}
	return &Mixer{
		host:         host,
		url:          url,
		apiKey:       apiKey,
		apiSecret:    apiSecret,
		dftEnabled:   dftEnabled,
		vadModelPath: vadModelPath,
		store:        st,
		notifier:     notifier,
		log:          log,
		tracks:       make(map[string]*trackState),
		ring:         make([][]float32, preRollTicks),
	}
}

// Start joins the LiveKit room standing in for this host's voice channel
// and begins the 20ms tick loop. Call in its own goroutine.
func (m *Mixer) Start(ctx context.Context, roomName string) error {
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.roomName = roomName

	m.room = lksdk.NewRoom(&lksdk.RoomCallback{
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackSubscribed: m.onTrackSubscribed,
		},
	})

	info := lksdk.ConnectInfo{
		APIKey:              m.apiKey,
		APISecret:           m.apiSecret,
		RoomName:            roomName,
		ParticipantIdentity: "marathoncast-mixer-" + m.host,
	}
	if err := m.room.Join(m.url, info, lksdk.WithAutoSubscribe(true)); err != nil {
		return err
	}
	m.log.Info("voice: joined room", "host", m.host, "room", roomName)

	m.tickLoop()
	return nil
}

func (m *Mixer) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.room != nil {
		m.room.Disconnect()
	}
}

func (m *Mixer) onTrackSubscribed(track *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, participant *lksdk.RemoteParticipant) {
	if track.Kind() != webrtc.RTPCodecTypeAudio {
		return
	}
	decoder, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		m.log.Error("voice: opus decoder create failed", "err", err)
		return
	}

	ts := &trackState{decoder: decoder}
	if m.vadModelPath != "" {
		detector, err := speech.NewDetector(speech.DetectorConfig{
			ModelPath:  m.vadModelPath,
			SampleRate: vadSampleRate,
			Threshold:  vadThreshold,
		})
		if err != nil {
			m.log.Warn("voice: vad detector create failed, falling back to energy-only", "err", err)
		} else {
			ts.vad = detector
		}
	}

	m.mu.Lock()
	m.tracks[participant.Identity()] = ts
	m.mu.Unlock()

	go m.readTrack(track, participant.Identity(), ts)
}

func (m *Mixer) readTrack(track *webrtc.TrackRemote, identity string, ts *trackState) {
	rtpBuf := make([]byte, 4096)
	pcmBuf := make([]int16, 5760*channels)

	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		n, _, err := track.Read(rtpBuf)
		if err != nil {
			m.mu.Lock()
			delete(m.tracks, identity)
			m.mu.Unlock()
			if ts.vad != nil {
				ts.vad.Destroy()
			}
			return
		}
		if n <= 12 {
			continue
		}

		samples, err := ts.decoder.Decode(rtpBuf[12:n], pcmBuf)
		if err != nil || samples == 0 {
			continue
		}

		floats := make([]float32, samples*channels)
		for i := 0; i < samples*channels; i++ {
			floats[i] = float32(pcmBuf[i]) / float32(math.MaxInt16)
		}

		ts.mu.Lock()
		ts.pending = append(ts.pending, floats...)
		ts.mu.Unlock()
	}
}

// tickLoop runs the every-20ms mixing cycle described in spec §4.8.
func (m *Mixer) tickLoop() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	samplesPerTick := sampleRate / 50 * channels
	tick := 0

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
		}
		tick++

		accumulator := make([]float32, samplesPerTick)
		states := make(map[string]UserVoiceState)

		m.mu.Lock()
		identities := make([]string, 0, len(m.tracks))
		for id := range m.tracks {
			identities = append(identities, id)
		}
		m.mu.Unlock()

		for _, identity := range identities {
			m.mu.Lock()
			ts := m.tracks[identity]
			m.mu.Unlock()
			if ts == nil {
				continue
			}

			ts.mu.Lock()
			var chunk []float32
			if len(ts.pending) > 0 {
				take := len(ts.pending)
				if take > samplesPerTick {
					take = samplesPerTick
				}
				chunk = ts.pending[:take]
				ts.pending = ts.pending[take:]
			}
			ts.mu.Unlock()

			if len(chunk) == 0 || !m.vadActive(ts, chunk) {
				states[identity] = UserVoiceState{Active: false}
				continue
			}

			gain := float32(m.gainFor(identity)) / 100.0
			var peak float64
			for i, s := range chunk {
				scaled := s * gain
				if i < len(accumulator) {
					accumulator[i] += scaled
				}
				if a := math.Abs(float64(scaled)); a > peak {
					peak = a
				}
			}

			state := UserVoiceState{Active: true, Peak: peak}
			if m.dftEnabled && tick%publishEvery == 0 {
				state.DFT = compressedMagnitudes(chunk)
			}
			states[identity] = state
		}

		m.pushRing(accumulator)

		if tick%publishEvery == 0 {
			m.notifier.PublishVoiceState(VoiceState{Host: m.host, VoiceUsers: states})
		}
	}
}

// vadActive runs chunk (interleaved stereo float32 at sampleRate)
// through the track's Silero detector, downmixed to mono and decimated
// to 16kHz first. A track with no detector (model failed to load, or
// vadModelPath unset) is always considered active, matching
// spec.md's energy-only baseline.
func (m *Mixer) vadActive(ts *trackState, chunk []float32) bool {
	if ts.vad == nil {
		return true
	}

	mono := make([]float32, len(chunk)/channels)
	for i := range mono {
		mono[i] = (chunk[i*2] + chunk[i*2+1]) / 2
	}

	ratio := sampleRate / vadSampleRate
	resampled := make([]float32, len(mono)/ratio)
	for i := range resampled {
		var sum float32
		for j := 0; j < ratio; j++ {
			sum += mono[i*ratio+j]
		}
		resampled[i] = sum / float32(ratio)
	}
	if len(resampled) == 0 {
		return true
	}

	segments, err := ts.vad.Detect(resampled)
	if err != nil {
		m.log.Warn("voice: vad detect failed, treating as active", "err", err)
		return true
	}
	return len(segments) > 0
}

func (m *Mixer) gainFor(discordID string) int {
	fields, err := m.store.ListCustomFields(m.ctx)
	if err != nil {
		return 100
	}
	for _, f := range fields {
		if f.Key == "voice_gain:"+discordID && f.Value != nil {
			if pct, err := strconv.Atoi(*f.Value); err == nil {
				return pct
			}
		}
	}
	return 100
}

// pushRing is non-blocking, drop-oldest: the accumulator always
// overwrites the oldest slot.
func (m *Mixer) pushRing(frame []float32) {
	m.ringMu.Lock()
	defer m.ringMu.Unlock()
	m.ring[m.ringWrite%len(m.ring)] = frame
	m.ringWrite++
}

// compressedMagnitudes computes a naive DFT over chunk and compresses the
// result into fftBins equal-width bins, each the mean of squared
// magnitudes in that band — spec §4.8's DFT transmission mode.
func compressedMagnitudes(chunk []float32) [fftBins]float64 {
	n := len(chunk)
	var mags [fftBins]float64
	if n == 0 {
		return mags
	}

	half := n / 2
	if half == 0 {
		return mags
	}
	binWidth := half / fftBins
	if binWidth == 0 {
		binWidth = 1
	}

	for bin := 0; bin < fftBins; bin++ {
		start := bin * binWidth
		end := start + binWidth
		if end > half {
			end = half
		}
		if start >= end {
			continue
		}

		var sumSq float64
		count := 0
		for k := start; k < end; k++ {
			var re, im float64
			for t := 0; t < n; t++ {
				angle := -2 * math.Pi * float64(k) * float64(t) / float64(n)
				re += float64(chunk[t]) * math.Cos(angle)
				im += float64(chunk[t]) * math.Sin(angle)
			}
			mag := re*re + im*im
			sumSq += mag
			count++
		}
		if count > 0 {
			mags[bin] = sumSq / float64(count)
		}
	}
	return mags
}
