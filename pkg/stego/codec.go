package stego

import (
	"fmt"
	"runtime"

	"github.com/andresmejia3/steg86/pkg/x86"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
)

// HeaderBits is the width of the payload length header that precedes every
// embedded payload. The length is in bytes, most significant bit first.
const HeaderBits = 32

// MaxPayloadSize is the largest payload the length header can describe.
const MaxPayloadSize = 1<<HeaderBits - 1

// Codec embeds payloads into and extracts them from x86 code. The zero value
// is ready to use.
type Codec struct {
	// Workers bounds the number of goroutines that compute channel
	// rewrites. Zero means one per CPU.
	Workers int
	// Bar, when set, is advanced once per channel rewritten or read.
	Bar *progressbar.ProgressBar
}

// Scan decodes code and enumerates its channels.
func Scan(code []byte, bitness x86.Bitness) ([]Channel, error) {
	insts, err := x86.Decode(code, bitness)
	if err != nil {
		return nil, err
	}
	channels := Enumerate(code, insts, bitness)

	log.Debug().
		Int("bytes", len(code)).
		Int("instructions", len(insts)).
		Int("channels", len(channels)).
		Msg("Scanned code region")

	return channels, nil
}

// Capacity is the number of bits the channels can carry, header included.
func Capacity(channels []Channel) int {
	bits := 0
	for _, ch := range channels {
		bits += ch.Width
	}
	return bits
}

// Embed hides payload in a copy of code. On success the returned buffer has
// the same length as code and differs from it only inside channel spans.
// On failure code is untouched and nothing is returned.
func (c *Codec) Embed(code []byte, bitness x86.Bitness, payload []byte) ([]byte, error) {
	channels, err := Scan(code, bitness)
	if err != nil {
		return nil, err
	}

	available := Capacity(channels)
	if need := requiredBits(len(payload)); uint64(len(payload)) > MaxPayloadSize || need > int64(available) {
		return nil, &CapacityExceededError{Requested: need, Available: int64(available)}
	}

	stream := newBitstream(payload)
	requested := stream.Len()

	log.Debug().Int("available", available).Int("required", requested).Msg("Embedding payload")

	values := make([]int, len(channels))
	stepper := makeChannelStepper(channels, requested)
	for i := 0; i < requested; i++ {
		if err := stepper.write(values, stream.Bit(i)); err != nil {
			return nil, err
		}
		if err := stepper.step(); err != nil {
			return nil, err
		}
	}

	used := stepper.touched()
	rewrites, err := c.rewrite(code, channels[:used], values[:used])
	if err != nil {
		return nil, err
	}

	log.Debug().Int("channels", used).Int("rewrites", len(rewrites)).Msg("Encoded payload into channels")

	return Apply(code, rewrites), nil
}

// rewrite computes the replacement bytes of every channel whose value has to
// change. Channel spans are disjoint, so the work is split across workers
// that each fill their own slots.
func (c *Codec) rewrite(code []byte, channels []Channel, values []int) ([]Rewrite, error) {
	slots := make([]*Rewrite, len(channels))

	workers := c.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	chunk := (len(channels) + workers - 1) / workers
	if chunk < 1 {
		chunk = 1
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for start := 0; start < len(channels); start += chunk {
		start := start
		end := min(start+chunk, len(channels))
		g.Go(func() error {
			for i := start; i < end; i++ {
				ch := channels[i]
				if ch.Value == values[i] {
					continue
				}
				repl, err := ch.Encode(code, values[i])
				if err != nil {
					return fmt.Errorf("channel at %#x: %w", ch.Start, err)
				}
				slots[i] = &Rewrite{Start: ch.Start, End: ch.End, Bytes: repl}
			}
			if c.Bar != nil {
				c.Bar.Add(end - start)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var rewrites []Rewrite
	for _, rw := range slots {
		if rw != nil {
			rewrites = append(rewrites, *rw)
		}
	}
	return rewrites, nil
}

// Extract recovers a payload hidden by Embed. It decodes code from scratch
// and shares no state with any earlier Embed call.
func (c *Codec) Extract(code []byte, bitness x86.Bitness) ([]byte, error) {
	channels, err := Scan(code, bitness)
	if err != nil {
		return nil, err
	}

	available := Capacity(channels)
	if available < HeaderBits {
		return nil, fmt.Errorf("%w: %d bits cannot hold the %d-bit header", ErrTruncatedPayload, available, HeaderBits)
	}

	stepper := makeChannelStepper(channels, available)
	var declared uint32
	for i := 0; i < HeaderBits; i++ {
		bit, err := stepper.read()
		if err != nil {
			return nil, err
		}
		if bit != 0 {
			declared |= 1 << (HeaderBits - 1 - i)
		}
		if err := stepper.step(); err != nil {
			return nil, err
		}
	}

	log.Debug().Uint32("length", declared).Int("available", available).Msg("Decoded payload length")

	if uint64(declared)*8 > uint64(available-HeaderBits) {
		return nil, fmt.Errorf("%w: header declares %d bytes, only %d bits follow it", ErrTruncatedPayload, declared, available-HeaderBits)
	}
	length := int(declared)

	payload := make([]byte, length)
	for i := 0; i < length*8; i++ {
		bit, err := stepper.read()
		if err != nil {
			return nil, err
		}
		if bit != 0 {
			payload[i/8] = setBitUint8(payload[i/8], 7-i%8)
		}
		if err := stepper.step(); err != nil {
			return nil, err
		}
		if c.Bar != nil && i%8 == 7 {
			c.Bar.Add(1)
		}
	}

	return payload, nil
}

// Profile summarizes the channels of a code region.
type Profile struct {
	Instructions int
	Channels     int
	Bits         int
	ByClass      map[Class]int
}

// PayloadBytes is the largest payload that fits once the header is reserved.
func (p *Profile) PayloadBytes() int {
	if p.Bits <= HeaderBits {
		return 0
	}
	return (p.Bits - HeaderBits) / 8
}

func (c *Codec) Profile(code []byte, bitness x86.Bitness) (*Profile, error) {
	insts, err := x86.Decode(code, bitness)
	if err != nil {
		return nil, err
	}
	channels := Enumerate(code, insts, bitness)

	p := &Profile{
		Instructions: len(insts),
		Channels:     len(channels),
		Bits:         Capacity(channels),
		ByClass:      make(map[Class]int, numClasses),
	}
	for _, ch := range channels {
		p.ByClass[ch.Class]++
	}
	return p, nil
}

var defaultCodec Codec

func Embed(code []byte, bitness x86.Bitness, payload []byte) ([]byte, error) {
	return defaultCodec.Embed(code, bitness, payload)
}

func Extract(code []byte, bitness x86.Bitness) ([]byte, error) {
	return defaultCodec.Extract(code, bitness)
}

func ProfileCode(code []byte, bitness x86.Bitness) (*Profile, error) {
	return defaultCodec.Profile(code, bitness)
}
