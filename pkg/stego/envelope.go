package stego

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/reedsolomon"
)

// The CLI never hides a bare message. It hides an envelope:
//
//	version (1) | flags (1) | salt (16, passphrase only) | body
//
// The body is the message after the steps named by flags, applied in the
// order compress, encrypt, Reed-Solomon.
const envelopeVersion = 1

const (
	FlagCompressed byte = 1 << iota
	FlagPassphrase
	FlagRSA
	FlagReedSolomon
)

const envelopeHeaderSize = 2

var errNotEnvelope = errors.New("payload is not a steg86 envelope")

// Envelope is the parsed header of an envelope.
type Envelope struct {
	Version byte
	Flags   byte
	Salt    []byte
	Body    []byte
}

func (e *Envelope) Has(flag byte) bool {
	return e.Flags&flag != 0
}

type SealOptions struct {
	Passphrase    string
	PublicKeyPath string
	Compress      bool
	ECC           bool
}

type OpenOptions struct {
	Passphrase     string
	PrivateKeyPath string
}

func sealEnvelope(message []byte, opts SealOptions) ([]byte, error) {
	if opts.Passphrase != "" && opts.PublicKeyPath != "" {
		return nil, errors.New("passphrase and key-path cannot both be provided")
	}

	var flags byte
	var salt []byte
	body := message

	if opts.Compress {
		compressed, err := compressZstd(body)
		if err != nil {
			return nil, fmt.Errorf("failed to compress payload: %w", err)
		}
		body = compressed
		flags |= FlagCompressed
	}

	if opts.Passphrase != "" {
		var err error
		if salt, err = newSalt(); err != nil {
			return nil, err
		}
		if body, err = sealAESGCM(body, deriveKey(opts.Passphrase, salt)); err != nil {
			return nil, err
		}
		flags |= FlagPassphrase
	}

	if opts.PublicKeyPath != "" {
		var err error
		if body, err = sealRSA(body, opts.PublicKeyPath); err != nil {
			return nil, fmt.Errorf("RSA encryption failed: %w", err)
		}
		flags |= FlagRSA
	}

	if opts.ECC {
		var err error
		if body, err = addReedSolomon(body); err != nil {
			return nil, fmt.Errorf("failed to apply Reed-Solomon encoding: %w", err)
		}
		flags |= FlagReedSolomon
	}

	out := make([]byte, 0, envelopeHeaderSize+len(salt)+len(body))
	out = append(out, envelopeVersion, flags)
	out = append(out, salt...)
	out = append(out, body...)
	return out, nil
}

func parseEnvelope(data []byte) (*Envelope, error) {
	if len(data) < envelopeHeaderSize {
		return nil, errNotEnvelope
	}
	env := &Envelope{Version: data[0], Flags: data[1]}
	if env.Version != envelopeVersion {
		return nil, fmt.Errorf("%w: unknown version %d", errNotEnvelope, env.Version)
	}
	if env.Flags&^(FlagCompressed|FlagPassphrase|FlagRSA|FlagReedSolomon) != 0 {
		return nil, fmt.Errorf("%w: unknown flags %#02x", errNotEnvelope, env.Flags)
	}
	if env.Has(FlagPassphrase) && env.Has(FlagRSA) {
		return nil, fmt.Errorf("%w: conflicting encryption flags", errNotEnvelope)
	}

	rest := data[envelopeHeaderSize:]
	if env.Has(FlagPassphrase) {
		if len(rest) < saltSize {
			return nil, fmt.Errorf("%w: truncated salt", errNotEnvelope)
		}
		env.Salt, rest = rest[:saltSize], rest[saltSize:]
	}
	env.Body = rest
	return env, nil
}

func openEnvelope(data []byte, opts OpenOptions) ([]byte, *Envelope, error) {
	env, err := parseEnvelope(data)
	if err != nil {
		return nil, nil, err
	}

	body := env.Body
	if env.Has(FlagReedSolomon) {
		if body, err = removeReedSolomon(body); err != nil {
			return nil, env, fmt.Errorf("Reed-Solomon reconstruction failed: %w", err)
		}
	}

	switch {
	case env.Has(FlagPassphrase):
		if opts.Passphrase == "" {
			return nil, env, errors.New("payload is encrypted: a passphrase is required")
		}
		if body, err = openAESGCM(body, deriveKey(opts.Passphrase, env.Salt)); err != nil {
			return nil, env, fmt.Errorf("failed to decrypt message: %w", err)
		}
	case env.Has(FlagRSA):
		if opts.PrivateKeyPath == "" {
			return nil, env, errors.New("payload is encrypted: a private key is required")
		}
		if body, err = openRSA(body, opts.PrivateKeyPath); err != nil {
			return nil, env, fmt.Errorf("RSA decryption failed: %w", err)
		}
	}

	if env.Has(FlagCompressed) {
		if body, err = decompressZstd(body); err != nil {
			return nil, env, fmt.Errorf("failed to decompress payload: %w", err)
		}
	}

	return body, env, nil
}

// Reed-Solomon Configuration
const (
	rsDataShards   = 4
	rsParityShards = 2
)

func addReedSolomon(data []byte) ([]byte, error) {
	enc, err := reedsolomon.New(rsDataShards, rsParityShards)
	if err != nil {
		return nil, err
	}

	// Prepend length (4 bytes) so the shard padding can be dropped later.
	payload := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(payload, uint32(len(data)))
	copy(payload[4:], data)

	shards, err := enc.Split(payload)
	if err != nil {
		return nil, err
	}
	if err := enc.Encode(shards); err != nil {
		return nil, err
	}

	var output []byte
	for _, shard := range shards {
		output = append(output, shard...)
	}
	return output, nil
}

func removeReedSolomon(data []byte) ([]byte, error) {
	enc, err := reedsolomon.New(rsDataShards, rsParityShards)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || len(data)%(rsDataShards+rsParityShards) != 0 {
		return nil, fmt.Errorf("%d bytes is not a whole number of shards", len(data))
	}

	shardSize := len(data) / (rsDataShards + rsParityShards)
	shards := splitShards(data, shardSize)

	if ok, _ := enc.Verify(shards); !ok {
		if shards, err = repairShards(enc, data, shardSize); err != nil {
			return nil, err
		}
	}

	var joined []byte
	for i := 0; i < rsDataShards; i++ {
		joined = append(joined, shards[i]...)
	}

	length := binary.BigEndian.Uint32(joined[:4])
	if uint64(len(joined)) < 4+uint64(length) {
		return nil, errors.New("recovered data length mismatch")
	}
	return joined[4 : 4+length], nil
}

func splitShards(data []byte, shardSize int) [][]byte {
	shards := make([][]byte, rsDataShards+rsParityShards)
	for i := range shards {
		shard := make([]byte, shardSize)
		copy(shard, data[i*shardSize:])
		shards[i] = shard
	}
	return shards
}

// repairShards locates a single corrupted shard by dropping each shard in
// turn and keeping the first reconstruction that verifies.
func repairShards(enc reedsolomon.Encoder, data []byte, shardSize int) ([][]byte, error) {
	for bad := 0; bad < rsDataShards+rsParityShards; bad++ {
		shards := splitShards(data, shardSize)
		shards[bad] = nil
		if err := enc.Reconstruct(shards); err != nil {
			continue
		}
		if ok, _ := enc.Verify(shards); ok {
			return shards, nil
		}
	}
	return nil, errors.New("too many corrupted shards")
}
