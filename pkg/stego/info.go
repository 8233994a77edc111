package stego

import (
	"errors"

	"github.com/klauspost/reedsolomon"
)

// Info describes what a steg'd binary carries, read without decrypting it.
type Info struct {
	Version      int
	IsCompressed bool
	IsEncrypted  bool
	UsesRSA      bool
	HasECC       bool
	// Intact is false when Reed-Solomon parity does not verify. It is
	// always true for payloads without ECC.
	Intact       bool
	DataSize     int
	CapacityBits int
	Profile      *Profile
}

// GetInfo extracts the hidden envelope and reports its header.
func GetInfo(args *TargetArgs) (*Info, error) {
	img, err := args.open()
	if err != nil {
		return nil, err
	}

	profile, err := ProfileCode(img.Code(), img.Bitness)
	if err != nil {
		return nil, err
	}

	data, err := Extract(img.Code(), img.Bitness)
	if err != nil {
		return nil, err
	}

	env, err := parseEnvelope(data)
	if err != nil {
		return nil, err
	}

	info := &Info{
		Version:      int(env.Version),
		IsCompressed: env.Has(FlagCompressed),
		IsEncrypted:  env.Has(FlagPassphrase) || env.Has(FlagRSA),
		UsesRSA:      env.Has(FlagRSA),
		HasECC:       env.Has(FlagReedSolomon),
		Intact:       true,
		DataSize:     len(data),
		CapacityBits: profile.Bits,
		Profile:      profile,
	}

	if info.HasECC {
		info.Intact, err = verifyReedSolomon(env.Body)
		if err != nil {
			return nil, err
		}
	}
	return info, nil
}

func verifyReedSolomon(body []byte) (bool, error) {
	enc, err := reedsolomon.New(rsDataShards, rsParityShards)
	if err != nil {
		return false, err
	}
	if len(body) == 0 || len(body)%(rsDataShards+rsParityShards) != 0 {
		return false, errors.New("Reed-Solomon body is not a whole number of shards")
	}
	return enc.Verify(splitShards(body, len(body)/(rsDataShards+rsParityShards)))
}
