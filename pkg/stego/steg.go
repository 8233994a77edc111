package stego

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/andresmejia3/steg86/pkg/container"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
)

// TargetArgs selects the binary to operate on and how to find its code.
type TargetArgs struct {
	InputPath *string
	Raw       *bool
	Bitness   *int
}

func (t *TargetArgs) open() (*container.Image, error) {
	img, err := container.Open(*t.InputPath, *t.Raw, *t.Bitness)
	if err != nil {
		return nil, err
	}
	log.Debug().
		Str("format", string(img.Format)).
		Str("section", img.Section).
		Int("offset", img.Offset).
		Int("size", img.Size).
		Stringer("bitness", img.Bitness).
		Msg("Located code region")
	return img, nil
}

type EmbedArgs struct {
	TargetArgs
	OutputPath    *string
	Message       *string
	File          *string
	Stdin         io.Reader
	Passphrase    *string
	PublicKeyPath *string
	Compress      *bool
	ECC           *bool
	DryRun        *bool
	Verbose       *bool
	NumWorkers    *int
}

type ExtractArgs struct {
	TargetArgs
	Passphrase     *string
	PrivateKeyPath *string
	Verbose        *bool
	OutputPath     *string
	Writer         io.Writer
}

// EmbedResult describes a completed (or, with DryRun, a checked) embedding.
type EmbedResult struct {
	MessageBytes  int
	EnvelopeBytes int
	RequiredBits  int64
	CapacityBits  int64
	OutputPath    string
}

func readMessage(args *EmbedArgs) ([]byte, error) {
	stdin := args.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}

	switch {
	case args.File != nil && *args.File == "-":
		return io.ReadAll(stdin)
	case args.File != nil && *args.File != "":
		data, err := os.ReadFile(*args.File)
		if err != nil {
			return nil, fmt.Errorf("failed to read input file: %w", err)
		}
		return data, nil
	case args.Message != nil && *args.Message != "":
		return []byte(*args.Message), nil
	case args.Stdin != nil:
		return io.ReadAll(args.Stdin)
	}
	return nil, fmt.Errorf("no payload: provide a message, a file, or stdin")
}

func EmbedFile(args *EmbedArgs) (*EmbedResult, error) {
	img, err := args.open()
	if err != nil {
		return nil, err
	}

	message, err := readMessage(args)
	if err != nil {
		return nil, err
	}

	envelope, err := sealEnvelope(message, SealOptions{
		Passphrase:    deref(args.Passphrase),
		PublicKeyPath: deref(args.PublicKeyPath),
		Compress:      args.Compress != nil && *args.Compress,
		ECC:           args.ECC != nil && *args.ECC,
	})
	if err != nil {
		return nil, err
	}

	result := &EmbedResult{
		MessageBytes:  len(message),
		EnvelopeBytes: len(envelope),
		RequiredBits:  requiredBits(len(envelope)),
	}

	if args.DryRun != nil && *args.DryRun {
		profile, err := ProfileCode(img.Code(), img.Bitness)
		if err != nil {
			return nil, err
		}
		result.CapacityBits = int64(profile.Bits)
		if result.RequiredBits > result.CapacityBits {
			return result, &CapacityExceededError{Requested: result.RequiredBits, Available: result.CapacityBits}
		}
		return result, nil
	}

	if args.Verbose != nil && *args.Verbose {
		log.Debug().Int("message", len(message)).Int("envelope", len(envelope)).Msg("Sealed payload")
	}

	codec := &Codec{
		Workers: derefInt(args.NumWorkers),
		Bar: progressbar.NewOptions64(
			result.RequiredBits,
			progressbar.OptionSetDescription("embedding"),
			progressbar.OptionSetWriter(os.Stderr),
		),
	}

	code, err := codec.Embed(img.Code(), img.Bitness, envelope)
	if err != nil {
		return nil, err
	}

	patched, err := img.Patch(code)
	if err != nil {
		return nil, err
	}

	output := deref(args.OutputPath)
	if output == "" {
		output = fmt.Sprintf("%s.steg", *args.InputPath)
	}
	mode := os.FileMode(0644)
	if info, err := os.Stat(*args.InputPath); err == nil {
		mode = info.Mode().Perm()
	}
	if err := writeOutput(output, patched, mode); err != nil {
		return nil, err
	}
	result.OutputPath = output

	log.Info().Str("output", output).Int("bytes", len(message)).Msg("Embedded payload into the binary")
	return result, nil
}

// ExtractFile recovers and opens the envelope hidden in a binary. The
// message is also written to args.OutputPath or args.Writer when one is set.
// Nothing is written unless extraction succeeds.
func ExtractFile(args *ExtractArgs) ([]byte, error) {
	img, err := args.open()
	if err != nil {
		return nil, err
	}

	codec := &Codec{
		Bar: progressbar.NewOptions(
			-1,
			progressbar.OptionSetDescription("extracting"),
			progressbar.OptionSetWriter(os.Stderr),
		),
	}
	data, err := codec.Extract(img.Code(), img.Bitness)
	if err != nil {
		return nil, err
	}

	message, env, err := openEnvelope(data, OpenOptions{
		Passphrase:     deref(args.Passphrase),
		PrivateKeyPath: deref(args.PrivateKeyPath),
	})
	if err != nil {
		return nil, err
	}

	if args.Verbose != nil && *args.Verbose {
		log.Debug().Uint8("flags", env.Flags).Int("bytes", len(message)).Msg("Opened payload")
	}

	switch {
	case deref(args.OutputPath) != "":
		if err := writeOutput(*args.OutputPath, message, 0644); err != nil {
			return nil, err
		}
		log.Info().Str("output", *args.OutputPath).Int("bytes", len(message)).Msg("Extracted payload")
	case args.Writer != nil:
		if _, err := args.Writer.Write(message); err != nil {
			return nil, err
		}
	}
	return message, nil
}

// writeOutput writes data to path, creating missing parent directories.
func writeOutput(path string, data []byte, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return os.WriteFile(path, data, mode)
}

func ProfileFile(args *TargetArgs) (*Profile, error) {
	img, err := args.open()
	if err != nil {
		return nil, err
	}
	return ProfileCode(img.Code(), img.Bitness)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}
