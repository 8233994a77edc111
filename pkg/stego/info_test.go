package stego

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetInfo(t *testing.T) {
	tmpDir := t.TempDir()
	inputPath := writeRawCode(t, tmpDir, "input.bin", 3000)

	tests := []struct {
		name       string
		compress   bool
		ecc        bool
		passphrase string
	}{
		{"plain", false, false, ""},
		{"compressed", true, false, ""},
		{"encrypted with ecc", false, true, "hunter2"},
		{"everything", true, true, "hunter2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outputPath := filepath.Join(tmpDir, tt.name+".bin")
			message := "some information about the payload"
			compress, ecc, passphrase := tt.compress, tt.ecc, tt.passphrase

			result, err := EmbedFile(&EmbedArgs{
				TargetArgs: rawTarget(inputPath),
				OutputPath: &outputPath,
				Message:    &message,
				Passphrase: &passphrase,
				Compress:   &compress,
				ECC:        &ecc,
			})
			if err != nil {
				t.Fatalf("Embed failed: %v", err)
			}

			target := rawTarget(outputPath)
			info, err := GetInfo(&target)
			if err != nil {
				t.Fatalf("GetInfo failed: %v", err)
			}

			if info.Version != envelopeVersion {
				t.Errorf("Version = %d, want %d", info.Version, envelopeVersion)
			}
			if info.IsCompressed != tt.compress || info.HasECC != tt.ecc || info.IsEncrypted != (tt.passphrase != "") {
				t.Errorf("flags mismatch: %+v", info)
			}
			if info.UsesRSA {
				t.Error("UsesRSA should be false")
			}
			if !info.Intact {
				t.Error("freshly embedded payload reported as damaged")
			}
			if info.DataSize != result.EnvelopeBytes {
				t.Errorf("DataSize = %d, want %d", info.DataSize, result.EnvelopeBytes)
			}
			if info.CapacityBits != info.Profile.Bits || int64(info.CapacityBits) < result.RequiredBits {
				t.Errorf("CapacityBits = %d, required %d", info.CapacityBits, result.RequiredBits)
			}
		})
	}
}

func TestGetInfoNoPayload(t *testing.T) {
	tmpDir := t.TempDir()
	// A fresh binary carries whatever its channels happen to say. With
	// only a handful of channels that cannot even hold a header.
	inputPath := filepath.Join(tmpDir, "tiny.bin")
	os.WriteFile(inputPath, buildCode(8, nil), 0644)

	target := rawTarget(inputPath)
	if _, err := GetInfo(&target); err == nil {
		t.Error("Expected error for a binary without a payload")
	}
}
