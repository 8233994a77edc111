package stego

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestAnalyzeMetrics(t *testing.T) {
	tmpDir := t.TempDir()
	origPath := writeRawCode(t, tmpDir, "orig.bin", 500)
	stegoPath := filepath.Join(tmpDir, "stego.bin")
	raw := true
	bitness := 64

	// Case 1: Identical binaries
	result, err := Analyze(&AnalyzeArgs{
		OriginalPath: &origPath,
		StegoPath:    &origPath,
		Raw:          &raw,
		Bitness:      &bitness,
	})
	if err != nil {
		t.Fatalf("Analyze failed for identical binaries: %v", err)
	}
	if result.ChangedBytes != 0 || result.ChangedChannels != 0 || result.ChangeRatio() != 0 {
		t.Errorf("Expected no changes for identical binaries, got %+v", result)
	}
	if result.Channels != 500 {
		t.Errorf("Channels = %d, want 500", result.Channels)
	}

	// Case 2: A real embedding
	message := "analyze me"
	if _, err := EmbedFile(&EmbedArgs{
		TargetArgs: rawTarget(origPath),
		OutputPath: &stegoPath,
		Message:    &message,
	}); err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	result, err = Analyze(&AnalyzeArgs{
		OriginalPath: &origPath,
		StegoPath:    &stegoPath,
		Raw:          &raw,
		Bitness:      &bitness,
	})
	if err != nil {
		t.Fatalf("Analyze failed for modified binary: %v", err)
	}
	if result.ChangedChannels == 0 || result.ChangedBytes == 0 {
		t.Errorf("Expected changes after embedding, got %+v", result)
	}
	if result.OutsideChanges != 0 {
		t.Errorf("Expected every change inside a channel, got %d outside", result.OutsideChanges)
	}
	used := HeaderBits + (2+len(message))*8
	if result.ChangedChannels > used {
		t.Errorf("%d channels changed, but only %d carry the payload", result.ChangedChannels, used)
	}

	sum := 0
	for _, n := range result.ByClass {
		sum += n
	}
	if sum != result.ChangedChannels {
		t.Errorf("per-class changes sum to %d, want %d", sum, result.ChangedChannels)
	}
}

func TestAnalyzeSizeMismatch(t *testing.T) {
	tmpDir := t.TempDir()
	origPath := writeRawCode(t, tmpDir, "orig.bin", 100)
	otherPath := writeRawCode(t, tmpDir, "other.bin", 101)
	raw := true
	bitness := 64

	if _, err := Analyze(&AnalyzeArgs{
		OriginalPath: &origPath,
		StegoPath:    &otherPath,
		Raw:          &raw,
		Bitness:      &bitness,
	}); err == nil {
		t.Error("Expected error for binaries of different sizes")
	}

	// Same size, but the second binary no longer decodes.
	data, _ := os.ReadFile(origPath)
	broken := bytes.Repeat([]byte{0x90}, len(data))
	broken[len(broken)-1] = 0x0F
	brokenPath := filepath.Join(tmpDir, "broken.bin")
	os.WriteFile(brokenPath, broken, 0644)
	if _, err := Analyze(&AnalyzeArgs{
		OriginalPath: &origPath,
		StegoPath:    &brokenPath,
		Raw:          &raw,
		Bitness:      &bitness,
	}); err == nil {
		t.Error("Expected error when the second binary no longer decodes")
	}
}
