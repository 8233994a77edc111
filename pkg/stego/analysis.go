package stego

import (
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
)

type AnalyzeArgs struct {
	OriginalPath *string
	StegoPath    *string
	Raw          *bool
	Bitness      *int
}

// AnalysisResult holds metrics about the comparison between two binaries.
type AnalysisResult struct {
	CodeBytes       int
	ChangedBytes    int
	Channels        int
	ChangedChannels int
	// OutsideChanges counts differing bytes that lie in no channel span.
	// Anything but zero means the binary was modified by something else.
	OutsideChanges int
	ByClass        map[Class]int
}

// ChangeRatio is the fraction of channels whose value differs.
func (r *AnalysisResult) ChangeRatio() float64 {
	if r.Channels == 0 {
		return 0
	}
	return float64(r.ChangedChannels) / float64(r.Channels)
}

// Analyze compares an original binary with a steg'd copy of it, channel by channel.
func Analyze(args *AnalyzeArgs) (*AnalysisResult, error) {
	fmt.Fprintln(os.Stderr, " 📂 Loading binaries...")
	orig, err := (&TargetArgs{InputPath: args.OriginalPath, Raw: args.Raw, Bitness: args.Bitness}).open()
	if err != nil {
		return nil, fmt.Errorf("failed to load original: %w", err)
	}
	steg, err := (&TargetArgs{InputPath: args.StegoPath, Raw: args.Raw, Bitness: args.Bitness}).open()
	if err != nil {
		return nil, fmt.Errorf("failed to load steg'd binary: %w", err)
	}

	if len(orig.Data) != len(steg.Data) || orig.Offset != steg.Offset || orig.Size != steg.Size {
		return nil, fmt.Errorf("binaries do not match in layout: %d vs %d bytes", len(orig.Data), len(steg.Data))
	}

	origChannels, err := Scan(orig.Code(), orig.Bitness)
	if err != nil {
		return nil, fmt.Errorf("failed to scan original: %w", err)
	}
	stegChannels, err := Scan(steg.Code(), steg.Bitness)
	if err != nil {
		return nil, fmt.Errorf("failed to scan steg'd binary: %w", err)
	}
	if len(origChannels) != len(stegChannels) {
		return nil, fmt.Errorf("channel count differs: %d vs %d", len(origChannels), len(stegChannels))
	}

	result := &AnalysisResult{
		CodeBytes: orig.Size,
		Channels:  len(origChannels),
		ByClass:   make(map[Class]int),
	}

	bar := progressbar.NewOptions(
		len(origChannels),
		progressbar.OptionSetDescription(" 📊 Analyzing"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(15),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)

	inSpan := make([]bool, orig.Size)
	for i, oc := range origChannels {
		bar.Add(1)
		sc := stegChannels[i]
		if oc.Start != sc.Start || oc.End != sc.End || oc.Class != sc.Class {
			return nil, fmt.Errorf("channel %d differs in position or class at %#x", i, oc.Start)
		}
		for j := oc.Start; j < oc.End; j++ {
			inSpan[j] = true
		}
		if oc.Value != sc.Value {
			result.ChangedChannels++
			result.ByClass[oc.Class]++
		}
	}

	origCode, stegCode := orig.Code(), steg.Code()
	for i := range origCode {
		if origCode[i] == stegCode[i] {
			continue
		}
		result.ChangedBytes++
		if !inSpan[i] {
			result.OutsideChanges++
		}
	}
	for i := range orig.Data {
		if (i < orig.Offset || i >= orig.Offset+orig.Size) && orig.Data[i] != steg.Data[i] {
			result.OutsideChanges++
		}
	}

	fmt.Fprintln(os.Stderr, " ✨ Done!")

	return result, nil
}
