package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/drgolem/playcore/pkg/decoders"
	"github.com/drgolem/playcore/pkg/offlineresample"
)

var transformCmd = &cobra.Command{
	Use:   "transform <input_file>",
	Short: "Transform audio file sample rate and format",
	Long: `Transform audio files to different sample rates and convert to WAV format.
Supports input from MP3, FLAC, and WAV formats with optional mono conversion.

Examples:
  # Transform MP3 to 48kHz WAV
  playcore transform input.mp3 --new-samplerate 48000 --out output.wav

  # Transform FLAC to 44.1kHz mono WAV
  playcore transform input.flac --new-samplerate 44100 --mono --out output.wav

Supported Input Formats:
  - MP3 (.mp3)
  - FLAC (.flac)
  - WAV (.wav)

Output Format:
  - WAV (same bit depth as the input)`,
	Args: cobra.ExactArgs(1),
	Run:  runTransform,
}

func init() {
	rootCmd.AddCommand(transformCmd)

	transformCmd.Flags().Int("new-samplerate", 48000, "Target sample rate in Hz")
	transformCmd.Flags().String("out", "out_transformed.wav", "Output WAV file path")
	transformCmd.Flags().Bool("mono", false, "Convert output to mono signal (average channels)")
}

func runTransform(cmd *cobra.Command, args []string) {
	inFileName := args[0]

	if _, err := os.Stat(inFileName); os.IsNotExist(err) {
		slog.Error("Input file not found", "path", inFileName)
		os.Exit(1)
	}

	newSampleRate, _ := cmd.Flags().GetInt("new-samplerate")
	outFileName, _ := cmd.Flags().GetString("out")
	convertToMono, _ := cmd.Flags().GetBool("mono")

	if newSampleRate <= 0 || newSampleRate > 384000 {
		slog.Error("Invalid sample rate", "rate", newSampleRate, "valid_range", "1-384000")
		os.Exit(1)
	}

	dec, err := decoders.NewDecoder(inFileName)
	if err != nil {
		slog.Error("Failed to create decoder", "error", err)
		os.Exit(1)
	}
	defer dec.Close()

	inRate, channels, bits := dec.GetFormat()
	slog.Info("Audio transformation starting",
		"input_file", inFileName,
		"input_sample_rate", inRate,
		"input_channels", channels,
		"input_bits_per_sample", bits,
		"output_sample_rate", newSampleRate,
		"output_mono", convertToMono,
		"output_file", outFileName)

	frames, err := offlineresample.Transform(dec, offlineresample.Options{
		TargetSampleRate: newSampleRate,
		Mono:             convertToMono,
		OutPath:          outFileName,
	})
	if err != nil {
		slog.Error("Transform failed", "error", err)
		os.Exit(1)
	}

	slog.Info("Transformation complete",
		"input_frames", frames,
		"sample_rate_ratio", fmt.Sprintf("%.3f", float64(newSampleRate)/float64(inRate)))
}
