package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/drgolem/go-portaudio/portaudio"
	"github.com/spf13/cobra"

	"github.com/drgolem/playcore/internal/device"
	"github.com/drgolem/playcore/pkg/decoders"
	"github.com/drgolem/playcore/pkg/model"
	"github.com/drgolem/playcore/pkg/playsource"
)

var (
	playDeviceIdx int
	playFrames    int
	playChannels  int
	playRate      int
	playSlowdown  int
	playVerbose   bool
)

var playCmd = &cobra.Command{
	Use:   "play <audio_file> [more_files...]",
	Short: "Play one or more audio files through the playback core",
	Long: `Play one or more audio files (MP3, FLAC, WAV) simultaneously through the
real-time playback core. Each file becomes an independent dense model mixed
into the same device stream; they must share a sample rate.

Examples:
  # Play a single file
  playcore play music.mp3

  # Mix two files together
  playcore play lead.wav backing.flac

  # Play at half speed without changing pitch
  playcore play music.wav --slowdown 2

  # Select a specific output device
  playcore play -d 0 music.flac`,
	Args: cobra.MinimumNArgs(1),
	Run:  runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().IntVarP(&playDeviceIdx, "device", "d", 1, "Audio output device index")
	playCmd.Flags().IntVarP(&playFrames, "frames", "f", 512, "Audio frames per callback")
	playCmd.Flags().IntVarP(&playChannels, "channels", "c", 2, "Output channel count")
	playCmd.Flags().IntVarP(&playRate, "rate", "r", 44100, "Output sample rate in Hz")
	playCmd.Flags().IntVarP(&playSlowdown, "slowdown", "s", 1, "Integer slowdown factor (pitch-preserving)")
	playCmd.Flags().BoolVarP(&playVerbose, "verbose", "v", false, "Verbose output (debug logging)")
}

func runPlay(cmd *cobra.Command, args []string) {
	logLevel := slog.LevelInfo
	if playVerbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	for _, f := range args {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			slog.Error("File not found", "path", f)
			os.Exit(1)
		}
	}

	slog.Info("Initializing PortAudio")
	if err := portaudio.Initialize(); err != nil {
		slog.Error("Failed to initialize PortAudio", "error", err)
		os.Exit(1)
	}
	defer portaudio.Terminate()

	params := model.NewStaticProvider()
	play := playsource.New(params, nil, nil)
	defer play.Close()

	play.SetOutputChannelCount(playChannels)
	play.SetTargetSampleRate(playRate)
	play.SetTargetBlockSize(playFrames)
	if playSlowdown > 1 {
		if err := play.SetSlowdownFactor(playSlowdown); err != nil {
			slog.Error("Failed to set slowdown factor", "error", err)
			os.Exit(1)
		}
	}

	play.OnSampleRateMismatch(func(e playsource.MismatchEvent) {
		slog.Error("Sample rate mismatch", "got", e.GotRate, "want", e.WantRate)
	})
	play.OnWarning(func(w playsource.Warning) {
		slog.Warn("Playback warning", "message", w.Message, "error", w.Err)
	})
	done := make(chan struct{})
	play.OnPlaybackEnded(func() {
		slog.Info("Playback ended")
		close(done)
	})

	for _, f := range args {
		dec, err := decoders.NewDecoder(f)
		if err != nil {
			slog.Error("Failed to open file", "path", f, "error", err)
			os.Exit(1)
		}
		m, err := model.NewDecoderDenseModel(dec, 0)
		if err != nil {
			slog.Error("Failed to wrap decoder", "path", f, "error", err)
			os.Exit(1)
		}
		if err := play.AddModel(m); err != nil {
			slog.Error("Failed to add model", "path", f, "error", err)
			os.Exit(1)
		}
		slog.Info("Loaded file", "path", f)
	}

	dev := device.New(play, device.Config{
		DeviceIndex:     playDeviceIdx,
		Channels:        playChannels,
		SampleRate:      playRate,
		FramesPerBuffer: playFrames,
	})
	if err := dev.Open(); err != nil {
		slog.Error("Failed to open audio device", "error", err)
		os.Exit(1)
	}
	defer dev.Close()

	play.Play(0)
	slog.Info("Playback started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case sig := <-sigChan:
			slog.Info("Signal received, stopping", "signal", sig)
			play.Stop()
			return
		case <-ticker.C:
			m := play.Metrics()
			fmt.Printf("frame=%d underruns=%d levels=(%.3f, %.3f)\n",
				play.GetCurrentPlayingFrame(), m.Underruns, m.LevelL, m.LevelR)
		}
	}
}
