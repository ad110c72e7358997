package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "playcore",
	Short: "Real-time multi-model audio playback core",
	Long: `playcore - a real-time audio playback core that mixes multiple dense,
sparse, and note models into a single audio device stream using a lock-free
SPSC ringbuffer pipeline between a fill thread and the real-time callback.

Features:
  - Lock-free SPSC ringbuffer vector feeding the real-time callback
  - Fill-thread / callback-thread split with deferred buffer reclamation
  - Integer-ratio phase vocoder for pitch-preserving slowdown playback
  - ClipMixer polyphonic sampler for sparse and note models
  - Support for MP3, FLAC, and WAV source material
  - Sample rate transformation and format conversion

Commands:
  - play: Play one or more audio files through the playback core
  - transform: Convert audio files to different sample rates and WAV format`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
