package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrWong99/hark/pkg/audio/portaudio"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio input devices",
	Long: `List the input-capable audio devices PortAudio can see.

Use one of the printed names as audio.input_device in the configuration.
The system default is marked with an asterisk.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := portaudio.ListInputDevices()
		if err != nil {
			return err
		}
		if len(devices) == 0 {
			fmt.Println("no input devices found")
			return nil
		}
		for _, d := range devices {
			marker := " "
			if d.IsDefault {
				marker = "*"
			}
			fmt.Printf("%s %-40s %d ch, %.0f Hz\n", marker, d.Name, d.MaxInputChannels, d.DefaultSampleRate)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
