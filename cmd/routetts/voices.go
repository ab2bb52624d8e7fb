package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Jellypod-Inc/route-tts/pkg/provider/tts"
	"github.com/Jellypod-Inc/route-tts/pkg/voice"
)

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "Inspect configured and remote voices",
}

var voicesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the voices in the config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		writeVoiceTable(cmd.OutOrStdout(), cfg.Voices)
		return nil
	},
}

var voicesRemoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "List the voice catalogue of the elevenlabs account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, a, err := newApp()
		if err != nil {
			return err
		}
		remote, err := a.RemoteVoices(cmd.Context())
		if err != nil {
			return err
		}
		writeRemoteTable(cmd.OutOrStdout(), remote)
		return nil
	},
}

func init() {
	voicesCmd.AddCommand(voicesListCmd, voicesRemoteCmd)
	rootCmd.AddCommand(voicesCmd)
}

func writeVoiceTable(w io.Writer, voices []voice.Voice) {
	header := color.New(color.Bold)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header.Fprintln(tw, "ID\tPLATFORM\tMODEL\tVOICE\tFORMAT")
	for _, v := range voices {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", v.ID, v.Platform, v.Model, v.Voice, orDash(v.EffectiveFormat()))
	}
	_ = tw.Flush()
}

func writeRemoteTable(w io.Writer, voices []tts.RemoteVoice) {
	header := color.New(color.Bold)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header.Fprintln(tw, "ID\tNAME\tCATEGORY")
	for _, v := range voices {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", v.ID, v.Name, orDash(v.Category))
	}
	_ = tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
