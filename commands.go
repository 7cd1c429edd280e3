package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"spellbee/internal/speech"
	"spellbee/internal/wordbank"
)

// newPronounceCommand synthesizes one word through the configured
// pronouncer chain and writes the audio to a file.
func newPronounceCommand(c *cli) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "pronounce <word>",
		Short: "Write the pronunciation of a word to an audio file",
		Long: `Synthesizes a single word with the configured speech provider, using the
same fallback and cache tiers as the server. Handy for warming a disk or S3
cache and for checking credentials.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			word := strings.TrimSpace(args[0])
			cfg := c.cfg
			p, err := buildPronouncer(cmd.Context(), cfg, c.log, newBreaker("speech", cfg, c.log))
			if err != nil {
				return err
			}
			audio, err := p.Synthesize(cmd.Context(), word)
			if err != nil {
				return err
			}

			path := output
			if path == "" {
				path = word + audioExt(audio.MIMEType)
			}
			if err := os.WriteFile(path, audio.Data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: wrote %s (%s, %s) via %s\n",
				word, path, audio.MIMEType, humanize.Bytes(uint64(len(audio.Data))), p.Name())
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default <word>.mp3 or <word>.wav)")
	return cmd
}

// newPresetsCommand lists the preset word lists from the word lists file.
func newPresetsCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List the preset word lists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bank, err := wordbank.Load(c.cfg.WordlistsFile)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTITLE\tWORDS")
			for _, l := range bank.Lists() {
				fmt.Fprintf(w, "%s\t%s\t%d\n", l.Name, l.Title, l.Words.Len())
			}
			return w.Flush()
		},
	}
}

func audioExt(mimeType string) string {
	if mimeType == speech.MIMEWAV {
		return ".wav"
	}
	return ".mp3"
}
