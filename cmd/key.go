package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hoplink/internal/classify"
	"hoplink/internal/keycodec"
	"hoplink/internal/resolver"
)

var keyPayload keycodec.Payload

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Encode and decode opaque resolver keys",
}

var keyEncodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Encode a URL and its metadata into a key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := keycodec.Encode(keyPayload)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(os.Stdout, map[string]string{"key": key})
		}
		fmt.Println(key)
		return nil
	},
}

var keyDecodeCmd = &cobra.Command{
	Use:   "decode <key>",
	Short: "Decode a key and show its payload and hosting family",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := keycodec.Decode(args[0])
		if err != nil {
			return err
		}
		family := classify.New(resolver.OptionsFromConfig(cfg).Rules).Classify(p.URL)

		if flagJSON {
			return printJSON(os.Stdout, struct {
				keycodec.Payload
				Family string `json:"family"`
			}{p, family.String()})
		}
		printKV(os.Stdout,
			"url", p.URL,
			"title", p.Title,
			"poster", p.Poster,
			"source", p.Source,
			"quality", p.Quality,
			"family", family.String(),
		)
		return nil
	},
}

func init() {
	f := keyEncodeCmd.Flags()
	f.StringVar(&keyPayload.URL, "url", "", "Target hosting URL (required)")
	f.StringVar(&keyPayload.Title, "title", "", "Display title")
	f.StringVar(&keyPayload.Poster, "poster", "", "Poster image URL")
	f.StringVar(&keyPayload.Source, "source", "", "Source tag")
	f.StringVar(&keyPayload.Quality, "quality", "", "Quality label")
	_ = keyEncodeCmd.MarkFlagRequired("url")

	keyCmd.AddCommand(keyEncodeCmd)
	keyCmd.AddCommand(keyDecodeCmd)
}
