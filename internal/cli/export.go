package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rcliao/memeboard/internal/model"
	"github.com/rcliao/memeboard/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export memes as JSON or YAML",
		Long:  "Export every meme, including edit history and flags. Output is a JSON array unless --format yaml is given. Import restores titles, tags, images and flags only.",
		Run:   runExport,
	}

	cmd.Flags().StringP("format", "f", "json", "Output format: json or yaml")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	format, _ := cmd.Flags().GetString("format")

	cfg := loadConfig()
	s := openStore(cmd.Context(), cfg)
	defer s.Close()

	memes, err := store.ExportAll(cmd.Context(), s)
	if err != nil {
		exitErr("export", err)
	}

	b, err := encodeMemes(memes, format)
	if err != nil {
		exitErr("export", err)
	}
	os.Stdout.Write(b)
}

func encodeMemes(memes []model.Meme, format string) ([]byte, error) {
	switch format {
	case "json", "":
		b, err := json.MarshalIndent(memes, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(b, '\n'), nil
	case "yaml":
		return yaml.Marshal(memes)
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

func decodeMemes(data []byte, format string) ([]model.Meme, error) {
	var memes []model.Meme
	switch format {
	case "json", "":
		if err := json.Unmarshal(data, &memes); err != nil {
			return nil, err
		}
	case "yaml":
		if err := yaml.Unmarshal(data, &memes); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
	return memes, nil
}
