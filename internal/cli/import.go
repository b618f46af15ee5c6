package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/memeboard/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import memes from JSON or YAML",
		Long: `Import memes from stdin in the format produced by export.

This is not a faithful backup restore: memes get new ids and creation
times, and edit counts and edit history are dropped. Title, tags, image
URL and the lock/feature flags are kept. Memes whose image URL already
exists are skipped, so running the same import twice adds nothing.`,
		Run:   runImport,
	}

	cmd.Flags().StringP("format", "f", "json", "Input format: json or yaml")

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	format, _ := cmd.Flags().GetString("format")

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		exitErr("read stdin", err)
	}

	memes, err := decodeMemes(data, format)
	if err != nil {
		exitErr("parse "+format, err)
	}

	cfg := loadConfig()
	s := openStore(cmd.Context(), cfg)
	defer s.Close()

	imported, err := store.Import(cmd.Context(), s, memes)
	if err != nil {
		exitErr("import", err)
	}

	fmt.Printf(`{"ok":true,"imported":%d}`+"\n", imported)
}
