package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/memeboard/internal/model"
	"github.com/rcliao/memeboard/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List memes",
		Run:   runList,
	}

	cmd.Flags().StringP("search", "s", "", "Case-insensitive match on title or tags")
	cmd.Flags().String("sort", string(model.SortRecent), "Sort: recent, popular or featured")
	cmd.Flags().IntP("limit", "l", store.DefaultLimit, "Max results")
	cmd.Flags().Int("offset", 0, "Skip this many results")
	cmd.Flags().Bool("ids-only", false, "Only output id and title")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	search, _ := cmd.Flags().GetString("search")
	sortBy, _ := cmd.Flags().GetString("sort")
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")
	idsOnly, _ := cmd.Flags().GetBool("ids-only")

	if !model.ValidSorts[model.SortBy(sortBy)] {
		exitErr("list", fmt.Errorf("unknown sort %q", sortBy))
	}

	cfg := loadConfig()
	s := openStore(cmd.Context(), cfg)
	defer s.Close()

	memes, err := s.List(cmd.Context(), store.ListParams{
		Search: search,
		SortBy: model.SortBy(sortBy),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		exitErr("list", err)
	}

	if idsOnly {
		for _, m := range memes {
			fmt.Printf("%s\t%s\n", m.ID, m.Title)
		}
		return
	}

	b, _ := json.MarshalIndent(memes, "", "  ")
	fmt.Println(string(b))
}
