package main

import (
	"fmt"
	"os"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/librarydesk/librarian/internal/backend"
	"github.com/librarydesk/librarian/internal/di"
	"github.com/librarydesk/librarian/internal/logger"
	"github.com/librarydesk/librarian/internal/seed"
	"github.com/librarydesk/librarian/internal/service"
)

var (
	seedFile string
	seedAs   string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load a YAML catalog of categories and books",
	Long: `seed signs in as a librarian and inserts every category and book of the
catalog that is not already present. It works against both backends.

Example catalog:

  categories:
    - name: History
  books:
    - title: The Histories
      isbn: "978-0140449082"
      year: 1996
      copies: 2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(seedFile)
		if err != nil {
			return err
		}
		defer f.Close()

		catalog, err := seed.Parse(f)
		if err != nil {
			return err
		}

		password, err := readPassword(cmd, "Password for "+seedAs+": ")
		if err != nil {
			return err
		}

		injector := di.NewContainer(overrides)
		defer injector.Shutdown()

		client, err := do.Invoke[*backend.Client](injector)
		if err != nil {
			return err
		}
		session, err := client.SignInWithPassword(cmd.Context(), backend.Credentials{Email: seedAs, Password: password})
		if err != nil {
			return err
		}

		seeder := seed.New(
			do.MustInvoke[*service.BookService](injector),
			do.MustInvoke[*service.CategoryService](injector),
			do.MustInvoke[*logger.Logger](injector),
		)
		res, err := seeder.Apply(backend.WithAccessToken(cmd.Context(), session.AccessToken), catalog)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "categories: %d created, %d skipped\nbooks: %d created, %d skipped\n",
			res.CategoriesCreated, res.CategoriesSkipped, res.BooksCreated, res.BooksSkipped)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "", "catalog YAML file")
	seedCmd.Flags().StringVar(&seedAs, "as", "", "email of the librarian account to seed as")
	_ = seedCmd.MarkFlagRequired("file")
	_ = seedCmd.MarkFlagRequired("as")
}
