package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dukerupert/renex/internal/model"
	"github.com/dukerupert/renex/internal/newsletter"
)

func (c *cli) notifyArticleCmd() *cobra.Command {
	var file string
	var article model.Article

	cmd := &cobra.Command{
		Use:   "notify-article",
		Short: "Announce a new article by email, web push and NATS",
		Long: "Announce a new article to every subscriber. The article is read from a YAML\n" +
			"file (--file) or given with flags; flags override fields from the file.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := article
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("open article: %w", err)
				}
				a, err = newsletter.ReadArticle(f)
				f.Close()
				if err != nil {
					return err
				}
				mergeArticle(&a, article)
			}

			report, err := c.app.AnnounceArticle(cmd.Context(), a)
			if perr := printJSON(cmd.OutOrStdout(), report); perr != nil {
				return perr
			}
			return err
		},
	}

	f := cmd.Flags()
	f.StringVarP(&file, "file", "f", "", "YAML file describing the article")
	f.StringVar(&article.Title, "title", "", "article title")
	f.StringVar(&article.URL, "url", "", "article URL")
	f.StringVar(&article.Image, "image", "", "image URL")
	f.StringVar(&article.Author, "author", "", "author name")
	f.StringVar(&article.Date, "date", "", "publication date as shown to readers")
	f.StringVar(&article.Excerpt, "excerpt", "", "short summary")
	f.StringVar(&article.Description, "description", "", "longer summary, used when no excerpt is given")
	return cmd
}

func mergeArticle(dst *model.Article, src model.Article) {
	set := func(d *string, s string) {
		if s != "" {
			*d = s
		}
	}
	set(&dst.Title, src.Title)
	set(&dst.URL, src.URL)
	set(&dst.Image, src.Image)
	set(&dst.Author, src.Author)
	set(&dst.Date, src.Date)
	set(&dst.Excerpt, src.Excerpt)
	set(&dst.Description, src.Description)
}
