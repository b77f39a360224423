package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/emrgen/impact"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var articleCmd = &cobra.Command{
	Use:   "article",
	Short: "article commands",
}

func init() {
	articleCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	articleCmd.AddCommand(getArticleCmd())
	articleCmd.AddCommand(deleteArticleCmd())
}

func newClient() *impact.Client {
	ctx := readContext()
	return impact.NewClient(ctx.Server, ctx.Token)
}

func analyzeCmd() *cobra.Command {
	var content string
	var articleURL string
	var file string
	var key string

	command := &cobra.Command{
		Use:     "analyze",
		Short:   "analyze an article",
		Example: `impact analyze -c "<article text>"` + "\nimpact analyze -f article.txt -k <idempotency-key>",
		Run: func(cmd *cobra.Command, args []string) {
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					logrus.Error(err)
					return
				}
				content = string(data)
			}
			if content == "" && articleURL == "" {
				color.Red("missing: --content, --file or --url")
				return
			}

			res, err := newClient().Analyze(context.Background(), content, articleURL, key)
			if err != nil {
				printError(err)
				return
			}

			printField("Article", res.ArticleID)
			printField("Title", res.Analysis.ArticleTitle)
			printField("Impacting entity", res.Analysis.ImpactingEntity)

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Impacted Entity", "Score", "Impact"})
			for _, item := range res.Analysis.Impacts {
				table.Append([]string{item.ImpactedEntity, formatScore(item.Score), item.Impact})
			}
			table.Render()
		},
	}

	command.Flags().StringVarP(&content, "content", "c", "", "article text")
	command.Flags().StringVarP(&file, "file", "f", "", "read the article text from a file")
	command.Flags().StringVarP(&articleURL, "url", "u", "", "article url to fetch")
	command.Flags().StringVarP(&key, "key", "k", "", "idempotency key")

	return command
}

func getArticleCmd() *cobra.Command {
	var articleID string
	var evidence bool

	var required = []string{"article-id"}

	command := &cobra.Command{
		Use:     "get",
		Short:   "get an article with its impacts",
		Example: "impact article get -a <article-id> --evidence",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			res, err := newClient().GetArticle(context.Background(), articleID, evidence)
			if err != nil {
				printError(err)
				return
			}

			printField("Title", res.Article.Title)
			printField("Impacting entity", res.Article.ImpactingEntity)
			printField("Summary", res.Article.Summary)

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"ID", "Impacted Entity", "Score", "Up", "Down", "Evidence"})
			for _, item := range res.Impacts {
				table.Append([]string{
					item.ID,
					item.ImpactedEntity,
					formatScore(item.Score),
					strconv.FormatInt(item.UserVotesUp, 10),
					strconv.FormatInt(item.UserVotesDown, 10),
					strconv.Itoa(len(item.SupportingEvidenceIDs)),
				})
			}
			table.Render()

			if !evidence {
				return
			}
			for _, item := range res.Impacts {
				for _, e := range item.SupportingEvidence {
					printField(item.ImpactedEntity, strings.TrimSpace(e.Description+" "+e.SourceURL))
				}
			}
		},
	}

	command.Flags().StringVarP(&articleID, "article-id", "a", "", "article id (required)")
	command.Flags().BoolVarP(&evidence, "evidence", "e", false, "include supporting evidence")

	return command
}

func deleteArticleCmd() *cobra.Command {
	var articleID string

	var required = []string{"article-id"}

	command := &cobra.Command{
		Use:     "delete",
		Short:   "delete an article with its impacts and history",
		Example: "impact article delete -a <article-id>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			if err := newClient().DeleteArticle(context.Background(), articleID); err != nil {
				printError(err)
				return
			}
			color.Green("article %s deleted", articleID)
		},
	}

	command.Flags().StringVarP(&articleID, "article-id", "a", "", "article id (required)")

	return command
}

func voteCmd() *cobra.Command {
	var impactID string
	var voteType string

	var required = []string{"impact-id", "vote"}

	command := &cobra.Command{
		Use:     "vote",
		Short:   "vote on an impact",
		Example: "impact vote -i <impact-id> -v up",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			if err := newClient().Vote(context.Background(), impactID, voteType); err != nil {
				printError(err)
				return
			}
			color.Green("vote recorded")
		},
	}

	command.Flags().StringVarP(&impactID, "impact-id", "i", "", "impact id (required)")
	command.Flags().StringVarP(&voteType, "vote", "v", "", "up or down (required)")

	return command
}

func historyCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "history",
		Short: "list your analyses",
		Run: func(cmd *cobra.Command, args []string) {
			entries, err := newClient().History(context.Background())
			if err != nil {
				printError(err)
				return
			}
			if len(entries) == 0 {
				color.Yellow("no analyses, is a token set in the context?")
				return
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"ID", "Article", "Title", "Impacts", "Created"})
			for _, entry := range entries {
				count := int64(entry.ImpactCount)
				if entry.Article != nil {
					count = entry.Article.ImpactCount
				}
				table.Append([]string{
					entry.ID,
					entry.ArticleID,
					entry.Title,
					strconv.FormatInt(count, 10),
					entry.CreatedAt.Local().Format(time.DateTime),
				})
			}
			table.Render()
		},
	}

	return command
}

func formatScore(score float64) string {
	s := strconv.FormatFloat(score, 'f', 2, 64)
	switch {
	case score > 0:
		return color.GreenString(s)
	case score < 0:
		return color.RedString(s)
	default:
		return s
	}
}

func printError(err error) {
	var apiErr *impact.APIError
	if errors.As(err, &apiErr) {
		color.Red("%s", apiErr.Message)
		if apiErr.Details != "" {
			fmt.Println(apiErr.Details)
		}
		return
	}
	color.Red("%v", err)
}

func printField(label, value string) {
	color.Set(color.FgCyan)
	fmt.Print(label)
	color.Unset()
	fmt.Printf(": %s\n", value)
}

// checkMissingFlags checks if the required flags are set and returns ok if they are set
func checkMissingFlags(cmd *cobra.Command, flags []string) bool {
	var missingFlags []string
	var providedFlags []string
	for _, required := range flags {
		if !cmd.Flag(required).Changed {
			missingFlags = append(missingFlags, required)
		} else {
			value := cmd.Flag(required).Value.String()
			providedFlags = append(providedFlags, fmt.Sprintf("--%s=%s", required, value))
		}
	}

	if len(missingFlags) > 0 {
		var msg string
		for _, f := range missingFlags {
			msg += fmt.Sprintf("--%s ", f)
		}

		color.Red("missing: %s\n", msg)
		if len(providedFlags) > 0 {
			provided := strings.Join(providedFlags, " ")
			color.Green("provide: %s\n", provided)
		}

		cmd.Println("")

		_ = cmd.Usage()

		return true
	}

	return false
}
