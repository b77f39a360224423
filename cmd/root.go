package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "impact",
	Short: "article impact analysis service",
	Example: `impact serve
impact db migrate
impact analyze -c "<article text>"
impact analyze -u <article-url>
impact article get -a <article-id> --evidence
impact article delete -a <article-id>
impact vote -i <impact-id> -v up
impact history`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(healthCmd())
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(contextCommand)
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(articleCmd)
	rootCmd.AddCommand(voteCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	cobra.EnableCommandSorting = false
}
