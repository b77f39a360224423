package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	contextDir      = "./.tmp"
	contextFileName = "impact"
	defaultServer   = "http://localhost:4001"
)

var contextCommand = &cobra.Command{
	Use:   "context",
	Short: "context commands",
}

func init() {
	contextCommand.AddCommand(setContextCommand())
	contextCommand.AddCommand(currentContextCommand())
	contextCommand.AddCommand(resetContextCommand())
}

// Context is the server and token the client commands use.
type Context struct {
	Server string `mapstructure:"server" json:"server"`
	Token  string `mapstructure:"token" json:"token"`
}

// saves the context info to ./.tmp/impact.yml
func setContextCommand() *cobra.Command {
	var server string
	var token string

	command := &cobra.Command{
		Use:   "set",
		Short: "set context",
		Run: func(cmd *cobra.Command, args []string) {
			if server == "" && token == "" {
				color.Red(`missing: --server or --token`)
				return
			}

			ctx := readContext()
			if server != "" {
				ctx.Server = server
			}
			if token != "" {
				ctx.Token = token
			}

			if err := writeContext(ctx); err == nil {
				fmt.Println("context saved")
			}
		},
	}

	command.Flags().StringVarP(&server, "server", "s", "", "server url")
	command.Flags().StringVarP(&token, "token", "t", "", "token")

	return command
}

func currentContextCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "current",
		Short: "current context",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := readContext()
			printField("Server", ctx.Server)
			token := ctx.Token
			if len(token) > 12 {
				token = token[:12] + "..."
			}
			printField("Token", token)
		},
	}

	return command
}

func resetContextCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "reset",
		Short: "reset context",
		Run: func(cmd *cobra.Command, args []string) {
			if err := writeContext(Context{Server: defaultServer}); err == nil {
				fmt.Println("context reset")
			}
		},
	}

	return command
}

func contextViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName(contextFileName)
	v.AddConfigPath(contextDir)
	v.SetConfigType("yml")
	return v
}

func writeContext(ctx Context) error {
	if err := os.MkdirAll(contextDir, 0o755); err != nil {
		fmt.Println("error creating context dir: ", err)
		return err
	}

	v := contextViper()
	v.Set("context.server", ctx.Server)
	v.Set("context.token", ctx.Token)

	err := v.WriteConfigAs(filepath.Join(contextDir, contextFileName+".yml"))
	if err != nil {
		fmt.Println("error writing config file: ", err)
	}
	return err
}

func readContext() Context {
	ctx := Context{Server: defaultServer}

	v := contextViper()
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Println("error reading config file: ", err)
		}
		return ctx
	}

	if err := v.UnmarshalKey("context", &ctx); err != nil {
		fmt.Println("error unmarshalling config file: ", err)
	}
	if ctx.Server == "" {
		ctx.Server = defaultServer
	}

	return ctx
}
