package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"

	"github.com/lox/basinseries/internal/log"
)

type CLI struct {
	EnvFile kongdotenv.ENVFileConfig `kong:"optional,name=env-file,default='.env',help='Path to .env file'"`
	Debug   bool                     `help:"Enable development logging." env:"BASINSERIES_DEBUG"`

	Run       RunCmd       `cmd:"" help:"Build every catalogue variable and write the results."`
	Reduce    ReduceCmd    `cmd:"" help:"Reduce one collection over an area to a CSV series on stdout."`
	Catalogue CatalogueCmd `cmd:"" help:"Print the default variable catalogue as YAML."`
	Runs      RunsCmd      `cmd:"" help:"List runs recorded in a database."`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("basinseries"),
		kong.Description("Spatial mean time series of gridded basin variables."),
		kong.UsageOnError(),
	)

	if err := log.Init(cli.Debug); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kctx.BindTo(ctx, (*context.Context)(nil))
	kctx.BindTo(os.Stdout, (*io.Writer)(nil))
	err := kctx.Run(log.Named("basinseries"))
	kctx.FatalIfErrorf(err)
}
