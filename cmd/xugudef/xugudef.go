package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jessevdk/go-flags"
	"golang.org/x/term"

	"github.com/xugu-publish/xugudef"
	"github.com/xugu-publish/xugudef/database"
	"github.com/xugu-publish/xugudef/database/xugu"
	"github.com/xugu-publish/xugudef/util"
)

var version string

type cliOptions struct {
	User        string `short:"U" long:"user" description:"Xugu user name" value-name:"user_name" default:"SYSDBA"`
	Password    string `short:"P" long:"password" description:"Xugu user password, overridden by $XUGU_PWD" value-name:"password"`
	Host        string `short:"h" long:"host" description:"Host to connect to the Xugu server" value-name:"host_name" default:"127.0.0.1"`
	Port        uint   `short:"p" long:"port" description:"Port used for the connection" value-name:"port_num" default:"5138"`
	Driver      string `long:"driver" description:"database/sql driver name" value-name:"driver_name" default:"xugu"`
	Prompt      bool   `long:"password-prompt" description:"Force Xugu user password prompt"`
	File        string `long:"file" description:"Read the edit session from the file, rather than stdin" value-name:"session_file" default:"-"`
	Script      string `long:"script" description:"Execute a SQL script instead of an edit session" value-name:"sql_file"`
	Config      string `long:"config" description:"YAML file to configure statement generation" value-name:"config_file"`
	Concurrency int    `long:"load-concurrency" description:"Concurrent catalog queries, negative for no limit" value-name:"num" default:"4"`
	DryRun      bool   `long:"dry-run" description:"Don't run statements but just show them"`
	Debug       bool   `long:"debug" description:"Dump generated plans to stderr"`
	Help        bool   `long:"help" description:"Show this help"`
	Version     bool   `long:"version" description:"Show this version"`
}

// Return parsed options and the database name
func parseOptions(args []string) (database.Config, *xugudef.Options) {
	var opts cliOptions
	parser := flags.NewParser(&opts, flags.None)
	parser.Usage = "[options] db_name"
	args, err := parser.ParseArgs(args)
	if err != nil {
		log.Fatal(err)
	}

	if opts.Help {
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}

	if opts.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if len(args) == 0 {
		fmt.Print("No database is specified!\n\n")
		parser.WriteHelp(os.Stdout)
		os.Exit(1)
	} else if len(args) > 1 {
		fmt.Printf("Multiple databases are given: %v\n\n", args)
		parser.WriteHelp(os.Stdout)
		os.Exit(1)
	}

	generatorConfig, err := database.ParseGeneratorConfig(opts.Config)
	if err != nil {
		log.Fatalf("Failed to read '%s': %s", opts.Config, err)
	}

	options := xugudef.Options{
		SessionFile: opts.File,
		ScriptFile:  opts.Script,
		DryRun:      opts.DryRun,
		Debug:       opts.Debug,
		Config:      generatorConfig,
	}

	password, ok := os.LookupEnv("XUGU_PWD")
	if !ok {
		password = opts.Password
	}

	if opts.Prompt {
		fmt.Printf("Enter Password: ")
		pass, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			log.Fatal(err)
		}
		password = string(pass)
	}

	config := database.Config{
		DbName:          args[0],
		User:            opts.User,
		Password:        password,
		Host:            opts.Host,
		Port:            int(opts.Port),
		DriverName:      opts.Driver,
		LoadConcurrency: opts.Concurrency,
	}
	return config, &options
}

// openDatabase connects through the driver registered under
// config.DriverName. A dry run without a registered driver works offline and
// puts unqualified objects into the login user's schema.
func openDatabase(config database.Config, options *xugudef.Options) (database.Database, error) {
	db, err := xugu.NewDatabase(config)
	if err == nil || !options.DryRun || !errors.Is(err, xugu.ErrDriverNotRegistered) {
		return db, err
	}
	slog.Warn("Dry run without a database connection", "error", err)
	if options.Config.DefaultSchema == "" {
		options.Config.DefaultSchema = strings.ToUpper(config.User)
	}
	return database.NewDryRunDatabase(nil)
}

func main() {
	util.InitSlog()
	config, options := parseOptions(os.Args[1:])

	db, err := openDatabase(config, options)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := xugudef.Run(ctx, db, options); err != nil {
		db.Close()
		log.Fatal(err)
	}
}
