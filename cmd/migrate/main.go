package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bcc-code/opencast-migrate/config"
	"github.com/bcc-code/opencast-migrate/export"
	"github.com/bcc-code/opencast-migrate/migrate"
	"github.com/bcc-code/opencast-migrate/paths"
	"github.com/bcc-code/opencast-migrate/services/opencast"
)

func main() {
	_ = godotenv.Load(".env")

	configPath := flag.String("config", "", "path to the configuration file")
	single := flag.Bool("single", false, "process a single mediapackage per series, then exit")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("could not load configuration")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	series := newSeriesMigrator(cfg, *single)

	commands := map[string]func(arg string) error{
		"mediapackage": func(arg string) error {
			return series.Migrator.MigrateMediapackage(ctx, cfg.Export.Dir, arg)
		},
		"series": func(arg string) error {
			if listPath, ok := strings.CutPrefix(arg, "@"); ok {
				return series.MigrateSeriesList(ctx, listPath)
			}
			return series.MigrateSeries(ctx, arg)
		},
	}

	if flag.NArg() != 2 {
		fmt.Printf("Usage: migrate [flags] <command> <argument>\n\nCommands:\n")
		fmt.Printf("  mediapackage <id>     migrate a single mediapackage\n")
		fmt.Printf("  series <id | @file>   migrate a series, or every series listed in a file\n")
		os.Exit(2)
	}

	command, ok := commands[flag.Arg(0)]
	if !ok {
		log.Fatal().Str("command", flag.Arg(0)).Msg("unknown command")
	}

	if err := command(flag.Arg(1)); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
}

func newSeriesMigrator(cfg *config.Config, single bool) *migrate.SeriesMigrator {
	srcAdmin := opencast.NewClient(cfg.Source.AdminURL, cfg.Source.Username, cfg.Source.Password)
	srcEngage := opencast.NewClient(cfg.Source.EngageURL, cfg.Source.Username, cfg.Source.Password)
	dstAdmin := opencast.NewClient(cfg.Destination.AdminURL, cfg.Destination.Username, cfg.Destination.Password)

	archiveService := opencast.ArchiveService
	if cfg.Source.LegacyArchive {
		archiveService = opencast.LegacyArchiveService
	}

	archiveResolver := paths.ArchiveResolver{Root: cfg.Storage.ArchiveDir}
	archive := &export.Exporter{
		Name:           "archive",
		Client:         srcAdmin,
		Service:        archiveService,
		Resolver:       archiveResolver,
		DropDuplicates: true,
	}
	published := &export.Exporter{
		Name:    "published",
		Client:  srcEngage,
		Service: opencast.SearchService,
		Resolver: paths.PublishedResolver{
			SearchRoots: cfg.Storage.SearchDirs,
			Archive:     &archiveResolver,
		},
		DropDuplicates: true,
	}

	migrator := &migrate.Migrator{
		Coordinator:        export.NewCoordinator(archive, published),
		Destination:        dstAdmin,
		DestinationService: opencast.ArchiveService,
		InboxDir:           cfg.Export.InboxDir,
		DeleteIngested:     cfg.Export.DeleteIngested,
		Filters: export.Filters{
			Flavors:   mapset.NewSet(cfg.Filters.Flavors...),
			StripTags: mapset.NewSet(cfg.Filters.StripTags...),
		},
	}

	return &migrate.SeriesMigrator{
		Migrator:      migrator,
		Source:        srcAdmin,
		Destination:   dstAdmin,
		ExportDir:     cfg.Export.Dir,
		PageSize:      cfg.Export.PageSize,
		DefaultRoles:  cfg.ACL.RoleActions(),
		RoleTransform: migrate.PrefixRoleTransform(cfg.ACL.RolePrefix),
		ExtraMetadata: cfg.Series.ExtraMetadata,
		Single:        single,
	}
}
