// Command mixcaster republishes remote music as podcast RSS feeds.
//
//	serve     Run the HTTP server, download queue, and feed watcher. The default.
//	download  One-shot: build a feed and download all of its episodes, then exit.
//	version   Print the product version.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/jakshin/mixcaster-sub000/internal/attrs"
	"github.com/jakshin/mixcaster-sub000/internal/config"
	"github.com/jakshin/mixcaster-sub000/internal/download"
	"github.com/jakshin/mixcaster-sub000/internal/httpd"
	"github.com/jakshin/mixcaster-sub000/internal/logging"
	"github.com/jakshin/mixcaster-sub000/internal/metrics"
	"github.com/jakshin/mixcaster-sub000/internal/mixcloud"
	"github.com/jakshin/mixcaster-sub000/internal/music"
	"github.com/jakshin/mixcaster-sub000/internal/version"
	"github.com/jakshin/mixcaster-sub000/internal/watcher"
)

func main() {
	flags := flag.NewFlagSet("mixcaster", flag.ExitOnError)
	configPath := flags.String("config", "", "path to the settings file")
	flags.Usage = usage

	args := os.Args[1:]
	command := "serve"
	if len(args) > 0 && !flagLike(args[0]) {
		command = args[0]
		args = args[1:]
	}
	flags.Parse(args)

	switch command {
	case "serve":
		run(*configPath, serve)
	case "download":
		if flags.NArg() != 1 {
			fmt.Fprintln(os.Stderr, "usage: mixcaster download <user[/type|/playlist/slug]>")
			os.Exit(2)
		}
		feed := flags.Arg(0)
		run(*configPath, func(ctx context.Context, env *environment) error {
			return downloadFeed(ctx, env, feed)
		})
	case "version":
		fmt.Printf("%s %s\n", version.Product, version.Version)
	default:
		usage()
		os.Exit(2)
	}
}

func flagLike(arg string) bool {
	return len(arg) > 0 && arg[0] == '-'
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: mixcaster [-config path] [serve | download <feed> | version]`)
}

// environment is the shared wiring every subcommand needs.
type environment struct {
	settings *config.Settings
	attrs    *attrs.Store
	queue    *download.Queue
	client   *mixcloud.Client
}

// run loads settings, sets up logging and the collaborators, and hands
// control to the subcommand until it returns or a signal arrives.
func run(configPath string, cmd func(context.Context, *environment) error) {
	settings, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "mixcaster:", err)
		os.Exit(1)
	}
	logCloser := logging.Setup(settings)
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := attrs.NewStore(settings.MusicDir())
	defer store.Close()

	env := &environment{
		settings: settings,
		attrs:    store,
		queue: download.NewQueue(download.Options{
			Threads:     settings.DownloadThreads,
			OldestFirst: func() bool { return settings.Bool(config.KeyDownloadOldestFirst) },
			UserAgent:   func() string { return settings.Get(config.KeyUserAgent) },
			Attrs:       store,
		}),
		client: mixcloud.NewClient(mixcloud.ClientConfig{
			UserAgent:    func() string { return settings.Get(config.KeyUserAgent) },
			MaxEpisodes:  func() int { return settings.Int(config.KeyEpisodeMaxCount) },
			IsSubscribed: settings.SubscribedTo,
		}),
	}

	if err := cmd(ctx, env); err != nil {
		log.Error().Err(err).Msg("mixcaster: failed")
		os.Exit(1)
	}
}

// serve runs the full service: settings watcher, metrics listener, feed
// watcher, and the HTTP server in the foreground.
func serve(ctx context.Context, env *environment) error {
	if env.settings.Path() != "" {
		go func() {
			if err := env.settings.Watch(ctx); err != nil {
				log.Warn().Err(err).Msg("mixcaster: settings watcher stopped")
			}
		}()
	}
	go metrics.Serve(ctx, env.settings.Int(config.KeyMetricsPort))
	go watcher.New(env.settings, env.client, env.queue, env.attrs).Run(ctx)

	srv := httpd.NewServer(env.settings, env.client, env.queue, env.attrs)
	return srv.ListenAndServe(ctx)
}

// downloadFeed builds one feed, enqueues every episode, and waits for the
// queue to drain.
func downloadFeed(ctx context.Context, env *environment, feed string) error {
	set, err := music.ParsePath(feed)
	if err != nil {
		return err
	}
	if set.MusicType == "" {
		if set.MusicType, err = env.client.DefaultMusicType(ctx, set.Username); err != nil {
			return err
		}
	}

	p, err := env.client.Podcast(ctx, set, env.settings.HostPort(), env.settings.MusicDir())
	if err != nil {
		return err
	}
	queued := 0
	for i := range p.Episodes {
		ep := &p.Episodes[i]
		if env.queue.Enqueue(download.Download{
			RemoteURL:    ep.Enclosure.RemoteURL,
			LengthBytes:  ep.Enclosure.LengthBytes,
			LastModified: ep.Enclosure.LastModified,
			LocalPath:    mixcloud.LocalPathFor(ep, env.settings.MusicDir()),
		}) {
			queued++
		}
	}
	log.Info().Stringer("feed", set).Int("episodes", len(p.Episodes)).Int("queued", queued).
		Msg("mixcaster: downloading")

	done := make(chan struct{})
	env.queue.ProcessQueue(func() { close(done) })
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
