package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	_ "github.com/lib/pq"
	"github.com/peterbourgon/ff/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/vodarchiver/archiver/config"
	"github.com/vodarchiver/archiver/ingestor"
	"github.com/vodarchiver/archiver/job"
	"github.com/vodarchiver/archiver/log"
	"github.com/vodarchiver/archiver/metadata"
	"github.com/vodarchiver/archiver/pipeline"
	"github.com/vodarchiver/archiver/video"
	"github.com/vodarchiver/archiver/workers"
)

func main() {
	fs := flag.NewFlagSet("archiver", flag.ExitOnError)
	cli := config.Cli{}

	fs.StringVar(&cli.HTTPAddress, "http-addr", "0.0.0.0:8989", "Address to bind for the /ok and /metrics endpoints")
	fs.StringVar(&cli.DatabaseURL, "database-url", "", "Postgres connection string for the job and metadata stores")
	fs.StringVar(&cli.WorkDir, "work-dir", ".", "Root directory for downloaded/rendered artifacts (vods/, chats/, finals/)")
	fs.DurationVar(&cli.IngestInterval, "ingest-interval", 5*time.Minute, "How often the ingestor polls for new VODs")
	config.CommaSliceFlag(fs, &cli.Channels, "channels", []string{}, "Comma-separated list of channels to ingest VODs from")
	fs.StringVar(&cli.UploadCategory, "upload-category", "gaming", "YouTube category applied to uploaded videos")
	config.InvertedBoolFlag(fs, &cli.UploadPrivate, "upload-private", true, "Upload videos with public visibility instead of the private default")
	fs.BoolVar(&cli.UploadMadeForKids, "upload-made-for-kids", false, "Mark uploaded videos as made for kids")
	fs.StringVar(&cli.UploadAccessToken, "upload-access-token", "", "OAuth access token used to authorize uploads")
	verbosity := fs.String("v", "", "Log verbosity. {4|5|6}")
	_ = fs.String("config", "", "config file (optional)")

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithEnvVarPrefix("ARCHIVER"),
	); err != nil {
		glog.Fatalf("error parsing cli: %s", err)
	}
	if *verbosity != "" {
		if err := flag.Lookup("v").Value.Set(*verbosity); err != nil {
			glog.Fatal(err)
		}
	}
	if len(fs.Args()) > 0 {
		glog.Fatalf("unexpected extra arguments on command line: %v", fs.Args())
	}

	config.WorkDir = cli.WorkDir

	if cli.DatabaseURL == "" {
		glog.Fatal("-database-url is required")
	}
	db, err := sql.Open("postgres", cli.DatabaseURL)
	if err != nil {
		glog.Fatalf("error opening database: %s", err)
	}
	defer db.Close()

	jobStore := job.NewPostgresStore(db)
	metadataStore := metadata.NewPostgresStore(db)

	platform := &unconfiguredSourcePlatform{}

	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cli.UploadAccessToken})

	workerSet := pipeline.Workers{
		job.DownloadingVod:  &workers.VodDownloader{Source: platform},
		job.DownloadingChat: &workers.ChatDownloader{Source: platform},
		job.RenderingChat:   &workers.ChatRenderer{Prober: video.Probe{}},
		job.Combining:       &workers.FinalRenderer{},
		job.Uploading: &workers.VideoUploader{
			Metadata:    metadataStore,
			TokenSource: tokenSource,
			Category:    cli.UploadCategory,
			Private:     cli.UploadPrivate,
			MadeForKids: cli.UploadMadeForKids,
		},
	}

	dispatcherID, err := os.Hostname()
	if err != nil || dispatcherID == "" {
		dispatcherID = uuid.NewString()
	}
	dispatcher := pipeline.NewDispatcher(jobStore, workerSet, dispatcherID)

	ing := &ingestor.Ingestor{
		Store:    jobStore,
		Source:   platform,
		Channels: cli.Channels,
		Interval: cli.IngestInterval,
	}

	group, ctx := errgroup.WithContext(context.Background())

	group.Go(func() error {
		dispatcher.Run(ctx)
		return ctx.Err()
	})

	group.Go(func() error {
		ing.Start(ctx)
		<-ctx.Done()
		ing.Stop()
		return ctx.Err()
	})

	group.Go(func() error {
		return listenAndServe(ctx, cli.HTTPAddress, dispatcher)
	})

	group.Go(func() error {
		return handleSignals(ctx)
	})

	glog.Infof("archiver %s starting, listening on %s", config.Version, cli.HTTPAddress)
	err = group.Wait()
	glog.Infof("shutdown complete, reason: %s", err)
}

func listenAndServe(ctx context.Context, addr string, dispatcher *pipeline.Dispatcher) error {
	router := httprouter.New()
	router.GET("/ok", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	router.GET("/status", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.WriteHeader(http.StatusOK)
		if vodID := dispatcher.InFlight(); vodID != "" {
			fmt.Fprintf(w, "driving %s\n", vodID)
			return
		}
		fmt.Fprint(w, "idle\n")
	})
	router.Handler(http.MethodGet, "/metrics", promhttp.Handler())

	server := &http.Server{Addr: addr, Handler: router}
	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func handleSignals(ctx context.Context) error {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)
	select {
	case s := <-c:
		glog.Errorf("caught signal=%v, attempting clean shutdown", s)
		return fmt.Errorf("caught signal=%v", s)
	case <-ctx.Done():
		return nil
	}
}

// unconfiguredSourcePlatform is the default wiring for the two external
// collaborator seams (workers.SourcePlatform, ingestor.Source) spec.md §1
// scopes out of this repo. It logs and returns nothing, so the binary
// boots and drives any jobs inserted by another means (e.g. archiverctl)
// without a real streaming-platform client plugged in.
type unconfiguredSourcePlatform struct{}

func (p *unconfiguredSourcePlatform) VodDownloadURL(vodID string) string {
	log.LogNoVodID("no source platform client configured, cannot resolve vod download URL", "vod_id", vodID)
	return ""
}

func (p *unconfiguredSourcePlatform) ChatDownloadURL(vodID string) string {
	log.LogNoVodID("no source platform client configured, cannot resolve chat download URL", "vod_id", vodID)
	return ""
}

func (p *unconfiguredSourcePlatform) ListRecentVods(ctx context.Context, channel string) ([]ingestor.VodRef, error) {
	return nil, nil
}
