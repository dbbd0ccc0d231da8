package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/gin-gonic/gin"
	"github.com/phambaophuc/uploads-im-client/internal/config"
	"github.com/phambaophuc/uploads-im-client/internal/logger"
	"github.com/phambaophuc/uploads-im-client/internal/services/queue"
	"github.com/phambaophuc/uploads-im-client/pkg/uploadsim"
	"github.com/phambaophuc/uploads-im-client/server"
	"github.com/pkg/browser"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// openURL is swapped out in tests.
var openURL = browser.OpenURL

func newCLI() *cli.App {
	return &cli.App{
		Name:  "uploadsim",
		Usage: "upload images to uploads.im",
		Commands: []*cli.Command{
			uploadCommand(),
			serveCommand(),
			watchCommand(),
		},
	}
}

func uploadCommand() *cli.Command {
	return &cli.Command{
		Name:  "upload",
		Usage: "upload an image file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "file to upload", Required: true},
			&cli.StringFlag{Name: "host", Usage: "uploads.im compatible host"},
			&cli.Uint64Flag{Name: "resize-width", Usage: "ask the server to resize to this width"},
			&cli.Uint64Flag{Name: "thumb-width", Usage: "thumbnail width"},
			&cli.BoolFlag{Name: "family-unsafe", Usage: "mark the image as not family safe"},
			&cli.BoolFlag{Name: "open", Usage: "open the view URL in a browser"},
			&cli.StringFlag{Name: "verbosity", Aliases: []string{"l"}, Value: "warn", Usage: "log level"},
		},
		Action: runUpload,
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "start the HTTP upload proxy",
		Action: func(cCtx *cli.Context) error {
			cfg, found := config.Load()
			log, err := logger.New(cfg.LogLevel)
			if err != nil {
				return err
			}
			if !found {
				log.Debug("No .env file found, using environment")
			}

			if log.Core().Enabled(zap.DebugLevel) {
				gin.SetMode(gin.DebugMode)
			} else {
				gin.SetMode(gin.ReleaseMode)
			}

			a := newApp(cfg, log)
			defer a.close()

			return server.Run(cCtx.Context, server.New(cfg, a.router()), log)
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "print upload events from RabbitMQ as they arrive",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "consumer", Value: "uploadsim-watch"},
		},
		Action: func(cCtx *cli.Context) error {
			cfg, _ := config.Load()
			log, err := logger.New(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer log.Sync()

			if cfg.RabbitMQ.URL == "" {
				return errors.New("RABBITMQ_URL is not set")
			}

			q, err := queue.NewQueueService(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, log)
			if err != nil {
				return err
			}
			defer q.Close()

			out := cCtx.App.Writer
			return q.Consume(cCtx.Context, cCtx.String("consumer"), func(_ context.Context, event *queue.UploadedEvent) error {
				return printJSON(out, event)
			})
		},
	}
}

func runUpload(cCtx *cli.Context) error {
	cfg, _ := config.Load()

	log, err := logger.New(cCtx.String("verbosity"))
	if err != nil {
		return err
	}

	if host := cCtx.String("host"); host != "" {
		cfg.Uploads.Host = host
	}

	a := newApp(cfg, log)
	defer a.close()

	options, err := uploadOptionsFromFlags(cCtx, cfg.Uploads.Host)
	if err != nil {
		return err
	}
	result, err := a.uploader.Upload(cCtx.Context, cCtx.String("input"), options)
	if err != nil {
		return err
	}
	log.Info("Uploaded image", zap.String("view_url", result.Image.ViewURL.String()))

	if err := printJSON(cCtx.App.Writer, result); err != nil {
		return err
	}
	if cCtx.Bool("open") {
		return openURL(result.Image.ViewURL.String())
	}
	return nil
}

func uploadOptionsFromFlags(cCtx *cli.Context, host string) (uploadsim.UploadOptions, error) {
	opts := []uploadsim.Option{uploadsim.WithHost(host)}
	if cCtx.IsSet("resize-width") {
		opts = append(opts, uploadsim.WithResizeWidth(cCtx.Uint64("resize-width")))
	}
	if cCtx.IsSet("thumb-width") {
		width := cCtx.Uint64("thumb-width")
		if width > math.MaxUint32 {
			return uploadsim.UploadOptions{}, fmt.Errorf("thumb-width %d is out of range", width)
		}
		opts = append(opts, uploadsim.WithThumbnailWidth(uint32(width)))
	}
	if cCtx.IsSet("family-unsafe") {
		opts = append(opts, uploadsim.WithFamilyUnsafe(cCtx.Bool("family-unsafe")))
	}
	return uploadsim.NewUploadOptions(opts...), nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
