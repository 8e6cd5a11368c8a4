package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/snappy-loop/paintchat/internal/apiclient"
	"github.com/snappy-loop/paintchat/internal/config"
	"github.com/snappy-loop/paintchat/internal/kafka"
	"github.com/snappy-loop/paintchat/internal/models"
	"github.com/snappy-loop/paintchat/internal/session"
)

var (
	version = "dev"
	commit  = "none"
)

// relay is what the CLI needs from the paintchat server.
type relay interface {
	session.ChatStreamer
	session.ImageGenerator
	Styles(ctx context.Context) ([]models.Style, error)
}

// eventSource runs until ctx is done, handing every relay event to handler.
type eventSource func(ctx context.Context, brokers []string, topic, group string, fromStart bool, handler kafka.EventHandler) error

type App struct {
	Out       io.Writer
	Err       io.Writer
	Config    *config.Config
	NewRelay  func(serverURL string) relay
	RunEvents eventSource
}

func DefaultApp() *App {
	return &App{
		Out:    os.Stdout,
		Err:    os.Stderr,
		Config: config.Load(),
		NewRelay: func(serverURL string) relay {
			return apiclient.NewClient(serverURL, nil)
		},
		RunEvents: func(ctx context.Context, brokers []string, topic, group string, fromStart bool, handler kafka.EventHandler) error {
			consumer := kafka.NewConsumer(brokers, topic, group, fromStart, handler)
			defer consumer.Close()
			return consumer.Start(ctx)
		},
	}
}

var (
	errorColor  = color.New(color.FgRed, color.Bold)
	titleColor  = color.New(color.FgCyan, color.Bold)
	okColor     = color.New(color.FgGreen, color.Bold)
	mutedColor  = color.New(color.FgHiBlack)
	replyColor  = color.New(color.FgWhite)
	eventColors = map[models.EventType]*color.Color{
		models.EventChatCompleted:  color.New(color.FgGreen),
		models.EventImageGenerated: color.New(color.FgGreen),
		models.EventChatFailed:     color.New(color.FgRed),
		models.EventImageFailed:    color.New(color.FgRed),
	}
)

func main() {
	app := DefaultApp()
	if err := newRootCmd(app).Execute(); err != nil {
		errorColor.Fprintf(app.Err, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(app *App) *cobra.Command {
	var serverURL string

	cmd := &cobra.Command{
		Use:   "painter",
		Short: "Design paintings with a paintchat server",
		Long: `painter drives a paintchat server from the terminal.

Examples:
  painter styles
  painter design --style Cubism --temperature 0.7 --out cubism.png
  painter events --brokers localhost:9092`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&serverURL, "server", app.Config.ServerURL, "paintchat server URL (PAINTCHAT_SERVER_URL)")

	cmd.AddCommand(
		newStylesCmd(app, &serverURL),
		newDesignCmd(app, &serverURL),
		newEventsCmd(app),
	)
	return cmd
}

func newStylesCmd(app *App, serverURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "styles",
		Short: "List the painting styles the server offers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			styles, err := app.NewRelay(*serverURL).Styles(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range styles {
				fmt.Fprintf(app.Out, "%s %s\n", s.Emoji, s.Value)
			}
			return nil
		},
	}
}

type designOptions struct {
	style       string
	temperature string
	size        string
	batch       string
	resolution  string
	out         string
	noImage     bool
}

func newDesignCmd(app *App, serverURL *string) *cobra.Command {
	opts := designOptions{}
	defaults := models.DefaultSettings()

	cmd := &cobra.Command{
		Use:   "design",
		Short: "Design a painting for a style and generate its image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return runDesign(ctx, app, *serverURL, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.style, "style", "s", "", "painting style (see: painter styles)")
	cmd.Flags().StringVarP(&opts.temperature, "temperature", "t", defaults.Temperature, "sampling temperature between 0 and 1")
	cmd.Flags().StringVar(&opts.size, "size", string(defaults.ImageSize), "image size (small, medium, large)")
	cmd.Flags().StringVar(&opts.batch, "batch", fmt.Sprint(defaults.BatchSize), "batch size (1, 2, 3)")
	cmd.Flags().StringVar(&opts.resolution, "resolution", string(defaults.Resolution), "resolution (low, medium, high)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "output file for the image (default painting.<ext>)")
	cmd.Flags().BoolVar(&opts.noImage, "no-image", false, "stop after the description")
	_ = cmd.MarkFlagRequired("style")

	return cmd
}

func runDesign(ctx context.Context, app *App, serverURL string, opts designOptions) error {
	r := app.NewRelay(serverURL)
	ctrl := session.NewController(r, r)

	for _, set := range []struct {
		apply func(string) error
		value string
	}{
		{ctrl.SelectStyle, opts.style},
		{ctrl.SetTemperature, opts.temperature},
		{ctrl.SetImageSize, opts.size},
		{ctrl.SetBatchSize, opts.batch},
		{ctrl.SetResolution, opts.resolution},
	} {
		if err := set.apply(set.value); err != nil {
			return err
		}
	}

	settings := ctrl.Settings()
	titleColor.Fprintf(app.Out, "Designing a %s painting\n", settings.Style)
	mutedColor.Fprintf(app.Out, "size=%s batch=%d resolution=%s temperature=%s\n\n",
		settings.ImageSize, settings.BatchSize, settings.Resolution, settings.Temperature)

	err := ctrl.DesignPainting(ctx, func(chunk string) {
		replyColor.Fprint(app.Out, chunk)
	})
	fmt.Fprintln(app.Out)
	if err != nil {
		return fmt.Errorf("design failed: %w", err)
	}
	if opts.noImage {
		return nil
	}
	if !ctrl.CanGenerate() {
		return fmt.Errorf("conversation ended in %s; nothing to paint", ctrl.Mode())
	}

	mutedColor.Fprintln(app.Out, "Painting...")
	img, err := ctrl.GeneratePainting(ctx)
	if err != nil {
		return fmt.Errorf("painting failed: %w", err)
	}

	path := opts.out
	if path == "" {
		path = "painting" + extensionFor(img.MimeType)
	}
	if err := writeImage(path, img); err != nil {
		return err
	}
	okColor.Fprintf(app.Out, "Saved: %s\n", path)
	return nil
}

// writeImage decodes the payload for display on disk; the stored payload itself is never altered.
func writeImage(path string, img models.ImageResult) error {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(img.Image))
	if err != nil {
		return fmt.Errorf("image payload is not base64: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	return nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

func newEventsCmd(app *App) *cobra.Command {
	var (
		brokers   []string
		topic     string
		group     string
		fromStart bool
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail relay events from Kafka",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(brokers) == 0 {
				return fmt.Errorf("no Kafka brokers: set KAFKA_BROKERS or use --brokers")
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			err := app.RunEvents(ctx, brokers, topic, group, fromStart, kafka.EventHandlerFunc(func(_ context.Context, ev *models.Event) error {
				printEvent(app.Out, ev)
				return nil
			}))
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringSliceVar(&brokers, "brokers", app.Config.KafkaBrokers, "Kafka brokers")
	cmd.Flags().StringVar(&topic, "topic", app.Config.KafkaTopicEvents, "event topic")
	cmd.Flags().StringVar(&group, "group", app.Config.KafkaConsumerGroup, "consumer group")
	cmd.Flags().BoolVar(&fromStart, "from-start", false, "read from the oldest retained event")
	return cmd
}

func printEvent(w io.Writer, ev *models.Event) {
	c, ok := eventColors[ev.Type]
	if !ok {
		c = mutedColor
	}
	line := fmt.Sprintf("%s %-15s %6dms", ev.OccurredAt.Format("15:04:05"), ev.Type, ev.DurationMs)
	switch {
	case ev.Error != "":
		line += " error=" + ev.Error
	case ev.Type == models.EventImageGenerated:
		line += fmt.Sprintf(" mime=%s bytes=%d", ev.MimeType, ev.ImageBytes)
	default:
		line += fmt.Sprintf(" messages=%d chars=%d", ev.Messages, ev.Chars)
	}
	c.Fprintln(w, line)
}
