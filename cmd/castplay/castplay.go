package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"castplay.app/castplay/devices"
	"castplay.app/castplay/internal/chooser"
	"castplay.app/castplay/internal/config"
	"castplay.app/castplay/internal/interactive"
	"castplay.app/castplay/internal/mediaprobe"
	"castplay.app/castplay/internal/usecase"
	"castplay.app/castplay/internal/viewmodel"
	"castplay.app/castplay/session"
)

const (
	monitorInterval = 5 * time.Second
	probeTimeout    = 5 * time.Second
)

var (
	version    string
	build      string
	mediaURL   string
	urlArg     = flag.String("u", "", "URL of the video to cast. It is saved to the config for later runs. Defaults to the configured or built-in test video.")
	targetPtr  = flag.String("t", "", "Cast to the device with this friendly name and exit. (Triggers the CLI mode)")
	listPtr    = flag.Bool("l", false, "List all available cast devices.")
	debugPtr   = flag.String("debug", "", "Write debug logs to this file.")
	versionPtr = flag.Bool("version", false, "Print version.")
)

func main() {
	flag.Parse()

	conf, err := config.GetAppConfig()
	check(err)

	exit, err := checkflags(conf)
	check(err)
	if exit {
		os.Exit(0)
	}

	logOutput, closeLog, err := openDebugLog(*debugPtr)
	check(err)

	code := run(conf, logOutput)
	closeLog()
	os.Exit(code)
}

func run(conf *config.Config, logOutput io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := zerolog.Nop()
	if logOutput != nil {
		log = zerolog.New(logOutput).With().Timestamp().Str("component", "main").Logger()
	}

	disc := devices.NewDiscoverer()
	disc.LogOutput = logOutput

	manager := session.NewManager(session.CastClientFactory{LogOutput: logOutput})
	manager.LogOutput = logOutput
	disc.OnUpdate = func(devs []devices.Device) {
		manager.SetDevicesAvailable(len(devs))
	}

	probeCtx, cancelProbe := context.WithTimeout(ctx, probeTimeout)
	contentType := mediaprobe.New().ContentTypeOrDefault(probeCtx, mediaURL)
	cancelProbe()
	log.Debug().Str("Method", "run").Str("URL", mediaURL).Str("ContentType", contentType).Msg("media probed")

	cast := usecase.NewCast(ctx, manager, usecase.Options{
		MediaURL:       mediaURL,
		MediaTitle:     conf.MediaTitle,
		ContentType:    contentType,
		ConnectingTick: conf.ConnectingTick(),
		RevertDelay:    conf.RevertDelay(),
		LogOutput:      logOutput,
	})
	vm := viewmodel.NewCastPlay(cast)
	vm.LogOutput = logOutput

	go manager.Monitor(ctx, monitorInterval)

	var code int
	if *targetPtr != "" {
		code = runTarget(ctx, conf, disc, manager, vm)
	} else {
		code = runInteractive(ctx, stop, disc, manager, vm)
	}

	// Leave the media playing on the receiver.
	if manager.CurrentSession() != nil {
		_ = manager.EndSession(false)
	}
	stop()
	if err := cast.Close(); err != nil {
		log.Error().Str("Method", "run").Err(err).Msg("cast close")
	}
	return code
}

// runTarget casts to the -t device, printing every status change, and exits
// after the first outcome.
func runTarget(ctx context.Context, conf *config.Config, disc *devices.Discoverer, manager *session.Manager, vm viewmodel.ViewModel) int {
	devs, err := disc.Discover(ctx, conf.DiscoveryTimeout())
	if err != nil {
		printErr(err)
		return 1
	}
	manager.SetDevicesAvailable(len(devs))

	dev, err := devices.DevicePicker(devs, *targetPtr)
	if err != nil {
		printErr(err)
		return 1
	}

	go func() {
		_ = manager.StartSession(ctx, dev)
	}()

	scr := interactive.NewLineScreen(os.Stdout, nil)
	if !interactive.Follow(ctx, vm, scr) {
		return 1
	}
	return 0
}

func runInteractive(ctx context.Context, stop context.CancelFunc, disc *devices.Discoverer, manager *session.Manager, vm viewmodel.ViewModel) int {
	disc.StartDiscoveryLoop(ctx)

	scr, err := interactive.InitCastScreen(vm, stop)
	if err != nil {
		printErr(err)
		return 1
	}

	scr.MediaURL = mediaURL
	scr.Devices = disc.Devices
	scr.Choose = func(devs []devices.Device) (devices.Device, bool, error) {
		return chooser.Choose(devs)
	}
	scr.Start = func(dev devices.Device) {
		_ = manager.StartSession(ctx, dev)
	}
	scr.Stop = func() {
		_ = manager.EndSession(true)
	}

	if err := scr.InterInit(ctx); err != nil {
		printErr(err)
		return 1
	}
	return 0
}

func openDebugLog(path string) (io.Writer, func(), error) {
	if path == "" {
		return nil, func() {}, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("debug log: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func check(err error) {
	if err != nil {
		printErr(err)
		os.Exit(1)
	}
}

func printErr(err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Encountered error(s): %s\n", err)
}
