package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"runtime"
	"time"

	"github.com/pkg/errors"

	"castplay.app/castplay/devices"
	"castplay.app/castplay/internal/config"
	"castplay.app/castplay/internal/usecase"
)

func listFlagFunction(conf *config.Config) error {
	if *targetPtr != "" {
		return errors.New("-l and -t can't be used together")
	}

	ctx, cancel := context.WithTimeout(context.Background(), conf.DiscoveryTimeout()+time.Second)
	defer cancel()

	devs, err := devices.NewDiscoverer().Discover(ctx, conf.DiscoveryTimeout())
	if err != nil {
		return err
	}
	fmt.Println()

	boldStart := ""
	boldEnd := ""
	if runtime.GOOS == "linux" {
		boldStart = "\033[1m"
		boldEnd = "\033[0m"
	}

	for i, dev := range devs {
		fmt.Printf("%sDevice %v%s\n", boldStart, i+1, boldEnd)
		fmt.Printf("%s--------%s\n", boldStart, boldEnd)
		fmt.Printf("%sName:%s  %s\n", boldStart, boldEnd, dev.Name)
		fmt.Printf("%sModel:%s %s\n", boldStart, boldEnd, dev.Model)
		fmt.Printf("%sURL:%s   %s\n", boldStart, boldEnd, dev.Addr)
		if dev.IsAudioOnly {
			fmt.Printf("%sAudio only%s\n", boldStart, boldEnd)
		}
		fmt.Println()
	}

	return nil
}

func checkflags(conf *config.Config) (exit bool, err error) {
	checkVerflag()

	if err := checkUflag(conf); err != nil {
		return false, errors.Wrap(err, "checkflags error")
	}

	if err := rememberUflag(conf); err != nil {
		return false, errors.Wrap(err, "checkflags error")
	}

	list, err := checkLflag(conf)
	if err != nil {
		return false, errors.Wrap(err, "checkflags error")
	}

	if list {
		return true, nil
	}

	return false, nil
}

// checkUflag picks the media URL: -u, then the config file, then the
// built-in test video.
func checkUflag(conf *config.Config) error {
	switch {
	case *urlArg != "":
		mediaURL = *urlArg
	case conf.MediaURL != "":
		mediaURL = conf.MediaURL
	default:
		mediaURL = usecase.VideoLink
	}

	if _, err := url.ParseRequestURI(mediaURL); err != nil {
		return errors.Wrap(err, "checkUflag parse error")
	}

	return nil
}

// rememberUflag stores a -u URL in the config file so later runs cast it
// without the flag.
func rememberUflag(conf *config.Config) error {
	if *urlArg == "" || *urlArg == conf.MediaURL {
		return nil
	}

	conf.MediaURL = *urlArg
	if err := conf.SaveAppConfig(); err != nil {
		return errors.Wrap(err, "rememberUflag error")
	}

	return nil
}

func checkLflag(conf *config.Config) (bool, error) {
	if *listPtr {
		if err := listFlagFunction(conf); err != nil {
			return false, errors.Wrap(err, "checkLflag error")
		}
		return true, nil
	}

	return false, nil
}

func checkVerflag() {
	if *versionPtr {
		fmt.Printf("castplay Version: %s, ", version)
		fmt.Printf("Build: %s\n", build)
		os.Exit(0)
	}
}
