package main

import (
	"runtime"
	"testing"

	"castplay.app/castplay/internal/config"
	"castplay.app/castplay/internal/usecase"
)

func TestCheckUflag(t *testing.T) {
	tests := []struct {
		name    string
		arg     string
		conf    string
		want    string
		wantErr bool
	}{
		{name: "built-in", want: usecase.VideoLink},
		{name: "config", conf: "https://example.com/conf.mp4", want: "https://example.com/conf.mp4"},
		{name: "flag wins", arg: "https://example.com/flag.mp4", conf: "https://example.com/conf.mp4", want: "https://example.com/flag.mp4"},
		{name: "invalid", arg: "not a url", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			old := *urlArg
			*urlArg = tt.arg
			t.Cleanup(func() { *urlArg = old })

			conf := config.Default()
			conf.MediaURL = tt.conf

			err := checkUflag(conf)
			if (err != nil) != tt.wantErr {
				t.Fatalf("checkUflag() error = %v, wantErr %t", err, tt.wantErr)
			}
			if !tt.wantErr && mediaURL != tt.want {
				t.Fatalf("mediaURL = %q, want %q", mediaURL, tt.want)
			}
		})
	}
}

func TestListAndTargetConflict(t *testing.T) {
	old := *targetPtr
	*targetPtr = "TV"
	t.Cleanup(func() { *targetPtr = old })

	if err := listFlagFunction(config.Default()); err == nil {
		t.Fatal("listFlagFunction() expected error with -t set")
	}
}

func TestRememberUflag(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_CONFIG_HOME only drives os.UserConfigDir on linux")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	old := *urlArg
	t.Cleanup(func() { *urlArg = old })

	conf, err := config.GetAppConfig()
	if err != nil {
		t.Fatalf("GetAppConfig() error: %v", err)
	}

	*urlArg = ""
	if err := rememberUflag(conf); err != nil {
		t.Fatalf("rememberUflag() error: %v", err)
	}
	if conf.MediaURL != "" {
		t.Fatalf("MediaURL = %q without -u, want empty", conf.MediaURL)
	}

	*urlArg = "https://example.com/flag.mp4"
	if err := rememberUflag(conf); err != nil {
		t.Fatalf("rememberUflag() error: %v", err)
	}

	saved, err := config.GetAppConfig()
	if err != nil {
		t.Fatalf("GetAppConfig() error: %v", err)
	}
	if saved.MediaURL != *urlArg {
		t.Fatalf("saved MediaURL = %q, want %q", saved.MediaURL, *urlArg)
	}
}
