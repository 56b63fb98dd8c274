// Package viewmodel exposes the cast use-case state to a screen.
package viewmodel

import (
	"io"
	"sync"

	"github.com/rs/zerolog"

	"castplay.app/castplay/internal/usecase"
)

// ViewModel is what a screen renders from.
type ViewModel interface {
	Status() string
	Toast() (string, bool)
	Subscribe() (<-chan struct{}, func())
	ClearToast()
}

// CastPlay is the ViewModel backed by the cast use-case.
type CastPlay struct {
	cast *usecase.Cast

	Logger      zerolog.Logger
	LogOutput   io.Writer
	initLogOnce sync.Once
}

var _ ViewModel = (*CastPlay)(nil)

func NewCastPlay(cast *usecase.Cast) *CastPlay {
	return &CastPlay{cast: cast, Logger: zerolog.Nop()}
}

func (v *CastPlay) Log() *zerolog.Logger {
	if v.LogOutput != nil {
		v.initLogOnce.Do(func() {
			v.Logger = zerolog.New(v.LogOutput).With().Timestamp().Logger()
		})
	}
	return &v.Logger
}

func (v *CastPlay) Status() string { return v.cast.Status() }

func (v *CastPlay) Toast() (string, bool) { return v.cast.Toast() }

func (v *CastPlay) Subscribe() (<-chan struct{}, func()) { return v.cast.Subscribe() }

// ClearToast marks the pending toast as shown.
func (v *CastPlay) ClearToast() {
	v.cast.ClearToast()
	v.Log().Debug().Str("Method", "ClearToast").Msg("toast message cleared")
}
