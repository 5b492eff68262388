package nftkit

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

var log = zerolog.New(nil).Output(zerolog.ConsoleWriter{
	Out:        os.Stderr,
	TimeFormat: time.TimeOnly,
}).With().Timestamp().Logger()

func Log() *zerolog.Logger {
	return &log
}

func init() {
	zerolog.TimeFieldFormat = time.TimeOnly
	zerolog.ErrorStackMarshaler = MarshalStack
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// SetLogLevel parses one of trace|debug|info|warn|error|fatal and applies it
// process wide.
func SetLogLevel(level string) (err error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return errors.WithStack(err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	return
}

// MarshalStack prints a readable trace to stderr at trace level before
// handing the structured one to zerolog.
func MarshalStack(err error) interface{} {
	if zerolog.GlobalLevel() <= zerolog.TraceLevel {
		if trace := StackTracerMessage(err); trace != "" {
			fmt.Fprint(os.Stderr, trace)
		}
	}
	return pkgerrors.MarshalStack(err)
}

func StackTracerMessage(err error) string {
	type StackTracer interface {
		StackTrace() errors.StackTrace
	}

	var errString string

	if err != nil {
		if stackTracer, isStackTracer := err.(StackTracer); isStackTracer {
			for _, f := range stackTracer.StackTrace() {
				errString += fmt.Sprintf("%+v\n", f)
			}
		}
	}

	return errString
}
