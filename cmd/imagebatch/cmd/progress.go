package cmd

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/dbsmedya/imagebatch/internal/engine"
	"github.com/dbsmedya/imagebatch/internal/logger"
)

// newProgressSink draws a progress bar when w is a terminal and logs
// progress lines otherwise.
func newProgressSink(w io.Writer, description string, log *logger.Logger) engine.Sink {
	if f, ok := w.(*os.File); ok && isTerminal(f) {
		return newBarSink(f, description)
	}
	return &logSink{logger: log}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type barSink struct {
	bar *progressbar.ProgressBar
}

func newBarSink(w io.Writer, description string) *barSink {
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() { io.WriteString(w, "\n") }),
	)
	return &barSink{bar: bar}
}

func (s *barSink) Report(r engine.Report) {
	if r.Message != "" {
		s.bar.Describe(r.Message)
	}
	_ = s.bar.Set(r.PercentDone)
	if r.IsFinal {
		_ = s.bar.Finish()
	}
}

type logSink struct {
	logger *logger.Logger
}

func (s *logSink) Report(r engine.Report) {
	switch {
	case r.IsFinal:
		s.logger.Infow("Run finished", "message", r.Message)
	case r.Indeterminate:
		s.logger.Infow(r.Message)
	default:
		s.logger.Infow("Progress", "percent", r.PercentDone, "message", r.Message)
	}
}
