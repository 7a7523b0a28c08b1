// SPDX-License-Identifier: Apache-2.0

package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
)

// Bar tracks the units of work of a stage.
type Bar interface {
	Add(int) error
	Describe(string)
	Close() error
}

type ProgressBar struct {
	*progressbar.ProgressBar
}

type BarBuilder func(total int, description string) Bar

// NewCountBar returns a bar counting units of work, such as tables
// extracted. It renders on stderr so the run summary on stdout stays clean.
func NewCountBar(total int, description string) Bar {
	return newCountBar(os.Stderr, total, description)
}

func newCountBar(w io.Writer, total int, description string) *ProgressBar {
	return &ProgressBar{
		ProgressBar: progressbar.NewOptions(total,
			progressbar.OptionSetWriter(w),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("tables"),
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionSetWidth(30),
			progressbar.OptionSetPredictTime(total > 1),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetDescription(description),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprintln(w)
			}),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[cyan]#[reset]",
				SaucerHead:    "[cyan]#[reset]",
				SaucerPadding: ".",
				BarStart:      "|",
				BarEnd:        "|",
			})),
	}
}
