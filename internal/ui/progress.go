package ui

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
)

// ProgressBar creates and manages progress bars
type ProgressBar struct {
	bar *progressbar.ProgressBar
}

// NewProgressBar creates a new progress bar for count source files
func NewProgressBar(count int) *ProgressBar {
	bar := progressbar.NewOptions(count,
		progressbar.OptionSetDescription(describe(0, 0)),
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        color.CyanString("█"),
			SaucerHead:    color.CyanString("█"),
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)

	return &ProgressBar{bar: bar}
}

func describe(found, failed int) string {
	return color.CyanString("Discovering tests: ") +
		color.GreenString("[found: %d", found) +
		" | " +
		color.RedString("failed: %d]", failed)
}

// Update updates the progress bar with the number of processed files and
// the running totals of discovered tests and failed files
func (p *ProgressBar) Update(done, found, failed int) {
	p.bar.Set(done)
	p.bar.Describe(describe(found, failed))
}

// Finish completes the progress bar
func (p *ProgressBar) Finish() {
	p.bar.Finish()
}

// Spinner shows an indeterminate wait, e.g. for a runner result file
type Spinner struct {
	bar *progressbar.ProgressBar
}

// NewSpinner creates a spinner with the given description
func NewSpinner(description string) *Spinner {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionClearOnFinish(),
	)
	return &Spinner{bar: bar}
}

// Tick advances the spinner animation
func (s *Spinner) Tick() {
	s.bar.Add(1)
}

// Finish clears the spinner
func (s *Spinner) Finish() {
	s.bar.Finish()
}
