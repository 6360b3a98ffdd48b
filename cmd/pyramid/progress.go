package main

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
)

// progressBar reports tile progress on the terminal. Every Start begins
// a new bar.
type progressBar struct {
	description string
	bar         *progressbar.ProgressBar
}

func newProgressBar(description string) *progressBar {
	return &progressBar{description: description}
}

func (p *progressBar) Start(total int) {
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetDescription(p.description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts())
}

func (p *progressBar) Add(n int) {
	if p.bar != nil {
		p.bar.Add(n)
	}
}

func (p *progressBar) Finish() {
	if p.bar != nil {
		p.bar.Finish()
		fmt.Println()
	}
}
