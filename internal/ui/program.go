package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/FishWoWater/trellis-blender/internal/discovery"
	"github.com/FishWoWater/trellis-blender/internal/protocol"
)

// Printer writes styled CLI output. Commands that print once and exit
// (send, discover, config show) go through a Printer; the interactive
// console uses Bubble Tea instead.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a new Printer that writes to the given writer.
// If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{
		out:   w,
		width: GetTerminalWidth(),
	}
}

// Width returns the current terminal width used by this printer
func (p *Printer) Width() int {
	return p.width
}

// SetWidth overrides the detected terminal width.
func (p *Printer) SetWidth(width int) {
	p.width = clampWidth(width)
}

// Print writes content to the output
func (p *Printer) Print(content string) {
	_, _ = fmt.Fprint(p.out, content)
}

// Newline prints an empty line
func (p *Printer) Newline() {
	_, _ = fmt.Fprintln(p.out)
}

// PrintHeader prints a banner box
func (p *Printer) PrintHeader(title, command string, params map[string]string) {
	p.Print(NewHeader(title, command, params).SetWidth(p.width).Render())
	p.Newline()
}

// PrintResponse prints a bridge response box
func (p *Printer) PrintResponse(commandType string, resp protocol.Response) {
	p.Print(NewResponseResult(commandType, resp).SetWidth(p.width).Render())
	p.Newline()
}

// PrintSuccess prints a success result box
func (p *Printer) PrintSuccess(title string, details map[string]string) {
	p.Print(NewSuccessResult(title, details).SetWidth(p.width).Render())
	p.Newline()
}

// PrintError prints an error result box with troubleshooting tips
func (p *Printer) PrintError(title string, err error, troubleshooting []string) {
	p.Print(NewFailureResult(title, err, troubleshooting).SetWidth(p.width).Render())
	p.Newline()
}

// PrintBridges prints a discovery listing, or a warning when nothing answered.
func (p *Printer) PrintBridges(bridges []*discovery.Bridge) {
	if len(bridges) == 0 {
		r := NewWarningResult("No bridges found", map[string]string{
			"Service": discovery.ServiceType,
			"Hint":    "start one with: trellis-bridge serve --advertise",
		})
		p.Print(r.SetWidth(p.width).Render())
		p.Newline()
		return
	}

	var b strings.Builder
	for i, br := range bridges {
		fmt.Fprintf(&b, "%s %s\n", SuccessTitleStyle.Render(fmt.Sprintf("%2d.", i+1)), ResultValueStyle.Render(br.String()))
		if fr := br.GetMetadata("framing"); fr != "" {
			fmt.Fprintf(&b, "    %s %s\n", ResultKeyStyle.Render("framing:"), fr)
		}
		if mk := br.GetMetadata("marketplace"); mk != "" {
			fmt.Fprintf(&b, "    %s %s\n", ResultKeyStyle.Render("marketplace:"), mk)
		}
	}
	p.Print(b.String())
}
