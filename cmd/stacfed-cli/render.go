package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	stacfed "github.com/kailas-cloud/stacfed/pkg/sdk"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
	cyan   = color.New(color.FgCyan)
	bold   = color.New(color.Bold)
)

// printer writes results to the command's stdout and diagnostics to its stderr.
type printer struct {
	out    io.Writer
	errOut io.Writer
	format string
}

func newPrinter(cmd *cobra.Command, format string) *printer {
	return &printer{out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr(), format: format}
}

func (p *printer) warn(msg string) {
	yellow.Fprintln(p.errOut, "warning:", msg)
}

func (p *printer) table() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(p.out)
	t.SetStyle(table.StyleLight)
	return t
}

type jsonPage struct {
	Collections []stacfed.Record      `json:"collections"`
	Sources     []stacfed.SourceStats `json:"sources"`
	Unsourced   int                   `json:"unsourced"`
	Next        string                `json:"next,omitempty"`
}

// page prints the current results of the session.
func (p *printer) page(sess *stacfed.Session, details bool) error {
	if p.format == outputJSON {
		return json.NewEncoder(p.out).Encode(jsonPage{
			Collections: sess.Results(),
			Sources:     sess.Sources(),
			Unsourced:   sess.Unsourced(),
			Next:        sess.NextLink(),
		})
	}

	t := p.table()
	header := table.Row{"ID", "Title", "Source"}
	if details {
		header = append(header, "Temporal", "Extent")
	}
	t.AppendHeader(header)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Title", WidthMax: 48},
		{Name: "Extent", WidthMax: 40},
	})

	for _, rec := range sess.Results() {
		source, _ := rec.SourceURL()
		row := table.Row{rec.ID(), rec.Title(), source}
		if details {
			d := stacfed.Details(rec)
			row = append(row, d.Temporal, extentCell(d))
		}
		t.AppendRow(row)
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d collections", len(sess.Results()))})
	t.Render()

	for _, s := range sess.Sources() {
		if s.Rejected > 0 {
			fmt.Fprintf(p.out, "%s: %d hidden by the catalog filter\n", s.URL, s.Rejected)
		}
	}
	if n := sess.Unsourced(); n > 0 {
		fmt.Fprintf(p.out, "%d collections without a source catalog were dropped\n", n)
	}
	return nil
}

func extentCell(d stacfed.RecordDetails) string {
	if d.Bounds == nil {
		return d.ExtentMessage
	}
	b := d.Bounds
	cell := fmt.Sprintf("%.2f,%.2f,%.2f,%.2f", b.West, b.South, b.East, b.North)
	if len(d.Extents) > 1 {
		cell += fmt.Sprintf(" (%d boxes)", len(d.Extents))
	}
	return cell
}

// footer prints warnings and the next link after the last page.
func (p *printer) footer(sess *stacfed.Session) {
	for _, w := range sess.Warnings() {
		p.warn(w)
	}
	if p.format != outputJSON && sess.HasNext() {
		cyan.Fprintln(p.out, "next:", sess.NextLink())
	}
}

func (p *printer) health(h stacfed.Health) error {
	if p.format == outputJSON {
		enc := json.NewEncoder(p.out)
		enc.SetIndent("", "  ")
		return enc.Encode(h)
	}

	status := green
	if !h.Up() {
		status = yellow
	}
	bold.Fprint(p.out, "status: ")
	status.Fprintln(p.out, h.Status)
	if h.Cache != "" {
		fmt.Fprintln(p.out, "cache:", h.Cache)
	}

	t := p.table()
	t.AppendHeader(table.Row{"API", "Healthy", "Collection search", "Free text", "Message"})
	t.SortBy([]table.SortBy{{Name: "API", Mode: table.Asc}})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Healthy", Align: text.AlignCenter},
		{Name: "Collection search", Align: text.AlignCenter},
		{Name: "Free text", Align: text.AlignCenter},
	})
	for api, u := range h.Upstreams {
		caps := u.Capabilities()
		t.AppendRow(table.Row{api, mark(u.Healthy), mark(caps.CollectionSearch), mark(caps.FreeText), u.Message})
	}
	t.Render()
	return nil
}

func (p *printer) apis(apis stacfed.APIConfigs) {
	t := p.table()
	t.AppendHeader(table.Row{"URL", "Kind", "Filter"})
	for _, a := range apis {
		filter := a.FilterDescription
		if filter == "" && a.HasFilter() {
			filter = "(undescribed)"
		}
		t.AppendRow(table.Row{a.URL, a.Kind, filter})
	}
	t.Render()
}

func mark(ok bool) string {
	if ok {
		return green.Sprint("yes")
	}
	return red.Sprint("no")
}
