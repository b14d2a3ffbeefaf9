// Package hint renders copy-paste code snippets that reproduce a search
// against the collection's own catalog.
package hint

import (
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/kailas-cloud/stacfed/internal/domain/extent"
	"github.com/kailas-cloud/stacfed/internal/domain/temporal"
)

// Lang selects which snippets are produced.
type Lang string

const (
	LangNone   Lang = ""
	LangPython Lang = "python"
	LangR      Lang = "r"
)

// ParseLang validates a hint_lang value.
func ParseLang(s string) (Lang, error) {
	switch l := Lang(strings.ToLower(strings.TrimSpace(s))); l {
	case LangNone, LangPython, LangR:
		return l, nil
	}
	return LangNone, fmt.Errorf("unsupported hint language %q (use python or r)", s)
}

// Package is the client library a snippet targets.
type Package string

const (
	PystacClient Package = "pystac-client"
	PythonCMR    Package = "python-cmr"
	Earthaccess  Package = "earthaccess"
	Rstac        Package = "rstac"
)

// CMROps is the production CMR search endpoint; earthaccess only talks to it.
const CMROps = "https://cmr.earthdata.nasa.gov/search/"

// Params describe the search to reproduce.
type Params struct {
	BaseURL      string
	CollectionID string
	BBox         *extent.BBox
	Interval     *temporal.Interval
}

var templates = template.Must(template.New("hints").Funcs(template.FuncMap{
	"coords":  coords,
	"rfc3339": rfc3339,
	"pyTime":  pyTime,
}).Parse(`
{{- define "pystac-client" -}}
# set up an item search with pystac_client
import pystac_client

catalog = pystac_client.Client.open("{{.BaseURL}}")

# get a sample of 10 items
search = catalog.search(
    collections="{{.CollectionID}}",
{{- if .BBox}}
    bbox=({{coords .BBox}}),
{{- end}}
{{- if .Interval}}
    datetime="{{rfc3339 .Interval}}",
{{- end}}
    max_items=10,
)
items = search.items()
{{- if not (or .BBox .Interval)}}

# consider using the bbox and/or datetime filters for a more targeted search
{{- end}}
{{end -}}

{{- define "python-cmr" -}}
# set up a granule search with python-cmr
from cmr import GranuleQuery

# get a sample of 10 granules
search = GranuleQuery(mode="{{.BaseURL}}").short_name("{{.CollectionID}}")
{{- if .BBox}}.bounding_box({{coords .BBox}}){{end}}
{{- if .Interval}}.temporal({{pyTime .Interval.Start}}, {{pyTime .Interval.End}}){{end}}
granules = search.get(10)
{{- if not (or .BBox .Interval)}}

# consider applying a bounding box and/or temporal filter for a more targeted search
{{- end}}
{{end -}}

{{- define "earthaccess" -}}
# set up a granule search with earthaccess
import earthaccess

earthaccess.login()

# get a sample of 10 granules
results = earthaccess.search_data(
    short_name="{{.CollectionID}}",
{{- if .BBox}}
    bounding_box=({{coords .BBox}}),
{{- end}}
{{- if .Interval}}
    temporal=({{pyTime .Interval.Start}}, {{pyTime .Interval.End}}),
{{- end}}
    count=10,
)
{{- if not (or .BBox .Interval)}}

# consider using the bounding_box and/or temporal arguments for a more targeted search
{{- end}}
{{end -}}

{{- define "rstac" -}}
# set up an item search with rstac
library(rstac)

catalog <- stac("{{.BaseURL}}")

# get a sample of 10 items
items <- catalog |>
  stac_search(
    collections = "{{.CollectionID}}",
{{- if .BBox}}
    bbox = c({{coords .BBox}}),
{{- end}}
{{- if .Interval}}
    datetime = "{{rfc3339 .Interval}}",
{{- end}}
    limit = 10
  ) |>
  get_request()
{{- if not (or .BBox .Interval)}}

# consider using the bbox and/or datetime args for a more targeted search
{{- end}}
{{end -}}
`))

// Render produces one snippet.
func Render(pkg Package, p Params) (string, error) {
	var sb strings.Builder
	if err := templates.ExecuteTemplate(&sb, string(pkg), p); err != nil {
		return "", fmt.Errorf("render %s hint: %w", pkg, err)
	}
	return sb.String(), nil
}

// STAC returns the snippets for a STAC API collection.
func STAC(lang Lang, p Params) (map[Package]string, error) {
	switch lang {
	case LangPython:
		return renderAll(p, PystacClient)
	case LangR:
		return renderAll(p, Rstac)
	}
	return nil, nil
}

// CMR returns the snippets for a CMR collection. stacURL and stacID address the
// same collection through CMR-STAC; shortName addresses it through CMR itself.
func CMR(lang Lang, cmrURL, shortName, stacURL, stacID string, bbox *extent.BBox, iv *temporal.Interval) (map[Package]string, error) {
	stac := Params{BaseURL: stacURL, CollectionID: stacID, BBox: bbox, Interval: iv}
	native := Params{BaseURL: cmrURL, CollectionID: strings.TrimSpace(shortName), BBox: bbox, Interval: iv}

	switch lang {
	case LangR:
		return renderAll(stac, Rstac)
	case LangPython:
	default:
		return nil, nil
	}

	out, err := renderAll(stac, PystacClient)
	if err != nil {
		return nil, err
	}
	more := []Package{PythonCMR}
	if cmrURL == CMROps {
		more = append(more, Earthaccess)
	}
	extra, err := renderAll(native, more...)
	if err != nil {
		return nil, err
	}
	for k, v := range extra {
		out[k] = v
	}
	return out, nil
}

// CMRSTACLocation maps a CMR search collection onto its CMR-STAC catalog and id.
func CMRSTACLocation(cmrURL, dataCenter, shortName, version string) (string, string) {
	stacURL := strings.Replace(cmrURL, "/search/", "/stac/", 1) + dataCenter
	id := shortName
	if version != "" && !strings.EqualFold(version, "not provided") {
		id += "_" + version
	}
	return stacURL, id
}

func renderAll(p Params, pkgs ...Package) (map[Package]string, error) {
	out := make(map[Package]string, len(pkgs))
	for _, pkg := range pkgs {
		s, err := Render(pkg, p)
		if err != nil {
			return nil, err
		}
		out[pkg] = s
	}
	return out, nil
}

func coords(b *extent.BBox) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, ", ")
}

func rfc3339(iv *temporal.Interval) string {
	return fmtBound(iv.Start, "..") + "/" + fmtBound(iv.End, "..")
}

func pyTime(t *time.Time) string {
	if t == nil {
		return "None"
	}
	return `"` + fmtBound(t, "") + `"`
}

func fmtBound(t *time.Time, open string) string {
	if t == nil {
		return open
	}
	return t.UTC().Format("2006-01-02T15:04:05Z")
}
