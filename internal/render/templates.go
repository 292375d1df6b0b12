package render

import (
	"html/template"
	"strconv"

	"github.com/livetemplate/walkthrough"
)

type optionView struct {
	Value    string
	Selected bool
}

// widgetView is the template data for one widget form.
type widgetView struct {
	PageID    string
	ID        string
	Kind      string
	Label     string
	Help      string
	Value     string
	Min       string
	Max       string
	Step      string
	MaxLength int
	Checked   bool
	Options   []optionView
}

func newWidgetView(pageID string, w *walkthrough.WidgetView) widgetView {
	spec := w.Spec
	v := widgetView{
		PageID:    pageID,
		ID:        w.ID,
		Kind:      string(spec.Kind),
		Label:     spec.Label,
		Help:      spec.Help,
		Value:     walkthrough.FormatValue(w.Value),
		Step:      "any",
		MaxLength: spec.MaxLength,
	}
	if spec.Min != nil {
		v.Min = walkthrough.FormatValue(*spec.Min)
	}
	if spec.Max != nil {
		v.Max = walkthrough.FormatValue(*spec.Max)
	}
	if spec.Step > 0 {
		v.Step = strconv.FormatFloat(spec.Step, 'f', -1, 64)
	}
	if b, ok := w.Value.(bool); ok {
		v.Checked = b
	}
	for _, opt := range spec.Options {
		v.Options = append(v.Options, optionView{Value: opt, Selected: opt == v.Value})
	}
	return v
}

var templates = template.Must(template.New("render").Parse(`
{{define "widget"}}<form class="wt-widget wt-widget-{{.Kind}}" id="{{.ID}}" method="post" action="/_widget" data-block="{{.ID}}" data-kind="{{.Kind}}">
<input type="hidden" name="page" value="{{.PageID}}"><input type="hidden" name="block" value="{{.ID}}">
{{- if eq .Kind "checkbox"}}
<label><input type="hidden" name="value" value="off"><input type="checkbox" name="value" value="on"{{if .Checked}} checked{{end}}> {{.Label}}</label>
{{- else if eq .Kind "radio"}}
<fieldset><legend>{{.Label}}</legend>
{{- range .Options}}
<label><input type="radio" name="value" value="{{.Value}}"{{if .Selected}} checked{{end}}> {{.Value}}</label>
{{- end}}
</fieldset>
{{- else}}
<label for="{{.ID}}-input">{{.Label}}</label>
{{- if eq .Kind "number"}}
<input type="number" id="{{.ID}}-input" name="value" value="{{.Value}}"{{with .Min}} min="{{.}}"{{end}}{{with .Max}} max="{{.}}"{{end}} step="{{.Step}}">
{{- else if eq .Kind "slider"}}
<input type="range" id="{{.ID}}-input" name="value" value="{{.Value}}" min="{{.Min}}" max="{{.Max}}" step="{{.Step}}">
{{- else if eq .Kind "textarea"}}
<textarea id="{{.ID}}-input" name="value" rows="4"{{with .MaxLength}} maxlength="{{.}}"{{end}}>{{.Value}}</textarea>
{{- else if eq .Kind "select"}}
<select id="{{.ID}}-input" name="value">
{{- range .Options}}<option value="{{.Value}}"{{if .Selected}} selected{{end}}>{{.Value}}</option>{{end -}}
</select>
{{- else}}
<input type="text" id="{{.ID}}-input" name="value" value="{{.Value}}"{{with .MaxLength}} maxlength="{{.}}"{{end}}>
{{- end}}
{{- end}}
<button type="submit" class="wt-apply">Apply</button>
{{- with .Help}}
<p class="wt-help">{{.}}</p>
{{- end}}
<p class="wt-value">Current value: <output for="{{.ID}}-input">{{.Value}}</output></p>
</form>
{{end}}

{{define "page"}}<!DOCTYPE html>
<html lang="en" data-theme="{{.Theme}}">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
{{- with .Description}}
<meta name="description" content="{{.}}">
{{- end}}
<link rel="stylesheet" href="/assets/walkthrough.css">
<link rel="stylesheet" href="/assets/code.css">
<style>:root { {{.Vars}} }</style>
</head>
<body data-page="{{.PageID}}"{{if .LiveReload}} data-live-reload="true"{{end}}>
{{- if .Nav}}
<nav class="wt-nav">
{{- range .Nav}}
<a href="{{.Path}}"{{if .Active}} class="active" aria-current="page"{{end}}>{{.Title}}</a>
{{- end}}
</nav>
{{- end}}
<main id="wt-document" data-page="{{.PageID}}">
{{.Body}}
</main>
<form class="wt-reset" method="post" action="/_widget">
<input type="hidden" name="page" value="{{.PageID}}"><input type="hidden" name="block" value="{{.ResetPage}}"><input type="hidden" name="action" value="reset">
<button type="submit">Reset widgets</button>
</form>
<script src="/assets/walkthrough.js"></script>
</body>
</html>
{{end}}
`))
