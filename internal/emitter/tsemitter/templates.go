package tsemitter

import (
	"bytes"
	"embed"
	"encoding/json"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates *template.Template

func init() {
	var err error
	templates, err = template.New("").
		Funcs(templateFuncs).
		ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		panic(err)
	}
}

var templateFuncs = template.FuncMap{
	"json": func(v any) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	},
	"upper":   strings.ToUpper,
	"envName": EnvName,
}

func executeTemplate(name string, data any) string {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		// Templates are embedded and data is fully under our control; an
		// execution failure is a programming error.
		panic("tsemitter: render " + name + ": " + err.Error())
	}
	return buf.String()
}

func renderPackageJSON(data *templateData) string {
	return executeTemplate("package.json.tmpl", data)
}

func renderTSConfig() string {
	return executeTemplate("tsconfig.json.tmpl", nil)
}

func renderIndexTS(data *templateData) string {
	return executeTemplate("index.ts.tmpl", data)
}

func renderTransportTS(data *templateData) string {
	return executeTemplate("transport.ts.tmpl", data)
}

func renderEnvExample(data *templateData) string {
	return executeTemplate("env.example.tmpl", data)
}

func renderReadme(data *templateData) string {
	return executeTemplate("readme.md.tmpl", data)
}
