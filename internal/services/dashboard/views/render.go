package views

import (
	"bytes"
	"embed"
	"html/template"
	"io"

	"github.com/pkg/errors"
)

// Template names.
const (
	TplPage          = "page"
	TplError         = "error"
	TplYield         = "yield"
	TplCrop          = "crop"
	TplClimate       = "climate"
	TplHealth        = "health"
	TplRecord        = "record"
	TplTrace         = "trace"
	TplChat          = "chat"
	TplWeather       = "weather"
	TplProgress      = "progress"
	TplAnalytics     = "analytics"
	TplLive          = "live"
	TplNotifications = "notifications"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("views").Funcs(template.FuncMap{
	"fixed1": Fixed1,
}).ParseFS(templateFS, "templates/*.html"))

// Render executes the named template into w. The output is buffered so a
// failing template never leaves a half written fragment.
func Render(w io.Writer, name string, data interface{}) error {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return errors.Wrapf(err, "failed to render %s", name)
	}
	_, err := buf.WriteTo(w)
	return err
}

// RenderString is Render into a string, used for fragments pushed over the
// websocket.
func RenderString(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := Render(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
