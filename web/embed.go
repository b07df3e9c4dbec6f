// Package web embeds the site's page templates and browser assets.
package web

import (
	"embed"
	"io/fs"
)

//go:embed static templates
var content embed.FS

func mustSub(dir string) fs.FS {
	sub, err := fs.Sub(content, dir)
	if err != nil {
		panic("web: embedded directory " + dir + ": " + err.Error())
	}
	return sub
}

// StaticFS returns the stylesheet and scripts served under /static/.
func StaticFS() fs.FS { return mustSub("static") }

// TemplatesFS returns the page templates. layout.html wraps every page and
// inquiry_form.html is shared by the home and inquiry pages.
func TemplatesFS() fs.FS { return mustSub("templates") }
