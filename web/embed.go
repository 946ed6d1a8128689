// Package web carries the page templates and browser assets compiled into
// the budgets server.
package web

import "embed"

// TemplatesFS holds the layout, shared partials and one file per page.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

//go:embed static/app.css static/app.js
var StaticFS embed.FS
