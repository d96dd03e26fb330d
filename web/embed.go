// Package web embeds the dashboard templates and static assets.
package web

import "embed"

// TemplatesFS holds the server-rendered pages and htmx partials.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the stylesheet and the speech and geolocation script.
//
//go:embed static/*
var StaticFS embed.FS
