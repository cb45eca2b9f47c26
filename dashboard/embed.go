// Package dashboard provides the embedded HTML template of the sensor page.
//
// The template is compiled into the binary so the device needs no asset
// files on disk. It is parsed by the render package; users of envboard
// should not need to interact with this package directly.
package dashboard

import "embed"

// Assets is an embedded filesystem containing the dashboard template.
//
// The filesystem structure is:
//
//	assets/
//	  index.html.tmpl - html/template source of the page, inline CSS and
//	                    Chart.js bootstrap
//
//go:embed assets/*
var Assets embed.FS
