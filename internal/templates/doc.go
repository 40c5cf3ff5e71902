// Package templates loads page templates from a content store and renders
// them with html/template.
//
// Templates live in a single directory of the source bucket ("templates/" by
// default). Each object becomes a named template keyed by its base name
// without extension, so "templates/post.html" is rendered as "post" and can
// be included from other templates with {{template "post" .}}.
package templates
