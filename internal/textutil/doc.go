// Package textutil provides small text helpers shared by the CLI and the
// output layout: filesystem-safe names, slugs and display casing.
package textutil
