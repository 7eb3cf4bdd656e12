// Package templates embeds the WireGuard config templates rendered by the relay.
package templates

import "embed"

//go:embed *.conf
var FS embed.FS
