// Package branding holds the product names shown to players and MCP
// clients. Keeping them in one place means a rename touches one file.
package branding

// AppName is the player-facing product name.
const AppName = "Hollowspire"
