// ABOUTME: Package documentation for locally stored settings
// ABOUTME: TOML overrides for the backend endpoint

// Package settings persists user endpoint overrides in a TOML file
// under the user's config directory. A missing file loads as zero
// settings so a first run needs no setup. File implements the remote
// client's Overrides interface, placing the stored values between an
// explicit argument and the built-in default in the endpoint fallback
// chain.
package settings
