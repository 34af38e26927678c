package types

// Version is the shipit build version, injected with -ldflags at release time.
var Version = "dev"

// AppName is used for the lock file, env var prefix and user agent.
const AppName = "shipit"
