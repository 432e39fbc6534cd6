package settings

// overwritten at build time with -ldflags "-X ...settings.version="
var version = "dev"
