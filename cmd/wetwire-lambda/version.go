package main

import "runtime/debug"

// version is set at release time with -ldflags "-X main.version=v1.2.0".
var version = ""

// getVersion prefers the ldflags version, then the module version recorded
// by "go install pkg@version", then "dev" suffixed with the VCS revision
// when the binary was built from a checkout.
func getVersion() string {
	if version != "" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return devVersion(info.Settings)
}

func devVersion(settings []debug.BuildSetting) string {
	v := "dev"
	for _, s := range settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			v += "-" + s.Value[:7]
		}
	}
	for _, s := range settings {
		if s.Key == "vcs.modified" && s.Value == "true" {
			v += "-dirty"
		}
	}
	return v
}
