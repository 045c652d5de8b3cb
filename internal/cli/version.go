package cli

import (
	"fmt"
	"runtime/debug"
	"strings"
)

const (
	devVersion         = "dev"
	goDevelMainVersion = "(devel)"
	shortRevisionLen   = 12
)

var readBuildInfo = debug.ReadBuildInfo

// buildDetails is what --version reports about the running binary.
type buildDetails struct {
	Version  string
	Revision string
	Modified bool
	Time     string
}

func (b buildDetails) String() string {
	line := appName + " " + b.Version
	extras := make([]string, 0, 2)
	if b.Revision != "" && !strings.HasPrefix(b.Version, b.Revision) {
		commit := "commit " + b.Revision
		if b.Modified {
			commit += "-dirty"
		}
		extras = append(extras, commit)
	}
	if b.Time != "" {
		extras = append(extras, "built "+b.Time)
	}
	if len(extras) == 0 {
		return line
	}
	return fmt.Sprintf("%s (%s)", line, strings.Join(extras, ", "))
}

// resolveBuild prefers a linker-injected version, then the module version,
// then the VCS revision stamped by the go tool.
func resolveBuild(injected string) buildDetails {
	details := buildDetails{Version: strings.TrimSpace(injected)}
	if info, ok := readBuildInfo(); ok && info != nil {
		for _, setting := range info.Settings {
			value := strings.TrimSpace(setting.Value)
			switch setting.Key {
			case "vcs.revision":
				details.Revision = value
			case "vcs.modified":
				details.Modified = strings.EqualFold(value, "true")
			case "vcs.time":
				details.Time = value
			}
		}
		if len(details.Revision) > shortRevisionLen {
			details.Revision = details.Revision[:shortRevisionLen]
		}
		if details.Version == "" || details.Version == devVersion {
			if module := strings.TrimSpace(info.Main.Version); module != "" && module != goDevelMainVersion {
				details.Version = module
			} else if details.Revision != "" {
				details.Version = details.Revision
				if details.Modified {
					details.Version += "-dirty"
				}
			}
		}
	}
	if details.Version == "" {
		details.Version = devVersion
	}
	return details
}
