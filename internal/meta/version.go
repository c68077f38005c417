package meta

import (
	"fmt"
	"runtime"

	"go.uber.org/zap"
)

// Set at link time, e.g.
//
//	go build -ldflags "-X github.com/luma/sprt/internal/meta.Version=v1.2.0"
var (
	Version string

	// Commit the binary was built from
	Commit string

	Branch string

	// BuiltAt is when the binary was built, in UTC
	BuiltAt string
)

// Info identifies an sprt binary. Fields that were not set at link time are
// empty.
type Info struct {
	Version  string
	Commit   string
	Branch   string
	BuiltAt  string
	Go       string
	Platform string
}

func GetInfo() Info {
	return Info{
		Version:  Version,
		Commit:   Commit,
		Branch:   Branch,
		BuiltAt:  BuiltAt,
		Go:       runtime.Version(),
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// DisplayVersion is Version, or "dev" for binaries built without one
func (i Info) DisplayVersion() string {
	if i.Version == "" {
		return "dev"
	}

	return i.Version
}

func (i Info) String() string {
	return fmt.Sprintf("sprt %s (commit %s, branch %s, built %s) %s %s",
		i.DisplayVersion(), orUnknown(i.Commit), orUnknown(i.Branch), orUnknown(i.BuiltAt), i.Go, i.Platform)
}

// Fields describes the build for structured logs
func (i Info) Fields() []zap.Field {
	return []zap.Field{
		zap.String("version", i.DisplayVersion()),
		zap.String("commit", orUnknown(i.Commit)),
		zap.String("go", i.Go),
		zap.String("platform", i.Platform),
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}

	return s
}
