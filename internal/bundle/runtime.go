package bundle

import (
	"fmt"
	"sort"
	"strings"
)

// Arch is a function CPU architecture, named the way the deploy platform names it.
type Arch string

const (
	ArchX86_64 Arch = "x86_64"
	ArchARM64  Arch = "arm64"
)

// ParseArch accepts platform and Go spellings of an architecture.
// An empty string yields x86_64.
func ParseArch(s string) (Arch, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "x86_64", "amd64":
		return ArchX86_64, nil
	case "arm64", "aarch64":
		return ArchARM64, nil
	default:
		return "", fmt.Errorf("unsupported architecture %q", s)
	}
}

// GOARCH returns the OCI/Go architecture name.
func (a Arch) GOARCH() string {
	if a == ArchARM64 {
		return "arm64"
	}
	return "amd64"
}

// Platform returns the OCI platform string, e.g. "linux/arm64".
func (a Arch) Platform() string {
	return "linux/" + a.GOARCH()
}

// Family groups runtimes sharing a dependency toolchain.
type Family string

const (
	FamilyPython Family = "python"
	FamilyNode   Family = "nodejs"
)

// Exit codes of the composite build instruction. Anything else non-zero
// counts as an install failure.
const (
	exitInstallFailed = 10
	exitCopyFailed    = 11
)

// Runtime describes a supported function runtime and how its dependencies
// are installed inside the build image.
type Runtime struct {
	ID       string
	Family   Family
	Manifest string
	Image    string
}

var runtimes = map[string]Runtime{}

func init() {
	for _, v := range []string{"3.9", "3.10", "3.11", "3.12", "3.13"} {
		register(Runtime{ID: "python" + v, Family: FamilyPython, Manifest: "requirements.txt"})
	}
	for _, v := range []string{"18.x", "20.x", "22.x"} {
		register(Runtime{ID: "nodejs" + v, Family: FamilyNode, Manifest: "package.json"})
	}
}

func register(r Runtime) {
	r.Image = "public.ecr.aws/sam/build-" + r.ID
	runtimes[r.ID] = r
}

// LookupRuntime returns the runtime with the given identifier.
func LookupRuntime(id string) (Runtime, bool) {
	r, ok := runtimes[id]
	return r, ok
}

// Runtimes returns all supported runtime identifiers, sorted.
func Runtimes() []string {
	ids := make([]string, 0, len(runtimes))
	for id := range runtimes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MatchesImage reports whether a build image reference is built for this
// runtime. The image's repository name must carry the runtime identifier,
// which holds for the public build images and for mirrors of them.
func (r Runtime) MatchesImage(ref string) bool {
	name := ref
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.IndexAny(name, ":@"); i >= 0 {
		name = name[:i]
	}
	return strings.Contains(name, r.ID)
}

// Script returns the composite instruction run inside the build environment.
// The source tree is mounted read-only at /asset-input and the staging
// directory at /asset-output. When manifest is empty only the copy runs.
// The source copy runs last so source files win over dependency files.
func (r Runtime) Script(manifest string) string {
	copySource := fmt.Sprintf("cp -a /asset-input/. /asset-output/ || exit %d", exitCopyFailed)
	if manifest == "" {
		return copySource
	}
	in := shellQuote("/asset-input/" + manifest)

	var install string
	switch r.Family {
	case FamilyNode:
		install = strings.Join([]string{
			fmt.Sprintf("mkdir -p /tmp/deps && cp %s /tmp/deps/package.json || exit %d", in, exitCopyFailed),
			"if [ -f /asset-input/package-lock.json ]; then cp /asset-input/package-lock.json /tmp/deps/; fi",
			fmt.Sprintf("(cd /tmp/deps && npm install --omit=dev --no-audit --no-fund) || exit %d", exitInstallFailed),
			fmt.Sprintf("cp -a /tmp/deps/node_modules /asset-output/ || exit %d", exitInstallFailed),
		}, "; ")
	default:
		install = fmt.Sprintf("pip install --no-cache-dir -r %s -t /asset-output || exit %d", in, exitInstallFailed)
	}
	return install + "; " + copySource
}

// Env returns the environment passed to the build container.
func (r Runtime) Env() []string {
	env := []string{"HOME=/tmp"}
	switch r.Family {
	case FamilyNode:
		env = append(env, "npm_config_cache=/tmp/.npm", "npm_config_update_notifier=false")
	default:
		env = append(env, "PIP_DISABLE_PIP_VERSION_CHECK=1")
	}
	return env
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
