package bundle

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"
)

var (
	requirementName = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._-]*)`)
	nameSeparators  = regexp.MustCompile(`[-_.]+`)
)

// NormalizeName normalizes a Python distribution name (PEP 503).
func NormalizeName(name string) string {
	return nameSeparators.ReplaceAllString(strings.ToLower(name), "-")
}

// ReadManifest returns the dependency names declared in a manifest file.
func ReadManifest(path string, family Family) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch family {
	case FamilyNode:
		return ParsePackageJSON(data)
	default:
		return ParseRequirements(bytes.NewReader(data))
	}
}

// ParseRequirements returns the distribution names declared in a pip
// requirements file, in declaration order without duplicates. Option lines
// (-r, -e, --index-url, ...) and bare URL requirements are skipped.
func ParseRequirements(r io.Reader) ([]string, error) {
	var (
		names []string
		seen  = sets.New[string]()
		buf   strings.Builder
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasSuffix(line, `\`) {
			buf.WriteString(strings.TrimSuffix(line, `\`))
			continue
		}
		buf.WriteString(line)
		full := buf.String()
		buf.Reset()

		if name := requirementLineName(full); name != "" && !seen.Has(NormalizeName(name)) {
			seen.Insert(NormalizeName(name))
			names = append(names, name)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading requirements: %w", err)
	}
	if name := requirementLineName(buf.String()); name != "" && !seen.Has(NormalizeName(name)) {
		names = append(names, name)
	}
	return names, nil
}

func requirementLineName(line string) string {
	if i := strings.Index(line, "#"); i == 0 || (i > 0 && (line[i-1] == ' ' || line[i-1] == '\t')) {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "-") {
		return ""
	}
	if strings.Contains(line, "://") && !strings.Contains(line, " @ ") && !strings.Contains(line, "@ ") {
		return ""
	}
	m := requirementName.FindStringSubmatch(line)
	if m == nil {
		return ""
	}
	return m[1]
}

// ParsePackageJSON returns the runtime dependency names of a package.json,
// sorted. Development dependencies are not bundled.
func ParsePackageJSON(data []byte) ([]string, error) {
	var pkg struct {
		Dependencies map[string]string `json:"dependencies"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("parsing package.json: %w", err)
	}
	names := make([]string, 0, len(pkg.Dependencies))
	for name := range pkg.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// installedDependencies derives the set of installed dependency names from
// the files of a staging directory.
func installedDependencies(files sets.Set[string], family Family) sets.Set[string] {
	installed := sets.New[string]()
	for file := range files {
		parts := strings.Split(file, "/")
		switch family {
		case FamilyNode:
			if len(parts) < 3 || parts[0] != "node_modules" {
				continue
			}
			name := parts[1]
			if strings.HasPrefix(name, "@") && len(parts) >= 4 {
				name += "/" + parts[2]
			}
			installed.Insert(strings.ToLower(name))
		default:
			top := parts[0]
			for _, suffix := range []string{".dist-info", ".egg-info"} {
				if strings.HasSuffix(top, suffix) {
					dist, _, _ := strings.Cut(strings.TrimSuffix(top, suffix), "-")
					installed.Insert(NormalizeName(dist))
				}
			}
			if len(parts) > 1 {
				installed.Insert(NormalizeName(top))
			}
		}
	}
	return installed
}

// missingDependencies returns the declared names with no corresponding files.
func missingDependencies(declared []string, files sets.Set[string], family Family) []string {
	installed := installedDependencies(files, family)
	var missing []string
	for _, name := range declared {
		key := strings.ToLower(name)
		if family != FamilyNode {
			key = NormalizeName(name)
		}
		if !installed.Has(key) {
			missing = append(missing, name)
		}
	}
	return missing
}
