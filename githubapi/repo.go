package githubapi

import (
	"regexp"

	"licenses.software/bundle/bundle"
)

// repoPattern recognizes the GitHub hosting patterns a repository URL or a
// module path may take: https/http URLs with or without www, scp-like and
// ssh git remotes, a trailing .git, and any sub-path (blob, tree, monorepo
// subdirectories). Only the owner/repo root is kept; license detection is
// performed at repository root.
var repoPattern = regexp.MustCompile(`^(?:(?:https?://)?(?:www\.)?|git@|ssh://git@)github\.com[:/]([A-Za-z0-9_.-]+)/([A-Za-z0-9_.-]+?)(?:\.git)?(?:[/#?].*)?$`)

// Repo identifies a repository on the hosting site.
type Repo struct {
	Owner string
	Name  string
}

// ParseRepo extracts the owner/repo pair from a repository URL or a
// github.com module path. It reports false for anything that does not match
// a recognized hosting pattern.
func ParseRepo(s string) (Repo, bool) {
	m := repoPattern.FindStringSubmatch(s)
	if m == nil {
		return Repo{}, false
	}
	return Repo{Owner: m[1], Name: m[2]}, true
}

// repoForPackage derives the repository for a package: the declared
// repository URL when present, otherwise the module path itself for modules
// hosted under github.com.
func repoForPackage(pkg bundle.Package) (Repo, bool) {
	if pkg.Repository != "" {
		return ParseRepo(pkg.Repository)
	}
	return ParseRepo(pkg.Name)
}
