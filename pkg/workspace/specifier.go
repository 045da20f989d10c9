package workspace

import "strings"

// Version specifier protocols.
//
// A dependency version in a manifest is either a concrete semver range
// (e.g. "^1.2.3"), a workspace-protocol marker resolving to whatever
// version of that package exists in the same workspace, or a
// catalog-protocol marker resolving to the version recorded in the
// workspace-wide catalog.
const (
	// WorkspaceProtocol is the specifier written for intra-workspace
	// dependencies.
	WorkspaceProtocol = "workspace:*"

	// CatalogProtocol is the specifier written for catalog-managed
	// dependencies.
	CatalogProtocol = "catalog:"

	workspacePrefix = "workspace:"
	catalogPrefix   = "catalog:"
)

// IsWorkspaceProtocol reports whether spec is a workspace-protocol
// specifier ("workspace:*", "workspace:^", ...).
func IsWorkspaceProtocol(spec string) bool {
	return strings.HasPrefix(spec, workspacePrefix)
}

// IsCatalogProtocol reports whether spec is a catalog-protocol specifier
// ("catalog:" or a named catalog like "catalog:react18").
func IsCatalogProtocol(spec string) bool {
	return strings.HasPrefix(spec, catalogPrefix)
}
