// Package preflight provides readiness checks for the directories, binaries
// and remote providers slidecast depends on.
//
// These checks run in two contexts:
//   - The workflow manager calls RunAll once at startup. A failed required
//     check aborts the start; optional failures are logged as warnings because
//     the provider chains can fall back to later entries.
//   - The CLI "slidecast status" command renders the same results as a table.
package preflight
