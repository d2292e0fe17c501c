// Package source deploys the application code: a clone-or-reset of the git
// repository at the target branch, and the virtualenv holding its Python
// dependencies.
package source
