// Package environment names the deployment environment and carries it through
// request contexts so that boundary code can, for example, hide internal error
// details in production.
package environment
