// Package validator builds request validation from small deferred rules.
//
//	err := validator.Apply(
//		validator.Required("text", req.Text),
//		validator.LenBetween("text", req.Text, 10, 2000),
//	)
//
// Apply returns ValidationErrors, which the HTTP layer renders as a 400 with
// per-field messages.
package validator
