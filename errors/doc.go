// Package errors defines the typed failures surfaced by cmdproxy.
// Every failure is an AppError carrying a machine-readable code, so callers
// can branch on the category (template, declaration, binding, execution,
// timeout) with errors.Is, errors.As or the Is* predicates.
package errors
