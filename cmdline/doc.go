// Package cmdline compiles declarative command templates into argument
// vectors.
//
// A template is a command line made of whitespace-separated words. The token
// {?} marks a placeholder; placeholders bind to parameters in declaration
// order. Double quotes group text containing whitespace into one word and are
// not emitted. A backslash escapes the next {?}, quote or backslash:
//
//	java -cp . Concatenate \{?} {?} "with {?} spaces"
//
// compiles to four literal words and two placeholders. Binding never goes
// through a shell: every word becomes exactly one argv entry, and a value
// containing spaces is passed as a single argument exactly as supplied.
package cmdline
