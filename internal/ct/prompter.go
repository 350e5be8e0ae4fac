package ct

// Prompter is the user-facing collaborator consulted by the service.
// Calls may block on user input but always resolve.
type Prompter interface {
	// ConfirmYesNo asks a yes/no question.
	ConfirmYesNo(prompt string) bool

	// AcceptSuffixedName proposes a free name after a collision. It returns the
	// name to use (possibly edited by the user), or false if declined.
	AcceptSuffixedName(proposed string) (string, bool)

	// ReportError shows a failure to the user.
	ReportError(message string)

	// ChooseDirectory asks for a directory, or false if none was chosen.
	ChooseDirectory() (string, bool)
}
